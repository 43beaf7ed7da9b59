package chatstore

import (
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/model"
)

// Resolution is the outcome of comparing a local and a remote copy.
type Resolution int

const (
	// AdoptRemote replaces the local copy with the remote one.
	AdoptRemote Resolution = iota
	// RepushLocal keeps the local copy and pushes it again.
	RepushLocal
)

// Resolve applies last-writer-wins on UpdatedAt. On a tie the remote copy
// wins because it carries the server-assigned version.
func Resolve(localUpdatedAt, remoteUpdatedAt int64) Resolution {
	if localUpdatedAt > remoteUpdatedAt {
		return RepushLocal
	}
	return AdoptRemote
}

// MergeReport lists what MergeRemote did, per entity id.
type MergeReport struct {
	AdoptedChats []string
	// RepushChats are local copies newer than the remote; push them again
	// after a short delay.
	RepushChats []string
	// PushChats exist only locally.
	PushChats []string
	// SkippedChats are remote copies of chats waiting for a remote delete.
	SkippedChats []string
	// StreamingChats kept their local copy because a response was streaming.
	StreamingChats []string

	AdoptedFolders []string
	RepushFolders  []string
	PushFolders    []string
	SkippedFolders []string
}

// MergeRemote reconciles a full remote snapshot into the store. Tombstoned
// entities are never resurrected.
func (s *Store) MergeRemote(remoteChats []*model.Chat, remoteFolders []*model.Folder) MergeReport {
	var report MergeReport
	_ = s.update(func(fx *effects) error {
		s.mergeFoldersLocked(fx, remoteFolders, &report)
		s.mergeChatsLocked(fx, remoteChats, &report)
		s.emit(fx, bus.SyncMerged, report)
		return nil
	})
	return report
}

func (s *Store) mergeFoldersLocked(fx *effects, remote []*model.Folder, report *MergeReport) {
	seen := make(map[string]bool, len(remote))
	for _, r := range remote {
		if r == nil || r.ID == "" {
			continue
		}
		seen[r.ID] = true
		if _, gone := s.deletedFolders[r.ID]; gone {
			report.SkippedFolders = append(report.SkippedFolders, r.ID)
			continue
		}
		l, err := s.folderLocked(r.ID)
		if err != nil {
			f := r.Clone()
			s.folders = append(s.folders, f)
			s.saveFolder(f)
			s.emit(fx, bus.FolderCreated, bus.EntityRef{FolderID: f.ID})
			report.AdoptedFolders = append(report.AdoptedFolders, f.ID)
			continue
		}
		switch Resolve(l.UpdatedAt, r.UpdatedAt) {
		case AdoptRemote:
			expanded := l.IsExpanded
			*l = *r.Clone()
			l.IsExpanded = expanded
			s.saveFolder(l)
			s.emit(fx, bus.FolderUpdated, bus.EntityRef{FolderID: l.ID})
			report.AdoptedFolders = append(report.AdoptedFolders, l.ID)
		case RepushLocal:
			report.RepushFolders = append(report.RepushFolders, l.ID)
		}
	}
	for _, l := range s.folders {
		if !seen[l.ID] {
			report.PushFolders = append(report.PushFolders, l.ID)
		}
	}
	sortFolders(s.folders)
}

func (s *Store) mergeChatsLocked(fx *effects, remote []*model.Chat, report *MergeReport) {
	seen := make(map[string]bool, len(remote))
	for _, r := range remote {
		if r == nil || r.ID == "" {
			continue
		}
		seen[r.ID] = true
		if _, gone := s.deletedChats[r.ID]; gone {
			report.SkippedChats = append(report.SkippedChats, r.ID)
			continue
		}
		l, err := s.chatLocked(r.ID)
		if err != nil {
			c := r.Clone()
			settleInterruptedStream(c)
			c.PendingPrompt = nil
			c.LocalOnly = false
			s.chats = append(s.chats, c)
			s.saveChat(c)
			s.emit(fx, bus.ChatCreated, bus.EntityRef{ChatID: c.ID, FolderID: c.FolderID})
			report.AdoptedChats = append(report.AdoptedChats, c.ID)
			continue
		}
		if s.streamingIn(l.ID) {
			report.StreamingChats = append(report.StreamingChats, l.ID)
			continue
		}
		switch Resolve(l.UpdatedAt, r.UpdatedAt) {
		case AdoptRemote:
			pending, localOnly := l.PendingPrompt, l.LocalOnly
			c := r.Clone()
			settleInterruptedStream(c)
			*l = *c
			l.PendingPrompt = pending
			l.LocalOnly = localOnly
			s.saveChat(l)
			s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: l.ID})
			report.AdoptedChats = append(report.AdoptedChats, l.ID)
		case RepushLocal:
			report.RepushChats = append(report.RepushChats, l.ID)
		}
	}
	for _, l := range s.chats {
		if !seen[l.ID] && !l.LocalOnly {
			report.PushChats = append(report.PushChats, l.ID)
		}
	}

	// A remote copy may still point at a folder deleted here.
	for _, c := range s.chats {
		if c.FolderID == "" {
			continue
		}
		if _, gone := s.deletedFolders[c.FolderID]; !gone {
			continue
		}
		c.FolderID = ""
		s.touch(c)
		s.saveChat(c)
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: c.ID})
		report.RepushChats = append(report.RepushChats, c.ID)
	}
	sortChats(s.chats)
}
