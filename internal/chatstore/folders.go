package chatstore

import (
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/model"
)

// CreateFolder adds an expanded folder and schedules its sync.
func (s *Store) CreateFolder(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyFolderName
	}
	id := uuid.NewString()
	err := s.update(func(fx *effects) error {
		now := s.now()
		f := &model.Folder{ID: id, Name: name, CreatedAt: now, UpdatedAt: now, IsExpanded: true}
		s.folders = append(s.folders, f)
		s.saveFolder(f)
		s.emit(fx, bus.FolderCreated, bus.EntityRef{FolderID: id})
		fx.syncFolder(id)
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// RenameFolder sets the folder name.
func (s *Store) RenameFolder(folderID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyFolderName
	}
	return s.update(func(fx *effects) error {
		f, err := s.folderLocked(folderID)
		if err != nil {
			return err
		}
		if f.Name == name {
			return nil
		}
		f.Name = name
		f.UpdatedAt = s.later(f.UpdatedAt)
		s.saveFolder(f)
		s.emit(fx, bus.FolderUpdated, bus.EntityRef{FolderID: folderID})
		fx.syncFolder(folderID)
		return nil
	})
}

// ToggleFolderExpanded flips the sidebar expansion of a folder. Expansion
// is view state: it is persisted but not synced.
func (s *Store) ToggleFolderExpanded(folderID string) (bool, error) {
	var expanded bool
	err := s.update(func(fx *effects) error {
		f, err := s.folderLocked(folderID)
		if err != nil {
			return err
		}
		f.IsExpanded = !f.IsExpanded
		expanded = f.IsExpanded
		s.saveFolder(f)
		s.emit(fx, bus.FolderUpdated, bus.EntityRef{FolderID: folderID})
		return nil
	})
	return expanded, err
}

// DeleteFolder removes the folder locally, records a tombstone and
// requests the remote delete. Member chats are kept and uncategorized;
// each one is touched and scheduled for sync.
func (s *Store) DeleteFolder(folderID string) error {
	return s.update(func(fx *effects) error {
		f, err := s.folderLocked(folderID)
		if err != nil {
			return err
		}
		s.folders = slices.DeleteFunc(s.folders, func(x *model.Folder) bool { return x == f })
		s.erase(folderPrefix + folderID)
		s.deletedFolders[folderID] = struct{}{}
		s.saveMeta()

		for _, c := range s.chats {
			if c.FolderID != folderID {
				continue
			}
			c.FolderID = ""
			s.touch(c)
			s.saveChat(c)
			s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: c.ID})
			fx.syncChat(c.ID)
		}

		s.emit(fx, bus.FolderDeleted, bus.EntityRef{FolderID: folderID})
		fx.deletedFolders = append(fx.deletedFolders, folderID)
		return nil
	})
}
