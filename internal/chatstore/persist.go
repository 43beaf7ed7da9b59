package chatstore

import (
	"slices"

	"github.com/matheus3301/chatsync/internal/codec"
	"github.com/matheus3301/chatsync/internal/model"
	"go.uber.org/zap"
)

// Persistence is a durable key/value medium. *store.DB implements it.
type Persistence interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
	List(prefix string) (map[string][]byte, error)
}

const (
	keyMeta      = "meta"
	chatPrefix   = "chat:"
	folderPrefix = "folder:"
)

// persistedMeta is the on-disk form of the non-entity state. Tombstone
// sets are stored as sorted arrays and rebuilt into sets on load.
type persistedMeta struct {
	ActiveNav        model.Nav `json:"activeNav"`
	DeletedChatIDs   []string  `json:"deletedChatIds"`
	DeletedFolderIDs []string  `json:"deletedFolderIds"`
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func sliceToSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s *Store) load() error {
	if s.persist == nil {
		return nil
	}

	raw, ok, err := s.persist.Get(keyMeta)
	if err != nil {
		return err
	}
	if ok {
		var meta persistedMeta
		if err := codec.Unmarshal(raw, &meta); err != nil {
			s.logger.Warn("discarding unreadable meta", zap.Error(err))
		} else {
			if meta.ActiveNav != "" {
				s.activeNav = meta.ActiveNav
			}
			s.deletedChats = sliceToSet(meta.DeletedChatIDs)
			s.deletedFolders = sliceToSet(meta.DeletedFolderIDs)
		}
	}

	chats, err := s.persist.List(chatPrefix)
	if err != nil {
		return err
	}
	for key, raw := range chats {
		var c model.Chat
		if err := codec.Unmarshal(raw, &c); err != nil {
			s.logger.Warn("skipping unreadable chat", zap.String("key", key), zap.Error(err))
			continue
		}
		if _, gone := s.deletedChats[c.ID]; gone {
			continue
		}
		settleInterruptedStream(&c)
		s.chats = append(s.chats, &c)
	}
	sortChats(s.chats)

	folders, err := s.persist.List(folderPrefix)
	if err != nil {
		return err
	}
	for key, raw := range folders {
		var f model.Folder
		if err := codec.Unmarshal(raw, &f); err != nil {
			s.logger.Warn("skipping unreadable folder", zap.String("key", key), zap.Error(err))
			continue
		}
		if _, gone := s.deletedFolders[f.ID]; gone {
			continue
		}
		s.folders = append(s.folders, &f)
	}
	sortFolders(s.folders)

	s.logger.Info("chat store loaded",
		zap.Int("chats", len(s.chats)),
		zap.Int("folders", len(s.folders)),
		zap.Int("pending_chat_deletes", len(s.deletedChats)),
		zap.Int("pending_folder_deletes", len(s.deletedFolders)))
	return nil
}

// settleInterruptedStream clears streaming state that was persisted mid
// response. A stream never survives a restart.
func settleInterruptedStream(c *model.Chat) {
	for i := range c.Messages {
		m := &c.Messages[i]
		if !m.IsStreaming {
			continue
		}
		m.IsStreaming = false
		if m.Status == model.StatusSending {
			m.Status = model.StatusError
			m.Error = "response interrupted"
		}
	}
}

// The write helpers log failures instead of returning them: the in-memory
// state stays authoritative for the session.

func (s *Store) saveChat(c *model.Chat) {
	s.write(chatPrefix+c.ID, c)
}

func (s *Store) saveFolder(f *model.Folder) {
	s.write(folderPrefix+f.ID, f)
}

func (s *Store) saveMeta() {
	s.write(keyMeta, persistedMeta{
		ActiveNav:        s.activeNav,
		DeletedChatIDs:   setToSlice(s.deletedChats),
		DeletedFolderIDs: setToSlice(s.deletedFolders),
	})
}

func (s *Store) write(key string, v any) {
	if s.persist == nil {
		return
	}
	raw, err := codec.Marshal(v)
	if err != nil {
		s.logger.Error("encode for persistence", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.persist.Set(key, raw); err != nil {
		s.logger.Error("persist", zap.String("key", key), zap.Error(err))
	}
}

func (s *Store) erase(key string) {
	if s.persist == nil {
		return
	}
	if err := s.persist.Remove(key); err != nil {
		s.logger.Error("remove from persistence", zap.String("key", key), zap.Error(err))
	}
}
