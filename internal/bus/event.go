package bus

import "time"

// Event is a change notification published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds. The part before the first dot is the namespace.
const (
	ChatCreated     = "chat.created"
	ChatUpdated     = "chat.updated"
	ChatDeleted     = "chat.deleted"
	ChatSelected    = "chat.selected"
	ChatStreamChunk = "chat.stream_chunk"

	FolderCreated = "folder.created"
	FolderUpdated = "folder.updated"
	FolderDeleted = "folder.deleted"

	PromptChanged = "prompt.changed"
	NavChanged    = "nav.changed"

	NotifyToast = "notify.toast"

	SyncStatusChanged   = "sync.status_changed"
	SyncChatPushed      = "sync.chat_pushed"
	SyncFolderPushed    = "sync.folder_pushed"
	SyncMerged          = "sync.merged"
	SyncDeleteConfirmed = "sync.delete_confirmed"
	SyncDeleteFailed    = "sync.delete_failed"
)

// EntityRef identifies the chat or folder (and optionally message) an
// event refers to.
type EntityRef struct {
	ChatID    string
	FolderID  string
	MessageID string
}

// StreamChunk is the payload of ChatStreamChunk.
type StreamChunk struct {
	ChatID    string
	MessageID string
	Chunk     string
}
