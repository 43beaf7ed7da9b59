package chatstore

import "errors"

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrFolderNotFound  = errors.New("folder not found")
	ErrEmptyFolderName = errors.New("folder name is empty")
	ErrNotStreaming    = errors.New("message is not streaming")
	ErrNotRetryable    = errors.New("only assistant responses can be retried")
	// ErrChatDeleted is returned when creating a chat whose id is still
	// waiting for its remote delete.
	ErrChatDeleted = errors.New("chat is pending deletion")
)
