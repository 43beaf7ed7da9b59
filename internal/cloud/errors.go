package cloud

import "fmt"

// TooLargeError reports an entity the server will never accept because of
// its size. It is not retryable.
type TooLargeError struct {
	Kind  string // "chat" or "folder"
	ID    string
	Title string
	Size  int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s %s (%q) is too large to sync: %d bytes", e.Kind, e.ID, e.Title, e.Size)
}

// APIError is any other non-2xx response.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}
