package model

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageStatus is the delivery status of a message.
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
	StatusError   MessageStatus = "error"
)

// BackendStatus is the lifecycle of the backend conversation a chat maps to.
type BackendStatus string

const (
	BackendLocalOnly BackendStatus = "local-only"
	BackendActive    BackendStatus = "active"
	BackendStale     BackendStatus = "stale"
	BackendExpired   BackendStatus = "expired"
)

// Nav is the top-level navigation target.
type Nav string

const (
	NavChat     Nav = "chat"
	NavHistory  Nav = "history"
	NavSettings Nav = "settings"
)

// ToolCall records a tool invocation made while producing a response.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
	Status    string `json:"status,omitempty"` // executing, completed, failed
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Artifact is renderable output produced by the assistant.
type Artifact struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// PromptQuestion is one question of an interactive prompt.
type PromptQuestion struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Type     string   `json:"type"` // text, select, multi-select, number, checkbox
	Options  []string `json:"options,omitempty"`
	Required bool     `json:"required,omitempty"`
}

// Prompt is an interactive prompt the assistant asks the user to answer.
type Prompt struct {
	ID        string           `json:"id"`
	ChatID    string           `json:"chatId,omitempty"`
	Title     string           `json:"title"`
	Questions []PromptQuestion `json:"questions,omitempty"`
	CreatedAt int64            `json:"createdAt"`
}

// Message is a single turn in a chat. Timestamps are Unix milliseconds.
type Message struct {
	ID          string        `json:"id"`
	Role        Role          `json:"role"`
	Content     string        `json:"content"`
	Timestamp   int64         `json:"timestamp"`
	Status      MessageStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	IsStreaming bool          `json:"isStreaming,omitempty"`

	ToolCalls   []ToolCall   `json:"toolCalls,omitempty"`
	Reasoning   string       `json:"reasoning,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Artifacts   []Artifact   `json:"artifacts,omitempty"`
	Prompt      *Prompt      `json:"prompt,omitempty"`

	VersionGroupID string `json:"versionGroupId,omitempty"`
	VersionNumber  int    `json:"versionNumber,omitempty"`
	IsHidden       bool   `json:"isHidden,omitempty"`
	RetryType      string `json:"retryType,omitempty"`
}

// Chat is a conversation owned by the chat store.
type Chat struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	Messages           []Message     `json:"messages"`
	CreatedAt          int64         `json:"createdAt"`
	UpdatedAt          int64         `json:"updatedAt"`
	LastActivityAt     int64         `json:"lastActivityAt,omitempty"`
	SystemInstructions string        `json:"systemInstructions,omitempty"`
	IsStarred          bool          `json:"isStarred"`
	FolderID           string        `json:"folderId,omitempty"`
	BackendStatus      BackendStatus `json:"backendStatus,omitempty"`
	PendingPrompt      *Prompt       `json:"pendingPrompt,omitempty"`

	// Version is assigned by the server on every successful push.
	Version int64 `json:"version,omitempty"`
	// LocalOnly is set once the server rejected the chat as too large.
	LocalOnly bool `json:"localOnly,omitempty"`
}

// Folder groups chats in the sidebar.
type Folder struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CreatedAt  int64  `json:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt"`
	IsExpanded bool   `json:"isExpanded"`
	Version    int64  `json:"version,omitempty"`
}
