// Package cloud is the REST client for the remote chat and folder API.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/matheus3301/chatsync/internal/model"
	"go.uber.org/zap"
)

const (
	chatsSyncPath = "/api/chats/sync"
	chatsPath     = "/api/chats"
	foldersPath   = "/api/conversations/folders"

	// DefaultMaxPayloadBytes keeps pushes below the server's document limit.
	DefaultMaxPayloadBytes = 15 << 20
	DefaultTimeout         = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	BaseURL         string
	Token           string
	Compress        bool
	MaxPayloadBytes int64
	Timeout         time.Duration
}

// Client talks to the remote API. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	token      string
	compress   bool
	maxPayload int64
	http       *http.Client
	logger     *zap.Logger
}

// New creates a client for cfg.BaseURL.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("cloud: base url is empty")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("cloud: parse base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		base:       base,
		token:      cfg.Token,
		compress:   cfg.Compress,
		maxPayload: cfg.MaxPayloadBytes,
		http:       &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

type syncAllResponse struct {
	Chats      []*model.Chat `json:"chats"`
	TotalCount int           `json:"totalCount"`
	SyncedAt   time.Time     `json:"syncedAt"`
}

type folderListResponse struct {
	Folders      []*model.Folder `json:"folders"`
	FolderCounts map[string]int  `json:"folderCounts,omitempty"`
}

// FetchChats returns every chat stored remotely.
func (c *Client) FetchChats(ctx context.Context) ([]*model.Chat, error) {
	var resp syncAllResponse
	if err := c.do(ctx, http.MethodGet, chatsSyncPath, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// PushChat upserts a chat. The response carries the server-assigned
// version.
func (c *Client) PushChat(ctx context.Context, chat *model.Chat) (*model.Chat, error) {
	body, err := json.Marshal(wireChat(chat))
	if err != nil {
		return nil, fmt.Errorf("encode chat %s: %w", chat.ID, err)
	}
	body, err = c.encodeBody(body, "chat", chat.ID, chat.Title)
	if err != nil {
		return nil, err
	}
	var out model.Chat
	if err := c.do(ctx, http.MethodPost, chatsPath, body, &out); err != nil {
		var tooLarge *TooLargeError
		if errors.As(err, &tooLarge) {
			tooLarge.Kind, tooLarge.ID, tooLarge.Title = "chat", chat.ID, chat.Title
		}
		return nil, err
	}
	if out.ID == "" {
		out.ID = chat.ID
	}
	return &out, nil
}

// wireChat drops the device-local fields from a chat before upload: the
// stashed prompt, the local-only flag and streaming flags.
func wireChat(chat *model.Chat) *model.Chat {
	out := chat.Clone()
	out.PendingPrompt = nil
	out.LocalOnly = false
	for i := range out.Messages {
		out.Messages[i].IsStreaming = false
	}
	return out
}

// DeleteChat deletes a chat remotely. A chat the server does not know is
// already deleted.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	return c.deleteIgnoringNotFound(ctx, chatsPath+"/"+url.PathEscape(id))
}

// FetchFolders returns every folder stored remotely.
func (c *Client) FetchFolders(ctx context.Context) ([]*model.Folder, error) {
	var resp folderListResponse
	if err := c.do(ctx, http.MethodGet, foldersPath, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Folders, nil
}

// PushFolder upserts a folder.
func (c *Client) PushFolder(ctx context.Context, folder *model.Folder) (*model.Folder, error) {
	body, err := json.Marshal(folder)
	if err != nil {
		return nil, fmt.Errorf("encode folder %s: %w", folder.ID, err)
	}
	body, err = c.encodeBody(body, "folder", folder.ID, folder.Name)
	if err != nil {
		return nil, err
	}
	var out model.Folder
	if err := c.do(ctx, http.MethodPut, foldersPath+"/"+url.PathEscape(folder.ID), body, &out); err != nil {
		var tooLarge *TooLargeError
		if errors.As(err, &tooLarge) {
			tooLarge.Kind, tooLarge.ID, tooLarge.Title = "folder", folder.ID, folder.Name
		}
		return nil, err
	}
	if out.ID == "" {
		out.ID = folder.ID
	}
	return &out, nil
}

// DeleteFolder deletes a folder remotely.
func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	return c.deleteIgnoringNotFound(ctx, foldersPath+"/"+url.PathEscape(id))
}

func (c *Client) deleteIgnoringNotFound(ctx context.Context, path string) error {
	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// encodeBody compresses body when enabled and enforces the payload limit
// on what would go over the wire.
func (c *Client) encodeBody(body []byte, kind, id, title string) ([]byte, error) {
	if c.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return nil, fmt.Errorf("compress %s %s: %w", kind, id, err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compress %s %s: %w", kind, id, err)
		}
		body = buf.Bytes()
	}
	if int64(len(body)) > c.maxPayload {
		return nil, &TooLargeError{Kind: kind, ID: id, Title: title, Size: int64(len(body))}
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		if c.compress {
			req.Header.Set("Content-Encoding", "gzip")
		}
	}
	if c.compress {
		req.Header.Set("Accept-Encoding", "gzip")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := c.readBody(resp)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	c.logger.Debug("cloud request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Int("request_bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return &TooLargeError{Size: int64(len(body))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Message: errorMessage(respBody)}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return io.ReadAll(resp.Body)
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()
	return io.ReadAll(zr)
}

// errorMessage extracts {"error": "..."} from an error response.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
