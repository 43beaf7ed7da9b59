package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/matheus3301/chatsync/internal/model"
)

// fakeServer is a minimal in-memory implementation of the remote API.
type fakeServer struct {
	mu       sync.Mutex
	chats    map[string]*model.Chat
	folders  map[string]*model.Folder
	auth     []string
	encoding []string
	fail     int // status returned for every request when non-zero
}

func newFakeServer() *fakeServer {
	return &fakeServer{chats: map[string]*model.Chat{}, folders: map[string]*model.Folder{}}
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	s.encoding = append(s.encoding, r.Header.Get("Content-Encoding"))
	if s.fail != 0 {
		w.WriteHeader(s.fail)
		_, _ = w.Write([]byte(`{"error":"injected"}`))
		return
	}

	body := r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer zr.Close()
		body = zr
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == chatsSyncPath:
		list := make([]*model.Chat, 0, len(s.chats))
		for _, c := range s.chats {
			list = append(list, c)
		}
		writeJSON(w, syncAllResponse{Chats: list, TotalCount: len(list)})
	case r.Method == http.MethodPost && r.URL.Path == chatsPath:
		var c model.Chat
		if err := json.NewDecoder(body).Decode(&c); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if prev, ok := s.chats[c.ID]; ok {
			c.Version = prev.Version + 1
		} else {
			c.Version = 1
		}
		s.chats[c.ID] = &c
		writeJSON(w, c)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, chatsPath+"/"):
		id := strings.TrimPrefix(r.URL.Path, chatsPath+"/")
		if _, ok := s.chats[id]; !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		delete(s.chats, id)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && r.URL.Path == foldersPath:
		list := make([]*model.Folder, 0, len(s.folders))
		for _, f := range s.folders {
			list = append(list, f)
		}
		writeJSON(w, folderListResponse{Folders: list})
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, foldersPath+"/"):
		var f model.Folder
		if err := json.NewDecoder(body).Decode(&f); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.Version++
		s.folders[f.ID] = &f
		writeJSON(w, f)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, foldersPath+"/"):
		delete(s.folders, strings.TrimPrefix(r.URL.Path, foldersPath+"/"))
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, h http.Handler, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestChatRoundTrip(t *testing.T) {
	fs := newFakeServer()
	c := newTestClient(t, fs, Config{Token: "secret"})
	ctx := context.Background()

	chat := &model.Chat{ID: "c1", Title: "hello", Messages: []model.Message{{ID: "m1", Role: model.RoleUser, Content: "hi"}}, UpdatedAt: 10}
	pushed, err := c.PushChat(ctx, chat)
	if err != nil {
		t.Fatal(err)
	}
	if pushed.Version != 1 {
		t.Errorf("version = %d, want 1", pushed.Version)
	}
	if pushed, _ = c.PushChat(ctx, chat); pushed.Version != 2 {
		t.Errorf("version after second push = %d, want 2", pushed.Version)
	}

	chats, err := c.FetchChats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 1 || chats[0].Title != "hello" || len(chats[0].Messages) != 1 {
		t.Fatalf("fetched = %+v", chats)
	}

	if err := c.DeleteChat(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteChat(ctx, "c1"); err != nil {
		t.Errorf("deleting a missing chat: %v, want nil", err)
	}

	for _, got := range fs.auth {
		if got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
	}
}

func TestFolderRoundTrip(t *testing.T) {
	fs := newFakeServer()
	c := newTestClient(t, fs, Config{})
	ctx := context.Background()

	if _, err := c.PushFolder(ctx, &model.Folder{ID: "f1", Name: "work"}); err != nil {
		t.Fatal(err)
	}
	folders, err := c.FetchFolders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 1 || folders[0].Name != "work" || folders[0].Version != 1 {
		t.Fatalf("folders = %+v", folders)
	}
	if err := c.DeleteFolder(ctx, "f1"); err != nil {
		t.Fatal(err)
	}
}

func TestCompressedBodies(t *testing.T) {
	fs := newFakeServer()
	c := newTestClient(t, fs, Config{Compress: true})

	chat := &model.Chat{ID: "c1", Title: strings.Repeat("long title ", 100)}
	if _, err := c.PushChat(context.Background(), chat); err != nil {
		t.Fatal(err)
	}
	if fs.encoding[0] != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", fs.encoding[0])
	}
	if got := fs.chats["c1"]; got == nil || got.Title != chat.Title {
		t.Error("server did not receive the decompressed chat")
	}
}

func TestCompressedResponse(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "gzip" {
			t.Errorf("Accept-Encoding = %q", r.Header.Get("Accept-Encoding"))
		}
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		_ = json.NewEncoder(zw).Encode(syncAllResponse{Chats: []*model.Chat{{ID: "z"}}})
		_ = zw.Close()
	})
	c := newTestClient(t, h, Config{Compress: true})

	chats, err := c.FetchChats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 1 || chats[0].ID != "z" {
		t.Errorf("chats = %+v", chats)
	}
}

func TestTooLargeClientSide(t *testing.T) {
	fs := newFakeServer()
	c := newTestClient(t, fs, Config{MaxPayloadBytes: 64})

	chat := &model.Chat{ID: "big", Title: "Big one", Messages: []model.Message{{ID: "m", Content: strings.Repeat("x", 500)}}}
	_, err := c.PushChat(context.Background(), chat)

	var tooLarge *TooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("err = %v, want *TooLargeError", err)
	}
	if tooLarge.ID != "big" || tooLarge.Title != "Big one" || tooLarge.Kind != "chat" || tooLarge.Size <= 64 {
		t.Errorf("TooLargeError = %+v", tooLarge)
	}
	if len(fs.auth) != 0 {
		t.Error("oversized payload was sent")
	}
}

func TestTooLargeFromServer(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	})
	c := newTestClient(t, h, Config{})

	_, err := c.PushChat(context.Background(), &model.Chat{ID: "c9", Title: "t9"})
	var tooLarge *TooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("err = %v, want *TooLargeError", err)
	}
	if tooLarge.ID != "c9" || tooLarge.Title != "t9" {
		t.Errorf("TooLargeError = %+v", tooLarge)
	}
}

func TestAPIError(t *testing.T) {
	fs := newFakeServer()
	fs.fail = http.StatusInternalServerError
	c := newTestClient(t, fs, Config{})

	_, err := c.FetchChats(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusInternalServerError || apiErr.Message != "injected" {
		t.Errorf("APIError = %+v", apiErr)
	}

	if err := c.DeleteChat(context.Background(), "x"); err == nil {
		t.Error("delete with server error returned nil")
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Error("New with empty base url succeeded")
	}
}

func TestPushChatOmitsLocalFields(t *testing.T) {
	var raw []byte
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		writeJSON(w, model.Chat{ID: "c1", Version: 1})
	})
	c := newTestClient(t, h, Config{})

	chat := &model.Chat{
		ID:            "c1",
		Title:         "mine",
		LocalOnly:     true,
		PendingPrompt: &model.Prompt{ID: "p1", Title: "stashed"},
		Messages:      []model.Message{{ID: "m1", Role: model.RoleAssistant, IsStreaming: true}},
	}
	if _, err := c.PushChat(context.Background(), chat); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"pendingPrompt", "localOnly", "isStreaming"} {
		if strings.Contains(string(raw), `"`+field+`"`) {
			t.Errorf("uploaded body carries %s: %s", field, raw)
		}
	}
	if !chat.LocalOnly || chat.PendingPrompt == nil || !chat.Messages[0].IsStreaming {
		t.Error("caller's chat was modified")
	}
}
