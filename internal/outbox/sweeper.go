// Package outbox drains pending remote deletes. A locally deleted chat or
// folder leaves a tombstone in the chat store; the sweeper keeps retrying
// the remote delete until it succeeds and only then clears the tombstone.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/clock"
	"go.uber.org/zap"
)

// Deleter performs remote deletes. *cloud.Client implements it.
type Deleter interface {
	DeleteChat(ctx context.Context, id string) error
	DeleteFolder(ctx context.Context, id string) error
}

// Tombstones is the chat store's view of pending deletes.
type Tombstones interface {
	DeletedChatIDs() []string
	DeletedFolderIDs() []string
	ConfirmChatDeleted(id string) bool
	ConfirmFolderDeleted(id string) bool
}

// Entity kinds carried in DeleteResult.
const (
	KindChat   = "chat"
	KindFolder = "folder"
)

// DeleteResult is the payload of sync.delete_confirmed and
// sync.delete_failed.
type DeleteResult struct {
	Kind  string
	ID    string
	Error string
}

// SweepResult summarizes one pass over the tombstones.
type SweepResult struct {
	Confirmed int
	Failed    int
}

// DefaultInterval is the retry period of the sweep loop.
const DefaultInterval = time.Minute

// Sweeper retries pending remote deletes.
type Sweeper struct {
	store    Tombstones
	remote   Deleter
	bus      *bus.Bus
	clock    clock.Clock
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	mu       sync.Mutex
	enabled  bool
	inflight map[string]bool
}

// NewSweeper creates a sweeper. It starts enabled.
func NewSweeper(store Tombstones, remote Deleter, b *bus.Bus, clk clock.Clock, logger *zap.Logger, interval time.Duration) *Sweeper {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		store:    store,
		remote:   remote,
		bus:      b,
		clock:    clk,
		logger:   logger,
		interval: interval,
		enabled:  true,
		inflight: make(map[string]bool),
	}
}

// SetEnabled pauses or resumes remote deletes. Tombstones are kept while
// paused.
func (s *Sweeper) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

func (s *Sweeper) isEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Start begins retrying pending deletes every interval.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep attempts every pending delete once. Folders go first so a folder
// delete is not overtaken by deletes of chats that lived in it.
func (s *Sweeper) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	if !s.isEnabled() {
		return res
	}
	for _, id := range s.store.DeletedFolderIDs() {
		if err := s.DeleteFolder(ctx, id); err != nil {
			res.Failed++
		} else {
			res.Confirmed++
		}
	}
	for _, id := range s.store.DeletedChatIDs() {
		if err := s.DeleteChat(ctx, id); err != nil {
			res.Failed++
		} else {
			res.Confirmed++
		}
	}
	if res.Confirmed+res.Failed > 0 {
		s.logger.Info("pending deletes swept", zap.Int("confirmed", res.Confirmed), zap.Int("failed", res.Failed))
	}
	return res
}

// DeleteChat deletes one chat remotely and clears its tombstone on success.
func (s *Sweeper) DeleteChat(ctx context.Context, id string) error {
	return s.delete(ctx, KindChat, id, s.remote.DeleteChat, s.store.ConfirmChatDeleted)
}

// DeleteFolder deletes one folder remotely and clears its tombstone on
// success.
func (s *Sweeper) DeleteFolder(ctx context.Context, id string) error {
	return s.delete(ctx, KindFolder, id, s.remote.DeleteFolder, s.store.ConfirmFolderDeleted)
}

func (s *Sweeper) delete(ctx context.Context, kind, id string, remove func(context.Context, string) error, confirm func(string) bool) error {
	key := kind + ":" + id
	s.mu.Lock()
	if !s.enabled || s.inflight[key] {
		s.mu.Unlock()
		return nil
	}
	s.inflight[key] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}()

	if err := remove(ctx, id); err != nil {
		s.logger.Warn("remote delete failed, keeping tombstone",
			zap.String("kind", kind), zap.String("id", id), zap.Error(err))
		s.publish(bus.SyncDeleteFailed, DeleteResult{Kind: kind, ID: id, Error: err.Error()})
		return err
	}

	confirm(id)
	s.logger.Info("remote delete confirmed", zap.String("kind", kind), zap.String("id", id))
	s.publish(bus.SyncDeleteConfirmed, DeleteResult{Kind: kind, ID: id})
	return nil
}

func (s *Sweeper) publish(kind string, payload DeleteResult) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: s.clock.Now(), Payload: payload})
}
