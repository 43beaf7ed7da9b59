package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/matheus3301/chatsync/internal/chatstore"
	"github.com/matheus3301/chatsync/internal/clock"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/store"
	"go.uber.org/zap"
)

// Checkpoint keys in sync_state.
const (
	CheckpointLastPulledAt = "last_pulled_at"
	CheckpointRemoteChats  = "remote_chats"
)

// Snapshot is the full remote state as fetched in one pull.
type Snapshot struct {
	Chats   []*model.Chat
	Folders []*model.Folder
}

// Reconciler pulls remote snapshots, merges them into the chat store and
// records pull checkpoints.
type Reconciler struct {
	db     *store.DB
	store  *chatstore.Store
	remote Remote
	clock  clock.Clock
	logger *zap.Logger
}

// NewReconciler creates a new reconciler. db may be nil, in which case
// checkpoints are not recorded.
func NewReconciler(db *store.DB, s *chatstore.Store, remote Remote, clk clock.Clock, logger *zap.Logger) *Reconciler {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, store: s, remote: remote, clock: clk, logger: logger}
}

// Fetch downloads every remote folder and chat.
func (r *Reconciler) Fetch(ctx context.Context) (*Snapshot, error) {
	folders, err := r.remote.FetchFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch folders: %w", err)
	}
	chats, err := r.remote.FetchChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chats: %w", err)
	}
	return &Snapshot{Chats: chats, Folders: folders}, nil
}

// Merge applies a snapshot to the store and records the pull checkpoint.
func (r *Reconciler) Merge(snap *Snapshot) chatstore.MergeReport {
	report := r.store.MergeRemote(snap.Chats, snap.Folders)

	now := clock.NowMillis(r.clock)
	if err := r.UpdateCheckpoint(CheckpointLastPulledAt, strconv.FormatInt(now, 10)); err != nil {
		r.logger.Warn("failed to record pull checkpoint", zap.Error(err))
	}
	if err := r.UpdateCheckpoint(CheckpointRemoteChats, strconv.Itoa(len(snap.Chats))); err != nil {
		r.logger.Warn("failed to record pull checkpoint", zap.Error(err))
	}

	r.logger.Info("remote state merged",
		zap.Int("remote_chats", len(snap.Chats)),
		zap.Int("remote_folders", len(snap.Folders)),
		zap.Int("adopted_chats", len(report.AdoptedChats)),
		zap.Int("repush_chats", len(report.RepushChats)),
		zap.Int("local_only_chats", len(report.PushChats)),
		zap.Int("skipped_tombstoned", len(report.SkippedChats)+len(report.SkippedFolders)))
	return report
}

// LastPulledAt returns the time of the last successful merge.
func (r *Reconciler) LastPulledAt() (time.Time, bool) {
	v, err := r.GetCheckpoint(CheckpointLastPulledAt)
	if err != nil || v == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// UpdateCheckpoint updates a sync checkpoint value.
func (r *Reconciler) UpdateCheckpoint(key, value string) error {
	if r.db == nil {
		return nil
	}
	now := clock.NowMillis(r.clock)
	_, err := r.db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetCheckpoint retrieves a sync checkpoint value. A missing key returns
// "" and no error.
func (r *Reconciler) GetCheckpoint(key string) (string, error) {
	if r.db == nil {
		return "", nil
	}
	var value string
	err := r.db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
