// Package sync pushes chat store changes to the cloud and merges remote
// state back. Pushes are debounced per entity and always send the state
// current at fire time.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chatstore"
	"github.com/matheus3301/chatsync/internal/clock"
	"github.com/matheus3301/chatsync/internal/cloud"
	"github.com/matheus3301/chatsync/internal/codec"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/outbox"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

// Remote is the cloud API. *cloud.Client implements it.
type Remote interface {
	FetchChats(ctx context.Context) ([]*model.Chat, error)
	FetchFolders(ctx context.Context) ([]*model.Folder, error)
	PushChat(ctx context.Context, chat *model.Chat) (*model.Chat, error)
	PushFolder(ctx context.Context, folder *model.Folder) (*model.Folder, error)
	DeleteChat(ctx context.Context, id string) error
	DeleteFolder(ctx context.Context, id string) error
}

// Mode is the privacy mode.
type Mode string

const (
	ModeCloud Mode = "cloud"
	ModeLocal Mode = "local"
)

// ParseMode parses "cloud" or "local".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCloud:
		return ModeCloud, nil
	case ModeLocal:
		return ModeLocal, nil
	}
	return "", fmt.Errorf("invalid privacy mode %q (want cloud or local)", s)
}

// ErrNoRemote is returned when cloud mode is requested without a remote.
var ErrNoRemote = errors.New("cloud sync is not configured")

// Default timings.
const (
	DefaultDebounce     = 750 * time.Millisecond
	DefaultRepushDelay  = 2 * time.Second
	DefaultPullInterval = 5 * time.Minute
)

// Config tunes the engine.
type Config struct {
	Debounce     time.Duration
	RepushDelay  time.Duration
	PullInterval time.Duration
	PrivacyMode  Mode
	// OnExport backs the "Export" action of the too-large warning.
	OnExport func(chatID string)
}

// Deps are the engine's collaborators. Store and Remote are required; the
// rest default to fresh instances.
type Deps struct {
	Store      *chatstore.Store
	Remote     Remote
	Sweeper    *outbox.Sweeper
	Reconciler *Reconciler
	Bus        *bus.Bus
	Clock      clock.Clock
	Status     *status.Machine
	Notifier   *notify.Notifier
	Logger     *zap.Logger
}

// PushResult is the payload of sync.chat_pushed and sync.folder_pushed.
type PushResult struct {
	ID      string
	Version int64
}

const (
	chatKey   = "chat:"
	folderKey = "folder:"
)

type pendingPush struct {
	timer *clock.Timer
	gen   uint64
}

// Engine is the cloud sync service. It implements chatstore.Syncer.
type Engine struct {
	store      *chatstore.Store
	remote     Remote
	sweeper    *outbox.Sweeper
	reconciler *Reconciler
	bus        *bus.Bus
	clock      clock.Clock
	status     *status.Machine
	notifier   *notify.Notifier
	logger     *zap.Logger
	cfg        Config

	ctx        context.Context
	cancel     context.CancelFunc
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	wg         sync.WaitGroup

	mu       sync.Mutex
	mode     Mode
	epoch    uint64 // bumped on privacy switch and Stop; older responses are dropped
	gen      uint64
	stopped  bool
	timers   map[string]*pendingPush
	inflight map[string]bool
	pushed   map[string][32]byte // fingerprint of the last accepted push
}

// NewEngine creates an engine. It does not attach itself to the store.
func NewEngine(d Deps, cfg Config) *Engine {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Bus == nil {
		d.Bus = bus.New()
	}
	if d.Status == nil {
		d.Status = status.NewMachine(d.Bus)
	}
	if d.Notifier == nil {
		d.Notifier = notify.New(d.Bus, d.Clock)
	}
	if d.Sweeper == nil {
		d.Sweeper = outbox.NewSweeper(d.Store, d.Remote, d.Bus, d.Clock, d.Logger, 0)
	}
	if d.Reconciler == nil {
		d.Reconciler = NewReconciler(nil, d.Store, d.Remote, d.Clock, d.Logger)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.RepushDelay <= 0 {
		cfg.RepushDelay = DefaultRepushDelay
	}
	if cfg.PullInterval <= 0 {
		cfg.PullInterval = DefaultPullInterval
	}
	if cfg.PrivacyMode == "" {
		cfg.PrivacyMode = ModeCloud
	}
	if d.Remote == nil {
		cfg.PrivacyMode = ModeLocal
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:      d.Store,
		remote:     d.Remote,
		sweeper:    d.Sweeper,
		reconciler: d.Reconciler,
		bus:        d.Bus,
		clock:      d.Clock,
		status:     d.Status,
		notifier:   d.Notifier,
		logger:     d.Logger,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		mode:       cfg.PrivacyMode,
		timers:     make(map[string]*pendingPush),
		inflight:   make(map[string]bool),
		pushed:     make(map[string][32]byte),
	}
	if e.mode == ModeCloud {
		e.status.Move(status.Idle)
	} else {
		e.sweeper.SetEnabled(false)
	}
	return e
}

// Mode returns the current privacy mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Status returns the sync state.
func (e *Engine) Status() status.State {
	return e.status.Current()
}

// Reconciler returns the engine's reconciler.
func (e *Engine) Reconciler() *Reconciler {
	return e.reconciler
}

// Initialize flushes pending deletes, pulls the full remote state, merges
// it and schedules the pushes the merge asks for.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.mode != ModeCloud || e.stopped {
		e.mu.Unlock()
		return nil
	}
	epoch := e.epoch
	e.mu.Unlock()

	e.status.Move(status.Syncing)
	e.sweeper.Sweep(ctx)
	if err := e.pull(ctx, epoch); err != nil {
		e.fail("Couldn't load chats from the cloud", err)
		return err
	}
	e.status.Move(status.Ready)
	return nil
}

// Start runs the periodic pull loop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.loopCancel = context.WithCancel(ctx)
	e.loopDone = make(chan struct{})
	go e.loop(ctx)
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.loopDone)
	ticker := e.clock.NewTicker(e.cfg.PullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.mu.Lock()
			epoch, active := e.epoch, e.mode == ModeCloud && !e.stopped
			e.mu.Unlock()
			if !active {
				continue
			}
			if err := e.pull(ctx, epoch); err != nil {
				e.logger.Warn("periodic pull failed", zap.Error(err))
				e.status.Move(status.Degraded)
				continue
			}
			e.recovered()
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels pending pushes, stops the pull loop and waits for in-flight
// work to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.epoch++
	for key, p := range e.timers {
		p.timer.Stop()
		delete(e.timers, key)
	}
	e.mu.Unlock()

	if e.loopCancel != nil {
		e.loopCancel()
		<-e.loopDone
	}
	e.cancel()
	e.wg.Wait()
}

// Flush pushes every pending entity now and waits for in-flight pushes and
// deletes. Used by one-shot commands before exiting.
func (e *Engine) Flush() {
	e.mu.Lock()
	keys := make([]string, 0, len(e.timers))
	for key, p := range e.timers {
		p.timer.Stop()
		delete(e.timers, key)
		keys = append(keys, key)
	}
	epoch := e.epoch
	e.mu.Unlock()

	for _, key := range keys {
		e.run(key, epoch)
	}
	e.Wait()
}

// Wait blocks until in-flight pushes and deletes finish. Pending debounced
// pushes are left alone.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// SetPrivacyMode switches between cloud and local. Going local cancels
// pending pushes and forgets sync bookkeeping; responses still in flight
// are ignored when they arrive. Going back to cloud re-initializes.
func (e *Engine) SetPrivacyMode(ctx context.Context, mode Mode) error {
	if mode == ModeCloud && e.remote == nil {
		return ErrNoRemote
	}
	e.mu.Lock()
	if e.mode == mode {
		e.mu.Unlock()
		return nil
	}
	e.mode = mode
	e.epoch++
	if mode == ModeLocal {
		for key, p := range e.timers {
			p.timer.Stop()
			delete(e.timers, key)
		}
		clear(e.pushed)
		e.mu.Unlock()
		e.sweeper.SetEnabled(false)
		e.status.Move(status.Disabled)
		e.logger.Info("privacy mode set to local; cloud sync disabled")
		return nil
	}
	e.mu.Unlock()

	e.sweeper.SetEnabled(true)
	e.status.Move(status.Idle)
	e.logger.Info("privacy mode set to cloud")
	return e.Initialize(ctx)
}

// ScheduleChat debounces a push of the chat.
func (e *Engine) ScheduleChat(id string) { e.schedule(chatKey+id, e.cfg.Debounce) }

// ScheduleFolder debounces a push of the folder.
func (e *Engine) ScheduleFolder(id string) { e.schedule(folderKey+id, e.cfg.Debounce) }

// ChatDeleted cancels any pending push and deletes the chat remotely.
func (e *Engine) ChatDeleted(id string) {
	e.deleted(chatKey+id, func(ctx context.Context) error { return e.sweeper.DeleteChat(ctx, id) })
}

// FolderDeleted cancels any pending push and deletes the folder remotely.
func (e *Engine) FolderDeleted(id string) {
	e.deleted(folderKey+id, func(ctx context.Context) error { return e.sweeper.DeleteFolder(ctx, id) })
}

func (e *Engine) deleted(key string, remove func(context.Context) error) {
	e.mu.Lock()
	if p, ok := e.timers[key]; ok {
		p.timer.Stop()
		delete(e.timers, key)
	}
	delete(e.pushed, key)
	if e.mode != ModeCloud || e.stopped {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		_ = remove(e.ctx)
	}()
}

func (e *Engine) schedule(key string, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != ModeCloud || e.stopped {
		return
	}
	e.scheduleLocked(key, d)
}

// scheduleLocked (re)starts the debounce timer for key.
func (e *Engine) scheduleLocked(key string, d time.Duration) {
	if p, ok := e.timers[key]; ok {
		p.timer.Stop()
	}
	e.gen++
	gen, epoch := e.gen, e.epoch
	e.timers[key] = &pendingPush{
		gen:   gen,
		timer: e.clock.AfterFunc(d, func() { e.fire(key, gen, epoch) }),
	}
}

// reschedule queues another push unless the epoch moved on.
func (e *Engine) reschedule(key string, d time.Duration, epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.epoch || e.mode != ModeCloud || e.stopped {
		return
	}
	e.scheduleLocked(key, d)
}

func (e *Engine) fire(key string, gen, epoch uint64) {
	e.mu.Lock()
	p, ok := e.timers[key]
	if !ok || p.gen != gen || epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	delete(e.timers, key)
	e.mu.Unlock()

	e.run(key, epoch)
}

// run pushes key now. A push already in flight for the same key defers
// this one by another debounce window.
func (e *Engine) run(key string, epoch uint64) {
	e.mu.Lock()
	if e.stopped || epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	if e.inflight[key] {
		e.scheduleLocked(key, e.cfg.Debounce)
		e.mu.Unlock()
		return
	}
	e.inflight[key] = true
	e.wg.Add(1)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, key)
		e.mu.Unlock()
		e.wg.Done()
	}()

	switch {
	case strings.HasPrefix(key, chatKey):
		e.pushChat(strings.TrimPrefix(key, chatKey), epoch)
	case strings.HasPrefix(key, folderKey):
		e.pushFolder(strings.TrimPrefix(key, folderKey), epoch)
	}
}

func (e *Engine) pushChat(id string, epoch uint64) {
	key := chatKey + id
	chat, ok := e.store.ChatForSync(id)
	if !ok || chat.LocalOnly {
		return
	}
	if e.store.IsStreaming(id) {
		e.reschedule(key, e.cfg.Debounce, epoch)
		return
	}

	fp, err := fingerprintChat(chat)
	if err != nil {
		e.logger.Error("fingerprint chat", zap.String("chat_id", id), zap.Error(err))
	} else if e.unchanged(key, fp) {
		e.logger.Debug("chat unchanged since last push", zap.String("chat_id", id))
		return
	}

	pushed, err := e.remote.PushChat(e.ctx, chat)
	if !e.current(epoch) {
		e.logger.Debug("dropping push response from an older sync epoch", zap.String("chat_id", id))
		return
	}
	if err != nil {
		e.handlePushError(chat.ID, chat.Title, err)
		return
	}
	if pushed == nil {
		pushed = chat
	}

	switch outcome := e.store.ApplyChatPush(chat.UpdatedAt, pushed); outcome {
	case chatstore.PushApplied:
		e.remember(key, fp)
		e.recovered()
		e.publish(bus.SyncChatPushed, PushResult{ID: id, Version: pushed.Version})
	case chatstore.PushStale:
		e.logger.Debug("chat changed while pushing, pushing again", zap.String("chat_id", id))
		e.reschedule(key, e.cfg.Debounce, epoch)
	}
}

func (e *Engine) pushFolder(id string, epoch uint64) {
	key := folderKey + id
	folder, ok := e.store.FolderForSync(id)
	if !ok {
		return
	}
	fp, err := fingerprintFolder(folder)
	if err != nil {
		e.logger.Error("fingerprint folder", zap.String("folder_id", id), zap.Error(err))
	} else if e.unchanged(key, fp) {
		return
	}

	pushed, err := e.remote.PushFolder(e.ctx, folder)
	if !e.current(epoch) {
		return
	}
	if err != nil {
		e.handleFolderError(folder, err)
		return
	}
	if pushed == nil {
		pushed = folder
	}

	switch e.store.ApplyFolderPush(folder.UpdatedAt, pushed) {
	case chatstore.PushApplied:
		e.remember(key, fp)
		e.recovered()
		e.publish(bus.SyncFolderPushed, PushResult{ID: id, Version: pushed.Version})
	case chatstore.PushStale:
		e.reschedule(key, e.cfg.Debounce, epoch)
	}
}

func (e *Engine) handlePushError(chatID, title string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	var tooLarge *cloud.TooLargeError
	if !errors.As(err, &tooLarge) {
		e.fail("Couldn't sync chat", err)
		return
	}

	if t, ok := e.store.MarkChatLocalOnly(chatID); ok {
		title = t
	}
	e.logger.Warn("chat too large to sync, keeping it local",
		zap.String("chat_id", chatID), zap.Int64("size", tooLarge.Size))

	var action *notify.Action
	if e.cfg.OnExport != nil {
		export := e.cfg.OnExport
		action = &notify.Action{Label: "Export", Callback: func() { export(chatID) }}
	}
	e.notifier.Warning("Chat too large to sync",
		fmt.Sprintf("%q exceeds the cloud size limit and will only be kept on this device.", title),
		action)
}

func (e *Engine) handleFolderError(folder *model.Folder, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	e.fail(fmt.Sprintf("Couldn't sync folder %q", folder.Name), err)
}

// fail reports a transient failure. Local state is left alone; the next
// mutation or pull retries.
func (e *Engine) fail(title string, err error) {
	e.logger.Warn("sync failed", zap.String("what", title), zap.Error(err))
	e.notifier.Error(title, err.Error())
	e.status.Move(status.Degraded)
}

func (e *Engine) recovered() {
	if e.status.Current() == status.Degraded {
		e.status.Move(status.Ready)
	}
}

// pull fetches and merges the remote snapshot. A snapshot that arrives
// after a privacy switch is dropped.
func (e *Engine) pull(ctx context.Context, epoch uint64) error {
	snap, err := e.reconciler.Fetch(ctx)
	if err != nil {
		return err
	}
	if !e.current(epoch) {
		return nil
	}
	report := e.reconciler.Merge(snap)

	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.epoch || e.mode != ModeCloud || e.stopped {
		return nil
	}
	// The remote no longer holds what we last pushed for these, so the
	// unchanged check must not skip them.
	repush := func(key string, d time.Duration) {
		delete(e.pushed, key)
		e.scheduleLocked(key, d)
	}
	for _, id := range report.RepushChats {
		repush(chatKey+id, e.cfg.RepushDelay)
	}
	for _, id := range report.PushChats {
		repush(chatKey+id, e.cfg.Debounce)
	}
	for _, id := range report.RepushFolders {
		repush(folderKey+id, e.cfg.RepushDelay)
	}
	for _, id := range report.PushFolders {
		repush(folderKey+id, e.cfg.Debounce)
	}
	return nil
}

func (e *Engine) current(epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return epoch == e.epoch && e.mode == ModeCloud
}

func (e *Engine) unchanged(key string, fp [32]byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev, ok := e.pushed[key]
	return ok && prev == fp
}

func (e *Engine) remember(key string, fp [32]byte) {
	e.mu.Lock()
	e.pushed[key] = fp
	e.mu.Unlock()
}

func (e *Engine) publish(kind string, payload any) {
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: e.clock.Now(), Payload: payload})
}

// fingerprintChat hashes the pushed content of a chat. Server-assigned and
// local bookkeeping fields are excluded.
func fingerprintChat(c *model.Chat) ([32]byte, error) {
	cp := *c
	cp.Version = 0
	cp.LocalOnly = false
	data, err := codec.Marshal(&cp)
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(data), nil
}

func fingerprintFolder(f *model.Folder) ([32]byte, error) {
	cp := *f
	cp.Version = 0
	data, err := codec.Marshal(&cp)
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(data), nil
}
