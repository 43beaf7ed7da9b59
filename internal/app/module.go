// Package app wires the chat store, persistence and cloud sync into one fx
// application for a profile.
package app

import (
	"context"
	"fmt"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chatstore"
	"github.com/matheus3301/chatsync/internal/clock"
	"github.com/matheus3301/chatsync/internal/cloud"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/outbox"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	intsync "github.com/matheus3301/chatsync/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile      string
	Config       *config.Config
	ConsoleLevel zapcore.Level
	// Background runs the periodic pull and sweep loops. One-shot commands
	// leave it off.
	Background bool
	// Interactive means a front end shows toasts, so the headless watcher
	// is not started.
	Interactive bool

	// Optional overrides, used by tests.
	Clock  clock.Clock
	Remote intsync.Remote
	Logger *zap.Logger
}

// Module returns the fx module for a profile, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("chatsync",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideClock,
			provideStateMachine,
			provideNotifier,
			provideLock,
			provideStore,
			provideChatStore,
			provideRemote,
			provideSweeper,
			provideReconciler,
			provideEngine,
			newApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger.With(zap.String("profile", p.Profile)), nil
	}
	return logging.New(profile.LogPath(p.Profile), p.Profile, p.ConsoleLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideClock(p Params) clock.Clock {
	if p.Clock != nil {
		return p.Clock
	}
	return clock.Real()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideNotifier(b *bus.Bus, clk clock.Clock) *notify.Notifier {
	return notify.New(b, clk)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Debug("profile lock acquired", zap.String("path", l.Path()))
	return l, nil
}

// provideStore depends on the lock so the database is never opened by two
// processes.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
	db, result, err := store.OpenMigrated(dbPath)
	if err != nil {
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Debug("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Debug("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideChatStore(db *store.DB, b *bus.Bus, clk clock.Clock, logger *zap.Logger) (*chatstore.Store, error) {
	return chatstore.New(db, b, clk, logger.Named("chatstore"))
}

// provideRemote returns nil when no cloud endpoint is configured.
func provideRemote(p Params, logger *zap.Logger) (intsync.Remote, error) {
	if p.Remote != nil {
		return p.Remote, nil
	}
	c := p.Config.Cloud
	if c.BaseURL == "" {
		return nil, nil
	}
	client, err := cloud.New(cloud.Config{
		BaseURL:         c.BaseURL,
		Token:           c.Token,
		Compress:        c.Compress,
		MaxPayloadBytes: c.MaxPayloadBytes,
		Timeout:         c.Timeout.Duration,
	}, logger.Named("cloud"))
	if err != nil {
		return nil, fmt.Errorf("cloud client: %w", err)
	}
	return client, nil
}

func provideSweeper(p Params, s *chatstore.Store, remote intsync.Remote, b *bus.Bus, clk clock.Clock, logger *zap.Logger) *outbox.Sweeper {
	var deleter outbox.Deleter
	if remote != nil {
		deleter = remote
	}
	return outbox.NewSweeper(s, deleter, b, clk, logger.Named("outbox"), p.Config.Sync.SweepInterval.Duration)
}

func provideReconciler(db *store.DB, s *chatstore.Store, remote intsync.Remote, clk clock.Clock, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(db, s, remote, clk, logger.Named("sync"))
}

func provideEngine(p Params, s *chatstore.Store, remote intsync.Remote, sweeper *outbox.Sweeper, rec *intsync.Reconciler,
	b *bus.Bus, clk clock.Clock, m *status.Machine, n *notify.Notifier, logger *zap.Logger) (*intsync.Engine, error) {
	mode := intsync.ModeLocal
	if p.Config.Cloud.PrivacyMode != "" {
		var err error
		if mode, err = intsync.ParseMode(p.Config.Cloud.PrivacyMode); err != nil {
			return nil, err
		}
	}
	if mode == intsync.ModeCloud && remote == nil {
		logger.Warn("privacy mode is cloud but no base_url is configured; staying local")
		mode = intsync.ModeLocal
	}

	exports := profile.ExportDir(p.Profile)
	cfg := intsync.Config{
		Debounce:     p.Config.Sync.Debounce.Duration,
		RepushDelay:  p.Config.Sync.RepushDelay.Duration,
		PullInterval: p.Config.Sync.PullInterval.Duration,
		PrivacyMode:  mode,
		OnExport: func(chatID string) {
			path, err := exportChat(s, exports, chatID)
			if err != nil {
				logger.Error("export failed", zap.String("chat_id", chatID), zap.Error(err))
				n.Error("Export failed", err.Error())
				return
			}
			n.Success("Chat exported", path)
		},
	}
	engine := intsync.NewEngine(intsync.Deps{
		Store:      s,
		Remote:     remote,
		Sweeper:    sweeper,
		Reconciler: rec,
		Bus:        b,
		Clock:      clk,
		Status:     m,
		Notifier:   n,
		Logger:     logger.Named("sync"),
	}, cfg)
	s.AttachSyncer(engine)
	return engine, nil
}

func registerLifecycle(lc fx.Lifecycle, p Params, a *App, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	var cancel context.CancelFunc
	var watching chan struct{}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if a.Engine.Mode() == intsync.ModeCloud {
				if err := a.Engine.Initialize(ctx); err != nil {
					logger.Warn("initial sync failed, continuing offline", zap.Error(err))
				}
			}
			if p.Background {
				var bg context.Context
				bg, cancel = context.WithCancel(context.Background())
				if !p.Interactive {
					watching = make(chan struct{})
					go func() {
						defer close(watching)
						a.watch(bg)
					}()
				}
				a.Engine.Start(bg)
				a.Sweeper.Start(bg)
			}
			logger.Info("profile opened",
				zap.String("privacy_mode", string(a.Engine.Mode())),
				zap.Int("chats", len(a.Store.Chats())))
			return nil
		},
		OnStop: func(context.Context) error {
			a.Engine.Flush()
			a.Engine.Stop()
			if cancel != nil {
				a.Sweeper.Stop()
				cancel()
			}
			if watching != nil {
				<-watching
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("profile closed")
			_ = logger.Sync()
			return nil
		},
	})
}
