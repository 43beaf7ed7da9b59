package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chatstore"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/outbox"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/status"
	intsync "github.com/matheus3301/chatsync/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// App is the opened profile handed to commands.
type App struct {
	Profile  string
	Store    *chatstore.Store
	Engine   *intsync.Engine
	Sweeper  *outbox.Sweeper
	Status   *status.Machine
	Notifier *notify.Notifier
	Bus      *bus.Bus
	Logger   *zap.Logger
}

type appIn struct {
	fx.In

	Params   Params
	Store    *chatstore.Store
	Engine   *intsync.Engine
	Sweeper  *outbox.Sweeper
	Status   *status.Machine
	Notifier *notify.Notifier
	Bus      *bus.Bus
	Logger   *zap.Logger
}

func newApp(in appIn) *App {
	return &App{
		Profile:  in.Params.Profile,
		Store:    in.Store,
		Engine:   in.Engine,
		Sweeper:  in.Sweeper,
		Status:   in.Status,
		Notifier: in.Notifier,
		Bus:      in.Bus,
		Logger:   in.Logger,
	}
}

// ExportChat writes the chat as JSON into the profile's export directory
// and returns the file path.
func (a *App) ExportChat(chatID string) (string, error) {
	return exportChat(a.Store, profile.ExportDir(a.Profile), chatID)
}

func exportChat(s *chatstore.Store, dir, chatID string) (string, error) {
	data, err := s.ExportChat(chatID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	path := filepath.Join(dir, chatID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// watch logs toasts and sync status changes until ctx is done. It is the
// notification sink when running headless.
func (a *App) watch(ctx context.Context) {
	toasts, unsubToasts := a.Bus.Subscribe(bus.NotifyToast, 32)
	defer unsubToasts()
	changes, unsubChanges := a.Bus.Subscribe(bus.SyncStatusChanged, 32)
	defer unsubChanges()

	for {
		select {
		case evt := <-toasts:
			t, ok := evt.Payload.(notify.Toast)
			if !ok {
				continue
			}
			fields := []zap.Field{zap.String("kind", string(t.Kind)), zap.String("message", t.Message)}
			if t.Kind == notify.KindSuccess {
				a.Logger.Info(t.Title, fields...)
				continue
			}
			a.Logger.Warn(t.Title, fields...)
			// Headless there is nobody to click the action.
			if t.Action != nil && t.Action.Label == "Export" {
				t.Action.Callback()
			}
		case evt := <-changes:
			if c, ok := evt.Payload.(status.StatusChange); ok {
				a.Logger.Info("sync status changed", zap.String("from", string(c.From)), zap.String("to", string(c.To)))
			}
		case <-ctx.Done():
			return
		}
	}
}
