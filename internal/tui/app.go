// Package tui is the interactive terminal front end of a profile. It reads
// and edits the chat store directly and shows sync status and toasts in
// the status bar.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatsync/internal/app"
	"github.com/matheus3301/chatsync/internal/clock"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/tui/keys"
	tuimodel "github.com/matheus3301/chatsync/internal/tui/model"
	"github.com/matheus3301/chatsync/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	pageChats = "chats"
	pageChat  = "chat"
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	core      *app.App
	vm        *tuimodel.ViewModel
	registry  *keys.Registry
	statusBar *views.StatusBar
	chatList  *views.ChatList
	msgView   *views.MessageView
	composer  *views.Composer
	cmdLine   *tview.InputField
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI over an opened profile.
func NewApp(core *app.App) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		core:      core,
		vm:        tuimodel.NewViewModel(core.Store, core.Bus, clock.Real(), core.Status.Current()),
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(),
		chatList:  views.NewChatList(),
		msgView:   views.NewMessageView(),
		composer:  views.NewComposer(),
		cmdLine:   tview.NewInputField().SetLabel(":"),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetProfile(core.Profile)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Name: "quit", Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.Stop() },
	})
	a.registry.AddGlobal(&keys.Action{
		Name: "command", Rune: ':', Key: tcell.KeyRune,
		Description: "::cmd", Visible: true,
		Handler: func() { a.showCommandLine() },
	})
	a.registry.AddGlobal(&keys.Action{
		Name: "toast-action", Rune: 'x', Key: tcell.KeyRune,
		Description: "x:action",
		Handler: func() {
			if action := a.vm.Flash.TakeAction(); action != nil && action.Callback != nil {
				action.Callback()
			}
		},
	})

	a.registry.AddPage(pageChats, &keys.Action{
		Name: "new", Rune: 'n', Key: tcell.KeyRune,
		Description: "n:new", Visible: true,
		Handler: func() { a.run(Command{Name: "new"}) },
	})
	a.registry.AddPage(pageChats, &keys.Action{
		Name: "star", Rune: 's', Key: tcell.KeyRune,
		Description: "s:star", Visible: true,
		Handler: func() {
			if id := a.chatList.SelectedChat(); id != "" {
				if _, err := a.core.Store.ToggleStar(id); err != nil {
					a.flashError("Star failed", err)
				}
			}
		},
	})
	a.registry.AddPage(pageChats, &keys.Action{
		Name: "delete", Rune: 'd', Key: tcell.KeyRune,
		Description: "d:delete", Visible: true,
		Handler: func() {
			if id := a.chatList.SelectedChat(); id != "" {
				if err := a.core.Store.DeleteChat(id); err != nil {
					a.flashError("Delete failed", err)
				}
			}
		},
	})
	a.registry.AddPage(pageChats, &keys.Action{
		Name: "export", Rune: 'e', Key: tcell.KeyRune,
		Description: "e:export", Visible: true,
		Handler: func() { a.run(Command{Name: "export"}) },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Name: "compose", Rune: 'i', Key: tcell.KeyRune,
		Description: "i:write", Visible: true,
		Handler: func() { a.app.SetFocus(a.composer.InputField) },
	})
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(row, col int) {
		if id := a.chatList.SelectedChat(); id != "" {
			a.openChat(id)
		}
	})

	a.composer.SetOnSend(func(text string) {
		chatID := a.msgView.ChatID()
		if chatID == "" {
			return
		}
		if err := a.core.Store.AddMessage(chatID, model.Message{Role: model.RoleUser, Content: text}); err != nil {
			a.flashError("Send failed", err)
		}
	})

	a.cmdLine.SetDoneFunc(func(key tcell.Key) {
		text := a.cmdLine.GetText()
		a.cmdLine.SetText("")
		a.hideCommandLine()
		if key == tcell.KeyEnter && text != "" {
			a.run(ParseCommand(text))
		}
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage(pageChats, a.chatList, true, true)
	a.pages.AddPage(pageChat, chatFlex, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape && currentPage == pageChat {
			a.pages.SwitchToPage(pageChats)
			a.app.SetFocus(a.chatList)
			a.refresh()
			return nil
		}

		// Let text input widgets handle all keys normally.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}
		return event
	})
}

func (a *App) showCommandLine() {
	a.pages.AddPage("cmd", tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(a.cmdLine, 1, 0, true), true, true)
	a.app.SetFocus(a.cmdLine)
}

func (a *App) hideCommandLine() {
	a.pages.RemovePage("cmd")
	front, _ := a.pages.GetFrontPage()
	if front == pageChat {
		a.app.SetFocus(a.msgView)
		return
	}
	a.app.SetFocus(a.chatList)
}

func (a *App) run(cmd Command) {
	selected := a.chatList.SelectedChat()
	if front, _ := a.pages.GetFrontPage(); front == pageChat {
		selected = a.msgView.ChatID()
	}
	msg, err := a.exec(cmd, selected)
	if err != nil {
		a.flashError("Command failed", err)
		return
	}
	if msg != "" {
		a.vm.Flash.Set(notify.Toast{Kind: notify.KindSuccess, Title: msg})
	}
	a.refresh()
}

func (a *App) flashError(title string, err error) {
	a.vm.Flash.Set(notify.Toast{Kind: notify.KindError, Title: title, Message: err.Error()})
	a.refresh()
}

func (a *App) openChat(id string) {
	c, ok := a.core.Store.Chat(id)
	if !ok {
		return
	}
	if err := a.core.Store.SelectChat(id); err != nil {
		a.flashError("Open failed", err)
		return
	}
	a.msgView.Show(c)
	a.pages.SwitchToPage(pageChat)
	a.app.SetFocus(a.msgView)
	a.refresh()
}

// refresh redraws every view from the store. Must run on the UI
// goroutine.
func (a *App) refresh() {
	front, _ := a.pages.GetFrontPage()
	a.chatList.Update(a.vm.Rows())
	if id := a.msgView.ChatID(); id != "" && front == pageChat {
		if c, ok := a.core.Store.Chat(id); ok {
			a.msgView.Show(c)
		} else {
			a.pages.SwitchToPage(pageChats)
			a.app.SetFocus(a.chatList)
			front = pageChats
		}
	}
	a.statusBar.SetSync(string(a.core.Engine.Mode()), string(a.vm.SyncStatus()))
	a.statusBar.SetHints(a.registry.Hints(front))
	a.statusBar.SetToast(a.vm.Flash.Get())
}

// Run starts the TUI and blocks until it exits.
func (a *App) Run() error {
	go a.vm.Watch(a.ctx)
	go func() {
		// The ticker clears expired toasts.
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-a.vm.RefreshCh():
				a.app.QueueUpdateDraw(a.refresh)
			case <-ticker.C:
				a.app.QueueUpdateDraw(a.refresh)
			case <-a.ctx.Done():
				return
			}
		}
	}()
	a.refresh()
	return a.app.Run()
}

// Stop shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
