package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/matheus3301/chatsync/internal/app"
	"github.com/matheus3301/chatsync/internal/chatstore"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/profile"
	intsync "github.com/matheus3301/chatsync/internal/sync"
	"github.com/matheus3301/chatsync/internal/tui"
	flag "github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap/zapcore"
)

type options struct {
	json    bool
	folder  string
	starred bool
	system  string
}

func main() {
	profileFlag := flag.StringP("profile", "p", "", "profile name (overrides config default)")
	verbose := flag.BoolP("verbose", "v", false, "log to stderr")
	var opts options
	flag.BoolVar(&opts.json, "json", false, "output in JSON format")
	flag.StringVar(&opts.folder, "folder", "", "folder id for list and new")
	flag.BoolVar(&opts.starred, "starred", false, "list starred chats only")
	flag.StringVar(&opts.system, "system", "", "system instructions for new")
	flag.Usage = printUsage
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fatal(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		fatal(fmt.Errorf("load config: %w", err))
	}
	level := zapcore.ErrorLevel
	if *verbose {
		level = zapcore.InfoLevel
	}
	params := app.Params{Profile: name, Config: cfg, ConsoleLevel: level}

	switch args[0] {
	case "run":
		params.Background = true
		params.ConsoleLevel = zapcore.InfoLevel
		fx.New(app.Module(params), fx.NopLogger).Run()
		return
	case "privacy":
		cmdPrivacy(cfg, args[1:])
		return
	case "tui":
		params.Background = true
		params.Interactive = true
		params.ConsoleLevel = zapcore.FatalLevel
		withApp(params, func(a *app.App) error {
			return tui.NewApp(a).Run()
		})
		return
	}

	withApp(params, func(a *app.App) error {
		switch args[0] {
		case "sync":
			return cmdSync(a, opts)
		case "status":
			return cmdStatus(a, opts)
		case "list":
			return cmdList(a, opts)
		case "show":
			return cmdShow(a, args[1:], opts)
		case "new":
			return cmdNew(a, args[1:], opts)
		case "say":
			return cmdSay(a, args[1:])
		case "rename":
			return cmdRename(a, args[1:])
		case "star":
			return cmdStar(a, args[1:])
		case "move":
			return cmdMove(a, args[1:])
		case "delete":
			return cmdDelete(a, args[1:])
		case "folders":
			return cmdFolders(a, args[1:], opts)
		case "export":
			return cmdExport(a, args[1:])
		}
		printUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	})
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatsync [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  tui                        Open the interactive terminal UI")
	fmt.Fprintln(os.Stderr, "  run                        Keep the profile open and sync in the background")
	fmt.Fprintln(os.Stderr, "  sync                       Pull, merge and push once")
	fmt.Fprintln(os.Stderr, "  status                     Show sync status")
	fmt.Fprintln(os.Stderr, "  list [--folder <id>]       List chats")
	fmt.Fprintln(os.Stderr, "  show <chat>                Print a chat")
	fmt.Fprintln(os.Stderr, "  new <title> [--folder id]  Create a chat")
	fmt.Fprintln(os.Stderr, "  say <chat> <text>          Add a user message")
	fmt.Fprintln(os.Stderr, "  rename <chat> <title>      Rename a chat")
	fmt.Fprintln(os.Stderr, "  star <chat>                Toggle the star of a chat")
	fmt.Fprintln(os.Stderr, "  move <chat> [folder]       Move a chat to a folder, or out of it")
	fmt.Fprintln(os.Stderr, "  delete <chat>              Delete a chat")
	fmt.Fprintln(os.Stderr, "  folders [new <name>|rename <id> <name>|rm <id>]")
	fmt.Fprintln(os.Stderr, "  export <chat>              Write a chat to the exports directory")
	fmt.Fprintln(os.Stderr, "  privacy <cloud|local>      Set the privacy mode")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
}

// withApp opens the profile, runs fn and closes it again. Closing flushes
// pending pushes.
func withApp(p app.Params, fn func(a *app.App) error) {
	var a *app.App
	fxApp := fx.New(app.Module(p), fx.Populate(&a), fx.NopLogger)
	if err := fxApp.Err(); err != nil {
		var held *lock.LockHeldError
		if errors.As(err, &held) {
			fatal(fmt.Errorf("profile %q is open in another process (PID %d)", p.Profile, held.PID))
		}
		fatal(err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		fatal(err)
	}
	runErr := fn(a)
	stopCtx, cancelStop := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		fatal(runErr)
	}
}

func cmdSync(a *app.App, opts options) error {
	if a.Engine.Mode() != intsync.ModeCloud {
		return errors.New("privacy mode is local; run `chatsync privacy cloud` first")
	}
	if err := a.Engine.Initialize(context.Background()); err != nil {
		return err
	}
	return cmdStatus(a, opts)
}

type statusView struct {
	Profile        string `json:"profile"`
	PrivacyMode    string `json:"privacyMode"`
	Status         string `json:"status"`
	Chats          int    `json:"chats"`
	Folders        int    `json:"folders"`
	PendingDeletes int    `json:"pendingDeletes"`
	LastPulledAt   string `json:"lastPulledAt,omitempty"`
}

func cmdStatus(a *app.App, opts options) error {
	v := statusView{
		Profile:        a.Profile,
		PrivacyMode:    string(a.Engine.Mode()),
		Status:         string(a.Engine.Status()),
		Chats:          len(a.Store.Chats()),
		Folders:        len(a.Store.Folders()),
		PendingDeletes: len(a.Store.DeletedChatIDs()) + len(a.Store.DeletedFolderIDs()),
	}
	if at, ok := a.Engine.Reconciler().LastPulledAt(); ok {
		v.LastPulledAt = at.Format(time.RFC3339)
	}
	if opts.json {
		outputJSON(v)
		return nil
	}
	fmt.Printf("Profile:         %s\n", v.Profile)
	fmt.Printf("Privacy mode:    %s\n", v.PrivacyMode)
	fmt.Printf("Sync status:     %s\n", v.Status)
	fmt.Printf("Chats:           %d\n", v.Chats)
	fmt.Printf("Folders:         %d\n", v.Folders)
	fmt.Printf("Pending deletes: %d\n", v.PendingDeletes)
	if v.LastPulledAt != "" {
		fmt.Printf("Last pulled:     %s\n", v.LastPulledAt)
	}
	return nil
}

func cmdList(a *app.App, opts options) error {
	var chats []*model.Chat
	switch {
	case opts.starred:
		chats = a.Store.StarredChats()
	case opts.folder != "":
		chats = a.Store.ChatsInFolder(opts.folder)
	default:
		chats = a.Store.Chats()
	}
	if opts.json {
		outputJSON(chats)
		return nil
	}
	for _, c := range chats {
		star := " "
		if c.IsStarred {
			star = "*"
		}
		fmt.Printf("%s %s  %-40s  %3d msgs  %s\n", star, c.ID, c.Title, len(c.Messages),
			time.UnixMilli(c.UpdatedAt).Format(time.DateTime))
	}
	return nil
}

func cmdShow(a *app.App, args []string, opts options) error {
	if len(args) != 1 {
		return errors.New("usage: chatsync show <chat>")
	}
	c, ok := a.Store.Chat(args[0])
	if !ok {
		return fmt.Errorf("chat %s: %w", args[0], chatstore.ErrChatNotFound)
	}
	if opts.json {
		outputJSON(c)
		return nil
	}
	fmt.Printf("# %s\n\n", c.Title)
	for _, m := range c.Messages {
		if m.IsHidden {
			continue
		}
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
		if m.Error != "" {
			fmt.Printf("  (error: %s)\n", m.Error)
		}
	}
	return nil
}

func cmdNew(a *app.App, args []string, opts options) error {
	id, err := a.Store.CreateChat(strings.Join(args, " "), nil, opts.system, "", opts.folder)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func cmdSay(a *app.App, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: chatsync say <chat> <text>")
	}
	return a.Store.AddMessage(args[0], model.Message{Role: model.RoleUser, Content: strings.Join(args[1:], " ")})
}

func cmdRename(a *app.App, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: chatsync rename <chat> <title>")
	}
	return a.Store.RenameChat(args[0], strings.Join(args[1:], " "))
}

func cmdStar(a *app.App, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: chatsync star <chat>")
	}
	starred, err := a.Store.ToggleStar(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("starred: %v\n", starred)
	return nil
}

func cmdMove(a *app.App, args []string) error {
	switch len(args) {
	case 1:
		return a.Store.MoveChatToFolder(args[0], "")
	case 2:
		return a.Store.MoveChatToFolder(args[0], args[1])
	}
	return errors.New("usage: chatsync move <chat> [folder]")
}

func cmdDelete(a *app.App, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: chatsync delete <chat>")
	}
	return a.Store.DeleteChat(args[0])
}

type folderView struct {
	*model.Folder
	Chats int `json:"chatCount"`
}

func cmdFolders(a *app.App, args []string, opts options) error {
	if len(args) == 0 {
		counts := a.Store.FolderCounts()
		folders := a.Store.Folders()
		views := make([]folderView, len(folders))
		for i, f := range folders {
			views[i] = folderView{Folder: f, Chats: counts[f.ID]}
		}
		if opts.json {
			outputJSON(views)
			return nil
		}
		for _, v := range views {
			fmt.Printf("%s  %-30s  %d chats\n", v.ID, v.Name, v.Chats)
		}
		fmt.Printf("(uncategorized: %d chats)\n", counts[""])
		return nil
	}

	switch args[0] {
	case "new":
		id, err := a.Store.CreateFolder(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	case "rename":
		if len(args) < 3 {
			return errors.New("usage: chatsync folders rename <id> <name>")
		}
		return a.Store.RenameFolder(args[1], strings.Join(args[2:], " "))
	case "rm":
		if len(args) != 2 {
			return errors.New("usage: chatsync folders rm <id>")
		}
		return a.Store.DeleteFolder(args[1])
	}
	return fmt.Errorf("unknown folders command: %s", args[0])
}

func cmdExport(a *app.App, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: chatsync export <chat>")
	}
	path, err := a.ExportChat(args[0])
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// cmdPrivacy edits the config file; the profile does not need to be open.
func cmdPrivacy(cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal(errors.New("usage: chatsync privacy <cloud|local>"))
	}
	mode, err := intsync.ParseMode(args[0])
	if err != nil {
		fatal(err)
	}
	cfg.Cloud.PrivacyMode = string(mode)
	if err := config.Save(profile.ConfigPath(), cfg); err != nil {
		fatal(err)
	}
	fmt.Printf("privacy mode set to %s\n", mode)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
