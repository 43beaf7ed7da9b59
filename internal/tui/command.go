package tui

import (
	"fmt"
	"strings"

	tuimodel "github.com/matheus3301/chatsync/internal/tui/model"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// exec runs a command against the selected chat and returns a short
// status for the flash line.
func (a *App) exec(cmd Command, selected string) (string, error) {
	s := a.core.Store
	switch cmd.Name {
	case "new":
		id, err := s.CreateChat(cmd.Args, nil, "", "", a.vm.Filter().FolderID)
		if err != nil {
			return "", err
		}
		a.openChat(id)
		return "chat created", nil
	case "rename":
		if selected == "" || cmd.Args == "" {
			return "", fmt.Errorf("usage: :rename <title> with a chat selected")
		}
		return "renamed", s.RenameChat(selected, cmd.Args)
	case "mkdir":
		if cmd.Args == "" {
			return "", fmt.Errorf("usage: :mkdir <name>")
		}
		_, err := s.CreateFolder(cmd.Args)
		return "folder created", err
	case "folder", "mv":
		if selected == "" {
			return "", fmt.Errorf("no chat selected")
		}
		if cmd.Args == "" {
			return "moved out of folder", s.MoveChatToFolder(selected, "")
		}
		f, ok := a.vm.FolderByName(cmd.Args)
		if !ok {
			return "", fmt.Errorf("folder %q not found", cmd.Args)
		}
		return "moved to " + f.Name, s.MoveChatToFolder(selected, f.ID)
	case "filter":
		switch cmd.Args {
		case "", "all":
			a.vm.SetFilter(tuimodel.Filter{})
		case "starred":
			a.vm.SetFilter(tuimodel.Filter{Starred: true})
		default:
			f, ok := a.vm.FolderByName(cmd.Args)
			if !ok {
				return "", fmt.Errorf("folder %q not found", cmd.Args)
			}
			a.vm.SetFilter(tuimodel.Filter{FolderID: f.ID})
		}
		return "", nil
	case "export":
		if selected == "" {
			return "", fmt.Errorf("no chat selected")
		}
		path, err := a.core.ExportChat(selected)
		if err != nil {
			return "", err
		}
		return "exported to " + path, nil
	case "sync":
		a.core.Engine.Flush()
		return "sync flushed", nil
	case "q", "quit":
		a.Stop()
		return "", nil
	}
	return "", fmt.Errorf("unknown command %q", cmd.Name)
}
