package tmuxshim

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kild-dev/kild/internal/daemon"
)

// shimVersion is printed for `tmux -V`. Agents that gate tmux-driving
// behavior on a minimum version get a plausible, current-looking tmux
// version string rather than something that reads as obviously fake.
const shimVersion = "tmux 3.4"

// Execute dispatches a parsed TmuxCommand to the daemon and returns the
// text an agent expects on stdout plus a process exit code. Unknown
// commands and dispatch errors are logged and exit 0 rather than
// failing the caller's shell pipeline.
func Execute(cmd TmuxCommand, client *daemon.Client, shimSession string, env map[string]string, rows, cols int, log *slog.Logger) (stdout string, exitCode int) {
	switch cmd.Kind {
	case KindVersion:
		return shimVersion, 0
	case KindUnknown:
		log.Warn("tmux shim: unsupported command", "argv", cmd.Raw)
		return "", 0
	}

	op := daemon.Command{TmuxOp: string(cmd.Kind)}
	op.PaneID = cmd.Target
	op.Format = cmd.Format
	op.StartLine = cmd.StartLine
	op.Rows, op.Cols = cmd.Rows, cmd.Cols

	switch cmd.Kind {
	case KindNewSession, KindSplitWindow, KindNewWindow:
		op.Rows, op.Cols = rows, cols
		if len(cmd.Argv) > 0 {
			op.Argv = cmd.Argv
			op.Env = env
		}
	case KindSendKeys:
		op.Argv = cmd.Argv
	case KindSelectPane:
		op.Value = cmd.Value
	case KindSetOption:
		op.Scope, op.Key, op.Value = cmd.Scope, cmd.Key, cmd.Value
	case KindBreakPane, KindJoinPane:
		if len(cmd.Argv) > 0 {
			op.WindowID = cmd.Argv[0]
		}
	}

	evt, err := client.TmuxOp(shimSession, op)
	if err != nil {
		log.Warn("tmux shim: daemon op failed", "op", cmd.Kind, "error", err)
		return "", 0
	}

	if cmd.Kind == KindHasSession && !evt.Exists {
		return "", 1
	}
	return formatReply(cmd.Kind, evt), 0
}

func formatReply(kind Kind, evt *daemon.Event) string {
	switch kind {
	case KindListPanes, KindListWindows:
		lines := make([]string, 0, len(evt.Panes))
		for _, p := range evt.Panes {
			lines = append(lines, fmt.Sprintf("%s %s", p.PaneID, p.WindowID))
		}
		return strings.Join(lines, "\n")
	case KindNewSession, KindSplitWindow, KindNewWindow:
		return evt.Text
	case KindDisplayMessage, KindCapturePane:
		return evt.Text
	default:
		return ""
	}
}
