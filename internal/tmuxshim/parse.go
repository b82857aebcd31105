// Package tmuxshim implements the tmux-subset CLI parser and
// daemon-backed dispatcher behind `~/.kild/bin/tmux`. It
// has no tmux dependency of its own: every agent-visible tmux command
// becomes a daemon.Client.TmuxOp call against the daemon's per-session
// pane registry.
//
// Instead of calling a real tmux binary, this package *is* what `tmux`
// resolves to once ~/.kild/bin is prepended to PATH
// (internal/spawn.baseEnv).
package tmuxshim

import (
	"fmt"
	"strconv"
)

// Kind discriminates a parsed tmux-subset command.
type Kind string

const (
	KindVersion        Kind = "version"
	KindNewSession     Kind = "new-session"
	KindHasSession     Kind = "has-session"
	KindNewWindow      Kind = "new-window"
	KindListWindows    Kind = "list-windows"
	KindSplitWindow    Kind = "split-window"
	KindListPanes      Kind = "list-panes"
	KindSendKeys       Kind = "send-keys"
	KindSelectPane     Kind = "select-pane"
	KindKillPane       Kind = "kill-pane"
	KindSetOption      Kind = "set-option"
	KindSelectLayout   Kind = "select-layout"
	KindResizePane     Kind = "resize-pane"
	KindBreakPane      Kind = "break-pane"
	KindJoinPane       Kind = "join-pane"
	KindDisplayMessage Kind = "display-message"
	KindCapturePane    Kind = "capture-pane"
	KindUnknown        Kind = "unknown"
)

var aliases = map[string]Kind{
	"new-session": KindNewSession, "new": KindNewSession,
	"has-session": KindHasSession, "has": KindHasSession,
	"new-window": KindNewWindow, "neww": KindNewWindow,
	"list-windows": KindListWindows, "lsw": KindListWindows,
	"split-window": KindSplitWindow, "splitw": KindSplitWindow,
	"list-panes": KindListPanes, "lsp": KindListPanes,
	"send-keys": KindSendKeys, "send": KindSendKeys,
	"select-pane": KindSelectPane, "selectp": KindSelectPane,
	"kill-pane": KindKillPane, "killp": KindKillPane,
	"set-option": KindSetOption, "set": KindSetOption,
	"select-layout": KindSelectLayout, "selectl": KindSelectLayout,
	"resize-pane": KindResizePane, "resizep": KindResizePane,
	"break-pane": KindBreakPane, "breakp": KindBreakPane,
	"join-pane": KindJoinPane, "joinp": KindJoinPane,
	"display-message": KindDisplayMessage, "display": KindDisplayMessage,
	"capture-pane": KindCapturePane, "capturep": KindCapturePane,
}

// TmuxCommand is the tagged union every supported tmux invocation parses
// into. Fields not meaningful for a given Kind are left zero.
type TmuxCommand struct {
	Kind      Kind
	Target    string   // -t value: pane or window id
	Argv      []string // trailing command to spawn (new-session/split-window) or key tokens (send-keys)
	Format    string    // -F value, or the trailing message for display-message
	Scope     string    // set-option: "pane" | "window" | "session"
	Key       string    // set-option key
	Value     string    // set-option value, select-pane -T title
	StartLine int       // capture-pane -S
	Rows      int       // -y
	Cols      int       // -x
	Detached  bool      // new-session -d
	Raw       []string  // original argv, for logging unknown commands
}

// Parse turns a tmux-subset argv (not including the program name) into
// a TmuxCommand. Unknown commands return Kind=KindUnknown rather than
// an error: the caller logs and exits 0 so an agent's workflow never
// crashes on an unsupported tmux invocation.
func Parse(args []string) (TmuxCommand, error) {
	args = stripGlobalSocketFlag(args)
	if len(args) == 0 {
		return TmuxCommand{}, fmt.Errorf("tmux: no command given")
	}

	if args[0] == "-V" {
		return TmuxCommand{Kind: KindVersion, Raw: args}, nil
	}

	kind, ok := aliases[args[0]]
	if !ok {
		return TmuxCommand{Kind: KindUnknown, Raw: args}, nil
	}
	rest := args[1:]

	switch kind {
	case KindNewSession, KindSplitWindow, KindNewWindow:
		return parseSpawnLike(kind, rest), nil
	case KindSendKeys:
		return parseSendKeys(rest), nil
	case KindSetOption:
		return parseSetOption(rest), nil
	case KindDisplayMessage:
		return parseDisplayMessage(rest), nil
	case KindCapturePane:
		return parseCapturePane(rest), nil
	case KindResizePane:
		return parseResizePane(rest), nil
	case KindListPanes, KindListWindows:
		return parseListLike(kind, rest), nil
	default:
		return parseTargetOnly(kind, rest), nil
	}
}

// stripGlobalSocketFlag removes `-L <socket>` wherever it appears in
// args: the shim is always invoked against its own implicit socket, so
// -L is accepted for compatibility and discarded rather than dispatched.
func stripGlobalSocketFlag(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "-L" {
			i++ // skip the socket name too
			continue
		}
		out = append(out, args[i])
	}
	return out
}

func parseSpawnLike(kind Kind, args []string) TmuxCommand {
	cmd := TmuxCommand{Kind: kind, Raw: args}
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-d":
			cmd.Detached = true
			i++
		case "-t", "-s":
			i++
			if i < len(args) {
				cmd.Target = args[i]
				i++
			}
		case "-x":
			i++
			if i < len(args) {
				cmd.Cols = atoiOr(args[i], 0)
				i++
			}
		case "-y":
			i++
			if i < len(args) {
				cmd.Rows = atoiOr(args[i], 0)
				i++
			}
		case "--":
			i++
			cmd.Argv = append(cmd.Argv, args[i:]...)
			i = len(args)
		case "-n", "-c": // window name / start dir: accepted, not modeled
			i += 2
		default:
			// No "--" separator: treat the remainder as the spawned
			// command, matching tmux's own permissive argv handling.
			cmd.Argv = append(cmd.Argv, args[i:]...)
			i = len(args)
		}
	}
	return cmd
}

func parseSendKeys(args []string) TmuxCommand {
	cmd := TmuxCommand{Kind: KindSendKeys, Raw: args}
	i := 0
	for i < len(args) {
		if args[i] == "-t" && i+1 < len(args) {
			cmd.Target = args[i+1]
			i += 2
			continue
		}
		if args[i] == "-l" { // -l is accepted and dropped; the daemon still translates key names in the tokens
			i++
			continue
		}
		cmd.Argv = append(cmd.Argv, args[i])
		i++
	}
	return cmd
}

func parseSetOption(args []string) TmuxCommand {
	cmd := TmuxCommand{Kind: KindSetOption, Scope: "session", Raw: args}
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-p":
			cmd.Scope = "pane"
			i++
		case "-w":
			cmd.Scope = "window"
			i++
		case "-g":
			cmd.Scope = "session"
			i++
		case "-t":
			if i+1 < len(args) {
				cmd.Target = args[i+1]
			}
			i += 2
		default:
			if cmd.Key == "" {
				cmd.Key = args[i]
			} else if cmd.Value == "" {
				cmd.Value = args[i]
			} else {
				cmd.Value += " " + args[i]
			}
			i++
		}
	}
	return cmd
}

func parseDisplayMessage(args []string) TmuxCommand {
	cmd := TmuxCommand{Kind: KindDisplayMessage, Raw: args}
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-t":
			if i+1 < len(args) {
				cmd.Target = args[i+1]
			}
			i += 2
		case "-p":
			i++
		default:
			cmd.Format = args[i]
			i++
		}
	}
	return cmd
}

func parseCapturePane(args []string) TmuxCommand {
	cmd := TmuxCommand{Kind: KindCapturePane, Raw: args}
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-t":
			if i+1 < len(args) {
				cmd.Target = args[i+1]
			}
			i += 2
		case "-S":
			if i+1 < len(args) {
				cmd.StartLine = atoiOr(args[i+1], 0)
			}
			i += 2
		case "-p":
			i++
		default:
			i++
		}
	}
	return cmd
}

func parseResizePane(args []string) TmuxCommand {
	cmd := TmuxCommand{Kind: KindResizePane, Raw: args}
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-t":
			if i+1 < len(args) {
				cmd.Target = args[i+1]
			}
			i += 2
		case "-x":
			if i+1 < len(args) {
				cmd.Cols = atoiOr(args[i+1], 0)
			}
			i += 2
		case "-y":
			if i+1 < len(args) {
				cmd.Rows = atoiOr(args[i+1], 0)
			}
			i += 2
		default:
			i++
		}
	}
	return cmd
}

func parseListLike(kind Kind, args []string) TmuxCommand {
	cmd := TmuxCommand{Kind: kind, Raw: args}
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-F":
			if i+1 < len(args) {
				cmd.Format = args[i+1]
			}
			i += 2
		case "-t":
			if i+1 < len(args) {
				cmd.Target = args[i+1]
			}
			i += 2
		default:
			i++
		}
	}
	return cmd
}

func parseTargetOnly(kind Kind, args []string) TmuxCommand {
	cmd := TmuxCommand{Kind: kind, Raw: args}
	i := 0
	for i < len(args) {
		if args[i] == "-t" && i+1 < len(args) {
			cmd.Target = args[i+1]
			i += 2
			continue
		}
		if args[i] == "-T" && i+1 < len(args) { // select-pane title
			cmd.Value = args[i+1]
			i += 2
			continue
		}
		if args[i] == "-s" && i+1 < len(args) { // join-pane source
			cmd.Argv = append(cmd.Argv, args[i+1])
			i += 2
			continue
		}
		i++
	}
	return cmd
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
