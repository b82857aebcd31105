// Package spawn resolves an agent's command, flags, and environment into
// the (command, argv, env, use_login_shell) tuple the lifecycle manager
// hands to either a terminal launcher or the PTY daemon. The request is
// built once and launched either way.
package spawn

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kild-dev/kild/internal/agent"
	"github.com/kild-dev/kild/internal/kilderr"
	"github.com/kild-dev/kild/internal/kildpaths"
)

// Request describes what the caller wants spawned.
type Request struct {
	SessionID    string
	Branch       string
	Agent        agent.Name
	AgentCommand string // resolved command override from config, or "" to use the descriptor default
	WorktreePath string

	Resume       bool
	ResumeToken  string // current agent_session_id, required if Resume is true
	NewToken     string // freshly generated token used on non-resume opens of a resume-capable agent
	Yolo         bool
	TaskListID   string
	ExtraArgs    []string // caller-supplied passthrough flags (create --flags), appended last
}

// Result is what the lifecycle manager feeds into either a terminal
// launcher or daemon.CreateSession.
type Result struct {
	Shell         string
	Command       string   // full command string: "{shell} -lc 'exec {command}'" or bare shell
	Argv          []string // argv form for daemon use: []string{shell, "-lc", ...}
	Env           map[string]string
	UseLoginShell bool

	// RotatedToken is set when a fresh resume-capable open rotated the
	// session's resume token; "" otherwise. The caller persists this into
	// Session.AgentSessionID via Session.RotateAgentSessionID.
	RotatedToken string
}

// Build resolves a Request into a Result. Its only disk access is writing
// the per-session ZDOTDIR wrapper files (see ensureZdotdirWrapper), which
// is best-effort and never fails the whole build.
func Build(req Request, paths *kildpaths.Paths) (*Result, error) {
	shell := loginShell()

	if req.Agent == agent.Shell {
		return &Result{
			Shell:         shell,
			Command:       shell,
			Argv:          []string{shell},
			Env:           baseEnv(paths, req.SessionID),
			UseLoginShell: true,
		}, nil
	}

	desc, ok := agent.Lookup(req.Agent)
	if !ok {
		return nil, &kilderr.ConfigError{Message: fmt.Sprintf("unknown agent %q", req.Agent)}
	}

	command := desc.Command
	if req.AgentCommand != "" {
		command = req.AgentCommand
	}
	if command == "" {
		return nil, &kilderr.DaemonError{Message: "empty agent command"}
	}

	args, rotated, err := resolveFlags(desc, req)
	if err != nil {
		return nil, err
	}
	args = appendExtraArgs(args, req.ExtraArgs)
	full := command
	for _, a := range args {
		full += " " + a
	}

	wrapped := fmt.Sprintf("%s -lc 'exec %s'", shell, full)

	env := baseEnv(paths, req.SessionID)
	if desc.TaskListEnvVar != "" && req.TaskListID != "" {
		env[desc.TaskListEnvVar] = req.TaskListID
	}
	if desc.BranchEnvVar != "" {
		env[desc.BranchEnvVar] = req.Branch
	}

	return &Result{
		Shell:         shell,
		Command:       wrapped,
		Argv:          []string{shell, "-lc", fmt.Sprintf("exec %s", full)},
		Env:           env,
		UseLoginShell: true,
		RotatedToken:  rotated,
	}, nil
}

// resolveFlags implements the yolo-before-resume ordering and the three
// resume branches: explicit resume with a stored token, fresh open of a
// resume-capable agent (rotate), and agents with no resume support.
func resolveFlags(desc agent.Descriptor, req Request) (args []string, rotatedToken string, err error) {
	if req.Yolo && desc.DangerousFlag != "" {
		args = append(args, desc.DangerousFlag)
	}

	if !desc.SupportsResume {
		return args, "", nil
	}

	if req.Resume {
		if req.ResumeToken == "" {
			return nil, "", &kilderr.ResumeNoSessionId{Branch: req.Branch}
		}
		args = append(args, desc.Resume.ResumeArgs...)
		args = append(args, req.ResumeToken)
		return args, "", nil
	}

	// Fresh open of a resume-capable agent: generate (the caller supplies
	// via req.NewToken) and rotate.
	args = append(args, desc.Resume.NewSessionArgs...)
	if req.NewToken != "" {
		args = append(args, req.NewToken)
	}
	return args, req.NewToken, nil
}

// appendExtraArgs tacks caller-supplied passthrough flags onto the end of
// the command line, after yolo and resume flags.
func appendExtraArgs(args, extra []string) []string {
	return append(args, extra...)
}

// baseEnv builds the agent-independent environment: inherited vars,
// ~/.kild/bin PATH prepend, ZDOTDIR synthesis, TMUX/TMUX_PANE and
// KILD_SHIM_SESSION. Per-agent vars are added by the caller since it
// needs the descriptor.
func baseEnv(paths *kildpaths.Paths, sessionID string) map[string]string {
	env := map[string]string{}
	for _, k := range []string{"PATH", "HOME", "SHELL", "USER", "LANG", "TERM"} {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}

	// Prepend ~/.kild/bin to PATH, ahead of everything so the tmux shim
	// binary wins any `tmux` lookup.
	env["PATH"] = paths.Bin + string(os.PathListSeparator) + env["PATH"]

	// Synthesize the ZDOTDIR wrapper. Fire-and-forget: failure only logs,
	// never aborts the spawn.
	if zdotdir, err := ensureZdotdirWrapper(paths, sessionID, env["PATH"]); err == nil {
		env["ZDOTDIR"] = zdotdir
	} else {
		slog.Warn("ZDOTDIR wrapper synthesis failed; continuing without it", "session_id", sessionID, "error", err)
	}

	// Trick Claude-class agents that shell out to `tmux` into believing
	// they are already inside a tmux pane, so they drive our shim instead
	// of spawning a real tmux server.
	socket := paths.SocketPath()
	env["TMUX"] = fmt.Sprintf("%s,%d,0", socket, os.Getpid())
	env["TMUX_PANE"] = "%0"

	env["KILD_SHIM_SESSION"] = sessionID

	return env
}

// loginShell returns $SHELL, falling back to /bin/zsh so there is
// always a concrete shell to exec.
func loginShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/zsh"
}

// ensureZdotdirWrapper writes a per-session ZDOTDIR containing wrapper
// .zshenv/.zprofile/.zshrc that source the user's real dotfiles and then
// re-prepend ~/.kild/bin to PATH after macOS path_helper rewrites it in
// /etc/zprofile, then unset ZDOTDIR so grandchild shells behave normally.
func ensureZdotdirWrapper(paths *kildpaths.Paths, sessionID, kildPath string) (string, error) {
	dir := paths.ShimZdotdir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	home := os.Getenv("HOME")

	files := map[string]string{
		".zshenv": fmt.Sprintf("[ -f %q ] && source %q\n", filepath.Join(home, ".zshenv"), filepath.Join(home, ".zshenv")),
		".zprofile": fmt.Sprintf("[ -f %q ] && source %q\n", filepath.Join(home, ".zprofile"), filepath.Join(home, ".zprofile")),
		".zshrc": fmt.Sprintf(
			"[ -f %q ] && source %q\nexport PATH=%q:\"$PATH\"\nunset ZDOTDIR\n",
			filepath.Join(home, ".zshrc"), filepath.Join(home, ".zshrc"), paths.Bin,
		),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return "", err
		}
	}
	return dir, nil
}
