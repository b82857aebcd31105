// Package kildpaths resolves the filesystem layout under the user's
// private KILD root, "~/.kild/". Every other package reaches disk through
// this package rather than hand-building paths, so the layout only needs
// to change in one place.
package kildpaths

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kild-dev/kild/internal/identity"
)

// Paths is the resolved set of directories and files under ~/.kild and
// the agent config files it patches.
type Paths struct {
	Root string // ~/.kild

	Bin       string // ~/.kild/bin (tmux shim symlink lives here)
	Hooks     string // ~/.kild/hooks
	Shim      string // ~/.kild/shim
	Fleet     string // ~/.kild/fleet
	Sessions  string // ~/.kild/sessions
	SocketDir string // runtime dir for the daemon's unix socket

	ClaudeSettings string // ~/.claude/settings.json
	CodexConfig    string // ~/.codex/config.toml

	ConfigFile string // ~/.kild/config.toml
	ProjectsFile string // ~/.kild/projects.json
}

// Resolve computes Paths from the user's home directory and XDG runtime
// directory, creating none of them — callers create directories lazily
// at the point of use.
func Resolve() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	root := filepath.Join(home, ".kild")

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = filepath.Join(os.TempDir(), fmt.Sprintf("kild-%d", os.Getuid()))
	}

	return &Paths{
		Root:      root,
		Bin:       filepath.Join(root, "bin"),
		Hooks:     filepath.Join(root, "hooks"),
		Shim:      filepath.Join(root, "shim"),
		Fleet:     filepath.Join(root, "fleet"),
		Sessions:  filepath.Join(root, "sessions"),
		SocketDir: runtimeDir,

		ClaudeSettings: filepath.Join(home, ".claude", "settings.json"),
		CodexConfig:    filepath.Join(home, ".codex", "config.toml"),

		ConfigFile:   filepath.Join(root, "config.toml"),
		ProjectsFile: filepath.Join(root, "projects.json"),
	}, nil
}

// SocketPath is the well-known unix domain socket path for the PTY daemon.
func (p *Paths) SocketPath() string {
	return filepath.Join(p.SocketDir, "kild-daemon.sock")
}

// DaemonLockPath is the single-instance advisory lock for the daemon.
func (p *Paths) DaemonLockPath() string {
	return filepath.Join(p.SocketDir, "kild-daemon.lock")
}

// TmuxShimBinary is the path the CLI symlinks ~/.kild/bin/tmux to.
func (p *Paths) TmuxShimBinary() string {
	return filepath.Join(p.Bin, "tmux")
}

// ShimZdotdir returns the per-session ZDOTDIR synthesized for a spawn's
// login shell wrapper.
func (p *Paths) ShimZdotdir(sessionID string) string {
	return filepath.Join(p.Shim, sessionID, "zdotdir")
}

// ClaudeStatusHook is the status-reporting script registered in
// ~/.claude/settings.json for Claude Code sessions.
func (p *Paths) ClaudeStatusHook() string {
	return filepath.Join(p.Hooks, "claude-status")
}

// CodexNotifyHook is the notify script registered via ~/.codex/config.toml
// for Codex sessions.
func (p *Paths) CodexNotifyHook() string {
	return filepath.Join(p.Hooks, "codex-notify")
}

// FleetDropboxDir returns the per-worker dropbox directory.
func (p *Paths) FleetDropboxDir(projectID, branch string) string {
	return filepath.Join(p.Fleet, projectID, identity.SanitizeBranch(branch))
}

// EnsureDirectories creates the directories KILD always needs, regardless
// of which subcommand is running.
func (p *Paths) EnsureDirectories() error {
	for _, d := range []string{p.Root, p.Bin, p.Hooks, p.Shim, p.Fleet, p.Sessions} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return nil
}
