package probe

import (
	"fmt"
	"os/exec"
	"strings"
)

// TerminalType is the small closed set of host terminal applications KILD
// knows how to focus or hide. "daemon" sessions have no OS-level window
// and are not a member of this set — focus/hide on a daemon session is a
// GUI-side no-op handled above this package.
type TerminalType string

const (
	TerminalGhostty    TerminalType = "Ghostty"
	TerminalITerm2     TerminalType = "iTerm2"
	TerminalTerminalApp TerminalType = "Terminal.app"
)

// FocusTerminal activates the terminal application of type t. windowID is
// not used: the application comes to the foreground, but the window that
// windowID names is not specifically raised.
// Each variant owns its own invocation (AppleScript template, etc);
// failures are returned for display, never swallowed.
func FocusTerminal(t TerminalType, windowID string) error {
	script, err := focusScript(t, windowID)
	if err != nil {
		return err
	}
	return runOSAScript(script)
}

// HideTerminal hides the whole terminal application of type t through
// System Events. windowID is not used, so every window of that
// application is hidden, not only the one windowID names.
func HideTerminal(t TerminalType, windowID string) error {
	script, err := hideScript(t, windowID)
	if err != nil {
		return err
	}
	return runOSAScript(script)
}

func focusScript(t TerminalType, windowID string) (string, error) {
	switch t {
	case TerminalGhostty:
		return `tell application "Ghostty" to activate`, nil
	case TerminalITerm2:
		return `tell application "iTerm2"
	activate
	tell current window to select
end tell`, nil
	case TerminalTerminalApp:
		return `tell application "Terminal" to activate`, nil
	default:
		return "", fmt.Errorf("focus_terminal: unsupported terminal type %q", t)
	}
}

func hideScript(t TerminalType, windowID string) (string, error) {
	switch t {
	case TerminalGhostty:
		return `tell application "System Events" to set visible of process "Ghostty" to false`, nil
	case TerminalITerm2:
		return `tell application "System Events" to set visible of process "iTerm2" to false`, nil
	case TerminalTerminalApp:
		return `tell application "System Events" to set visible of process "Terminal" to false`, nil
	default:
		return "", fmt.Errorf("hide_terminal: unsupported terminal type %q", t)
	}
}

// runOSAScript invokes the script via the macOS `osascript` binary. On
// non-macOS platforms this simply fails (reported, not swallowed) since
// there is no window manager hook to target here.
func runOSAScript(script string) error {
	_, err := runOSAScriptOutput(script)
	return err
}

// runOSAScriptOutput is runOSAScript but returns stdout, used by
// LaunchTerminal to capture the new window's id.
func runOSAScriptOutput(script string) (string, error) {
	cmd := exec.Command("osascript", "-e", script)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("osascript failed: %w (%s)", err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}
