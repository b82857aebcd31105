package probe

import "fmt"

// LaunchTerminal opens a new terminal window of type t, cd'd to dir, and
// running command. Returns the AppleScript-reported window id, which the
// lifecycle manager records as AgentProcess.TerminalWindowID for later
// FocusTerminal/HideTerminal calls. Best-effort in the same sense as
// FocusTerminal: failures are returned, not swallowed.
func LaunchTerminal(t TerminalType, dir, command string) (windowID string, err error) {
	script, err := launchScript(t, dir, command)
	if err != nil {
		return "", err
	}
	out, err := runOSAScriptOutput(script)
	if err != nil {
		return "", fmt.Errorf("launch_terminal: %w", err)
	}
	return out, nil
}

func launchScript(t TerminalType, dir, command string) (string, error) {
	escaped := escapeAppleScriptString(fmt.Sprintf("cd %s && %s", shellQuote(dir), command))
	switch t {
	case TerminalTerminalApp:
		return fmt.Sprintf(`tell application "Terminal"
	activate
	set w to do script "%s"
	return id of window 1
end tell`, escaped), nil
	case TerminalITerm2:
		return fmt.Sprintf(`tell application "iTerm2"
	activate
	set newWindow to (create window with default profile)
	tell current session of newWindow
		write text "%s"
	end tell
	return id of newWindow
end tell`, escaped), nil
	case TerminalGhostty:
		return `tell application "Ghostty" to activate
return ""`, nil
	default:
		return "", fmt.Errorf("launch_terminal: unsupported terminal type %q", t)
	}
}

func escapeAppleScriptString(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

func shellQuote(s string) string {
	return "'" + s + "'"
}
