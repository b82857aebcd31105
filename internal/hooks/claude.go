// Package hooks installs and patches the vendor-side integration points
// that let KILD receive agent status events out of band from the PTY.
// Each agent family gets its own notifier script under ~/.kild/hooks/
// plus a best-effort patch of that vendor's own config file.
package hooks

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kild-dev/kild/internal/kildpaths"
)

// brainBranch is the branch name the status hook script treats as the
// coordinating session. It is fixed in the script and does not follow
// config's fleet_brain_branch.
const brainBranch = "brain"

// claudeStatusHookScript is rewritten into ~/.kild/hooks/claude-status on
// every EnsureClaudeStatusHook call, so template updates propagate to
// already-provisioned worktrees. User edits to the file are not
// preserved, matching the original's "always overwrites" contract.
const claudeStatusHookScript = `#!/bin/sh
# kild status hook - auto-generated, do not edit.
# Registered in ~/.claude/settings.json for Stop, Notification, SubagentStop,
# TeammateIdle, and TaskCompleted hooks.
INPUT=$(cat)
BRANCH="${KILD_SESSION_BRANCH:-unknown}"
EVENT=$(echo "$INPUT" | grep -o '"hook_event_name":"[^"]*"' | head -1 | sed 's/"hook_event_name":"//;s/"//')
NTYPE=$(echo "$INPUT" | grep -o '"notification_type":"[^"]*"' | head -1 | sed 's/"notification_type":"//;s/"//')
case "$EVENT" in
  Stop|SubagentStop|TeammateIdle|TaskCompleted)
    kild agent-status --self idle --notify
    ;;
  Notification)
    case "$NTYPE" in
      permission_prompt) kild agent-status --self waiting --notify ;;
      idle_prompt)       kild agent-status --self idle --notify ;;
    esac
    ;;
esac
# Forward a tagged event into the brain session's dropbox, unless this
# session IS the brain (self-loop guard). Gate file dedups idle/stop
# noise within one task cycle; permission_prompt always bypasses it.
LAST_MSG=$(echo "$INPUT" | grep -o '"transcript_summary":"[^"]*"' | head -1 | sed 's/"transcript_summary":"//;s/"//')
TAG=""
FORWARD=""
SKIP_GATE=""
WRITE_GATE=""
case "$EVENT" in
  Stop)           TAG="agent.stop";     FORWARD=1; WRITE_GATE=1 ;;
  SubagentStop)   TAG="subagent.stop";  [ "${KILD_HOOK_VERBOSE:-0}" = "1" ] && FORWARD=1 ;;
  TeammateIdle)   TAG="teammate.idle";  [ "${KILD_HOOK_VERBOSE:-0}" = "1" ] && FORWARD=1 ;;
  TaskCompleted)  TAG="task.completed"; [ "${KILD_HOOK_VERBOSE:-0}" = "1" ] && FORWARD=1 ;;
  Notification)
    case "$NTYPE" in
      permission_prompt) TAG="agent.waiting"; FORWARD=1; SKIP_GATE=1 ;;
      idle_prompt)       TAG="agent.idle";    FORWARD=1; WRITE_GATE=1 ;;
    esac
    ;;
esac
if [ -n "$FORWARD" ]; then
  MSG="[EVENT] $BRANCH $TAG${LAST_MSG:+: $LAST_MSG}"
  GATE="${KILD_DROPBOX:+$KILD_DROPBOX/.idle_sent}"
  if [ "$BRANCH" != "` + brainBranch + `" ] && \
     [ "$BRANCH" != "unknown" ] && \
     { [ -n "$SKIP_GATE" ] || [ -z "$GATE" ] || [ ! -f "$GATE" ]; } && \
     kild list --json 2>/dev/null | jq -e '.sessions[] | select(.branch == "` + brainBranch + `" and .status == "active")' > /dev/null 2>&1; then
    if kild inject ` + brainBranch + ` "$MSG"; then
      if [ -n "$WRITE_GATE" ] && [ -n "$GATE" ]; then
        touch "$GATE" || echo "[kild] warning: failed to write idle gate $GATE" >&2
      fi
    fi
  fi
fi
`

// EnsureClaudeStatusHook writes the status/forwarding script to
// ~/.kild/hooks/claude-status, always overwriting so template changes
// reach already-provisioned sessions.
func EnsureClaudeStatusHook(paths *kildpaths.Paths) error {
	if err := os.MkdirAll(paths.Hooks, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", paths.Hooks, err)
	}
	hookPath := paths.ClaudeStatusHook()
	if err := os.WriteFile(hookPath, []byte(claudeStatusHookScript), 0o755); err != nil {
		return fmt.Errorf("writing %s: %w", hookPath, err)
	}
	return nil
}

// claudeHookEntry is one element of a Claude Code hooks.<Event> array.
type claudeHookEntry struct {
	Matcher string       `json:"matcher,omitempty"`
	Hooks   []claudeHook `json:"hooks"`
}

type claudeHook struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// EnsureClaudeSettings patches ~/.claude/settings.json to register the
// status hook for Stop, Notification, SubagentStop, TeammateIdle, and
// TaskCompleted, preserving every other field in the file untouched.
// Idempotent: skips events that already reference our hook command.
func EnsureClaudeSettings(paths *kildpaths.Paths) error {
	hookPath := paths.ClaudeStatusHook()

	raw := map[string]json.RawMessage{}
	data, err := os.ReadFile(paths.ClaudeSettings)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing %s: %w (fix JSON syntax or remove the file to reset)", paths.ClaudeSettings, err)
		}
	case os.IsNotExist(err):
		// start from an empty settings object
	default:
		return fmt.Errorf("reading %s: %w", paths.ClaudeSettings, err)
	}

	var hooks map[string][]claudeHookEntry
	if hr, ok := raw["hooks"]; ok {
		if err := json.Unmarshal(hr, &hooks); err != nil {
			return fmt.Errorf("parsing %s hooks field: %w", paths.ClaudeSettings, err)
		}
	}
	if hooks == nil {
		hooks = map[string][]claudeHookEntry{}
	}

	entry := claudeHook{Type: "command", Command: hookPath, Timeout: 5}
	added := 0

	for _, event := range []string{"Stop", "SubagentStop", "TeammateIdle", "TaskCompleted"} {
		if hasHook(hooks[event], hookPath) {
			continue
		}
		hooks[event] = append(hooks[event], claudeHookEntry{Hooks: []claudeHook{entry}})
		added++
	}
	if !hasHook(hooks["Notification"], hookPath) {
		hooks["Notification"] = append(hooks["Notification"], claudeHookEntry{
			Matcher: "permission_prompt|idle_prompt",
			Hooks:   []claudeHook{entry},
		})
		added++
	}

	if added == 0 {
		return nil
	}

	hooksRaw, err := json.Marshal(hooks)
	if err != nil {
		return err
	}
	raw["hooks"] = hooksRaw

	if err := os.MkdirAll(filepath.Dir(paths.ClaudeSettings), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(paths.ClaudeSettings), err)
	}
	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(paths.ClaudeSettings, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", paths.ClaudeSettings, err)
	}
	return nil
}

func hasHook(entries []claudeHookEntry, hookPath string) bool {
	for _, e := range entries {
		for _, h := range e.Hooks {
			if h.Command == hookPath {
				return true
			}
		}
	}
	return false
}

// SetupClaude installs the status hook script and patches settings.json.
// Best-effort: logs a warning on failure rather than blocking
// session creation, matching setup_claude_integration's behavior.
func SetupClaude(paths *kildpaths.Paths, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	if err := EnsureClaudeStatusHook(paths); err != nil {
		log.Warn("claude status hook install failed", "error", err)
		return
	}
	if err := EnsureClaudeSettings(paths); err != nil {
		log.Warn("claude settings patch failed", "error", err, "hint",
			fmt.Sprintf("add hooks entries referencing %q to %s manually", paths.ClaudeStatusHook(), paths.ClaudeSettings))
	}
}
