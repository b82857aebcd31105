package hooks

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kild-dev/kild/internal/kildpaths"
)

// codexNotifyHookScript is rewritten into ~/.kild/hooks/codex-notify on
// every EnsureCodexNotifyHook call.
const codexNotifyHookScript = `#!/bin/sh
# kild notify hook - auto-generated, do not edit.
# Called by the Codex CLI's notify config with JSON on stdin.
INPUT=$(cat)
TYPE=$(echo "$INPUT" | grep -o '"type":"[^"]*"' | head -1 | sed 's/"type":"//;s/"//')
case "$TYPE" in
  agent-turn-complete) kild agent-status --self idle --notify ;;
  approval-requested)  kild agent-status --self waiting --notify ;;
esac
`

// EnsureCodexNotifyHook writes the notify script to
// ~/.kild/hooks/codex-notify, always overwriting.
func EnsureCodexNotifyHook(paths *kildpaths.Paths) error {
	if err := os.MkdirAll(paths.Hooks, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", paths.Hooks, err)
	}
	hookPath := paths.CodexNotifyHook()
	if err := os.WriteFile(hookPath, []byte(codexNotifyHookScript), 0o755); err != nil {
		return fmt.Errorf("writing %s: %w", hookPath, err)
	}
	return nil
}

type codexConfig struct {
	Notify []string `toml:"notify"`
}

// EnsureCodexConfig patches ~/.codex/config.toml to set
// notify = ["<path to codex-notify>"] if notify is missing or empty.
// Respects a user-configured notify command: if one is already present,
// this is a no-op. A top-level `notify = []` line is replaced in place;
// otherwise the notify line is appended. Either way the rest of
// config.toml, formatting and comments included, is left untouched.
func EnsureCodexConfig(paths *kildpaths.Paths) error {
	hookPath := paths.CodexNotifyHook()

	existing, err := os.ReadFile(paths.CodexConfig)
	switch {
	case err == nil:
		var cfg codexConfig
		if _, decodeErr := toml.Decode(string(existing), &cfg); decodeErr == nil && len(cfg.Notify) > 0 {
			return nil
		}
		lines := strings.Split(string(existing), "\n")
		for i, l := range lines {
			trimmed := strings.TrimSpace(l)
			if strings.HasPrefix(trimmed, "[") {
				break // first table header: later keys are not top-level
			}
			if strings.ReplaceAll(trimmed, " ", "") == "notify=[]" {
				lines[i] = fmt.Sprintf("notify = [%q]", hookPath)
				return os.WriteFile(paths.CodexConfig, []byte(strings.Join(lines, "\n")), 0o644)
			}
		}
		content := strings.TrimRight(string(existing), "\n")
		if content != "" {
			content += "\n"
		}
		content += fmt.Sprintf("notify = [%q]\n", hookPath)
		return os.WriteFile(paths.CodexConfig, []byte(content), 0o644)
	case os.IsNotExist(err):
		if err := os.MkdirAll(filepath.Dir(paths.CodexConfig), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(paths.CodexConfig), err)
		}
		return os.WriteFile(paths.CodexConfig, []byte(fmt.Sprintf("notify = [%q]\n", hookPath)), 0o644)
	default:
		return fmt.Errorf("reading %s: %w", paths.CodexConfig, err)
	}
}

// SetupCodex installs the notify hook script and patches config.toml.
// Best-effort, same contract as SetupClaude.
func SetupCodex(paths *kildpaths.Paths, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	if err := EnsureCodexNotifyHook(paths); err != nil {
		log.Warn("codex notify hook install failed", "error", err)
		return
	}
	if err := EnsureCodexConfig(paths); err != nil {
		log.Warn("codex config patch failed", "error", err, "hint",
			fmt.Sprintf("add notify = [%q] to %s manually", paths.CodexNotifyHook(), paths.CodexConfig))
	}
}
