package hooks

import (
	"log/slog"

	"github.com/kild-dev/kild/internal/agent"
	"github.com/kild-dev/kild/internal/kildpaths"
)

// Setup installs and patches the notify integration for ag, a no-op for
// agent families with no hook integration (NotifyHookKind == "").
// Called once per create/open so vendor config edits, the user's own or
// ours, are re-asserted on every session start.
func Setup(paths *kildpaths.Paths, ag agent.Name, log *slog.Logger) {
	desc, ok := agent.Lookup(ag)
	if !ok {
		return
	}
	switch desc.NotifyHookKind {
	case "claude":
		SetupClaude(paths, log)
	case "codex":
		SetupCodex(paths, log)
	}
}
