package lifecycle

import (
	"github.com/kild-dev/kild/internal/config"
	"github.com/kild-dev/kild/internal/model"
)

// resolveCreateMode implements create's runtime-mode precedence:
// explicit flag > config > hardcoded Terminal default.
func resolveCreateMode(explicit model.RuntimeMode, cfg *config.Config) (model.RuntimeMode, string) {
	if explicit != "" {
		return explicit, "flag"
	}
	if cfg.DefaultRuntimeMode != "" {
		return model.RuntimeMode(cfg.DefaultRuntimeMode), "config"
	}
	return model.RuntimeTerminal, "default"
}

// resolveOpenMode implements open's runtime-mode precedence: explicit
// flag > the session's stored mode > config > hardcoded Terminal
// default. Every resolution names which tier won so `open -v` can show
// its work.
func resolveOpenMode(explicit model.RuntimeMode, stored model.RuntimeMode, cfg *config.Config) (model.RuntimeMode, string) {
	if explicit != "" {
		return explicit, "flag"
	}
	if stored != "" {
		return stored, "session"
	}
	if cfg.DefaultRuntimeMode != "" {
		return model.RuntimeMode(cfg.DefaultRuntimeMode), "config"
	}
	return model.RuntimeTerminal, "default"
}
