// Package config resolves ~/.kild/config.toml into a typed Config. It
// only exposes the resolved struct and its defaults, not a general TOML
// authoring layer — config.toml is user-maintained.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/kild-dev/kild/internal/agent"
	"github.com/kild-dev/kild/internal/kildpaths"
	"github.com/kild-dev/kild/internal/model"
	"github.com/kild-dev/kild/internal/util"
)

// Config is the resolved ~/.kild/config.toml.
type Config struct {
	DefaultAgent       string            `toml:"default_agent"`
	DefaultRuntimeMode string            `toml:"default_runtime_mode"`
	AgentCommands      map[string]string `toml:"agent_commands"`
	PortRangeBase      int               `toml:"port_range_base"`
	PortRangeSize      int               `toml:"port_range_size"`
	FleetBrainBranch   string            `toml:"fleet_brain_branch"`
	HookVerbose        bool              `toml:"hook_verbose"`
}

// Default returns the built-in defaults applied when config.toml is
// missing or a field is unset.
func Default() *Config {
	return &Config{
		DefaultAgent:       string(agent.Claude),
		DefaultRuntimeMode: string(model.RuntimeTerminal),
		AgentCommands:      map[string]string{},
		PortRangeBase:      34000,
		PortRangeSize:      20,
		FleetBrainBranch:   "brain",
		HookVerbose:        false,
	}
}

// Load reads and parses ~/.kild/config.toml, falling back to Default()
// entirely if the file does not exist. An existing-but-unparseable file
// is an error: unlike session records, config is user-authored and a
// syntax error should surface rather than be silently skipped.
func Load(paths *kildpaths.Paths) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(paths.ConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", paths.ConfigFile, err)
	}

	loaded := Config{}
	if _, err := toml.Decode(string(data), &loaded); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", paths.ConfigFile, err)
	}

	if loaded.DefaultAgent != "" {
		cfg.DefaultAgent = loaded.DefaultAgent
	}
	if loaded.DefaultRuntimeMode != "" {
		cfg.DefaultRuntimeMode = loaded.DefaultRuntimeMode
	}
	if len(loaded.AgentCommands) > 0 {
		cfg.AgentCommands = loaded.AgentCommands
	}
	if loaded.PortRangeBase != 0 {
		cfg.PortRangeBase = loaded.PortRangeBase
	}
	if loaded.PortRangeSize != 0 {
		cfg.PortRangeSize = loaded.PortRangeSize
	}
	if loaded.FleetBrainBranch != "" {
		cfg.FleetBrainBranch = loaded.FleetBrainBranch
	}
	cfg.HookVerbose = loaded.HookVerbose

	return cfg, nil
}

// AgentCommandOverride returns the configured command override for an
// agent, or "" if none is set. A leading ~ in the configured command is
// expanded so `claude = "~/bin/claude"` style overrides work.
func (c *Config) AgentCommandOverride(ag agent.Name) string {
	return util.ExpandHome(c.AgentCommands[string(ag)])
}

// IsFleetBrain reports whether branch is the project's conventional
// fleet-coordinator branch.
func (c *Config) IsFleetBrain(branch string) bool {
	return branch == c.FleetBrainBranch
}
