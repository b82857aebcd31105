package lifecycle

import (
	"fmt"
	"time"

	"github.com/kild-dev/kild/internal/agent"
	"github.com/kild-dev/kild/internal/config"
	"github.com/kild-dev/kild/internal/hooks"
	"github.com/kild-dev/kild/internal/kilderr"
	"github.com/kild-dev/kild/internal/model"
	"github.com/kild-dev/kild/internal/probe"
)

// OpenRequest is the input to Open.
type OpenRequest struct {
	RuntimeMode   model.RuntimeMode // explicit override, "" = unset
	Agent         agent.Name        // explicit override, "" = keep the session's stored agent
	Resume        bool
	Yolo          bool
	ExtraFlags    []string
	NoAttach      bool
	InitialPrompt string
	Terminal      probe.TerminalType // explicit override, "" = Terminal.app default
}

// OpenResult mirrors CreateResult: the updated session plus which tier
// of the runtime-mode precedence won.
type OpenResult struct {
	Session    *model.Session
	ModeSource string
}

// Open adds a new AgentProcess to an existing session without touching
// any already-running agent. The
// session is persisted before the new window/daemon session is
// spawned so an immediate `kild open --attach` in another process can
// already find it.
func (m *Manager) Open(branch string, req OpenRequest) (*OpenResult, error) {
	sess, err := m.Store.FindByName(branch)
	if err != nil {
		return nil, err
	}

	ag := resolveOpenAgent(sess, req.Agent, m.Config)

	mode, modeSource := resolveOpenMode(req.RuntimeMode, sess.RuntimeMode, m.Config)
	sess.RuntimeMode = mode

	if req.Resume {
		if sess.AgentSessionID == "" {
			return nil, &kilderr.ResumeNoSessionId{Branch: branch}
		}
		if desc, ok := agent.Lookup(ag); !ok || !desc.SupportsResume {
			return nil, &kilderr.ResumeUnsupported{Agent: string(ag)}
		}
	}

	// Persist first so concurrent `kild attach` invocations can find the
	// session even while the spawn below is still in flight.
	sess.Status = model.StatusActive
	sess.LastActivity = time.Now().UTC().Format(time.RFC3339)
	if err := m.Store.Save(sess); err != nil {
		return nil, err
	}

	spawnID := fmt.Sprintf("%s_%d", sess.ID, len(sess.Agents))
	if err := m.spawnAgent(sess, spawnID, spawnOptions{
		Resume:        req.Resume,
		ResumeToken:   sess.AgentSessionID,
		Yolo:          req.Yolo,
		ExtraArgs:     req.ExtraFlags,
		InitialPrompt: req.InitialPrompt,
		Terminal:      req.Terminal,
	}); err != nil {
		return nil, err
	}

	hooks.Setup(m.Paths, ag, m.Log)

	if req.InitialPrompt != "" {
		m.deliverInitialPrompt(sess, ag, req.InitialPrompt)
	}

	if err := m.Store.Save(sess); err != nil {
		return nil, err
	}

	return &OpenResult{Session: sess, ModeSource: modeSource}, nil
}

// resolveOpenAgent applies the "shell is never a registered
// agent" rule: a session created with `--no-agent` stores Agent =
// "shell", and a later open with no explicit agent choice falls back to
// the configured default agent rather than trying to resume a
// nonexistent "shell" agent. An explicit override (open --agent or
// --no-agent) always wins, including choosing shell on purpose, and is
// persisted onto the session for subsequent opens.
func resolveOpenAgent(sess *model.Session, override agent.Name, cfg *config.Config) agent.Name {
	if override != "" {
		sess.Agent = string(override)
		return override
	}
	ag := agent.Name(sess.Agent)
	if ag == agent.Shell {
		ag = agent.Name(cfg.DefaultAgent)
	}
	sess.Agent = string(ag)
	return ag
}
