// Package model defines KILD's core data types: the Session ("kild")
// record, its AgentProcess spawns, and the AgentStatus sidecar. These are
// plain structs shared by every package that touches a session — none of
// them own the session's lifetime, they all key off Session.ID.
package model

import (
	"strings"
	"time"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusActive    Status = "Active"
	StatusStopped   Status = "Stopped"
	StatusCompleted Status = "Completed"
)

// RuntimeMode selects the PTY backend used for the most recent open.
type RuntimeMode string

const (
	RuntimeTerminal RuntimeMode = "Terminal"
	RuntimeDaemon   RuntimeMode = "Daemon"
)

// PortRange is an advisory block of ports reserved for the kild's own
// processes (dev servers, etc). Never enforced, only recorded.
type PortRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// AgentProcess is one record per spawn into a session. Index 0 is the
// first spawn; later entries are appended by open/restart and the whole
// slice is cleared by stop.
type AgentProcess struct {
	Agent            string    `json:"agent"`
	SpawnID          string    `json:"spawn_id"`
	ProcessID        int       `json:"process_id"`
	TerminalType     string    `json:"terminal_type"`
	TerminalWindowID string    `json:"terminal_window_id,omitempty"`
	Command          string    `json:"command"`
	SpawnedAt        time.Time `json:"spawned_at"`
	// DaemonSessionID is present iff the session's runtime_mode was Daemon
	// at the time of this spawn.
	DaemonSessionID string `json:"daemon_session_id,omitempty"`
}

// Session is the central KILD entity: one git branch, one worktree, one
// or more agent spawns, tracked across CLI invocations.
type Session struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	Branch        string `json:"branch"`
	WorktreePath  string `json:"worktree_path"`
	Agent         string `json:"agent"`
	Status        Status `json:"status"`
	CreatedAt     string `json:"created_at"`
	LastActivity  string `json:"last_activity"`
	Ports         PortRange `json:"ports"`
	Note          string `json:"note,omitempty"`
	TaskListID    string `json:"task_list_id,omitempty"`

	// AgentSessionID is the current resume token, or "" if absent.
	AgentSessionID string `json:"agent_session_id,omitempty"`
	// AgentSessionIDHistory holds prior resume tokens in rotation order.
	// Deliberately omitted from JSON when empty (not serialized as []) so
	// older session files without this field still round-trip.
	AgentSessionIDHistory []string `json:"agent_session_id_history,omitempty"`

	RuntimeMode RuntimeMode `json:"runtime_mode"`

	Agents []AgentProcess `json:"agents"`
}

// HasAgents reports whether the session has any tracked AgentProcess.
func (s *Session) HasAgents() bool { return len(s.Agents) > 0 }

// LastAgent returns the most recently spawned AgentProcess, or nil if the
// session has none.
func (s *Session) LastAgent() *AgentProcess {
	if len(s.Agents) == 0 {
		return nil
	}
	return &s.Agents[len(s.Agents)-1]
}

// RotateAgentSessionID sets a new resume token, preserving the previous
// one (if any) in history. Rotating to the same token is a no-op on
// history — it is not duplicated.
func (s *Session) RotateAgentSessionID(newID string) {
	if s.AgentSessionID == newID {
		return
	}
	if s.AgentSessionID != "" {
		s.AgentSessionIDHistory = append(s.AgentSessionIDHistory, s.AgentSessionID)
	}
	s.AgentSessionID = newID
}

// AgentStatusValue is the set of statuses an agent can self-report through
// the status hook.
type AgentStatusValue string

const (
	AgentIdle    AgentStatusValue = "Idle"
	AgentWorking AgentStatusValue = "Working"
	AgentWaiting AgentStatusValue = "Waiting"
)

// ParseAgentStatus validates a raw status string from the CLI or a hook
// script, ignoring case ("idle" and "Idle" both yield AgentIdle). It
// reports false on mismatch; the agent-status command turns that into
// kilderr.InvalidAgentStatus.
func ParseAgentStatus(s string) (AgentStatusValue, bool) {
	for _, v := range []AgentStatusValue{AgentIdle, AgentWorking, AgentWaiting} {
		if strings.EqualFold(s, string(v)) {
			return v, true
		}
	}
	return "", false
}

// AgentStatusInfo is the per-session sidecar, kept out of the main Session
// record so agent-driven writes never race with lifecycle writes.
type AgentStatusInfo struct {
	Status    AgentStatusValue `json:"status"`
	UpdatedAt string           `json:"updated_at"`
}

// Project identifies a git repository root tracked by KILD.
type Project struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Name string `json:"name"`
}
