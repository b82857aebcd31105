// Package healthtui implements the `kild health --watch` live dashboard.
// It owns only rendering; internal/cmd computes the underlying Entry
// values so the health logic isn't duplicated between the
// plain-text/JSON path and the bubbletea path.
//
// A mutex-protected Model fed by a periodic tea.Tick, refreshed by a
// tea.Cmd closure rather than a background goroutine writing into the
// model directly.
package healthtui

// Entry is one session's computed health snapshot.
type Entry struct {
	Branch      string `json:"branch"`
	Agent       string `json:"agent"`
	Status      string `json:"status"`
	RuntimeMode string `json:"runtime_mode"`

	ProcessID       int  `json:"process_id,omitempty"`
	ProcessRunning  bool `json:"process_running"`
	ProcessCheckErr bool `json:"process_check_error,omitempty"`

	WorktreeMissing      bool `json:"worktree_missing,omitempty"`
	LegacyActiveNoAgents bool `json:"legacy_active_no_agents,omitempty"`

	AgentStatus   string `json:"agent_status,omitempty"`
	AgentStatusAt string `json:"agent_status_at,omitempty"`

	Healthy bool `json:"healthy"`
}

// ProcessColumn renders the PROCESS column for the plain-text table.
func (e Entry) ProcessColumn() string {
	if e.ProcessID == 0 {
		return "-"
	}
	if e.ProcessCheckErr {
		return "unknown"
	}
	if e.ProcessRunning {
		return "running"
	}
	return "dead"
}

// WorktreeColumn renders the WORKTREE column for the plain-text table.
func (e Entry) WorktreeColumn() string {
	if e.WorktreeMissing {
		return "missing"
	}
	return "ok"
}
