// Package kilderr defines the structured error kinds shared across KILD's
// core packages. Callers type-assert with errors.As rather than matching
// on message strings.
package kilderr

import (
	"errors"
	"fmt"

	"github.com/kild-dev/kild/internal/worktree"
)

// NotFound means the branch is not known to the session store.
type NotFound struct {
	Name string
}

func (e *NotFound) Error() string { return fmt.Sprintf("no kild found for branch %q", e.Name) }

// WorktreeNotFound means the worktree directory recorded for a session no
// longer exists on disk.
type WorktreeNotFound struct {
	Path string
}

func (e *WorktreeNotFound) Error() string { return fmt.Sprintf("worktree not found: %s", e.Path) }

// IoError wraps any file or socket failure.
type IoError struct {
	Source error
}

func (e *IoError) Error() string { return fmt.Sprintf("io error: %v", e.Source) }
func (e *IoError) Unwrap() error { return e.Source }

// DaemonError means a daemon command failed, including CreateSession rejection.
type DaemonError struct {
	Message string
}

func (e *DaemonError) Error() string { return fmt.Sprintf("daemon error: %s", e.Message) }

// ConfigError means a config lookup was rejected (bad agent, missing section).
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config error: %s", e.Message) }

// ResumeUnsupported means the agent does not support resume tokens at all.
type ResumeUnsupported struct {
	Agent string
}

func (e *ResumeUnsupported) Error() string {
	return fmt.Sprintf("agent %q does not support --resume", e.Agent)
}

// ResumeNoSessionId means --resume was requested but the session has no
// stored agent_session_id to resume from.
type ResumeNoSessionId struct {
	Branch string
}

func (e *ResumeNoSessionId) Error() string {
	return fmt.Sprintf("kild %q has no stored agent session id to resume", e.Branch)
}

// InvalidAgentStatus means an agent-status string did not parse.
type InvalidAgentStatus struct {
	Status string
}

func (e *InvalidAgentStatus) Error() string {
	return fmt.Sprintf("invalid agent status: %q", e.Status)
}

// InvalidBranchName means the branch name failed validation (see
// internal/identity.ValidateBranchName for the exact rule).
type InvalidBranchName struct {
	Name string
}

func (e *InvalidBranchName) Error() string {
	return fmt.Sprintf("invalid branch name: %q", e.Name)
}

// Hint returns a short remediation suggestion for errors that have one,
// matching the CLI's "   Hint: ..." convention. Returns "" when no hint
// applies.
func Hint(err error) string {
	switch e := err.(type) {
	case *ResumeUnsupported:
		return fmt.Sprintf("agent %q has no resume support; open without --resume", e.Agent)
	case *ResumeNoSessionId:
		return "open without --resume to start a fresh agent session"
	case *WorktreeNotFound:
		return "run `kild destroy <branch>` to drop the stale session record"
	}
	var fetchErr *worktree.FetchError
	if errors.As(err, &fetchErr) {
		return "retry with --no-fetch to skip fetching"
	}
	return ""
}
