package model

import "strings"

// ValidateSessionStructure is the structural check applied on load: a
// file that fails this is skipped, not a fatal load error.
// It never validates worktree existence — a session whose worktree
// vanished still loads so operators can see and clean it up.
func ValidateSessionStructure(s *Session) error {
	if strings.TrimSpace(s.ID) == "" {
		return errEmptyID
	}
	if strings.TrimSpace(s.ProjectID) == "" {
		return errEmptyProjectID
	}
	return nil
}

var (
	errEmptyID        = structErr("session id is empty")
	errEmptyProjectID = structErr("session project_id is empty")
)

type structErr string

func (e structErr) Error() string { return string(e) }
