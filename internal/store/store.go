// Package store is the atomic on-disk session record store. Every write
// goes through write-to-temp-then-rename; every load skips structurally
// invalid files rather than failing outright. The config patches in
// internal/hooks do not go through temp+rename: they rewrite
// settings.json and config.toml in place with os.WriteFile.
package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kild-dev/kild/internal/kilderr"
	"github.com/kild-dev/kild/internal/model"
)

// Store reads and writes session records under a sessions directory
// (normally kildpaths.Paths.Sessions).
type Store struct {
	Dir    string
	Logger *slog.Logger
}

// New returns a Store rooted at dir, using log as the warning sink.
// If log is nil, slog.Default() is used.
func New(dir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{Dir: dir, Logger: log}
}

func (s *Store) sessionFile(id string) string {
	return filepath.Join(s.Dir, strings.ReplaceAll(id, "/", "_")+".json")
}

// Save atomically writes a session record. The temp file is always
// removed on error; a crash mid-write never leaves a half-written
// record because readers only ever see the old or the fully-written new
// file (rename is atomic within one filesystem).
func (s *Store) Save(sess *model.Session) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return &kilderr.IoError{Source: err}
	}
	final := s.sessionFile(sess.ID)
	temp := final + ".tmp"

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return &kilderr.IoError{Source: err}
	}

	if err := os.WriteFile(temp, data, 0o644); err != nil {
		cleanupTemp(temp, err, s.Logger)
		return &kilderr.IoError{Source: err}
	}
	if err := os.Rename(temp, final); err != nil {
		cleanupTemp(temp, err, s.Logger)
		return &kilderr.IoError{Source: err}
	}
	return nil
}

func cleanupTemp(temp string, origErr error, log *slog.Logger) {
	if rmErr := os.Remove(temp); rmErr != nil && !os.IsNotExist(rmErr) {
		log.Warn("failed to clean up temp file after save error",
			"event", "store.temp_file_cleanup_failed",
			"temp_file", temp,
			"original_error", origErr,
			"cleanup_error", rmErr,
		)
	}
}

// LoadAll loads every session file in the directory. Files that fail
// structural validation (empty id, missing project_id) are skipped and
// counted; files whose worktree no longer exists are still returned so
// operators can see and clean them up. A missing directory is not an
// error — it just yields zero sessions.
func (s *Store) LoadAll() ([]*model.Session, int, error) {
	var sessions []*model.Session
	skipped := 0

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return sessions, skipped, nil
		}
		return nil, 0, &kilderr.IoError{Source: err}
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.Dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			skipped++
			s.Logger.Warn("failed to read session file, skipping",
				"event", "store.load_read_error", "file", path, "error", err)
			continue
		}

		var sess model.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			skipped++
			s.Logger.Warn("failed to parse session JSON, skipping",
				"event", "store.load_invalid_json", "file", path, "error", err)
			continue
		}

		if !sess.HasAgents() && sess.Status == model.StatusActive {
			s.Logger.Warn("active session has no tracked agents (legacy format)",
				"event", "store.load_legacy_no_agents", "file", path, "session_id", sess.ID)
		}

		if err := model.ValidateSessionStructure(&sess); err != nil {
			skipped++
			s.Logger.Warn("session file has invalid structure, skipping",
				"event", "store.load_invalid_structure", "file", path, "error", err)
			continue
		}

		sessions = append(sessions, &sess)
	}

	return sessions, skipped, nil
}

// FindByName finds a session by branch. Branch lookup must be unique
// within a project; this returns the first match, and callers that care
// about project scoping filter by ProjectID themselves first.
func (s *Store) FindByName(branch string) (*model.Session, error) {
	sessions, _, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if sess.Branch == branch {
			return sess, nil
		}
	}
	return nil, &kilderr.NotFound{Name: branch}
}

// Remove deletes a session's record file. Removing a file that does not
// exist is not an error (destroy is idempotent on the store side).
func (s *Store) Remove(id string) error {
	path := s.sessionFile(id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &kilderr.IoError{Source: err}
	}
	return nil
}

func (s *Store) statusFile(sessionID string) string {
	return filepath.Join(s.Dir, strings.ReplaceAll(sessionID, "/", "_")+".status")
}

// SaveStatus atomically writes the AgentStatus sidecar for a session.
func (s *Store) SaveStatus(sessionID string, info *model.AgentStatusInfo) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return &kilderr.IoError{Source: err}
	}
	final := s.statusFile(sessionID)
	temp := final + ".tmp"

	data, err := json.Marshal(info)
	if err != nil {
		return &kilderr.IoError{Source: err}
	}
	if err := os.WriteFile(temp, data, 0o644); err != nil {
		cleanupTemp(temp, err, s.Logger)
		return &kilderr.IoError{Source: err}
	}
	if err := os.Rename(temp, final); err != nil {
		cleanupTemp(temp, err, s.Logger)
		return &kilderr.IoError{Source: err}
	}
	return nil
}

// LoadStatus reads the AgentStatus sidecar. Absence (file missing or
// corrupt) means "no status reported yet" and is reported as (nil, nil)
// rather than an error.
func (s *Store) LoadStatus(sessionID string) (*model.AgentStatusInfo, error) {
	data, err := os.ReadFile(s.statusFile(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &kilderr.IoError{Source: err}
	}
	var info model.AgentStatusInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, nil
	}
	return &info, nil
}

// RemoveStatus deletes the AgentStatus sidecar. Best-effort: logs on
// failure but never returns an error.
func (s *Store) RemoveStatus(sessionID string) {
	path := s.statusFile(sessionID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.Logger.Warn("failed to remove agent status sidecar",
			"event", "store.agent_status_file_remove_failed", "file", path, "error", err)
	}
}

// Exists reports whether a session file already exists for a given branch,
// used by create's fail-fast duplicate-branch check.
func (s *Store) Exists(branch string) (bool, error) {
	_, err := s.FindByName(branch)
	if err == nil {
		return true, nil
	}
	var nf *kilderr.NotFound
	if isNotFound(err, &nf) {
		return false, nil
	}
	return false, err
}

func isNotFound(err error, target **kilderr.NotFound) bool {
	nf, ok := err.(*kilderr.NotFound)
	if ok {
		*target = nf
	}
	return ok
}
