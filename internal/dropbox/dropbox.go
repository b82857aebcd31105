// Package dropbox implements the fleet messaging plane: a per-worker
// on-disk task protocol directory that lets a brain agent inject tasks
// into worker agents.
//
// task-id reads split three ways (missing/corrupt/IO-error), and a
// failed task.md write rolls the counter back.
package dropbox

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/kild-dev/kild/internal/agent"
	"github.com/kild-dev/kild/internal/kilderr"
	"github.com/kild-dev/kild/internal/kildpaths"
)

// DeliveryMethod records how a task injection reached the worker.
type DeliveryMethod string

const (
	Dropbox       DeliveryMethod = "dropbox"
	ClaudeInbox   DeliveryMethod = "claude_inbox"
	Pty           DeliveryMethod = "pty"
	InitialPrompt DeliveryMethod = "initial_prompt"
)

// HistoryEntry is one line of the append-only history.jsonl audit trail.
type HistoryEntry struct {
	Dir      string           `json:"dir"` // "in" or "out"
	From     string           `json:"from"`
	To       string           `json:"to"`
	TaskID   uint64           `json:"task_id"`
	Ts       string           `json:"ts"`
	Summary  string           `json:"summary"`
	Delivery []DeliveryMethod `json:"delivery"`
}

// Manager manages one worker's fleet directory.
type Manager struct {
	paths *kildpaths.Paths
	log   *slog.Logger
	// FleetModeActive reports whether the branch is currently operating
	// under fleet mode. Injected so callers (lifecycle) can decide this
	// from config/branch-naming policy without dropbox importing them.
	FleetModeActive func(branch string) bool
}

// New returns a Manager helper. fleetModeActive decides whether a given
// branch participates in fleet messaging at all (the brain branch-naming
// convention is a caller policy, not a dropbox concern).
func New(paths *kildpaths.Paths, fleetModeActive func(branch string) bool, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{paths: paths, log: log, FleetModeActive: fleetModeActive}
}

// protocolTemplate is rewritten into protocol.md on every EnsureDropbox
// call so template updates propagate to already-provisioned workers.
const protocolTemplate = `# Fleet dropbox protocol

This directory is your task inbox. A new task arrives as:

- ` + "`task-id`" + `: the current task number (decimal).
- ` + "`task.md`" + `: the current task body, headed "# Task N".

Read task.md when notified, and write progress to report.md if asked.
Do not edit task-id or task.md yourself; they are owned by the dispatcher.
`

// EnsureDropbox provisions the dropbox directory and (re)writes
// protocol.md. Best-effort: logs and returns on any failure, never blocks
// session creation/opening. No-op if the agent is not fleet-capable or
// fleet mode is not active for branch.
func (d *Manager) EnsureDropbox(projectID, branch string, ag agent.Name) {
	if !agent.IsFleetCapable(ag) || !d.FleetModeActive(branch) {
		return
	}
	dir := d.paths.FleetDropboxDir(projectID, branch)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		d.log.Warn("creating fleet dropbox failed", "dir", dir, "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "protocol.md"), []byte(protocolTemplate), 0o644); err != nil {
		d.log.Warn("writing dropbox protocol.md failed", "dir", dir, "error", err)
	}
}

// CleanupDropbox best-effort removes a worker's dropbox directory. No-op
// for sessions that never had one (non-fleet sessions).
func (d *Manager) CleanupDropbox(projectID, branch string) {
	dir := d.paths.FleetDropboxDir(projectID, branch)
	_ = os.RemoveAll(dir)
}

// WriteTask writes a new task into the worker's dropbox under an
// exclusive lock on task.lock, returning the new monotonic task id.
// Returns (0, nil) if fleet mode is not active or the dropbox directory
// does not exist (no-op, not an error) — this mirrors write_task not
// checking fleet-capability itself, only directory existence, so that
// ensure_dropbox remains the single gate on who gets one.
func (d *Manager) WriteTask(projectID, branch, text string, delivery []DeliveryMethod) (uint64, error) {
	if !d.FleetModeActive(branch) {
		return 0, nil
	}
	dir := d.paths.FleetDropboxDir(projectID, branch)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	lockPath := filepath.Join(dir, "task.lock")
	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		return 0, &kilderr.IoError{Source: err}
	}
	defer fl.Unlock()

	taskIDPath := filepath.Join(dir, "task-id")
	currentID, corrupt, err := readTaskID(taskIDPath)
	if err != nil {
		return 0, &kilderr.IoError{Source: err}
	}
	if corrupt {
		d.log.Warn("task-id file is not a decimal counter, resetting to 0", "path", taskIDPath, "branch", branch)
	}
	newID := currentID + 1

	if err := os.WriteFile(taskIDPath, []byte(fmt.Sprintf("%d\n", newID)), 0o644); err != nil {
		return 0, &kilderr.IoError{Source: err}
	}

	taskPath := filepath.Join(dir, "task.md")
	body := fmt.Sprintf("# Task %d\n\n%s\n", newID, text)
	if err := os.WriteFile(taskPath, []byte(body), 0o644); err != nil {
		// Roll back task-id so the next write gets the same number.
		_ = os.WriteFile(taskIDPath, []byte(fmt.Sprintf("%d\n", currentID)), 0o644)
		return 0, &kilderr.IoError{Source: err}
	}

	// history append failure does not roll back the task — it was
	// already delivered via task.md.
	if err := appendHistory(dir, branch, newID, text, delivery); err != nil {
		return newID, &kilderr.IoError{Source: err}
	}

	return newID, nil
}

// readTaskID distinguishes three cases: missing file (id 0, no warning),
// unparseable content (id 0, corrupt=true so the caller logs a warning
// before overwriting), and any other IO error (propagated).
func readTaskID(path string) (id uint64, corrupt bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	trimmed := strings.TrimSpace(string(data))
	id, err = strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		// Corrupt content: reset to 0 rather than failing the write.
		return 0, true, nil
	}
	return id, false, nil
}

func appendHistory(dir, branch string, taskID uint64, text string, delivery []DeliveryMethod) error {
	summary := firstLine(text, 80)
	entry := HistoryEntry{
		Dir:      "in",
		From:     "kild",
		To:       branch,
		TaskID:   taskID,
		Ts:       time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Summary:  summary,
		Delivery: delivery,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "history.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

func firstLine(text string, max int) string {
	line := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		line = text[:idx]
	}
	runes := []rune(line)
	if len(runes) > max {
		runes = runes[:max]
	}
	return string(runes)
}

// InjectEnvVars exports KILD_DROPBOX for all fleet workers, additionally
// KILD_FLEET_DIR for the brain session. isBrain is a caller-supplied
// policy decision (branch naming convention), same reasoning as
// FleetModeActive.
func (d *Manager) InjectEnvVars(env map[string]string, projectID, branch string, ag agent.Name, isBrain bool) {
	if !agent.IsFleetCapable(ag) || !d.FleetModeActive(branch) {
		return
	}
	dir := d.paths.FleetDropboxDir(projectID, branch)
	env["KILD_DROPBOX"] = dir
	if isBrain {
		env["KILD_FLEET_DIR"] = filepath.Join(d.paths.Fleet, projectID)
	}
}
