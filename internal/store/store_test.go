package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kild-dev/kild/internal/model"
)

func testSession(id, branch string) *model.Session {
	return &model.Session{
		ID:        id,
		ProjectID: "proj1",
		Branch:    branch,
		Status:    model.StatusActive,
		Agent:     "claude",
		Agents: []model.AgentProcess{
			{Agent: "claude", SpawnID: id + "_0", ProcessID: 123},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	sess := testSession("p_feat_login", "feat/login")
	if err := s.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.FindByName("feat/login")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if got.ID != sess.ID || got.Branch != sess.Branch || len(got.Agents) != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	sess := testSession("p_x", "x")

	if err := s.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSaveLeavesNoTempFileOnRenameFailure(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	sess := testSession("p_y", "y")

	// Make the destination path itself a directory so rename fails.
	final := s.sessionFile(sess.ID)
	if err := os.MkdirAll(final, 0o755); err != nil {
		t.Fatal(err)
	}

	err := s.Save(sess)
	if err == nil {
		t.Fatalf("expected Save to fail when destination is a directory")
	}
	if _, statErr := os.Stat(final + ".tmp"); !os.IsNotExist(statErr) {
		t.Fatalf("temp file should have been cleaned up after failure")
	}
}

func TestLoadAllSkipsInvalidStructure(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	valid := testSession("p_ok", "ok")
	if err := s.Save(valid); err != nil {
		t.Fatal(err)
	}

	// Write a structurally invalid file directly (empty id).
	bad, _ := json.Marshal(&model.Session{ProjectID: "proj1", Branch: "bad"})
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), bad, 0o644); err != nil {
		t.Fatal(err)
	}

	sessions, skipped, err := s.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 1 {
		t.Fatalf("skipped = %d, want 1", skipped)
	}
	if len(sessions) != 1 || sessions[0].ID != "p_ok" {
		t.Fatalf("sessions = %+v", sessions)
	}
}

func TestLoadAllPreservesMissingWorktreeSessions(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	sess := testSession("p_gone", "gone")
	sess.WorktreePath = "/nonexistent/path/does/not/exist"
	if err := s.Save(sess); err != nil {
		t.Fatal(err)
	}

	sessions, skipped, err := s.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 0 || len(sessions) != 1 {
		t.Fatalf("expected session with missing worktree to still load, got %d sessions, %d skipped", len(sessions), skipped)
	}
}

func TestAgentSessionIDHistoryOmittedWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	sess := testSession("p_hist", "hist")
	if err := s.Save(sess); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(s.sessionFile(sess.ID))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["agent_session_id_history"]; ok {
		t.Fatalf("agent_session_id_history should be omitted when empty, raw = %v", raw)
	}
}

func TestOlderFileWithoutHistoryFieldLoads(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	old := `{"id":"p_old","project_id":"proj1","branch":"old","status":"Active","agents":[]}`
	if err := os.WriteFile(filepath.Join(dir, "p_old.json"), []byte(old), 0o644); err != nil {
		t.Fatal(err)
	}
	sessions, _, err := s.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].AgentSessionIDHistory != nil {
		t.Fatalf("expected nil history on old-format file, got %+v", sessions)
	}
}

func TestAgentStatusSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	info := &model.AgentStatusInfo{Status: model.AgentWorking, UpdatedAt: "2026-07-31T00:00:00Z"}
	if err := s.SaveStatus("sess1", info); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadStatus("sess1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != model.AgentWorking {
		t.Fatalf("got = %+v", got)
	}

	s.RemoveStatus("sess1")
	got, err = s.LoadStatus("sess1")
	if err != nil || got != nil {
		t.Fatalf("expected nil after removal, got %+v, err %v", got, err)
	}
}

func TestLoadStatusAbsentIsNilNotError(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	got, err := s.LoadStatus("missing")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) for absent sidecar, got (%+v, %v)", got, err)
	}
}
