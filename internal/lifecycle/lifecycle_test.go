package lifecycle

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/kild-dev/kild/internal/agent"
	"github.com/kild-dev/kild/internal/config"
	"github.com/kild-dev/kild/internal/dropbox"
	"github.com/kild-dev/kild/internal/kilderr"
	"github.com/kild-dev/kild/internal/kildpaths"
	"github.com/kild-dev/kild/internal/model"
	"github.com/kild-dev/kild/internal/store"
)

func mustRun(t *testing.T, dir, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=kild-test", "GIT_AUTHOR_EMAIL=kild@test.local",
		"GIT_COMMITTER_NAME=kild-test", "GIT_COMMITTER_EMAIL=kild@test.local",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("%s %v: %v\n%s", name, args, err, out)
	}
}

func newTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	mustRun(t, dir, "git", "init", "-q", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustRun(t, dir, "git", "add", "README.md")
	mustRun(t, dir, "git", "commit", "-q", "-m", "initial")
	return dir
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	repo := newTestRepo(t)

	root := t.TempDir()
	paths := &kildpaths.Paths{
		Root:      root,
		Bin:       filepath.Join(root, "bin"),
		Hooks:     filepath.Join(root, "hooks"),
		Shim:      filepath.Join(root, "shim"),
		Fleet:     filepath.Join(root, "fleet"),
		Sessions:  filepath.Join(root, "sessions"),
		SocketDir: filepath.Join(root, "run"),
	}
	cfg := config.Default()
	st := store.New(paths.Sessions, slog.Default())
	db := dropbox.New(paths, cfg.IsFleetBrain, nil)
	return New(st, cfg, paths, db, slog.Default()), repo
}

// sessionInWorktree provisions a real worktree off repo and returns a
// Session record pointing at it, mirroring what Create would have built,
// without going through spawn/daemon machinery.
func sessionInWorktree(t *testing.T, m *Manager, repo, branch string) *model.Session {
	t.Helper()
	mustRun(t, repo, "git", "worktree", "add", "-b", branch,
		filepath.Join(repo, ".kild-worktrees", branch), "main")

	now := time.Now().UTC().Format(time.RFC3339)
	sess := &model.Session{
		ID:           "proj_" + branch,
		ProjectID:    "proj",
		Branch:       branch,
		WorktreePath: filepath.Join(repo, ".kild-worktrees", branch),
		Agent:        string(agent.Shell),
		Status:       model.StatusActive,
		CreatedAt:    now,
		LastActivity: now,
		RuntimeMode:  model.RuntimeTerminal,
	}
	if err := m.Store.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return sess
}

func TestResolveCreateModePrecedence(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultRuntimeMode = string(model.RuntimeDaemon)

	if mode, src := resolveCreateMode(model.RuntimeTerminal, cfg); mode != model.RuntimeTerminal || src != "flag" {
		t.Fatalf("explicit flag should win, got %v/%v", mode, src)
	}
	if mode, src := resolveCreateMode("", cfg); mode != model.RuntimeDaemon || src != "config" {
		t.Fatalf("config should win over default, got %v/%v", mode, src)
	}
	cfg.DefaultRuntimeMode = ""
	if mode, src := resolveCreateMode("", cfg); mode != model.RuntimeTerminal || src != "default" {
		t.Fatalf("bare default expected, got %v/%v", mode, src)
	}
}

func TestResolveOpenModePrefersStoredOverConfig(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultRuntimeMode = string(model.RuntimeDaemon)

	mode, src := resolveOpenMode("", model.RuntimeTerminal, cfg)
	if mode != model.RuntimeTerminal || src != "session" {
		t.Fatalf("stored session mode should beat config default, got %v/%v", mode, src)
	}

	mode, src = resolveOpenMode(model.RuntimeDaemon, model.RuntimeTerminal, cfg)
	if mode != model.RuntimeDaemon || src != "flag" {
		t.Fatalf("explicit flag should beat stored mode, got %v/%v", mode, src)
	}
}

func TestResolveOpenAgentFallsBackFromShell(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultAgent = string(agent.Claude)
	sess := &model.Session{Agent: string(agent.Shell)}

	got := resolveOpenAgent(sess, "", cfg)
	if got != agent.Claude {
		t.Fatalf("expected fallback to default agent, got %v", got)
	}
	if sess.Agent != string(agent.Claude) {
		t.Fatalf("resolveOpenAgent should persist the resolved agent onto the session, got %q", sess.Agent)
	}
}

func TestResolveOpenAgentExplicitOverrideWins(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultAgent = string(agent.Claude)
	sess := &model.Session{Agent: string(agent.Claude)}

	got := resolveOpenAgent(sess, agent.Shell, cfg)
	if got != agent.Shell {
		t.Fatalf("explicit --no-agent override should be honored, got %v", got)
	}
	if sess.Agent != string(agent.Shell) {
		t.Fatalf("override should persist onto the session, got %q", sess.Agent)
	}
}

func TestAllocatePortsSkipsClaimedBlocks(t *testing.T) {
	cfg := config.Default()
	cfg.PortRangeBase = 1000
	cfg.PortRangeSize = 10

	existing := []*model.Session{
		{Ports: model.PortRange{Start: 1000, End: 1009}},
	}
	got := allocatePorts(existing, cfg)
	if got.Start != 1010 || got.End != 1019 {
		t.Fatalf("expected the next block after the claimed one, got %+v", got)
	}
}

func TestAllocatePortsFirstSession(t *testing.T) {
	cfg := config.Default()
	got := allocatePorts(nil, cfg)
	if got.Start != cfg.PortRangeBase || got.End != cfg.PortRangeBase+cfg.PortRangeSize-1 {
		t.Fatalf("expected the base block with no existing sessions, got %+v", got)
	}
}

func TestOpenResumeWithoutSessionIdFails(t *testing.T) {
	m, repo := newTestManager(t)
	sess := sessionInWorktree(t, m, repo, "feat/resume-empty")

	_, err := m.Open(sess.Branch, OpenRequest{Resume: true})
	var want *kilderr.ResumeNoSessionId
	if !asTarget(err, &want) {
		t.Fatalf("expected ResumeNoSessionId, got %v", err)
	}
}

func TestOpenResumeUnsupportedAgentFails(t *testing.T) {
	m, repo := newTestManager(t)
	sess := sessionInWorktree(t, m, repo, "feat/resume-unsupported")
	sess.Agent = string(agent.Kiro)
	sess.AgentSessionID = "tok-123"
	if err := m.Store.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, err := m.Open(sess.Branch, OpenRequest{Resume: true})
	var want *kilderr.ResumeUnsupported
	if !asTarget(err, &want) {
		t.Fatalf("expected ResumeUnsupported, got %v", err)
	}
}

func asTarget[T any](err error, target *T) bool {
	if e, ok := err.(T); ok {
		*target = e
		return true
	}
	return false
}

func TestDestroyRefusesOnUncommittedChangesWithoutForce(t *testing.T) {
	m, repo := newTestManager(t)
	sess := sessionInWorktree(t, m, repo, "feat/dirty")

	if err := os.WriteFile(filepath.Join(sess.WorktreePath, "dirty.txt"), []byte("wip"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := m.Destroy(sess.Branch, false); err == nil {
		t.Fatal("expected Destroy to refuse on uncommitted changes")
	}
	if _, err := m.Store.FindByName(sess.Branch); err != nil {
		t.Fatalf("session should still be persisted after a refused destroy: %v", err)
	}
}

func TestDestroyForceRemovesWorktreeAndSession(t *testing.T) {
	m, repo := newTestManager(t)
	sess := sessionInWorktree(t, m, repo, "feat/force-destroy")

	if err := os.WriteFile(filepath.Join(sess.WorktreePath, "dirty.txt"), []byte("wip"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := m.Destroy(sess.Branch, true); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := os.Stat(sess.WorktreePath); !os.IsNotExist(err) {
		t.Fatalf("expected worktree to be removed, stat err = %v", err)
	}
	if _, err := m.Store.FindByName(sess.Branch); err == nil {
		t.Fatal("expected session record to be gone after destroy")
	}
}

func TestStopClearsAgentsButKeepsSession(t *testing.T) {
	m, repo := newTestManager(t)
	sess := sessionInWorktree(t, m, repo, "feat/stop-me")
	sess.Agents = []model.AgentProcess{{SpawnID: "x_0", ProcessID: 0}}
	sess.AgentSessionID = "keep-me"
	if err := m.Store.Save(sess); err != nil {
		t.Fatal(err)
	}

	if err := m.Stop(sess.Branch); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	got, err := m.Store.FindByName(sess.Branch)
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if len(got.Agents) != 0 {
		t.Fatalf("expected agents cleared, got %+v", got.Agents)
	}
	if got.Status != model.StatusStopped {
		t.Fatalf("expected status stopped, got %v", got.Status)
	}
	if got.AgentSessionID != "keep-me" {
		t.Fatal("Stop must not clear the resume token, a later Open needs it")
	}
}

func TestBatchAllAggregatesFailures(t *testing.T) {
	m, repo := newTestManager(t)
	sessionInWorktree(t, m, repo, "feat/ok")
	bad := sessionInWorktree(t, m, repo, "feat/bad")
	if err := os.WriteFile(filepath.Join(bad.WorktreePath, "dirty.txt"), []byte("wip"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := m.All(func(branch string) error {
		return m.Destroy(branch, false)
	})

	if result.OK() {
		t.Fatal("expected at least one failure")
	}
	if len(result.Succeeded) != 1 || result.Succeeded[0] != "feat/ok" {
		t.Fatalf("expected feat/ok to succeed, got %+v", result.Succeeded)
	}
	if _, failed := result.Failed["feat/bad"]; !failed {
		t.Fatalf("expected feat/bad to be reported as failed, got %+v", result.Failed)
	}
}
