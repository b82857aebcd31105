package lifecycle

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kild-dev/kild/internal/daemon"
	"github.com/kild-dev/kild/internal/model"
	"github.com/kild-dev/kild/internal/probe"
	"github.com/kild-dev/kild/internal/worktree"
)

// Stop kills every AgentProcess in the session and clears the agents
// list, but leaves agent_session_id/task_list_id/runtime_mode intact so
// a later Open can resume cleanly. The worktree is never touched.
func (m *Manager) Stop(branch string) error {
	sess, err := m.Store.FindByName(branch)
	if err != nil {
		return err
	}

	m.killAgents(sess)

	sess.Agents = nil
	sess.Status = model.StatusStopped
	sess.LastActivity = time.Now().UTC().Format(time.RFC3339)
	return m.Store.Save(sess)
}

// Complete refuses on uncommitted changes (never bypassable) and, if
// the branch's PR is already merged, deletes the remote branch via the
// GitHub CLI when available.
func (m *Manager) Complete(branch string) error {
	sess, err := m.Store.FindByName(branch)
	if err != nil {
		return err
	}

	g := repoGit(sess)
	safety, err := g.SafetyInfo(sess.WorktreePath)
	if err != nil {
		return err
	}
	if safety.Blocked() {
		return fmt.Errorf("branch %q has uncommitted changes: %s", branch, strings.Join(safety.Blockers, "; "))
	}

	if merged := prMerged(branch); merged {
		deleteRemoteBranch(branch)
	}

	sess.Status = model.StatusCompleted
	sess.LastActivity = time.Now().UTC().Format(time.RFC3339)
	return m.Store.Save(sess)
}

// Destroy kills all agent processes, removes the worktree and branch,
// and removes the session's persisted state. force=false refuses on
// uncommitted changes (warns-only on unpushed).
func (m *Manager) Destroy(branch string, force bool) error {
	sess, err := m.Store.FindByName(branch)
	if err != nil {
		return err
	}

	g := repoGit(sess)
	if !force {
		safety, err := g.SafetyInfo(sess.WorktreePath)
		if err != nil {
			return err
		}
		if safety.Blocked() {
			return fmt.Errorf("branch %q has uncommitted changes: %s (use --force to discard)", branch, strings.Join(safety.Blockers, "; "))
		}
		for _, w := range safety.Warnings {
			m.Log.Warn("destroying branch with unresolved history", "branch", branch, "warning", w)
		}
	}

	m.killAgents(sess)

	if err := g.RemoveWorktree(sess.WorktreePath, force); err != nil {
		m.Log.Warn("removing worktree failed", "branch", branch, "error", err)
	}
	if err := g.DeleteBranch(branch); err != nil {
		m.Log.Warn("deleting branch failed", "branch", branch, "error", err)
	}

	m.Dropbox.CleanupDropbox(sess.ProjectID, branch)

	if err := m.Store.Remove(sess.ID); err != nil {
		return err
	}
	m.Store.RemoveStatus(sess.ID)
	return nil
}

// killAgents terminates every AgentProcess. Process-kill failures
// degrade (log and proceed) — they never block stop/destroy from
// completing.
func (m *Manager) killAgents(sess *model.Session) {
	for _, a := range sess.Agents {
		if a.DaemonSessionID != "" {
			m.killDaemonAgent(a.DaemonSessionID)
			continue
		}
		if a.ProcessID > 0 {
			if err := probe.KillProcess(a.ProcessID, killGrace); err != nil {
				m.Log.Warn("killing agent process failed", "pid", a.ProcessID, "spawn_id", a.SpawnID, "error", err)
			}
			continue
		}
		m.Log.Warn("agent process has no known pid or daemon session; leaving it to exit on its own", "spawn_id", a.SpawnID)
	}
}

func (m *Manager) killDaemonAgent(daemonSessionID string) {
	client, err := daemon.Dial(m.Paths.SocketPath())
	if err != nil {
		m.Log.Warn("killing daemon agent failed: daemon unreachable", "daemon_session_id", daemonSessionID, "error", err)
		return
	}
	defer client.Close()
	if err := client.KillSession(daemonSessionID); err != nil {
		m.Log.Warn("killing daemon agent failed", "daemon_session_id", daemonSessionID, "error", err)
	}
}

// repoGit derives the repository root from a worktree path
// (<root>/.kild-worktrees/<branch>) without needing a separate project
// registry.
func repoGit(sess *model.Session) *worktree.Git {
	root := strings.TrimSuffix(sess.WorktreePath, "/"+lastPathComponent(sess.WorktreePath))
	root = strings.TrimSuffix(root, "/.kild-worktrees")
	return worktree.New(root)
}

func lastPathComponent(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return p
	}
	return p[idx+1:]
}

// prMerged reports whether branch's PR is already merged, via the
// GitHub CLI when available. Absence of `gh` or any error is treated
// as "not merged" — complete then simply leaves the remote branch
// alone rather than failing the whole operation.
func prMerged(branch string) bool {
	out, err := exec.Command("gh", "pr", "view", branch, "--json", "state", "-q", ".state").Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "MERGED"
}

func deleteRemoteBranch(branch string) {
	exec.Command("git", "push", "origin", "--delete", branch).Run()
}
