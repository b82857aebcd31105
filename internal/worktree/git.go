// Package worktree wraps the git subcommands KILD needs to create,
// inspect, and tear down per-kild worktrees. It shells out to the `git`
// binary through a small `run` helper plus an error classifier.
package worktree

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Git wraps git worktree/branch operations rooted at a repository.
type Git struct {
	// RepoRoot is the main repository's root (not a worktree path).
	RepoRoot string
}

// New returns a Git wrapper rooted at repoRoot.
func New(repoRoot string) *Git {
	return &Git{RepoRoot: repoRoot}
}

func (g *Git) run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	} else {
		cmd.Dir = g.RepoRoot
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), stderrStr)
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// DetectProject walks up from startDir to find the enclosing git
// repository's top-level directory.
func DetectProject(startDir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = startDir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// WorktreePath is the conventional location for a branch's worktree:
// <project>/.kild-worktrees/<branch with / replaced by _>.
func WorktreePath(projectRoot, sanitizedBranch string) string {
	return projectRoot + "/.kild-worktrees/" + sanitizedBranch
}

// CreateWorktree creates a new branch and worktree from base. If fetch is
// true, the remote is fetched first; fetch failure is surfaced with a
// hint to retry with --no-fetch (handled by the caller via Hint()).
func (g *Git) CreateWorktree(branch, base, path string, fetch bool) error {
	if fetch {
		if _, err := g.FetchRemote("origin", base); err != nil {
			return &FetchError{Err: err}
		}
	}
	startPoint := base
	if fetch {
		startPoint = "origin/" + base
	}
	_, err := g.run("", "worktree", "add", "-b", branch, path, startPoint)
	if err != nil {
		return fmt.Errorf("creating worktree: %w", err)
	}
	return nil
}

// RemoveWorktree removes a worktree. force maps to `git worktree remove --force`.
func (g *Git) RemoveWorktree(path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := g.run("", args...)
	return err
}

// DeleteBranch force-deletes a local branch after its worktree is gone.
func (g *Git) DeleteBranch(branch string) error {
	_, err := g.run("", "branch", "-D", branch)
	return err
}

// FetchRemote fetches a single branch from remote.
func (g *Git) FetchRemote(remote, branch string) (string, error) {
	return g.run("", "fetch", remote, branch)
}

// FetchAll fetches all remotes once, used by `sync --all` to avoid one
// fetch per kild.
func (g *Git) FetchAll() error {
	_, err := g.run("", "fetch", "--all")
	return err
}

// RebaseWorktree rebases the worktree at path onto base. Fails loud: no
// auto-abort on conflict.
func (g *Git) RebaseWorktree(path, base string) error {
	_, err := g.run(path, "rebase", base)
	return err
}

// FetchError wraps a fetch failure so callers can attach the --no-fetch hint.
type FetchError struct{ Err error }

func (e *FetchError) Error() string { return fmt.Sprintf("fetch failed: %v", e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// WorktreeStatus summarizes `git status --porcelain` for a worktree.
type WorktreeStatus struct {
	Clean          bool
	UncommittedCount int
	UntrackedCount   int
	Ahead, Behind    int
}

// GetWorktreeStatus reports uncommitted/untracked file counts and the
// ahead/behind count vs the branch's upstream.
func (g *Git) GetWorktreeStatus(path string) (*WorktreeStatus, error) {
	out, err := g.run(path, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	status := &WorktreeStatus{}
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "??") {
			status.UntrackedCount++
		} else {
			status.UncommittedCount++
		}
	}
	status.Clean = status.UncommittedCount == 0 && status.UntrackedCount == 0

	aheadBehind, err := g.run(path, "rev-list", "--left-right", "--count", "HEAD...@{u}")
	if err == nil {
		parts := strings.Fields(aheadBehind)
		if len(parts) == 2 {
			status.Ahead, _ = strconv.Atoi(parts[0])
			status.Behind, _ = strconv.Atoi(parts[1])
		}
	}
	return status, nil
}

// DiffStats summarizes a worktree's diff (staged or unstaged).
type DiffStats struct {
	FilesChanged int
	Insertions   int
	Deletions    int
	Raw          string
}

// GetDiffStats returns the diffstat for the worktree, optionally staged-only.
func (g *Git) GetDiffStats(path string, staged bool) (*DiffStats, error) {
	args := []string{"diff", "--shortstat"}
	if staged {
		args = append(args, "--staged")
	}
	out, err := g.run(path, args...)
	if err != nil {
		return nil, err
	}
	return parseShortstat(out), nil
}

func parseShortstat(s string) *DiffStats {
	d := &DiffStats{Raw: s}
	fields := strings.Split(s, ",")
	for _, f := range fields {
		f = strings.TrimSpace(f)
		switch {
		case strings.Contains(f, "file"):
			fmt.Sscanf(f, "%d", &d.FilesChanged)
		case strings.Contains(f, "insertion"):
			fmt.Sscanf(f, "%d", &d.Insertions)
		case strings.Contains(f, "deletion"):
			fmt.Sscanf(f, "%d", &d.Deletions)
		}
	}
	return d
}

// Commit is a single entry from `git log`.
type Commit struct {
	Hash    string
	Subject string
}

// ListCommits returns the last n commits on the worktree's current branch.
func (g *Git) ListCommits(path string, n int) ([]Commit, error) {
	out, err := g.run(path, "log", fmt.Sprintf("-%d", n), "--pretty=format:%h%x09%s")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		commits = append(commits, Commit{Hash: parts[0], Subject: parts[1]})
	}
	return commits, nil
}

// SafetyInfo is the pre-destroy report: blockers must be force-overridden,
// warnings merely inform.
type SafetyInfo struct {
	Blockers []string
	Warnings []string
}

// Blocked reports whether destroy should refuse without --force.
func (s *SafetyInfo) Blocked() bool { return len(s.Blockers) > 0 }

// SafetyInfo reports uncommitted/unpushed state ahead of a destroy.
// Uncommitted changes are a blocker; diverged/unpushed commits are a
// warning only.
func (g *Git) SafetyInfo(path string) (*SafetyInfo, error) {
	info := &SafetyInfo{}
	status, err := g.GetWorktreeStatus(path)
	if err != nil {
		// Worktree may already be gone; treat as nothing to protect.
		return info, nil
	}
	if !status.Clean {
		info.Blockers = append(info.Blockers, fmt.Sprintf("%d uncommitted file(s)", status.UncommittedCount+status.UntrackedCount))
	}
	if status.Ahead > 0 {
		info.Warnings = append(info.Warnings, fmt.Sprintf("%d commit(s) not pushed upstream", status.Ahead))
	}
	if status.Behind > 0 {
		info.Warnings = append(info.Warnings, fmt.Sprintf("branch has diverged, %d commit(s) behind upstream", status.Behind))
	}
	return info, nil
}

// CheckBranch reports whether branch exists in the repository.
func (g *Git) CheckBranch(branch string) (bool, error) {
	_, err := g.run("", "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	if err != nil {
		return false, nil
	}
	return true, nil
}
