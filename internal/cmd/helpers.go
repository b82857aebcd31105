package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kild-dev/kild/internal/kilderr"
	"github.com/kild-dev/kild/internal/lifecycle"
)

// silentExit carries a process exit code through cobra's error-returning
// RunE without cobra printing anything extra for it.
type silentExit struct{ code int }

func (s *silentExit) Error() string { return "" }

func newSilentExit(code int) error { return &silentExit{code: code} }

func asSilentExit(err error) (int, bool) {
	var s *silentExit
	if errors.As(err, &s) {
		return s.code, true
	}
	return 0, false
}

// printErr prints an error to stderr, appending a remediation hint when
// kilderr.Hint has one for this error kind.
func printErr(err error) {
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	if hint := kilderr.Hint(err); hint != "" {
		fmt.Fprintf(os.Stderr, "   Hint: %s\n", hint)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// resolveTargets expands a (branch, all) pair into the concrete branch
// list every verb operates over, the uniform `<branch> | --all` surface.
func resolveTargets(branch string, all bool) ([]string, error) {
	if all {
		sessions, _, err := d.store.LoadAll()
		if err != nil {
			return nil, err
		}
		branches := make([]string, 0, len(sessions))
		for _, s := range sessions {
			branches = append(branches, s.Branch)
		}
		return branches, nil
	}
	if branch == "" {
		return nil, errors.New("a branch argument or --all is required")
	}
	return []string{branch}, nil
}

// runBatch runs fn over each of targets, printing one ✅/❌ line per
// branch and a trailing summary, returning a silentExit(2) iff any
// failed.
func runBatch(targets []string, fn func(branch string) error) error {
	failedCount := 0
	for _, branch := range targets {
		if err := fn(branch); err != nil {
			failedCount++
			fmt.Fprintf(os.Stderr, "❌ %s: %v\n", branch, err)
			continue
		}
		fmt.Printf("✅ %s\n", branch)
	}
	if len(targets) > 1 {
		fmt.Printf("%d/%d succeeded\n", len(targets)-failedCount, len(targets))
	}
	if failedCount > 0 {
		return newSilentExit(2)
	}
	return nil
}

// repoRootFromWorktree derives a session's repository root from its
// conventional worktree path (<root>/.kild-worktrees/<branch>), the same
// convention internal/lifecycle uses, so the CLI layer never needs its
// own project registry either.
func repoRootFromWorktree(worktreePath string) string {
	idx := strings.Index(worktreePath, "/.kild-worktrees/")
	if idx < 0 {
		return worktreePath
	}
	return worktreePath[:idx]
}

// batchResultExit converts a lifecycle.BatchResult (used by verbs that
// delegate straight to Manager.All) into the same exit-2 convention.
func batchResultExit(r lifecycle.BatchResult) error {
	for _, branch := range r.Succeeded {
		fmt.Printf("✅ %s\n", branch)
	}
	for branch, err := range r.Failed {
		fmt.Fprintf(os.Stderr, "❌ %s: %v\n", branch, err)
	}
	total := len(r.Succeeded) + len(r.Failed)
	if total > 1 {
		fmt.Printf("%d/%d succeeded\n", len(r.Succeeded), total)
	}
	if !r.OK() {
		return newSilentExit(2)
	}
	return nil
}
