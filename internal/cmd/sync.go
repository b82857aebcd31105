package cmd

import (
	"github.com/spf13/cobra"
)

var (
	syncAll  bool
	syncBase string
)

var syncCmd = &cobra.Command{
	Use:     "sync [branch]",
	GroupID: GroupWork,
	Short:   "Fetch and rebase a session's worktree onto its base branch",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "sync every known session")
	syncCmd.Flags().StringVar(&syncBase, "base", "main", "base branch to rebase onto")
	rootCmd.AddCommand(syncCmd)
}

// runSync is fetch-then-rebase with a single fetch per --all
// invocation: the fetch happens once before the per-branch rebase loop,
// not once per branch.
func runSync(cmd *cobra.Command, args []string) error {
	var branch string
	if len(args) == 1 {
		branch = args[0]
	}
	targets, err := resolveTargets(branch, syncAll)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}

	// All targets share a project; the first session's worktree picks
	// the repo to fetch once for the whole batch.
	first, err := d.store.FindByName(targets[0])
	if err != nil {
		return err
	}
	if err := repoGitFor(first.WorktreePath).FetchAll(); err != nil {
		return err
	}

	return runBatch(targets, func(b string) error {
		sess, err := d.store.FindByName(b)
		if err != nil {
			return err
		}
		g := repoGitFor(sess.WorktreePath)
		return g.RebaseWorktree(sess.WorktreePath, syncBase)
	})
}
