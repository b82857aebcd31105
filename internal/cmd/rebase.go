package cmd

import (
	"github.com/spf13/cobra"
)

var (
	rebaseAll  bool
	rebaseBase string
)

var rebaseCmd = &cobra.Command{
	Use:     "rebase [branch]",
	GroupID: GroupWork,
	Short:   "Rebase a session's worktree onto its base branch without fetching first",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runRebase,
}

func init() {
	rebaseCmd.Flags().BoolVar(&rebaseAll, "all", false, "rebase every known session")
	rebaseCmd.Flags().StringVar(&rebaseBase, "base", "main", "base branch to rebase onto")
	rootCmd.AddCommand(rebaseCmd)
}

// runRebase rebases without fetching: unlike sync, it rebases against
// whatever base ref is already present locally, and a conflict fails
// loud with no auto-abort.
func runRebase(cmd *cobra.Command, args []string) error {
	var branch string
	if len(args) == 1 {
		branch = args[0]
	}
	targets, err := resolveTargets(branch, rebaseAll)
	if err != nil {
		return err
	}
	return runBatch(targets, func(b string) error {
		sess, err := d.store.FindByName(b)
		if err != nil {
			return err
		}
		g := repoGitFor(sess.WorktreePath)
		return g.RebaseWorktree(sess.WorktreePath, rebaseBase)
	})
}
