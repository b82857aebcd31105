package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kild-dev/kild/internal/worktree"
)

var (
	diffStaged bool
	diffStat   bool
)

var diffCmd = &cobra.Command{
	Use:     "diff <branch>",
	GroupID: GroupInfo,
	Short:   "Show a session's worktree diffstat",
	Args:    cobra.ExactArgs(1),
	RunE:    runDiff,
}

func init() {
	diffCmd.Flags().BoolVar(&diffStaged, "staged", false, "diff staged changes instead of the working tree")
	diffCmd.Flags().BoolVar(&diffStat, "stat", false, "force the --stat summary form (default)")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	sess, err := d.store.FindByName(args[0])
	if err != nil {
		return err
	}
	g := repoGitFor(sess.WorktreePath)
	stats, err := g.GetDiffStats(sess.WorktreePath, diffStaged)
	if err != nil {
		return err
	}
	fmt.Printf("%d file(s) changed, %d insertion(s), %d deletion(s)\n", stats.FilesChanged, stats.Insertions, stats.Deletions)
	return nil
}

func repoGitFor(worktreePath string) *worktree.Git {
	return worktree.New(repoRootFromWorktree(worktreePath))
}
