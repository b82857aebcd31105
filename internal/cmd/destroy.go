package cmd

import (
	"github.com/spf13/cobra"
)

var (
	destroyAll   bool
	destroyForce bool
)

var destroyCmd = &cobra.Command{
	Use:     "destroy [branch]",
	GroupID: GroupWork,
	Short:   "Kill agents, remove the worktree and branch, and forget the session",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAll, "all", false, "destroy every known session")
	destroyCmd.Flags().BoolVar(&destroyForce, "force", false, "discard uncommitted changes instead of refusing")
	rootCmd.AddCommand(destroyCmd)
}

func runDestroy(cmd *cobra.Command, args []string) error {
	var branch string
	if len(args) == 1 {
		branch = args[0]
	}
	targets, err := resolveTargets(branch, destroyAll)
	if err != nil {
		return err
	}
	return runBatch(targets, func(b string) error {
		return d.manager.Destroy(b, destroyForce)
	})
}
