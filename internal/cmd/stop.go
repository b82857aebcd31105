package cmd

import (
	"github.com/spf13/cobra"
)

var stopAll bool

var stopCmd = &cobra.Command{
	Use:     "stop [branch]",
	GroupID: GroupWork,
	Short:   "Kill a session's agent processes, keeping the worktree",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runStop,
}

func init() {
	stopCmd.Flags().BoolVar(&stopAll, "all", false, "stop every known session")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	var branch string
	if len(args) == 1 {
		branch = args[0]
	}
	targets, err := resolveTargets(branch, stopAll)
	if err != nil {
		return err
	}
	return runBatch(targets, d.manager.Stop)
}
