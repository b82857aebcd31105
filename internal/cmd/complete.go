package cmd

import (
	"github.com/spf13/cobra"
)

var completeCmd = &cobra.Command{
	Use:     "complete <branch>",
	GroupID: GroupWork,
	Short:   "Mark a session complete, deleting its remote branch once merged",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return d.manager.Complete(args[0])
	},
}

func init() {
	rootCmd.AddCommand(completeCmd)
}
