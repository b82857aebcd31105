package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cdCmd = &cobra.Command{
	Use:     "cd <branch>",
	GroupID: GroupWork,
	Short:   "Print a session's worktree path, for shell integration",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := d.store.FindByName(args[0])
		if err != nil {
			return err
		}
		fmt.Println(sess.WorktreePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cdCmd)
}
