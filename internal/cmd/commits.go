package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var commitsN int

var commitsCmd = &cobra.Command{
	Use:     "commits <branch>",
	GroupID: GroupInfo,
	Short:   "List recent commits on a session's branch",
	Args:    cobra.ExactArgs(1),
	RunE:    runCommits,
}

func init() {
	commitsCmd.Flags().IntVarP(&commitsN, "number", "n", 10, "number of commits to show")
	rootCmd.AddCommand(commitsCmd)
}

func runCommits(cmd *cobra.Command, args []string) error {
	sess, err := d.store.FindByName(args[0])
	if err != nil {
		return err
	}
	g := repoGitFor(sess.WorktreePath)
	commits, err := g.ListCommits(sess.WorktreePath, commitsN)
	if err != nil {
		return err
	}
	for _, c := range commits {
		fmt.Printf("%s  %s\n", c.Hash, c.Subject)
	}
	return nil
}
