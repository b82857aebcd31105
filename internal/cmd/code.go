package cmd

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/kild-dev/kild/internal/util"
)

var codeEditor string

var codeCmd = &cobra.Command{
	Use:     "code <branch>",
	GroupID: GroupWork,
	Short:   "Open a session's worktree in an editor",
	Args:    cobra.ExactArgs(1),
	RunE:    runCode,
}

func init() {
	codeCmd.Flags().StringVar(&codeEditor, "editor", "", "editor command to launch (default: $EDITOR or code)")
	rootCmd.AddCommand(codeCmd)
}

func runCode(cmd *cobra.Command, args []string) error {
	sess, err := d.store.FindByName(args[0])
	if err != nil {
		return err
	}

	editor := codeEditor
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "code"
	}

	c := exec.Command(util.ExpandHome(editor), sess.WorktreePath)
	c.Stdout, c.Stderr = os.Stdout, os.Stderr
	return c.Run()
}
