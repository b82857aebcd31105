package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kild-dev/kild/internal/dropbox"
)

var injectCmd = &cobra.Command{
	Use:     "inject <branch> <message...>",
	GroupID: GroupWork,
	Short:   "Write a new task into a fleet worker's dropbox",
	Args:    cobra.MinimumNArgs(2),
	RunE:    runInject,
}

func init() {
	rootCmd.AddCommand(injectCmd)
}

// runInject is the CLI entry point for dropbox task injection, used
// both interactively (a brain operator pushing a task to a worker) and
// by the embedded Claude status hook (internal/hooks/claude.go), which
// shells back out to `kild inject <brain-branch> "$MSG"` to forward
// agent-status events up to the fleet brain.
func runInject(cmd *cobra.Command, args []string) error {
	branch := args[0]
	text := strings.Join(args[1:], " ")
	if strings.TrimSpace(text) == "" {
		return errors.New("inject: message is empty")
	}

	sess, err := d.store.FindByName(branch)
	if err != nil {
		return err
	}

	_, err = d.manager.Dropbox.WriteTask(sess.ProjectID, sess.Branch, text, []dropbox.DeliveryMethod{dropbox.Dropbox})
	return err
}
