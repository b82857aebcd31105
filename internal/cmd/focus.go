package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kild-dev/kild/internal/probe"
)

var hideAll bool

var focusCmd = &cobra.Command{
	Use:     "focus <branch>",
	GroupID: GroupWork,
	Short:   "Bring a session's terminal window to the front",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLastAgentWindow(args[0], probe.FocusTerminal)
	},
}

var hideCmd = &cobra.Command{
	Use:     "hide [branch]",
	GroupID: GroupWork,
	Short:   "Hide a session's terminal window",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runHide,
}

func init() {
	hideCmd.Flags().BoolVar(&hideAll, "all", false, "hide every known session's window")
	rootCmd.AddCommand(focusCmd)
	rootCmd.AddCommand(hideCmd)
}

func runHide(cmd *cobra.Command, args []string) error {
	var branch string
	if len(args) == 1 {
		branch = args[0]
	}
	targets, err := resolveTargets(branch, hideAll)
	if err != nil {
		return err
	}
	return runBatch(targets, func(b string) error {
		return withLastAgentWindow(b, probe.HideTerminal)
	})
}

func withLastAgentWindow(branch string, action func(t probe.TerminalType, windowID string) error) error {
	sess, err := d.store.FindByName(branch)
	if err != nil {
		return err
	}
	last := sess.LastAgent()
	if last == nil || last.TerminalWindowID == "" {
		return fmt.Errorf("session %q has no terminal window to control (daemon-mode sessions have no window)", branch)
	}
	return action(probe.TerminalType(last.TerminalType), last.TerminalWindowID)
}
