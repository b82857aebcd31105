package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kild-dev/kild/internal/agent"
	"github.com/kild-dev/kild/internal/lifecycle"
	"github.com/kild-dev/kild/internal/model"
)

var (
	openAgent    string
	openNoAgent  bool
	openYolo     bool
	openResume   bool
	openAll      bool
	openFlags    string
	openStartup  string
	openNoAttach bool
)

var openCmd = &cobra.Command{
	Use:     "open [branch]",
	GroupID: GroupWork,
	Short:   "Spawn a new agent process on an existing session",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runOpen,
}

func init() {
	openCmd.Flags().StringVar(&openAgent, "agent", "", "agent to spawn, overriding the session's stored agent")
	openCmd.Flags().BoolVar(&openNoAgent, "no-agent", false, "spawn a bare shell instead of an agent")
	openCmd.Flags().BoolVar(&openYolo, "yolo", false, "pass the agent's dangerous-permissions flag")
	openCmd.Flags().BoolVar(&openResume, "resume", false, "resume the agent's prior conversation")
	openCmd.Flags().BoolVar(&openAll, "all", false, "open every known session")
	openCmd.Flags().StringVar(&openFlags, "flags", "", "extra flags passed through to the agent command, space-separated")
	openCmd.Flags().StringVar(&openStartup, "startup-command", "", "initial prompt delivered to the new agent process")
	openCmd.Flags().BoolVar(&openNoAttach, "no-attach", false, "spawn the agent without foreground-attaching a daemon-mode session")
	rootCmd.AddCommand(openCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	var branch string
	if len(args) == 1 {
		branch = args[0]
	}
	targets, err := resolveTargets(branch, openAll)
	if err != nil {
		return err
	}

	var extraFlags []string
	if openFlags != "" {
		extraFlags = strings.Fields(openFlags)
	}

	var agentOverride agent.Name
	switch {
	case openNoAgent:
		agentOverride = agent.Shell
	case openAgent != "":
		agentOverride = agent.Name(openAgent)
	}

	err = runBatch(targets, func(b string) error {
		req := lifecycle.OpenRequest{
			Agent:         agentOverride,
			Resume:        openResume,
			Yolo:          openYolo,
			ExtraFlags:    extraFlags,
			InitialPrompt: openStartup,
			NoAttach:      openNoAttach,
		}
		result, err := d.manager.Open(b, req)
		if err != nil {
			return err
		}
		if verbose {
			fmt.Printf("%s: mode %s via %s\n", b, result.Session.RuntimeMode, result.ModeSource)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Auto-attach only makes sense for a single foreground target: --all
	// opens every session non-interactively, matching the other
	// multi-target verbs. Terminal-mode sessions are already "attached"
	// via the terminal window open spawned.
	if !openNoAttach && !openAll && len(targets) == 1 {
		sess, lookupErr := d.store.FindByName(targets[0])
		if lookupErr == nil && sess.RuntimeMode == model.RuntimeDaemon {
			return attachToBranch(targets[0])
		}
	}
	return nil
}
