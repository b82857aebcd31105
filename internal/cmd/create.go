package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kild-dev/kild/internal/agent"
	"github.com/kild-dev/kild/internal/lifecycle"
	"github.com/kild-dev/kild/internal/model"
	"github.com/kild-dev/kild/internal/probe"
	"github.com/kild-dev/kild/internal/worktree"
)

var (
	createAgent     string
	createNoAgent   bool
	createBase      string
	createNoFetch   bool
	createNote      string
	createFlags     string
	createYolo      bool
	createStartup   string
	createTerminal  string
	createRuntime   string
)

var createCmd = &cobra.Command{
	Use:     "create <branch>",
	GroupID: GroupWork,
	Short:   "Create a worktree and spawn an agent on a new branch",
	Args:    cobra.ExactArgs(1),
	RunE:    runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createAgent, "agent", "", "agent to spawn (default: config default_agent)")
	createCmd.Flags().BoolVar(&createNoAgent, "no-agent", false, "spawn a bare shell instead of an agent")
	createCmd.Flags().StringVar(&createBase, "base", "", "base branch/ref to create from (default: main)")
	createCmd.Flags().BoolVar(&createNoFetch, "no-fetch", false, "skip fetching the remote before branching")
	createCmd.Flags().StringVar(&createNote, "note", "", "free-form note stored with the session")
	createCmd.Flags().StringVar(&createFlags, "flags", "", "extra flags passed through to the agent command, space-separated")
	createCmd.Flags().BoolVar(&createYolo, "yolo", false, "pass the agent's dangerous-permissions flag")
	createCmd.Flags().StringVar(&createStartup, "startup-command", "", "initial prompt delivered to the agent on spawn")
	createCmd.Flags().StringVar(&createTerminal, "terminal", "", "terminal emulator to launch (default: Terminal.app)")
	createCmd.Flags().StringVar(&createRuntime, "runtime-mode", "", "Terminal or Daemon (default: config default_runtime_mode)")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	branch := args[0]

	ag := agent.Name(createAgent)
	if createNoAgent {
		ag = agent.Shell
	} else if ag == "" {
		ag = agent.Name(d.config.DefaultAgent)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	projectRoot, err := worktree.DetectProject(cwd)
	if err != nil {
		return err
	}

	var extraFlags []string
	if createFlags != "" {
		extraFlags = strings.Fields(createFlags)
	}

	var runtimeMode model.RuntimeMode
	if createRuntime != "" {
		runtimeMode = model.RuntimeMode(createRuntime)
	}

	result, err := d.manager.Create(lifecycle.CreateRequest{
		ProjectRoot:   projectRoot,
		Branch:        branch,
		Agent:         ag,
		Note:          createNote,
		Base:          createBase,
		NoFetch:       createNoFetch,
		Yolo:          createYolo,
		ExtraFlags:    extraFlags,
		InitialPrompt: createStartup,
		RuntimeMode:   runtimeMode,
		Terminal:      probe.TerminalType(createTerminal),
	})
	if err != nil {
		return err
	}

	fmt.Printf("created %s (agent=%s, runtime=%s via %s)\n", branch, ag, result.Session.RuntimeMode, result.ModeSource)
	if verbose {
		fmt.Printf("  worktree: %s\n", result.Session.WorktreePath)
	}
	return nil
}
