package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kild-dev/kild/internal/kilderr"
	"github.com/kild-dev/kild/internal/model"
)

var (
	agentStatusSelf   bool
	agentStatusNotify bool
)

var agentStatusCmd = &cobra.Command{
	Use:     "agent-status (<branch>|--self) <status>",
	GroupID: GroupInfo,
	Short:   "Report or read an agent's self-reported status (Idle/Working/Waiting)",
	Args:    cobra.RangeArgs(1, 2),
	RunE:    runAgentStatus,
}

func init() {
	agentStatusCmd.Flags().BoolVar(&agentStatusSelf, "self", false, "use KILD_SHIM_SESSION to identify the calling session (for hook scripts)")
	agentStatusCmd.Flags().BoolVar(&agentStatusNotify, "notify", false, "ring the terminal bell on transition to Waiting")
	rootCmd.AddCommand(agentStatusCmd)
}

func runAgentStatus(cmd *cobra.Command, args []string) error {
	sessionID, _, statusArg, err := parseAgentStatusArgs(args)
	if err != nil {
		return err
	}

	if statusArg == "" {
		info, err := d.store.LoadStatus(sessionID)
		if err != nil {
			return err
		}
		if info == nil {
			fmt.Println("unknown")
			return nil
		}
		fmt.Println(info.Status)
		return nil
	}

	value, ok := model.ParseAgentStatus(statusArg)
	if !ok {
		return &kilderr.InvalidAgentStatus{Status: statusArg}
	}
	info := &model.AgentStatusInfo{Status: value, UpdatedAt: time.Now().UTC().Format(time.RFC3339)}
	if err := d.store.SaveStatus(sessionID, info); err != nil {
		return err
	}
	if agentStatusNotify && value == model.AgentWaiting {
		fmt.Fprint(os.Stderr, "\a")
	}
	return nil
}

// parseAgentStatusArgs handles both "agent-status <branch> <status>" and
// "agent-status --self <status>" (the latter used by the Claude/Codex
// hook scripts, which only know their own KILD_SHIM_SESSION).
func parseAgentStatusArgs(args []string) (sessionID, branch, status string, err error) {
	if agentStatusSelf {
		sessionID = os.Getenv("KILD_SHIM_SESSION")
		if sessionID == "" {
			return "", "", "", fmt.Errorf("--self requires KILD_SHIM_SESSION to be set")
		}
		if len(args) == 1 {
			status = args[0]
		}
		return sessionID, "", status, nil
	}
	if len(args) == 0 {
		return "", "", "", fmt.Errorf("a branch argument or --self is required")
	}
	branch = args[0]
	sess, err := d.store.FindByName(branch)
	if err != nil {
		return "", "", "", err
	}
	if len(args) == 2 {
		status = args[1]
	}
	return sess.ID, branch, status, nil
}
