package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/kild-dev/kild/internal/model"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:     "status <branch>",
	GroupID: GroupInfo,
	Short:   "Show one session's full record",
	Args:    cobra.ExactArgs(1),
	RunE:    runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit machine-readable JSON")
	rootCmd.AddCommand(statusCmd)
}

type statusView struct {
	*model.Session
	AgentStatus *model.AgentStatusInfo `json:"agent_status,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	sess, err := d.store.FindByName(args[0])
	if err != nil {
		return err
	}
	agentStatus, _ := d.store.LoadStatus(sess.ID)

	if statusJSON {
		return printJSON(statusView{Session: sess, AgentStatus: agentStatus})
	}

	fmt.Printf("branch:        %s\n", sess.Branch)
	fmt.Printf("status:        %s\n", sess.Status)
	fmt.Printf("agent:         %s\n", sess.Agent)
	fmt.Printf("runtime mode:  %s\n", sess.RuntimeMode)
	fmt.Printf("worktree:      %s\n", sess.WorktreePath)
	fmt.Printf("created:       %s\n", sess.CreatedAt)
	fmt.Printf("last activity: %s\n", sess.LastActivity)
	if sess.Note != "" {
		fmt.Printf("note:          %s\n", sess.Note)
	}
	if agentStatus != nil {
		fmt.Printf("agent status:  %s (as of %s)\n", agentStatus.Status, agentStatus.UpdatedAt)
	}
	for _, a := range sess.Agents {
		fmt.Printf("agent process: spawn=%s pid=%d daemon_session=%s terminal=%s\n",
			a.SpawnID, a.ProcessID, a.DaemonSessionID, a.TerminalWindowID)
	}
	printDropboxDetail(sess.ProjectID, sess.Branch)
	return nil
}

// printDropboxDetail renders the fleet dropbox's current task and worker
// report below the session record when they exist. Rendering is
// best-effort: a non-fleet session has no dropbox directory and prints
// nothing, and a markdown render failure falls back to the raw bytes.
func printDropboxDetail(projectID, branch string) {
	dir := d.paths.FleetDropboxDir(projectID, branch)
	sections := []struct {
		header string
		file   string
	}{
		{"current task", "task.md"},
		{"report", "report.md"},
	}
	var renderer *glamour.TermRenderer
	for _, s := range sections {
		raw, err := os.ReadFile(filepath.Join(dir, s.file))
		if err != nil || len(raw) == 0 {
			continue
		}
		if renderer == nil {
			renderer, err = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
			if err != nil {
				renderer = nil
			}
		}
		fmt.Printf("\n%s:\n", s.header)
		if renderer != nil {
			if out, err := renderer.Render(string(raw)); err == nil {
				fmt.Print(out)
				continue
			}
		}
		fmt.Println(string(raw))
	}
}
