package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kild-dev/kild/internal/healthtui"
	"github.com/kild-dev/kild/internal/model"
	"github.com/kild-dev/kild/internal/probe"
	"github.com/kild-dev/kild/internal/style"
)

var (
	healthJSON     bool
	healthWatch    bool
	healthInterval int
)

var healthCmd = &cobra.Command{
	Use:     "health [branch]",
	GroupID: GroupDiag,
	Short:   "Report session health: process liveness, worktree, agent status",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "emit machine-readable JSON")
	healthCmd.Flags().BoolVar(&healthWatch, "watch", false, "auto-refresh in a live dashboard")
	healthCmd.Flags().IntVar(&healthInterval, "interval", 2, "refresh interval in seconds (with --watch)")
	rootCmd.AddCommand(healthCmd)
}

// Entry is one session's computed health, shared between the plain/JSON
// renderer here and the bubbletea dashboard in internal/healthtui.
type Entry = healthtui.Entry

func computeHealth(branch string) ([]Entry, error) {
	sessions, _, err := d.store.LoadAll()
	if err != nil {
		return nil, err
	}
	if branch != "" {
		filtered := sessions[:0]
		for _, s := range sessions {
			if s.Branch == branch {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
		if len(sessions) == 0 {
			return nil, fmt.Errorf("no kild found for branch %q", branch)
		}
	}

	entries := make([]Entry, 0, len(sessions))
	for _, s := range sessions {
		entries = append(entries, computeEntry(s))
	}
	return entries, nil
}

func computeEntry(s *model.Session) Entry {
	e := Entry{
		Branch:      s.Branch,
		Agent:       s.Agent,
		Status:      string(s.Status),
		RuntimeMode: string(s.RuntimeMode),
	}

	if _, err := os.Stat(s.WorktreePath); err != nil {
		e.WorktreeMissing = true
	}

	if last := s.LastAgent(); last != nil {
		e.ProcessID = last.ProcessID
		if last.ProcessID > 0 {
			running, err := probe.IsProcessRunning(last.ProcessID)
			e.ProcessRunning = running
			e.ProcessCheckErr = err != nil
		}
	} else if s.Status == model.StatusActive {
		// Legacy state: Active with zero agents.
		e.LegacyActiveNoAgents = true
	}

	if info, err := d.store.LoadStatus(s.ID); err == nil && info != nil {
		e.AgentStatus = string(info.Status)
		e.AgentStatusAt = info.UpdatedAt
	}

	e.Healthy = !e.WorktreeMissing && !e.LegacyActiveNoAgents &&
		(s.Status != model.StatusActive || e.ProcessRunning || e.ProcessID == 0)
	return e
}

func runHealth(cmd *cobra.Command, args []string) error {
	var branch string
	if len(args) == 1 {
		branch = args[0]
	}

	if healthWatch {
		if healthJSON {
			return fmt.Errorf("--watch and --json are mutually exclusive")
		}
		interval := time.Duration(healthInterval) * time.Second
		if interval <= 0 {
			interval = 2 * time.Second
		}
		return healthtui.Run(func() ([]Entry, error) { return computeHealth(branch) }, interval)
	}

	entries, err := computeHealth(branch)
	if err != nil {
		return err
	}

	if healthJSON {
		return printJSON(entries)
	}

	table := style.NewTable(
		style.Column{Name: "BRANCH", Width: 28},
		style.Column{Name: "STATUS", Width: 10},
		style.Column{Name: "PROCESS", Width: 10},
		style.Column{Name: "WORKTREE", Width: 10},
		style.Column{Name: "AGENT STATUS", Width: 14},
	)
	for _, e := range entries {
		table.AddRow(e.Branch, e.Status, e.ProcessColumn(), e.WorktreeColumn(), e.AgentStatus)
	}
	fmt.Print(table.Render())
	return nil
}
