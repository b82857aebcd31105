package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kild-dev/kild/internal/model"
	"github.com/kild-dev/kild/internal/probe"
	"github.com/kild-dev/kild/internal/util"
)

var (
	cleanupNoPID    bool
	cleanupStopped  bool
	cleanupOlderDays int
	cleanupOrphans  bool
)

var cleanupCmd = &cobra.Command{
	Use:     "cleanup",
	GroupID: GroupDiag,
	Short:   "Find and remove sessions and processes left in a bad state",
	Args:    cobra.NoArgs,
	RunE:    runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupNoPID, "no-pid", false, "remove sessions whose agent process no longer exists")
	cleanupCmd.Flags().BoolVar(&cleanupStopped, "stopped", false, "remove Stopped sessions")
	cleanupCmd.Flags().IntVar(&cleanupOlderDays, "older-than", 0, "remove sessions with no activity in N days")
	cleanupCmd.Flags().BoolVar(&cleanupOrphans, "orphans", false, "list agent processes orphaned outside any session")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if cleanupOrphans {
		return runCleanupOrphans()
	}

	sessions, _, err := d.store.LoadAll()
	if err != nil {
		return err
	}

	cutoff := time.Time{}
	if cleanupOlderDays > 0 {
		cutoff = time.Now().UTC().AddDate(0, 0, -cleanupOlderDays)
	}

	for _, sess := range sessions {
		if !shouldClean(sess, cutoff) {
			continue
		}
		if err := d.manager.Destroy(sess.Branch, true); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", sess.Branch, err)
			continue
		}
		fmt.Printf("removed %s\n", sess.Branch)
	}
	return nil
}

func shouldClean(sess *model.Session, cutoff time.Time) bool {
	if cleanupStopped && sess.Status == model.StatusStopped {
		return true
	}
	if cleanupNoPID && sess.HasAgents() {
		last := sess.LastAgent()
		if last.ProcessID > 0 {
			if running, _ := probe.IsProcessRunning(last.ProcessID); !running {
				return true
			}
		}
	}
	if !cutoff.IsZero() {
		last, err := time.Parse(time.RFC3339, sess.LastActivity)
		if err == nil && last.Before(cutoff) {
			return true
		}
	}
	return false
}

func runCleanupOrphans() error {
	procs, err := util.FindOrphanedClaudeProcesses()
	if err != nil {
		return err
	}
	if len(procs) == 0 {
		fmt.Println("no orphaned agent processes found")
		return nil
	}
	for _, p := range procs {
		fmt.Printf("pid=%d agent=%s age=%s cmd=%s\n", p.PID, p.Agent, p.EtimeRaw, p.Cmd)
	}
	return nil
}
