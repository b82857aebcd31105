package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kild-dev/kild/internal/daemon"
	"github.com/kild-dev/kild/internal/kildpaths"
)

// daemonCmd runs the PTY daemon's accept loop in the foreground of the
// current process. It is never invoked by a human directly — internal/
// daemon.EnsureRunning forks `kild __daemon` detached the first time any
// verb needs a daemon-mode session.
var daemonCmd = &cobra.Command{
	Use:    "__daemon",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	paths, err := kildpaths.Resolve()
	if err != nil {
		return fmt.Errorf("resolving paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("creating kild directories: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	srv := daemon.NewServer(paths.SocketPath(), paths.DaemonLockPath(), log)
	ln, err := srv.Listen()
	if err != nil {
		return fmt.Errorf("daemon listen: %w", err)
	}
	log.Info("kild daemon listening", "socket", paths.SocketPath())
	return srv.Serve(ln)
}
