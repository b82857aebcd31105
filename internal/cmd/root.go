// Package cmd implements the kild CLI's subcommand tree: one file per verb
// or verb-family, a shared persistent pre-run that resolves paths/config
// and builds the lifecycle.Manager every command uses.
//
// Layout: one file per verb or verb-family, helpers.go for shared
// flag/printing helpers, root.go for Execute()/group-IDs and the
// persistent pre-run.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kild-dev/kild/internal/config"
	"github.com/kild-dev/kild/internal/dropbox"
	"github.com/kild-dev/kild/internal/kildpaths"
	"github.com/kild-dev/kild/internal/lifecycle"
	"github.com/kild-dev/kild/internal/store"
	"github.com/kild-dev/kild/internal/style"
)

// Command group IDs, used by subcommands to organize help output.
const (
	GroupWork = "work"
	GroupInfo = "info"
	GroupDiag = "diag"
)

var (
	verbose bool
	noColor bool
)

// deps bundles every resolved dependency a subcommand needs. Built once
// in rootCmd's PersistentPreRunE and reused by every verb.
type deps struct {
	paths   *kildpaths.Paths
	config  *config.Config
	store   *store.Store
	dropbox *dropbox.Manager
	manager *lifecycle.Manager
	log     *slog.Logger
}

var d deps

var rootCmd = &cobra.Command{
	Use:           "kild",
	Short:         "kild manages agent worktrees: one branch, one worktree, one agent session",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
			style.NoColor()
		}
		return buildDeps()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupWork, Title: "Session Management:"},
		&cobra.Group{ID: GroupInfo, Title: "Information:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)
	rootCmd.SetHelpCommandGroupID(GroupDiag)
	rootCmd.SetCompletionCommandGroupID(GroupDiag)
}

func buildDeps() error {
	paths, err := kildpaths.Resolve()
	if err != nil {
		return fmt.Errorf("resolving paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("creating kild directories: %w", err)
	}

	cfg, err := config.Load(paths)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	st := store.New(paths.Sessions, log)
	db := dropbox.New(paths, cfg.IsFleetBrain, log)
	mgr := lifecycle.New(st, cfg, paths, db, log)

	d = deps{paths: paths, config: cfg, store: st, dropbox: db, manager: mgr, log: log}
	return nil
}

// Execute runs the root command and returns a process exit code, mapping
// a *silentExit sentinel error to its carried code (`--all`
// partial-failure is a silent exit(2)).
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := asSilentExit(err); ok {
			return code
		}
		printErr(err)
		return 1
	}
	return 0
}
