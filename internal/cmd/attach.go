package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	xterm "golang.org/x/term"

	"github.com/kild-dev/kild/internal/daemon"
	"github.com/kild-dev/kild/internal/kilderr"
	"github.com/kild-dev/kild/internal/model"
)

var attachCmd = &cobra.Command{
	Use:     "attach <branch>",
	GroupID: GroupWork,
	Short:   "Attach this terminal to a daemon-mode session's PTY",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return attachToBranch(args[0])
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
}

// attachToBranch puts the calling terminal into raw mode and pumps bytes
// between it and a daemon-mode session's PTY until the agent exits, the
// daemon session is killed, or the local terminal is closed. Terminal-mode
// sessions have nothing to attach to here: their "attach window" is the
// terminal app window spawned at create/open time.
func attachToBranch(branch string) error {
	sess, err := d.store.FindByName(branch)
	if err != nil {
		return err
	}
	if sess.RuntimeMode != model.RuntimeDaemon {
		return fmt.Errorf("session %q runs in Terminal mode; its terminal window is already attached", branch)
	}
	last := sess.LastAgent()
	if last == nil || last.DaemonSessionID == "" {
		return fmt.Errorf("session %q has no running daemon-mode agent to attach to", branch)
	}

	rows, cols := 24, 80
	if w, h, sizeErr := xterm.GetSize(int(os.Stdin.Fd())); sizeErr == nil {
		cols, rows = w, h
	}

	att, err := daemon.Attach(d.paths.SocketPath(), last.DaemonSessionID)
	if err != nil {
		return &kilderr.DaemonError{Message: err.Error()}
	}
	defer att.Close()
	_ = att.Resize(rows, cols)

	return pumpAttach(att)
}

// pumpAttach relays bytes between the local terminal and an attached
// daemon session until the session ends or stdin closes. The caller's
// real terminal renders the PTY's escape sequences directly (raw
// passthrough); internal/term's VT100 emulator is for the GUI's embedded
// terminal view, which has no real terminal of its own to delegate to.
func pumpAttach(att *daemon.Attachment) error {
	fd := int(os.Stdin.Fd())
	oldState, rawErr := xterm.MakeRaw(fd)
	if rawErr == nil {
		defer xterm.Restore(fd, oldState)
	}

	sigwinch := make(chan os.Signal, 1)
	signal.Notify(sigwinch, syscall.SIGWINCH)
	defer signal.Stop(sigwinch)
	go func() {
		for range sigwinch {
			if w, h, sizeErr := xterm.GetSize(fd); sizeErr == nil {
				att.Resize(h, w)
			}
		}
	}()

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				att.WriteStdin(append([]byte(nil), buf[:n]...))
			}
			if err != nil {
				return
			}
		}
	}()

	for evt := range att.Events {
		switch evt.Type {
		case daemon.EvtPtyOutput:
			os.Stdout.Write(evt.Data)
		case daemon.EvtSessionEvent:
			fmt.Fprint(os.Stderr, "\r\n[kild] session ended\r\n")
			return nil
		case daemon.EvtError:
			return fmt.Errorf("daemon: %s", evt.Error)
		}
	}
	return nil
}
