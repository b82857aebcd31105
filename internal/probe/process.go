// Package probe answers two narrow questions the lifecycle manager needs
// about the outside world: is this PID alive, and can we focus/hide a
// given terminal window. Both are best-effort and report failures to the
// caller rather than swallowing them.
package probe

import (
	"fmt"
	"os"
	"syscall"
)

// IsProcessRunning reports whether pid is alive. It is best-effort: on
// POSIX this sends signal 0, which only tells us whether the process
// exists and is in our process group's signal namespace, not whether it
// is the same process that we originally spawned (PIDs can be reused).
// Callers that care about identity should additionally check the
// AgentProcess's recorded command or start time.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("finding process %d: %w", pid, err)
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true, nil
	}
	if err == syscall.ESRCH {
		return false, nil
	}
	if err == syscall.EPERM {
		// Process exists but we can't signal it — still "running" from
		// our point of view.
		return true, nil
	}
	return false, fmt.Errorf("signaling process %d: %w", pid, err)
}
