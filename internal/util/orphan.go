//go:build !windows

// Orphan detection backs `kild cleanup --orphans`: agent processes whose
// parent KILD process died (PPID=1) without the session ever being
// stopped, and whose cwd is still inside a kild-managed worktree.
//
// Uses ps -eo pid,ppid,etime,args, filtered by reparenting-to-init,
// scoped to KILD's closed agent set (internal/agent) instead of a single
// hardcoded process name.
package util

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kild-dev/kild/internal/agent"
)

// OrphanProcess is one orphaned agent process found by
// FindOrphanedClaudeProcesses.
type OrphanProcess struct {
	PID     int
	Agent   agent.Name
	Cmd     string
	EtimeRaw string
	Seconds int
}

// agentNeedles are the command substrings that identify an agent process
// in `ps` output, drawn from the command each agent.Descriptor resolves
// to by default (config overrides are not visible to `ps` and are out of
// scope for this best-effort scan).
var agentNeedles = map[string]agent.Name{
	"claude":   agent.Claude,
	"codex":    agent.Codex,
	"kiro":     agent.Kiro,
	"gemini":   agent.Gemini,
	"amp":      agent.Amp,
	"opencode": agent.OpenCode,
}

// FindOrphanedClaudeProcesses scans the process table for agent processes
// that have been reparented to PID 1 (their original KILD-spawned parent
// is gone) and whose cwd still points inside a kild worktree. The name
// matches the historical "Claude" scan this grew from, but it now covers
// every registered agent family, not just Claude.
func FindOrphanedClaudeProcesses() ([]OrphanProcess, error) {
	cmd := exec.Command("ps", "-eo", "pid,ppid,etime,args")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running ps: %w", err)
	}

	var orphans []OrphanProcess
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Scan() // header

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		ppid, err := strconv.Atoi(fields[1])
		if err != nil || ppid != 1 {
			continue
		}
		etime := fields[2]
		args := strings.Join(fields[3:], " ")

		ag, ok := matchAgent(args)
		if !ok || isShimOrWrapperProcess(args) {
			continue
		}
		if !isInKildWorktree(pid) {
			continue
		}

		seconds, _ := parseEtime(etime)
		orphans = append(orphans, OrphanProcess{
			PID: pid, Agent: ag, Cmd: args, EtimeRaw: etime, Seconds: seconds,
		})
	}
	return orphans, nil
}

func matchAgent(args string) (agent.Name, bool) {
	lower := strings.ToLower(args)
	for needle, name := range agentNeedles {
		if strings.Contains(lower, needle) {
			return name, true
		}
	}
	return "", false
}

// isShimOrWrapperProcess excludes processes that merely mention an agent
// name in passing: the tmux shim binary, login-shell wrappers still
// sourcing dotfiles, and desktop GUI helpers.
func isShimOrWrapperProcess(args string) bool {
	if strings.HasPrefix(args, "tmux ") || strings.Contains(args, "/.kild/bin/tmux") {
		return true
	}
	if strings.Contains(args, ".app/Contents/") {
		return true
	}
	return false
}

// parseEtime parses a `ps etime` value: [[DD-]HH:]MM:SS.
func parseEtime(s string) (int, error) {
	days := 0
	rest := s
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		d, err := strconv.Atoi(s[:idx])
		if err != nil {
			return 0, fmt.Errorf("parsing etime days %q: %w", s, err)
		}
		days = d
		rest = s[idx+1:]
	}

	parts := strings.Split(rest, ":")
	var hours, mins, secs int
	var err error
	switch len(parts) {
	case 2:
		mins, err = strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("parsing etime %q: %w", s, err)
		}
		secs, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("parsing etime %q: %w", s, err)
		}
	case 3:
		hours, err = strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("parsing etime %q: %w", s, err)
		}
		mins, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("parsing etime %q: %w", s, err)
		}
		secs, err = strconv.Atoi(parts[2])
		if err != nil {
			return 0, fmt.Errorf("parsing etime %q: %w", s, err)
		}
	default:
		return 0, fmt.Errorf("unrecognized etime format %q", s)
	}

	return days*86400 + hours*3600 + mins*60 + secs, nil
}

// getProcessCwd resolves a process's current working directory. Linux
// exposes this directly via /proc; other unixes fall back to lsof.
func getProcessCwd(pid int) string {
	if cwd := readProcCwd(pid); cwd != "" {
		return cwd
	}
	return lsofCwd(pid)
}

// readProcCwd reads /proc/<pid>/cwd, which exists on Linux but not on
// Darwin; a failed Readlink there is expected and just falls through to
// the lsof-based lookup.
func readProcCwd(pid int) string {
	link, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid))
	if err != nil {
		return ""
	}
	return link
}

func lsofCwd(pid int) string {
	out, err := exec.Command("lsof", "-a", "-p", strconv.Itoa(pid), "-d", "cwd", "-Fn").Output()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "n") {
			return strings.TrimPrefix(line, "n")
		}
	}
	return ""
}

// isInKildWorktree reports whether pid's cwd is inside a kild-managed
// worktree, i.e. some ancestor directory is named ".kild-worktrees" (see
// worktree.WorktreePath). Processes outside any worktree are never ours
// to clean up, no matter how agent-like their command line looks.
func isInKildWorktree(pid int) bool {
	cwd := getProcessCwd(pid)
	if cwd == "" {
		return false
	}
	for dir := cwd; dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		if filepath.Base(filepath.Dir(dir)) == ".kild-worktrees" {
			return true
		}
		if filepath.Base(dir) == ".kild-worktrees" {
			return true
		}
	}
	return false
}
