// Package lifecycle implements the five session verbs:
// create, open, stop, complete, destroy. Each is a transaction over
// internal/worktree, internal/spawn, internal/store, and, depending on
// runtime mode and fleet membership, internal/daemon and
// internal/dropbox.
//
// One manager struct, one method per verb, errors surfaced with a
// remediation hint.
package lifecycle

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kild-dev/kild/internal/agent"
	"github.com/kild-dev/kild/internal/config"
	"github.com/kild-dev/kild/internal/daemon"
	"github.com/kild-dev/kild/internal/dropbox"
	"github.com/kild-dev/kild/internal/hooks"
	"github.com/kild-dev/kild/internal/identity"
	"github.com/kild-dev/kild/internal/kilderr"
	"github.com/kild-dev/kild/internal/kildpaths"
	"github.com/kild-dev/kild/internal/model"
	"github.com/kild-dev/kild/internal/probe"
	"github.com/kild-dev/kild/internal/spawn"
	"github.com/kild-dev/kild/internal/store"
	"github.com/kild-dev/kild/internal/worktree"
)

// killGrace is how long stop/destroy wait after SIGTERM before SIGKILL.
const killGrace = 5 * time.Second

// Manager wires together every package a session verb needs. One
// Manager is built per CLI invocation from the resolved Paths/Config.
type Manager struct {
	Store    *store.Store
	Config   *config.Config
	Paths    *kildpaths.Paths
	Dropbox  *dropbox.Manager
	Log      *slog.Logger
}

// New builds a Manager from already-resolved dependencies. Callers in
// internal/cmd construct the Store/Dropbox once per process and reuse
// this across subcommands.
func New(st *store.Store, cfg *config.Config, paths *kildpaths.Paths, db *dropbox.Manager, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{Store: st, Config: cfg, Paths: paths, Dropbox: db, Log: log}
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	ProjectRoot   string
	Branch        string
	Agent         agent.Name
	Note          string
	Base          string
	NoFetch       bool
	Yolo          bool
	ExtraFlags    []string
	InitialPrompt string
	RuntimeMode   model.RuntimeMode // explicit override, "" = unset
	Terminal      probe.TerminalType // explicit override, "" = Terminal.app default
}

// CreateResult carries the new session plus the mode-resolution
// provenance, so verbose output can show which tier picked the mode.
type CreateResult struct {
	Session    *model.Session
	ModeSource string
}

// Create provisions a new worktree, spawns the agent, and persists the
// session.
func (m *Manager) Create(req CreateRequest) (*CreateResult, error) {
	if !identity.ValidateBranchName(req.Branch) {
		return nil, &kilderr.InvalidBranchName{Name: req.Branch}
	}

	exists, err := m.Store.Exists(req.Branch)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("session for branch %q already exists", req.Branch)
	}

	canonicalRoot, err := identity.CanonicalizePath(req.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	projectID := identity.ProjectID(canonicalRoot)
	sanitized := identity.SanitizeBranch(req.Branch)
	worktreePath := worktree.WorktreePath(canonicalRoot, sanitized)

	g := worktree.New(canonicalRoot)
	base := req.Base
	if base == "" {
		base = "main"
	}
	if err := g.CreateWorktree(req.Branch, base, worktreePath, !req.NoFetch); err != nil {
		return nil, withFetchHint(err)
	}

	sessionID := identity.KildID(projectID, req.Branch)
	mode, modeSource := resolveCreateMode(req.RuntimeMode, m.Config)

	now := time.Now().UTC().Format(time.RFC3339)
	sess := &model.Session{
		ID:           sessionID,
		ProjectID:    projectID,
		Branch:       req.Branch,
		WorktreePath: worktreePath,
		Agent:        string(req.Agent),
		Status:       model.StatusActive,
		CreatedAt:    now,
		LastActivity: now,
		Ports:        allocatePorts(m.mustLoadAll(), m.Config),
		Note:         req.Note,
		RuntimeMode:  mode,
	}

	spawnID := fmt.Sprintf("%s_0", sessionID)
	if err := m.spawnAgent(sess, spawnID, spawnOptions{
		Yolo:          req.Yolo,
		ExtraArgs:     req.ExtraFlags,
		InitialPrompt: req.InitialPrompt,
		Terminal:      req.Terminal,
	}); err != nil {
		return nil, err
	}

	hooks.Setup(m.Paths, req.Agent, m.Log)

	if m.Config.IsFleetBrain(req.Branch) && agent.IsFleetCapable(req.Agent) {
		m.Dropbox.EnsureDropbox(projectID, req.Branch, req.Agent)
	}

	if req.InitialPrompt != "" {
		m.deliverInitialPrompt(sess, req.Agent, req.InitialPrompt)
	}

	if err := m.Store.Save(sess); err != nil {
		return nil, err
	}

	return &CreateResult{Session: sess, ModeSource: modeSource}, nil
}

type spawnOptions struct {
	Resume        bool
	ResumeToken   string
	Yolo          bool
	ExtraArgs     []string
	InitialPrompt string
	Terminal      probe.TerminalType
}

// spawnAgent builds the spawn.Request, launches it under the session's
// runtime mode, and appends the resulting AgentProcess record.
func (m *Manager) spawnAgent(sess *model.Session, spawnID string, opts spawnOptions) error {
	ag := agent.Name(sess.Agent)

	var newToken string
	if ag != agent.Shell {
		if desc, ok := agent.Lookup(ag); ok && desc.SupportsResume && !opts.Resume {
			newToken = uuid.NewString()
		}
	}

	buildReq := spawn.Request{
		SessionID:    sess.ID,
		Branch:       sess.Branch,
		Agent:        ag,
		AgentCommand: m.Config.AgentCommandOverride(ag),
		WorktreePath: sess.WorktreePath,
		Resume:       opts.Resume,
		ResumeToken:  opts.ResumeToken,
		NewToken:     newToken,
		Yolo:         opts.Yolo,
		ExtraArgs:    opts.ExtraArgs,
		TaskListID:   sess.TaskListID,
	}

	result, err := spawn.Build(buildReq, m.Paths)
	if err != nil {
		return err
	}

	isBrain := m.Config.IsFleetBrain(sess.Branch)
	m.Dropbox.InjectEnvVars(result.Env, sess.ProjectID, sess.Branch, ag, isBrain)

	proc := model.AgentProcess{
		Agent:     sess.Agent,
		SpawnID:   spawnID,
		Command:   result.Command,
		SpawnedAt: time.Now().UTC(),
	}

	switch sess.RuntimeMode {
	case model.RuntimeDaemon:
		pid, daemonID, err := m.spawnDaemon(sess.ID, spawnID, result)
		if err != nil {
			return err
		}
		proc.ProcessID = pid
		proc.DaemonSessionID = daemonID
	default:
		termType := opts.Terminal
		if termType == "" {
			termType = probe.TerminalTerminalApp
		}
		windowID, pid, err := m.spawnTerminal(sess, spawnID, result, termType)
		if err != nil {
			return err
		}
		proc.ProcessID = pid
		proc.TerminalWindowID = windowID
		proc.TerminalType = string(termType)
	}

	sess.Agents = append(sess.Agents, proc)
	if result.RotatedToken != "" {
		sess.RotateAgentSessionID(result.RotatedToken)
	}
	return nil
}

func (m *Manager) spawnDaemon(sessionID, spawnID string, result *spawn.Result) (pid int, daemonSessionID string, err error) {
	selfExe, err := os.Executable()
	if err != nil {
		return 0, "", &kilderr.DaemonError{Message: fmt.Sprintf("resolving own executable path: %v", err)}
	}
	client, err := daemon.EnsureRunning(selfExe, m.Paths.SocketPath(), m.Paths.SocketDir+"/kild-daemon.log")
	if err != nil {
		return 0, "", &kilderr.DaemonError{Message: err.Error()}
	}
	defer client.Close()

	daemonSessionID = spawnID
	pid, err = client.CreateSession(daemonSessionID, result.Argv, result.Env, 24, 80)
	if err != nil {
		return 0, "", &kilderr.DaemonError{Message: err.Error()}
	}
	return pid, daemonSessionID, nil
}

// spawnTerminal launches the agent in a new terminal window. A unique
// marker is spliced into the command line so the process can later be
// located by pgrep -f for stop/destroy — Terminal-mode sessions have no
// daemon-issued PID, only a window id.
func (m *Manager) spawnTerminal(sess *model.Session, spawnID string, result *spawn.Result, termType probe.TerminalType) (windowID string, pid int, err error) {
	marker := "KILD_SPAWN_ID=" + spawnID
	tagged := fmt.Sprintf(": %s; %s", marker, result.Command)

	windowID, err = probe.LaunchTerminal(termType, sess.WorktreePath, tagged)
	if err != nil {
		return "", 0, err
	}

	time.Sleep(300 * time.Millisecond)
	pid, findErr := findPIDByMarker(marker)
	if findErr != nil {
		m.Log.Warn("could not resolve terminal-mode agent pid; stop/destroy will rely on the window only", "spawn_id", spawnID, "error", findErr)
	}
	return windowID, pid, nil
}

func findPIDByMarker(marker string) (int, error) {
	out, err := exec.Command("pgrep", "-f", marker).Output()
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return 0, fmt.Errorf("pgrep found no process matching %q", marker)
	}
	var pid int
	if _, err := fmt.Sscanf(fields[0], "%d", &pid); err != nil {
		return 0, err
	}
	return pid, nil
}

// deliverInitialPrompt routes the startup prompt: fleet
// Claude sessions get it as dropbox task #1; everything else gets it
// stuffed into the PTY after a settle delay, which only daemon-mode
// sessions support (Terminal mode has no PTY handle to write to here —
// a known limitation, see DESIGN.md).
func (m *Manager) deliverInitialPrompt(sess *model.Session, ag agent.Name, prompt string) {
	// Only worker branches receive an initial dropbox task; the brain
	// branch is driven by the user directly, not by injected tasks.
	if agent.IsFleetCapable(ag) && ag == agent.Claude && !m.Config.IsFleetBrain(sess.Branch) {
		if _, err := m.Dropbox.WriteTask(sess.ProjectID, sess.Branch, prompt, []dropbox.DeliveryMethod{dropbox.InitialPrompt}); err != nil {
			m.Log.Warn("writing initial prompt as dropbox task failed", "branch", sess.Branch, "error", err)
		}
		return
	}

	if sess.RuntimeMode != model.RuntimeDaemon {
		m.Log.Warn("initial prompt requested in terminal mode has no PTY to stuff; skipping", "branch", sess.Branch)
		return
	}

	last := sess.LastAgent()
	if last == nil || last.DaemonSessionID == "" {
		return
	}
	daemonID := last.DaemonSessionID
	socketPath := m.Paths.SocketPath()
	go func() {
		time.Sleep(1500 * time.Millisecond)
		client, err := daemon.Dial(socketPath)
		if err != nil {
			m.Log.Warn("initial prompt PTY stuffing failed: daemon unreachable", "error", err)
			return
		}
		defer client.Close()
		if err := client.WriteStdin(daemonID, []byte(prompt+"\n")); err != nil {
			m.Log.Warn("initial prompt PTY stuffing failed", "error", err)
		}
	}()
}

func (m *Manager) mustLoadAll() []*model.Session {
	sessions, _, err := m.Store.LoadAll()
	if err != nil {
		return nil
	}
	return sessions
}

// withFetchHint passes a worktree fetch failure through unchanged; the
// --no-fetch remediation is attached by the CLI layer via kilderr.Hint,
// which recognizes *worktree.FetchError through any wrapping.
func withFetchHint(err error) error {
	return err
}
