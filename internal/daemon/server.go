package daemon

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/gofrs/flock"
)

// Server is the long-lived PTY daemon process: one per user, listening
// on a unix socket and holding every agent session's PTY alive across
// GUI/CLI attach and detach cycles.
type Server struct {
	log        *slog.Logger
	socketPath string
	lockPath   string

	lock *flock.Flock

	mu       sync.Mutex
	sessions map[string]*session

	tmuxMu sync.Mutex
	shims  map[string]*tmuxRegistry
}

// NewServer constructs a Server bound to the given socket and lock
// paths (normally kildpaths.Paths.SocketPath() / DaemonLockPath()).
func NewServer(socketPath, lockPath string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:        log,
		socketPath: socketPath,
		lockPath:   lockPath,
		sessions:   make(map[string]*session),
		shims:      make(map[string]*tmuxRegistry),
	}
}

// Listen acquires the single-instance lock and binds the unix socket,
// removing a stale socket file left by a crashed prior daemon. It
// returns ErrAlreadyRunning if another daemon already holds the lock.
func (s *Server) Listen() (net.Listener, error) {
	s.lock = flock.New(s.lockPath)
	locked, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", s.lockPath, err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.lock.Unlock()
		return nil, fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	return ln, nil
}

// Serve accepts connections until the listener is closed. Each
// connection is handled on its own goroutine; connections are
// independent of sessions, so one client disconnecting never disturbs
// another client attached to the same session.
func (s *Server) Serve(ln net.Listener) error {
	defer s.lock.Unlock()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	codec := newWireCodec(conn)

	for {
		cmd, err := codec.readCommand()
		if err != nil {
			return
		}
		s.dispatch(codec, cmd)
	}
}

func (s *Server) dispatch(codec *wireCodec, cmd *Command) {
	switch cmd.Type {
	case CmdCreateSession:
		s.handleCreate(codec, cmd)
	case CmdAttach:
		s.handleAttach(codec, cmd)
	case CmdWriteStdin:
		s.handleWriteStdin(codec, cmd)
	case CmdResize:
		s.handleResize(codec, cmd)
	case CmdKillSession:
		s.handleKill(codec, cmd)
	case CmdListSessions:
		s.handleList(codec)
	case CmdTmuxOp:
		s.handleTmuxOp(codec, cmd)
	default:
		codec.writeEvent(errorEvent("unknown command %q", cmd.Type))
	}
}

func (s *Server) handleCreate(codec *wireCodec, cmd *Command) {
	if len(cmd.Argv) == 0 {
		codec.writeEvent(errorEvent("create_session: argv is required"))
		return
	}
	pid, err := s.createSession(cmd.SessionID, cmd.Argv, cmd.Env, cmd.Rows, cmd.Cols)
	if err != nil {
		codec.writeEvent(errorEvent("create_session: %v", err))
		return
	}
	codec.writeEvent(Event{Type: EvtCreated, SessionID: cmd.SessionID, PID: pid})
}

// createSession spawns a new PTY-backed process under id and registers
// it in the session table. Both CmdCreateSession and the tmux shim's
// new-session/split-window ops (which each need a fresh child PTY)
// funnel through here.
func (s *Server) createSession(id string, argv []string, env map[string]string, rows, cols int) (int, error) {
	c := exec.Command(argv[0], argv[1:]...)
	procEnv := os.Environ()
	for k, v := range env {
		procEnv = append(procEnv, k+"="+v)
	}
	c.Env = procEnv
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if rows == 0 {
		rows = 24
	}
	if cols == 0 {
		cols = 80
	}

	ptyFile, err := pty.StartWithSize(c, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return 0, err
	}

	sess := newSession(id, ptyFile, c, s.log.With("session_id", id))
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	go func() {
		sess.run()
		s.mu.Lock()
		delete(s.sessions, sess.id)
		s.mu.Unlock()
		sess.close()
		_ = c.Wait()
	}()

	return sess.pid, nil
}

func (s *Server) lookup(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// handleAttach streams PtyOutput/PtyOutputDropped/SessionEvent events
// for one session to this connection until the client sends Detach,
// disconnects, or the session exits, matching the one-attach-per-
// connection shape the CLI and GUI clients both use (open a
// fresh connection per concurrent attach rather than multiplexing
// several session streams down one socket). The same connection also
// carries the attached client's WriteStdin/Resize/Detach commands
// (internal/daemon.Attachment sends these on its attach connection), so
// a second goroutine reads those while this one streams output; closing
// the connection on exit unblocks that reader rather than leaving it
// racing the next handleConn loop iteration.
func (s *Server) handleAttach(codec *wireCodec, cmd *Command) {
	sess, ok := s.lookup(cmd.SessionID)
	if !ok {
		codec.writeEvent(errorEvent("attach: unknown session %q", cmd.SessionID))
		return
	}

	cl, backlog := sess.attach()
	defer sess.detach(cl)

	if len(backlog) > 0 {
		if err := codec.writeEvent(Event{Type: EvtPtyOutput, SessionID: sess.id, Data: backlog}); err != nil {
			return
		}
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			next, err := codec.readCommand()
			if err != nil {
				return
			}
			switch next.Type {
			case CmdWriteStdin:
				sess.writeStdin(next.Data)
			case CmdResize:
				sess.resize(next.Rows, next.Cols)
			case CmdDetach:
				return
			}
		}
	}()

	defer func() {
		codec.close()
		<-readerDone
	}()

	for {
		select {
		case evt := <-cl.out:
			if err := codec.writeEvent(evt); err != nil {
				return
			}
			if evt.Type == EvtSessionEvent {
				return
			}
		case <-readerDone:
			return
		}
	}
}

func (s *Server) handleWriteStdin(codec *wireCodec, cmd *Command) {
	sess, ok := s.lookup(cmd.SessionID)
	if !ok {
		codec.writeEvent(errorEvent("write_stdin: unknown session %q", cmd.SessionID))
		return
	}
	if err := sess.writeStdin(cmd.Data); err != nil {
		codec.writeEvent(errorEvent("write_stdin: %v", err))
	}
}

func (s *Server) handleResize(codec *wireCodec, cmd *Command) {
	sess, ok := s.lookup(cmd.SessionID)
	if !ok {
		codec.writeEvent(errorEvent("resize: unknown session %q", cmd.SessionID))
		return
	}
	if err := sess.resize(cmd.Rows, cmd.Cols); err != nil {
		codec.writeEvent(errorEvent("resize: %v", err))
	}
}

func (s *Server) handleKill(codec *wireCodec, cmd *Command) {
	sess, ok := s.lookup(cmd.SessionID)
	if !ok {
		codec.writeEvent(errorEvent("kill_session: unknown session %q", cmd.SessionID))
		return
	}
	if err := sess.kill(); err != nil {
		codec.writeEvent(errorEvent("kill_session: %v", err))
	}
}

func (s *Server) handleList(codec *wireCodec) {
	s.mu.Lock()
	summaries := make([]SessionSummary, 0, len(s.sessions))
	for id, sess := range s.sessions {
		summaries = append(summaries, SessionSummary{
			SessionID: id,
			PID:       sess.pid,
			Attached:  sess.attachedCount(),
		})
	}
	s.mu.Unlock()
	codec.writeEvent(Event{Type: EvtSessions, Sessions: summaries})
}

// Shutdown kills every live session's process group. Used when the
// daemon itself is asked to stop (not on a per-session kill_session).
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.kill()
	}
}
