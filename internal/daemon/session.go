package daemon

import (
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// backlogCap bounds how much recent PTY output a session replays to a
// client that attaches after the fact: enough scrollback to paint a
// useful screen, not the full history.
const backlogCap = 64 * 1024

// clientQueueCap is the bounded mailbox size per attached client. A
// client that falls behind (slow network, paused renderer) has its
// queue fill up; once full, further output for that client is dropped
// and counted rather than allowed to block the PTY reader — a slow GUI
// must never stall the agent underneath it.
const clientQueueCap = 256

// session owns one PTY-backed agent process and fans its output out to
// any number of attached clients.
//
// A single reader goroutine drains the PTY into a rolling backlog and
// an N-client broadcast, so a slow client never backpressures the PTY.
type session struct {
	id  string
	pid int

	ptyFile *os.File
	cmd     *exec.Cmd
	log     *slog.Logger

	mu       sync.Mutex
	backlog  []byte
	clients  map[*client]struct{}
	exited   bool
	exitErr  error
}

type client struct {
	out chan Event
}

func newSession(id string, ptyFile *os.File, cmd *exec.Cmd, log *slog.Logger) *session {
	return &session{
		id:      id,
		pid:     cmd.Process.Pid,
		ptyFile: ptyFile,
		cmd:     cmd,
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// run reads PTY output until EOF, fanning each chunk out to attached
// clients and appending to the replay backlog. It returns once the
// agent process's stdout is closed (normally because the process
// exited); the caller is responsible for reaping the process.
func (s *session) run() {
	buf := make([]byte, 32*1024)
	for {
		n, err := s.ptyFile.Read(buf)
		if n > 0 {
			s.broadcast(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			s.mu.Lock()
			s.exited = true
			s.exitErr = err
			clients := make([]*client, 0, len(s.clients))
			for c := range s.clients {
				clients = append(clients, c)
			}
			s.mu.Unlock()
			for _, c := range clients {
				s.deliver(c, Event{Type: EvtSessionEvent, SessionID: s.id, SessionState: "stopped"})
			}
			return
		}
	}
}

func (s *session) broadcast(data []byte) {
	s.mu.Lock()
	s.backlog = appendBacklog(s.backlog, data)
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	evt := Event{Type: EvtPtyOutput, SessionID: s.id, Data: data}
	for _, c := range clients {
		s.deliver(c, evt)
	}
}

// deliver enqueues evt for c without blocking. If c's queue is already
// full, the event is dropped and a PtyOutputDropped event is enqueued
// in its place (best-effort; if even that can't fit, the client is
// simply behind and will notice via a gap in output).
func (s *session) deliver(c *client, evt Event) {
	select {
	case c.out <- evt:
		return
	default:
	}
	dropped := Event{Type: EvtPtyOutputDropped, SessionID: s.id, BytesDropped: len(evt.Data)}
	select {
	case c.out <- dropped:
	default:
	}
}

func appendBacklog(backlog, data []byte) []byte {
	backlog = append(backlog, data...)
	if len(backlog) > backlogCap {
		backlog = backlog[len(backlog)-backlogCap:]
	}
	return backlog
}

// attach registers a new client and returns its replay backlog plus the
// live client handle; the caller must eventually call detach.
func (s *session) attach() (*client, []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &client{out: make(chan Event, clientQueueCap)}
	s.clients[c] = struct{}{}
	return c, append([]byte(nil), s.backlog...)
}

func (s *session) detach(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *session) attachedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *session) writeStdin(data []byte) error {
	_, err := s.ptyFile.Write(data)
	return err
}

func (s *session) resize(rows, cols int) error {
	return pty.Setsize(s.ptyFile, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// kill terminates the whole process group the PTY spawned, not just the
// immediate child, so shell-wrapped agent commands (spawn.Result's
// `sh -lc 'exec ...'`) don't leave a grandchild running.
func (s *session) kill() error {
	pgid, err := syscall.Getpgid(s.pid)
	if err != nil {
		return s.cmd.Process.Kill()
	}
	return syscall.Kill(-pgid, syscall.SIGKILL)
}

func (s *session) close() {
	s.ptyFile.Close()
}
