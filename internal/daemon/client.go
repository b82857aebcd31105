package daemon

import (
	"fmt"
	"net"
	"time"
)

// Client is a connection to a running daemon, used by internal/lifecycle
// and internal/tmuxshim to create, attach to, and tear down PTY
// sessions without either package knowing the wire format.
type Client struct {
	conn  net.Conn
	codec *wireCodec
}

// Dial connects to the daemon's unix socket. It does not start the
// daemon; callers needing that fall back to EnsureRunning.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon at %s: %w", socketPath, err)
	}
	return &Client{conn: conn, codec: newWireCodec(conn)}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// CreateSession asks the daemon to spawn argv under env as sessionID and
// returns the new PID.
func (c *Client) CreateSession(sessionID string, argv []string, env map[string]string, rows, cols int) (pid int, err error) {
	if err := c.codec.writeCommand(Command{
		Type:      CmdCreateSession,
		SessionID: sessionID,
		Argv:      argv,
		Env:       env,
		Rows:      rows,
		Cols:      cols,
	}); err != nil {
		return 0, err
	}
	evt, err := c.codec.readEvent()
	if err != nil {
		return 0, err
	}
	if evt.Type == EvtError {
		return 0, fmt.Errorf("daemon: %s", evt.Error)
	}
	return evt.PID, nil
}

func (c *Client) WriteStdin(sessionID string, data []byte) error {
	if err := c.codec.writeCommand(Command{Type: CmdWriteStdin, SessionID: sessionID, Data: data}); err != nil {
		return err
	}
	return nil
}

func (c *Client) Resize(sessionID string, rows, cols int) error {
	return c.codec.writeCommand(Command{Type: CmdResize, SessionID: sessionID, Rows: rows, Cols: cols})
}

func (c *Client) KillSession(sessionID string) error {
	if err := c.codec.writeCommand(Command{Type: CmdKillSession, SessionID: sessionID}); err != nil {
		return err
	}
	return nil
}

// TmuxOp sends a single tmux-shim operation and returns the daemon's
// reply event. shimSession is the KILD_SHIM_SESSION registry key; the
// rest of cmd's tmux_op fields (Argv, PaneID, WindowID, Scope, Key,
// Value, Format, StartLine) are populated by the caller per operation.
func (c *Client) TmuxOp(shimSession string, cmd Command) (*Event, error) {
	cmd.Type = CmdTmuxOp
	cmd.SessionID = shimSession
	if err := c.codec.writeCommand(cmd); err != nil {
		return nil, err
	}
	evt, err := c.codec.readEvent()
	if err != nil {
		return nil, err
	}
	if evt.Type == EvtError {
		return nil, fmt.Errorf("daemon: %s", evt.Error)
	}
	return evt, nil
}

func (c *Client) ListSessions() ([]SessionSummary, error) {
	if err := c.codec.writeCommand(Command{Type: CmdListSessions}); err != nil {
		return nil, err
	}
	evt, err := c.codec.readEvent()
	if err != nil {
		return nil, err
	}
	if evt.Type == EvtError {
		return nil, fmt.Errorf("daemon: %s", evt.Error)
	}
	return evt.Sessions, nil
}

// Attachment is a live attach to a session's PTY output stream. Events
// arrives on its own connection, separate from the Client that created
// the session, since attach holds the connection's read loop open for
// the life of the attach.
type Attachment struct {
	client    *Client
	sessionID string
	Events    <-chan Event
	done      chan struct{}
}

// Attach opens a new connection and streams PtyOutput events for
// sessionID until the session exits or Close is called. Each call to
// Attach uses its own socket connection so multiple attachments (e.g. a
// GUI window and a `kild open` terminal) never contend on one
// connection's read loop.
func Attach(socketPath, sessionID string) (*Attachment, error) {
	cl, err := Dial(socketPath)
	if err != nil {
		return nil, err
	}
	if err := cl.codec.writeCommand(Command{Type: CmdAttach, SessionID: sessionID}); err != nil {
		cl.Close()
		return nil, err
	}

	events := make(chan Event, 64)
	done := make(chan struct{})
	go func() {
		defer close(events)
		for {
			evt, err := cl.codec.readEvent()
			if err != nil {
				return
			}
			select {
			case events <- *evt:
			case <-done:
				return
			}
			if evt.Type == EvtSessionEvent {
				return
			}
		}
	}()

	return &Attachment{client: cl, sessionID: sessionID, Events: events, done: done}, nil
}

func (a *Attachment) WriteStdin(data []byte) error {
	return a.client.WriteStdin(a.sessionID, data)
}

func (a *Attachment) Resize(rows, cols int) error {
	return a.client.codec.writeCommand(Command{Type: CmdResize, SessionID: a.sessionID, Rows: rows, Cols: cols})
}

// Close detaches without killing the underlying session; the agent
// keeps running under the daemon.
func (a *Attachment) Close() error {
	close(a.done)
	return a.client.Close()
}
