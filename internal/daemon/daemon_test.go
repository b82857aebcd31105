package daemon

import (
	"path/filepath"
	"testing"
	"time"
)

func startTestServer(t *testing.T) (socketPath string, srv *Server) {
	t.Helper()
	dir := t.TempDir()
	socketPath = filepath.Join(dir, "daemon.sock")
	lockPath := filepath.Join(dir, "daemon.lock")

	srv = NewServer(socketPath, lockPath, nil)
	ln, err := srv.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go srv.Serve(ln)
	t.Cleanup(func() { ln.Close() })
	return socketPath, srv
}

func TestCreateAndAttachEchoesStdin(t *testing.T) {
	socketPath, _ := startTestServer(t)

	cl, err := Dial(socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer cl.Close()

	pid, err := cl.CreateSession("sess-1", []string{"/bin/cat"}, nil, 24, 80)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if pid <= 0 {
		t.Fatalf("CreateSession() pid = %d, want positive", pid)
	}

	att, err := Attach(socketPath, "sess-1")
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer att.Close()

	if err := att.WriteStdin([]byte("hello\n")); err != nil {
		t.Fatalf("WriteStdin() error = %v", err)
	}

	select {
	case evt, ok := <-att.Events:
		if !ok {
			t.Fatal("Events channel closed before any output")
		}
		if evt.Type != EvtPtyOutput {
			t.Fatalf("event type = %v, want %v", evt.Type, EvtPtyOutput)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for pty output")
	}

	if err := cl.KillSession("sess-1"); err != nil {
		t.Fatalf("KillSession() error = %v", err)
	}
}

func TestListSessionsReportsAttachedCount(t *testing.T) {
	socketPath, _ := startTestServer(t)

	cl, err := Dial(socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer cl.Close()

	if _, err := cl.CreateSession("sess-list", []string{"/bin/cat"}, nil, 24, 80); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	att, err := Attach(socketPath, "sess-list")
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer att.Close()

	// Give the attach goroutine a moment to register before listing.
	time.Sleep(50 * time.Millisecond)

	sessions, err := cl.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	var found *SessionSummary
	for i := range sessions {
		if sessions[i].SessionID == "sess-list" {
			found = &sessions[i]
		}
	}
	if found == nil {
		t.Fatalf("ListSessions() = %+v, want an entry for sess-list", sessions)
	}
	if found.Attached != 1 {
		t.Errorf("Attached = %d, want 1", found.Attached)
	}

	cl.KillSession("sess-list")
}

func TestAttachUnknownSessionReturnsError(t *testing.T) {
	socketPath, _ := startTestServer(t)

	cl, err := Dial(socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer cl.Close()

	att, err := Attach(socketPath, "does-not-exist")
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer att.Close()

	select {
	case evt, ok := <-att.Events:
		if !ok {
			t.Fatal("Events channel closed with no error event")
		}
		if evt.Type != EvtError {
			t.Fatalf("event type = %v, want %v", evt.Type, EvtError)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error event")
	}
}

func TestListenTwiceFailsWithAlreadyRunning(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "daemon.sock")
	lockPath := filepath.Join(dir, "daemon.lock")

	srv1 := NewServer(socketPath, lockPath, nil)
	ln1, err := srv1.Listen()
	if err != nil {
		t.Fatalf("first Listen() error = %v", err)
	}
	defer ln1.Close()

	srv2 := NewServer(socketPath, lockPath, nil)
	if _, err := srv2.Listen(); err != ErrAlreadyRunning {
		t.Fatalf("second Listen() error = %v, want %v", err, ErrAlreadyRunning)
	}
}
