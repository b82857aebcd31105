package term

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kild-dev/kild/internal/daemon"
)

func TestLinkifyFindsHTTPURLsOnly(t *testing.T) {
	line := "see http://example.com/a and https://example.com/b or file:///etc/passwd"
	got := Linkify(line)
	want := []string{"http://example.com/a", "https://example.com/b"}
	if len(got) != len(want) {
		t.Fatalf("Linkify() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Linkify()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLinkSpansCountsWideRunesAsTwoCells(t *testing.T) {
	// "日本" is two East Asian wide runes = 4 cells, then a space.
	line := "日本 https://example.com done"
	spans := LinkSpans(line)
	if len(spans) != 1 {
		t.Fatalf("LinkSpans() = %v, want one span", spans)
	}
	s := spans[0]
	if s.URL != "https://example.com" {
		t.Errorf("URL = %q, want %q", s.URL, "https://example.com")
	}
	if s.StartCol != 5 {
		t.Errorf("StartCol = %d, want 5", s.StartCol)
	}
	if want := 5 + len("https://example.com"); s.EndCol != want {
		t.Errorf("EndCol = %d, want %d", s.EndCol, want)
	}
}

func TestLinkSpansMultipleURLs(t *testing.T) {
	line := "a http://x.io b https://y.io"
	spans := LinkSpans(line)
	if len(spans) != 2 {
		t.Fatalf("LinkSpans() = %v, want two spans", spans)
	}
	if spans[0].URL != "http://x.io" || spans[0].StartCol != 2 || spans[0].EndCol != 13 {
		t.Errorf("first span = %+v", spans[0])
	}
	if spans[1].URL != "https://y.io" || spans[1].StartCol != 16 || spans[1].EndCol != 28 {
		t.Errorf("second span = %+v", spans[1])
	}
}

func TestEmulatorRendersAgentOutput(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "daemon.sock")
	lockPath := filepath.Join(dir, "daemon.lock")

	srv := daemon.NewServer(socketPath, lockPath, nil)
	ln, err := srv.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()
	go srv.Serve(ln)

	cl, err := daemon.Dial(socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer cl.Close()

	if _, err := cl.CreateSession("term-sess", []string{"/bin/cat"}, nil, 24, 80); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	att, err := daemon.Attach(socketPath, "term-sess")
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer att.Close()

	emu := New(att, 80, 24)
	defer emu.Close()

	if err := emu.WriteKeys([]byte("hi\n")); err != nil {
		t.Fatalf("WriteKeys() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(emu.Render(), "hi") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("emulator never rendered the echoed \"hi\" input")
}
