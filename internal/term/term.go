// Package term renders a daemon PTY output stream into an in-memory
// VT100 screen for KILD's embedded terminal view. It
// consumes daemon.Event frames rather than raw bytes so it can sit
// either inside the GUI process or a CLI `kild open` attach loop.
//
// The host renderer's contract is Snapshot: a lock-protected grid view
// carrying the visible lines at the current display offset, a
// blink-clocked cursor, and the active selection. Scroll wheel deltas go
// through Scroll, mouse drags through StartSelection/ExtendSelection,
// and URL detection through Linkify/LinkSpans.
//
// Built on charmbracelet/x/vt's SafeEmulator; Read surfaces the
// emulator's own terminal query responses so they can be forwarded
// back to the agent.
package term

import (
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/x/vt"
	"golang.org/x/text/width"

	"github.com/kild-dev/kild/internal/daemon"
)

// batchWindow and batchCap bound how much output term coalesces before
// re-rendering: redraws are capped at 250Hz (4ms) or 100 chunks,
// whichever comes first, so a chatty agent can't pin the UI thread.
const (
	batchWindow = 4 * time.Millisecond
	batchCap    = 100
)

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// Emulator holds a live VT100 screen fed by one attached PTY session,
// plus the renderer-facing state around it: scroll-back with a display
// offset, a selection, and a blink-clocked cursor.
type Emulator struct {
	att *daemon.Attachment

	mu        sync.RWMutex
	emu       *vt.SafeEmulator
	sb        *screenBuffer
	blinkBase time.Time
	cols      int
	rows      int
	dropped   int
	closed    bool

	done chan struct{}
}

// New creates an Emulator bound to att, starting the background feed
// and terminal-response-forwarding goroutines. Call Close to stop both
// and release the VT100 emulator.
func New(att *daemon.Attachment, cols, rows int) *Emulator {
	e := &Emulator{
		att:       att,
		emu:       vt.NewSafeEmulator(cols, rows),
		sb:        newScreenBuffer(rows),
		blinkBase: time.Now(),
		cols:      cols,
		rows:      rows,
		done:      make(chan struct{}),
	}
	go e.feed()
	go e.forwardResponses()
	return e
}

// feed drains att.Events, batching chunks until batchCap is reached or
// the batchWindow timer next fires (it ticks every batchWindow whether or
// not output is arriving), so one huge burst of output doesn't
// serialize into thousands of tiny emulator writes.
func (e *Emulator) feed() {
	timer := time.NewTimer(batchWindow)
	defer timer.Stop()
	var pending [][]byte

	flush := func() {
		if len(pending) == 0 {
			return
		}
		e.mu.Lock()
		if !e.closed {
			for _, chunk := range pending {
				e.emu.Write(chunk)
			}
			e.sb.update(splitScreen(e.emu.Render()))
		}
		e.mu.Unlock()
		pending = pending[:0]
	}

	for {
		select {
		case evt, ok := <-e.att.Events:
			if !ok {
				flush()
				return
			}
			switch evt.Type {
			case daemon.EvtPtyOutput:
				pending = append(pending, evt.Data)
				if len(pending) >= batchCap {
					flush()
					timer.Reset(batchWindow)
				}
			case daemon.EvtPtyOutputDropped:
				e.mu.Lock()
				e.dropped += evt.BytesDropped
				e.mu.Unlock()
			case daemon.EvtSessionEvent:
				flush()
				return
			}
		case <-timer.C:
			flush()
			timer.Reset(batchWindow)
		case <-e.done:
			return
		}
	}
}

// forwardResponses relays VT100 query responses (cursor position
// reports, DA/DSR replies) the emulator itself generates back to the
// agent process, since the real terminal never sees those escapes to
// answer them.
func (e *Emulator) forwardResponses() {
	buf := make([]byte, 1024)
	for {
		e.mu.RLock()
		closed := e.closed
		e.mu.RUnlock()
		if closed {
			return
		}
		n, err := e.emu.Read(buf)
		if n > 0 {
			e.att.WriteStdin(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			return
		}
	}
}

// Render returns the current screen contents as plain text rows.
func (e *Emulator) Render() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.emu.Render()
}

// Snapshot returns one consistent renderer view: the visible grid at the
// current display offset, the cursor, and the active selection.
func (e *Emulator) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		Lines:         e.sb.visible(),
		Cursor:        e.cursorLocked(),
		DisplayOffset: e.sb.offset,
		Selection:     e.sb.selection(),
	}
}

// Cursor returns the cursor's grid position and blink-phase visibility.
func (e *Emulator) Cursor() Cursor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cursorLocked()
}

func (e *Emulator) cursorLocked() Cursor {
	pos := e.emu.CursorPosition()
	col, row := pos.X, pos.Y
	return Cursor{
		Row:     row,
		Col:     col,
		Visible: e.sb.offset == 0 && blinkVisible(e.blinkBase, time.Now()),
	}
}

// Scroll adjusts the display offset by a wheel delta in lines: positive
// scrolls back into history, negative toward the live screen.
func (e *Emulator) Scroll(deltaLines int) {
	e.mu.Lock()
	e.sb.scroll(deltaLines)
	e.mu.Unlock()
}

// DisplayOffset reports how many lines back into history the view is.
func (e *Emulator) DisplayOffset() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sb.offset
}

// StartSelection begins a selection at a visible grid cell (mouse-down).
func (e *Emulator) StartSelection(row, col int) {
	e.mu.Lock()
	e.sb.startSelection(row, col)
	e.mu.Unlock()
}

// ExtendSelection grows the selection to a visible grid cell
// (mouse-drag). Starts one if none is active.
func (e *Emulator) ExtendSelection(row, col int) {
	e.mu.Lock()
	e.sb.extendSelection(row, col)
	e.mu.Unlock()
}

// ClearSelection drops the active selection.
func (e *Emulator) ClearSelection() {
	e.mu.Lock()
	e.sb.clearSelection()
	e.mu.Unlock()
}

// SelectedText returns the selected text, buffer rows joined by \n, or
// "" when nothing is selected.
func (e *Emulator) SelectedText() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sb.selectedText()
}

// Resize updates both the emulator's grid and the remote PTY's window
// size, keeping SIGWINCH in sync with what's displayed.
func (e *Emulator) Resize(cols, rows int) error {
	e.mu.Lock()
	e.emu.Resize(cols, rows)
	e.cols, e.rows = cols, rows
	e.sb.rows = rows
	e.mu.Unlock()
	return e.att.Resize(rows, cols)
}

// WriteKeys sends raw input bytes to the agent process and resets the
// cursor blink clock, so the cursor is solid while the user types.
func (e *Emulator) WriteKeys(data []byte) error {
	e.mu.Lock()
	e.blinkBase = time.Now()
	e.mu.Unlock()
	return e.att.WriteStdin(data)
}

// splitScreen breaks a rendered screen into grid rows.
func splitScreen(screen string) []string {
	return strings.Split(strings.TrimRight(screen, "\n"), "\n")
}

// DroppedBytes reports how many bytes of PTY output this client has
// missed because its queue saturated (see daemon.clientQueueCap).
func (e *Emulator) DroppedBytes() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dropped
}

// Close stops the feed and response-forwarding goroutines and releases
// the VT100 emulator. It does not detach from the daemon; callers still
// own att.Close().
func (e *Emulator) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	close(e.done)
	e.emu.Close()
}

// Linkify finds http(s) URLs in a line of rendered terminal text. KILD's
// embedded terminal only auto-links http/https schemes, never file:// or
// bare domains, to avoid accidentally making shell output clickable in
// surprising ways.
func Linkify(line string) []string {
	return urlPattern.FindAllString(line, -1)
}

// LinkSpan locates one URL within a rendered line in terminal cell
// columns, so the host renderer can turn it into pixel bounds for
// cmd-click without re-deriving cell widths itself.
type LinkSpan struct {
	URL      string
	StartCol int
	EndCol   int // exclusive
}

// LinkSpans returns the cell-column bounds of every http(s) URL in line.
// Columns are counted in terminal cells, not bytes or runes: East Asian
// wide and fullwidth runes occupy two cells, so a URL following CJK
// output still lands on the glyphs the user actually sees.
func LinkSpans(line string) []LinkSpan {
	matches := urlPattern.FindAllStringIndex(line, -1)
	if len(matches) == 0 {
		return nil
	}
	spans := make([]LinkSpan, 0, len(matches))
	col := 0
	byteOff := 0
	next := 0
	for _, r := range line {
		if next < len(matches) && byteOff == matches[next][0] {
			spans = append(spans, LinkSpan{StartCol: col})
		}
		byteOff += utf8.RuneLen(r)
		col += cellWidth(r)
		if next < len(matches) && byteOff == matches[next][1] {
			spans[next].URL = line[matches[next][0]:matches[next][1]]
			spans[next].EndCol = col
			next++
		}
	}
	return spans
}

func cellWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}
