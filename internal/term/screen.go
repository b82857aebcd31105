package term

import (
	"strings"
	"time"
)

// historyCap bounds the scroll-back line buffer per attached terminal.
const historyCap = 10_000

// blinkInterval is the cursor blink half-period: solid for one interval
// after the last keystroke, then alternating.
const blinkInterval = 530 * time.Millisecond

// Cursor is the renderer-facing cursor state: visible-grid position plus
// blink-phase visibility. The cursor is always reported invisible while
// the view is scrolled back into history, since it belongs to the live
// screen below the viewport.
type Cursor struct {
	Row     int
	Col     int
	Visible bool
}

// Point addresses a cell in buffer space: Line counts from the start of
// retained history through the live screen, Col is a terminal column.
type Point struct {
	Line int
	Col  int
}

// SelectionRange is a normalized (Start <= End) selection in buffer
// space. End is inclusive: it names the last selected cell, matching the
// cell under the pointer at the end of a drag.
type SelectionRange struct {
	Start Point
	End   Point
}

// Snapshot is one consistent view of the terminal for the host renderer:
// the visible grid lines, the cursor, how far back the view is scrolled,
// and the active selection if any.
type Snapshot struct {
	Lines         []string
	Cursor        Cursor
	DisplayOffset int
	Selection     *SelectionRange
}

// screenBuffer holds the live grid, retained scroll-back, display
// offset, and selection. It is not self-locking: Emulator serializes all
// access under its own mutex.
type screenBuffer struct {
	rows    int
	live    []string
	history []string
	offset  int // lines scrolled back into history; 0 = live view

	hasSel   bool
	selStart Point
	selEnd   Point
}

func newScreenBuffer(rows int) *screenBuffer {
	return &screenBuffer{rows: rows}
}

// update replaces the live grid, moving lines that scrolled off the top
// into history. A full-screen redraw (no shifted suffix) retains
// nothing, which keeps alternate-screen TUIs from polluting scroll-back.
// While the user is scrolled back, the viewport stays anchored on the
// same content as new output arrives below it.
func (b *screenBuffer) update(lines []string) {
	scrolled := scrollAmount(b.live, lines)
	if scrolled > 0 {
		b.history = append(b.history, b.live[:scrolled]...)
		if len(b.history) > historyCap {
			b.history = b.history[len(b.history)-historyCap:]
		}
		if b.offset > 0 {
			b.offset = min(b.offset+scrolled, len(b.history))
		}
	}
	b.live = lines
}

// scrollAmount reports how many lines prev moved up by to become next:
// the smallest k > 0 with prev[k:] == next[:len(prev)-k]. 0 when the
// grids are identical, differently sized (a resize), or unrelated (a
// full redraw).
func scrollAmount(prev, next []string) int {
	if len(prev) == 0 || len(prev) != len(next) || equalLines(prev, next) {
		return 0
	}
	for k := 1; k < len(prev); k++ {
		if equalLines(prev[k:], next[:len(prev)-k]) {
			return k
		}
	}
	return 0
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// scroll adjusts the display offset by a wheel delta in lines: positive
// scrolls back into history, negative toward the live screen. Clamped to
// the retained history.
func (b *screenBuffer) scroll(deltaLines int) {
	b.offset = max(0, min(b.offset+deltaLines, len(b.history)))
}

// visible returns the grid the host should paint for the current display
// offset: history lines from offset back, padded out with the top of the
// live screen.
func (b *screenBuffer) visible() []string {
	if b.offset == 0 {
		return append([]string(nil), b.live...)
	}
	out := make([]string, 0, b.rows)
	for i := len(b.history) - b.offset; i < len(b.history) && len(out) < b.rows; i++ {
		out = append(out, b.history[i])
	}
	for i := 0; len(out) < b.rows && i < len(b.live); i++ {
		out = append(out, b.live[i])
	}
	return out
}

// toBuffer converts a visible-grid cell to buffer space under the
// current display offset, so a selection keeps naming the same content
// as the view scrolls.
func (b *screenBuffer) toBuffer(row, col int) Point {
	return Point{Line: len(b.history) - b.offset + row, Col: col}
}

func (b *screenBuffer) startSelection(row, col int) {
	p := b.toBuffer(row, col)
	b.selStart, b.selEnd = p, p
	b.hasSel = true
}

func (b *screenBuffer) extendSelection(row, col int) {
	if !b.hasSel {
		b.startSelection(row, col)
		return
	}
	b.selEnd = b.toBuffer(row, col)
}

func (b *screenBuffer) clearSelection() {
	b.hasSel = false
}

// selection returns the normalized active selection, or nil.
func (b *screenBuffer) selection() *SelectionRange {
	if !b.hasSel {
		return nil
	}
	s, e := b.selStart, b.selEnd
	if e.Line < s.Line || (e.Line == s.Line && e.Col < s.Col) {
		s, e = e, s
	}
	return &SelectionRange{Start: s, End: e}
}

// selectedText extracts the selected cells as text, one line per buffer
// row, with trailing cell padding stripped.
func (b *screenBuffer) selectedText() string {
	sel := b.selection()
	if sel == nil {
		return ""
	}
	var parts []string
	for line := sel.Start.Line; line <= sel.End.Line; line++ {
		runes := []rune(b.lineAt(line))
		start, end := 0, len(runes)
		if line == sel.Start.Line {
			start = min(sel.Start.Col, len(runes))
		}
		if line == sel.End.Line {
			end = min(sel.End.Col+1, len(runes))
		}
		if start > end {
			start = end
		}
		parts = append(parts, strings.TrimRight(string(runes[start:end]), " "))
	}
	return strings.Join(parts, "\n")
}

func (b *screenBuffer) lineAt(idx int) string {
	if idx < 0 {
		return ""
	}
	if idx < len(b.history) {
		return b.history[idx]
	}
	idx -= len(b.history)
	if idx < len(b.live) {
		return b.live[idx]
	}
	return ""
}

// blinkVisible implements the blink clock: solid for one interval after
// base (the last keystroke), then alternating every interval.
func blinkVisible(base, now time.Time) bool {
	elapsed := now.Sub(base)
	if elapsed < 0 {
		return true
	}
	return (elapsed/blinkInterval)%2 == 0
}
