package term

import (
	"testing"
	"time"

	"github.com/charmbracelet/x/vt"
)

func TestScrollAmountDetectsShiftedGrid(t *testing.T) {
	cases := []struct {
		name string
		prev []string
		next []string
		want int
	}{
		{"scrolled two", []string{"a", "b", "c", "d"}, []string{"c", "d", "e", "f"}, 2},
		{"scrolled one", []string{"a", "b", "c", "d"}, []string{"b", "c", "d", "e"}, 1},
		{"identical", []string{"a", "b"}, []string{"a", "b"}, 0},
		{"full redraw", []string{"a", "b", "c"}, []string{"x", "y", "z"}, 0},
		{"resize", []string{"a", "b"}, []string{"a", "b", "c"}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range cases {
		if got := scrollAmount(tc.prev, tc.next); got != tc.want {
			t.Errorf("%s: scrollAmount = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestUpdateMovesScrolledLinesToHistory(t *testing.T) {
	b := newScreenBuffer(3)
	b.update([]string{"a", "b", "c"})
	b.update([]string{"b", "c", "d"})
	if len(b.history) != 1 || b.history[0] != "a" {
		t.Fatalf("history = %v, want [a]", b.history)
	}
	if b.live[2] != "d" {
		t.Fatalf("live = %v", b.live)
	}
}

func TestUpdateKeepsViewportAnchoredWhileScrolledBack(t *testing.T) {
	b := newScreenBuffer(3)
	b.update([]string{"a", "b", "c"})
	b.update([]string{"b", "c", "d"})
	b.scroll(1)
	b.update([]string{"c", "d", "e"})
	if b.offset != 2 {
		t.Fatalf("offset = %d, want 2 (anchored on the same content)", b.offset)
	}
}

func TestScrollClampsToHistory(t *testing.T) {
	b := newScreenBuffer(3)
	b.history = []string{"h1", "h2"}
	b.scroll(10)
	if b.offset != 2 {
		t.Fatalf("offset after over-scroll = %d, want 2", b.offset)
	}
	b.scroll(-10)
	if b.offset != 0 {
		t.Fatalf("offset after scroll home = %d, want 0", b.offset)
	}
}

func TestVisibleMixesHistoryAndLive(t *testing.T) {
	b := newScreenBuffer(3)
	b.history = []string{"h1", "h2"}
	b.live = []string{"l1", "l2", "l3"}

	b.offset = 2
	if got := b.visible(); got[0] != "h1" || got[1] != "h2" || got[2] != "l1" {
		t.Fatalf("visible at offset 2 = %v", got)
	}
	b.offset = 1
	if got := b.visible(); got[0] != "h2" || got[1] != "l1" || got[2] != "l2" {
		t.Fatalf("visible at offset 1 = %v", got)
	}
	b.offset = 0
	if got := b.visible(); got[0] != "l1" || got[2] != "l3" {
		t.Fatalf("visible at offset 0 = %v", got)
	}
}

func TestSelectionNormalizesReversedDrag(t *testing.T) {
	b := newScreenBuffer(3)
	b.live = []string{"one", "two", "three"}
	b.startSelection(1, 5)
	b.extendSelection(0, 2)
	sel := b.selection()
	if sel == nil {
		t.Fatal("selection() = nil after drag")
	}
	if sel.Start.Line != 0 || sel.Start.Col != 2 || sel.End.Line != 1 || sel.End.Col != 5 {
		t.Fatalf("selection = %+v, want normalized start before end", sel)
	}
}

func TestSelectedTextSpansLines(t *testing.T) {
	b := newScreenBuffer(2)
	b.live = []string{"hello world", "goodbye"}
	b.startSelection(0, 6)
	b.extendSelection(1, 3)
	if got := b.selectedText(); got != "world\ngood" {
		t.Fatalf("selectedText = %q, want %q", got, "world\ngood")
	}
	b.clearSelection()
	if b.selection() != nil || b.selectedText() != "" {
		t.Fatal("selection should be gone after clearSelection")
	}
}

func TestSelectionTracksContentAcrossScroll(t *testing.T) {
	b := newScreenBuffer(2)
	b.history = []string{"h1"}
	b.live = []string{"l1", "l2"}
	b.offset = 1
	// Visible row 0 is h1, the last history line.
	b.startSelection(0, 0)
	b.extendSelection(0, 1)
	if got := b.selectedText(); got != "h1" {
		t.Fatalf("selectedText = %q, want h1", got)
	}
}

func TestBlinkVisibleAlternates(t *testing.T) {
	now := time.Now()
	if !blinkVisible(now, now) {
		t.Error("cursor should be solid immediately after a keystroke")
	}
	if blinkVisible(now.Add(-3*blinkInterval/2), now) {
		t.Error("cursor should be hidden in the second blink phase")
	}
	if !blinkVisible(now.Add(-5*blinkInterval/2), now) {
		t.Error("cursor should be visible again in the third blink phase")
	}
}

func TestSnapshotCursorHiddenWhileScrolledBack(t *testing.T) {
	e := &Emulator{
		emu:       vt.NewSafeEmulator(20, 4),
		sb:        newScreenBuffer(4),
		blinkBase: time.Now(),
	}
	defer e.emu.Close()
	e.sb.history = []string{"old line"}
	e.sb.live = []string{"a", "b", "c", "d"}
	e.Scroll(1)

	snap := e.Snapshot()
	if snap.DisplayOffset != 1 {
		t.Fatalf("DisplayOffset = %d, want 1", snap.DisplayOffset)
	}
	if snap.Cursor.Visible {
		t.Error("cursor should be invisible while scrolled back")
	}
	if snap.Lines[0] != "old line" {
		t.Fatalf("Lines[0] = %q, want the history line", snap.Lines[0])
	}
	if snap.Selection != nil {
		t.Fatalf("Selection = %+v, want nil", snap.Selection)
	}
}
