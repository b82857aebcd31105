package daemon

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// tmuxPane is one entry of a shim session's pane registry: a tmux pane
// id backed by a real daemon PTY session.
type tmuxPane struct {
	id       string
	windowID string
	daemonID string // key into Server.sessions
	title    string
}

// tmuxRegistry is the authoritative view of "panes" for one
// KILD_SHIM_SESSION. It lives in the daemon, not the short-lived
// shim process, since the registry must outlive any single `tmux ...`
// invocation.
type tmuxRegistry struct {
	panes      map[string]*tmuxPane
	windows    []string
	options    map[string]string
	focused    string
	nextPaneID int
	nextWinID  int
}

func newTmuxRegistry() *tmuxRegistry {
	return &tmuxRegistry{
		panes:   make(map[string]*tmuxPane),
		options: make(map[string]string),
	}
}

func (r *tmuxRegistry) allocPane(windowID string) string {
	id := fmt.Sprintf("%%%d", r.nextPaneID)
	r.nextPaneID++
	r.panes[id] = &tmuxPane{id: id, windowID: windowID}
	return id
}

func (r *tmuxRegistry) allocWindow() string {
	id := fmt.Sprintf("@%d", r.nextWinID)
	r.nextWinID++
	r.windows = append(r.windows, id)
	return id
}

func (r *tmuxRegistry) sortedPaneIDs() []string {
	ids := make([]string, 0, len(r.panes))
	for id := range r.panes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// shimRegistry returns the registry for shimSession, creating it if this
// is the first tmux_op seen for that session.
func (s *Server) shimRegistry(shimSession string) *tmuxRegistry {
	s.tmuxMu.Lock()
	defer s.tmuxMu.Unlock()
	reg, ok := s.shims[shimSession]
	if !ok {
		reg = newTmuxRegistry()
		s.shims[shimSession] = reg
	}
	return reg
}

func (s *Server) handleTmuxOp(codec *wireCodec, cmd *Command) {
	reg := s.shimRegistry(cmd.SessionID)

	switch cmd.TmuxOp {
	case "new-session":
		s.tmuxNewSession(codec, cmd, reg)
	case "has-session":
		codec.writeEvent(Event{Type: EvtTmuxResult, Exists: len(reg.panes) > 0})
	case "new-window":
		win := reg.allocWindow()
		pane := reg.allocPane(win)
		reg.focused = pane
		codec.writeEvent(Event{Type: EvtTmuxResult, Text: pane})
	case "list-windows":
		codec.writeEvent(Event{Type: EvtTmuxResult, Panes: windowSummaries(reg)})
	case "split-window":
		s.tmuxSplitWindow(codec, cmd, reg)
	case "list-panes":
		codec.writeEvent(Event{Type: EvtTmuxResult, Panes: paneSummaries(reg)})
	case "send-keys":
		s.tmuxSendKeys(codec, cmd, reg)
	case "select-pane":
		s.tmuxSelectPane(codec, cmd, reg)
	case "kill-pane":
		s.tmuxKillPane(codec, cmd, reg)
	case "set-option":
		key := scopedOptionKey(cmd.Scope, cmd.PaneID, cmd.WindowID, cmd.Key)
		reg.options[key] = cmd.Value
		codec.writeEvent(Event{Type: EvtTmuxResult})
	case "select-layout":
		codec.writeEvent(Event{Type: EvtTmuxResult})
	case "resize-pane":
		s.tmuxResizePane(codec, cmd, reg)
	case "break-pane", "join-pane":
		s.tmuxMovePane(codec, cmd, reg)
	case "display-message":
		codec.writeEvent(Event{Type: EvtTmuxResult, Text: expandFormat(cmd.Format, reg, cmd.PaneID)})
	case "capture-pane":
		s.tmuxCapturePane(codec, cmd, reg)
	default:
		codec.writeEvent(errorEvent("tmux_op: unsupported op %q", cmd.TmuxOp))
	}
}

func (s *Server) tmuxNewSession(codec *wireCodec, cmd *Command, reg *tmuxRegistry) {
	win := reg.allocWindow()
	paneID := reg.allocPane(win)
	reg.focused = paneID

	if len(cmd.Argv) > 0 {
		daemonID := cmd.SessionID + "-" + paneID
		if _, err := s.createSession(daemonID, cmd.Argv, cmd.Env, cmd.Rows, cmd.Cols); err != nil {
			codec.writeEvent(errorEvent("new-session: %v", err))
			return
		}
		reg.panes[paneID].daemonID = daemonID
	}
	codec.writeEvent(Event{Type: EvtTmuxResult, Text: paneID})
}

func (s *Server) tmuxSplitWindow(codec *wireCodec, cmd *Command, reg *tmuxRegistry) {
	windowID := cmd.WindowID
	if windowID == "" {
		if p, ok := reg.panes[reg.focused]; ok {
			windowID = p.windowID
		}
	}
	paneID := reg.allocPane(windowID)

	if len(cmd.Argv) > 0 {
		daemonID := cmd.SessionID + "-" + paneID
		if _, err := s.createSession(daemonID, cmd.Argv, cmd.Env, cmd.Rows, cmd.Cols); err != nil {
			codec.writeEvent(errorEvent("split-window: %v", err))
			return
		}
		reg.panes[paneID].daemonID = daemonID
	}
	codec.writeEvent(Event{Type: EvtTmuxResult, Text: paneID})
}

func (s *Server) tmuxSendKeys(codec *wireCodec, cmd *Command, reg *tmuxRegistry) {
	pane, ok := reg.panes[targetPane(cmd.PaneID, reg)]
	if !ok || pane.daemonID == "" {
		codec.writeEvent(errorEvent("send-keys: unknown pane %q", cmd.PaneID))
		return
	}
	sess, ok := s.lookup(pane.daemonID)
	if !ok {
		codec.writeEvent(errorEvent("send-keys: pane %q has no live session", pane.id))
		return
	}
	if err := sess.writeStdin(translateKeys(cmd.Argv)); err != nil {
		codec.writeEvent(errorEvent("send-keys: %v", err))
		return
	}
	codec.writeEvent(Event{Type: EvtTmuxResult})
}

func (s *Server) tmuxSelectPane(codec *wireCodec, cmd *Command, reg *tmuxRegistry) {
	id := targetPane(cmd.PaneID, reg)
	if _, ok := reg.panes[id]; !ok {
		codec.writeEvent(errorEvent("select-pane: unknown pane %q", cmd.PaneID))
		return
	}
	reg.focused = id
	if cmd.Value != "" {
		reg.panes[id].title = cmd.Value
	}
	codec.writeEvent(Event{Type: EvtTmuxResult})
}

func (s *Server) tmuxKillPane(codec *wireCodec, cmd *Command, reg *tmuxRegistry) {
	id := targetPane(cmd.PaneID, reg)
	pane, ok := reg.panes[id]
	if !ok {
		codec.writeEvent(errorEvent("kill-pane: unknown pane %q", cmd.PaneID))
		return
	}
	if pane.daemonID != "" {
		if sess, ok := s.lookup(pane.daemonID); ok {
			sess.kill()
		}
	}
	delete(reg.panes, id)
	if reg.focused == id {
		reg.focused = ""
	}
	codec.writeEvent(Event{Type: EvtTmuxResult})
}

func (s *Server) tmuxResizePane(codec *wireCodec, cmd *Command, reg *tmuxRegistry) {
	pane, ok := reg.panes[targetPane(cmd.PaneID, reg)]
	if !ok || pane.daemonID == "" {
		codec.writeEvent(Event{Type: EvtTmuxResult})
		return
	}
	if sess, ok := s.lookup(pane.daemonID); ok {
		sess.resize(cmd.Rows, cmd.Cols)
	}
	codec.writeEvent(Event{Type: EvtTmuxResult})
}

// tmuxMovePane implements break-pane/join-pane: moving a pane id between
// windows in the registry. A no-op at the daemon/PTY level; only the
// registry's bookkeeping changes.
func (s *Server) tmuxMovePane(codec *wireCodec, cmd *Command, reg *tmuxRegistry) {
	pane, ok := reg.panes[targetPane(cmd.PaneID, reg)]
	if !ok {
		codec.writeEvent(errorEvent("move-pane: unknown pane %q", cmd.PaneID))
		return
	}
	if cmd.WindowID != "" {
		pane.windowID = cmd.WindowID
	}
	codec.writeEvent(Event{Type: EvtTmuxResult})
}

func (s *Server) tmuxCapturePane(codec *wireCodec, cmd *Command, reg *tmuxRegistry) {
	pane, ok := reg.panes[targetPane(cmd.PaneID, reg)]
	if !ok || pane.daemonID == "" {
		codec.writeEvent(Event{Type: EvtTmuxResult, Text: ""})
		return
	}
	sess, ok := s.lookup(pane.daemonID)
	if !ok {
		codec.writeEvent(Event{Type: EvtTmuxResult, Text: ""})
		return
	}
	sess.mu.Lock()
	backlog := string(sess.backlog)
	sess.mu.Unlock()

	lines := strings.Split(backlog, "\n")
	if cmd.StartLine < 0 {
		start := len(lines) + cmd.StartLine
		if start < 0 {
			start = 0
		}
		lines = lines[start:]
	}
	codec.writeEvent(Event{Type: EvtTmuxResult, Text: strings.Join(lines, "\n")})
}

// targetPane resolves a -t target (explicit pane id, or "" for the
// registry's focused pane).
func targetPane(explicit string, reg *tmuxRegistry) string {
	if explicit != "" {
		return explicit
	}
	return reg.focused
}

func scopedOptionKey(scope, paneID, windowID, key string) string {
	switch scope {
	case "pane":
		return "pane:" + paneID + ":" + key
	case "window":
		return "window:" + windowID + ":" + key
	default:
		return "session:" + key
	}
}

func paneSummaries(reg *tmuxRegistry) []PaneInfo {
	out := make([]PaneInfo, 0, len(reg.panes))
	for _, id := range reg.sortedPaneIDs() {
		p := reg.panes[id]
		out = append(out, PaneInfo{
			PaneID:   p.id,
			WindowID: p.windowID,
			Title:    p.title,
			Active:   p.id == reg.focused,
		})
	}
	return out
}

func windowSummaries(reg *tmuxRegistry) []PaneInfo {
	out := make([]PaneInfo, 0, len(reg.windows))
	for _, w := range reg.windows {
		out = append(out, PaneInfo{WindowID: w})
	}
	return out
}

// translateKeys maps tmux send-keys argument tokens to raw bytes: named
// keys (Enter, C-c style control sequences) and literal text args,
// joined in argument order with no separator, matching tmux's own
// send-keys semantics.
func translateKeys(args []string) []byte {
	var out []byte
	for _, a := range args {
		switch {
		case a == "Enter":
			out = append(out, '\r')
		case a == "Escape":
			out = append(out, 0x1b)
		case a == "Tab":
			out = append(out, '\t')
		case a == "Space":
			out = append(out, ' ')
		case strings.HasPrefix(a, "C-") && len(a) == 3:
			out = append(out, a[2]&0x1f)
		default:
			out = append(out, []byte(a)...)
		}
	}
	return out
}

// expandFormat expands the small subset of tmux format strings KILD's
// display-message supports. list-panes and list-windows do not use it;
// their -F format is ignored.
func expandFormat(format string, reg *tmuxRegistry, paneID string) string {
	id := targetPane(paneID, reg)
	pane := reg.panes[id]

	replacer := strings.NewReplacer(
		"#{pane_id}", id,
		"#{window_id}", windowOf(pane),
		"#{pane_title}", titleOf(pane),
		"#{session_panes}", strconv.Itoa(len(reg.panes)),
	)
	return replacer.Replace(format)
}

func windowOf(p *tmuxPane) string {
	if p == nil {
		return ""
	}
	return p.windowID
}

func titleOf(p *tmuxPane) string {
	if p == nil {
		return ""
	}
	return p.title
}
