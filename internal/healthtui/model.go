package healthtui

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	healthyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// FetchFunc computes the current set of health entries, supplied by
// internal/cmd so this package never imports internal/store directly.
type FetchFunc func() ([]Entry, error)

type model struct {
	fetch    FetchFunc
	interval time.Duration
	keys     KeyMap
	help     help.Model

	// mu protects the fields read by View from concurrent refresh
	// updates, same discipline as the rest of the model family here.
	mu       sync.RWMutex
	entries  []Entry
	err      error
	width    int
	showHelp bool
}

type tickMsg time.Time

type refreshMsg struct {
	entries []Entry
	err     error
}

func newModel(fetch FetchFunc, interval time.Duration) *model {
	return &model{
		fetch:    fetch,
		interval: interval,
		keys:     DefaultKeyMap(),
		help:     help.New(),
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.tickCmd())
}

func (m *model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		entries, err := m.fetch()
		return refreshMsg{entries: entries, err: err}
	}
}

func (m *model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		m.help.Width = msg.Width
		m.mu.Unlock()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())

	case refreshMsg:
		m.mu.Lock()
		m.entries = msg.entries
		m.err = msg.err
		m.mu.Unlock()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.refreshCmd()
		case key.Matches(msg, m.keys.Help):
			m.mu.Lock()
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
			m.mu.Unlock()
			return m, nil
		}
	}
	return m, nil
}

func (m *model) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return fmt.Sprintf("error refreshing health: %v\n", m.err)
	}
	if len(m.entries) == 0 {
		return dimStyle.Render("no sessions") + "\n\n" + m.help.View(m.keys) + "\n"
	}

	entries := make([]Entry, len(m.entries))
	copy(entries, m.entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Branch < entries[j].Branch })

	var b strings.Builder
	fmt.Fprintln(&b, headerStyle.Render(fmt.Sprintf("%-28s %-10s %-9s %-9s %-12s", "BRANCH", "STATUS", "PROCESS", "WORKTREE", "AGENT")))
	for _, e := range entries {
		line := fmt.Sprintf("%-28s %-10s %-9s %-9s %-12s", e.Branch, e.Status, e.ProcessColumn(), e.WorktreeColumn(), e.AgentStatus)
		if e.Healthy {
			fmt.Fprintln(&b, healthyStyle.Render(line))
		} else {
			fmt.Fprintln(&b, warnStyle.Render(line))
		}
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// Run starts the full-screen dashboard, blocking until the user quits.
func Run(fetch FetchFunc, interval time.Duration) error {
	_, err := tea.NewProgram(newModel(fetch, interval)).Run()
	return err
}
