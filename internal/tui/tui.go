// Package tui provides a Bubble Tea terminal user interface for artwork-downloader.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/handiism/artwork-downloader/internal/config"
	"github.com/handiism/artwork-downloader/internal/discovery"
	"github.com/handiism/artwork-downloader/internal/download"
	"github.com/handiism/artwork-downloader/internal/filter"
)

// Registry ids of the gallery discovery sources the UI can start.
const (
	worksSource  = "works"
	latestSource = "latest"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateDownloading
	StateComplete
	StateError
)

// EventLog collects manager events from download goroutines so the UI
// goroutine can drain them on its poll tick. Add is safe to pass as the
// manager's OnEvent callback.
type EventLog struct {
	mu      sync.Mutex
	entries []download.Event
}

// NewEventLog creates an empty event collector.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Add appends one event. Safe for concurrent use.
func (l *EventLog) Add(ev download.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, ev)
}

// drain returns the collected events and resets the log.
func (l *EventLog) drain() []download.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.entries
	l.entries = nil
	return entries
}

// Deps carries the wired collaborators the UI drives. The manager must
// have been created with Events.Add as its OnEvent callback.
type Deps struct {
	Manager  *download.Manager
	Settings *config.Settings
	Events   *EventLog

	// Filter is applied to every run started from the UI. May be nil.
	Filter *filter.Pipeline

	// Pages limits discovery to a page range. May be nil.
	Pages *discovery.PageRange
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	deps      Deps
	logs      []download.Event
	snap      download.RunState
	err       error

	// Run context
	ctx    context.Context
	cancel context.CancelFunc

	// Options
	latest  bool
	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel(deps Deps) Model {
	ti := textinput.New()
	ti.Placeholder = "user id, e.g. 104"
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		deps:      deps,
		logs:      make([]download.Event, 0),
		snap:      download.RunState{Total: -1},
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// RunDoneMsg is sent when the manager's run returns.
	RunDoneMsg struct {
		Err error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading {
				m.deps.Manager.Cancel()
			}

		case "enter":
			if m.state == StateInput && (m.latest || strings.TrimSpace(m.textInput.Value()) != "") {
				m.state = StateDownloading
				return m, tea.Batch(m.startRun(), m.tickProgress(), m.spinner.Tick)
			}

		case "l":
			if m.state == StateInput {
				m.latest = !m.latest
				return m, nil
			}

		case "v":
			if m.state == StateInput {
				m.verbose = !m.verbose
				return m, nil
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for a new run
				m.state = StateInput
				m.logs = nil
				m.err = nil
				m.snap = download.RunState{Total: -1}
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.SetValue("")
				m.textInput.Focus()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case RunDoneMsg:
		m = m.appendEvents()
		m.snap = m.deps.Manager.Snapshot()
		switch {
		case msg.Err == nil:
			m.state = StateComplete
		case errors.Is(msg.Err, download.ErrCanceled):
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		default:
			m.state = StateError
			m.err = msg.Err
		}

	case TickMsg:
		// Pull progress from the manager
		if m.state == StateDownloading {
			m = m.appendEvents()
			m.snap = m.deps.Manager.Snapshot()
			progressCmd := m.progress.SetPercent(m.percent())
			cmds = append(cmds, progressCmd, m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// startRun launches the manager run in the background.
func (m Model) startRun() tea.Cmd {
	req := download.Request{
		Source:       m.sourceID(),
		Filter:       m.deps.Filter,
		InlineFilter: m.deps.Settings.InlineFilter,
		Pages:        m.deps.Pages,
	}
	if !m.latest {
		req.Args = []string{strings.TrimSpace(m.textInput.Value())}
	}

	return func() tea.Msg {
		return RunDoneMsg{Err: m.deps.Manager.Run(m.ctx, req)}
	}
}

// sourceID returns the discovery source selected in the input view.
func (m Model) sourceID() string {
	if m.latest {
		return latestSource
	}
	return worksSource
}

// appendEvents folds drained manager events into the visible log tail.
func (m Model) appendEvents() Model {
	for _, ev := range m.deps.Events.drain() {
		// Queue chatter is only interesting in verbose mode.
		if ev.Kind == download.EventAdd && !m.verbose {
			continue
		}
		m.logs = append(m.logs, ev)
	}
	// Keep only last 10 logs
	if len(m.logs) > 10 {
		m.logs = m.logs[len(m.logs)-10:]
	}
	return m
}

// percent reports run progress as settled works over the known total.
func (m Model) percent() float64 {
	if m.snap.Total <= 0 {
		return 0
	}
	done := len(m.snap.Succeeded) + len(m.snap.Failed) + len(m.snap.Excluded)
	return float64(done) / float64(m.snap.Total)
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("🎨 Artwork Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Batch downloads from gallery feeds"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter user id:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	// Options
	latestCheck := "[ ]"
	if m.latest {
		latestCheck = "[×]"
	}
	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[×]"
	}

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Latest feed instead of a user (l)\n", latestCheck))
	b.WriteString(fmt.Sprintf("  %s Verbose output (v)\n", verboseCheck))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.deps.Settings.DownloadsPath)))
	b.WriteString("\n")
	if m.deps.Pages != nil {
		b.WriteString(dimStyle.Render(fmt.Sprintf("Pages: %d-%d", m.deps.Pages.Start, m.deps.Pages.End)))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	if m.snap.Total < 0 {
		b.WriteString(subtitleStyle.Render("Discovering works..."))
	} else {
		b.WriteString(subtitleStyle.Render(fmt.Sprintf("Downloading from %s...", m.sourceID())))
	}
	b.WriteString("\n\n")

	// Progress bar
	b.WriteString(m.progress.ViewAs(m.percent()))
	b.WriteString("\n")

	done := len(m.snap.Succeeded) + len(m.snap.Failed) + len(m.snap.Excluded)
	total := "?"
	if m.snap.Total >= 0 {
		total = fmt.Sprintf("%d", m.snap.Total)
	}
	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Works: %d/%s | Downloaded: %d | Failed: %d | Skipped: %d",
		done,
		total,
		len(m.snap.Succeeded),
		len(m.snap.Failed),
		len(m.snap.Excluded),
	)))
	b.WriteString("\n\n")

	// Logs
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	box := boxStyle.Render(fmt.Sprintf(
		"✨ Run Complete!\n\n"+
			"Downloaded: %d\n"+
			"Failed: %d\n"+
			"Skipped: %d",
		len(m.snap.Succeeded),
		len(m.snap.Failed),
		len(m.snap.Excluded),
	))
	b.WriteString(box)

	if n := len(m.snap.Failed); n > 0 {
		b.WriteString("\n\n")
		b.WriteString(warningStyle.Render(fmt.Sprintf("%d works failed:", n)))
		b.WriteString("\n")
		for i, f := range m.snap.Failed {
			if i == 5 {
				b.WriteString(dimStyle.Render(fmt.Sprintf("  ... and %d more", n-i)))
				b.WriteString("\n")
				break
			}
			b.WriteString(warningStyle.Render(fmt.Sprintf("  %d: %s", f.ID, f.Reason)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Run stopped:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}
	b.WriteString("\n\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Downloaded: %d | Failed: %d | Skipped: %d",
		len(m.snap.Succeeded),
		len(m.snap.Failed),
		len(m.snap.Excluded),
	)))

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Kind {
		case download.EventError:
			style = errorStyle
			prefix = "✗"
		case download.EventFail:
			style = warningStyle
			prefix = "!"
		case download.EventComplete:
			style = successStyle
			prefix = "✓"
		case download.EventAdd:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • l: latest feed • v: verbose • esc: quit"
	case StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new run • q: quit"
	}
	return ""
}

// Run starts the TUI application.
func Run(deps Deps) error {
	p := tea.NewProgram(NewModel(deps), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
