// Package tui provides a Bubble Tea terminal user interface for streetgrab.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/handiism/streetgrab/internal/config"
	"github.com/handiism/streetgrab/internal/download"
	"github.com/handiism/streetgrab/internal/grabber"
	"go.uber.org/zap"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4")).
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

const maxLogs = 10

var errCancelled = errors.New("cancelled by user")

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateSearching
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logger    *zap.Logger
	logs      []LogEntry
	summary   *grabber.Summary
	err       error

	ctx    context.Context
	cancel context.CancelFunc

	grabber *grabber.Grabber
	cleanup func()
	events  chan download.ProgressEvent

	done  int
	total int

	// Options
	pano    bool
	strict  bool
	verify  bool
	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model. A non-nil loadErr (typically a missing
// token) is shown immediately and blocks starting a run.
func NewModel(settings *config.Settings, logger *zap.Logger, loadErr error) Model {
	ti := textinput.New()
	ti.Placeholder = "Main Street, Springfield"
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	if settings == nil {
		settings = config.DefaultSettings()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		logger:    logger,
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
		pano:      settings.Pano,
		strict:    settings.Strict,
		verify:    settings.VerifyPixels,
		verbose:   settings.Debug,
	}
	if loadErr != nil {
		m.state = StateError
		m.err = loadErr
	}
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg carries one pipeline event.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// StartedMsg is sent once the pipeline has been built.
	StartedMsg struct {
		Grabber *grabber.Grabber
		Cleanup func()
		Err     error
	}

	// RunDoneMsg is sent when the run finishes.
	RunDoneMsg struct {
		Summary *grabber.Summary
		Err     error
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
			if m.state == StateSearching || m.state == StateDownloading {
				m.cancel()
			}

		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				m.state = StateSearching
				m.events = make(chan download.ProgressEvent, 256)
				return m, tea.Batch(m.startRun(), m.spinner.Tick)
			}

		case "ctrl+p":
			if m.state == StateInput {
				m.pano = !m.pano
			}

		case "ctrl+s":
			if m.state == StateInput {
				m.strict = !m.strict
			}

		case "ctrl+x":
			if m.state == StateInput {
				m.verify = !m.verify
			}

		case "ctrl+v":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || (m.state == StateError && m.settings.Token != "") {
				m = m.reset()
				return m, textinput.Blink
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		if msg.Event.Level == download.LevelVerbose && !m.verbose {
			return m, m.waitForEvent()
		}
		m.logs = append(m.logs, LogEntry{Message: msg.Event.Message, Level: msg.Event.Level})
		if len(m.logs) > maxLogs {
			m.logs = m.logs[len(m.logs)-maxLogs:]
		}
		cmds = append(cmds, m.waitForEvent())

	case StartedMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
			m.closeEvents()
			break
		}
		m.grabber = msg.Grabber
		m.cleanup = msg.Cleanup
		cmds = append(cmds, m.runGrab(), m.waitForEvent(), m.tickProgress())

	case RunDoneMsg:
		if m.cleanup != nil {
			m.cleanup()
			m.cleanup = nil
		}
		m.closeEvents()
		m.summary = msg.Summary
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = errCancelled
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.grabber != nil && (m.state == StateSearching || m.state == StateDownloading) {
			m.done, m.total = m.grabber.Progress()
			if m.total > 0 {
				m.state = StateDownloading
				cmds = append(cmds, m.progress.SetPercent(float64(m.done)/float64(m.total)))
			}
			cmds = append(cmds, m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) reset() Model {
	m.state = StateInput
	m.logs = nil
	m.summary = nil
	m.err = nil
	m.done, m.total = 0, 0
	m.grabber = nil
	m.events = nil
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.textInput.SetValue("")
	m.textInput.Focus()
	return m
}

// closeEvents releases the event forwarder once nothing can send anymore.
func (m *Model) closeEvents() {
	if m.events != nil {
		close(m.events)
		m.events = nil
	}
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// waitForEvent forwards the next pipeline event, if any.
func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return ProgressMsg{Event: ev}
	}
}

// startRun builds the pipeline from the current options.
func (m Model) startRun() tea.Cmd {
	settings := *m.settings
	settings.Pano = m.pano
	settings.Strict = m.strict
	settings.VerifyPixels = m.verify
	settings.Debug = m.verbose
	events := m.events
	logger := m.logger

	return func() tea.Msg {
		g, cleanup, err := grabber.Build(&settings, logger, func(ev download.ProgressEvent) {
			select {
			case events <- ev:
			default:
			}
		})
		return StartedMsg{Grabber: g, Cleanup: cleanup, Err: err}
	}
}

// runGrab runs the pipeline in the background.
func (m Model) runGrab() tea.Cmd {
	g := m.grabber
	ctx := m.ctx
	query := strings.TrimSpace(m.textInput.Value())

	return func() tea.Msg {
		sum, err := g.Run(ctx, query)
		return RunDoneMsg{Summary: sum, Err: err}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("streetgrab"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Street-level panoramas from Mapillary"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateSearching:
		b.WriteString(m.viewSearching())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpText()))

	return b.String()
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Street to search:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Panoramas only (ctrl+p)\n", checkbox(m.pano)))
	b.WriteString(fmt.Sprintf("  %s Require provider pano flag (ctrl+s)\n", checkbox(m.strict)))
	b.WriteString(fmt.Sprintf("  %s Verify pixel dimensions (ctrl+x)\n", checkbox(m.verify)))
	b.WriteString(fmt.Sprintf("  %s Verbose/debug output (ctrl+v)\n", checkbox(m.verbose)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Output: %s | radius %.0f m | %d workers",
		m.settings.OutDir, m.settings.Radius, m.settings.Threads)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewSearching() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Resolving street and fetching metadata..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	var percent float64
	if m.total > 0 {
		percent = float64(m.done) / float64(m.total)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("Images: %d/%d", m.done, m.total)))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	s := m.summary
	if s == nil {
		return successStyle.Render("Done.")
	}

	return boxStyle.Render(fmt.Sprintf(
		"Grab complete\n\n"+
			"Found:     %d (%d duplicate)\n"+
			"Kept:      %d (dropped %d)\n"+
			"Saved:     %d\n"+
			"Failed:    %d\n"+
			"Skipped:   %d\n"+
			"Ledger:    %s\n"+
			"Took:      %s",
		s.Found, s.Duplicates,
		s.Kept, s.Dropped+s.NoURL,
		s.Succeeded, s.Failed, s.Skipped,
		s.LedgerPath,
		s.Duration.Round(time.Millisecond),
	))
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
		b.WriteString("\n")
	}
	if m.summary != nil && m.summary.Succeeded > 0 {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d image(s) saved before stopping; %s is valid.",
			m.summary.Succeeded, m.summary.LedgerPath)))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
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

func (m Model) helpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • ctrl+p: panoramas • ctrl+s: strict • ctrl+x: verify • ctrl+v: verbose • esc: quit"
	case StateSearching, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new search • q: quit"
	}
	return ""
}

// Run starts the TUI application.
func Run(settings *config.Settings, logger *zap.Logger, loadErr error) error {
	p := tea.NewProgram(NewModel(settings, logger, loadErr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
