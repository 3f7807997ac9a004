// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] renders the running session (phase, exercise, countdown bar,
// the line the coach is speaking) and turns key presses into session
// commands. It never drives the session clock; it only redraws on the
// events the controller publishes.
package display

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/ottofit/internal/conversation"
	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/engine"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	// BannerStyle is the muted slate used for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	phaseStyles = map[domain.Phase]lipgloss.Style{
		domain.PhaseGetReady: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fde68a")),
		domain.PhaseWorkout:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#bbf7d0")),
		domain.PhaseRest:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#bae6fd")),
		domain.PhaseComplete: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f0abfc")),
	}

	exerciseStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#d4d4d8"))

	clockStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a"))

	// Soft sky blue for the spoken line.
	chatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd")).
			Italic(true)

	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#18181b")).
			Background(lipgloss.Color("#fde68a")).
			Padding(0, 1)

	urgentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#52525b")).
			Padding(0, 2)
)

// ── Keys ─────────────────────────────────────────────────────────

type keyMap struct {
	Toggle    key.Binding
	Skip      key.Binding
	Encourage key.Binding
	Repeat    key.Binding
	Status    key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Toggle:    key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "pause/resume")),
		Skip:      key.NewBinding(key.WithKeys("s", "n"), key.WithHelp("s", "skip")),
		Encourage: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "more")),
		Repeat:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "repeat")),
		Status:    key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "status")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Skip, k.Encourage, k.Repeat, k.Status, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// command maps a key press to a session command.
func (k keyMap) command(msg tea.KeyMsg) conversation.Command {
	switch {
	case key.Matches(msg, k.Toggle):
		return conversation.CommandToggle
	case key.Matches(msg, k.Skip):
		return conversation.CommandSkip
	case key.Matches(msg, k.Encourage):
		return conversation.CommandEncourage
	case key.Matches(msg, k.Repeat):
		return conversation.CommandRepeat
	case key.Matches(msg, k.Status):
		return conversation.CommandStatus
	case key.Matches(msg, k.Quit):
		return conversation.CommandQuit
	}
	return conversation.CommandUnknown
}

// ── UI ───────────────────────────────────────────────────────────

// Session is what the UI needs from the session controller.
type Session interface {
	conversation.Session
	Subscribe(ch chan<- engine.Event) func()
	Done() <-chan struct{}
}

// UI runs the full-screen session view.
type UI struct {
	session Session
	log     *logger.Logger
	title   string
}

// NewUI creates the display for one session. Call Run to start.
func NewUI(session Session, title string, log *logger.Logger) *UI {
	return &UI{session: session, title: title, log: log}
}

// Run starts the Bubble Tea event loop and blocks until the user quits or
// ctx is cancelled. It reports whether the user quit before the session
// completed.
func (u *UI) Run(ctx context.Context) (quitEarly bool, err error) {
	events := make(chan engine.Event, 64)
	unsubscribe := u.session.Subscribe(events)
	defer unsubscribe()

	m := newModel(u.session, events, u.title)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return false, fmt.Errorf("display: %w", err)
	}
	fm, ok := final.(model)
	if !ok {
		return true, nil
	}
	u.log.Debug("display: exited (completed=%t)", fm.completed)
	return !fm.completed, nil
}

// ── Bubble Tea model ─────────────────────────────────────────────

type model struct {
	session  Session
	events   <-chan engine.Event
	title    string
	keys     keyMap
	help     help.Model
	bar      progress.Model
	snap     domain.Snapshot
	lastLine string
	feedback string
	failure  string
	width    int

	completed bool
	saveErr   error
}

// Messages.
type (
	eventMsg engine.Event
	doneMsg  struct{}
)

func newModel(s Session, events <-chan engine.Event, title string) model {
	return model{
		session: s,
		events:  events,
		title:   title,
		keys:    defaultKeys(),
		help:    help.New(),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(40)),
		snap:    s.Snapshot(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.events, m.session.Done()),
		tea.SetWindowTitle(m.title),
	)
}

// waitForEvent delivers the next session event, or doneMsg once the
// session has ended and the backlog is drained.
func waitForEvent(events <-chan engine.Event, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-events:
			return eventMsg(ev)
		case <-done:
			select {
			case ev := <-events:
				return eventMsg(ev)
			default:
				return doneMsg{}
			}
		}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd := m.keys.command(msg)
		switch cmd {
		case conversation.CommandUnknown:
			return m, nil
		case conversation.CommandQuit:
			return m, tea.Quit
		}
		if m.completed {
			return m, nil
		}
		line, err := conversation.Apply(cmd, m.session)
		m.feedback, m.failure = line, ""
		if err != nil {
			m.failure = err.Error()
		}
		m.snap = m.session.Snapshot()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		if w := msg.Width - 12; w > 10 {
			m.bar.Width = min(w, 60)
		}
		return m, nil

	case eventMsg:
		m.apply(engine.Event(msg))
		cmds := []tea.Cmd{waitForEvent(m.events, m.session.Done())}
		if msg.Kind == engine.EventPhase {
			cmds = append(cmds, tea.SetWindowTitle(m.windowTitle()))
		}
		return m, tea.Batch(cmds...)

	case doneMsg:
		m.snap = m.session.Snapshot()
		if m.snap.Phase != domain.PhaseComplete {
			// Closed without completing.
			return m, tea.Quit
		}
		m.completed = true
		return m, nil
	}
	return m, nil
}

func (m *model) apply(ev engine.Event) {
	m.snap = ev.Snapshot
	switch ev.Kind {
	case engine.EventCue:
		if d := ev.Delivery; d != nil && d.Played && d.Text != "" {
			m.lastLine = d.Text
		}
	case engine.EventPhase:
		m.feedback = ""
	case engine.EventCompleted:
		m.completed = true
		m.saveErr = ev.Err
	}
}

func (m model) windowTitle() string {
	if m.snap.Phase == domain.PhaseComplete {
		return m.title + " · done"
	}
	return fmt.Sprintf("%s · %s %s", m.title, conversation.PhaseLabel(m.snap.Phase), m.snap.Exercise.Name)
}

func (m model) View() string {
	var b strings.Builder
	s := m.snap

	phase := phaseStyles[s.Phase].Render(strings.ToUpper(conversation.PhaseLabel(s.Phase)))
	b.WriteString(phase)
	if s.Phase != domain.PhaseComplete {
		b.WriteString(secondaryStyle.Render(fmt.Sprintf("   step %d of %d", s.Step+1, s.TotalSteps)))
	}
	if s.Paused {
		b.WriteString("  " + pausedStyle.Render("PAUSED"))
	}
	b.WriteString("\n\n")

	if s.Phase == domain.PhaseComplete {
		b.WriteString(exerciseStyle.Render("Workout complete. Nice work!"))
		b.WriteString("\n")
		switch {
		case m.saveErr != nil:
			b.WriteString(urgentStyle.Render("Could not save: " + m.saveErr.Error()))
		case m.completed:
			b.WriteString(secondaryStyle.Render(fmt.Sprintf("%d steps saved to history.", s.TotalSteps)))
		}
		b.WriteString("\n")
	} else {
		name := s.Exercise.Name
		if s.Phase == domain.PhaseRest && s.Next != nil {
			name = "Up next: " + s.Next.Name
		}
		b.WriteString(exerciseStyle.Render(name))
		b.WriteString("\n\n")
		b.WriteString(m.bar.ViewAs(fraction(s)))
		b.WriteString("  ")
		b.WriteString(clockStyle.Render(conversation.FormatDuration(s.Remaining)))
		b.WriteString("\n")
		if s.Phase == domain.PhaseWorkout && s.Next != nil {
			b.WriteString(secondaryStyle.Render("then " + s.Next.Name))
		}
		b.WriteString("\n")
	}

	if m.lastLine != "" {
		b.WriteString("\n")
		b.WriteString(chatStyle.Render("“" + m.lastLine + "”"))
		b.WriteString("\n")
	}
	if m.feedback != "" {
		b.WriteString(secondaryStyle.Render(m.feedback))
		b.WriteString("\n")
	}
	if m.failure != "" {
		b.WriteString(urgentStyle.Render(m.failure))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	out := frameStyle.Render(b.String())
	if m.width > 0 {
		out = lipgloss.PlaceHorizontal(m.width, lipgloss.Center, out)
	}
	return out
}

// fraction is the elapsed share of the current phase.
func fraction(s domain.Snapshot) float64 {
	if s.PhaseTotal <= 0 {
		return 0
	}
	f := 1 - float64(s.Remaining)/float64(s.PhaseTotal)
	return max(0, min(1, f))
}
