package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/labops/callroom/internal/call"
)

// CallModel is the Bubble Tea model for an active call session. It renders
// the session's phase, keeps a short notice log, and maps keystrokes to the
// media controls.
type CallModel struct {
	session *call.Session

	phase   call.Phase
	notices []string

	muted     bool
	cameraOff bool
	sharing   bool

	spinner spinner.Model

	width  int
	height int
}

// sessionEventMsg wraps a session event for the Bubble Tea loop.
type sessionEventMsg call.Event

// sessionClosedMsg signals that the session's event channel was closed.
type sessionClosedMsg struct{}

// NewCallModel creates the call screen for an established or connecting session.
func NewCallModel(session *call.Session) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &CallModel{
		session: session,
		phase:   session.Phase(),
		spinner: s,
		width:   80,
		height:  24,
	}
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForEvent(),
	)
}

// waitForEvent returns a command that blocks on the next session event.
func (m *CallModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.session.Events()
		if !ok {
			return sessionClosedMsg{}
		}
		return sessionEventMsg(ev)
	}
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.session.HangUp()
			return m, tea.Quit

		case "m":
			if muted, err := m.session.ToggleMute(); err == nil {
				m.muted = muted
			} else {
				m.addNotice(err.Error())
			}

		case "c":
			if off, err := m.session.ToggleCamera(); err == nil {
				m.cameraOff = off
			} else {
				m.addNotice(err.Error())
			}

		case "s":
			if sharing, err := m.session.ToggleScreenShare(); err == nil {
				m.sharing = sharing
			} else {
				m.addNotice(err.Error())
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case sessionEventMsg:
		switch msg.Kind {
		case call.EventPhase:
			m.phase = msg.Phase
			if msg.Phase == call.PhaseLobby {
				// The far side hung up or the connection died.
				return m, tea.Quit
			}
		case call.EventNotice:
			m.addNotice(msg.Notice)
		}
		cmds = append(cmds, m.waitForEvent())

	case sessionClosedMsg:
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

func (m *CallModel) addNotice(text string) {
	m.notices = append(m.notices, text)
	if len(m.notices) > 5 {
		m.notices = m.notices[len(m.notices)-5:]
	}
}

func (m *CallModel) View() string {
	var b strings.Builder

	header := HeaderStyle.Render(fmt.Sprintf("%s CallRoom - %s", IconCall, m.session.Room()))
	b.WriteString(header + "\n\n")

	switch m.phase {
	case call.PhaseConnecting:
		b.WriteString(m.viewConnecting())
	case call.PhaseInCall:
		b.WriteString(m.viewInCall())
	default:
		b.WriteString(MutedStyle.Render("Call ended."))
	}

	if len(m.notices) > 0 {
		b.WriteString("\n")
		for _, n := range m.notices {
			b.WriteString(WarningStyle.Render(fmt.Sprintf("%s %s", IconWarning, n)) + "\n")
		}
	}

	b.WriteString("\n" + m.viewFooter())

	return ContainerStyle.Render(b.String())
}

func (m *CallModel) viewConnecting() string {
	var b strings.Builder

	if m.session.Role() == call.RoleCreator {
		b.WriteString(NewRoomInfo(m.session.Room(), "").View())
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("%s Waiting for a peer to join...", m.spinner.View()))
	} else {
		b.WriteString(fmt.Sprintf("%s Connecting to peer...", m.spinner.View()))
	}

	return b.String()
}

func (m *CallModel) viewInCall() string {
	var b strings.Builder

	b.WriteString(SuccessStyle.Render(fmt.Sprintf("%s Connected", IconPeer)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  %s Microphone: %s\n", IconMic, toggleLabel(!m.muted, "on", "muted")))
	b.WriteString(fmt.Sprintf("  %s Camera:     %s\n", IconCamera, toggleLabel(!m.cameraOff, "on", "off")))
	b.WriteString(fmt.Sprintf("  %s Screen:     %s\n", IconScreen, toggleLabel(m.sharing, "sharing", "not sharing")))

	return b.String()
}

func toggleLabel(on bool, onText, offText string) string {
	if on {
		return SuccessStyle.Render(onText)
	}
	return MutedStyle.Render(offText)
}

func (m *CallModel) viewFooter() string {
	return MutedStyle.Render("m: mute  c: camera  s: screen share  q: hang up")
}
