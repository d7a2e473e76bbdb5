package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/logger"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f5c2e7"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))

	statusStyles = map[core.ScheduleStatus]lipgloss.Style{
		core.ScheduleStatusPending:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af")),
		core.ScheduleStatusExecuted:  lipgloss.NewStyle().Foreground(lipgloss.Color("green")),
		core.ScheduleStatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("red")),
		core.ScheduleStatusCancelled: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
)

func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.width = msg.Width
		m.height = msg.Height
		m.updateTable()
		return m, nil
	case tickMsg:
		return m, tea.Batch(m.loadCmd(), m.tickCmd())
	case refreshMsg:
		if msg.err != nil {
			logger.Logger.WithError(msg.err).Warn("Dashboard refresh failed")
			m.message = errorStyle.Render("Refresh failed: " + msg.err.Error())
			return m, nil
		}
		m.schedules = msg.schedules
		m.stats = msg.stats
		m.lastLoad = msg.at
		m.updateTable()
		return m, nil
	case cancelResultMsg:
		switch {
		case msg.err != nil:
			m.message = errorStyle.Render("Cancel failed: " + msg.err.Error())
		case msg.cancelled:
			m.message = messageStyle.Render("Cancelled " + shortID(msg.id))
		default:
			m.message = errorStyle.Render("Schedule " + shortID(msg.id) + " is no longer pending")
		}
		return m, m.loadCmd()
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quit = true
			return m, tea.Quit
		}
		if key.Matches(msg, m.keys.Help) {
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		switch m.state {
		case ConfirmCancelState:
			return m.handleConfirmUpdate(msg)
		default:
			return m.handleDashboardUpdate(msg)
		}
	}
	return m, nil
}

func (m *MainModel) handleDashboardUpdate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.table.MoveUp(1)
	case key.Matches(msg, m.keys.Down):
		m.table.MoveDown(1)
	case key.Matches(msg, m.keys.Refresh):
		m.message = ""
		return m, m.loadCmd()
	case key.Matches(msg, m.keys.Filter):
		m.filterPos = (m.filterPos + 1) % len(statusFilters)
		return m, m.loadCmd()
	case key.Matches(msg, m.keys.Cancel):
		s, ok := m.selected()
		if !ok {
			return m, nil
		}
		if s.Status != core.ScheduleStatusPending {
			m.message = errorStyle.Render("Only pending schedules can be cancelled")
			return m, nil
		}
		m.pendingID = s.ID
		m.state = ConfirmCancelState
	}
	return m, nil
}

func (m *MainModel) handleConfirmUpdate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		id := m.pendingID
		m.pendingID = ""
		m.state = DashboardState
		return m, m.cancelCmd(id)
	case key.Matches(msg, m.keys.Back):
		m.pendingID = ""
		m.state = DashboardState
	}
	return m, nil
}

func (m *MainModel) selected() (core.Schedule, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.schedules) {
		return core.Schedule{}, false
	}
	return m.schedules[i], true
}

func (m *MainModel) View() string {
	if m.quit {
		return ""
	}
	var sb strings.Builder

	filter := "all"
	if f := m.filter(); f != "" {
		filter = string(f)
	}
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Autoposter %s: schedules (%s)", m.version, filter)) + "\n")
	sb.WriteString(m.renderStats() + "\n\n")
	sb.WriteString(m.table.View() + "\n")

	if m.state == ConfirmCancelState {
		sb.WriteString("\nCancel schedule " + shortID(m.pendingID) + "? (y/n)\n")
	} else if m.message != "" {
		sb.WriteString("\n" + m.message + "\n")
	}

	helpView := m.help.View(m.keys)
	if pad := m.height - strings.Count(sb.String(), "\n") - strings.Count(helpView, "\n") - 2; pad > 0 {
		sb.WriteString(strings.Repeat("\n", pad))
	}
	sb.WriteString("\n" + helpView)
	return sb.String()
}

func (m *MainModel) renderStats() string {
	st := m.stats
	line := fmt.Sprintf("total %d | pending %d | executed %d | failed %d | cancelled %d | today %d | success %.1f%%",
		st.Total, st.Pending, st.Executed, st.Failed, st.Cancelled, st.Today, st.SuccessRate)
	if !m.lastLoad.IsZero() {
		line += " | updated " + m.lastLoad.Format("15:04:05")
	}
	return line
}

func (m *MainModel) updateTable() {
	columns := []table.Column{
		{Title: "Schedule", Width: 10},
		{Title: "Post", Width: 10},
		{Title: "Scheduled", Width: 17},
		{Title: "Recurrence", Width: 10},
		{Title: "Status", Width: 10},
		{Title: "Detail", Width: 40},
	}

	rows := make([]table.Row, len(m.schedules))
	for i, s := range m.schedules {
		detail := s.ErrorMessage
		if s.ExecutedAt != nil {
			detail = "executed " + s.ExecutedAt.Format("2006-01-02 15:04")
		}
		style, ok := statusStyles[s.Status]
		if !ok {
			style = lipgloss.NewStyle()
		}
		rows[i] = table.Row{
			shortID(s.ID),
			shortID(s.PostID),
			s.ScheduledTime.Format("2006-01-02 15:04"),
			string(s.Recurrence),
			style.Render(string(s.Status)),
			detail,
		}
	}

	cursor := m.table.Cursor()
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(max(m.height-10, 3)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("#cba6f7")).
		Bold(false)
	t.SetStyles(s)
	if cursor > 0 && cursor < len(rows) {
		t.SetCursor(cursor)
	}

	m.table = t
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Run starts the dashboard and blocks until the user quits.
func Run(source ScheduleSource, version string, refresh time.Duration) error {
	_, err := tea.NewProgram(NewMainModel(source, version, refresh)).Run()
	return err
}
