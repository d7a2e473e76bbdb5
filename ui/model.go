package ui

import (
	"time"

	"github.com/agnosto/autoposter/core"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// ScheduleSource is the part of the scheduler the dashboard reads and acts on.
type ScheduleSource interface {
	ListSchedules(status core.ScheduleStatus, limit int) ([]core.Schedule, error)
	Statistics() (core.Statistics, error)
	CancelSchedule(id string) (bool, error)
}

type AppState int

const (
	DashboardState AppState = iota
	ConfirmCancelState
)

const scheduleLimit = 200

// statusFilters is the cycle used by the filter key; "" shows everything.
var statusFilters = []core.ScheduleStatus{
	"",
	core.ScheduleStatusPending,
	core.ScheduleStatusExecuted,
	core.ScheduleStatusFailed,
	core.ScheduleStatusCancelled,
}

type MainModel struct {
	version   string
	source    ScheduleSource
	refresh   time.Duration
	state     AppState
	quit      bool
	schedules []core.Schedule
	stats     core.Statistics
	filterPos int
	table     table.Model
	keys      keyMap
	help      help.Model
	width     int
	height    int
	message   string
	pendingID string
	lastLoad  time.Time
}

type refreshMsg struct {
	schedules []core.Schedule
	stats     core.Statistics
	err       error
	at        time.Time
}

type tickMsg struct{}

type cancelResultMsg struct {
	id        string
	cancelled bool
	err       error
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Help    key.Binding
	Quit    key.Binding
	Filter  key.Binding
	Refresh key.Binding
	Cancel  key.Binding
	Confirm key.Binding
	Back    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Cancel, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Cancel, k.Filter},
		{k.Refresh, k.Back},
		{k.Help, k.Quit},
	}
}

var defaultKeyMap = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "move up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "move down"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Filter: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "cycle status filter"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "cancel schedule"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("y", "enter"),
		key.WithHelp("y", "confirm"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "n"),
		key.WithHelp("esc", "back"),
	),
}

// NewMainModel builds the dashboard. refresh is the reload interval; zero
// means 5 seconds.
func NewMainModel(source ScheduleSource, version string, refresh time.Duration) *MainModel {
	if refresh <= 0 {
		refresh = 5 * time.Second
	}
	m := &MainModel{
		version: version,
		source:  source,
		refresh: refresh,
		keys:    defaultKeyMap,
		help:    help.New(),
		state:   DashboardState,
		height:  24,
	}
	m.updateTable()
	return m
}

func (m *MainModel) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, m.loadCmd(), m.tickCmd())
}

func (m *MainModel) filter() core.ScheduleStatus {
	return statusFilters[m.filterPos]
}

func (m *MainModel) loadCmd() tea.Cmd {
	source, status := m.source, m.filter()
	return func() tea.Msg {
		msg := refreshMsg{at: time.Now()}
		msg.schedules, msg.err = source.ListSchedules(status, scheduleLimit)
		if msg.err != nil {
			return msg
		}
		msg.stats, msg.err = source.Statistics()
		return msg
	}
}

func (m *MainModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *MainModel) cancelCmd(id string) tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ok, err := source.CancelSchedule(id)
		return cancelResultMsg{id: id, cancelled: ok, err: err}
	}
}
