package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hdlbus/acbridge/internal/reconcile"
)

// DeviceInfo names one unit shown by the monitor.
type DeviceInfo struct {
	Address string
	Name    string
}

// StateMsg delivers a unit's new state to the monitor. Send it to the
// running program from the gateway's notify path.
type StateMsg struct {
	Device string
	State  reconcile.State
	At     time.Time
}

// staleAfter is how long without a broadcast before a row is flagged.
const staleAfter = 30 * time.Second

type tickMsg time.Time

// monitorKeyMap defines key bindings for the monitor screen
type monitorKeyMap struct {
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.Help, k.Quit},
	}
}

type monitorRow struct {
	info     DeviceInfo
	state    reconcile.State
	lastSeen time.Time
	known    bool
}

// MonitorModel is the live dashboard of every configured unit.
type MonitorModel struct {
	Gateway string
	Width   int
	Height  int

	rows  map[string]*monitorRow
	order []string

	// onRefresh is called when the user requests fresh state; it
	// typically sends a status request per unit.
	onRefresh func()

	helpModel help.Model
	keys      monitorKeyMap
	now       time.Time
}

// NewMonitorModel creates the dashboard for the given units. Units are
// listed in the given order; unlisted units appear as broadcasts for
// them arrive.
func NewMonitorModel(gateway string, devices []DeviceInfo, onRefresh func()) MonitorModel {
	rows := make(map[string]*monitorRow, len(devices))
	order := make([]string, 0, len(devices))
	for _, d := range devices {
		rows[d.Address] = &monitorRow{info: d}
		order = append(order, d.Address)
	}

	keys := monitorKeyMap{
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}

	return MonitorModel{
		Gateway:   gateway,
		rows:      rows,
		order:     order,
		onRefresh: onRefresh,
		helpModel: help.New(),
		keys:      keys,
		now:       time.Now(),
	}
}

// Init implements tea.Model
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.refresh())
}

func (m MonitorModel) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m MonitorModel) refresh() tea.Cmd {
	if m.onRefresh == nil {
		return nil
	}
	refresh := m.onRefresh
	return func() tea.Msg {
		refresh()
		return nil
	}
}

// Update implements tea.Model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.refresh()
		case key.Matches(msg, m.keys.Help):
			m.helpModel.ShowAll = !m.helpModel.ShowAll
			return m, nil
		}

	case StateMsg:
		row, ok := m.rows[msg.Device]
		if !ok {
			row = &monitorRow{info: DeviceInfo{Address: msg.Device}}
			m.rows[msg.Device] = row
			m.order = append(m.order, msg.Device)
			sort.Strings(m.order)
		}
		row.state = msg.State
		row.lastSeen = msg.At
		row.known = true
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, m.tick()
	}

	return m, nil
}

// View implements tea.Model
func (m MonitorModel) View() string {
	width := m.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if width > MaxContentWidth {
		width = MaxContentWidth
	}

	header := RenderHeader("AC Monitor", "acbridge monitor", map[string]string{
		"Gateway": m.Gateway,
		"Units":   fmt.Sprintf("%d", len(m.order)),
	}, width)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	b.WriteString(m.renderTable())
	b.WriteString("\n")
	b.WriteString(m.helpModel.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m MonitorModel) renderTable() string {
	cols := []int{18, 8, 7, 6, 8, 5, 5, 8}
	headers := []string{"NAME", "ADDRESS", "POWER", "MODE", "FAN", "SET", "CUR", "SEEN"}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(TableHeaderStyle.Render(pad(h, cols[i])))
	}
	b.WriteString("\n")

	for _, addr := range m.order {
		row := m.rows[addr]
		b.WriteString(m.renderRow(row, cols))
		b.WriteString("\n")
	}
	return b.String()
}

func (m MonitorModel) renderRow(row *monitorRow, cols []int) string {
	name := row.info.Name
	if name == "" {
		name = row.info.Address
	}

	if !row.known {
		line := pad(name, cols[0]) + pad(row.info.Address, cols[1]) +
			pad("—", cols[2]) + pad("—", cols[3]) + pad("—", cols[4]) +
			pad("—", cols[5]) + pad("—", cols[6]) + pad("never", cols[7])
		return UnknownStyle.Render(line)
	}

	power := PowerOffStyle.Render(pad("OFF", cols[2]))
	if row.state.Power {
		power = PowerOnStyle.Render(pad("ON", cols[2]))
	}

	cur := "—"
	if row.state.CurrentTemp != 0 {
		cur = fmt.Sprintf("%d°", row.state.CurrentTemp)
	}

	age := m.now.Sub(row.lastSeen).Truncate(time.Second)
	seen := age.String() + " ago"
	if age < time.Second {
		seen = "now"
	}
	seenCell := pad(seen, cols[7])
	if age > staleAfter {
		seenCell = StaleStyle.Render(seenCell)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		pad(name, cols[0]),
		pad(row.info.Address, cols[1]),
		power,
		pad(row.state.Mode.String(), cols[3]),
		pad(row.state.Fan.String(), cols[4]),
		pad(fmt.Sprintf("%d°", row.state.TargetTemp), cols[5]),
		pad(cur, cols[6]),
		seenCell,
	)
}

func pad(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return string(runes[:width-1]) + " "
	}
	return s + strings.Repeat(" ", width-len(runes))
}

// RunMonitor starts the dashboard and returns the running program so
// callers can feed it StateMsg updates while it runs.
func RunMonitor(gateway string, devices []DeviceInfo, onRefresh func()) *tea.Program {
	return tea.NewProgram(NewMonitorModel(gateway, devices, onRefresh), tea.WithAltScreen())
}
