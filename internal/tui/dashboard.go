package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/openskies-io/alpacahub/internal/autodiscovery"
	"github.com/openskies-io/alpacahub/internal/registry"
)

const transitionTimeout = 30 * time.Second

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	result *autodiscovery.Result
	err    error
}
type transitionDoneMsg struct {
	id  string
	err error
}
type registryEventMsg struct {
	event registry.Event
}

// dashboardKeyMap defines key bindings for the dashboard
type dashboardKeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Scan       key.Binding
	Connect    key.Binding
	Disconnect key.Binding
	Remove     key.Binding
	Quit       key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Scan, k.Connect, k.Disconnect, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Scan, k.Connect, k.Disconnect, k.Remove, k.Quit},
	}
}

// deviceItem wraps a UnifiedDevice for use with bubbles/list
type deviceItem struct {
	device *registry.UnifiedDevice
}

// Implement list.Item interface
func (d deviceItem) FilterValue() string {
	return d.device.Name + " " + d.device.ID
}

func (d deviceItem) Title() string {
	return d.device.Name
}

func (d deviceItem) Description() string {
	return fmt.Sprintf("%s • %s:%d • %s",
		d.device.Type, d.device.IPAddress, d.device.Port, statusLabel(d.device))
}

// statusLabel maps connection state to a display string.
func statusLabel(d *registry.UnifiedDevice) string {
	switch d.Status {
	case registry.StatusConnected:
		return "Connected"
	case registry.StatusConnecting:
		return "Connecting..."
	case registry.StatusDisconnecting:
		return "Disconnecting..."
	case registry.StatusError:
		return "Error"
	default:
		return "Idle"
	}
}

// statusStyle maps connection state to a lipgloss style.
func statusStyle(d *registry.UnifiedDevice) lipgloss.Style {
	switch d.Status {
	case registry.StatusConnected:
		return ConnectedStyle
	case registry.StatusConnecting, registry.StatusDisconnecting:
		return TransitionStyle
	case registry.StatusError:
		return ErrorStateStyle
	default:
		return IdleStyle
	}
}

// deviceDelegate renders device rows with state-colored status
type deviceDelegate struct{}

func (d deviceDelegate) Height() int { return 3 }

func (d deviceDelegate) Spacing() int { return 0 }

func (d deviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d deviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	di, ok := item.(deviceItem)
	if !ok {
		return
	}

	device := di.device
	selected := index == m.Index()

	var b strings.Builder
	if selected {
		b.WriteString(SelectedItemStyle.Render("→ " + device.Name))
	} else {
		b.WriteString("  " + device.Name)
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("    %s #%d at %s:%d  ",
		device.Type, device.DeviceNumber, device.IPAddress, device.Port))
	b.WriteString(statusStyle(device).Render(statusLabel(device)))
	b.WriteString("\n")

	fmt.Fprint(w, b.String())
}

// Model is the dashboard: live device list with discovery and connection
// controls. Registry events drive refreshes so external changes (REST
// clients, auto-discovery) show up without polling.
type Model struct {
	registry     *registry.Registry
	orchestrator *autodiscovery.Orchestrator

	// events receives registry bus events; the listener never blocks the
	// bus, overflow is dropped and the next refresh picks up the state.
	events chan registry.Event

	// UI state
	DeviceList list.Model
	Scanning   bool
	StatusLine string
	Err        error
	Width      int
	Height     int
	Spinner    spinner.Model
	Help       help.Model
	Keys       dashboardKeyMap
}

// New creates the dashboard model over the registry and orchestrator.
func New(reg *registry.Registry, orch *autodiscovery.Orchestrator) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	deviceList := list.New([]list.Item{}, deviceDelegate{}, 0, 0)
	deviceList.Title = "Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetFilteringEnabled(false)
	deviceList.SetShowHelp(false)
	deviceList.Styles.Title = TitleStyle

	keys := dashboardKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Scan: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "scan"),
		),
		Connect: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "connect"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "disconnect"),
		),
		Remove: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "remove"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "quit"),
		),
	}

	events := make(chan registry.Event, 64)
	reg.Events().AddListener(func(event registry.Event) {
		select {
		case events <- event:
		default:
		}
	})

	m := Model{
		registry:     reg,
		orchestrator: orch,
		events:       events,
		DeviceList:   deviceList,
		Spinner:      s,
		Help:         help.New(),
		Keys:         keys,
	}
	m.refreshDevices()
	return m
}

// Init starts an initial scan and the event wait loop
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		m.scanCmd(),
		m.waitForEvent(),
		m.Spinner.Tick,
	)
}

// scanCmd runs one discovery cycle off the UI goroutine.
func (m Model) scanCmd() tea.Cmd {
	orch := m.orchestrator
	return func() tea.Msg {
		result, err := orch.DiscoverAndRegister(context.Background())
		return scanCompleteMsg{result: result, err: err}
	}
}

// waitForEvent blocks on the registry event channel.
func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return registryEventMsg{event: <-events}
	}
}

// transitionCmd runs a connect or disconnect off the UI goroutine.
func (m Model) transitionCmd(id string, connect bool) tea.Cmd {
	reg := m.registry
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), transitionTimeout)
		defer cancel()

		var err error
		if connect {
			err = reg.Connect(ctx, id)
		} else {
			err = reg.Disconnect(ctx, id)
		}
		return transitionDoneMsg{id: id, err: err}
	}
}

// refreshDevices reloads the list items from the registry snapshot.
func (m *Model) refreshDevices() {
	devices := m.registry.List()
	items := make([]list.Item, len(devices))
	for i, d := range devices {
		items[i] = deviceItem{device: d}
	}
	m.DeviceList.SetItems(items)
}

// selectedDevice returns the device under the cursor, if any.
func (m Model) selectedDevice() *registry.UnifiedDevice {
	if item := m.DeviceList.SelectedItem(); item != nil {
		if di, ok := item.(deviceItem); ok {
			return di.device
		}
	}
	return nil
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DeviceList.SetWidth(msg.Width - 4)
		m.DeviceList.SetHeight(msg.Height - 10) // Leave room for header/footer

	case scanStartMsg:
		m.Scanning = true
		m.StatusLine = ""

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		if msg.err == nil && msg.result != nil {
			m.StatusLine = fmt.Sprintf("Scan complete: %d new device(s), %d already known",
				len(msg.result.Added), msg.result.Skipped)
			if len(msg.result.Failures) > 0 {
				m.StatusLine += fmt.Sprintf(", %d server(s) unreachable", len(msg.result.Failures))
			}
		}
		m.refreshDevices()

	case transitionDoneMsg:
		if msg.err != nil {
			m.StatusLine = fmt.Sprintf("%s: %v", msg.id, msg.err)
		}
		m.refreshDevices()

	case registryEventMsg:
		m.refreshDevices()
		return m, m.waitForEvent()

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	if !m.Scanning {
		m.DeviceList, cmd = m.DeviceList.Update(msg)
	}
	return m, cmd
}

// updateKeys handles keyboard input
func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit

	case "s":
		if m.Scanning {
			return m, nil
		}
		return m, tea.Batch(
			func() tea.Msg { return scanStartMsg{} },
			m.scanCmd(),
			m.Spinner.Tick,
		)

	case "c":
		if device := m.selectedDevice(); device != nil {
			m.StatusLine = "Connecting " + device.Name + "..."
			return m, m.transitionCmd(device.ID, true)
		}

	case "d":
		if device := m.selectedDevice(); device != nil {
			m.StatusLine = "Disconnecting " + device.Name + "..."
			return m, m.transitionCmd(device.ID, false)
		}

	case "x":
		if device := m.selectedDevice(); device != nil {
			if err := m.registry.Remove(device.ID); err != nil {
				m.StatusLine = fmt.Sprintf("%s: %v", device.ID, err)
			}
			m.refreshDevices()
		}
	}

	// Let the list handle up/down navigation
	var cmd tea.Cmd
	m.DeviceList, cmd = m.DeviceList.Update(msg)
	return m, cmd
}

// View renders the dashboard
func (m Model) View() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	var content string
	if m.Scanning {
		content = m.renderScanning(width)
	} else {
		content = m.renderDevices()
	}

	if m.StatusLine != "" {
		content += "\n" + StatusLineStyle.Render(m.StatusLine)
	}

	return RenderApplicationContainer(content, m.Help.View(m.Keys), m.Width, m.Height)
}

// renderScanning renders the centered scan progress display
func (m Model) renderScanning(width int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(fmt.Sprintf("%s SEARCHING FOR ALPACA SERVERS", m.Spinner.View())),
		"",
		SubtitleStyle.Render("Broadcasting discovery request and collecting replies..."),
		"",
	)
	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

// renderDevices renders the device list or an empty-state message
func (m Model) renderDevices() string {
	var b strings.Builder

	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString(RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
		b.WriteString("  Troubleshooting:\n")
		b.WriteString("    • Ensure the Alpaca server is running and on the same subnet\n")
		b.WriteString("    • Check that UDP port 32227 is not blocked by a firewall\n")
		b.WriteString("    • Use 'alpacahub add' for servers on other subnets\n")

	} else if len(m.DeviceList.Items()) == 0 {
		warningStyle := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
		b.WriteString("  ")
		b.WriteString(warningStyle.Render("⚠ No Alpaca devices found on your network"))
		b.WriteString("\n\n")
		b.WriteString("  Troubleshooting:\n")
		b.WriteString("    • Ensure the Alpaca server is running and on the same subnet\n")
		b.WriteString("    • Check that UDP port 32227 is not blocked by a firewall\n")
		b.WriteString("    • Press 's' to scan again\n")

	} else {
		b.WriteString(m.DeviceList.View())
	}

	return b.String()
}
