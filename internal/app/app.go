package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iyanyourbae/Updater-Releases/internal/config"
	"github.com/Iyanyourbae/Updater-Releases/internal/logger"
	"github.com/Iyanyourbae/Updater-Releases/internal/modules/downloads"
	"github.com/Iyanyourbae/Updater-Releases/internal/modules/repositories"
	"github.com/Iyanyourbae/Updater-Releases/internal/repolist"
	"github.com/Iyanyourbae/Updater-Releases/internal/ui/components"
	"github.com/Iyanyourbae/Updater-Releases/internal/ui/events"
	"github.com/Iyanyourbae/Updater-Releases/internal/updater"
)

// Module represents a tab in the application
type Module interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (interface{}, tea.Cmd)
	View() string
	Title() string
	HasOpenModal() bool
}

// State carries everything the UI needs; it is built once in main
type State struct {
	Context context.Context
	Config  *config.Config
	Client  *updater.Client
	Worker  *updater.Worker
	Repos   *repolist.List
	History *downloads.History
	Version string
}

// Model represents the main application state
type Model struct {
	state         State
	modules       []Module
	activeModule  int
	width         int
	height        int
	showHelp      bool
	showLogs      bool
	moduleFocused bool
	lastUpdate    time.Time
	quitting      bool
	logLines      []string
	logLoadErr    error
	maxLogLines   int
	logPath       string
}

// New creates a new application model
func New(state State) *Model {
	if state.Context == nil {
		state.Context = context.Background()
	}
	if state.History == nil {
		state.History = downloads.NewHistory()
	}
	if state.Config != nil {
		components.SetTheme(components.ThemeByName(state.Config.Theme))
	}

	m := &Model{
		state:       state,
		lastUpdate:  time.Now(),
		maxLogLines: 200,
		logPath:     logger.GetLogPath(),
	}
	m.modules = []Module{
		repositories.New(repositories.Deps{
			Context: state.Context,
			Client:  state.Client,
			Worker:  state.Worker,
			Repos:   state.Repos,
			History: state.History,
		}),
		downloads.New(state.History),
	}
	return m
}

// Init initializes the application
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{doTick()}
	if len(m.modules) > 0 {
		cmds = append(cmds, m.modules[0].Init())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		cmds = append(cmds, m.broadcast(msg)...)

	case tea.KeyMsg:
		key := msg.String()
		keyLower := strings.ToLower(key)

		if key == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

		if m.showHelp {
			switch keyLower {
			case "esc", "q", "?":
				m.showHelp = false
			}
			return m, nil
		}

		if m.showLogs {
			switch keyLower {
			case "esc", "q", "l":
				m.showLogs = false
			}
			return m, nil
		}

		// A focused module gets all keys
		if m.moduleFocused {
			active := m.modules[m.activeModule]
			hadModal := active.HasOpenModal()
			if _, cmd := active.Update(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}

			if key == "esc" && !hadModal {
				m.moduleFocused = false
				if _, cmd := active.Update(events.Blur{}); cmd != nil {
					cmds = append(cmds, cmd)
				}
			}
			return m, tea.Batch(cmds...)
		}

		switch keyLower {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "?":
			m.showHelp = true
			m.showLogs = false
			return m, nil
		case "l":
			m.showLogs = true
			m.refreshLogs()
			return m, nil
		case "t":
			m.toggleTheme()
			cmds = append(cmds, m.broadcast(events.ThemeChanged{Name: components.CurrentTheme().Name})...)
			return m, tea.Batch(cmds...)
		}

		switch key {
		case "tab", "right":
			m.switchTo((m.activeModule + 1) % len(m.modules))
		case "shift+tab", "left":
			m.switchTo((m.activeModule - 1 + len(m.modules)) % len(m.modules))
		case "1", "2":
			m.switchTo(int(key[0]-'1') % len(m.modules))
		case "enter":
			m.moduleFocused = true
			if _, cmd := m.modules[m.activeModule].Update(events.Focus{}); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		if init := m.modules[m.activeModule].Init(); init != nil {
			cmds = append(cmds, init)
		}
		return m, tea.Batch(cmds...)

	case tickMsg:
		m.lastUpdate = time.Time(msg)
		if m.showLogs {
			m.refreshLogs()
		}
		cmds = append(cmds, doTick())

	default:
		// Async results (query replies, job events) belong to whichever
		// module issued them, so every module sees them
		cmds = append(cmds, m.broadcast(msg)...)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) broadcast(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	for _, module := range m.modules {
		if _, cmd := module.Update(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

func (m *Model) switchTo(i int) {
	if i == m.activeModule {
		return
	}
	m.activeModule = i
	logger.Debug("Switched to module %s", m.modules[i].Title())
}

func (m *Model) toggleTheme() {
	theme := components.ToggleTheme()
	logger.Info("Theme switched to %s", theme.Name)
	if cfg := m.state.Config; cfg != nil {
		cfg.SetTheme(theme.Name)
		if err := cfg.Save(); err != nil {
			logger.Warn("Could not persist theme: %v", err)
		}
	}
}

// View renders the application
func (m *Model) View() string {
	if m.quitting {
		return "Bye from ghupdater!\n"
	}

	layout := components.NewLayout(m.width, m.height)
	if !m.moduleFocused && !m.showLogs {
		layout = layout.WithHint()
	}

	if m.showHelp {
		return m.renderHelp()
	}

	if m.showLogs {
		return m.renderLogOverlay(layout)
	}

	tabs := m.renderTabs()
	footer := m.renderFooter()

	moduleContent := m.modules[m.activeModule].View()

	finalContent := moduleContent
	if !m.moduleFocused {
		hint := m.renderHint(layout.ContentWidth)
		finalContent = lipgloss.JoinVertical(lipgloss.Top, hint, "", moduleContent)
	}

	constrainedContent := lipgloss.NewStyle().
		Width(layout.ContentWidth).
		MaxHeight(layout.ContentHeight).
		Padding(0, 2).
		Render(components.Viewport(finalContent, layout.ContentHeight))

	return lipgloss.JoinVertical(
		lipgloss.Top,
		tabs,
		constrainedContent,
		footer,
	)
}

func (m *Model) renderTabs() string {
	styles := components.NewBaseStyles()

	numTabs := len(m.modules)
	tabWidth := (m.width-8)/numTabs - 2
	if tabWidth < 16 {
		tabWidth = 16
	}

	var tabs []string
	for i, module := range m.modules {
		label := fmt.Sprintf("%d %s", i+1, module.Title())

		style := lipgloss.NewStyle().
			Width(tabWidth).
			Padding(0, 1).
			Align(lipgloss.Center)

		switch {
		case i == m.activeModule && m.moduleFocused:
			label = "◉ " + label
			style = style.Bold(true).
				Foreground(styles.Theme.Background).
				Background(styles.Theme.Primary)
		case i == m.activeModule:
			label = "◎ " + label
			style = style.Bold(true).
				Foreground(styles.Theme.Primary).
				Background(styles.Theme.Surface)
		default:
			style = style.
				Foreground(styles.Theme.Muted).
				Background(styles.Theme.Background)
		}

		tabs = append(tabs, style.Render(components.TruncateString(label, tabWidth-2)))
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Background(styles.Theme.Background).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(styles.Theme.Primary).
		Padding(1, 2).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

func (m *Model) renderFooter() string {
	styles := components.NewBaseStyles()

	footerStyle := lipgloss.NewStyle().
		Width(m.width).
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(styles.Theme.Primary).
		Background(styles.Theme.Background).
		Foreground(styles.Theme.Muted).
		Padding(0, 2)

	focusIndicator := ""
	if m.moduleFocused {
		focusIndicator = styles.Selected().Render(" [FOCUSED]")
	}

	busy := ""
	if m.state.Worker != nil && m.state.Worker.Busy() {
		busy = styles.Warning().Render(" ⬇ downloading")
	}

	shortcuts := "Tab Switch • Enter Focus • Esc Back • T Theme • ? Help • L Logs • Q Quit"
	info := styles.Title().Render(fmt.Sprintf("ghupdater %s", m.state.Version)) + focusIndicator + busy
	left := fmt.Sprintf("%s  │  %s", info, styles.Value().Render(shortcuts))
	status := styles.Success().Render(fmt.Sprintf("⟳ %s", m.lastUpdate.Format("15:04:05")))

	spacer := m.width - lipgloss.Width(left) - lipgloss.Width(status) - 6
	if spacer < 0 {
		spacer = 0
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			left,
			lipgloss.NewStyle().Width(spacer).Render(""),
			status,
		),
	)
}

func (m *Model) refreshLogs() {
	path := m.logPath
	if path == "" {
		path = logger.GetLogPath()
		m.logPath = path
	}

	data, err := os.ReadFile(path)
	if err != nil {
		m.logLoadErr = err
		m.logLines = nil
		return
	}

	var trimmed []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		trimmed = append(trimmed, line)
	}

	if len(trimmed) > m.maxLogLines {
		trimmed = trimmed[len(trimmed)-m.maxLogLines:]
	}

	m.logLoadErr = nil
	m.logLines = trimmed
}

func (m *Model) renderLogOverlay(layout *components.Layout) string {
	boxWidth := layout.ContentWidth - 6
	if boxWidth > 120 {
		boxWidth = 120
	}
	if boxWidth < 60 {
		boxWidth = 60
	}

	styles := components.NewBaseStyles()

	var builder strings.Builder
	builder.WriteString(styles.Title().Render("📋 Log Viewer"))
	builder.WriteString("\n")
	builder.WriteString(styles.Muted().Render(fmt.Sprintf("File: %s", m.logPath)))
	builder.WriteString("\n")
	builder.WriteString(styles.Muted().Render("Press 'l' to close"))
	builder.WriteString("\n\n")

	maxHeight := layout.ContentHeight - 6
	if maxHeight < 12 {
		maxHeight = 12
	}

	switch {
	case m.logLoadErr != nil:
		builder.WriteString(styles.Error().Render(fmt.Sprintf("Unable to read log: %v", m.logLoadErr)))
		builder.WriteString("\n")
	case len(m.logLines) == 0:
		builder.WriteString(styles.Muted().Render("No log entries captured yet."))
		builder.WriteString("\n")
	default:
		// newest lines last, keep the tail visible
		lines := m.logLines
		if room := maxHeight - 8; room > 0 && len(lines) > room {
			lines = lines[len(lines)-room:]
		}
		for _, line := range lines {
			builder.WriteString(styles.Value().Render(components.TruncateString(line, boxWidth-6)))
			builder.WriteString("\n")
		}
	}

	box := lipgloss.NewStyle().
		Width(boxWidth).
		MaxHeight(maxHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Theme.Border).
		Padding(1, 2).
		Render(components.Viewport(builder.String(), maxHeight-4))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) renderHint(width int) string {
	styles := components.NewBaseStyles()

	hint := lipgloss.NewStyle().
		Foreground(styles.Theme.Warning).
		Background(styles.Theme.Surface).
		Bold(true).
		Padding(0, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Theme.Warning).
		Render("Press ENTER to enable commands in this tab")

	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Render(hint)
}

func (m *Model) renderHelp() string {
	styles := components.NewBaseStyles()

	boxWidth := m.width - 10
	if boxWidth < 60 {
		boxWidth = 60
	}
	boxStyle := lipgloss.NewStyle().
		Width(boxWidth).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Theme.Primary).
		Padding(2, 4)

	section := styles.Subtitle().MarginTop(1)
	row := func(key, desc string) string {
		return "  " + styles.KeyBinding(fmt.Sprintf("%-16s", key), desc)
	}

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		styles.Title().Render("⌘ GHUPDATER HELP"),
		"",
		section.Render("NAVIGATION (GLOBAL):"),
		row("Tab / Shift+Tab", "Switch tabs"),
		row("1 / 2", "Jump to tab"),
		row("Enter", "Focus current tab"),
		row("Esc", "Leave focused tab"),
		row("T", "Toggle light/dark theme"),
		row("L", "Toggle logs overlay"),
		row("?", "Toggle this help"),
		row("Q / Ctrl+C", "Quit"),
		"",
		section.Render("REPOSITORIES:"),
		row("A / D", "Add / delete repository"),
		row("S / O", "Save / reload list"),
		row("Enter", "Fetch releases of the row"),
		row("← / →", "Choose release"),
		row("I", "Install an asset of the release"),
		row("C / Esc", "Cancel the running download"),
		"",
		section.Render("DOWNLOADS:"),
		row("↑ / ↓", "Browse finished downloads"),
		row("X", "Clear history"),
		"",
		styles.Muted().Render("Press 'q' or 'Esc' to close help"),
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, boxStyle.Render(content))
}

// tickMsg is sent every second to update the clock
type tickMsg time.Time

func doTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
