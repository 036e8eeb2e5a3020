package downloads

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/Iyanyourbae/Updater-Releases/internal/ui/components"
	"github.com/Iyanyourbae/Updater-Releases/internal/ui/events"
)

// Model represents the downloads module state
type Model struct {
	history *History
	width   int
	height  int
	cursor  int
	focused bool
	now     func() time.Time
}

// New creates the downloads module over the session history
func New(history *History) *Model {
	return &Model{
		history: history,
		now:     time.Now,
	}
}

// Init initializes the module
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (interface{}, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.Focus:
		m.focused = true

	case events.Blur:
		m.focused = false

	case tea.KeyMsg:
		records := m.history.Records()
		switch strings.ToLower(msg.String()) {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(records)-1 {
				m.cursor++
			}
		case "x":
			m.history.Clear()
			m.cursor = 0
		}
	}

	return m, nil
}

// View renders the module
func (m *Model) View() string {
	styles := components.NewBaseStyles()
	records := m.history.Records()

	var b strings.Builder
	b.WriteString(styles.Title().Render("⬇ DOWNLOADS"))
	b.WriteString("\n\n")

	if len(records) == 0 {
		b.WriteString(styles.Muted().Render("No downloads finished in this session."))
		b.WriteString("\n")
		b.WriteString(styles.Hint("Pick a repository in the Repositories tab and press I to install a release."))
		b.WriteString("\n")
		return b.String()
	}

	if m.cursor >= len(records) {
		m.cursor = len(records) - 1
	}

	for i, r := range records {
		icon := styles.Success().Render("✓")
		if !r.Success {
			icon = styles.Error().Render("✗")
		}

		line := fmt.Sprintf("%s %-28s %-30s %10s  %8s  %s",
			icon,
			components.TruncateString(r.Asset, 28),
			components.TruncateString(r.Repo+"@"+r.Tag, 30),
			sizeText(r.Size),
			r.Duration().Round(100*time.Millisecond),
			humanize.RelTime(r.Finished, m.now(), "ago", "from now"),
		)
		if i == m.cursor && m.focused {
			line = styles.Selected().Render("▶ ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.focused {
		sel := records[m.cursor]
		detail := &components.InfoCard{
			Title: sel.Asset,
			Lines: []string{
				"Repository:  " + sel.Repo,
				"Release:     " + sel.Tag,
				"Destination: " + sel.Destination,
				"Result:      " + sel.Message,
			},
			Width:   m.detailWidth(),
			Height:  10,
			Focused: true,
		}
		b.WriteString("\n")
		b.WriteString(detail.Render())
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(styles.Theme.Muted).Render(
		fmt.Sprintf("%d download(s) • ↑/↓ Navigate • X Clear history", len(records))))

	return b.String()
}

func (m *Model) detailWidth() int {
	w := m.width - 8
	if w > 100 {
		w = 100
	}
	if w < 40 {
		w = 40
	}
	return w
}

func sizeText(n int64) string {
	if n <= 0 {
		return "?"
	}
	return humanize.IBytes(uint64(n))
}

// Title returns the module title
func (m *Model) Title() string {
	return "Downloads"
}

// HasOpenModal returns true if the module has an open modal/dialog
func (m *Model) HasOpenModal() bool {
	return false
}
