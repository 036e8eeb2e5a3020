package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// ProgressCard renders the state of a running or finished download job
type ProgressCard struct {
	Title     string
	Percent   int
	SizeText  string
	SpeedText string
	Status    string
	Level     string // "info" while running, then "success" or "error"
	Width     int
}

// Render creates the progress card view
func (p *ProgressCard) Render() string {
	styles := NewBaseStyles()

	borderColor := styles.Theme.Primary
	switch p.Level {
	case "success":
		borderColor = styles.Theme.Success
	case "error":
		borderColor = styles.Theme.Error
	}

	width := p.Width
	if width <= 0 {
		width = 60
	}
	innerW, _ := cardInner(width, 0)

	barWidth := innerW - 6
	if barWidth > 50 {
		barWidth = 50
	}

	lines := []string{
		styles.Title().Render(TruncateString(p.Title, innerW)),
		"",
		fmt.Sprintf("%s %3d%%", styles.ProgressBar(p.Percent, barWidth), p.Percent),
	}
	if p.SizeText != "" {
		lines = append(lines, styles.Value().Render(p.SizeText+"  •  "+p.SpeedText))
	}
	if p.Status != "" {
		lines = append(lines, "", styles.StatusIndicator(TruncateString(p.Status, innerW-2), p.Level))
	}

	return styles.Box(width, 0, borderColor).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// InfoCard renders an informational card
type InfoCard struct {
	Title   string
	Lines   []string
	Width   int
	Height  int
	Focused bool
}

// Render creates the info card view
func (i *InfoCard) Render() string {
	styles := NewBaseStyles()

	card := styles.Card(i.Width, i.Height)
	if i.Focused {
		card = styles.ActiveCard(i.Width, i.Height)
	}

	innerW, innerH := cardInner(i.Width, i.Height)

	contentLines := []string{}
	if i.Title != "" {
		contentLines = append(contentLines, styles.Title().Width(innerW).Render(i.Title), "")
	}

	for _, line := range i.Lines {
		contentLines = append(contentLines, styles.Value().
			Width(innerW).
			Render(TruncateString(line, innerW)))
	}

	return card.Render(Viewport(lipgloss.JoinVertical(lipgloss.Left, contentLines...), innerH))
}

// ListCard renders a selectable list, used for the release and asset pickers
type ListCard struct {
	Title        string
	Items        []string
	SelectedItem int
	Width        int
	Height       int
}

// Render creates the list card view
func (l *ListCard) Render() string {
	styles := NewBaseStyles()

	innerW, innerH := cardInner(l.Width, l.Height)

	contentLines := []string{}
	if l.Title != "" {
		contentLines = append(contentLines, styles.Title().Width(innerW).Render(l.Title), "")
	}

	// keep the selection visible in long lists
	visible := innerH - len(contentLines)
	start := 0
	if visible > 0 && l.SelectedItem >= visible {
		start = l.SelectedItem - visible + 1
	}

	for i := start; i < len(l.Items); i++ {
		truncated := TruncateString(l.Items[i], innerW-3)
		if i == l.SelectedItem {
			contentLines = append(contentLines, styles.Selected().Width(innerW).Render("▶ "+truncated))
		} else {
			contentLines = append(contentLines, styles.Value().Width(innerW).Render("  "+truncated))
		}
	}

	return styles.ActiveCard(l.Width, l.Height).
		Render(Viewport(lipgloss.JoinVertical(lipgloss.Left, contentLines...), innerH))
}

// StatusCard renders a one-line status message
type StatusCard struct {
	Type    string // "success", "error", "warning", "info"
	Message string
	Width   int
}

// Render creates the status card view
func (s *StatusCard) Render() string {
	if s.Message == "" {
		return ""
	}

	styles := NewBaseStyles()

	var style lipgloss.Style
	var icon string

	switch s.Type {
	case "success":
		style = styles.Success()
		icon = "✓"
	case "error":
		style = styles.Error()
		icon = "✗"
	case "warning":
		style = styles.Warning()
		icon = "⚠"
	default:
		style = styles.Info()
		icon = "ℹ"
	}

	content := fmt.Sprintf("%s %s", icon, s.Message)
	if s.Width > 0 {
		return style.Width(s.Width).Render(TruncateString(content, s.Width))
	}
	return style.Render(content)
}
