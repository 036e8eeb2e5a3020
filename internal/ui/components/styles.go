package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme names accepted by ThemeByName and the theme config key
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme defines the color palette
type Theme struct {
	Name string

	// Primary colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color

	// Status colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	// UI colors
	Background lipgloss.Color
	Surface    lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
}

// DarkTheme returns the default dark palette
func DarkTheme() Theme {
	return Theme{
		Name:      ThemeDark,
		Primary:   lipgloss.Color("#00D9FF"), // Cyan
		Secondary: lipgloss.Color("#FFA500"), // Orange

		Success: lipgloss.Color("#0FD976"),
		Warning: lipgloss.Color("#FFA500"),
		Error:   lipgloss.Color("#FF6B6B"),
		Info:    lipgloss.Color("#00D9FF"),

		Background: lipgloss.Color("#0A0A0F"),
		Surface:    lipgloss.Color("#1A1A2E"),
		Foreground: lipgloss.Color("#FFFFFF"),
		Muted:      lipgloss.Color("#666666"),
		Border:     lipgloss.Color("#333333"),
	}
}

// LightTheme returns a palette readable on light terminals
func LightTheme() Theme {
	return Theme{
		Name:      ThemeLight,
		Primary:   lipgloss.Color("#005F87"),
		Secondary: lipgloss.Color("#AF5F00"),

		Success: lipgloss.Color("#008700"),
		Warning: lipgloss.Color("#AF5F00"),
		Error:   lipgloss.Color("#D70000"),
		Info:    lipgloss.Color("#005F87"),

		Background: lipgloss.Color("#F5F5F5"),
		Surface:    lipgloss.Color("#E4E4E4"),
		Foreground: lipgloss.Color("#1C1C1C"),
		Muted:      lipgloss.Color("#767676"),
		Border:     lipgloss.Color("#BCBCBC"),
	}
}

// ThemeByName returns the named theme, dark for unknown names
func ThemeByName(name string) Theme {
	if strings.EqualFold(strings.TrimSpace(name), ThemeLight) {
		return LightTheme()
	}
	return DarkTheme()
}

var (
	themeMu sync.RWMutex
	current = DarkTheme()
)

// SetTheme changes the palette used by NewBaseStyles
func SetTheme(t Theme) {
	themeMu.Lock()
	current = t
	themeMu.Unlock()
}

// CurrentTheme returns the active palette
func CurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return current
}

// ToggleTheme switches between light and dark and returns the new theme
func ToggleTheme() Theme {
	next := LightTheme()
	if CurrentTheme().Name == ThemeLight {
		next = DarkTheme()
	}
	SetTheme(next)
	return next
}

// BaseStyles provides common style builders
type BaseStyles struct {
	Theme Theme
}

// NewBaseStyles creates style builders for the active theme
func NewBaseStyles() *BaseStyles {
	return &BaseStyles{
		Theme: CurrentTheme(),
	}
}

// Title creates a title style
func (s *BaseStyles) Title() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(s.Theme.Primary)
}

// Subtitle creates a subtitle style
func (s *BaseStyles) Subtitle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(s.Theme.Secondary)
}

// Value creates a value style
func (s *BaseStyles) Value() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.Theme.Foreground)
}

// Muted creates a muted text style
func (s *BaseStyles) Muted() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.Theme.Muted)
}

// Selected creates the style of the row under the cursor
func (s *BaseStyles) Selected() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.Theme.Primary).
		Bold(true)
}

// Success creates a success message style
func (s *BaseStyles) Success() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.Theme.Success).
		Bold(true)
}

// Warning creates a warning message style
func (s *BaseStyles) Warning() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.Theme.Warning).
		Bold(true)
}

// Error creates an error message style
func (s *BaseStyles) Error() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.Theme.Error).
		Bold(true)
}

// Info creates an info message style
func (s *BaseStyles) Info() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.Theme.Info).
		Bold(true)
}

// Box creates a bordered box style with proper dimensions
func (s *BaseStyles) Box(width, height int, borderColor lipgloss.Color) lipgloss.Style {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(1, 2)

	if width > 0 {
		style = style.Width(width)
	}

	if height > 0 {
		style = style.Height(height)
	}

	return style
}

// Card creates a card style (box with proper sizing)
func (s *BaseStyles) Card(width, height int) lipgloss.Style {
	return s.Box(width, height, s.Theme.Border)
}

// ActiveCard creates an active/focused card style
func (s *BaseStyles) ActiveCard(width, height int) lipgloss.Style {
	return s.Box(width, height, s.Theme.Primary)
}

// StatusIndicator returns a styled status indicator
func (s *BaseStyles) StatusIndicator(status string, level string) string {
	return lipgloss.NewStyle().
		Foreground(s.levelColor(level)).
		Bold(true).
		Render("● " + status)
}

func (s *BaseStyles) levelColor(level string) lipgloss.Color {
	switch level {
	case "success":
		return s.Theme.Success
	case "warning":
		return s.Theme.Warning
	case "error":
		return s.Theme.Error
	case "info":
		return s.Theme.Info
	default:
		return s.Theme.Muted
	}
}

// ProgressBar renders a horizontal download progress bar
func (s *BaseStyles) ProgressBar(percent int, width int) string {
	if width <= 0 {
		width = 20
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := percent * width / 100

	barColor := s.Theme.Primary
	if percent == 100 {
		barColor = s.Theme.Success
	}

	filledBar := lipgloss.NewStyle().
		Foreground(barColor).
		Render(strings.Repeat("█", filled))

	emptyBar := lipgloss.NewStyle().
		Foreground(s.Theme.Border).
		Render(strings.Repeat("░", width-filled))

	return filledBar + emptyBar
}

// Spinner returns spinner frame
func (s *BaseStyles) Spinner(frame int) string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return lipgloss.NewStyle().
		Foreground(s.Theme.Primary).
		Bold(true).
		Render(frames[frame%len(frames)])
}

// Badge renders a small inline tag such as a release kind
func (s *BaseStyles) Badge(text string, level string) string {
	if text == "" {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(s.levelColor(level)).
		Render("[" + text + "]")
}

// Hint renders a hint/tip text
func (s *BaseStyles) Hint(text string) string {
	return lipgloss.NewStyle().
		Foreground(s.Theme.Muted).
		Italic(true).
		Render(text)
}

// KeyBinding renders a keyboard shortcut
func (s *BaseStyles) KeyBinding(key, description string) string {
	keyStyle := lipgloss.NewStyle().
		Foreground(s.Theme.Primary).
		Bold(true).
		Render(key)

	descStyle := lipgloss.NewStyle().
		Foreground(s.Theme.Foreground).
		Render(description)

	return keyStyle + " " + descStyle
}
