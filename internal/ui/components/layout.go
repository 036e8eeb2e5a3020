package components

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	chromeHeight = 9 // tab bar, footer and spacing around the content
	hintHeight   = 3
	minContentW  = 40
	minContentH  = 10

	// cards share a rounded border with 2 columns and 1 row of padding
	cardFrameW = 2 + 2*2
	cardFrameH = 2 + 2*1
)

// Layout is the space left for a module between the tab bar and the footer
type Layout struct {
	ContentWidth  int
	ContentHeight int

	height int
}

// NewLayout sizes the content area of a width x height terminal
func NewLayout(width, height int) *Layout {
	l := &Layout{
		ContentWidth: max(width-4, minContentW),
		height:       height,
	}
	l.ContentHeight = max(height-chromeHeight, minContentH)
	return l
}

// WithHint shrinks the content area to make room for the focus hint
func (l *Layout) WithHint() *Layout {
	out := *l
	out.ContentHeight = max(l.height-chromeHeight-hintHeight, minContentH)
	return &out
}

// cardInner returns the usable text area of a card of the given outer size
func cardInner(width, height int) (int, int) {
	return max(width-cardFrameW, 10), max(height-cardFrameH, 3)
}

// Viewport clips content to maxHeight lines
func Viewport(content string, maxHeight int) string {
	if maxHeight <= 0 {
		return ""
	}
	return lipgloss.NewStyle().MaxHeight(maxHeight).Render(content)
}

// TruncateString shortens text to width runes, ending in "..." when cut
func TruncateString(text string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(text)
	switch {
	case len(runes) <= width:
		return text
	case width <= 3:
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
