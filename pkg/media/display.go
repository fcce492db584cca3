package media

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	// CaptionWidth is the number of terminal cells a caption may occupy.
	CaptionWidth = 40

	noCaption = "no caption"
	ellipsis  = "..."
)

// ShortCaption returns the caption on a single line, truncated to
// CaptionWidth cells. Items without a caption return "".
func (i Item) ShortCaption() string {
	if i.Caption == "" {
		return ""
	}
	caption := strings.ReplaceAll(i.Caption, "\r", "")
	caption = strings.ReplaceAll(caption, "\n", "")
	return runewidth.Truncate(caption, CaptionWidth, ellipsis)
}

// String renders the item without colors.
func (i Item) String() string {
	caption := i.ShortCaption()
	if caption == "" {
		caption = noCaption
	}
	return fmt.Sprintf("%11s %s", i.ID, caption)
}

// Styles colors item labels for terminal output.
type Styles struct {
	ID        lipgloss.Style
	Caption   lipgloss.Style
	NoCaption lipgloss.Style
}

// DefaultStyles returns yellow identifiers and blue captions.
func DefaultStyles() Styles {
	return Styles{
		ID:        lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		Caption:   lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		NoCaption: lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	}
}

// Render formats the item the same way as String, with styles applied.
func (s Styles) Render(i Item) string {
	id := s.ID.Render(fmt.Sprintf("%11s", i.ID))
	if caption := i.ShortCaption(); caption != "" {
		return id + " " + s.Caption.Render(caption)
	}
	return id + " " + s.NoCaption.Render(noCaption)
}
