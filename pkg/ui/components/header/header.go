// Package header renders the top line of the chat screen.
package header

import (
	"strings"

	"nightshade/pkg/ui/styles"
	"nightshade/pkg/version"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

// Title is the application name shown on the left.
const Title = "Nightshade AI"

// Render returns a single line width cells wide: the title on the left and
// the theme label (plus version when it fits) on the right.
func Render(width int, theme styles.Theme) string {
	if width <= 0 {
		return ""
	}

	label := "Dark mode"
	if !theme.Dark {
		label = "Light mode"
	}
	withVersion := label + "  " + version.Summary()

	titleWidth := runewidth.StringWidth(Title)
	right := label
	if titleWidth+1+runewidth.StringWidth(withVersion) <= width {
		right = withVersion
	}

	rightWidth := runewidth.StringWidth(right)
	if titleWidth+1+rightWidth > width {
		// Too narrow for both; the title wins.
		return theme.Title.Render(ansi.Truncate(Title, width, ""))
	}

	gap := width - titleWidth - rightWidth
	return theme.Title.Render(Title) + strings.Repeat(" ", gap) + theme.ThemeLabel.Render(right)
}
