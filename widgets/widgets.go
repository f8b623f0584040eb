// Package widgets renders small reusable pieces of the terminal UI
package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderGlyph renders a single colored glyph
func RenderGlyph(r rune, color [3]uint8) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render(string(r))
}

// RenderMeter draws level (0-1) as a bar width cells wide. Filled cells use
// on, the rest off.
func RenderMeter(level float64, width int, on, off [3]uint8) string {
	if width <= 0 {
		return ""
	}
	level = math.Max(0, math.Min(1, level))
	filled := int(math.Round(level * float64(width)))
	onStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(on)))
	offStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(off)))
	return onStyle.Render(strings.Repeat("▮", filled)) + offStyle.Render(strings.Repeat("▯", width-filled))
}

// RenderSlider draws v within lo..hi as a knob on a track
func RenderSlider(v, lo, hi float64, width int, knob, track rune) string {
	if width <= 0 {
		return ""
	}
	pos := 0
	if hi > lo {
		norm := math.Max(0, math.Min(1, (v-lo)/(hi-lo)))
		pos = int(math.Round(norm * float64(width-1)))
	}
	line := []rune(strings.Repeat(string(track), width))
	line[pos] = knob
	return string(line)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
