package theme

import (
	"github.com/charmbracelet/lipgloss"

	"beatgrid/debug"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Flags
	Solid rune // ■ on
	Empty rune // □ off

	// Grid cells by velocity
	StepEmpty  rune // · off
	StepLow    rune // ▁ low
	StepMedium rune // ▄ medium
	StepHigh   rune // █ high

	Playhead rune // ▶ marks the playing column
	Knob     rune // ● position on a slider
	Track    rune // ─ slider track
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Solid: '■',
			Empty: '□',

			StepEmpty:  '·',
			StepLow:    '▁',
			StepMedium: '▄',
			StepHigh:   '█',

			Playhead: '▶',
			Knob:     '●',
			Track:    '─',
		},
	}
}

// Load builds a theme from a GPL file, or the built-in palette when path
// is empty or unreadable
func Load(path string) *Theme {
	if path == "" {
		return New(DefaultPalette())
	}
	p, err := LoadGPL(path)
	if err != nil {
		debug.Warn("theme", "palette %s: %v, using plasma", path, err)
		return New(DefaultPalette())
	}
	return New(p)
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0 // deep purple
	RoleSurface = 0.1 // dark purple
	RoleMuted   = 0.2 // purple-magenta
	RoleFG      = 0.4 // pink-purple (readable)
	RoleAccent  = 0.5 // vivid magenta
	RoleCursor  = 0.6 // rose pink
	RoleActive  = 0.7 // soft red
	RoleWarning = 0.8 // orange
	RoleSuccess = 1.0 // bright yellow
)

// Style helpers

func (t *Theme) BG() lipgloss.Color {
	return t.Color(RoleBG)
}

func (t *Theme) Surface() lipgloss.Color {
	return t.Color(RoleSurface)
}

func (t *Theme) FG() lipgloss.Color {
	return t.Color(RoleFG)
}

func (t *Theme) Accent() lipgloss.Color {
	return t.Color(RoleAccent)
}

func (t *Theme) Muted() lipgloss.Color {
	return t.Color(RoleMuted)
}

func (t *Theme) Active() lipgloss.Color {
	return t.Color(RoleActive)
}

func (t *Theme) Cursor() lipgloss.Color {
	return t.Color(RoleCursor)
}

func (t *Theme) Warning() lipgloss.Color {
	return t.Color(RoleWarning)
}

func (t *Theme) Success() lipgloss.Color {
	return t.Color(RoleSuccess)
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return lipgloss.Color(t.Palette.Lookup(norm).Hex())
}

// RGB returns raw RGB for any normalized value
func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}

// Cell returns the glyph and palette position for a velocity level 0-3
func (t *Theme) Cell(level int) (rune, float64) {
	switch {
	case level <= 0:
		return t.Symbols.StepEmpty, RoleMuted
	case level == 1:
		return t.Symbols.StepLow, RoleAccent
	case level == 2:
		return t.Symbols.StepMedium, RoleActive
	default:
		return t.Symbols.StepHigh, RoleSuccess
	}
}

// Flag returns the Solid or Empty symbol
func (t *Theme) Flag(on bool) rune {
	if on {
		return t.Symbols.Solid
	}
	return t.Symbols.Empty
}
