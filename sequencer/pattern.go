package sequencer

import (
	"fmt"
	"strconv"
	"strings"
)

// Velocity is the intensity of a cell: off, low, medium or high
type Velocity uint8

const (
	Off Velocity = iota
	Low
	Medium
	High
)

var velocityGain = [...]float64{Off: 0, Low: 0.2, Medium: 0.6, High: 1.0}

// ClampVelocity converts an int from the UI or a file into a Velocity
func ClampVelocity(v int) Velocity {
	if v < int(Off) {
		return Off
	}
	if v > int(High) {
		return High
	}
	return Velocity(v)
}

// Gain maps a velocity to normalized playback gain
func (v Velocity) Gain() float64 {
	if v > High {
		v = High
	}
	return velocityGain[v]
}

// Next cycles off -> low -> medium -> high -> off
func (v Velocity) Next() Velocity {
	if v >= High {
		return Off
	}
	return v + 1
}

// MarshalJSON writes a plain number so grids stay readable arrays
// instead of base64 byte strings
func (v Velocity) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(v), 10), nil
}

func (v *Velocity) UnmarshalJSON(b []byte) error {
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("velocity: %w", err)
	}
	*v = ClampVelocity(n)
	return nil
}

// Pattern is a channel × step grid of velocities. Row i is channel i.
type Pattern [][]Velocity

// NewPattern creates an empty grid
func NewPattern(channels, steps int) Pattern {
	p := make(Pattern, channels)
	for i := range p {
		p[i] = make([]Velocity, steps)
	}
	return p
}

// Channels is the number of rows
func (p Pattern) Channels() int {
	return len(p)
}

// Steps is the number of columns
func (p Pattern) Steps() int {
	if len(p) == 0 {
		return 0
	}
	return len(p[0])
}

// At returns the velocity of a cell, or Off outside the grid
func (p Pattern) At(ch, step int) Velocity {
	if ch < 0 || ch >= len(p) || step < 0 || step >= len(p[ch]) {
		return Off
	}
	return p[ch][step]
}

// With returns a copy of p with one cell changed
func (p Pattern) With(ch, step int, v Velocity) Pattern {
	out := p.Clone()
	if ch >= 0 && ch < len(out) && step >= 0 && step < len(out[ch]) {
		out[ch][step] = v
	}
	return out
}

// Clone deep-copies the grid
func (p Pattern) Clone() Pattern {
	if p == nil {
		return nil
	}
	out := make(Pattern, len(p))
	for i, row := range p {
		out[i] = append([]Velocity(nil), row...)
	}
	return out
}

// ActiveCells counts cells with a velocity above off
func (p Pattern) ActiveCells() int {
	n := 0
	for _, row := range p {
		for _, v := range row {
			if v > Off {
				n++
			}
		}
	}
	return n
}

// IsEmpty reports whether no cell is set
func (p Pattern) IsEmpty() bool {
	return p.ActiveCells() == 0
}

// Normalize fits p to channels × steps, padding with Off and dropping extras
func (p Pattern) Normalize(channels, steps int) Pattern {
	out := NewPattern(channels, steps)
	for ch := 0; ch < channels && ch < len(p); ch++ {
		for s := 0; s < steps && s < len(p[ch]); s++ {
			out[ch][s] = ClampVelocity(int(p[ch][s]))
		}
	}
	return out
}

// String renders the grid as rows of 0-3 digits
func (p Pattern) String() string {
	var b strings.Builder
	for i, row := range p {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, v := range row {
			b.WriteByte('0' + byte(v))
		}
	}
	return b.String()
}

// Slot names one of the four pattern slots
type Slot int

const (
	SlotA Slot = iota
	SlotB
	SlotC
	SlotD
)

// NumSlots is fixed: slots can be overwritten, never added or removed
const NumSlots = 4

// Slots lists every slot in order
var Slots = [NumSlots]Slot{SlotA, SlotB, SlotC, SlotD}

func (s Slot) Valid() bool {
	return s >= SlotA && s <= SlotD
}

func (s Slot) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Slot(%d)", int(s))
	}
	return string(rune('A' + s))
}

// ParseSlot accepts "A".."D" in either case
func ParseSlot(label string) (Slot, error) {
	if len(label) == 1 {
		c := strings.ToUpper(label)[0]
		if c >= 'A' && c <= 'D' {
			return Slot(c - 'A'), nil
		}
	}
	return 0, fmt.Errorf("invalid pattern slot %q", label)
}

func (s Slot) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid pattern slot %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Slot) UnmarshalText(b []byte) error {
	v, err := ParseSlot(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Chain length limits
const (
	MinChainLength     = 1
	MaxChainLength     = 8
	DefaultChainLength = 4
)

// ResizeChain returns chain with exactly n entries, keeping existing ones
// and filling new positions with slot A
func ResizeChain(chain []Slot, n int) []Slot {
	n = min(max(n, MinChainLength), MaxChainLength)
	out := make([]Slot, n)
	copy(out, chain)
	return out
}
