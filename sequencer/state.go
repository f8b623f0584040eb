package sequencer

import (
	"beatgrid/audio"
)

// Tempo limits in BPM
const (
	MinTempo     = 20
	MaxTempo     = 300
	DefaultTempo = 120
	MaxSwing     = 0.5
	DefaultSteps = 16
)

// State is the whole editable session. Values held by a Session are never
// modified in place; writers work on a clone.
type State struct {
	Name     string   `json:"name,omitempty"`
	Channels []string `json:"channels"`
	Steps    int      `json:"steps"`

	Patterns [NumSlots]Pattern `json:"patterns"`
	Current  Slot              `json:"current"`

	ChainEnabled bool   `json:"chainEnabled"`
	ChainLength  int    `json:"chainLength"`
	Chain        []Slot `json:"chain"`

	Tempo int     `json:"tempo"`
	Swing float64 `json:"swing"`

	Mixer       []audio.ChannelParams `json:"mixer"`
	Global      audio.GlobalParams    `json:"global"`
	SampleIndex []int                 `json:"sampleIndex"`
}

// NewState creates a state with defaults for the given channel names
func NewState(channels []string, steps int) *State {
	if steps <= 0 {
		steps = DefaultSteps
	}
	s := &State{
		Channels:    append([]string(nil), channels...),
		Steps:       steps,
		ChainLength: DefaultChainLength,
		Chain:       ResizeChain(nil, DefaultChainLength),
		Tempo:       DefaultTempo,
		Global:      audio.DefaultGlobalParams(),
		Mixer:       make([]audio.ChannelParams, len(channels)),
		SampleIndex: make([]int, len(channels)),
	}
	for i := range s.Patterns {
		s.Patterns[i] = NewPattern(len(channels), steps)
	}
	for i := range s.Mixer {
		s.Mixer[i] = audio.DefaultChannelParams()
	}
	return s
}

// Clone deep-copies the state
func (s *State) Clone() *State {
	c := *s
	c.Channels = append([]string(nil), s.Channels...)
	for i := range s.Patterns {
		c.Patterns[i] = s.Patterns[i].Clone()
	}
	c.Chain = append([]Slot(nil), s.Chain...)
	c.Mixer = append([]audio.ChannelParams(nil), s.Mixer...)
	c.SampleIndex = append([]int(nil), s.SampleIndex...)
	return &c
}

// Pattern returns the grid of a slot, or nil for an invalid slot
func (s *State) Pattern(slot Slot) Pattern {
	if !slot.Valid() {
		return nil
	}
	return s.Patterns[slot]
}

// Normalize forces loaded or foreign data into the session's shape: grids
// padded or cut to the channel and step counts, chain sized to its length,
// every value within range.
func (s *State) Normalize() {
	if s.Steps <= 0 {
		s.Steps = DefaultSteps
	}
	n := len(s.Channels)
	for i := range s.Patterns {
		s.Patterns[i] = s.Patterns[i].Normalize(n, s.Steps)
	}
	if !s.Current.Valid() {
		s.Current = SlotA
	}

	if s.ChainLength < MinChainLength || s.ChainLength > MaxChainLength {
		s.ChainLength = DefaultChainLength
	}
	s.Chain = ResizeChain(s.Chain, s.ChainLength)
	for i, slot := range s.Chain {
		if !slot.Valid() {
			s.Chain[i] = SlotA
		}
	}

	s.Tempo = ClampTempo(s.Tempo)
	s.Swing = ClampSwing(s.Swing)

	mixer := make([]audio.ChannelParams, n)
	for i := range mixer {
		if i < len(s.Mixer) {
			mixer[i] = s.Mixer[i].Clamp()
		} else {
			mixer[i] = audio.DefaultChannelParams()
		}
	}
	s.Mixer = mixer
	s.Global = s.Global.Clamp()

	idx := make([]int, n)
	copy(idx, s.SampleIndex)
	for i := range idx {
		idx[i] = max(idx[i], 0)
	}
	s.SampleIndex = idx
}

// ClampTempo keeps a BPM within the supported range
func ClampTempo(bpm int) int {
	if bpm < MinTempo {
		return MinTempo
	}
	if bpm > MaxTempo {
		return MaxTempo
	}
	return bpm
}

// ClampSwing keeps swing within 0..0.5
func ClampSwing(w float64) float64 {
	if !(w > 0) {
		return 0
	}
	if w > MaxSwing {
		return MaxSwing
	}
	return w
}
