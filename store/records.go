package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"beatgrid/audio"
	"beatgrid/sequencer"
)

// ChannelControls is the mixer strip part of a channel
type ChannelControls struct {
	Mute   bool    `json:"mute"`
	Solo   bool    `json:"solo"`
	Volume float64 `json:"volume"`
	Pan    float64 `json:"pan"`
}

// ChannelFX is the effect part of a channel
type ChannelFX struct {
	DelayTime     float64 `json:"delayTime"`
	DelayFeedback float64 `json:"delayFeedback"`
	DelayWet      float64 `json:"delayWet"`
	ReverbSend    float64 `json:"reverbSend"`
	HighPass      float64 `json:"highPass"`
	LowPass       float64 `json:"lowPass"`
}

// SessionRecord is a saved session
type SessionRecord struct {
	Meta
	Channels        []string                             `json:"channels,omitempty"`
	Steps           int                                  `json:"steps"`
	Patterns        map[sequencer.Slot]sequencer.Pattern `json:"patterns"`
	CurrentPattern  sequencer.Slot                       `json:"currentPattern"`
	BPM             int                                  `json:"bpm"`
	Swing           float64                              `json:"swing"`
	ChannelControls []ChannelControls                    `json:"channelControls"`
	ChannelFX       []ChannelFX                          `json:"channelFx"`
	GlobalReverb    audio.ReverbParams                   `json:"globalReverbSettings"`
	BusCompressor   audio.CompressorParams               `json:"busCompressorSettings"`
	ChainEnabled    bool                                 `json:"chainEnabled"`
	ChainLength     int                                  `json:"chainLength"`
	PatternChain    []sequencer.Slot                     `json:"patternChain"`
	SelectedSamples []int                                `json:"selectedSampleIndexes"`
}

func (r *SessionRecord) Base() *Meta {
	return &r.Meta
}

// PatternRecord is a single saved grid
type PatternRecord struct {
	Meta
	Channels []string          `json:"channels,omitempty"`
	Pattern  sequencer.Pattern `json:"pattern"`
}

func (r *PatternRecord) Base() *Meta {
	return &r.Meta
}

// FromState converts a session into a record. Meta is left empty except
// the name.
func FromState(st *sequencer.State) *SessionRecord {
	r := &SessionRecord{
		Meta:            Meta{Name: st.Name},
		Channels:        append([]string(nil), st.Channels...),
		Steps:           st.Steps,
		Patterns:        make(map[sequencer.Slot]sequencer.Pattern, sequencer.NumSlots),
		CurrentPattern:  st.Current,
		BPM:             st.Tempo,
		Swing:           st.Swing,
		GlobalReverb:    st.Global.Reverb,
		BusCompressor:   st.Global.Compressor,
		ChainEnabled:    st.ChainEnabled,
		ChainLength:     st.ChainLength,
		PatternChain:    append([]sequencer.Slot(nil), st.Chain...),
		SelectedSamples: append([]int(nil), st.SampleIndex...),
	}
	for _, slot := range sequencer.Slots {
		r.Patterns[slot] = st.Patterns[slot].Clone()
	}
	for _, p := range st.Mixer {
		r.ChannelControls = append(r.ChannelControls, ChannelControls{
			Mute:   p.Mute,
			Solo:   p.Solo,
			Volume: p.Volume,
			Pan:    p.Pan,
		})
		r.ChannelFX = append(r.ChannelFX, ChannelFX{
			DelayTime:     p.DelayTime,
			DelayFeedback: p.DelayFeedback,
			DelayWet:      p.DelayWet,
			ReverbSend:    p.ReverbSend,
			HighPass:      p.HighPass,
			LowPass:       p.LowPass,
		})
	}
	return r
}

// ToState converts a record back into a session. Missing channels get
// default parameters; the caller normalizes the grids to its kit.
func (r *SessionRecord) ToState() *sequencer.State {
	st := &sequencer.State{
		Name:         r.Name,
		Channels:     append([]string(nil), r.Channels...),
		Steps:        r.Steps,
		Current:      r.CurrentPattern,
		ChainEnabled: r.ChainEnabled,
		ChainLength:  r.ChainLength,
		Chain:        append([]sequencer.Slot(nil), r.PatternChain...),
		Tempo:        r.BPM,
		Swing:        r.Swing,
		Global: audio.GlobalParams{
			Reverb:     r.GlobalReverb,
			Compressor: r.BusCompressor,
		},
		SampleIndex: append([]int(nil), r.SelectedSamples...),
	}
	for slot, p := range r.Patterns {
		if slot.Valid() {
			st.Patterns[slot] = p.Clone()
		}
	}

	n := max(len(r.ChannelControls), len(r.ChannelFX))
	st.Mixer = make([]audio.ChannelParams, n)
	for i := range st.Mixer {
		p := audio.DefaultChannelParams()
		if i < len(r.ChannelControls) {
			c := r.ChannelControls[i]
			p.Mute, p.Solo, p.Volume, p.Pan = c.Mute, c.Solo, c.Volume, c.Pan
		}
		if i < len(r.ChannelFX) {
			fx := r.ChannelFX[i]
			p.DelayTime, p.DelayFeedback, p.DelayWet = fx.DelayTime, fx.DelayFeedback, fx.DelayWet
			p.ReverbSend, p.HighPass, p.LowPass = fx.ReverbSend, fx.HighPass, fx.LowPass
		}
		st.Mixer[i] = p
	}
	return st
}

// Library is the on-disk home of both record kinds
type Library struct {
	Sessions *Collection[*SessionRecord]
	Patterns *Collection[*PatternRecord]
}

// Open returns the library rooted at dir. Nothing is created until the
// first save.
func Open(dir string) *Library {
	return &Library{
		Sessions: NewCollection(filepath.Join(dir, "sessions"), func() *SessionRecord { return &SessionRecord{} }),
		Patterns: NewCollection(filepath.Join(dir, "patterns"), func() *PatternRecord { return &PatternRecord{} }),
	}
}

// FindSession resolves ref as a record id first, then as a session name
// (ignoring case)
func (l *Library) FindSession(ref string) (*SessionRecord, error) {
	if rec, err := l.Sessions.Get(ref); err == nil {
		return rec, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	matches, err := l.Sessions.Search(ref)
	if err != nil {
		return nil, err
	}
	for _, rec := range matches {
		if strings.EqualFold(rec.Name, strings.TrimSpace(ref)) {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w: no session named %q", ErrNotFound, ref)
}
