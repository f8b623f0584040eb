package midi

import (
	"math"
	"sort"

	"beatgrid/sequencer"
)

// DrumChannel is MIDI channel 10, zero based
const DrumChannel uint8 = 9

// Event is one note on a grid: where it starts and how hard
type Event struct {
	Channel  int // kit channel (grid row)
	Step     int
	Note     uint8
	Velocity uint8
}

// Velocity converts a normalized gain to a MIDI velocity
func Velocity(gain float64) uint8 {
	if !(gain > 0) {
		return 0
	}
	if gain >= 1 {
		return 127
	}
	return uint8(math.Round(gain * 127))
}

// Events lists the hits of p in step order, then row order
func Events(p sequencer.Pattern, notes []uint8) []Event {
	var out []Event
	for ch, row := range p {
		note := DefaultNote
		if ch < len(notes) {
			note = notes[ch]
		}
		for step, v := range row {
			if v == sequencer.Off {
				continue
			}
			out = append(out, Event{
				Channel:  ch,
				Step:     step,
				Note:     note,
				Velocity: Velocity(v.Gain()),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Step < out[j].Step
	})
	return out
}
