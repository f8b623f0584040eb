package midi

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"beatgrid/sequencer"
)

// ErrEmptyPattern is returned when there is nothing to export
var ErrEmptyPattern = errors.New("pattern has no active cells")

// Resolution of exported files
const (
	TicksPerQuarter = 480
	TicksPerStep    = TicksPerQuarter / 4
)

// Export encodes one pattern as a format 1 Standard MIDI File using the
// General MIDI drum map
func Export(p sequencer.Pattern, bpm int, name string, channels []string) ([]byte, error) {
	return ExportNotes(p, bpm, name, channels, Notes(DefaultNoteMap, channels))
}

// ExportNotes is Export with an explicit note per channel. Track 0 holds the
// name, tempo and meter; every channel with hits gets its own track on the
// drum channel, named after the kit channel.
func ExportNotes(p sequencer.Pattern, bpm int, name string, channels []string, notes []uint8) ([]byte, error) {
	if p.IsEmpty() {
		return nil, ErrEmptyPattern
	}
	bpm = sequencer.ClampTempo(bpm)
	end := uint32(p.Steps() * TicksPerStep)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var meta smf.Track
	meta.Add(0, smf.MetaTrackSequenceName(name))
	meta.Add(0, smf.MetaTempo(float64(bpm)))
	meta.Add(0, smf.MetaMeter(4, 4))
	meta.Close(end)
	if err := s.Add(meta); err != nil {
		return nil, fmt.Errorf("add tempo track: %w", err)
	}

	byChannel := make(map[int][]Event)
	for _, ev := range Events(p, notes) {
		byChannel[ev.Channel] = append(byChannel[ev.Channel], ev)
	}
	for ch := range p {
		evs := byChannel[ch]
		if len(evs) == 0 {
			continue
		}
		label := fmt.Sprintf("ch%d", ch+1)
		if ch < len(channels) {
			label = channels[ch]
		}
		if err := s.Add(noteTrack(label, evs, end)); err != nil {
			return nil, fmt.Errorf("add track %s: %w", label, err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write smf: %w", err)
	}
	return buf.Bytes(), nil
}

type timed struct {
	tick uint32
	off  bool
	msg  gomidi.Message
}

// noteTrack lays out one step-long note per event. Track deltas are relative
// to the previous event; a note-off sorts before a note-on at the same tick
// so back-to-back hits retrigger.
func noteTrack(name string, evs []Event, end uint32) smf.Track {
	var all []timed
	for _, ev := range evs {
		on := uint32(ev.Step * TicksPerStep)
		all = append(all,
			timed{tick: on, msg: gomidi.NoteOn(DrumChannel, ev.Note, ev.Velocity)},
			timed{tick: on + TicksPerStep, off: true, msg: gomidi.NoteOff(DrumChannel, ev.Note)},
		)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].tick != all[j].tick {
			return all[i].tick < all[j].tick
		}
		return all[i].off && !all[j].off
	})

	var t smf.Track
	t.Add(0, smf.MetaTrackSequenceName(name))
	var last uint32
	for _, e := range all {
		t.Add(e.tick-last, e.msg)
		last = e.tick
	}
	t.Close(end - min(last, end))
	return t
}
