package sequencer

import "beatgrid/audio"

// Track is a read-only view of one channel row for display
type Track struct {
	Index   int
	Name    string
	Sample  int // selected sample index
	Params  audio.ChannelParams
	Audible bool
	Hits    int // active cells in the displayed pattern
}

// Tracks builds the per-channel view of st with slot as the displayed pattern
func Tracks(st *State, slot Slot) []Track {
	audible := audio.Audible(st.Mixer)
	p := st.Pattern(slot)
	out := make([]Track, len(st.Channels))
	for i, name := range st.Channels {
		t := Track{Index: i, Name: name}
		if i < len(st.SampleIndex) {
			t.Sample = st.SampleIndex[i]
		}
		if i < len(st.Mixer) {
			t.Params = st.Mixer[i]
			t.Audible = audible[i]
		}
		if i < len(p) {
			for _, v := range p[i] {
				if v > Off {
					t.Hits++
				}
			}
		}
		out[i] = t
	}
	return out
}

// Tracks returns the channel rows of the current session
func (m *Manager) Tracks() []Track {
	st := m.session.Snapshot()
	return Tracks(st, m.displayed(st))
}
