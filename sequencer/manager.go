package sequencer

import (
	"sync"
	"time"

	"beatgrid/audio"
	"beatgrid/clock"
	"beatgrid/debug"
)

// Mixer receives channel and bus parameters whenever they change
type Mixer interface {
	Apply(channels []audio.ChannelParams, global audio.GlobalParams)
}

// SampleSelector swaps the sample bound to a channel
type SampleSelector interface {
	Select(ch, idx int)
	Count(ch int) int
}

// Options wires a Manager to its collaborators. Any of them may be nil.
type Options struct {
	Clock     clock.Clock
	LookAhead time.Duration
	Sinks     []Trigger
	Mixer     Mixer
	Samples   SampleSelector
}

// Manager orchestrates playback and every user edit of the session
type Manager struct {
	session *Session
	sched   *Scheduler
	mixer   Mixer
	samples SampleSelector

	mu  sync.RWMutex
	pos Position // last "now playing" update

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// NewManager creates a stopped manager around st
func NewManager(st *State, opts Options) *Manager {
	st.Normalize()
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewWall()
	}
	m := &Manager{
		session:    NewSession(st),
		mixer:      opts.Mixer,
		samples:    opts.Samples,
		UpdateChan: make(chan struct{}, 1),
	}
	m.sched = NewScheduler(m.session, clk, Fanout(opts.Sinks), opts.LookAhead)
	m.sched.OnStep(m.onStep)
	m.session.Subscribe(func(st *State) {
		m.applyMix(st)
		m.notify()
	})
	m.applyMix(st)
	return m
}

// Session exposes the shared state cell
func (m *Manager) Session() *Session {
	return m.session
}

// Scheduler exposes the playback scheduler
func (m *Manager) Scheduler() *Scheduler {
	return m.sched
}

func (m *Manager) applyMix(st *State) {
	if m.mixer != nil {
		m.mixer.Apply(st.Mixer, st.Global)
	}
}

// notify wakes the UI without blocking
func (m *Manager) notify() {
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}

// onStep runs outside the scheduler lock, so a Stop may land between the
// scheduler's generation check and this call
func (m *Manager) onStep(p Position) {
	m.mu.Lock()
	if !m.sched.Playing() {
		m.mu.Unlock()
		return
	}
	m.pos = p
	m.mu.Unlock()
	m.notify()
}

// Transport

// Play starts playback
func (m *Manager) Play() {
	m.sched.Start()
	m.notify()
}

// Stop stops playback
func (m *Manager) Stop() {
	m.sched.Stop()
	m.mu.Lock()
	m.pos = Position{Slot: m.session.Snapshot().Current}
	m.mu.Unlock()
	m.notify()
}

// Toggle starts or stops playback
func (m *Manager) Toggle() {
	if m.sched.Playing() {
		m.Stop()
	} else {
		m.Play()
	}
}

// Playing reports whether the scheduler is running
func (m *Manager) Playing() bool {
	return m.sched.Playing()
}

// SetTempo sets the BPM
func (m *Manager) SetTempo(bpm int) {
	bpm = ClampTempo(bpm)
	m.session.Update(func(st *State) {
		st.Tempo = bpm
	})
	m.sched.Retime()
	debug.Log("transport", "tempo=%d", bpm)
}

// SetSwing sets the swing amount, clamped to 0..0.5
func (m *Manager) SetSwing(w float64) {
	w = ClampSwing(w)
	m.session.Update(func(st *State) {
		st.Swing = w
	})
}

// GetState returns the current sequencer state
func (m *Manager) GetState() (step int, playing bool, tempo int) {
	pos := m.NowPlaying()
	return pos.Step, m.sched.Playing(), m.session.Snapshot().Tempo
}

// State returns the current session snapshot. Callers must not modify it.
func (m *Manager) State() *State {
	return m.session.Snapshot()
}

// NowPlaying returns the position of the last tick that reached its
// scheduled time
func (m *Manager) NowPlaying() Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos
}

// DisplayedSlot is the slot the grid shows and edits
func (m *Manager) DisplayedSlot() Slot {
	return m.displayed(m.session.Snapshot())
}

func (m *Manager) displayed(st *State) Slot {
	pos := m.NowPlaying()
	return DisplayedSlot(st.ChainEnabled, pos.Playing && m.sched.Playing(), pos.Measure, st.Chain, st.Current)
}

// Grid editing

// CycleCell steps a cell of the displayed pattern through its velocities
// and returns the new value
func (m *Manager) CycleCell(ch, step int) Velocity {
	var v Velocity
	m.session.Update(func(st *State) {
		slot := m.displayed(st)
		v = st.Patterns[slot].At(ch, step).Next()
		st.Patterns[slot] = st.Patterns[slot].With(ch, step, v)
	})
	return v
}

// SetCell writes a velocity into the displayed pattern
func (m *Manager) SetCell(ch, step int, v Velocity) {
	v = ClampVelocity(int(v))
	m.session.Update(func(st *State) {
		slot := m.displayed(st)
		st.Patterns[slot] = st.Patterns[slot].With(ch, step, v)
	})
}

// ClearPattern empties a slot
func (m *Manager) ClearPattern(slot Slot) {
	if !slot.Valid() {
		return
	}
	m.session.Update(func(st *State) {
		st.Patterns[slot] = NewPattern(len(st.Channels), st.Steps)
	})
}

// CopyPattern overwrites dst with a copy of src
func (m *Manager) CopyPattern(src, dst Slot) {
	if !src.Valid() || !dst.Valid() || src == dst {
		return
	}
	m.session.Update(func(st *State) {
		st.Patterns[dst] = st.Patterns[src].Clone()
	})
}

// SetPattern writes p into slot, fitted to the session's grid size
func (m *Manager) SetPattern(slot Slot, p Pattern) {
	if !slot.Valid() {
		return
	}
	m.session.Update(func(st *State) {
		st.Patterns[slot] = p.Clone().Normalize(len(st.Channels), st.Steps)
	})
}

// SelectPattern makes slot the manually selected pattern
func (m *Manager) SelectPattern(slot Slot) {
	if !slot.Valid() {
		return
	}
	m.session.Update(func(st *State) {
		st.Current = slot
	})
}

// Chain

// SetChainEnabled switches between chain playback and the single pattern
func (m *Manager) SetChainEnabled(on bool) {
	m.session.Update(func(st *State) {
		st.ChainEnabled = on
	})
}

// SetChainLength resizes the chain, keeping existing entries
func (m *Manager) SetChainLength(n int) {
	n = min(max(n, MinChainLength), MaxChainLength)
	m.session.Update(func(st *State) {
		st.ChainLength = n
		st.Chain = ResizeChain(st.Chain, n)
	})
}

// SetChainSlot assigns slot to chain position i
func (m *Manager) SetChainSlot(i int, slot Slot) {
	if !slot.Valid() {
		return
	}
	m.session.Update(func(st *State) {
		if i < 0 || i >= len(st.Chain) {
			return
		}
		st.Chain[i] = slot
	})
}

// Mixer

// SetChannel edits one channel's parameters in place
func (m *Manager) SetChannel(ch int, fn func(p *audio.ChannelParams)) {
	m.session.Update(func(st *State) {
		if ch < 0 || ch >= len(st.Mixer) {
			debug.Warn("mixer", "no channel %d", ch)
			return
		}
		fn(&st.Mixer[ch])
		st.Mixer[ch] = st.Mixer[ch].Clamp()
	})
}

// ToggleMute flips a channel's mute flag
func (m *Manager) ToggleMute(ch int) {
	m.SetChannel(ch, func(p *audio.ChannelParams) {
		p.Mute = !p.Mute
	})
}

// ToggleSolo flips a channel's solo flag
func (m *Manager) ToggleSolo(ch int) {
	m.SetChannel(ch, func(p *audio.ChannelParams) {
		p.Solo = !p.Solo
	})
}

// SetGlobal edits the reverb and bus compressor parameters
func (m *Manager) SetGlobal(fn func(g *audio.GlobalParams)) {
	m.session.Update(func(st *State) {
		fn(&st.Global)
		st.Global = st.Global.Clamp()
	})
}

// SetCompressorEnabled turns the bus compressor on or off, keeping its mix
func (m *Manager) SetCompressorEnabled(on bool) {
	m.SetGlobal(func(g *audio.GlobalParams) {
		g.Compressor.Enabled = on
	})
}

// Samples

// SelectSample binds sample idx to ch. Loading happens in the background.
func (m *Manager) SelectSample(ch, idx int) {
	if m.samples != nil {
		n := m.samples.Count(ch)
		if idx < 0 || idx >= n {
			debug.Warn("samples", "ch=%d has no sample %d", ch, idx)
			return
		}
	}
	m.session.Update(func(st *State) {
		if ch >= 0 && ch < len(st.SampleIndex) {
			st.SampleIndex[ch] = idx
		}
	})
	if m.samples != nil {
		m.samples.Select(ch, idx)
	}
}

// CycleSample moves ch to the next (delta > 0) or previous sample, wrapping
func (m *Manager) CycleSample(ch, delta int) {
	if m.samples == nil {
		return
	}
	n := m.samples.Count(ch)
	st := m.session.Snapshot()
	if n == 0 || ch < 0 || ch >= len(st.SampleIndex) {
		return
	}
	m.SelectSample(ch, ((st.SampleIndex[ch]+delta)%n+n)%n)
}

// LoadState replaces the whole session, stopping playback first
func (m *Manager) LoadState(st *State) {
	m.sched.Stop()
	cur := m.session.Snapshot()
	st = st.Clone()
	// grids follow the loaded kit's rows, not the file's
	st.Channels = append([]string(nil), cur.Channels...)
	st.Normalize()
	m.session.Replace(st)

	m.mu.Lock()
	m.pos = Position{Slot: st.Current}
	m.mu.Unlock()

	if m.samples != nil {
		for ch, idx := range st.SampleIndex {
			if idx < m.samples.Count(ch) {
				m.samples.Select(ch, idx)
			}
		}
	}
	debug.Log("session", "loaded %q tempo=%d chain=%v", st.Name, st.Tempo, st.ChainEnabled)
}

// Rename sets the session name used when saving
func (m *Manager) Rename(name string) {
	m.session.Update(func(st *State) {
		st.Name = name
	})
}
