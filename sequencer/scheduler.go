package sequencer

import (
	"sync"
	"time"

	"beatgrid/clock"
	"beatgrid/debug"
)

// Trigger receives scheduled hits. at is a time on the scheduler's clock and
// gain is normalized 0..1.
type Trigger interface {
	Trigger(ch int, at time.Duration, gain float64)
}

// TriggerFunc adapts a function to Trigger
type TriggerFunc func(ch int, at time.Duration, gain float64)

func (f TriggerFunc) Trigger(ch int, at time.Duration, gain float64) {
	f(ch, at, gain)
}

// Fanout sends every hit to each sink in order
type Fanout []Trigger

func (f Fanout) Trigger(ch int, at time.Duration, gain float64) {
	for _, t := range f {
		if t != nil {
			t.Trigger(ch, at, gain)
		}
	}
}

// Position is where playback is: the step and measure of the last tick that
// sounded, the pattern it came from and when.
type Position struct {
	Step    int
	Measure int
	Slot    Slot
	Playing bool
	At      time.Duration
}

// DefaultLookAhead is how early a tick is computed ahead of its nominal time
const DefaultLookAhead = 25 * time.Millisecond

// StepDuration is the length of one sixteenth note at bpm
func StepDuration(bpm int) time.Duration {
	bpm = ClampTempo(bpm)
	return time.Duration(float64(time.Minute) / float64(bpm) / 4)
}

// SwingOffset delays odd steps by swing × step duration; even steps are
// never moved.
func SwingOffset(step int, swing float64, dur time.Duration) time.Duration {
	if step%2 == 0 {
		return 0
	}
	return time.Duration(ClampSwing(swing) * float64(dur))
}

// Scheduler emits one tick per step subdivision while playing. Every tick
// reads a fresh session snapshot, so tempo, swing, chain and grid edits
// apply on the next tick without a restart.
type Scheduler struct {
	mu        sync.Mutex // held for a whole tick; ticks never overlap
	session   *Session
	clock     clock.Clock
	sink      Trigger
	lookAhead time.Duration
	onStep    func(Position)

	playing bool
	step    int
	measure int
	last    time.Duration // nominal time of the previous tick
	nominal time.Duration // nominal time of the next tick
	gen     uint64        // bumped on start and stop
	timer   clock.Timer

	lastSlot Slot
	played   bool // a tick ran since start
}

// NewScheduler creates a stopped scheduler reading from sess and sending
// hits to sink
func NewScheduler(sess *Session, clk clock.Clock, sink Trigger, lookAhead time.Duration) *Scheduler {
	if lookAhead < 0 {
		lookAhead = 0
	}
	if sink == nil {
		sink = Fanout(nil)
	}
	return &Scheduler{
		session:   sess,
		clock:     clk,
		sink:      sink,
		lookAhead: lookAhead,
	}
}

// OnStep sets the "now playing" callback. It runs at each tick's scheduled
// time, outside the scheduler lock, and never after Stop.
func (s *Scheduler) OnStep(fn func(Position)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStep = fn
}

// Start begins playback from the current cursors
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return
	}
	s.playing = true
	s.played = false
	s.gen++
	// the first hit gets the same headroom as every later one
	s.nominal = s.clock.Now() + s.lookAhead
	s.last = s.nominal
	s.schedule()
	debug.Log("sched", "start step=%d measure=%d", s.step, s.measure)
}

// Stop halts playback and resets the cursors. With chaining on, the
// session's current pattern becomes the chain slot that was playing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	st := s.session.Snapshot()
	slot := s.lastSlot
	if !s.played {
		slot = s.resolve(st)
	}
	s.step, s.measure = 0, 0
	s.played = false
	s.mu.Unlock()

	if st.ChainEnabled {
		s.session.Update(func(st *State) {
			st.Current = slot
		})
	}
	debug.Log("sched", "stop slot=%v", slot)
}

// Playing reports whether the scheduler is running
func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Position returns the cursors for the next tick
func (s *Scheduler) Position() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Position{
		Step:    s.step,
		Measure: s.measure,
		Slot:    s.lastSlot,
		Playing: s.playing,
		At:      s.nominal,
	}
}

// Retime recomputes the pending tick from the current tempo. Called after a
// BPM change so the running subdivision picks up the new rate.
func (s *Scheduler) Retime() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || !s.played {
		return
	}
	st := s.session.Snapshot()
	next := s.last + StepDuration(st.Tempo)
	if next == s.nominal {
		return
	}
	s.nominal = next
	if s.timer != nil {
		s.timer.Stop()
	}
	s.schedule()
}

// Tick runs one step subdivision now. The timer loop calls it; tests may
// drive it directly.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick()
}

func (s *Scheduler) schedule() {
	gen := s.gen
	wait := s.nominal - s.lookAhead - s.clock.Now()
	s.timer = s.clock.AfterFunc(max(wait, 0), func() {
		s.run(gen)
	})
}

func (s *Scheduler) run(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.playing {
		return
	}
	s.tick()
	s.schedule()
}

func (s *Scheduler) tick() {
	st := s.session.Snapshot()
	steps := st.Steps
	if steps <= 0 {
		invariant("session has %d steps", steps)
		return
	}
	if s.step >= steps {
		s.step %= steps
	}

	dur := StepDuration(st.Tempo)
	at := s.nominal + SwingOffset(s.step, st.Swing, dur)

	slot := s.resolve(st)
	if p := st.Pattern(slot); p == nil {
		invariant("no pattern for slot %v", slot)
	} else {
		for ch := range p {
			if v := p.At(ch, s.step); v > Off {
				s.fire(ch, at, v.Gain())
			}
		}
	}
	s.lastSlot = slot
	s.played = true

	if s.onStep != nil {
		pos := Position{Step: s.step, Measure: s.measure, Slot: slot, Playing: true, At: at}
		gen := s.gen
		s.clock.AfterFunc(max(at-s.clock.Now(), 0), func() {
			s.notify(gen, pos)
		})
	}

	s.step = (s.step + 1) % steps
	if s.step == 0 {
		if st.ChainEnabled {
			s.measure = (s.measure + 1) % max(st.ChainLength, 1)
		} else {
			s.measure = 0
		}
	}
	s.last = s.nominal
	s.nominal += dur
}

// resolve picks the slot for the current measure
func (s *Scheduler) resolve(st *State) Slot {
	if !st.ChainEnabled {
		if !st.Current.Valid() {
			invariant("current pattern %d out of range", int(st.Current))
			return SlotA
		}
		return st.Current
	}

	n := st.ChainLength
	if n < MinChainLength || n > len(st.Chain) {
		invariant("chain length %d with %d entries", n, len(st.Chain))
		n = min(max(n, 1), len(st.Chain))
		if n == 0 {
			return SlotA
		}
	}
	// the chain may have been shortened while playing
	if s.measure >= n {
		s.measure %= n
	}
	slot := st.Chain[s.measure]
	if !slot.Valid() {
		invariant("chain[%d] = %d out of range", s.measure, int(slot))
		return SlotA
	}
	return slot
}

func (s *Scheduler) fire(ch int, at time.Duration, gain float64) {
	defer func() {
		if r := recover(); r != nil {
			debug.Warn("sched", "trigger ch=%d panicked: %v", ch, r)
		}
	}()
	s.sink.Trigger(ch, at, gain)
}

func (s *Scheduler) notify(gen uint64, pos Position) {
	s.mu.Lock()
	fn := s.onStep
	stale := gen != s.gen || !s.playing
	s.mu.Unlock()
	if stale || fn == nil {
		return
	}
	fn(pos)
}

// DisplayedSlot is the pattern the UI shows and edits: the playing chain
// entry while a chain runs, the manually selected pattern otherwise.
func DisplayedSlot(chainEnabled, playing bool, measure int, chain []Slot, current Slot) Slot {
	if chainEnabled && playing && measure >= 0 && measure < len(chain) && chain[measure].Valid() {
		return chain[measure]
	}
	return current
}
