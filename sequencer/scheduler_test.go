package sequencer

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"beatgrid/clock"
)

type hit struct {
	ch   int
	at   time.Duration
	gain float64
}

type recorder struct {
	mu   sync.Mutex
	hits []hit
}

func (r *recorder) Trigger(ch int, at time.Duration, gain float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits = append(r.hits, hit{ch, at, gain})
}

func (r *recorder) take() []hit {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.hits
	r.hits = nil
	return h
}

const step120 = 125 * time.Millisecond

func newTestScheduler(st *State, lookAhead time.Duration) (*Scheduler, *Session, *clock.Fake, *recorder) {
	sess := NewSession(st)
	clk := clock.NewFake()
	rec := &recorder{}
	return NewScheduler(sess, clk, rec, lookAhead), sess, clk, rec
}

func TestStepDuration(t *testing.T) {
	tests := []struct {
		bpm  int
		want time.Duration
	}{
		{120, 125 * time.Millisecond},
		{60, 250 * time.Millisecond},
		{300, 50 * time.Millisecond},
		{10, 750 * time.Millisecond}, // clamped to 20
	}
	for _, tt := range tests {
		if got := StepDuration(tt.bpm); got != tt.want {
			t.Errorf("StepDuration(%d) = %v, want %v", tt.bpm, got, tt.want)
		}
	}
}

func TestSwingOffsetOddStepsOnly(t *testing.T) {
	dur := StepDuration(120)
	for _, w := range []float64{0, 0.1, 0.25, 0.33, 0.5} {
		for s := 0; s < 16; s++ {
			got := SwingOffset(s, w, dur)
			want := time.Duration(0)
			if s%2 == 1 {
				want = time.Duration(w * float64(dur))
			}
			if got != want {
				t.Errorf("swing %v step %d: offset %v, want %v", w, s, got, want)
			}
		}
	}
}

func TestSchedulerBasicMeasure(t *testing.T) {
	st := NewState(testChannels, 16)
	st.Patterns[SlotA] = st.Patterns[SlotA].With(0, 0, High)
	s, sess, clk, rec := newTestScheduler(st, 0)

	s.Start()
	clk.Advance(0)
	if got, want := rec.take(), []hit{{0, 0, 1.0}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("first tick hits = %v, want %v", got, want)
	}

	clk.Advance(16 * step120)
	if got, want := rec.take(), []hit{{0, 16 * step120, 1.0}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("second measure hits = %v, want %v", got, want)
	}

	sess.Update(func(st *State) {
		st.Patterns[SlotA] = st.Patterns[SlotA].With(0, 0, Off)
	})
	clk.Advance(16 * step120)
	if got := rec.take(); len(got) != 0 {
		t.Errorf("cleared cell still triggered: %v", got)
	}
}

func TestSchedulerSwingTiming(t *testing.T) {
	st := NewState(testChannels, 16)
	st.Swing = 0.5
	for step := 0; step < 4; step++ {
		st.Patterns[SlotA] = st.Patterns[SlotA].With(1, step, Medium)
	}
	s, _, clk, rec := newTestScheduler(st, 0)
	s.Start()
	clk.Advance(3 * step120)

	want := []hit{
		{1, 0, 0.6},
		{1, step120 + step120/2, 0.6},
		{1, 2 * step120, 0.6},
		{1, 3*step120 + step120/2, 0.6},
	}
	if got := rec.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("hits = %v, want %v", got, want)
	}
}

func TestSchedulerEditTakesEffectNextTick(t *testing.T) {
	st := NewState(testChannels, 16)
	st.Patterns[SlotA] = st.Patterns[SlotA].With(2, 1, High)
	s, sess, clk, rec := newTestScheduler(st, 0)
	s.Start()
	clk.Advance(0) // step 0

	sess.Update(func(st *State) {
		st.Patterns[SlotA] = st.Patterns[SlotA].With(2, 1, Low)
	})
	clk.Advance(step120) // step 1
	if got, want := rec.take(), []hit{{2, step120, 0.2}}; !reflect.DeepEqual(got, want) {
		t.Errorf("hits = %v, want %v", got, want)
	}
}

func TestSchedulerChainResolution(t *testing.T) {
	st := NewState(testChannels, 16)
	st.ChainEnabled = true
	st.Chain = []Slot{SlotA, SlotA, SlotB, SlotB}
	st.Patterns[SlotA] = st.Patterns[SlotA].With(0, 0, High)
	st.Patterns[SlotB] = st.Patterns[SlotB].With(1, 0, High)
	s, _, clk, rec := newTestScheduler(st, 0)

	s.Start()
	clk.Advance(0)
	var measures []int
	var slots []Slot
	for m := 0; m < 8; m++ {
		pos := s.Position()
		measures = append(measures, pos.Measure)
		slots = append(slots, pos.Slot)
		clk.Advance(16 * step120)
	}
	if want := []int{0, 1, 2, 3, 0, 1, 2, 3}; !reflect.DeepEqual(measures, want) {
		t.Errorf("measures = %v, want %v", measures, want)
	}
	if want := []Slot{SlotA, SlotA, SlotB, SlotB, SlotA, SlotA, SlotB, SlotB}; !reflect.DeepEqual(slots, want) {
		t.Errorf("slots = %v, want %v", slots, want)
	}

	got := rec.take()
	var chans []int
	for _, h := range got {
		chans = append(chans, h.ch)
	}
	if want := []int{0, 0, 1, 1, 0, 0, 1, 1, 0}; !reflect.DeepEqual(chans, want) {
		t.Errorf("channels per measure = %v, want %v", chans, want)
	}
	if got[2].at != 2*16*step120 {
		t.Errorf("first B hit at %v", got[2].at)
	}
}

func TestSchedulerChainAfterTwoMeasuresResolvesB(t *testing.T) {
	st := NewState(testChannels, 16)
	st.ChainEnabled = true
	st.Chain = []Slot{SlotA, SlotA, SlotB, SlotB}
	s, _, clk, _ := newTestScheduler(st, 0)
	s.Start()
	clk.Advance(2 * 16 * step120)
	if pos := s.Position(); pos.Slot != SlotB || pos.Measure != 2 {
		t.Errorf("after two measures: %+v", pos)
	}
}

func TestSchedulerChainDisabledFreezesMeasure(t *testing.T) {
	st := NewState(testChannels, 16)
	st.ChainEnabled = true
	s, sess, clk, _ := newTestScheduler(st, 0)
	s.Start()
	clk.Advance(16 * step120) // first tick of measure 1
	if m := s.Position().Measure; m != 1 {
		t.Fatalf("measure = %d, want 1", m)
	}

	sess.Update(func(st *State) { st.ChainEnabled = false })
	clk.Advance(16 * step120)
	if m := s.Position().Measure; m != 0 {
		t.Errorf("measure after boundary = %d, want 0", m)
	}
	clk.Advance(16 * step120)
	if m := s.Position().Measure; m != 0 {
		t.Errorf("measure should stay 0, got %d", m)
	}
}

func TestSchedulerShortenedChainWraps(t *testing.T) {
	st := NewState(testChannels, 16)
	st.ChainEnabled = true
	st.Chain = []Slot{SlotA, SlotB, SlotC, SlotD}
	s, sess, clk, _ := newTestScheduler(st, 0)
	s.Start()
	clk.Advance(3 * 16 * step120) // measure 3 playing D

	sess.Update(func(st *State) {
		st.ChainLength = 2
		st.Chain = ResizeChain(st.Chain, 2)
	})
	clk.Advance(step120)
	if pos := s.Position(); pos.Slot != SlotB || pos.Measure != 1 {
		t.Errorf("after shrink: %+v", pos)
	}
}

func TestSchedulerStop(t *testing.T) {
	st := NewState(testChannels, 16)
	st.ChainEnabled = true
	st.Chain = []Slot{SlotA, SlotA, SlotB, SlotB}
	s, sess, clk, rec := newTestScheduler(st, 0)

	s.Start()
	clk.Advance(2*16*step120 + 3*step120)
	s.Stop()

	if s.Playing() {
		t.Fatal("still playing")
	}
	if cur := sess.Snapshot().Current; cur != SlotB {
		t.Errorf("current after stop = %v, want B", cur)
	}
	if pos := s.Position(); pos.Step != 0 || pos.Measure != 0 {
		t.Errorf("cursors after stop = %+v", pos)
	}
	if n := clk.Pending(); n != 0 {
		t.Errorf("%d timers pending after stop", n)
	}

	rec.take()
	clk.Advance(time.Second)
	if got := rec.take(); len(got) != 0 {
		t.Errorf("ticks after stop: %v", got)
	}
}

func TestSchedulerStopWithoutChainKeepsCurrent(t *testing.T) {
	st := NewState(testChannels, 16)
	st.Current = SlotC
	st.Chain = []Slot{SlotB, SlotB, SlotB, SlotB}
	s, sess, clk, _ := newTestScheduler(st, 0)
	s.Start()
	clk.Advance(20 * step120)
	s.Stop()
	if cur := sess.Snapshot().Current; cur != SlotC {
		t.Errorf("current = %v, want C", cur)
	}
}

func TestSchedulerNowPlayingAtScheduledTime(t *testing.T) {
	st := NewState(testChannels, 16)
	st.Swing = 0.2
	lookAhead := 25 * time.Millisecond
	s, _, clk, _ := newTestScheduler(st, lookAhead)

	var got []Position
	var seenAt []time.Duration
	s.OnStep(func(p Position) {
		got = append(got, p)
		seenAt = append(seenAt, clk.Now())
	})

	s.Start()
	clk.Advance(lookAhead + 2*step120)
	if len(got) != 3 {
		t.Fatalf("got %d updates, want 3", len(got))
	}
	for i, p := range got {
		if p.Step != i || p.At != seenAt[i] {
			t.Errorf("update %d: %+v seen at %v", i, p, seenAt[i])
		}
	}
	if want := lookAhead + step120 + step120/5; got[1].At != want {
		t.Errorf("swung step shown at %v, want %v", got[1].At, want)
	}
}

func TestSchedulerStaleNowPlayingSuppressed(t *testing.T) {
	st := NewState(testChannels, 16)
	s, _, clk, _ := newTestScheduler(st, 25*time.Millisecond)

	calls := 0
	s.OnStep(func(Position) { calls++ })
	s.Start()
	clk.Advance(0) // step 0 computed, shown at 25ms
	clk.Advance(step120 + 10*time.Millisecond)
	if calls != 1 {
		t.Fatalf("calls = %d before stop, want 1", calls)
	}
	// step 1 was computed at 125ms, its display is due at 150ms
	s.Stop()
	clk.Advance(time.Second)
	if calls != 1 {
		t.Errorf("stale update ran after stop, calls = %d", calls)
	}
}

func TestSchedulerRestartResumesFromZero(t *testing.T) {
	st := NewState(testChannels, 16)
	for step := range 16 {
		st.Patterns[SlotA] = st.Patterns[SlotA].With(0, step, Low)
	}
	s, _, clk, rec := newTestScheduler(st, 0)
	s.Start()
	clk.Advance(5 * step120)
	s.Stop()
	rec.take()

	clk.Advance(time.Second)
	s.Start()
	clk.Advance(0)
	got := rec.take()
	if len(got) != 1 || got[0].at != clk.Now() {
		t.Errorf("restart hits = %v at %v", got, clk.Now())
	}
	if s.Position().Step != 1 {
		t.Errorf("next step = %d, want 1", s.Position().Step)
	}
}

func TestSchedulerTempoChangeRetimes(t *testing.T) {
	st := NewState(testChannels, 16)
	st.Patterns[SlotA] = st.Patterns[SlotA].With(0, 1, High)
	s, sess, clk, rec := newTestScheduler(st, 0)
	s.Start()
	clk.Advance(0)

	sess.Update(func(st *State) { st.Tempo = 60 })
	s.Retime()

	clk.Advance(step120)
	if got := rec.take(); len(got) != 0 {
		t.Fatalf("tick fired at old tempo: %v", got)
	}
	clk.Advance(step120)
	if got, want := rec.take(), []hit{{0, 250 * time.Millisecond, 1.0}}; !reflect.DeepEqual(got, want) {
		t.Errorf("hits = %v, want %v", got, want)
	}
}

func TestSchedulerSurvivesPanickingSink(t *testing.T) {
	st := NewState(testChannels, 16)
	st.Patterns[SlotA] = st.Patterns[SlotA].With(0, 0, High).With(1, 0, High)
	sess := NewSession(st)
	clk := clock.NewFake()
	rec := &recorder{}
	bad := TriggerFunc(func(ch int, at time.Duration, gain float64) {
		if ch == 0 {
			panic("boom")
		}
	})
	s := NewScheduler(sess, clk, Fanout{bad, rec}, 0)
	s.Start()
	clk.Advance(16 * step120)

	got := rec.take()
	if len(got) != 2 || got[0].ch != 1 || got[1].ch != 1 {
		t.Errorf("hits after panic = %v", got)
	}
	if !s.Playing() {
		t.Error("scheduler died")
	}
}

func TestDisplayedSlot(t *testing.T) {
	chain := []Slot{SlotA, SlotB, SlotC, SlotD}
	tests := []struct {
		name    string
		chain   bool
		playing bool
		measure int
		current Slot
		want    Slot
	}{
		{"manual stopped", false, false, 2, SlotB, SlotB},
		{"manual playing", false, true, 2, SlotB, SlotB},
		{"chain stopped", true, false, 2, SlotB, SlotB},
		{"chain playing", true, true, 2, SlotB, SlotC},
		{"chain playing out of range", true, true, 9, SlotD, SlotD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DisplayedSlot(tt.chain, tt.playing, tt.measure, chain, tt.current)
			if got != tt.want {
				t.Errorf("DisplayedSlot = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchedulerFirstHitGetsLookAhead(t *testing.T) {
	st := NewState(testChannels, 16)
	st.Patterns[SlotA] = st.Patterns[SlotA].With(0, 0, High)
	s, _, clk, rec := newTestScheduler(st, 25*time.Millisecond)

	clk.Advance(time.Second)
	s.Start()
	clk.Advance(0)
	got := rec.take()
	want := []hit{{0, time.Second + 25*time.Millisecond, 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("first hits = %v, want %v", got, want)
	}
}
