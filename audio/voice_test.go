package audio

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"beatgrid/clock"
	"beatgrid/debug"
)

func testSample(frames int) *Sample {
	data := make([]float32, frames)
	for i := range data {
		data[i] = 1
	}
	return &Sample{Name: "test", Data: data, Rate: 1000}
}

func testPool(size int) (*VoicePool, *clock.Fake) {
	clk := clock.NewFake()
	opts := DefaultPoolOptions()
	opts.Size = size
	return NewVoicePool(2, clk, opts), clk
}

func TestAcquireReturnsFreeVoiceFirst(t *testing.T) {
	p, _ := testPool(4)
	s := testSample(100)

	v := p.Trigger(0, 0, 1, s)
	if v == nil || v.Info().Index != 0 {
		t.Fatalf("first trigger used %+v, want voice 0", v)
	}
	next := p.Acquire(0)
	if next.Info().Index != 1 {
		t.Errorf("Acquire = voice %d, want free voice 1", next.Info().Index)
	}
	if p.Active(0) != 1 || p.Active(1) != 0 {
		t.Errorf("Active = %d/%d, want 1/0", p.Active(0), p.Active(1))
	}
}

func TestAcquireStealsLeastRecentlyTriggered(t *testing.T) {
	p, clk := testPool(4)
	s := testSample(10000) // 10s, nothing frees during the test

	for i := 0; i < 4; i++ {
		p.Trigger(0, clk.Now(), 1, s)
		clk.Advance(100 * time.Millisecond)
	}
	if p.Active(0) != 4 {
		t.Fatalf("Active = %d, want 4", p.Active(0))
	}

	// N+1th acquire on a busy pool of N
	v := p.Acquire(0)
	if v == nil {
		t.Fatal("Acquire returned nil on exhausted pool")
	}
	if v.Info().Index != 0 {
		t.Errorf("stole voice %d, want 0 (oldest)", v.Info().Index)
	}

	// retrigger voice 0, the oldest is now voice 1
	p.Trigger(0, clk.Now(), 1, s)
	if got := p.Acquire(0).Info().Index; got != 1 {
		t.Errorf("after retrigger stole %d, want 1", got)
	}
}

func TestStealWarningInsideWindow(t *testing.T) {
	var buf bytes.Buffer
	debug.SetOutput(&buf)
	defer debug.Disable()

	p, clk := testPool(2)
	s := testSample(10000)

	p.Trigger(0, clk.Now(), 1, s)
	p.Trigger(0, clk.Now(), 1, s)
	clk.Advance(200 * time.Millisecond)
	p.Trigger(0, clk.Now(), 1, s) // steals a voice 200ms old: fine
	if total, late := p.Steals(); total != 1 || late != 0 {
		t.Errorf("steals = %d/%d, want 1/0", total, late)
	}

	clk.Advance(10 * time.Millisecond)
	// steals voice 1, untouched for 210ms
	p.Trigger(0, clk.Now(), 1, s)
	// steals voice 0, triggered only 10ms ago
	p.Trigger(0, clk.Now(), 1, s)
	total, late := p.Steals()
	if total != 3 || late != 1 {
		t.Errorf("steals = %d/%d, want 3/1", total, late)
	}
	if !strings.Contains(buf.String(), "WARN") {
		t.Errorf("expected a steal warning in log, got %q", buf.String())
	}
}

func TestReleaseAfterScheduledTimePlusDuration(t *testing.T) {
	p, clk := testPool(2)
	s := testSample(500) // 500ms at 1kHz

	p.Trigger(0, 100*time.Millisecond, 0.6, s)
	info := p.Snapshot(0)[0]
	if !info.InUse || info.Gain != float64(float32(0.6)) || info.Start != 100*time.Millisecond {
		t.Fatalf("voice after trigger = %+v", info)
	}
	if info.Sample != s {
		t.Error("voice does not share the sample buffer")
	}

	// 100ms until start + 500ms sound + 50ms margin
	clk.Advance(649 * time.Millisecond)
	if p.Active(0) != 1 {
		t.Fatal("voice released before sample finished")
	}
	clk.Advance(time.Millisecond)
	if p.Active(0) != 0 {
		t.Error("voice not released after duration + margin")
	}
}

func TestStaleReleaseDoesNotFreeRetriggeredVoice(t *testing.T) {
	p, clk := testPool(1)
	short := testSample(100)
	long := testSample(1000)

	// first release due at 150ms
	p.Trigger(0, 0, 1, short)
	clk.Advance(50 * time.Millisecond)
	// steal the only voice, new release at 50+1000+50
	p.Trigger(0, clk.Now(), 1, long)
	clk.Advance(200 * time.Millisecond)
	if p.Active(0) != 1 {
		t.Fatal("stale release freed a re-triggered voice")
	}
	if got := p.Snapshot(0)[0].Sample; got != long {
		t.Error("voice lost its new sample")
	}
	clk.Advance(time.Second)
	if p.Active(0) != 0 {
		t.Error("voice never released")
	}
}

func TestUnknownChannelIsNoop(t *testing.T) {
	p, _ := testPool(2)
	if v := p.Acquire(5); v != nil {
		t.Errorf("Acquire(5) = %+v, want nil", v)
	}
	if v := p.Trigger(-1, 0, 1, testSample(10)); v != nil {
		t.Error("Trigger on unknown channel returned a voice")
	}
	if v := p.Trigger(0, 0, 1, nil); v != nil {
		t.Error("Trigger without sample returned a voice")
	}
}

func TestMixRespectsStartFrame(t *testing.T) {
	p, _ := testPool(2)
	s := testSample(4)
	p.Trigger(0, 2*time.Millisecond, 0.5, s) // frame 2 at 1kHz

	out := make([]float32, 8)
	p.mix(0, 0, 1000, out)
	want := []float32{0, 0, 0.5, 0.5, 0.5, 0.5, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}

	// second block continues where the first stopped
	p.Trigger(1, 6*time.Millisecond, 1, s)
	block := make([]float32, 4)
	p.mix(1, 8, 1000, block)
	if block[0] != 1 || block[1] != 1 || block[2] != 0 {
		t.Errorf("block = %v, want voice tail in first two frames", block)
	}
}

func TestLateTriggerStartsNow(t *testing.T) {
	p, clk := testPool(1)
	clk.Advance(300 * time.Millisecond)
	p.Trigger(0, 100*time.Millisecond, 1, testSample(100))
	if got := p.Snapshot(0)[0].Start; got != 300*time.Millisecond {
		t.Errorf("start = %v, want the current time", got)
	}
	// full sample + margin counted from now
	clk.Advance(149 * time.Millisecond)
	if p.Active(0) != 1 {
		t.Error("late voice released early")
	}
}

func TestFrameAtRoundsUp(t *testing.T) {
	tests := []struct {
		t    time.Duration
		rate int
		want int64
	}{
		{0, 44100, 0},
		{2 * time.Millisecond, 1000, 2},
		{time.Duration(44100) * time.Second / 44100, 44100, 44100},
		{time.Duration(7) * time.Second / 44100, 44100, 7},
		{time.Nanosecond, 1000, 1},
	}
	for _, tt := range tests {
		if got := frameAt(tt.t, tt.rate); got != tt.want {
			t.Errorf("frameAt(%v, %d) = %d, want %d", tt.t, tt.rate, got, tt.want)
		}
	}
}
