package audio

import (
	"sync"
	"time"

	"github.com/viterin/vek/vek32"

	"beatgrid/clock"
	"beatgrid/debug"
)

// Voice is one slot of a channel's pool. It is bound to a shared sample
// buffer, a gain and a start time for as long as it is in use.
type Voice struct {
	channel int
	index   int

	sample *Sample
	gain   float32
	start  time.Duration
	inUse  bool

	// generation guards release timers against re-triggers
	gen     uint64
	release clock.Timer
}

// VoiceInfo is a copy of a voice's state for metering and tests
type VoiceInfo struct {
	Channel int
	Index   int
	Sample  *Sample
	Gain    float64
	Start   time.Duration
	InUse   bool
}

// PoolOptions tune the steal warning and release timing
type PoolOptions struct {
	Size          int
	StealWarn     time.Duration
	ReleaseMargin time.Duration
}

// DefaultPoolOptions are eight voices per channel with 50ms thresholds
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		Size:          8,
		StealWarn:     50 * time.Millisecond,
		ReleaseMargin: 50 * time.Millisecond,
	}
}

// VoicePool is a fixed arena of voices per channel. Nothing is allocated
// per trigger.
type VoicePool struct {
	mu     sync.Mutex
	clock  clock.Clock
	opts   PoolOptions
	voices [][]Voice

	steals     int
	lateSteals int
	scratch    []float32
}

// NewVoicePool creates channels × opts.Size voices
func NewVoicePool(channels int, clk clock.Clock, opts PoolOptions) *VoicePool {
	if opts.Size <= 0 {
		opts.Size = DefaultPoolOptions().Size
	}
	p := &VoicePool{
		clock:  clk,
		opts:   opts,
		voices: make([][]Voice, channels),
	}
	for ch := range p.voices {
		p.voices[ch] = make([]Voice, opts.Size)
		for i := range p.voices[ch] {
			p.voices[ch][i] = Voice{channel: ch, index: i}
		}
	}
	return p
}

// Channels returns the number of channel pools
func (p *VoicePool) Channels() int {
	return len(p.voices)
}

// Acquire returns the first free voice of the channel, or steals the least
// recently triggered one when all are busy. It returns nil only for a channel
// outside the pool.
func (p *VoicePool) Acquire(ch int) *Voice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquire(ch)
}

func (p *VoicePool) acquire(ch int) *Voice {
	if ch < 0 || ch >= len(p.voices) {
		debug.Warn("voice", "acquire on unknown channel %d", ch)
		return nil
	}
	voices := p.voices[ch]
	oldest := 0
	for i := range voices {
		if !voices[i].inUse {
			return &voices[i]
		}
		if voices[i].start < voices[oldest].start {
			oldest = i
		}
	}

	v := &voices[oldest]
	p.steals++
	if since := p.clock.Now() - v.start; since < p.opts.StealWarn {
		p.lateSteals++
		debug.Warn("voice", "ch=%d stole voice %d only %v after its trigger, pool may be too small", ch, oldest, since)
	}
	return v
}

// Trigger binds an acquired voice to sample at gain, starting at the clock
// time at. A time already in the past starts on the next rendered frame, so
// a late hit keeps its attack. The voice frees itself once the sample has
// finished sounding.
func (p *VoicePool) Trigger(ch int, at time.Duration, gain float64, sample *Sample) *Voice {
	if sample == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.acquire(ch)
	if v == nil {
		return nil
	}
	now := p.clock.Now()
	at = max(at, now)
	if v.release != nil {
		v.release.Stop()
	}
	v.gen++
	v.sample = sample
	v.gain = float32(gain)
	v.start = at
	v.inUse = true

	gen := v.gen
	delay := (at - now) + sample.Duration() + p.opts.ReleaseMargin
	v.release = p.clock.AfterFunc(delay, func() { p.free(v, gen) })
	return v
}

func (p *VoicePool) free(v *Voice, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v.gen != gen {
		return
	}
	v.inUse = false
	v.release = nil
}

// Active counts in-use voices on a channel
func (p *VoicePool) Active(ch int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch < 0 || ch >= len(p.voices) {
		return 0
	}
	n := 0
	for i := range p.voices[ch] {
		if p.voices[ch][i].inUse {
			n++
		}
	}
	return n
}

// Snapshot copies the state of every voice on a channel
func (p *VoicePool) Snapshot(ch int) []VoiceInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch < 0 || ch >= len(p.voices) {
		return nil
	}
	out := make([]VoiceInfo, len(p.voices[ch]))
	for i := range p.voices[ch] {
		out[i] = p.voices[ch][i].info()
	}
	return out
}

// Steals reports how many voices were stolen, and how many of those fell
// inside the warning window
func (p *VoicePool) Steals() (total, late int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.steals, p.lateSteals
}

// Info copies the voice's current state
func (v *Voice) Info() VoiceInfo {
	return v.info()
}

func (v *Voice) info() VoiceInfo {
	return VoiceInfo{
		Channel: v.channel,
		Index:   v.index,
		Sample:  v.sample,
		Gain:    float64(v.gain),
		Start:   v.start,
		InUse:   v.inUse,
	}
}

// mix adds every sounding voice of ch into out, which starts at frame from
func (p *VoicePool) mix(ch int, from int64, rate int, out []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch < 0 || ch >= len(p.voices) {
		return
	}
	if cap(p.scratch) < len(out) {
		p.scratch = make([]float32, len(out))
	}
	to := from + int64(len(out))
	for i := range p.voices[ch] {
		v := &p.voices[ch][i]
		if !v.inUse || v.sample == nil {
			continue
		}
		startFrame := frameAt(v.start, rate)
		end := startFrame + int64(len(v.sample.Data))
		if end <= from || startFrame >= to {
			continue
		}
		lo := max(startFrame, from)
		hi := min(end, to)
		src := v.sample.Data[lo-startFrame : hi-startFrame]
		dst := out[lo-from : hi-from]
		tmp := p.scratch[:len(src)]
		vek32.MulNumber_Into(tmp, src, v.gain)
		vek32.Add_Inplace(dst, tmp)
	}
}

// frameAt is the first frame at or after t
func frameAt(t time.Duration, rate int) int64 {
	return (int64(t)*int64(rate) + int64(time.Second) - 1) / int64(time.Second)
}
