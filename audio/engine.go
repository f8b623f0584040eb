package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viterin/vek/vek32"

	"beatgrid/clock"
	"beatgrid/debug"
)

// maxBlock is the largest number of frames rendered in one pass
const maxBlock = 1024

// BytesPerFrame is interleaved stereo float32
const BytesPerFrame = 8

// Engine renders the voice pools through the channel strips and the bus.
// It is an io.Reader of float32 little endian stereo frames; the number of
// frames read so far is the audio clock.
type Engine struct {
	rate  int
	pool  *VoicePool
	bank  *SampleBank
	frame atomic.Int64

	mu    sync.Mutex
	paths []*ChannelPath
	bus   *Bus

	chanBuf     [][]float32
	left, right []float32
	send        []float32

	peak []atomic.Uint32
}

// EngineOptions configure a new engine
type EngineOptions struct {
	Rate  int
	Voice PoolOptions
	Clock clock.Clock // defaults to the engine's own frame clock
}

// NewEngine creates an engine for the bank's kit
func NewEngine(bank *SampleBank, opts EngineOptions) *Engine {
	if opts.Rate <= 0 {
		opts.Rate = 44100
	}
	n := len(bank.Kit().Channels)
	e := &Engine{
		rate:    opts.Rate,
		bank:    bank,
		bus:     NewBus(opts.Rate),
		chanBuf: make([][]float32, n),
		left:    make([]float32, maxBlock),
		right:   make([]float32, maxBlock),
		send:    make([]float32, maxBlock),
		peak:    make([]atomic.Uint32, n),
	}
	for i := 0; i < n; i++ {
		e.paths = append(e.paths, NewChannelPath(opts.Rate))
		e.chanBuf[i] = make([]float32, maxBlock)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Source(e.Now)
	}
	e.pool = NewVoicePool(n, clk, opts.Voice)
	return e
}

// Rate is the output sample rate
func (e *Engine) Rate() int {
	return e.rate
}

// Pool exposes the voice pools
func (e *Engine) Pool() *VoicePool {
	return e.pool
}

// Bank exposes the sample bank
func (e *Engine) Bank() *SampleBank {
	return e.bank
}

// Now is the audio clock: time of the next frame to be rendered
func (e *Engine) Now() time.Duration {
	return time.Duration(e.frame.Load()) * time.Second / time.Duration(e.rate)
}

// Trigger plays the channel's current sample at clock time at. A channel
// whose sample hasn't loaded yet stays silent.
func (e *Engine) Trigger(ch int, at time.Duration, gain float64) {
	s := e.bank.Current(ch)
	if s == nil {
		debug.LogEvery(32, "engine", "ch=%d has no sample bound", ch)
		return
	}
	e.pool.Trigger(ch, at, gain, s)
}

// Apply pushes mixer parameters. Mute and solo are resolved across all
// channels on every call.
func (e *Engine) Apply(channels []ChannelParams, global GlobalParams) {
	audible := Audible(channels)
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, p := range e.paths {
		if i < len(channels) {
			p.Apply(channels[i], audible[i])
		}
	}
	e.bus.Apply(global)
}

// Channel returns the strip of ch for inspection
func (e *Engine) Channel(ch int) *ChannelPath {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch < 0 || ch >= len(e.paths) {
		return nil
	}
	return e.paths[ch]
}

// BusMix returns the bus compressor's applied wet and dry gains
func (e *Engine) BusMix() (wet, dry float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bus.Mix()
}

// Peak returns and resets the channel's peak level since the last call
func (e *Engine) Peak(ch int) float32 {
	if ch < 0 || ch >= len(e.peak) {
		return 0
	}
	return math.Float32frombits(e.peak[ch].Swap(0))
}

// Render fills left and right with the next len(left) frames
func (e *Engine) Render(left, right []float32) {
	for off := 0; off < len(left); off += maxBlock {
		n := min(maxBlock, len(left)-off)
		e.renderBlock(left[off:off+n], right[off:off+n])
	}
}

func (e *Engine) renderBlock(left, right []float32) {
	n := len(left)
	from := e.frame.Load()

	e.mu.Lock()
	vek32.Zeros_Into(left, n)
	vek32.Zeros_Into(right, n)
	send := vek32.Zeros_Into(e.send, n)
	for ch, path := range e.paths {
		buf := vek32.Zeros_Into(e.chanBuf[ch], n)
		e.pool.mix(ch, from, e.rate, buf)
		if p := max(vek32.Max(buf), -vek32.Min(buf)); p > math.Float32frombits(e.peak[ch].Load()) {
			e.peak[ch].Store(math.Float32bits(p))
		}
		path.Process(buf, left, right, send)
	}
	e.bus.Process(left, right, send)
	e.mu.Unlock()

	e.frame.Add(int64(n))
}

// Read renders interleaved float32 stereo into p
func (e *Engine) Read(p []byte) (int, error) {
	frames := len(p) / BytesPerFrame
	written := 0
	for frames > 0 {
		n := min(frames, maxBlock)
		l, r := e.left[:n], e.right[:n]
		e.renderBlock(l, r)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(p[written:], math.Float32bits(l[i]))
			binary.LittleEndian.PutUint32(p[written+4:], math.Float32bits(r[i]))
			written += BytesPerFrame
		}
		frames -= n
	}
	debug.LogEvery(2000, "engine", "rendered up to %v", e.Now())
	return written, nil
}
