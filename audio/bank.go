package audio

import (
	"sync"
	"sync/atomic"

	"beatgrid/debug"
)

// Loader turns a sample path into a decoded buffer
type Loader func(path string, rate int) (*Sample, error)

// SampleBank holds the canonical buffer of every channel. Selecting a
// sample loads it in the background and swaps the buffer in when done;
// until then triggers keep using the previous one.
type SampleBank struct {
	kit  *Kit
	root string
	rate int
	load Loader

	current  []atomic.Pointer[Sample]
	selected []atomic.Int32
	// latest request per channel, so a slow old load can't win
	requests []atomic.Uint64

	pending sync.WaitGroup
	onLoad  func(ch int, s *Sample, err error)
}

// NewSampleBank creates a bank for kit with files under root
func NewSampleBank(kit *Kit, root string, rate int) *SampleBank {
	n := len(kit.Channels)
	return &SampleBank{
		kit:      kit,
		root:     root,
		rate:     rate,
		load:     LoadSample,
		current:  make([]atomic.Pointer[Sample], n),
		selected: make([]atomic.Int32, n),
		requests: make([]atomic.Uint64, n),
	}
}

// SetLoader replaces the file loader (used by tests)
func (b *SampleBank) SetLoader(l Loader) {
	b.load = l
}

// OnLoad registers a callback run after every finished load
func (b *SampleBank) OnLoad(f func(ch int, s *Sample, err error)) {
	b.onLoad = f
}

// Kit returns the kit the bank was built for
func (b *SampleBank) Kit() *Kit {
	return b.kit
}

// Current returns the buffer triggers on ch should use, or nil
func (b *SampleBank) Current(ch int) *Sample {
	if ch < 0 || ch >= len(b.current) {
		return nil
	}
	return b.current[ch].Load()
}

// Selected returns the sample index last requested for ch
func (b *SampleBank) Selected(ch int) int {
	if ch < 0 || ch >= len(b.selected) {
		return 0
	}
	return int(b.selected[ch].Load())
}

// Set binds s to ch directly
func (b *SampleBank) Set(ch int, s *Sample) {
	if ch < 0 || ch >= len(b.current) {
		return
	}
	b.requests[ch].Add(1)
	b.current[ch].Store(s)
}

// Select starts loading sample idx for ch. It never blocks.
func (b *SampleBank) Select(ch, idx int) {
	path, err := b.kit.Path(b.root, ch, idx)
	if err != nil {
		debug.Warn("samples", "select ch=%d idx=%d: %v", ch, idx, err)
		return
	}
	b.selected[ch].Store(int32(idx))
	req := b.requests[ch].Add(1)

	b.pending.Add(1)
	go func() {
		defer b.pending.Done()
		s, err := b.load(path, b.rate)
		if err != nil {
			debug.Warn("samples", "load %s: %v, keeping previous buffer", path, err)
		} else if b.requests[ch].Load() == req {
			b.current[ch].Store(s)
			debug.Log("samples", "ch=%d loaded %s (%v)", ch, s.Name, s.Duration())
		} else {
			debug.Log("samples", "ch=%d dropped stale load of %s", ch, path)
		}
		if b.onLoad != nil {
			b.onLoad(ch, s, err)
		}
	}()
}

// SelectAll starts loading indexes[i] for every channel i
func (b *SampleBank) SelectAll(indexes []int) {
	for ch := range b.current {
		idx := 0
		if ch < len(indexes) {
			idx = indexes[ch]
		}
		b.Select(ch, idx)
	}
}

// Wait blocks until every started load has finished
func (b *SampleBank) Wait() {
	b.pending.Wait()
}

// Count is the number of samples ch can select from
func (b *SampleBank) Count(ch int) int {
	if ch < 0 || ch >= len(b.kit.Channels) {
		return 0
	}
	return len(b.kit.Channels[ch].Samples)
}
