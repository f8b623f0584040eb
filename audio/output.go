package audio

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"

	"beatgrid/debug"
)

// Output pulls frames from an engine until closed
type Output interface {
	Close() error
}

// OtoOutput plays the engine through the system audio device
type OtoOutput struct {
	ctx    *oto.Context
	player *oto.Player
}

// OpenOto creates the oto context and starts pulling from e. Only one oto
// context can exist per process.
func OpenOto(e *Engine, bufferMs int) (*OtoOutput, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   e.Rate(),
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(bufferMs) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready

	player := ctx.NewPlayer(e)
	player.SetBufferSize(e.Rate() * BytesPerFrame * bufferMs / 1000)
	player.Play()
	debug.Log("audio", "oto output open: %dHz buffer=%dms", e.Rate(), bufferMs)
	return &OtoOutput{ctx: ctx, player: player}, nil
}

// Close stops playback
func (o *OtoOutput) Close() error {
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// NullOutput drains the engine in real time without a sound card, so the
// audio clock keeps moving in headless runs
type NullOutput struct {
	stop chan struct{}
	done chan struct{}
}

// StartNull reads from r every block interval until closed
func StartNull(r io.Reader, rate int, block time.Duration) *NullOutput {
	o := &NullOutput{stop: make(chan struct{}), done: make(chan struct{})}
	frames := int(block.Seconds() * float64(rate))
	buf := make([]byte, max(frames, 1)*BytesPerFrame)
	go func() {
		defer close(o.done)
		ticker := time.NewTicker(block)
		defer ticker.Stop()
		for {
			select {
			case <-o.stop:
				return
			case <-ticker.C:
				if _, err := r.Read(buf); err != nil {
					debug.Warn("audio", "null output read: %v", err)
					return
				}
			}
		}
	}()
	return o
}

// Close stops the drain goroutine and waits for it
func (o *NullOutput) Close() error {
	close(o.stop)
	<-o.done
	return nil
}
