package midi

import (
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"beatgrid/clock"
	"beatgrid/debug"
)

// Output mirrors scheduled hits to an external MIDI port as drum notes.
// It implements the scheduler's trigger sink.
type Output struct {
	port  string
	clock clock.Clock
	notes []uint8
	gate  time.Duration

	mu     sync.Mutex
	out    drivers.Out
	send   func(gomidi.Message) error
	failed bool // don't rescan on every hit after the port went missing
}

// NewOutput creates an output for the named port. The port is opened on
// the first hit.
func NewOutput(port string, clk clock.Clock, notes []uint8, gate time.Duration) *Output {
	if gate <= 0 {
		gate = 50 * time.Millisecond
	}
	return &Output{
		port:  port,
		clock: clk,
		notes: notes,
		gate:  gate,
	}
}

// SetSender replaces the port with a send function (used by tests)
func (o *Output) SetSender(send func(gomidi.Message) error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.send = send
	o.failed = false
}

// Trigger schedules a note-on at at and the matching note-off one gate later
func (o *Output) Trigger(ch int, at time.Duration, gain float64) {
	vel := Velocity(gain)
	if vel == 0 || ch < 0 {
		return
	}
	note := DefaultNote
	if ch < len(o.notes) {
		note = o.notes[ch]
	}
	delay := max(at-o.clock.Now(), 0)
	o.clock.AfterFunc(delay, func() {
		o.emit(gomidi.NoteOn(DrumChannel, note, vel))
	})
	o.clock.AfterFunc(delay+o.gate, func() {
		o.emit(gomidi.NoteOff(DrumChannel, note))
	})
}

func (o *Output) emit(msg gomidi.Message) {
	send := o.sender()
	if send == nil {
		return
	}
	if err := send(msg); err != nil {
		debug.Warn("midi", "send to %s: %v", o.port, err)
	}
}

// sender returns the port's send function, lazily opening it
func (o *Output) sender() func(gomidi.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.send != nil || o.failed || o.port == "" {
		return o.send
	}

	port, err := findOut(o.port, ScanTimeout)
	if err == nil {
		o.send, err = gomidi.SendTo(port)
	}
	if err != nil {
		o.failed = true
		debug.Warn("midi", "open %s: %v", o.port, err)
		return nil
	}
	o.out = port
	debug.Log("midi", "opened %s", port.String())
	return o.send
}

// Matches reports whether name is the port this output looks for, using
// the same rules as opening it
func (o *Output) Matches(name string) bool {
	return name == o.port || (o.port != "" && strings.Contains(strings.ToLower(name), strings.ToLower(o.port)))
}

// Reset closes the port and allows the next hit to open it again, such as
// after the device was replugged
func (o *Output) Reset() {
	if err := o.Close(); err != nil {
		debug.Warn("midi", "close %s: %v", o.port, err)
	}
	o.mu.Lock()
	o.failed = false
	o.mu.Unlock()
}

// Close closes the port if it was opened
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.send = nil
	if o.out == nil {
		return nil
	}
	err := o.out.Close()
	o.out = nil
	return err
}
