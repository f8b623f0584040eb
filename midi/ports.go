package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

var (
	ErrPortTimeout  = errors.New("midi port scan timed out")
	ErrPortNotFound = errors.New("midi port not found")
)

// ScanTimeout bounds port enumeration (CoreMIDI can hang)
const ScanTimeout = 3 * time.Second

type portsResult struct {
	ins  []drivers.In
	outs []drivers.Out
}

func scan(timeout time.Duration) (portsResult, error) {
	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		return r, nil
	case <-time.After(timeout):
		// Fix on macOS: sudo killall coreaudiod midiserver
		return portsResult{}, ErrPortTimeout
	}
}

// ListPorts returns the names of all input and output ports
func ListPorts(timeout time.Duration) (ins, outs []string, err error) {
	r, err := scan(timeout)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range r.ins {
		ins = append(ins, p.String())
	}
	for _, p := range r.outs {
		outs = append(outs, p.String())
	}
	return ins, outs, nil
}

// findOut picks the output port named name, falling back to the first
// port whose name contains it (case-insensitive)
func findOut(name string, timeout time.Duration) (drivers.Out, error) {
	r, err := scan(timeout)
	if err != nil {
		return nil, err
	}
	for _, p := range r.outs {
		if p.String() == name {
			return p, nil
		}
	}
	lower := strings.ToLower(name)
	for _, p := range r.outs {
		if strings.Contains(strings.ToLower(p.String()), lower) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrPortNotFound)
}
