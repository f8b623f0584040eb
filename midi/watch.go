package midi

import (
	"context"
	"sort"
	"sync"
	"time"

	"beatgrid/debug"
)

// PortEvent is emitted when an output port appears or goes away
type PortEvent struct {
	Type PortEventType
	Name string
}

type PortEventType int

const (
	PortConnected PortEventType = iota
	PortDisconnected
)

// Watcher handles hot-plug detection of MIDI output ports
type Watcher struct {
	mu       sync.RWMutex
	ports    map[string]bool
	events   chan PortEvent
	pollRate time.Duration
	list     func() ([]string, error)
}

// NewWatcher creates a watcher polling once a second
func NewWatcher() *Watcher {
	return &Watcher{
		ports:    make(map[string]bool),
		events:   make(chan PortEvent, 16),
		pollRate: time.Second,
		list: func() ([]string, error) {
			_, outs, err := ListPorts(ScanTimeout)
			return outs, err
		},
	}
}

// Events returns a channel of connect/disconnect events. It is closed when
// Run returns.
func (w *Watcher) Events() <-chan PortEvent {
	return w.events
}

// Ports returns the output ports seen by the last scan, sorted
func (w *Watcher) Ports() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.ports))
	for name := range w.ports {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Run starts the polling loop (blocking - run in goroutine)
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()
	defer close(w.events)

	w.scan()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *Watcher) scan() {
	names, err := w.list()
	if err != nil {
		// CoreMIDI is hung - skip this scan
		debug.LogEvery(30, "midi", "port scan: %v", err)
		return
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		seen[name] = true
	}

	w.mu.Lock()
	var events []PortEvent
	for name := range seen {
		if !w.ports[name] {
			events = append(events, PortEvent{Type: PortConnected, Name: name})
		}
	}
	for name := range w.ports {
		if !seen[name] {
			events = append(events, PortEvent{Type: PortDisconnected, Name: name})
		}
	}
	w.ports = seen
	w.mu.Unlock()

	sort.Slice(events, func(i, j int) bool {
		if events[i].Type != events[j].Type {
			return events[i].Type > events[j].Type // disconnects first
		}
		return events[i].Name < events[j].Name
	})
	for _, ev := range events {
		select {
		case w.events <- ev:
		default:
			debug.Warn("midi", "dropped port event for %s", ev.Name)
		}
	}
}
