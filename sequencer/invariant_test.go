//go:build !strict

package sequencer

import (
	"bytes"
	"strings"
	"testing"

	"beatgrid/debug"
)

func TestBrokenChainFallsBackToSlotA(t *testing.T) {
	var buf bytes.Buffer
	debug.SetOutput(&buf)
	defer debug.SetOutput(nil)

	st := NewState(testChannels, 16)
	st.ChainEnabled = true
	st.Patterns[SlotA] = st.Patterns[SlotA].With(0, 0, High)
	s, sess, clk, rec := newTestScheduler(st, 0)
	sess.Update(func(st *State) { st.Chain[0] = Slot(7) })

	s.Start()
	clk.Advance(0)

	if got := rec.take(); len(got) != 1 || got[0].ch != 0 {
		t.Errorf("hits = %v, want kick from slot A", got)
	}
	if !strings.Contains(buf.String(), "WARN") || !strings.Contains(buf.String(), "chain[0]") {
		t.Errorf("expected a warning, log = %q", buf.String())
	}
	if !s.Playing() {
		t.Error("playback stopped on a broken chain")
	}
}

func TestShortChainArrayIsClamped(t *testing.T) {
	debug.SetOutput(&bytes.Buffer{})
	defer debug.SetOutput(nil)

	st := NewState(testChannels, 16)
	st.ChainEnabled = true
	st.ChainLength = 4
	st.Chain = []Slot{SlotC}
	s, _, clk, _ := newTestScheduler(st, 0)
	s.Start()
	clk.Advance(16 * step120)
	if pos := s.Position(); pos.Slot != SlotC {
		t.Errorf("slot = %v, want C", pos.Slot)
	}
}
