package tui

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"beatgrid/audio"
	"beatgrid/clock"
	"beatgrid/sequencer"
	"beatgrid/store"
	"beatgrid/theme"
)

type testRig struct {
	m       Model
	lib     *store.Library
	clk     *clock.Fake
	outDir  string
	lastCmd tea.Cmd
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	clk := clock.NewFake()
	mgr := sequencer.NewManager(sequencer.NewState([]string{"kick", "snare", "closed-hat"}, 16), sequencer.Options{Clock: clk})
	lib := store.Open(t.TempDir())
	out := t.TempDir()
	m := NewModel(mgr, theme.New(theme.DefaultPalette()), Options{
		Library:   lib,
		Kit:       audio.DefaultKit(),
		ExportDir: out,
	})
	return &testRig{m: m, lib: lib, clk: clk, outDir: out}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press sends keys one at a time and remembers the last command
func (r *testRig) press(keys ...string) {
	for _, k := range keys {
		next, cmd := r.m.Update(keyMsg(k))
		r.m = next.(Model)
		r.lastCmd = cmd
	}
}

// typeText sends every rune of s as its own key
func (r *testRig) typeText(s string) {
	for _, c := range s {
		r.press(string(c))
	}
}

// run executes the last command and feeds its messages back until none are
// left
func (r *testRig) run(t *testing.T) {
	t.Helper()
	cmd := r.lastCmd
	for i := 0; cmd != nil && i < 10; i++ {
		msg := cmd()
		next, c := r.m.Update(msg)
		r.m = next.(Model)
		cmd = c
	}
	r.lastCmd = nil
}

func (r *testRig) state() *sequencer.State {
	return r.m.Manager.State()
}

func TestGridEditing(t *testing.T) {
	r := newTestRig(t)
	r.press("l", "l", " ")
	if got := r.state().Patterns[sequencer.SlotA].At(0, 2); got != sequencer.Low {
		t.Errorf("after one cycle cell = %v, want Low", got)
	}
	r.press(" ", " ", " ")
	if got := r.state().Patterns[sequencer.SlotA].At(0, 2); got != sequencer.Off {
		t.Errorf("after four cycles cell = %v, want Off", got)
	}

	r.press("j", "3", "h", "2")
	p := r.state().Patterns[sequencer.SlotA]
	if p.At(1, 2) != sequencer.High || p.At(1, 1) != sequencer.Medium {
		t.Errorf("pattern =\n%s", p)
	}

	r.press("x")
	if !r.state().Patterns[sequencer.SlotA].IsEmpty() {
		t.Error("x did not clear the pattern")
	}
}

func TestPatternSelectAndCopy(t *testing.T) {
	r := newTestRig(t)
	r.press("1", "y", "c", "P")
	st := r.state()
	if st.Current != sequencer.SlotC {
		t.Fatalf("current = %v, want C", st.Current)
	}
	if st.Patterns[sequencer.SlotC].At(0, 0) != sequencer.Low {
		t.Error("paste did not copy A into C")
	}
	r.press("b")
	if r.state().Current != sequencer.SlotB {
		t.Error("b did not select pattern B")
	}
}

func TestTransportKeys(t *testing.T) {
	r := newTestRig(t)
	r.press("+", "+", "{", "]")
	st := r.state()
	if st.Tempo != 129 {
		t.Errorf("tempo = %d, want 129", st.Tempo)
	}
	if st.Swing != 0.05 {
		t.Errorf("swing = %v", st.Swing)
	}
	r.press("p")
	if !r.m.Manager.Playing() {
		t.Error("p did not start playback")
	}
	r.press("p")
	if r.m.Manager.Playing() {
		t.Error("p did not stop playback")
	}
}

func TestMixerKeys(t *testing.T) {
	r := newTestRig(t)
	r.press("j", "m", "s", "z")
	st := r.state()
	if !st.Mixer[1].Mute || !st.Mixer[1].Solo {
		t.Errorf("snare = %+v", st.Mixer[1])
	}
	if !st.Global.Compressor.Enabled {
		t.Error("z did not enable the compressor")
	}

	// volume is the first knob
	r.press("tab", ".", ".")
	if got := r.state().Mixer[1].Volume; got < 0.899 || got > 0.901 {
		t.Errorf("volume = %v, want 0.9", got)
	}
	r.press("l", ",")
	if got := r.state().Mixer[1].Pan; got > -0.099 || got < -0.101 {
		t.Errorf("pan = %v, want -0.1", got)
	}
	// the grid does not react while the mixer has focus
	r.press(" ")
	if !r.state().Patterns[sequencer.SlotA].IsEmpty() {
		t.Error("space edited the grid from the mixer panel")
	}
}

func TestChainKeys(t *testing.T) {
	r := newTestRig(t)
	r.press("C", "tab", "tab", "l", "b", ",")
	st := r.state()
	if !st.ChainEnabled {
		t.Error("chain not enabled")
	}
	want := []sequencer.Slot{sequencer.SlotA, sequencer.SlotB, sequencer.SlotA}
	if st.ChainLength != 3 || !reflect.DeepEqual(st.Chain, want) {
		t.Errorf("chain = %v (length %d)", st.Chain, st.ChainLength)
	}
}

func TestSaveAndLoadSession(t *testing.T) {
	r := newTestRig(t)
	r.press("3", "W", "backspace")
	if r.m.overlay != overlayName {
		t.Fatal("W did not open the name prompt")
	}
	r.typeText("groove")
	r.press(" ")
	r.typeText("one")
	r.press("enter")
	r.run(t)

	if r.m.sessionID == "" {
		t.Fatalf("no session id after save, status %q", r.m.status)
	}
	all, err := r.lib.Sessions.List()
	if err != nil || len(all) != 1 || all[0].Name != "groove one" {
		t.Fatalf("sessions = %v, %v", all, err)
	}

	// later edits are lost when the saved session is reloaded
	r.press("+", "l", "3")
	r.press("L")
	r.run(t)
	if len(r.m.sessions) != 1 {
		t.Fatalf("library lists %d sessions", len(r.m.sessions))
	}
	r.press("enter")
	r.run(t)

	st := r.state()
	if st.Tempo != 120 || st.Name != "groove one" {
		t.Errorf("loaded tempo=%d name=%q", st.Tempo, st.Name)
	}
	if p := st.Patterns[sequencer.SlotA]; p.At(0, 0) != sequencer.High || p.At(0, 1) != sequencer.Off {
		t.Errorf("loaded pattern =\n%s", p)
	}
	if r.m.overlay != overlayNone {
		t.Error("library still open after load")
	}

	// w now updates the same record
	r.press("}", "w")
	r.run(t)
	all, _ = r.lib.Sessions.List()
	if len(all) != 1 || all[0].BPM != 121 {
		t.Errorf("after w: %d records, bpm %d", len(all), all[0].BPM)
	}
}

func TestSavePatternAndLoadIntoSlot(t *testing.T) {
	r := newTestRig(t)
	r.press("2", "g", "enter")
	r.run(t)
	pats, _ := r.lib.Patterns.List()
	if len(pats) != 1 {
		t.Fatalf("saved %d patterns", len(pats))
	}

	r.press("d", "L")
	r.run(t)
	r.press("tab", "enter")
	if got := r.state().Patterns[sequencer.SlotD].At(0, 0); got != sequencer.Medium {
		t.Errorf("slot D cell = %v, want Medium", got)
	}
}

func TestLibrarySearchAndDelete(t *testing.T) {
	r := newTestRig(t)
	for _, name := range []string{"Dub", "Techno", "Dubstep"} {
		st := r.state().Clone()
		st.Name = name
		if _, err := r.lib.Sessions.Save(store.FromState(st)); err != nil {
			t.Fatal(err)
		}
	}

	r.press("L")
	r.run(t)
	r.press("/")
	r.typeText("DUB")
	r.run(t)
	r.press("enter")
	if len(r.m.sessions) != 2 {
		t.Fatalf("search found %d sessions", len(r.m.sessions))
	}

	r.press("x")
	r.run(t)
	all, _ := r.lib.Sessions.List()
	if len(all) != 2 {
		t.Errorf("%d sessions left after delete", len(all))
	}
	if len(r.m.sessions) != 1 {
		t.Errorf("filtered list has %d entries", len(r.m.sessions))
	}
	r.press("esc")
	if r.m.overlay != overlayNone {
		t.Error("esc did not close the library")
	}
}

func TestExport(t *testing.T) {
	r := newTestRig(t)

	// empty grid: no file and no message
	r.press("e")
	r.run(t)
	entries, _ := os.ReadDir(r.outDir)
	if len(entries) != 0 || r.m.status != "" {
		t.Fatalf("empty export wrote %d files, status %q", len(entries), r.m.status)
	}

	r.press("r")
	r.typeText("!")
	r.press("enter", "3", "e")
	r.run(t)
	path := filepath.Join(r.outDir, "beatgrid-A.mid")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("%v (status %q)", err, r.m.status)
	}
	if !strings.HasPrefix(string(data), "MThd") {
		t.Error("export is not a MIDI file")
	}
}

func TestExportFileName(t *testing.T) {
	tests := []struct {
		name string
		slot sequencer.Slot
		want string
	}{
		{"Late Night Groove", sequencer.SlotB, "late-night-groove-B.mid"},
		{"  ", sequencer.SlotA, "beatgrid-A.mid"},
		{"a/b..c!", sequencer.SlotD, "a-b-c-D.mid"},
	}
	for _, tt := range tests {
		if got := exportFileName(tt.name, tt.slot); got != tt.want {
			t.Errorf("exportFileName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestViewRenders(t *testing.T) {
	r := newTestRig(t)
	r.press("3", "?")
	v := r.m.View()
	for _, want := range []string{"beatgrid", "pattern:A", "kick", "closed-hat", "chain", "Transport"} {
		if !strings.Contains(v, want) {
			t.Errorf("view lacks %q", want)
		}
	}
	r.press("L")
	r.run(t)
	if v := r.m.View(); !strings.Contains(v, "nothing saved") {
		t.Error("empty library view")
	}
}
