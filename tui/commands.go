package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	tea "github.com/charmbracelet/bubbletea"

	"beatgrid/debug"
	"beatgrid/midi"
	"beatgrid/sequencer"
	"beatgrid/store"
)

var errNoLibrary = fmt.Errorf("no library configured")

func (m Model) refreshLibrary() tea.Cmd {
	lib, q := m.Library, m.query
	return func() tea.Msg {
		if lib == nil {
			return libraryMsg{err: errNoLibrary}
		}
		sessions, err := lib.Sessions.Search(q)
		if err != nil {
			return libraryMsg{sessions: sessions, err: err}
		}
		patterns, err := lib.Patterns.Search(q)
		return libraryMsg{sessions: sessions, patterns: patterns, err: err}
	}
}

// saveSession stores the current session. An empty id or asNew creates a
// new record.
func (m Model) saveSession(id, name string, asNew bool) tea.Cmd {
	lib := m.Library
	rec := store.FromState(m.Manager.State())
	rec.ID, rec.Name = id, name
	return func() tea.Msg {
		if lib == nil {
			return savedMsg{name: name, err: errNoLibrary}
		}
		var err error
		if asNew {
			rec, err = lib.Sessions.SaveAsNew(rec)
		} else {
			rec, err = lib.Sessions.Save(rec)
		}
		return savedMsg{id: rec.ID, name: rec.Name, err: err}
	}
}

// savePattern stores the displayed grid as a named pattern
func (m Model) savePattern(name string) tea.Cmd {
	lib := m.Library
	st := m.Manager.State()
	rec := &store.PatternRecord{
		Meta:     store.Meta{Name: name},
		Channels: append([]string(nil), st.Channels...),
		Pattern:  st.Pattern(m.Manager.DisplayedSlot()).Clone(),
	}
	return func() tea.Msg {
		if lib == nil {
			return savedMsg{pattern: true, name: name, err: errNoLibrary}
		}
		rec, err := lib.Patterns.Save(rec)
		return savedMsg{pattern: true, id: rec.ID, name: rec.Name, err: err}
	}
}

func (m Model) loadSession(id string) tea.Cmd {
	lib := m.Library
	return func() tea.Msg {
		if lib == nil {
			return sessionLoadedMsg{err: errNoLibrary}
		}
		rec, err := lib.Sessions.Get(id)
		return sessionLoadedMsg{rec: rec, err: err}
	}
}

func (m Model) deleteSelected() tea.Cmd {
	if m.Library == nil || m.libCursor >= m.libraryLen() {
		return nil
	}
	var (
		id, name string
		del      func(string) error
	)
	if m.tab == tabPatterns {
		rec := m.patterns[m.libCursor]
		id, name, del = rec.ID, rec.Name, m.Library.Patterns.Delete
	} else {
		rec := m.sessions[m.libCursor]
		id, name, del = rec.ID, rec.Name, m.Library.Sessions.Delete
	}
	return func() tea.Msg {
		return deletedMsg{name: name, err: del(id)}
	}
}

// export writes the displayed pattern as a MIDI file into the export dir
func (m Model) export() tea.Cmd {
	st := m.Manager.State()
	slot := m.Manager.DisplayedSlot()
	p := st.Pattern(slot)
	notes, dir := m.notes, m.exportDir
	return func() tea.Msg {
		data, err := midi.ExportNotes(p, st.Tempo, st.Name, st.Channels, notes)
		if err != nil {
			debug.Log("export", "%s: %v", slot, err)
			return exportedMsg{err: err}
		}
		path := filepath.Join(dir, exportFileName(st.Name, slot))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return exportedMsg{path: path, err: fmt.Errorf("write %s: %w", path, err)}
		}
		debug.Log("export", "wrote %s (%d bytes)", path, len(data))
		return exportedMsg{path: path}
	}
}

// exportFileName turns a session name into "<name>-<slot>.mid"
func exportFileName(name string, slot sequencer.Slot) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	base := strings.TrimSuffix(b.String(), "-")
	if base == "" {
		base = "beatgrid"
	}
	return base + "-" + slot.String() + ".mid"
}
