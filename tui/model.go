package tui

import (
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"beatgrid/audio"
	"beatgrid/midi"
	"beatgrid/sequencer"
	"beatgrid/store"
	"beatgrid/theme"
)

// focus is the panel that receives the navigation keys
type focus int

const (
	focusGrid focus = iota
	focusMixer
	focusChain
	numFocus
)

type overlay int

const (
	overlayNone overlay = iota
	overlayLibrary
	overlayName
)

type libraryTab int

const (
	tabSessions libraryTab = iota
	tabPatterns
)

// nameAction is what a confirmed name prompt does
type nameAction int

const (
	nameSave nameAction = iota
	nameSaveAs
	namePattern
	nameRename
)

// Meters reports per-channel output peaks
type Meters interface {
	Peak(ch int) float32
}

// Options are the optional collaborators of the UI
type Options struct {
	Library   *store.Library
	Kit       *audio.Kit
	Meters    Meters
	Notes     []uint8 // export note per channel, GM when nil
	ExportDir string
}

type Model struct {
	Manager *sequencer.Manager
	Library *store.Library
	Kit     *audio.Kit
	Meters  Meters
	Theme   *theme.Theme

	notes     []uint8
	exportDir string

	focus    focus
	overlay  overlay
	ch, step int // grid cursor
	knob     int
	chainPos int
	yank     sequencer.Slot
	hasYank  bool

	// record the session was last loaded from or saved to
	sessionID string

	tab       libraryTab
	sessions  []*store.SessionRecord
	patterns  []*store.PatternRecord
	libCursor int
	query     string
	searching bool

	input  string
	naming nameAction

	status   string
	showHelp bool
	quitting bool
}

type UpdateMsg struct{}

type meterTickMsg time.Time

type libraryMsg struct {
	sessions []*store.SessionRecord
	patterns []*store.PatternRecord
	err      error
}

type savedMsg struct {
	pattern bool
	id      string
	name    string
	err     error
}

type sessionLoadedMsg struct {
	rec *store.SessionRecord
	err error
}

type deletedMsg struct {
	name string
	err  error
}

type exportedMsg struct {
	path string
	err  error
}

func NewModel(manager *sequencer.Manager, th *theme.Theme, opts Options) Model {
	notes := opts.Notes
	if notes == nil {
		notes = midi.Notes(midi.DefaultNoteMap, manager.State().Channels)
	}
	dir := opts.ExportDir
	if dir == "" {
		dir = "."
	}
	return Model{
		Manager:   manager,
		Library:   opts.Library,
		Kit:       opts.Kit,
		Meters:    opts.Meters,
		Theme:     th,
		notes:     notes,
		exportDir: dir,
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

// meterTick redraws the level meters while nothing else changes
func meterTick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return meterTickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForUpdates(m.Manager)}
	if m.Meters != nil {
		cmds = append(cmds, meterTick())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.overlay {
		case overlayName:
			return m.updateName(msg)
		case overlayLibrary:
			return m.updateLibrary(msg)
		}
		return m.updateKeys(msg)

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case meterTickMsg:
		return m, meterTick()

	case libraryMsg:
		m.sessions, m.patterns = msg.sessions, msg.patterns
		m.libCursor = min(m.libCursor, max(m.libraryLen()-1, 0))
		if msg.err != nil {
			m.status = "library: " + msg.err.Error()
		}

	case savedMsg:
		if msg.err != nil {
			m.status = "save failed: " + msg.err.Error()
			break
		}
		if msg.pattern {
			m.status = "saved pattern " + msg.name
			break
		}
		m.sessionID = msg.id
		m.status = "saved " + msg.name

	case sessionLoadedMsg:
		if msg.err != nil {
			m.status = "load failed: " + msg.err.Error()
			break
		}
		m.Manager.LoadState(msg.rec.ToState())
		m.sessionID = msg.rec.ID
		m.overlay = overlayNone
		m.clampCursor()
		m.status = "loaded " + msg.rec.Name

	case deletedMsg:
		if msg.err != nil {
			m.status = "delete failed: " + msg.err.Error()
		} else {
			m.status = "deleted " + msg.name
		}
		return m, m.refreshLibrary()

	case exportedMsg:
		switch {
		case msg.err == nil:
			m.status = "exported " + msg.path
		case errors.Is(msg.err, midi.ErrEmptyPattern):
			// nothing to write
		default:
			m.status = "export failed: " + msg.err.Error()
		}
	}

	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.Manager.State()
	key := msg.String()

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.Manager.Stop()
		return m, tea.Quit

	case "p":
		m.Manager.Toggle()

	case "+", "=":
		m.Manager.SetTempo(st.Tempo + 5)
	case "-", "_":
		m.Manager.SetTempo(st.Tempo - 5)
	case "}":
		m.Manager.SetTempo(st.Tempo + 1)
	case "{":
		m.Manager.SetTempo(st.Tempo - 1)

	case "]":
		m.Manager.SetSwing(st.Swing + 0.05)
	case "[":
		m.Manager.SetSwing(st.Swing - 0.05)

	case "tab":
		m.focus = (m.focus + 1) % numFocus
	case "shift+tab":
		m.focus = (m.focus + numFocus - 1) % numFocus

	case "C":
		m.Manager.SetChainEnabled(!st.ChainEnabled)

	case "j", "down":
		if m.ch < len(st.Channels)-1 {
			m.ch++
		}
	case "k", "up":
		if m.ch > 0 {
			m.ch--
		}

	case "m":
		m.Manager.ToggleMute(m.ch)
	case "s":
		m.Manager.ToggleSolo(m.ch)
	case "n":
		m.Manager.CycleSample(m.ch, 1)
	case "N":
		m.Manager.CycleSample(m.ch, -1)
	case "z":
		m.Manager.SetCompressorEnabled(!st.Global.Compressor.Enabled)

	case "w":
		if m.sessionID != "" {
			return m, m.saveSession(m.sessionID, st.Name, false)
		}
		m.prompt(nameSave, st.Name)
	case "W":
		m.prompt(nameSaveAs, st.Name)
	case "g":
		m.prompt(namePattern, st.Name+" "+m.Manager.DisplayedSlot().String())
	case "r":
		m.prompt(nameRename, st.Name)
	case "L":
		m.overlay = overlayLibrary
		m.searching = false
		return m, m.refreshLibrary()
	case "e":
		return m, m.export()

	case "?":
		m.showHelp = !m.showHelp

	default:
		switch m.focus {
		case focusGrid:
			m.gridKey(key, st)
		case focusMixer:
			m.mixerKey(key)
		case focusChain:
			m.chainKey(key, st)
		}
	}
	return m, nil
}

func (m *Model) gridKey(key string, st *sequencer.State) {
	switch key {
	case "h", "left":
		if m.step > 0 {
			m.step--
		}
	case "l", "right":
		if m.step < st.Steps-1 {
			m.step++
		}
	case " ":
		m.Manager.CycleCell(m.ch, m.step)
	case "0", "1", "2", "3":
		m.Manager.SetCell(m.ch, m.step, sequencer.Velocity(key[0]-'0'))
	case "a", "b", "c", "d":
		slot, _ := sequencer.ParseSlot(key)
		m.Manager.SelectPattern(slot)
	case "x":
		m.Manager.ClearPattern(m.Manager.DisplayedSlot())
	case "y":
		m.yank, m.hasYank = m.Manager.DisplayedSlot(), true
		m.status = "copied " + m.yank.String()
	case "P":
		if m.hasYank {
			dst := m.Manager.DisplayedSlot()
			m.Manager.CopyPattern(m.yank, dst)
			m.status = "pasted " + m.yank.String() + " into " + dst.String()
		}
	}
}

func (m *Model) mixerKey(key string) {
	switch key {
	case "h", "left":
		m.knob = (m.knob + len(knobs) - 1) % len(knobs)
	case "l", "right":
		m.knob = (m.knob + 1) % len(knobs)
	case ".", ">":
		m.adjustKnob(1)
	case ",", "<":
		m.adjustKnob(-1)
	}
}

func (m *Model) adjustKnob(dir int) {
	k := knobs[m.knob]
	if k.channel != nil {
		m.Manager.SetChannel(m.ch, func(p *audio.ChannelParams) {
			v := k.channel(p)
			*v = k.nudge(*v, dir)
		})
		return
	}
	m.Manager.SetGlobal(func(g *audio.GlobalParams) {
		v := k.bus(g)
		*v = k.nudge(*v, dir)
	})
}

func (m *Model) chainKey(key string, st *sequencer.State) {
	switch key {
	case "h", "left":
		if m.chainPos > 0 {
			m.chainPos--
		}
	case "l", "right":
		if m.chainPos < len(st.Chain)-1 {
			m.chainPos++
		}
	case "a", "b", "c", "d":
		slot, _ := sequencer.ParseSlot(key)
		m.Manager.SetChainSlot(m.chainPos, slot)
	case ".", ">":
		m.Manager.SetChainLength(st.ChainLength + 1)
	case ",", "<":
		m.Manager.SetChainLength(st.ChainLength - 1)
		m.chainPos = min(m.chainPos, max(st.ChainLength-2, 0))
	}
}

// clampCursor keeps the cursors inside a freshly loaded session
func (m *Model) clampCursor() {
	st := m.Manager.State()
	m.ch = min(m.ch, max(len(st.Channels)-1, 0))
	m.step = min(m.step, max(st.Steps-1, 0))
	m.chainPos = min(m.chainPos, max(len(st.Chain)-1, 0))
}

func (m *Model) prompt(action nameAction, initial string) {
	m.overlay = overlayName
	m.naming = action
	m.input = initial
}

func (m Model) updateName(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.overlay = overlayNone
		return m, nil
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.input += " "
		return m, nil
	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	case tea.KeyEnter:
	default:
		return m, nil
	}

	name := strings.TrimSpace(m.input)
	m.overlay = overlayNone
	if name == "" {
		m.status = "name required"
		return m, nil
	}
	switch m.naming {
	case nameSave:
		m.Manager.Rename(name)
		return m, m.saveSession(m.sessionID, name, false)
	case nameSaveAs:
		m.Manager.Rename(name)
		return m, m.saveSession("", name, true)
	case namePattern:
		return m, m.savePattern(name)
	case nameRename:
		m.Manager.Rename(name)
	}
	return m, nil
}

func (m Model) updateLibrary(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.Type {
		case tea.KeyEsc, tea.KeyEnter:
			m.searching = false
			return m, nil
		case tea.KeyBackspace:
			if r := []rune(m.query); len(r) > 0 {
				m.query = string(r[:len(r)-1])
			}
		case tea.KeySpace:
			m.query += " "
		case tea.KeyRunes:
			m.query += string(msg.Runes)
		default:
			return m, nil
		}
		m.libCursor = 0
		return m, m.refreshLibrary()
	}

	switch msg.String() {
	case "esc", "L", "q":
		m.overlay = overlayNone
	case "/":
		m.searching = true
	case "tab":
		m.tab = 1 - m.tab
		m.libCursor = 0
	case "j", "down":
		if m.libCursor < m.libraryLen()-1 {
			m.libCursor++
		}
	case "k", "up":
		if m.libCursor > 0 {
			m.libCursor--
		}
	case "enter":
		return m.openSelected()
	case "x", "delete":
		return m, m.deleteSelected()
	}
	return m, nil
}

func (m Model) libraryLen() int {
	if m.tab == tabPatterns {
		return len(m.patterns)
	}
	return len(m.sessions)
}

func (m Model) openSelected() (tea.Model, tea.Cmd) {
	if m.libCursor >= m.libraryLen() {
		return m, nil
	}
	if m.tab == tabPatterns {
		rec := m.patterns[m.libCursor]
		slot := m.Manager.DisplayedSlot()
		m.Manager.SetPattern(slot, rec.Pattern)
		m.overlay = overlayNone
		m.status = "loaded " + rec.Name + " into " + slot.String()
		return m, nil
	}
	return m, m.loadSession(m.sessions[m.libCursor].ID)
}
