package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"beatgrid/audio"
	"beatgrid/sequencer"
	"beatgrid/theme"
	"beatgrid/widgets"
)

const nameWidth = 10

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	st := m.Manager.State()
	shown := m.Manager.DisplayedSlot()
	pos := m.Manager.NowPlaying()
	playing := m.Manager.Playing()

	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	statusStyle := lipgloss.NewStyle().
		Foreground(m.Theme.FG()).
		Background(m.Theme.Surface()).
		Padding(0, 1)

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(m.header(st, shown, playing))
	out.WriteString("\n\n")

	if m.overlay == overlayLibrary {
		out.WriteString(m.libraryView())
	} else {
		out.WriteString(m.gridView(st, shown, pos, playing))
		out.WriteString("\n")
		out.WriteString(m.mixerView(st))
		out.WriteString("\n\n")
		out.WriteString(m.chainView(st, pos, playing))
	}

	if m.overlay == overlayName {
		out.WriteString("\n\n")
		out.WriteString(statusStyle.Render(m.promptLabel() + ": " + m.input + "_"))
	} else if m.status != "" {
		out.WriteString("\n\n")
		out.WriteString(statusStyle.Render(m.status))
	}

	out.WriteString("\n\n")
	if m.showHelp {
		out.WriteString(dimStyle.Render(keyHelp()))
	} else {
		out.WriteString(dimStyle.Render("hjkl:move  space:cycle  0-3:velocity  a-d:pattern  p:play  tab:panel  L:library  ?:help  q:quit"))
	}
	return out.String()
}

func (m Model) header(st *sequencer.State, shown sequencer.Slot, playing bool) string {
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())

	playState := "STOP"
	if playing {
		playState = "PLAY"
	}
	chain := "off"
	if st.ChainEnabled {
		chain = fmt.Sprintf("%d", st.ChainLength)
	}
	name := st.Name
	if name == "" {
		name = "untitled"
	}
	return headerStyle.Render(fmt.Sprintf("beatgrid  %s  %3dbpm  swing:%.2f  pattern:%s  chain:%s  %s",
		playState, st.Tempo, st.Swing, shown, chain, name))
}

func (m Model) gridView(st *sequencer.State, shown sequencer.Slot, pos sequencer.Position, playing bool) string {
	p := st.Pattern(shown)
	tracks := sequencer.Tracks(st, shown)
	head := -1
	if playing && pos.Playing && pos.Slot == shown {
		head = pos.Step
	}

	var out strings.Builder

	// playhead row
	out.WriteString(strings.Repeat(" ", nameWidth+1))
	for s := 0; s < st.Steps; s++ {
		if s > 0 && s%4 == 0 {
			out.WriteString(" ")
		}
		if s == head {
			out.WriteString(widgets.RenderGlyph(m.Theme.Symbols.Playhead, m.Theme.RGB(theme.RoleSuccess)))
		} else {
			out.WriteString(" ")
		}
	}
	out.WriteString("\n")

	for ch, tr := range tracks {
		nameStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
		switch {
		case ch == m.ch:
			nameStyle = nameStyle.Foreground(m.Theme.Accent()).Bold(true)
		case !tr.Audible:
			nameStyle = nameStyle.Foreground(m.Theme.Muted())
		}
		out.WriteString(nameStyle.Render(fmt.Sprintf("%-*s", nameWidth, truncate(tr.Name, nameWidth))))
		out.WriteString(" ")

		for s := 0; s < st.Steps; s++ {
			if s > 0 && s%4 == 0 {
				out.WriteString(" ")
			}
			glyph, role := m.Theme.Cell(int(p.At(ch, s)))
			style := lipgloss.NewStyle().Foreground(m.Theme.Color(role))
			if s == head {
				style = style.Reverse(true)
			}
			if m.focus == focusGrid && ch == m.ch && s == m.step {
				style = style.Background(m.Theme.Cursor())
			}
			out.WriteString(style.Render(string(glyph)))
		}

		flag := m.Theme.RGB(theme.RoleWarning)
		out.WriteString("  " + widgets.RenderGlyph(m.Theme.Flag(tr.Params.Mute), flag) + "M ")
		out.WriteString(widgets.RenderGlyph(m.Theme.Flag(tr.Params.Solo), flag) + "S ")
		if m.Meters != nil {
			out.WriteString(widgets.RenderMeter(float64(m.Meters.Peak(ch)), 8, m.Theme.RGB(theme.RoleSuccess), m.Theme.RGB(theme.RoleSurface)))
		}
		out.WriteString("\n")
	}
	return out.String()
}

func (m Model) mixerView(st *sequencer.State) string {
	if m.ch >= len(st.Mixer) {
		return ""
	}
	params := st.Mixer[m.ch]
	labelStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	selStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor()).Bold(true)

	sample := "-"
	idx := 0
	if m.ch < len(st.SampleIndex) {
		idx = st.SampleIndex[m.ch]
	}
	if m.Kit != nil {
		if name, err := m.Kit.SampleName(m.ch, idx); err == nil {
			sample = name
		}
	}

	var chLine, busLine []string
	for i, k := range knobs {
		text := k.label(k.value(params, st.Global))
		style := labelStyle
		if m.focus == focusMixer && i == m.knob {
			style = selStyle
		}
		if k.channel != nil {
			chLine = append(chLine, style.Render(text))
		} else {
			busLine = append(busLine, style.Render(text))
		}
	}

	k := knobs[m.knob]
	slider := widgets.RenderSlider(k.value(params, st.Global), k.lo, k.hi, 12, m.Theme.Symbols.Knob, m.Theme.Symbols.Track)

	var out strings.Builder
	out.WriteString(fmt.Sprintf("%-*s %s  %s\n", nameWidth, truncate(st.Channels[m.ch], nameWidth), sample, slider))
	out.WriteString(strings.Repeat(" ", nameWidth+1))
	out.WriteString(strings.Join(chLine, "  "))
	out.WriteString("\n")
	out.WriteString(fmt.Sprintf("%-*s ", nameWidth, "bus"))
	out.WriteString(strings.Join(busLine, "  "))
	out.WriteString(fmt.Sprintf("  comp %c", m.Theme.Flag(st.Global.Compressor.Enabled)))
	wet, dry := audio.BusMix(st.Global.Compressor)
	out.WriteString(fmt.Sprintf(" (wet %.2f dry %.2f)", wet, dry))
	return out.String()
}

func (m Model) chainView(st *sequencer.State, pos sequencer.Position, playing bool) string {
	labelStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	if !st.ChainEnabled {
		labelStyle = labelStyle.Foreground(m.Theme.Muted())
	}

	var out strings.Builder
	out.WriteString(labelStyle.Render(fmt.Sprintf("%-*s ", nameWidth, "chain")))
	for i, slot := range st.Chain {
		style := labelStyle
		if st.ChainEnabled && playing && pos.Playing && pos.Measure == i {
			style = style.Reverse(true)
		}
		if m.focus == focusChain && i == m.chainPos {
			style = style.Background(m.Theme.Cursor())
		}
		out.WriteString(style.Render(" " + slot.String() + " "))
	}
	return out.String()
}

func (m Model) libraryView() string {
	titleStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	selStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor()).Bold(true)

	sessions, patterns := "sessions", "patterns"
	if m.tab == tabPatterns {
		patterns = "[" + patterns + "]"
	} else {
		sessions = "[" + sessions + "]"
	}

	var out strings.Builder
	out.WriteString(titleStyle.Render(sessions + "  " + patterns))
	search := "/" + m.query
	if m.searching {
		search += "_"
	}
	out.WriteString("  " + dimStyle.Render(search))
	out.WriteString("\n\n")

	var lines []string
	if m.tab == tabPatterns {
		for _, r := range m.patterns {
			lines = append(lines, fmt.Sprintf("%-24s %3d hits  %s", truncate(r.Name, 24), r.Pattern.ActiveCells(), r.UpdatedAt.Local().Format("2006-01-02 15:04")))
		}
	} else {
		for _, r := range m.sessions {
			lines = append(lines, fmt.Sprintf("%-24s %3dbpm    %s", truncate(r.Name, 24), r.BPM, r.UpdatedAt.Local().Format("2006-01-02 15:04")))
		}
	}
	if len(lines) == 0 {
		out.WriteString(dimStyle.Render("  nothing saved"))
	}
	for i, line := range lines {
		if i == m.libCursor {
			out.WriteString(selStyle.Render("> " + line))
		} else {
			out.WriteString("  " + line)
		}
		out.WriteString("\n")
	}
	out.WriteString("\n")
	out.WriteString(dimStyle.Render("enter:open  x:delete  /:search  tab:sessions/patterns  esc:close"))
	return out.String()
}

func (m Model) promptLabel() string {
	switch m.naming {
	case namePattern:
		return "save pattern as"
	case nameRename:
		return "rename"
	case nameSaveAs:
		return "save as"
	default:
		return "save"
	}
}

func keyHelp() string {
	return widgets.RenderKeyHelp([]widgets.KeySection{
		{Title: "Transport", Keys: []widgets.KeyBinding{
			{Key: "p", Desc: "play/stop"},
			{Key: "+ / -", Desc: "tempo ±5"},
			{Key: "{ / }", Desc: "tempo ±1"},
			{Key: "[ / ]", Desc: "swing ±0.05"},
			{Key: "C", Desc: "toggle pattern chain"},
		}},
		{Title: "Grid", Keys: []widgets.KeyBinding{
			{Key: "h / l", Desc: "move cursor through steps"},
			{Key: "j / k", Desc: "select channel"},
			{Key: "space", Desc: "cycle velocity off/low/med/high"},
			{Key: "0-3", Desc: "set velocity"},
			{Key: "a-d", Desc: "select pattern"},
			{Key: "x", Desc: "clear pattern"},
			{Key: "y / P", Desc: "copy / paste pattern"},
		}},
		{Title: "Mixer (tab)", Keys: []widgets.KeyBinding{
			{Key: "h / l", Desc: "select control"},
			{Key: ", / .", Desc: "decrease / increase"},
			{Key: "m / s", Desc: "mute / solo channel"},
			{Key: "n / N", Desc: "next / previous sample"},
			{Key: "z", Desc: "bus compressor on/off"},
		}},
		{Title: "Chain (tab)", Keys: []widgets.KeyBinding{
			{Key: "h / l", Desc: "select position"},
			{Key: "a-d", Desc: "assign pattern"},
			{Key: ", / .", Desc: "shorten / lengthen"},
		}},
		{Title: "Library", Keys: []widgets.KeyBinding{
			{Key: "w / W", Desc: "save / save as new"},
			{Key: "g", Desc: "save grid as pattern"},
			{Key: "r", Desc: "rename session"},
			{Key: "L", Desc: "open library"},
			{Key: "e", Desc: "export pattern to MIDI"},
		}},
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
