package midi

import "strings"

// NoteMap maps kit channel names to drum notes for one target instrument
type NoteMap struct {
	Name  string
	Notes map[string]uint8
}

// DefaultNote is used for channels a map doesn't know
const DefaultNote uint8 = 36

// DefaultNoteMap is the default map name
const DefaultNoteMap = "gm"

// NoteMaps contains all available drum note mappings
var NoteMaps = map[string]NoteMap{
	"gm": {
		Name: "General MIDI",
		Notes: map[string]uint8{
			"kick":       36,
			"snare":      38,
			"clap":       39,
			"closed-hat": 42,
			"open-hat":   46,
			"tom":        45,
			"low-tom":    41,
			"mid-tom":    43,
			"high-tom":   45,
			"rim":        37,
			"crash":      49,
			"ride":       51,
			"cowbell":    56,
			"clave":      75,
			"maracas":    70,
		},
	},
	"rd8": {
		Name: "Behringer RD-8",
		Notes: map[string]uint8{
			"kick":       36,
			"snare":      40, // RD-8 uses 40, not 38
			"clap":       39,
			"closed-hat": 42,
			"open-hat":   46,
			"tom":        48,
			"low-tom":    45,
			"mid-tom":    48,
			"high-tom":   50,
			"rim":        37,
			"crash":      49,
			"ride":       51,
			"cowbell":    56,
			"clave":      75,
			"maracas":    70,
		},
	},
	"tr8s": {
		Name: "Roland TR-8S",
		Notes: map[string]uint8{
			"kick":       36,
			"snare":      38,
			"clap":       39,
			"closed-hat": 42,
			"open-hat":   46,
			"tom":        43,
			"low-tom":    41,
			"mid-tom":    43,
			"high-tom":   45,
			"rim":        37,
			"crash":      49,
			"ride":       51,
			"cowbell":    56,
		},
	},
	"er1": {
		Name: "Korg ER-1",
		Notes: map[string]uint8{
			"kick":       36, // Perc Synth 1
			"snare":      38, // Perc Synth 2
			"tom":        40, // Perc Synth 3
			"clap":       39,
			"closed-hat": 42,
			"open-hat":   46,
			"crash":      49,
		},
	},
}

// NoteMapNames returns the list of available map names
func NoteMapNames() []string {
	return []string{"gm", "rd8", "tr8s", "er1"}
}

// GetNoteMap returns a map by name, defaulting to GM if not found
func GetNoteMap(name string) NoteMap {
	if m, ok := NoteMaps[strings.ToLower(name)]; ok {
		return m
	}
	return NoteMaps[DefaultNoteMap]
}

// Note returns the drum note for a channel name
func (m NoteMap) Note(channel string) uint8 {
	if n, ok := m.Notes[strings.ToLower(channel)]; ok {
		return n
	}
	return DefaultNote
}

// Notes resolves every channel of a kit through the named map
func Notes(mapName string, channels []string) []uint8 {
	m := GetNoteMap(mapName)
	out := make([]uint8, len(channels))
	for i, ch := range channels {
		out[i] = m.Note(ch)
	}
	return out
}
