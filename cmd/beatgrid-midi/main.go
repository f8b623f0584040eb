package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"beatgrid/audio"
	"beatgrid/clock"
	"beatgrid/config"
	"beatgrid/midi"
	"beatgrid/sequencer"
	"beatgrid/store"
)

func main() {
	noteMap := flag.String("map", "", "Note map for export and play (gm, rd8, tr8s, er1). Defaults to the config value.")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}
	if *noteMap != "" {
		cfg.MIDI.NoteMap = *noteMap
	}

	args := flag.Args()
	switch args[0] {
	case "list":
		err = listPorts()
	case "poll":
		pollPorts()
	case "maps":
		printMaps()
	case "export":
		err = export(cfg, args[1:])
	case "play":
		err = play(cfg, args[1:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("beatgrid MIDI tools")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                                 - List all MIDI ports")
	fmt.Println("  poll                                 - Poll for port changes")
	fmt.Println("  maps                                 - Show the drum note maps")
	fmt.Println("  export <session> <file.mid> [slot]   - Write a saved pattern as a MIDI file")
	fmt.Println("  play <session> <port> [measures]     - Play a saved session to a MIDI port")
	fmt.Println("")
	fmt.Println("<session> is a record id or a session name.")
	flag.PrintDefaults()
}

func listPorts() error {
	fmt.Printf("(waiting up to %v...)\n", midi.ScanTimeout)
	ins, outs, err := midi.ListPorts(midi.ScanTimeout)
	if err != nil {
		return fmt.Errorf("%w (on macOS: sudo killall coreaudiod midiserver)", err)
	}
	fmt.Println("=== MIDI Input Ports ===")
	for i, name := range ins {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, name := range outs {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}

func pollPorts() {
	fmt.Println("Polling for port changes every 2 seconds. Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	last := ""
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		ins, outs, err := midi.ListPorts(midi.ScanTimeout)
		if err != nil {
			fmt.Printf("[%s] %v\n", time.Now().Format("15:04:05"), err)
		} else if current := strings.Join(ins, ",") + "|" + strings.Join(outs, ","); current != last {
			fmt.Printf("\n[%s] Port change detected\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", ins)
			fmt.Printf("  Outputs: %v\n", outs)
			last = current
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func printMaps() {
	names := midi.NoteMapNames()
	for _, name := range names {
		m := midi.GetNoteMap(name)
		fmt.Printf("%s (%s)\n", name, m.Name)
		channels := make([]string, 0, len(m.Notes))
		for ch := range m.Notes {
			channels = append(channels, ch)
		}
		sort.Slice(channels, func(i, j int) bool { return m.Notes[channels[i]] < m.Notes[channels[j]] })
		for _, ch := range channels {
			fmt.Printf("  %3d  %s\n", m.Notes[ch], ch)
		}
	}
}

func openLibrary(cfg *config.Config) (*store.Library, error) {
	dir, err := cfg.StorageDir()
	if err != nil {
		return nil, err
	}
	return store.Open(dir), nil
}

// loadState finds a saved session and fits it to its own channels, or the
// default kit when the record has none
func loadState(cfg *config.Config, ref string) (*sequencer.State, error) {
	lib, err := openLibrary(cfg)
	if err != nil {
		return nil, err
	}
	rec, err := lib.FindSession(ref)
	if err != nil {
		return nil, err
	}
	st := rec.ToState()
	if len(st.Channels) == 0 {
		st.Channels = audio.DefaultKit().Names()
	}
	st.Normalize()
	return st, nil
}

func export(cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: export <session> <file.mid> [slot]")
	}
	st, err := loadState(cfg, args[0])
	if err != nil {
		return err
	}
	slot := st.Current
	if len(args) > 2 {
		if slot, err = sequencer.ParseSlot(args[2]); err != nil {
			return err
		}
	}

	notes := midi.Notes(cfg.MIDI.NoteMap, st.Channels)
	data, err := midi.ExportNotes(st.Pattern(slot), st.Tempo, st.Name, st.Channels, notes)
	if err != nil {
		return fmt.Errorf("pattern %s: %w", slot, err)
	}
	path := args[1]
	if filepath.Ext(path) == "" {
		path += ".mid"
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write file %v: %w", path, err)
	}
	fmt.Printf("Wrote %s (pattern %s, %d bpm, %d bytes)\n", path, slot, st.Tempo, len(data))
	return nil
}

func play(cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: play <session> <port> [measures]")
	}
	st, err := loadState(cfg, args[0])
	if err != nil {
		return err
	}
	measures := 4
	if len(args) > 2 {
		if measures, err = strconv.Atoi(args[2]); err != nil || measures < 1 {
			return fmt.Errorf("bad measure count %q", args[2])
		}
	}

	clk := clock.NewWall()
	out := midi.NewOutput(args[1], clk, midi.Notes(cfg.MIDI.NoteMap, st.Channels), cfg.Gate())
	defer out.Close()

	manager := sequencer.NewManager(st, sequencer.Options{
		Clock:     clk,
		LookAhead: cfg.LookAhead(),
		Sinks:     []sequencer.Trigger{out},
	})

	length := time.Duration(measures*st.Steps) * sequencer.StepDuration(st.Tempo)
	fmt.Printf("Playing %q to %s for %d measures (%v). Ctrl+C to stop.\n", st.Name, args[1], measures, length.Round(time.Millisecond))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	manager.Play()
	select {
	case <-ctx.Done():
	case <-time.After(length):
	}
	manager.Stop()
	// let the last note-offs go out
	time.Sleep(cfg.Gate())
	return nil
}
