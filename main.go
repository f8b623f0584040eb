package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"beatgrid/audio"
	"beatgrid/clock"
	"beatgrid/config"
	"beatgrid/debug"
	"beatgrid/midi"
	"beatgrid/sequencer"
	"beatgrid/store"
	"beatgrid/theme"
	"beatgrid/tui"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Write a debug log to ~/.config/beatgrid/debug.log.")
	headless := flag.Bool("headless", false, "Play without the terminal UI until interrupted.")
	session := flag.String("session", "", "Load a saved session by id or name at startup.")
	flag.Parse()

	if *debugFlag {
		if err := debug.Enable(); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}

	if err := run(cfg, *session, *headless); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, sessionRef string, headless bool) error {
	kit := audio.DefaultKit()
	if cfg.Samples.Kit != "" {
		k, err := audio.LoadKit(cfg.Samples.Kit)
		if err != nil {
			return err
		}
		kit = k
	}

	bank := audio.NewSampleBank(kit, cfg.Samples.Root, cfg.Audio.SampleRate)
	bank.OnLoad(func(ch int, s *audio.Sample, err error) {
		if err != nil {
			debug.Warn("samples", "ch=%d: %v", ch, err)
		}
	})
	engine := audio.NewEngine(bank, audio.EngineOptions{
		Rate: cfg.Audio.SampleRate,
		Voice: audio.PoolOptions{
			Size:          cfg.Voices.PerChannel,
			StealWarn:     cfg.StealWarnWindow(),
			ReleaseMargin: cfg.ReleaseMargin(),
		},
	})

	out := openOutput(cfg, engine)
	defer out.Close()

	// triggers are timed against the audio clock
	clk := clock.Source(engine.Now)
	notes := midi.Notes(cfg.MIDI.NoteMap, kit.Names())
	sinks := []sequencer.Trigger{engine}
	if cfg.MIDI.OutPort != "" {
		midiOut := midi.NewOutput(cfg.MIDI.OutPort, clk, notes, cfg.Gate())
		defer midiOut.Close()
		sinks = append(sinks, midiOut)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go followPort(ctx, midiOut)
	}

	st := sequencer.NewState(kit.Names(), cfg.Scheduler.Steps)
	st.ChainLength = cfg.Scheduler.ChainLength
	st.Chain = sequencer.ResizeChain(nil, st.ChainLength)
	if cfg.UI.LastTempo > 0 {
		st.Tempo = cfg.UI.LastTempo
	}
	st.Swing = cfg.UI.LastSwing

	manager := sequencer.NewManager(st, sequencer.Options{
		Clock:     clk,
		LookAhead: cfg.LookAhead(),
		Sinks:     sinks,
		Mixer:     engine,
		Samples:   bank,
	})
	bank.SelectAll(manager.State().SampleIndex)

	dir, err := cfg.StorageDir()
	if err != nil {
		return err
	}
	lib := store.Open(dir)
	if sessionRef != "" {
		rec, err := lib.FindSession(sessionRef)
		if err != nil {
			return err
		}
		manager.LoadState(rec.ToState())
	}

	if headless {
		runHeadless(manager)
		return nil
	}

	m := tui.NewModel(manager, theme.Load(cfg.UI.Palette), tui.Options{
		Library: lib,
		Kit:     kit,
		Meters:  engine,
		Notes:   notes,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	manager.Stop()
	saveUIPrefs(cfg, manager.State())
	return nil
}

// openOutput plays through the sound card, or drains the engine silently
// when audio is disabled or no device is available
func openOutput(cfg *config.Config, engine *audio.Engine) audio.Output {
	block := time.Duration(cfg.Audio.BufferMs) * time.Millisecond
	if cfg.Audio.Disabled {
		return audio.StartNull(engine, engine.Rate(), block)
	}
	out, err := audio.OpenOto(engine, cfg.Audio.BufferMs)
	if err != nil {
		debug.Warn("audio", "%v", err)
		fmt.Fprintf(os.Stderr, "no audio device (%v), running silent\n", err)
		return audio.StartNull(engine, engine.Rate(), block)
	}
	return out
}

func runHeadless(manager *sequencer.Manager) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := manager.State()
	fmt.Printf("beatgrid: playing %q at %d bpm, ctrl+c to stop\n", st.Name, st.Tempo)
	manager.Play()
	<-ctx.Done()
	manager.Stop()
}

// followPort reopens the MIDI output whenever its device is plugged back in
func followPort(ctx context.Context, out *midi.Output) {
	w := midi.NewWatcher()
	go w.Run(ctx)
	for ev := range w.Events() {
		if !out.Matches(ev.Name) {
			continue
		}
		if ev.Type == midi.PortConnected {
			debug.Log("midi", "port %s connected", ev.Name)
		} else {
			debug.Log("midi", "port %s disconnected", ev.Name)
		}
		out.Reset()
	}
}

// saveUIPrefs remembers tempo and swing for the next start
func saveUIPrefs(cfg *config.Config, st *sequencer.State) {
	cfg.UI.LastTempo = st.Tempo
	cfg.UI.LastSwing = st.Swing
	if err := cfg.Save(); err != nil {
		debug.Warn("config", "save: %v", err)
	}
}
