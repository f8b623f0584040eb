package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AudioConfig controls the output device
type AudioConfig struct {
	SampleRate int  `json:"sampleRate" yaml:"sampleRate"`
	BufferMs   int  `json:"bufferMs" yaml:"bufferMs"`
	Disabled   bool `json:"disabled,omitempty" yaml:"disabled,omitempty"` // render to nowhere (headless)
}

// SamplesConfig locates the sample library
type SamplesConfig struct {
	Root string `json:"root" yaml:"root"`
	Kit  string `json:"kit,omitempty" yaml:"kit,omitempty"` // optional kit file (yaml or json)
}

// VoiceConfig tunes the per-channel voice pools
type VoiceConfig struct {
	PerChannel      int `json:"perChannel" yaml:"perChannel"`
	StealWarnMs     int `json:"stealWarnMs" yaml:"stealWarnMs"`
	ReleaseMarginMs int `json:"releaseMarginMs" yaml:"releaseMarginMs"`
}

// SchedulerConfig tunes the tick loop
type SchedulerConfig struct {
	LookAheadMs int `json:"lookAheadMs" yaml:"lookAheadMs"`
	Steps       int `json:"steps" yaml:"steps"`
	ChainLength int `json:"chainLength" yaml:"chainLength"`
}

// StorageConfig says where sessions and patterns are kept
type StorageConfig struct {
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// MIDIConfig defines the optional trigger mirror output
type MIDIConfig struct {
	OutPort string `json:"outPort,omitempty" yaml:"outPort,omitempty"`
	NoteMap string `json:"noteMap,omitempty" yaml:"noteMap,omitempty"` // gm, rd8, tr8s, er1
	GateMs  int    `json:"gateMs,omitempty" yaml:"gateMs,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	LastTempo int     `json:"lastTempo,omitempty" yaml:"lastTempo,omitempty"`
	LastSwing float64 `json:"lastSwing,omitempty" yaml:"lastSwing,omitempty"`
	Palette   string  `json:"palette,omitempty" yaml:"palette,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Audio     AudioConfig     `json:"audio" yaml:"audio"`
	Samples   SamplesConfig   `json:"samples" yaml:"samples"`
	Voices    VoiceConfig     `json:"voices" yaml:"voices"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Storage   StorageConfig   `json:"storage,omitempty" yaml:"storage,omitempty"`
	MIDI      MIDIConfig      `json:"midi,omitempty" yaml:"midi,omitempty"`
	UI        UIConfig        `json:"ui,omitempty" yaml:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 44100,
			BufferMs:   10,
		},
		Samples: SamplesConfig{
			Root: "samples",
		},
		Voices: VoiceConfig{
			PerChannel:      8,
			StealWarnMs:     50,
			ReleaseMarginMs: 50,
		},
		Scheduler: SchedulerConfig{
			LookAheadMs: 25,
			Steps:       16,
			ChainLength: 4,
		},
		MIDI: MIDIConfig{
			NoteMap: "gm",
			GateMs:  50,
		},
		UI: UIConfig{
			LastTempo: 120,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "beatgrid"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// StorageDir returns where records are stored, defaulting to the config dir
func (c *Config) StorageDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "library"), nil
}

// StealWarnWindow is the voice steal warning threshold
func (c *Config) StealWarnWindow() time.Duration {
	return time.Duration(c.Voices.StealWarnMs) * time.Millisecond
}

// ReleaseMargin is added to a sample's duration before its voice is freed
func (c *Config) ReleaseMargin() time.Duration {
	return time.Duration(c.Voices.ReleaseMarginMs) * time.Millisecond
}

// LookAhead is how early the tick loop wakes before a step is due
func (c *Config) LookAhead() time.Duration {
	return time.Duration(c.Scheduler.LookAheadMs) * time.Millisecond
}

// Load reads the config from disk, or returns defaults if not found.
// config.json wins over config.yml when both exist.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return DefaultConfig(), nil
	}
	for _, name := range []string{"config.json", "config.yml", "config.yaml"} {
		cfg, err := LoadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		return cfg, err
	}
	return DefaultConfig(), nil
}

// LoadFile reads one config file. Missing fields keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize replaces unusable values with defaults
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.BufferMs <= 0 {
		c.Audio.BufferMs = def.Audio.BufferMs
	}
	if c.Voices.PerChannel <= 0 {
		c.Voices.PerChannel = def.Voices.PerChannel
	}
	if c.Voices.StealWarnMs < 0 {
		c.Voices.StealWarnMs = def.Voices.StealWarnMs
	}
	if c.Voices.ReleaseMarginMs < 0 {
		c.Voices.ReleaseMarginMs = def.Voices.ReleaseMarginMs
	}
	if c.Scheduler.LookAheadMs < 0 {
		c.Scheduler.LookAheadMs = def.Scheduler.LookAheadMs
	}
	if c.Scheduler.Steps <= 0 {
		c.Scheduler.Steps = def.Scheduler.Steps
	}
	if c.Scheduler.ChainLength < 1 || c.Scheduler.ChainLength > 8 {
		c.Scheduler.ChainLength = def.Scheduler.ChainLength
	}
	if c.MIDI.GateMs <= 0 {
		c.MIDI.GateMs = def.MIDI.GateMs
	}
	if c.MIDI.NoteMap == "" {
		c.MIDI.NoteMap = def.MIDI.NoteMap
	}
}

// Gate is how long mirrored MIDI notes are held
func (c *Config) Gate() time.Duration {
	return time.Duration(c.MIDI.GateMs) * time.Millisecond
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config as indented JSON to path
func (c *Config) SaveFile(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
