package audio

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// KitChannel is one row of the grid and the samples it can switch between
type KitChannel struct {
	Name    string   `json:"name" yaml:"name"`
	Samples []string `json:"samples" yaml:"samples"`
}

// Kit is the ordered channel list. Row i of every pattern plays channel i.
type Kit struct {
	Name     string       `json:"name" yaml:"name"`
	Channels []KitChannel `json:"channels" yaml:"channels"`
}

// DefaultKit is the built-in eight channel kit
func DefaultKit() *Kit {
	return &Kit{
		Name: "default",
		Channels: []KitChannel{
			{Name: "kick", Samples: []string{"kick-808", "kick-909", "kick-acoustic"}},
			{Name: "snare", Samples: []string{"snare-808", "snare-909", "snare-acoustic"}},
			{Name: "clap", Samples: []string{"clap-808", "clap-909"}},
			{Name: "closed-hat", Samples: []string{"chh-808", "chh-909", "chh-acoustic"}},
			{Name: "open-hat", Samples: []string{"ohh-808", "ohh-909"}},
			{Name: "tom", Samples: []string{"tom-low", "tom-mid", "tom-high"}},
			{Name: "rim", Samples: []string{"rim-808", "rim-909"}},
			{Name: "crash", Samples: []string{"crash-1", "ride-1"}},
		},
	}
}

// LoadKit reads a kit definition, trying JSON first and then YAML
func LoadKit(path string) (*Kit, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kit: %w", err)
	}
	var kit Kit
	if errJSON := json.Unmarshal(b, &kit); errJSON != nil {
		kit = Kit{}
		if errYaml := yaml.Unmarshal(b, &kit); errYaml != nil {
			return nil, fmt.Errorf("parse kit %s: %w", path, errors.Join(errJSON, errYaml))
		}
	}
	if err := kit.validate(); err != nil {
		return nil, fmt.Errorf("kit %s: %w", path, err)
	}
	return &kit, nil
}

func (k *Kit) validate() error {
	if len(k.Channels) == 0 {
		return errors.New("no channels")
	}
	seen := make(map[string]bool, len(k.Channels))
	for i, c := range k.Channels {
		if c.Name == "" {
			return fmt.Errorf("channel %d has no name", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate channel %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Samples) == 0 {
			return fmt.Errorf("channel %q has no samples", c.Name)
		}
	}
	return nil
}

// Names returns the channel names in row order
func (k *Kit) Names() []string {
	names := make([]string, len(k.Channels))
	for i, c := range k.Channels {
		names[i] = c.Name
	}
	return names
}

// SampleName returns the sample at idx for channel ch
func (k *Kit) SampleName(ch, idx int) (string, error) {
	if ch < 0 || ch >= len(k.Channels) {
		return "", fmt.Errorf("channel %d out of range", ch)
	}
	samples := k.Channels[ch].Samples
	if idx < 0 || idx >= len(samples) {
		return "", fmt.Errorf("sample %d out of range for %s", idx, k.Channels[ch].Name)
	}
	return samples[idx], nil
}

// Path maps channel and sample to <root>/<channel>/<sample>.wav
func (k *Kit) Path(root string, ch, idx int) (string, error) {
	name, err := k.SampleName(ch, idx)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, k.Channels[ch].Name, name+".wav"), nil
}
