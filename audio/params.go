package audio

import "math"

// ChannelParams are the per-channel mixer and effect controls
type ChannelParams struct {
	Mute   bool    `json:"mute"`
	Solo   bool    `json:"solo"`
	Volume float64 `json:"volume"` // 0..1
	Pan    float64 `json:"pan"`    // -1 (left) .. 1 (right)

	DelayTime     float64 `json:"delayTime"`     // seconds
	DelayFeedback float64 `json:"delayFeedback"` // 0..0.95
	DelayWet      float64 `json:"delayWet"`      // 0..1

	ReverbSend float64 `json:"reverbSend"` // 0..1

	HighPass float64 `json:"highPass"` // Hz
	LowPass  float64 `json:"lowPass"`  // Hz
}

// ReverbParams control the shared reverb on the bus
type ReverbParams struct {
	Decay    float64 `json:"decay"`    // seconds (RT60)
	PreDelay float64 `json:"preDelay"` // seconds
	Wet      float64 `json:"wet"`      // 0..1
}

// CompressorParams control the bus compressor
type CompressorParams struct {
	Enabled   bool    `json:"enabled"`
	Threshold float64 `json:"threshold"` // dB
	Ratio     float64 `json:"ratio"`
	Attack    float64 `json:"attack"`  // seconds
	Release   float64 `json:"release"` // seconds
	Knee      float64 `json:"knee"`    // dB
	Makeup    float64 `json:"makeup"`  // dB
	Mix       float64 `json:"mix"`     // 0..1, kept while disabled
}

// GlobalParams are the bus controls
type GlobalParams struct {
	Reverb     ReverbParams     `json:"reverb"`
	Compressor CompressorParams `json:"compressor"`
}

// Limits for the filter cutoffs and delay line
const (
	MinCutoff    = 20.0
	MaxCutoff    = 20000.0
	MaxDelayTime = 2.0
	MaxFeedback  = 0.95
	MaxPreDelay  = 0.5
	MinDecay     = 0.1
	MaxDecay     = 10.0
)

// DefaultChannelParams is a centered channel at 80% with effects off
func DefaultChannelParams() ChannelParams {
	return ChannelParams{
		Volume:        0.8,
		DelayTime:     0.25,
		DelayFeedback: 0.3,
		HighPass:      MinCutoff,
		LowPass:       MaxCutoff,
	}
}

// DefaultGlobalParams returns a short room and a gentle glue compressor
func DefaultGlobalParams() GlobalParams {
	return GlobalParams{
		Reverb: ReverbParams{
			Decay:    1.5,
			PreDelay: 0.01,
			Wet:      0.3,
		},
		Compressor: CompressorParams{
			Enabled:   false,
			Threshold: -18,
			Ratio:     4,
			Attack:    0.01,
			Release:   0.2,
			Knee:      6,
			Makeup:    3,
			Mix:       1,
		},
	}
}

// Clamp returns p with every field forced into its legal range
func (p ChannelParams) Clamp() ChannelParams {
	p.Volume = clamp(p.Volume, 0, 1)
	p.Pan = clamp(p.Pan, -1, 1)
	p.DelayTime = clamp(p.DelayTime, 0, MaxDelayTime)
	p.DelayFeedback = clamp(p.DelayFeedback, 0, MaxFeedback)
	p.DelayWet = clamp(p.DelayWet, 0, 1)
	p.ReverbSend = clamp(p.ReverbSend, 0, 1)
	p.HighPass = clamp(p.HighPass, MinCutoff, MaxCutoff)
	p.LowPass = clamp(p.LowPass, MinCutoff, MaxCutoff)
	return p
}

// Clamp returns g with every field forced into its legal range
func (g GlobalParams) Clamp() GlobalParams {
	g.Reverb.Decay = clamp(g.Reverb.Decay, MinDecay, MaxDecay)
	g.Reverb.PreDelay = clamp(g.Reverb.PreDelay, 0, MaxPreDelay)
	g.Reverb.Wet = clamp(g.Reverb.Wet, 0, 1)

	c := &g.Compressor
	c.Threshold = clamp(c.Threshold, -60, 0)
	c.Ratio = clamp(c.Ratio, 1, 20)
	c.Attack = clamp(c.Attack, 0.0001, 1)
	c.Release = clamp(c.Release, 0.001, 5)
	c.Knee = clamp(c.Knee, 0, 24)
	c.Makeup = clamp(c.Makeup, 0, 24)
	c.Mix = clamp(c.Mix, 0, 1)
	return g
}

// Audible resolves mute and solo across all channels. A channel is audible
// iff it is not muted and either nothing is soloed or it is soloed itself.
func Audible(channels []ChannelParams) []bool {
	anySolo := false
	for _, c := range channels {
		if c.Solo {
			anySolo = true
			break
		}
	}
	out := make([]bool, len(channels))
	for i, c := range channels {
		out[i] = !c.Mute && (!anySolo || c.Solo)
	}
	return out
}

// BusMix returns the parallel compression gains. Disabled forces the dry
// path without touching the stored mix.
func BusMix(c CompressorParams) (wet, dry float64) {
	if !c.Enabled {
		return 0, 1
	}
	mix := clamp(c.Mix, 0, 1)
	return roundGain(mix), roundGain(1 - mix)
}

// roundGain drops float noise below 1e-9 so 1-0.7 reads back as 0.3
func roundGain(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

func gainToDB(g float64) float64 {
	if g <= 1e-9 {
		return -180
	}
	return 20 * math.Log10(g)
}
