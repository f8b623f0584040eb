package audio

import "math"

// Freeverb comb and all-pass tunings at 44.1kHz
var (
	combTunings    = []int{1116, 1188, 1277, 1356}
	allpassTunings = []int{556, 441}
)

const (
	combDamp        = 0.2
	combMeanSeconds = 1233.0 / 44100
)

// Bus sums the channel strips, adds the shared reverb and runs the parallel
// compressor.
type Bus struct {
	rate   int
	params GlobalParams

	preDelay  *delayLine
	combs     []*comb
	allpasses []*allpass
	reverbWet float32

	env       envelope
	threshold float64
	ratio     float64
	knee      float64
	makeup    float64
	wet, dry  float64
}

// NewBus creates the bus with default parameters
func NewBus(rate int) *Bus {
	b := &Bus{
		rate:     rate,
		preDelay: newDelayLine(int(MaxPreDelay * float64(rate))),
	}
	scale := float64(rate) / 44100
	for _, n := range combTunings {
		b.combs = append(b.combs, newComb(int(float64(n)*scale)))
	}
	for _, n := range allpassTunings {
		b.allpasses = append(b.allpasses, newAllpass(int(float64(n)*scale), 0.5))
	}
	b.Apply(DefaultGlobalParams())
	return b
}

// Apply sets reverb and compressor parameters. Values are absolute.
func (b *Bus) Apply(g GlobalParams) {
	g = g.Clamp()
	b.params = g

	b.preDelay.setDelay(int(g.Reverb.PreDelay * float64(b.rate)))
	// comb gain for a 60dB drop over the decay time
	fb := math.Pow(10, -3*combMeanSeconds/g.Reverb.Decay)
	for _, c := range b.combs {
		c.feedback = float32(fb)
		c.damp = combDamp
	}
	b.reverbWet = float32(g.Reverb.Wet)

	c := g.Compressor
	b.env.set(c.Attack, c.Release, b.rate)
	b.threshold = c.Threshold
	b.ratio = c.Ratio
	b.knee = c.Knee
	b.makeup = dbToGain(c.Makeup)
	b.wet, b.dry = BusMix(c)
}

// Params returns the applied (clamped) parameters
func (b *Bus) Params() GlobalParams {
	return b.params
}

// Mix returns the current compressor wet and dry gains
func (b *Bus) Mix() (wet, dry float64) {
	return b.wet, b.dry
}

// Process adds the reverb return of send to left/right and applies the
// compressor in place
func (b *Bus) Process(left, right, send []float32) {
	wet, dry := float32(b.wet), float32(b.dry)
	for i := range left {
		if b.reverbWet > 0 {
			r := b.reverb(send[i])
			left[i] += r * b.reverbWet
			right[i] += r * b.reverbWet
		}
		if wet > 0 {
			level := math.Max(math.Abs(float64(left[i])), math.Abs(float64(right[i])))
			env := b.env.process(level)
			g := float32(dbToGain(compressorGain(gainToDB(env), b.threshold, b.ratio, b.knee)) * b.makeup)
			left[i] = left[i]*dry + left[i]*g*wet
			right[i] = right[i]*dry + right[i]*g*wet
		}
	}
}

func (b *Bus) reverb(x float32) float32 {
	d := b.preDelay.read()
	b.preDelay.write(x)
	var sum float32
	for _, c := range b.combs {
		sum += c.process(d)
	}
	sum /= float32(len(b.combs))
	for _, a := range b.allpasses {
		sum = a.process(sum)
	}
	return sum
}
