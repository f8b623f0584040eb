package audio

import "math"

// biquad is a second order IIR section (RBJ cookbook coefficients)
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func (f *biquad) lowPass(cutoff, q float64, rate int) {
	w0 := 2 * math.Pi * cutoff / float64(rate)
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*q)
	a0 := 1 + alpha
	f.b0 = (1 - cos) / 2 / a0
	f.b1 = (1 - cos) / a0
	f.b2 = f.b0
	f.a1 = -2 * cos / a0
	f.a2 = (1 - alpha) / a0
}

func (f *biquad) highPass(cutoff, q float64, rate int) {
	w0 := 2 * math.Pi * cutoff / float64(rate)
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*q)
	a0 := 1 + alpha
	f.b0 = (1 + cos) / 2 / a0
	f.b1 = -(1 + cos) / a0
	f.b2 = f.b0
	f.a1 = -2 * cos / a0
	f.a2 = (1 - alpha) / a0
}

// passthrough makes the filter a wire while keeping its state
func (f *biquad) passthrough() {
	f.b0, f.b1, f.b2, f.a1, f.a2 = 1, 0, 0, 0, 0
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// delayLine is a circular buffer with a variable read offset
type delayLine struct {
	buf   []float32
	pos   int
	delay int
}

func newDelayLine(maxFrames int) *delayLine {
	if maxFrames < 1 {
		maxFrames = 1
	}
	return &delayLine{buf: make([]float32, maxFrames+1)}
}

func (d *delayLine) setDelay(frames int) {
	d.delay = min(max(frames, 1), len(d.buf)-1)
}

// read returns the sample written delay frames ago. Call before write.
func (d *delayLine) read() float32 {
	i := d.pos - d.delay
	if i < 0 {
		i += len(d.buf)
	}
	return d.buf[i]
}

func (d *delayLine) write(x float32) {
	d.buf[d.pos] = x
	d.pos++
	if d.pos == len(d.buf) {
		d.pos = 0
	}
}

// comb is a feedback comb filter with one-pole damping in the loop
type comb struct {
	buf      []float32
	idx      int
	feedback float32
	damp     float32
	store    float32
}

func newComb(frames int) *comb {
	return &comb{buf: make([]float32, max(frames, 1))}
}

func (c *comb) process(x float32) float32 {
	y := c.buf[c.idx]
	c.store = y*(1-c.damp) + c.store*c.damp
	c.buf[c.idx] = x + c.store*c.feedback
	c.idx++
	if c.idx == len(c.buf) {
		c.idx = 0
	}
	return y
}

// allpass is a Schroeder all-pass diffuser
type allpass struct {
	buf  []float32
	idx  int
	gain float32
}

func newAllpass(frames int, gain float32) *allpass {
	return &allpass{buf: make([]float32, max(frames, 1)), gain: gain}
}

func (a *allpass) process(x float32) float32 {
	d := a.buf[a.idx]
	a.buf[a.idx] = x + d*a.gain
	a.idx++
	if a.idx == len(a.buf) {
		a.idx = 0
	}
	return d - x
}

// envelope follows a level with separate attack and release times
type envelope struct {
	attack, release float64
	level           float64
}

func (e *envelope) set(attack, release float64, rate int) {
	e.attack = timeCoeff(attack, rate)
	e.release = timeCoeff(release, rate)
}

func (e *envelope) process(x float64) float64 {
	coeff := e.release
	if x > e.level {
		coeff = e.attack
	}
	e.level = x + coeff*(e.level-x)
	return e.level
}

func timeCoeff(seconds float64, rate int) float64 {
	if seconds <= 0 {
		return 0
	}
	return math.Exp(-1 / (seconds * float64(rate)))
}

// compressorGain is the static curve with a soft knee, in dB of reduction
func compressorGain(levelDB, threshold, ratio, knee float64) float64 {
	over := levelDB - threshold
	switch {
	case knee > 0 && 2*math.Abs(over) <= knee:
		x := over + knee/2
		return (1/ratio - 1) * x * x / (2 * knee)
	case over > 0:
		return (1/ratio - 1) * over
	default:
		return 0
	}
}
