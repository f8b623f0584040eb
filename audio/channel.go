package audio

import "math"

const filterQ = 0.7071

// ChannelPath is one channel's strip: filters, delay, fader, pan and the
// reverb send tap. Parameters are absolute, so applying the same values
// twice leaves the strip unchanged.
type ChannelPath struct {
	rate    int
	params  ChannelParams
	audible bool
	applied bool

	hp, lp biquad
	delay  *delayLine

	delayFB  float32
	delayWet float32
	fader    float32
	gainL    float32
	gainR    float32
	send     float32
}

// NewChannelPath creates a strip with default parameters
func NewChannelPath(rate int) *ChannelPath {
	c := &ChannelPath{
		rate:  rate,
		delay: newDelayLine(int(MaxDelayTime * float64(rate))),
	}
	c.Apply(DefaultChannelParams(), true)
	return c
}

// Apply sets every parameter of the strip. It reports whether anything
// changed.
func (c *ChannelPath) Apply(p ChannelParams, audible bool) bool {
	p = p.Clamp()
	if c.applied && p == c.params && audible == c.audible {
		return false
	}

	if !c.applied || p.HighPass != c.params.HighPass {
		if p.HighPass <= MinCutoff {
			c.hp.passthrough()
		} else {
			c.hp.highPass(p.HighPass, filterQ, c.rate)
		}
	}
	if !c.applied || p.LowPass != c.params.LowPass {
		if p.LowPass >= math.Min(MaxCutoff, 0.45*float64(c.rate)) {
			c.lp.passthrough()
		} else {
			c.lp.lowPass(p.LowPass, filterQ, c.rate)
		}
	}
	c.delay.setDelay(int(p.DelayTime * float64(c.rate)))
	c.delayFB = float32(p.DelayFeedback)
	c.delayWet = float32(p.DelayWet)

	gain := p.Volume
	if !audible {
		gain = 0
	}
	c.fader = float32(gain)
	// equal power pan
	angle := (p.Pan + 1) * math.Pi / 4
	c.gainL = float32(gain * math.Cos(angle))
	c.gainR = float32(gain * math.Sin(angle))
	c.send = float32(p.ReverbSend)

	c.params = p
	c.audible = audible
	c.applied = true
	return true
}

// Params returns the last applied (clamped) parameters
func (c *ChannelPath) Params() ChannelParams {
	return c.params
}

// Audible reports the resolved mute/solo state
func (c *ChannelPath) Audible() bool {
	return c.audible
}

// Gains returns the left and right output gains after fader, pan and mute
func (c *ChannelPath) Gains() (left, right float64) {
	return float64(c.gainL), float64(c.gainR)
}

// Process runs a mono block through the strip and adds it to the stereo bus
// and the reverb send
func (c *ChannelPath) Process(in, left, right, send []float32) {
	for i, x := range in {
		y := float32(c.lp.process(c.hp.process(float64(x))))
		if c.delayWet > 0 || c.delayFB > 0 {
			d := c.delay.read()
			c.delay.write(y + d*c.delayFB)
			y += d * c.delayWet
		}
		left[i] += y * c.gainL
		right[i] += y * c.gainR
		if c.send > 0 {
			send[i] += y * c.send * c.fader
		}
	}
}
