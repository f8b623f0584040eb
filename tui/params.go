package tui

import (
	"fmt"

	"beatgrid/audio"
)

// knob is one adjustable mixer control. Channel knobs edit the selected
// channel, bus knobs the global parameters.
type knob struct {
	name   string
	lo, hi float64
	step   float64
	scale  bool // step multiplies instead of adds
	format string

	channel func(p *audio.ChannelParams) *float64
	bus     func(g *audio.GlobalParams) *float64
}

var knobs = []knob{
	{name: "vol", lo: 0, hi: 1, step: 0.05, format: "%.2f",
		channel: func(p *audio.ChannelParams) *float64 { return &p.Volume }},
	{name: "pan", lo: -1, hi: 1, step: 0.1, format: "%+.1f",
		channel: func(p *audio.ChannelParams) *float64 { return &p.Pan }},
	{name: "dly", lo: 0, hi: audio.MaxDelayTime, step: 0.05, format: "%.2fs",
		channel: func(p *audio.ChannelParams) *float64 { return &p.DelayTime }},
	{name: "fb", lo: 0, hi: audio.MaxFeedback, step: 0.05, format: "%.2f",
		channel: func(p *audio.ChannelParams) *float64 { return &p.DelayFeedback }},
	{name: "dwet", lo: 0, hi: 1, step: 0.05, format: "%.2f",
		channel: func(p *audio.ChannelParams) *float64 { return &p.DelayWet }},
	{name: "rvb", lo: 0, hi: 1, step: 0.05, format: "%.2f",
		channel: func(p *audio.ChannelParams) *float64 { return &p.ReverbSend }},
	{name: "hp", lo: audio.MinCutoff, hi: audio.MaxCutoff, step: 1.25, scale: true, format: "%.0fHz",
		channel: func(p *audio.ChannelParams) *float64 { return &p.HighPass }},
	{name: "lp", lo: audio.MinCutoff, hi: audio.MaxCutoff, step: 1.25, scale: true, format: "%.0fHz",
		channel: func(p *audio.ChannelParams) *float64 { return &p.LowPass }},
	{name: "decay", lo: audio.MinDecay, hi: audio.MaxDecay, step: 0.1, format: "%.1fs",
		bus: func(g *audio.GlobalParams) *float64 { return &g.Reverb.Decay }},
	{name: "pre", lo: 0, hi: audio.MaxPreDelay, step: 0.01, format: "%.2fs",
		bus: func(g *audio.GlobalParams) *float64 { return &g.Reverb.PreDelay }},
	{name: "room", lo: 0, hi: 1, step: 0.05, format: "%.2f",
		bus: func(g *audio.GlobalParams) *float64 { return &g.Reverb.Wet }},
	{name: "thr", lo: -60, hi: 0, step: 1, format: "%.0fdB",
		bus: func(g *audio.GlobalParams) *float64 { return &g.Compressor.Threshold }},
	{name: "ratio", lo: 1, hi: 20, step: 0.5, format: "%.1f",
		bus: func(g *audio.GlobalParams) *float64 { return &g.Compressor.Ratio }},
	{name: "cmix", lo: 0, hi: 1, step: 0.05, format: "%.2f",
		bus: func(g *audio.GlobalParams) *float64 { return &g.Compressor.Mix }},
}

// nudge moves v one step up (dir > 0) or down
func (k knob) nudge(v float64, dir int) float64 {
	switch {
	case k.scale && dir > 0:
		v *= k.step
	case k.scale:
		v /= k.step
	case dir > 0:
		v += k.step
	default:
		v -= k.step
	}
	return min(max(v, k.lo), k.hi)
}

// value reads the knob from a channel's or the bus parameters
func (k knob) value(p audio.ChannelParams, g audio.GlobalParams) float64 {
	if k.channel != nil {
		return *k.channel(&p)
	}
	return *k.bus(&g)
}

func (k knob) label(v float64) string {
	return fmt.Sprintf("%s "+k.format, k.name, v)
}
