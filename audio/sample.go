package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/youpy/go-wav"
)

// ErrUnsupportedWav is returned for files the decoder cannot turn into mono
var ErrUnsupportedWav = errors.New("unsupported wav format")

// Sample is a decoded one-shot, mono, at the engine's rate. Voices share the
// buffer by reference and never write to it.
type Sample struct {
	Name string
	Data []float32
	Rate int
}

// Duration is the playback length of the sample
func (s *Sample) Duration() time.Duration {
	if s == nil || s.Rate <= 0 {
		return 0
	}
	return time.Duration(len(s.Data)) * time.Second / time.Duration(s.Rate)
}

type wavSource interface {
	io.Reader
	io.ReaderAt
}

// LoadSample reads a WAV file and converts it to mono at rate
func LoadSample(path string, rate int) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s, err := DecodeWAV(f, name, rate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// DecodeWAV decodes PCM WAV data, folding stereo to mono and resampling to rate
func DecodeWAV(src wavSource, name string, rate int) (*Sample, error) {
	r := wav.NewReader(src)
	format, err := r.Format()
	if err != nil {
		return nil, err
	}
	if format.NumChannels < 1 || format.NumChannels > 2 || format.SampleRate == 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedWav, format.NumChannels, format.SampleRate)
	}

	var data []float32
	for {
		samples, err := r.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, sample := range samples {
			v := r.FloatValue(sample, 0)
			if format.NumChannels == 2 {
				v = (v + r.FloatValue(sample, 1)) / 2
			}
			data = append(data, float32(v))
		}
	}

	if rate > 0 && int(format.SampleRate) != rate {
		data = resample(data, int(format.SampleRate), rate)
	} else {
		rate = int(format.SampleRate)
	}
	return &Sample{Name: name, Data: data, Rate: rate}, nil
}

// resample converts between rates with linear interpolation
func resample(in []float32, from, to int) []float32 {
	if len(in) == 0 || from == to {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]float32, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		frac := float32(pos - float64(j))
		a := in[j]
		b := a
		if j+1 < len(in) {
			b = in[j+1]
		}
		out[i] = a + (b-a)*frac
	}
	return out
}
