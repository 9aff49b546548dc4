package dsp

import (
	"math"
	"math/rand"

	"github.com/desertthunder/rolx/internal/audio"
)

// Tap is one reflection of an impulse response: a delay in samples and a gain.
type Tap struct {
	Delay int
	Gain  float64
}

// Impulse is a sparse stereo impulse response.
type Impulse struct {
	Length int
	Taps   [audio.Channels][]Tap
}

const (
	hallTaps  = 96
	hallSeed  = 0x524f4c
	decayDB   = 60.0
	earlyTaps = 12
)

// HallImpulse builds a deterministic decaying-noise impulse response of the given length.
//
// Each channel gets its own reflection pattern. Gains decay exponentially, reaching -60 dB
// at the end of the response, and are normalized so the wet signal cannot exceed the input.
func HallImpulse(seconds float64, sampleRate int) Impulse {
	length := max(1, int(seconds*float64(sampleRate)))
	ir := Impulse{Length: length}

	for c := range audio.Channels {
		rng := rand.New(rand.NewSource(int64(hallSeed + c)))
		taps := make([]Tap, 0, hallTaps)

		var sum float64
		for i := range hallTaps {
			var delay int
			if i < earlyTaps {
				// early reflections in the first 80ms
				delay = 1 + rng.Intn(max(1, min(length-1, sampleRate*80/1000)))
			} else {
				delay = 1 + rng.Intn(max(1, length-1))
			}
			t := float64(delay) / float64(length)
			gain := (rng.Float64()*2 - 1) * math.Pow(10, -decayDB*t/20)
			taps = append(taps, Tap{Delay: delay, Gain: gain})
			sum += math.Abs(gain)
		}

		for i := range taps {
			taps[i].Gain /= sum
		}
		ir.Taps[c] = taps
	}
	return ir
}

// Convolver convolves each channel with a sparse impulse response and mixes it with the dry signal.
type Convolver struct {
	ir   Impulse
	mix  float64
	hist [audio.Channels][]float64
	pos  int
}

// NewConvolver creates a convolver. mix is the wet proportion in [0, 1].
func NewConvolver(ir Impulse, mix float64) *Convolver {
	c := &Convolver{ir: ir, mix: max(0, min(1, mix))}
	for ch := range audio.Channels {
		c.hist[ch] = make([]float64, ir.Length)
	}
	return c
}

// process works on one interleaved sample pair.
func (c *Convolver) process(pair []float64) {
	n := c.ir.Length
	for ch := range audio.Channels {
		x := pair[ch]
		c.hist[ch][c.pos] = x

		var wet float64
		for _, tap := range c.ir.Taps[ch] {
			idx := c.pos - tap.Delay
			if idx < 0 {
				idx += n
			}
			wet += tap.Gain * c.hist[ch][idx]
		}
		pair[ch] = (1-c.mix)*x + c.mix*wet
	}
	c.pos = (c.pos + 1) % n
}
