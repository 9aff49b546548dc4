package dsp

import (
	"math"
	"math/cmplx"

	"github.com/desertthunder/rolx/internal/audio"
)

// Biquad is a stereo peaking EQ filter (RBJ audio EQ cookbook), transposed direct form II.
type Biquad struct {
	freq, q, gain float64
	sampleRate    float64

	b0, b1, b2, a1, a2 float64
	z1, z2             [audio.Channels]float64
}

// NewPeaking returns a peaking filter centered on freq with the given Q and gain in dB.
func NewPeaking(freq, q, gainDB float64, sampleRate int) *Biquad {
	b := &Biquad{freq: freq, q: q, sampleRate: float64(sampleRate)}
	b.SetGain(gainDB)
	return b
}

// SetGain recomputes the coefficients. Filter state is kept so live edits do not click.
func (b *Biquad) SetGain(db float64) {
	b.gain = db

	a := math.Pow(10, db/40)
	w0 := 2 * math.Pi * b.freq / b.sampleRate
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * b.q)

	a0 := 1 + alpha/a
	b.b0 = (1 + alpha*a) / a0
	b.b1 = (-2 * cosw) / a0
	b.b2 = (1 - alpha*a) / a0
	b.a1 = (-2 * cosw) / a0
	b.a2 = (1 - alpha/a) / a0
}

// Gain returns the current gain in dB.
func (b *Biquad) Gain() float64 { return b.gain }

// Frequency returns the center frequency in Hz.
func (b *Biquad) Frequency() float64 { return b.freq }

func (b *Biquad) step(c int, x float64) float64 {
	y := b.b0*x + b.z1[c]
	b.z1[c] = b.b1*x - b.a1*y + b.z2[c]
	b.z2[c] = b.b2*x - b.a2*y
	return y
}

// Response returns the filter magnitude in dB at freq.
func (b *Biquad) Response(freq float64) float64 {
	w := 2 * math.Pi * freq / b.sampleRate
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1
	num := complex(b.b0, 0) + complex(b.b1, 0)*z1 + complex(b.b2, 0)*z2
	den := 1 + complex(b.a1, 0)*z1 + complex(b.a2, 0)*z2
	return 20 * math.Log10(cmplx.Abs(num/den))
}
