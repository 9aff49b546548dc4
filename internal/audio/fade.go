package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1]: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// Ramp fades a stream in over a fixed number of frames using [Smoothstep].
type Ramp struct {
	frames int
	pos    int
}

// NewRamp returns a ramp spanning n frames. n <= 0 disables it.
func NewRamp(n int) *Ramp {
	return &Ramp{frames: n}
}

// Done reports whether the ramp has reached unity gain.
func (r *Ramp) Done() bool {
	return r.pos >= r.frames
}

// Apply scales frame by the current ramp gain, interpolating across the frame, and advances.
func (r *Ramp) Apply(frame []int16) []int16 {
	if r.Done() || len(frame) == 0 {
		return frame
	}

	start := float64(r.pos) / float64(r.frames)
	end := float64(r.pos+1) / float64(r.frames)
	pairs := len(frame) / Channels
	for i := range pairs {
		gain := Smoothstep(start + (end-start)*float64(i)/float64(pairs))
		for c := range Channels {
			idx := i*Channels + c
			frame[idx] = clip(float64(frame[idx]) * gain)
		}
	}
	r.pos++
	return frame
}
