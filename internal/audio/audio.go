// package audio turns track sources into paced PCM frames.
//
// Everything downstream of the decoder works on interleaved stereo int16
// frames of [FrameDuration] at [SampleRate].
package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Processor transforms a frame. It may modify the frame in place and return it.
type Processor interface {
	Process(frame []int16) []int16
}

// ProcessorFunc adapts a function to [Processor].
type ProcessorFunc func([]int16) []int16

func (f ProcessorFunc) Process(frame []int16) []int16 { return f(frame) }

// Source is an audio element that can be routed through exactly one processor.
type Source interface {
	Connect(p Processor) error
}

// EventKind classifies an [Event] emitted by an output.
type EventKind int

const (
	EventStarted EventKind = iota
	EventProgress
	EventEnded
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventProgress:
		return "progress"
	case EventEnded:
		return "ended"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event reports what happened to the load identified by Token.
//
// Position and Duration are in seconds. Duration is 0 when unknown.
type Event struct {
	Token    uint64
	Kind     EventKind
	Position float64
	Duration float64
	Err      error
}

func clip(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
