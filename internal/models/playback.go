package models

import "fmt"

// PlaybackStatus is the engine's position in its state machine.
type PlaybackStatus int

const (
	StatusIdle PlaybackStatus = iota
	StatusLoading
	StatusPlaying
	StatusPaused
	StatusEnded
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// MarshalText lets the status appear by name in JSON.
func (s PlaybackStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name written by MarshalText.
func (s *PlaybackStatus) UnmarshalText(text []byte) error {
	for _, status := range []PlaybackStatus{StatusIdle, StatusLoading, StatusPlaying, StatusPaused, StatusEnded} {
		if status.String() == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown playback status %q", text)
}

// PlaybackState is a snapshot of the engine.
//
// Progress never exceeds Duration when Duration is known, and Playing is false whenever Current is nil.
type PlaybackState struct {
	Status   PlaybackStatus `json:"status"`
	Current  *Track         `json:"current,omitempty"`
	Playing  bool           `json:"playing"`
	Progress float64        `json:"progress"`
	Duration float64        `json:"duration"`
	Loop     bool           `json:"loop"`
	Error    string         `json:"error,omitempty"`
	Version  uint64         `json:"version"`
}

// ProgressPercent returns progress as a 0-100 value, or 0 when the duration is unknown.
func (s PlaybackState) ProgressPercent() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return s.Progress / s.Duration * 100
}
