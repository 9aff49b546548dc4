package models

import "time"

// QueueExport is a snapshot of the now-playing track and the upcoming queue.
type QueueExport struct {
	Name       string    `json:"name"`
	Current    *Track    `json:"current,omitempty"`
	Tracks     []Track   `json:"tracks"`
	ExportedAt time.Time `json:"exportedAt"`
}

// All returns the current track (if any) followed by the queue.
func (e QueueExport) All() []Track {
	out := make([]Track, 0, len(e.Tracks)+1)
	if e.Current != nil {
		out = append(out, *e.Current)
	}
	return append(out, e.Tracks...)
}

// TotalDuration sums the known durations in seconds.
func (e QueueExport) TotalDuration() float64 {
	var total float64
	for _, t := range e.All() {
		total += t.Duration
	}
	return total
}

// Cover returns the first available artwork URL.
func (e QueueExport) Cover() string {
	for _, t := range e.All() {
		if t.Cover != "" {
			return t.Cover
		}
	}
	return ""
}
