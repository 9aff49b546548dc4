package tasks

import (
	"fmt"

	"github.com/desertthunder/rolx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Resolve Phase = iota
	Queued
	Playback
	Download
	Tag
	Save
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Resolve:
		return "resolve"
	case Queued:
		return "queue"
	case Playback:
		return "playback"
	case Download:
		return "download"
	case Tag:
		return "tag"
	case Save:
		return "save"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func resolveUpdate(step, total int, tr models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolve,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving %s...", step, total, tr.String()),
		Data:    tr,
	}
}

func queuedUpdate(step, total int, tr models.Track, next bool) ProgressUpdate {
	where := "end of queue"
	if next {
		where = "front of queue"
	}
	return ProgressUpdate{
		Phase:   Queued,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Added %s to %s", tr.String(), where),
		Data:    tr,
	}
}

func siblingsQueuedUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Queued,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Queued %d following tracks", count),
	}
}

func playbackUpdate(tr models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Playback,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playing %s", tr.String()),
		Data:    tr,
	}
}

func downloadUpdate(phase Phase, job models.DownloadJob) ProgressUpdate {
	var msg string
	switch phase {
	case Tag:
		msg = fmt.Sprintf("Tagging %s...", job.Name)
	case Save:
		msg = fmt.Sprintf("Saving %s...", job.Name)
	case Done:
		msg = fmt.Sprintf("✓ %s saved to %s", job.Name, job.Path)
	case Failed:
		msg = fmt.Sprintf("✗ %s: %s", job.Name, job.Error)
	default:
		msg = fmt.Sprintf("Downloading %s... %d%%", job.Name, job.ProgressPercent)
	}
	return ProgressUpdate{
		Phase:   phase,
		Step:    job.ProgressPercent,
		Total:   100,
		Message: msg,
		Data:    job,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
