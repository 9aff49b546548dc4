package models

import (
	"fmt"
	"time"
)

// PersistedTrack is a resolved [Track] cached by its catalog id.
type PersistedTrack struct {
	id        string
	sequence  int
	track     Track
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewPersistedTrack wraps track for storage. The ID is assigned by the repository.
func NewPersistedTrack(sequence int, track Track) *PersistedTrack {
	now := time.Now()
	return &PersistedTrack{sequence: sequence, track: track, createdAt: now, updatedAt: now}
}

func (p *PersistedTrack) ID() string            { return p.id }
func (p *PersistedTrack) Sequence() int         { return p.sequence }
func (p *PersistedTrack) Track() Track          { return p.track }
func (p *PersistedTrack) TrackID() string       { return p.track.ID }
func (p *PersistedTrack) CreatedAt() time.Time  { return p.createdAt }
func (p *PersistedTrack) UpdatedAt() time.Time  { return p.updatedAt }
func (p *PersistedTrack) DeletedAt() *time.Time { return p.deletedAt }

func (p *PersistedTrack) SetID(id string)           { p.id = id }
func (p *PersistedTrack) SetSequence(seq int)       { p.sequence = seq }
func (p *PersistedTrack) SetTrack(t Track)          { p.track = t }
func (p *PersistedTrack) SetCreatedAt(t time.Time)  { p.createdAt = t }
func (p *PersistedTrack) SetUpdatedAt(t time.Time)  { p.updatedAt = t }
func (p *PersistedTrack) SetDeletedAt(t *time.Time) { p.deletedAt = t }

// Fresh reports whether the cached entry was refreshed within ttl. A zero ttl never expires.
func (p *PersistedTrack) Fresh(now time.Time, ttl time.Duration) bool {
	return ttl <= 0 || now.Sub(p.updatedAt) < ttl
}

// Validate checks that the entry is a usable resolution.
func (p *PersistedTrack) Validate() error {
	if p.id == "" {
		return fmt.Errorf("persisted track id is required")
	}
	if err := p.track.Validate(); err != nil {
		return err
	}
	if !p.track.Playable() {
		return fmt.Errorf("persisted track %s has no source", p.track.ID)
	}
	return nil
}

// DownloadStatus is the terminal state of an export.
type DownloadStatus string

const (
	DownloadDone   DownloadStatus = "done"
	DownloadFailed DownloadStatus = "failed"
)

// PersistedDownload records a finished or failed export.
type PersistedDownload struct {
	id        string
	sequence  int
	trackID   string
	name      string
	path      string
	status    DownloadStatus
	tagged    bool
	sizeBytes int64
	errMsg    string
	createdAt time.Time
	updatedAt time.Time
}

// NewPersistedDownload builds a history entry from a finished job.
func NewPersistedDownload(sequence int, job DownloadJob, tagged bool, sizeBytes int64) *PersistedDownload {
	now := time.Now()
	status := DownloadDone
	if job.Failed {
		status = DownloadFailed
	}
	return &PersistedDownload{
		sequence:  sequence,
		trackID:   job.TrackID,
		name:      job.Name,
		path:      job.Path,
		status:    status,
		tagged:    tagged,
		sizeBytes: sizeBytes,
		errMsg:    job.Error,
		createdAt: now,
		updatedAt: now,
	}
}

func (d *PersistedDownload) ID() string             { return d.id }
func (d *PersistedDownload) Sequence() int          { return d.sequence }
func (d *PersistedDownload) TrackID() string        { return d.trackID }
func (d *PersistedDownload) Name() string           { return d.name }
func (d *PersistedDownload) Path() string           { return d.path }
func (d *PersistedDownload) Status() DownloadStatus { return d.status }
func (d *PersistedDownload) Tagged() bool           { return d.tagged }
func (d *PersistedDownload) SizeBytes() int64       { return d.sizeBytes }
func (d *PersistedDownload) Error() string          { return d.errMsg }
func (d *PersistedDownload) CreatedAt() time.Time   { return d.createdAt }
func (d *PersistedDownload) UpdatedAt() time.Time   { return d.updatedAt }

func (d *PersistedDownload) SetID(id string)          { d.id = id }
func (d *PersistedDownload) SetSequence(seq int)      { d.sequence = seq }
func (d *PersistedDownload) SetCreatedAt(t time.Time) { d.createdAt = t }
func (d *PersistedDownload) SetUpdatedAt(t time.Time) { d.updatedAt = t }

// Validate checks the history entry before it is written.
func (d *PersistedDownload) Validate() error {
	switch {
	case d.id == "":
		return fmt.Errorf("download id is required")
	case d.trackID == "":
		return fmt.Errorf("download track id is required")
	case d.status != DownloadDone && d.status != DownloadFailed:
		return fmt.Errorf("invalid download status %q", d.status)
	case d.status == DownloadDone && d.path == "":
		return fmt.Errorf("finished download %s has no path", d.id)
	}
	return nil
}
