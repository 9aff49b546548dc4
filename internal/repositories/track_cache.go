package repositories

import (
	"fmt"
	"time"

	"github.com/desertthunder/rolx/internal/models"
)

// TrackCacheAdapter serves the resolver's cache layer from [TrackRepository].
//
// Entries older than the TTL are treated as misses so expiring source URLs get refreshed.
type TrackCacheAdapter struct {
	repo *TrackRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewTrackCacheAdapter creates a new TrackCacheAdapter. A zero ttl never expires entries.
func NewTrackCacheAdapter(repo *TrackRepository, ttl time.Duration) *TrackCacheAdapter {
	return &TrackCacheAdapter{repo: repo, ttl: ttl, now: time.Now}
}

// Lookup returns the cached, playable resolution for a catalog id.
func (a *TrackCacheAdapter) Lookup(id string) (*models.Track, bool) {
	if id == "" {
		return nil, false
	}

	persisted, err := a.repo.GetByTrackID(id)
	if err != nil || !persisted.Fresh(a.now(), a.ttl) {
		return nil, false
	}

	track := persisted.Track()
	if !track.Playable() {
		return nil, false
	}
	return &track, true
}

// Store caches a resolved track. Tracks without an id or a source are ignored.
func (a *TrackCacheAdapter) Store(track models.Track) error {
	if track.ID == "" || !track.Playable() {
		return nil
	}
	if _, err := a.repo.Upsert(track); err != nil {
		return fmt.Errorf("failed to cache track: %w", err)
	}
	return nil
}
