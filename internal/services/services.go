package services

import (
	"context"

	"github.com/desertthunder/rolx/internal/models"
)

// Catalog looks tracks up in a remote song catalog.
//
// Implementations return [shared.ErrTrackNotFound] when the catalog answers but has no usable
// match, and wrap [shared.ErrAPIRequest] or [shared.ErrServiceUnavailable] for transport failures.
type Catalog interface {
	// FetchTrackByID returns the first entry for id that carries a playable source.
	FetchTrackByID(ctx context.Context, id string) (*models.Track, error)

	// SearchTracks runs a free-text song search. page starts at 0.
	SearchTracks(ctx context.Context, query string, page, limit int) (*models.SearchResult, error)

	// Name returns the name of the catalog for logs.
	Name() string
}
