package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/rolx/internal/repositories"
	"github.com/desertthunder/rolx/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheList prints the resolved tracks held in the local cache.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if artist := cmd.String("artist-id"); artist != "" {
		criteria["artist_id"] = artist
	}
	if lang := cmd.String("language"); lang != "" {
		criteria["language"] = lang
	}

	cached, err := st.tracks.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		tracks := make([]any, len(cached))
		for i, p := range cached {
			tracks[i] = p.Track()
		}
		return r.writeJSON(tracks, true)
	}

	if len(cached) == 0 {
		r.writePlain("Cache is empty.\n")
		return nil
	}

	ttl := time.Duration(r.config.Resolver.CacheTTLMinutes) * time.Minute
	now := time.Now()

	r.writePlainHeader(fmt.Sprintf("Cached tracks (%d)", len(cached)))
	for i, p := range cached {
		line := trackLine(i, p.Track())
		if !p.Fresh(now, ttl) {
			line += " stale"
		}
		r.writePlain("%s\n", line)
	}
	return nil
}

// CacheRemove evicts tracks from the local cache by catalog id.
func (r *Runner) CacheRemove(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one track id", shared.ErrMissingArgument)
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	for _, id := range ids {
		cached, err := st.tracks.GetByTrackID(id)
		if errors.Is(err, repositories.ErrTrackNotFound) {
			r.writePlain("- %s not cached\n", id)
			continue
		} else if err != nil {
			return err
		}

		if err := st.tracks.Delete(cached.ID()); err != nil {
			return err
		}
		r.logger.Debug("evicted cached track", "id", id)
		r.writePlain("✓ Removed %s\n", cached.Track())
	}
	return nil
}
