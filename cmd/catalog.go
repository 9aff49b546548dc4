package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/rolx/internal/formatter"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Search queries the catalog for songs.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	limit := int(cmd.Int("limit"))
	if limit <= 0 || limit > 50 {
		return fmt.Errorf("%w: --limit must be between 1 and 50", shared.ErrInvalidFlag)
	}

	r.logger.Info("searching catalog", "query", query, "limit", limit)
	result, err := r.catalogService(ctx).SearchTracks(ctx, query, int(cmd.Int("page")), limit)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	if len(result.Results) == 0 {
		r.writePlain("No results for %q\n", query)
		return nil
	}

	r.writePlain("Results for %q (%d of %d):\n\n", query, len(result.Results), result.Total)
	for i, t := range result.Results {
		r.writePlain("%s\n", trackLine(i, t))
	}
	return nil
}

// Resolve resolves a track by catalog id and reports which layer produced it.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	track := models.Track{ID: id, Title: cmd.String("title"), ArtistName: cmd.String("artist")}
	result := r.newResolver(ctx, st.tracks).Resolve(ctx, track)

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			Track    models.Track `json:"track"`
			Layer    string       `json:"layer"`
			Resolved bool         `json:"resolved"`
		}{result.Track, result.Layer.String(), result.Resolved()}, true)
	}

	if !result.Resolved() {
		return fmt.Errorf("%w: %s", shared.ErrNotPlayable, id)
	}

	t := result.Track
	r.writePlain("✓ %s (via %s)\n", t, result.Layer)
	if t.Album != "" {
		r.writePlain("  Album:    %s\n", t.Album)
	}
	if t.Duration > 0 {
		r.writePlain("  Duration: %s\n", formatter.FormatDuration(t.Duration))
	}
	if t.Language != "" || t.Year != "" {
		r.writePlain("  Release:  %s %s\n", t.Language, t.Year)
	}
	r.writePlain("  Source:   %s\n", t.Src)
	return nil
}
