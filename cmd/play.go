package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/rolx/internal/dsp"
	"github.com/desertthunder/rolx/internal/formatter"
	"github.com/desertthunder/rolx/internal/metadata"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
	"github.com/desertthunder/rolx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Play plays one or more tracks by catalog id on this machine until the queue runs out.
//
// The first id plays immediately; the rest are resolved and queued behind it.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one track id", shared.ErrMissingArgument)
	}

	c, err := r.newCore(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if preset := cmd.String("preset"); preset != "" {
		if err := c.graph.SetPreset(preset); err != nil {
			return err
		}
	}
	if cmd.Bool("hall") {
		c.graph.SetHallEnabled(true)
	}
	c.engine.SetLoop(cmd.Bool("loop"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.start(ctx, c, true)

	finished := make(chan error, 1)
	var once sync.Once
	started := false
	unsubscribe := c.engine.Subscribe(func(s models.PlaybackState) {
		switch {
		case s.Playing:
			started = true
		case s.Error != "":
			once.Do(func() { finished <- fmt.Errorf("%w: %s", shared.ErrPlaybackStart, s.Error) })
		case started && s.Status == models.StatusIdle:
			once.Do(func() { finished <- nil })
		}
	})
	defer unsubscribe()

	tracks := make([]models.Track, len(ids))
	for i, id := range ids {
		tracks[i] = models.Track{ID: id}
	}

	err = r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		_, err := c.session.PlayAll(ctx, progress, tracks, 0)
		return err
	})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		r.writePlainln("Stopped")
		return nil
	case err := <-finished:
		if err != nil {
			return err
		}
		r.writePlain("✓ Queue finished\n")
		return nil
	}
}

// Download resolves a track by id and saves it as a tagged file.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	result := r.newResolver(ctx, st.tracks).Resolve(ctx, models.Track{ID: id})
	if !result.Resolved() {
		return fmt.Errorf("%w: %s", shared.ErrNotPlayable, id)
	}
	r.logger.Debug("resolved track for download", "id", id, "layer", result.Layer)

	opts := tasks.DownloadOptsFromConfig(r.config.Download, r.config.App.Name)
	opts.UserAgent = r.config.Catalog.UserAgent
	if dir := cmd.String("output-dir"); dir != "" {
		opts.OutputDir = dir
	}
	downloader := tasks.NewDownloader(r.httpClient, metadata.NewTagger(), st.downloads, opts, r.logger)

	var job models.DownloadJob
	err = r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var err error
		job, err = downloader.Download(ctx, progress, result.Track)
		return err
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(job, true)
	}
	return nil
}

// DownloadHistory lists recorded exports, newest first.
func (r *Runner) DownloadHistory(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	downloads, err := st.downloads.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type entry struct {
			Sequence int    `json:"sequence"`
			TrackID  string `json:"trackId"`
			Name     string `json:"name"`
			Path     string `json:"path,omitempty"`
			Status   string `json:"status"`
			Tagged   bool   `json:"tagged"`
			Size     int64  `json:"sizeBytes"`
			Error    string `json:"error,omitempty"`
			Created  string `json:"createdAt"`
		}
		out := make([]entry, len(downloads))
		for i, d := range downloads {
			out[i] = entry{
				Sequence: d.Sequence(), TrackID: d.TrackID(), Name: d.Name(), Path: d.Path(),
				Status: string(d.Status()), Tagged: d.Tagged(), Size: d.SizeBytes(), Error: d.Error(),
				Created: d.CreatedAt().Format("2006-01-02T15:04:05Z07:00"),
			}
		}
		return r.writeJSON(out, true)
	}

	if len(downloads) == 0 {
		r.writePlain("No downloads recorded yet.\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Downloads (%d)", len(downloads)))
	for _, d := range downloads {
		mark := "✓"
		detail := d.Path()
		if d.Status() == models.DownloadFailed {
			mark = "✗"
			detail = d.Error()
		} else if !d.Tagged() {
			detail += " (untagged)"
		}
		r.writePlain("%s %s  %s\n", mark, d.Name(), d.CreatedAt().Format("2006-01-02 15:04"))
		r.writePlain("    %s\n", detail)
	}
	return nil
}

// EQPresets lists the built-in equalizer presets.
func (r *Runner) EQPresets(ctx context.Context, cmd *cli.Command) error {
	presets := dsp.Presets()
	if cmd.Bool("json") {
		return r.writeJSON(presets, true)
	}

	labels := make([]string, len(models.BandFrequencies))
	for i, f := range models.BandFrequencies {
		labels[i] = fmt.Sprintf("%6s", bandLabel(f))
	}
	r.writePlain("%-14s%s\n", "Preset", strings.Join(labels, ""))
	for _, p := range presets {
		gains := make([]string, len(p.Gains))
		for i, g := range p.Gains {
			gains[i] = fmt.Sprintf("%6.0f", g)
		}
		r.writePlain("%-14s%s\n", p.Name, strings.Join(gains, ""))
	}
	return nil
}

func bandLabel(hz float64) string {
	if hz >= 1000 {
		return fmt.Sprintf("%gk", hz/1000)
	}
	return fmt.Sprintf("%g", hz)
}

func trackLine(i int, t models.Track) string {
	line := fmt.Sprintf("%2d. %s", i+1, t)
	if t.Duration > 0 {
		line += fmt.Sprintf(" [%s]", formatter.FormatDuration(t.Duration))
	}
	return line + fmt.Sprintf(" (%s)", t.ID)
}
