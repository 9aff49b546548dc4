package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/rolx/internal/formatter"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/services"
	"github.com/desertthunder/rolx/internal/shared"
	"github.com/urfave/cli/v3"
)

// call sends a request to the daemon and fails on any non-2xx answer.
func (r *Runner) call(ctx context.Context, method, path string, body any) (*services.APIResponse, error) {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := r.control().Do(ctx, method, path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, resp.Error())
	}
	return resp, nil
}

// APIGet makes a direct GET request to the daemon
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	r.logger.Debug("GET request", "path", path)

	resp, err := r.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return r.writeResponse(resp, !cmd.Bool("json"))
}

// APIPost makes a direct POST request to the daemon
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	data := cmd.String("data")

	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	if data == "" {
		data = "{}"
	}

	r.logger.Debug("POST request", "path", path)

	var jsonTest any
	if err := json.Unmarshal([]byte(data), &jsonTest); err != nil {
		return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
	}

	resp, err := r.control().Post(ctx, path, []byte(data))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, resp.Error())
	}
	return r.writeResponse(resp, true)
}

func (r *Runner) writeResponse(resp *services.APIResponse, pretty bool) error {
	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, pretty)
	}
	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// CtlState prints the daemon's playback state.
func (r *Runner) CtlState(ctx context.Context, cmd *cli.Command) error {
	resp, err := r.call(ctx, http.MethodGet, "/api/state", nil)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeResponse(resp, true)
	}
	return r.printState(resp)
}

func (r *Runner) printState(resp *services.APIResponse) error {
	var s models.PlaybackState
	if err := json.Unmarshal(resp.Body, &s); err != nil {
		return fmt.Errorf("%w: unexpected state payload: %v", shared.ErrAPIRequest, err)
	}

	if s.Current == nil {
		r.writePlain("■ %s\n", s.Status)
		return nil
	}

	icon := "⏸"
	if s.Playing {
		icon = "▶"
	}
	r.writePlain("%s %s\n", icon, s.Current)
	r.writePlain("  %s / %s", formatter.FormatDuration(s.Progress), formatter.FormatDuration(s.Duration))
	if s.Loop {
		r.writePlain("  (loop)")
	}
	r.writePlain("\n")
	if s.Error != "" {
		r.writePlain("  ✗ %s\n", s.Error)
	}
	return nil
}

// ctlAction returns an action that posts to a body-less daemon endpoint and prints the resulting state.
func (r *Runner) ctlAction(path string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		resp, err := r.call(ctx, http.MethodPost, path, nil)
		if err != nil {
			return err
		}
		return r.printState(resp)
	}
}

// CtlSeek moves the playhead to an absolute position in seconds, or m:ss.
func (r *Runner) CtlSeek(ctx context.Context, cmd *cli.Command) error {
	position, err := parsePosition(cmd.StringArg("position"))
	if err != nil {
		return err
	}
	resp, err := r.call(ctx, http.MethodPost, "/api/seek", map[string]float64{"position": position})
	if err != nil {
		return err
	}
	return r.printState(resp)
}

func parsePosition(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: position", shared.ErrMissingArgument)
	}

	if m, sec, ok := strings.Cut(s, ":"); ok {
		mins, err1 := strconv.Atoi(m)
		secs, err2 := strconv.Atoi(sec)
		if err1 != nil || err2 != nil || mins < 0 || secs < 0 || secs > 59 {
			return 0, fmt.Errorf("%w: %q is not m:ss", shared.ErrInvalidArgument, s)
		}
		return float64(mins*60 + secs), nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q is not a position in seconds", shared.ErrInvalidArgument, s)
	}
	return v, nil
}

// CtlLoop toggles loop mode, or sets it with --on/--off.
func (r *Runner) CtlLoop(ctx context.Context, cmd *cli.Command) error {
	body := map[string]bool{}
	switch {
	case cmd.Bool("on") && cmd.Bool("off"):
		return fmt.Errorf("%w: --on and --off are exclusive", shared.ErrInvalidFlag)
	case cmd.Bool("on"):
		body["enabled"] = true
	case cmd.Bool("off"):
		body["enabled"] = false
	}

	resp, err := r.call(ctx, http.MethodPost, "/api/loop", body)
	if err != nil {
		return err
	}
	return r.printState(resp)
}

// CtlPreset applies an equalizer preset on the daemon.
func (r *Runner) CtlPreset(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: preset name", shared.ErrMissingArgument)
	}
	if _, err := r.call(ctx, http.MethodPut, "/api/eq/preset", map[string]string{"name": name}); err != nil {
		return err
	}
	r.writePlain("✓ Preset %s\n", name)
	return nil
}

// CtlPlay asks the daemon to play tracks by id; the first plays now and the rest are queued.
func (r *Runner) CtlPlay(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one track id", shared.ErrMissingArgument)
	}

	tracks := make([]models.Track, len(ids))
	for i, id := range ids {
		tracks[i] = models.Track{ID: id}
	}

	resp, err := r.call(ctx, http.MethodPost, "/api/play", map[string]any{"tracks": tracks})
	if err != nil {
		return err
	}
	return r.printTrackResponse("▶", resp)
}

// CtlEnqueue adds a track to the daemon's queue.
func (r *Runner) CtlEnqueue(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	resp, err := r.call(ctx, http.MethodPost, "/api/queue", map[string]any{
		"track": models.Track{ID: id},
		"next":  cmd.Bool("next"),
	})
	if err != nil {
		return err
	}
	return r.printTrackResponse("+", resp)
}

func (r *Runner) printTrackResponse(icon string, resp *services.APIResponse) error {
	var body struct {
		Track models.Track `json:"track"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return fmt.Errorf("%w: unexpected payload: %v", shared.ErrAPIRequest, err)
	}
	r.writePlain("%s %s\n", icon, body.Track)
	return nil
}

// CtlTransport sends a media-session action such as "next" or "seekforward".
func (r *Runner) CtlTransport(ctx context.Context, cmd *cli.Command) error {
	action := cmd.StringArg("action")
	if action == "" {
		return fmt.Errorf("%w: action", shared.ErrMissingArgument)
	}
	resp, err := r.call(ctx, http.MethodPost, "/api/transport/"+action, nil)
	if err != nil {
		return err
	}
	return r.printState(resp)
}

// QueueExport writes the now-playing track and upcoming queue to a file.
//
// With --ids the tracks are resolved locally; otherwise the queue is read from a running daemon.
func (r *Runner) QueueExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	export := &models.QueueExport{Name: cmd.String("name"), ExportedAt: time.Now()}
	if ids := cmd.StringSlice("ids"); len(ids) > 0 {
		if err := r.exportFromIDs(ctx, export, ids); err != nil {
			return err
		}
	} else if err := r.exportFromDaemon(ctx, export); err != nil {
		return err
	}

	if export.Current == nil && len(export.Tracks) == 0 {
		return fmt.Errorf("%w: nothing to export", shared.ErrInvalidInput)
	}

	result, err := formatter.NewExporter(r.httpClient, r.logger).Write(ctx, export, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Exported %d tracks to %s\n", len(export.All()), result.Path)
	if result.CoverImage != "" {
		r.writePlain("  Cover: %s\n", result.CoverImage)
	}

	if cmd.Bool("open") {
		if err := shared.OpenPath(result.Path); err != nil {
			r.logger.Warn("failed to open export", "path", result.Path, "err", err)
		}
	}
	return nil
}

func (r *Runner) exportFromIDs(ctx context.Context, export *models.QueueExport, ids []string) error {
	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	tracks := make([]models.Track, len(ids))
	for i, id := range ids {
		tracks[i] = models.Track{ID: id}
	}

	for _, res := range r.newResolver(ctx, st.tracks).ResolveAll(ctx, tracks) {
		if !res.Resolved() {
			r.logger.Warn("skipping unresolved track", "id", res.Track.ID)
			continue
		}
		export.Tracks = append(export.Tracks, res.Track)
	}
	return nil
}

func (r *Runner) exportFromDaemon(ctx context.Context, export *models.QueueExport) error {
	resp, err := r.call(ctx, http.MethodGet, "/api/state", nil)
	if err != nil {
		return err
	}
	var state models.PlaybackState
	if err := json.Unmarshal(resp.Body, &state); err != nil {
		return fmt.Errorf("%w: unexpected state payload: %v", shared.ErrAPIRequest, err)
	}
	export.Current = state.Current

	if resp, err = r.call(ctx, http.MethodGet, "/api/queue", nil); err != nil {
		return err
	}
	var q struct {
		Tracks []models.Track `json:"tracks"`
	}
	if err := json.Unmarshal(resp.Body, &q); err != nil {
		return fmt.Errorf("%w: unexpected queue payload: %v", shared.ErrAPIRequest, err)
	}
	export.Tracks = q.Tracks
	return nil
}
