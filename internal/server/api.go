package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/dsp"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/player"
	"github.com/desertthunder/rolx/internal/queue"
	"github.com/desertthunder/rolx/internal/services"
	"github.com/desertthunder/rolx/internal/shared"
	"github.com/desertthunder/rolx/internal/tasks"
)

// Playback is the engine surface the API drives.
type Playback interface {
	State() models.PlaybackState
	TogglePlay()
	Pause()
	Resume()
	Seek(seconds float64) error
	SetLoop(on bool)
	ToggleLoop() bool
	SkipNext()
	SkipPrevious()
	Subscribe(fn player.Listener) (unsubscribe func())
}

// Queue is the upcoming-tracks list.
type Queue interface {
	Tracks() []models.Track
	Version() uint64
	Replace(tracks []models.Track)
	Clear()
	Remove(id string) bool
	Reorder(from, to int) error
	Subscribe(fn queue.Listener) (unsubscribe func())
}

// Equalizer is the signal graph settings surface.
type Equalizer interface {
	State() models.EqualizerState
	SetBand(index int, gainDB float64) error
	SetPreset(name string) error
	ResetToFlat()
	SetHallEnabled(on bool)
	SetMasterGain(gain float64)
	Subscribe(fn dsp.Listener) (unsubscribe func())
}

// Requests resolves tracks before playing or queueing them.
type Requests interface {
	Play(ctx context.Context, progress chan<- tasks.ProgressUpdate, track models.Track) (models.Track, error)
	PlayAll(ctx context.Context, progress chan<- tasks.ProgressUpdate, tracks []models.Track, start int) (models.Track, error)
	Enqueue(ctx context.Context, progress chan<- tasks.ProgressUpdate, track models.Track) (models.Track, error)
	EnqueueNext(ctx context.Context, progress chan<- tasks.ProgressUpdate, track models.Track) (models.Track, error)
}

// Downloads is the single-slot export pipeline.
type Downloads interface {
	Download(ctx context.Context, progress chan<- tasks.ProgressUpdate, track models.Track) (models.DownloadJob, error)
	Current() (models.DownloadJob, bool)
	Subscribe(fn tasks.JobListener) (unsubscribe func())
}

// History lists finished exports.
type History interface {
	List(criteria map[string]any) ([]*models.PersistedDownload, error)
}

// APIOptions wires the API to the playback core. History and Catalog are optional.
type APIOptions struct {
	Playback  Playback
	Queue     Queue
	Equalizer Equalizer
	Requests  Requests
	Downloads Downloads
	History   History
	Catalog   services.Catalog
	Media     *MediaSession
	// BaseContext bounds background downloads; it defaults to [context.Background].
	BaseContext context.Context
	Logger      *log.Logger
}

type route struct {
	pattern string
	handler http.HandlerFunc
}

// API is the JSON control API. It implements [Handler].
type API struct {
	opts   APIOptions
	mux    *http.ServeMux
	routes []route
	hub    *Hub
	logger *log.Logger
	unsubs []func()
}

// NewAPI builds the API and subscribes its event hub to every observable component.
func NewAPI(opts APIOptions) *API {
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.Media == nil {
		opts.Media = NewMediaSession()
	}

	a := &API{
		opts:   opts,
		mux:    http.NewServeMux(),
		hub:    NewHub(),
		logger: shared.WithLogger(opts.Logger, "component", "api"),
	}

	a.routes = []route{
		{"GET /api/state", a.getState},
		{"POST /api/play", a.play},
		{"POST /api/toggle", a.command(opts.Playback.TogglePlay)},
		{"POST /api/pause", a.command(opts.Playback.Pause)},
		{"POST /api/resume", a.command(opts.Playback.Resume)},
		{"POST /api/seek", a.seek},
		{"POST /api/loop", a.loop},
		{"POST /api/next", a.command(opts.Playback.SkipNext)},
		{"POST /api/previous", a.command(opts.Playback.SkipPrevious)},

		{"GET /api/queue", a.getQueue},
		{"POST /api/queue", a.enqueue},
		{"PUT /api/queue", a.replaceQueue},
		{"DELETE /api/queue", a.clearQueue},
		{"DELETE /api/queue/{id}", a.removeFromQueue},
		{"POST /api/queue/reorder", a.reorderQueue},

		{"GET /api/eq", a.getEqualizer},
		{"GET /api/eq/presets", a.getPresets},
		{"PUT /api/eq/bands/{index}", a.setBand},
		{"PUT /api/eq/preset", a.setPreset},
		{"POST /api/eq/reset", a.resetEqualizer},
		{"PUT /api/eq/hall", a.setHall},
		{"PUT /api/eq/master", a.setMaster},

		{"POST /api/download", a.startDownload},
		{"GET /api/download", a.getDownload},
		{"GET /api/downloads", a.listDownloads},

		{"GET /api/search", a.search},

		{"GET /api/now-playing", a.getNowPlaying},
		{"POST /api/transport/{action}", a.transport},

		{"GET /api/events", a.hub.ServeHTTP},
	}
	for _, r := range a.routes {
		a.mux.HandleFunc(r.pattern, r.handler)
	}

	a.unsubs = append(a.unsubs,
		opts.Playback.Subscribe(func(s models.PlaybackState) { a.hub.Publish("state", s) }),
		opts.Queue.Subscribe(func(c queue.Change) {
			a.hub.Publish("queue", queueResponse{Tracks: c.Tracks, Version: c.Version})
		}),
		opts.Equalizer.Subscribe(func(s models.EqualizerState) { a.hub.Publish("eq", s) }),
		opts.Downloads.Subscribe(func(job *models.DownloadJob) { a.hub.Publish("download", job) }),
	)
	return a
}

// Routes implements [Handler].
func (a *API) Routes() []string {
	patterns := make([]string, len(a.routes))
	for i, r := range a.routes {
		patterns[i] = r.pattern
	}
	return patterns
}

// ServeHTTP implements [http.Handler].
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Close detaches the API from the core and disconnects event clients.
func (a *API) Close() {
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil
	a.hub.Close()
}

// command adapts a fire-and-forget engine command; the response is the state afterwards.
func (a *API) command(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn()
		writeJSON(w, http.StatusOK, a.opts.Playback.State())
	}
}

func (a *API) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.opts.Playback.State())
}

type playRequest struct {
	Track  *models.Track  `json:"track,omitempty"`
	Tracks []models.Track `json:"tracks,omitempty"`
	Start  int            `json:"start,omitempty"`
}

type trackResponse struct {
	Track models.Track         `json:"track"`
	State models.PlaybackState `json:"state"`
}

// play resolves and plays one track, or plays tracks[start] and queues the rest.
func (a *API) play(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}

	var (
		track models.Track
		err   error
	)
	switch {
	case len(req.Tracks) > 0:
		track, err = a.opts.Requests.PlayAll(r.Context(), nil, req.Tracks, req.Start)
	case req.Track != nil:
		track, err = a.opts.Requests.Play(r.Context(), nil, *req.Track)
	default:
		err = fmt.Errorf("%w: track or tracks", shared.ErrMissingArgument)
	}
	if err != nil {
		fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trackResponse{Track: track, State: a.opts.Playback.State()})
}

func (a *API) seek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position *float64 `json:"position"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if req.Position == nil {
		fail(w, fmt.Errorf("%w: position", shared.ErrMissingArgument))
		return
	}
	if err := a.opts.Playback.Seek(*req.Position); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.opts.Playback.State())
}

// loop sets looping when "enabled" is given and toggles it otherwise.
func (a *API) loop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}

	if req.Enabled != nil {
		a.opts.Playback.SetLoop(*req.Enabled)
	} else {
		a.opts.Playback.ToggleLoop()
	}
	writeJSON(w, http.StatusOK, a.opts.Playback.State())
}

type queueResponse struct {
	Tracks  []models.Track `json:"tracks"`
	Version uint64         `json:"version"`
}

func (a *API) queueState() queueResponse {
	tracks := a.opts.Queue.Tracks()
	if tracks == nil {
		tracks = []models.Track{}
	}
	return queueResponse{Tracks: tracks, Version: a.opts.Queue.Version()}
}

func (a *API) getQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.queueState())
}

// enqueue resolves the track first, then appends it or, with "next", puts it at the head.
func (a *API) enqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Track *models.Track `json:"track"`
		Next  bool          `json:"next"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if req.Track == nil {
		fail(w, fmt.Errorf("%w: track", shared.ErrMissingArgument))
		return
	}

	add := a.opts.Requests.Enqueue
	if req.Next {
		add = a.opts.Requests.EnqueueNext
	}
	if _, err := add(r.Context(), nil, *req.Track); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.queueState())
}

func (a *API) replaceQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tracks []models.Track `json:"tracks"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	for _, t := range req.Tracks {
		if err := t.Validate(); err != nil {
			fail(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
			return
		}
	}
	a.opts.Queue.Replace(req.Tracks)
	writeJSON(w, http.StatusOK, a.queueState())
}

func (a *API) clearQueue(w http.ResponseWriter, r *http.Request) {
	a.opts.Queue.Clear()
	writeJSON(w, http.StatusOK, a.queueState())
}

func (a *API) removeFromQueue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !a.opts.Queue.Remove(id) {
		fail(w, fmt.Errorf("%w: %s is not queued", shared.ErrTrackNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, a.queueState())
}

func (a *API) reorderQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From *int `json:"from"`
		To   *int `json:"to"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if req.From == nil || req.To == nil {
		fail(w, fmt.Errorf("%w: from and to", shared.ErrMissingArgument))
		return
	}
	if err := a.opts.Queue.Reorder(*req.From, *req.To); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.queueState())
}

func (a *API) getEqualizer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.opts.Equalizer.State())
}

func (a *API) getPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dsp.Presets())
}

func (a *API) setBand(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		fail(w, fmt.Errorf("%w: band index %q", shared.ErrInvalidArgument, r.PathValue("index")))
		return
	}

	var req struct {
		Gain *float64 `json:"gain"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if req.Gain == nil {
		fail(w, fmt.Errorf("%w: gain", shared.ErrMissingArgument))
		return
	}

	if err := a.opts.Equalizer.SetBand(index, *req.Gain); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.opts.Equalizer.State())
}

func (a *API) setPreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if err := a.opts.Equalizer.SetPreset(req.Name); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.opts.Equalizer.State())
}

func (a *API) resetEqualizer(w http.ResponseWriter, r *http.Request) {
	a.opts.Equalizer.ResetToFlat()
	writeJSON(w, http.StatusOK, a.opts.Equalizer.State())
}

func (a *API) setHall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if req.Enabled == nil {
		fail(w, fmt.Errorf("%w: enabled", shared.ErrMissingArgument))
		return
	}
	a.opts.Equalizer.SetHallEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, a.opts.Equalizer.State())
}

func (a *API) setMaster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Gain *float64 `json:"gain"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if req.Gain == nil {
		fail(w, fmt.Errorf("%w: gain", shared.ErrMissingArgument))
		return
	}
	a.opts.Equalizer.SetMasterGain(*req.Gain)
	writeJSON(w, http.StatusOK, a.opts.Equalizer.State())
}

// startDownload exports the given track, or the current one, in the background.
//
// The response is sent once the job holds the slot; failures to claim it are returned directly.
func (a *API) startDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Track *models.Track `json:"track"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}

	track := req.Track
	if track == nil {
		track = a.opts.Playback.State().Current
	}
	if track == nil {
		fail(w, shared.ErrNoTrack)
		return
	}

	progress := make(chan tasks.ProgressUpdate, 8)
	errc := make(chan error, 1)
	go func(t models.Track) {
		_, err := a.opts.Downloads.Download(a.opts.BaseContext, progress, t)
		if err != nil {
			a.logger.Warn("download failed", "track", t.String(), "error", err)
		}
		errc <- err
	}(*track)

	select {
	case update := <-progress:
		if job, ok := update.Data.(models.DownloadJob); ok {
			writeJSON(w, http.StatusAccepted, job)
			return
		}
		job, _ := a.opts.Downloads.Current()
		writeJSON(w, http.StatusAccepted, job)
	case err := <-errc:
		if err != nil {
			fail(w, err)
			return
		}
		job, _ := a.opts.Downloads.Current()
		writeJSON(w, http.StatusOK, job)
	case <-r.Context().Done():
	}
}

func (a *API) getDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := a.opts.Downloads.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type downloadRecord struct {
	ID        string    `json:"id"`
	TrackID   string    `json:"trackId"`
	Name      string    `json:"name"`
	Path      string    `json:"path,omitempty"`
	Status    string    `json:"status"`
	Tagged    bool      `json:"tagged"`
	SizeBytes int64     `json:"sizeBytes"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a *API) listDownloads(w http.ResponseWriter, r *http.Request) {
	if a.opts.History == nil {
		fail(w, fmt.Errorf("%w: download history is disabled", shared.ErrNotImplemented))
		return
	}

	criteria := map[string]any{"limit": 50}
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 {
			fail(w, fmt.Errorf("%w: limit %q", shared.ErrInvalidArgument, s))
			return
		}
		criteria["limit"] = limit
	}
	if status := r.URL.Query().Get("status"); status != "" {
		criteria["status"] = status
	}

	entries, err := a.opts.History.List(criteria)
	if err != nil {
		fail(w, err)
		return
	}

	records := make([]downloadRecord, 0, len(entries))
	for _, d := range entries {
		records = append(records, downloadRecord{
			ID:        d.ID(),
			TrackID:   d.TrackID(),
			Name:      d.Name(),
			Path:      d.Path(),
			Status:    string(d.Status()),
			Tagged:    d.Tagged(),
			SizeBytes: d.SizeBytes(),
			Error:     d.Error(),
			CreatedAt: d.CreatedAt(),
		})
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	if a.opts.Catalog == nil {
		fail(w, fmt.Errorf("%w: no catalog configured", shared.ErrNotImplemented))
		return
	}

	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		fail(w, fmt.Errorf("%w: q", shared.ErrMissingArgument))
		return
	}

	page, err := intParam(q.Get("page"), 0)
	if err != nil {
		fail(w, err)
		return
	}
	limit, err := intParam(q.Get("limit"), 10)
	if err != nil {
		fail(w, err)
		return
	}

	result, err := a.opts.Catalog.SearchTracks(r.Context(), query, page, min(limit, 50))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) getNowPlaying(w http.ResponseWriter, r *http.Request) {
	np, ok := a.opts.Media.NowPlaying()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, np)
}

func (a *API) transport(w http.ResponseWriter, r *http.Request) {
	if err := a.opts.Media.Trigger(r.PathValue("action")); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.opts.Playback.State())
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", shared.ErrInvalidArgument, s)
	}
	return n, nil
}
