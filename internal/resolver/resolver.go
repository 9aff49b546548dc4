package resolver

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/services"
	"github.com/desertthunder/rolx/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Layer names the step that produced a resolution.
type Layer int

const (
	LayerNone Layer = iota
	LayerPlayable
	LayerCache
	LayerDirect
	LayerSearch
)

func (l Layer) String() string {
	switch l {
	case LayerPlayable:
		return "playable"
	case LayerCache:
		return "cache"
	case LayerDirect:
		return "direct"
	case LayerSearch:
		return "search"
	default:
		return "none"
	}
}

// Result is the outcome of a resolution. Track is the input when Layer is [LayerNone].
type Result struct {
	Track models.Track
	Layer Layer
}

// Resolved reports whether the result can be played.
func (r Result) Resolved() bool {
	return r.Track.Playable()
}

// Cache stores resolved tracks by catalog id.
type Cache interface {
	Lookup(id string) (*models.Track, bool)
	Store(track models.Track) error
}

// Options configures a [Resolver]. Zero values take the defaults below.
type Options struct {
	Catalog     services.Catalog
	Cache       Cache
	Timeout     time.Duration // default 10s
	MaxRetries  int
	Cooldown    time.Duration // first retry delay, default 200ms
	Exponent    float64       // backoff multiplier, default 4
	RateLimit   float64       // catalog calls per second, <= 0 is unlimited
	SearchLimit int           // default 5
	Concurrency int           // ResolveAll workers, default 4
	Logger      *log.Logger
}

// OptionsFromConfig maps the [resolver] config section onto Options.
func OptionsFromConfig(cfg shared.ResolverConfig) Options {
	return Options{
		Timeout:     shared.Seconds(cfg.TimeoutSeconds),
		MaxRetries:  cfg.MaxRetries,
		Cooldown:    shared.Seconds(cfg.RetryCooldown),
		Exponent:    cfg.RetryExponent,
		RateLimit:   cfg.RateLimit,
		SearchLimit: cfg.SearchLimit,
		Concurrency: cfg.Concurrency,
	}
}

// Resolver resolves tracks against a catalog.
type Resolver struct {
	opts    Options
	limiter *rate.Limiter
	group   singleflight.Group
	logger  *log.Logger
}

type outcome struct {
	track models.Track
	layer Layer
}

// New creates a Resolver.
func New(opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 200 * time.Millisecond
	}
	if opts.Exponent < 1 {
		opts.Exponent = 4
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 5
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &Resolver{
		opts:    opts,
		limiter: rate.NewLimiter(limit, max(1, int(math.Ceil(opts.RateLimit)))),
		logger:  shared.WithLogger(opts.Logger, "component", "resolver"),
	}
}

// Resolve returns a playable version of track when any layer can produce one.
//
// The returned track is track merged with the catalog data; track itself is never modified.
func (r *Resolver) Resolve(ctx context.Context, track models.Track) Result {
	if track.Playable() {
		return Result{Track: track, Layer: LayerPlayable}
	}

	key := flightKey(track)
	if key == "" {
		r.logger.Warn("cannot resolve track without id or title", "track", track.String())
		return Result{Track: track, Layer: LayerNone}
	}

	ch := r.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.Timeout)
		defer cancel()
		return r.lookup(ctx, track), nil
	})

	select {
	case <-ctx.Done():
		r.logger.Debug("resolution abandoned", "id", track.ID, "error", ctx.Err())
		return Result{Track: track, Layer: LayerNone}
	case res := <-ch:
		found := res.Val.(outcome)
		if found.layer == LayerNone {
			return Result{Track: track, Layer: LayerNone}
		}
		return Result{Track: track.Merge(found.track), Layer: found.layer}
	}
}

// ResolveAll resolves tracks concurrently and returns results in input order.
func (r *Resolver) ResolveAll(ctx context.Context, tracks []models.Track) []Result {
	results := make([]Result, len(tracks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, t := range tracks {
		g.Go(func() error {
			results[i] = r.Resolve(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func flightKey(t models.Track) string {
	if id := strings.TrimSpace(t.ID); id != "" {
		return "id:" + id
	}
	if t.SearchQuery() == "" {
		return ""
	}
	return "q:" + shared.NormalizeTrackKey(t.Title, t.ArtistName)
}

func (r *Resolver) lookup(ctx context.Context, track models.Track) outcome {
	if track.ID != "" && r.opts.Cache != nil {
		if cached, ok := r.opts.Cache.Lookup(track.ID); ok && cached.Playable() {
			return outcome{track: *cached, layer: LayerCache}
		}
	}

	if r.opts.Catalog == nil {
		r.logger.Warn("resolution failed", "id", track.ID, "error", "no catalog configured")
		return outcome{}
	}

	var errs []error
	if track.ID != "" {
		found, err := withRetry(ctx, r, "fetch", func(ctx context.Context) (*models.Track, error) {
			return r.opts.Catalog.FetchTrackByID(ctx, track.ID)
		})
		switch {
		case err != nil:
			errs = append(errs, err)
		case found != nil && found.Playable():
			r.store(*found)
			return outcome{track: *found, layer: LayerDirect}
		}
	}

	if query := track.SearchQuery(); query != "" {
		page, err := withRetry(ctx, r, "search", func(ctx context.Context) (*models.SearchResult, error) {
			return r.opts.Catalog.SearchTracks(ctx, query, 0, r.opts.SearchLimit)
		})
		if err != nil {
			errs = append(errs, err)
		} else if match, ok := pickMatch(track.ID, page.Results); ok {
			r.store(match)
			return outcome{track: match, layer: LayerSearch}
		}
	}

	r.logger.Warn("resolution failed", "id", track.ID, "track", track.String(), "error", errors.Join(errs...))
	return outcome{}
}

// pickMatch prefers the result with the same id, then the first result with a source.
func pickMatch(id string, results []models.Track) (models.Track, bool) {
	if id != "" {
		for _, t := range results {
			if t.ID == id && t.Playable() {
				return t, true
			}
		}
	}
	for _, t := range results {
		if t.Playable() {
			return t, true
		}
	}
	return models.Track{}, false
}

func (r *Resolver) store(t models.Track) {
	if r.opts.Cache == nil {
		return
	}
	if err := r.opts.Cache.Store(t); err != nil {
		r.logger.Warn("failed to cache resolved track", "id", t.ID, "error", err)
	}
}

// withRetry calls fn through the rate limiter, retrying transient failures.
func withRetry[T any](ctx context.Context, r *Resolver, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var err error
	for tries := 0; tries <= r.opts.MaxRetries; tries++ {
		if tries > 0 {
			if werr := r.waitForRetry(ctx, tries-1); werr != nil {
				return zero, werr
			}
		}
		if werr := r.limiter.Wait(ctx); werr != nil {
			return zero, werr
		}

		var v T
		if v, err = fn(ctx); err == nil {
			return v, nil
		}
		if !retryable(err) {
			return zero, err
		}
		r.logger.Debug("catalog call failed", "op", op, "try", tries+1, "error", err)
	}
	return zero, err
}

func (r *Resolver) waitForRetry(ctx context.Context, tries int) error {
	cooldown := float64(r.opts.Cooldown) * math.Pow(r.opts.Exponent, float64(tries))
	timer := time.NewTimer(time.Duration(cooldown))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, shared.ErrTrackNotFound),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
