package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/resolver"
	"github.com/desertthunder/rolx/internal/shared"
)

// Resolver turns catalog tracks into playable ones.
type Resolver interface {
	Resolve(ctx context.Context, track models.Track) resolver.Result
	ResolveAll(ctx context.Context, tracks []models.Track) []resolver.Result
}

// Player starts playback of a resolved track unless it has moved on since generation was read.
type Player interface {
	Generation() uint64
	PlayIfCurrent(generation uint64, track models.Track) error
}

// Queue receives resolved tracks.
type Queue interface {
	Enqueue(t models.Track)
	EnqueueNext(t models.Track)
	Replace(ts []models.Track)
}

// Session serializes play requests so only the most recent one reaches the player.
//
// Each request resolves before it plays. When a newer request starts in the meantime, or the
// player loads something else (a skip or the queue advancing), the older result is discarded
// with [shared.ErrSuperseded].
type Session struct {
	resolver Resolver
	player   Player
	queue    Queue
	logger   *log.Logger

	mu     sync.Mutex
	latest uint64
}

// NewSession creates a Session.
func NewSession(r Resolver, p Player, q Queue, logger *log.Logger) *Session {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Session{
		resolver: r,
		player:   p,
		queue:    q,
		logger:   shared.WithLogger(logger, "component", "session"),
	}
}

// Play resolves track and plays it if no newer request has started.
func (s *Session) Play(ctx context.Context, progress chan<- ProgressUpdate, track models.Track) (models.Track, error) {
	req := s.begin()
	gen := s.player.Generation()

	sendProgress(progress, resolveUpdate(1, 1, track))
	res := s.resolver.Resolve(ctx, track)
	if !res.Resolved() {
		return res.Track, fmt.Errorf("%w: %s", shared.ErrNotPlayable, track.String())
	}

	if err := s.playIfLatest(req, gen, res.Track); err != nil {
		return res.Track, err
	}
	sendProgress(progress, playbackUpdate(res.Track))
	return res.Track, nil
}

// PlayAll plays tracks[start] and then replaces the queue with the tracks after it.
//
// The chosen track starts as soon as it resolves; the following tracks are resolved afterwards and
// those that cannot be resolved are left out of the queue. A newer request started in the
// meantime keeps the queue untouched.
func (s *Session) PlayAll(ctx context.Context, progress chan<- ProgressUpdate, tracks []models.Track, start int) (models.Track, error) {
	if start < 0 || start >= len(tracks) {
		return models.Track{}, fmt.Errorf("%w: start %d of %d tracks", shared.ErrInvalidIndex, start, len(tracks))
	}
	req := s.begin()
	gen := s.player.Generation()
	total := len(tracks) - start

	sendProgress(progress, resolveUpdate(1, total, tracks[start]))
	first := s.resolver.Resolve(ctx, tracks[start])
	if !first.Resolved() {
		return first.Track, fmt.Errorf("%w: %s", shared.ErrNotPlayable, first.Track.String())
	}
	if err := s.playIfLatest(req, gen, first.Track); err != nil {
		return first.Track, err
	}
	sendProgress(progress, playbackUpdate(first.Track))

	following := tracks[start+1:]
	for i, t := range following {
		sendProgress(progress, resolveUpdate(i+2, total, t))
	}
	var results []resolver.Result
	if len(following) > 0 {
		results = s.resolver.ResolveAll(ctx, following)
	}

	siblings := make([]models.Track, 0, len(results))
	for _, res := range results {
		if !res.Resolved() {
			s.logger.Warn("leaving unresolved track out of the queue", "id", res.Track.ID, "track", res.Track.String())
			continue
		}
		siblings = append(siblings, res.Track)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req != s.latest {
		s.logger.Debug("discarding queue of superseded play-all request", "id", first.Track.ID)
		return first.Track, nil
	}
	s.queue.Replace(siblings)

	sendProgress(progress, siblingsQueuedUpdate(len(siblings)))
	return first.Track, nil
}

// Enqueue resolves track and appends it to the queue.
func (s *Session) Enqueue(ctx context.Context, progress chan<- ProgressUpdate, track models.Track) (models.Track, error) {
	return s.add(ctx, progress, track, false)
}

// EnqueueNext resolves track and puts it at the head of the queue.
func (s *Session) EnqueueNext(ctx context.Context, progress chan<- ProgressUpdate, track models.Track) (models.Track, error) {
	return s.add(ctx, progress, track, true)
}

func (s *Session) add(ctx context.Context, progress chan<- ProgressUpdate, track models.Track, next bool) (models.Track, error) {
	sendProgress(progress, resolveUpdate(1, 1, track))
	res := s.resolver.Resolve(ctx, track)
	if !res.Resolved() {
		return res.Track, fmt.Errorf("%w: %s", shared.ErrNotPlayable, track.String())
	}

	if next {
		s.queue.EnqueueNext(res.Track)
	} else {
		s.queue.Enqueue(res.Track)
	}
	sendProgress(progress, queuedUpdate(1, 1, res.Track, next))
	return res.Track, nil
}

func (s *Session) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	return s.latest
}

func (s *Session) playIfLatest(req, gen uint64, track models.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req != s.latest {
		s.logger.Debug("discarding superseded play request", "id", track.ID)
		return shared.ErrSuperseded
	}
	if err := s.player.PlayIfCurrent(gen, track); err != nil {
		if errors.Is(err, shared.ErrSuperseded) {
			s.logger.Debug("discarding play request overtaken by the player", "id", track.ID)
		}
		return err
	}
	return nil
}
