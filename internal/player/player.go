// package player implements the playback engine: a state machine over an
// audio [Output] that advances through the queue when a track ends.
package player

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/audio"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
)

// DefaultSkipPreviousThreshold is how far into a track skip-previous restarts it instead of doing nothing.
const DefaultSkipPreviousThreshold = 3.0

// Output plays one track at a time and reports lifecycle events tagged with the load token.
//
// Implementations must not block in any method.
type Output interface {
	Load(token uint64, track models.Track) error
	Pause()
	Resume()
	Seek(seconds float64)
	Stop()
	Events() <-chan audio.Event
}

// Graph is the signal graph the output is routed through on first playback.
type Graph interface {
	Attach(src audio.Source) error
	Attached() bool
}

// Queue is where the engine takes the next track from.
type Queue interface {
	Pop() (models.Track, bool)
}

// Listener receives every published playback state.
type Listener func(models.PlaybackState)

// Options configures an [Engine].
type Options struct {
	Output  Output
	Queue   Queue
	Graph   Graph
	Session MediaSession
	// AppName is the album shown in now-playing metadata for tracks without one.
	AppName               string
	SkipPreviousThreshold float64
	Logger                *log.Logger
}

// Engine owns the current track and drives the output.
type Engine struct {
	output    Output
	queue     Queue
	graph     Graph
	session   MediaSession
	appName   string
	threshold float64
	logger    *log.Logger

	mu     sync.Mutex
	state  models.PlaybackState
	token  uint64
	failed bool
	// held is a pause requested while loading, applied once the output starts.
	held bool

	notifyMu  sync.Mutex
	delivered uint64
	listeners map[int]Listener
	nextID    int
}

// New creates an idle engine.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.SkipPreviousThreshold <= 0 {
		opts.SkipPreviousThreshold = DefaultSkipPreviousThreshold
	}
	if opts.AppName == "" {
		opts.AppName = "ROL Music"
	}
	if opts.Session == nil {
		opts.Session = noopSession{}
	}

	e := &Engine{
		output:    opts.Output,
		queue:     opts.Queue,
		graph:     opts.Graph,
		session:   opts.Session,
		appName:   opts.AppName,
		threshold: opts.SkipPreviousThreshold,
		logger:    shared.WithLogger(opts.Logger, "component", "player"),
		listeners: make(map[int]Listener),
	}
	e.session.SetActionHandlers(e)
	return e
}

// Run consumes output events until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	events := e.output.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.HandleEvent(ev)
		}
	}
}

// Play makes track current and starts loading it. Tracks without a source are rejected.
func (e *Engine) Play(track models.Track) error {
	return e.play(track, 0, false)
}

// Generation identifies the current load. It changes whenever the engine loads a track, advances
// through the queue or stops.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

// PlayIfCurrent plays track only when nothing else was loaded since generation was read, and
// returns [shared.ErrSuperseded] otherwise.
func (e *Engine) PlayIfCurrent(generation uint64, track models.Track) error {
	return e.play(track, generation, true)
}

func (e *Engine) play(track models.Track, generation uint64, guarded bool) error {
	if !track.Playable() {
		return fmt.Errorf("%w: %s", shared.ErrNotPlayable, track.ID)
	}

	e.mu.Lock()
	if guarded && e.token != generation {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", shared.ErrSuperseded, track.ID)
	}
	e.attachGraph()
	e.load(track)
	state := e.commit()
	e.mu.Unlock()

	e.publish(state)
	return nil
}

// TogglePlay pauses when playing or loading and resumes otherwise.
func (e *Engine) TogglePlay() {
	e.mu.Lock()
	pause := e.state.Playing || (e.state.Status == models.StatusLoading && !e.failed && !e.held)
	e.mu.Unlock()

	if pause {
		e.Pause()
		return
	}
	e.Resume()
}

// Pause holds playback. While a track is loading the pause is remembered and applied when it
// starts. Otherwise it is a no-op unless a track is playing.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.state.Status == models.StatusLoading && !e.failed {
		e.held = true
		e.mu.Unlock()
		return
	}
	if e.state.Status != models.StatusPlaying {
		e.mu.Unlock()
		return
	}
	e.output.Pause()
	e.state.Status = models.StatusPaused
	e.state.Playing = false
	state := e.commit()
	e.mu.Unlock()

	e.publish(state)
}

// Resume continues a paused track, or retries a track whose start failed.
func (e *Engine) Resume() {
	e.mu.Lock()
	switch {
	case e.state.Current == nil:
		e.mu.Unlock()
		return
	case e.failed:
		e.logger.Info("retrying playback", "track", e.state.Current.ID)
		e.load(*e.state.Current)
	case e.held:
		e.held = false
		e.mu.Unlock()
		return
	case e.state.Status == models.StatusPaused:
		e.output.Resume()
		e.state.Status = models.StatusPlaying
		e.state.Playing = true
	default:
		e.mu.Unlock()
		return
	}
	state := e.commit()
	e.mu.Unlock()

	e.publish(state)
}

// Seek moves to seconds, clamped to [0, duration]. Play/pause status is unchanged.
func (e *Engine) Seek(seconds float64) error {
	e.mu.Lock()
	if e.state.Current == nil {
		e.mu.Unlock()
		return shared.ErrNoTrack
	}
	e.seekLocked(seconds)
	state := e.commit()
	e.mu.Unlock()

	e.publish(state)
	return nil
}

// SetLoop turns single-track looping on or off.
func (e *Engine) SetLoop(on bool) {
	e.mu.Lock()
	e.state.Loop = on
	state := e.commit()
	e.mu.Unlock()
	e.publish(state)
}

// ToggleLoop flips single-track looping and returns the new value.
func (e *Engine) ToggleLoop() bool {
	e.mu.Lock()
	e.state.Loop = !e.state.Loop
	on := e.state.Loop
	state := e.commit()
	e.mu.Unlock()

	e.publish(state)
	return on
}

// SkipNext behaves like the current track ending with looping off.
func (e *Engine) SkipNext() {
	e.mu.Lock()
	e.advance()
	state := e.commit()
	e.mu.Unlock()
	e.publish(state)
}

// SkipPrevious restarts the current track once it has played past the threshold.
// There is no history, so earlier than that it does nothing.
func (e *Engine) SkipPrevious() {
	e.mu.Lock()
	if e.state.Current == nil || e.state.Progress <= e.threshold {
		e.mu.Unlock()
		return
	}
	e.seekLocked(0)
	state := e.commit()
	e.mu.Unlock()
	e.publish(state)
}

// Stop clears the current track and returns to idle. The queue is left alone.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.output.Stop()
	e.token++
	e.idle()
	state := e.commit()
	e.mu.Unlock()
	e.publish(state)
}

// State returns a snapshot of the engine.
func (e *Engine) State() models.PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// Subscribe registers fn for future states and returns a func that removes it.
// Listeners must not call back into the engine synchronously.
func (e *Engine) Subscribe(fn Listener) (unsubscribe func()) {
	e.notifyMu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.notifyMu.Unlock()

	return func() {
		e.notifyMu.Lock()
		delete(e.listeners, id)
		e.notifyMu.Unlock()
	}
}

// HandleEvent applies one output event. Events for anything but the latest load are ignored.
func (e *Engine) HandleEvent(ev audio.Event) {
	e.mu.Lock()
	if ev.Token != e.token || e.state.Current == nil {
		e.mu.Unlock()
		e.logger.Debug("ignored stale output event", "kind", ev.Kind, "token", ev.Token)
		return
	}

	var states []models.PlaybackState
	switch ev.Kind {
	case audio.EventStarted:
		e.failed = false
		e.state.Error = ""
		if ev.Duration > 0 {
			e.state.Duration = ev.Duration
		}
		switch {
		case e.state.Status == models.StatusLoading && e.held:
			e.held = false
			e.output.Pause()
			e.state.Status = models.StatusPaused
		case e.state.Status == models.StatusLoading:
			e.state.Status = models.StatusPlaying
			e.state.Playing = true
		}
		e.setProgress(ev.Position)
	case audio.EventProgress:
		if e.state.Duration <= 0 && ev.Duration > 0 {
			e.state.Duration = ev.Duration
		}
		e.setProgress(ev.Position)
	case audio.EventEnded:
		e.state.Status = models.StatusEnded
		e.state.Playing = false
		e.setProgress(e.state.Duration)
		states = append(states, e.commit())
		e.onEnded()
	case audio.EventFailed:
		e.startFailed(ev.Err)
	}
	states = append(states, e.commit())
	e.mu.Unlock()

	for _, s := range states {
		e.publish(s)
	}
}

// load starts track under a new token. Callers hold mu.
func (e *Engine) load(track models.Track) {
	e.token++
	current := track
	e.state.Current = &current
	e.state.Status = models.StatusLoading
	e.state.Playing = false
	e.state.Progress = 0
	e.state.Duration = track.Duration
	e.state.Error = ""
	e.failed = false
	e.held = false

	e.session.SetMetadata(e.nowPlaying(track))
	e.session.SetActionHandlers(e)

	if err := e.output.Load(e.token, track); err != nil {
		e.startFailed(err)
	}
}

// onEnded loops, advances, or goes idle. Callers hold mu.
func (e *Engine) onEnded() {
	if e.state.Loop && e.state.Current != nil {
		e.output.Seek(0)
		e.output.Resume()
		e.state.Progress = 0
		e.state.Status = models.StatusPlaying
		e.state.Playing = true
		return
	}
	e.advance()
}

// advance loads the next playable queued track or goes idle. Callers hold mu.
func (e *Engine) advance() {
	if e.queue != nil {
		for {
			next, ok := e.queue.Pop()
			if !ok {
				break
			}
			if !next.Playable() {
				e.logger.Warn("skipping unplayable queued track", "track", next.ID, "title", next.Title)
				continue
			}
			e.load(next)
			return
		}
	}

	e.output.Stop()
	e.token++
	e.idle()
}

func (e *Engine) idle() {
	e.state.Status = models.StatusIdle
	e.state.Current = nil
	e.state.Playing = false
	e.state.Progress = 0
	e.state.Duration = 0
	e.state.Error = ""
	e.failed = false
	e.held = false
}

// startFailed records a start failure. The track stays current so it can be retried.
func (e *Engine) startFailed(err error) {
	id := ""
	if e.state.Current != nil {
		id = e.state.Current.ID
	}
	e.logger.Error("playback failed to start", "track", id, "err", err)

	e.failed = true
	e.state.Status = models.StatusLoading
	e.state.Playing = false
	if err != nil {
		e.state.Error = err.Error()
	} else {
		e.state.Error = shared.ErrPlaybackStart.Error()
	}
}

func (e *Engine) seekLocked(seconds float64) {
	target := max(0, seconds)
	if e.state.Duration > 0 {
		target = min(target, e.state.Duration)
	}
	e.output.Seek(target)
	e.state.Progress = target
}

func (e *Engine) setProgress(pos float64) {
	pos = max(0, pos)
	if e.state.Duration > 0 {
		pos = min(pos, e.state.Duration)
	}
	e.state.Progress = pos
}

// attachGraph routes the output through the graph on first playback. Callers hold mu.
func (e *Engine) attachGraph() {
	if e.graph == nil || e.graph.Attached() {
		return
	}
	src, ok := e.output.(audio.Source)
	if !ok {
		return
	}
	if err := e.graph.Attach(src); err != nil {
		e.logger.Warn("signal graph not attached", "err", err)
	}
}

// commit bumps the publish version and returns the state to publish. Callers hold mu.
func (e *Engine) commit() models.PlaybackState {
	e.state.Version++
	return e.snapshot()
}

func (e *Engine) snapshot() models.PlaybackState {
	s := e.state
	if s.Current != nil {
		c := *s.Current
		s.Current = &c
	}
	return s
}

func (e *Engine) publish(state models.PlaybackState) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	if state.Version <= e.delivered {
		return
	}
	e.delivered = state.Version
	for _, fn := range e.listeners {
		fn(state)
	}
}
