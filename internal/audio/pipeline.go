package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
)

const (
	// progressEvery is the number of frames between progress events (250ms).
	progressEvery = 12
	fadeFrames    = 8
	streamBuffer  = 50
)

var errUnderrun = errors.New("decoder underrun")

type request struct {
	token  uint64
	track  models.Track
	offset float64
}

// Pipeline decodes the loaded track and emits processed PCM frames at real-time rate.
//
// Control methods never block: they record the desired state and wake the run loop.
// Lifecycle changes are reported on [Pipeline.Events], tagged with the token passed to Load.
type Pipeline struct {
	decoder Decoder
	logger  *log.Logger
	frameCh chan []int16
	events  chan Event
	wake    chan struct{}

	mu        sync.Mutex
	processor Processor
	pending   *request
	paused    bool
	stopped   bool
	current   request
	position  time.Duration
}

// NewPipeline creates a pipeline reading through decoder.
func NewPipeline(decoder Decoder, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Pipeline{
		decoder: decoder,
		logger:  shared.WithLogger(logger, "component", "pipeline"),
		frameCh: make(chan []int16, 100),
		events:  make(chan Event, 32),
		wake:    make(chan struct{}, 1),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each). Frames are dropped when it is full.
func (p *Pipeline) Frames() <-chan []int16 { return p.frameCh }

// Events returns lifecycle events for loaded tracks.
func (p *Pipeline) Events() <-chan Event { return p.events }

// Connect routes every frame through proc. A pipeline accepts a single connection.
func (p *Pipeline) Connect(proc Processor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.processor != nil {
		return shared.ErrAlreadyAttached
	}
	p.processor = proc
	return nil
}

// Load replaces whatever is playing with track, starting from zero.
func (p *Pipeline) Load(token uint64, track models.Track) error {
	if !track.Playable() {
		return fmt.Errorf("%w: %s", shared.ErrNotPlayable, track.ID)
	}

	p.mu.Lock()
	p.pending = &request{token: token, track: track}
	p.paused = false
	p.stopped = false
	p.mu.Unlock()
	p.signal()
	return nil
}

// Pause holds the current position. Decoding continues to buffer.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

// Resume continues from the held position.
func (p *Pipeline) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	p.signal()
}

// Seek restarts decoding of the current track at seconds. Works after the track ended.
func (p *Pipeline) Seek(seconds float64) {
	p.mu.Lock()
	if p.current.track.ID != "" || p.pending != nil {
		req := p.current
		if p.pending != nil {
			req = *p.pending
		}
		req.offset = max(0, seconds)
		p.pending = &req
		p.position = time.Duration(req.offset * float64(time.Second))
	}
	p.mu.Unlock()
	p.signal()
}

// Stop releases the current stream.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.pending = nil
	p.mu.Unlock()
	p.signal()
}

// Status returns the loaded track and its position.
func (p *Pipeline) Status() (track models.Track, position time.Duration, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.track, p.position, p.paused
}

func (p *Pipeline) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// take returns the pending request and current flags, clearing the request.
func (p *Pipeline) take() (*request, bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	req := p.pending
	p.pending = nil
	if req != nil {
		p.current = *req
	}
	stopped := p.stopped
	p.stopped = false
	return req, p.paused, stopped
}

// Run drives playback until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	var cur *stream
	defer func() {
		if cur != nil {
			cur.close()
		}
	}()

	for {
		req, paused, stopped := p.take()
		if stopped && cur != nil {
			cur.close()
			cur = nil
		}
		if req != nil {
			if cur != nil {
				cur.close()
				cur = nil
			}
			s, err := p.open(ctx, *req)
			if err != nil {
				p.logger.Error("failed to open source", "track", req.track.ID, "err", err)
				p.emit(ctx, Event{Token: req.token, Kind: EventFailed, Err: err})
			} else {
				cur = s
			}
		}

		if cur == nil || paused {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			continue
		case <-ticker.C:
		}

		frame, err := cur.next()
		switch {
		case errors.Is(err, errUnderrun):
			continue
		case errors.Is(err, io.EOF):
			p.emit(ctx, Event{Token: cur.req.token, Kind: EventEnded, Position: cur.position().Seconds(), Duration: cur.req.track.Duration})
			cur.close()
			cur = nil
			continue
		case err != nil:
			p.logger.Error("decode failed", "track", cur.req.track.ID, "err", err)
			p.emit(ctx, Event{Token: cur.req.token, Kind: EventFailed, Position: cur.position().Seconds(), Err: err})
			cur.close()
			cur = nil
			continue
		}

		if !cur.started {
			cur.started = true
			p.emit(ctx, Event{Token: cur.req.token, Kind: EventStarted, Position: cur.req.offset, Duration: cur.req.track.Duration})
		}

		frame = cur.ramp.Apply(p.process(frame))
		cur.played++
		p.setPosition(cur.position())

		if cur.played%progressEvery == 0 {
			p.tryEmit(Event{Token: cur.req.token, Kind: EventProgress, Position: cur.position().Seconds(), Duration: cur.req.track.Duration})
		}

		select {
		case p.frameCh <- frame:
		default:
		}
	}
}

func (p *Pipeline) process(frame []int16) []int16 {
	p.mu.Lock()
	proc := p.processor
	p.mu.Unlock()
	if proc == nil {
		return frame
	}
	return proc.Process(frame)
}

func (p *Pipeline) setPosition(d time.Duration) {
	p.mu.Lock()
	p.position = d
	p.mu.Unlock()
}

// emit delivers lifecycle events; they are never dropped.
func (p *Pipeline) emit(ctx context.Context, ev Event) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}

// tryEmit drops the event when the consumer is behind.
func (p *Pipeline) tryEmit(ev Event) {
	select {
	case p.events <- ev:
	default:
	}
}

func (p *Pipeline) open(ctx context.Context, req request) (*stream, error) {
	sctx, cancel := context.WithCancel(ctx)
	rc, err := p.decoder.Open(sctx, req.track.Src, req.offset)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", shared.ErrPlaybackStart, err)
	}

	s := &stream{
		req:    req,
		rc:     rc,
		cancel: cancel,
		frames: make(chan []int16, streamBuffer),
		done:   make(chan struct{}),
		ramp:   NewRamp(fadeFrames),
	}
	p.setPosition(s.position())
	go s.read()
	return s, nil
}

// stream is one decoder run, read ahead by a goroutine.
type stream struct {
	req     request
	rc      io.ReadCloser
	cancel  context.CancelFunc
	frames  chan []int16
	done    chan struct{}
	err     error
	started bool
	played  int
	ramp    *Ramp
	once    sync.Once
}

func (s *stream) read() {
	defer close(s.frames)
	buf := make([]byte, FrameBytes)
	for {
		frame, err := ReadFrame(s.rc, buf)
		if err != nil {
			s.err = err
			return
		}
		select {
		case s.frames <- frame:
		case <-s.done:
			s.err = io.ErrClosedPipe
			return
		}
	}
}

// next returns a buffered frame without blocking.
func (s *stream) next() ([]int16, error) {
	select {
	case frame, ok := <-s.frames:
		if !ok {
			if s.err == nil {
				return nil, io.EOF
			}
			return nil, s.err
		}
		return frame, nil
	default:
		return nil, errUnderrun
	}
}

func (s *stream) position() time.Duration {
	return time.Duration(s.req.offset*float64(time.Second)) + time.Duration(s.played)*FrameDuration
}

func (s *stream) close() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
		s.rc.Close()
	})
}
