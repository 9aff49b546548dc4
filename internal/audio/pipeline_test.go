package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
)

// fakeDecoder serves frames of constant PCM instead of running ffmpeg.
type fakeDecoder struct {
	mu      sync.Mutex
	frames  int
	err     error
	offsets []float64
}

func (d *fakeDecoder) Open(_ context.Context, _ string, offset float64) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offsets = append(d.offsets, offset)
	if d.err != nil {
		return nil, d.err
	}
	var buf bytes.Buffer
	for range d.frames {
		buf.Write(SamplesToBytes(constantFrame(1000)))
	}
	return io.NopCloser(&buf), nil
}

func newTestPipeline(t *testing.T, dec Decoder) (*Pipeline, context.CancelFunc) {
	t.Helper()
	p := NewPipeline(dec, shared.NewLogger(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	t.Cleanup(cancel)
	return p, cancel
}

func waitEvent(t *testing.T, p *Pipeline, kind EventKind) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-p.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

var playable = models.Track{ID: "t1", Src: "https://cdn/t1.mp4", Duration: 0.1}

func TestPipeline(t *testing.T) {
	t.Run("plays a track to the end", func(t *testing.T) {
		p, _ := newTestPipeline(t, &fakeDecoder{frames: 5})

		if err := p.Load(7, playable); err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		started := waitEvent(t, p, EventStarted)
		if started.Token != 7 || started.Duration != 0.1 {
			t.Errorf("unexpected started event %+v", started)
		}

		ended := waitEvent(t, p, EventEnded)
		if ended.Token != 7 {
			t.Errorf("ended event has token %d", ended.Token)
		}
		if ended.Position < 0.099 || ended.Position > 0.101 {
			t.Errorf("ended at %v, want 0.1", ended.Position)
		}
	})

	t.Run("rejects unplayable tracks", func(t *testing.T) {
		p := NewPipeline(&fakeDecoder{}, shared.NewLogger(io.Discard))
		if err := p.Load(1, models.Track{ID: "x"}); !errors.Is(err, shared.ErrNotPlayable) {
			t.Errorf("expected ErrNotPlayable, got %v", err)
		}
	})

	t.Run("reports open failures", func(t *testing.T) {
		p, _ := newTestPipeline(t, &fakeDecoder{err: errors.New("no ffmpeg")})
		p.Load(3, playable)

		ev := waitEvent(t, p, EventFailed)
		if ev.Token != 3 || !errors.Is(ev.Err, shared.ErrPlaybackStart) {
			t.Errorf("unexpected failure event %+v", ev)
		}
	})

	t.Run("routes frames through the connected processor", func(t *testing.T) {
		p, _ := newTestPipeline(t, &fakeDecoder{frames: 20})

		var calls int
		var mu sync.Mutex
		err := p.Connect(ProcessorFunc(func(f []int16) []int16 {
			mu.Lock()
			calls++
			mu.Unlock()
			return f
		}))
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if err := p.Connect(ProcessorFunc(func(f []int16) []int16 { return f })); !errors.Is(err, shared.ErrAlreadyAttached) {
			t.Errorf("second Connect should fail, got %v", err)
		}

		p.Load(1, playable)
		waitEvent(t, p, EventEnded)

		mu.Lock()
		defer mu.Unlock()
		if calls != 20 {
			t.Errorf("processor saw %d frames, want 20", calls)
		}
	})

	t.Run("seek restarts decoding at the offset", func(t *testing.T) {
		dec := &fakeDecoder{frames: 3}
		p, _ := newTestPipeline(t, dec)

		p.Load(1, playable)
		waitEvent(t, p, EventEnded)

		p.Seek(42)
		ev := waitEvent(t, p, EventStarted)
		if ev.Token != 1 || ev.Position != 42 {
			t.Errorf("unexpected event after seek %+v", ev)
		}

		dec.mu.Lock()
		defer dec.mu.Unlock()
		if len(dec.offsets) != 2 || dec.offsets[1] != 42 {
			t.Errorf("decoder offsets %v", dec.offsets)
		}
	})

	t.Run("pause holds position", func(t *testing.T) {
		p, _ := newTestPipeline(t, &fakeDecoder{frames: 50})

		p.Load(1, playable)
		waitEvent(t, p, EventStarted)
		p.Pause()
		time.Sleep(60 * time.Millisecond)
		_, before, paused := p.Status()
		time.Sleep(100 * time.Millisecond)
		_, after, _ := p.Status()

		if !paused || before != after {
			t.Errorf("position moved while paused: %v -> %v", before, after)
		}

		p.Resume()
		waitEvent(t, p, EventEnded)
	})

	t.Run("stop releases the stream", func(t *testing.T) {
		p, _ := newTestPipeline(t, &fakeDecoder{frames: 500})

		p.Load(1, playable)
		waitEvent(t, p, EventStarted)
		p.Stop()

		select {
		case ev := <-p.Events():
			if ev.Kind == EventEnded || ev.Kind == EventFailed {
				t.Errorf("stopped stream should not emit %s", ev.Kind)
			}
		case <-time.After(200 * time.Millisecond):
		}
	})
}
