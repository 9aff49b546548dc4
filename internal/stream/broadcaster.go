package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/shared"
)

// listenerBuffer is about three seconds of 20 ms frames.
const listenerBuffer = 150

// Broadcaster copies every processed frame to each attached output: local speakers, MP3 clients
// and WebRTC peers. An output that falls behind loses frames instead of stalling the others.
type Broadcaster struct {
	logger *log.Logger

	mu      sync.RWMutex
	outputs map[*Listener]struct{}
	ended   bool
}

// Listener is one output's view of the broadcast.
type Listener struct {
	C chan []int16

	name    string
	done    chan struct{}
	stop    sync.Once
	dropped atomic.Uint64
}

// Done is closed when the listener is unsubscribed or the broadcast ends.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Dropped reports how many frames this listener missed because its buffer was full.
func (l *Listener) Dropped() uint64 { return l.dropped.Load() }

func (l *Listener) close() { l.stop.Do(func() { close(l.done) }) }

// OutputStats describes one attached output.
type OutputStats struct {
	Name    string `json:"name"`
	Queued  int    `json:"queued"`
	Dropped uint64 `json:"dropped"`
}

// NewBroadcaster creates a broadcaster with no outputs.
func NewBroadcaster(logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Broadcaster{
		logger:  shared.WithLogger(logger, "component", "broadcast"),
		outputs: make(map[*Listener]struct{}),
	}
}

// Subscribe attaches an output under name. Once the broadcast has ended the returned listener
// is already done.
func (b *Broadcaster) Subscribe(name string) *Listener {
	l := &Listener{
		C:    make(chan []int16, listenerBuffer),
		name: name,
		done: make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		l.close()
		return l
	}
	b.outputs[l] = struct{}{}
	b.logger.Debug("output attached", "output", name, "outputs", len(b.outputs))
	return l
}

// Unsubscribe detaches l and closes its Done channel. Calling it again is harmless.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.outputs, l)
	b.mu.Unlock()

	if n := l.Dropped(); n > 0 {
		b.logger.Debug("output detached", "output", l.name, "dropped", n)
	}
	l.close()
}

// ListenerCount returns the number of attached outputs.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.outputs)
}

// Stats lists the attached outputs by name.
func (b *Broadcaster) Stats() []OutputStats {
	b.mu.RLock()
	stats := make([]OutputStats, 0, len(b.outputs))
	for l := range b.outputs {
		stats = append(stats, OutputStats{Name: l.name, Queued: len(l.C), Dropped: l.Dropped()})
	}
	b.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// ServeHTTP reports the attached outputs as JSON.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"outputs": b.Stats()})
}

// Run delivers frames from source until ctx ends or source closes, then ends the broadcast
// for every output.
//
// Frames are shared between outputs and must be treated as read-only.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	defer b.end()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.deliver(frame)
		}
	}
}

func (b *Broadcaster) deliver(frame []int16) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.outputs {
		select {
		case l.C <- frame:
		default:
			if l.dropped.Add(1) == 1 {
				b.logger.Warn("output falling behind, dropping frames", "output", l.name)
			}
		}
	}
}

func (b *Broadcaster) end() {
	b.mu.Lock()
	b.ended = true
	outputs := b.outputs
	b.outputs = make(map[*Listener]struct{})
	b.mu.Unlock()

	for l := range outputs {
		l.close()
	}
}
