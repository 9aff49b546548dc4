// package queue holds the ordered list of upcoming tracks.
//
// The track that is currently playing is never part of the queue; the
// playback engine pops the head when it needs the next one.
package queue

import (
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
)

// Op names the mutation that produced a [Change].
type Op string

const (
	OpEnqueue     Op = "enqueue"
	OpEnqueueNext Op = "enqueue_next"
	OpRemove      Op = "remove"
	OpReorder     Op = "reorder"
	OpReplace     Op = "replace"
	OpClear       Op = "clear"
	OpPop         Op = "pop"
)

// Change is published to subscribers after every mutation.
//
// Tracks is a copy of the full queue after the mutation; Version increases by one per mutation.
type Change struct {
	Op      Op
	Tracks  []models.Track
	Version uint64
}

// Listener receives queue changes. Listeners must not mutate the queue synchronously.
type Listener func(Change)

// Manager is a mutex-guarded, observable track list.
type Manager struct {
	mu      sync.Mutex
	tracks  []models.Track
	version uint64

	notifyMu  sync.Mutex
	delivered uint64
	listeners map[int]Listener
	nextID    int

	logger *log.Logger
}

// NewManager creates an empty queue. A nil logger writes to stderr.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Manager{
		listeners: make(map[int]Listener),
		logger:    shared.WithLogger(logger, "component", "queue"),
	}
}

// Enqueue appends t to the tail.
func (m *Manager) Enqueue(t models.Track) {
	m.mutate(OpEnqueue, func(ts []models.Track) ([]models.Track, bool) {
		return append(ts, t), true
	})
}

// EnqueueNext inserts t at the head so it plays after the current track.
func (m *Manager) EnqueueNext(t models.Track) {
	m.mutate(OpEnqueueNext, func(ts []models.Track) ([]models.Track, bool) {
		return slices.Insert(ts, 0, t), true
	})
}

// Remove deletes the first track with the given id. It reports whether anything was removed.
func (m *Manager) Remove(id string) bool {
	var removed bool
	m.mutate(OpRemove, func(ts []models.Track) ([]models.Track, bool) {
		i := slices.IndexFunc(ts, func(t models.Track) bool { return t.ID == id })
		if i < 0 {
			return ts, false
		}
		removed = true
		return slices.Delete(ts, i, i+1), true
	})
	return removed
}

// Reorder moves the track at from so that it ends up at index to.
//
// Out-of-range indices leave the queue untouched and return [shared.ErrInvalidIndex].
func (m *Manager) Reorder(from, to int) error {
	var err error
	m.mutate(OpReorder, func(ts []models.Track) ([]models.Track, bool) {
		n := len(ts)
		if from < 0 || from >= n || to < 0 || to >= n {
			err = fmt.Errorf("%w: reorder %d -> %d on queue of %d", shared.ErrInvalidIndex, from, to, n)
			return ts, false
		}
		if from == to {
			return ts, false
		}
		moved := ts[from]
		ts = slices.Delete(ts, from, from+1)
		return slices.Insert(ts, to, moved), true
	})
	if err != nil {
		m.logger.Warn("ignored reorder", "from", from, "to", to, "err", err)
	}
	return err
}

// Replace swaps the whole queue for ts in one step.
func (m *Manager) Replace(ts []models.Track) {
	next := slices.Clone(ts)
	m.mutate(OpReplace, func([]models.Track) ([]models.Track, bool) {
		return next, true
	})
}

// Clear empties the queue.
func (m *Manager) Clear() {
	m.mutate(OpClear, func(ts []models.Track) ([]models.Track, bool) {
		return nil, len(ts) > 0
	})
}

// Pop removes and returns the head of the queue.
func (m *Manager) Pop() (models.Track, bool) {
	var head models.Track
	var ok bool
	m.mutate(OpPop, func(ts []models.Track) ([]models.Track, bool) {
		if len(ts) == 0 {
			return ts, false
		}
		head, ok = ts[0], true
		return slices.Delete(ts, 0, 1), true
	})
	return head, ok
}

// Tracks returns a copy of the queue.
func (m *Manager) Tracks() []models.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.tracks)
}

// Len returns the number of upcoming tracks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracks)
}

// Version returns the number of mutations applied so far.
func (m *Manager) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Subscribe registers fn for future changes and returns a func that removes it.
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	m.notifyMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.notifyMu.Unlock()

	return func() {
		m.notifyMu.Lock()
		delete(m.listeners, id)
		m.notifyMu.Unlock()
	}
}

// mutate applies fn under the lock and publishes the result when fn reports a change.
func (m *Manager) mutate(op Op, fn func([]models.Track) ([]models.Track, bool)) {
	m.mu.Lock()
	next, changed := fn(m.tracks)
	if !changed {
		m.mu.Unlock()
		return
	}
	m.tracks = next
	m.version++
	change := Change{Op: op, Tracks: slices.Clone(next), Version: m.version}
	m.mu.Unlock()

	m.logger.Debug("queue changed", "op", op, "len", len(change.Tracks), "version", change.Version)
	m.publish(change)
}

// publish delivers change unless a newer one already went out.
func (m *Manager) publish(change Change) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	if change.Version <= m.delivered {
		return
	}
	m.delivered = change.Version
	for _, fn := range m.listeners {
		fn(change)
	}
}
