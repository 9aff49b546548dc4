package queue

import (
	"errors"
	"io"
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
)

func newTestManager() *Manager {
	return NewManager(shared.NewLogger(io.Discard))
}

func tracks(ids ...string) []models.Track {
	out := make([]models.Track, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Track{ID: id, Title: "Song " + id, Src: "https://cdn/" + id})
	}
	return out
}

func ids(ts []models.Track) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func TestManager(t *testing.T) {
	t.Run("Enqueue and EnqueueNext", func(t *testing.T) {
		m := newTestManager()
		for _, tr := range tracks("A", "B") {
			m.Enqueue(tr)
		}
		m.EnqueueNext(tracks("C")[0])

		if got := ids(m.Tracks()); !slices.Equal(got, []string{"C", "A", "B"}) {
			t.Errorf("unexpected order %v", got)
		}
	})

	t.Run("Reorder", func(t *testing.T) {
		tc := []struct {
			name     string
			from, to int
			want     []string
			wantErr  bool
		}{
			{name: "forward", from: 0, to: 2, want: []string{"B", "C", "A", "D"}},
			{name: "backward", from: 3, to: 1, want: []string{"A", "D", "B", "C"}},
			{name: "same index", from: 1, to: 1, want: []string{"A", "B", "C", "D"}},
			{name: "to last", from: 0, to: 3, want: []string{"B", "C", "D", "A"}},
			{name: "from out of range", from: 4, to: 0, want: []string{"A", "B", "C", "D"}, wantErr: true},
			{name: "to out of range", from: 0, to: 4, want: []string{"A", "B", "C", "D"}, wantErr: true},
			{name: "negative", from: -1, to: 0, want: []string{"A", "B", "C", "D"}, wantErr: true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				m := newTestManager()
				m.Replace(tracks("A", "B", "C", "D"))

				err := m.Reorder(tt.from, tt.to)
				if tt.wantErr != (err != nil) {
					t.Fatalf("Reorder() error = %v, wantErr %v", err, tt.wantErr)
				}
				if err != nil && !errors.Is(err, shared.ErrInvalidIndex) {
					t.Errorf("expected ErrInvalidIndex, got %v", err)
				}
				if got := ids(m.Tracks()); !slices.Equal(got, tt.want) {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			})
		}
	})

	t.Run("Remove", func(t *testing.T) {
		m := newTestManager()
		m.Replace(tracks("A", "B", "C"))

		if !m.Remove("B") {
			t.Error("expected B to be removed")
		}
		if m.Remove("Z") {
			t.Error("removing an absent id should report false")
		}
		if got := ids(m.Tracks()); !slices.Equal(got, []string{"A", "C"}) {
			t.Errorf("unexpected queue %v", got)
		}
	})

	t.Run("Pop drains in order", func(t *testing.T) {
		m := newTestManager()
		m.Replace(tracks("A", "B"))

		var got []string
		for {
			tr, ok := m.Pop()
			if !ok {
				break
			}
			got = append(got, tr.ID)
		}
		if !slices.Equal(got, []string{"A", "B"}) || m.Len() != 0 {
			t.Errorf("unexpected pops %v, len %d", got, m.Len())
		}
	})

	t.Run("Replace copies its input", func(t *testing.T) {
		m := newTestManager()
		in := tracks("A", "B")
		m.Replace(in)
		in[0].ID = "mutated"

		if m.Tracks()[0].ID != "A" {
			t.Error("queue shares memory with caller slice")
		}
	})

	t.Run("Subscribers see every change in order", func(t *testing.T) {
		m := newTestManager()
		var changes []Change
		unsubscribe := m.Subscribe(func(c Change) { changes = append(changes, c) })

		m.Enqueue(tracks("A")[0])
		m.Enqueue(tracks("B")[0])
		m.Remove("missing")
		m.Reorder(0, 1)
		m.Clear()
		m.Clear()

		wantOps := []Op{OpEnqueue, OpEnqueue, OpReorder, OpClear}
		if len(changes) != len(wantOps) {
			t.Fatalf("expected %d changes, got %d", len(wantOps), len(changes))
		}
		for i, c := range changes {
			if c.Op != wantOps[i] {
				t.Errorf("change %d: op %s, want %s", i, c.Op, wantOps[i])
			}
			if c.Version != uint64(i+1) {
				t.Errorf("change %d: version %d", i, c.Version)
			}
		}
		if got := ids(changes[2].Tracks); !slices.Equal(got, []string{"B", "A"}) {
			t.Errorf("reorder snapshot %v", got)
		}

		unsubscribe()
		m.Enqueue(tracks("C")[0])
		if len(changes) != len(wantOps) {
			t.Error("unsubscribed listener still called")
		}
	})
}

// TestManagerMatchesReference drives random operations against a plain slice model.
func TestManagerMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := newTestManager()
	var ref []string
	next := 0

	for step := range 2000 {
		switch op := rng.Intn(7); op {
		case 0:
			id := string(rune('a'+next%26)) + string(rune('0'+next/26%10))
			next++
			m.Enqueue(models.Track{ID: id})
			ref = append(ref, id)
		case 1:
			id := string(rune('A'+next%26)) + string(rune('0'+next/26%10))
			next++
			m.EnqueueNext(models.Track{ID: id})
			ref = append([]string{id}, ref...)
		case 2:
			if len(ref) == 0 {
				continue
			}
			id := ref[rng.Intn(len(ref))]
			m.Remove(id)
			i := slices.Index(ref, id)
			ref = append(ref[:i:i], ref[i+1:]...)
		case 3, 4:
			from, to := rng.Intn(len(ref)+2)-1, rng.Intn(len(ref)+2)-1
			m.Reorder(from, to)
			if from >= 0 && from < len(ref) && to >= 0 && to < len(ref) {
				moved := ref[from]
				ref = append(ref[:from:from], ref[from+1:]...)
				ref = append(ref[:to:to], append([]string{moved}, ref[to:]...)...)
			}
		case 5:
			if _, ok := m.Pop(); ok {
				ref = ref[1:]
			}
		case 6:
			if rng.Intn(20) == 0 {
				m.Clear()
				ref = nil
			}
		}

		if got := ids(m.Tracks()); !slices.Equal(got, ref) {
			t.Fatalf("step %d: queue %v, reference %v", step, got, ref)
		}
	}
}

func TestManagerConcurrentAccess(t *testing.T) {
	m := newTestManager()
	var last uint64
	var mu sync.Mutex
	m.Subscribe(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		if c.Version <= last {
			t.Errorf("version went backwards: %d after %d", c.Version, last)
		}
		last = c.Version
	})

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				id := string(rune('a'+w)) + string(rune('0'+i%10))
				m.Enqueue(models.Track{ID: id})
				m.Reorder(0, m.Len()-1)
			}
		}()
	}
	wg.Wait()

	if m.Len() != 400 {
		t.Errorf("expected 400 tracks, got %d", m.Len())
	}
}
