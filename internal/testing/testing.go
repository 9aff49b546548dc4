// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
)

// MockCatalog is a test double for [services.Catalog].
//
// Tracks are served by id; SearchResults by lowercased query. Errors queued in FetchErrs are
// returned (in order) before any lookup succeeds.
type MockCatalog struct {
	mu            sync.Mutex
	Tracks        map[string]models.Track
	SearchResults map[string][]models.Track
	FetchErrs     []error
	SearchErr     error
	fetchCalls    int
	searchCalls   int
}

// NewMockCatalog creates a catalog serving tracks by id.
func NewMockCatalog(tracks ...models.Track) *MockCatalog {
	m := &MockCatalog{Tracks: make(map[string]models.Track), SearchResults: make(map[string][]models.Track)}
	for _, t := range tracks {
		m.Tracks[t.ID] = t
	}
	return m
}

func (m *MockCatalog) FetchTrackByID(ctx context.Context, id string) (*models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.FetchErrs) > 0 {
		err := m.FetchErrs[0]
		m.FetchErrs = m.FetchErrs[1:]
		return nil, err
	}
	t, ok := m.Tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return &t, nil
}

func (m *MockCatalog) SearchTracks(ctx context.Context, query string, page, limit int) (*models.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	results := m.SearchResults[strings.ToLower(query)]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return &models.SearchResult{Results: append([]models.Track(nil), results...), Total: len(results)}, nil
}

func (m *MockCatalog) Name() string { return "mock" }

// FetchCalls returns how many times FetchTrackByID ran.
func (m *MockCatalog) FetchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

// SearchCalls returns how many times SearchTracks ran.
func (m *MockCatalog) SearchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchCalls
}

// NewTrack builds a resolved fixture track.
func NewTrack(id, title, artist string) models.Track {
	return models.Track{
		ID:         id,
		Title:      title,
		ArtistName: artist,
		Album:      title + " (Single)",
		Src:        "https://cdn.example.com/" + id + ".mp4",
		Cover:      "https://img.example.com/" + id + ".jpg",
		Duration:   180,
	}
}

// Unresolved strips the source from a track.
func Unresolved(t models.Track) models.Track {
	t.Src = ""
	return t
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
