package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/rolx/internal/player"
	"github.com/desertthunder/rolx/internal/shared"
)

func TestBasicRouter(t *testing.T) {
	t.Run("applies middleware in registration order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("rejects other methods", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodPost, "/api/next", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/next", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("path values", func(t *testing.T) {
		router := NewBasicRouter()
		var got string
		router.Handle(http.MethodDelete, "/api/queue/{id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.PathValue("id")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/queue/abc", nil))
		if got != "abc" {
			t.Errorf("expected id abc, got %q", got)
		}
	})

	t.Run("registers every handler route", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handler(multiRoute{})

		for _, path := range []string{"/a", "/b"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Body.String() != path {
				t.Errorf("%s: unexpected body %q", path, rec.Body.String())
			}
		}
	})

	t.Run("index lists registered routes", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handler(multiRoute{})
		router.Handle(http.MethodPost, "/webrtc", http.NotFoundHandler())
		router.Index("/")

		want := []string{"GET /", "GET /a", "GET /b", "POST /webrtc"}
		if got := router.Routes(); !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		var body struct {
			Routes []string `json:"routes"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("expected JSON, got %q", rec.Body.String())
		}
		if !slices.Equal(body.Routes, want) {
			t.Errorf("expected %v, got %v", want, body.Routes)
		}
	})

	t.Run("root index does not swallow unknown paths", func(t *testing.T) {
		router := NewBasicRouter()
		router.Index("/{$}")

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

type multiRoute struct{}

func (multiRoute) Routes() []string { return []string{"GET /a", "GET /b"} }
func (multiRoute) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, r.URL.Path)
}

func TestMiddleware(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("Recover", func(t *testing.T) {
		h := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"error"`) {
			t.Errorf("expected JSON error body, got %s", rec.Body.String())
		}
	})

	t.Run("Logging passes the status through", func(t *testing.T) {
		h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusTeapot {
			t.Errorf("expected 418, got %d", rec.Code)
		}
	})

	t.Run("CORS preflight", func(t *testing.T) {
		called := false
		h := CORS("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/state", nil))

		if rec.Code != http.StatusNoContent || called {
			t.Errorf("preflight should short-circuit, got %d called=%v", rec.Code, called)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("missing allow-origin header")
		}
	})
}

func TestStatusFor(t *testing.T) {
	tc := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("%w: band 12", shared.ErrInvalidIndex), want: http.StatusBadRequest},
		{err: shared.ErrMissingArgument, want: http.StatusBadRequest},
		{err: shared.ErrUnknownPreset, want: http.StatusNotFound},
		{err: shared.ErrTrackNotFound, want: http.StatusNotFound},
		{err: shared.ErrDownloadInProgress, want: http.StatusConflict},
		{err: shared.ErrSuperseded, want: http.StatusConflict},
		{err: shared.ErrNotPlayable, want: http.StatusUnprocessableEntity},
		{err: shared.ErrServiceUnavailable, want: http.StatusServiceUnavailable},
		{err: shared.ErrAPIRequest, want: http.StatusBadGateway},
		{err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tc {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

type transportCalls struct {
	mu                   sync.Mutex
	toggles, next, prevs int
}

func (c *transportCalls) TogglePlay()   { c.mu.Lock(); c.toggles++; c.mu.Unlock() }
func (c *transportCalls) SkipNext()     { c.mu.Lock(); c.next++; c.mu.Unlock() }
func (c *transportCalls) SkipPrevious() { c.mu.Lock(); c.prevs++; c.mu.Unlock() }

func TestMediaSession(t *testing.T) {
	t.Run("metadata", func(t *testing.T) {
		m := NewMediaSession()
		if _, ok := m.NowPlaying(); ok {
			t.Fatal("new session should be empty")
		}

		m.SetMetadata(player.NowPlaying{Title: "Tum Hi Ho", Artist: "Arijit Singh", Album: "ROL Music"})
		np, ok := m.NowPlaying()
		if !ok || np.Title != "Tum Hi Ho" || np.Album != "ROL Music" {
			t.Errorf("unexpected metadata %+v", np)
		}
	})

	t.Run("Trigger without handlers", func(t *testing.T) {
		if err := NewMediaSession().Trigger(ActionPlay); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Trigger maps actions", func(t *testing.T) {
		m := NewMediaSession()
		calls := &transportCalls{}
		m.SetActionHandlers(calls)

		for _, action := range []string{ActionPlay, ActionPause, ActionNextTrack, "PreviousTrack"} {
			if err := m.Trigger(action); err != nil {
				t.Fatalf("Trigger(%s) failed: %v", action, err)
			}
		}

		if calls.toggles != 2 || calls.next != 1 || calls.prevs != 1 {
			t.Errorf("unexpected calls %+v", calls)
		}
		if err := m.Trigger("seekto"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestHub(t *testing.T) {
	t.Run("drops events for full clients", func(t *testing.T) {
		h := NewHub()
		ch, ok := h.subscribe()
		if !ok {
			t.Fatal("subscribe failed")
		}

		for i := range 20 {
			h.Publish("state", i)
		}
		if len(ch) != cap(ch) {
			t.Errorf("expected a full buffer, got %d", len(ch))
		}

		h.unsubscribe(ch)
		if h.Clients() != 0 {
			t.Errorf("expected no clients, got %d", h.Clients())
		}
	})

	t.Run("Close rejects new clients", func(t *testing.T) {
		h := NewHub()
		h.Close()

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}
