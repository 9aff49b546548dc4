package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/services"
	"github.com/desertthunder/rolx/internal/shared"
	tu "github.com/desertthunder/rolx/internal/testing"
)

// newTestRunner builds a runner with a throwaway database and the given catalog.
func newTestRunner(t *testing.T, catalog *tu.MockCatalog) (*Runner, *bytes.Buffer) {
	t.Helper()

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "rolx.db")

	output := &bytes.Buffer{}
	return NewRunner(RunnerOpts{
		Config:  config,
		Catalog: catalog,
		Logger:  shared.NewLogger(io.Discard),
		Output:  output,
	}), output
}

// runApp runs the root command with args, pointing --config at a file that does not exist so the
// runner keeps its test configuration.
func runApp(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	missing := filepath.Join(t.TempDir(), "missing.toml")
	return newApp(r, r.logger).Run(t.Context(), append([]string{"rolx", "--config", missing}, args...))
}

func TestCatalogCommands(t *testing.T) {
	alpha := tu.NewTrack("a1", "Alpha", "Artist A")
	bravo := tu.NewTrack("b2", "Bravo", "Artist B")

	t.Run("search", func(t *testing.T) {
		t.Run("prints numbered results", func(t *testing.T) {
			catalog := tu.NewMockCatalog()
			catalog.SearchResults["love"] = []models.Track{alpha, bravo}
			runner, output := newTestRunner(t, catalog)

			if err := runApp(t, runner, "search", "--limit", "5", "love"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			for _, want := range []string{`Results for "love"`, " 1. Alpha - Artist A [3:00] (a1)", " 2. Bravo - Artist B [3:00] (b2)"} {
				if !strings.Contains(result, want) {
					t.Errorf("expected %q in output, got %q", want, result)
				}
			}
		})

		t.Run("prints JSON", func(t *testing.T) {
			catalog := tu.NewMockCatalog()
			catalog.SearchResults["love"] = []models.Track{alpha}
			runner, output := newTestRunner(t, catalog)

			if err := runApp(t, runner, "search", "--json", "love"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			var result models.SearchResult
			if err := json.Unmarshal(output.Bytes(), &result); err != nil {
				t.Fatalf("expected JSON output, got %q: %v", output.String(), err)
			}
			if len(result.Results) != 1 || result.Results[0].ID != "a1" {
				t.Errorf("expected a1, got %+v", result.Results)
			}
		})

		t.Run("reports no results", func(t *testing.T) {
			runner, output := newTestRunner(t, tu.NewMockCatalog())

			if err := runApp(t, runner, "search", "nothing"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), `No results for "nothing"`) {
				t.Errorf("expected empty message, got %q", output.String())
			}
		})

		t.Run("rejects bad input", func(t *testing.T) {
			tests := []struct {
				name string
				args []string
				want error
			}{
				{"missing query", []string{"search"}, shared.ErrMissingArgument},
				{"zero limit", []string{"search", "--limit", "0", "love"}, shared.ErrInvalidFlag},
				{"limit too large", []string{"search", "--limit", "51", "love"}, shared.ErrInvalidFlag},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					catalog := tu.NewMockCatalog()
					runner, _ := newTestRunner(t, catalog)

					err := runApp(t, runner, tt.args...)
					if !errors.Is(err, tt.want) {
						t.Errorf("expected %v, got %v", tt.want, err)
					}
					if catalog.SearchCalls() != 0 {
						t.Error("expected no catalog request")
					}
				})
			}
		})

		t.Run("propagates catalog errors", func(t *testing.T) {
			catalog := tu.NewMockCatalog()
			catalog.SearchErr = shared.ErrServiceUnavailable
			runner, _ := newTestRunner(t, catalog)

			err := runApp(t, runner, "search", "love")
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})
	})

	t.Run("resolve", func(t *testing.T) {
		t.Run("fetches directly then serves from cache", func(t *testing.T) {
			catalog := tu.NewMockCatalog(alpha)
			runner, output := newTestRunner(t, catalog)

			if err := runApp(t, runner, "resolve", "a1"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), "✓ Alpha - Artist A (via direct)") {
				t.Errorf("expected direct resolution, got %q", output.String())
			}

			output.Reset()
			if err := runApp(t, runner, "resolve", "a1"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), "(via cache)") {
				t.Errorf("expected cached resolution, got %q", output.String())
			}
			if catalog.FetchCalls() != 1 {
				t.Errorf("expected one catalog fetch, got %d", catalog.FetchCalls())
			}
		})

		t.Run("unknown track is not playable", func(t *testing.T) {
			runner, _ := newTestRunner(t, tu.NewMockCatalog())

			err := runApp(t, runner, "resolve", "zz")
			if !errors.Is(err, shared.ErrNotPlayable) {
				t.Errorf("expected ErrNotPlayable, got %v", err)
			}
		})

		t.Run("JSON reports unresolved tracks without failing", func(t *testing.T) {
			runner, output := newTestRunner(t, tu.NewMockCatalog())

			if err := runApp(t, runner, "resolve", "--json", "zz"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			var result struct {
				Layer    string `json:"layer"`
				Resolved bool   `json:"resolved"`
			}
			if err := json.Unmarshal(output.Bytes(), &result); err != nil {
				t.Fatalf("expected JSON output, got %q", output.String())
			}
			if result.Resolved || result.Layer != "none" {
				t.Errorf("expected unresolved result, got %+v", result)
			}
		})
	})

	t.Run("cache", func(t *testing.T) {
		catalog := tu.NewMockCatalog(alpha, bravo)
		runner, output := newTestRunner(t, catalog)

		if err := runApp(t, runner, "cache", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Cache is empty.") {
			t.Errorf("expected empty cache, got %q", output.String())
		}

		for _, id := range []string{"a1", "b2"} {
			if err := runApp(t, runner, "resolve", id); err != nil {
				t.Fatalf("resolve %s: %v", id, err)
			}
		}

		output.Reset()
		if err := runApp(t, runner, "cache", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, want := range []string{"Cached tracks (2)", "Alpha - Artist A", "Bravo - Artist B"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %q in output, got %q", want, output.String())
			}
		}

		output.Reset()
		if err := runApp(t, runner, "cache", "remove", "a1", "zz"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "✓ Removed Alpha - Artist A") || !strings.Contains(output.String(), "- zz not cached") {
			t.Errorf("unexpected remove output %q", output.String())
		}

		output.Reset()
		if err := runApp(t, runner, "cache", "list", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var tracks []models.Track
		if err := json.Unmarshal(output.Bytes(), &tracks); err != nil {
			t.Fatalf("expected JSON output, got %q", output.String())
		}
		if len(tracks) != 1 || tracks[0].ID != "b2" {
			t.Errorf("expected only b2 to remain, got %+v", tracks)
		}
	})
}

func TestLocalCommands(t *testing.T) {
	t.Run("eq presets", func(t *testing.T) {
		runner, output := newTestRunner(t, tu.NewMockCatalog())

		if err := runApp(t, runner, "eq", "presets"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		for _, want := range []string{"Preset", "60", "14k", "Balanced", "Flat", "Bass Boost"} {
			if !strings.Contains(result, want) {
				t.Errorf("expected %q in output, got %q", want, result)
			}
		}
	})

	t.Run("setup config writes the default file once", func(t *testing.T) {
		runner, output := newTestRunner(t, tu.NewMockCatalog())
		path := filepath.Join(t.TempDir(), "config.toml")
		app := func() error {
			return newApp(runner, runner.logger).Run(t.Context(), []string{"rolx", "--config", path, "setup", "config"})
		}

		if err := app(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(output.String(), "✓ Configuration written to "+path) {
			t.Errorf("unexpected output %q", output.String())
		}

		if err := app(); err == nil {
			t.Error("expected an error when the file already exists")
		}
	})

	t.Run("setup database applies migrations", func(t *testing.T) {
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "rolx.db")
		configPath := filepath.Join(dir, "config.toml")
		if err := os.WriteFile(configPath, []byte("[database]\npath = \""+dbPath+"\"\n"), 0644); err != nil {
			t.Fatal(err)
		}

		runner, output := newTestRunner(t, tu.NewMockCatalog())
		err := newApp(runner, runner.logger).Run(t.Context(), []string{"rolx", "--config", configPath, "setup", "database"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, dbPath)
		for _, want := range []string{"✓ 000 create_tracks", "✓ 001 create_downloads"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %q in output, got %q", want, output.String())
			}
		}
		if runner.config.Database.Path != dbPath {
			t.Errorf("expected loaded config to replace the runner's, got %s", runner.config.Database.Path)
		}
	})

	t.Run("download history", func(t *testing.T) {
		runner, output := newTestRunner(t, tu.NewMockCatalog())

		if err := runApp(t, runner, "download", "history"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "No downloads recorded yet.") {
			t.Errorf("expected empty history, got %q", output.String())
		}

		st, err := runner.openStore()
		if err != nil {
			t.Fatal(err)
		}
		jobs := []models.DownloadJob{
			{ID: "j1", TrackID: "a1", Name: "Alpha - Artist A", ProgressPercent: 100, Done: true, Path: "/music/Alpha.m4a"},
			{ID: "j2", TrackID: "b2", Name: "Bravo - Artist B", Failed: true, Error: "connection reset"},
		}
		for _, job := range jobs {
			if err := st.downloads.RecordDownload(job, job.Done, 1024); err != nil {
				t.Fatal(err)
			}
		}
		st.Close()

		output.Reset()
		if err := runApp(t, runner, "download", "history"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		result := output.String()
		for _, want := range []string{"Downloads (2)", "✓ Alpha - Artist A", "/music/Alpha.m4a", "✗ Bravo - Artist B", "connection reset"} {
			if !strings.Contains(result, want) {
				t.Errorf("expected %q in output, got %q", want, result)
			}
		}
		if strings.Index(result, "Bravo") > strings.Index(result, "Alpha") {
			t.Error("expected newest download first")
		}

		output.Reset()
		if err := runApp(t, runner, "download", "history", "--status", "failed", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var entries []struct {
			TrackID string `json:"trackId"`
			Status  string `json:"status"`
		}
		if err := json.Unmarshal(output.Bytes(), &entries); err != nil {
			t.Fatalf("expected JSON output, got %q", output.String())
		}
		if len(entries) != 1 || entries[0].TrackID != "b2" || entries[0].Status != "failed" {
			t.Errorf("expected only the failed download, got %+v", entries)
		}
	})

	t.Run("play and download require ids", func(t *testing.T) {
		runner, _ := newTestRunner(t, tu.NewMockCatalog())

		for _, args := range [][]string{{"play"}, {"download"}, {"cache", "remove"}} {
			if err := runApp(t, runner, args...); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("%v: expected ErrMissingArgument, got %v", args, err)
			}
		}
	})

	t.Run("download of an unknown track fails before any job starts", func(t *testing.T) {
		runner, _ := newTestRunner(t, tu.NewMockCatalog())

		err := runApp(t, runner, "download", "zz")
		if !errors.Is(err, shared.ErrNotPlayable) {
			t.Errorf("expected ErrNotPlayable, got %v", err)
		}
	})
}

// fakeDaemon serves a fixed playback state and queue, recording request bodies by path.
type fakeDaemon struct {
	*httptest.Server
	bodies map[string]map[string]any
}

const daemonStateJSON = `{"status":"playing","current":{"id":"a1","title":"Alpha","artistName":"Artist A","duration":180},` +
	`"playing":true,"progress":30,"duration":180,"loop":true,"version":3}`

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()

	d := &fakeDaemon{bodies: map[string]map[string]any{}}
	record := func(r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			d.bodies[r.Method+" "+r.URL.Path] = body
		}
	}
	state := func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, daemonStateJSON)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", state)
	mux.HandleFunc("POST /api/toggle", state)
	mux.HandleFunc("POST /api/seek", state)
	mux.HandleFunc("POST /api/loop", state)
	mux.HandleFunc("POST /api/transport/{action}", state)
	mux.HandleFunc("GET /api/queue", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"tracks":[{"id":"b2","title":"Bravo","artistName":"Artist B","duration":200}],"version":1}`)
	})
	mux.HandleFunc("POST /api/queue", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		io.WriteString(w, `{"track":{"id":"b2","title":"Bravo","artistName":"Artist B"},"state":`+daemonStateJSON+`}`)
	})
	mux.HandleFunc("PUT /api/eq/preset", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if name, _ := d.bodies["PUT /api/eq/preset"]["name"].(string); name != "Jazz" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"unknown equalizer preset"}`)
			return
		}
		io.WriteString(w, `{}`)
	})

	d.Server = httptest.NewServer(mux)
	t.Cleanup(d.Close)
	return d
}

func newCtlRunner(t *testing.T, d *fakeDaemon) (*Runner, *bytes.Buffer) {
	t.Helper()
	runner, output := newTestRunner(t, tu.NewMockCatalog(tu.NewTrack("a1", "Alpha", "Artist A"), tu.NewTrack("b2", "Bravo", "Artist B")))
	runner.api = services.NewAPIService(d.URL, d.Client())
	return runner, output
}

func TestCtlCommands(t *testing.T) {
	t.Run("state prints the current track", func(t *testing.T) {
		d := newFakeDaemon(t)
		runner, output := newCtlRunner(t, d)

		if err := runApp(t, runner, "ctl", "state"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		expected := "▶ Alpha - Artist A\n  0:30 / 3:00  (loop)\n"
		if output.String() != expected {
			t.Errorf("expected %q, got %q", expected, output.String())
		}
	})

	t.Run("state as JSON", func(t *testing.T) {
		d := newFakeDaemon(t)
		runner, output := newCtlRunner(t, d)

		if err := runApp(t, runner, "ctl", "state", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), `"status": "playing"`) {
			t.Errorf("expected raw state, got %q", output.String())
		}
	})

	t.Run("transport commands", func(t *testing.T) {
		d := newFakeDaemon(t)
		runner, output := newCtlRunner(t, d)

		for _, args := range [][]string{{"ctl", "toggle"}, {"ctl", "transport", "seekforward"}} {
			output.Reset()
			if err := runApp(t, runner, args...); err != nil {
				t.Fatalf("%v: expected no error, got %v", args, err)
			}
			if !strings.Contains(output.String(), "▶ Alpha - Artist A") {
				t.Errorf("%v: expected state output, got %q", args, output.String())
			}
		}
	})

	t.Run("seek sends an absolute position", func(t *testing.T) {
		d := newFakeDaemon(t)
		runner, _ := newCtlRunner(t, d)

		if err := runApp(t, runner, "ctl", "seek", "1:30"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := d.bodies["POST /api/seek"]["position"]; got != 90.0 {
			t.Errorf("expected position 90, got %v", got)
		}
	})

	t.Run("loop flags", func(t *testing.T) {
		d := newFakeDaemon(t)
		runner, _ := newCtlRunner(t, d)

		if err := runApp(t, runner, "ctl", "loop", "--off"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := d.bodies["POST /api/loop"]["enabled"]; got != false {
			t.Errorf("expected enabled=false, got %v", got)
		}

		if err := runApp(t, runner, "ctl", "loop", "--on", "--off"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("enqueue next", func(t *testing.T) {
		d := newFakeDaemon(t)
		runner, output := newCtlRunner(t, d)

		if err := runApp(t, runner, "ctl", "enqueue", "--next", "b2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		body := d.bodies["POST /api/queue"]
		if body["next"] != true {
			t.Errorf("expected next=true, got %v", body)
		}
		if track, _ := body["track"].(map[string]any); track["id"] != "b2" {
			t.Errorf("expected track b2, got %v", body["track"])
		}
		if !strings.Contains(output.String(), "+ Bravo - Artist B") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("daemon errors surface the message", func(t *testing.T) {
		d := newFakeDaemon(t)
		runner, _ := newCtlRunner(t, d)

		err := runApp(t, runner, "ctl", "preset", "Nope")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if !strings.Contains(err.Error(), "unknown equalizer preset") {
			t.Errorf("expected daemon message in error, got %v", err)
		}

		if err := runApp(t, runner, "ctl", "preset", "Jazz"); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("raw get and post", func(t *testing.T) {
		d := newFakeDaemon(t)
		runner, output := newCtlRunner(t, d)

		if err := runApp(t, runner, "ctl", "get", "/api/queue"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), `"Bravo"`) {
			t.Errorf("expected queue JSON, got %q", output.String())
		}

		err := runApp(t, runner, "ctl", "post", "--data", "{not json", "/api/toggle")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}

		err = runApp(t, runner, "ctl", "get", "/api/missing")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest for unknown path, got %v", err)
		}
	})
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr error
	}{
		{"90", 90, nil},
		{"12.5", 12.5, nil},
		{"1:30", 90, nil},
		{"0:05", 5, nil},
		{"", 0, shared.ErrMissingArgument},
		{"-3", 0, shared.ErrInvalidArgument},
		{"1:75", 0, shared.ErrInvalidArgument},
		{"abc", 0, shared.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePosition(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("parsePosition(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestQueueExport(t *testing.T) {
	t.Run("from the daemon", func(t *testing.T) {
		d := newFakeDaemon(t)
		runner, output := newCtlRunner(t, d)
		path := filepath.Join(t.TempDir(), "queue.json")

		if err := runApp(t, runner, "queue", "export", "--format", "json", "--output", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var export models.QueueExport
		if err := json.Unmarshal([]byte(tu.MustReadFile(t, path)), &export); err != nil {
			t.Fatalf("expected JSON export: %v", err)
		}
		if export.Current == nil || export.Current.ID != "a1" {
			t.Errorf("expected current a1, got %+v", export.Current)
		}
		if len(export.Tracks) != 1 || export.Tracks[0].ID != "b2" {
			t.Errorf("expected queued b2, got %+v", export.Tracks)
		}
		if export.Name != "Queue" {
			t.Errorf("expected default name, got %q", export.Name)
		}
		if !strings.Contains(output.String(), "✓ Exported 2 tracks to "+path) {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("from ids", func(t *testing.T) {
		runner, _ := newTestRunner(t, tu.NewMockCatalog(tu.NewTrack("a1", "Alpha", "Artist A"), tu.NewTrack("b2", "Bravo", "Artist B")))
		path := filepath.Join(t.TempDir(), "mix.csv")

		err := runApp(t, runner, "queue", "export", "--format", "csv", "--output", path, "--ids", "a1", "--ids", "zz", "--ids", "b2")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		content := tu.MustReadFile(t, path)
		lines := strings.Split(strings.TrimSpace(content), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and two rows, got %q", content)
		}
		if !strings.HasPrefix(lines[1], "1,a1,Alpha") || !strings.HasPrefix(lines[2], "2,b2,Bravo") {
			t.Errorf("expected resolved tracks in order, got %q", content)
		}
	})

	t.Run("rejects unknown formats and empty queues", func(t *testing.T) {
		runner, _ := newTestRunner(t, tu.NewMockCatalog())

		err := runApp(t, runner, "queue", "export", "--format", "pdf")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}

		err = runApp(t, runner, "queue", "export", "--format", "txt", "--ids", "zz")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
