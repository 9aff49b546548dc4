package tasks

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bogem/id3v2"
	"github.com/desertthunder/rolx/internal/metadata"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
	tu "github.com/desertthunder/rolx/internal/testing"
)

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recorded
}

type recorded struct {
	job    models.DownloadJob
	tagged bool
	size   int64
}

func (r *fakeRecorder) RecordDownload(job models.DownloadJob, tagged bool, size int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recorded{job: job, tagged: tagged, size: size})
	return nil
}

func (r *fakeRecorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.entries...)
}

type failingTagger struct{}

func (failingTagger) TagFile(string, metadata.Tags) error { return errors.New("cannot tag") }

// audioServer serves a fake audio body in small flushed chunks plus a PNG cover.
type audioServer struct {
	*httptest.Server
	body     []byte
	failures atomic.Int32 // number of audio requests to fail before serving
	hold     chan struct{}
}

func newAudioServer(t *testing.T) *audioServer {
	t.Helper()
	s := &audioServer{body: bytes.Repeat([]byte("0123456789abcdef"), 4096)}

	var cover bytes.Buffer
	if err := png.Encode(&cover, image.NewRGBA(image.Rect(0, 0, 800, 800))); err != nil {
		t.Fatalf("failed to encode cover: %v", err)
	}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/song.mp4":
			if s.hold != nil {
				<-s.hold
			}
			if s.failures.Load() > 0 {
				s.failures.Add(-1)
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(s.body)))
			for chunk := range chunks(s.body, 8192) {
				w.Write(chunk)
				w.(http.Flusher).Flush()
			}
		case "/cover.png":
			w.Write(cover.Bytes())
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func chunks(b []byte, size int) func(func([]byte) bool) {
	return func(yield func([]byte) bool) {
		for len(b) > 0 {
			n := min(size, len(b))
			if !yield(b[:n]) {
				return
			}
			b = b[n:]
		}
	}
}

func (s *audioServer) track() models.Track {
	return models.Track{
		ID:         "s1",
		Title:      "Tum Hi Ho [Live]",
		ArtistName: "Arijit & Friends",
		Src:        s.URL + "/song.mp4",
		Cover:      s.URL + "/cover.png",
		Year:       "2013",
		Language:   "hindi",
	}
}

func newTestDownloader(t *testing.T, tagger Tagger, rec Recorder) (*Downloader, string) {
	t.Helper()
	dir := t.TempDir()
	d := NewDownloader(nil, tagger, rec, DownloadOpts{
		OutputDir:    dir,
		Grace:        20 * time.Millisecond,
		CoverMaxSize: 500,
		MaxRetries:   2,
		Cooldown:     time.Millisecond,
		Exponent:     2,
		AppName:      "ROL Music",
	}, shared.NewLogger(io.Discard))
	return d, dir
}

func waitForClear(t *testing.T, d *Downloader) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := d.Current(); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("download slot was not cleared")
}

func TestDownloader(t *testing.T) {
	ctx := context.Background()

	t.Run("downloads, tags and saves", func(t *testing.T) {
		srv := newAudioServer(t)
		rec := &fakeRecorder{}
		d, dir := newTestDownloader(t, nil, rec)

		var mu sync.Mutex
		var percents []int
		var sawClear bool
		d.Subscribe(func(job *models.DownloadJob) {
			mu.Lock()
			defer mu.Unlock()
			if job == nil {
				sawClear = true
				return
			}
			percents = append(percents, job.ProgressPercent)
		})

		job, err := d.Download(ctx, nil, srv.track())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := filepath.Join(dir, "Tum Hi Ho Live - Arijit and Friends.mp3")
		if job.Path != want || !job.Done || job.ProgressPercent != 100 {
			t.Errorf("unexpected job %+v", job)
		}
		tu.AssertFileExists(t, want)

		tag, err := id3v2.Open(want, id3v2.Options{Parse: true})
		if err != nil {
			t.Fatalf("failed to open saved file: %v", err)
		}
		if tag.Title() != "Tum Hi Ho Live" || tag.Album() != "ROL Music" {
			t.Errorf("unexpected tags %q %q", tag.Title(), tag.Album())
		}
		if pics := tag.GetFrames(tag.CommonID("Attached picture")); len(pics) != 1 {
			t.Errorf("expected cover art, got %d pictures", len(pics))
		}
		tag.Close()

		mu.Lock()
		if len(percents) == 0 || percents[len(percents)-1] != 100 {
			t.Errorf("expected progress to end at 100, got %v", percents)
		}
		for i := 1; i < len(percents); i++ {
			if percents[i] < percents[i-1] {
				t.Errorf("progress went backwards: %v", percents)
				break
			}
		}
		seen := map[int]bool{}
		for _, p := range percents {
			seen[p] = true
		}
		for _, p := range []int{85, 90, 98} {
			if !seen[p] {
				t.Errorf("expected progress to pass %d, got %v", p, percents)
			}
		}
		mu.Unlock()

		entries := rec.all()
		if len(entries) != 1 || !entries[0].tagged || entries[0].size == 0 {
			t.Errorf("unexpected history %+v", entries)
		}

		waitForClear(t, d)
		mu.Lock()
		if !sawClear {
			t.Error("listeners were not told about the cleared slot")
		}
		mu.Unlock()

		leftovers, _ := filepath.Glob(filepath.Join(dir, ".rolx-*"))
		if len(leftovers) != 0 {
			t.Errorf("temp files left behind: %v", leftovers)
		}
	})

	t.Run("track without source creates no job", func(t *testing.T) {
		d, _ := newTestDownloader(t, nil, nil)
		_, err := d.Download(ctx, nil, models.Track{ID: "x", Title: "No Src"})
		if !errors.Is(err, shared.ErrNotPlayable) {
			t.Errorf("expected ErrNotPlayable, got %v", err)
		}
		if _, ok := d.Current(); ok {
			t.Error("no job should exist")
		}
	})

	t.Run("second download while one is running", func(t *testing.T) {
		srv := newAudioServer(t)
		srv.hold = make(chan struct{})
		d, _ := newTestDownloader(t, nil, nil)

		done := make(chan error, 1)
		go func() {
			_, err := d.Download(ctx, nil, srv.track())
			done <- err
		}()

		deadline := time.Now().Add(2 * time.Second)
		for {
			if job, ok := d.Current(); ok && job.Active() {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("first download never started")
			}
			time.Sleep(time.Millisecond)
		}

		if _, err := d.Download(ctx, nil, srv.track()); !errors.Is(err, shared.ErrDownloadInProgress) {
			t.Errorf("expected ErrDownloadInProgress, got %v", err)
		}

		close(srv.hold)
		if err := <-done; err != nil {
			t.Errorf("first download failed: %v", err)
		}
	})

	t.Run("transient failures are retried", func(t *testing.T) {
		srv := newAudioServer(t)
		srv.failures.Store(2)
		d, _ := newTestDownloader(t, nil, nil)

		job, err := d.Download(ctx, nil, srv.track())
		if err != nil {
			t.Fatalf("expected retries to succeed, got %v", err)
		}
		if !job.Done {
			t.Errorf("expected done job, got %+v", job)
		}
	})

	t.Run("hard failure marks the job failed", func(t *testing.T) {
		srv := newAudioServer(t)
		srv.failures.Store(10)
		rec := &fakeRecorder{}
		d, dir := newTestDownloader(t, nil, rec)

		job, err := d.Download(ctx, nil, srv.track())
		if !errors.Is(err, shared.ErrDownloadFailed) {
			t.Fatalf("expected ErrDownloadFailed, got %v", err)
		}
		if !job.Failed || job.Error == "" || job.Done {
			t.Errorf("expected visible failed job, got %+v", job)
		}
		if current, ok := d.Current(); !ok || !current.Failed {
			t.Error("failed job should stay in the slot during the grace period")
		}

		files, _ := os.ReadDir(dir)
		if len(files) != 0 {
			t.Errorf("no file should be written, found %d", len(files))
		}
		if entries := rec.all(); len(entries) != 1 || !entries[0].job.Failed {
			t.Errorf("expected failure in history, got %+v", entries)
		}
		waitForClear(t, d)
	})

	t.Run("tagging failure keeps raw audio", func(t *testing.T) {
		srv := newAudioServer(t)
		rec := &fakeRecorder{}
		d, _ := newTestDownloader(t, failingTagger{}, rec)

		job, err := d.Download(ctx, nil, srv.track())
		if err != nil {
			t.Fatalf("tagging failure should not fail the download: %v", err)
		}
		data := tu.MustReadFile(t, job.Path)
		if data != string(srv.body) {
			t.Error("expected raw audio bytes")
		}
		if entries := rec.all(); len(entries) != 1 || entries[0].tagged {
			t.Errorf("expected untagged history entry, got %+v", entries)
		}
	})

	t.Run("missing cover still tags", func(t *testing.T) {
		srv := newAudioServer(t)
		d, _ := newTestDownloader(t, nil, nil)
		track := srv.track()
		track.Cover = srv.URL + "/missing.png"

		job, err := d.Download(ctx, nil, track)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tag, err := id3v2.Open(job.Path, id3v2.Options{Parse: true})
		if err != nil {
			t.Fatalf("failed to open saved file: %v", err)
		}
		defer tag.Close()
		if tag.Artist() != "Arijit and Friends" {
			t.Errorf("unexpected artist %q", tag.Artist())
		}
		if pics := tag.GetFrames(tag.CommonID("Attached picture")); len(pics) != 0 {
			t.Errorf("expected no cover art, got %d", len(pics))
		}
	})

	t.Run("progress channel reports phases", func(t *testing.T) {
		srv := newAudioServer(t)
		d, _ := newTestDownloader(t, nil, nil)
		progress := make(chan ProgressUpdate, 256)

		if _, err := d.Download(ctx, progress, srv.track()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		var last ProgressUpdate
		seen := map[Phase]bool{}
		for u := range progress {
			seen[u.Phase] = true
			last = u
		}
		for _, p := range []Phase{Download, Tag, Save, Done} {
			if !seen[p] {
				t.Errorf("missing phase %s", p)
			}
		}
		if last.Phase != Done || last.Step != 100 {
			t.Errorf("expected final done update, got %+v", last)
		}
	})
}
