package tasks

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/metadata"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	bodyShare    = 85
	taggingShare = 90
	savingShare  = 98
)

// Recorder keeps a history of finished downloads.
type Recorder interface {
	RecordDownload(job models.DownloadJob, tagged bool, sizeBytes int64) error
}

// Tagger writes metadata into a downloaded file.
type Tagger interface {
	TagFile(path string, tags metadata.Tags) error
}

// JobListener receives the download slot after every change. job is nil once the slot clears.
type JobListener func(job *models.DownloadJob)

// DownloadOpts configures a [Downloader].
type DownloadOpts struct {
	OutputDir    string
	Grace        time.Duration // how long a finished job stays visible
	CoverMaxSize int
	MaxRetries   int
	Cooldown     time.Duration
	Exponent     float64
	AppName      string // album tag for tracks without one
	UserAgent    string
}

// DownloadOptsFromConfig maps the [download] config section onto DownloadOpts.
func DownloadOptsFromConfig(cfg shared.DownloadConfig, appName string) DownloadOpts {
	return DownloadOpts{
		OutputDir:    cfg.OutputDir,
		Grace:        shared.Seconds(cfg.GraceSeconds),
		CoverMaxSize: cfg.CoverMaxSize,
		MaxRetries:   cfg.MaxRetries,
		Cooldown:     shared.Seconds(cfg.RetryCooldown),
		Exponent:     cfg.RetryExponent,
		AppName:      appName,
	}
}

// Downloader exports one track at a time as a tagged file.
type Downloader struct {
	client   *http.Client
	tagger   Tagger
	images   *metadata.ImageService
	recorder Recorder
	opts     DownloadOpts
	logger   *log.Logger

	mu  sync.Mutex
	job *models.DownloadJob

	notifyMu  sync.Mutex
	listeners map[int]JobListener
	nextID    int
}

// NewDownloader creates a Downloader. tagger and recorder may be nil.
func NewDownloader(client *http.Client, tagger Tagger, recorder Recorder, opts DownloadOpts, logger *log.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if tagger == nil {
		tagger = metadata.NewTagger()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Exponent < 1 {
		opts.Exponent = 4
	}

	return &Downloader{
		client:    client,
		tagger:    tagger,
		images:    metadata.NewImageService(),
		recorder:  recorder,
		opts:      opts,
		logger:    shared.WithLogger(logger, "component", "downloader"),
		listeners: make(map[int]JobListener),
	}
}

// Current returns the job in the slot, if any.
func (d *Downloader) Current() (models.DownloadJob, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.job == nil {
		return models.DownloadJob{}, false
	}
	return *d.job, true
}

// Subscribe registers fn for slot changes.
func (d *Downloader) Subscribe(fn JobListener) (unsubscribe func()) {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()

	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	return func() {
		d.notifyMu.Lock()
		defer d.notifyMu.Unlock()
		delete(d.listeners, id)
	}
}

// Download fetches track's audio and cover, tags the audio and saves it as
// "{title} - {artist}.mp3" in the output directory. It blocks until the job finishes.
//
// A track without a source is rejected with [shared.ErrNotPlayable] and no job is created.
// While another job is running the call fails with [shared.ErrDownloadInProgress].
func (d *Downloader) Download(ctx context.Context, progress chan<- ProgressUpdate, track models.Track) (models.DownloadJob, error) {
	if !track.Playable() {
		return models.DownloadJob{}, fmt.Errorf("%w: %s", shared.ErrNotPlayable, track.String())
	}

	job, err := d.claim(track)
	if err != nil {
		return models.DownloadJob{}, err
	}
	sendProgress(progress, downloadUpdate(Download, job))

	if err := os.MkdirAll(d.opts.OutputDir, 0755); err != nil {
		return d.fail(progress, job.ID, fmt.Errorf("failed to create output directory: %w", err))
	}

	tmp, err := os.CreateTemp(d.opts.OutputDir, ".rolx-*.part")
	if err != nil {
		return d.fail(progress, job.ID, fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	var cover []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer tmp.Close()
		return d.fetchBody(gctx, progress, job.ID, track.Src, tmp)
	})
	g.Go(func() error {
		cover = d.fetchCover(gctx, track.Cover)
		return nil
	})
	if err := g.Wait(); err != nil {
		return d.fail(progress, job.ID, err)
	}

	job = d.setProgress(progress, job.ID, taggingShare, Tag)
	tagged := true
	if err := d.tagger.TagFile(tmpPath, metadata.TagsFor(track, d.opts.AppName, cover)); err != nil {
		tagged = false
		d.logger.Warn("tagging failed, saving raw audio", "track", track.String(), "error", err)
	}

	job = d.setProgress(progress, job.ID, savingShare, Save)
	finalPath := filepath.Join(d.opts.OutputDir, metadata.FileName(track))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return d.fail(progress, job.ID, fmt.Errorf("failed to save %s: %w", finalPath, err))
	}

	var size int64
	if info, err := os.Stat(finalPath); err == nil {
		size = info.Size()
	}

	job = d.update(job.ID, func(j *models.DownloadJob) {
		j.ProgressPercent = 100
		j.Done = true
		j.Path = finalPath
	})
	sendProgress(progress, downloadUpdate(Done, job))
	d.record(job, tagged, size)
	d.scheduleClear(job.ID)

	d.logger.Info("download finished", "track", track.String(), "path", finalPath, "tagged", tagged, "bytes", size)
	return job, nil
}

func (d *Downloader) claim(track models.Track) (models.DownloadJob, error) {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()

	d.mu.Lock()
	if d.job != nil && d.job.Active() {
		name := d.job.Name
		d.mu.Unlock()
		return models.DownloadJob{}, fmt.Errorf("%w: %s", shared.ErrDownloadInProgress, name)
	}
	job := models.DownloadJob{ID: shared.GenerateID(), TrackID: track.ID, Name: metadata.Sanitize(track.Title)}
	d.job = &job
	d.mu.Unlock()

	d.notify(&job)
	return job, nil
}

// update applies fn to the job with id and notifies listeners. A job no longer in the slot is left alone.
func (d *Downloader) update(id string, fn func(*models.DownloadJob)) models.DownloadJob {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()

	d.mu.Lock()
	if d.job == nil || d.job.ID != id {
		d.mu.Unlock()
		return models.DownloadJob{ID: id}
	}
	fn(d.job)
	snapshot := *d.job
	d.mu.Unlock()

	d.notify(&snapshot)
	return snapshot
}

// setProgress raises the job's progress to percent; it never lowers it.
func (d *Downloader) setProgress(progress chan<- ProgressUpdate, id string, percent int, phase Phase) models.DownloadJob {
	job := d.update(id, func(j *models.DownloadJob) {
		j.ProgressPercent = max(j.ProgressPercent, min(percent, 100))
	})
	sendProgress(progress, downloadUpdate(phase, job))
	return job
}

func (d *Downloader) fail(progress chan<- ProgressUpdate, id string, err error) (models.DownloadJob, error) {
	err = fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	job := d.update(id, func(j *models.DownloadJob) {
		j.Failed = true
		j.Error = err.Error()
	})

	d.logger.Error("download failed", "track", job.Name, "error", err)
	sendProgress(progress, downloadUpdate(Failed, job))
	d.record(job, false, 0)
	d.scheduleClear(id)
	return job, err
}

func (d *Downloader) scheduleClear(id string) {
	time.AfterFunc(d.opts.Grace, func() {
		d.notifyMu.Lock()
		defer d.notifyMu.Unlock()

		d.mu.Lock()
		if d.job == nil || d.job.ID != id {
			d.mu.Unlock()
			return
		}
		d.job = nil
		d.mu.Unlock()

		d.notify(nil)
	})
}

func (d *Downloader) record(job models.DownloadJob, tagged bool, size int64) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordDownload(job, tagged, size); err != nil {
		d.logger.Warn("failed to record download", "id", job.ID, "error", err)
	}
}

// notify must be called with notifyMu held.
func (d *Downloader) notify(job *models.DownloadJob) {
	for _, fn := range d.listeners {
		if job == nil {
			fn(nil)
			continue
		}
		cp := *job
		fn(&cp)
	}
}

// fetchBody streams src into f, retrying with backoff. Each retry starts the file over.
func (d *Downloader) fetchBody(ctx context.Context, progress chan<- ProgressUpdate, id, src string, f *os.File) error {
	var err error
	for tries := 0; tries <= d.opts.MaxRetries; tries++ {
		if tries > 0 {
			d.logger.Warn("retrying download", "try", tries, "of", d.opts.MaxRetries, "error", err)
			if werr := d.waitForRetry(ctx, tries-1); werr != nil {
				return werr
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
			if err := f.Truncate(0); err != nil {
				return err
			}
		}

		if err = d.copyBody(ctx, progress, id, src, f); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

func (d *Downloader) copyBody(ctx context.Context, progress chan<- ProgressUpdate, id, src string, w io.Writer) error {
	resp, err := d.get(ctx, src)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	pw := &progressWriter{
		writer: w,
		total:  resp.ContentLength,
		onUpdate: func(written, total int64) {
			if total <= 0 {
				return
			}
			percent := int(math.Round(float64(written) / float64(total) * bodyShare))
			d.setProgress(progress, id, min(percent, bodyShare), Download)
		},
	}
	_, err = io.Copy(pw, resp.Body)
	return err
}

// fetchCover downloads and shrinks the cover. Failures are logged and yield nil.
func (d *Downloader) fetchCover(ctx context.Context, src string) []byte {
	if src == "" {
		return nil
	}

	var data []byte
	var err error
	for tries := 0; tries <= d.opts.MaxRetries; tries++ {
		if tries > 0 {
			if d.waitForRetry(ctx, tries-1) != nil {
				return nil
			}
		}
		if data, err = d.getBytes(ctx, src); err == nil {
			break
		}
	}
	if err != nil {
		d.logger.Warn("cover download failed", "url", src, "error", err)
		return nil
	}

	resized, err := d.images.ResizeImage(ctx, data, d.opts.CoverMaxSize)
	if err != nil {
		d.logger.Warn("cover could not be processed", "url", src, "error", err)
		return nil
	}
	return resized
}

func (d *Downloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if d.opts.UserAgent != "" {
		req.Header.Set("User-Agent", d.opts.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return resp, nil
}

func (d *Downloader) getBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (d *Downloader) waitForRetry(ctx context.Context, tries int) error {
	cooldown := float64(d.opts.Cooldown) * math.Pow(d.opts.Exponent, float64(tries))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(cooldown)):
		return nil
	}
}

// progressWriter wraps a writer to track download progress.
type progressWriter struct {
	writer   io.Writer
	total    int64
	written  int64
	onUpdate func(written, total int64)
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.onUpdate != nil {
		pw.onUpdate(pw.written, pw.total)
	}
	return n, err
}
