package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/audio"
	"github.com/desertthunder/rolx/internal/shared"
)

// HTTPOptions configures [HTTPHandler].
type HTTPOptions struct {
	FFmpegPath string // default "ffmpeg"
	Bitrate    string // default "192k"
	Name       string // ICY station name
	Logger     *log.Logger
}

// HTTPHandler serves a chunked MP3 audio stream.
// Each connection spawns an ffmpeg process to encode PCM to MP3 in real time.
type HTTPHandler struct {
	broadcaster *Broadcaster
	opts        HTTPOptions
	logger      *log.Logger
}

// NewHTTPHandler creates an HTTP stream handler.
func NewHTTPHandler(b *Broadcaster, opts HTTPOptions) *HTTPHandler {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.Bitrate == "" {
		opts.Bitrate = "192k"
	}
	return &HTTPHandler{
		broadcaster: b,
		opts:        opts,
		logger:      shared.WithLogger(opts.Logger, "component", "stream.http"),
	}
}

// MP3EncoderArgs returns the ffmpeg arguments that read raw PCM on stdin and write MP3 to stdout.
func MP3EncoderArgs(bitrate string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", bitrate,
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"pipe:1",
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := exec.CommandContext(ctx, h.opts.FFmpegPath, MP3EncoderArgs(h.opts.Bitrate)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		h.logger.Error("stdin pipe", "error", err)
		http.Error(w, "encoder unavailable", http.StatusInternalServerError)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.logger.Error("stdout pipe", "error", err)
		http.Error(w, "encoder unavailable", http.StatusInternalServerError)
		return
	}
	if err := cmd.Start(); err != nil {
		h.logger.Error("ffmpeg start", "error", err)
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}
	defer cmd.Wait()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	if h.opts.Name != "" {
		w.Header().Set("ICY-Name", h.opts.Name)
	}

	listener := h.broadcaster.Subscribe("mp3 " + r.RemoteAddr)
	defer h.broadcaster.Unsubscribe(listener)

	h.logger.Info("listener connected", "remote", r.RemoteAddr, "listeners", h.broadcaster.ListenerCount())
	defer h.logger.Info("listener disconnected", "remote", r.RemoteAddr)

	go feed(ctx, listener, stdin)

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				h.logger.Warn("ffmpeg read", "error", err)
			}
			return
		}
	}
}

// feed writes listener frames to w as little-endian PCM until ctx ends or the listener is dropped.
func feed(ctx context.Context, listener *Listener, w io.WriteCloser) {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-listener.Done():
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			if _, err := w.Write(audio.SamplesToBytes(frame)); err != nil {
				return
			}
		}
	}
}
