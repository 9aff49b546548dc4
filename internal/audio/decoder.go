package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Decoder opens a track source as a raw s16le, 48 kHz, stereo PCM stream starting at offset seconds.
type Decoder interface {
	Open(ctx context.Context, src string, offset float64) (io.ReadCloser, error)
}

// FFmpegDecoder decodes any source ffmpeg understands, including remote URLs.
type FFmpegDecoder struct {
	// Path is the ffmpeg binary. Defaults to "ffmpeg".
	Path string
}

// Args returns the ffmpeg arguments used to decode src from offset.
func (d FFmpegDecoder) Args(src string, offset float64) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
			"-rw_timeout", "10000000",
		)
	}
	if offset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(offset, 'f', 3, 64))
	}
	return append(args,
		"-i", src,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"pipe:1",
	)
}

// Open starts ffmpeg. Closing the returned reader kills the process.
func (d FFmpegDecoder) Open(ctx context.Context, src string, offset float64) (io.ReadCloser, error) {
	bin := d.Path
	if bin == "" {
		bin = "ffmpeg"
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, bin, d.Args(src, offset)...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	return &ffmpegStream{cmd: cmd, stdout: stdout, stderr: stderr, cancel: cancel}, nil
}

type ffmpegStream struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	cancel  context.CancelFunc
	once    sync.Once
	waitErr error
}

// Read surfaces a non-zero ffmpeg exit as an error instead of a clean EOF.
func (s *ffmpegStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if errors.Is(err, io.EOF) {
		if werr := s.wait(); werr != nil {
			return n, fmt.Errorf("ffmpeg decode: %w: %s", werr, strings.TrimSpace(s.stderr.String()))
		}
	}
	return n, err
}

func (s *ffmpegStream) Close() error {
	s.cancel()
	s.wait()
	return nil
}

func (s *ffmpegStream) wait() error {
	s.once.Do(func() { s.waitErr = s.cmd.Wait() })
	return s.waitErr
}

// ReadFrame reads one full frame from r. A short final frame is zero padded and returned with a nil error;
// the following call returns [io.EOF].
func ReadFrame(r io.Reader, buf []byte) ([]int16, error) {
	n, err := io.ReadFull(r, buf)
	switch {
	case n == 0 && err != nil:
		return nil, err
	case errors.Is(err, io.ErrUnexpectedEOF):
		clear(buf[n:])
	case err != nil:
		return nil, err
	}
	return BytesToSamples(buf), nil
}

// BytesToSamples converts little-endian bytes to int16 samples, dropping a trailing odd byte.
func BytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return samples
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
