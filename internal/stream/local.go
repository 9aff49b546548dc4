package stream

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/audio"
	"github.com/desertthunder/rolx/internal/shared"
)

// LocalSink plays the broadcast on the host's speakers through ffplay.
type LocalSink struct {
	broadcaster *Broadcaster
	path        string
	logger      *log.Logger
}

// NewLocalSink creates a sink using the ffplay binary at path ("ffplay" when empty).
func NewLocalSink(b *Broadcaster, path string, logger *log.Logger) *LocalSink {
	if path == "" {
		path = "ffplay"
	}
	return &LocalSink{broadcaster: b, path: path, logger: shared.WithLogger(logger, "component", "stream.local")}
}

// PlayerArgs returns the ffplay arguments that play raw PCM from stdin without a window.
func PlayerArgs() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nodisp",
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ch_layout", "stereo",
		"-i", "pipe:0",
	}
}

// Run feeds frames to ffplay until ctx is cancelled or ffplay exits.
func (s *LocalSink) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.path, PlayerArgs()...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffplay stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffplay start: %w", err)
	}

	listener := s.broadcaster.Subscribe("local")
	defer s.broadcaster.Unsubscribe(listener)
	s.logger.Info("local output started", "player", s.path)

	go feed(ctx, listener, stdin)

	err = cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ffplay: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
