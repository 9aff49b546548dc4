package server

import (
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/rolx/internal/player"
	"github.com/desertthunder/rolx/internal/shared"
)

// Transport actions accepted by [MediaSession.Trigger].
const (
	ActionPlay          = "play"
	ActionPause         = "pause"
	ActionNextTrack     = "nexttrack"
	ActionPreviousTrack = "previoustrack"
)

// MediaSession is the daemon's stand-in for system media controls.
//
// The engine publishes metadata into it; remote clients read it back and fire
// transport actions through the control API.
type MediaSession struct {
	mu        sync.RWMutex
	current   *player.NowPlaying
	transport player.Transport
}

// NewMediaSession creates an empty session.
func NewMediaSession() *MediaSession {
	return &MediaSession{}
}

// SetMetadata implements [player.MediaSession].
func (m *MediaSession) SetMetadata(np player.NowPlaying) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &np
}

// SetActionHandlers implements [player.MediaSession].
func (m *MediaSession) SetActionHandlers(t player.Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transport = t
}

// NowPlaying returns the last published metadata.
func (m *MediaSession) NowPlaying() (player.NowPlaying, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return player.NowPlaying{}, false
	}
	return *m.current, true
}

// Trigger runs a transport action. Play and pause both toggle.
func (m *MediaSession) Trigger(action string) error {
	m.mu.RLock()
	t := m.transport
	m.mu.RUnlock()

	if t == nil {
		return fmt.Errorf("%w: no transport handlers registered", shared.ErrServiceUnavailable)
	}

	switch strings.ToLower(action) {
	case ActionPlay, ActionPause:
		t.TogglePlay()
	case ActionNextTrack:
		t.SkipNext()
	case ActionPreviousTrack:
		t.SkipPrevious()
	default:
		return fmt.Errorf("%w: unknown transport action %q", shared.ErrInvalidArgument, action)
	}
	return nil
}
