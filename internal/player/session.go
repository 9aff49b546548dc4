package player

import "github.com/desertthunder/rolx/internal/models"

// NowPlaying is the metadata handed to the host's media session.
type NowPlaying struct {
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album"`
	Artwork  string  `json:"artwork,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Transport is the set of actions a media session can trigger.
type Transport interface {
	TogglePlay()
	SkipNext()
	SkipPrevious()
}

// MediaSession bridges the engine to system media controls.
type MediaSession interface {
	SetMetadata(NowPlaying)
	SetActionHandlers(Transport)
}

type noopSession struct{}

func (noopSession) SetMetadata(NowPlaying)      {}
func (noopSession) SetActionHandlers(Transport) {}

func (e *Engine) nowPlaying(t models.Track) NowPlaying {
	album := t.Album
	if album == "" {
		album = e.appName
	}
	return NowPlaying{
		Title:    t.Title,
		Artist:   t.ArtistName,
		Album:    album,
		Artwork:  t.Cover,
		Duration: t.Duration,
	}
}
