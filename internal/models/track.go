package models

import (
	"fmt"
	"strings"
)

// Track is a catalog song. It is a value: methods never mutate the receiver.
//
// Src is empty until the track has been resolved to a streamable URL.
type Track struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	ArtistName string  `json:"artistName"`
	ArtistID   string  `json:"artistId,omitempty"`
	AlbumID    string  `json:"albumId,omitempty"`
	Album      string  `json:"album,omitempty"`
	Src        string  `json:"src,omitempty"`
	Cover      string  `json:"cover,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Language   string  `json:"language,omitempty"`
	Year       string  `json:"year,omitempty"`
	HasLyrics  bool    `json:"hasLyrics,omitempty"`
	Explicit   bool    `json:"explicit,omitempty"`
	PlayCount  int64   `json:"playCount,omitempty"`
}

// Playable reports whether the track can be handed to the playback engine.
func (t Track) Playable() bool {
	return strings.TrimSpace(t.Src) != ""
}

// Merge layers the non-zero fields of resolved over t and returns the result.
func (t Track) Merge(resolved Track) Track {
	out := t
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	pick(&out.ID, resolved.ID)
	pick(&out.Title, resolved.Title)
	pick(&out.ArtistName, resolved.ArtistName)
	pick(&out.ArtistID, resolved.ArtistID)
	pick(&out.AlbumID, resolved.AlbumID)
	pick(&out.Album, resolved.Album)
	pick(&out.Src, resolved.Src)
	pick(&out.Cover, resolved.Cover)
	pick(&out.Language, resolved.Language)
	pick(&out.Year, resolved.Year)

	if resolved.Duration > 0 {
		out.Duration = resolved.Duration
	}
	if resolved.PlayCount > 0 {
		out.PlayCount = resolved.PlayCount
	}
	out.HasLyrics = out.HasLyrics || resolved.HasLyrics
	out.Explicit = out.Explicit || resolved.Explicit
	return out
}

// Validate checks the fields every track must carry.
func (t Track) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("track id is required")
	}
	if t.Duration < 0 {
		return fmt.Errorf("track %s has negative duration", t.ID)
	}
	return nil
}

// SearchQuery is the free-text query used to find this track by title and artist.
func (t Track) SearchQuery() string {
	return strings.TrimSpace(t.Title + " " + t.ArtistName)
}

// String renders "Title - Artist" for logs and terminal output.
func (t Track) String() string {
	if t.ArtistName == "" {
		return t.Title
	}
	return t.Title + " - " + t.ArtistName
}

// SearchResult is one page of catalog search results.
type SearchResult struct {
	Results []Track `json:"results"`
	Total   int     `json:"total"`
}
