package services

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/desertthunder/rolx/internal/models"
)

const unknownArtist = "Unknown Artist"

var (
	entityReplacer = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#039;", "'",
		"&apos;", "'",
		"&#x27;", "'",
		"&#x2F;", "/",
		"&nbsp;", " ",
	)
	bitratePreference = []string{"320kbps", "160kbps", "96kbps", "48kbps", "12kbps"}
)

// flexString accepts a JSON string, number, bool or null and keeps its text.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(b)
	}
	return nil
}

func (f flexString) String() string { return string(f) }

func (f flexString) Float() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(f)), 64)
	if err != nil {
		return 0
	}
	return v
}

// truthy follows the catalog's loose booleans: "", "0" and "false" are false.
func (f flexString) truthy() bool {
	switch strings.TrimSpace(string(f)) {
	case "", "0", "false":
		return false
	}
	return true
}

type rawLink struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
	Link    string `json:"link"`
}

func (l rawLink) href() string {
	if l.URL != "" {
		return l.URL
	}
	return l.Link
}

type rawArtist struct {
	ID   flexString `json:"id"`
	Name string     `json:"name"`
	Role string     `json:"role"`
}

type rawArtists struct {
	Primary []rawArtist `json:"primary"`
	All     []rawArtist `json:"all"`
}

type rawAlbum struct {
	ID   flexString `json:"id"`
	Name string     `json:"name"`
}

// rawSong is a song entry as either API returns it.
type rawSong struct {
	ID               flexString      `json:"id"`
	Name             string          `json:"name"`
	Title            string          `json:"title"`
	Image            json.RawMessage `json:"image"`
	DownloadURL      json.RawMessage `json:"downloadUrl"`
	Artists          json.RawMessage `json:"artists"`
	PrimaryArtists   json.RawMessage `json:"primaryArtists"`
	PrimaryArtistsID flexString      `json:"primaryArtistsId"`
	Album            json.RawMessage `json:"album"`
	AlbumID          flexString      `json:"albumId"`
	Duration         flexString      `json:"duration"`
	Language         flexString      `json:"language"`
	Year             flexString      `json:"year"`
	ReleaseDate      flexString      `json:"releaseDate"`
	PlayCount        flexString      `json:"playCount"`
	HasLyrics        flexString      `json:"hasLyrics"`
	ExplicitContent  flexString      `json:"explicitContent"`
}

func decodeEntities(s string) string {
	return strings.TrimSpace(entityReplacer.Replace(s))
}

func parseLinks(raw json.RawMessage) []rawLink {
	var links []rawLink
	if len(raw) == 0 || json.Unmarshal(raw, &links) != nil {
		return nil
	}
	return links
}

// bestImage prefers the 500x500 rendition, otherwise the last (largest) one.
func bestImage(raw json.RawMessage) string {
	links := parseLinks(raw)
	if len(links) == 0 {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		return ""
	}
	for _, l := range links {
		if l.Quality == "500x500" {
			return l.href()
		}
	}
	return links[len(links)-1].href()
}

// bestAudio walks the bitrate preference list, otherwise the last entry.
func bestAudio(raw json.RawMessage) string {
	links := parseLinks(raw)
	if len(links) == 0 {
		return ""
	}
	for _, q := range bitratePreference {
		for _, l := range links {
			if l.Quality == q {
				return l.href()
			}
		}
	}
	return links[len(links)-1].href()
}

// artists returns display names and the first artist id.
func (s rawSong) artists() ([]string, string) {
	var structured rawArtists
	if len(s.Artists) > 0 && json.Unmarshal(s.Artists, &structured) == nil {
		list := structured.Primary
		if len(list) == 0 {
			for _, a := range structured.All {
				if a.Role == "singer" || a.Role == "primary_artists" {
					list = append(list, a)
				}
			}
		}
		if len(list) > 0 {
			return artistNames(list), list[0].ID.String()
		}
	}

	var list []rawArtist
	if len(s.PrimaryArtists) > 0 && json.Unmarshal(s.PrimaryArtists, &list) == nil && len(list) > 0 {
		return artistNames(list), list[0].ID.String()
	}

	var joined string
	if len(s.PrimaryArtists) > 0 && json.Unmarshal(s.PrimaryArtists, &joined) == nil && strings.TrimSpace(joined) != "" {
		ids := strings.Split(s.PrimaryArtistsID.String(), ",")
		var names []string
		for name := range strings.SplitSeq(joined, ",") {
			if name = decodeEntities(name); name != "" {
				names = append(names, name)
			}
		}
		return names, strings.TrimSpace(ids[0])
	}

	if len(s.Artists) > 0 && json.Unmarshal(s.Artists, &joined) == nil && strings.TrimSpace(joined) != "" {
		return []string{decodeEntities(joined)}, ""
	}
	return nil, ""
}

func artistNames(list []rawArtist) []string {
	names := make([]string, 0, len(list))
	for _, a := range list {
		if n := decodeEntities(a.Name); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func (s rawSong) album() (id, name string) {
	id = s.AlbumID.String()
	var obj rawAlbum
	if len(s.Album) > 0 && json.Unmarshal(s.Album, &obj) == nil {
		if obj.ID != "" {
			id = obj.ID.String()
		}
		return id, decodeEntities(obj.Name)
	}
	var str string
	if len(s.Album) > 0 && json.Unmarshal(s.Album, &str) == nil {
		return id, decodeEntities(str)
	}
	return id, ""
}

func (s rawSong) year() string {
	if y := s.Year.String(); y != "" {
		return y
	}
	if d := s.ReleaseDate.String(); len(d) >= 4 {
		return d[:4]
	}
	return ""
}

// normalize maps a raw catalog entry to a Track. Entries without an id are dropped.
func (s rawSong) normalize() (models.Track, bool) {
	id := strings.TrimSpace(s.ID.String())
	if id == "" {
		return models.Track{}, false
	}

	title := s.Name
	if title == "" {
		title = s.Title
	}
	title = decodeEntities(title)
	if title == "" {
		title = "Unknown"
	}

	names, artistID := s.artists()
	artist := strings.Join(names, ", ")
	if artist == "" {
		artist = unknownArtist
	}

	albumID, album := s.album()
	return models.Track{
		ID:         id,
		Title:      title,
		ArtistName: artist,
		ArtistID:   artistID,
		AlbumID:    albumID,
		Album:      album,
		Src:        bestAudio(s.DownloadURL),
		Cover:      bestImage(s.Image),
		Duration:   max(s.Duration.Float(), 0),
		Language:   s.Language.String(),
		Year:       s.year(),
		HasLyrics:  s.HasLyrics.truthy(),
		Explicit:   s.ExplicitContent.truthy(),
		PlayCount:  int64(s.PlayCount.Float()),
	}, true
}

// decodeSongs accepts either a single song object or an array of them.
func decodeSongs(raw json.RawMessage) []rawSong {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '[' {
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return nil
		}
		songs := make([]rawSong, 0, len(items))
		for _, item := range items {
			var s rawSong
			if json.Unmarshal(item, &s) == nil {
				songs = append(songs, s)
			}
		}
		return songs
	}
	var s rawSong
	if json.Unmarshal(raw, &s) != nil {
		return nil
	}
	return []rawSong{s}
}
