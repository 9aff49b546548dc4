package metadata

import (
	"fmt"

	"github.com/bogem/id3v2"
	"github.com/desertthunder/rolx/internal/models"
)

const defaultAlbum = "ROL Music"

// Tags is the metadata written into a downloaded file.
type Tags struct {
	Title    string
	Artist   string
	Album    string
	Year     string
	Language string
	Cover    []byte // JPEG, nil to skip the picture frame
}

// TagsFor builds tags from a track. fallbackAlbum is used when the track has no album.
func TagsFor(t models.Track, fallbackAlbum string, cover []byte) Tags {
	if fallbackAlbum == "" {
		fallbackAlbum = defaultAlbum
	}
	album := Sanitize(t.Album)
	if album == "" {
		album = fallbackAlbum
	}
	return Tags{
		Title:    Sanitize(t.Title),
		Artist:   Sanitize(t.ArtistName),
		Album:    album,
		Year:     t.Year,
		Language: t.Language,
		Cover:    cover,
	}
}

// Tagger writes ID3v2 tags.
type Tagger struct{}

// NewTagger creates a Tagger.
func NewTagger() *Tagger {
	return &Tagger{}
}

// TagFile writes tags into the file at path, replacing any existing frames it sets.
//
// The file is rewritten through a temporary copy, so on error the original bytes are left as they were.
func (t *Tagger) TagFile(path string, tags Tags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open %s for tagging: %w", path, err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetVersion(3)
	tag.SetTitle(tags.Title)
	tag.SetArtist(tags.Artist)
	tag.SetAlbum(tags.Album)

	if tags.Year != "" {
		tag.SetYear(tags.Year)
	}
	if tags.Language != "" {
		tag.DeleteFrames("TLAN")
		tag.AddTextFrame("TLAN", tag.DefaultEncoding(), tags.Language)
	}
	if tags.Cover != nil {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     tags.Cover,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save tags: %w", err)
	}
	return nil
}
