package metadata

import (
	"regexp"
	"strings"

	"github.com/desertthunder/rolx/internal/models"
)

var (
	displayReplacer = strings.NewReplacer("&", "and", "<", "", ">", "", `"`, "", "'", "", "[", "", "]", "")
	unsafePathChars = regexp.MustCompile(`[:/\\|?*\x00-\x1f]`)
	repeatedSpaces  = regexp.MustCompile(` {2,}`)
	trailingDots    = regexp.MustCompile(`\.+$`)
)

// Sanitize cleans a title or artist for tags and file names: "&" becomes "and", quotes, angle
// brackets and square brackets are dropped, and runs of spaces collapse to one.
func Sanitize(s string) string {
	s = strings.TrimSpace(displayReplacer.Replace(s))
	return repeatedSpaces.ReplaceAllString(s, " ")
}

// FileName returns "{title} - {artist}.mp3" with both parts sanitized and made path safe.
func FileName(t models.Track) string {
	title := pathSafe(Sanitize(t.Title))
	if title == "" {
		title = "Unknown"
	}
	artist := pathSafe(Sanitize(t.ArtistName))
	if artist == "" {
		return title + ".mp3"
	}
	return title + " - " + artist + ".mp3"
}

func pathSafe(s string) string {
	s = unsafePathChars.ReplaceAllString(s, "_")
	s = trailingDots.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
