// Package metadata prepares downloaded tracks for the file system.
//
// [Tagger] writes ID3v2 frames (title, artist, album, year, language and a front cover) into a
// downloaded file in place. [ImageService] scales cover art down to a maximum size and re-encodes
// it as JPEG. [FileName] builds the "{title} - {artist}.mp3" name from sanitized track fields.
package metadata
