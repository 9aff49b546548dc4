// Package services talks to the HTTP APIs around the player.
//
// # Catalog
//
// [Catalog] is the lookup surface the resolver depends on. [SaavnService] implements it against two
// endpoints: a song-details API (GET /songs?id=) and a search API (GET /search/songs).
// Both return loosely typed JSON; fields can be strings, numbers, arrays or objects depending on
// the mirror, so responses are decoded into raw structs and normalized into [models.Track].
//
// Normalization picks the 500x500 cover when present, the highest available bitrate for the source
// URL, and walks several artist shapes before falling back to "Unknown Artist".
//
// # Authentication
//
// Public mirrors are anonymous. Self-hosted proxies can require OAuth2 client credentials; see
// [NewCatalogClient].
//
// # Control API Client
//
// [APIService] issues raw requests against a running rolx daemon and is used by the ctl command.
//
// # Error Handling
//
//   - [shared.ErrTrackNotFound] : 404, or no entry with a source
//   - [shared.ErrServiceUnavailable] : 5xx responses
//   - [shared.ErrAPIRequest] : any other failed request or undecodable body
package services
