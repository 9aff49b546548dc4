// Package repositories implements SQLite persistence for resolved tracks and download history.
//
// Key Implementations:
//   - [TrackRepository] : resolved tracks keyed by catalog id, soft-deletable
//   - [TrackCacheAdapter] : the resolver's cache layer, backed by [TrackRepository] with a freshness TTL
//   - [DownloadRepository] : one row per finished or failed export; also the downloader's recorder
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
