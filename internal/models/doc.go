// Package models defines the values that flow through the playback core and the entities it persists.
//
// The package contains two categories of types:
//
// 1. Values: immutable snapshots passed between components
//   - [Track] : catalog song metadata plus an optional playable source
//   - [PlaybackState] : what the engine is doing right now
//   - [EqualizerState] : band gains, reverb flag, and graph generation
//   - [DownloadJob] : the single in-flight export and its progress
//   - [SearchResult] : one page of catalog search results
//
// 2. Persistent Entities: database-backed models
//   - [PersistedTrack] : a resolved track cached by catalog id
//   - [PersistedDownload] : history of finished and failed exports
//
// Persistent entities implement [Model]. The track cache is a full [Repository]; download history is
// an append-only [Log].
package models
