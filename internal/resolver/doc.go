// Package resolver turns catalog tracks into playable tracks.
//
// Resolution walks layers in order and stops at the first that yields a source URL:
//
//  1. the track already has a source
//  2. the resolution cache, when configured
//  3. a direct lookup by id
//  4. a search by "title artist", preferring an exact id match
//
// A [Resolver] never fails: when every layer misses, [Resolver.Resolve] returns the input track
// unchanged with [LayerNone] and logs the failure. Catalog calls share one rate limiter and are
// retried with exponential backoff on transient errors. Concurrent resolutions of the same track
// share a single lookup.
package resolver
