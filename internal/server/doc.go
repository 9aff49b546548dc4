// Package server provides HTTP routing, middleware and the JSON control API of the playback daemon.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// The [BasicRouter] implementation registers "METHOD /path" patterns on an [http.ServeMux].
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and
// adds routes, so one handler can own several patterns.
//
// # Control API
//
// [API] exposes playback, queue, equalizer, download, search and media-session endpoints.
// Domain errors map to status codes through [StatusFor]; every error body is {"error": "..."}.
//
// GET /api/events streams state, queue, eq and download changes as server-sent events through a [Hub].
//
// # Media Session
//
// [MediaSession] receives now-playing metadata and transport handlers from the engine and lets
// remote clients trigger play, pause, nexttrack and previoustrack.
package server
