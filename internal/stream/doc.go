// Package stream carries processed PCM frames from the pipeline to listeners.
//
// A [Broadcaster] fans frames out to every sink. Sinks never block the broadcast: a listener that
// falls behind loses frames.
//
// Sinks:
//   - [HTTPHandler] : chunked MP3 over HTTP, one ffmpeg encoder per connection
//   - [WebRTCHandler] : SDP offer/answer, Opus over a WebRTC audio track
//   - [LocalSink] : host speakers through ffplay
package stream
