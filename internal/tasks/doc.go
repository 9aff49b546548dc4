// Package tasks runs user requests that span several components, reporting progress as it goes.
//
// # Play Requests
//
// [Session] resolves a track before it reaches the player. Requests are numbered and the player's
// generation is read when each one starts; when a newer request starts, or the player loads
// something else while an older one is still resolving, the older result is dropped and the call
// returns [shared.ErrSuperseded]. [Session.PlayAll] plays one track of a list as soon as it
// resolves, then replaces the queue with the resolved tracks that follow it. [Session.Enqueue]
// and [Session.EnqueueNext] resolve before adding.
//
// # Downloads
//
// [Downloader] holds a single job slot. A download streams the audio body to a temporary file
// (progress 0-85%) while the cover is fetched and resized alongside it. The file is then tagged
// (90%) and renamed into place (98%) before the job is marked done (100%). Tagging failures keep
// the raw audio. Any other failure marks the job failed. Either way the job stays visible for the
// configured grace period and is then cleared.
//
// # Progress Reporting
//
// Operations accept an optional progress channel. Updates are sent with select/default so a slow
// reader never blocks the operation; [ProgressUpdate.Data] carries the track or job for richer UIs.
package tasks
