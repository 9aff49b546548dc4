package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTrackNotFound      = fmt.Errorf("track not found")

	// Playback errors
	ErrNotPlayable   = fmt.Errorf("track has no playable source")
	ErrNoTrack       = fmt.Errorf("no track loaded")
	ErrPlaybackStart = fmt.Errorf("playback failed to start")
	ErrSuperseded    = fmt.Errorf("request superseded by a newer one")

	// Signal graph errors
	ErrAlreadyAttached = fmt.Errorf("source already attached")
	ErrNotAttached     = fmt.Errorf("no source attached")
	ErrUnknownPreset   = fmt.Errorf("unknown equalizer preset")

	// Download errors
	ErrDownloadInProgress = fmt.Errorf("a download is already in progress")
	ErrDownloadFailed     = fmt.Errorf("download failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidIndex    = fmt.Errorf("index out of range")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
