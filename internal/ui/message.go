package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSnapshot MsgKind = iota
	MsgSearchResults
	MsgRequestDone
	MsgProgressUpdate
)

// snapshot carries the latest observed state of each component; nil fields did not change.
type snapshot struct {
	playback  *models.PlaybackState
	queue     []models.Track
	queueSeen bool
	equalizer *models.EqualizerState
}

type searchResults struct {
	query  string
	result *models.SearchResult
	err    error
}

type requestDone struct {
	verb  string
	track models.Track
	err   error
}

// snapshotMsg is the constructor for [MsgSnapshot]
func snapshotMsg(s snapshot) Msg {
	return Msg{kind: MsgSnapshot, data: s}
}

// searchResultsMsg is the constructor for [MsgSearchResults]
func searchResultsMsg(query string, result *models.SearchResult, err error) Msg {
	return Msg{kind: MsgSearchResults, data: searchResults{query, result, err}}
}

// requestDoneMsg is the constructor for [MsgRequestDone]
func requestDoneMsg(verb string, track models.Track, err error) Msg {
	return Msg{kind: MsgRequestDone, data: requestDone{verb, track, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}
