// Package ui implements an interactive terminal player using bubbletea's Elm architecture.
//
// The TUI has four views, cycled with tab:
//  1. [NowPlayingView] : Current track, transport status and progress
//  2. [QueueView] : Upcoming tracks; remove and reorder in place
//  3. [EqualizerView] : Nine band gains, presets and the hall reverb
//  4. [SearchView] : Catalog search; play, add to queue or play next
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Engine, queue and equalizer observers are coalesced into a single pending snapshot so a burst of
// progress ticks renders once. Play requests report through a progress channel like the CLI does.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
