// Package dsp implements the signal processing graph that sits between the
// audio source and the outputs:
//
//	source -> 9 peaking biquads -> [convolution reverb] -> master gain -> output
//
// A [Graph] owns an immutable-shape chain. Band and master gain edits update
// the live chain in place; toggling the reverb builds a new chain and swaps it
// in one step, bumping the graph generation. A source is attached at most once.
package dsp
