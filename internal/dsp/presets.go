package dsp

import (
	"strings"

	"github.com/desertthunder/rolx/internal/models"
)

// Preset is a named set of band gains.
type Preset struct {
	Name  string                    `json:"name"`
	Gains [models.BandCount]float64 `json:"gains"`
}

// FlatPreset is applied by [Graph.ResetToFlat].
const FlatPreset = "Flat"

var presets = []Preset{
	{Name: "Balanced", Gains: [models.BandCount]float64{0, 0, 0, 0, 0, 0, 0, 0, 0}},
	{Name: "Flat", Gains: [models.BandCount]float64{0, 0, 0, 0, 0, 0, 0, 0, 0}},
	{Name: "Jazz", Gains: [models.BandCount]float64{0, 0, 2, 3, 2, 1, 0, 0, 0}},
	{Name: "Bass Boost", Gains: [models.BandCount]float64{5, 4, 3, 1, 0, -1, -2, -2, -2}},
	{Name: "Treble Boost", Gains: [models.BandCount]float64{-2, -2, -2, 0, 1, 2, 3, 4, 5}},
	{Name: "Rock", Gains: [models.BandCount]float64{4, 3, 2, 1, 0, 1, 2, 3, 4}},
	{Name: "Pop", Gains: [models.BandCount]float64{3, 2, 1, 0, 0, 1, 2, 3, 3}},
	{Name: "Classical", Gains: [models.BandCount]float64{-2, -1, 0, 1, 2, 1, 0, -1, -2}},
	{Name: "Acoustic", Gains: [models.BandCount]float64{0, 1, 2, 3, 2, 1, 0, 0, 0}},
	{Name: "V-Shape", Gains: [models.BandCount]float64{5, 3, 0, 0, 0, 0, 0, 3, 5}},
	{Name: "Dance", Gains: [models.BandCount]float64{4, 3, 2, 1, 0, 1, 2, 3, 4}},
	{Name: "Hip-Hop", Gains: [models.BandCount]float64{6, 4, 2, 0, 0, 0, 2, 4, 6}},
	{Name: "Electronic", Gains: [models.BandCount]float64{5, 4, 3, 1, 0, 1, 3, 4, 5}},
	{Name: "Vocal", Gains: [models.BandCount]float64{-1, 0, 1, 2, 3, 2, 1, 0, -1}},
	{Name: "Party", Gains: [models.BandCount]float64{5, 4, 3, 2, 1, 2, 3, 4, 5}},
	{Name: "Large Hall", Gains: [models.BandCount]float64{0, 1, 2, 3, 3, 2, 1, 0, 0}},
}

// Presets returns the built-in presets in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// PresetNames returns the preset names in display order.
func PresetNames() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return names
}

// LookupPreset finds a preset by name, ignoring case and surrounding space.
func LookupPreset(name string) (Preset, bool) {
	name = strings.TrimSpace(name)
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Preset{}, false
}
