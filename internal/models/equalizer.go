package models

// BandCount is the number of equalizer bands.
const BandCount = 9

const (
	MinBandGain = -12.0
	MaxBandGain = 12.0
)

// BandFrequencies are the center frequencies of each peaking band, in Hz.
var BandFrequencies = [BandCount]float64{60, 170, 310, 600, 1000, 3000, 6000, 12000, 14000}

// EqualizerState is a snapshot of the signal graph settings.
type EqualizerState struct {
	Gains      [BandCount]float64 `json:"gains"`
	Hall       bool               `json:"hall"`
	Preset     string             `json:"preset,omitempty"`
	MasterGain float64            `json:"masterGain"`
	Generation uint64             `json:"generation"`
}

// ClampGain limits a gain to the supported band range.
func ClampGain(db float64) float64 {
	return max(MinBandGain, min(MaxBandGain, db))
}
