package dsp

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/audio"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
)

const bandQ = 1.0

// Options configures a [Graph].
type Options struct {
	SampleRate  int
	HallSeconds float64
	HallMix     float64
	MasterGain  float64
	Logger      *log.Logger
}

// Listener receives the full equalizer state after every change.
type Listener func(models.EqualizerState)

// chain is one built instance of the processing nodes.
type chain struct {
	generation uint64
	filters    [models.BandCount]*Biquad
	reverb     *Convolver
	pair       [audio.Channels]float64
}

func (c *chain) process(frame []int16, master float64) []int16 {
	for i := 0; i+audio.Channels <= len(frame); i += audio.Channels {
		for ch := range audio.Channels {
			x := float64(frame[i+ch])
			for _, f := range c.filters {
				x = f.step(ch, x)
			}
			c.pair[ch] = x
		}
		if c.reverb != nil {
			c.reverb.process(c.pair[:])
		}
		for ch := range audio.Channels {
			frame[i+ch] = clamp16(c.pair[ch] * master)
		}
	}
	return frame
}

// Graph is the equalizer, reverb, and master gain between a source and the outputs.
type Graph struct {
	opts   Options
	logger *log.Logger

	mu         sync.Mutex
	chain      *chain
	gains      [models.BandCount]float64
	hall       bool
	preset     string
	master     float64
	generation uint64
	source     audio.Source
	version    uint64
	impulse    *Impulse

	notifyMu  sync.Mutex
	delivered uint64
	listeners map[int]Listener
	nextID    int
}

// NewGraph builds a flat graph with the reverb disabled.
func NewGraph(opts Options) *Graph {
	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.SampleRate
	}
	if opts.HallSeconds <= 0 {
		opts.HallSeconds = 2
	}
	if opts.MasterGain <= 0 {
		opts.MasterGain = 1
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	g := &Graph{
		opts:      opts,
		logger:    shared.WithLogger(opts.Logger, "component", "dsp"),
		master:    opts.MasterGain,
		preset:    FlatPreset,
		listeners: make(map[int]Listener),
	}
	g.chain = g.build(false)
	return g
}

// build creates a fresh chain with the current gains. Callers hold mu or own g exclusively.
func (g *Graph) build(hall bool) *chain {
	g.generation++
	c := &chain{generation: g.generation}
	for i, freq := range models.BandFrequencies {
		c.filters[i] = NewPeaking(freq, bandQ, g.gains[i], g.opts.SampleRate)
	}
	if hall {
		if g.impulse == nil {
			ir := HallImpulse(g.opts.HallSeconds, g.opts.SampleRate)
			g.impulse = &ir
		}
		c.reverb = NewConvolver(*g.impulse, g.opts.HallMix)
	}
	return c
}

// Attach connects src to the graph. A graph accepts one source for its lifetime.
func (g *Graph) Attach(src audio.Source) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.source != nil {
		return fmt.Errorf("%w: graph generation %d", shared.ErrAlreadyAttached, g.generation)
	}
	if err := src.Connect(g); err != nil {
		return fmt.Errorf("failed to connect source: %w", err)
	}
	g.source = src
	g.logger.Debug("source attached", "generation", g.generation)
	return nil
}

// Attached reports whether a source is connected.
func (g *Graph) Attached() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.source != nil
}

// Process runs frame through the current chain.
func (g *Graph) Process(frame []int16) []int16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chain.process(frame, g.master)
}

// SetBand changes one band gain on the live chain. The gain is clamped to ±12 dB.
func (g *Graph) SetBand(index int, gainDB float64) error {
	if index < 0 || index >= models.BandCount {
		return fmt.Errorf("%w: band %d", shared.ErrInvalidIndex, index)
	}

	g.mu.Lock()
	gain := models.ClampGain(gainDB)
	g.gains[index] = gain
	g.chain.filters[index].SetGain(gain)
	g.preset = ""
	state, v := g.commit()
	g.mu.Unlock()

	g.publish(state, v)
	return nil
}

// SetPreset applies all nine gains of the named preset in one step.
func (g *Graph) SetPreset(name string) error {
	p, ok := LookupPreset(name)
	if !ok {
		return fmt.Errorf("%w: %q", shared.ErrUnknownPreset, name)
	}

	g.mu.Lock()
	for i, gain := range p.Gains {
		g.gains[i] = gain
		g.chain.filters[i].SetGain(gain)
	}
	g.preset = p.Name
	state, v := g.commit()
	g.mu.Unlock()

	g.logger.Debug("preset applied", "preset", p.Name)
	g.publish(state, v)
	return nil
}

// ResetToFlat applies the Flat preset.
func (g *Graph) ResetToFlat() {
	if err := g.SetPreset(FlatPreset); err != nil {
		g.logger.Error("flat preset missing", "err", err)
	}
}

// SetHallEnabled rebuilds the whole chain with or without the reverb stage.
func (g *Graph) SetHallEnabled(on bool) {
	g.mu.Lock()
	if g.hall == on {
		g.mu.Unlock()
		return
	}
	g.hall = on
	g.chain = g.build(on)
	state, v := g.commit()
	g.mu.Unlock()

	g.logger.Debug("graph rebuilt", "hall", on, "generation", state.Generation)
	g.publish(state, v)
}

// SetMasterGain sets the linear output gain, clamped to [0, 4].
func (g *Graph) SetMasterGain(gain float64) {
	g.mu.Lock()
	g.master = max(0, min(4, gain))
	state, v := g.commit()
	g.mu.Unlock()
	g.publish(state, v)
}

// State returns the current settings.
func (g *Graph) State() models.EqualizerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

// Subscribe registers fn for future changes and returns a func that removes it.
func (g *Graph) Subscribe(fn Listener) (unsubscribe func()) {
	g.notifyMu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.notifyMu.Unlock()

	return func() {
		g.notifyMu.Lock()
		delete(g.listeners, id)
		g.notifyMu.Unlock()
	}
}

// commit bumps the publish version and returns the state to publish. Callers hold mu.
func (g *Graph) commit() (models.EqualizerState, uint64) {
	g.version++
	return g.snapshot(), g.version
}

// snapshot copies the state. Callers hold mu.
func (g *Graph) snapshot() models.EqualizerState {
	return models.EqualizerState{
		Gains:      g.gains,
		Hall:       g.hall,
		Preset:     g.preset,
		MasterGain: g.master,
		Generation: g.chain.generation,
	}
}

// publish delivers state unless a newer one already went out.
func (g *Graph) publish(state models.EqualizerState, v uint64) {
	g.notifyMu.Lock()
	defer g.notifyMu.Unlock()

	if v <= g.delivered {
		return
	}
	g.delivered = v
	for _, fn := range g.listeners {
		fn(state)
	}
}

func clamp16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
