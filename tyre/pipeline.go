// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tyre detects a tyre in a 32x24 thermal frame and measures the
// temperature of its inner, centre and outer zones.
//
// A Pipeline keeps a small amount of state between frames to smooth the
// detection. It is not safe for concurrent use; use one per camera.
package tyre

// Pipeline processes frames of a single camera.
type Pipeline struct {
	cfg     Config
	weights [MaxPersistence + 1]float64
	state   State
	frames  uint32
}

// New returns a Pipeline using cfg.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, weights: persistenceWeights(cfg.PersistenceFrames)}, nil
}

// Config returns the configuration in use.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// State returns a copy of the state carried between frames.
func (p *Pipeline) State() State {
	return p.state
}

// Reset forgets all past frames. The next frame is processed like the very
// first one.
func (p *Pipeline) Reset() {
	p.state = State{}
	p.frames = 0
}

// Process analyzes one frame.
//
// f must not contain NaN or infinite values; see Frame.Sanitize.
func (p *Pipeline) Process(f *Frame) FrameResult {
	p.frames++
	r := FrameResult{FrameNumber: p.frames}
	c := &p.cfg

	var raw, filtered Profile
	extractProfile(f, c, &raw)
	spatialMedian(&raw, &filtered)
	ema(&p.state, c.EMAAlpha, &filtered, &r.Profile)

	g := newGate(&r.Profile, c)
	r.MedianTemp = g.median
	r.MADGlobal = g.mad
	r.Delta = g.delta
	if g.mad < c.MADUniformThreshold {
		// Nothing stands out; report the whole field of view.
		third := Width / 3
		r.Inner = zoneStats(f, 0, third-1)
		r.Centre = zoneStats(f, third, 2*third-1)
		r.Outer = zoneStats(f, 2*third, Width-1)
		r.Detection = Detection{End: Width - 1, Width: Width}
		r.Warnings = c.warnings(&r)
		return r
	}

	s := grow(&r.Profile, c, &g)
	s = stabilize(s, &p.state, c, &p.weights)
	r.Detection.Detected = true
	r.Detection.Inverted = g.inverted
	analyzeZones(f, &r.Profile, s, c, &r)
	r.Warnings = c.warnings(&r)
	return r
}
