// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package focus implements autofocus by sweeping a manual focus lens.
//
// The Controller drives the lens through Config.Levels discrete focus
// distances, from 0 (infinity) to the closest distance the lens supports. At
// each distance it waits for the lens to settle, samples the sharpness score
// of the current frame and asks the camera to be reconfigured for the next
// distance. Once every distance was tried, the lens is locked at the distance
// that produced the highest score.
//
// The Controller is driven by two events coming from the host: OnFrame for
// each processed frame and OnConfigure each time the camera applies a new
// capture configuration. It never blocks; waiting is done by leaving the state
// unchanged until a later event. It is not safe for concurrent use; all the
// methods must be called from the same goroutine.
package focus

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"
)

// Camera is the capture pipeline the Controller reconfigures.
type Camera interface {
	// ReadyForReconfiguration returns true if RequestReconfiguration would be
	// accepted now.
	ReadyForReconfiguration() bool
	// RequestReconfiguration schedules a later call to Configurer.Configure.
	// It returns false if the request was rejected.
	RequestReconfiguration() bool
}

// CaptureBuilder is the capture configuration about to be applied by the
// camera.
type CaptureBuilder interface {
	// SetManualFocus disables any in-camera autofocus.
	SetManualFocus()
	// SetFocusDistance sets the lens focus distance, in the unit of the
	// actuator. 0 is infinity.
	SetFocusDistance(d float32)
}

// Configurer is called by a camera right before it applies a new capture
// configuration.
//
// minFocus is the closest focus distance supported by the lens, as a
// reciprocal distance. A value of 0 or less means the lens has no manual
// focus control.
type Configurer interface {
	Configure(minFocus float32, b CaptureBuilder)
}

// Request is a CaptureBuilder that records what was set on it.
type Request struct {
	ManualFocus      bool    // SetManualFocus() was called.
	HasFocusDistance bool    // SetFocusDistance() was called.
	FocusDistance    float32 // Last value passed to SetFocusDistance().
}

// SetManualFocus implements CaptureBuilder.
func (r *Request) SetManualFocus() {
	r.ManualFocus = true
}

// SetFocusDistance implements CaptureBuilder.
func (r *Request) SetFocusDistance(d float32) {
	r.FocusDistance = d
	r.HasFocusDistance = true
}

// Config is the sweep configuration.
type Config struct {
	Levels int           // Number of focus distances to try; 2 to MaxLevels.
	Settle time.Duration // Minimum delay between a focus change and its sample.
}

// MaxLevels is the highest supported Config.Levels.
const MaxLevels = 1 << 16

// DefaultConfig tries 50 distances and lets each one settle for 50ms.
var DefaultConfig = Config{Levels: 50, Settle: 50 * time.Millisecond}

// Status is a snapshot of the Controller for display.
type Status struct {
	State State
	Index int     // Best index once Fixed, else the index being evaluated.
	Score float64 // Most recent sharpness score.
}

// Controller runs the focus sweep state machine.
type Controller struct {
	cfg    Config
	cam    Camera
	notify func(msg string)

	state      State
	index      int           // Focus index being evaluated.
	bestIndex  int           // Index with the highest score so far.
	bestScore  float64       // Score at bestIndex.
	nextSample time.Duration // Earliest time to sample index.
	lastScore  float64       // Most recent score, for display.
	minFocus   float32       // Captured at Initialize; used for the whole sweep.
	profile    []float64     // Score sampled at each index of the sweep.
	retry      bool          // The last reconfiguration request was rejected.
}

// New returns a Controller in the Initialize state.
//
// notify is called once with a user visible message if the camera doesn't
// support manual focus. It can be nil.
func New(cfg Config, cam Camera, notify func(msg string)) (*Controller, error) {
	if cfg.Levels < 2 || cfg.Levels > MaxLevels {
		return nil, fmt.Errorf("focus: Levels must be between 2 and %d", MaxLevels)
	}
	if cfg.Settle < 0 {
		return nil, errors.New("focus: Settle must not be negative")
	}
	if cam == nil {
		return nil, errors.New("focus: Camera is required")
	}
	if notify == nil {
		notify = func(string) {}
	}
	return &Controller{cfg: cfg, cam: cam, notify: notify, profile: make([]float64, 0, cfg.Levels)}, nil
}

// Config returns the sweep configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// OnFrame is called once per processed frame with its sharpness score.
//
// When the lens settled at the current index and the camera can be
// reconfigured, the score is committed and the camera is asked to move to
// the next index.
func (c *Controller) OnFrame(score float64, now time.Duration) {
	c.lastScore = score
	switch c.state {
	case Focusing:
		if now < c.nextSample || !c.cam.ReadyForReconfiguration() {
			return
		}
		// Strictly greater so the earliest index wins ties.
		if score > c.bestScore {
			c.bestScore = score
			c.bestIndex = c.index
		}
		c.profile = append(c.profile, score)
		c.state = Pending
		c.request()
	case Initialize, Pending:
		if c.retry && c.cam.ReadyForReconfiguration() {
			c.request()
		}
	}
}

// OnConfigure is called by the camera each time it is about to apply a new
// capture configuration.
//
// It always disables the camera's autofocus. The focus distance is only set
// when the sweep starts, advances or ends.
func (c *Controller) OnConfigure(minFocus float32, b CaptureBuilder, now time.Duration) {
	b.SetManualFocus()
	c.retry = false
	switch c.state {
	case Initialize:
		if !(minFocus > 0) || math.IsInf(float64(minFocus), 0) {
			log.Printf("focus: no manual focus (min focus distance %g)", minFocus)
			c.state = Unsupported
			c.notify("manual focus not supported")
			return
		}
		c.minFocus = minFocus
		c.index = 0
		c.bestIndex = 0
		c.bestScore = 0
		c.profile = c.profile[:0]
		c.nextSample = now + c.cfg.Settle
		c.state = Focusing
		b.SetFocusDistance(0)
		log.Printf("focus: sweeping %d levels up to %g", c.cfg.Levels, minFocus)
	case Pending:
		c.index++
		if c.index < c.cfg.Levels {
			c.nextSample = now + c.cfg.Settle
			c.state = Focusing
			b.SetFocusDistance(c.Distance(c.index))
			return
		}
		// Exhausted. Stay on the last valid index to keep index < Levels.
		c.index = c.cfg.Levels - 1
		c.state = Fixed
		b.SetFocusDistance(c.Distance(c.bestIndex))
		log.Printf("focus: locked at %d (%g) score %.2f", c.bestIndex, c.Distance(c.bestIndex), c.bestScore)
	}
}

// OnUserRestart starts a new sweep once the previous one is done. It is
// ignored in any other state.
func (c *Controller) OnUserRestart() {
	if c.state != Fixed {
		return
	}
	c.state = Initialize
	c.request()
}

// Status returns the state, the index to display and the last score.
func (c *Controller) Status() Status {
	s := Status{State: c.state, Index: c.index, Score: c.lastScore}
	if c.state == Fixed {
		s.Index = c.bestIndex
	}
	return s
}

// Best returns the best index and its score for the current or last sweep.
func (c *Controller) Best() (int, float64) {
	return c.bestIndex, c.bestScore
}

// Profile returns the scores committed at each index of the current or last
// sweep.
func (c *Controller) Profile() []float64 {
	return append([]float64(nil), c.profile...)
}

// Distance returns the focus distance commanded for index i of the sweep.
//
// The last index is exactly the minimum focus distance.
func (c *Controller) Distance(i int) float32 {
	if i == c.cfg.Levels-1 {
		return c.minFocus
	}
	return c.minFocus * float32(i) / float32(c.cfg.Levels-1)
}

// Private details.

func (c *Controller) request() {
	c.retry = !c.cam.RequestReconfiguration()
	if c.retry {
		log.Printf("focus: reconfiguration rejected in %s", c.state)
	}
}
