// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package autofocus glues a camera to the sharpness metric and the focus
// sweep.
//
// A Processor evaluates each frame, feeds the score to a focus.Controller and
// answers the camera's configuration callbacks. Run drives a Camera with a
// Processor on the calling goroutine; other goroutines interact through
// Restart and Snapshot.
package autofocus

import (
	"image"
	"io"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/maruel/go-autofocus/focus"
	"github.com/maruel/go-autofocus/sharpness"
	"gonum.org/v1/gonum/floats"
)

// Camera is a capture pipeline with a manual focus lens.
type Camera interface {
	io.Closer
	focus.Camera
	// Capture blocks until the next frame is available and converts it into
	// dst, reshaping it as needed.
	//
	// When a reconfiguration is pending, and for the very first capture, c is
	// called before the frame is captured.
	Capture(dst *image.Gray, c focus.Configurer) error
}

// Snapshot is the state of a Processor, safe to use from any goroutine.
type Snapshot struct {
	focus.Status
	Bounds  image.Rectangle // Dimensions of the last frame.
	Frames  int             // Number of frames processed.
	Profile []float64       // Scores sampled during the current or last sweep.
	Peak    float64         // Highest score in Profile.
	Message string          // Last notification from the controller.
}

// Processor feeds frames to a focus.Controller.
//
// ProcessFrame and Configure must be called from a single
// goroutine.
type Processor struct {
	metric  sharpness.Metric
	ctrl    *focus.Controller
	clock   clock.Clock
	start   time.Time
	restart chan struct{}

	mu   sync.Mutex
	snap Snapshot
}

// New returns a Processor sweeping cam with the configuration cfg.
//
// clk is the only source of monotonic time for both frames and
// configuration callbacks; nil means the wall clock.
func New(cfg focus.Config, cam focus.Camera, clk clock.Clock) (*Processor, error) {
	if clk == nil {
		clk = clock.New()
	}
	p := &Processor{clock: clk, start: clk.Now(), restart: make(chan struct{}, 1)}
	ctrl, err := focus.New(cfg, cam, p.notify)
	if err != nil {
		return nil, err
	}
	p.ctrl = ctrl
	p.publish()
	return p, nil
}

// ProcessFrame evaluates img and forwards its score to the controller.
//
// Frames and configuration callbacks are both stamped with the Processor's
// clock. A host with its own time base, e.g. sensor timestamps, passes a
// clock.Clock reading it to New.
//
// An empty frame returns sharpness.ErrEmpty and is otherwise ignored.
func (p *Processor) ProcessFrame(img *image.Gray) error {
	p.handleRestart()
	score, err := p.metric.Evaluate(img)
	if err != nil {
		return err
	}
	p.ctrl.OnFrame(score, p.now())
	p.mu.Lock()
	p.snap.Frames++
	p.mu.Unlock()
	p.publish()
	return nil
}

// Configure implements focus.Configurer.
func (p *Processor) Configure(minFocus float32, b focus.CaptureBuilder) {
	p.ctrl.OnConfigure(minFocus, b, p.now())
	p.publish()
}

// Restart requests a new sweep once the current one is done. It is safe to
// call from any goroutine; the request is handled with the next frame.
func (p *Processor) Restart() {
	select {
	case p.restart <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the latest state.
func (p *Processor) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.snap
	s.Profile = append([]float64(nil), s.Profile...)
	return s
}

// Edges renders the edge intensity of the last frame into dst.
//
// It must be called from the goroutine processing frames.
func (p *Processor) Edges(dst *image.Gray) *image.Gray {
	return p.metric.Edges(dst)
}

// Controller returns the underlying controller.
func (p *Processor) Controller() *focus.Controller {
	return p.ctrl
}

// Run captures frames from cam and processes them until done is closed.
//
// onFrame, if not nil, is called on the same goroutine after each frame was
// processed. Empty frames are skipped. Run returns the first capture error.
func (p *Processor) Run(cam Camera, done <-chan struct{}, onFrame func(img *image.Gray, s Snapshot)) error {
	img := &image.Gray{}
	for {
		select {
		case <-done:
			return nil
		default:
		}
		if err := cam.Capture(img, p); err != nil {
			return err
		}
		if err := p.ProcessFrame(img); err != nil {
			if err == sharpness.ErrEmpty {
				continue
			}
			return err
		}
		if onFrame != nil {
			onFrame(img, p.Snapshot())
		}
	}
}

// Private details.

func (p *Processor) now() time.Duration {
	return p.clock.Since(p.start)
}

func (p *Processor) handleRestart() {
	select {
	case <-p.restart:
		log.Printf("autofocus: restart requested in %s", p.ctrl.Status().State)
		p.ctrl.OnUserRestart()
	default:
	}
}

func (p *Processor) notify(msg string) {
	log.Printf("autofocus: %s", msg)
	p.mu.Lock()
	p.snap.Message = msg
	p.mu.Unlock()
}

// publish copies the controller state into the snapshot.
func (p *Processor) publish() {
	st := p.ctrl.Status()
	profile := p.ctrl.Profile()
	peak := 0.
	if len(profile) != 0 {
		peak = floats.Max(profile)
	}
	p.mu.Lock()
	p.snap.Status = st
	p.snap.Bounds = p.metric.Bounds()
	p.snap.Profile = profile
	p.snap.Peak = peak
	p.mu.Unlock()
}
