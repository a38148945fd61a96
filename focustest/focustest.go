// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package focustest implements a fake camera with a manual focus lens.
//
// The camera looks at a deterministic random texture. A frame captured with
// the lens at focus distance d is the texture blurred proportionally to how
// far d is from the distance at which the scene is in focus, so the sharpest
// frame is captured at InFocus.
package focustest

import (
	"errors"
	"image"
	"math"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/maruel/go-autofocus/focus"
)

// Opts is the fake camera configuration.
type Opts struct {
	Width, Height  int           // Default: 160x120.
	MinFocus       float32       // Closest focus distance; 0 or less means no manual focus.
	InFocus        float32       // Focus distance at which the scene is sharp.
	BlurPerDiopter float32       // Blur radius in pixels per unit of focus error. Default: 1.
	Period         time.Duration // Delay between frames. 0 means as fast as possible.
	Clock          clock.Clock   // Used to pace frames. Default: wall clock.
	Seed           int64         // Texture seed.
}

// Camera is a fake camera implementing focus.Camera.
//
// It is not safe for concurrent use, matching the single goroutine that drives
// a focus.Controller.
type Camera struct {
	// Busy is the number of upcoming ReadyForReconfiguration() calls that
	// return false.
	Busy int
	// Reject is the number of upcoming RequestReconfiguration() calls that are
	// rejected.
	Reject int
	// Requests is every configuration applied so far, in order.
	Requests []focus.Request

	opts       Opts
	scene      *image.Gray
	tmp        *image.Gray
	distance   float32 // Current lens focus distance.
	configured bool    // Initial configuration was done.
	pending    bool    // A reconfiguration was requested.
	frames     int
	closed     bool
}

// New returns a fake camera.
func New(opts *Opts) *Camera {
	c := &Camera{opts: *opts}
	if c.opts.Width == 0 {
		c.opts.Width = 160
	}
	if c.opts.Height == 0 {
		c.opts.Height = 120
	}
	if c.opts.BlurPerDiopter == 0 {
		c.opts.BlurPerDiopter = 1
	}
	if c.opts.Clock == nil {
		c.opts.Clock = clock.New()
	}
	r := rand.New(rand.NewSource(c.opts.Seed))
	c.scene = image.NewGray(image.Rect(0, 0, c.opts.Width, c.opts.Height))
	for i := range c.scene.Pix {
		c.scene.Pix[i] = uint8(r.Intn(256))
	}
	c.tmp = image.NewGray(c.scene.Rect)
	return c
}

// ReadyForReconfiguration implements focus.Camera.
func (c *Camera) ReadyForReconfiguration() bool {
	if c.Busy > 0 {
		c.Busy--
		return false
	}
	return !c.pending
}

// RequestReconfiguration implements focus.Camera.
func (c *Camera) RequestReconfiguration() bool {
	if c.Reject > 0 {
		c.Reject--
		return false
	}
	if c.pending {
		return false
	}
	c.pending = true
	return true
}

// Capture implements autofocus.Camera.
//
// The first capture and the first capture after a reconfiguration request
// call cfg.Configure and apply the focus distance before rendering the frame.
func (c *Camera) Capture(dst *image.Gray, cfg focus.Configurer) error {
	if c.closed {
		return errors.New("focustest: closed")
	}
	if !c.configured || c.pending {
		c.configured = true
		c.pending = false
		r := focus.Request{}
		cfg.Configure(c.opts.MinFocus, &r)
		if r.HasFocusDistance {
			c.distance = r.FocusDistance
		}
		c.Requests = append(c.Requests, r)
	}
	if c.opts.Period != 0 {
		c.opts.Clock.Sleep(c.opts.Period)
	}
	c.render(dst)
	c.frames++
	return nil
}

// Close implements io.Closer.
func (c *Camera) Close() error {
	c.closed = true
	return nil
}

// Distance returns the current lens focus distance.
func (c *Camera) Distance() float32 {
	return c.distance
}

// Frames returns the number of frames captured.
func (c *Camera) Frames() int {
	return c.frames
}

// Radius returns the blur radius applied to frames captured at focus
// distance d.
func (c *Camera) Radius(d float32) int {
	return int(math.Round(math.Abs(float64(d-c.opts.InFocus)) * float64(c.opts.BlurPerDiopter)))
}

// Private details.

// render box blurs the scene into dst, in two passes.
func (c *Camera) render(dst *image.Gray) {
	r := c.scene.Rect
	w, h := r.Dx(), r.Dy()
	if cap(dst.Pix) < w*h {
		dst.Pix = make([]uint8, w*h)
	}
	dst.Pix = dst.Pix[:w*h]
	dst.Stride = w
	dst.Rect = r
	radius := c.Radius(c.distance)
	if radius == 0 {
		copy(dst.Pix, c.scene.Pix)
		return
	}
	n := 2*radius + 1
	for y := 0; y < h; y++ {
		row := c.scene.Pix[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			sum := 0
			for k := x - radius; k <= x+radius; k++ {
				sum += int(row[clamp(k, w)])
			}
			c.tmp.Pix[y*w+x] = uint8(sum / n)
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for k := y - radius; k <= y+radius; k++ {
				sum += int(c.tmp.Pix[clamp(k, h)*w+x])
			}
			dst.Pix[y*w+x] = uint8(sum / n)
		}
	}
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
