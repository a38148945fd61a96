// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package snapshot implements a camera that fetches still frames over HTTP.
//
// Many network cameras and streamers (e.g. mjpg-streamer's
// "?action=snapshot") serve the latest frame as a JPEG at a fixed URL. The
// lens is moved separately through a Lens, typically a vcm.Dev.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register the decoder.
	_ "image/png"  // Register the decoder.
	"log"
	"net/http"
	"time"

	"github.com/maruel/go-autofocus/focus"
	"github.com/maruel/go-autofocus/gray"
)

// Lens is a manual focus lens actuator.
type Lens interface {
	// MinFocusDistance is the closest focus distance, as a reciprocal distance.
	MinFocusDistance() float32
	// SetFocusDistance moves the lens. 0 is infinity.
	SetFocusDistance(d float32) error
}

// Opts is the camera configuration.
type Opts struct {
	Client *http.Client // Default: a client with a 10s timeout.
	// Skip is the number of frames fetched and discarded after the lens moved,
	// for streamers that buffer frames.
	Skip int
}

// Camera fetches frames from an URL.
//
// It is not safe for concurrent use.
type Camera struct {
	url        string
	lens       Lens
	opts       Opts
	configured bool
	pending    bool
	skip       int
}

// New returns a Camera fetching url. lens can be nil if the camera has no
// manual focus control.
func New(url string, lens Lens, opts *Opts) *Camera {
	c := &Camera{url: url, lens: lens, opts: *opts}
	if c.opts.Client == nil {
		c.opts.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return c
}

func (c *Camera) String() string {
	return c.url
}

// ReadyForReconfiguration implements focus.Camera.
func (c *Camera) ReadyForReconfiguration() bool {
	return !c.pending
}

// RequestReconfiguration implements focus.Camera.
func (c *Camera) RequestReconfiguration() bool {
	if c.pending {
		return false
	}
	c.pending = true
	return true
}

// Capture implements autofocus.Camera.
func (c *Camera) Capture(dst *image.Gray, cfg focus.Configurer) error {
	if !c.configured || c.pending {
		if err := c.configure(cfg); err != nil {
			return err
		}
	}
	for ; c.skip > 0; c.skip-- {
		if _, err := c.fetch(); err != nil {
			return err
		}
	}
	img, err := c.fetch()
	if err != nil {
		return err
	}
	gray.Convert(dst, img)
	return nil
}

// Close implements io.Closer.
func (c *Camera) Close() error {
	c.opts.Client.CloseIdleConnections()
	return nil
}

//

// configure lets cfg update the capture configuration and moves the lens.
func (c *Camera) configure(cfg focus.Configurer) error {
	c.configured = true
	c.pending = false
	minFocus := float32(0)
	if c.lens != nil {
		minFocus = c.lens.MinFocusDistance()
	}
	r := focus.Request{}
	cfg.Configure(minFocus, &r)
	if !r.HasFocusDistance || c.lens == nil {
		return nil
	}
	if err := c.lens.SetFocusDistance(r.FocusDistance); err != nil {
		return err
	}
	log.Printf("snapshot: focus distance %g", r.FocusDistance)
	c.skip = c.opts.Skip
	return nil
}

func (c *Camera) fetch() (image.Image, error) {
	resp, err := c.opts.Client.Get(c.url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot: %s: %s", c.url, resp.Status)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, errors.New("snapshot: " + err.Error())
	}
	return img, nil
}
