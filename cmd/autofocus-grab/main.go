// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// autofocus-grab focuses the camera and captures a single image.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io/ioutil"
	"log"
	"os"
	"time"

	"github.com/maruel/go-autofocus/autofocus"
	"github.com/maruel/go-autofocus/focus"
	"github.com/maruel/go-autofocus/internal/camera"
	"github.com/maruel/interrupt"
)

// grab runs one sweep on cam and returns the first frame captured once the
// lens is locked, along with the final state.
func grab(p *autofocus.Processor, cam autofocus.Camera, timeout time.Duration) (*image.Gray, autofocus.Snapshot, error) {
	done := make(chan struct{})
	var out *image.Gray
	var last autofocus.Snapshot
	locked := false
	start := time.Now()
	err := p.Run(cam, done, func(img *image.Gray, s autofocus.Snapshot) {
		if out != nil {
			return
		}
		last = s
		switch {
		case s.State == focus.Unsupported || (s.State == focus.Fixed && locked):
			// The lens was moved to the best index before this frame was
			// captured.
			out = image.NewGray(img.Rect)
			draw.Draw(out, out.Rect, img, img.Rect.Min, draw.Src)
			close(done)
		case s.State == focus.Fixed:
			locked = true
		case interrupt.IsSet() || (timeout > 0 && time.Since(start) > timeout):
			close(done)
		}
	})
	if err != nil {
		return nil, last, err
	}
	if out == nil {
		return nil, last, fmt.Errorf("focus not found, stuck in %s", last.State)
	}
	return out, last, nil
}

func mainImpl() error {
	fake := flag.Bool("fake", false, "use a simulated camera")
	url := flag.String("snapshot", "", "URL returning the camera's latest frame")
	skip := flag.Int("skip", 0, "frames discarded after each lens move")
	noLens := flag.Bool("nolens", false, "the camera has no lens actuator")
	i2cName := flag.String("i2c", "", "I²C bus of the lens actuator")
	i2cHz := flag.Int("hz", 0, "I²C bus speed")
	minFocus := flag.Float64("min", 10, "closest focus distance of the lens, in diopters")
	levels := flag.Int("levels", focus.DefaultConfig.Levels, "number of focus distances sampled")
	settle := flag.Duration("settle", focus.DefaultConfig.Settle, "delay after a lens move before a frame is trusted")
	timeout := flag.Duration("timeout", time.Minute, "give up after this delay")
	meta := flag.Bool("meta", false, "print the sweep result")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	if flag.NArg() != 1 {
		return errors.New("supply path to PNG to save")
	}
	interrupt.HandleCtrlC()

	opts := camera.Opts{Fake: *fake, Snapshot: *url, Skip: *skip, NoLens: *noLens, I2C: *i2cName, Hz: *i2cHz}
	opts.VCM.MinFocusDistance = float32(*minFocus)
	cam, err := camera.Open(&opts)
	if err != nil {
		return err
	}
	defer cam.Close()
	p, err := autofocus.New(focus.Config{Levels: *levels, Settle: *settle}, cam, nil)
	if err != nil {
		return err
	}
	img, s, err := grab(p, cam, *timeout)
	if err != nil {
		return err
	}
	if *meta {
		fmt.Printf("State:    %s\n", s.State)
		if s.State == focus.Fixed {
			fmt.Printf("Index:    %d/%d\n", s.Index, *levels)
			fmt.Printf("Distance: %g\n", p.Controller().Distance(s.Index))
			fmt.Printf("Score:    %g\n", s.Score)
		}
		fmt.Printf("Frames:   %d\n", s.Frames)
		fmt.Printf("Profile:  %.4g\n", s.Profile)
	}
	f, err := os.Create(flag.Args()[0])
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nautofocus-grab: %s.\n", err)
		os.Exit(1)
	}
}
