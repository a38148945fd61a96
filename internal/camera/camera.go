// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package camera opens the camera used by the commands: either a network
// camera with a DW9714 lens actuator, or the simulated one.
package camera

import (
	"errors"
	"fmt"
	"time"

	"github.com/maruel/go-autofocus/autofocus"
	"github.com/maruel/go-autofocus/focustest"
	"github.com/maruel/go-autofocus/snapshot"
	"github.com/maruel/go-autofocus/vcm"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
)

// Opts selects and configures the camera.
type Opts struct {
	Fake     bool   // Use the simulated camera.
	Snapshot string // URL returning the latest frame.
	Skip     int    // Frames discarded after each lens move.
	NoLens   bool   // The camera has no lens actuator.
	I2C      string // I²C bus of the actuator.
	Hz       int    // I²C bus speed; 0 keeps the default.
	VCM      vcm.Opts
}

// Open returns the camera described by opts.
func Open(opts *Opts) (autofocus.Camera, error) {
	if opts.Fake {
		return focustest.New(&focustest.Opts{
			Width:    320,
			Height:   240,
			MinFocus: 10,
			InFocus:  3.7,
			Period:   33 * time.Millisecond,
			Seed:     time.Now().UnixNano(),
		}), nil
	}
	if opts.Snapshot == "" {
		return nil, errors.New("no camera URL specified\nIf testing without hardware, use -fake to simulate a camera")
	}
	if opts.NoLens {
		return snapshot.New(opts.Snapshot, nil, &snapshot.Opts{Skip: opts.Skip}), nil
	}

	if _, err := host.Init(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(opts.I2C)
	if err != nil {
		return nil, err
	}
	if opts.Hz != 0 {
		if err := bus.SetSpeed(physic.Frequency(opts.Hz) * physic.Hertz); err != nil {
			bus.Close()
			return nil, err
		}
	}
	dev, err := vcm.New(bus, &opts.VCM)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("%v\nUse -nolens if the camera has no actuator", err)
	}
	return &rig{Camera: snapshot.New(opts.Snapshot, dev, &snapshot.Opts{Skip: opts.Skip}), dev: dev, bus: bus}, nil
}

// rig is a network camera with a lens actuator on a local I²C bus.
type rig struct {
	*snapshot.Camera
	dev *vcm.Dev
	bus i2c.BusCloser
}

// Close powers down the actuator and releases the bus.
func (r *rig) Close() error {
	err := r.Camera.Close()
	if err2 := r.dev.Halt(); err == nil {
		err = err2
	}
	if err2 := r.bus.Close(); err == nil {
		err = err2
	}
	return err
}
