// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package vcm drives a voice coil motor lens actuator through a DW9714 DAC.
//
// The DW9714 is the 10 bits current sink found on many small autofocus camera
// modules, e.g. the ones sold for the Raspberry Pi. It has no register; each
// write is a 16 bits big endian word:
//
//	bit 15    PD: power down
//	bit 14    FLAG: must be 0
//	bit 13-4  D9-D0: DAC code, higher is closer focus
//	bit 3-0   S3-S0: slew rate control
package vcm

import (
	"errors"
	"fmt"
	"math"

	"periph.io/x/periph/conn/i2c"
)

// DefaultAddr is the I²C address of the DW9714.
const DefaultAddr = 0x0C

// MaxPosition is the highest DAC code.
const MaxPosition = 1023

// Opts is the device configuration.
type Opts struct {
	Addr uint16 // I²C address. Default: DefaultAddr.
	// MinFocusDistance is the focus distance in diopters reached at
	// MaxPosition. Default: 10, that is 10cm.
	MinFocusDistance float32
	Slew             uint8 // Slew rate control, 0 to 15.
	// Keep leaves the lens where it is on open instead of moving it to
	// infinity; the position is read back from the device.
	Keep bool
}

// Dev is a handle to a DW9714.
type Dev struct {
	d    i2c.Dev
	opts Opts
	pos  uint16
	halt bool
}

// New opens a handle to a DW9714 and moves the lens to infinity, unless
// opts.Keep is set.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	o := *opts
	if o.Addr == 0 {
		o.Addr = DefaultAddr
	}
	if o.MinFocusDistance == 0 {
		o.MinFocusDistance = 10
	}
	if !(o.MinFocusDistance > 0) || math.IsInf(float64(o.MinFocusDistance), 0) {
		return nil, fmt.Errorf("vcm: invalid MinFocusDistance %g", o.MinFocusDistance)
	}
	if o.Slew > 15 {
		return nil, fmt.Errorf("vcm: invalid Slew %d", o.Slew)
	}
	d := &Dev{d: i2c.Dev{Bus: b, Addr: o.Addr}, opts: o}
	if o.Keep {
		if _, err := d.Read(); err != nil {
			return nil, err
		}
		return d, nil
	}
	if err := d.SetPosition(0); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("DW9714{%s}", &d.d)
}

// MinFocusDistance returns the focus distance in diopters at MaxPosition.
func (d *Dev) MinFocusDistance() float32 {
	return d.opts.MinFocusDistance
}

// Position returns the last DAC code written.
func (d *Dev) Position() uint16 {
	return d.pos
}

// SetPosition writes the DAC code, waking up the device if it was halted.
func (d *Dev) SetPosition(code uint16) error {
	if code > MaxPosition {
		return fmt.Errorf("vcm: position %d out of range", code)
	}
	if err := d.write(code<<4 | uint16(d.opts.Slew)); err != nil {
		return err
	}
	d.pos = code
	d.halt = false
	return nil
}

// SetFocusDistance moves the lens to focus at d diopters. 0 is infinity and
// MinFocusDistance() is the closest.
func (d *Dev) SetFocusDistance(diopters float32) error {
	if diopters < 0 || diopters > d.opts.MinFocusDistance || math.IsNaN(float64(diopters)) {
		return fmt.Errorf("vcm: focus distance %g out of range [0, %g]", diopters, d.opts.MinFocusDistance)
	}
	return d.SetPosition(d.Code(diopters))
}

// Code returns the DAC code for a focus distance in diopters.
func (d *Dev) Code(diopters float32) uint16 {
	return uint16(math.Round(float64(diopters) / float64(d.opts.MinFocusDistance) * MaxPosition))
}

// Read reads back the DAC code and the power down bit from the device.
func (d *Dev) Read() (uint16, error) {
	var b [2]byte
	if err := d.d.Tx(nil, b[:]); err != nil {
		return 0, errors.New("vcm: " + err.Error())
	}
	w := uint16(b[0])<<8 | uint16(b[1])
	d.halt = w&(1<<15) != 0
	d.pos = (w >> 4) & MaxPosition
	return d.pos, nil
}

// Halt powers down the actuator. The lens falls back to its resting
// position. The next SetPosition() wakes it up.
func (d *Dev) Halt() error {
	if err := d.write(1 << 15); err != nil {
		return err
	}
	d.halt = true
	return nil
}

// Halted returns true if the actuator is powered down.
func (d *Dev) Halted() bool {
	return d.halt
}

//

func (d *Dev) write(w uint16) error {
	b := [2]byte{byte(w >> 8), byte(w)}
	if err := d.d.Tx(b[:], nil); err != nil {
		return errors.New("vcm: " + err.Error())
	}
	return nil
}
