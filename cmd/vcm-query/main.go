// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// vcm-query reads or moves the lens actuator through its I²C interface.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/maruel/go-autofocus/vcm"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
)

func mainImpl() error {
	i2cName := flag.String("i2c", "", "I²C bus to use")
	i2cHz := flag.Int("hz", 0, "I²C bus speed")
	addr := flag.Int("addr", vcm.DefaultAddr, "I²C address of the DW9714")
	minFocus := flag.Float64("min", 10, "closest focus distance of the lens, in diopters")
	slew := flag.Int("slew", 0, "slew rate control, 0 to 15")
	diopters := flag.Float64("d", -1, "move the lens to focus at this distance, in diopters; 0 is infinity")
	code := flag.Int("code", -1, "move the lens to this DAC code")
	off := flag.Bool("off", false, "power down the actuator")
	flag.Parse()

	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}
	if *diopters >= 0 && *code >= 0 {
		return errors.New("use only one of -d and -code")
	}
	if *addr < 0 || *addr > 0x7F {
		return fmt.Errorf("invalid address 0x%x", *addr)
	}
	if *slew < 0 || *slew > 15 {
		return fmt.Errorf("invalid slew %d", *slew)
	}

	if _, err := host.Init(); err != nil {
		return err
	}
	i2cBus, err := i2creg.Open(*i2cName)
	if err != nil {
		return err
	}
	defer i2cBus.Close()
	if *i2cHz != 0 {
		if err := i2cBus.SetSpeed(physic.Frequency(*i2cHz) * physic.Hertz); err != nil {
			return err
		}
	}
	dev, err := vcm.New(i2cBus, &vcm.Opts{
		Addr:             uint16(*addr),
		MinFocusDistance: float32(*minFocus),
		Slew:             uint8(*slew),
		Keep:             true,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Device:   %s\n", dev)
	show := func() {
		pos := dev.Position()
		fmt.Printf("Position: %d/%d\n", pos, vcm.MaxPosition)
		fmt.Printf("Distance: %.3g diopters\n", float32(pos)/vcm.MaxPosition*dev.MinFocusDistance())
		fmt.Printf("Halted:   %t\n", dev.Halted())
	}
	show()
	switch {
	case *diopters >= 0:
		err = dev.SetFocusDistance(float32(*diopters))
	case *code >= 0:
		if *code > vcm.MaxPosition {
			return fmt.Errorf("invalid code %d", *code)
		}
		err = dev.SetPosition(uint16(*code))
	case *off:
		err = dev.Halt()
	default:
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("\n")
	show()
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nvcm-query: %s.\n", err)
		os.Exit(1)
	}
}
