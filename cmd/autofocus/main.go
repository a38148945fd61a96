// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// autofocus sweeps the lens of a camera to find the sharpest focus distance
// and serves a live view of the sweep.
//
// The page at / shows the edge map of each frame and the sharpness profile of
// the sweep. Clicking on the image focuses again.
//
// The settings are stored in ~/.config/autofocus/autofocus.json, created on
// first run. Flags override the file. The program exits when the file or
// the executable is modified, to be restarted by its supervisor.
package main

import (
	"flag"
	"fmt"
	"image"
	"io/ioutil"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"

	"github.com/maruel/go-autofocus/autofocus"
	"github.com/maruel/go-autofocus/internal/camera"
	"github.com/maruel/interrupt"
)

func mainImpl() error {
	cpuprofile := flag.String("cpuprofile", "", "dump CPU profile in file")
	port := flag.Int("port", 0, "http port to listen on")
	fake := flag.Bool("fake", false, "use a simulated camera")
	url := flag.String("snapshot", "", "URL returning the camera's latest frame")
	noLens := flag.Bool("nolens", false, "the camera has no lens actuator")
	i2cName := flag.String("i2c", "", "I²C bus of the lens actuator")
	i2cHz := flag.Int("hz", 0, "I²C bus speed")
	levels := flag.Int("levels", 0, "number of focus distances sampled per sweep")
	settle := flag.String("settle", "", "delay after a lens move before a frame is trusted")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	interrupt.HandleCtrlC()

	cfg, err := loadConfig(configPath())
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *url != "" {
		cfg.Snapshot = *url
	}
	if *noLens {
		cfg.NoLens = true
	}
	if *i2cName != "" {
		cfg.I2C = *i2cName
	}
	if *levels != 0 {
		cfg.Levels = *levels
	}
	if *settle != "" {
		cfg.Settle = *settle
	}
	fc, err := cfg.focusConfig()
	if err != nil {
		return err
	}

	cam, err := camera.Open(&camera.Opts{
		Fake:     *fake,
		Snapshot: cfg.Snapshot,
		Skip:     cfg.Skip,
		NoLens:   cfg.NoLens,
		I2C:      cfg.I2C,
		Hz:       *i2cHz,
		VCM:      cfg.VCM,
	})
	if err != nil {
		return err
	}
	defer cam.Close()
	p, err := autofocus.New(fc, cam, nil)
	if err != nil {
		return err
	}

	s := newWebServer(p)
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return err
	}
	defer ln.Close()
	fmt.Printf("Listening on %d\n", cfg.Port)
	go http.Serve(ln, s.handler())
	go s.wakeOnInterrupt()
	done := make(chan struct{})
	go func() {
		<-interrupt.Channel
		close(done)
	}()
	go func() {
		// Exit on a new binary or new settings.
		paths := []string{configPath()}
		if exe, err := os.Executable(); err == nil {
			paths = append(paths, exe)
		}
		name, err := watchFiles(done, paths...)
		if err != nil {
			log.Printf("watch failed: %v", err)
			return
		}
		if name != "" {
			fmt.Printf("\n%s changed, exiting\n", name)
		}
		interrupt.Set()
	}()
	err = p.Run(cam, done, func(img *image.Gray, snap autofocus.Snapshot) {
		s.onFrame(img, snap)
		fmt.Printf("\r%-11s %3d/%d %10.4f %6d frames", snap.State, snap.Index, fc.Levels, snap.Score, snap.Frames)
	})
	fmt.Print("\n")
	return err
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nautofocus: %s.\n", err)
		os.Exit(1)
	}
}
