// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/maruel/go-autofocus/focus"
	"github.com/maruel/go-autofocus/vcm"
)

// Config is the content of ~/.config/autofocus/autofocus.json.
type Config struct {
	Port   int
	Levels int    // Number of focus distances sampled per sweep.
	Settle string // Delay after a lens move before a frame is trusted, e.g. "50ms".

	// Camera. When Snapshot is empty, the simulated camera is used.
	Snapshot string // URL returning the latest frame as JPEG or PNG.
	Skip     int    // Frames discarded after each lens move.
	NoLens   bool   // The camera has no lens actuator.
	I2C      string // I²C bus of the actuator; empty means the first one.
	VCM      vcm.Opts
}

// focusConfig returns the sweep configuration.
func (c *Config) focusConfig() (focus.Config, error) {
	d, err := time.ParseDuration(c.Settle)
	if err != nil {
		return focus.Config{}, fmt.Errorf("invalid Settle: %v", err)
	}
	return focus.Config{Levels: c.Levels, Settle: d}, nil
}

// normalize fills in the defaults.
func (c *Config) normalize() {
	if c.Port == 0 {
		c.Port = 8010
	}
	if c.Levels == 0 {
		c.Levels = focus.DefaultConfig.Levels
	}
	if c.Settle == "" {
		c.Settle = focus.DefaultConfig.Settle.String()
	}
	if c.VCM.Addr == 0 {
		c.VCM.Addr = vcm.DefaultAddr
	}
	if c.VCM.MinFocusDistance == 0 {
		c.VCM.MinFocusDistance = 10
	}
}

func configPath() string {
	usr, err := user.Current()
	if err != nil {
		return filepath.Join(".config", "autofocus", "autofocus.json")
	}
	return filepath.Join(usr.HomeDir, ".config", "autofocus", "autofocus.json")
}

// loadConfig loads the config file or creates one if none exists.
//
// The file is rewritten in normalized form when it differs. Failing to write
// it back is only logged.
func loadConfig(path string) (*Config, error) {
	c := &Config{}
	srcData, err := ioutil.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(srcData, c); err != nil {
			return nil, fmt.Errorf("%s is invalid json: %v", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	c.normalize()
	if _, err := c.focusConfig(); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	data = append(data, '\n')
	if !bytes.Equal(srcData, data) {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			log.Printf("failed to create %s: %v", filepath.Dir(path), err)
		} else if err := ioutil.WriteFile(path, data, 0600); err != nil {
			log.Printf("failed to write %s: %v", path, err)
		}
	}
	return c, nil
}
