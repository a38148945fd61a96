// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maruel/go-autofocus/focus"
	"github.com/maruel/go-autofocus/vcm"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "autofocus.json")
	c, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != 8010 || c.Levels != focus.DefaultConfig.Levels || c.Settle != "50ms" {
		t.Fatalf("%+v", c)
	}
	if c.VCM.Addr != vcm.DefaultAddr || c.VCM.MinFocusDistance != 10 {
		t.Fatalf("%+v", c.VCM)
	}
	fc, err := c.focusConfig()
	if err != nil {
		t.Fatal(err)
	}
	if fc != focus.DefaultConfig {
		t.Fatalf("%+v", fc)
	}
	// The normalized file was written.
	data, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\"Settle\": \"50ms\"") {
		t.Fatal(string(data))
	}
}

func TestLoadConfig_existing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autofocus.json")
	if err := ioutil.WriteFile(path, []byte(`{"Levels": 20, "Settle": "1s", "Snapshot": "http://cam/still.jpg"}`), 0600); err != nil {
		t.Fatal(err)
	}
	c, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Snapshot != "http://cam/still.jpg" || c.Port != 8010 {
		t.Fatalf("%+v", c)
	}
	fc, err := c.focusConfig()
	if err != nil {
		t.Fatal(err)
	}
	if fc.Levels != 20 || fc.Settle != time.Second {
		t.Fatalf("%+v", fc)
	}
	// Loading again is stable.
	before, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err != nil {
		t.Fatal(err)
	}
	after, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("%s != %s", before, after)
	}
}

func TestLoadConfig_fail(t *testing.T) {
	data := []string{
		`{"Levels": `,
		`{"Settle": "soon"}`,
	}
	for _, line := range data {
		path := filepath.Join(t.TempDir(), "autofocus.json")
		if err := ioutil.WriteFile(path, []byte(line), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := loadConfig(path); err == nil {
			t.Fatalf("%q: expected failure", line)
		}
	}
}
