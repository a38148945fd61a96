// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package snapshot

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maruel/go-autofocus/focus"
)

func TestCapture(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 8, 4))
	src.SetGray(3, 2, color.Gray{Y: 200})
	fetches := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, src)
	}))
	defer ts.Close()

	l := &lens{min: 5}
	c := New(ts.URL, l, &Opts{Skip: 2})
	cfg := &configurer{distance: 2.5}
	img := &image.Gray{}
	if err := c.Capture(img, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.calls != 1 || cfg.minFocus != 5 {
		t.Fatal(cfg.calls, cfg.minFocus)
	}
	if len(l.moves) != 1 || l.moves[0] != 2.5 {
		t.Fatal(l.moves)
	}
	if fetches != 3 {
		t.Fatal(fetches)
	}
	if img.Bounds() != src.Bounds() || img.GrayAt(3, 2).Y != 200 {
		t.Fatal(img.Bounds())
	}
	// Not reconfigured until requested; no frame skipped.
	if err := c.Capture(img, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.calls != 1 || fetches != 4 {
		t.Fatal(cfg.calls, fetches)
	}
	if !c.ReadyForReconfiguration() || !c.RequestReconfiguration() {
		t.Fatal("expected ready")
	}
	if c.ReadyForReconfiguration() || c.RequestReconfiguration() {
		t.Fatal("expected busy")
	}
	cfg.distance = 5
	if err := c.Capture(img, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.calls != 2 || len(l.moves) != 2 || l.moves[1] != 5 || fetches != 7 {
		t.Fatal(cfg.calls, l.moves, fetches)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestCapture_noLens(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		png.Encode(w, image.NewGray(image.Rect(0, 0, 2, 2)))
	}))
	defer ts.Close()
	c := New(ts.URL, nil, &Opts{})
	cfg := &configurer{distance: 1}
	if err := c.Capture(&image.Gray{}, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.minFocus != 0 {
		t.Fatal(cfg.minFocus)
	}
}

func TestCapture_fail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/404":
			http.Error(w, "no", http.StatusNotFound)
		default:
			w.Write([]byte("not an image"))
		}
	}))
	defer ts.Close()
	for _, path := range []string{"/404", "/garbage"} {
		c := New(ts.URL+path, nil, &Opts{})
		if c.Capture(&image.Gray{}, &configurer{}) == nil {
			t.Fatalf("%s: expected failure", path)
		}
	}
	// Lens failure.
	c := New(ts.URL, &lens{min: 1, err: errors.New("oops")}, &Opts{})
	if c.Capture(&image.Gray{}, &configurer{}) == nil {
		t.Fatal("expected failure")
	}
}

//

type lens struct {
	min   float32
	err   error
	moves []float32
}

func (l *lens) MinFocusDistance() float32 {
	return l.min
}

func (l *lens) SetFocusDistance(d float32) error {
	if l.err != nil {
		return l.err
	}
	l.moves = append(l.moves, d)
	return nil
}

type configurer struct {
	distance float32
	minFocus float32
	calls    int
}

func (c *configurer) Configure(minFocus float32, b focus.CaptureBuilder) {
	c.calls++
	c.minFocus = minFocus
	b.SetManualFocus()
	b.SetFocusDistance(c.distance)
}
