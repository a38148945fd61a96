// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/maruel/go-autofocus/autofocus"
	"github.com/maruel/go-autofocus/focus"
	"github.com/maruel/go-autofocus/focustest"
	"golang.org/x/net/websocket"
)

func TestRoot(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "/stream") {
		t.Fatal(resp.Status, string(body))
	}

	resp, err = http.Get(ts.URL + "/foo")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatal(resp.Status)
	}
}

func TestRestart(t *testing.T) {
	s, cam := newTestServer(t)
	ts := httptest.NewServer(s.handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/restart")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatal(resp.Status)
	}

	img := &image.Gray{}
	for i := 0; i < 100 && s.p.Snapshot().State != focus.Fixed; i++ {
		step(t, s, cam, img)
	}
	if st := s.p.Snapshot().State; st != focus.Fixed {
		t.Fatal(st)
	}
	resp, err = http.Post(ts.URL+"/restart", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatal(resp.Status)
	}
	step(t, s, cam, img)
	if st := s.p.Snapshot().State; st != focus.Initialize {
		t.Fatal(st)
	}
}

func TestStream(t *testing.T) {
	s, cam := newTestServer(t)
	ts := httptest.NewServer(s.handler())
	defer ts.Close()

	img := &image.Gray{}
	step(t, s, cam, img)
	ws, err := websocket.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/stream", "", ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	var msg string
	if err := websocket.Message.Receive(ws, &msg); err != nil {
		t.Fatal(err)
	}
	if msg[0] != 'S' {
		t.Fatal(msg)
	}
	snap := autofocus.Snapshot{}
	if err := json.Unmarshal([]byte(msg[1:]), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Frames != 1 || snap.State != focus.Pending {
		t.Fatalf("%+v", snap)
	}

	if err := websocket.Message.Receive(ws, &msg); err != nil {
		t.Fatal(err)
	}
	if msg[0] != 'E' {
		t.Fatal(msg)
	}
	raw, err := base64.StdEncoding.DecodeString(msg[1:])
	if err != nil {
		t.Fatal(err)
	}
	edges, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if edges.Bounds() != image.Rect(0, 0, 32, 24) {
		t.Fatal(edges.Bounds())
	}

	// The next frame is pushed as it is processed.
	step(t, s, cam, img)
	if err := websocket.Message.Receive(ws, &msg); err != nil {
		t.Fatal(err)
	}
	snap = autofocus.Snapshot{}
	if err := json.Unmarshal([]byte(msg[1:]), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Frames != 2 {
		t.Fatalf("%+v", snap)
	}
}

//

func newTestServer(t *testing.T) (*webServer, *focustest.Camera) {
	cam := focustest.New(&focustest.Opts{Width: 32, Height: 24, MinFocus: 4, InFocus: 4})
	p, err := autofocus.New(focus.Config{Levels: 3}, cam, nil)
	if err != nil {
		t.Fatal(err)
	}
	return newWebServer(p), cam
}

// step captures and processes one frame, the way autofocus.Processor.Run does.
func step(t *testing.T, s *webServer, cam *focustest.Camera, img *image.Gray) {
	if err := cam.Capture(img, s.p); err != nil {
		t.Fatal(err)
	}
	if err := s.p.ProcessFrame(img); err != nil {
		t.Fatal(err)
	}
	s.onFrame(img, s.p.Snapshot())
}
