// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"html/template"
	"image"
	"image/png"
	"log"
	"net/http"
	"sync"

	"github.com/maruel/go-autofocus/autofocus"
	"github.com/maruel/interrupt"
	"github.com/maruel/serve-dir/loghttp"
	"golang.org/x/net/websocket"
)

// webServer publishes the processor state to the browsers.
type webServer struct {
	p       *autofocus.Processor
	edgeBuf *image.Gray // Only touched by the processing goroutine.

	cond  sync.Cond
	seq   int // Incremented on each frame.
	snap  autofocus.Snapshot
	edges []byte // PNG encoded edge map of the last frame.
}

func newWebServer(p *autofocus.Processor) *webServer {
	return &webServer{p: p, edgeBuf: &image.Gray{}, cond: *sync.NewCond(&sync.Mutex{})}
}

// handler returns the HTTP routes.
//
// The websocket is served outside of the request logger since the stream
// stays open for the lifetime of the page.
func (s *webServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.root)
	mux.HandleFunc("/restart", s.restart)
	top := http.NewServeMux()
	top.Handle("/", &loghttp.Handler{Handler: mux})
	top.Handle("/stream", websocket.Handler(s.stream))
	return top
}

// onFrame is called by autofocus.Processor.Run after each processed frame.
func (s *webServer) onFrame(img *image.Gray, snap autofocus.Snapshot) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.p.Edges(s.edgeBuf)); err != nil {
		log.Printf("failed to encode edges: %v", err)
	}
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.seq++
	s.snap = snap
	s.edges = buf.Bytes()
	s.cond.Broadcast()
}

// wakeOnInterrupt unblocks the streams on Ctrl-C.
func (s *webServer) wakeOnInterrupt() {
	<-interrupt.Channel
	s.cond.L.Lock()
	s.cond.Broadcast()
	s.cond.L.Unlock()
}

var rootTmpl = template.Must(template.New("root").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>autofocus</title>
	<style>
		img#edges {
			width: 640px;
			height: auto;
			image-rendering: pixelated;
		}
		pre { font-size: larger; }
	</style>
</head>
<body>
	<img id="edges" title="Click to focus again"><br>
	<pre id="status">connecting...</pre>
	<canvas id="profile" width="640" height="120"></canvas>
	<script>
	"use strict";
	const edges = document.getElementById("edges");
	const status = document.getElementById("status");
	const profile = document.getElementById("profile");
	edges.onclick = () => fetch("/restart", {method: "POST"});
	function draw(s) {
		status.textContent = s.State + " index=" + s.Index + " score=" + s.Score.toFixed(3) +
			" frames=" + s.Frames + (s.Message ? "\n" + s.Message : "");
		const ctx = profile.getContext("2d");
		ctx.clearRect(0, 0, profile.width, profile.height);
		const p = s.Profile || [];
		if (!p.length || !s.Peak) {
			return;
		}
		const w = profile.width / {{.Levels}};
		for (let i = 0; i < p.length; i++) {
			const h = p[i] / s.Peak * profile.height;
			ctx.fillStyle = (s.State == "Fixed" && i == s.Index) ? "#c00" : "#888";
			ctx.fillRect(i * w, profile.height - h, w - 1, h);
		}
	}
	const ws = new WebSocket((location.protocol == "https:" ? "wss://" : "ws://") + location.host + "/stream");
	ws.onmessage = (e) => {
		const kind = e.data[0];
		const data = e.data.substr(1);
		if (kind == "S") {
			draw(JSON.parse(data));
		} else if (kind == "E") {
			edges.src = "data:image/png;base64," + data;
		}
	};
	ws.onclose = () => { status.textContent = "disconnected"; };
	</script>
</body>
</html>`))

func (s *webServer) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	data := struct{ Levels int }{s.p.Controller().Config().Levels}
	if err := rootTmpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// restart starts a new sweep once the lens is locked.
func (s *webServer) restart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	s.p.Restart()
	w.WriteHeader(http.StatusNoContent)
}

// stream sends the status and the edge map of each frame as WebSocket
// frames. Frames are dropped when the client is slower than the camera.
func (s *webServer) stream(w *websocket.Conn) {
	log.Printf("websocket from %s", w.Request().RemoteAddr)
	defer w.Close()
	last := 0
	buf := &bytes.Buffer{}
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	for {
		for s.seq == last && !interrupt.IsSet() {
			s.cond.Wait()
		}
		if interrupt.IsSet() {
			return
		}
		last = s.seq
		snap := s.snap
		edges := s.edges
		s.cond.L.Unlock()
		// Do the actual I/O without the lock.
		err := s.send(w, buf, &snap, edges)
		s.cond.L.Lock()
		if err != nil {
			log.Printf("websocket err: %v", err)
			return
		}
	}
}

func (s *webServer) send(w *websocket.Conn, buf *bytes.Buffer, snap *autofocus.Snapshot, edges []byte) error {
	// Frame S is for Status.
	buf.Reset()
	buf.WriteByte('S')
	if err := json.NewEncoder(buf).Encode(snap); err != nil {
		return err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	if len(edges) == 0 {
		return nil
	}
	// Frame E is for Edges.
	buf.Reset()
	buf.WriteByte('E')
	encoder := base64.NewEncoder(base64.StdEncoding, buf)
	encoder.Write(edges)
	encoder.Close()
	_, err := w.Write(buf.Bytes())
	return err
}
