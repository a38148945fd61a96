// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"log"
	"os"
	"time"

	fsnotify "gopkg.in/fsnotify.v1"
)

// watchFiles returns the first of paths modified, so a supervisor can start
// the program again with the new binary or settings. It returns an empty
// string once done is closed.
//
// Paths that do not exist are not watched.
func watchFiles(done <-chan struct{}, paths ...string) (string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", err
	}
	defer watcher.Close()
	mod0 := map[string]time.Time{}
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			log.Printf("not watching %s: %v", p, err)
			continue
		}
		if err = watcher.Add(p); err != nil {
			return "", err
		}
		mod0[p] = fi.ModTime()
	}
	if len(mod0) == 0 {
		return "", errors.New("nothing to watch")
	}
	for {
		select {
		case <-done:
			return "", nil
		case err = <-watcher.Errors:
			return "", err
		case e := <-watcher.Events:
			t, ok := mod0[e.Name]
			if !ok {
				continue
			}
			// The file may be replaced rather than written to.
			fi, err := os.Stat(e.Name)
			if err != nil || !fi.ModTime().Equal(t) {
				log.Printf("%s: %s", e.Name, e.Op)
				return e.Name, nil
			}
		}
	}
}
