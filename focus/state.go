// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package focus

import (
	"errors"
	"strconv"
)

// State is the step of the focus sweep the Controller is in.
type State uint8

// Valid values for State.
const (
	// Initialize waits for the camera to be configured to start a sweep.
	Initialize State = iota
	// Unsupported means the camera has no manual focus. It is terminal.
	Unsupported
	// Focusing waits for the lens to settle to sample the current index.
	Focusing
	// Pending waits for the camera to be reconfigured for the next index.
	Pending
	// Fixed means the sweep is done and the lens is at the best index.
	Fixed
)

func (s State) String() string {
	switch s {
	case Initialize:
		return "Initialize"
	case Unsupported:
		return "Unsupported"
	case Focusing:
		return "Focusing"
	case Pending:
		return "Pending"
	case Fixed:
		return "Fixed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// MarshalText implements encoding.TextMarshaler so the state is readable in
// JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for i := Initialize; i <= Fixed; i++ {
		if string(b) == i.String() {
			*s = i
			return nil
		}
	}
	return errors.New("focus: unknown state " + strconv.Quote(string(b)))
}
