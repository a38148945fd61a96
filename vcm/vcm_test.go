// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package vcm

import (
	"strings"
	"testing"

	"periph.io/x/periph/conn/i2c/i2ctest"
)

func TestNew(t *testing.T) {
	i := i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x0C, W: []byte{0x00, 0x00}}, // Infinity.
			{Addr: 0x0C, W: []byte{0x20, 0x00}}, // 5 diopters.
			{Addr: 0x0C, W: []byte{0x3F, 0xF0}}, // 10 diopters.
			{Addr: 0x0C, W: []byte{0x80, 0x00}}, // Power down.
			{Addr: 0x0C, W: []byte{0x00, 0x10}}, // Wake up at 1.
		},
	}
	d, err := New(&i, &Opts{})
	if err != nil {
		t.Fatal(err)
	}
	if s := d.String(); !strings.HasPrefix(s, "DW9714{") {
		t.Fatal(s)
	}
	if d.MinFocusDistance() != 10 {
		t.Fatal(d.MinFocusDistance())
	}
	if err := d.SetFocusDistance(5); err != nil {
		t.Fatal(err)
	}
	if d.Position() != 512 {
		t.Fatal(d.Position())
	}
	if err := d.SetFocusDistance(10); err != nil {
		t.Fatal(err)
	}
	if d.Position() != MaxPosition {
		t.Fatal(d.Position())
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if !d.Halted() {
		t.Fatal("expected halted")
	}
	if err := d.SetPosition(1); err != nil {
		t.Fatal(err)
	}
	if d.Halted() {
		t.Fatal("expected awake")
	}
	if err := i.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_opts(t *testing.T) {
	i := i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x0D, W: []byte{0x00, 0x05}},
			{Addr: 0x0D, W: []byte{0x08, 0x05}},
		},
	}
	d, err := New(&i, &Opts{Addr: 0x0D, MinFocusDistance: 4, Slew: 5})
	if err != nil {
		t.Fatal(err)
	}
	// 1/8 of the range.
	if err := d.SetFocusDistance(0.5); err != nil {
		t.Fatal(err)
	}
	if d.Position() != 128 {
		t.Fatal(d.Position())
	}
	if err := i.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_keep(t *testing.T) {
	i := i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x0C, R: []byte{0x80 | 0x12, 0x34}},
			{Addr: 0x0C, R: []byte{0x01, 0x00}},
		},
	}
	d, err := New(&i, &Opts{Keep: true})
	if err != nil {
		t.Fatal(err)
	}
	if d.Position() != 0x123 || !d.Halted() {
		t.Fatal(d.Position(), d.Halted())
	}
	pos, err := d.Read()
	if err != nil {
		t.Fatal(err)
	}
	if pos != 0x10 || d.Halted() {
		t.Fatal(pos, d.Halted())
	}
	if err := i.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_fail(t *testing.T) {
	data := []Opts{
		{MinFocusDistance: -1},
		{Slew: 16},
	}
	for _, opts := range data {
		if _, err := New(&i2ctest.Record{}, &opts); err == nil {
			t.Fatalf("%+v: expected failure", opts)
		}
	}
	// I/O error.
	i := i2ctest.Playback{DontPanic: true}
	if _, err := New(&i, &Opts{}); err == nil {
		t.Fatal("expected I/O failure")
	}
}

func TestSetFocusDistance_range(t *testing.T) {
	i := i2ctest.Playback{Ops: []i2ctest.IO{{Addr: 0x0C, W: []byte{0x00, 0x00}}}}
	d, err := New(&i, &Opts{})
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []float32{-0.1, 10.1} {
		if d.SetFocusDistance(v) == nil {
			t.Fatalf("%g: expected failure", v)
		}
	}
	if d.SetPosition(MaxPosition+1) == nil {
		t.Fatal("expected failure")
	}
	if err := i.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestCode(t *testing.T) {
	d := Dev{opts: Opts{MinFocusDistance: 10}}
	data := []struct {
		diopters float32
		want     uint16
	}{
		{0, 0},
		{10, 1023},
		{5, 512},
		{2.5, 256},
		{0.01, 1},
	}
	for _, line := range data {
		if c := d.Code(line.diopters); c != line.want {
			t.Fatalf("%g: %d != %d", line.diopters, c, line.want)
		}
	}
}
