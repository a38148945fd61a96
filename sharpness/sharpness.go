// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sharpness scores how much a grayscale frame is in focus.
//
// The score is the mean edge intensity of the frame: a 3x3 Sobel gradient is
// computed with the border extended to the nearest pixel, the Euclidean norm
// of the gradient is taken at each pixel and averaged over the whole frame.
// The mean is used instead of the sum so that frames of different dimensions
// remain comparable.
package sharpness

import (
	"errors"
	"image"
	"math"
)

// ErrEmpty is returned when the frame has no pixel.
var ErrEmpty = errors.New("sharpness: empty frame")

// Metric evaluates the sharpness of frames.
//
// It keeps its gradient buffers between calls so there is no allocation per
// frame once the frame size is stable. It is not safe for concurrent use.
type Metric struct {
	w, h      int
	derivX    []int16   // Horizontal Sobel derivative.
	derivY    []int16   // Vertical Sobel derivative.
	intensity []float32 // Gradient intensity.
}

// Evaluate returns the mean gradient intensity of img.
//
// The result is deterministic and is 0 for a uniform frame.
func (m *Metric) Evaluate(img *image.Gray) (float64, error) {
	r := img.Bounds()
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return 0, ErrEmpty
	}
	m.reshape(w, h)
	m.gradient(img)
	total := float64(0)
	for i, dx := range m.derivX {
		dy := m.derivY[i]
		v := float32(math.Sqrt(float64(int32(dx)*int32(dx) + int32(dy)*int32(dy))))
		m.intensity[i] = v
		total += float64(v)
	}
	return total / float64(w*h), nil
}

// Bounds returns the dimensions of the last evaluated frame.
func (m *Metric) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.w, m.h)
}

// Edges renders the gradient intensity of the last evaluated frame as 8 bits.
//
// dst is reused when large enough. The intensity is divided by 4 and
// saturated, so a full black to white step gives 255.
func (m *Metric) Edges(dst *image.Gray) *image.Gray {
	r := image.Rect(0, 0, m.w, m.h)
	if dst == nil || cap(dst.Pix) < m.w*m.h {
		dst = image.NewGray(r)
	} else {
		dst.Pix = dst.Pix[:m.w*m.h]
		dst.Stride = m.w
		dst.Rect = r
	}
	for i, v := range m.intensity {
		v /= 4
		if v > 255 {
			v = 255
		}
		dst.Pix[i] = uint8(v)
	}
	return dst
}

// Private details.

// reshape resizes the buffers in place, only growing the backing arrays.
func (m *Metric) reshape(w, h int) {
	m.w = w
	m.h = h
	n := w * h
	if cap(m.derivX) < n {
		m.derivX = make([]int16, n)
		m.derivY = make([]int16, n)
		m.intensity = make([]float32, n)
		return
	}
	m.derivX = m.derivX[:n]
	m.derivY = m.derivY[:n]
	m.intensity = m.intensity[:n]
}

// gradient computes the Sobel derivatives of img into derivX and derivY.
//
//	    -1 0 1          -1 -2 -1
//	x:  -2 0 2      y:   0  0  0
//	    -1 0 1           1  2  1
//
// Pixels outside img are replaced with the nearest pixel inside.
func (m *Metric) gradient(img *image.Gray) {
	r := img.Bounds()
	base := img.PixOffset(r.Min.X, r.Min.Y)
	w, h, stride := m.w, m.h, img.Stride
	for y := 0; y < h; y++ {
		// Row offsets of the line above, the line and the line below.
		above := base + clamp(y-1, h)*stride
		line := base + y*stride
		below := base + clamp(y+1, h)*stride
		a := img.Pix[above : above+w]
		c := img.Pix[line : line+w]
		b := img.Pix[below : below+w]
		out := y * w
		for x := 0; x < w; x++ {
			l := clamp(x-1, w)
			rt := clamp(x+1, w)
			al, ac, ar := int16(a[l]), int16(a[x]), int16(a[rt])
			cl, cr := int16(c[l]), int16(c[rt])
			bl, bc, br := int16(b[l]), int16(b[x]), int16(b[rt])
			m.derivX[out+x] = (ar + 2*cr + br) - (al + 2*cl + bl)
			m.derivY[out+x] = (bl + 2*bc + br) - (al + 2*ac + ar)
		}
	}
}

// clamp returns i limited to [0, n).
func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
