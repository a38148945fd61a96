// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gray converts camera frames to 8 bits grayscale.
//
// All the conversion functions reuse the destination buffer when it is large
// enough, so a frame loop doesn't allocate once the frame size is stable.
package gray

import (
	"image"
	"image/color"
)

// Convert converts src to 8 bits grayscale into dst and returns it.
//
// dst is reshaped to src's bounds, translated to the origin. *image.Gray is
// copied, *image.Gray16 is scaled with AGCLinear and the luma plane of
// *image.YCbCr is used as is. Other images go through color.GrayModel.
func Convert(dst *image.Gray, src image.Image) *image.Gray {
	r := src.Bounds()
	dst = reshape(dst, r.Dx(), r.Dy())
	switch s := src.(type) {
	case *image.Gray:
		for y := 0; y < r.Dy(); y++ {
			off := s.PixOffset(r.Min.X, r.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], s.Pix[off:off+r.Dx()])
		}
	case *image.Gray16:
		agcLinear(dst, s)
	case *image.YCbCr:
		for y := 0; y < r.Dy(); y++ {
			off := s.YOffset(r.Min.X, r.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], s.Y[off:off+r.Dx()])
		}
	default:
		for y := 0; y < r.Dy(); y++ {
			for x := 0; x < r.Dx(); x++ {
				dst.Pix[y*dst.Stride+x] = color.GrayModel.Convert(src.At(r.Min.X+x, r.Min.Y+y)).(color.Gray).Y
			}
		}
	}
	return dst
}

// AGCLinear reduces the dynamic range of a 16 bits image down to 8 bits
// linearly, stretching [Min, Max] to [0, 255].
func AGCLinear(dst *image.Gray, src *image.Gray16) *image.Gray {
	r := src.Bounds()
	dst = reshape(dst, r.Dx(), r.Dy())
	agcLinear(dst, src)
	return dst
}

// Min returns the lowest value in the image.
func Min(i *image.Gray16) uint16 {
	r := i.Bounds()
	out := uint16(0xffff)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if v := i.Gray16At(x, y).Y; v < out {
				out = v
			}
		}
	}
	return out
}

// Max returns the highest value in the image.
func Max(i *image.Gray16) uint16 {
	r := i.Bounds()
	out := uint16(0)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if v := i.Gray16At(x, y).Y; v > out {
				out = v
			}
		}
	}
	return out
}

//

func agcLinear(dst *image.Gray, src *image.Gray16) {
	r := src.Bounds()
	floor := Min(src)
	delta := int(Max(src)) - int(floor)
	if delta == 0 {
		// Flat image; avoid the division by zero.
		delta = 1
	}
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			v := int(src.Gray16At(r.Min.X+x, r.Min.Y+y).Y-floor) * 255 / delta
			dst.Pix[y*dst.Stride+x] = uint8(v)
		}
	}
}

func reshape(dst *image.Gray, w, h int) *image.Gray {
	if dst == nil {
		return image.NewGray(image.Rect(0, 0, w, h))
	}
	if cap(dst.Pix) < w*h {
		dst.Pix = make([]uint8, w*h)
	}
	dst.Pix = dst.Pix[:w*h]
	dst.Stride = w
	dst.Rect = image.Rect(0, 0, w, h)
	return dst
}
