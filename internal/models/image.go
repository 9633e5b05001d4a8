package models

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Image is a multi-channel floating point raster used by every energy.
// Values of an image built with FromImage are normalized to [0,1].
type Image struct {
	// Width and Height are the raster dimensions in pixels
	Width  int
	Height int

	// Channels holds one row-major plane per channel
	Channels [][]float64
}

// NewImage allocates a zeroed image with the given number of channels
func NewImage(width, height, channels int) *Image {
	img := &Image{
		Width:    width,
		Height:   height,
		Channels: make([][]float64, channels),
	}
	for c := range img.Channels {
		img.Channels[c] = make([]float64, width*height)
	}
	return img
}

// NewGrayImage wraps a single row-major plane. The slice is not copied.
func NewGrayImage(width, height int, data []float64) (*Image, error) {
	if len(data) != width*height {
		return nil, errors.Errorf("data length %d does not match %dx%d", len(data), width, height)
	}
	return &Image{Width: width, Height: height, Channels: [][]float64{data}}, nil
}

// FromImage converts a decoded image into a normalized float image. Gray
// images produce one channel, everything else produces three (R, G, B).
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch src.(type) {
	case *image.Gray, *image.Gray16:
		img := NewImage(w, h, 1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.Gray16Model.Convert(src.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.Gray16)
				img.Channels[0][y*w+x] = float64(g.Y) / 65535.0
			}
		}
		return img
	}

	img := NewImage(w, h, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := src.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			idx := y*w + x
			img.Channels[0][idx] = float64(r) / 65535.0
			img.Channels[1][idx] = float64(g) / 65535.0
			img.Channels[2][idx] = float64(b) / 65535.0
		}
	}
	return img
}

// NumChannels returns the number of channels
func (img *Image) NumChannels() int { return len(img.Channels) }

// In reports whether (x, y) lies inside the raster
func (img *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < img.Width && y < img.Height
}

// At returns channel c at (x, y). Coordinates are clamped to the border.
func (img *Image) At(c, x, y int) float64 {
	x = clamp(x, 0, img.Width-1)
	y = clamp(y, 0, img.Height-1)
	return img.Channels[c][y*img.Width+x]
}

// Set writes channel c at (x, y)
func (img *Image) Set(c, x, y int, v float64) {
	img.Channels[c][y*img.Width+x] = v
}

// Luminance returns the per-pixel mean over all channels as a new plane
func (img *Image) Luminance() []float64 {
	out := make([]float64, img.Width*img.Height)
	if len(img.Channels) == 1 {
		copy(out, img.Channels[0])
		return out
	}
	for _, plane := range img.Channels {
		for i, v := range plane {
			out[i] += v
		}
	}
	n := float64(len(img.Channels))
	for i := range out {
		out[i] /= n
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
