package models

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

const (
	// CanonicalSize is the side length every source image is normalized to.
	CanonicalSize = 256
	// CanonicalChannels is the channel count of a CanonicalImage (R, G, B).
	CanonicalChannels = 3
)

// CanonicalImage is the fixed-size, [0,1]-normalized RGB grid shared by
// the model gateway and the heatmap renderer. Pixels are stored row-major
// in HWC order. A CanonicalImage is immutable once constructed.
type CanonicalImage struct {
	side   int
	pixels []float32
}

// NewCanonicalImage validates and takes a private copy of pixels.
func NewCanonicalImage(side int, pixels []float32) (*CanonicalImage, error) {
	if side <= 0 {
		return nil, fmt.Errorf("invalid canonical side: %d", side)
	}

	expected := side * side * CanonicalChannels
	if len(pixels) != expected {
		return nil, fmt.Errorf("canonical image needs %d values for %dx%dx%d, got %d",
			expected, side, side, CanonicalChannels, len(pixels))
	}

	for i, v := range pixels {
		if math.IsNaN(float64(v)) || v < 0 || v > 1 {
			return nil, fmt.Errorf("canonical value %v at index %d outside [0,1]", v, i)
		}
	}

	owned := make([]float32, len(pixels))
	copy(owned, pixels)

	return &CanonicalImage{side: side, pixels: owned}, nil
}

// UniformCanonicalImage builds a canonical image where every pixel has the
// same channel values.
func UniformCanonicalImage(side int, r, g, b float32) (*CanonicalImage, error) {
	if side <= 0 {
		return nil, fmt.Errorf("invalid canonical side: %d", side)
	}

	pixels := make([]float32, side*side*CanonicalChannels)
	for i := 0; i < len(pixels); i += CanonicalChannels {
		pixels[i] = r
		pixels[i+1] = g
		pixels[i+2] = b
	}

	return NewCanonicalImage(side, pixels)
}

// Side returns the width (and height) of the grid.
func (c *CanonicalImage) Side() int {
	return c.side
}

// Len returns the total number of float values (side*side*3).
func (c *CanonicalImage) Len() int {
	return len(c.pixels)
}

// Pixels returns a copy of the HWC pixel data.
func (c *CanonicalImage) Pixels() []float32 {
	out := make([]float32, len(c.pixels))
	copy(out, c.pixels)
	return out
}

// At returns one channel value at (x, y).
func (c *CanonicalImage) At(x, y, channel int) float32 {
	return c.pixels[(y*c.side+x)*CanonicalChannels+channel]
}

// Channel extracts one channel as a flat side*side array.
func (c *CanonicalImage) Channel(channel int) []float32 {
	out := make([]float32, c.side*c.side)
	for i := range out {
		out[i] = c.pixels[i*CanonicalChannels+channel]
	}
	return out
}

// Grayscale returns the per-pixel mean of the three channels.
func (c *CanonicalImage) Grayscale() []float32 {
	out := make([]float32, c.side*c.side)
	for i := range out {
		base := i * CanonicalChannels
		sum := c.pixels[base] + c.pixels[base+1] + c.pixels[base+2]
		out[i] = sum / CanonicalChannels
	}
	return out
}

// Image renders the grid back to an opaque 8-bit image.
func (c *CanonicalImage) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, c.side, c.side))
	for y := 0; y < c.side; y++ {
		for x := 0; x < c.side; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: to8(c.At(x, y, 0)),
				G: to8(c.At(x, y, 1)),
				B: to8(c.At(x, y, 2)),
				A: 255,
			})
		}
	}
	return img
}

func to8(v float32) uint8 {
	return uint8(math.Round(float64(v) * 255))
}
