package heatmap

import (
	"image/color"
	"math"
)

// Ramp is a four-segment piecewise-linear color map with anchors at
// 0, 0.25, 0.5, 0.75 and 1.
type Ramp [5]color.NRGBA

// DefaultRamp runs purple, blue, teal, green, yellow: cold to warm.
var DefaultRamp = Ramp{
	{R: 73, G: 3, B: 119, A: 255},
	{R: 43, G: 119, B: 191, A: 255},
	{R: 33, G: 170, B: 155, A: 255},
	{R: 130, G: 188, B: 97, A: 255},
	{R: 253, G: 231, B: 37, A: 255},
}

// At maps a normalized value to an opaque color. Values are clamped to
// [0,1]; NaN maps to the low end.
func (r Ramp) At(normalized float64) color.NRGBA {
	if math.IsNaN(normalized) || normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	segment := int(normalized * 4)
	if segment > 3 {
		segment = 3
	}
	t := (normalized - float64(segment)*0.25) / 0.25

	from, to := r[segment], r[segment+1]
	return color.NRGBA{
		R: lerp(from.R, to.R, t),
		G: lerp(from.G, to.G, t),
		B: lerp(from.B, to.B, t),
		A: 255,
	}
}

func (r Ramp) Low() color.NRGBA {
	return r[0]
}

// Midpoint is the color of a constant field.
func (r Ramp) Midpoint() color.NRGBA {
	return r[2]
}

func (r Ramp) High() color.NRGBA {
	return r[4]
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a)*(1-t) + float64(b)*t))
}
