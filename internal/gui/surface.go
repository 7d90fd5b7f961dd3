package gui

import (
	"image"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

// CanvasSurface presents heatmap frames on a fyne canvas image. Frames may
// arrive from any goroutine; the canvas is only touched inside fyne.Do.
type CanvasSurface struct {
	image  *canvas.Image
	bounds image.Rectangle
	closed atomic.Bool
}

func NewCanvasSurface(img *canvas.Image, width, height int) *CanvasSurface {
	return &CanvasSurface{image: img, bounds: image.Rect(0, 0, width, height)}
}

func (s *CanvasSurface) Bounds() image.Rectangle {
	return s.bounds
}

func (s *CanvasSurface) Present(frame *image.NRGBA) {
	if s.closed.Load() {
		return
	}
	fyne.Do(func() {
		s.image.Image = frame
		s.image.Refresh()
	})
}

// Close stops further frames from reaching the canvas.
func (s *CanvasSurface) Close() error {
	s.closed.Store(true)
	return nil
}
