package heatmap

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"
)

// Surface accepts rendered frames of its own bounds.
type Surface interface {
	Bounds() image.Rectangle
	Present(frame *image.NRGBA)
}

// ImageSurface keeps the most recent frame in memory. It backs the CLI
// export and tests.
type ImageSurface struct {
	mu     sync.Mutex
	bounds image.Rectangle
	last   *image.NRGBA
	frames int
}

func NewImageSurface(width, height int) *ImageSurface {
	return &ImageSurface{bounds: image.Rect(0, 0, width, height)}
}

func (s *ImageSurface) Bounds() image.Rectangle {
	return s.bounds
}

func (s *ImageSurface) Present(frame *image.NRGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = frame
	s.frames++
}

// Last returns the most recently presented frame, or nil.
func (s *ImageSurface) Last() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *ImageSurface) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func EncodePNG(w io.Writer, img image.Image) error {
	if img == nil {
		return fmt.Errorf("nothing to encode")
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("png encoding failed: %w", err)
	}
	return nil
}
