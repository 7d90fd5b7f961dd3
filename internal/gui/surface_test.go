package gui

import (
	"image"
	"testing"

	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/test"
)

func TestCanvasSurfacePresents(t *testing.T) {
	test.NewTempApp(t)

	img := canvas.NewImageFromImage(nil)
	s := NewCanvasSurface(img, 64, 32)

	if got := s.Bounds(); got != image.Rect(0, 0, 64, 32) {
		t.Errorf("Bounds() = %v", got)
	}

	frame := image.NewNRGBA(s.Bounds())
	s.Present(frame)
	if img.Image != frame {
		t.Error("frame not presented")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	s.Present(image.NewNRGBA(s.Bounds()))
	if img.Image != frame {
		t.Error("frame presented after Close")
	}
}
