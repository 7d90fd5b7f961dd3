package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"lympho-lens/internal/models"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	data := encodePNG(t, solidImage(40, 30, color.NRGBA{R: 10, G: 20, B: 30, A: 255}))

	src, err := NewSource(nil).Decode(bytes.NewReader(data), "slide.png")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if src.Format != "png" || src.Width != 40 || src.Height != 30 {
		t.Errorf("got format=%s size=%dx%d, want png 40x30", src.Format, src.Width, src.Height)
	}
	if src.Metadata.HasEXIF {
		t.Error("PNG without EXIF reported metadata")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := NewSource(nil).Decode(bytes.NewReader([]byte("not an image")), "x.bin"); err == nil {
		t.Error("Decode() accepted garbage")
	}
}

func TestNormalizeUniform(t *testing.T) {
	n := NewNormalizer()
	canonical, err := n.Normalize(solidImage(300, 120, color.NRGBA{R: 255, G: 128, B: 0, A: 255}))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if canonical.Side() != models.CanonicalSize {
		t.Fatalf("Side() = %d, want %d", canonical.Side(), models.CanonicalSize)
	}

	want := [3]float32{1, 128.0 / 255, 0}
	for ch := 0; ch < 3; ch++ {
		for i, v := range canonical.Channel(ch) {
			if math.Abs(float64(v-want[ch])) > 1.0/255 {
				t.Fatalf("channel %d pixel %d = %v, want %v", ch, i, v, want[ch])
			}
		}
	}
}

func TestNormalizeDropsAlpha(t *testing.T) {
	n, err := NewNormalizerWithSide(4)
	if err != nil {
		t.Fatal(err)
	}
	canonical, err := n.Normalize(solidImage(8, 8, color.NRGBA{R: 200, G: 100, B: 50, A: 128}))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got := canonical.Len(); got != 4*4*3 {
		t.Errorf("Len() = %d, want 48", got)
	}
}

func TestNormalizeRejectsEmpty(t *testing.T) {
	if _, err := NewNormalizer().Normalize(image.NewNRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Error("Normalize() accepted empty image")
	}
	if _, err := NewNormalizerWithSide(0); err == nil {
		t.Error("NewNormalizerWithSide(0) should fail")
	}
}

func TestLoadCanonical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.png")
	if err := os.WriteFile(path, encodePNG(t, solidImage(16, 16, color.NRGBA{R: 51, G: 51, B: 51, A: 255})), 0o644); err != nil {
		t.Fatal(err)
	}

	n, _ := NewNormalizerWithSide(8)
	src, canonical, err := LoadCanonical(NewSource(nil), n, path)
	if err != nil {
		t.Fatalf("LoadCanonical() error = %v", err)
	}
	if src.Name != "cells.png" {
		t.Errorf("Name = %q", src.Name)
	}
	for _, v := range canonical.Grayscale() {
		if math.Abs(float64(v)-0.2) > 1.0/255 {
			t.Fatalf("gray = %v, want 0.2", v)
		}
	}
}
