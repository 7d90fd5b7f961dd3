package features

import (
	"math"
	"testing"

	"lympho-lens/internal/models"
	"lympho-lens/internal/opencv/memory"
)

func newSession(t *testing.T, img *models.CanonicalImage) (*Session, *memory.Manager) {
	t.Helper()
	mem := memory.NewManager(nil, t.Name())
	s, err := NewSession(mem, img)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		mem.Cleanup()
	})
	return s, mem
}

func gradientImage(t *testing.T, side int) *models.CanonicalImage {
	t.Helper()
	pixels := make([]float32, side*side*3)
	for i := 0; i < side*side; i++ {
		v := float32(i) / float32(side*side-1)
		pixels[i*3] = v
		pixels[i*3+1] = 1 - v
		pixels[i*3+2] = 0.25
	}
	img, err := models.NewCanonicalImage(side, pixels)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestGrayscaleMatchesChannelMean(t *testing.T) {
	img := gradientImage(t, 8)
	s, _ := newSession(t, img)

	got, err := s.Grayscale()
	if err != nil {
		t.Fatalf("Grayscale() error = %v", err)
	}
	want := img.Grayscale()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !near(got[i], want[i]) {
			t.Fatalf("gray[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestChannelOrder(t *testing.T) {
	img := gradientImage(t, 4)
	s, _ := newSession(t, img)

	for ch := 0; ch < 3; ch++ {
		got, err := s.Channel(ch)
		if err != nil {
			t.Fatalf("Channel(%d) error = %v", ch, err)
		}
		want := img.Channel(ch)
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("channel %d[%d] = %v, want %v", ch, i, got[i], want[i])
			}
		}
	}

	if _, err := s.Channel(3); err == nil {
		t.Error("Channel(3) should fail")
	}
}

func TestEnhance(t *testing.T) {
	img, err := models.UniformCanonicalImage(2, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newSession(t, img)

	got, err := s.Enhance([]float32{0, 1, 0.5, 0.25})
	if err != nil {
		t.Fatalf("Enhance() error = %v", err)
	}
	want := []float32{0, 1, float32(math.Pow(0.5, 1.5)), float32(math.Pow(0.25, 1.5))}
	for i := range want {
		if !near(got[i], want[i]) {
			t.Errorf("enhanced[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEnhanceConstantIsHalf(t *testing.T) {
	img, err := models.UniformCanonicalImage(2, 0.7, 0.7, 0.7)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newSession(t, img)

	got, err := s.Enhance([]float32{0.7, 0.7, 0.7, 0.7})
	if err != nil {
		t.Fatalf("Enhance() error = %v", err)
	}
	for i, v := range got {
		if v != 0.5 {
			t.Errorf("enhanced[%d] = %v, want 0.5", i, v)
		}
	}

	if _, err := s.Enhance([]float32{1, 2, 3}); err == nil {
		t.Error("Enhance() accepted wrong length")
	}
}

func TestIntermediatesReleased(t *testing.T) {
	img := gradientImage(t, 16)
	s, mem := newSession(t, img)

	gray, err := s.Grayscale()
	if err != nil {
		t.Fatal(err)
	}
	for ch := 0; ch < 3; ch++ {
		if _, err := s.Channel(ch); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Enhance(gray); err != nil {
		t.Fatal(err)
	}

	// Only the source Mat is still live.
	if got := mem.GetStats().ActiveMats; got != 1 {
		t.Errorf("ActiveMats = %d, want 1", got)
	}

	s.Close()
	if got := mem.GetStats().ActiveMats; got != 0 {
		t.Errorf("ActiveMats after Close = %d, want 0", got)
	}
}
