package features

import (
	"fmt"

	"gocv.io/x/gocv"

	"lympho-lens/internal/models"
	"lympho-lens/internal/opencv/memory"
	"lympho-lens/internal/opencv/safe"
)

// EnhancementExponent is the gamma applied to the normalized grayscale map.
const EnhancementExponent = 1.5

// Session holds the canonical image as a float Mat for the duration of one
// analysis. Every intermediate Mat is allocated from mem and released before
// the owning call returns.
type Session struct {
	mem  *memory.Manager
	src  *safe.Mat
	side int
}

func NewSession(mem *memory.Manager, img *models.CanonicalImage) (*Session, error) {
	if mem == nil {
		return nil, fmt.Errorf("memory manager is required")
	}
	if img == nil {
		return nil, fmt.Errorf("canonical image is nil")
	}

	src, err := mem.FromFloats(img.Side(), img.Side(), models.CanonicalChannels, img.Pixels(), "canonical_rgb")
	if err != nil {
		return nil, fmt.Errorf("failed to load canonical image: %w", err)
	}

	return &Session{mem: mem, src: src, side: img.Side()}, nil
}

func (s *Session) Side() int {
	return s.side
}

// split returns the three planes of the source, each tracked by the manager.
func (s *Session) split() ([]*safe.Mat, error) {
	if err := safe.ValidateFloatMat(s.src, models.CanonicalChannels, "split"); err != nil {
		return nil, err
	}

	raw := gocv.Split(s.src.GetMat())
	planes := make([]*safe.Mat, 0, len(raw))
	for i, plane := range raw {
		sm, err := s.mem.Adopt(plane, fmt.Sprintf("plane_%d", i))
		if err != nil {
			for _, rest := range raw[i+1:] {
				rest.Close()
			}
			s.release(planes...)
			return nil, err
		}
		planes = append(planes, sm)
	}

	if len(planes) != models.CanonicalChannels {
		s.release(planes...)
		return nil, fmt.Errorf("split produced %d planes, want %d", len(planes), models.CanonicalChannels)
	}
	return planes, nil
}

func (s *Session) release(mats ...*safe.Mat) {
	for _, m := range mats {
		s.mem.ReleaseMat(m)
	}
}

// Grayscale is the per-pixel mean of the three channels.
func (s *Session) Grayscale() ([]float32, error) {
	planes, err := s.split()
	if err != nil {
		return nil, fmt.Errorf("grayscale: %w", err)
	}
	defer s.release(planes...)

	sum, err := s.mem.GetMat(s.side, s.side, gocv.MatTypeCV32FC1, "gray_partial")
	if err != nil {
		return nil, fmt.Errorf("grayscale: %w", err)
	}
	defer s.mem.ReleaseMat(sum)

	gray, err := s.mem.GetMat(s.side, s.side, gocv.MatTypeCV32FC1, "gray")
	if err != nil {
		return nil, fmt.Errorf("grayscale: %w", err)
	}
	defer s.mem.ReleaseMat(gray)

	const third = 1.0 / 3.0
	gocv.AddWeighted(planes[0].GetMat(), third, planes[1].GetMat(), third, 0, sum.GetMatPtr())
	gocv.AddWeighted(sum.GetMat(), 1, planes[2].GetMat(), third, 0, gray.GetMatPtr())

	return gray.ToFloats()
}

// Channel copies one RGB plane (0 red, 1 green, 2 blue).
func (s *Session) Channel(channel int) ([]float32, error) {
	if channel < 0 || channel >= models.CanonicalChannels {
		return nil, fmt.Errorf("channel %d out of range", channel)
	}

	planes, err := s.split()
	if err != nil {
		return nil, fmt.Errorf("channel %d: %w", channel, err)
	}
	defer s.release(planes...)

	return planes[channel].ToFloats()
}

// Enhance min-max normalizes a square map and raises it to
// EnhancementExponent. A constant map yields 0.5 everywhere.
func (s *Session) Enhance(values []float32) ([]float32, error) {
	if len(values) != s.side*s.side {
		return nil, fmt.Errorf("enhance: got %d values, want %d", len(values), s.side*s.side)
	}

	src, err := s.mem.FromFloats(s.side, s.side, 1, values, "enhance_src")
	if err != nil {
		return nil, fmt.Errorf("enhance: %w", err)
	}
	defer s.mem.ReleaseMat(src)

	lo, hi, err := src.MinMax()
	if err != nil {
		return nil, fmt.Errorf("enhance: %w", err)
	}

	if hi == lo {
		flat := src.GetMat()
		flat.SetTo(gocv.NewScalar(0.5, 0, 0, 0))
		return src.ToFloats()
	}

	normalized := src.GetMat()
	normalized.SubtractFloat(lo)
	normalized.DivideFloat(hi - lo)

	dst, err := s.mem.GetMat(s.side, s.side, gocv.MatTypeCV32FC1, "enhanced")
	if err != nil {
		return nil, fmt.Errorf("enhance: %w", err)
	}
	defer s.mem.ReleaseMat(dst)

	gocv.Pow(normalized, EnhancementExponent, dst.GetMatPtr())

	return dst.ToFloats()
}

// Close releases the source Mat. Safe to call more than once.
func (s *Session) Close() {
	if s.src != nil {
		s.mem.ReleaseMat(s.src)
		s.src = nil
	}
}
