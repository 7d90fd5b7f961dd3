package imaging

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"lympho-lens/internal/models"
)

// Normalizer resizes arbitrary images to the canonical square grid.
type Normalizer struct {
	side int
}

func NewNormalizer() *Normalizer {
	return &Normalizer{side: models.CanonicalSize}
}

// NewNormalizerWithSide is used by tests and tools that want a smaller grid.
func NewNormalizerWithSide(side int) (*Normalizer, error) {
	if side <= 0 {
		return nil, fmt.Errorf("invalid canonical side %d", side)
	}
	return &Normalizer{side: side}, nil
}

// Normalize resizes img bilinearly to side x side and scales 8-bit RGB to
// [0,1]. Alpha is dropped.
func (n *Normalizer) Normalize(img image.Image) (*models.CanonicalImage, error) {
	if img == nil {
		return nil, fmt.Errorf("image is nil")
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("image has no pixels")
	}

	resized := resize.Resize(uint(n.side), uint(n.side), img, resize.Bilinear)

	rgba := image.NewNRGBA(image.Rect(0, 0, n.side, n.side))
	draw.Draw(rgba, rgba.Bounds(), resized, resized.Bounds().Min, draw.Src)

	pixels := make([]float32, 0, n.side*n.side*models.CanonicalChannels)
	for i := 0; i < len(rgba.Pix); i += 4 {
		pixels = append(pixels,
			float32(rgba.Pix[i])/255,
			float32(rgba.Pix[i+1])/255,
			float32(rgba.Pix[i+2])/255,
		)
	}

	return models.NewCanonicalImage(n.side, pixels)
}

// LoadCanonical decodes path and normalizes it in one step.
func LoadCanonical(src *Source, n *Normalizer, path string) (*SourceImage, *models.CanonicalImage, error) {
	decoded, err := src.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}

	canonical, err := n.Normalize(decoded.Image)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to normalize %s: %w", decoded.Name, err)
	}
	return decoded, canonical, nil
}
