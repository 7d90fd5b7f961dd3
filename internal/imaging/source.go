package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"lympho-lens/internal/logger"
)

// Metadata is the acquisition information recovered from EXIF, when present.
type Metadata struct {
	CameraMake  string
	CameraModel string
	CapturedAt  time.Time
	HasEXIF     bool
}

// SourceImage is a decoded user image prior to normalization.
type SourceImage struct {
	Name     string
	Image    image.Image
	Format   string
	Width    int
	Height   int
	Metadata Metadata
}

type Source struct {
	log logger.Logger
}

func NewSource(log logger.Logger) *Source {
	if log == nil {
		log = logger.NewNop()
	}
	return &Source{log: log}
}

func (s *Source) LoadFile(path string) (*SourceImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	return s.Decode(bytes.NewReader(data), filepath.Base(path))
}

// Decode reads a JPEG, PNG, GIF, TIFF, BMP or WebP image from r. EXIF is
// read on a best-effort basis and never fails the decode.
func (s *Source) Decode(r io.ReadSeeker, name string) (*SourceImage, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("image %s has no pixels", name)
	}

	src := &SourceImage{
		Name:   name,
		Image:  img,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}

	if _, err := r.Seek(0, io.SeekStart); err == nil {
		src.Metadata = s.readMetadata(r, name)
	}

	s.log.Debug("ImageSource", "image decoded", map[string]interface{}{
		"name":     name,
		"format":   format,
		"width":    src.Width,
		"height":   src.Height,
		"has_exif": src.Metadata.HasEXIF,
	})

	return src, nil
}

func (s *Source) readMetadata(r io.ReadSeeker, name string) (meta Metadata) {
	defer func() {
		// Malformed EXIF blocks can panic inside the parser.
		if rec := recover(); rec != nil {
			s.log.Debug("ImageSource", "EXIF parser panicked", map[string]interface{}{
				"name":  name,
				"panic": fmt.Sprint(rec),
			})
			meta = Metadata{}
		}
	}()

	exifData, err := imagemeta.Decode(r)
	if err != nil {
		s.log.Debug("ImageSource", "no EXIF metadata", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
		return Metadata{}
	}

	meta.HasEXIF = true
	meta.CameraMake = strings.TrimSpace(exifData.Make)
	meta.CameraModel = strings.TrimSpace(exifData.Model)
	if t := exifData.DateTimeOriginal(); !t.IsZero() {
		meta.CapturedAt = t
	} else if t := exifData.CreateDate(); !t.IsZero() {
		meta.CapturedAt = t
	}
	return meta
}
