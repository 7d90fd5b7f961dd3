package heatmap

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"

	"lympho-lens/internal/models"
)

// Options controls one render. The zero value renders fully transparent;
// use DefaultOptions for an opaque, non-transitioning frame.
type Options struct {
	Width  int
	Height int

	// BlendWeight in [0,1] sets the frame alpha.
	BlendWeight float64

	// Overlay, when set, is composited over the heatmap at OverlayOpacity
	// as a structural reference.
	Overlay        *models.CanonicalImage
	OverlayOpacity float64
}

func DefaultOptions(width, height int) Options {
	return Options{Width: width, Height: height, BlendWeight: 1}
}

type Renderer struct {
	ramp           Ramp
	overlayOpacity float64
}

// NewRenderer uses overlayOpacity whenever RenderTarget draws an artifact.
func NewRenderer(ramp Ramp, overlayOpacity float64) *Renderer {
	return &Renderer{ramp: ramp, overlayOpacity: overlayOpacity}
}

func (r *Renderer) Ramp() Ramp {
	return r.ramp
}

func validSize(opts Options) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", opts.Width, opts.Height)
	}
	return nil
}

func alphaOf(weight float64) uint8 {
	if math.IsNaN(weight) || weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}
	return uint8(math.Round(255 * weight))
}

// Render maps artifact onto a Width x Height field. Each grid cell covers
// the block [floor(col*cw), floor((col+1)*cw)) horizontally, likewise
// vertically. Empty or non-square data fails with
// *models.InvalidArtifactError and nothing is drawn.
func (r *Renderer) Render(artifact models.FeatureArtifact, opts Options) (*image.NRGBA, error) {
	if len(artifact.Data) == 0 {
		return nil, &models.InvalidArtifactError{Name: artifact.Name, Length: 0, Reason: "no data"}
	}
	side, ok := artifact.Side()
	if !ok {
		return nil, &models.InvalidArtifactError{
			Name:   artifact.Name,
			Length: len(artifact.Data),
			Reason: "length is not a perfect square",
		}
	}
	if err := validSize(opts); err != nil {
		return nil, err
	}

	lo, hi, ok := finiteRange(artifact.Data)
	if !ok {
		return nil, &models.InvalidArtifactError{
			Name:   artifact.Name,
			Length: len(artifact.Data),
			Reason: "no finite values",
		}
	}
	span := hi - lo

	dst := image.NewNRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	alpha := alphaOf(opts.BlendWeight)
	cellW := float64(opts.Width) / float64(side)
	cellH := float64(opts.Height) / float64(side)

	for i, v := range artifact.Data {
		row, col := i/side, i%side

		normalized := 0.5
		if span != 0 && isFinite(v) {
			normalized = (float64(v) - lo) / span
		}
		c := r.ramp.At(normalized)
		c.A = alpha

		x0, x1 := int(math.Floor(float64(col)*cellW)), int(math.Floor(float64(col+1)*cellW))
		y0, y1 := int(math.Floor(float64(row)*cellH)), int(math.Floor(float64(row+1)*cellH))
		fillBlock(dst, x0, y0, x1, y1, c)
	}

	if opts.Overlay != nil && opts.OverlayOpacity > 0 {
		overlay(dst, opts.Overlay, opts.OverlayOpacity)
	}
	return dst, nil
}

// finiteRange is the min and max over the finite values of data. NaN and
// infinite cells do not take part and render at the midpoint.
func finiteRange(data []float32) (lo, hi float64, ok bool) {
	for _, v := range data {
		if !isFinite(v) {
			continue
		}
		f := float64(v)
		if !ok {
			lo, hi, ok = f, f, true
			continue
		}
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}
	return lo, hi, ok
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func fillBlock(dst *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	b := dst.Bounds()
	if x1 > b.Max.X {
		x1 = b.Max.X
	}
	if y1 > b.Max.Y {
		y1 = b.Max.Y
	}
	for y := y0; y < y1; y++ {
		off := dst.PixOffset(x0, y)
		for x := x0; x < x1; x++ {
			dst.Pix[off] = c.R
			dst.Pix[off+1] = c.G
			dst.Pix[off+2] = c.B
			dst.Pix[off+3] = c.A
			off += 4
		}
	}
}

// overlay scales the canonical image to dst and composites it with the
// given constant opacity.
func overlay(dst *image.NRGBA, img *models.CanonicalImage, opacity float64) {
	scaled := image.NewNRGBA(dst.Bounds())
	src := img.Image()
	draw.BiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)

	mask := image.NewUniform(color.Alpha{A: alphaOf(opacity)})
	draw.DrawMask(dst, dst.Bounds(), scaled, image.Point{}, mask, image.Point{}, draw.Over)
}

// RenderOriginal draws the canonical image scaled to the canvas with alpha
// BlendWeight. No overlay is applied.
func (r *Renderer) RenderOriginal(img *models.CanonicalImage, opts Options) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("no original image to render")
	}
	if err := validSize(opts); err != nil {
		return nil, err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	src := img.Image()
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	if alpha := alphaOf(opts.BlendWeight); alpha != 255 {
		for i := 3; i < len(dst.Pix); i += 4 {
			dst.Pix[i] = uint8((uint16(dst.Pix[i])*uint16(alpha) + 127) / 255)
		}
	}
	return dst, nil
}

// Scene is what a surface can show: the canonical image of the current run
// and the artifacts produced so far.
type Scene struct {
	Original  *models.CanonicalImage
	Artifacts []models.FeatureArtifact
}

// RenderTarget renders target from scene at blendWeight onto surface,
// sized to the surface bounds. Artifacts get the original as overlay.
func (r *Renderer) RenderTarget(scene Scene, target models.Target, blendWeight float64, surface Surface) error {
	b := surface.Bounds()
	opts := Options{Width: b.Dx(), Height: b.Dy(), BlendWeight: blendWeight}

	var (
		frame *image.NRGBA
		err   error
	)
	if target.IsOriginal() {
		frame, err = r.RenderOriginal(scene.Original, opts)
	} else {
		i := target.Index()
		if i < 0 || i >= len(scene.Artifacts) {
			return fmt.Errorf("artifact %d not in scene of %d", i, len(scene.Artifacts))
		}
		opts.Overlay = scene.Original
		opts.OverlayOpacity = r.overlayOpacity
		frame, err = r.Render(scene.Artifacts[i], opts)
	}
	if err != nil {
		return err
	}

	surface.Present(frame)
	return nil
}

// Presenter binds a renderer to one surface and the current scene. It is
// the frame sink driven by the transition engine.
type Presenter struct {
	renderer *Renderer
	surface  Surface

	mu    sync.RWMutex
	scene Scene
}

func NewPresenter(renderer *Renderer, surface Surface) *Presenter {
	return &Presenter{renderer: renderer, surface: surface}
}

func (p *Presenter) SetScene(scene Scene) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scene = Scene{
		Original:  scene.Original,
		Artifacts: append([]models.FeatureArtifact(nil), scene.Artifacts...),
	}
}

func (p *Presenter) Scene() Scene {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.scene
}

func (p *Presenter) RenderFrame(target models.Target, blendWeight float64) error {
	return p.renderer.RenderTarget(p.Scene(), target, blendWeight, p.surface)
}
