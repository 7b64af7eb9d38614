// Package watermark renders text watermarks onto oriented images.
package watermark

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"

	"tilemark/pkg/layout"
	"tilemark/pkg/orient"
	"tilemark/pkg/placeholder"
)

// ErrSurfaceUnavailable is returned when no drawing surface can be allocated
// for a render.
var ErrSurfaceUnavailable = errors.New("surface unavailable")

// DefaultMaxPixels bounds the size of a single surface.
const DefaultMaxPixels = 150_000_000

// maxStrokeSamples caps the number of offset copies used to outline text.
const maxStrokeSamples = 96

// Renderer draws watermarks. It keeps no per-render state, so one Renderer
// may serve any number of images.
type Renderer struct {
	fonts     *layout.Fonts
	logger    zerolog.Logger
	now       func() time.Time
	maxPixels int64
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock sets the time source used for placeholder substitution.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		r.now = now
	}
}

// WithMaxPixels limits surface size; larger renders fail with
// ErrSurfaceUnavailable.
func WithMaxPixels(n int64) Option {
	return func(r *Renderer) {
		r.maxPixels = n
	}
}

// WithFonts shares a font cache between renderers.
func WithFonts(f *layout.Fonts) Option {
	return func(r *Renderer) {
		r.fonts = f
	}
}

// NewRenderer creates a Renderer.
func NewRenderer(logger zerolog.Logger, opts ...Option) *Renderer {
	r := &Renderer{
		logger:    logger,
		now:       time.Now,
		maxPixels: DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fonts == nil {
		r.fonts = layout.NewFonts(logger)
	}
	return r
}

// Render draws img upright onto a new surface and overlays the watermark
// described by spec. The returned surface belongs to the caller.
func (r *Renderer) Render(img *OrientedImage, spec Spec) (*image.RGBA, error) {
	if img == nil || img.Source == nil {
		return nil, errors.New("no source image")
	}
	start := time.Now()
	w, h := img.Width, img.Height

	surface, err := r.newSurface(w, h)
	if err != nil {
		return nil, err
	}
	if err := orient.Draw(surface, img.Source, img.Orientation); err != nil {
		return nil, fmt.Errorf("failed to draw base image: %w", err)
	}

	lines := layout.SplitLines(placeholder.Substitute(spec.Text, r.now()))
	if len(lines) == 0 {
		return surface, nil
	}

	fill, err := ParseColor(spec.Color)
	if err != nil {
		return nil, err
	}
	strokeSpec := spec.StrokeColor
	if strokeSpec == "" {
		strokeSpec = DefaultStrokeColor
	}
	stroke, err := ParseColor(strokeSpec)
	if err != nil {
		return nil, err
	}

	p := spec.Params().Scale(layout.ScaleFactor(w, h))
	face, err := r.fonts.Face(spec.FontFamily, p.FontSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	defer face.Close()

	metrics := layout.Measure(face, lines)
	b := textBlock{
		lines:    lines,
		widths:   metrics.Widths,
		offsets:  layout.LineOffsets(len(lines), p.LineHeight),
		baseline: layout.VerticalMiddle(face),
	}
	blockH := float64(len(lines)) * p.LineHeight
	grid := layout.Plan(w, h, spec.Tiled, metrics.MaxWidth, blockH, p.Spacing)

	angle := gg.Radians(spec.Angle)
	radius := math.Hypot(metrics.MaxWidth, math.Max(blockH, p.FontSize))/2 + p.FontSize + p.StrokeWidth
	var cells []layout.Point
	for _, c := range grid.Cells() {
		if layout.Visible(c, w, h, angle, radius) {
			cells = append(cells, c)
		}
	}

	alpha := spec.Opacity / 100
	if p.StrokeWidth > 0 {
		layer, err := r.drawLayer(w, h, face, angle, cells, b, strokeOffsets(p.StrokeWidth/2))
		if err != nil {
			return nil, err
		}
		composite(surface, layer, stroke, alpha)
	}
	layer, err := r.drawLayer(w, h, face, angle, cells, b, []layout.Point{{}})
	if err != nil {
		return nil, err
	}
	composite(surface, layer, fill, alpha)

	r.logger.Debug().
		Int("width", w).
		Int("height", h).
		Str("orientation", img.Orientation.String()).
		Bool("tiled", spec.Tiled).
		Int("lines", len(lines)).
		Int("cells", grid.Len()).
		Int("drawn", len(cells)).
		Dur("duration", time.Since(start)).
		Msg("Watermark rendered")

	return surface, nil
}

func (r *Renderer) newSurface(w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrSurfaceUnavailable, w, h)
	}
	if r.maxPixels > 0 && int64(w)*int64(h) > r.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrSurfaceUnavailable, w, h, r.maxPixels)
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

type textBlock struct {
	lines    []string
	widths   []float64
	offsets  []float64
	baseline float64
}

// drawLayer rasterises every block onto a transparent layer in opaque white.
// Only the layer's alpha is used afterwards, as coverage. Each block is drawn
// once per offset.
func (r *Renderer) drawLayer(w, h int, face font.Face, angle float64, cells []layout.Point, b textBlock, offsets []layout.Point) (*image.RGBA, error) {
	layer, err := r.newSurface(w, h)
	if err != nil {
		return nil, err
	}
	dc := gg.NewContextForRGBA(layer)
	dc.SetFontFace(face)
	dc.SetRGB(1, 1, 1)
	dc.Translate(float64(w)/2, float64(h)/2)
	dc.Rotate(angle)

	for _, c := range cells {
		for i, line := range b.lines {
			x := c.X - b.widths[i]/2
			y := c.Y + b.offsets[i] + b.baseline
			for _, off := range offsets {
				dc.DrawString(line, x+off.X, y+off.Y)
			}
		}
	}
	return layer, nil
}

// strokeOffsets samples a filled disc of radius r. Drawing the glyphs at each
// offset dilates them by r, which gives an outline of width 2r once the fill
// is painted on top.
func strokeOffsets(r float64) []layout.Point {
	var out []layout.Point
	for ring := r; ring > 0 && len(out) < maxStrokeSamples; ring-- {
		n := int(math.Ceil(2 * math.Pi * ring))
		n = max(8, min(n, 32))
		for i := 0; i < n && len(out) < maxStrokeSamples; i++ {
			sin, cos := math.Sincos(2 * math.Pi * float64(i) / float64(n))
			out = append(out, layout.Point{X: ring * cos, Y: ring * sin})
		}
	}
	return out
}

// composite paints c through the coverage of layer at opacity alpha times the
// colour's own alpha.
func composite(dst *image.RGBA, layer *image.RGBA, c color.NRGBA, alpha float64) {
	k := alpha * float64(c.A) / 255
	if k <= 0 {
		return
	}
	b := dst.Bounds()
	mask := image.NewAlpha(b)
	for i, j := 3, 0; i < len(layer.Pix); i, j = i+4, j+1 {
		if a := layer.Pix[i]; a != 0 {
			mask.Pix[j] = uint8(math.Round(float64(a) * k))
		}
	}
	src := image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
	draw.DrawMask(dst, b, src, image.Point{}, mask, b.Min, draw.Over)
}
