package watermark

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"tilemark/pkg/orient"
)

func fixedClock() time.Time {
	return time.Date(2024, time.March, 5, 9, 7, 3, 0, time.UTC)
}

func newTestRenderer(opts ...Option) *Renderer {
	return NewRenderer(zerolog.Nop(), append([]Option{WithClock(fixedClock)}, opts...)...)
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: 255})
		}
	}
	return img
}

func oriented(t *testing.T, src image.Image, code orient.Code) *OrientedImage {
	t.Helper()
	img, err := NewOrientedImage(src, code)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func baseOnly(t *testing.T, img *OrientedImage) *image.RGBA {
	t.Helper()
	dst := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	if err := orient.Draw(dst, img.Source, img.Orientation); err != nil {
		t.Fatal(err)
	}
	return dst
}

func changedPixels(a, b *image.RGBA) int {
	n := 0
	for i := 0; i < len(a.Pix); i += 4 {
		if a.Pix[i] != b.Pix[i] || a.Pix[i+1] != b.Pix[i+1] || a.Pix[i+2] != b.Pix[i+2] {
			n++
		}
	}
	return n
}

func visibleSpec(text string) Spec {
	s := DefaultSpec()
	s.Text = text
	s.Opacity = 100
	s.FontSize = 20
	s.LineHeight = 24
	s.Spacing = 8
	s.StrokeWidth = 0
	return s
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want color.NRGBA
	}{
		{"#000000", color.NRGBA{A: 255}},
		{"#ffffff", color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{"#FF3B30", color.NRGBA{R: 0xff, G: 0x3b, B: 0x30, A: 255}},
		{"#abc", color.NRGBA{R: 0xaa, G: 0xbb, B: 0xcc, A: 255}},
		{"#11223380", color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x80}},
		{"e5e7eb", color.NRGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 255}},
		{"rgba(255, 255, 255, 0.5)", color.NRGBA{R: 255, G: 255, B: 255, A: 128}},
		{"rgb(1,2,3)", color.NRGBA{R: 1, G: 2, B: 3, A: 255}},
		{" RGBA(10, 20, 30, 0) ", color.NRGBA{R: 10, G: 20, B: 30}},
	}
	for _, tc := range cases {
		got, err := ParseColor(tc.in)
		if err != nil {
			t.Errorf("ParseColor(%q): %v", tc.in, err)
			continue
		}
		if d := cmp.Diff(tc.want, got); d != "" {
			t.Errorf("ParseColor(%q) (-want +got):\n%s", tc.in, d)
		}
	}

	for _, bad := range []string{"", "#12", "#12345", "#gggggg", "rgb(1,2)", "rgba(1,2,3)", "rgb(300,0,0)", "rgba(0,0,0,2)", "hsl(0,0,0)", "red"} {
		if _, err := ParseColor(bad); !errors.Is(err, ErrInvalidColor) {
			t.Errorf("ParseColor(%q): got %v, want ErrInvalidColor", bad, err)
		}
	}
}

func TestSpecValidate(t *testing.T) {
	if err := DefaultSpec().Validate(); err != nil {
		t.Fatalf("default spec invalid: %v", err)
	}

	cases := map[string]func(*Spec){
		"opacity above 100": func(s *Spec) { s.Opacity = 101 },
		"negative opacity":  func(s *Spec) { s.Opacity = -1 },
		"angle 360":         func(s *Spec) { s.Angle = 360 },
		"zero font size":    func(s *Spec) { s.FontSize = 0 },
		"zero spacing":      func(s *Spec) { s.Spacing = 0 },
		"zero line height":  func(s *Spec) { s.LineHeight = 0 },
		"negative stroke":   func(s *Spec) { s.StrokeWidth = -1 },
		"bad color":         func(s *Spec) { s.Color = "not-a-color" },
		"missing color":     func(s *Spec) { s.Color = "" },
		"bad stroke color":  func(s *Spec) { s.StrokeColor = "#12" },
	}
	for name, mutate := range cases {
		s := DefaultSpec()
		mutate(&s)
		if err := s.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	s := DefaultSpec()
	s.StrokeColor = ""
	s.Angle = 359.9
	if err := s.Validate(); err != nil {
		t.Errorf("empty stroke colour should be allowed: %v", err)
	}
}

func TestRenderEmptyTextIsNoop(t *testing.T) {
	r := newTestRenderer()
	for _, code := range []orient.Code{orient.Normal, orient.Rotate90CW, orient.Transverse} {
		img := oriented(t, gradient(64, 48), code)
		want := baseOnly(t, img)
		for _, text := range []string{"", "   ", "\n\t\n"} {
			spec := DefaultSpec()
			spec.Text = text
			got, err := r.Render(img, spec)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got.Pix, want.Pix) {
				t.Errorf("%s text %q: surface differs from base image", code, text)
			}
		}
	}
}

func TestRenderZeroOpacityIsNoop(t *testing.T) {
	r := newTestRenderer()
	img := oriented(t, gradient(120, 80), orient.Normal)
	spec := visibleSpec("hidden")
	spec.Opacity = 0
	spec.StrokeWidth = 2
	got, err := r.Render(img, spec)
	if err != nil {
		t.Fatal(err)
	}
	if n := changedPixels(got, baseOnly(t, img)); n != 0 {
		t.Errorf("%d pixels changed at zero opacity", n)
	}
}

func TestRenderDrawsText(t *testing.T) {
	r := newTestRenderer()
	img := oriented(t, solid(200, 100, color.NRGBA{R: 255, G: 255, B: 255, A: 255}), orient.Normal)
	base := baseOnly(t, img)
	for _, tiled := range []bool{false, true} {
		spec := visibleSpec("MARK")
		spec.Tiled = tiled
		got, err := r.Render(img, spec)
		if err != nil {
			t.Fatal(err)
		}
		if got.Bounds() != base.Bounds() {
			t.Fatalf("bounds %v, want %v", got.Bounds(), base.Bounds())
		}
		if n := changedPixels(got, base); n == 0 {
			t.Errorf("tiled=%v: nothing drawn", tiled)
		}
	}
}

func TestRenderCentredBlock(t *testing.T) {
	r := newTestRenderer()
	const w, h = 400, 200
	img := oriented(t, solid(w, h, color.NRGBA{R: 255, G: 255, B: 255, A: 255}), orient.Normal)
	spec := visibleSpec("HHHH")
	spec.Tiled = false
	spec.Angle = 0
	spec.FontSize = 40
	spec.LineHeight = 40
	got, err := r.Render(img, spec)
	if err != nil {
		t.Fatal(err)
	}

	minX, minY, maxX, maxY := w, h, -1, -1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if got.RGBAAt(x, y).R < 128 {
				minX, minY = min(minX, x), min(minY, y)
				maxX, maxY = max(maxX, x), max(maxY, y)
			}
		}
	}
	if maxX < 0 {
		t.Fatal("no ink found")
	}
	cx := float64(minX+maxX+1) / 2
	cy := float64(minY+maxY+1) / 2
	if cx < w/2-3 || cx > w/2+3 {
		t.Errorf("ink centred at x=%v, want about %d", cx, w/2)
	}
	if cy < h/2-6 || cy > h/2+6 {
		t.Errorf("ink centred at y=%v, want about %d", cy, h/2)
	}
}

func TestRenderTiledCoversCorners(t *testing.T) {
	r := newTestRenderer()
	const w, h = 300, 300
	img := oriented(t, solid(w, h, color.NRGBA{R: 255, G: 255, B: 255, A: 255}), orient.Normal)
	for _, angle := range []float64{0, 30, 45, 90, 135, 200, 315} {
		spec := visibleSpec("WATERMARK")
		spec.Angle = angle
		got, err := r.Render(img, spec)
		if err != nil {
			t.Fatal(err)
		}
		for _, corner := range []image.Point{{0, 0}, {w - 60, 0}, {0, h - 60}, {w - 60, h - 60}} {
			inked := false
			for y := corner.Y; y < corner.Y+60 && !inked; y++ {
				for x := corner.X; x < corner.X+60; x++ {
					if got.RGBAAt(x, y).R < 200 {
						inked = true
						break
					}
				}
			}
			if !inked {
				t.Errorf("angle %v: corner %v left uncovered", angle, corner)
			}
		}
	}
}

func TestRenderStrokeWidensInk(t *testing.T) {
	r := newTestRenderer()
	img := oriented(t, solid(240, 120, color.NRGBA{R: 128, G: 128, B: 128, A: 255}), orient.Normal)
	base := baseOnly(t, img)

	spec := visibleSpec("OUTLINE")
	spec.Tiled = false
	spec.Color = "#000000"
	spec.StrokeColor = "#ffffff"

	plain, err := r.Render(img, spec)
	if err != nil {
		t.Fatal(err)
	}
	spec.StrokeWidth = 4
	stroked, err := r.Render(img, spec)
	if err != nil {
		t.Fatal(err)
	}
	if a, b := changedPixels(plain, base), changedPixels(stroked, base); b <= a {
		t.Errorf("stroke did not add coverage: %d <= %d", b, a)
	}
}

func TestRenderReturnsFreshSurface(t *testing.T) {
	r := newTestRenderer()
	img := oriented(t, gradient(100, 60), orient.Normal)

	first, err := r.Render(img, visibleSpec("one"))
	if err != nil {
		t.Fatal(err)
	}
	snapshot := append([]byte(nil), first.Pix...)

	spec := visibleSpec("two")
	spec.Color = "#ff0000"
	second, err := r.Render(img, spec)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("surface reused")
	}
	if !bytes.Equal(first.Pix, snapshot) {
		t.Error("earlier surface mutated by a later render")
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	r := newTestRenderer()
	img := oriented(t, gradient(160, 90), orient.Normal)

	withToken, err := r.Render(img, visibleSpec("{YYYY-MM-DD}"))
	if err != nil {
		t.Fatal(err)
	}
	literal, err := r.Render(img, visibleSpec("2024-03-05"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(withToken.Pix, literal.Pix) {
		t.Error("placeholder render differs from literal text render")
	}
}

func TestRenderOrientedSurfaceSize(t *testing.T) {
	r := newTestRenderer()
	img := oriented(t, gradient(40, 20), orient.Rotate90CW)
	got, err := r.Render(img, visibleSpec("x"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Bounds().Dx() != 20 || got.Bounds().Dy() != 40 {
		t.Errorf("surface %v, want 20x40", got.Bounds())
	}
}

func TestRenderErrors(t *testing.T) {
	img := oriented(t, gradient(20, 20), orient.Normal)

	small := newTestRenderer(WithMaxPixels(100))
	if _, err := small.Render(img, visibleSpec("x")); !errors.Is(err, ErrSurfaceUnavailable) {
		t.Errorf("got %v, want ErrSurfaceUnavailable", err)
	}

	r := newTestRenderer()
	spec := visibleSpec("x")
	spec.Color = "chartreuse-ish"
	if _, err := r.Render(img, spec); !errors.Is(err, ErrInvalidColor) {
		t.Errorf("got %v, want ErrInvalidColor", err)
	}

	bad := &OrientedImage{Source: gradient(20, 20), Orientation: 9, Width: 20, Height: 20}
	if _, err := r.Render(bad, visibleSpec("x")); !errors.Is(err, orient.ErrInvalidOrientationCode) {
		t.Errorf("got %v, want ErrInvalidOrientationCode", err)
	}

	if _, err := r.Render(nil, visibleSpec("x")); err == nil {
		t.Error("expected error for nil image")
	}
}

func TestRenderLargeImageScales(t *testing.T) {
	r := newTestRenderer()
	spec := visibleSpec("I")
	spec.Tiled = false

	count := func(w, h int) int {
		img := oriented(t, solid(w, h, color.NRGBA{R: 255, G: 255, B: 255, A: 255}), orient.Normal)
		got, err := r.Render(img, spec)
		if err != nil {
			t.Fatal(err)
		}
		return changedPixels(got, baseOnly(t, img))
	}
	// at twice the base dimension every length doubles, so ink area roughly quadruples
	small, large := count(1280, 1280), count(2560, 2560)
	if large < 3*small {
		t.Errorf("ink area %d at 2560px vs %d at 1280px, expected about 4x", large, small)
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func jpegWithOrientation(t *testing.T, w, h int, code uint16) []byte {
	t.Helper()
	var body bytes.Buffer
	if err := jpeg.Encode(&body, gradient(w, h), nil); err != nil {
		t.Fatal(err)
	}
	tiff := []byte{
		'I', 'I', 0x2a, 0x00, 0x08, 0x00, 0x00, 0x00,
		0x01, 0x00,
		0x12, 0x01, 0x03, 0x00, 0x01, 0x00, 0x00, 0x00,
		byte(code), byte(code >> 8), 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	payload := append([]byte("Exif\x00\x00"), tiff...)
	size := len(payload) + 2
	out := []byte{0xff, 0xd8, 0xff, 0xe1, byte(size >> 8), byte(size)}
	out = append(out, payload...)
	return append(out, body.Bytes()[2:]...)
}

func TestDecode(t *testing.T) {
	img, err := Decode(encodePNG(t, gradient(30, 10)), true)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 30 || img.Height != 10 || img.Orientation != orient.Normal {
		t.Errorf("got %dx%d %s", img.Width, img.Height, img.Orientation)
	}

	data := jpegWithOrientation(t, 30, 10, 6)
	rotated, err := Decode(data, true)
	if err != nil {
		t.Fatal(err)
	}
	if rotated.Width != 10 || rotated.Height != 30 || rotated.Orientation != orient.Rotate90CW {
		t.Errorf("with rotation: got %dx%d %s", rotated.Width, rotated.Height, rotated.Orientation)
	}
	asStored, err := Decode(data, false)
	if err != nil {
		t.Fatal(err)
	}
	if asStored.Width != 30 || asStored.Height != 10 || asStored.Orientation != orient.Normal {
		t.Errorf("without rotation: got %dx%d %s", asStored.Width, asStored.Height, asStored.Orientation)
	}

	for _, bad := range [][]byte{nil, []byte("hello world"), []byte("\x89PNG\r\n\x1a\ntruncated")} {
		if _, err := Decode(bad, true); !errors.Is(err, ErrDecodeFailure) {
			t.Errorf("Decode(%q): got %v, want ErrDecodeFailure", bad, err)
		}
	}
}

func TestPreview(t *testing.T) {
	p := Preview(gradient(400, 200), 100)
	if p.Bounds().Dx() != 100 || p.Bounds().Dy() != 50 {
		t.Errorf("preview %v, want 100x50", p.Bounds())
	}
	same := Preview(gradient(40, 20), 100)
	if same.Bounds().Dx() != 40 || same.Bounds().Dy() != 20 {
		t.Errorf("small image resized to %v", same.Bounds())
	}
}
