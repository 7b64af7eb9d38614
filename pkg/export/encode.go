package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

var jpegBackground = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// Encode serialises img in format f. JPEG has no alpha channel, so the image
// is flattened onto white first. quality only applies to JPEG; values <= 0
// select DefaultQuality.
func Encode(img image.Image, f Format, quality int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: no image", ErrEncodeFailure)
	}
	format, err := f.imaging()
	if err != nil {
		return nil, err
	}

	var opts []imaging.EncodeOption
	if f == JPEG {
		if quality <= 0 {
			quality = DefaultQuality
		}
		img = flatten(img, jpegBackground)
		opts = append(opts, imaging.JPEGQuality(min(quality, 100)))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}
	return buf.Bytes(), nil
}

func flatten(img image.Image, bg color.NRGBA) image.Image {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, &image.Uniform{C: bg}, image.Point{}, draw.Src)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Over)
	return rgba
}

// WriteFile writes data to path, creating parent directories as needed.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
