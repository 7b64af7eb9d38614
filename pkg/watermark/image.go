package watermark

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"tilemark/pkg/orient"
)

// ErrDecodeFailure is returned when source bytes are not a decodable image.
var ErrDecodeFailure = errors.New("decode failure")

// OrientedImage is a decoded source together with its orientation and the
// upright dimensions. It is built once per source and never modified.
type OrientedImage struct {
	Source      image.Image
	Orientation orient.Code
	Width       int
	Height      int
}

// NewOrientedImage pairs src with an orientation code.
func NewOrientedImage(src image.Image, code orient.Code) (*OrientedImage, error) {
	b := src.Bounds()
	w, h, err := orient.CorrectedDimensions(b.Dx(), b.Dy(), code)
	if err != nil {
		return nil, err
	}
	return &OrientedImage{
		Source:      src,
		Orientation: code,
		Width:       w,
		Height:      h,
	}, nil
}

// Decode reads an image file. With applyRotation set the EXIF orientation is
// honoured, otherwise the pixels are used as stored.
func Decode(data []byte, applyRotation bool) (*OrientedImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecodeFailure)
	}
	mt := mimetype.Detect(data)
	if !mt.Is("image/jpeg") && !mt.Is("image/png") && !mt.Is("image/gif") &&
		!mt.Is("image/webp") && !mt.Is("image/bmp") && !mt.Is("image/tiff") {
		return nil, fmt.Errorf("%w: unsupported content type %s", ErrDecodeFailure, mt.String())
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	code := orient.Normal
	if applyRotation {
		code = orient.ReadOrientation(bytes.NewReader(data))
	}
	return NewOrientedImage(img, code)
}
