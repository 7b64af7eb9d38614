// Package orient maps EXIF orientation codes onto affine transforms that draw
// a decoded image upright.
package orient

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// ErrInvalidOrientationCode is returned for codes outside 1..8.
var ErrInvalidOrientationCode = errors.New("invalid orientation code")

// Code is an EXIF orientation value.
type Code int

const (
	Normal         Code = 1
	FlipHorizontal Code = 2
	Rotate180      Code = 3
	FlipVertical   Code = 4
	Transpose      Code = 5
	Rotate90CW     Code = 6
	Transverse     Code = 7
	Rotate90CCW    Code = 8
)

// Valid reports whether c is one of the eight defined codes.
func (c Code) Valid() bool {
	return c >= Normal && c <= Rotate90CCW
}

// SwapsAxes reports whether the corrected frame exchanges width and height.
func (c Code) SwapsAxes() bool {
	return c >= Transpose && c <= Rotate90CCW
}

func (c Code) String() string {
	switch c {
	case Normal:
		return "normal"
	case FlipHorizontal:
		return "flip-horizontal"
	case Rotate180:
		return "rotate-180"
	case FlipVertical:
		return "flip-vertical"
	case Transpose:
		return "transpose"
	case Rotate90CW:
		return "rotate-90-cw"
	case Transverse:
		return "transverse"
	case Rotate90CCW:
		return "rotate-90-ccw"
	default:
		return fmt.Sprintf("orientation(%d)", int(c))
	}
}

// CorrectedDimensions returns the upright size of a rawW x rawH source.
func CorrectedDimensions(rawW, rawH int, c Code) (int, int, error) {
	if !c.Valid() {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidOrientationCode, int(c))
	}
	if c.SwapsAxes() {
		return rawH, rawW, nil
	}
	return rawW, rawH, nil
}

// Matrix returns the transform from the raw source frame into the corrected
// w x h frame. The layout follows f64.Aff3:
//
//	x' = m[0]*x + m[1]*y + m[2]
//	y' = m[3]*x + m[4]*y + m[5]
func Matrix(w, h int, c Code) (f64.Aff3, error) {
	fw, fh := float64(w), float64(h)
	switch c {
	case Normal:
		return f64.Aff3{1, 0, 0, 0, 1, 0}, nil
	case FlipHorizontal:
		return f64.Aff3{-1, 0, fw, 0, 1, 0}, nil
	case Rotate180:
		return f64.Aff3{-1, 0, fw, 0, -1, fh}, nil
	case FlipVertical:
		return f64.Aff3{1, 0, 0, 0, -1, fh}, nil
	case Transpose:
		return f64.Aff3{0, 1, 0, 1, 0, 0}, nil
	case Rotate90CW:
		return f64.Aff3{0, -1, fw, 1, 0, 0}, nil
	case Transverse:
		return f64.Aff3{0, -1, fw, -1, 0, fh}, nil
	case Rotate90CCW:
		return f64.Aff3{0, 1, 0, -1, 0, fh}, nil
	default:
		return f64.Aff3{}, fmt.Errorf("%w: %d", ErrInvalidOrientationCode, int(c))
	}
}

// Apply maps a point of the raw frame through m.
func Apply(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// Draw paints src onto dst so that it appears upright. dst must already be
// sized to the corrected dimensions of src.
func Draw(dst draw.Image, src image.Image, c Code) error {
	sb := src.Bounds()
	w, h, err := CorrectedDimensions(sb.Dx(), sb.Dy(), c)
	if err != nil {
		return err
	}
	db := dst.Bounds()
	if db.Dx() != w || db.Dy() != h {
		return fmt.Errorf("destination is %dx%d, want %dx%d", db.Dx(), db.Dy(), w, h)
	}

	if c == Normal {
		draw.Draw(dst, db, src, sb.Min, draw.Src)
		return nil
	}

	m, err := Matrix(w, h, c)
	if err != nil {
		return err
	}
	// Matrix assumes both frames start at the origin.
	m[2] += float64(db.Min.X) - m[0]*float64(sb.Min.X) - m[1]*float64(sb.Min.Y)
	m[5] += float64(db.Min.Y) - m[3]*float64(sb.Min.X) - m[4]*float64(sb.Min.Y)

	xdraw.NearestNeighbor.Transform(dst, m, src, sb, xdraw.Src, nil)
	return nil
}
