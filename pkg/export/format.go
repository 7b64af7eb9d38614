// Package export encodes watermarked surfaces and bundles them into archives.
package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
)

var (
	// ErrUnsupportedFormat is returned for formats Encode cannot write.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrEncodeFailure wraps encoder errors.
	ErrEncodeFailure = errors.New("encode failure")
	// ErrEmptyArchive is returned when an archive would hold no entries.
	ErrEmptyArchive = errors.New("empty archive")
)

// Format is an output image format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	GIF  Format = "gif"
	TIFF Format = "tiff"
	BMP  Format = "bmp"
)

// DefaultQuality is used for JPEG when no quality is given.
const DefaultQuality = 95

// ParseFormat accepts a format name or file extension, with or without the
// leading dot.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "gif":
		return GIF, nil
	case "tif", "tiff":
		return TIFF, nil
	case "bmp":
		return BMP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case JPEG:
		return ".jpg"
	case "":
		return ".png"
	}
	return "." + string(f)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case GIF:
		return "image/gif"
	case TIFF:
		return "image/tiff"
	case BMP:
		return "image/bmp"
	default:
		return "image/png"
	}
}

func (f Format) imaging() (imaging.Format, error) {
	switch f {
	case PNG, "":
		return imaging.PNG, nil
	case JPEG:
		return imaging.JPEG, nil
	case GIF:
		return imaging.GIF, nil
	case TIFF:
		return imaging.TIFF, nil
	case BMP:
		return imaging.BMP, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
}
