package orient

import (
	"io"

	"github.com/rwcarlsen/goexif/exif"
)

// ReadOrientation returns the EXIF orientation stored in r. Missing or
// unreadable metadata and out-of-range values all yield Normal.
func ReadOrientation(r io.Reader) Code {
	x, err := exif.Decode(r)
	if err != nil {
		return Normal
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil || tag == nil {
		return Normal
	}
	v, err := tag.Int(0)
	if err != nil {
		return Normal
	}

	c := Code(v)
	if !c.Valid() {
		return Normal
	}
	return c
}
