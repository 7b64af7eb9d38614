package watermark

import (
	"image"

	"github.com/disintegration/imaging"
)

// Preview returns img scaled down to fit within maxDim x maxDim, keeping the
// aspect ratio. Images that already fit are returned as a copy.
func Preview(img image.Image, maxDim int) *image.NRGBA {
	b := img.Bounds()
	if maxDim <= 0 || (b.Dx() <= maxDim && b.Dy() <= maxDim) {
		return imaging.Clone(img)
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}
