package window

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/AreteDriver/EVE-Overview/internal/config"
)

// Scale resamples img by the given factor using Catmull-Rom
// interpolation. The factor is clamped into [0.1, 1.0]; a factor of 1.0
// returns the image unchanged.
func Scale(img image.Image, factor float64) image.Image {
	factor = config.ClampScale(factor)
	if factor == 1.0 {
		return img
	}

	bounds := img.Bounds()
	w := int(math.Round(float64(bounds.Dx()) * factor))
	h := int(math.Round(float64(bounds.Dy()) * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
