package imagepkg

import (
	"image"
	"math"
)

const (
	blackThumbSize    = 64
	blackChannelLevel = 10
	blackMinBright    = 20
)

// IsLikelyBlack reports whether img is an all-black capture, which Android
// returns for screens protected by FLAG_SECURE. The check runs on a
// thumbnail no larger than 64x64.
func IsLikelyBlack(img image.Image) bool {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return true
	}

	var thumb image.Image = img
	if w > blackThumbSize || h > blackThumbSize {
		s := math.Min(float64(blackThumbSize)/float64(w), float64(blackThumbSize)/float64(h))
		thumb = Resize(img, scaledDim(w, s), scaledDim(h, s))
	}

	tb := thumb.Bounds()
	bright := 0
	for y := tb.Min.Y; y < tb.Max.Y; y++ {
		for x := tb.Min.X; x < tb.Max.X; x++ {
			r, g, bl, _ := thumb.At(x, y).RGBA()
			if r>>8 > blackChannelLevel || g>>8 > blackChannelLevel || bl>>8 > blackChannelLevel {
				bright++
				if bright >= blackMinBright {
					return false
				}
			}
		}
	}
	return true
}
