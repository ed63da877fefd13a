package imagepkg

import (
	"bytes"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"
)

// Options bound the JPEG search.
type Options struct {
	TargetBytes  int
	MinQuality   int
	MaxQuality   int
	MinScale     float64
	ShrinkFactor float64
}

// DefaultOptions targets a 25 KiB payload.
func DefaultOptions() Options {
	return Options{
		TargetBytes:  25 * 1024,
		MinQuality:   25,
		MaxQuality:   85,
		MinScale:     0.35,
		ShrinkFactor: 0.85,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TargetBytes <= 0 {
		o.TargetBytes = d.TargetBytes
	}
	if o.MinQuality <= 0 {
		o.MinQuality = d.MinQuality
	}
	if o.MaxQuality <= 0 || o.MaxQuality > 100 {
		o.MaxQuality = d.MaxQuality
	}
	if o.MinQuality > o.MaxQuality {
		o.MinQuality = o.MaxQuality
	}
	if o.MinScale <= 0 || o.MinScale > 1 {
		o.MinScale = d.MinScale
	}
	if o.ShrinkFactor <= 0 || o.ShrinkFactor >= 1 {
		o.ShrinkFactor = d.ShrinkFactor
	}
	return o
}

// Encoded is the result of EncodeToTarget.
type Encoded struct {
	Data    []byte
	Width   int
	Height  int
	Quality int
	Scale   float64
}

// EncodeToTarget encodes img as JPEG, preferring the highest quality and then
// the largest scale that fit opts.TargetBytes. When nothing fits at the scale
// floor, the lowest-quality encode at the floor is returned.
func EncodeToTarget(img image.Image, opts Options) (Encoded, error) {
	opts = opts.withDefaults()
	b := img.Bounds()
	origW, origH := b.Dx(), b.Dy()

	scale := 1.0
	for {
		scaled := img
		if scale < 1.0 {
			scaled = Resize(img, scaledDim(origW, scale), scaledDim(origH, scale))
		}

		hi, err := encodeJPEG(scaled, opts.MaxQuality)
		if err != nil {
			return Encoded{}, err
		}
		if len(hi) <= opts.TargetBytes {
			return newEncoded(hi, scaled, opts.MaxQuality, scale), nil
		}

		lo, err := encodeJPEG(scaled, opts.MinQuality)
		if err != nil {
			return Encoded{}, err
		}
		if len(lo) <= opts.TargetBytes {
			data, q, err := searchQuality(scaled, opts, lo)
			if err != nil {
				return Encoded{}, err
			}
			return newEncoded(data, scaled, q, scale), nil
		}

		if scale <= opts.MinScale {
			return newEncoded(lo, scaled, opts.MinQuality, scale), nil
		}
		scale = math.Max(scale*opts.ShrinkFactor, opts.MinScale)
	}
}

// searchQuality finds the highest quality in (min, max) whose encode fits.
// best is the known-fitting encode at min quality.
func searchQuality(img image.Image, opts Options, best []byte) ([]byte, int, error) {
	bestQ := opts.MinQuality
	lo, hi := opts.MinQuality+1, opts.MaxQuality-1
	for lo <= hi {
		mid := (lo + hi) / 2
		data, err := encodeJPEG(img, mid)
		if err != nil {
			return nil, 0, err
		}
		if len(data) <= opts.TargetBytes {
			best, bestQ = data, mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best, bestQ, nil
}

func newEncoded(data []byte, img image.Image, q int, scale float64) Encoded {
	b := img.Bounds()
	return Encoded{Data: data, Width: b.Dx(), Height: b.Dy(), Quality: q, Scale: scale}
}

func scaledDim(v int, scale float64) int {
	n := int(math.Round(float64(v) * scale))
	if n < 1 {
		n = 1
	}
	return n
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Resize scales img to w x h with bilinear interpolation.
func Resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
