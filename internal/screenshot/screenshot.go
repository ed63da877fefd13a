package screenshot

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/png"

	imagepkg "phone-agent/internal/image"
)

const (
	// MinCaptureBytes is the smallest PNG accepted as a real capture.
	MinCaptureBytes = 2048

	FallbackWidth  = 1080
	FallbackHeight = 2400

	MimeJPEG = "image/jpeg"
)

// ErrTooSmall is returned for captures that are too short to be an image.
var ErrTooSmall = errors.New("capture too small")

// Screenshot is an encoded device screen. Width and Height are the device
// pixel dimensions, which may differ from the encoded image size after
// downscaling.
type Screenshot struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Mime      string `json:"mime"`
	Data      []byte `json:"-"`
	Sensitive bool   `json:"sensitive"`
}

// Base64 returns the payload as standard base64.
func (s *Screenshot) Base64() string {
	return base64.StdEncoding.EncodeToString(s.Data)
}

// DataURI returns the payload as a data: URI suitable for an image part.
func (s *Screenshot) DataURI() string {
	return "data:" + s.Mime + ";base64," + s.Base64()
}

// FromPNG decodes a raw screencap and encodes it within opts. A black frame
// is still returned, flagged Sensitive; backends replace it with Fallback.
func FromPNG(data []byte, opts imagepkg.Options) (*Screenshot, error) {
	if len(data) < MinCaptureBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooSmall, len(data))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode capture: %w", err)
	}
	return FromImage(img, opts)
}

// FromImage encodes an already decoded capture.
func FromImage(img image.Image, opts imagepkg.Options) (*Screenshot, error) {
	enc, err := imagepkg.EncodeToTarget(img, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode capture: %w", err)
	}
	b := img.Bounds()
	return &Screenshot{
		Width:     b.Dx(),
		Height:    b.Dy(),
		Mime:      MimeJPEG,
		Data:      enc.Data,
		Sensitive: imagepkg.IsLikelyBlack(img),
	}, nil
}

// Fallback returns a black placeholder used whenever capture fails.
func Fallback(opts imagepkg.Options) *Screenshot {
	img := image.NewRGBA(image.Rect(0, 0, FallbackWidth, FallbackHeight))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	shot := &Screenshot{
		Width:     FallbackWidth,
		Height:    FallbackHeight,
		Mime:      MimeJPEG,
		Sensitive: true,
	}
	if enc, err := imagepkg.EncodeToTarget(img, opts); err == nil {
		shot.Data = enc.Data
	}
	return shot
}
