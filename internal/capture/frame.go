package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"
)

// ErrDecodeFailed means the raw bytes from the device were not a parseable
// image. A single bad frame is a transient condition, never fatal.
var ErrDecodeFailed = errors.New("failed to decode frame data")

// Size is a target resolution for scaling and display.
type Size struct {
	Width  int
	Height int
}

// Key returns the canonical "WxH" form used to index scaled variants.
func (s Size) Key() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Frame is one decoded screenshot. It is immutable once constructed; the
// Scaled map holds pre-computed aspect-fit copies keyed by the requested
// target size ("640x640"), each an owned copy of the pixels.
type Frame struct {
	Image      image.Image
	Width      int
	Height     int
	CapturedAt time.Time
	Scaled     map[string]image.Image
}

// DecodeFrame turns the raw PNG payload from screencap into a Frame.
func DecodeFrame(raw []byte) (*Frame, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecodeFailed)
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	bounds := img.Bounds()
	return &Frame{
		Image:      img,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		CapturedAt: time.Now(),
		Scaled:     make(map[string]image.Image),
	}, nil
}

// Variant returns the pre-scaled copy for the given size, if one exists.
func (f *Frame) Variant(size Size) (image.Image, bool) {
	img, ok := f.Scaled[size.Key()]
	return img, ok
}
