package capture

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// ScaleQuality selects the interpolation used when producing scaled
// variants. Fast favours latency, smooth favours output quality.
type ScaleQuality string

const (
	ScaleFast   ScaleQuality = "fast"
	ScaleSmooth ScaleQuality = "smooth"
)

// interpolation maps a quality setting to a resize kernel.
func (q ScaleQuality) interpolation() resize.InterpolationFunction {
	if q == ScaleSmooth {
		return resize.Lanczos3
	}
	return resize.NearestNeighbor
}

// CommonSizes are the fixed targets every captured frame is pre-scaled to.
// 640x640 is the fixed square display area of the main window.
var CommonSizes = []Size{
	{Width: 300, Height: 533},
	{Width: 450, Height: 800},
	{Width: 600, Height: 1067},
	{Width: 640, Height: 640},
}

// FitWithin computes the largest size that fits inside target while
// preserving the source aspect ratio. Neither dimension exceeds the target.
func FitWithin(srcWidth, srcHeight int, target Size) Size {
	if srcWidth <= 0 || srcHeight <= 0 {
		return Size{}
	}

	scaleW := float64(target.Width) / float64(srcWidth)
	scaleH := float64(target.Height) / float64(srcHeight)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	w := int(float64(srcWidth) * scale)
	h := int(float64(srcHeight) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return Size{Width: w, Height: h}
}

// ScaleToFit produces an aspect-preserving copy of img that fits inside
// target. The result never aliases the source bitmap, even when the fit
// equals the source dimensions.
func ScaleToFit(img image.Image, target Size, quality ScaleQuality) image.Image {
	bounds := img.Bounds()
	fit := FitWithin(bounds.Dx(), bounds.Dy(), target)
	if fit.Width == bounds.Dx() && fit.Height == bounds.Dy() {
		// resize.Resize returns the input unchanged for a same-size
		// target; variants must own their pixels.
		clone := image.NewRGBA(image.Rect(0, 0, fit.Width, fit.Height))
		draw.Draw(clone, clone.Bounds(), img, bounds.Min, draw.Src)
		return clone
	}
	return resize.Resize(uint(fit.Width), uint(fit.Height), img, quality.interpolation())
}

// GenerateScaledVariants pre-computes aspect-fit copies of img for each
// target size, keyed by the requested size's "WxH" string. A duplicate
// target (e.g. display size already in CommonSizes) is only scaled once.
func GenerateScaledVariants(img image.Image, targets []Size, quality ScaleQuality) map[string]image.Image {
	variants := make(map[string]image.Image, len(targets))
	for _, target := range targets {
		key := target.Key()
		if _, done := variants[key]; done {
			continue
		}
		variants[key] = ScaleToFit(img, target, quality)
	}
	return variants
}
