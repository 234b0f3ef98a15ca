// Package preprocess normalizes captured frames to the model's input size.
package preprocess

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// Preprocessor center-crops a frame to the target aspect ratio and scales it
// to exactly Width×Height. No distortion is applied.
type Preprocessor struct {
	Width, Height int
	Interp        resize.InterpolationFunction
}

// New returns a Preprocessor using Lanczos3 resampling.
func New(width, height int) *Preprocessor {
	return &Preprocessor{Width: width, Height: height, Interp: resize.Lanczos3}
}

// Fit returns src unchanged when it already has the target size.
func (p *Preprocessor) Fit(src image.Image) image.Image {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	if b.Dx() == p.Width && b.Dy() == p.Height {
		return src
	}
	cw, ch := CropSize(b.Dx(), b.Dy(), p.Width, p.Height)
	cropped := imaging.CropCenter(src, cw, ch)
	return resize.Resize(uint(p.Width), uint(p.Height), cropped, p.Interp)
}

// CropSize returns the largest w×h window of a srcW×srcH frame that has the
// aspect ratio of dstW×dstH.
func CropSize(srcW, srcH, dstW, dstH int) (int, int) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return srcW, srcH
	}
	// compare srcW/srcH against dstW/dstH without floats
	if srcW*dstH > srcH*dstW {
		w := srcH * dstW / dstH
		if w < 1 {
			w = 1
		}
		return w, srcH
	}
	h := srcW * dstH / dstW
	if h < 1 {
		h = 1
	}
	return srcW, h
}
