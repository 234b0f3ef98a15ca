package capture

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/vova616/screenshot"
)

// ScreenSource captures the top-left width×height region of the primary
// display, or the whole display when the size is zero.
type ScreenSource struct {
	rect   image.Rectangle
	grab   func(image.Rectangle) (*image.RGBA, error)
	closed atomic.Bool
}

func NewScreenSource(width, height int) *ScreenSource {
	return &ScreenSource{rect: image.Rect(0, 0, width, height), grab: grabScreen}
}

func grabScreen(r image.Rectangle) (*image.RGBA, error) {
	if r.Empty() {
		return screenshot.CaptureScreen()
	}
	return screenshot.CaptureRect(r)
}

func (s *ScreenSource) RequestImage(ctx context.Context, onReady ReadyFunc) error {
	if s.closed.Load() {
		return ErrClosed
	}
	go func() {
		img, err := s.grab(s.rect)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			onReady(nil, err)
			return
		}
		onReady(img, nil)
	}()
	return nil
}

func (s *ScreenSource) Close() error {
	s.closed.Store(true)
	return nil
}
