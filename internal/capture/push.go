package capture

import (
	"context"
	"errors"
	"image"
)

// PushSource holds a request open until an image is pushed into it, e.g. by
// an HTTP upload.
type PushSource struct {
	pending pendingSlot
}

func NewPushSource() *PushSource { return &PushSource{} }

func (s *PushSource) RequestImage(ctx context.Context, onReady ReadyFunc) error {
	return s.pending.set(ctx, onReady)
}

// Pending reports whether a request is waiting for an image.
func (s *PushSource) Pending() bool { return s.pending.active() }

// Deliver satisfies the waiting request with img.
func (s *PushSource) Deliver(img image.Image) error {
	if img == nil {
		return errors.New("nil image")
	}
	r := s.pending.take()
	if r == nil {
		return ErrNoPendingRequest
	}
	go r.onReady(img, nil)
	return nil
}

func (s *PushSource) Close() error {
	s.pending.close()
	return nil
}
