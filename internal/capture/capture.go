// Package capture provides the image sources a classification cycle can
// request a photo from. Every source answers a request exactly once, on its
// own goroutine, and honors the request context.
package capture

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"strings"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Source default frame size.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrRequestPending is returned when a source already has an open request.
	ErrRequestPending = errors.New("capture request already pending")
	// ErrNoPendingRequest is returned when an image is pushed with nobody waiting.
	ErrNoPendingRequest = errors.New("no capture request pending")
	// ErrClosed is returned by a closed source.
	ErrClosed = errors.New("capture source closed")
)

// ReadyFunc receives the captured image or the reason there is none.
type ReadyFunc func(img image.Image, err error)

// Source produces one image per request.
type Source interface {
	RequestImage(ctx context.Context, onReady ReadyFunc) error
	Close() error
}

// IsImageFile reports whether path has an extension the registered decoders handle.
func IsImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".webp":
		return true
	}
	return false
}

// pendingSlot holds at most one outstanding request.
type pendingSlot struct {
	mu     sync.Mutex
	req    *request
	closed bool
}

type request struct {
	ctx     context.Context
	onReady ReadyFunc
	stop    func() bool
}

// set registers a request. The request is dropped when ctx ends.
func (p *pendingSlot) set(ctx context.Context, onReady ReadyFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.req != nil && p.req.ctx.Err() == nil {
		return ErrRequestPending
	}
	r := &request{ctx: ctx, onReady: onReady}
	r.stop = context.AfterFunc(ctx, func() {
		p.mu.Lock()
		if p.req == r {
			p.req = nil
		}
		p.mu.Unlock()
	})
	p.req = r
	return nil
}

// take removes and returns the live request, if any.
func (p *pendingSlot) take() *request {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.req
	p.req = nil
	if r == nil || r.ctx.Err() != nil {
		return nil
	}
	r.stop()
	return r
}

func (p *pendingSlot) active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.req != nil && p.req.ctx.Err() == nil
}

func (p *pendingSlot) close() {
	p.mu.Lock()
	r := p.req
	p.req = nil
	p.closed = true
	p.mu.Unlock()
	if r != nil && r.ctx.Err() == nil {
		r.stop()
		go r.onReady(nil, ErrClosed)
	}
}
