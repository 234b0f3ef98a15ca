package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
)

// FileSource answers each request with the next file of a fixed list,
// wrapping around at the end. EXIF orientation is applied.
type FileSource struct {
	paths  []string
	mu     sync.Mutex
	next   int
	closed atomic.Bool
}

func NewFileSource(paths ...string) (*FileSource, error) {
	if len(paths) == 0 {
		return nil, errors.New("file source needs at least one path")
	}
	return &FileSource{paths: paths}, nil
}

func (s *FileSource) RequestImage(ctx context.Context, onReady ReadyFunc) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	path := s.paths[s.next]
	s.next = (s.next + 1) % len(s.paths)
	s.mu.Unlock()

	go func() {
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			err = fmt.Errorf("open %s: %w", path, err)
		}
		if ctx.Err() != nil {
			return
		}
		onReady(img, err)
	}()
	return nil
}

func (s *FileSource) Close() error {
	s.closed.Store(true)
	return nil
}
