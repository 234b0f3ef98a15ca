package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
)

// DirSource waits for the next image file written into a directory, such as
// the output folder of an external camera snapshot tool.
type DirSource struct {
	dir     string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	pending pendingSlot
	settle  time.Duration
	done    chan struct{}
}

// NewDirSource starts watching dir.
func NewDirSource(dir string, logger *slog.Logger) (*DirSource, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	s := &DirSource{
		dir:     dir,
		watcher: w,
		logger:  logger,
		settle:  50 * time.Millisecond,
		done:    make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

func (s *DirSource) RequestImage(ctx context.Context, onReady ReadyFunc) error {
	return s.pending.set(ctx, onReady)
}

func (s *DirSource) loop() {
	defer close(s.done)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !IsImageFile(ev.Name) || !s.pending.active() {
				continue
			}
			s.deliver(ev.Name)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("capture dir watch error", "dir", s.dir, "error", err)
		}
	}
}

// deliver decodes path and hands it to the waiting request. A file that does
// not decode yet is assumed to be still in flight; the request stays open for
// the next write event.
func (s *DirSource) deliver(path string) {
	time.Sleep(s.settle)
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		s.logger.Debug("capture file not ready", "path", path, "error", err)
		return
	}
	r := s.pending.take()
	if r == nil {
		return
	}
	s.logger.Debug("capture file delivered", "path", path)
	go r.onReady(img, nil)
}

func (s *DirSource) Close() error {
	s.pending.close()
	err := s.watcher.Close()
	<-s.done
	return err
}
