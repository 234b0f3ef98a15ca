package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	img image.Image
	err error
}

func collector() (ReadyFunc, chan result) {
	ch := make(chan result, 4)
	return func(img image.Image, err error) { ch <- result{img, err} }, ch
}

func wait(t *testing.T, ch chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for capture")
		return result{}
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("/tmp/a.JPG"))
	assert.True(t, IsImageFile("b.webp"))
	assert.False(t, IsImageFile("labels.txt"))
}

func TestFileSource_CyclesPaths(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")
	writePNG(t, a, 4, 3)
	writePNG(t, b, 8, 6)

	src, err := NewFileSource(a, b)
	require.NoError(t, err)
	onReady, ch := collector()

	var widths []int
	for i := 0; i < 3; i++ {
		require.NoError(t, src.RequestImage(context.Background(), onReady))
		r := wait(t, ch)
		require.NoError(t, r.err)
		widths = append(widths, r.img.Bounds().Dx())
	}
	assert.Equal(t, []int{4, 8, 4}, widths)

	require.NoError(t, src.Close())
	assert.ErrorIs(t, src.RequestImage(context.Background(), onReady), ErrClosed)
}

func TestFileSource_MissingFile(t *testing.T) {
	src, err := NewFileSource(filepath.Join(t.TempDir(), "missing.png"))
	require.NoError(t, err)
	onReady, ch := collector()
	require.NoError(t, src.RequestImage(context.Background(), onReady))
	assert.Error(t, wait(t, ch).err)

	_, err = NewFileSource()
	assert.Error(t, err)
}

func TestPushSource_Deliver(t *testing.T) {
	src := NewPushSource()
	assert.ErrorIs(t, src.Deliver(image.NewRGBA(image.Rect(0, 0, 1, 1))), ErrNoPendingRequest)

	onReady, ch := collector()
	require.NoError(t, src.RequestImage(context.Background(), onReady))
	assert.True(t, src.Pending())
	assert.ErrorIs(t, src.RequestImage(context.Background(), onReady), ErrRequestPending)

	require.NoError(t, src.Deliver(image.NewRGBA(image.Rect(0, 0, 2, 2))))
	r := wait(t, ch)
	require.NoError(t, r.err)
	assert.Equal(t, 2, r.img.Bounds().Dx())
	assert.False(t, src.Pending())
}

func TestPushSource_CancelledRequestIsDropped(t *testing.T) {
	src := NewPushSource()
	ctx, cancel := context.WithCancel(context.Background())
	onReady, ch := collector()
	require.NoError(t, src.RequestImage(ctx, onReady))
	cancel()

	require.Eventually(t, func() bool { return !src.Pending() }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, src.Deliver(image.NewRGBA(image.Rect(0, 0, 1, 1))), ErrNoPendingRequest)
	assert.Empty(t, ch)

	// a new request can be opened after cancellation
	require.NoError(t, src.RequestImage(context.Background(), onReady))
}

func TestPushSource_CloseFailsPending(t *testing.T) {
	src := NewPushSource()
	onReady, ch := collector()
	require.NoError(t, src.RequestImage(context.Background(), onReady))
	require.NoError(t, src.Close())
	assert.ErrorIs(t, wait(t, ch).err, ErrClosed)
	assert.ErrorIs(t, src.RequestImage(context.Background(), onReady), ErrClosed)
}

func TestDirSource_DeliversNewFile(t *testing.T) {
	dir := t.TempDir()
	src, err := NewDirSource(dir, nil)
	require.NoError(t, err)
	defer src.Close()

	// files written before the request are not delivered
	writePNG(t, filepath.Join(dir, "early.png"), 3, 3)
	time.Sleep(100 * time.Millisecond)

	onReady, ch := collector()
	require.NoError(t, src.RequestImage(context.Background(), onReady))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	writePNG(t, filepath.Join(dir, "snap.png"), 5, 4)

	r := wait(t, ch)
	require.NoError(t, r.err)
	assert.Equal(t, 5, r.img.Bounds().Dx())
	assert.Equal(t, 4, r.img.Bounds().Dy())
}

func TestDirSource_MissingDir(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestScreenSource(t *testing.T) {
	src := NewScreenSource(DefaultWidth, DefaultHeight)
	src.grab = func(r image.Rectangle) (*image.RGBA, error) { return image.NewRGBA(r), nil }

	onReady, ch := collector()
	require.NoError(t, src.RequestImage(context.Background(), onReady))
	r := wait(t, ch)
	require.NoError(t, r.err)
	assert.Equal(t, DefaultWidth, r.img.Bounds().Dx())

	src.grab = func(image.Rectangle) (*image.RGBA, error) { return nil, errors.New("no display") }
	require.NoError(t, src.RequestImage(context.Background(), onReady))
	r = wait(t, ch)
	assert.Nil(t, r.img)
	assert.ErrorContains(t, r.err, "no display")
}
