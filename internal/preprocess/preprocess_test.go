package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCropSize(t *testing.T) {
	w, h := CropSize(640, 480, 224, 224)
	assert.Equal(t, 480, w)
	assert.Equal(t, 480, h)

	w, h = CropSize(480, 640, 224, 224)
	assert.Equal(t, 480, w)
	assert.Equal(t, 480, h)

	w, h = CropSize(100, 100, 200, 100)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)
}

func TestFit_ProducesTargetSize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 640, 480))
	out := New(224, 224).Fit(src)
	require.NotNil(t, out)
	assert.Equal(t, 224, out.Bounds().Dx())
	assert.Equal(t, 224, out.Bounds().Dy())
}

func TestFit_PassesThroughTargetSized(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 224, 224))
	assert.Same(t, src, New(224, 224).Fit(src).(*image.RGBA))
}

func TestFit_KeepsCenter(t *testing.T) {
	// left and right bands are red, center is blue; cropping keeps the center
	src := image.NewRGBA(image.Rect(0, 0, 300, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 300; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= 100 && x < 200 {
				c = color.RGBA{B: 255, A: 255}
			}
			src.SetRGBA(x, y, c)
		}
	}
	out := New(10, 10).Fit(src)
	r, _, b, _ := out.At(5, 5).RGBA()
	assert.Less(t, r>>8, uint32(16))
	assert.Greater(t, b>>8, uint32(240))
}

func TestFit_Nil(t *testing.T) {
	assert.Nil(t, New(224, 224).Fit(nil))
}
