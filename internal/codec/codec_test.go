package codec

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/chillbot/internal/model"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestEncode_RejectsWrongSize(t *testing.T) {
	c := New(UnitRange)
	_, err := c.Encode(solid(640, 480, color.RGBA{A: 255}), ImageSize, ImageSize)
	require.ErrorIs(t, err, model.ErrShapeMismatch)

	_, err = c.Encode(nil, ImageSize, ImageSize)
	require.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestEncode_ShapeAndLayout(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{G: 255, A: 255})
	img.SetRGBA(0, 1, color.RGBA{B: 255, A: 255})
	img.SetRGBA(1, 1, color.RGBA{R: 51, G: 102, B: 204, A: 255})

	tensor, err := New(UnitRange).Encode(img, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, [4]int64{1, 2, 2, 3}, tensor.Shape())
	assert.Equal(t, []float32{
		1, 0, 0, 0, 1, 0,
		0, 0, 1, 0.2, 0.4, 0.8,
	}, tensor.Values())
}

func TestEncode_SignedRange(t *testing.T) {
	tensor, err := New(SignedRange).Encode(solid(1, 1, color.RGBA{R: 0, G: 255, B: 0, A: 255}), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, 1, -1}, tensor.Values())
}

func TestEncode_GenericImageMatchesFastPath(t *testing.T) {
	rgba := solid(3, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	gray := image.NewGray(image.Rect(0, 0, 3, 2))
	for i := range gray.Pix {
		gray.Pix[i] = 128
	}

	c := New(UnitRange)
	a, err := c.Encode(rgba, 3, 2)
	require.NoError(t, err)
	b, err := c.Encode(gray, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, a.Len(), b.Len())
	assert.InDelta(t, 128.0/255.0, b.Values()[0], 1e-6)
}

func TestEncode_OffsetBounds(t *testing.T) {
	big := solid(10, 10, color.RGBA{R: 255, A: 255})
	sub := big.SubImage(image.Rect(4, 4, 6, 6))
	tensor, err := New(UnitRange).Encode(sub, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 12, tensor.Len())
	assert.Equal(t, float32(1), tensor.Values()[0])
}

func TestInputTensor_BytesLittleEndian(t *testing.T) {
	tensor, err := New(UnitRange).Encode(solid(1, 1, color.RGBA{R: 255, A: 255}), 1, 1)
	require.NoError(t, err)
	buf := tensor.Bytes()
	require.Len(t, buf, 12)
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])))
	assert.Equal(t, float32(0), math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])))
}

func TestInputTensor_ValuesIsCopy(t *testing.T) {
	tensor, err := New(UnitRange).Encode(solid(1, 1, color.RGBA{R: 255, A: 255}), 1, 1)
	require.NoError(t, err)
	v := tensor.Values()
	v[0] = 42
	assert.Equal(t, float32(1), tensor.Values()[0])
}

func TestDecode(t *testing.T) {
	vocab := model.Vocabulary{"cocacola", "perrier", "other"}
	recs, err := New(UnitRange).Decode([]float32{0.1, 0.9, 0.3}, vocab)
	require.NoError(t, err)
	assert.Equal(t, []model.Recognition{
		{Index: 0, Label: "cocacola", Confidence: 0.1},
		{Index: 1, Label: "perrier", Confidence: 0.9},
		{Index: 2, Label: "other", Confidence: 0.3},
	}, recs)
}

func TestDecode_LengthMismatch(t *testing.T) {
	_, err := New(UnitRange).Decode([]float32{0.1}, model.Vocabulary{"a", "b"})
	require.ErrorIs(t, err, model.ErrLengthMismatch)
}

// fixtureExecutor averages each channel into one score per label.
func fixtureExecutor(labels int) func(InputTensor) []float32 {
	return func(t InputTensor) []float32 {
		in := t.Values()
		out := make([]float32, labels)
		for i, v := range in {
			out[i%labels] += v
		}
		for i := range out {
			out[i] /= float32(len(in) / labels)
		}
		return out
	}
}

func TestEncodeRunDecode_ScoresMatchVocabulary(t *testing.T) {
	vocab := model.Vocabulary{"cocacola", "perrier", "other"}
	run := fixtureExecutor(len(vocab))
	c := New(UnitRange)

	for _, px := range []color.RGBA{{A: 255}, {R: 255, G: 128, B: 3, A: 255}, {R: 255, G: 255, B: 255, A: 255}} {
		tensor, err := c.Encode(solid(ImageSize, ImageSize, px), ImageSize, ImageSize)
		require.NoError(t, err)
		assert.Equal(t, BatchSize*ImageSize*ImageSize*Channels, tensor.Len())

		recs, err := c.Decode(run(tensor), vocab)
		require.NoError(t, err)
		assert.Len(t, recs, len(vocab))
	}
}

func TestParseNormalization(t *testing.T) {
	n, err := ParseNormalization("signed")
	require.NoError(t, err)
	assert.Equal(t, SignedRange, n)
	n, err = ParseNormalization("")
	require.NoError(t, err)
	assert.Equal(t, UnitRange, n)
	_, err = ParseNormalization("imagenet")
	assert.Error(t, err)
}
