// Package codec converts target-sized images into the model's input tensor and
// raw model output back into labeled scores.
//
// The input layout is NHWC: batch-major, then row-major, then channel-minor
// (R, G, B). Pixel intensities are normalized with the codec's Normalization,
// fixed at construction and never inferred from the image.
package codec

import (
	"fmt"
	"image"

	"github.com/Brownie44l1/chillbot/internal/model"
)

// Model input contract.
const (
	ImageSize = 224
	Channels  = 3
	BatchSize = 1
)

// ByteOrder is the byte order of InputTensor.Bytes.
var ByteOrder = model.ByteOrder

// Normalization maps an 8-bit channel value onto the range the model was trained on.
type Normalization int

const (
	// UnitRange maps 0..255 onto [0,1].
	UnitRange Normalization = iota
	// SignedRange maps 0..255 onto [-1,1].
	SignedRange
)

func (n Normalization) String() string {
	switch n {
	case UnitRange:
		return "unit"
	case SignedRange:
		return "signed"
	default:
		return "unknown"
	}
}

// ParseNormalization accepts "unit" or "signed".
func ParseNormalization(s string) (Normalization, error) {
	switch s {
	case "", "unit":
		return UnitRange, nil
	case "signed":
		return SignedRange, nil
	default:
		return 0, fmt.Errorf("unknown normalization %q", s)
	}
}

func (n Normalization) apply(v uint8) float32 {
	if n == SignedRange {
		return (float32(v) - 127.5) / 127.5
	}
	return float32(v) / 255.0
}

// InputTensor is the encoded NHWC input consumed by the executor.
type InputTensor = model.InputTensor

// Codec is the tensor encoder/decoder for one model.
type Codec struct {
	Norm Normalization
}

// New returns a Codec using the given normalization.
func New(norm Normalization) *Codec {
	return &Codec{Norm: norm}
}

// Encode writes img into a {1, height, width, 3} tensor. img must already be
// exactly width×height; anything else is a programming error reported as
// model.ErrShapeMismatch.
func (c *Codec) Encode(img image.Image, width, height int) (InputTensor, error) {
	if img == nil {
		return InputTensor{}, fmt.Errorf("%w: nil image", model.ErrShapeMismatch)
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return InputTensor{}, fmt.Errorf("%w: got %dx%d, want %dx%d",
			model.ErrShapeMismatch, b.Dx(), b.Dy(), width, height)
	}

	data := make([]float32, BatchSize*width*height*Channels)
	i := 0
	put := func(r, g, bl uint8) {
		data[i] = c.Norm.apply(r)
		data[i+1] = c.Norm.apply(g)
		data[i+2] = c.Norm.apply(bl)
		i += Channels
	}

	switch src := img.(type) {
	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := src.PixOffset(b.Min.X, y)
			row := src.Pix[off : off+4*width]
			for x := 0; x < width; x++ {
				put(row[4*x], row[4*x+1], row[4*x+2])
			}
		}
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := src.PixOffset(b.Min.X, y)
			row := src.Pix[off : off+4*width]
			for x := 0; x < width; x++ {
				put(row[4*x], row[4*x+1], row[4*x+2])
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				put(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			}
		}
	}

	return model.NewInputTensor([4]int64{BatchSize, int64(height), int64(width), Channels}, data), nil
}

// Decode zips one row of scores with the vocabulary, positionally. The
// result keeps vocabulary order.
func (c *Codec) Decode(scores []float32, vocab model.Vocabulary) ([]model.Recognition, error) {
	if len(scores) != len(vocab) {
		return nil, fmt.Errorf("%w: %d scores for %d labels", model.ErrLengthMismatch, len(scores), len(vocab))
	}
	out := make([]model.Recognition, len(scores))
	for i, s := range scores {
		out[i] = model.Recognition{Index: i, Label: vocab[i], Confidence: s}
	}
	return out, nil
}
