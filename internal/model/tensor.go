package model

import (
	"encoding/binary"
	"math"
)

// ByteOrder is the byte order of InputTensor.Bytes. ONNX Runtime reads
// tensor memory in host order, and every platform it ships for is
// little-endian.
var ByteOrder binary.ByteOrder = binary.LittleEndian

// InputTensor is an immutable NHWC float32 buffer.
type InputTensor struct {
	shape [4]int64
	data  []float32
}

// NewInputTensor wraps data, which the tensor owns from then on.
func NewInputTensor(shape [4]int64, data []float32) InputTensor {
	return InputTensor{shape: shape, data: data}
}

// Shape returns {N, H, W, C}.
func (t InputTensor) Shape() [4]int64 { return t.shape }

// Len returns the number of values.
func (t InputTensor) Len() int { return len(t.data) }

// Values returns a copy of the tensor data.
func (t InputTensor) Values() []float32 {
	out := make([]float32, len(t.data))
	copy(out, t.data)
	return out
}

// CopyTo copies the tensor data into dst and returns the number of values copied.
func (t InputTensor) CopyTo(dst []float32) int { return copy(dst, t.data) }

// Bytes renders the tensor as IEEE-754 float32 values in ByteOrder.
func (t InputTensor) Bytes() []byte {
	buf := make([]byte, 4*len(t.data))
	for i, v := range t.data {
		ByteOrder.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// matches reports whether the tensor has exactly the given shape.
func (t InputTensor) matches(shape []int64) bool {
	if len(shape) != len(t.shape) {
		return false
	}
	for i, d := range shape {
		if t.shape[i] != d {
			return false
		}
	}
	return true
}
