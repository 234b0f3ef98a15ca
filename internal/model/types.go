package model

// Metadata describes the tensor contract of the loaded model.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// InputSize returns the number of values the model expects per inference.
func (m Metadata) InputSize() int {
	if len(m.InputShape) == 0 {
		return 0
	}
	n := 1
	for _, d := range m.InputShape {
		n *= int(d)
	}
	return n
}

// Vocabulary is the ordered label list, index-aligned with the model output.
type Vocabulary []string

// Recognition is one labeled confidence score.
type Recognition struct {
	Index      int     `json:"-"`
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}
