// Package facts narrows ranked recognitions to a small set of boolean facts.
package facts

import (
	"sort"

	"github.com/Brownie44l1/chillbot/internal/model"
)

// DefaultThreshold is the confidence a label must exceed to count as present.
const DefaultThreshold = 0.5

// Interest maps a vocabulary label to the name of the fact it drives.
type Interest struct {
	Label string `yaml:"label" json:"label"`
	Fact  string `yaml:"fact" json:"fact"`
}

// DefaultInterest is the drinks fridge vocabulary.
var DefaultInterest = []Interest{
	{Label: "cocacola", Fact: "hasCoke"},
	{Label: "perrier", Fact: "hasPerrier"},
	{Label: "other", Fact: "hasOther"},
}

// Facts holds one boolean per fact name of the interest set.
type Facts map[string]bool

// Names returns the fact names in sorted order.
func (f Facts) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Extract sets a fact true iff selected holds its label with confidence
// strictly above threshold. Labels outside interest are ignored.
func Extract(selected []model.Recognition, interest []Interest, threshold float32) Facts {
	out := make(Facts, len(interest))
	for _, in := range interest {
		out[in.Fact] = false
	}
	for _, r := range selected {
		if r.Confidence <= threshold {
			continue
		}
		for _, in := range interest {
			if in.Label == r.Label {
				out[in.Fact] = true
			}
		}
	}
	return out
}
