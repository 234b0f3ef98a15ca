package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Brownie44l1/chillbot/internal/model"
	"github.com/Brownie44l1/chillbot/internal/selector"
)

func TestExtract_DrinksExample(t *testing.T) {
	recs := []model.Recognition{
		{Index: 0, Label: "cocacola", Confidence: 0.9},
		{Index: 1, Label: "perrier", Confidence: 0.2},
		{Index: 2, Label: "other", Confidence: 0.1},
	}
	selected := selector.SelectBest(recs, 3, 0.5)
	got := Extract(selected, DefaultInterest, DefaultThreshold)
	assert.Equal(t, Facts{"hasCoke": true, "hasPerrier": false, "hasOther": false}, got)
}

func TestExtract_ThresholdIsStrict(t *testing.T) {
	got := Extract([]model.Recognition{{Label: "perrier", Confidence: 0.5}}, DefaultInterest, 0.5)
	assert.False(t, got["hasPerrier"])
}

func TestExtract_EmptyInputAllFalse(t *testing.T) {
	got := Extract(nil, DefaultInterest, DefaultThreshold)
	assert.Equal(t, Facts{"hasCoke": false, "hasPerrier": false, "hasOther": false}, got)
}

func TestExtract_IgnoresLabelsOutsideInterest(t *testing.T) {
	got := Extract([]model.Recognition{{Label: "fanta", Confidence: 0.99}}, DefaultInterest, DefaultThreshold)
	assert.Len(t, got, len(DefaultInterest))
	for _, v := range got {
		assert.False(t, v)
	}
}

func TestExtract_NeverTrueForAbsentLabel(t *testing.T) {
	cases := [][]model.Recognition{
		{{Label: "cocacola", Confidence: 0.7}},
		{{Label: "perrier", Confidence: 0.51}, {Label: "other", Confidence: 0.3}},
		{{Label: "fanta", Confidence: 1}, {Label: "other", Confidence: 0.8}},
	}
	for _, selected := range cases {
		present := map[string]bool{}
		for _, r := range selected {
			if r.Confidence > DefaultThreshold {
				present[r.Label] = true
			}
		}
		got := Extract(selected, DefaultInterest, DefaultThreshold)
		for _, in := range DefaultInterest {
			if got[in.Fact] {
				assert.True(t, present[in.Label], "fact %s true without %s above threshold", in.Fact, in.Label)
			}
		}
	}
}

func TestFacts_Names(t *testing.T) {
	f := Facts{"hasPerrier": false, "hasCoke": true}
	assert.Equal(t, []string{"hasCoke", "hasPerrier"}, f.Names())
}
