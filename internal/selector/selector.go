// Package selector ranks decoded recognitions and keeps the ones worth reporting.
package selector

import (
	"sort"

	"github.com/Brownie44l1/chillbot/internal/model"
)

// Defaults used by the drinks deployment.
const (
	DefaultMaxResults    = 3
	DefaultMinConfidence = 0.1
)

// SelectBest returns at most maxCount recognitions with confidence >=
// minConfidence, highest first. Equal confidences are ordered by vocabulary
// index, so the output is deterministic and re-selecting it is a no-op. The
// input is not modified. An empty, non-nil slice means nothing qualified.
func SelectBest(recs []model.Recognition, maxCount int, minConfidence float32) []model.Recognition {
	out := make([]model.Recognition, 0, len(recs))
	if maxCount <= 0 {
		return out
	}
	for _, r := range recs {
		if r.Confidence >= minConfidence {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Index < out[j].Index
	})
	if len(out) > maxCount {
		out = out[:maxCount]
	}
	return out
}
