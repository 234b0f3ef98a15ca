package classifier

import (
	"strings"

	"github.com/Brownie44l1/chillbot/internal/model"
)

// FormatResults renders ranked recognitions as "A, B or C". An empty list
// yields MsgEmptyResult.
func FormatResults(recs []model.Recognition) string {
	switch len(recs) {
	case 0:
		return MsgEmptyResult
	case 1:
		return recs[0].Label
	}
	var sb strings.Builder
	last := len(recs) - 1
	for i, r := range recs[:last] {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(r.Label)
	}
	sb.WriteString(" or ")
	sb.WriteString(recs[last].Label)
	return sb.String()
}
