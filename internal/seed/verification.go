package seed

import (
	"math"
	"sort"

	"github.com/okian/vinyl/internal/domain/model"
	"github.com/okian/vinyl/internal/domain/types"
)

// Mismatch is one category whose reported average is off.
type Mismatch struct {
	Category string
	Expected float64
	Actual   float64
	Missing  bool
}

// PlainAverages computes the average revenue per category without any
// encryption. Records without revenue count as zero, as the service does.
func PlainAverages(recs []model.RawRecord) map[model.Category]float64 {
	sums := make(map[model.Category]float64)
	counts := make(map[model.Category]int)
	for i := range recs {
		cat := model.Category(recs[i].Category)
		v, _ := recs[i].Value(model.FieldRevenue)
		sums[cat] += v
		counts[cat]++
	}
	out := make(map[model.Category]float64, len(sums))
	for cat, sum := range sums {
		out[cat] = sum / float64(counts[cat])
	}
	return out
}

// Verify compares the reported averages against expected within a relative
// tolerance. Absolute differences under one unit always pass.
func Verify(expected map[model.Category]float64, reported []types.CategoryAverage, tolerance float64) []Mismatch {
	actual := make(map[string]float64, len(reported))
	for _, r := range reported {
		actual[r.Category] = r.Average
	}

	var out []Mismatch
	for cat, want := range expected {
		got, ok := actual[string(cat)]
		if !ok {
			out = append(out, Mismatch{Category: string(cat), Expected: want, Missing: true})
			continue
		}
		diff := math.Abs(got - want)
		if diff > 1 && diff > tolerance*math.Abs(want) {
			out = append(out, Mismatch{Category: string(cat), Expected: want, Actual: got})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return model.CategoryIndex(out[i].Category) < model.CategoryIndex(out[j].Category)
	})
	return out
}
