// Package types contains read shapes shared between the service and the
// HTTP layer.
package types

import (
	"sort"

	"github.com/okian/vinyl/internal/domain/model"
)

// CategoryAverage is one row of the ranked category averages.
type CategoryAverage struct {
	Rank     int     `json:"rank"`
	Category string  `json:"category"`
	Average  float64 `json:"average_revenue"`
}

// RankAverages orders averages from highest to lowest. Equal averages keep
// the canonical category order.
func RankAverages(averages map[model.Category]float64) []CategoryAverage {
	out := make([]CategoryAverage, 0, len(averages))
	for cat, avg := range averages {
		out = append(out, CategoryAverage{Category: string(cat), Average: avg})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Average != out[j].Average {
			return out[i].Average > out[j].Average
		}
		return model.CategoryIndex(out[i].Category) < model.CategoryIndex(out[j].Category)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
