package encoder

import "github.com/okian/vinyl/internal/domain/model"

// EncodeCategory returns the one-hot vector of label. Unknown labels encode
// to the all-zero vector.
func EncodeCategory(label string) []float64 {
	return oneHot(model.CategoryIndex(label), len(model.Categories))
}

// EncodePeriod returns the one-hot vector of label. Unknown labels encode to
// the all-zero vector.
func EncodePeriod(label string) []float64 {
	return oneHot(model.PeriodIndex(label), len(model.Periods))
}

// DecodeCategory returns the category at the largest component of vec.
// Ties go to the lowest index, so an all-zero vector decodes to the first
// category.
func DecodeCategory(vec []float64) model.Category {
	return model.Categories[argmax(vec, len(model.Categories))]
}

// DecodePeriod returns the period at the largest component of vec, with the
// same tie-break as DecodeCategory.
func DecodePeriod(vec []float64) model.Period {
	return model.Periods[argmax(vec, len(model.Periods))]
}

func oneHot(idx, size int) []float64 {
	v := make([]float64, size)
	if idx >= 0 && idx < size {
		v[idx] = 1
	}
	return v
}

// argmax scans at most size components and keeps the first maximum.
func argmax(vec []float64, size int) int {
	best := 0
	for i := 1; i < len(vec) && i < size; i++ {
		if vec[i] > vec[best] {
			best = i
		}
	}
	return best
}
