// Package encoder maps raw records to fixed-schema normalized vectors and
// back. Everything here is pure; the only state is the fixed tables.
package encoder

import (
	"math"

	"github.com/okian/vinyl/internal/domain/model"
)

// Range is the declared valid interval of a field.
type Range struct {
	Min float64
	Max float64
}

var ranges = map[model.Field]Range{
	model.FieldRevenue:          {Min: 0, Max: 100_000_000},
	model.FieldSongCount:        {Min: 1, Max: 50},
	model.FieldDanceability:     {Min: 0, Max: 1},
	model.FieldEnergy:           {Min: 0, Max: 1},
	model.FieldValence:          {Min: 0, Max: 1},
	model.FieldAcousticness:     {Min: 0, Max: 1},
	model.FieldInstrumentalness: {Min: 0, Max: 1},
	model.FieldLiveness:         {Min: 0, Max: 1},
	model.FieldSpeechiness:      {Min: 0, Max: 1},
	model.FieldTempo:            {Min: 60, Max: 200},
	model.FieldLoudness:         {Min: -60, Max: 0},
	model.FieldDuration:         {Min: 30_000, Max: 600_000},
}

// RangeOf returns the declared range of f.
func RangeOf(f model.Field) (Range, bool) {
	r, ok := ranges[f]
	return r, ok
}

// Normalize clips value to the range of f and maps it linearly onto [0,1].
// Fields without a declared range pass through unchanged.
func Normalize(value float64, f model.Field) float64 {
	r, ok := ranges[f]
	if !ok {
		return value
	}
	clipped := math.Min(math.Max(value, r.Min), r.Max)
	return (clipped - r.Min) / (r.Max - r.Min)
}

// Denormalize is the inverse linear map of Normalize. Clipping is not
// undone: out-of-range inputs come back as the nearest bound.
func Denormalize(normalized float64, f model.Field) float64 {
	r, ok := ranges[f]
	if !ok {
		return normalized
	}
	return normalized*(r.Max-r.Min) + r.Min
}
