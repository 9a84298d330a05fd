// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"time"
)

// Field names a numeric attribute of a record.
type Field string

// Numeric fields, named as they appear in submitted records.
const (
	FieldRevenue          Field = "revenue"
	FieldSongCount        Field = "song_count"
	FieldDanceability     Field = "danceability"
	FieldEnergy           Field = "energy"
	FieldValence          Field = "valence"
	FieldTempo            Field = "tempo"
	FieldAcousticness     Field = "acousticness"
	FieldInstrumentalness Field = "instrumentalness"
	FieldLiveness         Field = "liveness"
	FieldSpeechiness      Field = "speechiness"
	FieldLoudness         Field = "loudness"
	FieldDuration         Field = "duration"
)

// AudioFields lists the audio scalars in feature-vector order.
var AudioFields = []Field{
	FieldDanceability,
	FieldEnergy,
	FieldValence,
	FieldTempo,
	FieldAcousticness,
	FieldInstrumentalness,
	FieldLiveness,
	FieldSpeechiness,
	FieldLoudness,
	FieldDuration,
}

// TrackedFields lists every numeric field folded into accumulators. The
// index of a field in this slice is its slot in a contribution ciphertext
// and its bit in a FieldSet.
var TrackedFields = append([]Field{FieldRevenue, FieldSongCount}, AudioFields...)

// FieldIndex returns the slot of f in TrackedFields, or -1.
func FieldIndex(f Field) int {
	for i, t := range TrackedFields {
		if t == f {
			return i
		}
	}
	return -1
}

// FieldSet is a bitset over TrackedFields.
type FieldSet uint16

// Add returns s with f included.
func (s FieldSet) Add(f Field) FieldSet {
	if i := FieldIndex(f); i >= 0 {
		return s | 1<<uint(i)
	}
	return s
}

// Has reports whether f is in s.
func (s FieldSet) Has(f Field) bool {
	i := FieldIndex(f)
	return i >= 0 && s&(1<<uint(i)) != 0
}

// Fields returns the members of s in TrackedFields order.
func (s FieldSet) Fields() []Field {
	out := make([]Field, 0, len(TrackedFields))
	for _, f := range TrackedFields {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// RawRecord is one artist's submission. Numeric fields are optional: a nil
// pointer means the field was not supplied. Absent fields encode as a
// normalized 0.0 and are left out of per-field feature averages.
type RawRecord struct {
	ArtistID string `json:"artist_id" yaml:"artist_id"`
	Category string `json:"category" yaml:"category"`
	Period   string `json:"period" yaml:"period"`

	Revenue   *float64 `json:"revenue,omitempty" yaml:"revenue,omitempty"`
	SongCount *int     `json:"song_count,omitempty" yaml:"song_count,omitempty"`

	Danceability     *float64 `json:"danceability,omitempty" yaml:"danceability,omitempty"`
	Energy           *float64 `json:"energy,omitempty" yaml:"energy,omitempty"`
	Valence          *float64 `json:"valence,omitempty" yaml:"valence,omitempty"`
	Tempo            *float64 `json:"tempo,omitempty" yaml:"tempo,omitempty"`
	Acousticness     *float64 `json:"acousticness,omitempty" yaml:"acousticness,omitempty"`
	Instrumentalness *float64 `json:"instrumentalness,omitempty" yaml:"instrumentalness,omitempty"`
	Liveness         *float64 `json:"liveness,omitempty" yaml:"liveness,omitempty"`
	Speechiness      *float64 `json:"speechiness,omitempty" yaml:"speechiness,omitempty"`
	Loudness         *float64 `json:"loudness,omitempty" yaml:"loudness,omitempty"`
	Duration         *float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// UnmarshalJSON accepts the legacy keys "genre" and "duration_ms" in
// addition to the canonical names.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	type plain RawRecord
	var aux struct {
		plain
		Genre      string   `json:"genre"`
		DurationMS *float64 `json:"duration_ms"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = RawRecord(aux.plain)
	if r.Category == "" {
		r.Category = aux.Genre
	}
	if r.Duration == nil {
		r.Duration = aux.DurationMS
	}
	return nil
}

func (r *RawRecord) slot(f Field) **float64 {
	switch f {
	case FieldRevenue:
		return &r.Revenue
	case FieldDanceability:
		return &r.Danceability
	case FieldEnergy:
		return &r.Energy
	case FieldValence:
		return &r.Valence
	case FieldTempo:
		return &r.Tempo
	case FieldAcousticness:
		return &r.Acousticness
	case FieldInstrumentalness:
		return &r.Instrumentalness
	case FieldLiveness:
		return &r.Liveness
	case FieldSpeechiness:
		return &r.Speechiness
	case FieldLoudness:
		return &r.Loudness
	case FieldDuration:
		return &r.Duration
	}
	return nil
}

// Value returns the value of f and whether it was supplied.
func (r *RawRecord) Value(f Field) (float64, bool) {
	if f == FieldSongCount {
		if r.SongCount == nil {
			return 0, false
		}
		return float64(*r.SongCount), true
	}
	p := r.slot(f)
	if p == nil || *p == nil {
		return 0, false
	}
	return **p, true
}

// Set stores v under f. Song counts are rounded to the nearest integer.
func (r *RawRecord) Set(f Field, v float64) {
	if f == FieldSongCount {
		n := int(v + 0.5)
		if v < 0 {
			n = int(v - 0.5)
		}
		r.SongCount = &n
		return
	}
	if p := r.slot(f); p != nil {
		*p = &v
	}
}

// Present returns the set of supplied numeric fields.
func (r *RawRecord) Present() FieldSet {
	var s FieldSet
	for _, f := range TrackedFields {
		if _, ok := r.Value(f); ok {
			s = s.Add(f)
		}
	}
	return s
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Metadata is the cleartext part of a contribution. It is never encrypted.
type Metadata struct {
	ArtistID   string    `json:"artist_id"`
	Category   string    `json:"category"`
	Period     string    `json:"period"`
	UploadedAt time.Time `json:"uploaded_at"`
}
