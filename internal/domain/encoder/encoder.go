package encoder

import (
	"math"
	"strconv"
	"time"

	"github.com/okian/vinyl/internal/domain/model"
)

// VectorLen is the length of every feature vector: the audio scalars, then
// the category one-hot, then the period one-hot.
var VectorLen = len(model.AudioFields) + len(model.Categories) + len(model.Periods)

// Encoded is the normalized form of a record.
type Encoded struct {
	// Vector is the fixed-schema feature vector of length VectorLen.
	Vector []float64
	// Revenue and SongCount are normalized with the same table as the
	// audio scalars; they sit outside the feature vector.
	Revenue   float64
	SongCount float64
	// Present records which numeric fields were supplied.
	Present  model.FieldSet
	Metadata model.Metadata
}

// Category returns the category one-hot slice of the vector.
func (e Encoded) Category() []float64 {
	start := len(model.AudioFields)
	return e.Vector[start : start+len(model.Categories)]
}

// Period returns the period one-hot slice of the vector.
func (e Encoded) Period() []float64 {
	start := len(model.AudioFields) + len(model.Categories)
	return e.Vector[start : start+len(model.Periods)]
}

// Normalized returns the normalized value of a tracked field.
func (e Encoded) Normalized(f model.Field) float64 {
	switch f {
	case model.FieldRevenue:
		return e.Revenue
	case model.FieldSongCount:
		return e.SongCount
	}
	for i, af := range model.AudioFields {
		if af == f {
			return e.Vector[i]
		}
	}
	return 0
}

// Option applies a configuration option to the Encoder.
type Option func(*Encoder)

// WithClock sets the time source used to stamp metadata.
func WithClock(now func() time.Time) Option {
	return func(e *Encoder) {
		if now != nil {
			e.now = now
		}
	}
}

// Encoder converts records to and from their normalized form.
type Encoder struct {
	now func() time.Time
}

// New creates an Encoder.
func New(opts ...Option) *Encoder {
	e := &Encoder{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode normalizes rec in schema order. Absent numeric fields become 0.0.
func (e *Encoder) Encode(rec model.RawRecord) Encoded {
	out := Encoded{
		Vector:  make([]float64, 0, VectorLen),
		Present: rec.Present(),
		Metadata: model.Metadata{
			ArtistID:   rec.ArtistID,
			Category:   rec.Category,
			Period:     rec.Period,
			UploadedAt: e.now().UTC(),
		},
	}
	for _, f := range model.AudioFields {
		out.Vector = append(out.Vector, normalizedOrZero(&rec, f))
	}
	out.Vector = append(out.Vector, EncodeCategory(rec.Category)...)
	out.Vector = append(out.Vector, EncodePeriod(rec.Period)...)
	out.Revenue = normalizedOrZero(&rec, model.FieldRevenue)
	out.SongCount = normalizedOrZero(&rec, model.FieldSongCount)
	return out
}

func normalizedOrZero(rec *model.RawRecord, f model.Field) float64 {
	v, ok := rec.Value(f)
	if !ok {
		return 0
	}
	return Normalize(v, f)
}

// Decode rebuilds a record from enc. Labels come from the one-hot argmax and
// the artist id from the metadata. Fields absent at encode time stay nil.
func (e *Encoder) Decode(enc Encoded) model.RawRecord {
	rec := model.RawRecord{
		ArtistID: enc.Metadata.ArtistID,
		Category: string(DecodeCategory(enc.Category())),
		Period:   string(DecodePeriod(enc.Period())),
	}
	for _, f := range model.TrackedFields {
		if enc.Present.Has(f) {
			rec.Set(f, Denormalize(enc.Normalized(f), f))
		}
	}
	return rec
}

// Batch groups encoded values by field across many records.
type Batch struct {
	Fields     map[model.Field][]float64
	Categories [][]float64
	Periods    [][]float64
}

// BatchEncode encodes recs and regroups the values per field. Metadata is
// dropped.
func (e *Encoder) BatchEncode(recs []model.RawRecord) Batch {
	b := Batch{
		Fields:     make(map[model.Field][]float64, len(model.TrackedFields)),
		Categories: make([][]float64, 0, len(recs)),
		Periods:    make([][]float64, 0, len(recs)),
	}
	for _, f := range model.TrackedFields {
		b.Fields[f] = make([]float64, 0, len(recs))
	}
	for _, rec := range recs {
		enc := e.Encode(rec)
		for _, f := range model.TrackedFields {
			b.Fields[f] = append(b.Fields[f], enc.Normalized(f))
		}
		b.Categories = append(b.Categories, enc.Category())
		b.Periods = append(b.Periods, enc.Period())
	}
	return b
}

// FeatureVector returns the model input vector of rec.
func (e *Encoder) FeatureVector(rec model.RawRecord) []float64 {
	return e.Encode(rec).Vector
}

// Validate checks rec against the declared ranges and label sets. Revenue
// is required; other numeric fields are checked only when supplied.
func Validate(rec model.RawRecord) error {
	if rec.ArtistID == "" {
		return &model.ValidationError{Field: "artist_id", Reason: "must not be empty"}
	}
	if model.CategoryIndex(rec.Category) < 0 {
		return &model.ValidationError{Field: "category", Reason: "unknown label " + quote(rec.Category)}
	}
	if model.PeriodIndex(rec.Period) < 0 {
		return &model.ValidationError{Field: "period", Reason: "unknown label " + quote(rec.Period)}
	}
	if rec.Revenue == nil {
		return &model.ValidationError{Field: string(model.FieldRevenue), Reason: "is required"}
	}
	for _, f := range model.TrackedFields {
		v, ok := rec.Value(f)
		if !ok {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &model.ValidationError{Field: string(f), Reason: "must be a finite number"}
		}
		r := ranges[f]
		if v < r.Min || v > r.Max {
			return &model.ValidationError{Field: string(f), Reason: outOfRange(r)}
		}
	}
	return nil
}

func quote(s string) string { return strconv.Quote(s) }

func outOfRange(r Range) string {
	return "must be within [" + strconv.FormatFloat(r.Min, 'f', -1, 64) + ", " + strconv.FormatFloat(r.Max, 'f', -1, 64) + "]"
}
