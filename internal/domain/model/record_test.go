package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	model "github.com/okian/vinyl/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestRawRecord(t *testing.T) {
	convey.Convey("Given a RawRecord", t, func() {
		convey.Convey("When only some fields are supplied", func() {
			rec := model.RawRecord{
				ArtistID: "artist-1",
				Category: "Pop",
				Period:   "2024-Q1",
				Revenue:  model.Float(8_500_000),
				Tempo:    model.Float(120),
			}

			convey.Convey("Then Value reports presence per field", func() {
				v, ok := rec.Value(model.FieldRevenue)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(v, convey.ShouldEqual, 8_500_000)

				_, ok = rec.Value(model.FieldEnergy)
				convey.So(ok, convey.ShouldBeFalse)
				_, ok = rec.Value(model.FieldSongCount)
				convey.So(ok, convey.ShouldBeFalse)
			})

			convey.Convey("Then Present lists exactly the supplied fields", func() {
				present := rec.Present()
				convey.So(present.Fields(), convey.ShouldResemble, []model.Field{model.FieldRevenue, model.FieldTempo})
			})
		})

		convey.Convey("When setting a song count", func() {
			var rec model.RawRecord
			rec.Set(model.FieldSongCount, 11.6)

			convey.Convey("Then it is rounded to an integer", func() {
				convey.So(*rec.SongCount, convey.ShouldEqual, 12)
			})
		})

		convey.Convey("When decoding legacy JSON keys", func() {
			payload := `{"artist_id":"sample_001","genre":"Rock","period":"2023-Q4","revenue":1000,"duration_ms":210000}`
			var rec model.RawRecord
			err := json.Unmarshal([]byte(payload), &rec)

			convey.Convey("Then genre and duration_ms map onto the canonical fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.Category, convey.ShouldEqual, "Rock")
				convey.So(*rec.Duration, convey.ShouldEqual, 210000)
				convey.So(*rec.Revenue, convey.ShouldEqual, 1000)
			})
		})

		convey.Convey("When both canonical and legacy keys are present", func() {
			payload := `{"artist_id":"a","category":"Jazz","genre":"Rock","duration":200000,"duration_ms":1}`
			var rec model.RawRecord
			err := json.Unmarshal([]byte(payload), &rec)

			convey.Convey("Then the canonical keys win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.Category, convey.ShouldEqual, "Jazz")
				convey.So(*rec.Duration, convey.ShouldEqual, 200000)
			})
		})
	})
}

func TestLabels(t *testing.T) {
	convey.Convey("Given the label enumerations", t, func() {
		convey.So(len(model.Categories), convey.ShouldEqual, 8)
		convey.So(len(model.Periods), convey.ShouldEqual, 8)

		convey.Convey("Then indices follow the canonical order", func() {
			convey.So(model.CategoryIndex("Pop"), convey.ShouldEqual, 0)
			convey.So(model.CategoryIndex("Classical"), convey.ShouldEqual, 7)
			convey.So(model.PeriodIndex("2024-Q1"), convey.ShouldEqual, 0)
			convey.So(model.PeriodIndex("2023-Q1"), convey.ShouldEqual, 4)
		})

		convey.Convey("Then unknown labels are rejected", func() {
			_, ok := model.ParseCategory("Polka")
			convey.So(ok, convey.ShouldBeFalse)
			_, ok = model.ParsePeriod("2022-Q1")
			convey.So(ok, convey.ShouldBeFalse)
			convey.So(model.CategoryIndex("pop"), convey.ShouldEqual, -1)
		})
	})
}

func TestValidationError(t *testing.T) {
	convey.Convey("Given a ValidationError", t, func() {
		var err error = &model.ValidationError{Field: "tempo", Reason: "out of range"}

		convey.Convey("Then it matches ErrValidation", func() {
			convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldEqual, "invalid tempo: out of range")
		})
	})
}
