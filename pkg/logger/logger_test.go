package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)
			So(Get(), ShouldNotBeNil)
			So(Sync(), ShouldBeNil)
		})

		Convey("When initialized with an unknown format", func() {
			err := Init(WithFormat("xml"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestLoggerOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat("json"), WithOutput(&buf)), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging with fields through a named logger", func() {
			Named("store").Info(ctx, "record folded",
				String("category", "Pop"),
				Int("count", 3),
				Bool("retained", false),
				Duration("took", 1500*time.Millisecond),
				Error(errors.New("boom")),
			)

			var entry map[string]any
			err := json.Unmarshal(buf.Bytes(), &entry)

			Convey("Then the entry carries every field", func() {
				So(err, ShouldBeNil)
				So(entry["msg"], ShouldEqual, "record folded")
				So(entry["component"], ShouldEqual, "store")
				So(entry["category"], ShouldEqual, "Pop")
				So(entry["count"], ShouldEqual, 3.0)
				So(entry["retained"], ShouldEqual, false)
				So(entry["took"], ShouldEqual, "1.5s")
				So(entry["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the level is raised to warn", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			Get().Warn(ctx, "shown")

			Convey("Then info entries are dropped", func() {
				out := buf.String()
				So(strings.Contains(out, "hidden"), ShouldBeFalse)
				So(strings.Contains(out, "shown"), ShouldBeTrue)
			})
		})

		Convey("When the level string is unknown", func() {
			So(SetLevelString("verbose"), ShouldNotBeNil)
		})

		Reset(func() {
			_ = SetLevelString("info")
		})
	})
}
