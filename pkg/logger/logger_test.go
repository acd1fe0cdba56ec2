package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized for stdout", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with a nil writer", func() {
			err := InitWithWriter(nil)

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerWrites(t *testing.T) {
	Convey("Given a logger writing into a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging with typed fields", func() {
			Named("sync").Info(ctx, "team synced",
				String("team", "OT"),
				Int("rows", 6),
				Bool("skipped", false),
				Error(errors.New("boom")),
			)
			out := buf.String()

			Convey("Then the record carries every field and the caller", func() {
				So(out, ShouldContainSubstring, "team synced")
				So(out, ShouldContainSubstring, "sync.team=OT")
				So(out, ShouldContainSubstring, "sync.rows=6")
				So(out, ShouldContainSubstring, "sync.skipped=false")
				So(out, ShouldContainSubstring, "boom")
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When debug is disabled", func() {
			So(SetLevelString("info"), ShouldBeNil)
			Get().Debug(ctx, "hidden")

			Convey("Then nothing is written", func() {
				So(buf.String(), ShouldNotContainSubstring, "hidden")
			})
		})

		Convey("When debug is enabled", func() {
			So(SetLevelString("DEBUG"), ShouldBeNil)
			Get().Debug(ctx, "visible")
			So(SetLevelString("info"), ShouldBeNil)

			Convey("Then the record is written", func() {
				So(buf.String(), ShouldContainSubstring, "visible")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level names", t, func() {
		So(Init(), ShouldBeNil)

		Convey("Then known names are accepted", func() {
			for _, lvl := range []string{"debug", "info", "", "warn", "warning", "error"} {
				So(SetLevelString(lvl), ShouldBeNil)
			}
		})

		Convey("Then unknown names are rejected", func() {
			So(SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}
