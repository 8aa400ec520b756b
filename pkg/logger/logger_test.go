package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	. "github.com/smartystreets/goconvey/convey"
)

func decodeLines(buf *bytes.Buffer) []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		rec := map[string]any{}
		if err := json.Unmarshal([]byte(line), &rec); err == nil {
			out = append(out, rec)
		}
	}
	return out
}

func TestLoggerInit(t *testing.T) {
	Convey("Given the default initializer", t, func() {
		So(Init(), ShouldBeNil)
		So(Get(), ShouldNotBeNil)
		So(Sync(), ShouldBeNil)
	})

	Convey("Given a nil writer", t, func() {
		So(InitWithWriter(nil, true), ShouldNotBeNil)
	})
}

func TestLoggerFields(t *testing.T) {
	Convey("Given a JSON logger", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf, true), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging with fields", func() {
			Get().Info(ctx, "scores submitted", String("team", "x"), Int("count", 2), Error(errors.New("boom")))
			recs := decodeLines(&buf)

			Convey("Then the record carries every field and the caller", func() {
				So(len(recs), ShouldEqual, 1)
				So(recs[0]["msg"], ShouldEqual, "scores submitted")
				So(recs[0]["team"], ShouldEqual, "x")
				So(recs[0]["count"], ShouldEqual, float64(2))
				So(recs[0]["error"], ShouldEqual, "boom")
				So(recs[0]["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the context carries a request id", func() {
			reqCtx := context.WithValue(ctx, middleware.RequestIDKey, "req-42")
			Get().Warn(reqCtx, "slow store")
			recs := decodeLines(&buf)
			So(recs[0]["request_id"], ShouldEqual, "req-42")
		})

		Convey("When using a named logger", func() {
			Named("ranking").Info(ctx, "computed")
			recs := decodeLines(&buf)
			So(recs[0]["component"], ShouldEqual, "ranking")
		})

		Convey("When using With", func() {
			Get().With(String("judge", "a")).Info(ctx, "x")
			recs := decodeLines(&buf)
			So(recs[0]["judge"], ShouldEqual, "a")
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given a JSON logger at info", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf, true), ShouldBeNil)
		ctx := context.Background()

		Convey("Debug records are dropped by default", func() {
			Get().Debug(ctx, "hidden")
			So(buf.Len(), ShouldEqual, 0)
		})

		Convey("Debug records appear after lowering the level", func() {
			So(SetLevelString("DEBUG"), ShouldBeNil)
			Get().Debug(ctx, "shown")
			So(buf.String(), ShouldContainSubstring, "shown")
		})

		Convey("Warn level drops info", func() {
			So(SetLevelString("warning"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			So(buf.Len(), ShouldEqual, 0)
		})

		Convey("Unknown levels are rejected", func() {
			So(SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}
