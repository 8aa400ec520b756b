package pgstore

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/okian/judgeboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMapErr(t *testing.T) {
	Convey("Given driver errors", t, func() {
		Convey("No rows reads as not found", func() {
			err := mapErr("get team", sql.ErrNoRows)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			So(err.Error(), ShouldStartWith, "get team: ")
		})

		Convey("Anything else is an upstream failure that keeps its cause", func() {
			cause := errors.New("connection reset")
			err := mapErr("list scores", cause)
			So(errors.Is(err, model.ErrUpstream), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
		})
	})
}
