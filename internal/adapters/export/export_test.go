package export_test

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/okian/judgeboard/internal/adapters/export"
	"github.com/okian/judgeboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var board = []model.LeaderboardEntry{
	{Rank: 1, TeamID: "x", TeamName: "Team X", Total: 30},
	{Rank: 2, TeamID: "y", TeamName: "Team Y", Total: 0},
}

func TestXLSX(t *testing.T) {
	Convey("Given a leaderboard", t, func() {
		var buf bytes.Buffer
		So(export.XLSX(&buf, board), ShouldBeNil)

		Convey("The workbook lists rank, team and total per row", func() {
			f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
			So(err, ShouldBeNil)
			defer f.Close()

			rows, err := f.GetRows("Leaderboard")
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, [][]string{
				{"Rank", "Team", "Total"},
				{"1", "Team X", "30"},
				{"2", "Team Y", "0"},
			})
		})
	})
}

func TestPNG(t *testing.T) {
	Convey("Given leaderboards to draw", t, func() {
		for _, entries := range [][]model.LeaderboardEntry{board, nil, {{Rank: 1, TeamName: "Zero", Total: 0}}} {
			var buf bytes.Buffer
			So(export.PNG(&buf, entries), ShouldBeNil)

			img, err := png.Decode(&buf)
			So(err, ShouldBeNil)
			So(img.Bounds().Dx(), ShouldBeGreaterThan, 0)
		}
	})
}
