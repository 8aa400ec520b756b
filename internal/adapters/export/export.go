// Package export renders a leaderboard as a spreadsheet or a chart.
package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"github.com/xuri/excelize/v2"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Formats.
const (
	FormatXLSX = "xlsx"
	FormatPNG  = "png"
)

// Content types per format.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePNG  = "image/png"
)

const sheetName = "Leaderboard"

// XLSX writes entries as a workbook with one sheet: Rank, Team, Total.
func XLSX(w io.Writer, entries []model.LeaderboardEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &[]any{"Rank", "Team", "Total"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "C1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &[]any{e.Rank, e.TeamName, e.Total}); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(sheetName, "B", "B", 32); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

var (
	barColor   = drawing.ColorFromHex("2f6f4f")
	background = drawing.ColorWhite
	textColor  = drawing.ColorFromHex("222222")
)

// PNG writes entries as a bar chart of totals in rank order. An empty board
// renders a placeholder.
func PNG(w io.Writer, entries []model.LeaderboardEntry) error {
	if len(entries) == 0 {
		return placeholder(w, "No teams yet")
	}

	bars := make([]chart.Value, len(entries))
	top := 1.0
	for i, e := range entries {
		bars[i] = chart.Value{
			Label: fmt.Sprintf("#%d %s", e.Rank, e.TeamName),
			Value: float64(e.Total),
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor},
		}
		top = max(top, float64(e.Total))
	}

	graph := chart.BarChart{
		Title:      "Leaderboard",
		Width:      max(480, 90*len(entries)),
		Height:     420,
		BarWidth:   48,
		Background: chart.Style{FillColor: background, Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10}},
		Canvas:     chart.Style{FillColor: background},
		TitleStyle: chart.Style{FontColor: textColor},
		XAxis:      chart.Style{FontColor: textColor},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: textColor},
			Range: &chart.ContinuousRange{Min: 0, Max: top},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func placeholder(w io.Writer, msg string) error {
	graph := chart.Chart{
		Width:      400,
		Height:     200,
		Background: chart.Style{FillColor: background},
		Canvas:     chart.Style{FillColor: background},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, _ chart.Style) {
				r.SetFontColor(textColor)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				r.Text(msg, (cb.Width()-tb.Width())/2, (cb.Height()+tb.Height())/2)
			},
		},
	}
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render placeholder: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}
