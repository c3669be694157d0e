// Package export renders a job's ranked applications as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garnizeh/hireflow/internal/models"
	"github.com/garnizeh/hireflow/internal/scoring"
)

const (
	SummarySheet = "Summary"
	RankedSheet  = "Ranked Candidates"

	// Pending is written where an asynchronous score has not arrived.
	Pending = "pending"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var rankedHeaders = []string{
	"Rank", "Candidate", "Email", "Classification", "Match Score", "Match Band",
	"MCQ Score", "Behavioral Avg", "Confidence", "Stress %", "Sentiment", "Skills", "State", "Applied",
}

// band fill colors by match level
var bandFill = map[string]string{
	"excellent": "C6EFCE",
	"good":      "DDEBF7",
	"moderate":  "FFEB9C",
	"poor":      "FFC7CE",
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// WriteRanked writes the workbook for job to w. apps may be in any order;
// the ranked sheet follows scoring.Rank.
func WriteRanked(w io.Writer, job *models.Job, apps []models.Application, generated time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(RankedSheet); err != nil {
		return err
	}

	if err := writeSummary(f, job, apps, generated); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := writeRanked(f, scoring.RankEvaluated(apps)); err != nil {
		return fmt.Errorf("ranked sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, job *models.Job, apps []models.Application, generated time.Time) error {
	sheet := SummarySheet
	f.SetColWidth(sheet, "A", "A", 28)
	f.SetColWidth(sheet, "B", "B", 40)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	s := scoring.Summarize(apps)
	title := ""
	if job != nil {
		title = job.Title
	}

	rows := [][2]any{
		{"Job Title:", title},
		{"Generated:", generated.UTC().Format(time.RFC3339)},
		{"Total Applications:", s.Total},
		{nil, nil},
	}
	for _, level := range scoring.MatchLevels {
		label := scoring.MatchBandOf(thresholdOf(level)).Label
		rows = append(rows, [2]any{label + ":", s.ByMatchBand[level]})
	}
	rows = append(rows,
		[2]any{nil, nil},
		[2]any{"Match Score Pending:", s.PendingMatch},
		[2]any{"MCQ Score Pending:", s.PendingMCQ},
		[2]any{"Behavioral Score Pending:", s.PendingBehavioral},
	)

	if err := f.SetCellValue(sheet, "A1", "Candidate Ranking Report"); err != nil {
		return err
	}
	f.SetCellStyle(sheet, "A1", "B1", headerStyle)
	f.MergeCell(sheet, "A1", "B1")

	for i, r := range rows {
		row := i + 3
		if r[0] == nil {
			continue
		}
		a, b := fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row)
		if err := f.SetCellValue(sheet, a, r[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, b, r[1]); err != nil {
			return err
		}
		f.SetCellStyle(sheet, a, a, labelStyle)
	}
	return nil
}

// thresholdOf returns a score inside the match band named level.
func thresholdOf(level string) float64 {
	switch level {
	case "excellent":
		return 85
	case "good":
		return 70
	case "moderate":
		return 50
	}
	return 0
}

func writeRanked(f *excelize.File, ranked []scoring.Evaluated) error {
	sheet := RankedSheet

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}
	styles := make(map[string]int, len(bandFill)+1)
	for level, color := range bandFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Border: thinBorder,
		})
		if err != nil {
			return err
		}
		styles[level] = id
	}
	if styles[Pending], err = f.NewStyle(&excelize.Style{Border: thinBorder, Font: &excelize.Font{Italic: true}}); err != nil {
		return err
	}

	lastCol, _ := excelize.ColumnNumberToName(len(rankedHeaders))
	for i, h := range rankedHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle)
	f.SetColWidth(sheet, "A", "A", 8)
	f.SetColWidth(sheet, "B", "D", 24)
	f.SetColWidth(sheet, "E", "K", 15)
	f.SetColWidth(sheet, "L", "L", 40)
	f.SetColWidth(sheet, "M", "N", 20)

	for i, e := range ranked {
		row := i + 2
		c := e.Composite
		values := []any{
			e.Rank,
			e.CandidateName,
			e.Email,
			e.Classification,
			scoreCell(c.MatchScore),
			bandCell(c.MatchBand),
			scoreCell(c.MCQScore),
			scoreCell(c.BehavioralAverage),
			bandCell(c.ConfidenceBand),
			scoreCell(c.StressPercent),
			textCell(c.SentimentLabel),
			strings.Join(e.Skills, ", "),
			e.State,
			e.AppliedAt.UTC().Format(time.RFC3339),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, start, &values); err != nil {
			return err
		}

		style := styles[Pending]
		if c.MatchBand != nil {
			style = styles[c.MatchBand.Level]
		}
		f.SetCellStyle(sheet, start, fmt.Sprintf("%s%d", lastCol, row), style)
	}

	if len(ranked) > 0 {
		f.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, len(ranked)+1), []excelize.AutoFilterOptions{})
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func scoreCell(v *float64) any {
	if v == nil {
		return Pending
	}
	return *v
}

func bandCell(b *scoring.Band) any {
	if b == nil {
		return Pending
	}
	return b.Label
}

func textCell(s *string) any {
	if s == nil {
		return Pending
	}
	return *s
}
