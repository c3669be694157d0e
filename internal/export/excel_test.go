package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garnizeh/hireflow/internal/models"
)

func fptr(v float64) *float64 { return &v }

func TestWriteRanked(t *testing.T) {
	applied := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	apps := []models.Application{
		{ID: "1", CandidateName: "Low", Email: "low@example.com", MatchScore: fptr(40), State: models.StateSubmitted, AppliedAt: applied},
		{ID: "2", CandidateName: "Waiting", Email: "wait@example.com", State: models.StateSubmitted, AppliedAt: applied},
		{ID: "3", CandidateName: "Top", Email: "top@example.com", MatchScore: fptr(92.5), MCQScore: fptr(75), Skills: []string{"go", "sql"}, State: models.StateEvaluated, AppliedAt: applied},
	}

	var buf bytes.Buffer
	if err := WriteRanked(&buf, &models.Job{Title: "Backend Engineer"}, apps, applied); err != nil {
		t.Fatalf("WriteRanked: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != SummarySheet || sheets[1] != RankedSheet {
		t.Fatalf("unexpected sheets %v", sheets)
	}

	if v, _ := f.GetCellValue(SummarySheet, "B3"); v != "Backend Engineer" {
		t.Fatalf("job title cell: %q", v)
	}

	rows, err := f.GetRows(RankedSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Rank" || rows[0][4] != "Match Score" {
		t.Fatalf("unexpected header %v", rows[0])
	}

	order := []string{rows[1][1], rows[2][1], rows[3][1]}
	if order[0] != "Top" || order[1] != "Low" || order[2] != "Waiting" {
		t.Fatalf("rows not in ranking order: %v", order)
	}
	if rows[1][5] != "Excellent Match" || rows[1][11] != "go, sql" {
		t.Fatalf("unexpected top row %v", rows[1])
	}
	if rows[3][4] != Pending || rows[3][6] != Pending || rows[3][7] != Pending {
		t.Fatalf("absent scores must read %q, got %v", Pending, rows[3])
	}
}

func TestWriteRanked_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRanked(&buf, nil, nil, time.Now()); err != nil {
		t.Fatalf("WriteRanked: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(RankedSheet)
	if len(rows) != 1 {
		t.Fatalf("expected only the header row, got %d", len(rows))
	}
}
