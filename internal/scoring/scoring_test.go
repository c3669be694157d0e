package scoring

import (
	"slices"
	"testing"

	"github.com/garnizeh/hireflow/internal/models"
)

func ptr(v float64) *float64 { return &v }

func behavioral(fc, fe, vc, vcl, stress, compound float64) *models.BehavioralScore {
	b := &models.BehavioralScore{}
	b.Facial.Confidence = fc
	b.Facial.Engagement = fe
	b.Facial.Stress = stress
	b.Voice.Scores.Confidence = vc
	b.Voice.Scores.Clarity = vcl
	b.Text.Sentiment.Compound = compound
	return b
}

func TestMatchBandOf(t *testing.T) {
	cases := []struct {
		score float64
		level string
		label string
	}{
		{100, "excellent", "Excellent Match"},
		{85, "excellent", "Excellent Match"},
		{84.99, "good", "Good Match"},
		{70, "good", "Good Match"},
		{50, "moderate", "Moderate Match"},
		{49.9, "poor", "Poor Match"},
		{0, "poor", "Poor Match"},
	}
	for _, c := range cases {
		b := MatchBandOf(c.score)
		if b.Level != c.level || b.Label != c.label || b.Kind != MatchBand {
			t.Errorf("MatchBandOf(%v) = %+v, want %s/%s", c.score, b, c.level, c.label)
		}
	}
}

func TestConfidenceBandOf(t *testing.T) {
	cases := []struct {
		score float64
		level string
	}{
		{75, "high"},
		{74.99, "moderate"},
		{50, "moderate"},
		{10, "low"},
	}
	for _, c := range cases {
		if b := ConfidenceBandOf(c.score); b.Level != c.level {
			t.Errorf("ConfidenceBandOf(%v) = %s, want %s", c.score, b.Level, c.level)
		}
	}
	if got := Interpret(ConfidenceBand, 80); got.Label != "High Confidence" {
		t.Fatalf("Interpret confidence: %+v", got)
	}
	if got := Interpret(MatchBand, 80); got.Label != "Good Match" {
		t.Fatalf("Interpret match: %+v", got)
	}
}

func TestSentiment(t *testing.T) {
	cases := []struct {
		compound float64
		label    string
		norm     float64
	}{
		{-0.2, SentimentNegative, 40},
		{0.5, SentimentPositive, 75},
		{0.07, SentimentNeutral, 53.5},
		{-1, SentimentNegative, 0},
		{1, SentimentPositive, 100},
	}
	for _, c := range cases {
		if got := SentimentLabel(c.compound); got != c.label {
			t.Errorf("SentimentLabel(%v) = %s, want %s", c.compound, got, c.label)
		}
		if got := NormalizedSentiment(c.compound); got != c.norm {
			t.Errorf("NormalizedSentiment(%v) = %v, want %v", c.compound, got, c.norm)
		}
	}
	// the description uses a narrower neutral zone than the label
	if d := SentimentDescription(0.07); d != "Candidate expresses a positive attitude and enthusiasm." {
		t.Fatalf("unexpected description %q", d)
	}
	if d := SentimentDescription(0.01); d != "Candidate's communication tone is neutral and professional." {
		t.Fatalf("unexpected description %q", d)
	}
}

func TestEvaluate_Full(t *testing.T) {
	app := models.Application{
		MatchScore:      ptr(91),
		MCQScore:        ptr(60),
		BehavioralScore: behavioral(0.8, 0.6, 0.7, 0.9, 0.25, -0.2),
	}
	c := Evaluate(app)

	if c.BehavioralAverage == nil || *c.BehavioralAverage != 75 {
		t.Fatalf("behavioral average: %v", c.BehavioralAverage)
	}
	if c.ConfidenceBand.Level != "high" || c.ConfidenceBand.Kind != ConfidenceBand {
		t.Fatalf("confidence band: %+v", c.ConfidenceBand)
	}
	if *c.StressPercent != 25 {
		t.Fatalf("stress: %v", *c.StressPercent)
	}
	if *c.NormalizedSentiment != 40 || *c.SentimentLabel != SentimentNegative {
		t.Fatalf("sentiment: %v %v", *c.NormalizedSentiment, *c.SentimentLabel)
	}
	if c.MatchBand.Level != "excellent" || *c.MCQScore != 60 {
		t.Fatalf("match/mcq: %+v %v", c.MatchBand, *c.MCQScore)
	}
	if len(c.Pending) != 0 {
		t.Fatalf("nothing should be pending, got %v", c.Pending)
	}
}

func TestEvaluate_PendingIsNotZero(t *testing.T) {
	c := Evaluate(models.Application{MCQScore: ptr(0)})
	if c.MatchScore != nil || c.BehavioralAverage != nil || c.SentimentLabel != nil {
		t.Fatalf("absent signals must stay nil: %+v", c)
	}
	if c.MCQScore == nil || *c.MCQScore != 0 {
		t.Fatalf("a real zero is a score, not pending")
	}
	if !slices.Equal(c.Pending, []string{PendingMatch, PendingBehavioral}) {
		t.Fatalf("unexpected pending list %v", c.Pending)
	}
}

func TestRank(t *testing.T) {
	apps := []models.Application{
		{ID: "a", MatchScore: ptr(40)},
		{ID: "p1"},
		{ID: "b", MatchScore: ptr(90)},
		{ID: "c", MatchScore: ptr(90)},
		{ID: "p2"},
		{ID: "d", MatchScore: ptr(60)},
	}
	got := Rank(apps)

	var ids []string
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	want := []string{"b", "c", "d", "a", "p1", "p2"}
	if !slices.Equal(ids, want) {
		t.Fatalf("Rank order %v, want %v", ids, want)
	}
	if apps[0].ID != "a" {
		t.Fatalf("Rank must not reorder its input")
	}

	ev := RankEvaluated(apps)
	if ev[0].Rank != 1 || ev[0].ID != "b" || ev[5].Rank != 6 {
		t.Fatalf("RankEvaluated positions wrong: %d %s %d", ev[0].Rank, ev[0].ID, ev[5].Rank)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]models.Application{
		{MatchScore: ptr(90), MCQScore: ptr(10)},
		{MatchScore: ptr(55)},
		{BehavioralScore: behavioral(0, 0, 0, 0, 0, 0)},
	})
	if s.Total != 3 || s.ByMatchBand["excellent"] != 1 || s.ByMatchBand["moderate"] != 1 || s.ByMatchBand["poor"] != 0 {
		t.Fatalf("band counts: %+v", s)
	}
	if s.PendingMatch != 1 || s.PendingMCQ != 2 || s.PendingBehavioral != 2 {
		t.Fatalf("pending counts: %+v", s)
	}
}
