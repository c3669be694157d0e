// Package scoring derives comparable 0-100 metrics, interpretation bands and
// a stable ranking from stored application fields. It never mutates its
// inputs.
package scoring

import (
	"math"
	"slices"

	"github.com/garnizeh/hireflow/internal/models"
)

// Names used in Composite.Pending for signals that have not arrived.
const (
	PendingMatch      = "match_score"
	PendingMCQ        = "mcq_score"
	PendingBehavioral = "behavioral_score"
)

const (
	SentimentPositive = "Positive"
	SentimentNegative = "Negative"
	SentimentNeutral  = "Neutral"
)

// Composite holds the derived values for one application. A nil field means
// the underlying signal is pending, never zero.
type Composite struct {
	MatchScore           *float64 `json:"match_score"`
	MatchBand            *Band    `json:"match_band"`
	MCQScore             *float64 `json:"mcq_score"`
	BehavioralAverage    *float64 `json:"behavioral_average"`
	ConfidenceBand       *Band    `json:"confidence_band"`
	StressPercent        *float64 `json:"stress_percent"`
	NormalizedSentiment  *float64 `json:"normalized_sentiment"`
	SentimentLabel       *string  `json:"sentiment_label"`
	SentimentDescription *string  `json:"sentiment_description"`
	Pending              []string `json:"pending"`
}

// BehavioralAverage is the mean of facial confidence, facial engagement,
// voice confidence and voice clarity, scaled to 0-100. Stress is excluded.
func BehavioralAverage(b models.BehavioralScore) float64 {
	sum := b.Facial.Confidence + b.Facial.Engagement + b.Voice.Scores.Confidence + b.Voice.Scores.Clarity
	return round2(sum / 4 * 100)
}

func StressPercent(b models.BehavioralScore) float64 {
	return round2(b.Facial.Stress * 100)
}

// NormalizedSentiment maps a compound value in [-1,1] to [0,100].
func NormalizedSentiment(compound float64) float64 {
	return round2((compound + 1) / 2 * 100)
}

// SentimentLabel uses a +-0.1 dead zone.
func SentimentLabel(compound float64) string {
	switch {
	case compound > 0.1:
		return SentimentPositive
	case compound < -0.1:
		return SentimentNegative
	}
	return SentimentNeutral
}

// SentimentDescription uses +-0.05, unlike SentimentLabel; a compound of
// 0.07 is labeled Neutral but described as positive.
func SentimentDescription(compound float64) string {
	switch {
	case compound >= 0.05:
		return "Candidate expresses a positive attitude and enthusiasm."
	case compound <= -0.05:
		return "Candidate expresses a negative or cautious tone. Review content for context."
	}
	return "Candidate's communication tone is neutral and professional."
}

// Evaluate derives the composite view of app.
func Evaluate(app models.Application) Composite {
	c := Composite{Pending: []string{}}

	if app.MatchScore != nil {
		v := *app.MatchScore
		band := Interpret(MatchBand, v)
		c.MatchScore, c.MatchBand = &v, &band
	} else {
		c.Pending = append(c.Pending, PendingMatch)
	}

	if app.MCQScore != nil {
		v := *app.MCQScore
		c.MCQScore = &v
	} else {
		c.Pending = append(c.Pending, PendingMCQ)
	}

	if b := app.BehavioralScore; b != nil {
		avg := BehavioralAverage(*b)
		band := Interpret(ConfidenceBand, avg)
		stress := StressPercent(*b)
		compound := b.Text.Sentiment.Compound
		norm := NormalizedSentiment(compound)
		label := SentimentLabel(compound)
		desc := SentimentDescription(compound)
		c.BehavioralAverage, c.ConfidenceBand, c.StressPercent = &avg, &band, &stress
		c.NormalizedSentiment, c.SentimentLabel, c.SentimentDescription = &norm, &label, &desc
	} else {
		c.Pending = append(c.Pending, PendingBehavioral)
	}

	return c
}

// Rank returns a copy of apps ordered by match score, highest first. Ties
// and pending scores keep arrival order; pending scores sort after every
// scored application.
func Rank(apps []models.Application) []models.Application {
	out := slices.Clone(apps)
	slices.SortStableFunc(out, func(a, b models.Application) int {
		switch {
		case a.MatchScore == nil && b.MatchScore == nil:
			return 0
		case a.MatchScore == nil:
			return 1
		case b.MatchScore == nil:
			return -1
		case *a.MatchScore > *b.MatchScore:
			return -1
		case *a.MatchScore < *b.MatchScore:
			return 1
		}
		return 0
	})
	return out
}

// Evaluated is an application together with its composite and its 1-based
// position in the ranking.
type Evaluated struct {
	models.Application
	Rank      int       `json:"rank"`
	Composite Composite `json:"composite"`
}

func RankEvaluated(apps []models.Application) []Evaluated {
	ranked := Rank(apps)
	out := make([]Evaluated, 0, len(ranked))
	for i, a := range ranked {
		out = append(out, Evaluated{Application: a, Rank: i + 1, Composite: Evaluate(a)})
	}
	return out
}

// Summary counts applications per match band level plus pending signals.
type Summary struct {
	Total             int            `json:"total"`
	ByMatchBand       map[string]int `json:"by_match_band"`
	PendingMatch      int            `json:"pending_match"`
	PendingMCQ        int            `json:"pending_mcq"`
	PendingBehavioral int            `json:"pending_behavioral"`
}

func Summarize(apps []models.Application) Summary {
	s := Summary{Total: len(apps), ByMatchBand: make(map[string]int, len(MatchLevels))}
	for _, l := range MatchLevels {
		s.ByMatchBand[l] = 0
	}
	for _, a := range apps {
		if a.MatchScore != nil {
			s.ByMatchBand[MatchBandOf(*a.MatchScore).Level]++
		} else {
			s.PendingMatch++
		}
		if a.MCQScore == nil {
			s.PendingMCQ++
		}
		if a.BehavioralScore == nil {
			s.PendingBehavioral++
		}
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
