package scoring

import "fmt"

// BandKind selects which interpretation scale applies to a 0-100 score.
type BandKind int

const (
	MatchBand BandKind = iota
	ConfidenceBand
)

func (k BandKind) String() string {
	switch k {
	case MatchBand:
		return "match"
	case ConfidenceBand:
		return "confidence"
	}
	return fmt.Sprintf("BandKind(%d)", int(k))
}

// Band is a human-readable interpretation of a score. Variant is a display
// hint (success, primary, warning, danger).
type Band struct {
	Kind    BandKind `json:"-"`
	Level   string   `json:"level"`
	Label   string   `json:"label"`
	Variant string   `json:"variant"`
}

// Interpret dispatches to the band function for kind.
func Interpret(kind BandKind, score float64) Band {
	switch kind {
	case ConfidenceBand:
		return ConfidenceBandOf(score)
	default:
		return MatchBandOf(score)
	}
}

// MatchBandOf bands resume/job match scores. A score on a threshold belongs
// to the higher band.
func MatchBandOf(score float64) Band {
	b := Band{Kind: MatchBand}
	switch {
	case score >= 85:
		b.Level, b.Label, b.Variant = "excellent", "Excellent Match", "success"
	case score >= 70:
		b.Level, b.Label, b.Variant = "good", "Good Match", "primary"
	case score >= 50:
		b.Level, b.Label, b.Variant = "moderate", "Moderate Match", "warning"
	default:
		b.Level, b.Label, b.Variant = "poor", "Poor Match", "danger"
	}
	return b
}

// ConfidenceBandOf bands behavioral and other confidence-type scores.
func ConfidenceBandOf(score float64) Band {
	b := Band{Kind: ConfidenceBand}
	switch {
	case score >= 75:
		b.Level, b.Label, b.Variant = "high", "High Confidence", "success"
	case score >= 50:
		b.Level, b.Label, b.Variant = "moderate", "Moderate Confidence", "warning"
	default:
		b.Level, b.Label, b.Variant = "low", "Needs Improvement", "danger"
	}
	return b
}

// MatchLevels lists match band levels from best to worst.
var MatchLevels = []string{"excellent", "good", "moderate", "poor"}
