package popularity

import (
	"time"
)

// Grade buckets a final score for display.
type Grade string

const (
	GradeS  Grade = "S"
	GradeA  Grade = "A"
	GradeB  Grade = "B"
	GradeC  Grade = "C"
	GradeD  Grade = "D"
	GradeNA Grade = "NA"
)

// GradeOf thresholds a final score. A nil score is "not assessable", which
// is different from a bottom grade.
func GradeOf(final *float64) Grade {
	if final == nil {
		return GradeNA
	}

	switch {
	case *final >= 0.8:
		return GradeS
	case *final >= 0.65:
		return GradeA
	case *final >= 0.5:
		return GradeB
	case *final >= 0.35:
		return GradeC
	default:
		return GradeD
	}
}

// ScopeScores are the local rank-percentile scores per ranking window.
type ScopeScores struct {
	Day   *float64 `json:"day"`
	Week  *float64 `json:"week"`
	Month *float64 `json:"month"`
}

// Record is one album's computed popularity. Superseded wholesale by a
// forced refresh, never merged.
type Record struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	ComputedAt time.Time `json:"computedAt"`

	ScopeScores    ScopeScores         `json:"scopeScores"`
	ExternalScores map[string]*float64 `json:"externalScores"`

	RecentScore   *float64 `json:"recentScore"`
	LongtermScore *float64 `json:"longtermScore"`
	FinalScore    *float64 `json:"finalScore"`
	Grade         Grade    `json:"grade"`
	TrendDelta    *float64 `json:"trendDelta"`
}
