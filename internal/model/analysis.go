package model

import "time"

// AnalysisRecord is the durable verdict for one product. Records are
// immutable once built; a rebuild produces a new record that replaces the
// cached one.
type AnalysisRecord struct {
	Key            string    `json:"key" yaml:"key"`
	DisplayName    string    `json:"display_name" yaml:"display_name"`
	SentimentScore int       `json:"sentiment_score" yaml:"sentiment_score"`
	Pros           []string  `json:"pros" yaml:"pros"`
	Cons           []string  `json:"cons" yaml:"cons"`
	KeyThemes      []string  `json:"key_themes" yaml:"key_themes"`
	Explanation    string    `json:"sentiment_explanation" yaml:"sentiment_explanation"`
	Recommendation string    `json:"user_recommendation" yaml:"user_recommendation"`
	PostsAnalyzed  int       `json:"posts_analyzed" yaml:"posts_analyzed"`
	Model          string    `json:"model,omitempty" yaml:"model,omitempty"`
	BuiltAt        time.Time `json:"built_at" yaml:"built_at"`
}

// Score bounds for AnalysisRecord.SentimentScore.
const (
	MinScore = 0
	MaxScore = 100
)

// ValidScore reports whether s is an acceptable sentiment score.
func ValidScore(s int) bool {
	return s >= MinScore && s <= MaxScore
}

// EntryState is the build state of a cache entry.
type EntryState string

const (
	EntryEmpty    EntryState = "empty"
	EntryBuilding EntryState = "building"
	EntryReady    EntryState = "ready"
	EntryFailed   EntryState = "failed"
)

// CacheEntry is a point-in-time view of one cache key.
type CacheEntry struct {
	Key       string          `json:"key"`
	State     EntryState      `json:"state"`
	Record    *AnalysisRecord `json:"record,omitempty"`
	Err       error           `json:"-"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

// ComparisonResult is computed per request and never persisted.
type ComparisonResult struct {
	A               *AnalysisRecord `json:"a"`
	B               *AnalysisRecord `json:"b"`
	WinnerKey       string          `json:"winner_key,omitempty"`
	Tie             bool            `json:"tie"`
	ScoreDifference int             `json:"score_difference"`
	ComparedAt      time.Time       `json:"compared_at"`
}

// Winner returns the winning record, or nil on a tie.
func (r *ComparisonResult) Winner() *AnalysisRecord {
	switch {
	case r.Tie:
		return nil
	case r.A != nil && r.WinnerKey == r.A.Key:
		return r.A
	case r.B != nil && r.WinnerKey == r.B.Key:
		return r.B
	}
	return nil
}
