// Package compare ranks two analysis records against each other.
package compare

import (
	"time"

	"github.com/sells-group/product-battle/internal/model"
)

// Combine compares a and b by sentiment score. The higher score wins;
// equal scores are a tie. Neither record is modified.
func Combine(a, b *model.AnalysisRecord) (*model.ComparisonResult, error) {
	if err := check(a); err != nil {
		return nil, err
	}
	if err := check(b); err != nil {
		return nil, err
	}

	res := &model.ComparisonResult{
		A:               a,
		B:               b,
		ScoreDifference: abs(a.SentimentScore - b.SentimentScore),
		ComparedAt:      time.Now().UTC(),
	}
	switch {
	case a.SentimentScore > b.SentimentScore:
		res.WinnerKey = a.Key
	case b.SentimentScore > a.SentimentScore:
		res.WinnerKey = b.Key
	default:
		res.Tie = true
	}
	return res, nil
}

func check(r *model.AnalysisRecord) error {
	if r == nil {
		return model.InvalidScoreError("", "nil analysis record")
	}
	if !model.ValidScore(r.SentimentScore) {
		return model.InvalidScoreError(r.Key, "sentiment_score out of range")
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
