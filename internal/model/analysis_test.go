package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidScore(t *testing.T) {
	assert.True(t, ValidScore(0))
	assert.True(t, ValidScore(100))
	assert.True(t, ValidScore(57))
	assert.False(t, ValidScore(-1))
	assert.False(t, ValidScore(101))
}

func TestComparisonResult_Winner(t *testing.T) {
	a := &AnalysisRecord{Key: "a", SentimentScore: 78}
	b := &AnalysisRecord{Key: "b", SentimentScore: 65}

	r := &ComparisonResult{A: a, B: b, WinnerKey: "a", ScoreDifference: 13}
	assert.Same(t, a, r.Winner())

	r = &ComparisonResult{A: a, B: b, WinnerKey: "b"}
	assert.Same(t, b, r.Winner())

	r = &ComparisonResult{A: a, B: b, Tie: true}
	assert.Nil(t, r.Winner())
}
