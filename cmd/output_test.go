package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/product-battle/internal/model"
)

func TestFormatComparison_Winner(t *testing.T) {
	a := rec("lenovo_legion_y540", "Lenovo Legion Y540", 78)
	b := rec("macbook_m4_pro", "MacBook M4 Pro", 65)

	var buf bytes.Buffer
	formatComparison(&buf, &model.ComparisonResult{A: a, B: b, WinnerKey: a.Key, ScoreDifference: 13})
	out := buf.String()

	assert.Contains(t, out, "PRODUCT")
	assert.Contains(t, out, "Winner: Lenovo Legion Y540 (+13)")
	assert.Contains(t, out, "MacBook M4 Pro: 65/100 from 12 posts")
	assert.Contains(t, out, "    - battery")
	assert.NotContains(t, out, "Cons:")
}

func TestFormatComparison_Tie(t *testing.T) {
	var buf bytes.Buffer
	formatComparison(&buf, &model.ComparisonResult{A: rec("a", "A", 50), B: rec("b", "B", 50), Tie: true})
	assert.Contains(t, buf.String(), "Result: tie")
}

func TestFormatRecordList(t *testing.T) {
	built := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	recs := []model.AnalysisRecord{
		{Key: "dell_xps_13", DisplayName: "Dell XPS 13", SentimentScore: 71, PostsAnalyzed: 9, Model: "openai:gpt-4o-mini", BuiltAt: built, Pros: []string{}, Cons: []string{}, KeyThemes: []string{}},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, formatRecordList(&buf, recs, "table"))
		assert.Contains(t, buf.String(), "KEY")
		assert.Contains(t, buf.String(), "dell_xps_13")
		assert.Contains(t, buf.String(), "2026-03-01 12:30")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, formatRecordList(&buf, recs, "yaml"))
		var got []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "dell_xps_13", got[0]["key"])
		assert.Equal(t, 71, got[0]["sentiment_score"])
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, formatRecordList(&buf, recs, "JSON"))
		var got []model.AnalysisRecord
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, recs[0].Key, got[0].Key)
	})

	t.Run("unknown", func(t *testing.T) {
		var buf bytes.Buffer
		err := formatRecordList(&buf, recs, "xml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown output format")
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
