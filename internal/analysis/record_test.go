package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-battle/internal/model"
)

var testMeta = Meta{Key: "lenovo_legion_y540", DisplayName: "Lenovo Legion Y540", PostsAnalyzed: 4, Model: "test:model"}

func TestParseResponse_Valid(t *testing.T) {
	root, err := ParseResponse("k", `{"sentiment_score": 78}`)
	require.NoError(t, err)
	assert.Equal(t, int64(78), root.Get("sentiment_score").Int())
}

func TestParseResponse_Repair(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"json fence", "```json\n{\"sentiment_score\": 70}\n```"},
		{"bare fence", "```\n{\"sentiment_score\": 70}\n```"},
		{"surrounding prose", "Here is the analysis:\n{\"sentiment_score\": 70}\nHope this helps!"},
		{"nested braces", "Sure. {\"sentiment_score\": 70, \"extra\": {\"a\": 1}} done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := ParseResponse("k", tt.raw)
			require.NoError(t, err)
			assert.Equal(t, int64(70), root.Get("sentiment_score").Int())
		})
	}
}

func TestParseResponse_Unrepairable(t *testing.T) {
	for _, raw := range []string{
		"",
		"I could not analyze this product.",
		"{\"sentiment_score\": 70",
		"[1, 2, 3]",
		"\"just a string\"",
	} {
		_, err := ParseResponse("lenovo_legion_y540", raw)
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, model.ErrAnalysisParse)
		assert.Equal(t, "lenovo_legion_y540", model.KeyOf(err))
	}
}

func TestNewRecord_Full(t *testing.T) {
	root, err := ParseResponse(testMeta.Key, `{
		"product_name": "Lenovo Legion Y540",
		"pros": ["Great GPU", " Solid build "],
		"cons": ["Loud fans"],
		"sentiment_score": 78,
		"sentiment_explanation": "Mostly positive.",
		"key_themes": ["Thermals", "Value"],
		"user_recommendation": "Buy it on sale."
	}`)
	require.NoError(t, err)

	rec, err := NewRecord(root, testMeta)
	require.NoError(t, err)
	assert.Equal(t, "lenovo_legion_y540", rec.Key)
	assert.Equal(t, "Lenovo Legion Y540", rec.DisplayName)
	assert.Equal(t, 78, rec.SentimentScore)
	assert.Equal(t, []string{"Great GPU", "Solid build"}, rec.Pros)
	assert.Equal(t, []string{"Loud fans"}, rec.Cons)
	assert.Equal(t, []string{"Thermals", "Value"}, rec.KeyThemes)
	assert.Equal(t, "Mostly positive.", rec.Explanation)
	assert.Equal(t, "Buy it on sale.", rec.Recommendation)
	assert.Equal(t, 4, rec.PostsAnalyzed)
	assert.Equal(t, "test:model", rec.Model)
	assert.False(t, rec.BuiltAt.IsZero())
}

func TestNewRecord_MissingListsDefaultEmpty(t *testing.T) {
	root, err := ParseResponse(testMeta.Key, `{"cons": ["Heavy"], "key_themes": null, "sentiment_score": 60}`)
	require.NoError(t, err)

	rec, err := NewRecord(root, testMeta)
	require.NoError(t, err)
	assert.NotNil(t, rec.Pros)
	assert.Empty(t, rec.Pros)
	assert.NotNil(t, rec.KeyThemes)
	assert.Empty(t, rec.KeyThemes)
	assert.Equal(t, []string{"Heavy"}, rec.Cons)
	assert.Equal(t, "", rec.Explanation)
}

func TestNewRecord_DropsNonStringItems(t *testing.T) {
	root, err := ParseResponse(testMeta.Key, `{"pros": ["ok", 3, null, {"a":1}, "", "fine"], "pros_extra": 1, "sentiment_score": 60, "user_recommendation": 5}`)
	require.NoError(t, err)

	rec, err := NewRecord(root, testMeta)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok", "fine"}, rec.Pros)
	assert.Equal(t, "", rec.Recommendation)
}

func TestNewRecord_Score(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
		wantErr bool
	}{
		{"integer", `{"sentiment_score": 78}`, 78, false},
		{"zero", `{"sentiment_score": 0}`, 0, false},
		{"hundred", `{"sentiment_score": 100}`, 100, false},
		{"integral float", `{"sentiment_score": 65.0}`, 65, false},
		{"numeric string", `{"sentiment_score": "78"}`, 78, false},
		{"missing", `{"pros": []}`, 0, true},
		{"null", `{"sentiment_score": null}`, 0, true},
		{"negative", `{"sentiment_score": -1}`, 0, true},
		{"too high", `{"sentiment_score": 101}`, 0, true},
		{"huge", `{"sentiment_score": 1e300}`, 0, true},
		{"fractional", `{"sentiment_score": 77.5}`, 0, true},
		{"word", `{"sentiment_score": "high"}`, 0, true},
		{"bool", `{"sentiment_score": true}`, 0, true},
		{"object", `{"sentiment_score": {"value": 70}}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := ParseResponse(testMeta.Key, tt.payload)
			require.NoError(t, err)

			rec, err := NewRecord(root, testMeta)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrInvalidScore)
				assert.Nil(t, rec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.SentimentScore)
		})
	}
}

func TestNewRecord_NegativePostsClamped(t *testing.T) {
	root, err := ParseResponse("k", `{"sentiment_score": 50}`)
	require.NoError(t, err)
	rec, err := NewRecord(root, Meta{Key: "k", PostsAnalyzed: -3})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.PostsAnalyzed)
}
