package analysis

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sells-group/product-battle/internal/model"
)

// Meta is the provenance attached to a record by the builder.
type Meta struct {
	Key           string
	DisplayName   string
	PostsAnalyzed int
	Model         string
}

// ParseResponse extracts the JSON object from a raw model response. Valid
// JSON is used as is; otherwise one repair pass strips code fences and any
// prose outside the outermost braces. Anything that is still not a JSON
// object is an AnalysisParseError.
func ParseResponse(key, raw string) (gjson.Result, error) {
	text := strings.TrimSpace(raw)
	if !gjson.Valid(text) || !gjson.Parse(text).IsObject() {
		text = repairJSON(text)
	}
	if !gjson.Valid(text) {
		return gjson.Result{}, model.AnalysisParseError(key, raw, nil)
	}
	root := gjson.Parse(text)
	if !root.IsObject() {
		return gjson.Result{}, model.AnalysisParseError(key, raw, nil)
	}
	return root, nil
}

// repairJSON strips markdown code fences and keeps the text between the
// first "{" and the last "}".
func repairJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// NewRecord is the only way an AnalysisRecord is built from model output.
// List fields default to empty and drop non-string items; the sentiment
// score must be present, integral and within [0,100].
func NewRecord(root gjson.Result, meta Meta) (*model.AnalysisRecord, error) {
	score, err := parseScore(meta.Key, root.Get("sentiment_score"))
	if err != nil {
		return nil, err
	}
	posts := meta.PostsAnalyzed
	if posts < 0 {
		posts = 0
	}
	return &model.AnalysisRecord{
		Key:            meta.Key,
		DisplayName:    meta.DisplayName,
		SentimentScore: score,
		Pros:           stringList(root.Get("pros")),
		Cons:           stringList(root.Get("cons")),
		KeyThemes:      stringList(root.Get("key_themes")),
		Explanation:    stringField(root.Get("sentiment_explanation")),
		Recommendation: stringField(root.Get("user_recommendation")),
		PostsAnalyzed:  posts,
		Model:          meta.Model,
		BuiltAt:        time.Now().UTC(),
	}, nil
}

func parseScore(key string, v gjson.Result) (int, error) {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, model.InvalidScoreError(key, "sentiment_score "+strconv.Quote(v.Str)+" is not a number")
		}
		f = parsed
	case gjson.Null:
		if !v.Exists() {
			return 0, model.InvalidScoreError(key, "sentiment_score is missing")
		}
		return 0, model.InvalidScoreError(key, "sentiment_score is null")
	default:
		return 0, model.InvalidScoreError(key, "sentiment_score is not a number: "+v.Raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, model.InvalidScoreError(key, "sentiment_score is not an integer: "+strconv.FormatFloat(f, 'g', -1, 64))
	}
	if f < model.MinScore || f > model.MaxScore {
		return 0, model.InvalidScoreError(key, "sentiment_score "+strconv.FormatFloat(f, 'g', -1, 64)+" is outside [0,100]")
	}
	return int(f), nil
}

func stringList(v gjson.Result) []string {
	out := []string{}
	if !v.IsArray() {
		return out
	}
	for _, item := range v.Array() {
		if item.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(item.Str); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringField(v gjson.Result) string {
	if v.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(v.Str)
}
