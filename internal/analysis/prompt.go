package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/product-battle/internal/model"
)

// contextSeparator joins grounding documents in the prompt.
const contextSeparator = "\n\n---\n\n"

const systemText = "You are an expert product reviewer analyzing Reddit discussions and user feedback. Return ONLY a valid JSON object, no additional text."

const analysisPrompt = `PRODUCT: %s

CONTEXT FROM REDDIT DISCUSSIONS:
%s

Based on the above Reddit discussions and user feedback, provide a comprehensive analysis in the following JSON format:

{
    "product_name": %q,
    "pros": [
        "List 3-5 key advantages mentioned by users",
        "Focus on real-world user experiences",
        "Include specific details from the context"
    ],
    "cons": [
        "List 3-5 key disadvantages mentioned by users",
        "Focus on common complaints or issues",
        "Include specific details from the context"
    ],
    "sentiment_score": 75,
    "sentiment_explanation": "Brief explanation of why this score was given (1-2 sentences)",
    "key_themes": [
        "List 2-3 recurring themes from user discussions",
        "E.g., 'Long-term reliability', 'Thermal performance', 'Value for money'"
    ],
    "user_recommendation": "Overall recommendation based on user sentiment (1-2 sentences)"
}

SCORING GUIDELINES:
- sentiment_score: integer on a 0-100 scale where:
  - 90-100: Overwhelmingly positive, highly recommended
  - 75-89: Mostly positive with minor issues
  - 60-74: Mixed reviews, has notable pros and cons
  - 40-59: More negative than positive
  - 1-39: Mostly negative, not recommended

IMPORTANT:
- Base your analysis ONLY on the provided context
- If context is insufficient, mention this in the analysis
- Be specific and cite examples from the Reddit discussions
- Return ONLY valid JSON, no additional text`

// buildPrompt renders the analysis prompt for displayName over docs.
func buildPrompt(displayName string, docs []model.Document, maxDocChars int) string {
	return fmt.Sprintf(analysisPrompt, displayName, groundingContext(docs, maxDocChars), displayName)
}

// groundingContext joins document texts, each cut to maxDocChars runes.
func groundingContext(docs []model.Document, maxDocChars int) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, truncate(strings.TrimSpace(d.Text), maxDocChars))
	}
	return strings.Join(parts, contextSeparator)
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
