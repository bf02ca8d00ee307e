package ingest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/product-battle/internal/model"
)

func TestDocumentID_Stable(t *testing.T) {
	a := DocumentID("https://www.reddit.com/r/x/comments/1/a/")
	assert.Equal(t, a, DocumentID("https://www.reddit.com/r/x/comments/1/a/"))
	assert.NotEqual(t, a, DocumentID("https://www.reddit.com/r/x/comments/2/b/"))
	assert.Len(t, a, 36)
}

func TestRenderDocument(t *testing.T) {
	post := &model.Post{
		URL:       "https://www.reddit.com/r/x/comments/1/a/",
		Title:     "Legion Y540 after 5 years",
		Body:      "Still great.",
		Comments:  []string{"Agreed", "Repaste it"},
		Source:    "reddit",
		ScrapedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	doc := renderDocument("lenovo_legion_y540", "Lenovo Legion Y540", post)

	want := `---
source: reddit
url: https://www.reddit.com/r/x/comments/1/a/
scraped_at: 2025-01-02T03:04:05Z
product: Lenovo Legion Y540
---

# Legion Y540 after 5 years

Still great.

## Comments

- Agreed
- Repaste it
`
	assert.Equal(t, want, doc.Text)
	assert.Equal(t, "lenovo_legion_y540", doc.Key)
	assert.Equal(t, DocumentID(post.URL), doc.ID)
	assert.Equal(t, post.URL, doc.Metadata[model.MetaURL])
	assert.Equal(t, "reddit", doc.Metadata[model.MetaSource])
	assert.Equal(t, "Lenovo Legion Y540", doc.Metadata[model.MetaProduct])
}

func TestRenderDocument_Defaults(t *testing.T) {
	var comments []string
	for i := range 15 {
		comments = append(comments, fmt.Sprintf("c%d", i))
	}
	doc := renderDocument("k", "K", &model.Post{URL: "u", Comments: comments})

	assert.Contains(t, doc.Text, "source: reddit\n")
	assert.Contains(t, doc.Text, "# No title\n")
	assert.Equal(t, maxComments, strings.Count(doc.Text, "\n- c"))
	assert.NotContains(t, doc.Text, "- c10")
}
