package ingest

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/product-battle/internal/model"
)

// maxComments caps the comments rendered into one document.
const maxComments = 10

// DocumentID is the stable knowledge-store id for a thread URL.
func DocumentID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// renderDocument turns a post into a markdown document tagged with key.
func renderDocument(key, displayName string, post *model.Post) model.Document {
	scrapedAt := post.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}
	source := post.Source
	if source == "" {
		source = "reddit"
	}
	title := strings.TrimSpace(post.Title)
	if title == "" {
		title = "No title"
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("source: " + source + "\n")
	b.WriteString("url: " + post.URL + "\n")
	b.WriteString("scraped_at: " + scrapedAt.Format(time.RFC3339) + "\n")
	b.WriteString("product: " + displayName + "\n")
	b.WriteString("---\n\n")
	b.WriteString("# " + title + "\n\n")
	if body := strings.TrimSpace(post.Body); body != "" {
		b.WriteString(body + "\n")
	}

	comments := post.Comments
	if len(comments) > maxComments {
		comments = comments[:maxComments]
	}
	if len(comments) > 0 {
		b.WriteString("\n## Comments\n\n")
		for _, c := range comments {
			b.WriteString("- " + c + "\n")
		}
	}

	return model.Document{
		ID:   DocumentID(post.URL),
		Key:  key,
		Text: b.String(),
		Metadata: map[string]string{
			model.MetaURL:       post.URL,
			model.MetaTitle:     title,
			model.MetaSource:    source,
			model.MetaScrapedAt: scrapedAt.Format(time.RFC3339),
			model.MetaProduct:   displayName,
		},
	}
}
