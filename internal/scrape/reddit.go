package scrape

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sells-group/product-battle/internal/model"
	"github.com/sells-group/product-battle/pkg/reddit"
)

// RedditAdapter exposes the Reddit HTML client as both a Discoverer and an
// Extractor.
type RedditAdapter struct {
	client *reddit.Client
	host   string
}

// NewRedditAdapter wraps client.
func NewRedditAdapter(client *reddit.Client) *RedditAdapter {
	host := ""
	if u, err := url.Parse(client.BaseURL()); err == nil {
		host = u.Hostname()
	}
	return &RedditAdapter{client: client, host: host}
}

func (r *RedditAdapter) Name() string { return "reddit" }

// Supports reports whether target is a Reddit thread.
func (r *RedditAdapter) Supports(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	h := u.Hostname()
	return (h == r.host || h == "reddit.com" || strings.HasSuffix(h, ".reddit.com")) &&
		strings.Contains(u.Path, "/comments/")
}

func (r *RedditAdapter) Discover(ctx context.Context, query string) ([]string, error) {
	links, err := r.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	urls := make([]string, len(links))
	for i, l := range links {
		urls[i] = l.URL
	}
	return urls, nil
}

func (r *RedditAdapter) Extract(ctx context.Context, target string) (*model.Post, error) {
	p, err := r.client.Post(ctx, target)
	if err != nil {
		return nil, err
	}
	return &model.Post{
		URL:       p.URL,
		Title:     p.Title,
		Body:      p.Body,
		Comments:  p.Comments,
		Source:    "reddit",
		ScrapedAt: time.Now().UTC(),
	}, nil
}
