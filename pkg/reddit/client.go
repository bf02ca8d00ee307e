// Package reddit scrapes Reddit search result pages and post pages.
package reddit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// MaxComments caps the comments kept per post.
const MaxComments = 10

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Link is a post link found on a search page.
type Link struct {
	Title string
	URL   string
}

// Post is the visible content of one post page.
type Post struct {
	URL      string
	Title    string
	Body     string
	Comments []string
}

// StatusError is a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reddit: %s: status %d", e.URL, e.StatusCode)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Transient reports whether the request is worth retrying.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout || e.StatusCode >= 500
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets the site root (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client fetches Reddit HTML pages. It makes one request per call.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient returns a client for https://www.reddit.com.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   "https://www.reddit.com",
		userAgent: defaultUserAgent,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the site root links are resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// SearchURL returns the search page URL for query.
func (c *Client) SearchURL(query string) string {
	return c.baseURL + "/search/?q=" + url.QueryEscape(query)
}

// Search returns the post links on the search page for query, in page
// order without duplicates. Relative links are resolved against the base URL.
func (c *Client) Search(ctx context.Context, query string) ([]Link, error) {
	doc, err := c.fetch(ctx, c.SearchURL(query))
	if err != nil {
		return nil, err
	}

	var links []Link
	seen := make(map[string]bool)
	walk(doc, func(n *html.Node) bool {
		if !isElement(n, "a") {
			return true
		}
		href := attr(n, "href")
		title := text(n)
		if !strings.Contains(href, "/comments/") || title == "" || seen[href] {
			return false
		}
		seen[href] = true
		links = append(links, Link{Title: title, URL: c.absolute(href)})
		return false
	})
	return links, nil
}

// Post fetches and parses one post page: the first h1 as title, the
// paragraphs of the article body, and the paragraphs of visible comments.
func (c *Client) Post(ctx context.Context, postURL string) (*Post, error) {
	doc, err := c.fetch(ctx, postURL)
	if err != nil {
		return nil, err
	}

	p := &Post{URL: postURL, Title: "No title", Comments: []string{}}
	if h1 := find(doc, func(n *html.Node) bool { return isElement(n, "h1") }); h1 != nil {
		if t := text(h1); t != "" {
			p.Title = t
		}
	}

	body := find(doc, func(n *html.Node) bool {
		return isElement(n, "div") && attr(n, "property") == "schema:articleBody"
	})
	if body != nil {
		p.Body = strings.Join(paragraphs(body), " ")
	}

	walk(doc, func(n *html.Node) bool {
		if len(p.Comments) >= MaxComments {
			return false
		}
		if isElement(n, "div") && attr(n, "slot") == "comment" {
			for _, para := range paragraphs(n) {
				if len(p.Comments) < MaxComments {
					p.Comments = append(p.Comments, para)
				}
			}
			return false
		}
		return true
	})
	return p, nil
}

func (c *Client) fetch(ctx context.Context, pageURL string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "reddit: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "reddit: get %s", pageURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, eris.Wrapf(err, "reddit: parse %s", pageURL)
	}
	return doc, nil
}

func (c *Client) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return c.baseURL + href
}
