// Package frontpage reads the list of stories from a news front page.
package frontpage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newsgrab/story"
)

// Front page errors.
var (
	ErrHTTPStatus      = errors.New("unexpected HTTP status")
	ErrMalformedAnchor = errors.New("malformed story anchor")
)

// FetchHTML fetches the page at pageURL and parses it as HTML. Transport
// failures and non-2xx responses are returned as errors.
func FetchHTML(ctx context.Context, client *http.Client, pageURL, userAgent string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return doc, nil
}

// ExtractStories returns one story per element matching selector, in
// document order. Relative links are resolved against baseURL. Duplicates are
// kept. An element without an href or without text is an error.
func ExtractStories(doc *goquery.Document, selector, baseURL string) ([]story.Story, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	stories := []story.Story{}
	var extractErr error

	doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			extractErr = fmt.Errorf("%w: element %d has no href", ErrMalformedAnchor, i)
			return false
		}

		// Normalize whitespace: replace multiple spaces/newlines with single
		// space
		title := strings.Join(strings.Fields(s.Text()), " ")
		if title == "" {
			extractErr = fmt.Errorf("%w: element %d (%s) has no text", ErrMalformedAnchor, i, href)
			return false
		}

		ref, err := url.Parse(href)
		if err != nil {
			extractErr = fmt.Errorf("%w: element %d: %v", ErrMalformedAnchor, i, err)
			return false
		}

		stories = append(stories, story.Story{
			Link:  base.ResolveReference(ref).String(),
			Title: title,
		})
		return true
	})

	if extractErr != nil {
		return nil, extractErr
	}

	return stories, nil
}
