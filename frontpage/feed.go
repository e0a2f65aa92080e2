package frontpage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/pevans/newsgrab/story"
)

// FetchFeed fetches and parses an RSS or Atom feed. gofeed detects the format
// from the document itself.
func FetchFeed(ctx context.Context, client *http.Client, feedURL, userAgent string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	fp.Client = client
	if userAgent != "" {
		fp.UserAgent = userAgent
	}

	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, fmt.Errorf("%w: %d %s", ErrHTTPStatus, httpErr.StatusCode, httpErr.Status)
		}
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	return feed, nil
}

// FeedToStories converts feed items to stories in feed order. Items without a
// link or title are an error, matching the HTML extraction rules.
func FeedToStories(feed *gofeed.Feed) ([]story.Story, error) {
	stories := make([]story.Story, 0, len(feed.Items))
	for i, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			return nil, fmt.Errorf("%w: feed item %d has no link", ErrMalformedAnchor, i)
		}

		title := strings.Join(strings.Fields(item.Title), " ")
		if title == "" {
			return nil, fmt.Errorf("%w: feed item %d (%s) has no title", ErrMalformedAnchor, i, link)
		}

		stories = append(stories, story.Story{Link: link, Title: title})
	}
	return stories, nil
}
