package frontpage

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/pevans/newsgrab/story"
)

// Front page modes.
const (
	ModeHTML = "html"
	ModeFeed = "feed"
)

// Options controls how a Parser reads the front page.
type Options struct {
	Mode      string // ModeHTML (default) or ModeFeed
	Selector  string // CSS selector for story anchors in ModeHTML
	UserAgent string
}

// Parser reads stories from a single front page.
type Parser struct {
	client *http.Client
	opts   Options
	log    *log.Logger
}

// NewParser creates a parser that issues requests through client.
func NewParser(client *http.Client, opts Options, logger *log.Logger) *Parser {
	if opts.Mode == "" {
		opts.Mode = ModeHTML
	}

	return &Parser{
		client: client,
		opts:   opts,
		log:    logger,
	}
}

// Parse fetches pageURL once and returns its stories in page order. Any
// failure is returned to the caller; there is no partial result.
func (p *Parser) Parse(ctx context.Context, pageURL string) ([]story.Story, error) {
	var (
		stories []story.Story
		err     error
	)

	switch p.opts.Mode {
	case ModeHTML:
		stories, err = p.parseHTML(ctx, pageURL)
	case ModeFeed:
		stories, err = p.parseFeed(ctx, pageURL)
	default:
		return nil, fmt.Errorf("unsupported front page mode: %s", p.opts.Mode)
	}
	if err != nil {
		return nil, err
	}

	p.log.Info("Found stories", "count", len(stories), "url", pageURL)
	return stories, nil
}

func (p *Parser) parseHTML(ctx context.Context, pageURL string) ([]story.Story, error) {
	doc, err := FetchHTML(ctx, p.client, pageURL, p.opts.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch front page: %w", err)
	}

	stories, err := ExtractStories(doc, p.opts.Selector, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract stories: %w", err)
	}

	return stories, nil
}

func (p *Parser) parseFeed(ctx context.Context, feedURL string) ([]story.Story, error) {
	feed, err := FetchFeed(ctx, p.client, feedURL, p.opts.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch front page feed: %w", err)
	}

	stories, err := FeedToStories(feed)
	if err != nil {
		return nil, fmt.Errorf("failed to extract stories: %w", err)
	}

	return stories, nil
}
