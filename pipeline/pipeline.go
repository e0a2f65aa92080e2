// Package pipeline runs one pass over a front page: parse it once, then
// download every story it lists with a bounded number of workers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pevans/newsgrab/archive"
	"github.com/pevans/newsgrab/fetcher"
	"github.com/pevans/newsgrab/history"
	"github.com/pevans/newsgrab/story"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

// ErrOutputRootMissing is returned when the archive root does not exist at
// the start of a run.
var ErrOutputRootMissing = errors.New("output directory does not exist")

// Parser reads the stories listed on a front page.
type Parser interface {
	Parse(ctx context.Context, pageURL string) ([]story.Story, error)
}

// Fetcher downloads one story. Implementations report failures in the
// Result rather than returning them.
type Fetcher interface {
	Fetch(ctx context.Context, s story.Story) fetcher.Result
}

// Config holds the settings for one run.
type Config struct {
	// Front page to read
	URL string
	// Maximum number of stories downloaded at once
	Concurrency int
}

// RunResult summarizes a run.
type RunResult struct {
	Found      int
	Duplicates int
	Downloaded int
	Skipped    int
	Failed     int
	Elapsed    time.Duration
}

// Pipeline ties a parser and a fetcher to an archive.
type Pipeline struct {
	archive *archive.Archive
	parser  Parser
	fetcher Fetcher
	config  Config
	log     *log.Logger
}

// New creates a pipeline.
func New(
	a *archive.Archive,
	parser Parser,
	f Fetcher,
	config Config,
	logger *log.Logger,
) *Pipeline {
	if config.Concurrency <= 0 {
		config.Concurrency = defaultConcurrency
	}

	return &Pipeline{
		archive: a,
		parser:  parser,
		fetcher: f,
		config:  config,
		log:     logger,
	}
}

// Run parses the front page and downloads each story it finds. Individual
// story failures are logged and counted but do not fail the run; only a
// missing output root, a parser failure or cancellation of ctx do. On
// cancellation the partial result is returned along with ctx.Err().
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()

	if err := p.archive.Check(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputRootMissing, err)
	}

	stories, err := p.parser.Parse(ctx, p.config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse front page: %w", err)
	}

	result := &RunResult{Found: len(stories)}
	unique := p.dedupe(stories, result)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.config.Concurrency)

	for _, s := range unique {
		// Go blocks while all workers are busy, so check before each launch.
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			r := p.fetcher.Fetch(ctx, s)

			mu.Lock()
			defer mu.Unlock()
			switch r.Outcome {
			case history.OutcomeDownloaded:
				result.Downloaded++
			case history.OutcomeSkipped:
				result.Skipped++
			default:
				result.Failed++
			}
			return nil
		})
	}

	// Tasks never return errors.
	_ = g.Wait()
	result.Elapsed = time.Since(started)

	if err := ctx.Err(); err != nil {
		p.log.Warn("Run cancelled",
			"downloaded", result.Downloaded,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
		return result, err
	}

	p.log.Info("Run complete",
		"found", result.Found,
		"duplicates", result.Duplicates,
		"downloaded", result.Downloaded,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"elapsed", result.Elapsed.Round(time.Millisecond),
	)

	return result, nil
}

// dedupe drops stories whose key has already been seen, keeping the first.
func (p *Pipeline) dedupe(stories []story.Story, result *RunResult) []story.Story {
	seen := make(map[story.Key]bool, len(stories))
	unique := make([]story.Story, 0, len(stories))

	for _, s := range stories {
		key := s.Key()
		if seen[key] {
			result.Duplicates++
			p.log.Warn("Skipping duplicate story", "title", s.Title, "link", s.Link, "key", key)
			continue
		}
		seen[key] = true
		unique = append(unique, s)
	}

	return unique
}
