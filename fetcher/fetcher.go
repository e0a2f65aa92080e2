// Package fetcher downloads a single story into the archive.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pevans/newsgrab/archive"
	"github.com/pevans/newsgrab/history"
	"github.com/pevans/newsgrab/story"
	"golang.org/x/net/html/charset"
)

// Default option values.
const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 10 * 1024 * 1024 // 10 MB
)

// Fetch errors.
var (
	ErrHTTPStatus   = errors.New("unexpected HTTP status")
	ErrBodyTooLarge = errors.New("response body exceeds limit")
)

// Recorder receives every download attempt. The history store implements it.
type Recorder interface {
	Record(ctx context.Context, a history.Attempt) error
}

// Options controls a Fetcher.
type Options struct {
	Timeout      time.Duration // per-request deadline
	UserAgent    string
	MaxBodyBytes int64

	// Strict treats non-2xx responses and bodies over MaxBodyBytes as
	// failures, so they are retried on the next run. Otherwise the response
	// is archived with its status code, and oversized bodies are cut at
	// MaxBodyBytes.
	Strict bool
}

// Result describes what happened to one story.
type Result struct {
	Story      story.Story
	Key        story.Key
	Outcome    history.Outcome
	StatusCode int
	Err        error
	Duration   time.Duration
}

// Fetcher downloads stories into an archive. It is safe for concurrent use.
type Fetcher struct {
	archive  *archive.Archive
	client   *http.Client
	opts     Options
	recorder Recorder
	log      *log.Logger
}

// New creates a fetcher writing into a and issuing requests through client.
func New(a *archive.Archive, client *http.Client, opts Options, logger *log.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	return &Fetcher{
		archive: a,
		client:  client,
		opts:    opts,
		log:     logger,
	}
}

// SetRecorder attaches a recorder that is told about every attempt.
func (f *Fetcher) SetRecorder(r Recorder) {
	f.recorder = r
}

// Fetch downloads s unless it is already in the archive. It never returns an
// error: failures are logged, recorded, and reported in the Result so that
// one bad story cannot affect the others.
func (f *Fetcher) Fetch(ctx context.Context, s story.Story) Result {
	started := time.Now()
	key := s.Key()
	logger := f.log.With("title", s.Title)

	result := Result{Story: s, Key: key}

	if f.archive.Complete(key) {
		logger.Info("Article already downloaded", "key", key)
		result.Outcome = history.OutcomeSkipped
		result.Duration = time.Since(started)
		f.record(ctx, result, started)
		return result
	}

	if err := f.download(ctx, s, key, &result, logger); err != nil {
		result.Outcome = history.OutcomeFailed
		result.Err = err
		logger.Error("Unexpected error downloading article",
			"link", s.Link,
			"error_type", errorType(err),
			"error", err.Error(),
		)
	} else {
		result.Outcome = history.OutcomeDownloaded
		logger.Info("Article has been successfully downloaded", "key", key)
	}

	result.Duration = time.Since(started)
	f.record(ctx, result, started)

	return result
}

// download prepares the entry directory, fetches the page and saves it.
func (f *Fetcher) download(
	ctx context.Context,
	s story.Story,
	key story.Key,
	result *Result,
	logger *log.Logger,
) error {
	if err := f.archive.Prepare(key); err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.Link, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("http fetch: %w", err)
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("Status", "status", resp.StatusCode, "link", s.Link)
		if f.opts.Strict {
			return fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
		}
	} else {
		logger.Info("Status", "status", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")

	body, truncated, err := readText(resp.Body, contentType, f.opts.MaxBodyBytes, f.opts.Strict)
	if err != nil {
		return err
	}
	if truncated {
		logger.Warn("Article body truncated", "link", s.Link, "limit", f.opts.MaxBodyBytes)
	}

	entry := archive.Entry{
		Key:         key,
		Title:       s.Title,
		Link:        s.Link,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Truncated:   truncated,
		FetchedAt:   time.Now().UTC(),
	}

	return f.archive.Save(entry, body)
}

// readText reads at most limit bytes from r and decodes them to UTF-8
// according to the charset in contentType (or sniffed from the body). A body
// longer than limit is an error when strict is set and is cut at limit
// otherwise; truncated reports the latter.
func readText(r io.Reader, contentType string, limit int64, strict bool) (text []byte, truncated bool, err error) {
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(raw)) > limit {
		if strict {
			return nil, false, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
		}
		raw = raw[:limit]
		truncated = true
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, false, fmt.Errorf("decode response body: %w", err)
	}

	text, err = io.ReadAll(utf8Reader)
	if err != nil {
		return nil, false, fmt.Errorf("decode response body: %w", err)
	}

	return text, truncated, nil
}

// record hands the attempt to the recorder, if any. Recorder failures are
// logged and otherwise ignored.
func (f *Fetcher) record(ctx context.Context, result Result, started time.Time) {
	if f.recorder == nil {
		return
	}

	attempt := history.Attempt{
		Key:        result.Key,
		Title:      result.Story.Title,
		Link:       result.Story.Link,
		Outcome:    result.Outcome,
		StatusCode: result.StatusCode,
		StartedAt:  started,
		Duration:   result.Duration,
	}
	if result.Err != nil {
		msg := result.Err.Error()
		attempt.Error = &msg
	}

	// Record even when the run is being cancelled.
	if err := f.recorder.Record(context.WithoutCancel(ctx), attempt); err != nil {
		f.log.Warn("Failed to record attempt", "link", result.Story.Link, "error", err.Error())
	}
}

// sentinels names the package-level errors a failure may wrap. Their type is
// always *errors.errorString, so they are reported by name instead.
var sentinels = []struct {
	err  error
	name string
}{
	{ErrHTTPStatus, "fetcher.ErrHTTPStatus"},
	{ErrBodyTooLarge, "fetcher.ErrBodyTooLarge"},
	{archive.ErrRootMissing, "archive.ErrRootMissing"},
	{archive.ErrInvalidKey, "archive.ErrInvalidKey"},
}

// errorType names the error underneath our own wrapping, e.g. "*url.Error",
// "*fs.PathError" or "fetcher.ErrHTTPStatus".
func errorType(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.name
		}
	}
	if inner := errors.Unwrap(err); inner != nil {
		return fmt.Sprintf("%T", inner)
	}
	return fmt.Sprintf("%T", err)
}
