package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/pevans/newsgrab/frontpage"
	"github.com/pevans/newsgrab/logging"
)

// Default configuration values.
const (
	DefaultURL          = "https://news.ycombinator.com/"
	DefaultMode         = ModeHTML
	DefaultSelector     = "a.storylink"
	DefaultOutputDir    = "news"
	DefaultConcurrency  = 8
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "newsgrab/1.0"
	DefaultMaxBodyBytes = 10 * 1024 * 1024 // 10 MB
	DefaultLogLevel     = "info"
	DefaultServerAddr   = "localhost:8082"
)

// Front page modes.
const (
	ModeHTML = frontpage.ModeHTML
	ModeFeed = frontpage.ModeFeed
)

// Configuration validation errors.
var (
	ErrMissingURL          = errors.New("front_page.url is required")
	ErrInvalidURL          = errors.New("front_page.url must be an absolute http or https URL")
	ErrInvalidMode         = errors.New("front_page.mode must be 'html' or 'feed'")
	ErrMissingSelector     = errors.New("front_page.selector is required in html mode")
	ErrMissingOutput       = errors.New("output.dir is required")
	ErrInvalidConcurrency  = errors.New("fetch.concurrency must be at least 1")
	ErrInvalidTimeout      = errors.New("fetch.timeout must be positive")
	ErrInvalidMaxBodyBytes = errors.New("fetch.max_body_bytes must be positive")
	ErrInvalidLogLevel     = errors.New("log.level must be one of: debug, info, warn, error")
)

// Config is the complete newsgrab configuration.
type Config struct {
	FrontPage FrontPageConfig `yaml:"front_page" json:"front_page"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Fetch     FetchConfig     `yaml:"fetch" json:"fetch"`
	History   HistoryConfig   `yaml:"history" json:"history"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// FrontPageConfig describes where stories come from.
type FrontPageConfig struct {
	URL      string `yaml:"url" json:"url"`
	Mode     string `yaml:"mode" json:"mode"` // "html" or "feed"
	Selector string `yaml:"selector" json:"selector"`
}

// OutputConfig describes the archive root.
type OutputConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// FetchConfig controls the download stage.
type FetchConfig struct {
	Concurrency  int           `yaml:"concurrency" json:"concurrency"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" json:"max_body_bytes"`

	// Strict fails (and later retries) non-2xx responses and oversized
	// bodies instead of archiving them.
	Strict bool `yaml:"strict" json:"strict"`
}

// HistoryConfig points at the download history database. An empty DSN
// disables history.
type HistoryConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		FrontPage: FrontPageConfig{
			URL:      DefaultURL,
			Mode:     DefaultMode,
			Selector: DefaultSelector,
		},
		Output: OutputConfig{Dir: DefaultOutputDir},
		Fetch: FetchConfig{
			Concurrency:  DefaultConcurrency,
			Timeout:      DefaultTimeout,
			UserAgent:    DefaultUserAgent,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		Log:    LogConfig{Level: DefaultLogLevel},
		Server: ServerConfig{Addr: DefaultServerAddr},
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.FrontPage.URL == "" {
		return ErrMissingURL
	}

	u, err := url.Parse(c.FrontPage.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidURL, c.FrontPage.URL)
	}

	switch c.FrontPage.Mode {
	case ModeHTML:
		if c.FrontPage.Selector == "" {
			return ErrMissingSelector
		}
	case ModeFeed:
	default:
		return ErrInvalidMode
	}

	if c.Output.Dir == "" {
		return ErrMissingOutput
	}
	if c.Fetch.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Fetch.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return ErrInvalidMaxBodyBytes
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return ErrInvalidLogLevel
	}

	return nil
}
