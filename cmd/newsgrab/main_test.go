package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/newsgrab/archive"
	"github.com/pevans/newsgrab/config"
	"github.com/pevans/newsgrab/history"
	"github.com/pevans/newsgrab/logging"
	"github.com/pevans/newsgrab/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Test helper: run the command tree with args and capture stdout
func runCommand(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// Test helper: a front page with two stories, one linking to a server that
// is no longer listening
func setupFrontPage(t *testing.T) *httptest.Server {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL + "/missing"
	dead.Close()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprintf(w, `<html><body>
				<a class="storylink" href="%s/first">First Story</a>
				<a class="storylink" href="%s">Missing Story</a>
			</body></html>`, server.URL, deadURL)
		case "/first":
			fmt.Fprint(w, "first body")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchCommand(t *testing.T) {
	server := setupFrontPage(t)
	dir := t.TempDir()
	output := filepath.Join(dir, "news")
	dsn := filepath.Join(dir, "history.db")

	_, err := runCommand(t, "fetch",
		"--config", filepath.Join(dir, "none.yaml"),
		"--url", server.URL+"/",
		"--output", output,
		"--history-dsn", dsn,
		"--log-level", "error",
	)
	require.NoError(t, err, "story failures must not fail the command")

	a, err := archive.Open(output)
	require.NoError(t, err)

	body, err := a.Body(story.KeyFor("First Story"))
	require.NoError(t, err)
	assert.Equal(t, "first body", string(body))
	assert.False(t, a.Complete(story.KeyFor("Missing Story")))

	store, err := history.NewStore(dsn)
	require.NoError(t, err)
	defer store.Close()

	counts, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[history.OutcomeDownloaded])
	assert.Equal(t, 1, counts[history.OutcomeFailed])
}

// TestRootCommandRunsFetch verifies the bare command behaves like fetch
func TestRootCommandRunsFetch(t *testing.T) {
	server := setupFrontPage(t)
	output := filepath.Join(t.TempDir(), "news")

	_, err := runCommand(t, "--url", server.URL+"/", "--output", output, "--log-level", "error")
	require.NoError(t, err)

	a, err := archive.Open(output)
	require.NoError(t, err)
	assert.True(t, a.Complete(story.KeyFor("First Story")))
}

func TestFetchCommand_FrontPageFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := runCommand(t, "fetch",
		"--url", server.URL,
		"--output", filepath.Join(t.TempDir(), "news"),
		"--log-level", "error",
	)
	assert.Error(t, err)
}

func TestFetchCommand_InvalidConfig(t *testing.T) {
	_, err := runCommand(t, "fetch", "--concurrency", "0", "--output", t.TempDir())
	assert.ErrorIs(t, err, config.ErrInvalidConcurrency)
}

// TestLoadConfig_Precedence verifies flags beat env, which beats the file
func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "newsgrab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
front_page:
  url: https://file.example.com/
output:
  dir: from-file
fetch:
  concurrency: 3
  timeout: 5s
`), 0o644))

	t.Setenv(config.EnvOutput, "from-env")
	t.Setenv(config.EnvURL, "https://env.example.com/")

	flags := &globalFlags{}
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", path,
		"--url", "https://flag.example.com/",
	}))
	flags.configFile = path
	flags.url = "https://flag.example.com/"

	cfg, err := loadConfig(cmd, flags)
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example.com/", cfg.FrontPage.URL)
	assert.Equal(t, "from-env", cfg.Output.Dir)
	assert.Equal(t, 3, cfg.Fetch.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
}

func TestListCommand(t *testing.T) {
	output := t.TempDir()
	a, err := archive.Open(output)
	require.NoError(t, err)

	key := story.KeyFor("Listed Story")
	require.NoError(t, a.Prepare(key))
	require.NoError(t, a.Save(archive.Entry{
		Key:        key,
		Title:      "Listed Story",
		Link:       "https://example.com/listed",
		StatusCode: 200,
		FetchedAt:  time.Now(),
	}, []byte("body")))
	require.NoError(t, a.Prepare(story.KeyFor("Half Done")))

	out, err := runCommand(t, "list", "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Listed Story")
	assert.Contains(t, out, "https://example.com/listed")
	assert.Contains(t, out, "1 incomplete")

	out, err = runCommand(t, "list", "--output", output, "--format", "json")
	require.NoError(t, err)

	var entries []archive.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, key, entries[0].Key)
}

func TestListCommand_MissingOutput(t *testing.T) {
	_, err := runCommand(t, "list", "--output", filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, archive.ErrRootMissing)
}

func TestHistoryCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")
	store, err := history.NewStore(dsn)
	require.NoError(t, err)

	msg := "connection refused"
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, history.Attempt{
		Key: story.KeyFor("Good"), Title: "Good", Link: "https://example.com/good",
		Outcome: history.OutcomeDownloaded, StatusCode: 200, StartedAt: time.Now(),
	}))
	require.NoError(t, store.Record(ctx, history.Attempt{
		Key: story.KeyFor("Bad"), Title: "Bad", Link: "https://example.com/bad",
		Outcome: history.OutcomeFailed, Error: &msg, StartedAt: time.Now(),
	}))
	require.NoError(t, store.Close())

	out, err := runCommand(t, "history", "--history-dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "Downloaded: 1 | Skipped: 0 | Failed: 1")
	assert.Contains(t, out, "Good")
	assert.Contains(t, out, "connection refused")

	out, err = runCommand(t, "history", "--history-dsn", dsn, "--outcome", "failed", "--format", "json")
	require.NoError(t, err)

	var attempts []history.Attempt
	require.NoError(t, json.Unmarshal([]byte(out), &attempts))
	require.Len(t, attempts, 1)
	assert.Equal(t, "Bad", attempts[0].Title)
}

func TestHistoryCommand_Disabled(t *testing.T) {
	t.Setenv(config.EnvHistoryDSN, "")
	_, err := runCommand(t, "history")
	assert.ErrorIs(t, err, errHistoryDisabled)
}

func TestHistoryCommand_InvalidOutcome(t *testing.T) {
	_, err := runCommand(t, "history", "--outcome", "lost")
	assert.ErrorIs(t, err, history.ErrInvalidOutcome)
}

// TestNewRouter verifies every API is mounted under /api/v1
func TestNewRouter(t *testing.T) {
	a, err := archive.Open(t.TempDir())
	require.NoError(t, err)

	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	router := newRouter(config.Default(), a, store, logging.Discard())

	for _, path := range []string{"/api/v1/entries", "/api/v1/attempts", "/api/v1/config"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestNewRouter_WithoutHistory(t *testing.T) {
	a, err := archive.Open(t.TempDir())
	require.NoError(t, err)

	router := newRouter(config.Default(), a, nil, logging.Discard())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/attempts", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), logging.Discard())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
