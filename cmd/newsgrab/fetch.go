package main

import (
	"fmt"
	"net/http"

	"github.com/pevans/newsgrab/archive"
	"github.com/pevans/newsgrab/config"
	"github.com/pevans/newsgrab/fetcher"
	"github.com/pevans/newsgrab/frontpage"
	"github.com/pevans/newsgrab/pipeline"
	"github.com/spf13/cobra"
)

func newFetchCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the front page and download new stories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, flags)
		},
	}
}

// runFetch performs one pipeline run. Individual story failures are logged
// but do not make the command fail.
func runFetch(cmd *cobra.Command, flags *globalFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	a, err := archive.New(cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("failed to open output directory: %w", err)
	}

	client := &http.Client{}

	parser := frontpage.NewParser(client, frontpage.Options{
		Mode:      cfg.FrontPage.Mode,
		Selector:  cfg.FrontPage.Selector,
		UserAgent: cfg.Fetch.UserAgent,
	}, logger)

	f := fetcher.New(a, client, fetcherOptions(cfg), logger)

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		f.SetRecorder(store)
	}

	p := pipeline.New(a, parser, f, pipeline.Config{
		URL:         cfg.FrontPage.URL,
		Concurrency: cfg.Fetch.Concurrency,
	}, logger)

	if _, err := p.Run(cmd.Context()); err != nil {
		return err
	}

	return nil
}

func fetcherOptions(cfg *config.Config) fetcher.Options {
	return fetcher.Options{
		Timeout:      cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		Strict:       cfg.Fetch.Strict,
	}
}
