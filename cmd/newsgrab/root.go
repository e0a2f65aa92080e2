package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pevans/newsgrab/config"
	"github.com/pevans/newsgrab/logging"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "newsgrab.yaml"

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configFile  string
	url         string
	output      string
	concurrency int
	timeout     time.Duration
	logLevel    string
	historyDSN  string
}

// newRootCommand builds the newsgrab command tree. Running it with no
// subcommand is the same as running "fetch".
func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "newsgrab",
		Short: "Download the stories linked from a news front page",
		Long: `newsgrab reads a news front page, finds the story links on it, and saves
each linked page under the output directory. Stories already saved are
skipped, so running it again only fetches what is new.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", defaultConfigFile, "config file")
	pf.StringVar(&flags.url, "url", "", "front page URL (default "+config.DefaultURL+")")
	pf.StringVar(&flags.output, "output", "", "output directory (default "+config.DefaultOutputDir+")")
	pf.IntVar(&flags.concurrency, "concurrency", 0, "maximum concurrent downloads")
	pf.DurationVar(&flags.timeout, "timeout", 0, "per-request timeout")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.historyDSN, "history-dsn", "", "download history database (empty disables history)")

	root.AddCommand(
		newFetchCommand(flags),
		newListCommand(flags),
		newHistoryCommand(flags),
		newServeCommand(flags),
	)

	return root
}

// loadConfig reads the config file and environment, then applies any flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("url") {
		cfg.FrontPage.URL = flags.url
	}
	if changed("output") {
		cfg.Output.Dir = flags.output
	}
	if changed("concurrency") {
		cfg.Fetch.Concurrency = flags.concurrency
	}
	if changed("timeout") {
		cfg.Fetch.Timeout = flags.timeout
	}
	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if changed("history-dsn") {
		cfg.History.DSN = flags.historyDSN
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// newLogger creates the process logger. Logs go to stderr so that command
// output on stdout stays clean.
func newLogger(cfg *config.Config) (*log.Logger, error) {
	return logging.New(os.Stderr, cfg.Log.Level)
}
