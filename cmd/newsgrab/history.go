package main

import (
	"errors"
	"fmt"

	"github.com/pevans/newsgrab/config"
	"github.com/pevans/newsgrab/history"
	"github.com/spf13/cobra"
)

var errHistoryDisabled = errors.New("download history is disabled (set --history-dsn or history.dsn)")

func newHistoryCommand(flags *globalFlags) *cobra.Command {
	var (
		outcome string
		limit   int
		format  string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded download attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			filter := history.Filter{Limit: limit}
			if outcome != "" {
				o := history.Outcome(outcome)
				if !o.Valid() {
					return fmt.Errorf("%w: %s", history.ErrInvalidOutcome, outcome)
				}
				filter.Outcome = &o
			}

			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return errHistoryDisabled
			}
			defer store.Close()

			attempts, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "table":
				counts, err := store.Counts(cmd.Context())
				if err != nil {
					return err
				}
				printAttemptsTable(out, attempts, counts)
			case "json":
				return printJSON(out, attempts)
			default:
				return fmt.Errorf("unknown format: %s (must be table or json)", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outcome, "outcome", "", "only show attempts with this outcome (downloaded, skipped, failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of attempts to show (0 for all)")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")

	return cmd
}

// openHistory opens the history store named by the config. It returns nil
// when history is disabled.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if cfg.History.DSN == "" {
		return nil, nil
	}

	store, err := history.NewStore(cfg.History.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return store, nil
}
