package main

import (
	"fmt"
	"sort"

	"github.com/pevans/newsgrab/archive"
	"github.com/spf13/cobra"
)

func newListCommand(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List downloaded stories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			a, err := archive.Open(cfg.Output.Dir)
			if err != nil {
				return err
			}

			result, err := a.List()
			if err != nil {
				return err
			}

			sort.Slice(result.Entries, func(i, j int) bool {
				return result.Entries[i].FetchedAt.After(result.Entries[j].FetchedAt)
			})

			out := cmd.OutOrStdout()
			switch format {
			case "table":
				printEntriesTable(out, result)
			case "json":
				return printJSON(out, result.Entries)
			default:
				return fmt.Errorf("unknown format: %s (must be table or json)", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")

	return cmd
}
