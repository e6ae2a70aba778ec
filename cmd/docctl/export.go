package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

func exportCmd() *cobra.Command {
	var (
		out, user, category, since, until string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write ledger history to an XLSX workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := domain.LedgerFilter{Identity: user, Category: category}
			var err error
			if filter.Since, err = parseDateFlag(since, "since"); err != nil {
				return err
			}
			if filter.Until, err = parseDateFlag(until, "until"); err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()

			workbook, err := app.History.Export(ctx, filter)
			if err != nil {
				return fmt.Errorf("export history: %w", err)
			}
			if err := os.WriteFile(out, workbook, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(workbook))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "history.xlsx", "output file")
	cmd.Flags().StringVar(&user, "user", "", "filter by identity")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&since, "since", "", "lower bound, RFC3339 or YYYY-MM-DD")
	cmd.Flags().StringVar(&until, "until", "", "upper bound, RFC3339 or YYYY-MM-DD")
	return cmd
}

func parseDateFlag(raw, name string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("--%s: expected RFC3339 or YYYY-MM-DD, got %q", name, raw)
}
