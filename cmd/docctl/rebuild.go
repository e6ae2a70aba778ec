package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func rebuildCmd() *cobra.Command {
	var (
		prefix string
		async  bool
	)
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Re-run the pipeline for every stored incoming upload",
		Long: `rebuild lists the incoming bucket and runs each object through OCR,
classification and the ledger again. Every re-run appends new ledger rows.

With --async the keys are published to the reprocess subject instead,
for cmd/worker instances to consume.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, async)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			if async {
				published, err := app.Rebuild.Enqueue(ctx, prefix)
				if err != nil {
					return fmt.Errorf("enqueue rebuild: %w", err)
				}
				fmt.Fprintf(out, "enqueued %d incoming artifacts\n", published)
				return nil
			}

			report, err := app.Rebuild.Sweep(ctx, prefix)
			if err != nil {
				return fmt.Errorf("rebuild sweep: %w", err)
			}
			fmt.Fprintf(out, "total: %d\nprocessed: %d\nprocessed_with_errors: %d\nfailed: %d\n",
				report.Total, report.Processed, report.Degraded, report.Failed)
			for _, msg := range report.Errors {
				fmt.Fprintf(out, "  %s\n", msg)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only rebuild keys with this prefix (e.g. an identity)")
	cmd.Flags().BoolVar(&async, "async", false, "publish keys to NATS instead of processing in-process")
	return cmd
}
