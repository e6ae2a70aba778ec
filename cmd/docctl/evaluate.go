package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

func evaluateCmd() *cobra.Command {
	var stored bool
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Compute model quality against ledger ground truth",
		Long: `evaluate re-runs the loaded model over every ledger row that carries a
ground-truth label and prints accuracy, macro precision/recall/F1 and the
confusion matrix. With --stored the predictions recorded at ingest time are
compared instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Metrics.Quality(ctx, !stored)
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}
			mode := "live"
			if stored {
				mode = "stored"
			}
			return printQuality(cmd.OutOrStdout(), mode, report)
		},
	}
	cmd.Flags().BoolVar(&stored, "stored", false, "use stored primary predictions instead of re-running inference")
	return cmd
}

func printQuality(out io.Writer, mode string, report domain.QualityReport) error {
	fmt.Fprintf(out, "mode: %s\nsamples: %d\naccuracy: %.4f\nprecision_macro: %.4f\nrecall_macro: %.4f\nf1_macro: %.4f\n\n",
		mode, report.Samples, report.Accuracy, report.Precision, report.Recall, report.F1)
	if report.Samples == 0 {
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tPRECISION\tRECALL\tF1\tSUPPORT")
	for _, c := range report.PerClass {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintln(w)

	fmt.Fprint(w, "TRUTH \\ PRED")
	for _, label := range report.Labels {
		fmt.Fprintf(w, "\t%s", label)
	}
	fmt.Fprintln(w)
	for i, row := range report.Confusion {
		fmt.Fprint(w, report.Labels[i])
		for _, n := range row {
			fmt.Fprintf(w, "\t%d", n)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}
