package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/bootstrap"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/config"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/observability/logging"
)

const serviceName = "docctl"

var logLevel string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docctl",
		Short: "Administrative tasks for the document classifier",
		Long: `docctl operates on the classification ledger and artifact store:
re-run stored uploads, export history, evaluate model quality and
inspect raw model probabilities.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			_ = godotenv.Load()
			level := logLevel
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, level))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")

	root.AddCommand(rebuildCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(evaluateCmd())
	root.AddCommand(classifyCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp wires the full stack; callers must Close it.
func openApp(ctx context.Context, requireQueue bool) (*bootstrap.App, error) {
	app, err := bootstrap.New(ctx, config.Load(), bootstrap.Options{
		Logger:       slog.Default(),
		RequireQueue: requireQueue,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}
