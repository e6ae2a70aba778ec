package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/config"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

func localConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		ModelPath:            filepath.Join("..", "..", "model", "model.yaml"),
		ConfidenceThreshold:  0.55,
		UnknownCategory:      "unknown",
		GroundTruthAuthority: "secondary",
		LedgerDriver:         "sqlite",
		SQLitePath:           filepath.Join(dir, "ledger.db"),
		StorageBackend:       "localfs",
		StoragePath:          filepath.Join(dir, "objects"),
		BucketIncoming:       "incoming-docs",
		BucketClassified:     "classified-docs",
		OCRBackend:           "local",
		MaxTextChars:         10000,
		MaxUploadMB:          5,
		RecentRecords:        5,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWiresLocalPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, localConfig(t), Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Queue != nil {
		t.Fatalf("queue must stay disabled without events or RequireQueue")
	}

	res, err := app.Pipeline.Process(ctx, domain.DocumentSubmission{
		Filename:    "factura.txt",
		ContentType: "text/plain",
		Identity:    "ana",
		Body:        []byte("FACTURA de venta. Subtotal, IVA y total a pagar. Pago contra entrega."),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Status != domain.StatusProcessed {
		t.Fatalf("expected processed, got %s (%s)", res.Status, res.Summary)
	}
	if res.Gated.Category != "Facturas" {
		t.Fatalf("expected Facturas, got %+v", res.Gated)
	}

	incoming, err := app.Store.Get(ctx, "incoming-docs", "ana/factura.txt")
	if err != nil || !strings.HasPrefix(string(incoming), "FACTURA") {
		t.Fatalf("incoming artifact missing: %v", err)
	}
	classified, err := app.Store.Get(ctx, "classified-docs", res.ClassifiedRef.Key)
	if err != nil || !strings.Contains(string(classified), "category: Facturas") {
		t.Fatalf("classified artifact missing or malformed: %v %q", err, classified)
	}

	records, err := app.History.History(ctx, domain.LedgerFilter{Identity: "ana"})
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(records) != 1 || records[0].Category == nil || *records[0].Category != "Facturas" {
		t.Fatalf("unexpected ledger rows: %+v", records)
	}

	global, err := app.Metrics.Global(ctx)
	if err != nil {
		t.Fatalf("Global() error = %v", err)
	}
	if global.TotalRecords != 1 {
		t.Fatalf("expected one record in summary, got %d", global.TotalRecords)
	}

	report, err := app.Rebuild.Sweep(ctx, "")
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if report.Total != 1 || report.Processed != 1 {
		t.Fatalf("unexpected rebuild report: %+v", report)
	}
	records, _ = app.History.History(ctx, domain.LedgerFilter{Identity: "ana"})
	if len(records) != 2 {
		t.Fatalf("rebuild must append a new row, got %d rows", len(records))
	}
}

func TestNewFailsWithoutModel(t *testing.T) {
	cfg := localConfig(t)
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(context.Background(), cfg, Options{Logger: quietLogger()})
	if !domain.IsKind(err, domain.ErrFatalStartup) {
		t.Fatalf("expected fatal startup error, got %v", err)
	}
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cfg := localConfig(t)
	cfg.StorageBackend = "tape"
	if _, err := New(context.Background(), cfg, Options{Logger: quietLogger()}); err == nil {
		t.Fatalf("expected error for unsupported storage backend")
	}

	cfg = localConfig(t)
	cfg.LedgerDriver = "oracle"
	if _, err := New(context.Background(), cfg, Options{Logger: quietLogger()}); !domain.IsKind(err, domain.ErrFatalStartup) {
		t.Fatalf("expected fatal startup error for unsupported ledger driver, got %v", err)
	}
}

func TestNewServesWhenLedgerIsUnreachable(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)
	cfg.LedgerDriver = "postgres"
	cfg.PostgresDSN = "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=2"
	cfg.LedgerTimeout = 2 * time.Second

	app, err := New(ctx, cfg, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() must not fail on an unreachable ledger, got %v", err)
	}
	defer app.Close()

	res, err := app.Pipeline.Process(ctx, domain.DocumentSubmission{
		Filename:    "factura.txt",
		ContentType: "text/plain",
		Identity:    "ana",
		Body:        []byte("FACTURA de venta. Subtotal, IVA y total a pagar."),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Status != domain.StatusProcessedWithErrors {
		t.Fatalf("expected processed_with_errors, got %s (%s)", res.Status, res.Summary)
	}
	ledgerStage := stageResult(res, domain.StageLedger)
	if ledgerStage == nil || ledgerStage.Outcome != domain.OutcomeFailed || ledgerStage.Kind != domain.KindPersistenceFailure {
		t.Fatalf("expected failed ledger stage with persistence kind, got %+v", ledgerStage)
	}
	if res.Gated.Category != "Facturas" {
		t.Fatalf("classification must still succeed, got %+v", res.Gated)
	}
}

func stageResult(res *domain.ProcessResult, stage domain.Stage) *domain.StageResult {
	for i := range res.Stages {
		if res.Stages[i].Stage == stage {
			return &res.Stages[i]
		}
	}
	return nil
}

func TestSecondaryReplyFailuresDegradeProcessing(t *testing.T) {
	replies := map[string]string{
		"reported error":   `{"error":"No se pudo conectar con SMAV"}`,
		"missing category": `{"confianza":0.7}`,
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(reply))
			}))
			defer server.Close()

			ctx := context.Background()
			cfg := localConfig(t)
			cfg.SecondaryClassifierURL = server.URL
			app, err := New(ctx, cfg, Options{Logger: quietLogger()})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer app.Close()

			res, err := app.Pipeline.Process(ctx, domain.DocumentSubmission{
				Filename:    "factura.txt",
				ContentType: "text/plain",
				Identity:    "ana",
				Body:        []byte("FACTURA de venta. Subtotal, IVA y total a pagar."),
			})
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if res.Status != domain.StatusProcessedWithErrors {
				t.Fatalf("expected processed_with_errors, got %s (%s)", res.Status, res.Summary)
			}
			secondary := stageResult(res, domain.StageSecondary)
			if secondary == nil || secondary.Outcome != domain.OutcomeFailed || secondary.Kind != domain.KindExternalServiceUnavailable {
				t.Fatalf("expected failed secondary stage, got %+v", secondary)
			}
		})
	}
}
