package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

func TestClassifyPrintsProbabilities(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"classify", "--model", filepath.Join("..", "..", "model", "model.yaml"), "Historia clínica del paciente: diagnóstico y tratamiento"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "prediction: Salud") {
		t.Fatalf("expected Salud prediction, got:\n%s", got)
	}
	for _, class := range []string{"Contratos", "Facturas", "RecursosHumanos", "Salud"} {
		if !strings.Contains(got, class) {
			t.Fatalf("expected %s row in output:\n%s", class, got)
		}
	}
}

func TestClassifyInputRequiresText(t *testing.T) {
	if _, err := classifyInput(nil, "", strings.NewReader("")); err == nil {
		t.Fatalf("expected error without input")
	}
	if _, err := classifyInput(nil, "-", strings.NewReader("   ")); err == nil {
		t.Fatalf("expected error for blank stdin")
	}
	text, err := classifyInput(nil, "-", strings.NewReader(" contrato de arrendamiento \n"))
	if err != nil || text != "contrato de arrendamiento" {
		t.Fatalf("unexpected stdin result %q %v", text, err)
	}
}

func TestParseDateFlag(t *testing.T) {
	ts, err := parseDateFlag("2026-03-01", "since")
	if err != nil || ts == nil || ts.Day() != 1 {
		t.Fatalf("unexpected date parse %v %v", ts, err)
	}
	if ts, err := parseDateFlag("", "since"); err != nil || ts != nil {
		t.Fatalf("empty flag must be unset, got %v %v", ts, err)
	}
	if _, err := parseDateFlag("March", "until"); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestPrintQualityRendersConfusionMatrix(t *testing.T) {
	var out bytes.Buffer
	err := printQuality(&out, "stored", domain.QualityReport{
		Samples:   3,
		Accuracy:  2.0 / 3.0,
		Labels:    []string{"Facturas", "Salud"},
		Confusion: [][]int{{1, 1}, {0, 1}},
		PerClass:  []domain.ClassScore{{Label: "Facturas", Precision: 1, Recall: 0.5, F1: 2.0 / 3.0, Support: 2}},
	})
	if err != nil {
		t.Fatalf("printQuality() error = %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "accuracy: 0.6667") || !strings.Contains(got, "TRUTH \\ PRED") {
		t.Fatalf("unexpected output:\n%s", got)
	}
}
