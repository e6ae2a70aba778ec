package logreg

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

const testModelYAML = `
version: test-1
classes: [Factura, Contrato]
ngram_range: [1, 2]
vocabulary:
  factura: 0
  compra: 1
  contrato: 2
  factura de: 3
idf: [1.0, 1.0, 1.0, 1.0]
coefficients:
  - [2.0, 1.0, -1.0, 0.0]
  - [-2.0, -1.0, 2.0, 0.0]
intercepts: [0.0, 0.0]
`

func TestPredictPicksTopClassWithMaxProbability(t *testing.T) {
	m, err := Parse([]byte(testModelYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	category, confidence := m.Predict("factura de compra")
	if category != "Factura" {
		t.Fatalf("expected Factura, got %s", category)
	}
	// x = l2([factura=1, compra=1, "factura de"=1]); z = ±3/sqrt(3)
	z := 3 / math.Sqrt(3)
	want := 1 / (1 + math.Exp(-2*z))
	if math.Abs(confidence-want) > 1e-12 {
		t.Fatalf("expected confidence %.12f, got %.12f", want, confidence)
	}

	probs := m.PredictProba("factura de compra")
	if math.Abs(probs[0]+probs[1]-1) > 1e-12 {
		t.Fatalf("probabilities do not sum to 1: %v", probs)
	}
}

func TestPredictWithoutKnownTermsFallsBackToIntercepts(t *testing.T) {
	m, err := Parse([]byte(testModelYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	category, confidence := m.Predict("zz yy")
	if category != "Factura" || confidence != 0.5 {
		t.Fatalf("expected first class at 0.5, got %s %.4f", category, confidence)
	}
}

func TestBinarySingleRowUsesSigmoid(t *testing.T) {
	m, err := New(Artifact{
		Classes:      []string{"No", "Si"},
		Vocabulary:   map[string]int{"pago": 0},
		IDF:          []float64{1},
		Coefficients: [][]float64{{3}},
		Intercepts:   []float64{-1},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	category, confidence := m.Predict("pago")
	want := 1 / (1 + math.Exp(-2.0))
	if category != "Si" || math.Abs(confidence-want) > 1e-12 {
		t.Fatalf("expected Si %.6f, got %s %.6f", want, category, confidence)
	}
}

func TestLoadReadsJSONArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	raw := `{"version":"json-1","classes":["A","B"],"ngram_range":[1,1],"vocabulary":{"alfa":0,"beta":1},` +
		`"idf":[1.5,1.5],"coefficients":[[1,-1],[-1,1]],"intercepts":[0,0]}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Version() != "json-1" || len(m.Classes()) != 2 {
		t.Fatalf("unexpected model metadata: %s %v", m.Version(), m.Classes())
	}
	if category, _ := m.Predict("beta beta"); category != "B" {
		t.Fatalf("expected B, got %s", category)
	}
}

func TestLoadRejectsShapeMismatchAsFatal(t *testing.T) {
	_, err := Parse([]byte(`
classes: [A, B, C]
vocabulary: {x: 0}
idf: [1]
coefficients: [[1], [1]]
`))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrFatalStartup) {
		t.Fatalf("expected ErrFatalStartup, got %v", err)
	}
}

func TestLoadMissingFileIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !domain.IsKind(err, domain.ErrFatalStartup) {
		t.Fatalf("expected ErrFatalStartup, got %v", err)
	}
}
