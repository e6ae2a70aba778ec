package usecase

import (
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/textnorm"
)

func referencePairs() []domain.LabeledPair {
	truth := []string{"A", "A", "A", "A", "B", "B", "B", "C", "C", "C"}
	pred := []string{"A", "A", "B", "C", "B", "B", "A", "C", "C", "B"}
	out := make([]domain.LabeledPair, len(truth))
	for i := range truth {
		out[i] = domain.LabeledPair{GroundTruth: truth[i], PrimaryPrediction: pred[i]}
	}
	return out
}

// referenceMacro is an independent per-label loop over the raw pairs.
func referenceMacro(pairs []domain.LabeledPair) (acc, p, r, f float64) {
	seen := map[string]bool{}
	for _, pair := range pairs {
		seen[pair.GroundTruth] = true
		seen[pair.PrimaryPrediction] = true
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	correct := 0
	for _, pair := range pairs {
		if pair.GroundTruth == pair.PrimaryPrediction {
			correct++
		}
	}
	for _, l := range labels {
		tp, fp, fn := 0, 0, 0
		for _, pair := range pairs {
			switch {
			case pair.GroundTruth == l && pair.PrimaryPrediction == l:
				tp++
			case pair.PrimaryPrediction == l:
				fp++
			case pair.GroundTruth == l:
				fn++
			}
		}
		var prec, rec, f1 float64
		if tp+fp > 0 {
			prec = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			rec = float64(tp) / float64(tp+fn)
		}
		if 2*tp+fp+fn > 0 {
			f1 = float64(2*tp) / float64(2*tp+fp+fn)
		}
		p += prec
		r += rec
		f += f1
	}
	n := float64(len(labels))
	return float64(correct) / float64(len(pairs)), p / n, r / n, f / n
}

func TestComputeQualityReferenceDataset(t *testing.T) {
	report := ComputeQuality(referencePairs())

	acc, p, r, f := referenceMacro(referencePairs())
	if report.Accuracy != acc || report.Precision != p || report.Recall != r || report.F1 != f {
		t.Fatalf("report %+v differs from reference acc=%v p=%v r=%v f=%v", report, acc, p, r, f)
	}

	const eps = 1e-12
	checks := map[string][2]float64{
		"accuracy":  {report.Accuracy, 0.6},
		"precision": {report.Precision, 11.0 / 18.0},
		"recall":    {report.Recall, 11.0 / 18.0},
		"f1":        {report.F1, 38.0 / 63.0},
	}
	for name, v := range checks {
		if math.Abs(v[0]-v[1]) > eps {
			t.Fatalf("%s = %v, want %v", name, v[0], v[1])
		}
	}

	if strings.Join(report.Labels, ",") != "A,B,C" {
		t.Fatalf("unexpected labels: %v", report.Labels)
	}
	want := [][]int{{2, 1, 1}, {1, 2, 0}, {0, 1, 2}}
	for i := range want {
		for j := range want[i] {
			if report.Confusion[i][j] != want[i][j] {
				t.Fatalf("confusion = %v, want %v", report.Confusion, want)
			}
		}
	}
	if report.Samples != 10 || report.PerClass[0].Support != 4 {
		t.Fatalf("unexpected samples/support: %+v", report)
	}
}

func TestComputeQualityPredictionOnlyLabel(t *testing.T) {
	report := ComputeQuality([]domain.LabeledPair{
		{GroundTruth: "A", PrimaryPrediction: "A"},
		{GroundTruth: "A", PrimaryPrediction: "unknown"},
	})
	if len(report.Labels) != 2 || report.Labels[1] != "unknown" {
		t.Fatalf("expected prediction-only label in union, got %v", report.Labels)
	}
	unknown := report.PerClass[1]
	if unknown.Precision != 0 || unknown.Recall != 0 || unknown.F1 != 0 {
		t.Fatalf("expected zero scores for never-true label, got %+v", unknown)
	}
	if report.Accuracy != 0.5 {
		t.Fatalf("accuracy = %v", report.Accuracy)
	}
}

func TestComputeQualityEmpty(t *testing.T) {
	report := ComputeQuality(nil)
	if report.Samples != 0 || report.Accuracy != 0 || len(report.Labels) != 0 {
		t.Fatalf("unexpected empty report: %+v", report)
	}
}

func TestLivePairsSkipsUnknownTruth(t *testing.T) {
	model := &modelFake{answers: map[string]domain.Classification{"factura": {Category: "Factura", Confidence: 0.9}}}
	engine := newTestEngine(t, model)

	pairs := LivePairs(engine, textnorm.Normalize, []domain.LabeledSample{
		{Text: "FACTURA 12", GroundTruth: "Factura", PrimaryPrediction: "Contrato"},
		{Text: "otro", GroundTruth: "unknown"},
		{Text: "", GroundTruth: "Contrato"},
	})
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %+v", pairs)
	}
	if pairs[0].PrimaryPrediction != "Factura" || pairs[1].PrimaryPrediction != "unknown" {
		t.Fatalf("expected live predictions, got %+v", pairs)
	}
}
