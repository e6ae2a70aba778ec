package usecase

import (
	"sort"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

// ComputeQuality scores predictions against labels with macro averaging.
// Labels are the sorted union of both sides; a class with no predicted
// (or no true) samples scores 0 precision (or recall).
func ComputeQuality(pairs []domain.LabeledPair) domain.QualityReport {
	report := domain.QualityReport{
		Samples:   len(pairs),
		Labels:    []string{},
		Confusion: [][]int{},
		PerClass:  []domain.ClassScore{},
	}
	if len(pairs) == 0 {
		return report
	}

	index := map[string]int{}
	for _, p := range pairs {
		index[p.GroundTruth] = 0
		index[p.PrimaryPrediction] = 0
	}
	labels := make([]string, 0, len(index))
	for label := range index {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for i, label := range labels {
		index[label] = i
	}

	confusion := make([][]int, len(labels))
	for i := range confusion {
		confusion[i] = make([]int, len(labels))
	}
	correct := 0
	for _, p := range pairs {
		confusion[index[p.GroundTruth]][index[p.PrimaryPrediction]]++
		if p.GroundTruth == p.PrimaryPrediction {
			correct++
		}
	}

	perClass := make([]domain.ClassScore, len(labels))
	var sumP, sumR, sumF float64
	for i, label := range labels {
		tp := confusion[i][i]
		predicted, actual := 0, 0
		for j := range labels {
			predicted += confusion[j][i]
			actual += confusion[i][j]
		}
		fp := predicted - tp
		fn := actual - tp

		score := domain.ClassScore{Label: label, Support: actual}
		if predicted > 0 {
			score.Precision = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			score.Recall = float64(tp) / float64(actual)
		}
		if denom := 2*tp + fp + fn; denom > 0 {
			score.F1 = float64(2*tp) / float64(denom)
		}
		perClass[i] = score
		sumP += score.Precision
		sumR += score.Recall
		sumF += score.F1
	}

	n := float64(len(labels))
	report.Accuracy = float64(correct) / float64(len(pairs))
	report.Precision = sumP / n
	report.Recall = sumR / n
	report.F1 = sumF / n
	report.Labels = labels
	report.Confusion = confusion
	report.PerClass = perClass
	return report
}

// LivePairs re-runs normalization and the primary model over stored samples.
func LivePairs(engine *ClassificationEngine, normalize func(string) string, samples []domain.LabeledSample) []domain.LabeledPair {
	pairs := make([]domain.LabeledPair, 0, len(samples))
	for _, s := range samples {
		if engine.IsUnknown(s.GroundTruth) {
			continue
		}
		pred := engine.Predict(normalize(s.Text))
		pairs = append(pairs, domain.LabeledPair{GroundTruth: s.GroundTruth, PrimaryPrediction: pred.Category})
	}
	return pairs
}

// StoredPairs drops pairs whose ground truth is the unknown label.
func StoredPairs(engine *ClassificationEngine, pairs []domain.LabeledPair) []domain.LabeledPair {
	out := make([]domain.LabeledPair, 0, len(pairs))
	for _, p := range pairs {
		if engine.IsUnknown(p.GroundTruth) {
			continue
		}
		if p.PrimaryPrediction == "" {
			p.PrimaryPrediction = engine.Unknown()
		}
		out = append(out, p)
	}
	return out
}
