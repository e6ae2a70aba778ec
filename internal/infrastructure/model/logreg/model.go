// Package logreg serves a TF-IDF + logistic regression text classifier
// exported from the offline training job as a YAML (or JSON) artifact.
package logreg

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

// Artifact is the on-disk model layout.
type Artifact struct {
	Version        string         `yaml:"version"`
	Classes        []string       `yaml:"classes"`
	NgramRange     [2]int         `yaml:"ngram_range"`
	MinTokenLength int            `yaml:"min_token_length"`
	SublinearTF    bool           `yaml:"sublinear_tf"`
	Vocabulary     map[string]int `yaml:"vocabulary"`
	IDF            []float64      `yaml:"idf"`
	Coefficients   [][]float64    `yaml:"coefficients"`
	Intercepts     []float64      `yaml:"intercepts"`
}

// Model is immutable after Load and safe for concurrent Predict calls.
type Model struct {
	version     string
	classes     []string
	minN, maxN  int
	minTokenLen int
	sublinearTF bool
	vocabulary  map[string]int
	idf         []float64
	coef        [][]float64
	intercepts  []float64
}

// Load reads and validates a model artifact. Any failure is fatal for serving.
func Load(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrFatalStartup, "load model", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Model, error) {
	var art Artifact
	if err := yaml.Unmarshal(raw, &art); err != nil {
		return nil, domain.WrapError(domain.ErrFatalStartup, "decode model", err)
	}
	m, err := New(art)
	if err != nil {
		return nil, domain.WrapError(domain.ErrFatalStartup, "validate model", err)
	}
	return m, nil
}

func New(art Artifact) (*Model, error) {
	if len(art.Classes) < 2 {
		return nil, fmt.Errorf("model needs at least 2 classes, got %d", len(art.Classes))
	}
	if len(art.Vocabulary) == 0 {
		return nil, errors.New("model vocabulary is empty")
	}
	cols := len(art.IDF)
	if cols == 0 {
		return nil, errors.New("model idf vector is empty")
	}
	for term, col := range art.Vocabulary {
		if col < 0 || col >= cols {
			return nil, fmt.Errorf("vocabulary term %q maps to column %d outside [0,%d)", term, col, cols)
		}
	}

	rows := len(art.Classes)
	if rows == 2 && len(art.Coefficients) == 1 {
		rows = 1
	}
	if len(art.Coefficients) != rows {
		return nil, fmt.Errorf("coefficients have %d rows, want %d", len(art.Coefficients), rows)
	}
	for i, row := range art.Coefficients {
		if len(row) != cols {
			return nil, fmt.Errorf("coefficient row %d has %d columns, want %d", i, len(row), cols)
		}
	}
	intercepts := art.Intercepts
	if len(intercepts) == 0 {
		intercepts = make([]float64, rows)
	}
	if len(intercepts) != rows {
		return nil, fmt.Errorf("intercepts have %d entries, want %d", len(intercepts), rows)
	}

	minN, maxN := art.NgramRange[0], art.NgramRange[1]
	if minN <= 0 {
		minN = 1
	}
	if maxN < minN {
		maxN = minN
	}
	minTokenLen := art.MinTokenLength
	if minTokenLen <= 0 {
		minTokenLen = 2
	}

	classes := make([]string, len(art.Classes))
	copy(classes, art.Classes)

	return &Model{
		version:     art.Version,
		classes:     classes,
		minN:        minN,
		maxN:        maxN,
		minTokenLen: minTokenLen,
		sublinearTF: art.SublinearTF,
		vocabulary:  art.Vocabulary,
		idf:         art.IDF,
		coef:        art.Coefficients,
		intercepts:  intercepts,
	}, nil
}

func (m *Model) Version() string { return m.version }

func (m *Model) Classes() []string {
	out := make([]string, len(m.classes))
	copy(out, m.classes)
	return out
}

// Predict returns the top class and its probability mass.
func (m *Model) Predict(text string) (string, float64) {
	probs := m.PredictProba(text)
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return m.classes[best], probs[best]
}

// PredictProba returns one probability per class, in Classes() order.
func (m *Model) PredictProba(text string) []float64 {
	features := m.vectorize(text)
	scores := make([]float64, len(m.coef))
	for row, weights := range m.coef {
		z := m.intercepts[row]
		for col, v := range features {
			z += weights[col] * v
		}
		scores[row] = z
	}
	if len(scores) == 1 {
		p := sigmoid(scores[0])
		return []float64{1 - p, p}
	}
	return softmax(scores)
}

func (m *Model) vectorize(text string) map[int]float64 {
	tokens := m.tokenize(text)
	counts := make(map[int]float64)
	for n := m.minN; n <= m.maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			term := strings.Join(tokens[i:i+n], " ")
			if col, ok := m.vocabulary[term]; ok {
				counts[col]++
			}
		}
	}

	var sumSquares float64
	for col, tf := range counts {
		if m.sublinearTF {
			tf = 1 + math.Log(tf)
		}
		w := tf * m.idf[col]
		counts[col] = w
		sumSquares += w * w
	}
	if sumSquares > 0 {
		norm := math.Sqrt(sumSquares)
		for col := range counts {
			counts[col] /= norm
		}
	}
	return counts
}

func (m *Model) tokenize(text string) []string {
	fields := strings.Fields(text)
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= m.minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func softmax(scores []float64) []float64 {
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
