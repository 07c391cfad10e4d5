// Package similarity scores how alike two business profiles are. Scores are
// a weighted sum of industry, size, product and export-experience sub-scores
// and always fall in [0, 1]. The engine is pure: no I/O, no errors, and
// Similarity(a, b) == Similarity(b, a).
package similarity

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

// Sub-score constants.
const (
	industryRelatedScore = 0.5

	ordinalExact    = 1.0
	ordinalAdjacent = 0.7
	ordinalDistant  = 0.3

	categoryWeight    = 0.6
	nameWeight        = 0.2
	descriptionWeight = 0.2
)

// IndustryRelations answers whether two industries are related. It must be
// symmetric.
type IndustryRelations interface {
	Related(a, b string) bool
}

// ProductAggregation selects how pairwise product scores are combined.
type ProductAggregation string

const (
	// BestMatch averages, in both directions, each product's best match in
	// the other list. Identical product lists score 1.
	BestMatch ProductAggregation = "best_match"
	// CartesianMean averages every pair in the Cartesian product.
	CartesianMean ProductAggregation = "cartesian_mean"
)

// IsValid reports whether a is a supported aggregation.
func (a ProductAggregation) IsValid() bool {
	return a == BestMatch || a == CartesianMean
}

// ParseProductAggregation parses a configuration value.
func ParseProductAggregation(s string) (ProductAggregation, error) {
	a := ProductAggregation(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", errors.Newf(errors.ErrCodeValidation, "unsupported product aggregation %q", s)
	}
	return a, nil
}

// Weights are the sub-score weights.
type Weights struct {
	Industry   float64
	Size       float64
	Product    float64
	Experience float64
}

// DefaultWeights returns industry 0.3, size 0.2, product 0.4, experience 0.1.
func DefaultWeights() Weights {
	return Weights{Industry: 0.3, Size: 0.2, Product: 0.4, Experience: 0.1}
}

// Validate requires each weight in [0, 1] and a total of 1.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Industry, w.Size, w.Product, w.Experience} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return errors.New(errors.ErrCodeSimilarityWeightsInvalid, "weights must be in [0, 1]")
		}
	}
	sum := w.Industry + w.Size + w.Product + w.Experience
	if math.Abs(sum-1) > 1e-9 {
		return errors.New(errors.ErrCodeSimilarityWeightsInvalid, "weights must sum to 1").
			WithDetail(fmt.Sprintf("sum=%v", sum))
	}
	return nil
}

// Breakdown exposes the sub-scores behind a similarity value.
type Breakdown struct {
	Industry   float64 `json:"industry"`
	Size       float64 `json:"size"`
	Product    float64 `json:"product"`
	Experience float64 `json:"experience"`
	Total      float64 `json:"total"`
}

// Engine computes profile similarity. It is immutable after construction
// and safe for concurrent use.
type Engine struct {
	weights     Weights
	aggregation ProductAggregation
	relations   IndustryRelations
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights overrides the default weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithAggregation overrides the product aggregation mode.
func WithAggregation(a ProductAggregation) Option {
	return func(e *Engine) { e.aggregation = a }
}

type noRelations struct{}

func (noRelations) Related(string, string) bool { return false }

// NewEngine builds an Engine. A nil relations table means no industries are
// related.
func NewEngine(relations IndustryRelations, opts ...Option) (*Engine, error) {
	if relations == nil {
		relations = noRelations{}
	}
	e := &Engine{
		weights:     DefaultWeights(),
		aggregation: BestMatch,
		relations:   relations,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.weights.Validate(); err != nil {
		return nil, err
	}
	if !e.aggregation.IsValid() {
		return nil, errors.Newf(errors.ErrCodeValidation, "unsupported product aggregation %q", e.aggregation)
	}
	return e, nil
}

// Weights returns the configured weights.
func (e *Engine) Weights() Weights { return e.weights }

// Similarity returns the weighted similarity of a and b in [0, 1]. Nil
// profiles score 0.
func (e *Engine) Similarity(a, b *business.Profile) float64 {
	return e.Explain(a, b).Total
}

// Explain returns the sub-scores along with the weighted total.
func (e *Engine) Explain(a, b *business.Profile) Breakdown {
	if a == nil || b == nil {
		return Breakdown{}
	}
	bd := Breakdown{
		Industry:   e.industryScore(a.Industry, b.Industry),
		Size:       ordinalScore(a.Size.Rank(), b.Size.Rank()),
		Product:    e.productScore(a.Products, b.Products),
		Experience: ordinalScore(a.ExportExperience.Rank(), b.ExportExperience.Rank()),
	}
	total := e.weights.Industry*bd.Industry +
		e.weights.Size*bd.Size +
		e.weights.Product*bd.Product +
		e.weights.Experience*bd.Experience
	bd.Total = clamp01(total)
	return bd
}

func (e *Engine) industryScore(a, b string) float64 {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0
	}
	if strings.EqualFold(a, b) {
		return 1
	}
	if e.relations.Related(a, b) || e.relations.Related(b, a) {
		return industryRelatedScore
	}
	return 0
}

// ordinalScore maps the distance between two ranks to a score. A negative
// rank means the value is unknown.
func ordinalScore(ra, rb int) float64 {
	if ra < 0 || rb < 0 {
		return 0
	}
	d := ra - rb
	if d < 0 {
		d = -d
	}
	switch d {
	case 0:
		return ordinalExact
	case 1:
		return ordinalAdjacent
	default:
		return ordinalDistant
	}
}

// ProductSimilarity scores a single product pair:
// 0.6*categoryMatch + 0.2*nameOverlap + 0.2*descriptionOverlap.
func (e *Engine) ProductSimilarity(a, b business.Product) float64 {
	category := 0.0
	ca, cb := strings.TrimSpace(a.Category), strings.TrimSpace(b.Category)
	if ca != "" && strings.EqualFold(ca, cb) {
		category = 1
	}
	score := categoryWeight*category +
		nameWeight*tokenOverlap(a.Name, b.Name) +
		descriptionWeight*tokenOverlap(a.Description, b.Description)
	return clamp01(score)
}

func (e *Engine) productScore(a, b []business.Product) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matrix := make([][]float64, len(a))
	for i := range a {
		matrix[i] = make([]float64, len(b))
		for j := range b {
			matrix[i][j] = e.ProductSimilarity(a[i], b[j])
		}
	}

	if e.aggregation == CartesianMean {
		all := make([]float64, 0, len(a)*len(b))
		for i := range matrix {
			all = append(all, matrix[i]...)
		}
		return clamp01(orderedMean(all))
	}

	rowBest := make([]float64, len(a))
	colBest := make([]float64, len(b))
	for i := range matrix {
		for j, s := range matrix[i] {
			if s > rowBest[i] {
				rowBest[i] = s
			}
			if s > colBest[j] {
				colBest[j] = s
			}
		}
	}
	return clamp01((orderedMean(rowBest) + orderedMean(colBest)) / 2)
}

// orderedMean sums in ascending order so the result does not depend on
// which profile was passed first.
func orderedMean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
