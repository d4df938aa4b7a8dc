package search

import (
	"fmt"
	"math"

	"github.com/hyperjump/fairscan/internal/models"
)

// Metric scores a pattern and bounds the scores reachable by extending it.
type Metric interface {
	// Kind identifies the metric.
	Kind() models.Metric
	// Baseline is the score a pattern must exceed to be reported.
	Baseline() float64
	// Score computes the score of the current pattern.
	Score(j Joint) float64
	// Bound returns an upper bound on Score over all extensions of the current pattern.
	Bound(j Joint, a Aggregates) float64
}

// NewMetric returns the metric of the given kind.
func NewMetric(kind models.Metric, threshold float64) (Metric, error) {
	switch kind {
	case models.MetricDivergence:
		return divergenceMetric{threshold: threshold}, nil
	case models.MetricDifference:
		return differenceMetric{threshold: threshold}, nil
	default:
		return nil, fmt.Errorf("%w: unknown metric %q", models.ErrInvalidRequest, kind)
	}
}

type divergenceMetric struct {
	threshold float64
}

func (m divergenceMetric) Kind() models.Metric { return models.MetricDivergence }
func (m divergenceMetric) Baseline() float64   { return 0 }

func (m divergenceMetric) Score(j Joint) float64 {
	return DivergenceScore(j, m.threshold)
}

func (m divergenceMetric) Bound(j Joint, a Aggregates) float64 {
	return DivergenceBound(j, a, m.threshold)
}

type differenceMetric struct {
	threshold float64
}

func (m differenceMetric) Kind() models.Metric { return models.MetricDifference }
func (m differenceMetric) Baseline() float64   { return m.threshold }

func (m differenceMetric) Score(j Joint) float64 {
	return DifferenceScore(j)
}

func (m differenceMetric) Bound(_ Joint, a Aggregates) float64 {
	return DifferenceBound(a)
}

// unbounded disables pruning by never bounding a subtree.
type unbounded struct {
	Metric
}

func (unbounded) Bound(Joint, Aggregates) float64 {
	return math.Inf(1)
}
