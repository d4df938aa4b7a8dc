// Package models defines core data structures for naive Bayes models, patterns, and audits.
package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidModel is returned when model parameters are not valid probabilities.
var ErrInvalidModel = errors.New("invalid model")

// probabilityTolerance bounds how far a distribution may sum away from 1.
const probabilityTolerance = 1e-6

// Feature is one binary leaf of the naive Bayes model.
type Feature struct {
	Name      string `json:"name" yaml:"name"`
	Sensitive bool   `json:"sensitive" yaml:"sensitive"`
	// Params holds P(x=0|d=0), P(x=1|d=0), P(x=0|d=1), P(x=1|d=1).
	Params [4]float64 `json:"params" yaml:"params"`
}

// Likelihood returns P(x=value | d=decision).
func (f *Feature) Likelihood(value, decision int) float64 {
	return f.Params[2*decision+value]
}

// Model is a fully parameterized naive Bayes classifier with a binary decision.
type Model struct {
	Name string `json:"name,omitempty" yaml:"name"`
	// TargetValue is the decision value audited by default.
	TargetValue int `json:"target_value" yaml:"target_value"`
	// Prior holds P(d=0), P(d=1).
	Prior    [2]float64 `json:"decision_prior" yaml:"decision_prior"`
	Features []Feature  `json:"features" yaml:"features"`
}

// NumFeatures returns the number of leaves.
func (m *Model) NumFeatures() int {
	return len(m.Features)
}

// SensitiveIDs returns the indices of features flagged sensitive.
func (m *Model) SensitiveIDs() []int {
	var ids []int
	for i := range m.Features {
		if m.Features[i].Sensitive {
			ids = append(ids, i)
		}
	}
	return ids
}

// FeatureNames returns the feature names in index order.
func (m *Model) FeatureNames() []string {
	names := make([]string, len(m.Features))
	for i := range m.Features {
		names[i] = m.Features[i].Name
	}
	return names
}

// Validate checks that every parameter is a probability and every
// distribution sums to 1. The search assumes a model that passed Validate.
func (m *Model) Validate() error {
	if len(m.Features) == 0 {
		return fmt.Errorf("%w: no features", ErrInvalidModel)
	}
	if m.TargetValue != 0 && m.TargetValue != 1 {
		return fmt.Errorf("%w: target value %d is not binary", ErrInvalidModel, m.TargetValue)
	}
	if err := checkDistribution("decision prior", m.Prior[0], m.Prior[1]); err != nil {
		return err
	}
	for i := range m.Features {
		p := m.Features[i].Params
		for d := 0; d <= 1; d++ {
			label := fmt.Sprintf("feature %d given d=%d", i, d)
			if err := checkDistribution(label, p[2*d], p[2*d+1]); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkDistribution(label string, p0, p1 float64) error {
	for _, p := range []float64{p0, p1} {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("%w: %s has probability %v outside [0,1]", ErrInvalidModel, label, p)
		}
	}
	if math.Abs(p0+p1-1) > probabilityTolerance {
		return fmt.Errorf("%w: %s sums to %v", ErrInvalidModel, label, p0+p1)
	}
	return nil
}
