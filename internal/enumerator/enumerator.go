// Package enumerator lists every discrimination pattern of a model by
// exhaustive enumeration. It is exponential in the number of features and
// serves as a reference for the branch-and-bound search.
package enumerator

import (
	"fmt"
	"sort"

	"github.com/hyperjump/fairscan/internal/models"
	"github.com/hyperjump/fairscan/internal/search"
	"github.com/hyperjump/fairscan/pkg/utils"
)

// choice is one way a feature can take part in a pattern.
type choice struct {
	role  search.Role
	value int
}

var (
	plainChoices     = []choice{{search.RoleBase, 0}, {search.RoleBase, 1}, {search.RoleSkip, 0}}
	sensitiveChoices = []choice{
		{search.RoleBase, 0}, {search.RoleBase, 1},
		{search.RoleSensitive, 0}, {search.RoleSensitive, 1},
		{search.RoleSkip, 0},
	}
)

// Count returns how many patterns with a non-empty sensitive part exist over
// n features of which s are sensitive: 3^(n-s) * 5^s - 3^n.
func Count(n, s int) int {
	return pow(3, n-s)*pow(5, s) - pow(3, n)
}

func pow(b, e int) int {
	r := 1
	for ; e > 0; e-- {
		r *= b
	}
	return r
}

// Enumerate calls fn once for every pattern with a non-empty sensitive part.
// Joint probabilities are filled in and Score is left zero. The pattern
// passed to fn is reused between calls; clone it to keep it.
func Enumerate(model *models.Model, target int, sensitive []int, fn func(*models.Pattern)) error {
	if err := model.Validate(); err != nil {
		return err
	}
	if target != 0 && target != 1 {
		return fmt.Errorf("%w: target value %d is not binary", models.ErrInvalidRequest, target)
	}
	n := model.NumFeatures()
	isSensitive := make([]bool, n)
	for _, id := range sensitive {
		if id < 0 || id >= n {
			return fmt.Errorf("%w: sensitive feature %d out of range [0,%d)", models.ErrInvalidRequest, id, n)
		}
		isSensitive[id] = true
	}

	picked := make([]choice, n)
	var p models.Pattern
	var walk func(i int)
	walk = func(i int) {
		if i == n {
			fill(&p, model, target, picked)
			if len(p.Sens) > 0 {
				fn(&p)
			}
			return
		}
		options := plainChoices
		if isSensitive[i] {
			options = sensitiveChoices
		}
		for _, c := range options {
			picked[i] = c
			walk(i + 1)
		}
	}
	walk(0)
	return nil
}

// fill computes the pattern described by picked from scratch.
func fill(p *models.Pattern, model *models.Model, target int, picked []choice) {
	p.Base = p.Base[:0]
	p.Sens = p.Sens[:0]
	dy, notDY := model.Prior[target], model.Prior[1-target]
	sens, notSens := 1.0, 1.0
	for i, c := range picked {
		f := &model.Features[i]
		a := models.Assignment{Feature: i, Value: c.value}
		switch c.role {
		case search.RoleBase:
			p.Base = append(p.Base, a)
			dy *= f.Likelihood(c.value, target)
			notDY *= f.Likelihood(c.value, 1-target)
		case search.RoleSensitive:
			p.Sens = append(p.Sens, a)
			sens *= f.Likelihood(c.value, target)
			notSens *= f.Likelihood(c.value, 1-target)
		}
	}
	p.PDY, p.PNotDY = dy, notDY
	p.PDXY, p.PNotDXY = dy*sens, notDY*notSens
	p.Score = 0
}

// TopK scores every pattern under the given metric and returns the k best
// whose score exceeds the metric's baseline, best first. k <= 0 keeps all.
func TopK(model *models.Model, target int, threshold float64, sensitive []int, kind models.Metric, k int) ([]*models.Pattern, error) {
	metric, err := search.NewMetric(kind, threshold)
	if err != nil {
		return nil, err
	}
	var out []*models.Pattern
	err = Enumerate(model, target, sensitive, func(p *models.Pattern) {
		p.Score = metric.Score(search.Joint{DY: p.PDY, NotDY: p.PNotDY, DXY: p.PDXY, NotDXY: p.PNotDXY})
		if utils.Less(metric.Baseline(), p.Score) {
			out = append(out, p.Clone())
		}
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}
