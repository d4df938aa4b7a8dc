package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/fairscan/internal/models"
)

func assertAggregatesEqual(t *testing.T, want, got Aggregates) {
	t.Helper()
	pairs := [][2]ExtensionValues{
		{want.All, got.All},
		{want.Base, got.Base},
		{want.BaseOnly, got.BaseOnly},
		{want.Sens, got.Sens},
	}
	for i, p := range pairs {
		assert.InDelta(t, p[0].DMax, p[1].DMax, 1e-12, "aggregate %d DMax", i)
		assert.InDelta(t, p[0].NotDMax, p[1].NotDMax, 1e-12, "aggregate %d NotDMax", i)
		assert.InDelta(t, p[0].DMin, p[1].DMin, 1e-12, "aggregate %d DMin", i)
		assert.InDelta(t, p[0].NotDMin, p[1].NotDMin, 1e-12, "aggregate %d NotDMin", i)
	}
}

func testModel() *models.Model {
	return &models.Model{
		Prior: [2]float64{0.3, 0.7},
		Features: []models.Feature{
			{Params: [4]float64{0.2, 0.8, 0.4, 0.6}},
			{Params: [4]float64{0, 1, 1, 0}},
			{Params: [4]float64{0.5, 0.5, 0.5, 0.5}},
			{Params: [4]float64{0.9, 0.1, 0.3, 0.7}},
		},
	}
}

func TestProduct_ZeroFactors(t *testing.T) {
	p := newProduct(0.5)
	p.mul(0)
	p.mul(0.4)
	assert.Equal(t, 0.0, p.float())
	p.div(0)
	assert.InDelta(t, 0.2, p.float(), 1e-15)
	p.div(0.4)
	assert.InDelta(t, 0.5, p.float(), 1e-15)
}

func TestNewLeaf_MaxValue(t *testing.T) {
	tests := []struct {
		name   string
		params [4]float64
		target int
		want   int
	}{
		{"value one favours target", [4]float64{0.2, 0.8, 0.4, 0.6}, 0, 1},
		{"value zero favours target", [4]float64{0.2, 0.8, 0.4, 0.6}, 1, 0},
		{"equal ratios pick one", [4]float64{0.5, 0.5, 0.5, 0.5}, 0, 1},
		{"deterministic", [4]float64{0, 1, 1, 0}, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLeaf(&models.Feature{Params: tt.params}, 0, tt.target, false)
			assert.Equal(t, tt.want, l.maxValue)
			assert.Equal(t, l.values[tt.want], l.max)
			assert.Equal(t, l.values[1-tt.want], l.min)
		})
	}
}

func TestTracker_Apply(t *testing.T) {
	m := testModel()
	prior := likelihood{d: m.Prior[0], notD: m.Prior[1]}
	leaves := make([]leaf, len(m.Features))
	for i := range m.Features {
		leaves[i] = newLeaf(&m.Features[i], i, 0, i%2 == 0)
	}
	tr := newTracker(prior, leaves)

	// Feature 0 sensitive with value 1: fixed in All and Sens, kept free in
	// Base, marginalized out of BaseOnly.
	undo := tr.Apply(&leaves[0], RoleSensitive, 1)
	a := tr.snapshot(prior)
	rest := func(pick func(l *leaf) float64) float64 {
		v := 1.0
		for i := 1; i < len(leaves); i++ {
			v *= pick(&leaves[i])
		}
		return v
	}
	maxD := rest(func(l *leaf) float64 { return l.max.d })
	minD := rest(func(l *leaf) float64 { return l.min.d })
	assert.InDelta(t, 0.3*0.8*maxD, a.All.DMax, 1e-12)
	assert.InDelta(t, 0.3*0.8*minD, a.All.DMin, 1e-12)
	assert.InDelta(t, 0.3*leaves[0].max.d*maxD, a.Base.DMax, 1e-12)
	assert.InDelta(t, 0.3*maxD, a.BaseOnly.DMax, 1e-12)
	assert.InDelta(t, 0.3*0.8*leaves[2].max.d, a.Sens.DMax, 1e-12)
	assert.InDelta(t, 0.3*0.8*leaves[2].min.d, a.Sens.DMin, 1e-12)
	undo()

	fresh := newTracker(prior, leaves)
	assertAggregatesEqual(t, fresh.snapshot(prior), tr.snapshot(prior))
}

func TestTracker_UndoRestoresZeroFactors(t *testing.T) {
	m := testModel()
	prior := likelihood{d: m.Prior[1], notD: m.Prior[0]}
	leaves := make([]leaf, len(m.Features))
	for i := range m.Features {
		leaves[i] = newLeaf(&m.Features[i], i, 1, true)
	}
	tr := newTracker(prior, leaves)
	initial := tr.snapshot(prior)

	var undos []func()
	undos = append(undos, tr.Apply(&leaves[0], RoleBase, 0))
	undos = append(undos, tr.Apply(&leaves[1], RoleSensitive, 1))
	undos = append(undos, tr.Apply(&leaves[2], RoleSkip, 0))
	undos = append(undos, tr.Apply(&leaves[3], RoleSensitive, 0))
	assert.Equal(t, 0.0, tr.snapshot(prior).All.DMax)
	for i := len(undos) - 1; i >= 0; i-- {
		undos[i]()
	}
	assertAggregatesEqual(t, initial, tr.snapshot(prior))
}

func TestSearch_RestoresStateAfterRun(t *testing.T) {
	m := testModel()
	s, err := NewSearch(m, 0, 0.05, []int{1, 3})
	require.NoError(t, err)

	for _, kind := range []models.Metric{models.MetricDifference, models.MetricDivergence} {
		_, err := s.Find(context.Background(), kind, 4, false)
		require.NoError(t, err)

		assertAggregatesEqual(t, newTracker(s.prior, s.leaves).snapshot(s.prior), s.tracker.snapshot(s.prior))
		assert.Empty(t, s.cur.base)
		assert.Empty(t, s.cur.sens)
		j := s.cur.joint()
		assert.InDelta(t, 0.3, j.DY, 1e-12)
		assert.InDelta(t, 0.7, j.NotDY, 1e-12)
		assert.InDelta(t, 0.3, j.DXY, 1e-12)
		assert.InDelta(t, 0.7, j.NotDXY, 1e-12)
	}
}
