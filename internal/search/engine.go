// Package search finds the top-k discrimination patterns of a naive Bayes
// model by branch-and-bound over partial assignments.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/fairscan/internal/models"
	"github.com/hyperjump/fairscan/pkg/utils"
)

// Option configures a Search.
type Option func(*Search)

// WithLogger sets the logger used to report run statistics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Search) {
		s.logger = utils.OrNop(l)
	}
}

// WithoutPruning makes every subtree get explored. Results are identical
// for any sound bound; only VisitedNodes grows.
func WithoutPruning() Option {
	return func(s *Search) {
		s.pruning = false
	}
}

// Search holds one model prepared for pattern search. A Search is not safe
// for concurrent use; create one per goroutine.
type Search struct {
	target    int
	threshold float64
	leaves    []leaf
	prior     likelihood
	logger    *zap.Logger
	pruning   bool

	// per-run state
	metric     Metric
	stopAfterK bool
	visited    int
	tracker    *Tracker
	store      *TopK
	cur        partial
}

// NewSearch prepares model for searching patterns that discriminate for
// or against decision target. sensitive lists the feature indices that may
// appear in the sensitive part of a pattern.
func NewSearch(model *models.Model, target int, threshold float64, sensitive []int, opts ...Option) (*Search, error) {
	if model == nil || model.NumFeatures() == 0 {
		return nil, fmt.Errorf("%w: model has no features", models.ErrInvalidModel)
	}
	if target != 0 && target != 1 {
		return nil, fmt.Errorf("%w: target value %d is not binary", models.ErrInvalidRequest, target)
	}
	if !utils.Leq(0, threshold) {
		return nil, fmt.Errorf("%w: threshold %v is negative", models.ErrInvalidRequest, threshold)
	}

	n := model.NumFeatures()
	isSensitive := make([]bool, n)
	for _, id := range sensitive {
		if id < 0 || id >= n {
			return nil, fmt.Errorf("%w: sensitive feature %d out of range [0,%d)", models.ErrInvalidRequest, id, n)
		}
		if isSensitive[id] {
			return nil, fmt.Errorf("%w: sensitive feature %d listed twice", models.ErrInvalidRequest, id)
		}
		isSensitive[id] = true
	}

	s := &Search{
		target:    target,
		threshold: threshold,
		leaves:    make([]leaf, n),
		prior:     likelihood{d: model.Prior[target], notD: model.Prior[1-target]},
		logger:    zap.NewNop(),
		pruning:   true,
	}
	for i := range model.Features {
		s.leaves[i] = newLeaf(&model.Features[i], i, target, isSensitive[i])
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func newLeaf(f *models.Feature, index, target int, sensitive bool) leaf {
	l := leaf{index: index, sensitive: sensitive}
	for v := 0; v <= 1; v++ {
		l.values[v] = likelihood{d: f.Likelihood(v, target), notD: f.Likelihood(v, 1-target)}
	}
	ratio0 := l.values[0].d / l.values[0].notD
	ratio1 := l.values[1].d / l.values[1].notD
	if ratio0 > ratio1 {
		l.maxValue = 0
	} else {
		l.maxValue = 1
	}
	l.max = l.values[l.maxValue]
	l.min = l.values[1-l.maxValue]
	return l
}

// FindDivergentPatterns returns up to k patterns with the highest positive
// divergence score, best first. With stopAfterK the search ends as soon as
// k such patterns are known. A cancelled ctx returns the patterns found so
// far together with ctx's error.
func (s *Search) FindDivergentPatterns(ctx context.Context, k int, stopAfterK bool) ([]*models.Pattern, error) {
	return s.run(ctx, divergenceMetric{threshold: s.threshold}, k, stopAfterK)
}

// FindDiscriminatingPatterns returns up to k patterns whose difference
// score exceeds the threshold, best first. stopAfterK and ctx behave as in
// FindDivergentPatterns.
func (s *Search) FindDiscriminatingPatterns(ctx context.Context, k int, stopAfterK bool) ([]*models.Pattern, error) {
	return s.run(ctx, differenceMetric{threshold: s.threshold}, k, stopAfterK)
}

// Find runs the search under the metric of the given kind.
func (s *Search) Find(ctx context.Context, kind models.Metric, k int, stopAfterK bool) ([]*models.Pattern, error) {
	m, err := NewMetric(kind, s.threshold)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, m, k, stopAfterK)
}

// VisitedNodes returns the number of nodes expanded by the last run.
func (s *Search) VisitedNodes() int {
	return s.visited
}

func (s *Search) run(ctx context.Context, m Metric, k int, stopAfterK bool) ([]*models.Pattern, error) {
	s.visited = 0
	if k <= 0 {
		return []*models.Pattern{}, nil
	}
	if !s.pruning {
		m = unbounded{m}
	}
	s.metric = m
	s.stopAfterK = stopAfterK
	s.tracker = newTracker(s.prior, s.leaves)
	s.cur = newPartial(s.prior, len(s.leaves))
	s.store = NewTopK(k, s.cur.pattern(m.Baseline()))

	start := time.Now()
	s.recurse(ctx, 0)
	patterns := s.collect()

	s.logger.Debug("search finished",
		zap.String("metric", string(m.Kind())),
		zap.Int("target", s.target),
		zap.Float64("threshold", s.threshold),
		zap.Int("k", k),
		zap.Int("patterns", len(patterns)),
		zap.Int("visited", s.visited),
		zap.Duration("elapsed", time.Since(start)),
	)
	return patterns, ctx.Err()
}

// collect drains the store best first, leaving out the seed patterns.
func (s *Search) collect() []*models.Pattern {
	drained := s.store.Drain()
	out := make([]*models.Pattern, 0, len(drained))
	for i := len(drained) - 1; i >= 0; i-- {
		if utils.Less(s.metric.Baseline(), drained[i].Score) {
			out = append(out, drained[i])
		}
	}
	return out
}

func (s *Search) halted(ctx context.Context) bool {
	if s.stopAfterK && utils.Less(s.metric.Baseline(), s.store.Floor()) {
		return true
	}
	return ctx.Err() != nil
}

func (s *Search) recurse(ctx context.Context, level int) {
	if level >= len(s.leaves) || s.halted(ctx) {
		return
	}
	s.visited++
	l := &s.leaves[level]
	if l.sensitive {
		for v := 0; v <= 1; v++ {
			s.branch(ctx, l, RoleSensitive, v)
		}
	}
	for v := 0; v <= 1; v++ {
		s.branch(ctx, l, RoleBase, v)
	}
	s.skip(ctx, l)
}

// branch assigns l and scores the resulting pattern, then descends if the
// bound says a better pattern may lie below.
func (s *Search) branch(ctx context.Context, l *leaf, r Role, value int) {
	undoPattern := s.cur.assign(l, r, value)
	defer undoPattern()
	undoTracker := s.tracker.Apply(l, r, value)
	defer undoTracker()

	j := s.cur.joint()
	if len(s.cur.sens) > 0 {
		s.store.Offer(s.cur.pattern(s.metric.Score(j)))
	}
	if l.index+1 < len(s.leaves) && s.metric.Bound(j, s.tracker.snapshot(s.prior)) > s.store.Floor() {
		s.recurse(ctx, l.index+1)
	}
}

func (s *Search) skip(ctx context.Context, l *leaf) {
	undo := s.tracker.Apply(l, RoleSkip, 0)
	defer undo()
	s.recurse(ctx, l.index+1)
}

// partial is the pattern under construction. Its joints are kept as prefix
// products, one entry per assignment, so undo restores them exactly.
type partial struct {
	base, sens []models.Assignment
	// dy and notDY fold the prior with the base factors; sensD and
	// sensNotD fold the sensitive factors starting from 1.
	dy, notDY       []float64
	sensD, sensNotD []float64
	view            models.Pattern
}

func newPartial(prior likelihood, n int) partial {
	p := partial{
		base:     make([]models.Assignment, 0, n),
		sens:     make([]models.Assignment, 0, n),
		dy:       make([]float64, 1, n+1),
		notDY:    make([]float64, 1, n+1),
		sensD:    make([]float64, 1, n+1),
		sensNotD: make([]float64, 1, n+1),
	}
	p.dy[0], p.notDY[0] = prior.d, prior.notD
	p.sensD[0], p.sensNotD[0] = 1, 1
	return p
}

func (p *partial) assign(l *leaf, r Role, value int) (undo func()) {
	f := l.values[value]
	a := models.Assignment{Feature: l.index, Value: value}
	if r == RoleSensitive {
		p.sens = append(p.sens, a)
		p.sensD = append(p.sensD, last(p.sensD)*f.d)
		p.sensNotD = append(p.sensNotD, last(p.sensNotD)*f.notD)
		return func() {
			p.sens = p.sens[:len(p.sens)-1]
			p.sensD = p.sensD[:len(p.sensD)-1]
			p.sensNotD = p.sensNotD[:len(p.sensNotD)-1]
		}
	}
	p.base = append(p.base, a)
	p.dy = append(p.dy, last(p.dy)*f.d)
	p.notDY = append(p.notDY, last(p.notDY)*f.notD)
	return func() {
		p.base = p.base[:len(p.base)-1]
		p.dy = p.dy[:len(p.dy)-1]
		p.notDY = p.notDY[:len(p.notDY)-1]
	}
}

func last(xs []float64) float64 {
	return xs[len(xs)-1]
}

func (p *partial) joint() Joint {
	dy, notDY := last(p.dy), last(p.notDY)
	return Joint{
		DY:     dy,
		NotDY:  notDY,
		DXY:    dy * last(p.sensD),
		NotDXY: notDY * last(p.sensNotD),
	}
}

// pattern returns a view of the current pattern. The view shares the
// assignment slices and is only valid until the next assignment.
func (p *partial) pattern(score float64) *models.Pattern {
	j := p.joint()
	p.view = models.Pattern{
		Base:    p.base,
		Sens:    p.sens,
		PDY:     j.DY,
		PNotDY:  j.NotDY,
		PDXY:    j.DXY,
		PNotDXY: j.NotDXY,
		Score:   score,
	}
	return &p.view
}
