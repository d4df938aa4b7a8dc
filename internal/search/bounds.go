package search

import (
	"math"

	"github.com/hyperjump/fairscan/pkg/utils"
)

// Joint holds the unnormalized joint probabilities of a pattern: target (D)
// and other (NotD) decision with the base assignment (Y) and with base plus
// sensitive assignment (XY).
type Joint struct {
	DY, NotDY, DXY, NotDXY float64
}

// Delta returns P(target | base, sens) - P(target | base).
func (j Joint) Delta() float64 {
	return j.DXY/(j.DXY+j.NotDXY) - j.DY/(j.DY+j.NotDY)
}

// DifferenceScore returns |P(target | base, sens) - P(target | base)|.
// Patterns of zero probability score 0.
func DifferenceScore(j Joint) float64 {
	return utils.NaNTo(math.Abs(j.Delta()), 0)
}

// DifferenceBound bounds the difference score of every extension of the
// current pattern. NaN collapses to +Inf.
func DifferenceBound(a Aggregates) float64 {
	upper, lower := differenceRange(a)
	return utils.NaNTo(math.Max(math.Abs(upper), math.Abs(lower)), math.Inf(1))
}

// differenceRange returns an upper and a lower bound on the signed
// difference reachable from the current pattern.
func differenceRange(a Aggregates) (upper, lower float64) {
	aMax := a.Sens.DMax / a.PriorD
	bMax := a.Sens.NotDMax / a.PriorNotD
	aMin := a.Sens.DMin / a.PriorD
	bMin := a.Sens.NotDMin / a.PriorNotD

	lo := a.Base.DMin / (a.Base.DMin + a.Base.NotDMin)
	hi := a.Base.DMax / (a.Base.DMax + a.Base.NotDMax)

	upper = differenceBoundFor(aMax, bMax, lo, hi, true)
	lower = differenceBoundFor(aMin, bMin, lo, hi, false)
	return upper, lower
}

// differenceBoundFor optimizes a*t/(a*t + b*(1-t)) - t over t in [lower, upper],
// where a = P(x|target) and b = P(x|other). The unconstrained optimum is
// evaluated alongside both ends.
func differenceBoundFor(a, b, lower, upper float64, maximize bool) float64 {
	if utils.Eq(a, b) {
		return 0
	}
	if utils.Eq(a, 0) || utils.Eq(b, 0) {
		return 1
	}
	gap := func(t float64) float64 {
		return a*t/(a*t+b*(1-t)) - t
	}
	opt := (b - math.Sqrt(a*b)) / (b - a)
	optV, lowerV, upperV := gap(opt), gap(lower), gap(upper)
	if maximize {
		return math.Max(optV, math.Max(lowerV, upperV))
	}
	return math.Min(optV, math.Min(lowerV, upperV))
}

// DivergenceScore is the KL divergence between the model's joint over
// (D, x, y) and the closest joint whose difference sits on the threshold
// boundary. Differences within the threshold score 0.
//
// The shifted masses are written over the gaps DY-DXY and NotDY-NotDXY
// rather than as DXY+q and NotDXY-q, so a sensitive factor of exactly 1
// leaves no rounding residue behind.
func DivergenceScore(j Joint, threshold float64) float64 {
	delta := j.Delta()
	if math.IsNaN(delta) || math.Abs(delta) <= threshold {
		return 0
	}
	pXY := j.DXY + j.NotDXY
	pY := j.DY + j.NotDY
	dGap, notDGap := j.DY-j.DXY, j.NotDY-j.NotDXY
	gap := dGap + notDGap

	shift := threshold * pXY * pY / gap
	if delta < 0 {
		shift = -shift
	}
	qD := pXY*dGap/gap + shift
	qNotD := pXY*notDGap/gap - shift

	score := klTerm(j.DXY, qD) + klTerm(j.NotDXY, qNotD)
	if math.IsNaN(score) || utils.Leq(score, 0) {
		return 0
	}
	return score
}

// klTerm returns p*log2(p/q) with 0*log(0/q) taken as 0.
func klTerm(p, q float64) float64 {
	if p == 0 {
		return 0
	}
	return p * (math.Log2(p) - math.Log2(q))
}

// DivergenceBound estimates the best divergence score reachable from the
// current pattern. A subtree whose difference range stays inside the
// threshold scores 0 everywhere; otherwise the bound compares the most
// extreme decision odds over the All and Base extensions. NaN collapses
// to +Inf.
func DivergenceBound(j Joint, a Aggregates, threshold float64) float64 {
	upper, lower := differenceRange(a)
	if utils.Leq(upper, threshold) && utils.Leq(-threshold, lower) {
		return 0
	}
	return utils.NaNTo(divergenceAltBound(j, a), math.Inf(1))
}

func divergenceAltBound(j Joint, a Aggregates) float64 {
	pDAll := a.All.DMax / (a.All.DMax + a.All.NotDMax)
	pNotDAll := a.All.NotDMin / (a.All.DMin + a.All.NotDMin)
	pDBase := a.Base.DMin / (a.Base.DMin + a.Base.NotDMin)
	pNotDBase := a.Base.NotDMax / (a.Base.DMax + a.Base.NotDMax)
	return weightedLog2(j.DXY, pDAll/pDBase) + weightedLog2(j.NotDXY, pNotDAll/pNotDBase)
}

// weightedLog2 returns w*log2(r), taking a zero weight as contributing nothing.
func weightedLog2(w, r float64) float64 {
	if w == 0 {
		return 0
	}
	return w * math.Log2(r)
}
