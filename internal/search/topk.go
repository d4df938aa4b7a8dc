package search

import (
	"container/heap"
	"math"

	"github.com/hyperjump/fairscan/internal/models"
	"github.com/hyperjump/fairscan/pkg/utils"
)

// patternHeap is a min-heap of patterns ordered by score.
type patternHeap []*models.Pattern

func (h patternHeap) Len() int           { return len(h) }
func (h patternHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h patternHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *patternHeap) Push(x any) {
	*h = append(*h, x.(*models.Pattern))
}

func (h *patternHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return p
}

// TopK keeps the k highest-scoring patterns offered to it. Its root is the
// k-th best score so far, which doubles as the pruning threshold.
type TopK struct {
	h patternHeap
}

// NewTopK returns a store of capacity k filled with copies of seed, so
// real patterns only enter once they beat the seed's score.
func NewTopK(k int, seed *models.Pattern) *TopK {
	t := &TopK{h: make(patternHeap, 0, k)}
	for i := 0; i < k; i++ {
		t.h = append(t.h, seed.Clone())
	}
	heap.Init(&t.h)
	return t
}

// Len returns the number of stored patterns.
func (t *TopK) Len() int {
	return t.h.Len()
}

// Floor returns the smallest stored score, or +Inf for an empty store.
func (t *TopK) Floor() float64 {
	if len(t.h) == 0 {
		return math.Inf(1)
	}
	return t.h[0].Score
}

// Offer stores a copy of p in place of the current minimum when p's score
// exceeds it. It reports whether p was stored.
func (t *TopK) Offer(p *models.Pattern) bool {
	if len(t.h) == 0 || !utils.Less(t.h[0].Score, p.Score) {
		return false
	}
	t.h[0] = p.Clone()
	heap.Fix(&t.h, 0)
	return true
}

// Drain empties the store and returns its patterns in ascending score order.
func (t *TopK) Drain() []*models.Pattern {
	out := make([]*models.Pattern, 0, len(t.h))
	for t.h.Len() > 0 {
		out = append(out, heap.Pop(&t.h).(*models.Pattern))
	}
	return out
}
