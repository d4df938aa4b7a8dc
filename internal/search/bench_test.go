package search_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/fairscan/internal/enumerator"
	"github.com/hyperjump/fairscan/internal/models"
	"github.com/hyperjump/fairscan/internal/search"
)

func benchmarkFind(b *testing.B, kind models.Metric, n int, opts ...search.Option) {
	m := randomModel(42, n)
	sensitive := []int{0, 1, 2}
	s, err := search.NewSearch(m, 1, 0.05, sensitive, opts...)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Find(ctx, kind, 10, false); err != nil {
			b.Fatal(err)
		}
	}
	b.ReportMetric(float64(s.VisitedNodes()), "nodes/op")
}

func BenchmarkFindDifference(b *testing.B) {
	for _, n := range []int{8, 12, 16} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			benchmarkFind(b, models.MetricDifference, n)
		})
	}
}

func BenchmarkFindDivergence(b *testing.B) {
	for _, n := range []int{8, 12, 16} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			benchmarkFind(b, models.MetricDivergence, n)
		})
	}
}

func BenchmarkFindDifference_NoPruning(b *testing.B) {
	benchmarkFind(b, models.MetricDifference, 8, search.WithoutPruning())
}

func BenchmarkEnumerate(b *testing.B) {
	m := randomModel(42, 8)
	sensitive := []int{0, 1, 2}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := enumerator.TopK(m, 1, 0.05, sensitive, models.MetricDifference, 10); err != nil {
			b.Fatal(err)
		}
	}
}
