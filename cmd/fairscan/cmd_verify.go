package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/fairscan/internal/enumerator"
	"github.com/hyperjump/fairscan/internal/modelio"
	"github.com/hyperjump/fairscan/internal/models"
	"github.com/hyperjump/fairscan/internal/search"
	"github.com/hyperjump/fairscan/pkg/utils"
)

const defaultMaxPatterns = 5_000_000

func newVerifyCmd(g *globalFlags) *cobra.Command {
	var maxPatterns int
	cmd := &cobra.Command{
		Use:   "verify [flags] <model>",
		Short: "Check the pruned search against brute-force enumeration",
		Long: `Run the branch-and-bound search and an exhaustive enumeration of every
pattern on the same model and compare their top-k scores. Useful for
validating models small enough to enumerate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, g, maxPatterns, args[0])
		},
	}
	fl := cmd.Flags()
	addRequestFlags(fl)
	fl.IntVar(&maxPatterns, "max-patterns", defaultMaxPatterns, "refuse models with more candidate patterns than this")
	return cmd
}

func runVerify(cmd *cobra.Command, g *globalFlags, maxPatterns int, modelPath string) error {
	cfg, _, logger, err := g.setup(true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	m, err := loadModel(cmd.Flags(), modelio.NewLoader(), modelPath)
	if err != nil {
		return err
	}
	req, err := auditRequest(cmd.Flags(), cfg, m)
	if err != nil {
		return err
	}
	if err := req.Validate(m.NumFeatures()); err != nil {
		return err
	}

	total := enumerator.Count(m.NumFeatures(), len(req.Sensitive))
	if total > maxPatterns {
		return fmt.Errorf("model has %d candidate patterns, above --max-patterns %d", total, maxPatterns)
	}

	s, err := search.NewSearch(m, req.TargetValue, req.Threshold, req.Sensitive, search.WithLogger(logger))
	if err != nil {
		return err
	}
	start := time.Now()
	got, err := s.Find(cmd.Context(), req.Metric, req.K, false)
	if err != nil {
		return err
	}
	searchTime := time.Since(start)

	start = time.Now()
	want, err := enumerator.TopK(m, req.TargetValue, req.Threshold, req.Sensitive, req.Metric, req.K)
	if err != nil {
		return err
	}
	enumTime := time.Since(start)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "metric %s, target %d, threshold %g, k %d\n", req.Metric, req.TargetValue, req.Threshold, req.K)
	fmt.Fprintf(out, "search:      %d patterns, %d nodes visited in %s\n", len(got), s.VisitedNodes(), searchTime.Round(time.Microsecond))
	fmt.Fprintf(out, "enumeration: %d patterns, %d candidates in %s\n", len(want), total, enumTime.Round(time.Microsecond))
	if err := compareScores(got, want); err != nil {
		return err
	}
	fmt.Fprintln(out, "OK: scores match")
	return nil
}

// compareScores checks that two best-first pattern lists carry the same scores.
// Patterns tied on score may legitimately differ, so only scores are compared.
func compareScores(got, want []*models.Pattern) error {
	if len(got) != len(want) {
		return fmt.Errorf("search found %d patterns, enumeration %d", len(got), len(want))
	}
	for i := range got {
		if !utils.Eq(got[i].Score, want[i].Score) {
			return fmt.Errorf("score mismatch at rank %d: search %.9f, enumeration %.9f", i+1, got[i].Score, want[i].Score)
		}
	}
	return nil
}
