package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/hyperjump/fairscan/internal/audit"
	"github.com/hyperjump/fairscan/internal/cli"
	"github.com/hyperjump/fairscan/internal/config"
	"github.com/hyperjump/fairscan/internal/fileid"
	"github.com/hyperjump/fairscan/internal/modelio"
	"github.com/hyperjump/fairscan/internal/models"
)

const outputXLSX = "xlsx"

type auditFlags struct {
	output string
	out    string
	save   bool
}

func newAuditCmd(g *globalFlags) *cobra.Command {
	f := &auditFlags{}
	cmd := &cobra.Command{
		Use:   "audit [flags] <model>",
		Short: "Search a model for its top discrimination patterns",
		Long: `Search a naive Bayes model for its top-k discrimination patterns.

Models are read from .params/.txt (plain parameter lists), .yaml/.yml or .xlsx
files. Flags left unset fall back to the audit section of the config.

Examples:
  fairscan audit credit.yaml
  fairscan audit --metric difference --threshold 0.05 -k 20 credit.params
  fairscan audit --info credit.info --output markdown credit.params
  fairscan audit --output xlsx --out report.xlsx credit.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, g, f, args[0])
		},
	}
	fl := cmd.Flags()
	addRequestFlags(fl)
	fl.Bool("stop-after-k", false, "stop as soon as k patterns above the baseline are found")
	fl.Duration("timeout", 0, "search time limit; partial results are reported (default from config)")
	fl.StringVarP(&f.output, "output", "o", "text", "output format: text, markdown, json or xlsx")
	fl.StringVar(&f.out, "out", "", "write output to this file instead of stdout (required for xlsx)")
	fl.BoolVar(&f.save, "save", false, "store the audit in the database")
	return cmd
}

// addRequestFlags defines the flags shared by audit and verify.
func addRequestFlags(fl *pflag.FlagSet) {
	fl.String("metric", "", "score to rank by: divergence or difference (default from config)")
	fl.Int("target", 0, "decision value to audit (default from the model or config)")
	fl.Float64("threshold", 0, "discrimination threshold (default from config)")
	fl.IntSlice("sensitive", nil, "sensitive feature indices (default: the model's sensitive flags)")
	fl.IntP("top-k", "k", 0, "number of patterns to report (default from config)")
	fl.String("info", "", "info file naming the target and features")
}

func runAudit(cmd *cobra.Command, g *globalFlags, f *auditFlags, modelPath string) error {
	xlsx := f.output == outputXLSX
	var format cli.OutputFormat
	if !xlsx {
		var err error
		if format, err = cli.ParseFormat(f.output); err != nil {
			return err
		}
	} else if f.out == "" {
		return fmt.Errorf("--out is required for xlsx output")
	}

	cfg, _, logger, err := g.setup(true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	loader := modelio.NewLoader()
	m, err := loadModel(cmd.Flags(), loader, modelPath)
	if err != nil {
		return err
	}
	req, err := auditRequest(cmd.Flags(), cfg, m)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	var result *models.AuditResult
	if f.save {
		c, err := newComponents(cfg, logger)
		if err != nil {
			return err
		}
		defer c.Close()
		result, err = c.auditor.Evaluate(ctx, m, req)
		if err != nil {
			return err
		}
		if err := tagModelFile(result, modelPath); err != nil {
			return err
		}
		if err := c.storage.CreateAudit(ctx, result); err != nil {
			return fmt.Errorf("failed to store audit: %w", err)
		}
		logger.Info("audit saved", zap.String("id", result.ID))
	} else {
		result, err = audit.NewAuditor(nil, loader, cfg.Audit, audit.WithLogger(logger)).Evaluate(ctx, m, req)
		if err != nil {
			return err
		}
		if err := tagModelFile(result, modelPath); err != nil {
			return err
		}
	}

	if xlsx {
		if err := cli.SaveWorkbook(result, f.out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d patterns to %s\n", len(result.Patterns), f.out)
		return nil
	}
	return writeOutput(cmd.OutOrStdout(), f.out, func(w io.Writer) error {
		return cli.WriteAudit(w, result, format)
	})
}

// loadModel reads the model at path and applies the --info file if given.
func loadModel(fl *pflag.FlagSet, loader *modelio.Loader, path string) (*models.Model, error) {
	m, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	infoPath, err := fl.GetString("info")
	if err != nil || infoPath == "" {
		return m, nil
	}
	info, err := modelio.LoadInfo(infoPath)
	if err != nil {
		return nil, err
	}
	if err := info.Apply(m); err != nil {
		return nil, err
	}
	return m, nil
}

// auditRequest starts from the config defaults for m and applies the
// request flags the user set.
func auditRequest(fl *pflag.FlagSet, cfg *config.Config, m *models.Model) (models.AuditRequest, error) {
	req := cfg.Audit.Request(m)
	var err error
	set := func(name string, apply func() error) {
		if err == nil && fl.Changed(name) {
			err = apply()
		}
	}
	set("metric", func() error {
		v, err := fl.GetString("metric")
		req.Metric = models.Metric(v)
		return err
	})
	set("target", func() (err error) {
		req.TargetValue, err = fl.GetInt("target")
		return err
	})
	set("threshold", func() (err error) {
		req.Threshold, err = fl.GetFloat64("threshold")
		return err
	})
	set("sensitive", func() error {
		v, err := fl.GetIntSlice("sensitive")
		req.Sensitive = append([]int{}, v...)
		return err
	})
	set("top-k", func() (err error) {
		req.K, err = fl.GetInt("top-k")
		return err
	})
	set("stop-after-k", func() (err error) {
		req.StopAfterK, err = fl.GetBool("stop-after-k")
		return err
	})
	set("timeout", func() (err error) {
		req.Timeout, err = fl.GetDuration("timeout")
		return err
	})
	return req, err
}

func tagModelFile(result *models.AuditResult, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	result.ModelID = fileid.ModelID(abs)
	result.ModelPath = abs
	result.ModelMtime = info.ModTime().UnixNano()
	result.ModelSize = info.Size()
	return nil
}

// writeOutput runs write against stdout, or against the file at path when set.
func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// signalContext returns a context cancelled on interrupt or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
