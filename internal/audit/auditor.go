// Package audit runs discrimination pattern searches over models and
// stores the results.
package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/fairscan/internal/config"
	"github.com/hyperjump/fairscan/internal/fileid"
	"github.com/hyperjump/fairscan/internal/metrics"
	"github.com/hyperjump/fairscan/internal/modelio"
	"github.com/hyperjump/fairscan/internal/models"
	"github.com/hyperjump/fairscan/internal/search"
	"github.com/hyperjump/fairscan/internal/storage"
	"github.com/hyperjump/fairscan/pkg/utils"
)

// Auditor runs audits and persists their results.
type Auditor struct {
	storage  storage.Storage
	loader   *modelio.Loader
	defaults config.AuditConfig
	logger   *zap.Logger
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithLogger sets a logger for debug output (file audited, file skipped, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(a *Auditor) { a.logger = utils.OrNop(l) }
}

// NewAuditor creates an auditor. defaults fill in the request for model
// files audited by path.
func NewAuditor(store storage.Storage, loader *modelio.Loader, defaults config.AuditConfig, opts ...Option) *Auditor {
	a := &Auditor{
		storage:  store,
		loader:   loader,
		defaults: defaults,
		logger:   zap.NewNop(),
	}
	if a.defaults.Parallel < 1 {
		a.defaults.Parallel = 1
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Evaluate runs req against m without storing the result. A nil
// req.Sensitive means the model's own sensitive features. When the
// request's timeout or ctx's deadline passes, the patterns found so far
// are returned with status timeout; cancellation returns an error.
func (a *Auditor) Evaluate(ctx context.Context, m *models.Model, req models.AuditRequest) (*models.AuditResult, error) {
	if err := m.Validate(); err != nil {
		metrics.ObserveError("validate")
		return nil, err
	}
	if req.Sensitive == nil {
		req.Sensitive = m.SensitiveIDs()
	}
	if err := req.Validate(m.NumFeatures()); err != nil {
		metrics.ObserveError("validate")
		return nil, err
	}
	s, err := search.NewSearch(m, req.TargetValue, req.Threshold, req.Sensitive, search.WithLogger(a.logger))
	if err != nil {
		metrics.ObserveError("validate")
		return nil, err
	}

	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	patterns, err := s.Find(runCtx, req.Metric, req.K, req.StopAfterK)
	elapsed := time.Since(start)
	status := models.StatusComplete
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = models.StatusTimeout
		a.logger.Warn("audit timed out, keeping partial results",
			zap.String("model", m.Name), zap.Duration("elapsed", elapsed), zap.Int("patterns", len(patterns)))
	case err != nil:
		metrics.ObserveError("search")
		return nil, fmt.Errorf("search: %w", err)
	}

	metrics.ObserveAudit(string(req.Metric), string(status), elapsed, s.VisitedNodes(), len(patterns))
	return &models.AuditResult{
		ID:           uuid.New().String(),
		ModelName:    m.Name,
		Request:      req,
		FeatureNames: m.FeatureNames(),
		Patterns:     patterns,
		VisitedNodes: s.VisitedNodes(),
		DurationMs:   elapsed.Milliseconds(),
		Status:       status,
		CreatedAt:    time.Now(),
	}, nil
}

// Run evaluates req against m and stores the result.
func (a *Auditor) Run(ctx context.Context, m *models.Model, req models.AuditRequest) (*models.AuditResult, error) {
	result, err := a.Evaluate(ctx, m, req)
	if err != nil {
		return nil, err
	}
	if err := a.storage.CreateAudit(ctx, result); err != nil {
		metrics.ObserveError("store")
		return nil, fmt.Errorf("failed to store audit: %w", err)
	}
	a.logger.Debug("audit stored", zap.String("id", result.ID), zap.String("model", m.Name),
		zap.Int("patterns", len(result.Patterns)), zap.Int("visited", result.VisitedNodes))
	return result, nil
}

// AuditFile loads the model at path and audits it with the configured
// defaults, replacing earlier audits of the same file. If allowedExts is
// non-empty, the file's extension must be in the list (case-insensitive).
// A file whose latest audit saw the same mtime, size and request is
// skipped; skipped reports that case and the earlier audit is returned.
func (a *Auditor) AuditFile(ctx context.Context, path string, allowedExts []string) (result *models.AuditResult, skipped bool, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, false, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, false, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, false, fmt.Errorf("not a regular file: %s", absPath)
	}

	m, err := a.loader.Load(absPath)
	if err != nil {
		metrics.ObserveError("load")
		return nil, false, err
	}
	req := a.defaults.Request(m)
	modelID := fileid.ModelID(absPath)
	if prev, ok := a.unchanged(ctx, modelID, absPath, info, req); ok {
		metrics.ObserveSkip()
		a.logger.Debug("skipping unchanged model", zap.String("path", absPath))
		return prev, true, nil
	}

	result, err = a.Evaluate(ctx, m, req)
	if err != nil {
		return nil, false, fmt.Errorf("audit %s: %w", filepath.Base(absPath), err)
	}
	result.ModelID = modelID
	result.ModelPath = absPath
	result.ModelMtime = info.ModTime().UnixNano()
	result.ModelSize = info.Size()

	if _, err := a.storage.ReplaceModelAudits(ctx, result); err != nil {
		metrics.ObserveError("store")
		return nil, false, fmt.Errorf("failed to store audit: %w", err)
	}
	a.logger.Debug("model audited", zap.String("path", absPath), zap.String("audit_id", result.ID),
		zap.String("status", string(result.Status)), zap.Int("patterns", len(result.Patterns)))
	return result, false, nil
}

// unchanged returns the latest audit of the model when it was run on the
// same file contents with the same request.
func (a *Auditor) unchanged(ctx context.Context, modelID, absPath string, info os.FileInfo, req models.AuditRequest) (*models.AuditResult, bool) {
	prev, err := a.storage.GetLatestAuditForModel(ctx, modelID)
	if err != nil {
		return nil, false
	}
	if prev.ModelPath != absPath || prev.ModelMtime != info.ModTime().UnixNano() || prev.ModelSize != info.Size() {
		return nil, false
	}
	if prev.Status != models.StatusComplete {
		return nil, false
	}
	return prev, sameRequest(prev.Request, req)
}

func sameRequest(a, b models.AuditRequest) bool {
	return a.Metric == b.Metric &&
		a.TargetValue == b.TargetValue &&
		a.Threshold == b.Threshold &&
		a.K == b.K &&
		a.StopAfterK == b.StopAfterK &&
		slices.Equal(a.Sensitive, b.Sensitive)
}

// AuditDirectory walks dir recursively and audits each regular file whose
// extension is in allowedExts (if non-empty; otherwise every file Load
// understands). Files are audited concurrently up to the configured
// parallelism. Returns the number of files audited or skipped as unchanged
// and the first error encountered, if any.
func (a *Auditor) AuditDirectory(ctx context.Context, dir string, allowedExts []string) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}

	var paths []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !a.accepts(path, allowedExts) {
			return nil
		}
		// Resolve symlinks so we only audit regular files
		if finfo, statErr := os.Stat(path); statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return 0, err
	}

	var n atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.defaults.Parallel)
	for _, path := range paths {
		g.Go(func() error {
			if _, _, err := a.AuditFile(gctx, path, allowedExts); err != nil {
				return err
			}
			n.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return int(n.Load()), err
}

func (a *Auditor) accepts(path string, allowedExts []string) bool {
	if len(allowedExts) > 0 {
		return extensionAllowed(strings.ToLower(filepath.Ext(path)), allowedExts)
	}
	return modelio.Supported(path)
}

// DeleteModel removes every stored audit of the model file at path.
func (a *Auditor) DeleteModel(ctx context.Context, path string) (int64, error) {
	n, err := a.storage.DeleteAuditsForModel(ctx, fileid.ModelID(path))
	if err != nil {
		return 0, fmt.Errorf("failed to delete audits: %w", err)
	}
	a.logger.Debug("model audits deleted", zap.String("path", path), zap.Int64("count", n))
	return n, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
