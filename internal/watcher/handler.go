package watcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/fairscan/internal/audit"
	"github.com/hyperjump/fairscan/pkg/utils"
)

// AuditHandler re-audits changed model files and drops the audits of
// removed ones.
type AuditHandler struct {
	auditor    *audit.Auditor
	extensions []string
	logger     *zap.Logger
}

// NewAuditHandler returns a Handler backed by auditor.
func NewAuditHandler(auditor *audit.Auditor, extensions []string, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{auditor: auditor, extensions: extensions, logger: utils.OrNop(logger)}
}

// Changed audits the model at path unless its last audit is still current.
func (h *AuditHandler) Changed(ctx context.Context, path string) {
	result, skipped, err := h.auditor.AuditFile(ctx, path, h.extensions)
	if err != nil {
		h.logger.Warn("audit failed", zap.String("path", path), zap.Error(err))
		return
	}
	if skipped {
		h.logger.Debug("model unchanged", zap.String("path", path))
		return
	}
	h.logger.Info("model audited", zap.String("path", path), zap.String("id", result.ID),
		zap.Int("patterns", len(result.Patterns)), zap.String("status", string(result.Status)))
}

// Removed deletes the stored audits for path.
func (h *AuditHandler) Removed(ctx context.Context, path string) {
	n, err := h.auditor.DeleteModel(ctx, path)
	if err != nil {
		h.logger.Warn("failed to delete audits", zap.String("path", path), zap.Error(err))
		return
	}
	if n > 0 {
		h.logger.Info("model removed", zap.String("path", path), zap.Int64("audits", n))
	}
}
