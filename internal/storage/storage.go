// Package storage defines the persistence interface for audit results.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/fairscan/internal/models"
)

// ErrNotFound is returned when an audit does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines audit persistence operations.
type Storage interface {
	// CreateAudit stores the audit and its patterns atomically.
	CreateAudit(ctx context.Context, audit *models.AuditResult) error
	// GetAudit returns the audit with its patterns.
	GetAudit(ctx context.Context, id string) (*models.AuditResult, error)
	// ListAudits returns audits newest first, without patterns.
	ListAudits(ctx context.Context, offset, limit int) ([]*models.AuditResult, error)
	// GetLatestAuditForModel returns the newest audit of a model file, without patterns.
	GetLatestAuditForModel(ctx context.Context, modelID string) (*models.AuditResult, error)
	// ReplaceModelAudits atomically swaps every audit of audit.ModelID for
	// audit and returns how many were removed.
	ReplaceModelAudits(ctx context.Context, audit *models.AuditResult) (int64, error)
	DeleteAudit(ctx context.Context, id string) error
	DeleteAuditsForModel(ctx context.Context, modelID string) (int64, error)

	// Stats
	CountAudits(ctx context.Context) (int64, error)

	Close() error
}
