package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/fairscan/internal/audit"
	"github.com/hyperjump/fairscan/internal/config"
	"github.com/hyperjump/fairscan/internal/modelio"
	"github.com/hyperjump/fairscan/internal/storage"
)

// components holds the services shared by serve, watch and history.
type components struct {
	storage storage.Storage
	loader  *modelio.Loader
	auditor *audit.Auditor
}

func (c *components) Close() {
	if c.storage != nil {
		_ = c.storage.Close()
	}
}

func newComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	loader := modelio.NewLoader()
	return &components{
		storage: store,
		loader:  loader,
		auditor: audit.NewAuditor(store, loader, cfg.Audit, audit.WithLogger(logger)),
	}, nil
}
