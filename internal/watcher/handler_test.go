package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/fairscan/internal/audit"
	"github.com/hyperjump/fairscan/internal/config"
	"github.com/hyperjump/fairscan/internal/fileid"
	"github.com/hyperjump/fairscan/internal/modelio"
	"github.com/hyperjump/fairscan/internal/storage"
)

const creditYAML = `name: credit
target_value: 1
decision_prior: [0.1, 0.9]
features:
  - {name: gender, sensitive: true, params: [0.3, 0.7, 0.1, 0.9]}
  - {name: income, params: [0.4, 0.6, 0.5, 0.5]}
`

func TestAuditHandler(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "audits.db"))
	require.NoError(t, err)
	defer store.Close()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Audit.Metric = "difference"
	cfg.Audit.Threshold = 0.01
	auditor := audit.NewAuditor(store, modelio.NewLoader(), cfg.Audit)
	h := NewAuditHandler(auditor, cfg.Watch.Extensions, zap.NewNop())

	path := filepath.Join(dir, "credit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(creditYAML), 0600))
	ctx := context.Background()

	h.Changed(ctx, path)
	first, err := store.GetLatestAuditForModel(ctx, fileid.ModelID(path))
	require.NoError(t, err)
	assert.Equal(t, "credit", first.ModelName)
	assert.NotEmpty(t, first.Patterns)

	// unchanged file keeps the earlier audit
	h.Changed(ctx, path)
	again, err := store.GetLatestAuditForModel(ctx, fileid.ModelID(path))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// unreadable models are logged, not stored
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("features: ["), 0600))
	h.Changed(ctx, bad)
	_, err = store.GetLatestAuditForModel(ctx, fileid.ModelID(bad))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	h.Removed(ctx, path)
	count, err := store.CountAudits(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
