package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/fairscan/internal/config"
	"github.com/hyperjump/fairscan/internal/models"
)

const creditYAML = `name: credit
target_value: 1
decision_prior: [0.1, 0.9]
features:
  - {name: gender, sensitive: true, params: [0.3, 0.7, 0.1, 0.9]}
  - {name: income, params: [0.4, 0.6, 0.5, 0.5]}
  - {name: race, sensitive: true, params: [0.2, 0.8, 0.3, 0.7]}
  - {name: age, params: [0.15, 0.85, 0.25, 0.75]}
`

const creditParams = `3
0.1 0.9
0.3 0.7 0.1 0.9
0.4 0.6 0.5 0.5
0.2 0.8 0.3 0.7
`

const testConfig = `storage:
  database_path: ./audits.db
audit:
  metric: difference
  threshold: 0.01
  top_k: 3
`

// fixture writes a config and a model into a temp dir.
func fixture(t *testing.T) (configPath, modelPath string) {
	t.Helper()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.yaml")
	modelPath = filepath.Join(dir, "credit.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0600))
	require.NoError(t, os.WriteFile(modelPath, []byte(creditYAML), 0600))
	return configPath, modelPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fairscan version dev\n", out)
}

func TestAuditCmd_Text(t *testing.T) {
	cfg, model := fixture(t)
	out, err := execute(t, "audit", "--config", cfg, model)
	require.NoError(t, err)
	assert.Contains(t, out, "(difference, target 1, threshold 0.0100)")
	assert.Contains(t, out, "gender=")
}

func TestAuditCmd_JSONWithOverrides(t *testing.T) {
	cfg, model := fixture(t)
	out, err := execute(t, "audit", "--config", cfg, "--metric", "divergence",
		"-k", "2", "--threshold", "0", "--sensitive", "0", "-o", "json", model)
	require.NoError(t, err)

	var result models.AuditResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, models.MetricDivergence, result.Request.Metric)
	assert.Equal(t, 2, result.Request.K)
	assert.Equal(t, []int{0}, result.Request.Sensitive)
	assert.LessOrEqual(t, len(result.Patterns), 2)
	assert.NotEmpty(t, result.ModelPath)
	for _, p := range result.Patterns {
		for _, a := range p.Sens {
			assert.Equal(t, 0, a.Feature)
		}
	}
}

func TestAuditCmd_InfoFile(t *testing.T) {
	cfg, _ := fixture(t)
	dir := filepath.Dir(cfg)
	params := filepath.Join(dir, "credit.params")
	info := filepath.Join(dir, "credit.info")
	require.NoError(t, os.WriteFile(params, []byte(creditParams), 0600))
	require.NoError(t, os.WriteFile(info, []byte("variable label\napproved 1\ngender 1\nincome 0\nrace 1\n"), 0600))

	out, err := execute(t, "audit", "--config", cfg, "--info", info, "-o", "json", params)
	require.NoError(t, err)
	var result models.AuditResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []string{"gender", "income", "race"}, result.FeatureNames)
	assert.Equal(t, []int{0, 2}, result.Request.Sensitive)
	assert.NotEmpty(t, result.Patterns)
}

func TestAuditCmd_Workbook(t *testing.T) {
	cfg, model := fixture(t)
	_, err := execute(t, "audit", "--config", cfg, "-o", "xlsx", model)
	assert.ErrorContains(t, err, "--out is required")

	xlsx := filepath.Join(t.TempDir(), "report.xlsx")
	out, err := execute(t, "audit", "--config", cfg, "-o", "xlsx", "--out", xlsx, model)
	require.NoError(t, err)
	assert.Contains(t, out, "report.xlsx")
	_, err = os.Stat(xlsx)
	assert.NoError(t, err)
}

func TestAuditCmd_Errors(t *testing.T) {
	cfg, model := fixture(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing model", []string{"audit", "--config", cfg, filepath.Join(t.TempDir(), "none.yaml")}},
		{"bad format", []string{"audit", "--config", cfg, "-o", "csv", model}},
		{"bad metric", []string{"audit", "--config", cfg, "--metric", "entropy", model}},
		{"bad sensitive", []string{"audit", "--config", cfg, "--sensitive", "9", model}},
		{"no args", []string{"audit", "--config", cfg}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestAuditSaveAndHistory(t *testing.T) {
	cfg, model := fixture(t)
	_, err := execute(t, "audit", "--config", cfg, "--save", model)
	require.NoError(t, err)

	out, err := execute(t, "history", "--config", cfg, "-o", "json")
	require.NoError(t, err)
	var audits []models.AuditResult
	require.NoError(t, json.Unmarshal([]byte(out), &audits))
	require.Len(t, audits, 1)
	id := audits[0].ID

	out, err = execute(t, "history", "--config", cfg, id)
	require.NoError(t, err)
	assert.Contains(t, out, "credit.yaml")

	out, err = execute(t, "history", "--config", cfg, "--delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Audit deleted: "+id)

	out, err = execute(t, "history", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No audits stored.")

	_, err = execute(t, "history", "--config", cfg, id)
	assert.Error(t, err)
}

func TestVerifyCmd(t *testing.T) {
	cfg, model := fixture(t)
	out, err := execute(t, "verify", "--config", cfg, "-k", "10", model)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: scores match")

	_, err = execute(t, "verify", "--config", cfg, "--max-patterns", "10", model)
	assert.ErrorContains(t, err, "--max-patterns")
}

func TestCompareScores(t *testing.T) {
	a := []*models.Pattern{{Score: 0.5}, {Score: 0.2}}
	b := []*models.Pattern{{Score: 0.5}, {Score: 0.2}}
	assert.NoError(t, compareScores(a, b))
	assert.Error(t, compareScores(a, b[:1]))
	b[1] = &models.Pattern{Score: 0.3}
	assert.ErrorContains(t, compareScores(a, b), "rank 2")
}

func TestWatchCmd_Once(t *testing.T) {
	cfg, _ := fixture(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(creditYAML), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.params"), []byte(creditParams), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# notes"), 0600))

	out, err := execute(t, "watch", "--config", cfg, "--once", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 models audited")

	_, err = execute(t, "watch", "--config", cfg, "--once")
	assert.ErrorContains(t, err, "no directories")
}

func TestLoadConfig(t *testing.T) {
	cfg, _ := fixture(t)
	got, path, err := loadConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg, path)
	assert.Equal(t, "difference", got.Audit.Metric)
	assert.True(t, strings.HasSuffix(got.Storage.DatabasePath, "audits.db"))
	assert.True(t, filepath.IsAbs(got.Storage.DatabasePath))

	_, _, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAuditRequestFlags(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	m := &models.Model{
		TargetValue: 1,
		Prior:       [2]float64{0.5, 0.5},
		Features: []models.Feature{
			{Name: "a", Sensitive: true, Params: [4]float64{0.5, 0.5, 0.5, 0.5}},
			{Name: "b", Params: [4]float64{0.5, 0.5, 0.5, 0.5}},
		},
	}
	cmd := newAuditCmd(&globalFlags{})
	require.NoError(t, cmd.ParseFlags([]string{"--target", "0", "--stop-after-k", "--timeout", "5s"}))

	req, err := auditRequest(cmd.Flags(), cfg, m)
	require.NoError(t, err)
	assert.Equal(t, 0, req.TargetValue)
	assert.True(t, req.StopAfterK)
	assert.Equal(t, "5s", req.Timeout.String())
	assert.Equal(t, models.Metric(cfg.Audit.Metric), req.Metric)
	assert.Equal(t, cfg.Audit.TopK, req.K)
	assert.Equal(t, []int{0}, req.Sensitive)
}
