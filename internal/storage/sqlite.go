// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/fairscan/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS audits (
		id TEXT PRIMARY KEY,
		model_id TEXT,
		model_name TEXT NOT NULL,
		model_path TEXT,
		model_mtime INTEGER,
		model_size INTEGER,
		request TEXT NOT NULL,
		feature_names TEXT,
		visited_nodes INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audits_created_at ON audits(created_at);
	CREATE INDEX IF NOT EXISTS idx_audits_model_id ON audits(model_id, created_at);

	CREATE TABLE IF NOT EXISTS patterns (
		audit_id TEXT NOT NULL,
		rank INTEGER NOT NULL,
		base TEXT NOT NULL,
		sens TEXT NOT NULL,
		p_dy REAL NOT NULL,
		p_not_dy REAL NOT NULL,
		p_dxy REAL NOT NULL,
		p_not_dxy REAL NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (audit_id, rank),
		FOREIGN KEY (audit_id) REFERENCES audits(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

const auditColumns = `id, model_id, model_name, model_path, model_mtime, model_size,
	request, feature_names, visited_nodes, duration_ms, status, created_at`

// CreateAudit inserts an audit and its patterns in a transaction.
// CreatedAt is set when zero.
func (s *SQLiteStorage) CreateAudit(ctx context.Context, audit *models.AuditResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertAudit(ctx, tx, audit); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceModelAudits deletes every audit of audit.ModelID and inserts audit
// in the same transaction, so a failed insert keeps the previous audits.
func (s *SQLiteStorage) ReplaceModelAudits(ctx context.Context, audit *models.AuditResult) (int64, error) {
	if audit.ModelID == "" {
		return 0, fmt.Errorf("replace audits: audit %s has no model ID", audit.ID)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM audits WHERE model_id = ?`, audit.ModelID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audits: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := insertAudit(ctx, tx, audit); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return removed, nil
}

func insertAudit(ctx context.Context, tx *sql.Tx, audit *models.AuditResult) error {
	requestJSON, err := json.Marshal(audit.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	namesJSON, err := json.Marshal(audit.FeatureNames)
	if err != nil {
		return fmt.Errorf("failed to marshal feature names: %w", err)
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audits (`+auditColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		audit.ID, audit.ModelID, audit.ModelName, audit.ModelPath, audit.ModelMtime, audit.ModelSize,
		string(requestJSON), string(namesJSON), audit.VisitedNodes, audit.DurationMs, string(audit.Status), audit.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO patterns (audit_id, rank, base, sens, p_dy, p_not_dy, p_dxy, p_not_dxy, score)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for rank, p := range audit.Patterns {
		baseJSON, err := json.Marshal(p.Base)
		if err != nil {
			return fmt.Errorf("failed to marshal base: %w", err)
		}
		sensJSON, err := json.Marshal(p.Sens)
		if err != nil {
			return fmt.Errorf("failed to marshal sens: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, audit.ID, rank, string(baseJSON), string(sensJSON),
			p.PDY, p.PNotDY, p.PDXY, p.PNotDXY, p.Score); err != nil {
			return fmt.Errorf("failed to insert pattern %d: %w", rank, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (*models.AuditResult, error) {
	var (
		audit                  models.AuditResult
		modelID, modelPath     sql.NullString
		modelMtime, modelSize  sql.NullInt64
		requestJSON, namesJSON string
		status                 string
	)
	if err := row.Scan(&audit.ID, &modelID, &audit.ModelName, &modelPath, &modelMtime, &modelSize,
		&requestJSON, &namesJSON, &audit.VisitedNodes, &audit.DurationMs, &status, &audit.CreatedAt); err != nil {
		return nil, err
	}
	audit.ModelID = modelID.String
	audit.ModelPath = modelPath.String
	audit.ModelMtime = modelMtime.Int64
	audit.ModelSize = modelSize.Int64
	audit.Status = models.AuditStatus(status)
	if err := json.Unmarshal([]byte(requestJSON), &audit.Request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	if namesJSON != "" {
		if err := json.Unmarshal([]byte(namesJSON), &audit.FeatureNames); err != nil {
			return nil, fmt.Errorf("failed to unmarshal feature names: %w", err)
		}
	}
	return &audit, nil
}

// GetAudit returns an audit by ID with its patterns, highest score first.
func (s *SQLiteStorage) GetAudit(ctx context.Context, id string) (*models.AuditResult, error) {
	audit, err := scanAudit(s.db.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audits WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	audit.Patterns, err = s.getPatterns(ctx, id)
	if err != nil {
		return nil, err
	}
	return audit, nil
}

func (s *SQLiteStorage) getPatterns(ctx context.Context, auditID string) ([]*models.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT base, sens, p_dy, p_not_dy, p_dxy, p_not_dxy, score
		 FROM patterns WHERE audit_id = ? ORDER BY rank`,
		auditID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	patterns := []*models.Pattern{}
	for rows.Next() {
		var p models.Pattern
		var baseJSON, sensJSON string
		if err := rows.Scan(&baseJSON, &sensJSON, &p.PDY, &p.PNotDY, &p.PDXY, &p.PNotDXY, &p.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(baseJSON), &p.Base); err != nil {
			return nil, fmt.Errorf("failed to unmarshal base: %w", err)
		}
		if err := json.Unmarshal([]byte(sensJSON), &p.Sens); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sens: %w", err)
		}
		patterns = append(patterns, &p)
	}
	return patterns, rows.Err()
}

// ListAudits returns audits newest first with offset and limit.
func (s *SQLiteStorage) ListAudits(ctx context.Context, offset, limit int) ([]*models.AuditResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audits ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []*models.AuditResult
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		audits = append(audits, audit)
	}
	return audits, rows.Err()
}

// GetLatestAuditForModel returns the most recent audit of the model file with the given ID.
func (s *SQLiteStorage) GetLatestAuditForModel(ctx context.Context, modelID string) (*models.AuditResult, error) {
	audit, err := scanAudit(s.db.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audits WHERE model_id = ?
		 ORDER BY created_at DESC LIMIT 1`, modelID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit for model %s: %w", modelID, ErrNotFound)
	}
	return audit, err
}

// DeleteAudit removes an audit and its patterns.
func (s *SQLiteStorage) DeleteAudit(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM audits WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("audit %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteAuditsForModel removes every audit of a model file and returns how many were removed.
func (s *SQLiteStorage) DeleteAuditsForModel(ctx context.Context, modelID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM audits WHERE model_id = ?`, modelID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountAudits returns the total number of audits.
func (s *SQLiteStorage) CountAudits(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audits`).Scan(&count)
	return count, err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
