// Package store persists scan results in PostgreSQL.
package store

import (
	"context"
	_ "embed" // schema.sql
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tainttrace/api/schemas"
)

//go:embed schema.sql
var schemaSQL string

// ErrScanNotFound is returned when no scan has the requested ID.
var ErrScanNotFound = errors.New("scan not found")

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides the PostgreSQL persistence of scans and their findings.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the scans and findings tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const sqlInsertScan = `
        INSERT INTO scans (id, targets, started_at, finished_at, files_scanned, file_errors)
        VALUES ($1, $2, $3, $4, $5, $6);
    `

// findingColumns is the CopyFrom column order of the findings table.
var findingColumns = []string{"scan_id", "seq", "file", "check_name", "message", "line", "col", "sink", "snippet", "language", "severity"}

// PersistScan stores the scan row and all of its findings in one transaction.
func (s *Store) PersistScan(ctx context.Context, result *schemas.ScanResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit returns ErrTxClosed.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, sqlInsertScan,
		result.ScanID,
		result.Targets,
		result.StartedAt.UTC(),
		result.FinishedAt.UTC(),
		result.FilesScanned,
		len(result.Errors),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	if len(result.Findings) > 0 {
		if err := s.persistFindings(ctx, tx, result.ScanID, result.Findings); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Persisted scan",
		zap.String("scan_id", result.ScanID),
		zap.Int("findings", len(result.Findings)),
	)
	return nil
}

func (s *Store) persistFindings(ctx context.Context, tx pgx.Tx, scanID string, findings []schemas.Finding) error {
	rows := make([][]interface{}, len(findings))
	for i, f := range findings {
		rows[i] = []interface{}{
			scanID, i,
			f.File, string(f.Check), f.Message,
			f.Line, f.Column,
			f.Sink, f.Snippet, string(f.Language),
			string(schemas.SeverityOf(f.Check)),
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"findings"}, findingColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy findings: %w", err)
	}
	if int(copyCount) != len(findings) {
		return fmt.Errorf("mismatch in copied findings count: expected %d, got %d", len(findings), copyCount)
	}
	return nil
}

const sqlSelectScan = `
        SELECT targets, started_at, finished_at, files_scanned
        FROM scans
        WHERE id = $1;
    `

const sqlSelectFindings = `
        SELECT file, check_name, message, line, col, sink, snippet, language
        FROM findings
        WHERE scan_id = $1
        ORDER BY seq ASC;
    `

// GetScan loads a stored scan with its findings. Per-file errors are not
// persisted, only their count.
func (s *Store) GetScan(ctx context.Context, scanID string) (*schemas.ScanResult, error) {
	result := &schemas.ScanResult{ScanID: scanID}
	var started, finished time.Time
	err := s.pool.QueryRow(ctx, sqlSelectScan, scanID).Scan(&result.Targets, &started, &finished, &result.FilesScanned)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", scanID, ErrScanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scan: %w", err)
	}
	result.StartedAt = started.UTC()
	result.FinishedAt = finished.UTC()

	findings, err := s.GetFindingsByScanID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	result.Findings = findings
	return result, nil
}

// GetFindingsByScanID returns the findings of a scan in their original order.
func (s *Store) GetFindingsByScanID(ctx context.Context, scanID string) ([]schemas.Finding, error) {
	rows, err := s.pool.Query(ctx, sqlSelectFindings, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	findings := []schemas.Finding{}
	for rows.Next() {
		var f schemas.Finding
		var check, language string

		err := rows.Scan(&f.File, &check, &f.Message, &f.Line, &f.Column, &f.Sink, &f.Snippet, &language)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding row: %w", err)
		}
		f.Check = schemas.Check(check)
		f.Language = schemas.Language(language)
		findings = append(findings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return findings, nil
}
