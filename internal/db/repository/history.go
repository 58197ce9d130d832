// Package repository contains SQL-backed persistence for the
// execution history log.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"querybench/internal/domain"
)

var _ domain.HistoryRepository = (*HistoryRepo)(nil)

// HistoryRepo stores execution records in SQLite.
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo creates a new HistoryRepo.
func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Insert appends one execution record.
func (r *HistoryRepo) Insert(ctx context.Context, rec *domain.ExecutionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO execution_history
			(id, run_id, execution_case, action, trace_id, database_name, pool_id, user_name,
			 status, error_message, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.RunID, string(rec.Case), string(rec.Action), rec.TraceID, rec.Database,
		rec.PoolID, rec.User, string(rec.Status), rec.ErrorMessage, rec.DurationMS,
		rec.StartedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// ListByRun returns all records of one run in dispatch order.
func (r *HistoryRepo) ListByRun(ctx context.Context, runID string) ([]domain.ExecutionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, execution_case, action, trace_id, database_name, pool_id, user_name,
		       status, error_message, duration_ms, started_at
		FROM execution_history
		WHERE run_id = ?
		ORDER BY started_at, id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var records []domain.ExecutionRecord
	for rows.Next() {
		var rec domain.ExecutionRecord
		var caseStr, actionStr, statusStr, startedAt string
		if err := rows.Scan(&rec.ID, &rec.RunID, &caseStr, &actionStr, &rec.TraceID,
			&rec.Database, &rec.PoolID, &rec.User, &statusStr, &rec.ErrorMessage,
			&rec.DurationMS, &startedAt); err != nil {
			return nil, err
		}
		rec.Case = domain.ExecutionCase(caseStr)
		rec.Action = domain.QueryAction(actionStr)
		rec.Status = domain.ExecutionStatus(statusStr)
		if ts, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			rec.StartedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByStatus returns the number of records with the given status.
func (r *HistoryRepo) CountByStatus(ctx context.Context, runID string, status domain.ExecutionStatus) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM execution_history WHERE run_id = ? AND status = ?
	`, runID, string(status)).Scan(&count)
	return count, err
}
