// Package journal records every orchestration run in SQLite. The core does
// not persist events; the journal is an operational history for status
// lookup and post-mortems, bounded by a retention sweep.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alpineops/vouchergw/internal/log"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run id has no journal row.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded orchestration.
type Run struct {
	ID          string
	OrderID     string
	Site        string
	Status      string
	Attempts    int
	VoucherRef  *string
	ErrorKind   *string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Journal persists orchestration runs.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// New wraps an open database handle.
func New(db *sql.DB) *Journal {
	return &Journal{db: db, logger: log.WithComponent("journal")}
}

// RecordStart inserts a running row and returns the run id.
func (j *Journal) RecordStart(ctx context.Context, orderID, site string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := j.db.ExecContext(ctx, `
INSERT INTO order_runs(id, order_id, site, status, attempts, created_at)
VALUES(?, ?, ?, ?, 0, ?);
`, id, orderID, site, StatusRunning, now)
	if err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return id, nil
}

// RecordResult marks a run terminal.
func (j *Journal) RecordResult(ctx context.Context, runID string, success bool, attempts int, voucherRef, errorKind string) error {
	if runID == "" {
		return fmt.Errorf("runID is empty")
	}

	status := StatusFailed
	if success {
		status = StatusSucceeded
	}
	var voucher, kind any
	if voucherRef != "" {
		voucher = voucherRef
	}
	if errorKind != "" {
		kind = errorKind
	}
	completedAt := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := j.db.ExecContext(ctx, `
UPDATE order_runs
SET status = ?, attempts = ?, voucher_ref = ?, error_kind = ?, completed_at = ?
WHERE id = ?;
`, status, attempts, voucher, kind, completedAt, runID)
	if err != nil {
		return fmt.Errorf("record run result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Recent returns the newest runs, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT id, order_id, site, status, attempts, voucher_ref, error_kind, created_at, completed_at
FROM order_runs
ORDER BY created_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var (
			r            Run
			voucher      sql.NullString
			kind         sql.NullString
			createdAtS   string
			completedAtS sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.OrderID, &r.Site, &r.Status, &r.Attempts, &voucher, &kind, &createdAtS, &completedAtS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if voucher.Valid {
			r.VoucherRef = &voucher.String
		}
		if kind.Valid {
			r.ErrorKind = &kind.String
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
			r.CreatedAt = t
		}
		if completedAtS.Valid {
			if t, err := time.Parse(time.RFC3339Nano, completedAtS.String); err == nil {
				r.CompletedAt = &t
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Sweep deletes terminal runs older than the retention window and returns
// how many rows were removed.
func (j *Journal) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)

	res, err := j.db.ExecContext(ctx, `
DELETE FROM order_runs
WHERE status != ? AND created_at < ?;
`, StatusRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// StartSweeper runs a periodic retention sweep until ctx is cancelled.
func (j *Journal) StartSweeper(ctx context.Context, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := j.Sweep(ctx, retention)
				if err != nil {
					j.logger.Error("journal sweep failed", "error", err)
					continue
				}
				if n > 0 {
					j.logger.Info("journal sweep removed runs", "count", n)
				}
			}
		}
	}()
}
