package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) (*Journal, *sql.DB) {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), db
}

func TestJournal_RecordLifecycle(t *testing.T) {
	j, _ := openTestJournal(t)
	ctx := context.Background()

	id, err := j.RecordStart(ctx, "123", "cbm")
	if err != nil {
		t.Fatalf("RecordStart() error = %v", err)
	}
	if id == "" {
		t.Fatal("RecordStart() returned empty id")
	}

	runs, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Status != StatusRunning {
		t.Errorf("Status = %q, want running", runs[0].Status)
	}
	if runs[0].OrderID != "123" || runs[0].Site != "cbm" {
		t.Errorf("run = %+v", runs[0])
	}

	if err := j.RecordResult(ctx, id, true, 2, "VCH-9", ""); err != nil {
		t.Fatalf("RecordResult() error = %v", err)
	}

	runs, err = j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	run := runs[0]
	if run.Status != StatusSucceeded {
		t.Errorf("Status = %q, want succeeded", run.Status)
	}
	if run.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", run.Attempts)
	}
	if run.VoucherRef == nil || *run.VoucherRef != "VCH-9" {
		t.Errorf("VoucherRef = %v, want VCH-9", run.VoucherRef)
	}
	if run.ErrorKind != nil {
		t.Errorf("ErrorKind = %v, want nil", run.ErrorKind)
	}
	if run.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
}

func TestJournal_RecordFailure(t *testing.T) {
	j, _ := openTestJournal(t)
	ctx := context.Background()

	id, err := j.RecordStart(ctx, "9", "earlybird")
	if err != nil {
		t.Fatalf("RecordStart() error = %v", err)
	}
	if err := j.RecordResult(ctx, id, false, 2, "", "login_failed"); err != nil {
		t.Fatalf("RecordResult() error = %v", err)
	}

	runs, err := j.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	run := runs[0]
	if run.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", run.Status)
	}
	if run.ErrorKind == nil || *run.ErrorKind != "login_failed" {
		t.Errorf("ErrorKind = %v, want login_failed", run.ErrorKind)
	}
	if run.VoucherRef != nil {
		t.Errorf("VoucherRef = %v, want nil", run.VoucherRef)
	}
}

func TestJournal_RecordResultUnknownRun(t *testing.T) {
	j, _ := openTestJournal(t)

	err := j.RecordResult(context.Background(), "no-such-run", true, 1, "", "")
	if err != ErrRunNotFound {
		t.Fatalf("RecordResult() error = %v, want ErrRunNotFound", err)
	}
}

func TestJournal_RecentOrderAndLimit(t *testing.T) {
	j, _ := openTestJournal(t)
	ctx := context.Background()

	for _, orderID := range []string{"1", "2", "3"} {
		if _, err := j.RecordStart(ctx, orderID, "cbm"); err != nil {
			t.Fatalf("RecordStart() error = %v", err)
		}
	}

	runs, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].OrderID != "3" {
		t.Errorf("newest first: got %q, want 3", runs[0].OrderID)
	}
}

func TestJournal_Sweep(t *testing.T) {
	j, db := openTestJournal(t)
	ctx := context.Background()

	// An old terminal run, an old running run, and a fresh run.
	old := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339Nano)
	mustExec(t, db, `INSERT INTO order_runs(id, order_id, site, status, attempts, created_at)
		VALUES('old-done', '1', 'cbm', 'failed', 2, ?);`, old)
	mustExec(t, db, `INSERT INTO order_runs(id, order_id, site, status, attempts, created_at)
		VALUES('old-running', '2', 'cbm', 'running', 0, ?);`, old)
	if _, err := j.RecordStart(ctx, "3", "cbm"); err != nil {
		t.Fatalf("RecordStart() error = %v", err)
	}

	n, err := j.Sweep(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 1 {
		t.Errorf("swept = %d, want 1 (running and fresh rows stay)", n)
	}

	runs, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("remaining runs = %d, want 2", len(runs))
	}
	for _, r := range runs {
		if r.ID == "old-done" {
			t.Error("terminal run past retention should be swept")
		}
	}
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
