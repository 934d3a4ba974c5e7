// Package orchestrator drives the retry loop around portal automation tasks:
// resolve the site, run acquire/authenticate/execute with a fresh task per
// attempt, escalate every failing attempt, and journal the final disposition.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/alpineops/vouchergw/internal/config"
	"github.com/alpineops/vouchergw/internal/log"
	"github.com/alpineops/vouchergw/internal/metrics"
	"github.com/alpineops/vouchergw/internal/notify"
	"github.com/alpineops/vouchergw/internal/order"
	"github.com/alpineops/vouchergw/internal/portal"
)

// Error kinds carried on terminal failures. Stable strings: they land in the
// journal, metrics labels, and operator alerts.
const (
	ErrKindUnsupportedSite = "unsupported_site"
	ErrKindTaskInit        = "task_init_failed"
	ErrKindDriverInit      = "driver_init_failed"
	ErrKindLogin           = "login_failed"
	ErrKindUnexpected      = "unexpected_exception"
)

// Result is the terminal disposition of one order.
type Result struct {
	Success      bool
	VoucherRef   string
	ErrorKind    string
	AttemptsUsed int
}

// RunJournal records orchestration runs. Satisfied by *journal.Journal.
type RunJournal interface {
	RecordStart(ctx context.Context, orderID, site string) (string, error)
	RecordResult(ctx context.Context, runID string, success bool, attempts int, voucherRef, errorKind string) error
}

// Runner orchestrates order processing. Safe for concurrent use; each order
// gets its own task instances.
type Runner struct {
	registry *portal.Registry
	sink     notify.Sink
	journal  RunJournal
	cfg      config.OrchestratorConfig
	logger   *slog.Logger
}

// New builds a Runner. journal may be nil (runs are then not persisted).
func New(registry *portal.Registry, sink notify.Sink, journal RunJournal, cfg config.OrchestratorConfig) *Runner {
	return &Runner{
		registry: registry,
		sink:     sink,
		journal:  journal,
		cfg:      cfg,
		logger:   log.WithComponent("orchestrator"),
	}
}

// Run processes one order end to end: journal the start, run the retry loop,
// journal and count the outcome. It is the background entry point invoked by
// the intake server.
func (r *Runner) Run(ctx context.Context, ev order.Event) {
	logger := r.logger.With("order_id", ev.OrderID, "site", r.siteLabel(ev))

	runID := ""
	if r.journal != nil {
		id, err := r.journal.RecordStart(ctx, ev.OrderID, r.siteLabel(ev))
		if err != nil {
			logger.Error("failed to journal run start", "error", err)
		} else {
			runID = id
		}
	}

	res := r.Process(ctx, ev)

	outcome := "failed"
	if res.Success {
		outcome = "succeeded"
	}
	metrics.RecordOrder(outcome, r.siteLabel(ev))

	if runID != "" {
		if err := r.journal.RecordResult(ctx, runID, res.Success, res.AttemptsUsed, res.VoucherRef, res.ErrorKind); err != nil {
			logger.Error("failed to journal run result", "error", err)
		}
	}

	if res.Success {
		logger.Info("order processed", "attempts", res.AttemptsUsed, "voucher_ref", res.VoucherRef)
		r.notifySuccess(ctx, ev, res)
		return
	}
	logger.Error("order processing failed", "attempts", res.AttemptsUsed, "error_kind", res.ErrorKind)
}

// notifySuccess sends the informational completion alert.
func (r *Runner) notifySuccess(ctx context.Context, ev order.Event, res Result) {
	msg := fmt.Sprintf("Order %s processed successfully", ev.OrderID)
	if res.VoucherRef != "" {
		msg = fmt.Sprintf("Order %s processed successfully (voucher %s)", ev.OrderID, res.VoucherRef)
	}
	r.sink.Notify(ctx, notify.Alert{
		OrderID:  ev.OrderID,
		Message:  msg,
		Severity: notify.SeverityInfo,
	})
}

// Process runs the retry loop and returns the terminal disposition. Every
// failing attempt is escalated through the sink, including the final one;
// configuration-class failures (unknown site, missing credentials) are
// terminal immediately and never retried.
func (r *Runner) Process(ctx context.Context, ev order.Event) Result {
	site := r.siteLabel(ev)
	logger := r.logger.With("order_id", ev.OrderID, "site", site)

	factory, err := r.registry.Resolve(ev.Site)
	if err != nil {
		logger.Error("site resolution failed", "error", err)
		r.escalate(ctx, ev, fmt.Sprintf("Order %s rejected: %v", ev.OrderID, err), "")
		return Result{ErrorKind: ErrKindUnsupportedSite}
	}

	return r.processWith(ctx, ev, factory)
}

// processWith runs the attempt loop against a resolved factory.
func (r *Runner) processWith(ctx context.Context, ev order.Event, factory portal.Factory) Result {
	site := r.siteLabel(ev)
	logger := r.logger.With("order_id", ev.OrderID, "site", site)

	maxAttempts := r.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		task, err := factory()
		if err != nil {
			// Construction only fails on missing configuration; a retry
			// cannot change that.
			logger.Error("task construction failed", "error", err)
			metrics.RecordAttempt("failed", site)
			r.escalate(ctx, ev, fmt.Sprintf("Order %s: task construction failed: %v", ev.OrderID, err), "")
			return Result{ErrorKind: ErrKindTaskInit, AttemptsUsed: attempt}
		}

		outcome, stack := r.attempt(ctx, task, ev)
		if outcome.Success {
			logger.Info("attempt succeeded", "attempt", attempt)
			metrics.RecordAttempt("succeeded", site)
			return Result{Success: true, VoucherRef: outcome.VoucherRef, AttemptsUsed: attempt}
		}

		logger.Warn("attempt failed",
			"attempt", attempt, "max_attempts", maxAttempts, "reason", outcome.Reason)
		metrics.RecordAttempt("failed", site)
		r.escalate(ctx, ev,
			fmt.Sprintf("Order %s attempt %d/%d failed: %s", ev.OrderID, attempt, maxAttempts, outcome.Reason),
			stack)

		if attempt == maxAttempts {
			return Result{ErrorKind: outcome.Reason, AttemptsUsed: attempt}
		}
		if !sleepCtx(ctx, r.cfg.RetryDelay) {
			logger.Warn("retry abandoned, shutting down", "attempt", attempt)
			return Result{ErrorKind: outcome.Reason, AttemptsUsed: attempt}
		}
	}
	// Unreachable; the loop always returns.
	return Result{ErrorKind: ErrKindUnexpected, AttemptsUsed: maxAttempts}
}

// attempt runs one task lifecycle. The session is released on every exit
// path, including panics, before the recovery converts the panic into an
// unexpected_exception outcome.
func (r *Runner) attempt(ctx context.Context, task portal.Task, ev order.Event) (out portal.Outcome, stack string) {
	actx := ctx
	if r.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, r.cfg.AttemptTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			stack = string(debug.Stack())
			r.logger.Error("panic during attempt",
				"order_id", ev.OrderID, "panic", fmt.Sprint(rec), "stack", stack)
			out = portal.Outcome{Reason: ErrKindUnexpected}
		}
	}()
	defer task.ReleaseSession()

	if err := task.AcquireSession(actx); err != nil {
		r.logger.Warn("session acquisition failed", "order_id", ev.OrderID, "error", err)
		return portal.Outcome{Reason: ErrKindDriverInit}, ""
	}
	if err := task.Authenticate(actx); err != nil {
		r.logger.Warn("authentication failed", "order_id", ev.OrderID, "error", err)
		return portal.Outcome{Reason: ErrKindLogin}, ""
	}

	outcome, err := task.Execute(actx, ev)
	if err != nil {
		r.logger.Error("execution failed", "order_id", ev.OrderID, "error", err)
		return portal.Outcome{Reason: ErrKindUnexpected}, ""
	}
	return outcome, ""
}

func (r *Runner) escalate(ctx context.Context, ev order.Event, message, stack string) {
	r.sink.Notify(ctx, notify.Alert{
		OrderID:    ev.OrderID,
		Message:    message,
		StackTrace: stack,
		Severity:   notify.SeverityFailure,
	})
}

// siteLabel normalizes the event's site for logs, metrics, and the journal.
func (r *Runner) siteLabel(ev order.Event) string {
	site := strings.ToLower(strings.TrimSpace(ev.Site))
	if site == "" {
		site = strings.ToLower(strings.TrimSpace(r.cfg.DefaultSite))
	}
	return site
}

// sleepCtx waits d unless ctx is cancelled first; reports whether the full
// delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
