// Package portal defines the automation-task contract the orchestrator
// consumes, and the site-specific portal clients that satisfy it.
//
// A Task owns one exclusive portal session for its lifetime. Instances are
// short-lived: the orchestrator constructs a fresh one per attempt and never
// reuses one across orders or retries, so no corrupted session state carries
// over. ReleaseSession is invoked exactly once per instance, on every exit
// path.
package portal

import (
	"context"

	"github.com/alpineops/vouchergw/internal/order"
)

// Outcome is the result of executing one order against a portal.
type Outcome struct {
	Success bool
	// VoucherRef is set only on success, and only when the portal produced
	// a retrievable voucher reference.
	VoucherRef string
	// Reason is set only on failure.
	Reason string
}

// Task is the capability set of one site's automation, opaque to the
// orchestrator beyond this contract.
type Task interface {
	// AcquireSession prepares the exclusive portal session. On error no
	// partial session is left behind.
	AcquireSession(ctx context.Context) error

	// Authenticate establishes an authenticated state on the acquired
	// session. Idempotent: a portal that detects an existing authenticated
	// state short-circuits.
	Authenticate(ctx context.Context) error

	// Execute performs the fulfillment action for one order. Ordinary
	// domain failures come back as a failed Outcome; an error return means
	// something truly unexpected happened.
	Execute(ctx context.Context, ev order.Event) (Outcome, error)

	// ReleaseSession tears the session down. Failures are logged by the
	// implementation, never returned, never retried.
	ReleaseSession()
}

// Factory constructs a fresh Task instance. Construction fails when the
// site's required configuration (credentials) is missing.
type Factory func() (Task, error)
