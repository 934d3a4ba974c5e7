// Package notify implements the best-effort escalation sinks (chat, email).
//
// Notify never returns an error: delivery failures are logged and counted,
// and must never influence orchestration outcome. Every sink is safe for
// concurrent use.
package notify

import (
	"context"
	"log/slog"

	"github.com/alpineops/vouchergw/internal/config"
	"github.com/alpineops/vouchergw/internal/log"
)

// Severity classifies an alert for the sinks. Email only carries failures;
// Slack colors its attachment by severity.
type Severity string

const (
	SeverityFailure Severity = "failure"
	SeverityInfo    Severity = "info"
)

// Alert is one escalation message.
type Alert struct {
	OrderID    string
	Message    string
	StackTrace string
	Severity   Severity
}

//go:generate mockgen -destination=mocks/mock_sink.go -package=mocks github.com/alpineops/vouchergw/internal/notify Sink

// Sink escalates alerts to human operators. Implementations swallow and log
// their own delivery failures.
type Sink interface {
	Notify(ctx context.Context, alert Alert)
}

// multiSink fans an alert out to every configured sink.
type multiSink struct {
	sinks []Sink
}

func (m *multiSink) Notify(ctx context.Context, alert Alert) {
	for _, s := range m.sinks {
		s.Notify(ctx, alert)
	}
}

// nopSink is used when nothing is configured; alerts end up in the log only.
type nopSink struct {
	logger *slog.Logger
}

func (n *nopSink) Notify(_ context.Context, alert Alert) {
	n.logger.Warn("no notification sink configured; alert dropped",
		"order_id", alert.OrderID, "message", alert.Message)
}

// FromConfig assembles the sink stack from configuration. Unconfigured
// channels are skipped; with none configured, alerts are logged and dropped.
func FromConfig(cfg config.NotifyConfig) Sink {
	var sinks []Sink
	if cfg.SlackWebhookURL != "" {
		sinks = append(sinks, NewSlackSink(cfg.SlackWebhookURL))
	}
	if cfg.SMTP.Host != "" {
		sinks = append(sinks, NewEmailSink(cfg.SMTP))
	}
	if len(sinks) == 0 {
		return &nopSink{logger: log.WithComponent("notify")}
	}
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &multiSink{sinks: sinks}
}
