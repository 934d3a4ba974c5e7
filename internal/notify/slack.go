package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alpineops/vouchergw/internal/log"
	"github.com/alpineops/vouchergw/internal/metrics"
)

const slackTimeout = 10 * time.Second

// SlackSink posts alerts to a Slack incoming-webhook URL.
type SlackSink struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// NewSlackSink creates a Slack sink for the given webhook URL.
func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: slackTimeout},
		logger:     log.WithComponent("notify.slack"),
	}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

// Notify posts the alert. Failures are logged and counted, never returned.
func (s *SlackSink) Notify(ctx context.Context, alert Alert) {
	color := "danger"
	if alert.Severity == SeverityInfo {
		color = "good"
	}

	payload := slackPayload{
		Text: "Voucher Automation Alert",
		Attachments: []slackAttachment{{
			Color: color,
			Fields: []slackField{
				{Title: "Alert", Value: alert.Message, Short: false},
				{Title: "Timestamp", Value: time.Now().Format("2006-01-02 15:04:05"), Short: true},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode slack payload", "error", err)
		metrics.RecordNotification("slack", "failed")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("failed to build slack request", "error", err)
		metrics.RecordNotification("slack", "failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("failed to send slack alert", "error", err)
		metrics.RecordNotification("slack", "failed")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.Error("slack alert rejected",
			"status", resp.StatusCode, "response", string(detail))
		metrics.RecordNotification("slack", "failed")
		return
	}

	s.logger.Info("slack alert sent", "order_id", alert.OrderID)
	metrics.RecordNotification("slack", "sent")
}
