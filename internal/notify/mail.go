package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/alpineops/vouchergw/internal/config"
	"github.com/alpineops/vouchergw/internal/log"
	"github.com/alpineops/vouchergw/internal/metrics"
)

const mailSubject = "Automation Error Notification"

// EmailSink sends failure alerts over SMTP as HTML mail. Postmark-compatible:
// when no username is configured, the API key (password) doubles as the
// username, and an X-PM-Message-Stream header is attached.
type EmailSink struct {
	cfg    config.SMTPConfig
	logger *slog.Logger

	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSink creates an SMTP sink.
func NewEmailSink(cfg config.SMTPConfig) *EmailSink {
	return &EmailSink{
		cfg:    cfg,
		logger: log.WithComponent("notify.email"),
		send:   smtp.SendMail,
	}
}

// Notify sends the alert as HTML mail. Info-severity alerts are skipped;
// mail is the failure channel only. Failures are logged and counted, never
// returned.
func (e *EmailSink) Notify(_ context.Context, alert Alert) {
	if alert.Severity == SeverityInfo {
		return
	}

	user := e.cfg.Username
	if user == "" {
		user = e.cfg.Password
	}
	auth := smtp.PlainAuth("", user, e.cfg.Password, e.cfg.Host)
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)

	msg := e.buildMessage(alert)
	if err := e.send(addr, auth, e.cfg.From, []string{e.cfg.To}, msg); err != nil {
		e.logger.Error("failed to send error email", "error", err)
		metrics.RecordNotification("email", "failed")
		return
	}

	e.logger.Info("error email sent", "order_id", alert.OrderID)
	metrics.RecordNotification("email", "sent")
}

func (e *EmailSink) buildMessage(alert Alert) []byte {
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", e.cfg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mailSubject)
	if e.cfg.MessageStream != "" {
		fmt.Fprintf(&b, "X-PM-Message-Stream: %s\r\n", e.cfg.MessageStream)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")

	b.WriteString("<html>\n<body>\n")
	b.WriteString("<h2 style='color: red;'>Automation Error Notification</h2>\n")
	fmt.Fprintf(&b, "<p><strong>Timestamp:</strong> %s</p>\n", timestamp)
	b.WriteString("<p><strong>Error Message:</strong></p>\n")
	fmt.Fprintf(&b, "<pre>%s</pre>\n", html.EscapeString(alert.Message))
	if alert.StackTrace != "" {
		b.WriteString("<p><strong>Stack Trace:</strong></p>\n")
		fmt.Fprintf(&b, "<pre>%s</pre>\n", html.EscapeString(alert.StackTrace))
	}
	b.WriteString("</body>\n</html>\n")

	return []byte(b.String())
}
