package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/alpineops/vouchergw/internal/config"
	"github.com/alpineops/vouchergw/internal/log"
	"github.com/alpineops/vouchergw/internal/order"
)

const sessionTimeout = 60 * time.Second

// cbmTask drives the CBM back-office portal. The session is an authenticated
// HTTP client with the portal's cookies; it is the exclusive resource the
// task holds between AcquireSession and ReleaseSession.
type cbmTask struct {
	conf   config.SiteConf
	logger *slog.Logger
	client *http.Client
	authed bool
}

// NewCBMTask constructs a CBM task. Fails when credentials are missing; the
// orchestrator treats that as an unrecoverable configuration fault.
func NewCBMTask(conf config.SiteConf) (Task, error) {
	if conf.Username == "" || conf.Password == "" {
		return nil, fmt.Errorf("cbm credentials not configured")
	}
	if conf.BaseURL == "" {
		return nil, fmt.Errorf("cbm base_url not configured")
	}
	return &cbmTask{
		conf:   conf,
		logger: log.WithComponent("portal.cbm"),
	}, nil
}

func (t *cbmTask) AcquireSession(ctx context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar, Timeout: sessionTimeout}

	// Establish the portal session before anything else touches it.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.conf.BaseURL, nil)
	if err != nil {
		return fmt.Errorf("build session request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reach portal: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("portal unavailable: status %d", resp.StatusCode)
	}

	t.client = client
	t.logger.Debug("session acquired")
	return nil
}

func (t *cbmTask) Authenticate(ctx context.Context) error {
	if t.client == nil {
		return fmt.Errorf("no session acquired")
	}
	if t.authed {
		return nil
	}

	form := url.Values{
		"username": {t.conf.Username},
		"password": {t.conf.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.conf.BaseURL+"/Admin/Login", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login rejected: status %d", resp.StatusCode)
	}

	t.authed = true
	t.logger.Debug("authenticated")
	return nil
}

// cbmOrderResponse is the portal's voucher-order API response.
type cbmOrderResponse struct {
	Success    bool   `json:"success"`
	VoucherRef string `json:"voucher_reference"`
	Error      string `json:"error"`
}

func (t *cbmTask) Execute(ctx context.Context, ev order.Event) (Outcome, error) {
	if t.client == nil || !t.authed {
		return Outcome{}, fmt.Errorf("execute before authenticate")
	}

	// The order payload passes through verbatim; the portal knows its own
	// field set.
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.conf.BaseURL+"/Admin/api/voucher-orders", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("submit order: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Outcome{Reason: fmt.Sprintf("portal_rejected_status_%d", resp.StatusCode)}, nil
	}

	var out cbmOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Outcome{}, fmt.Errorf("decode order response: %w", err)
	}
	if !out.Success {
		reason := out.Error
		if reason == "" {
			reason = "portal_processing_failed"
		}
		return Outcome{Reason: reason}, nil
	}
	return Outcome{Success: true, VoucherRef: out.VoucherRef}, nil
}

func (t *cbmTask) ReleaseSession() {
	if t.client == nil {
		return
	}
	// Best-effort logout; a failure here must never surface.
	req, err := http.NewRequest(http.MethodPost, t.conf.BaseURL+"/Admin/Logout", nil)
	if err == nil {
		if resp, err := t.client.Do(req); err != nil {
			t.logger.Warn("logout failed", "error", err)
		} else {
			_ = resp.Body.Close()
		}
	}
	t.client.CloseIdleConnections()
	t.client = nil
	t.authed = false
	t.logger.Debug("session released")
}
