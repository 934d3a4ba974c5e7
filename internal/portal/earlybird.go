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
	"strings"

	"github.com/alpineops/vouchergw/internal/config"
	"github.com/alpineops/vouchergw/internal/log"
	"github.com/alpineops/vouchergw/internal/order"
)

// earlyBirdTask drives the EarlyBird partner portal. Unlike CBM, the portal
// keeps long-lived login cookies, so Authenticate first probes the account
// page and short-circuits when the session already carries an authenticated
// state.
type earlyBirdTask struct {
	conf   config.SiteConf
	logger *slog.Logger
	client *http.Client
	authed bool
}

// NewEarlyBirdTask constructs an EarlyBird task. Fails when credentials are
// missing.
func NewEarlyBirdTask(conf config.SiteConf) (Task, error) {
	if conf.Username == "" || conf.Password == "" {
		return nil, fmt.Errorf("earlybird credentials not configured")
	}
	if conf.BaseURL == "" {
		return nil, fmt.Errorf("earlybird base_url not configured")
	}
	return &earlyBirdTask{
		conf:   conf,
		logger: log.WithComponent("portal.earlybird"),
	}, nil
}

func (t *earlyBirdTask) AcquireSession(ctx context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar, Timeout: sessionTimeout}

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

func (t *earlyBirdTask) Authenticate(ctx context.Context) error {
	if t.client == nil {
		return fmt.Errorf("no session acquired")
	}
	if t.authed {
		return nil
	}

	// Probe the account page: an already-authenticated session lands there
	// instead of being bounced to the login form.
	probe, err := http.NewRequestWithContext(ctx, http.MethodGet, t.conf.BaseURL+"/mon-compte/", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := t.client.Do(probe)
	if err != nil {
		return fmt.Errorf("probe account page: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusOK && !strings.Contains(resp.Request.URL.Path, "login") {
		t.logger.Debug("already authenticated")
		t.authed = true
		return nil
	}

	form := url.Values{
		"log": {t.conf.Username},
		"pwd": {t.conf.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.conf.BaseURL+"/wp-login.php", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err = t.client.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("login rejected: status %d", resp.StatusCode)
	}

	t.authed = true
	t.logger.Debug("authenticated")
	return nil
}

type earlyBirdOrderResponse struct {
	Success    bool   `json:"success"`
	VoucherRef string `json:"voucher_reference"`
	Error      string `json:"error"`
}

func (t *earlyBirdTask) Execute(ctx context.Context, ev order.Event) (Outcome, error) {
	if t.client == nil || !t.authed {
		return Outcome{}, fmt.Errorf("execute before authenticate")
	}

	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.conf.BaseURL+"/offre-earlybooking/commande", bytes.NewReader(body))
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

	var out earlyBirdOrderResponse
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

func (t *earlyBirdTask) ReleaseSession() {
	if t.client == nil {
		return
	}
	t.client.CloseIdleConnections()
	t.client = nil
	t.authed = false
	t.logger.Debug("session released")
}
