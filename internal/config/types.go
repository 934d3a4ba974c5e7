package config

import "time"

// Config represents the complete vouchergw configuration.
type Config struct {
	Service      ServiceConfig       `yaml:"service"`
	Webhook      WebhookConfig       `yaml:"webhook"`
	Orchestrator OrchestratorConfig  `yaml:"orchestrator"`
	Sites        map[string]SiteConf `yaml:"sites"`
	Notify       NotifyConfig        `yaml:"notify"`
	Journal      JournalConfig       `yaml:"journal"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	Listen    string `yaml:"listen"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LockPath  string `yaml:"lock_path"`
}

// WebhookConfig defines the intake endpoint settings.
type WebhookConfig struct {
	// Secret is the shared HMAC secret. Empty means signature verification
	// is bypassed (permissive operational fallback, logged at warn).
	Secret string `yaml:"secret"`

	// SignatureHeader carries the base64 HMAC-SHA256 of the raw body.
	// WooCommerce sends X-WC-Webhook-Signature.
	SignatureHeader string `yaml:"signature_header"`

	// MaxBodySize is the maximum accepted request body in bytes.
	MaxBodySize int64 `yaml:"max_body_size"`

	// DevEndpointEnabled gates POST /webhook/test-manual.
	DevEndpointEnabled bool `yaml:"dev_endpoint_enabled"`
}

// OrchestratorConfig defines retry behavior for order processing.
type OrchestratorConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	DefaultSite    string        `yaml:"default_site"`
}

// SiteConf holds the portal credentials and endpoint for one site.
type SiteConf struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NotifyConfig defines the failure-escalation sinks.
type NotifyConfig struct {
	SlackWebhookURL string     `yaml:"slack_webhook_url"`
	SMTP            SMTPConfig `yaml:"smtp"`
}

// SMTPConfig defines the error-mail transport. Postmark-compatible: the API
// key doubles as both username and password when Username is empty.
type SMTPConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	From          string `yaml:"from"`
	To            string `yaml:"to"`
	MessageStream string `yaml:"message_stream"`
}

// JournalConfig defines run-journal storage settings.
type JournalConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "vouchergw",
			Listen:    "127.0.0.1:5000",
			LogLevel:  "info",
			LogFormat: "json",
			LockPath:  "./data/vouchergw.lock",
		},
		Webhook: WebhookConfig{
			SignatureHeader:    "X-WC-Webhook-Signature",
			MaxBodySize:        1 << 20, // 1 MB
			DevEndpointEnabled: false,
		},
		Orchestrator: OrchestratorConfig{
			MaxAttempts:    2,
			RetryDelay:     3 * time.Second,
			AttemptTimeout: 10 * time.Minute,
			DefaultSite:    "cbm",
		},
		Sites: make(map[string]SiteConf),
		Notify: NotifyConfig{
			SMTP: SMTPConfig{
				Port:          587,
				MessageStream: "outbound",
			},
		},
		Journal: JournalConfig{
			Path:      "./data/journal.db",
			Retention: 30 * 24 * time.Hour,
		},
	}
}
