// Package cfg holds the application flags that are not owned by go-core.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"strings"

	"github.com/linnemanlabs/breezecue/internal/alert"
)

// Feed formats.
const (
	FeedGeoJSON = "geojson"
	FeedAtom    = "atom"
)

// MinAuthSecretLen is the shortest accepted HS256 session secret.
const MinAuthSecretLen = 32

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int

	FeedBaseURL        string
	FeedFormat         string
	FeedUserAgent      string
	FeedRegion         string
	FeedPollSeconds    int
	FeedTimeoutSeconds int

	ClaudeAPIKey string
	ClaudeModel  string

	DatabaseURL     string
	SlackWebhookURL string

	AuthSecret   string
	AuthIssuer   string
	AuthAudience string
	AdminToken   string

	WizardTTLSeconds int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")

	fs.StringVar(&c.FeedBaseURL, "feed-base-url", "https://api.weather.gov", "NWS alert API base URL")
	fs.StringVar(&c.FeedFormat, "feed-format", FeedGeoJSON, "alert feed format (geojson|atom)")
	fs.StringVar(&c.FeedUserAgent, "feed-user-agent", "breezecue (ops@breezecue.app)", "User-Agent sent to the NWS API, which requires contact info")
	fs.StringVar(&c.FeedRegion, "feed-region", alert.RegionAll, "region loaded at startup")
	fs.IntVar(&c.FeedPollSeconds, "feed-poll-seconds", 0, "seconds between background alert refreshes (0 = disabled, max 3600)")
	fs.IntVar(&c.FeedTimeoutSeconds, "feed-timeout-seconds", 15, "alert feed request timeout in seconds (1..120)")

	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude LLM provider (empty = placeholder ad content only)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-5", "Claude model to use")

	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for campaign launch notifications")

	fs.StringVar(&c.AuthSecret, "auth-secret", "", "HS256 secret for verifying session tokens (at least 32 bytes)")
	fs.StringVar(&c.AuthIssuer, "auth-issuer", "", "required session token issuer (empty = not checked)")
	fs.StringVar(&c.AuthAudience, "auth-audience", "breezecue", "required session token audience (empty = not checked)")
	fs.StringVar(&c.AdminToken, "admin-token", "", "static bearer token for admin routes (empty = admin routes disabled)")

	fs.IntVar(&c.WizardTTLSeconds, "wizard-ttl-seconds", 1800, "idle seconds before a campaign wizard session expires (60..86400)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Alert feed
	if u, err := url.Parse(c.FeedBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid FEED_BASE_URL %q (must be an absolute URL)", c.FeedBaseURL))
	}
	if c.FeedFormat != FeedGeoJSON && c.FeedFormat != FeedAtom {
		errs = append(errs, fmt.Errorf("invalid FEED_FORMAT %q (must be %s or %s)", c.FeedFormat, FeedGeoJSON, FeedAtom))
	}
	if strings.TrimSpace(c.FeedUserAgent) == "" {
		errs = append(errs, errors.New("FEED_USER_AGENT is required"))
	}
	if _, ok := alert.LookupRegion(c.FeedRegion); !ok {
		errs = append(errs, fmt.Errorf("invalid FEED_REGION %q (must be one of %s)", c.FeedRegion, strings.Join(alert.RegionKeys(), ", ")))
	}
	if c.FeedPollSeconds < 0 || c.FeedPollSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid FEED_POLL_SECONDS %d (must be 0..3600)", c.FeedPollSeconds))
	}
	if c.FeedTimeoutSeconds <= 0 || c.FeedTimeoutSeconds > 120 {
		errs = append(errs, fmt.Errorf("invalid FEED_TIMEOUT_SECONDS %d (must be 1..120)", c.FeedTimeoutSeconds))
	}

	if c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required"))
	}

	// Sessions
	if len(c.AuthSecret) < MinAuthSecretLen {
		errs = append(errs, fmt.Errorf("AUTH_SECRET must be at least %d bytes", MinAuthSecretLen))
	}
	if c.WizardTTLSeconds < 60 || c.WizardTTLSeconds > 86400 {
		errs = append(errs, fmt.Errorf("invalid WIZARD_TTL_SECONDS %d (must be 60..86400)", c.WizardTTLSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
