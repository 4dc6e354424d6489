package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"

	"github.com/linnemanlabs/breezecue/internal/alert"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		FeedBaseURL:           "https://api.weather.gov",
		FeedFormat:            FeedGeoJSON,
		FeedUserAgent:         "breezecue (test@example.test)",
		FeedRegion:            "ALL",
		FeedTimeoutSeconds:    15,
		ClaudeModel:           "claude-sonnet-4-5",
		AuthSecret:            testSecret,
		WizardTTLSeconds:      1800,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 || c.ShutdownBudgetSeconds != 90 || c.APIPort != 8080 {
		t.Errorf("server defaults = %d/%d/%d", c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort)
	}
	if c.FeedBaseURL != "https://api.weather.gov" || c.FeedFormat != FeedGeoJSON || c.FeedRegion != "ALL" {
		t.Errorf("feed defaults = %q %q %q", c.FeedBaseURL, c.FeedFormat, c.FeedRegion)
	}
	if c.FeedPollSeconds != 0 {
		t.Errorf("FeedPollSeconds = %d, want 0 (disabled)", c.FeedPollSeconds)
	}
	if c.ClaudeModel != "claude-sonnet-4-5" {
		t.Errorf("ClaudeModel = %q", c.ClaudeModel)
	}
	if c.WizardTTLSeconds != 1800 {
		t.Errorf("WizardTTLSeconds = %d", c.WizardTTLSeconds)
	}

	// defaults plus a secret are a runnable config
	c.AuthSecret = testSecret
	if err := c.Validate(); err != nil {
		t.Errorf("defaults with secret: %v", err)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-http-port", "9090",
		"-feed-format", "atom",
		"-feed-region", "WEST",
		"-feed-poll-seconds", "120",
		"-claude-api-key", "sk-override",
		"-database-url", "postgres://localhost/breezecue",
		"-auth-issuer", "https://auth.example.test",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.FeedFormat != FeedAtom || c.FeedRegion != "WEST" || c.FeedPollSeconds != 120 {
		t.Errorf("feed = %q %q %d", c.FeedFormat, c.FeedRegion, c.FeedPollSeconds)
	}
	if c.ClaudeAPIKey != "sk-override" || c.DatabaseURL != "postgres://localhost/breezecue" || c.AuthIssuer != "https://auth.example.test" {
		t.Errorf("overrides not applied: %+v", c)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	with := func(fn func(*Config)) Config {
		c := validBase()
		fn(&c)
		return c
	}

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{name: "base is valid", cfg: validBase()},
		{name: "atom feed", cfg: with(func(c *Config) { c.FeedFormat = FeedAtom })},
		{name: "lowercase region", cfg: with(func(c *Config) { c.FeedRegion = "midwest" })},
		{name: "poll at max", cfg: with(func(c *Config) { c.FeedPollSeconds = 3600 })},
		{name: "budget is drain plus one", cfg: with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 60, 61 })},
		{name: "no claude key is allowed", cfg: with(func(c *Config) { c.ClaudeAPIKey = "" })},

		{"drain zero", with(func(c *Config) { c.DrainSeconds = 0 }), true, []string{"DRAIN_SECONDS"}},
		{"drain above max", with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 }), true, []string{"DRAIN_SECONDS"}},
		{"budget above max", with(func(c *Config) { c.ShutdownBudgetSeconds = 301 }), true, []string{"SHUTDOWN_BUDGET_SECONDS"}},
		{"budget equals drain", with(func(c *Config) { c.ShutdownBudgetSeconds = 60 }), true, []string{"must be greater than"}},
		{"port zero", with(func(c *Config) { c.APIPort = 0 }), true, []string{"HTTP_PORT"}},
		{"port above max", with(func(c *Config) { c.APIPort = 65536 }), true, []string{"HTTP_PORT"}},
		{"relative feed url", with(func(c *Config) { c.FeedBaseURL = "api.weather.gov" }), true, []string{"FEED_BASE_URL"}},
		{"unknown feed format", with(func(c *Config) { c.FeedFormat = "rss" }), true, []string{"FEED_FORMAT"}},
		{"empty user agent", with(func(c *Config) { c.FeedUserAgent = " " }), true, []string{"FEED_USER_AGENT"}},
		{"unknown region", with(func(c *Config) { c.FeedRegion = "EUROPE" }), true, []string{"FEED_REGION", "NORTHEAST"}},
		{"negative poll", with(func(c *Config) { c.FeedPollSeconds = -1 }), true, []string{"FEED_POLL_SECONDS"}},
		{"poll above max", with(func(c *Config) { c.FeedPollSeconds = 3601 }), true, []string{"FEED_POLL_SECONDS"}},
		{"timeout zero", with(func(c *Config) { c.FeedTimeoutSeconds = 0 }), true, []string{"FEED_TIMEOUT_SECONDS"}},
		{"empty claude model", with(func(c *Config) { c.ClaudeModel = "" }), true, []string{"CLAUDE_MODEL"}},
		{"short auth secret", with(func(c *Config) { c.AuthSecret = "short" }), true, []string{"AUTH_SECRET"}},
		{"wizard ttl too short", with(func(c *Config) { c.WizardTTLSeconds = 59 }), true, []string{"WIZARD_TTL_SECONDS"}},

		{
			name:      "all fields invalid",
			cfg:       Config{},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "FEED_BASE_URL", "FEED_FORMAT", "FEED_USER_AGENT", "FEED_REGION", "FEED_TIMEOUT_SECONDS", "CLAUDE_MODEL", "AUTH_SECRET", "WIZARD_TTL_SECONDS"},
		},
		{
			name:      "extreme negative values",
			cfg:       with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = math.MinInt32, math.MinInt32, math.MinInt32 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	seeds := []struct {
		drain, budget, port, poll int
		format, region, secret    string
	}{
		{60, 90, 8080, 0, "geojson", "ALL", testSecret},
		{1, 2, 1, 3600, "atom", "alaska", testSecret},
		{0, 0, 0, -1, "", "", ""},
		{300, 300, 65535, 0, "geojson", "WEST", testSecret},
		{301, 302, 65536, 3601, "rss", "MARS", "short"},
		{math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, "x", "y", "z"},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, "geojson", "ALL", testSecret},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.poll, s.format, s.region, s.secret)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port, poll int, format, region, secret string) {
		c := validBase()
		c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort, c.FeedPollSeconds = drain, budget, port, poll
		c.FeedFormat, c.FeedRegion, c.AuthSecret = format, region, secret
		err := c.Validate()

		_, regionOK := alert.LookupRegion(region)
		allValid := drain >= 1 && drain <= 300 &&
			budget >= 1 && budget <= 300 && budget > drain &&
			port >= 1 && port <= 65535 &&
			poll >= 0 && poll <= 3600 &&
			(format == FeedGeoJSON || format == FeedAtom) &&
			regionOK && len(secret) >= MinAuthSecretLen

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
