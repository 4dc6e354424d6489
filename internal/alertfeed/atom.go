package alertfeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/linnemanlabs/breezecue/internal/alert"
)

const atomMediaType = "application/atom+xml"

// AtomClient reads the NWS Atom feed, which carries the same alerts as CAP
// extension elements. It is an alternative to the GeoJSON feed for
// deployments that sit behind proxies stripping geo+json.
type AtomClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	parser     *gofeed.Parser
}

// NewAtomClient creates an Atom feed client.
func NewAtomClient(baseURL, userAgent string, timeout time.Duration) *AtomClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &AtomClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		parser:     gofeed.NewParser(),
	}
}

// Active fetches and parses active alerts from the Atom feed.
func (c *AtomClient) Active(ctx context.Context, region alert.Region) ([]alert.Alert, error) {
	u := activeURL(c.baseURL, "/alerts/active.atom", region)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", atomMediaType)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: baseURL is from trusted config
	if err != nil {
		return nil, fmt.Errorf("alert feed request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("alert feed returned %d: %s", resp.StatusCode, string(body))
	}

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse atom feed: %w", err)
	}

	out := make([]alert.Alert, 0, len(feed.Items))
	for _, item := range feed.Items {
		out = append(out, itemToAlert(item))
	}
	return out, nil
}

func itemToAlert(item *gofeed.Item) alert.Alert {
	capExt := item.Extensions["cap"]
	a := alert.Alert{
		ID:          item.GUID,
		Event:       capValue(capExt, "event"),
		Headline:    item.Title,
		AreaDesc:    capValue(capExt, "areaDesc"),
		Severity:    capValue(capExt, "severity"),
		Certainty:   capValue(capExt, "certainty"),
		Urgency:     capValue(capExt, "urgency"),
		Description: item.Description,
		Effective:   parseCAPTime(capValue(capExt, "effective")),
		Expires:     parseCAPTime(capValue(capExt, "expires")),
	}
	if a.ID == "" {
		a.ID = item.Link
	}
	if item.Author != nil {
		a.SenderName = item.Author.Name
	}
	return a
}

func capValue(m map[string][]ext.Extension, name string) string {
	if m == nil {
		return ""
	}
	vals := m[name]
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0].Value)
}

func parseCAPTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
