// Package alertfeed fetches active weather alerts from the NWS API and holds
// the most recent list for the dashboard and the campaign wizard.
package alertfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/linnemanlabs/breezecue/internal/alert"
)

const (
	// DefaultBaseURL is the public NWS API.
	DefaultBaseURL = "https://api.weather.gov"

	// DefaultUserAgent identifies us to the NWS API, which rejects requests
	// without a User-Agent.
	DefaultUserAgent = "breezecue (ops@breezecue.app)"

	geoJSONMediaType = "application/geo+json"
	maxErrorBody     = 512
)

// Source returns the currently active alerts for a region.
type Source interface {
	Active(ctx context.Context, region alert.Region) ([]alert.Alert, error)
}

// Client reads the NWS GeoJSON alert feed.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a GeoJSON feed client. Empty baseURL or userAgent fall
// back to the defaults.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Active fetches active alerts, restricted to the region's area codes unless
// the region is unrestricted. An empty feature collection is not an error.
func (c *Client) Active(ctx context.Context, region alert.Region) ([]alert.Alert, error) {
	u := activeURL(c.baseURL, "/alerts/active", region)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", geoJSONMediaType)
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

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	out := make([]alert.Alert, 0, len(fc.Features))
	for i := range fc.Features {
		out = append(out, fc.Features[i].toAlert())
	}
	return out, nil
}

// activeURL builds the feed URL. Commas in the area list are kept literal,
// which is what the NWS API documents.
func activeURL(base, path string, region alert.Region) string {
	u := base + path
	if region.Unrestricted() {
		return u
	}
	codes := make([]string, len(region.AreaCodes))
	for i, c := range region.AreaCodes {
		codes[i] = url.QueryEscape(c)
	}
	return u + "?area=" + strings.Join(codes, ",")
}

// NWS GeoJSON response types.

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID         string     `json:"id"`
	Properties properties `json:"properties"`
}

type properties struct {
	ID          string    `json:"id"`
	AreaDesc    string    `json:"areaDesc"`
	Event       string    `json:"event"`
	Headline    string    `json:"headline"`
	Severity    string    `json:"severity"`
	Certainty   string    `json:"certainty"`
	Urgency     string    `json:"urgency"`
	SenderName  string    `json:"senderName"`
	Description string    `json:"description"`
	Instruction string    `json:"instruction"`
	Effective   time.Time `json:"effective"`
	Expires     time.Time `json:"expires"`
}

func (f *feature) toAlert() alert.Alert {
	p := f.Properties
	id := p.ID
	if id == "" {
		id = f.ID
	}
	return alert.Alert{
		ID:          id,
		Event:       p.Event,
		Headline:    p.Headline,
		AreaDesc:    p.AreaDesc,
		Severity:    p.Severity,
		Certainty:   p.Certainty,
		Urgency:     p.Urgency,
		SenderName:  p.SenderName,
		Description: p.Description,
		Instruction: p.Instruction,
		Effective:   p.Effective,
		Expires:     p.Expires,
	}
}
