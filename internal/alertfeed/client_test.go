package alertfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linnemanlabs/breezecue/internal/alert"
)

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "id": "https://api.weather.gov/alerts/urn:oid:2.49.0.1.840.0.aaa",
      "type": "Feature",
      "properties": {
        "id": "urn:oid:2.49.0.1.840.0.aaa",
        "areaDesc": "Boston; Cambridge",
        "event": "Winter Storm Warning",
        "headline": "Winter Storm Warning issued for Boston",
        "severity": "Severe",
        "certainty": "Likely",
        "urgency": "Expected",
        "senderName": "NWS Boston MA",
        "description": "Heavy snow expected.",
        "instruction": null,
        "effective": "2026-01-10T06:00:00-05:00",
        "expires": "2026-01-11T06:00:00-05:00"
      }
    },
    {
      "id": "https://api.weather.gov/alerts/urn:oid:2.49.0.1.840.0.bbb",
      "type": "Feature",
      "properties": {
        "areaDesc": "Providence",
        "event": "Wind Advisory",
        "headline": "Wind Advisory issued for Providence",
        "severity": "Moderate",
        "effective": "2026-01-10T07:00:00-05:00",
        "expires": "2026-01-10T19:00:00-05:00"
      }
    }
  ]
}`

type capturedRequest struct {
	mu     sync.Mutex
	path   string
	query  string
	accept string
	ua     string
}

func (c *capturedRequest) record(r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = r.URL.Path
	c.query = r.URL.RawQuery
	c.accept = r.Header.Get("Accept")
	c.ua = r.Header.Get("User-Agent")
}

func newFeedServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	var got capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.record(r)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func mustRegion(t *testing.T, key string) alert.Region {
	t.Helper()
	r, ok := alert.LookupRegion(key)
	require.True(t, ok, "region %s", key)
	return r
}

func TestClient_Active_DecodesFeatures(t *testing.T) {
	t.Parallel()
	srv, got := newFeedServer(t, http.StatusOK, sampleGeoJSON)

	c := NewClient(srv.URL, "test-agent", 5*time.Second)
	alerts, err := c.Active(context.Background(), mustRegion(t, "NORTHEAST"))
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	a := alerts[0]
	assert.Equal(t, "urn:oid:2.49.0.1.840.0.aaa", a.ID)
	assert.Equal(t, "Winter Storm Warning", a.Event)
	assert.Equal(t, "Boston; Cambridge", a.AreaDesc)
	assert.Equal(t, "Severe", a.Severity)
	assert.Equal(t, "NWS Boston MA", a.SenderName)
	assert.Empty(t, a.Instruction)
	assert.Equal(t, 2026, a.Effective.Year())
	assert.True(t, a.Expires.After(a.Effective))

	// falls back to the feature id when properties.id is missing
	assert.Equal(t, "https://api.weather.gov/alerts/urn:oid:2.49.0.1.840.0.bbb", alerts[1].ID)

	assert.Equal(t, "/alerts/active", got.path)
	assert.Equal(t, "application/geo+json", got.accept)
	assert.Equal(t, "test-agent", got.ua)
}

func TestClient_Active_AreaParameter(t *testing.T) {
	t.Parallel()

	for _, key := range alert.RegionKeys() {
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			srv, got := newFeedServer(t, http.StatusOK, `{"features":[]}`)
			region := mustRegion(t, key)

			_, err := NewClient(srv.URL, "", time.Second).Active(context.Background(), region)
			require.NoError(t, err)

			if key == alert.RegionAll {
				assert.Empty(t, got.query, "ALL must not send an area parameter")
				return
			}
			want := "area=" + joinCodes(region.AreaCodes)
			assert.Equal(t, want, got.query)
		})
	}
}

func joinCodes(codes []string) string {
	out := ""
	for i, c := range codes {
		if i > 0 {
			out += ","
		}
		out += c
	}
	return out
}

func TestClient_Active_EmptyIsNotError(t *testing.T) {
	t.Parallel()
	srv, _ := newFeedServer(t, http.StatusOK, `{"type":"FeatureCollection","features":[]}`)

	alerts, err := NewClient(srv.URL, "", time.Second).Active(context.Background(), mustRegion(t, "ALL"))
	require.NoError(t, err)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}

func TestClient_Active_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error", http.StatusInternalServerError, "boom", "returned 500"},
		{"forbidden", http.StatusForbidden, "no user agent", "returned 403"},
		{"bad json", http.StatusOK, "{not json", "decode feature collection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, _ := newFeedServer(t, tt.status, tt.body)
			_, err := NewClient(srv.URL, "", time.Second).Active(context.Background(), mustRegion(t, "WEST"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestClient_Active_ContextCancelled(t *testing.T) {
	t.Parallel()
	srv, _ := newFeedServer(t, http.StatusOK, sampleGeoJSON)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(srv.URL, "", time.Second).Active(ctx, mustRegion(t, "ALL"))
	require.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	c := NewClient("", "", time.Second)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultUserAgent, c.userAgent)

	c = NewClient("http://example.test/", "ua", time.Second)
	assert.Equal(t, "http://example.test", c.baseURL)
}
