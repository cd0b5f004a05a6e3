package metricsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/randysalars/dreamweaving/internal/model"
)

// HTTPFetcher pulls delayed metrics from the publishing platform's REST
// API: GET {base}/v1/content/{ref}/metrics with a bearer token.
type HTTPFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPFetcher creates an HTTPFetcher. timeout bounds each request.
func NewHTTPFetcher(baseURL, apiKey string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type metricsResponse struct {
	Views          int     `json:"views"`
	RetentionPct   float64 `json:"retention_pct"`
	EngagementRate float64 `json:"engagement_rate"`
	Likes          int     `json:"likes"`
	Comments       int     `json:"comments"`
	Sentiment      string  `json:"sentiment"`
}

// Fetch retrieves metrics for one published piece of content.
func (f *HTTPFetcher) Fetch(ctx context.Context, externalRef string) (model.DelayedMetrics, error) {
	endpoint := fmt.Sprintf("%s/v1/content/%s/metrics", f.baseURL, url.PathEscape(externalRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.DelayedMetrics{}, fmt.Errorf("metricsync: build request: %w", err)
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return model.DelayedMetrics{}, fmt.Errorf("metricsync: fetch %s: %w", externalRef, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.DelayedMetrics{}, fmt.Errorf("metricsync: fetch %s: status %d: %s",
			externalRef, resp.StatusCode, body)
	}

	var mr metricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return model.DelayedMetrics{}, fmt.Errorf("metricsync: decode %s: %w", externalRef, err)
	}

	return model.DelayedMetrics{
		Views:          mr.Views,
		RetentionPct:   mr.RetentionPct,
		EngagementRate: mr.EngagementRate,
		Likes:          mr.Likes,
		Comments:       mr.Comments,
		Sentiment:      mr.Sentiment,
	}, nil
}
