package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Result is one hit returned by the external search collaborator.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
	ImgSrc  string `json:"img_src,omitempty"`
}

// Client retrieves web results for a single query.
type Client interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// HTTPClient talks to a SearxNG-style JSON endpoint: GET with a q parameter,
// response shaped as {"results": [...]}.
type HTTPClient struct {
	endpoint string
	apiKey   string
	httpCli  *http.Client
}

// NewHTTPClient creates a search client. timeout bounds each request; zero
// means 10 seconds.
func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
		httpCli:  &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Results []Result `json:"results"`
}

func (c *HTTPClient) Search(ctx context.Context, query string) ([]Result, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("search endpoint not configured")
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"query":  query,
		}).Warn("search backend returned non-200")
		return nil, fmt.Errorf("search backend http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return parsed.Results, nil
}

var _ Client = (*HTTPClient)(nil)
