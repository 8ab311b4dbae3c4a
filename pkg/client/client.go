// Package client provides the HTTP client for the paginated catalog API:
// credential headers, error classification and optional retry.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/nft-catalog-etl/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the OpenSea collections endpoint.
const DefaultBaseURL = "https://api.opensea.io/api/v2/collections"

// maxErrorBody bounds how much of a failed response body ends up in an error.
const maxErrorBody = 512

// Prometheus metrics for catalog API calls.
var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog API requests by status",
	}, []string{"status"})

	catalogRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog API request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	catalogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalog API errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the collections endpoint.
	BaseURL string

	// APIKey is sent as the x-api-key header.
	APIKey string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// Retry policy for retriable error classes.
	Retry RetryConfig
}

// DefaultConfig returns a configuration for the public catalog API.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL: DefaultBaseURL,
		APIKey:  apiKey,
		Timeout: 30 * time.Second,
		Retry:   DefaultRetryConfig(),
	}
}

// CollectionsQuery selects one page of the collections listing.
type CollectionsQuery struct {
	Chain  string
	Limit  int
	Offset int
}

// Values encodes the query parameters.
func (q CollectionsQuery) Values() url.Values {
	v := url.Values{}
	v.Set("chain", q.Chain)
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("offset", strconv.Itoa(q.Offset))
	return v
}

// collectionsResponse is the envelope returned by the collections endpoint.
type collectionsResponse struct {
	Collections []catalog.RawRecord `json:"collections"`
	Next        string              `json:"next,omitempty"`
}

// Client is the catalog API client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		config:     cfg,
		logger:     log.With().Str("component", "catalog-client").Logger(),
	}, nil
}

// GetCollections fetches one page and returns the raw response body.
// Non-2xx responses and transport failures are returned as *APIError.
func (c *Client) GetCollections(ctx context.Context, q CollectionsQuery) ([]byte, error) {
	var body []byte

	err := retryWithBackoff(ctx, c.config.Retry, func() error {
		var reqErr error
		body, reqErr = c.do(ctx, q)
		return reqErr
	}, ClassOf)
	if err != nil {
		return nil, err
	}

	return body, nil
}

func (c *Client) do(ctx context.Context, q CollectionsQuery) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		catalogRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	u := *c.baseURL
	u.RawQuery = q.Values().Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.config.APIKey)

	c.logger.Debug().
		Str("chain", q.Chain).
		Int("limit", q.Limit).
		Int("offset", q.Offset).
		Msg("Executing catalog request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		catalogErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		catalogRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		catalogErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		catalogRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	catalogRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyStatus(resp.StatusCode)
		catalogErrorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Int("offset", q.Offset).
			Msg("Catalog request error")

		msg := resp.Status
		if len(body) > 0 {
			snippet := body
			if len(snippet) > maxErrorBody {
				snippet = snippet[:maxErrorBody]
			}
			msg = fmt.Sprintf("%s: %s", resp.Status, snippet)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, ErrorClass: class, Message: msg}
	}

	return body, nil
}

// classifyStatus categorizes a non-2xx status code.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// DecodeCollections extracts the "collections" array from a response body.
// A body without the key decodes to an empty slice.
func DecodeCollections(body []byte) ([]catalog.RawRecord, error) {
	var resp collectionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		catalogErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &APIError{
			StatusCode: http.StatusOK,
			ErrorClass: ErrorClassDecode,
			Message:    "decode collections response",
			Err:        err,
		}
	}
	if resp.Collections == nil {
		return []catalog.RawRecord{}, nil
	}
	return resp.Collections, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
