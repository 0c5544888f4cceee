package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nousnews/internal/models"
)

const (
	// DefaultTimeout is the default HTTP timeout per source fetch
	DefaultTimeout = 30 * time.Second

	// DefaultMaxItems caps normalized items kept per source per fetch
	DefaultMaxItems = 50

	maxBodySize = 10 * 1024 * 1024 // 10MB
)

// ErrRateLimited signals an HTTP 429 from the provider; the caller
// applies source backoff instead of counting a plain failure.
var ErrRateLimited = errors.New("rate_limited")

// ErrMissingAPIKey signals a source configured for key auth without a key
var ErrMissingAPIKey = errors.New("missing_api_key")

// Client fetches and normalizes items from configured news sources
type Client struct {
	httpClient *http.Client
	logger     arbor.ILogger
	maxItems   int
	userAgent  string
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMaxItems sets the per-source item cap
func WithMaxItems(maxItems int) ClientOption {
	return func(c *Client) {
		if maxItems > 0 {
			c.maxItems = maxItems
		}
	}
}

// NewClient creates a news source fetch client
func NewClient(logger arbor.ILogger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:    logger,
		maxItems:  DefaultMaxItems,
		userAgent: "nousnews/1.0",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch retrieves and normalizes the current batch for a source.
// API sources get auth and filter parameters applied; RSS sources are
// fetched as-is. Items already seen (older than last_fetched_at) are
// dropped, and the batch is capped.
func (c *Client) Fetch(ctx context.Context, source *models.NewsSource) ([]NormalizedItem, error) {
	switch source.Kind {
	case models.SourceKindAPI:
		return c.fetchAPI(ctx, source)
	case models.SourceKindRSS:
		return c.fetchRSS(ctx, source)
	}
	return nil, fmt.Errorf("unsupported source kind: %s", source.Kind)
}

func (c *Client) fetchAPI(ctx context.Context, source *models.NewsSource) ([]NormalizedItem, error) {
	if (source.APIKeyParam != "" || source.APIKeyHeader != "") && source.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	params := url.Values{}
	headers := map[string]string{}
	if source.APIKeyHeader != "" && source.APIKey != "" {
		headers[source.APIKeyHeader] = source.APIKey
	}
	if source.APIKeyParam != "" && source.APIKey != "" {
		params.Set(source.APIKeyParam, source.APIKey)
	}
	if source.QueryParam != "" && source.Query != "" {
		params.Set(source.QueryParam, source.Query)
	}
	if source.LanguageParam != "" && source.Language != "" {
		params.Set(source.LanguageParam, source.Language)
	}
	if source.RegionParam != "" && source.Region != "" {
		params.Set(source.RegionParam, source.Region)
	}
	if source.TopicParam != "" && source.Topic != "" {
		params.Set(source.TopicParam, source.Topic)
	}
	for key, value := range source.ExtraParams {
		params.Set(key, value)
	}
	if source.SinceParam != "" && !source.LastFetchedAt.IsZero() {
		params.Set(source.SinceParam, formatSince(source.LastFetchedAt, source.SinceFormat))
	}

	body, err := c.get(ctx, source.URL, params, headers)
	if err != nil {
		return nil, err
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	var items []NormalizedItem
	for _, entry := range ExtractCandidates(data) {
		normalized := NormalizeEntry(entry)
		if !normalized.Empty() {
			items = append(items, normalized)
		}
	}

	items = filterSince(items, source.LastFetchedAt)
	return capItems(items, c.maxItems), nil
}

func (c *Client) fetchRSS(ctx context.Context, source *models.NewsSource) ([]NormalizedItem, error) {
	body, err := c.get(ctx, source.URL, nil, nil)
	if err != nil {
		return nil, err
	}

	items := filterSince(ParseFeed(string(body)), source.LastFetchedAt)
	return capItems(items, c.maxItems), nil
}

func (c *Client) get(ctx context.Context, baseURL string, params url.Values, headers map[string]string) ([]byte, error) {
	reqURL := baseURL
	if len(params) > 0 {
		sep := "?"
		if u, err := url.Parse(baseURL); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		reqURL = baseURL + sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if c.logger != nil {
		c.logger.Debug().Str("url", baseURL).Msg("Fetching news source")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http_%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// filterSince keeps items with no timestamp or published at/after the
// last fetch, matching provider filters that are inclusive of the edge.
func filterSince(items []NormalizedItem, lastFetchedAt time.Time) []NormalizedItem {
	if lastFetchedAt.IsZero() {
		return items
	}
	var filtered []NormalizedItem
	for _, item := range items {
		if item.PublishedAt.IsZero() || !item.PublishedAt.Before(lastFetchedAt) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func capItems(items []NormalizedItem, max int) []NormalizedItem {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}

func formatSince(value time.Time, format string) string {
	switch format {
	case "unix":
		return strconv.FormatInt(value.Unix(), 10)
	case "rfc3339":
		return value.UTC().Format(time.RFC3339)
	}
	return value.UTC().Format(time.RFC3339)
}
