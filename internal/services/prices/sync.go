package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
	"github.com/ternarybob/nousnews/internal/services/sources"
)

const (
	defaultTimeout  = 20 * time.Second
	maxResponseSize = 10 << 20
	defaultAgent    = "nousnews/1.0"
)

// ErrMissingAPIKey is returned when a source declares key-based auth
// but carries no key.
var ErrMissingAPIKey = errors.New("missing_api_key")

// Stats summarizes one sync pass over the configured price feeds
type Stats struct {
	FeedsChecked   int
	ItemsParsed    int
	PricesRecorded int
}

// Syncer pulls prices from the configured feeds and folds them into
// per-minute candles. One reading per feed per pass is the norm;
// the candle store merges repeat readings within the same minute.
type Syncer struct {
	logger     arbor.ILogger
	store      interfaces.StorageManager
	httpClient *http.Client
	userAgent  string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// SyncerOption configures the Syncer
type SyncerOption func(*Syncer)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) SyncerOption {
	return func(s *Syncer) {
		s.httpClient = httpClient
	}
}

// NewSyncer creates a price feed syncer
func NewSyncer(logger arbor.ILogger, store interfaces.StorageManager, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		logger:     logger,
		store:      store,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultAgent,
		limiters:   make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs one pass over all enabled price sources. Per-source
// failures are recorded with backoff and never abort the pass; the
// returned error covers storage and context failures only.
func (s *Syncer) Sync(ctx context.Context) error {
	now := time.Now().UTC()

	enabled, err := s.store.SourceStorage().ListPriceSources(true)
	if err != nil {
		return fmt.Errorf("failed to list price sources: %w", err)
	}
	if len(enabled) == 0 {
		s.logger.Debug().Msg("No enabled price sources configured")
		return nil
	}

	var stats Stats
	for _, source := range enabled {
		if source.InBackoff(now) {
			s.logger.Debug().
				Str("source", source.Name).
				Str("backoff_until", source.BackoffUntil.Format(time.RFC3339)).
				Msg("Skipping price source in backoff")
			continue
		}

		if err := s.limiterFor(source).Wait(ctx); err != nil {
			return err
		}
		stats.FeedsChecked++

		items, err := s.fetchObservations(ctx, source)
		if err != nil {
			s.recordError(source, err)
			continue
		}

		stats.ItemsParsed += len(items)
		stats.PricesRecorded += s.storeObservations(source, items, now)

		source.LastSyncedAt = now
		source.FailureCount = 0
		source.LastError = ""
		source.BackoffUntil = time.Time{}
		source.UpdatedAt = now
		if err := s.store.SourceStorage().SavePriceSource(source); err != nil {
			s.logger.Warn().Err(err).Str("source", source.Name).Msg("Failed to save price source state")
		}
	}

	s.logger.Info().
		Int("feeds_checked", stats.FeedsChecked).
		Int("items_parsed", stats.ItemsParsed).
		Int("prices_recorded", stats.PricesRecorded).
		Msg("Price feed sync completed")
	return nil
}

func (s *Syncer) fetchObservations(ctx context.Context, source *models.PriceSource) ([]observation, error) {
	switch source.Kind {
	case models.SourceKindRSS:
		return s.fetchRSS(ctx, source)
	case models.SourceKindAPI:
		return s.fetchAPI(ctx, source)
	}
	return nil, fmt.Errorf("unsupported price source kind: %s", source.Kind)
}

func (s *Syncer) fetchRSS(ctx context.Context, source *models.PriceSource) ([]observation, error) {
	body, err := s.get(ctx, source.URL, nil, nil)
	if err != nil {
		return nil, err
	}

	var items []observation
	for _, entry := range sources.ParseFeed(string(body)) {
		text := entry.Title
		if entry.Content != "" {
			text += " " + entry.Content
		} else if entry.Summary != "" {
			text += " " + entry.Summary
		}
		items = append(items, observation{text: text, published: entry.PublishedAt})
	}
	return items, nil
}

func (s *Syncer) fetchAPI(ctx context.Context, source *models.PriceSource) ([]observation, error) {
	if (source.APIKeyParam != "" || source.APIKeyHeader != "") && source.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	params := url.Values{}
	if source.APIKeyParam != "" {
		params.Set(source.APIKeyParam, source.APIKey)
	}
	for key, value := range source.ExtraParams {
		params.Set(key, value)
	}

	headers := map[string]string{}
	if source.APIKeyHeader != "" {
		headers[source.APIKeyHeader] = source.APIKey
	}

	body, err := s.get(ctx, source.URL, params, headers)
	if err != nil {
		return nil, err
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		// Non-JSON bodies still go through the regex extractor
		return []observation{{text: string(body)}}, nil
	}
	return parsePricePayload(data, string(body)), nil
}

func (s *Syncer) get(ctx context.Context, baseURL string, params url.Values, headers map[string]string) ([]byte, error) {
	target := baseURL
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(baseURL, "?") {
			sep = "&"
		}
		target = baseURL + sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http_%d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}

// storeObservations extracts a usable price from each observation and
// merges it into the symbol's minute candle. Structured prices are
// scaled by the source multiplier; regex extraction scales inline.
func (s *Syncer) storeObservations(source *models.PriceSource, items []observation, now time.Time) int {
	if source.Symbol == "" {
		return 0
	}

	recorded := 0
	for _, item := range items {
		price := item.price * source.Scale()
		if !item.hasPrice {
			var ok bool
			price, ok = extractPrice(item.text, source.PriceRegex, source.Scale())
			if !ok {
				continue
			}
		}
		if price <= 0 {
			continue
		}

		at := item.published
		if at.IsZero() {
			at = now
		}

		if _, err := s.store.PriceStorage().UpsertCandle(source.Symbol, at, price, item.volume); err != nil {
			s.logger.Warn().Err(err).
				Str("source", source.Name).
				Str("symbol", source.Symbol).
				Msg("Failed to upsert candle")
			continue
		}
		recorded++
	}
	return recorded
}

// limiterFor returns the per-source limiter, built from the source's
// rate settings on first use. Sources without limits run unthrottled.
func (s *Syncer) limiterFor(source *models.PriceSource) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limiter, ok := s.limiters[source.ID]; ok {
		return limiter
	}

	limit := rate.Inf
	if source.RateLimitPerSec > 0 {
		limit = rate.Limit(source.RateLimitPerSec)
	} else if source.RateLimitSeconds > 0 {
		limit = rate.Every(time.Duration(source.RateLimitSeconds) * time.Second)
	}

	limiter := rate.NewLimiter(limit, 1)
	s.limiters[source.ID] = limiter
	return limiter
}

// recordError bumps the failure count and backs the source off for
// ten minutes per consecutive failure, capped at an hour.
func (s *Syncer) recordError(source *models.PriceSource, fetchErr error) {
	now := time.Now().UTC()
	source.FailureCount++

	message := fetchErr.Error()
	if len(message) > 2000 {
		message = message[:2000]
	}
	source.LastError = message

	backoffMinutes := source.FailureCount * 10
	if backoffMinutes > 60 {
		backoffMinutes = 60
	}
	source.BackoffUntil = now.Add(time.Duration(backoffMinutes) * time.Minute)
	source.UpdatedAt = now

	if err := s.store.SourceStorage().SavePriceSource(source); err != nil {
		s.logger.Warn().Err(err).Str("source", source.Name).Msg("Failed to save price source error state")
	}

	s.logger.Warn().
		Str("source", source.Name).
		Int("failure_count", source.FailureCount).
		Str("backoff_until", source.BackoffUntil.Format(time.RFC3339)).
		Msg("Price source fetch failed: " + message)
}
