package seed

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
)

const maxSlugLen = 60

// Apply loads the configured news sources, price sources, and asset
// series into storage. Existing sources keep their runtime bookkeeping
// (last fetch, failure counts) and only have their configuration
// refreshed, so a restart never resets backoff state.
func Apply(config *common.Config, store interfaces.StorageManager, logger arbor.ILogger) error {
	validate := validator.New()

	for i := range config.NewsSources {
		entry := &config.NewsSources[i]
		if err := validate.Struct(entry); err != nil {
			return fmt.Errorf("invalid news source %q: %w", entry.Name, err)
		}
		if err := applyNewsSource(store, entry); err != nil {
			return err
		}
	}

	for i := range config.PriceSources {
		entry := &config.PriceSources[i]
		if err := validate.Struct(entry); err != nil {
			return fmt.Errorf("invalid price source %q: %w", entry.Name, err)
		}
		if err := applyPriceSource(store, entry); err != nil {
			return err
		}
	}

	for i := range config.AssetSeries {
		entry := &config.AssetSeries[i]
		if err := validate.Struct(entry); err != nil {
			return fmt.Errorf("invalid asset series %q: %w", entry.Symbol, err)
		}
		if err := store.PriceStorage().SaveSeries(&models.AssetSeries{
			Symbol:  entry.Symbol,
			Label:   entry.Label,
			Enabled: entry.Enabled,
		}); err != nil {
			return fmt.Errorf("failed to seed asset series %q: %w", entry.Symbol, err)
		}
	}

	logger.Info().
		Int("news_sources", len(config.NewsSources)).
		Int("price_sources", len(config.PriceSources)).
		Int("asset_series", len(config.AssetSeries)).
		Msg("Seeded sources from configuration")
	return nil
}

func applyNewsSource(store interfaces.StorageManager, entry *common.NewsSourceSeed) error {
	id := common.Slugify(entry.Name, maxSlugLen)

	source, err := store.SourceStorage().GetNewsSource(id)
	if err != nil {
		return fmt.Errorf("failed to look up news source %q: %w", entry.Name, err)
	}
	if source == nil {
		source = &models.NewsSource{ID: id}
	}

	source.Name = entry.Name
	source.Kind = entry.Kind
	source.URL = entry.URL
	source.Enabled = entry.Enabled
	source.APIKey = entry.APIKey
	source.APIKeyParam = entry.APIKeyParam
	source.APIKeyHeader = entry.APIKeyHeader
	source.Query = entry.Query
	source.QueryParam = entry.QueryParam
	source.Language = entry.Language
	source.LanguageParam = entry.LanguageParam
	source.Region = entry.Region
	source.RegionParam = entry.RegionParam
	source.Topic = entry.Topic
	source.TopicParam = entry.TopicParam
	source.SinceParam = entry.SinceParam
	source.SinceFormat = entry.SinceFormat
	source.ExtraParams = entry.ExtraParams
	source.RateLimitSeconds = entry.RateLimitSeconds

	if err := store.SourceStorage().SaveNewsSource(source); err != nil {
		return fmt.Errorf("failed to seed news source %q: %w", entry.Name, err)
	}
	return nil
}

func applyPriceSource(store interfaces.StorageManager, entry *common.PriceSourceSeed) error {
	id := common.Slugify(entry.Name, maxSlugLen)

	source, err := store.SourceStorage().GetPriceSource(id)
	if err != nil {
		return fmt.Errorf("failed to look up price source %q: %w", entry.Name, err)
	}
	if source == nil {
		source = &models.PriceSource{ID: id}
	}

	source.Name = entry.Name
	source.Kind = entry.Kind
	source.URL = entry.URL
	source.Symbol = entry.Symbol
	source.Enabled = entry.Enabled
	source.APIKey = entry.APIKey
	source.APIKeyParam = entry.APIKeyParam
	source.APIKeyHeader = entry.APIKeyHeader
	source.ExtraParams = entry.ExtraParams
	source.PriceRegex = entry.PriceRegex
	source.PriceScale = entry.PriceScale
	source.RateLimitPerSec = entry.RateLimitPerSec
	source.RateLimitSeconds = entry.RateLimitSeconds

	if err := store.SourceStorage().SavePriceSource(source); err != nil {
		return fmt.Errorf("failed to seed price source %q: %w", entry.Name, err)
	}
	return nil
}
