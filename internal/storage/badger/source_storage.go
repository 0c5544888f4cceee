package badger

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SourceStorage implements the SourceStorage interface for Badger.
// News and price sources are stored under prefixed keys so the two
// kinds never collide.
type SourceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSourceStorage creates a new SourceStorage instance
func NewSourceStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SourceStorage {
	return &SourceStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SourceStorage) SaveNewsSource(source *models.NewsSource) error {
	if err := source.Validate(); err != nil {
		return err
	}
	if source.ID == "" {
		return fmt.Errorf("news source ID is required")
	}

	now := time.Now().UTC()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now

	if err := s.db.Store().Upsert("news:"+source.ID, source); err != nil {
		return fmt.Errorf("failed to save news source: %w", err)
	}
	return nil
}

// GetNewsSource returns nil without error when no source has the ID
func (s *SourceStorage) GetNewsSource(id string) (*models.NewsSource, error) {
	var source models.NewsSource
	if err := s.db.Store().Get("news:"+id, &source); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get news source: %w", err)
	}
	return &source, nil
}

func (s *SourceStorage) ListNewsSources(enabledOnly bool) ([]*models.NewsSource, error) {
	query := &badgerhold.Query{}
	if enabledOnly {
		query = badgerhold.Where("Enabled").Eq(true)
	}

	var sources []models.NewsSource
	if err := s.db.Store().Find(&sources, query); err != nil {
		return nil, fmt.Errorf("failed to list news sources: %w", err)
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Name < sources[j].Name
	})

	result := make([]*models.NewsSource, len(sources))
	for i := range sources {
		result[i] = &sources[i]
	}
	return result, nil
}

func (s *SourceStorage) SavePriceSource(source *models.PriceSource) error {
	if err := source.Validate(); err != nil {
		return err
	}
	if source.ID == "" {
		return fmt.Errorf("price source ID is required")
	}

	now := time.Now().UTC()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now

	if err := s.db.Store().Upsert("price:"+source.ID, source); err != nil {
		return fmt.Errorf("failed to save price source: %w", err)
	}
	return nil
}

// GetPriceSource returns nil without error when no source has the ID
func (s *SourceStorage) GetPriceSource(id string) (*models.PriceSource, error) {
	var source models.PriceSource
	if err := s.db.Store().Get("price:"+id, &source); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get price source: %w", err)
	}
	return &source, nil
}

func (s *SourceStorage) ListPriceSources(enabledOnly bool) ([]*models.PriceSource, error) {
	query := &badgerhold.Query{}
	if enabledOnly {
		query = badgerhold.Where("Enabled").Eq(true)
	}

	var sources []models.PriceSource
	if err := s.db.Store().Find(&sources, query); err != nil {
		return nil, fmt.Errorf("failed to list price sources: %w", err)
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Name < sources[j].Name
	})

	result := make([]*models.PriceSource, len(sources))
	for i := range sources {
		result[i] = &sources[i]
	}
	return result, nil
}
