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

// RawItemStorage implements the RawItemStorage interface for Badger
type RawItemStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRawItemStorage creates a new RawItemStorage instance
func NewRawItemStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RawItemStorage {
	return &RawItemStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RawItemStorage) SaveItem(item *models.RawItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	if err := s.db.Store().Upsert(item.URL, item); err != nil {
		return fmt.Errorf("failed to save raw item: %w", err)
	}
	return nil
}

func (s *RawItemStorage) GetItem(url string) (*models.RawItem, error) {
	var item models.RawItem
	if err := s.db.Store().Get(url, &item); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("raw item not found: %s", url)
		}
		return nil, fmt.Errorf("failed to get raw item: %w", err)
	}
	return &item, nil
}

func (s *RawItemStorage) HasItem(url string) (bool, error) {
	var item models.RawItem
	err := s.db.Store().Get(url, &item)
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check raw item: %w", err)
	}
	return true, nil
}

// GetItemsInWindow returns items with published_at in [start, end),
// newest first.
func (s *RawItemStorage) GetItemsInWindow(start, end time.Time) ([]*models.RawItem, error) {
	var items []models.RawItem
	err := s.db.Store().Find(&items,
		badgerhold.Where("PublishedAt").Ge(start).And("PublishedAt").Lt(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query raw items: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	result := make([]*models.RawItem, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

func (s *RawItemStorage) GetEarliestItem() (*models.RawItem, error) {
	var items []models.RawItem
	if err := s.db.Store().Find(&items, nil); err != nil {
		return nil, fmt.Errorf("failed to scan raw items: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	earliest := &items[0]
	for i := range items {
		if items[i].PublishedAt.Before(earliest.PublishedAt) {
			earliest = &items[i]
		}
	}
	return earliest, nil
}

func (s *RawItemStorage) CountItems() (int, error) {
	count, err := s.db.Store().Count(&models.RawItem{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count raw items: %w", err)
	}
	return int(count), nil
}

func (s *RawItemStorage) DeleteItemsBefore(cutoff time.Time) (int, error) {
	var items []models.RawItem
	err := s.db.Store().Find(&items, badgerhold.Where("PublishedAt").Lt(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to query raw items for deletion: %w", err)
	}

	deleted := 0
	for i := range items {
		if err := s.db.Store().Delete(items[i].URL, &models.RawItem{}); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return deleted, fmt.Errorf("failed to delete raw item: %w", err)
		}
		deleted++
	}
	return deleted, nil
}
