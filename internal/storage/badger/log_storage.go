package badger

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// LogStorage implements the LogStorage interface for Badger
type LogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLogStorage creates a new LogStorage instance
func NewLogStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LogStorage {
	return &LogStorage{
		db:     db,
		logger: logger,
	}
}

func (s *LogStorage) AppendEvent(event *models.AgentLogEvent) error {
	if event.Step == "" || event.Message == "" {
		return fmt.Errorf("log event requires step and message")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if err := s.db.Store().Insert(event.ID, event); err != nil {
		return fmt.Errorf("failed to append log event: %w", err)
	}
	return nil
}

// GetEventsByRun returns a run's events in chronological order
func (s *LogStorage) GetEventsByRun(runUUID string, limit int) ([]*models.AgentLogEvent, error) {
	var events []models.AgentLogEvent
	if err := s.db.Store().Find(&events, badgerhold.Where("RunUUID").Eq(runUUID)); err != nil {
		return nil, fmt.Errorf("failed to query log events: %w", err)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	result := make([]*models.AgentLogEvent, len(events))
	for i := range events {
		result[i] = &events[i]
	}
	return result, nil
}

func (s *LogStorage) DeleteEventsBefore(cutoff time.Time) (int, error) {
	var events []models.AgentLogEvent
	err := s.db.Store().Find(&events, badgerhold.Where("CreatedAt").Lt(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to query log events for deletion: %w", err)
	}

	deleted := 0
	for i := range events {
		if err := s.db.Store().Delete(events[i].ID, &models.AgentLogEvent{}); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return deleted, fmt.Errorf("failed to delete log event: %w", err)
		}
		deleted++
	}
	return deleted, nil
}
