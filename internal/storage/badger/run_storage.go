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

// RunStorage implements the RunStorage interface for Badger
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SaveRun(run *models.AgentRun) error {
	if err := run.Validate(); err != nil {
		return err
	}

	if err := s.db.Store().Upsert(run.UUID, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *RunStorage) GetRun(uuid string) (*models.AgentRun, error) {
	var run models.AgentRun
	if err := s.db.Store().Get(uuid, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("run not found: %s", uuid)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// GetActiveRun returns the run currently in "running" status, or nil
func (s *RunStorage) GetActiveRun() (*models.AgentRun, error) {
	var runs []models.AgentRun
	err := s.db.Store().Find(&runs,
		badgerhold.Where("Status").Eq(models.RunStatusRunning).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find active run: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// ListRuns returns runs newest first
func (s *RunStorage) ListRuns(limit int) ([]*models.AgentRun, error) {
	var runs []models.AgentRun
	if err := s.db.Store().Find(&runs, nil); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	result := make([]*models.AgentRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

// DeleteRunsBefore removes finished runs started before the cutoff
func (s *RunStorage) DeleteRunsBefore(cutoff time.Time) (int, error) {
	var runs []models.AgentRun
	err := s.db.Store().Find(&runs, badgerhold.Where("StartedAt").Lt(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to query runs for deletion: %w", err)
	}

	deleted := 0
	for i := range runs {
		if !runs[i].IsFinished() {
			continue
		}
		if err := s.db.Store().Delete(runs[i].UUID, &models.AgentRun{}); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return deleted, fmt.Errorf("failed to delete run: %w", err)
		}
		deleted++
	}
	return deleted, nil
}
