package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	rawItem interfaces.RawItemStorage
	card    interfaces.CardStorage
	source  interfaces.SourceStorage
	run     interfaces.RunStorage
	log     interfaces.LogStorage
	price   interfaces.PriceStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := newManagerWithDB(db, logger)
	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// NewInMemoryManager creates a manager backed by an ephemeral store, used in tests
func NewInMemoryManager(logger arbor.ILogger) (interfaces.StorageManager, error) {
	db, err := NewInMemoryBadgerDB(logger)
	if err != nil {
		return nil, err
	}
	return newManagerWithDB(db, logger), nil
}

func newManagerWithDB(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:      db,
		rawItem: NewRawItemStorage(db, logger),
		card:    NewCardStorage(db, logger),
		source:  NewSourceStorage(db, logger),
		run:     NewRunStorage(db, logger),
		log:     NewLogStorage(db, logger),
		price:   NewPriceStorage(db, logger),
		logger:  logger,
	}
}

// RawItemStorage returns the RawItem storage interface
func (m *Manager) RawItemStorage() interfaces.RawItemStorage {
	return m.rawItem
}

// CardStorage returns the Card storage interface
func (m *Manager) CardStorage() interfaces.CardStorage {
	return m.card
}

// SourceStorage returns the Source storage interface
func (m *Manager) SourceStorage() interfaces.SourceStorage {
	return m.source
}

// RunStorage returns the Run storage interface
func (m *Manager) RunStorage() interfaces.RunStorage {
	return m.run
}

// LogStorage returns the Log storage interface
func (m *Manager) LogStorage() interfaces.LogStorage {
	return m.log
}

// PriceStorage returns the Price storage interface
func (m *Manager) PriceStorage() interfaces.PriceStorage {
	return m.price
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
