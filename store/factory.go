package store

import (
	"fmt"

	"github.com/mezonai/sequencer/db"
)

// StoreType represents the type of store implementation
type StoreType string

const (
	LevelDBStoreType StoreType = "leveldb"
	BoltStoreType    StoreType = "bbolt"
	MemoryStoreType  StoreType = "memory"
)

// StoreConfig holds configuration for creating store instances
type StoreConfig struct {
	Type StoreType `json:"type" yaml:"type"`

	// Directory is the database directory path, unused by the memory store.
	Directory string `json:"directory" yaml:"directory"`
}

func (sc *StoreConfig) Validate() error {
	if sc.Type == "" {
		return fmt.Errorf("store type cannot be empty")
	}

	switch sc.Type {
	case LevelDBStoreType, BoltStoreType:
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty")
		}
		return nil
	case MemoryStoreType:
		return nil
	default:
		return fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}

// StoreFactory take responsibility to create store instances
type StoreFactory struct{}

func NewStoreFactory() *StoreFactory {
	return &StoreFactory{}
}

func (sf *StoreFactory) CreateBlockStore(config *StoreConfig) (*GenericBlockStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	provider, err := sf.CreateProvider(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	blkStore, err := NewGenericBlockStore(provider)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("failed to create block store: %w", err)
	}
	return blkStore, nil
}

func (sf *StoreFactory) CreateProvider(config *StoreConfig) (db.DatabaseProvider, error) {
	switch config.Type {
	case LevelDBStoreType:
		return db.NewLevelDBProvider(config.Directory)
	case BoltStoreType:
		return db.NewBoltProvider(config.Directory)
	case MemoryStoreType:
		return db.NewMemoryProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

var globalFactory = NewStoreFactory()

// CreateBlockStore creates a block store using the global factory
func CreateBlockStore(config *StoreConfig) (*GenericBlockStore, error) {
	return globalFactory.CreateBlockStore(config)
}
