package db

import (
	"fmt"

	"github.com/mezonai/sequencer/logx"
)

// DBTxManager runs a group of writes as one batch.
type DBTxManager struct {
	provider DatabaseProvider
}

func NewDBTxManager(provider DatabaseProvider) *DBTxManager {
	return &DBTxManager{provider: provider}
}

// WithBatch commits the batch when fn returns nil and discards it otherwise.
func (tm *DBTxManager) WithBatch(fn func(batch DatabaseBatch) error) error {
	batch := tm.provider.Batch()
	defer func() {
		if err := batch.Close(); err != nil {
			logx.Error("DB", "Failed to close batch: ", err)
		}
	}()

	if err := fn(batch); err != nil {
		batch.Reset()
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}
