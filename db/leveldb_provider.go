package db

import (
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBProvider implements IterableProvider on goleveldb.
type LevelDBProvider struct {
	once sync.Once
	db   *leveldb.DB
}

func NewLevelDBProvider(directory string) (*LevelDBProvider, error) {
	db, err := leveldb.OpenFile(directory, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open LevelDB: %w", err)
	}
	return &LevelDBProvider{db: db}, nil
}

func (p *LevelDBProvider) Get(key []byte) ([]byte, error) {
	value, err := p.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (p *LevelDBProvider) Put(key, value []byte) error {
	return p.db.Put(key, value, nil)
}

func (p *LevelDBProvider) Delete(key []byte) error {
	return p.db.Delete(key, nil)
}

func (p *LevelDBProvider) Has(key []byte) (bool, error) {
	return p.db.Has(key, nil)
}

// Close is idempotent; several stores may share one provider.
func (p *LevelDBProvider) Close() error {
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

func (p *LevelDBProvider) Batch() DatabaseBatch {
	return &levelDBBatch{batch: new(leveldb.Batch), db: p.db}
}

func (p *LevelDBProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	iter := p.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

type levelDBBatch struct {
	batch *leveldb.Batch
	db    *leveldb.DB
}

func (b *levelDBBatch) Put(key, value []byte) { b.batch.Put(key, value) }
func (b *levelDBBatch) Delete(key []byte)     { b.batch.Delete(key) }
func (b *levelDBBatch) Write() error          { return b.db.Write(b.batch, nil) }
func (b *levelDBBatch) Reset()                { b.batch.Reset() }
func (b *levelDBBatch) Close() error          { return nil }
