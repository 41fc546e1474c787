package db

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("sequencer")

// BoltProvider implements IterableProvider on a single bbolt bucket.
type BoltProvider struct {
	db *bolt.DB
}

func NewBoltProvider(directory string) (*BoltProvider, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bbolt directory: %w", err)
	}
	db, err := bolt.Open(filepath.Join(directory, "sequencer.db"), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltProvider{db: db}, nil
}

func (p *BoltProvider) Get(key []byte) ([]byte, error) {
	var out []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(boltBucket).Get(key); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (p *BoltProvider) Put(key, value []byte) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
}

func (p *BoltProvider) Delete(key []byte) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	})
}

func (p *BoltProvider) Has(key []byte) (bool, error) {
	v, err := p.Get(key)
	return v != nil, err
}

func (p *BoltProvider) Close() error {
	return p.db.Close()
}

func (p *BoltProvider) Batch() DatabaseBatch {
	return &boltBatch{db: p.db}
}

func (p *BoltProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	return p.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !callback(k, v) {
				return nil
			}
		}
		return nil
	})
}

type boltOp struct {
	key, value []byte
	del        bool
}

type boltBatch struct {
	db  *bolt.DB
	ops []boltOp
}

func (b *boltBatch) Put(key, value []byte) {
	b.ops = append(b.ops, boltOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}

func (b *boltBatch) Delete(key []byte) {
	b.ops = append(b.ops, boltOp{key: append([]byte(nil), key...), del: true})
}

func (b *boltBatch) Write() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, op := range b.ops {
			var err error
			if op.del {
				err = bucket.Delete(op.key)
			} else {
				err = bucket.Put(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *boltBatch) Reset()       { b.ops = nil }
func (b *boltBatch) Close() error { b.ops = nil; return nil }
