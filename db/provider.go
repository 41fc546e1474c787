package db

import "errors"

var ErrClosed = errors.New("database provider closed")

// DatabaseProvider is the key/value surface the block store is written
// against. Get returns (nil, nil) for a missing key.
type DatabaseProvider interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	Close() error
	Batch() DatabaseBatch
}

// IterableProvider adds ordered prefix scans.
type IterableProvider interface {
	DatabaseProvider

	// IteratePrefix visits keys with prefix in ascending byte order until the
	// callback returns false.
	IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error
}

// DatabaseBatch collects writes applied atomically by Write.
type DatabaseBatch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Write() error
	Reset()
	Close() error
}
