package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providers(t *testing.T) map[string]IterableProvider {
	t.Helper()

	level, err := NewLevelDBProvider(t.TempDir())
	require.NoError(t, err)
	bolt, err := NewBoltProvider(t.TempDir())
	require.NoError(t, err)

	out := map[string]IterableProvider{
		"leveldb": level,
		"bbolt":   bolt,
		"memory":  NewMemoryProvider(),
	}
	t.Cleanup(func() {
		for _, p := range out {
			_ = p.Close()
		}
	})
	return out
}

func TestProviderGetPutDelete(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			v, err := p.Get([]byte("missing"))
			require.NoError(t, err)
			assert.Nil(t, v)

			require.NoError(t, p.Put([]byte("k"), []byte("v1")))
			v, err = p.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), v)

			ok, err := p.Has([]byte("k"))
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, p.Delete([]byte("k")))
			ok, err = p.Has([]byte("k"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestProviderBatchIsAtomicOnWrite(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.Put([]byte("gone"), []byte("x")))

			batch := p.Batch()
			batch.Put([]byte("a"), []byte("1"))
			batch.Put([]byte("b"), []byte("2"))
			batch.Delete([]byte("gone"))

			v, err := p.Get([]byte("a"))
			require.NoError(t, err)
			assert.Nil(t, v, "batch writes must not be visible before Write")

			require.NoError(t, batch.Write())
			require.NoError(t, batch.Close())

			v, err = p.Get([]byte("b"))
			require.NoError(t, err)
			assert.Equal(t, []byte("2"), v)
			ok, err := p.Has([]byte("gone"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestProviderIteratePrefixOrdered(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"p:3", "p:1", "q:0", "p:2"} {
				require.NoError(t, p.Put([]byte(k), []byte(k)))
			}

			var seen []string
			require.NoError(t, p.IteratePrefix([]byte("p:"), func(key, value []byte) bool {
				seen = append(seen, string(key))
				return true
			}))
			assert.Equal(t, []string{"p:1", "p:2", "p:3"}, seen)

			seen = nil
			require.NoError(t, p.IteratePrefix([]byte("p:"), func(key, value []byte) bool {
				seen = append(seen, string(key))
				return len(seen) < 2
			}))
			assert.Equal(t, []string{"p:1", "p:2"}, seen)
		})
	}
}

func TestWithBatchDiscardsOnError(t *testing.T) {
	p := NewMemoryProvider()
	txm := NewDBTxManager(p)

	err := txm.WithBatch(func(batch DatabaseBatch) error {
		batch.Put([]byte("k"), []byte("v"))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	ok, err := p.Has([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, txm.WithBatch(func(batch DatabaseBatch) error {
		batch.Put([]byte("k"), []byte("v"))
		return nil
	}))
	ok, err = p.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryProviderClosed(t *testing.T) {
	p := NewMemoryProvider()
	require.NoError(t, p.Close())
	_, err := p.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, p.Put([]byte("k"), nil), ErrClosed)
}
