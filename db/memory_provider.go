package db

import (
	"bytes"
	"sort"
	"strings"
	"sync"
)

// MemoryProvider keeps everything in a map. Used by tests and dry runs.
type MemoryProvider struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string][]byte)}
}

func (p *MemoryProvider) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	v, ok := p.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (p *MemoryProvider) Put(key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (p *MemoryProvider) Delete(key []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	delete(p.data, string(key))
	return nil
}

func (p *MemoryProvider) Has(key []byte) (bool, error) {
	v, err := p.Get(key)
	return v != nil, err
}

func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *MemoryProvider) Batch() DatabaseBatch {
	return &memoryBatch{p: p}
}

func (p *MemoryProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	keys := make([]string, 0)
	for k := range p.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	values := make(map[string][]byte, len(keys))
	for _, k := range keys {
		values[k] = p.data[k]
	}
	p.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return bytes.Compare([]byte(keys[i]), []byte(keys[j])) < 0 })
	for _, k := range keys {
		if !callback([]byte(k), values[k]) {
			break
		}
	}
	return nil
}

type memoryOp struct {
	key, value []byte
	del        bool
}

type memoryBatch struct {
	p   *MemoryProvider
	ops []memoryOp
}

func (b *memoryBatch) Put(key, value []byte) {
	b.ops = append(b.ops, memoryOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}

func (b *memoryBatch) Delete(key []byte) {
	b.ops = append(b.ops, memoryOp{key: append([]byte(nil), key...), del: true})
}

func (b *memoryBatch) Write() error {
	b.p.mu.Lock()
	defer b.p.mu.Unlock()
	if b.p.closed {
		return ErrClosed
	}
	for _, op := range b.ops {
		if op.del {
			delete(b.p.data, string(op.key))
		} else {
			b.p.data[string(op.key)] = op.value
		}
	}
	return nil
}

func (b *memoryBatch) Reset()       { b.ops = nil }
func (b *memoryBatch) Close() error { b.ops = nil; return nil }
