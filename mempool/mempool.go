package mempool

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mezonai/sequencer/monitoring"
	"github.com/mezonai/sequencer/transaction"
)

var ErrDuplicate = errors.New("transaction already in pool")

// DuplicateError carries the signature that was rejected.
type DuplicateError struct {
	Signature solana.Signature
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDuplicate.Error(), e.Signature)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// Entry is one staged transaction. Entries are never mutated after admission.
type Entry struct {
	Tx        *transaction.Transaction
	Signature solana.Signature
	AddedAt   time.Time
}

// Pool is an admission ordered set of pending transactions keyed by
// signature. Each method holds the lock only for its own duration.
type Pool struct {
	mu    sync.Mutex
	order *list.List
	index map[solana.Signature]*list.Element
}

// NewPool creates a new, empty pool.
func NewPool() *Pool {
	return &Pool{
		order: list.New(),
		index: make(map[solana.Signature]*list.Element),
	}
}

// Push appends tx at the tail. A signature already in the pool is rejected and
// the existing entry keeps its position.
func (p *Pool) Push(tx *transaction.Transaction) error {
	if tx == nil {
		return transaction.ErrEmptyPayload
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.index[tx.Signature]; ok {
		return &DuplicateError{Signature: tx.Signature}
	}
	entry := &Entry{Tx: tx, Signature: tx.Signature, AddedAt: time.Now()}
	p.index[tx.Signature] = p.order.PushBack(entry)
	monitoring.SetPoolSize(p.order.Len())
	return nil
}

// GetFront returns up to count entries from the head without removing them.
func (p *Pool) GetFront(count int) []*Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	if count <= 0 || p.order.Len() == 0 {
		return nil
	}
	if count > p.order.Len() {
		count = p.order.Len()
	}
	out := make([]*Entry, 0, count)
	for e := p.order.Front(); e != nil && len(out) < count; e = e.Next() {
		out = append(out, e.Value.(*Entry))
	}
	return out
}

// Remove drops the entry for sig wherever it sits in the pool.
func (p *Pool) Remove(sig solana.Signature) (*Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.removeLocked(sig)
	if ok {
		monitoring.SetPoolSize(p.order.Len())
	}
	return entry, ok
}

// RemoveBatch removes every present signature and returns the removed entries
// in the order the signatures were given. Missing signatures are skipped.
func (p *Pool) RemoveBatch(sigs []solana.Signature) []*Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := make([]*Entry, 0, len(sigs))
	for _, sig := range sigs {
		if entry, ok := p.removeLocked(sig); ok {
			removed = append(removed, entry)
		}
	}
	monitoring.SetPoolSize(p.order.Len())
	return removed
}

func (p *Pool) removeLocked(sig solana.Signature) (*Entry, bool) {
	elem, ok := p.index[sig]
	if !ok {
		return nil, false
	}
	delete(p.index, sig)
	return p.order.Remove(elem).(*Entry), true
}

// Contains reports whether sig is staged.
func (p *Pool) Contains(sig solana.Signature) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.index[sig]
	return ok
}

// Len returns the number of staged transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}

// Pending returns the signatures of every staged transaction in admission order.
func (p *Pool) Pending() []solana.Signature {
	p.mu.Lock()
	defer p.mu.Unlock()

	sigs := make([]solana.Signature, 0, p.order.Len())
	for e := p.order.Front(); e != nil; e = e.Next() {
		sigs = append(sigs, e.Value.(*Entry).Signature)
	}
	return sigs
}
