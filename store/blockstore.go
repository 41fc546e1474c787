package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mezonai/sequencer/block"
	"github.com/mezonai/sequencer/db"
	"github.com/mezonai/sequencer/jsonx"
	"github.com/mezonai/sequencer/logx"
)

var (
	ErrNilBlock   = errors.New("block cannot be nil")
	ErrOutOfOrder = errors.New("block slot is not the successor of the latest stored slot")
)

// BlockStore persists produced blocks in slot order. It is the record the
// node recovers its chain tip from on restart.
type BlockStore interface {
	Put(b *block.Block) error
	Block(slot uint64) (*block.Block, error)
	Has(slot uint64) (bool, error)
	LatestSlot() uint64
	Latest() (*block.Block, error)
	Range(from, to uint64, fn func(b *block.Block) bool) error
	SlotOf(sig solana.Signature) (uint64, bool, error)
	Close() error
}

// GenericBlockStore is a database-agnostic implementation over DatabaseProvider
type GenericBlockStore struct {
	provider   db.DatabaseProvider
	txm        *db.DBTxManager
	mu         sync.RWMutex
	latestSlot uint64
}

func NewGenericBlockStore(provider db.DatabaseProvider) (*GenericBlockStore, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	store := &GenericBlockStore{
		provider: provider,
		txm:      db.NewDBTxManager(provider),
	}
	if err := store.loadLatestSlot(); err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}
	return store, nil
}

func (s *GenericBlockStore) loadLatestSlot() error {
	value, err := s.provider.Get(latestSlotKey())
	if err != nil {
		return fmt.Errorf("failed to get latest slot: %w", err)
	}
	if value == nil {
		s.latestSlot = block.GenesisSlot
		return nil
	}
	if len(value) != 8 {
		return fmt.Errorf("invalid latest slot value length: %d", len(value))
	}
	s.latestSlot = binary.BigEndian.Uint64(value)
	return nil
}

func latestSlotKey() []byte {
	return []byte(PrefixBlockMeta + BlockMetaKeyLatestSlot)
}

// slotToBlockKey converts a slot number to a block storage key. Big endian
// keeps prefix scans in slot order.
func slotToBlockKey(slot uint64) []byte {
	key := make([]byte, len(PrefixBlock)+8)
	copy(key, PrefixBlock)
	binary.BigEndian.PutUint64(key[len(PrefixBlock):], slot)
	return key
}

func txSlotKey(sig solana.Signature) []byte {
	key := make([]byte, 0, len(PrefixTxSlot)+len(sig))
	key = append(key, PrefixTxSlot...)
	return append(key, sig[:]...)
}

// Put stores b together with the signature index and the new latest slot in
// one batch. b must extend the latest stored slot by exactly one.
func (s *GenericBlockStore) Put(b *block.Block) error {
	if b == nil {
		return ErrNilBlock
	}
	value, err := jsonx.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal block: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b.Slot != s.latestSlot+1 {
		return fmt.Errorf("%w: latest %d, got %d", ErrOutOfOrder, s.latestSlot, b.Slot)
	}

	slotBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(slotBytes, b.Slot)

	err = s.txm.WithBatch(func(batch db.DatabaseBatch) error {
		batch.Put(slotToBlockKey(b.Slot), value)
		for _, tx := range b.Transactions {
			batch.Put(txSlotKey(tx.Signature), slotBytes)
		}
		batch.Put(latestSlotKey(), slotBytes)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store block %d: %w", b.Slot, err)
	}

	s.latestSlot = b.Slot
	logx.Debug("BLOCKSTORE", "Stored block at slot ", b.Slot, " with ", len(b.Transactions), " txs")
	return nil
}

// Block returns the block at slot, or nil when none is stored.
func (s *GenericBlockStore) Block(slot uint64) (*block.Block, error) {
	value, err := s.provider.Get(slotToBlockKey(slot))
	if err != nil {
		return nil, fmt.Errorf("failed to get block %d: %w", slot, err)
	}
	if value == nil {
		return nil, nil
	}
	return decodeBlock(slot, value)
}

func decodeBlock(slot uint64, value []byte) (*block.Block, error) {
	var blk block.Block
	if err := jsonx.Unmarshal(value, &blk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block %d: %w", slot, err)
	}
	if err := blk.CheckTransactions(); err != nil {
		return nil, err
	}
	return &blk, nil
}

func (s *GenericBlockStore) Has(slot uint64) (bool, error) {
	return s.provider.Has(slotToBlockKey(slot))
}

func (s *GenericBlockStore) LatestSlot() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestSlot
}

// Latest returns the block at the latest slot, or nil on an empty store.
func (s *GenericBlockStore) Latest() (*block.Block, error) {
	slot := s.LatestSlot()
	if slot == block.GenesisSlot {
		return nil, nil
	}
	return s.Block(slot)
}

// Range visits stored blocks with from <= slot <= to in ascending order until
// fn returns false. Missing slots are skipped.
func (s *GenericBlockStore) Range(from, to uint64, fn func(b *block.Block) bool) error {
	if from > to {
		return nil
	}
	if iter, ok := s.provider.(db.IterableProvider); ok {
		var decodeErr error
		err := iter.IteratePrefix([]byte(PrefixBlock), func(key, value []byte) bool {
			if len(key) != len(PrefixBlock)+8 {
				return true
			}
			slot := binary.BigEndian.Uint64(key[len(PrefixBlock):])
			if slot < from {
				return true
			}
			if slot > to {
				return false
			}
			blk, err := decodeBlock(slot, value)
			if err != nil {
				decodeErr = err
				return false
			}
			return fn(blk)
		})
		if err != nil {
			return err
		}
		return decodeErr
	}

	for slot := from; slot <= to; slot++ {
		blk, err := s.Block(slot)
		if err != nil {
			return err
		}
		if blk != nil && !fn(blk) {
			return nil
		}
		if slot == to {
			break
		}
	}
	return nil
}

// SlotOf reports the slot whose block carries sig.
func (s *GenericBlockStore) SlotOf(sig solana.Signature) (uint64, bool, error) {
	value, err := s.provider.Get(txSlotKey(sig))
	if err != nil {
		return 0, false, fmt.Errorf("failed to get tx slot: %w", err)
	}
	if value == nil {
		return 0, false, nil
	}
	if len(value) != 8 {
		return 0, false, fmt.Errorf("invalid tx slot value length: %d", len(value))
	}
	return binary.BigEndian.Uint64(value), true, nil
}

func (s *GenericBlockStore) Close() error {
	return s.provider.Close()
}
