package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventType is an enum-like string type for sequencer events
type EventType string

const (
	EventTransactionAddedToPool     EventType = "TransactionAddedToPool"
	EventTransactionIncludedInBlock EventType = "TransactionIncludedInBlock"
	EventTransactionDropped         EventType = "TransactionDropped"
	EventBlockProduced              EventType = "BlockProduced"
	EventBlockReplayed              EventType = "BlockReplayed"
)

// SequencerEvent is anything published on the bus. Subject is the tx
// signature or block hash the event is about.
type SequencerEvent interface {
	Type() EventType
	Timestamp() time.Time
	Subject() string
}

type baseEvent struct {
	timestamp time.Time
}

func newBase() baseEvent { return baseEvent{timestamp: time.Now()} }

func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// TransactionAddedToPool event when a transaction is staged for sequencing
type TransactionAddedToPool struct {
	baseEvent
	Signature solana.Signature
	Source    string
}

func NewTransactionAddedToPool(sig solana.Signature, source string) *TransactionAddedToPool {
	return &TransactionAddedToPool{baseEvent: newBase(), Signature: sig, Source: source}
}

func (e *TransactionAddedToPool) Type() EventType { return EventTransactionAddedToPool }
func (e *TransactionAddedToPool) Subject() string { return e.Signature.String() }

// TransactionIncludedInBlock event when a committed transaction lands in a block
type TransactionIncludedInBlock struct {
	baseEvent
	Signature solana.Signature
	Slot      uint64
	BlockHash solana.Hash
}

func NewTransactionIncludedInBlock(sig solana.Signature, slot uint64, blockHash solana.Hash) *TransactionIncludedInBlock {
	return &TransactionIncludedInBlock{baseEvent: newBase(), Signature: sig, Slot: slot, BlockHash: blockHash}
}

func (e *TransactionIncludedInBlock) Type() EventType { return EventTransactionIncludedInBlock }
func (e *TransactionIncludedInBlock) Subject() string { return e.Signature.String() }

// TransactionDropped event when the pool gives up on a transaction
type TransactionDropped struct {
	baseEvent
	Signature solana.Signature
	Attempts  int
	Reason    string
}

func NewTransactionDropped(sig solana.Signature, attempts int, reason string) *TransactionDropped {
	return &TransactionDropped{baseEvent: newBase(), Signature: sig, Attempts: attempts, Reason: reason}
}

func (e *TransactionDropped) Type() EventType { return EventTransactionDropped }
func (e *TransactionDropped) Subject() string { return e.Signature.String() }

// BlockProduced event when the node seals a new block
type BlockProduced struct {
	baseEvent
	Slot      uint64
	BlockHash solana.Hash
	TxCount   int
}

func NewBlockProduced(slot uint64, blockHash solana.Hash, txCount int) *BlockProduced {
	return &BlockProduced{baseEvent: newBase(), Slot: slot, BlockHash: blockHash, TxCount: txCount}
}

func (e *BlockProduced) Type() EventType { return EventBlockProduced }
func (e *BlockProduced) Subject() string { return e.BlockHash.String() }

// BlockReplayed event when a stored block is re-applied to the engine
type BlockReplayed struct {
	baseEvent
	Slot      uint64
	BlockHash solana.Hash
	Applied   bool
}

func NewBlockReplayed(slot uint64, blockHash solana.Hash, applied bool) *BlockReplayed {
	return &BlockReplayed{baseEvent: newBase(), Slot: slot, BlockHash: blockHash, Applied: applied}
}

func (e *BlockReplayed) Type() EventType { return EventBlockReplayed }
func (e *BlockReplayed) Subject() string { return e.BlockHash.String() }
