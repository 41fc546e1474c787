package blockengine

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mezonai/sequencer/engineclient"
)

// ErrUnavailable is returned when no engine request channel is attached.
var ErrUnavailable = engineclient.ErrUnavailable

// SequenceViolationError is returned when a replayed block is not the direct
// successor of the current slot.
type SequenceViolationError struct {
	Expected uint64
	Actual   uint64
}

func (e *SequenceViolationError) Error() string {
	return fmt.Sprintf("sequence violation: expected slot %d, got %d", e.Expected, e.Actual)
}

// HashMismatchError is returned when a replayed block's hash does not match
// its content.
type HashMismatchError struct {
	Slot     uint64
	Field    string
	Expected solana.Hash
	Actual   solana.Hash
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch at slot %d (%s): expected %s, got %s", e.Slot, e.Field, e.Expected, e.Actual)
}

// ParentMismatchError is returned when a replayed block does not link to the
// current chain tip.
type ParentMismatchError struct {
	Slot     uint64
	Expected solana.Hash
	Actual   solana.Hash
}

func (e *ParentMismatchError) Error() string {
	return fmt.Sprintf("parent mismatch at slot %d: expected previous_blockhash %s, got %s", e.Slot, e.Expected, e.Actual)
}
