package block

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mezonai/sequencer/transaction"
)

// GenesisHash seeds the chain at slot 0.
var GenesisHash = solana.Hash{}

const GenesisSlot uint64 = 0

// ErrNilTransaction marks a block with an empty transaction entry, as decoded
// from a JSON null.
var ErrNilTransaction = errors.New("block holds a nil transaction")

// Block is the immutable result of one production round.
type Block struct {
	Slot              uint64                     `json:"slot"`
	ParentSlot        uint64                     `json:"parent_slot"`
	BlockHash         solana.Hash                `json:"block_hash"`
	PreviousBlockhash solana.Hash                `json:"previous_blockhash"`
	BlockTime         time.Time                  `json:"block_time"`
	Transactions      []*transaction.Transaction `json:"transactions"`
}

// AssembleBlock builds the child of (parentSlot, prevHash) holding txs.
func AssembleBlock(parentSlot uint64, prevHash solana.Hash, blockTime time.Time, txs []*transaction.Transaction) *Block {
	if txs == nil {
		txs = []*transaction.Transaction{}
	}
	b := &Block{
		Slot:              parentSlot + 1,
		ParentSlot:        parentSlot,
		PreviousBlockhash: prevHash,
		BlockTime:         blockTime,
		Transactions:      txs,
	}
	b.BlockHash = ComputeHash(txs, b.Slot, prevHash, blockTime)
	return b
}

// ComputeHash is sha256 over the slot, the previous hash, the block time and
// every transaction's signature and wire bytes, all lengths big endian.
func ComputeHash(txs []*transaction.Transaction, slot uint64, prevHash solana.Hash, blockTime time.Time) solana.Hash {
	h := sha256.New()
	buf := make([]byte, 8)

	binary.BigEndian.PutUint64(buf, slot)
	h.Write(buf)
	h.Write(prevHash[:])
	binary.BigEndian.PutUint64(buf, uint64(blockTime.UnixNano()))
	h.Write(buf)

	binary.BigEndian.PutUint64(buf, uint64(len(txs)))
	h.Write(buf)
	for _, tx := range txs {
		h.Write(tx.Signature[:])
		binary.BigEndian.PutUint64(buf, uint64(len(tx.Raw)))
		h.Write(buf)
		h.Write(tx.Raw)
	}

	var out solana.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// CheckTransactions rejects nil entries, which ComputeHash cannot hash.
func (b *Block) CheckTransactions() error {
	for i, tx := range b.Transactions {
		if tx == nil {
			return fmt.Errorf("block %d: transaction %d: %w", b.Slot, i, ErrNilTransaction)
		}
	}
	return nil
}

// Verify recomputes the hash and checks the slot linkage.
func (b *Block) Verify() error {
	if err := b.CheckTransactions(); err != nil {
		return err
	}
	if b.Slot != b.ParentSlot+1 {
		return fmt.Errorf("block %d: parent slot %d is not slot-1", b.Slot, b.ParentSlot)
	}
	if got := b.ComputedHash(); got != b.BlockHash {
		return fmt.Errorf("block %d: hash %s does not match content hash %s", b.Slot, b.BlockHash, got)
	}
	return nil
}

func (b *Block) ComputedHash() solana.Hash {
	return ComputeHash(b.Transactions, b.Slot, b.PreviousBlockhash, b.BlockTime)
}

// Signatures lists the transaction signatures in block order.
func (b *Block) Signatures() []solana.Signature {
	sigs := make([]solana.Signature, len(b.Transactions))
	for i, tx := range b.Transactions {
		sigs[i] = tx.Signature
	}
	return sigs
}
