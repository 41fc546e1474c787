package block

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mezonai/sequencer/jsonx"
	"github.com/mezonai/sequencer/transaction"
	"github.com/mezonai/sequencer/transaction/txtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleBlockLinksToParent(t *testing.T) {
	now := time.Unix(1700000000, 123)
	txs := txtest.NewTransfers(t, 2)

	b := AssembleBlock(7, GenesisHash, now, txs)
	assert.Equal(t, uint64(8), b.Slot)
	assert.Equal(t, uint64(7), b.ParentSlot)
	assert.Equal(t, GenesisHash, b.PreviousBlockhash)
	assert.Equal(t, ComputeHash(txs, 8, GenesisHash, now), b.BlockHash)
	assert.NoError(t, b.Verify())
	assert.Equal(t, []solana.Signature{txs[0].Signature, txs[1].Signature}, b.Signatures())
}

func TestHashDependsOnEveryInput(t *testing.T) {
	now := time.Unix(1700000000, 0)
	txs := txtest.NewTransfers(t, 2)
	base := ComputeHash(txs, 1, GenesisHash, now)

	assert.Equal(t, base, ComputeHash(txs, 1, GenesisHash, now))
	assert.NotEqual(t, base, ComputeHash(txs, 2, GenesisHash, now))
	assert.NotEqual(t, base, ComputeHash(txs, 1, base, now))
	assert.NotEqual(t, base, ComputeHash(txs, 1, GenesisHash, now.Add(time.Nanosecond)))
	assert.NotEqual(t, base, ComputeHash(txs[:1], 1, GenesisHash, now))
	assert.NotEqual(t, base, ComputeHash([]*transaction.Transaction{txs[1], txs[0]}, 1, GenesisHash, now))
}

func TestEmptyBlockIsValid(t *testing.T) {
	b := AssembleBlock(0, GenesisHash, time.Unix(1, 0), nil)
	assert.Equal(t, uint64(1), b.Slot)
	assert.NotNil(t, b.Transactions)
	assert.Empty(t, b.Transactions)
	assert.NotEqual(t, GenesisHash, b.BlockHash)
	assert.NoError(t, b.Verify())
}

func TestVerifyDetectsTampering(t *testing.T) {
	b := AssembleBlock(3, GenesisHash, time.Unix(5, 0), txtest.NewTransfers(t, 1))
	b.BlockTime = b.BlockTime.Add(time.Second)
	assert.Error(t, b.Verify())

	c := AssembleBlock(3, GenesisHash, time.Unix(5, 0), nil)
	c.ParentSlot = 9
	assert.Error(t, c.Verify())
}

func TestBlockJSONKeepsHash(t *testing.T) {
	b := AssembleBlock(4, GenesisHash, time.Unix(1700000000, 987654321).UTC(), txtest.NewTransfers(t, 2))

	data, err := jsonx.Marshal(b)
	require.NoError(t, err)

	var back Block
	require.NoError(t, jsonx.Unmarshal(data, &back))
	assert.Equal(t, b.BlockHash, back.BlockHash)
	assert.True(t, b.BlockTime.Equal(back.BlockTime))
	assert.Equal(t, b.Signatures(), back.Signatures())
	assert.NoError(t, back.Verify())
}
