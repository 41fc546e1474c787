package transaction_test

import (
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/mezonai/sequencer/jsonx"
	"github.com/mezonai/sequencer/transaction"
	"github.com/mezonai/sequencer/transaction/txtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeepsFirstSignature(t *testing.T) {
	tx := txtest.NewTransfer(t, 10)

	parsed, err := transaction.Parse(tx.Raw)
	require.NoError(t, err)
	assert.Equal(t, tx.Signature, parsed.Signature)
	assert.Equal(t, tx.Signature, parsed.Solana().Signatures[0])
	assert.Equal(t, tx.Raw, parsed.Raw)
}

func TestParseRejectsMalformedPayloads(t *testing.T) {
	tx := txtest.NewTransfer(t, 10)

	_, err := transaction.Parse(nil)
	assert.ErrorIs(t, err, transaction.ErrEmptyPayload)

	_, err = transaction.Parse(append(append([]byte(nil), tx.Raw...), 0x00))
	assert.ErrorIs(t, err, transaction.ErrTrailingBytes)

	_, err = transaction.Parse(tx.Raw[:len(tx.Raw)/2])
	assert.Error(t, err)

	_, err = transaction.Parse(make([]byte, transaction.MaxWireSize+1))
	assert.ErrorIs(t, err, transaction.ErrOversized)
}

func TestDecodeConsecutiveTransactions(t *testing.T) {
	txs := txtest.NewTransfers(t, 3)
	var buf []byte
	for _, tx := range txs {
		buf = append(buf, tx.Raw...)
	}

	dec := bin.NewBinDecoder(buf)
	for _, want := range txs {
		got, err := transaction.Decode(dec)
		require.NoError(t, err)
		assert.Equal(t, want.Signature, got.Signature)
	}
	assert.Equal(t, 0, dec.Remaining())
}

func TestJSONCarriesWireBytes(t *testing.T) {
	tx := txtest.NewTransfer(t, 99)

	data, err := jsonx.Marshal(tx)
	require.NoError(t, err)
	assert.Contains(t, string(data), tx.Signature.String())

	var back transaction.Transaction
	require.NoError(t, jsonx.Unmarshal(data, &back))
	assert.Equal(t, tx.Signature, back.Signature)
	assert.Equal(t, tx.Raw, back.Raw)
}
