// Package txtest builds signed transfer transactions for tests.
package txtest

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mezonai/sequencer/transaction"
	"github.com/stretchr/testify/require"
)

// NewTransfer returns a signed transfer from a fresh payer. Every call yields a
// distinct signature.
func NewTransfer(t testing.TB, lamports uint64) *transaction.Transaction {
	t.Helper()

	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, payer.PublicKey(), recipient.PublicKey()).Build(),
		},
		solana.HashFromBytes(make([]byte, 32)),
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	})
	require.NoError(t, err)

	wrapped, err := transaction.FromSolana(tx)
	require.NoError(t, err)
	return wrapped
}

// NewTransfers returns n distinct signed transfers.
func NewTransfers(t testing.TB, n int) []*transaction.Transaction {
	t.Helper()
	out := make([]*transaction.Transaction, n)
	for i := range out {
		out[i] = NewTransfer(t, uint64(i+1))
	}
	return out
}
