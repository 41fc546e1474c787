package transaction

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mezonai/sequencer/common"
	"github.com/mezonai/sequencer/jsonx"
)

// MaxWireSize is the largest serialized transaction the engine accepts.
const MaxWireSize = 1232

var (
	ErrEmptyPayload   = errors.New("transaction payload is empty")
	ErrOversized      = errors.New("transaction payload exceeds wire size limit")
	ErrMissingSig     = errors.New("transaction carries no signature")
	ErrTrailingBytes  = errors.New("transaction payload has trailing bytes")
	ErrSignatureClash = errors.New("transaction signature does not match payload")
)

// Transaction is a signed engine transaction kept in its wire form. The
// first signature identifies it everywhere in the sequencer.
type Transaction struct {
	Signature solana.Signature
	Raw       []byte

	tx *solana.Transaction
}

// Parse decodes a single wire-format transaction.
func Parse(raw []byte) (*Transaction, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}
	if len(raw) > MaxWireSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrOversized, len(raw))
	}
	dec := bin.NewBinDecoder(raw)
	tx, err := solana.TransactionFromDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if dec.Remaining() > 0 {
		return nil, fmt.Errorf("%w: %d", ErrTrailingBytes, dec.Remaining())
	}
	return fromDecoded(tx, append([]byte(nil), raw...))
}

// Decode reads the next transaction from a decoder positioned inside a larger
// payload (for example a batch frame).
func Decode(dec *bin.Decoder) (*Transaction, error) {
	tx, err := solana.TransactionFromDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return fromDecoded(tx, raw)
}

// FromSolana wraps an already built transaction.
func FromSolana(tx *solana.Transaction) (*Transaction, error) {
	if tx == nil {
		return nil, ErrEmptyPayload
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return fromDecoded(tx, raw)
}

func fromDecoded(tx *solana.Transaction, raw []byte) (*Transaction, error) {
	if len(tx.Signatures) == 0 || tx.Signatures[0] == (solana.Signature{}) {
		return nil, ErrMissingSig
	}
	return &Transaction{
		Signature: tx.Signatures[0],
		Raw:       raw,
		tx:        tx,
	}, nil
}

// Solana returns the decoded transaction.
func (t *Transaction) Solana() *solana.Transaction {
	return t.tx
}

func (t *Transaction) String() string {
	return t.Signature.String()
}

type wireJSON struct {
	Signature string `json:"signature"`
	Raw       string `json:"raw"`
}

func (t *Transaction) MarshalJSON() ([]byte, error) {
	raw, err := common.EncodePayload(t.Raw, common.EncodingBase64)
	if err != nil {
		return nil, err
	}
	return jsonx.Marshal(wireJSON{Signature: t.Signature.String(), Raw: raw})
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var w wireJSON
	if err := jsonx.Unmarshal(data, &w); err != nil {
		return err
	}
	raw, err := common.DecodePayload(w.Raw, common.EncodingBase64)
	if err != nil {
		return err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	if w.Signature != "" && w.Signature != parsed.Signature.String() {
		return fmt.Errorf("%w: %s", ErrSignatureClash, w.Signature)
	}
	*t = *parsed
	return nil
}
