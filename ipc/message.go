package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/mezonai/sequencer/transaction"
)

// Variant tags, u32 little endian, in declaration order of the engine's enum.
const (
	tagAdvanceTick uint32 = iota
	tagBatchSubmit
	tagResponse
)

var (
	ErrUnknownVariant  = errors.New("unknown ipc message variant")
	ErrTrailingPayload = errors.New("ipc payload has trailing bytes")
	ErrBadLength       = errors.New("ipc length exceeds payload")
)

// Message is one of AdvanceTick, BatchSubmit or Response.
type Message interface {
	tag() uint32
}

// AdvanceTick asks the engine to move its clock by one tick.
type AdvanceTick struct{}

// BatchSubmit carries transactions in wire format plus opaque signer blobs.
type BatchSubmit struct {
	Transactions []*transaction.Transaction
	Signers      [][]byte
}

// Response acknowledges any request.
type Response struct {
	Success bool
	Message string
}

func (AdvanceTick) tag() uint32 { return tagAdvanceTick }
func (BatchSubmit) tag() uint32 { return tagBatchSubmit }
func (Response) tag() uint32    { return tagResponse }

// Encode serializes msg in the engine's bincode layout: u32 variant tag, u64
// sequence and string lengths, one byte booleans.
func Encode(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBinEncoder(&buf)
	if err := enc.WriteUint32(msg.tag(), binary.LittleEndian); err != nil {
		return nil, err
	}
	switch m := msg.(type) {
	case AdvanceTick, *AdvanceTick:
	case BatchSubmit:
		if err := encodeBatch(enc, &m); err != nil {
			return nil, err
		}
	case *BatchSubmit:
		if err := encodeBatch(enc, m); err != nil {
			return nil, err
		}
	case Response:
		if err := encodeResponse(enc, &m); err != nil {
			return nil, err
		}
	case *Response:
		if err := encodeResponse(enc, m); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownVariant, msg)
	}
	if buf.Len() > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, buf.Len())
	}
	return buf.Bytes(), nil
}

func encodeBatch(enc *bin.Encoder, m *BatchSubmit) error {
	if err := enc.WriteUint64(uint64(len(m.Transactions)), binary.LittleEndian); err != nil {
		return err
	}
	for _, tx := range m.Transactions {
		if err := enc.WriteBytes(tx.Raw, false); err != nil {
			return err
		}
	}
	if err := enc.WriteUint64(uint64(len(m.Signers)), binary.LittleEndian); err != nil {
		return err
	}
	for _, signer := range m.Signers {
		if err := writeBlob(enc, signer); err != nil {
			return err
		}
	}
	return nil
}

func encodeResponse(enc *bin.Encoder, m *Response) error {
	var flag byte
	if m.Success {
		flag = 1
	}
	if err := enc.WriteByte(flag); err != nil {
		return err
	}
	return writeBlob(enc, []byte(m.Message))
}

func writeBlob(enc *bin.Encoder, b []byte) error {
	if err := enc.WriteUint64(uint64(len(b)), binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBytes(b, false)
}

// Decode parses a frame payload produced by Encode or by the engine. Variants
// are returned as pointers.
func Decode(payload []byte) (Message, error) {
	dec := bin.NewBinDecoder(payload)
	tag, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read variant: %w", err)
	}

	var msg Message
	switch tag {
	case tagAdvanceTick:
		msg = &AdvanceTick{}
	case tagBatchSubmit:
		batch, err := decodeBatch(dec)
		if err != nil {
			return nil, err
		}
		msg = batch
	case tagResponse:
		resp, err := decodeResponse(dec)
		if err != nil {
			return nil, err
		}
		msg = resp
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariant, tag)
	}
	if dec.Remaining() > 0 {
		return nil, fmt.Errorf("%w: %d", ErrTrailingPayload, dec.Remaining())
	}
	return msg, nil
}

func decodeBatch(dec *bin.Decoder) (*BatchSubmit, error) {
	count, err := readLength(dec)
	if err != nil {
		return nil, fmt.Errorf("read transaction count: %w", err)
	}
	batch := &BatchSubmit{Transactions: make([]*transaction.Transaction, 0, count)}
	for i := 0; i < count; i++ {
		tx, err := transaction.Decode(dec)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		batch.Transactions = append(batch.Transactions, tx)
	}

	signers, err := readLength(dec)
	if err != nil {
		return nil, fmt.Errorf("read signer count: %w", err)
	}
	batch.Signers = make([][]byte, 0, signers)
	for i := 0; i < signers; i++ {
		blob, err := readBlob(dec)
		if err != nil {
			return nil, fmt.Errorf("signer %d: %w", i, err)
		}
		batch.Signers = append(batch.Signers, blob)
	}
	return batch, nil
}

func decodeResponse(dec *bin.Decoder) (*Response, error) {
	flag, err := dec.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read success flag: %w", err)
	}
	if flag > 1 {
		return nil, fmt.Errorf("invalid bool byte %d", flag)
	}
	text, err := readBlob(dec)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	return &Response{Success: flag == 1, Message: string(text)}, nil
}

// readLength reads a u64 length and rejects values that cannot fit in the
// bytes left, so hostile lengths never drive an allocation.
func readLength(dec *bin.Decoder) (int, error) {
	n, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return 0, err
	}
	if n > uint64(dec.Remaining()) {
		return 0, fmt.Errorf("%w: %d > %d", ErrBadLength, n, dec.Remaining())
	}
	return int(n), nil
}

func readBlob(dec *bin.Decoder) ([]byte, error) {
	n, err := readLength(dec)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	return dec.ReadNBytes(n)
}
