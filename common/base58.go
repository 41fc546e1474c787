package common

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Encoding names accepted for transaction payloads on the client surfaces.
const (
	EncodingBase58 = "base58"
	EncodingBase64 = "base64"
)

// EncodeBytesToBase58 encodes bytes directly to base58
func EncodeBytesToBase58(bytes []byte) string {
	return base58.Encode(bytes)
}

// DecodeBase58ToBytes decodes base58 string to bytes
func DecodeBase58ToBytes(base58Str string) ([]byte, error) {
	bytes, err := base58.Decode(base58Str)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base58 string: %w", err)
	}
	return bytes, nil
}

// IsValidBase58 checks if a string is valid base58
func IsValidBase58(str string) bool {
	decoded, err := base58.Decode(str)
	return err == nil && len(decoded) > 0
}

// DecodePayload decodes a client supplied transaction payload. An empty
// encoding defaults to base64, matching the engine's sendTransaction.
func DecodePayload(data, encoding string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, fmt.Errorf("empty payload")
	}
	switch strings.ToLower(encoding) {
	case "", EncodingBase64:
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 payload: %w", err)
		}
		return raw, nil
	case EncodingBase58:
		return DecodeBase58ToBytes(data)
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// EncodePayload is the inverse of DecodePayload.
func EncodePayload(raw []byte, encoding string) (string, error) {
	switch strings.ToLower(encoding) {
	case "", EncodingBase64:
		return base64.StdEncoding.EncodeToString(raw), nil
	case EncodingBase58:
		return base58.Encode(raw), nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", encoding)
	}
}
