package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameHeaderIsLittleEndianLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("abc")))

	assert.Equal(t, []byte{3, 0, 0, 0, 'a', 'b', 'c'}, buf.Bytes())

	payload, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), payload)

	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

// countingReader fails the test if anything past the header is read.
type countingReader struct {
	r    io.Reader
	read int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	return n, err
}

func TestOversizedFrameRejectedBeforePayload(t *testing.T) {
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, MaxFrameSize+1)
	src := &countingReader{r: io.MultiReader(bytes.NewReader(header), bytes.NewReader(make([]byte, 64)))}

	_, err := ReadFrame(src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFrameTooLarge))
	assert.Equal(t, 4, src.read)
}

func TestWriteFrameRefusesOversizedPayload(t *testing.T) {
	err := WriteFrame(io.Discard, make([]byte, MaxFrameSize+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestTruncatedPayload(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{8, 0, 0, 0, 1, 2}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
