package stream

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seekableBody struct {
	*bytes.Reader
	closed int
}

func (s *seekableBody) Close() error {
	s.closed++
	return nil
}

type plainBody struct {
	io.Reader
	closed int
}

func (p *plainBody) Close() error {
	p.closed++
	return nil
}

type ownedBody struct {
	seekableBody
	data []byte
}

func (o *ownedBody) Exclusive() []byte {
	return o.data
}

func TestAdoptSeekableStreamBorrows(t *testing.T) {
	body := &seekableBody{Reader: bytes.NewReader([]byte("hello"))}

	b, err := adoptStream(body)
	require.NoError(t, err)
	assert.True(t, b.borrowed())
	assert.Equal(t, int64(5), b.Len())

	p := make([]byte, 3)
	n, err := b.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "hel", string(p[:n]))

	_, err = b.Write([]byte("P"))
	require.NoError(t, err)
	assert.False(t, b.borrowed())
	assert.Equal(t, 1, body.closed, "source closed once owned")
	assert.Equal(t, "helPo", string(b.data))
}

func TestAdoptExclusiveStreamTakesBytes(t *testing.T) {
	data := []byte("mine")
	body := &ownedBody{seekableBody: seekableBody{Reader: bytes.NewReader(data)}, data: data}

	b, err := adoptStream(body)
	require.NoError(t, err)
	assert.False(t, b.borrowed())
	assert.Equal(t, 1, body.closed)

	_, err = b.Write([]byte("M"))
	require.NoError(t, err)
	assert.Equal(t, "Mine", string(data), "exclusive bytes are mutated in place")
}

func TestAdoptPlainStreamDrains(t *testing.T) {
	body := &plainBody{Reader: bytes.NewBufferString("drained")}

	b, err := adoptStream(body)
	require.NoError(t, err)
	assert.False(t, b.borrowed())
	assert.Equal(t, 1, body.closed)
	assert.Equal(t, "drained", string(b.data))
}

func TestBufferWritePastEndZeroFills(t *testing.T) {
	b := newOwnedBuffer([]byte("ab"))

	_, err := b.Seek(4, io.SeekStart)
	require.NoError(t, err)
	_, err = b.Write([]byte("z"))
	require.NoError(t, err)

	assert.Equal(t, []byte{'a', 'b', 0, 0, 'z'}, b.data)
}

func TestBufferTruncate(t *testing.T) {
	b := newOwnedBuffer([]byte("hello"))
	_, err := b.Seek(4, io.SeekStart)
	require.NoError(t, err)

	require.NoError(t, b.Truncate(2))
	assert.Equal(t, "he", string(b.data))
	assert.Equal(t, int64(4), b.pos, "position is unchanged")

	require.NoError(t, b.Truncate(4))
	assert.Equal(t, []byte{'h', 'e', 0, 0}, b.data, "growth is zero-filled even over old bytes")

	assert.Error(t, b.Truncate(-1))
}

func TestBufferSeek(t *testing.T) {
	b := newOwnedBuffer([]byte("0123456789"))

	pos, err := b.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pos)

	pos, err = b.Seek(2, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(9), pos)

	_, err = b.Seek(-20, io.SeekCurrent)
	assert.True(t, errors.Is(err, errNegativePosition))
	assert.Equal(t, int64(9), b.pos, "failed seek keeps the position")

	_, err = b.Seek(0, 42)
	assert.Error(t, err)
}

func TestBufferReadAtEnd(t *testing.T) {
	b := newOwnedBuffer([]byte("x"))

	_, err := b.Seek(1, io.SeekStart)
	require.NoError(t, err)
	n, err := b.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}
