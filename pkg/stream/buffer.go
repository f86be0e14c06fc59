package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/marmos91/dittostream/pkg/backend"
)

var errNegativePosition = errors.New("negative position")

// buffer is the byte arena behind a session.
//
// It starts in one of two states:
//   - owned: data is private to the session and mutated in place
//   - borrowed: reads go to a seekable backend stream that may alias
//     storage the session does not own
//
// The first mutation of a borrowed buffer copies the source into owned
// memory and closes it ("clone on first write"). Once owned, a buffer never
// goes back to borrowing.
type buffer struct {
	src  io.ReadSeeker
	body io.Closer
	size int64

	data []byte
	pos  int64
}

func newOwnedBuffer(data []byte) *buffer {
	return &buffer{data: data}
}

// adoptStream builds a buffer from a backend read stream.
//
// An ExclusiveStream hands its bytes over without a copy. A seekable stream
// is borrowed. Anything else is drained into owned memory right away, since
// it cannot be re-read later.
func adoptStream(rc io.ReadCloser) (*buffer, error) {
	if ex, ok := rc.(backend.ExclusiveStream); ok {
		data := ex.Exclusive()
		_ = rc.Close()
		return newOwnedBuffer(data), nil
	}

	if rs, ok := rc.(io.ReadSeeker); ok {
		size, err := rs.Seek(0, io.SeekEnd)
		if err == nil {
			_, err = rs.Seek(0, io.SeekStart)
		}
		if err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("failed to size stream: %w", err)
		}
		return &buffer{src: rs, body: rc, size: size}, nil
	}

	data, err := io.ReadAll(rc)
	closeErr := rc.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return newOwnedBuffer(data), nil
}

// borrowed reports whether the buffer still reads from a backend stream.
func (b *buffer) borrowed() bool {
	return b.src != nil
}

// own copies a borrowed source into private memory.
func (b *buffer) own() error {
	if b.src == nil {
		return nil
	}

	data := make([]byte, b.size)
	if _, err := b.src.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.ReadFull(b.src, data); err != nil {
		return fmt.Errorf("failed to copy stream: %w", err)
	}
	_ = b.body.Close()

	b.src, b.body = nil, nil
	b.data = data
	return nil
}

// Len returns the buffer size in bytes.
func (b *buffer) Len() int64 {
	if b.src != nil {
		return b.size
	}
	return int64(len(b.data))
}

// remaining is the number of bytes between the position and the end.
func (b *buffer) remaining() int64 {
	return max(0, b.Len()-b.pos)
}

func (b *buffer) Read(p []byte) (int, error) {
	if b.pos >= b.Len() {
		return 0, io.EOF
	}

	if b.src != nil {
		if _, err := b.src.Seek(b.pos, io.SeekStart); err != nil {
			return 0, err
		}
		n, err := b.src.Read(p)
		b.pos += int64(n)
		return n, err
	}

	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

// Seek moves the position. Positions past the end are allowed; a later
// write fills the gap with zeros.
func (b *buffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.pos + offset
	case io.SeekEnd:
		abs = b.Len() + offset
	default:
		return b.pos, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return b.pos, errNegativePosition
	}
	b.pos = abs
	return abs, nil
}

func (b *buffer) Write(p []byte) (int, error) {
	if err := b.own(); err != nil {
		return 0, err
	}

	end := b.pos + int64(len(p))
	if end > int64(len(b.data)) {
		b.resize(end)
	}
	copy(b.data[b.pos:end], p)
	b.pos = end
	return len(p), nil
}

// Truncate resizes the buffer without moving the position.
func (b *buffer) Truncate(size int64) error {
	if size < 0 {
		return errNegativePosition
	}
	if err := b.own(); err != nil {
		return err
	}
	b.resize(size)
	return nil
}

// resize sets the length of owned data, zero-filling any growth.
func (b *buffer) resize(n int64) {
	old := int64(len(b.data))
	switch {
	case n <= old:
		b.data = b.data[:n]
	case n <= int64(cap(b.data)):
		b.data = b.data[:n]
		clear(b.data[old:])
	default:
		grown := make([]byte, n, max(n, 2*int64(cap(b.data))))
		copy(grown, b.data)
		b.data = grown
	}
}

// Close releases the source and the owned memory.
func (b *buffer) Close() error {
	var err error
	if b.body != nil {
		err = b.body.Close()
	}
	b.src, b.body, b.data = nil, nil, nil
	b.size, b.pos = 0, 0
	return err
}
