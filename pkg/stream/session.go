package stream

import (
	"context"
	"errors"
	"io"

	"github.com/marmos91/dittostream/internal/logger"
	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/lock"
)

// Session is one open stream: a buffer over a logical path plus the flags
// derived from the open mode. Writes stay in the buffer until Flush or
// Close hands it to the backend, so other readers of the path keep seeing
// the committed content until then.
//
// A Session is not safe for concurrent use.
type Session struct {
	fs   *Filesystem
	ctx  context.Context
	path string
	mode Mode

	buf   *buffer
	dirty bool

	// writeBuffer is the auto-flush threshold; nil disables auto-flushing.
	writeBuffer *int
	written     int

	lock   *lock.Handle
	closed bool
}

// Open opens path with an fopen-style mode. ctx is kept for the backend
// calls made by the session later on (flushes, stat).
//
// Buffer acquisition by intent:
//
//	r   read stream, missing path fails
//	r+  read stream, or an empty new buffer when missing
//	w   empty buffer, dirty at once
//	a   like r+, positioned at the end, every write appends
//	x   fails with ErrFileExists if the path exists, else like w
//	c   like r+
func (f *Filesystem) Open(ctx context.Context, path, mode string) (*Session, error) {
	const op = "fopen"

	m, err := ParseMode(mode)
	if err != nil {
		return nil, newError(ErrInvalidMode, op, path, err)
	}

	p, err := f.resolve(op, path)
	if err != nil {
		return nil, err
	}

	s := &Session{
		fs:          f,
		ctx:         ctx,
		path:        p,
		mode:        m,
		writeBuffer: f.binding.Config.WriteBuffer,
	}

	switch m.Intent {
	case IntentRead:
		err = s.acquire(m.Update)
	case IntentWrite:
		s.fresh()
	case IntentAppend:
		if err = s.acquire(true); err == nil {
			_, err = s.buf.Seek(0, io.SeekEnd)
		}
	case IntentExclusive:
		var exists bool
		if exists, err = f.exists(ctx, p); err == nil {
			if exists {
				return nil, newError(ErrFileExists, op, path, backend.ErrAlreadyExists)
			}
			s.fresh()
		}
	case IntentCreate:
		err = s.acquire(true)
	}
	if err != nil {
		if s.buf != nil {
			_ = s.buf.Close()
		}
		return nil, wrap(op, path, err)
	}

	logger.Debug("opened %s://%s mode=%s borrowed=%t", f.Protocol(), p, m, s.buf.borrowed())
	return s, nil
}

// fresh starts from an empty buffer that must reach the backend on close.
func (s *Session) fresh() {
	s.buf = newOwnedBuffer(nil)
	s.dirty = true
}

// acquire loads the current content. With allowMissing a missing path
// yields an empty, dirty buffer, so the file is created on close.
func (s *Session) acquire(allowMissing bool) error {
	rc, err := s.fs.backend().ReadStream(s.ctx, s.path)
	if err != nil {
		if allowMissing && errors.Is(err, backend.ErrNotFound) {
			s.fresh()
			return nil
		}
		return err
	}

	s.buf, err = adoptStream(rc)
	return err
}

// Path returns the normalized logical path.
func (s *Session) Path() string {
	return s.path
}

// Mode returns the parsed open mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// Dirty reports whether the buffer holds changes the backend has not seen.
func (s *Session) Dirty() bool {
	return s.dirty
}

// Read returns up to count bytes from the current position. Write-only
// sessions always read nothing.
func (s *Session) Read(count int) ([]byte, error) {
	if s.mode.WriteOnly() || count <= 0 {
		return []byte{}, nil
	}

	size := min(int64(count), s.buf.remaining())
	if size == 0 {
		return []byte{}, nil
	}

	p := make([]byte, size)
	n, err := io.ReadFull(s.buf, p)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, wrap("fread", s.path, err)
	}
	return p[:n], nil
}

// Write stores data at the current position, or at the end for append
// sessions. Once the configured write buffer fills up the session flushes.
func (s *Session) Write(data []byte) (int, error) {
	if s.mode.ReadOnly() {
		return 0, newError(ErrUnsupported, "fwrite", s.path, ErrReadOnlyHandle)
	}

	s.dirty = true
	if s.mode.Appending() {
		if _, err := s.buf.Seek(0, io.SeekEnd); err != nil {
			return 0, wrap("fwrite", s.path, err)
		}
	}

	n, err := s.buf.Write(data)
	if err != nil {
		return n, wrap("fwrite", s.path, err)
	}

	s.written += n
	if s.writeBuffer != nil && s.written >= *s.writeBuffer {
		return n, s.Flush()
	}
	return n, nil
}

// Seek repositions the session.
func (s *Session) Seek(offset int64, whence int) error {
	if _, err := s.buf.Seek(offset, whence); err != nil {
		return newError(ErrGeneric, "fseek", s.path, err)
	}
	return nil
}

// Tell returns the position. Append sessions always report 0.
func (s *Session) Tell() int64 {
	if s.mode.Appending() {
		return 0
	}
	return s.buf.pos
}

// Offset returns the buffer position, which append sessions also track.
func (s *Session) Offset() int64 {
	return s.buf.pos
}

// EOF reports whether the position is at or past the end.
func (s *Session) EOF() bool {
	return s.buf.pos >= s.buf.Len()
}

// Size returns the buffered length.
func (s *Session) Size() int64 {
	return s.buf.Len()
}

// Truncate resizes the buffer to size bytes.
func (s *Session) Truncate(size int64) error {
	if s.mode.ReadOnly() {
		return newError(ErrUnsupported, "ftruncate", s.path, ErrReadOnlyHandle)
	}

	s.dirty = true
	if err := s.buf.Truncate(size); err != nil {
		return newError(ErrGeneric, "ftruncate", s.path, err)
	}
	return nil
}

// SetWriteBuffer sets the auto-flush threshold: 0 flushes on every write,
// a positive size flushes once that many bytes were written, and a negative
// size disables auto-flushing.
func (s *Session) SetWriteBuffer(size int) {
	if size < 0 {
		s.writeBuffer = nil
		return
	}
	s.writeBuffer = &size
}

// Flush commits the buffer when dirty. The position survives the transfer.
func (s *Session) Flush() error {
	if !s.dirty {
		return nil
	}

	pos := s.buf.pos
	if _, err := s.buf.Seek(0, io.SeekStart); err != nil {
		return wrap("fflush", s.path, err)
	}
	err := s.fs.backend().WriteStream(s.ctx, s.path, s.buf)
	s.buf.pos = pos
	if err != nil {
		return wrap("fflush", s.path, err)
	}

	s.dirty = false
	s.written = 0
	logger.Debug("flushed %s://%s (%d bytes)", s.fs.Protocol(), s.path, s.buf.Len())
	return nil
}

// Stat returns the stat record of the session's path with the buffered size.
// A path the backend does not know yet reads as a new public file.
func (s *Session) Stat() (*Stat, error) {
	st, err := s.fs.Stat(s.ctx, s.path, StatIgnoreSize|StatQuiet)
	if IsCode(err, ErrNotFound) {
		st, err = s.fs.newStat(), nil
		st.Mode = s.fs.mode(backend.KindFile, backend.VisibilityPublic)
	}
	if err != nil {
		return nil, err
	}

	st.Size = s.buf.Len()
	return st, nil
}

// Lock applies an advisory lock operation (lock.Shared, lock.Exclusive or
// lock.Unlock, optionally with lock.NonBlocking). The lock file stays open
// between calls; unlocking closes it.
func (s *Session) Lock(op int) error {
	if lock.IsUnlock(op) {
		return s.unlock(op)
	}

	if s.lock == nil {
		h, err := s.fs.locks.Open(s.fs.Protocol(), s.path)
		if err != nil {
			return newError(ErrGeneric, "flock", s.path, err)
		}
		s.lock = h
	}

	if err := s.lock.Apply(op); err != nil {
		return newError(CodeOf(err), "flock", s.path, err)
	}
	return nil
}

func (s *Session) unlock(op int) error {
	if s.lock == nil {
		return newError(ErrGeneric, "flock", s.path, errors.New("no lock held"))
	}

	err := s.lock.Apply(op)
	_ = s.lock.Close()
	s.lock = nil
	if err != nil {
		return newError(CodeOf(err), "flock", s.path, err)
	}
	return nil
}

// Close flushes, drops any advisory lock and releases the buffer. Closing
// twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.Flush()

	if s.lock != nil {
		_ = s.lock.Close()
		s.lock = nil
	}
	if closeErr := s.buf.Close(); err == nil && closeErr != nil {
		err = wrap("fclose", s.path, closeErr)
	}
	return err
}
