package wrapper

import (
	"github.com/marmos91/dittostream/pkg/stream"
)

// Stream options understood by Handle.SetOption.
const (
	OptionBlocking    = 1
	OptionReadBuffer  = 2
	OptionWriteBuffer = 3
	OptionReadTimeout = 4
)

// Buffer modes passed as the first SetOption argument.
const (
	BufferNone = 0
	BufferLine = 1
	BufferFull = 2
)

// Handle is an open stream returned by Wrapper.Open.
type Handle struct {
	w          *Wrapper
	uri        string
	session    *stream.Session
	openedPath string
}

// URI returns the URI the handle was opened with.
func (h *Handle) URI() string {
	return h.uri
}

// OpenedPath returns the resolved URI when Open was called with
// OpenUsePath, and "" otherwise.
func (h *Handle) OpenedPath() string {
	return h.openedPath
}

// Session exposes the underlying stream session.
func (h *Handle) Session() *stream.Session {
	return h.session
}

// Read returns up to count bytes. Failures read as an empty slice.
func (h *Handle) Read(count int) (data []byte) {
	defer h.w.rescue("fread", h.session.Path())

	data, err := h.session.Read(count)
	if err != nil {
		h.w.report(opOf(err, "fread"), err, h.session.Path())
		return []byte{}
	}
	return data
}

// Write returns the number of bytes accepted. Writes on a read-only handle
// accept nothing and do not warn. A failed auto-flush warns but still
// counts the buffered bytes.
func (h *Handle) Write(data []byte) (n int) {
	defer h.w.rescue("fwrite", h.session.Path())

	n, err := h.session.Write(data)
	if err != nil {
		h.w.report(opOf(err, "fwrite"), err, h.session.Path())
	}
	return n
}

// Seek repositions the handle.
func (h *Handle) Seek(offset int64, whence int) (ok bool) {
	defer h.w.rescue("fseek", h.session.Path())

	return h.session.Seek(offset, whence) == nil
}

// Tell reports the position; append handles always report 0.
func (h *Handle) Tell() int64 {
	return h.session.Tell()
}

// EOF reports whether the position is at or past the end.
func (h *Handle) EOF() bool {
	return h.session.EOF()
}

// Truncate resizes the buffered content. Read-only handles return false.
func (h *Handle) Truncate(size int64) (ok bool) {
	defer h.w.rescue("ftruncate", h.session.Path())

	if err := h.session.Truncate(size); err != nil {
		h.w.report("ftruncate", err, h.session.Path())
		return false
	}
	return true
}

// Flush commits buffered changes.
func (h *Handle) Flush() (ok bool) {
	defer h.w.rescue("fflush", h.session.Path())

	if err := h.session.Flush(); err != nil {
		h.w.report("fflush", err, h.session.Path())
		return false
	}
	return true
}

// Stat returns the record of the handle's path with the buffered size.
func (h *Handle) Stat() (st *stream.Stat, ok bool) {
	defer h.w.rescue("fstat", h.session.Path())

	st, err := h.session.Stat()
	if err != nil {
		h.w.report("fstat", err, h.session.Path())
		return nil, false
	}
	return st, true
}

// Lock applies an advisory lock operation (see package lock). Lock
// contention and unsupported platforms return false without a warning.
func (h *Handle) Lock(op int) (ok bool) {
	defer h.w.rescue("flock", h.session.Path())

	return h.session.Lock(op) == nil
}

// SetOption handles stream_set_option style requests. Only the write
// buffer is supported: BufferNone flushes on every write, any other mode
// flushes once size bytes were written.
func (h *Handle) SetOption(option, mode, size int) bool {
	if option != OptionWriteBuffer {
		return false
	}
	if mode == BufferNone {
		size = 0
	}
	h.session.SetWriteBuffer(size)
	return true
}

// Close flushes and releases the handle.
func (h *Handle) Close() {
	defer h.w.rescue("fclose", h.session.Path())

	if err := h.session.Close(); err != nil {
		h.w.report(opOf(err, "fclose"), err, h.session.Path())
	}
}
