package wrapper

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/backend/memory"
	backendtesting "github.com/marmos91/dittostream/pkg/backend/testing"
	"github.com/marmos91/dittostream/pkg/lock"
	"github.com/marmos91/dittostream/pkg/registry"
	"github.com/marmos91/dittostream/pkg/stream"
)

type fixture struct {
	w        *Wrapper
	mem      *memory.Backend
	counting *backendtesting.Counting
	warnings []Warning
}

func newFixture(t *testing.T, memCfg memory.Config) *fixture {
	t.Helper()

	fx := &fixture{mem: memory.New(memCfg)}
	fx.counting = backendtesting.NewCounting(fx.mem)
	fx.w = New(registry.New(), Options{
		Warnings: func(w Warning) { fx.warnings = append(fx.warnings, w) },
		Locks:    lock.NewRelay(t.TempDir()),
		Clock:    func() time.Time { return time.Unix(1700000000, 0) },
	})

	require.True(t, fx.w.Register(context.Background(), "mem", fx.counting, registry.Config{}))
	t.Cleanup(fx.w.UnregisterAll)
	fx.counting.Reset()
	return fx
}

func (fx *fixture) put(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, fx.mem.WriteStream(context.Background(), path, bytes.NewReader([]byte(content))))
}

func (fx *fixture) get(t *testing.T, path string) string {
	t.Helper()

	rc, err := fx.mem.ReadStream(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func (fx *fixture) messages() []string {
	out := make([]string, 0, len(fx.warnings))
	for _, w := range fx.warnings {
		out = append(out, w.Message)
	}
	return out
}

// ============================================================================
// Registration
// ============================================================================

func TestRegistration(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	ctx := context.Background()

	assert.False(t, fx.w.Register(ctx, "mem", memory.New(memory.Config{}), registry.Config{}), "already bound")
	assert.False(t, fx.w.Register(ctx, "not a protocol", memory.New(memory.Config{}), registry.Config{}))
	assert.True(t, fx.w.Register(ctx, "other", memory.New(memory.Config{}), registry.Config{}))

	assert.Equal(t, []string{"mem", "other"}, fx.w.Protocols())
	assert.True(t, fx.w.IsRegistered("other"))

	assert.True(t, fx.w.Unregister("other"))
	assert.False(t, fx.w.Unregister("other"))
	assert.Equal(t, []string{"mem"}, fx.w.Protocols())

	fx.w.UnregisterAll()
	assert.Empty(t, fx.w.Protocols())
}

func TestUnknownProtocolWarns(t *testing.T) {
	fx := newFixture(t, memory.Config{})

	_, ok := fx.w.Open(context.Background(), "nope://file", "r", 0)
	assert.False(t, ok)
	require.Len(t, fx.warnings, 1)
	assert.Equal(t, "fopen", fx.warnings[0].Op)

	assert.False(t, fx.w.Unlink(context.Background(), "no scheme"))
	assert.Len(t, fx.warnings, 2)
}

// ============================================================================
// Streams
// ============================================================================

func TestOpenWriteReadRoundTrip(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	ctx := context.Background()

	h, ok := fx.w.Open(ctx, "mem://dir/file.txt", "w", 0)
	require.True(t, ok)
	assert.Equal(t, 5, h.Write([]byte("hello")))
	h.Close()

	h, ok = fx.w.Open(ctx, "mem://dir/file.txt", "r", 0)
	require.True(t, ok)
	defer h.Close()

	assert.Equal(t, []byte("hel"), h.Read(3))
	assert.Equal(t, int64(3), h.Tell())
	assert.Equal(t, []byte("lo"), h.Read(10))
	assert.True(t, h.EOF())
	assert.Empty(t, fx.warnings)
}

func TestOpenMissingWarns(t *testing.T) {
	fx := newFixture(t, memory.Config{})

	h, ok := fx.w.Open(context.Background(), "mem://missing", "r", 0)
	assert.False(t, ok)
	assert.Nil(t, h)
	assert.Equal(t, []string{"fopen(): No such file or directory"}, fx.messages())
}

func TestOpenExclusiveOnExistingPath(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	fx.put(t, "file", "x")

	_, ok := fx.w.Open(context.Background(), "mem://file", "x", 0)
	assert.False(t, ok)
	assert.Equal(t, []string{"fopen(): failed to open stream: File exists"}, fx.messages())
	assert.Zero(t, fx.counting.Calls("WriteStream"))
}

func TestOpenInvalidMode(t *testing.T) {
	fx := newFixture(t, memory.Config{})

	_, ok := fx.w.Open(context.Background(), "mem://file", "z", 0)
	assert.False(t, ok)
	assert.Equal(t, []string{"fopen(): Invalid mode"}, fx.messages())
}

func TestOpenUsePath(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	ctx := context.Background()

	h, ok := fx.w.Open(ctx, "mem:///a//b/", "w", OpenUsePath)
	require.True(t, ok)
	defer h.Close()
	assert.Equal(t, "mem://a/b", h.OpenedPath())
	assert.Equal(t, "mem:///a//b/", h.URI())

	h2, ok := fx.w.Open(ctx, "mem://c", "w", 0)
	require.True(t, ok)
	defer h2.Close()
	assert.Empty(t, h2.OpenedPath())
}

func TestReadOnlyHandleDegradesSilently(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	fx.put(t, "file", "data")

	h, ok := fx.w.Open(context.Background(), "mem://file", "r", 0)
	require.True(t, ok)
	defer h.Close()

	assert.Zero(t, h.Write([]byte("x")))
	assert.False(t, h.Truncate(0))
	assert.Empty(t, fx.warnings)
	assert.Equal(t, "data", fx.get(t, "file"))
}

func TestAppendHandle(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	fx.put(t, "log", "one;")

	h, ok := fx.w.Open(context.Background(), "mem://log", "a", 0)
	require.True(t, ok)
	h.Write([]byte("two;"))
	assert.Zero(t, h.Tell())
	h.Close()

	assert.Equal(t, "one;two;", fx.get(t, "log"))
}

func TestHandleSeekTruncateFlush(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	fx.put(t, "file", "abcdef")

	h, ok := fx.w.Open(context.Background(), "mem://file", "r+", 0)
	require.True(t, ok)
	defer h.Close()

	assert.True(t, h.Seek(2, io.SeekStart))
	assert.False(t, h.Seek(-10, io.SeekCurrent))
	assert.True(t, h.Truncate(4))
	assert.Equal(t, "abcdef", fx.get(t, "file"), "nothing committed before flush")

	assert.True(t, h.Flush())
	assert.Equal(t, "abcd", fx.get(t, "file"))
	assert.Empty(t, fx.warnings)
}

func TestHandleWriteBufferOption(t *testing.T) {
	fx := newFixture(t, memory.Config{})

	h, ok := fx.w.Open(context.Background(), "mem://file", "w", 0)
	require.True(t, ok)
	defer h.Close()

	assert.False(t, h.SetOption(OptionBlocking, 1, 0))
	assert.False(t, h.SetOption(OptionReadTimeout, 1, 0))
	assert.False(t, h.SetOption(OptionReadBuffer, BufferNone, 0))

	require.True(t, h.SetOption(OptionWriteBuffer, BufferFull, 4))
	h.Write([]byte("abc"))
	assert.Zero(t, fx.counting.Calls("WriteStream"))
	h.Write([]byte("d"))
	assert.Equal(t, 1, fx.counting.Calls("WriteStream"))
	assert.Equal(t, "abcd", fx.get(t, "file"))

	require.True(t, h.SetOption(OptionWriteBuffer, BufferNone, 1024))
	h.Write([]byte("e"))
	assert.Equal(t, 2, fx.counting.Calls("WriteStream"))
}

func TestHandleStat(t *testing.T) {
	fx := newFixture(t, memory.Config{})

	h, ok := fx.w.Open(context.Background(), "mem://new", "w", 0)
	require.True(t, ok)
	defer h.Close()
	h.Write([]byte("abc"))

	st, ok := h.Stat()
	require.True(t, ok)
	assert.Equal(t, int64(stream.ModeFile|0o644), st.Mode)
	assert.Equal(t, int64(3), st.Size)
	assert.Empty(t, fx.warnings)
}

func TestHandleLock(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	ctx := context.Background()

	a, ok := fx.w.Open(ctx, "mem://file", "c", 0)
	require.True(t, ok)
	defer a.Close()
	b, ok := fx.w.Open(ctx, "mem://file", "c", 0)
	require.True(t, ok)
	defer b.Close()

	assert.False(t, b.Lock(lock.Unlock), "nothing to release")
	require.True(t, a.Lock(lock.Exclusive))
	assert.False(t, b.Lock(lock.Exclusive|lock.NonBlocking))
	require.True(t, a.Lock(lock.Unlock))
	assert.True(t, b.Lock(lock.Shared|lock.NonBlocking))
	assert.Empty(t, fx.warnings)
}

func TestCloseReportsFailedFlush(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	fx.put(t, "file", "x")

	h, ok := fx.w.Open(context.Background(), "mem://file/child", "w", 0)
	require.True(t, ok)
	h.Close()

	require.Len(t, fx.warnings, 1)
	assert.Equal(t, "fflush", fx.warnings[0].Op)
	assert.Equal(t, stream.ErrNotADirectory, fx.warnings[0].Code)
}

// ============================================================================
// Path hooks
// ============================================================================

func TestStatHook(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	fx.put(t, "file", "abc")
	ctx := context.Background()

	st, ok := fx.w.Stat(ctx, "mem://file", 0)
	require.True(t, ok)
	assert.Equal(t, int64(3), st.Size)

	_, ok = fx.w.Stat(ctx, "mem://missing", stream.StatQuiet)
	assert.False(t, ok)
	assert.Empty(t, fx.warnings, "quiet stat does not warn")

	_, ok = fx.w.Stat(ctx, "mem://missing", 0)
	assert.False(t, ok)
	assert.Equal(t, []string{"stat(): No such file or directory"}, fx.messages())
}

func TestDirHooks(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	fx.put(t, "dir/a", "x")
	fx.put(t, "dir/b", "x")
	ctx := context.Background()

	d, ok := fx.w.OpenDir(ctx, "mem://dir")
	require.True(t, ok)

	var names []string
	for name, ok := d.Read(); ok; name, ok = d.Read() {
		names = append(names, name)
	}
	assert.Equal(t, []string{"a", "b"}, names)

	assert.True(t, d.Rewind())
	name, ok := d.Read()
	assert.True(t, ok)
	assert.Equal(t, "a", name)
	assert.True(t, d.Close())
	assert.Equal(t, 1, fx.counting.Calls("ListContents"))
}

func TestMkdirRmdirHooks(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	ctx := context.Background()

	assert.False(t, fx.w.Mkdir(ctx, "mem://a/b", 0o755, 0))
	assert.True(t, fx.w.Mkdir(ctx, "mem://a/b", 0o755, stream.MkdirRecursive))
	fx.put(t, "a/b/file", "x")

	assert.False(t, fx.w.Rmdir(ctx, "mem://a", 0))
	assert.False(t, fx.w.Rmdir(ctx, "mem://", stream.RmdirRecursive))
	assert.True(t, fx.w.Rmdir(ctx, "mem://a", stream.RmdirRecursive))

	assert.Equal(t, []string{
		"mkdir(): No such file or directory",
		"rmdir(a): Directory not empty",
		"rmdir(): Cannot remove the root directory",
	}, fx.messages())
}

func TestMkdirOverFile(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	fx.put(t, "f", "x")

	assert.False(t, fx.w.Mkdir(context.Background(), "mem://f", 0o755, 0))
	assert.Equal(t, []string{"mkdir(): File exists"}, fx.messages())
	assert.Equal(t, "x", fx.get(t, "f"))
}

func TestRenameHook(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	fx.put(t, "a", "x")
	require.NoError(t, fx.mem.CreateDir(context.Background(), "dir"))
	ctx := context.Background()

	assert.False(t, fx.w.Rename(ctx, "mem://a", "mem://dir"))
	assert.Equal(t, []string{"rename(a,dir): Is a directory"}, fx.messages())

	assert.True(t, fx.w.Rename(ctx, "mem://a", "mem://dir/a"))
	assert.Equal(t, "x", fx.get(t, "dir/a"))
}

func TestRenameDirectoryIntoItselfWarns(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	fx.put(t, "a/f", "x")

	assert.False(t, fx.w.Rename(context.Background(), "mem://a", "mem://a/b"))
	assert.Equal(t, []string{"rename(): cannot move a directory into itself"}, fx.messages())
	assert.Equal(t, "x", fx.get(t, "a/f"))
}

func TestRenameAcrossProtocols(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	fx.put(t, "a", "x")
	ctx := context.Background()
	require.True(t, fx.w.Register(ctx, "other", memory.New(memory.Config{}), registry.Config{}))

	assert.False(t, fx.w.Rename(ctx, "mem://a", "other://a"))
	require.Len(t, fx.warnings, 1)
	assert.Equal(t, stream.ErrGeneric, fx.warnings[0].Code)
	assert.Equal(t, "x", fx.get(t, "a"))
}

func TestUnlinkHook(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	fx.put(t, "file", "x")
	ctx := context.Background()

	assert.True(t, fx.w.Unlink(ctx, "mem://file"))
	assert.False(t, fx.w.Unlink(ctx, "mem://file"))
	assert.Equal(t, []string{"unlink(): No such file or directory"}, fx.messages())
}

func TestSetMetadata(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	ctx := context.Background()

	assert.True(t, fx.w.SetMetadata(ctx, "mem://touched", MetaTouch, nil))
	assert.Equal(t, "", fx.get(t, "touched"))

	assert.True(t, fx.w.SetMetadata(ctx, "mem://touched", MetaAccess, 0o600))
	vis, err := fx.mem.GetVisibility(ctx, "touched")
	require.NoError(t, err)
	assert.Equal(t, backend.VisibilityPrivate, vis)

	assert.True(t, fx.w.SetMetadata(ctx, "mem://touched", MetaAccess, os.FileMode(0o644)))
	vis, err = fx.mem.GetVisibility(ctx, "touched")
	require.NoError(t, err)
	assert.Equal(t, backend.VisibilityPublic, vis)

	assert.False(t, fx.w.SetMetadata(ctx, "mem://touched", MetaOwner, 0))
	assert.False(t, fx.w.SetMetadata(ctx, "mem://touched", MetaGroupName, "staff"))
	assert.False(t, fx.w.SetMetadata(ctx, "mem://touched", MetaAccess, "0644"))
	assert.Len(t, fx.warnings, 1, "only the malformed permission warns")
}

func TestChmodWithoutVisibilitySupport(t *testing.T) {
	fx := newFixture(t, memory.Config{DisableVisibility: true})
	fx.put(t, "file", "x")

	assert.True(t, fx.w.Chmod(context.Background(), "mem://file", 0o600))
	assert.Empty(t, fx.warnings)
}

func TestPanicsBecomeWarnings(t *testing.T) {
	fx := newFixture(t, memory.Config{})
	require.True(t, fx.w.Register(context.Background(), "boom", panicking{fx.mem}, registry.Config{}))

	assert.False(t, fx.w.Unlink(context.Background(), "boom://file"))
	require.Len(t, fx.warnings, 1)
	assert.Equal(t, "unlink", fx.warnings[0].Op)
	assert.Equal(t, stream.ErrGeneric, fx.warnings[0].Code)
}

type panicking struct {
	backend.Backend
}

func (panicking) Delete(context.Context, string) error {
	panic("backend exploded")
}
