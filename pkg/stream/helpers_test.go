package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/backend/memory"
	backendtesting "github.com/marmos91/dittostream/pkg/backend/testing"
	"github.com/marmos91/dittostream/pkg/lock"
	"github.com/marmos91/dittostream/pkg/registry"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	fs       *Filesystem
	mem      *memory.Backend
	counting *backendtesting.Counting
}

// newFixture binds a memory backend behind a call counter. Counters are
// reset once registration is done.
func newFixture(t *testing.T, memCfg memory.Config, cfg registry.Config) *fixture {
	t.Helper()
	return newFixtureWith(t, memory.New(memCfg), nil, cfg)
}

// newFixtureWith allows decorating the memory backend before counting.
func newFixtureWith(t *testing.T, mem *memory.Backend, decorate func(backend.Backend) backend.Backend, cfg registry.Config) *fixture {
	t.Helper()

	mem.SetClock(func() time.Time { return fixedNow })

	var b backend.Backend = mem
	if decorate != nil {
		b = decorate(b)
	}
	counting := backendtesting.NewCounting(b)

	reg := registry.New()
	binding, err := reg.Register(context.Background(), "mem", counting, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.UnregisterAll() })

	counting.Reset()

	fs := New(binding, Options{
		Locks: lock.NewRelay(t.TempDir()),
		Clock: func() time.Time { return fixedNow },
	})
	return &fixture{fs: fs, mem: mem, counting: counting}
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

func (fx *fixture) has(t *testing.T, path string) bool {
	t.Helper()

	ok, err := fx.mem.Has(context.Background(), path)
	require.NoError(t, err)
	return ok
}

func (fx *fixture) mkdir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, fx.mem.CreateDir(context.Background(), path))
}

func (fx *fixture) open(t *testing.T, path, mode string) *Session {
	t.Helper()

	s, err := fx.fs.Open(context.Background(), path, mode)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func requireCode(t *testing.T, code ErrorCode, err error) {
	t.Helper()

	require.Error(t, err)
	var se *Error
	require.True(t, errors.As(err, &se), "expected *stream.Error, got %T: %v", err, err)
	require.Equal(t, code, se.Code, "unexpected code for %v", err)
}

// sparse strips optional fields from GetMetadata so the stat adapter has to
// ask for them, and can fail individual getters.
type sparse struct {
	backend.Backend

	visibilityErr error
	sizeErr       error
}

func (s *sparse) GetMetadata(ctx context.Context, path string) (*backend.Metadata, error) {
	m, err := s.Backend.GetMetadata(ctx, path)
	if err != nil {
		return nil, err
	}
	return &backend.Metadata{Path: m.Path, Kind: m.Kind}, nil
}

func (s *sparse) GetVisibility(ctx context.Context, path string) (string, error) {
	if path != "" && s.visibilityErr != nil {
		return "", s.visibilityErr
	}
	return s.Backend.GetVisibility(ctx, path)
}

func (s *sparse) GetSize(ctx context.Context, path string) (int64, error) {
	if path != "" && s.sizeErr != nil {
		return 0, s.sizeErr
	}
	return s.Backend.GetSize(ctx, path)
}
