package metrics_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/backend/memory"
	"github.com/marmos91/dittostream/pkg/metrics"
)

type call struct {
	protocol  string
	operation string
	status    string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) RecordCall(protocol, operation string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{protocol, operation, metrics.Status(err)})
}

func TestInstrumentRecordsEveryCall(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	b := metrics.Instrument("mem", memory.New(memory.Config{}), rec)

	require.NoError(t, b.WriteStream(ctx, "f", bytes.NewReader([]byte("x"))))
	_, err := b.GetMetadata(ctx, "missing")
	require.ErrorIs(t, err, backend.ErrNotFound)
	require.NoError(t, b.CreateDir(ctx, "d"))

	assert.Equal(t, []call{
		{"mem", "WriteStream", metrics.StatusOK},
		{"mem", "GetMetadata", metrics.StatusNotFound},
		{"mem", "CreateDir", metrics.StatusOK},
	}, rec.calls)
}

func TestInstrumentKeepsExclusiveStreams(t *testing.T) {
	ctx := context.Background()
	b := metrics.Instrument("mem", memory.New(memory.Config{ExclusiveReads: true}), &recorder{})

	require.NoError(t, b.WriteStream(ctx, "f", bytes.NewReader([]byte("data"))))
	rc, err := b.ReadStream(ctx, "f")
	require.NoError(t, err)
	defer rc.Close()

	_, ok := rc.(backend.ExclusiveStream)
	assert.True(t, ok, "read streams must reach the session unwrapped")
}

func TestInstrumentExposesCapabilities(t *testing.T) {
	inner := memory.New(memory.Config{DisableVisibility: true})
	b := metrics.Instrument("mem", inner, &recorder{})

	w, ok := b.(backend.Wrapper)
	require.True(t, ok)
	assert.Same(t, inner, w.Unwrap())

	caps, ok := backend.ReportedCapabilities(b)
	require.True(t, ok)
	assert.Equal(t, []string{backend.FieldVisibility}, caps.Unsupported)
}

func TestInstrumentNilMetrics(t *testing.T) {
	inner := memory.New(memory.Config{})
	assert.Same(t, backend.Backend(inner), metrics.Instrument("mem", inner, nil))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, metrics.StatusOK, metrics.Status(nil))
	assert.Equal(t, metrics.StatusNotFound, metrics.Status(backend.ErrNotFound))
	assert.Equal(t, metrics.StatusExists, metrics.Status(backend.ErrAlreadyExists))
	assert.Equal(t, metrics.StatusUnsupported, metrics.Status(backend.ErrNotSupported))
	assert.Equal(t, metrics.StatusError, metrics.Status(errors.New("boom")))
}

func TestWriteSummaryDisabled(t *testing.T) {
	if metrics.IsEnabled() {
		t.Skip("registry already initialized by another test")
	}
	var buf bytes.Buffer
	require.NoError(t, metrics.WriteSummary(&buf))
	assert.Empty(t, buf.String())
}
