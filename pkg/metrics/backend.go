package metrics

import (
	"errors"
	"time"

	"github.com/marmos91/dittostream/pkg/backend"
)

// BackendMetrics provides observability for backend calls.
//
// Implementations receive one record per call made through a backend
// wrapped with Instrument. This interface is optional - NewNoopBackendMetrics
// discards everything.
type BackendMetrics interface {
	// RecordCall records a completed backend call.
	//
	// Parameters:
	//   - protocol: binding the backend is registered under
	//   - operation: backend method name (e.g., "ReadStream", "Rename")
	//   - duration: time spent in the backend
	//   - err: error returned by the backend, nil on success
	RecordCall(protocol, operation string, duration time.Duration, err error)
}

type noopBackendMetrics struct{}

// NewNoopBackendMetrics returns a BackendMetrics that records nothing.
func NewNoopBackendMetrics() BackendMetrics {
	return noopBackendMetrics{}
}

func (noopBackendMetrics) RecordCall(string, string, time.Duration, error) {}

// Outcome labels returned by Status.
const (
	StatusOK          = "ok"
	StatusNotFound    = "not_found"
	StatusExists      = "exists"
	StatusUnsupported = "unsupported"
	StatusError       = "error"
)

// Status classifies a backend error into a low-cardinality label.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, backend.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, backend.ErrAlreadyExists):
		return StatusExists
	case errors.Is(err, backend.ErrNotSupported):
		return StatusUnsupported
	default:
		return StatusError
	}
}
