// Package testing provides a conformance suite every backend runs.
package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittostream/pkg/backend"
)

// Suite is a comprehensive test suite for backend.Backend implementations.
// It tests the interface contract, not implementation details, so the same
// expectations hold for memory, filesystem, object and database backends.
//
// Usage:
//
//	func TestMyBackend(t *testing.T) {
//	    suite := &testing.Suite{
//	        NewBackend: func(t *testing.T) backend.Backend {
//	            return mybackend.New(t.TempDir())
//	        },
//	    }
//	    suite.Run(t)
//	}
type Suite struct {
	// NewBackend creates a fresh, empty backend for each test.
	NewBackend func(t *testing.T) backend.Backend
}

// Run executes all tests in the suite.
func (suite *Suite) Run(t *testing.T) {
	t.Run("ReadOperations", suite.RunReadTests)
	t.Run("WriteOperations", suite.RunWriteTests)
	t.Run("DirectoryOperations", suite.RunDirectoryTests)
	t.Run("Visibility", suite.RunVisibilityTests)
}

func testContext() context.Context {
	return context.Background()
}
