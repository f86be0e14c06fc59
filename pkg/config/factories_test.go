package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/backend/badger"
	fsbackend "github.com/marmos91/dittostream/pkg/backend/fs"
	"github.com/marmos91/dittostream/pkg/backend/memory"
)

func TestCreateBackend_Memory(t *testing.T) {
	b, err := CreateBackend(context.Background(), &BackendConfig{
		Type:   "memory",
		Memory: map[string]any{"disable_visibility": true},
	})
	if err != nil {
		t.Fatalf("Failed to create memory backend: %v", err)
	}

	mem, ok := b.(*memory.Backend)
	if !ok {
		t.Fatalf("Expected *memory.Backend, got %T", b)
	}
	if caps := mem.Capabilities(); len(caps.Unsupported) != 1 || caps.Unsupported[0] != backend.FieldVisibility {
		t.Errorf("Expected visibility to be unsupported, got %v", caps.Unsupported)
	}
}

func TestCreateBackend_MemoryInvalidVisibility(t *testing.T) {
	_, err := CreateBackend(context.Background(), &BackendConfig{
		Type:   "memory",
		Memory: map[string]any{"default_visibility": "shared"},
	})
	if err == nil || !strings.Contains(err.Error(), "default_visibility") {
		t.Fatalf("Expected default_visibility error, got: %v", err)
	}
}

func TestCreateBackend_RejectsUnknownOptions(t *testing.T) {
	_, err := CreateBackend(context.Background(), &BackendConfig{
		Type:   "memory",
		Memory: map[string]any{"exclusive_read": true},
	})
	if err == nil || !strings.Contains(err.Error(), "exclusive_read") {
		t.Fatalf("Expected error naming the unknown key, got: %v", err)
	}
}

func TestCreateBackend_Filesystem(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")

	b, err := CreateBackend(context.Background(), &BackendConfig{
		Type: "filesystem",
		Filesystem: map[string]any{
			"root":         root,
			"file_private": 384, // 0600
		},
	})
	if err != nil {
		t.Fatalf("Failed to create filesystem backend: %v", err)
	}
	if _, ok := b.(*fsbackend.Backend); !ok {
		t.Fatalf("Expected *fs.Backend, got %T", b)
	}
}

func TestCreateBackend_BadgerInMemory(t *testing.T) {
	b, err := CreateBackend(context.Background(), &BackendConfig{
		Type:   "badger",
		Badger: map[string]any{"in_memory": true, "compression": true},
	})
	if err != nil {
		t.Fatalf("Failed to create badger backend: %v", err)
	}
	store, ok := b.(*badger.Backend)
	if !ok {
		t.Fatalf("Expected *badger.Backend, got %T", b)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Failed to close badger backend: %v", err)
	}
}

func TestCreateBackend_WeaklyTypedOptions(t *testing.T) {
	// Values coming from environment variables arrive as strings
	b, err := CreateBackend(context.Background(), &BackendConfig{
		Type:   "badger",
		Badger: map[string]any{"in_memory": "true"},
	})
	if err != nil {
		t.Fatalf("Failed to create badger backend: %v", err)
	}
	_ = b.(*badger.Backend).Close()
}

func TestCreateBackend_MissingRequiredOptions(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BackendConfig
		wantErr string
	}{
		{"filesystem root", BackendConfig{Type: "filesystem"}, "root is required"},
		{"s3 bucket", BackendConfig{Type: "s3", S3: map[string]any{"region": "us-east-1"}}, "bucket is required"},
		{"s3 region", BackendConfig{Type: "s3", S3: map[string]any{"bucket": "b"}}, "region is required"},
		{"minio endpoint", BackendConfig{Type: "minio", MinIO: map[string]any{"bucket": "b"}}, "endpoint is required"},
		{"minio bucket", BackendConfig{Type: "minio", MinIO: map[string]any{"endpoint": "localhost:9000"}}, "bucket is required"},
		{"badger path", BackendConfig{Type: "badger"}, "path is required"},
		{"postgres dsn", BackendConfig{Type: "postgres"}, "dsn is required"},
		{"mongodb uri", BackendConfig{Type: "mongodb"}, "uri is required"},
		{"unknown type", BackendConfig{Type: "ftp"}, "unknown backend type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateBackend(context.Background(), &tt.cfg)
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}
