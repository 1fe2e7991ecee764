package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/studyplanner/planner/config"
)

// ErrObjectNotFound is returned by Get for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage holds encrypted timetable snapshots on an ObjectStorage backend.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// Open builds the configured backend and makes sure its bucket exists. It
// returns nil, nil when no backend is configured.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case config.BackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	case config.BackendMemory:
		backend = NewMemoryStore("snapshots")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare bucket %s: %w", backend.Bucket(), err)
	}
	return NewStorage(backend), nil
}

// SnapshotKey names the snapshot of userID's timetable taken at t.
func SnapshotKey(userID string, t time.Time) string {
	return fmt.Sprintf("%s%d.html.enc", SnapshotPrefix(userID), t.Unix())
}

// SnapshotPrefix is the key prefix shared by all of a user's snapshots.
func SnapshotPrefix(userID string) string {
	return "timetables/" + userID + "/"
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Read returns the whole object stored under key.
func (s *Storage) Read(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Snapshots lists the keys of a user's snapshots, oldest first.
func (s *Storage) Snapshots(ctx context.Context, userID string) ([]string, error) {
	return s.backend.List(ctx, SnapshotPrefix(userID))
}

// PurgeUser deletes every snapshot of the user. It stops at the first error
// and reports how many objects were removed before it.
func (s *Storage) PurgeUser(ctx context.Context, userID string) (int, error) {
	keys, err := s.Snapshots(ctx, userID)
	if err != nil {
		return 0, err
	}
	for i, key := range keys {
		if err := s.backend.Delete(ctx, key); err != nil {
			return i, fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return len(keys), nil
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}
