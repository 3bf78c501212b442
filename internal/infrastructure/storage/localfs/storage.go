package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
	"github.com/kirillkom/document-enrichment/internal/infrastructure/resilience"
)

// Storage keeps blobs on the local filesystem. Every key must resolve inside basePath.
type Storage struct {
	basePath string
	executor *resilience.Executor
	logger   *slog.Logger
	remove   func(string) error
}

func New(basePath string, logger *slog.Logger) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		basePath: abs,
		executor: resilience.NewExecutor(resilience.StorageConfig()),
		logger:   logger,
		remove:   os.Remove,
	}, nil
}

// resolve rejects keys that escape the storage root.
func (s *Storage) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve path", errors.New("empty key"))
	}
	path := filepath.Join(s.basePath, key)
	rel, err := filepath.Rel(s.basePath, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.WrapError(domain.ErrAccessDenied, "resolve path", fmt.Errorf("key %q escapes storage root", key))
	}
	return path, nil
}

func (s *Storage) Save(_ context.Context, key string, data io.Reader) (int64, error) {
	path, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, domain.WrapError(domain.ErrStorageIO, "create parent dir", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, domain.WrapError(domain.ErrStorageIO, "create file", err)
	}

	n, err := io.Copy(f, data)
	if err != nil {
		_ = f.Close()
		s.discard(path)
		return n, domain.WrapError(domain.ErrStorageIO, "write file", err)
	}
	if err := f.Close(); err != nil {
		s.discard(path)
		return n, domain.WrapError(domain.ErrStorageIO, "close file", err)
	}
	return n, nil
}

// discard removes a partially written blob.
func (s *Storage) discard(path string) {
	if err := s.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("partial_blob_cleanup_failed", "path", path, "error", err)
	}
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrObjectNotFound, "open file", err)
		}
		return nil, domain.WrapError(domain.ErrStorageIO, "open file", err)
	}
	return f, nil
}

// Delete removes the blob, retrying transient IO failures with an increasing
// delay. A missing file counts as deleted.
func (s *Storage) Delete(ctx context.Context, key string) bool {
	path, err := s.resolve(key)
	if err != nil {
		s.logger.Warn("blob_delete_rejected", "key", key, "error", err)
		return false
	}

	err = s.executor.Execute(ctx, "localfs.delete", func(context.Context) error {
		if err := s.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return domain.WrapError(domain.ErrStorageIO, "remove file", err)
		}
		return nil
	}, classifyStorageError)
	if err != nil {
		s.logger.Error("blob_delete_failed", "key", key, "error", err)
		return false
	}
	return true
}

func classifyStorageError(err error) resilience.ErrorClassification {
	return resilience.ErrorClassification{
		Retryable:     domain.IsKind(err, domain.ErrStorageIO),
		RecordFailure: false,
	}
}
