package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
	"github.com/kirillkom/document-enrichment/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	submitter ports.DocumentSubmitter
	logger    *slog.Logger
	now       func() time.Time
}

// NewIngestDocumentUseCase builds the upload flow. A nil submitter leaves
// uploaded documents pending until they are submitted explicitly.
func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	submitter ports.DocumentSubmitter,
	logger *slog.Logger,
) *IngestDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestDocumentUseCase{
		repo:      repo,
		storage:   storage,
		submitter: submitter,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, contentType string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("filename is required"))
	}

	id := uuid.NewString()
	storedName := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	size, err := uc.storage.Save(ctx, storedName, body)
	if err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	now := uc.now()
	doc := &domain.Document{
		ID:           id,
		StoredName:   storedName,
		OriginalName: filepath.Base(filename),
		Extension:    strings.ToLower(filepath.Ext(filename)),
		SizeBytes:    size,
		ContentType:  contentType,
		StoragePath:  storedName,
		Status:       domain.StatusPending,
		Tags:         []string{},
		KeyPoints:    []string{},
		UploadedAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		if !uc.storage.Delete(ctx, storedName) {
			uc.logger.Warn("orphaned_blob", "document_id", id, "stored_name", storedName)
		}
		return nil, fmt.Errorf("create document metadata: %w", err)
	}
	uc.logger.Info("document_uploaded", "document_id", id, "original_name", doc.OriginalName, "size_bytes", size)

	if uc.submitter == nil {
		return doc, nil
	}
	if _, err := uc.submitter.Submit(ctx, id); err != nil {
		uc.logger.Error("auto_submit_failed", "document_id", id, "error", err)
		return doc, nil
	}
	doc.Status = domain.StatusQueued
	return doc, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
