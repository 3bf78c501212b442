package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/document-enrichment/internal/core/ports"
)

type RemoveDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	logger  *slog.Logger
}

func NewRemoveDocumentUseCase(repo ports.DocumentRepository, storage ports.ObjectStorage, logger *slog.Logger) *RemoveDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoveDocumentUseCase{repo: repo, storage: storage, logger: logger}
}

// Remove soft-deletes the metadata and then releases the blob. A blob that
// cannot be removed is logged; the document stays deleted.
func (uc *RemoveDocumentUseCase) Remove(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if err := uc.repo.SoftDelete(ctx, doc.ID); err != nil {
		return fmt.Errorf("soft delete document: %w", err)
	}
	if doc.StoragePath != "" && !uc.storage.Delete(ctx, doc.StoragePath) {
		uc.logger.Warn("blob_delete_failed", "document_id", doc.ID, "storage_path", doc.StoragePath)
	}
	uc.logger.Info("document_removed", "document_id", doc.ID)
	return nil
}
