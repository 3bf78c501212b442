package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (*domain.Document, error)
}

// DocumentSubmitter enqueues a document for asynchronous processing.
type DocumentSubmitter interface {
	Submit(ctx context.Context, documentID string) (string, error)
}

// StuckDocumentRecoverer re-enqueues documents left behind by a restart or a hung attempt.
type StuckDocumentRecoverer interface {
	RecoverOnStartup(ctx context.Context) (int, error)
	RescanStuck(ctx context.Context, timeout time.Duration) (int, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentRemover soft-deletes a document and releases its blob.
type DocumentRemover interface {
	Remove(ctx context.Context, documentID string) error
}
