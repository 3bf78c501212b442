package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
)

// DocumentRepository persists and reads document state.
// GetByID and GetByStatus never return soft-deleted documents.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByStatus(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error)
	Update(ctx context.Context, doc *domain.Document) error
	SoftDelete(ctx context.Context, id string) error
}

// ObjectStorage stores source documents under a sandboxed root.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete reports false when the object could not be removed after retries.
	Delete(ctx context.Context, key string) bool
}

// WorkQueue is the FIFO of document ids drained by the worker pool.
type WorkQueue interface {
	Enqueue(ctx context.Context, documentID string) error
	// Dequeue blocks until an id is available or ctx is done.
	Dequeue(ctx context.Context) (string, error)
	Len() int
}

// SubmissionTransport carries submission requests from external ingestion paths.
type SubmissionTransport interface {
	PublishSubmission(ctx context.Context, documentID string) error
	SubscribeSubmissions(ctx context.Context, handler func(context.Context, string) error) error
}

// ContentExtractor converts raw bytes into normalized text. It never fails;
// problems are reported through ExtractedContent.Err.
type ContentExtractor interface {
	Extract(ctx context.Context, r io.Reader, filename string) domain.ExtractedContent
}

// ModelInvoker calls the remote text-generation capability.
type ModelInvoker interface {
	Invoke(ctx context.Context, modelID, prompt string) (string, error)
}

// DocumentAnalyzer turns extracted content into classification and summary results.
// Both calls absorb their failures into degraded results.
type DocumentAnalyzer interface {
	Classify(ctx context.Context, doc *domain.Document, content domain.ExtractedContent) domain.ClassificationResult
	Summarize(ctx context.Context, doc *domain.Document, content domain.ExtractedContent) domain.SummaryResult
}
