package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
)

var columnNames = []string{
	"id", "stored_name", "original_name", "extension", "size_bytes", "content_type", "storage_path",
	"status", "processing_retry_count", "processing_error_message", "processing_started_at", "processing_completed_at", "processed_at",
	"extracted_text", "summary", "document_type_name", "document_type_category", "tags", "confidence", "language", "key_points",
	"uploaded_at", "created_at", "updated_at", "is_deleted", "deleted_at",
}

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewDocumentRepository(db)
	return repo, mock, func() { _ = db.Close() }
}

func documentRow(id string, status domain.DocumentStatus, startedAt any) []driver.Value {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return []driver.Value{
		id, id + "_a.txt", "a.txt", ".txt", int64(11), "text/plain", id + "_a.txt",
		string(status), 0, nil, startedAt, nil, nil,
		nil, nil, nil, nil, []byte(`["x"]`), 0.0, nil, []byte(`[]`),
		now, now, now, false, nil,
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, stored_name, original_name").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansNullableColumns(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, stored_name, original_name").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows(columnNames).AddRow(documentRow("doc-1", domain.StatusPending, nil)...))

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Status != domain.StatusPending || doc.ProcessingStartedAt != nil || doc.Summary != "" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if len(doc.Tags) != 1 || doc.Tags[0] != "x" {
		t.Fatalf("unexpected tags: %v", doc.Tags)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByStatusReturnsAllRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	started := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(columnNames).
		AddRow(documentRow("doc-1", domain.StatusProcessing, started)...).
		AddRow(documentRow("doc-2", domain.StatusProcessing, started)...)
	mock.ExpectQuery("FROM documents").
		WithArgs(string(domain.StatusProcessing)).
		WillReturnRows(rows)

	docs, err := repo.GetByStatus(context.Background(), domain.StatusProcessing)
	if err != nil {
		t.Fatalf("GetByStatus() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ProcessingStartedAt == nil || !docs[0].ProcessingStartedAt.Equal(started) {
		t.Fatalf("unexpected started at: %v", docs[0].ProcessingStartedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStampsUpdatedAt(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	stamp := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return stamp }

	mock.ExpectExec("UPDATE documents").
		WillReturnResult(sqlmock.NewResult(0, 1))

	doc := &domain.Document{ID: "doc-1", Status: domain.StatusQueued, UpdatedAt: stamp.Add(-time.Hour)}
	if err := repo.Update(context.Background(), doc); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !doc.UpdatedAt.Equal(stamp) {
		t.Fatalf("expected updated at %v, got %v", stamp, doc.UpdatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &domain.Document{ID: "missing", Status: domain.StatusProcessing})
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSoftDeleteReturnsDomainNotFoundWhenAlreadyDeleted(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("SET is_deleted = TRUE").
		WithArgs("doc-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
