package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
)

const documentColumns = `id, stored_name, original_name, extension, size_bytes, content_type, storage_path,
	status, processing_retry_count, processing_error_message, processing_started_at, processing_completed_at, processed_at,
	extracted_text, summary, document_type_name, document_type_category, tags, confidence, language, key_points,
	uploaded_at, created_at, updated_at, is_deleted, deleted_at`

type DocumentRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across server/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	stored_name TEXT NOT NULL,
	original_name TEXT NOT NULL,
	extension TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	content_type TEXT NOT NULL DEFAULT '',
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	processing_retry_count INTEGER NOT NULL DEFAULT 0,
	processing_error_message TEXT,
	processing_started_at TIMESTAMPTZ,
	processing_completed_at TIMESTAMPTZ,
	processed_at TIMESTAMPTZ,
	extracted_text TEXT,
	summary TEXT,
	document_type_name TEXT,
	document_type_category TEXT,
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	language TEXT,
	key_points JSONB NOT NULL DEFAULT '[]'::jsonb,
	uploaded_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status) WHERE is_deleted = FALSE;
CREATE INDEX IF NOT EXISTS idx_documents_processing_started_at ON documents(processing_started_at) WHERE status = 'processing';
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	tagsJSON, keyPointsJSON, err := marshalLists(doc)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
`,
		doc.ID, doc.StoredName, doc.OriginalName, doc.Extension, doc.SizeBytes, doc.ContentType, doc.StoragePath,
		string(doc.Status), doc.ProcessingRetryCount, nullString(doc.ProcessingErrorMessage),
		doc.ProcessingStartedAt, doc.ProcessingCompletedAt, doc.ProcessedAt,
		nullString(doc.ExtractedText), nullString(doc.Summary), nullString(doc.DocumentTypeName), nullString(doc.DocumentTypeCategory),
		tagsJSON, doc.Confidence, nullString(doc.Language), keyPointsJSON,
		doc.UploadedAt, doc.CreatedAt, doc.UpdatedAt, doc.IsDeleted, doc.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1 AND is_deleted = FALSE
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByStatus(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE status = $1 AND is_deleted = FALSE
ORDER BY created_at ASC
`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list documents by status: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Update persists every mutable field and stamps updated_at. The stored
// updated_at never moves backwards.
func (r *DocumentRepository) Update(ctx context.Context, doc *domain.Document) error {
	tagsJSON, keyPointsJSON, err := marshalLists(doc)
	if err != nil {
		return err
	}
	doc.Touch(r.now())

	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, processing_retry_count = $3, processing_error_message = $4,
	processing_started_at = $5, processing_completed_at = $6, processed_at = $7,
	extracted_text = $8, summary = $9, document_type_name = $10, document_type_category = $11,
	tags = $12, confidence = $13, language = $14, key_points = $15,
	updated_at = GREATEST(updated_at, $16)
WHERE id = $1 AND is_deleted = FALSE
`,
		doc.ID, string(doc.Status), doc.ProcessingRetryCount, nullString(doc.ProcessingErrorMessage),
		doc.ProcessingStartedAt, doc.ProcessingCompletedAt, doc.ProcessedAt,
		nullString(doc.ExtractedText), nullString(doc.Summary), nullString(doc.DocumentTypeName), nullString(doc.DocumentTypeCategory),
		tagsJSON, doc.Confidence, nullString(doc.Language), keyPointsJSON,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return requireAffected(result, "update document", doc.ID)
}

func (r *DocumentRepository) SoftDelete(ctx context.Context, id string) error {
	now := r.now()
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET is_deleted = TRUE, deleted_at = $2, updated_at = GREATEST(updated_at, $2)
WHERE id = $1 AND is_deleted = FALSE
`, id, now)
	if err != nil {
		return fmt.Errorf("soft delete document: %w", err)
	}
	return requireAffected(result, "soft delete document", id)
}

func requireAffected(result sql.Result, operation, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}

type documentScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row documentScanner) (domain.Document, error) {
	var (
		doc                                        domain.Document
		status                                     string
		errMessage, extracted, summary, typeName   sql.NullString
		typeCategory, language                     sql.NullString
		tagsRaw, keyPointsRaw                      []byte
		startedAt, completedAt, processedAt, delAt sql.NullTime
	)
	err := row.Scan(
		&doc.ID, &doc.StoredName, &doc.OriginalName, &doc.Extension, &doc.SizeBytes, &doc.ContentType, &doc.StoragePath,
		&status, &doc.ProcessingRetryCount, &errMessage, &startedAt, &completedAt, &processedAt,
		&extracted, &summary, &typeName, &typeCategory, &tagsRaw, &doc.Confidence, &language, &keyPointsRaw,
		&doc.UploadedAt, &doc.CreatedAt, &doc.UpdatedAt, &doc.IsDeleted, &delAt,
	)
	if err != nil {
		return domain.Document{}, err
	}

	doc.Status = domain.DocumentStatus(status)
	doc.ProcessingErrorMessage = errMessage.String
	doc.ExtractedText = extracted.String
	doc.Summary = summary.String
	doc.DocumentTypeName = typeName.String
	doc.DocumentTypeCategory = typeCategory.String
	doc.Language = language.String
	doc.ProcessingStartedAt = timePtr(startedAt)
	doc.ProcessingCompletedAt = timePtr(completedAt)
	doc.ProcessedAt = timePtr(processedAt)
	doc.DeletedAt = timePtr(delAt)

	if err := unmarshalList(tagsRaw, &doc.Tags); err != nil {
		return domain.Document{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := unmarshalList(keyPointsRaw, &doc.KeyPoints); err != nil {
		return domain.Document{}, fmt.Errorf("unmarshal key points: %w", err)
	}
	return doc, nil
}

func marshalLists(doc *domain.Document) ([]byte, []byte, error) {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	keyPoints := doc.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal tags: %w", err)
	}
	keyPointsJSON, err := json.Marshal(keyPoints)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal key points: %w", err)
	}
	return tagsJSON, keyPointsJSON, nil
}

func unmarshalList(raw []byte, out *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
