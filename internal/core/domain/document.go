package domain

import "time"

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusQueued     DocumentStatus = "queued"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID           string `json:"id"`
	StoredName   string `json:"stored_name"`
	OriginalName string `json:"original_name"`
	Extension    string `json:"extension"`
	SizeBytes    int64  `json:"size_bytes"`
	ContentType  string `json:"content_type"`
	StoragePath  string `json:"storage_path"`

	Status                 DocumentStatus `json:"status"`
	ProcessingRetryCount   int            `json:"processing_retry_count"`
	ProcessingErrorMessage string         `json:"processing_error_message,omitempty"`
	ProcessingStartedAt    *time.Time     `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt  *time.Time     `json:"processing_completed_at,omitempty"`
	ProcessedAt            *time.Time     `json:"processed_at,omitempty"`

	ExtractedText        string   `json:"extracted_text,omitempty"`
	Summary              string   `json:"summary,omitempty"`
	DocumentTypeName     string   `json:"document_type_name,omitempty"`
	DocumentTypeCategory string   `json:"document_type_category,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
	Confidence           float64  `json:"confidence,omitempty"`
	Language             string   `json:"language,omitempty"`
	KeyPoints            []string `json:"key_points,omitempty"`

	UploadedAt time.Time  `json:"uploaded_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	IsDeleted  bool       `json:"is_deleted"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// DisplayName is the name shown to the model and in logs.
func (d *Document) DisplayName() string {
	if d.OriginalName != "" {
		return d.OriginalName
	}
	return d.StoredName
}

// Touch advances UpdatedAt without ever moving it backwards.
func (d *Document) Touch(now time.Time) {
	if now.After(d.UpdatedAt) {
		d.UpdatedAt = now
	}
}
