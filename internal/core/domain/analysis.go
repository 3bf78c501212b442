package domain

import "time"

// Content types reported by the extractor.
const (
	ContentTypePDF         = "pdf"
	ContentTypeCSV         = "csv"
	ContentTypeText        = "text"
	ContentTypeSpreadsheet = "spreadsheet"
	ContentTypeUnsupported = "unsupported"
	ContentTypeError       = "error"
)

const (
	CategoryUnknown = "Unknown"
	CategoryError   = "Error: Processing Failed"
)

// ExtractedContent is the normalized text of one read of a stored document.
// Err is set when extraction failed; Text then carries an explanatory message.
type ExtractedContent struct {
	Text        string `json:"text"`
	ContentType string `json:"content_type"`
	IsTruncated bool   `json:"is_truncated"`
	Err         error  `json:"-"`
}

func (c ExtractedContent) Degraded() bool { return c.Err != nil }

type ClassificationResult struct {
	PrimaryCategory string             `json:"primary_category"`
	Confidence      map[string]float64 `json:"confidence"`
	Tags            []string           `json:"tags"`
	ProcessingNotes string             `json:"processing_notes,omitempty"`
	Duration        time.Duration      `json:"duration"`
	Err             error              `json:"-"`
}

func (r ClassificationResult) Degraded() bool { return r.Err != nil }

// PrimaryConfidence is the score recorded against the primary category.
func (r ClassificationResult) PrimaryConfidence() float64 {
	return r.Confidence[r.PrimaryCategory]
}

type SummaryResult struct {
	Summary   string        `json:"summary"`
	Language  string        `json:"language"`
	KeyPoints []string      `json:"key_points"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

func (r SummaryResult) Degraded() bool { return r.Err != nil }

// CategoryGroup maps a model category onto the coarse document type category.
func CategoryGroup(category string) string {
	switch category {
	case "", CategoryUnknown, CategoryError:
		return "Unclassified"
	case "Invoice", "Receipt", "Bank Statement", "Financial Report", "Tax Form":
		return "Financial"
	case "Contract", "Agreement", "Legal Notice", "Policy":
		return "Legal"
	case "Letter", "Email", "Memo":
		return "Correspondence"
	case "Report", "Specification", "Manual", "Log", "Dataset":
		return "Technical"
	case "Resume", "Identity Document", "Medical Record":
		return "Personal"
	default:
		return "General"
	}
}
