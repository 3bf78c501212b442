package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
)

const (
	DefaultMaxChars  = 50000
	TruncationNotice = "\n\n[Content truncated due to length]"
)

type extractFunc func(ctx context.Context, r io.Reader) (string, error)

type strategy struct {
	contentType string
	extract     extractFunc
}

// Extractor dispatches on the lowercased file extension. Unknown extensions
// fall through to the unsupported placeholder.
type Extractor struct {
	maxChars   int
	strategies map[string]strategy
	logger     *slog.Logger
}

func New(maxChars int, logger *slog.Logger) *Extractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if logger == nil {
		logger = slog.Default()
	}

	text := strategy{contentType: domain.ContentTypeText, extract: extractText}
	return &Extractor{
		maxChars: maxChars,
		logger:   logger,
		strategies: map[string]strategy{
			".pdf":  {contentType: domain.ContentTypePDF, extract: extractPDF},
			".txt":  text,
			".log":  text,
			".md":   text,
			".csv":  {contentType: domain.ContentTypeCSV, extract: extractCSV},
			".xlsx": {contentType: domain.ContentTypeSpreadsheet, extract: extractXLSX},
		},
	}
}

func (e *Extractor) Extract(ctx context.Context, r io.Reader, filename string) (content domain.ExtractedContent) {
	ext := strings.ToLower(filepath.Ext(filename))
	s, ok := e.strategies[ext]
	if !ok {
		return domain.ExtractedContent{
			Text:        fmt.Sprintf("[Unsupported file type: %s]", displayExt(ext)),
			ContentType: domain.ContentTypeUnsupported,
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			content = e.failed(filename, fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := ctx.Err(); err != nil {
		return e.failed(filename, err)
	}
	text, err := s.extract(ctx, r)
	if err != nil {
		return e.failed(filename, err)
	}

	// Postgres TEXT columns reject NUL; UTF-16 text and CID-font PDFs carry them.
	text = strings.ReplaceAll(text, "\x00", "")
	out, truncated := truncate(text, e.maxChars)
	return domain.ExtractedContent{
		Text:        out,
		ContentType: s.contentType,
		IsTruncated: truncated,
	}
}

func (e *Extractor) failed(filename string, err error) domain.ExtractedContent {
	wrapped := domain.WrapError(domain.ErrExtraction, "extract "+filename, err)
	e.logger.Warn("content_extraction_failed", "filename", filename, "error", err)
	return domain.ExtractedContent{
		Text:        fmt.Sprintf("[Error extracting content: %v]", err),
		ContentType: domain.ContentTypeError,
		Err:         wrapped,
	}
}

// truncate cuts text to maxChars characters and appends TruncationNotice.
func truncate(text string, maxChars int) (string, bool) {
	if utf8.RuneCountInString(text) <= maxChars {
		return text, false
	}
	count := 0
	for idx := range text {
		if count == maxChars {
			return text[:idx] + TruncationNotice, true
		}
		count++
	}
	return text, false
}

func extractText(_ context.Context, r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	if !utf8.Valid(raw) {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError)), nil
	}
	return string(raw), nil
}

func displayExt(ext string) string {
	if ext == "" {
		return "(none)"
	}
	return ext
}
