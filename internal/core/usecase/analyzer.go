package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
	"github.com/kirillkom/document-enrichment/internal/core/ports"
)

type AnalyzerConfig struct {
	ClassificationModel string
	SummaryModel        string
}

// Analyzer drives the classification and summarization model calls for one
// document. Both calls absorb every failure into a degraded result.
type Analyzer struct {
	invoker ports.ModelInvoker
	cfg     AnalyzerConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewAnalyzer(invoker ports.ModelInvoker, cfg AnalyzerConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		invoker: invoker,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

func (a *Analyzer) Classify(ctx context.Context, doc *domain.Document, content domain.ExtractedContent) domain.ClassificationResult {
	start := a.now()
	raw, err := a.invoker.Invoke(ctx, a.cfg.ClassificationModel, buildClassificationPrompt(doc, content))
	if err != nil {
		a.logger.Error("classification_failed", "document_id", doc.ID, "error", err)
		return domain.ClassificationResult{
			PrimaryCategory: domain.CategoryError,
			Confidence:      map[string]float64{domain.CategoryError: 0},
			Tags:            []string{},
			ProcessingNotes: fmt.Sprintf("classification failed: %v", err),
			Duration:        a.now().Sub(start),
			Err:             err,
		}
	}

	result := parseClassification(raw)
	result.Duration = a.now().Sub(start)
	if result.Err != nil {
		a.logger.Warn("classification_unparsable", "document_id", doc.ID, "error", result.Err)
	}
	return result
}

func (a *Analyzer) Summarize(ctx context.Context, doc *domain.Document, content domain.ExtractedContent) domain.SummaryResult {
	start := a.now()
	raw, err := a.invoker.Invoke(ctx, a.cfg.SummaryModel, buildSummaryPrompt(doc, content))
	if err != nil {
		a.logger.Error("summarization_failed", "document_id", doc.ID, "error", err)
		return domain.SummaryResult{
			Summary:   "Error: Summary generation failed",
			Language:  summaryLanguage,
			KeyPoints: []string{},
			Duration:  a.now().Sub(start),
			Err:       err,
		}
	}

	result := parseSummary(raw)
	result.Duration = a.now().Sub(start)
	return result
}
