package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
	"github.com/kirillkom/document-enrichment/internal/core/ports"
)

const (
	DefaultWorkers         = 3
	DefaultDocumentTimeout = 5 * time.Minute
	failureWriteTimeout    = 10 * time.Second
)

type PipelineConfig struct {
	Workers int
	// MaxConcurrent caps documents processed at once, independently of Workers.
	MaxConcurrent   int
	DocumentTimeout time.Duration
}

func (c PipelineConfig) normalize() PipelineConfig {
	out := c
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	if out.MaxConcurrent <= 0 {
		out.MaxConcurrent = out.Workers
	}
	if out.DocumentTimeout <= 0 {
		out.DocumentTimeout = DefaultDocumentTimeout
	}
	return out
}

// Pipeline owns the work queue and the worker pool that drives documents
// from queued to processed or failed.
type Pipeline struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	queue     ports.WorkQueue
	extractor ports.ContentExtractor
	analyzer  ports.DocumentAnalyzer

	cfg      PipelineConfig
	slots    *semaphore.Weighted
	observer ProcessingObserver
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

type PipelineOption func(*Pipeline)

func WithObserver(observer ProcessingObserver) PipelineOption {
	return func(p *Pipeline) {
		if observer != nil {
			p.observer = observer
		}
	}
}

func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPipeline(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.WorkQueue,
	extractor ports.ContentExtractor,
	analyzer ports.DocumentAnalyzer,
	cfg PipelineConfig,
	opts ...PipelineOption,
) *Pipeline {
	cfg = cfg.normalize()
	p := &Pipeline{
		repo:      repo,
		storage:   storage,
		queue:     queue,
		extractor: extractor,
		analyzer:  analyzer,
		cfg:       cfg,
		slots:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		observer:  noopObserver{},
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
		inFlight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit moves the document to queued and appends it to the work queue.
// A document already queued or processing in this process is rejected with
// ErrAlreadyInFlight.
func (p *Pipeline) Submit(ctx context.Context, documentID string) (string, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "submit document", errors.New("document id is required"))
	}
	if !p.claim(documentID) {
		return "", domain.WrapError(domain.ErrAlreadyInFlight, "submit document", fmt.Errorf("id=%s", documentID))
	}

	if err := p.enqueue(ctx, documentID); err != nil {
		p.release(documentID)
		return "", err
	}
	depth := p.queue.Len()
	p.observer.SetQueueDepth(depth)
	p.logger.Info("document_queued", "document_id", documentID, "queue_depth", depth)
	return documentID, nil
}

func (p *Pipeline) enqueue(ctx context.Context, documentID string) error {
	doc, err := p.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("submit document: %w", err)
	}
	if err := doc.MarkQueued(p.now()); err != nil {
		return err
	}
	if err := p.repo.Update(ctx, doc); err != nil {
		return fmt.Errorf("set status=queued: %w", err)
	}
	if err := p.queue.Enqueue(ctx, documentID); err != nil {
		return fmt.Errorf("enqueue document: %w", err)
	}
	return nil
}

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight document has finished. Ids still queued at that point are lost.
func (p *Pipeline) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 1; i <= p.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.work(ctx, workerID)
		}(i)
	}
	p.logger.Info("pipeline_started", "workers", p.cfg.Workers, "max_concurrent", p.cfg.MaxConcurrent)
	wg.Wait()
	p.logger.Info("pipeline_stopped", "abandoned_queue_items", p.queue.Len())
}

func (p *Pipeline) work(ctx context.Context, workerID int) {
	for {
		documentID, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("worker_dequeue_failed", "worker_id", workerID, "error", err)
			}
			return
		}
		p.observer.SetQueueDepth(p.queue.Len())

		if err := p.slots.Acquire(ctx, 1); err != nil {
			p.release(documentID)
			p.logger.Warn("document_dropped_on_shutdown", "worker_id", workerID, "document_id", documentID)
			return
		}
		p.handle(ctx, workerID, documentID)
		p.slots.Release(1)
	}
}

// handle runs one attempt on a context detached from shutdown so in-flight
// work can finish, bounded by the per-document timeout.
func (p *Pipeline) handle(ctx context.Context, workerID int, documentID string) {
	defer p.release(documentID)

	procCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.DocumentTimeout)
	defer cancel()

	start := time.Now()
	p.observer.StartDocument()
	outcome, err := p.process(procCtx, documentID)
	duration := time.Since(start)
	p.observer.FinishDocument(outcome, duration)

	attrs := []any{
		"worker_id", workerID,
		"document_id", documentID,
		"outcome", outcome,
		"duration_ms", float64(duration.Microseconds()) / 1000.0,
	}
	switch {
	case err != nil:
		p.logger.Error("document_processing_failed", append(attrs, "error", err)...)
	case outcome == OutcomeDegraded:
		p.logger.Warn("document_processed_degraded", attrs...)
	default:
		p.logger.Info("document_processed", attrs...)
	}
}

// ProcessByID runs a single processing attempt synchronously.
func (p *Pipeline) ProcessByID(ctx context.Context, documentID string) error {
	_, err := p.process(ctx, documentID)
	return err
}

func (p *Pipeline) process(ctx context.Context, documentID string) (outcome string, err error) {
	var doc *domain.Document
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		err = fmt.Errorf("panic while processing document: %v", rec)
		outcome = OutcomeFailed
		if doc != nil && doc.Status == domain.StatusProcessing {
			if failErr := p.markFailed(ctx, doc, err); failErr != nil {
				err = fmt.Errorf("%w; mark failed status: %v", err, failErr)
				outcome = OutcomeError
			}
		}
	}()

	doc, err = p.repo.GetByID(ctx, documentID)
	if err != nil {
		return OutcomeError, fmt.Errorf("load document: %w", err)
	}
	queuedAt := doc.UpdatedAt
	if err := doc.MarkProcessing(p.now()); err != nil {
		return OutcomeSkipped, err
	}
	if err := p.repo.Update(ctx, doc); err != nil {
		return OutcomeError, fmt.Errorf("set status=processing: %w", err)
	}
	if !queuedAt.IsZero() {
		p.observer.ObserveQueueLag(doc.ProcessingStartedAt.Sub(queuedAt))
	}

	cls, sum, content, err := p.analyze(ctx, doc)
	if err == nil {
		err = p.merge(ctx, doc, cls, sum, content)
	}
	if err != nil {
		if failErr := p.markFailed(ctx, doc, err); failErr != nil {
			return OutcomeError, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return OutcomeFailed, err
	}

	if cls.Degraded() || sum.Degraded() {
		return OutcomeDegraded, nil
	}
	return OutcomeProcessed, nil
}

// analyze gives classification and summarization independent reads of the
// stored content and runs them concurrently.
func (p *Pipeline) analyze(
	ctx context.Context,
	doc *domain.Document,
) (domain.ClassificationResult, domain.SummaryResult, domain.ExtractedContent, error) {
	var (
		cls     domain.ClassificationResult
		sum     domain.SummaryResult
		content domain.ExtractedContent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(recoverBranch("classification", func() error {
		c, err := p.extract(gctx, doc)
		if err != nil {
			return err
		}
		cls = p.analyzer.Classify(gctx, doc, c)
		return nil
	}))
	g.Go(recoverBranch("summarization", func() error {
		c, err := p.extract(gctx, doc)
		if err != nil {
			return err
		}
		content = c
		sum = p.analyzer.Summarize(gctx, doc, c)
		return nil
	}))
	if err := g.Wait(); err != nil {
		return cls, sum, content, err
	}
	return cls, sum, content, nil
}

// recoverBranch turns a panic inside an analysis branch into an error so the
// attempt fails instead of the process.
func recoverBranch(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic in %s: %v", name, rec)
			}
		}()
		return fn()
	}
}

func (p *Pipeline) extract(ctx context.Context, doc *domain.Document) (domain.ExtractedContent, error) {
	reader, err := p.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("open stored content: %w", err)
	}
	defer reader.Close()
	return p.extractor.Extract(ctx, reader, extractionName(doc)), nil
}

// merge writes the analysis onto a copy so doc stays in processing if the
// final write fails.
func (p *Pipeline) merge(
	ctx context.Context,
	doc *domain.Document,
	cls domain.ClassificationResult,
	sum domain.SummaryResult,
	content domain.ExtractedContent,
) error {
	merged := *doc
	merged.ExtractedText = content.Text
	merged.Summary = sum.Summary
	merged.Language = sum.Language
	merged.KeyPoints = sum.KeyPoints
	merged.DocumentTypeName = cls.PrimaryCategory
	merged.DocumentTypeCategory = domain.CategoryGroup(cls.PrimaryCategory)
	merged.Tags = cls.Tags
	merged.Confidence = cls.PrimaryConfidence()

	if err := merged.MarkProcessed(p.now()); err != nil {
		return err
	}
	if err := p.repo.Update(ctx, &merged); err != nil {
		return fmt.Errorf("save processed document: %w", err)
	}
	*doc = merged
	return nil
}

func (p *Pipeline) markFailed(ctx context.Context, doc *domain.Document, cause error) error {
	if err := doc.MarkFailed(p.now(), cause.Error()); err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	if err := p.repo.Update(writeCtx, doc); err != nil {
		return fmt.Errorf("set status=failed: %w", err)
	}
	return nil
}

func (p *Pipeline) claim(documentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[documentID]; busy {
		return false
	}
	p.inFlight[documentID] = struct{}{}
	return true
}

func (p *Pipeline) release(documentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, documentID)
}

// extractionName picks the name whose extension drives extractor dispatch.
func extractionName(doc *domain.Document) string {
	name := doc.OriginalName
	if name == "" {
		name = doc.StoredName
	}
	if filepath.Ext(name) == "" && doc.Extension != "" {
		name += doc.Extension
	}
	return name
}
