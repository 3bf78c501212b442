package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
)

type repoFake struct {
	mu        sync.Mutex
	docs      map[string]domain.Document
	updates   []domain.DocumentStatus
	createErr error
	// listErr is returned when listing documents in the keyed status.
	listErr map[domain.DocumentStatus]error
	// updateErr is returned for updates moving a document into the keyed status.
	updateErr map[domain.DocumentStatus]error
}

func newRepoFake(docs ...domain.Document) *repoFake {
	f := &repoFake{docs: make(map[string]domain.Document), updateErr: map[domain.DocumentStatus]error{}}
	for _, doc := range docs {
		f.docs[doc.ID] = doc
	}
	return f
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.docs[doc.ID] = *doc
	return nil
}

func (f *repoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.IsDeleted {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	return &doc, nil
}

func (f *repoFake) GetByStatus(_ context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[status]; err != nil {
		return nil, err
	}
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.Status == status && !doc.IsDeleted {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *repoFake) Update(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[doc.Status]; err != nil {
		return err
	}
	f.updates = append(f.updates, doc.Status)
	f.docs[doc.ID] = *doc
	return nil
}

func (f *repoFake) SoftDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	now := time.Now().UTC()
	doc.IsDeleted = true
	doc.DeletedAt = &now
	f.docs[id] = doc
	return nil
}

func (f *repoFake) get(id string) domain.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id]
}

type storageFake struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	saveErr   error
	deleteOK  bool
	deleted   []string
	openCalls int
}

func newStorageFake() *storageFake {
	return &storageFake{blobs: make(map[string][]byte), deleteOK: true}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = raw
	return int64(len(raw)), nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	raw, ok := f.blobs[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrObjectNotFound, "open object", fmt.Errorf("key=%s", key))
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	delete(f.blobs, key)
	return f.deleteOK
}

type extractorFake struct {
	panicOn string
}

func (f *extractorFake) Extract(_ context.Context, r io.Reader, filename string) domain.ExtractedContent {
	if f.panicOn != "" && filename == f.panicOn {
		panic("extractor exploded")
	}
	raw, _ := io.ReadAll(r)
	return domain.ExtractedContent{Text: string(raw), ContentType: domain.ContentTypeText}
}

// analyzerFake records how many documents are being analyzed at once.
type analyzerFake struct {
	delay    time.Duration
	category string
	degraded bool
	// meet, when set, holds each of Classify and Summarize until both have started.
	meet *rendezvous

	mu      sync.Mutex
	active  int
	maxSeen int
	calls   int
}

func (f *analyzerFake) enter() {
	f.mu.Lock()
	f.active++
	f.calls++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.mu.Unlock()
}

func (f *analyzerFake) leave() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
}

func (f *analyzerFake) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxSeen
}

func (f *analyzerFake) Classify(ctx context.Context, _ *domain.Document, _ domain.ExtractedContent) domain.ClassificationResult {
	f.enter()
	defer f.leave()
	if f.meet != nil {
		f.meet.await(ctx)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	category := f.category
	if category == "" {
		category = "Invoice"
	}
	result := domain.ClassificationResult{
		PrimaryCategory: category,
		Confidence:      map[string]float64{category: 0.9},
		Tags:            []string{"finance"},
	}
	if f.degraded {
		result.PrimaryCategory = domain.CategoryError
		result.Err = errors.New("model unavailable")
	}
	return result
}

// Summarize does not count toward concurrency; classification already
// brackets each document.
func (f *analyzerFake) Summarize(ctx context.Context, _ *domain.Document, content domain.ExtractedContent) domain.SummaryResult {
	if f.meet != nil {
		f.meet.await(ctx)
	}
	return domain.SummaryResult{
		Summary:   "summary of " + content.Text,
		Language:  "en",
		KeyPoints: []string{"the invoice is due at the end of the month"},
	}
}

// rendezvous is a one-shot barrier; a party that gives up waiting is counted as missed.
type rendezvous struct {
	arrived sync.WaitGroup
	timeout time.Duration
	missed  atomic.Int32
}

func newRendezvous(parties int, timeout time.Duration) *rendezvous {
	r := &rendezvous{timeout: timeout}
	r.arrived.Add(parties)
	return r
}

func (r *rendezvous) await(ctx context.Context) {
	r.arrived.Done()
	all := make(chan struct{})
	go func() {
		r.arrived.Wait()
		close(all)
	}()
	select {
	case <-all:
	case <-time.After(r.timeout):
		r.missed.Add(1)
	case <-ctx.Done():
		r.missed.Add(1)
	}
}

type submitterFake struct {
	mu        sync.Mutex
	submitted []string
	failFor   map[string]error
}

func (f *submitterFake) Submit(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[id]; err != nil {
		return "", err
	}
	f.submitted = append(f.submitted, id)
	return id, nil
}

type invokerFake struct {
	mu       sync.Mutex
	response map[string]string
	err      error
	prompts  []string
}

func (f *invokerFake) Invoke(_ context.Context, modelID, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response[modelID], nil
}
