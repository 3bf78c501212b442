package usecase

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
)

func TestRecoverOnStartupResubmitsPendingAndQueued(t *testing.T) {
	repo := newRepoFake(
		domain.Document{ID: "pending", Status: domain.StatusPending},
		domain.Document{ID: "queued", Status: domain.StatusQueued},
		domain.Document{ID: "broken", Status: domain.StatusQueued},
		domain.Document{ID: "done", Status: domain.StatusProcessed},
		domain.Document{ID: "failed", Status: domain.StatusFailed},
	)
	submitter := &submitterFake{failFor: map[string]error{"broken": errors.New("queue closed")}}

	n, err := NewRecoveryScanner(repo, submitter, nil).RecoverOnStartup(context.Background())
	if err != nil {
		t.Fatalf("RecoverOnStartup() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 resubmissions, got %d", n)
	}
	sort.Strings(submitter.submitted)
	if len(submitter.submitted) != 2 || submitter.submitted[0] != "pending" || submitter.submitted[1] != "queued" {
		t.Fatalf("unexpected submissions %v", submitter.submitted)
	}
}

func TestRecoverOnStartupContinuesPastListFailure(t *testing.T) {
	dbDown := errors.New("db down")
	repo := newRepoFake(
		domain.Document{ID: "pending", Status: domain.StatusPending},
		domain.Document{ID: "queued", Status: domain.StatusQueued},
	)
	repo.listErr = map[domain.DocumentStatus]error{domain.StatusPending: dbDown}
	submitter := &submitterFake{}

	n, err := NewRecoveryScanner(repo, submitter, nil).RecoverOnStartup(context.Background())
	if !errors.Is(err, dbDown) {
		t.Fatalf("expected listing error to be reported, got %v", err)
	}
	if n != 1 || len(submitter.submitted) != 1 || submitter.submitted[0] != "queued" {
		t.Fatalf("queued documents must still be resubmitted, got %d %v", n, submitter.submitted)
	}
}

func TestRescanStuckUsesStartCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}
	repo := newRepoFake(
		domain.Document{ID: "old", Status: domain.StatusProcessing, ProcessingStartedAt: at(45 * time.Minute)},
		domain.Document{ID: "fresh", Status: domain.StatusProcessing, ProcessingStartedAt: at(10 * time.Minute)},
		domain.Document{ID: "unknown-start", Status: domain.StatusProcessing},
		domain.Document{ID: "queued", Status: domain.StatusQueued, ProcessingStartedAt: at(2 * time.Hour)},
	)
	submitter := &submitterFake{}
	scanner := NewRecoveryScanner(repo, submitter, nil)
	scanner.now = func() time.Time { return now }

	n, err := scanner.RescanStuck(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("RescanStuck() error = %v", err)
	}
	sort.Strings(submitter.submitted)
	if n != 2 || len(submitter.submitted) != 2 || submitter.submitted[0] != "old" || submitter.submitted[1] != "unknown-start" {
		t.Fatalf("unexpected resubmissions n=%d %v", n, submitter.submitted)
	}
}

func TestRescanStuckDefaultsTimeout(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-20 * time.Minute)
	repo := newRepoFake(domain.Document{ID: "doc-1", Status: domain.StatusProcessing, ProcessingStartedAt: &started})
	submitter := &submitterFake{}
	scanner := NewRecoveryScanner(repo, submitter, nil)
	scanner.now = func() time.Time { return now }

	n, err := scanner.RescanStuck(context.Background(), 0)
	if err != nil || n != 0 {
		t.Fatalf("expected nothing resubmitted under the 30m default, got %d, %v", n, err)
	}
}

func TestRescanStuckRequeuesThroughPipeline(t *testing.T) {
	repo, storage := newRepoFake(), newStorageFake()
	seedDocument(repo, storage, "doc-1", domain.StatusProcessing)
	stale := time.Now().UTC().Add(-time.Hour)
	doc := repo.get("doc-1")
	doc.ProcessingStartedAt = &stale
	repo.docs["doc-1"] = doc

	p := newTestPipeline(repo, storage, &extractorFake{}, &analyzerFake{}, PipelineConfig{Workers: 1})
	stop := runPipeline(t, p)
	defer stop()

	n, err := NewRecoveryScanner(repo, p, nil).RescanStuck(context.Background(), 30*time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("RescanStuck() = %d, %v", n, err)
	}
	waitForStatus(t, repo, "doc-1", domain.StatusProcessed)
}
