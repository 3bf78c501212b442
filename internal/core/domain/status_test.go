package domain

import (
	"testing"
	"time"
)

func TestLifecycleSuccessPath(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	doc := &Document{ID: "doc-1", Status: StatusPending, ProcessingRetryCount: 2, UpdatedAt: base}

	if err := doc.MarkQueued(base.Add(time.Second)); err != nil {
		t.Fatalf("MarkQueued() error = %v", err)
	}
	if doc.ProcessingRetryCount != 0 {
		t.Fatalf("expected retry count reset, got %d", doc.ProcessingRetryCount)
	}
	if err := doc.MarkProcessing(base.Add(2 * time.Second)); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	if doc.ProcessingStartedAt == nil || !doc.ProcessingStartedAt.Equal(base.Add(2*time.Second)) {
		t.Fatalf("unexpected started at: %v", doc.ProcessingStartedAt)
	}
	if err := doc.MarkProcessed(base.Add(3 * time.Second)); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if doc.Status != StatusProcessed || doc.ProcessedAt == nil || doc.ProcessingCompletedAt == nil {
		t.Fatalf("unexpected document state: %+v", doc)
	}
	if !doc.UpdatedAt.Equal(base.Add(3 * time.Second)) {
		t.Fatalf("expected updated at to follow last mutation, got %v", doc.UpdatedAt)
	}
}

func TestMarkFailedIncrementsRetryCount(t *testing.T) {
	now := time.Now().UTC()
	doc := &Document{ID: "doc-1", Status: StatusQueued}
	if err := doc.MarkProcessing(now); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	if err := doc.MarkFailed(now.Add(time.Millisecond), "boom"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if doc.ProcessingRetryCount != 1 || doc.ProcessingErrorMessage != "boom" {
		t.Fatalf("unexpected failure fields: %+v", doc)
	}

	if err := doc.MarkQueued(now.Add(time.Second)); err != nil {
		t.Fatalf("failed document must be resubmittable: %v", err)
	}
	if doc.ProcessingRetryCount != 0 {
		t.Fatalf("expected retry count reset on resubmission, got %d", doc.ProcessingRetryCount)
	}
}

func TestCompletionNeverPrecedesStart(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	doc := &Document{ID: "doc-1", Status: StatusQueued}
	if err := doc.MarkProcessing(start); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	if err := doc.MarkProcessed(start.Add(-time.Minute)); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if doc.ProcessingCompletedAt.Before(*doc.ProcessingStartedAt) {
		t.Fatalf("completed %v before started %v", doc.ProcessingCompletedAt, doc.ProcessingStartedAt)
	}
	if !doc.UpdatedAt.Equal(start) {
		t.Fatalf("updated at moved backwards: %v", doc.UpdatedAt)
	}
}

func TestIllegalTransitionsAreRejected(t *testing.T) {
	cases := []struct {
		name string
		from DocumentStatus
		mark func(*Document) error
	}{
		{"pending to processing", StatusPending, func(d *Document) error { return d.MarkProcessing(time.Now()) }},
		{"processed to queued", StatusProcessed, func(d *Document) error { return d.MarkQueued(time.Now()) }},
		{"queued to processed", StatusQueued, func(d *Document) error { return d.MarkProcessed(time.Now()) }},
		{"failed to failed", StatusFailed, func(d *Document) error { return d.MarkFailed(time.Now(), "x") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := &Document{ID: "doc-1", Status: tc.from}
			err := tc.mark(doc)
			if !IsKind(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if doc.Status != tc.from {
				t.Fatalf("status changed on rejected transition: %s", doc.Status)
			}
		})
	}
}

func TestTransitionTableIsExact(t *testing.T) {
	type edge struct{ from, to DocumentStatus }
	legal := map[edge]bool{
		{StatusPending, StatusQueued}:       true,
		{StatusQueued, StatusQueued}:        true, // recovery resubmission
		{StatusQueued, StatusProcessing}:    true,
		{StatusProcessing, StatusProcessed}: true,
		{StatusProcessing, StatusFailed}:    true,
		{StatusProcessing, StatusQueued}:    true, // stuck-document rescan
		{StatusFailed, StatusQueued}:        true,
	}
	all := []DocumentStatus{StatusPending, StatusQueued, StatusProcessing, StatusProcessed, StatusFailed}
	for _, from := range all {
		for _, to := range all {
			if got, want := CanTransition(from, to), legal[edge{from, to}]; got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}
