package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
	"github.com/kirillkom/document-enrichment/internal/core/ports"
)

const DefaultStuckTimeout = 30 * time.Minute

type RecoveryMetrics interface {
	AddRecovered(reason string, n int)
}

// RecoveryScanner resubmits documents that a restart or a hung attempt left
// in a non-terminal state.
type RecoveryScanner struct {
	repo      ports.DocumentRepository
	submitter ports.DocumentSubmitter
	metrics   RecoveryMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewRecoveryScanner(repo ports.DocumentRepository, submitter ports.DocumentSubmitter, logger *slog.Logger) *RecoveryScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryScanner{
		repo:      repo,
		submitter: submitter,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *RecoveryScanner) WithMetrics(m RecoveryMetrics) *RecoveryScanner {
	s.metrics = m
	return s
}

// RecoverOnStartup resubmits every pending and queued document. Individual
// failures are logged and skipped; a status that cannot be listed does not
// stop the others, and its error is returned once the scan completes.
func (s *RecoveryScanner) RecoverOnStartup(ctx context.Context) (int, error) {
	resubmitted := 0
	var listErrs []error
	for _, status := range []domain.DocumentStatus{domain.StatusPending, domain.StatusQueued} {
		docs, err := s.repo.GetByStatus(ctx, status)
		if err != nil {
			s.logger.Error("startup_recovery_list_failed", "status", status, "error", err)
			listErrs = append(listErrs, fmt.Errorf("list %s documents: %w", status, err))
			continue
		}
		for _, doc := range docs {
			if s.resubmit(ctx, doc.ID, "startup") {
				resubmitted++
			}
		}
	}
	s.record("startup", resubmitted)
	s.logger.Info("startup_recovery_completed", "resubmitted", resubmitted)
	return resubmitted, errors.Join(listErrs...)
}

// RescanStuck resubmits processing documents whose attempt started before
// now-timeout. A document with no recorded start is treated as stuck.
func (s *RecoveryScanner) RescanStuck(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = DefaultStuckTimeout
	}
	cutoff := s.now().Add(-timeout)

	docs, err := s.repo.GetByStatus(ctx, domain.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("list processing documents: %w", err)
	}

	resubmitted := 0
	for _, doc := range docs {
		if doc.ProcessingStartedAt != nil && !doc.ProcessingStartedAt.Before(cutoff) {
			continue
		}
		if s.resubmit(ctx, doc.ID, "stuck") {
			resubmitted++
		}
	}
	s.record("stuck", resubmitted)
	s.logger.Info("stuck_rescan_completed", "timeout", timeout.String(), "candidates", len(docs), "resubmitted", resubmitted)
	return resubmitted, nil
}

// RunPeriodic calls RescanStuck every interval until ctx is done.
func (s *RecoveryScanner) RunPeriodic(ctx context.Context, interval, timeout time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RescanStuck(ctx, timeout); err != nil && ctx.Err() == nil {
				s.logger.Error("stuck_rescan_failed", "error", err)
			}
		}
	}
}

func (s *RecoveryScanner) record(reason string, n int) {
	if s.metrics != nil {
		s.metrics.AddRecovered(reason, n)
	}
}

func (s *RecoveryScanner) resubmit(ctx context.Context, documentID, reason string) bool {
	if _, err := s.submitter.Submit(ctx, documentID); err != nil {
		level := slog.LevelError
		if errors.Is(err, domain.ErrAlreadyInFlight) {
			level = slog.LevelDebug
		}
		s.logger.Log(ctx, level, "document_resubmit_failed", "document_id", documentID, "reason", reason, "error", err)
		return false
	}
	return true
}
