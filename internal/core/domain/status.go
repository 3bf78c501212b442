package domain

import (
	"fmt"
	"time"
)

// transitions lists every legal status edge. queued→queued and
// processing→queued exist only for recovery resubmission.
var transitions = map[DocumentStatus][]DocumentStatus{
	StatusPending:    {StatusQueued},
	StatusQueued:     {StatusQueued, StatusProcessing},
	StatusProcessing: {StatusProcessed, StatusFailed, StatusQueued},
	StatusFailed:     {StatusQueued},
	StatusProcessed:  nil,
}

func CanTransition(from, to DocumentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (d *Document) transition(to DocumentStatus, now time.Time) error {
	if !CanTransition(d.Status, to) {
		return WrapError(ErrInvalidTransition, "document "+d.ID, fmt.Errorf("%s -> %s", d.Status, to))
	}
	d.Status = to
	d.Touch(now)
	return nil
}

// MarkQueued is applied by submission. It resets the retry counter.
func (d *Document) MarkQueued(now time.Time) error {
	if err := d.transition(StatusQueued, now); err != nil {
		return err
	}
	d.ProcessingRetryCount = 0
	return nil
}

func (d *Document) MarkProcessing(now time.Time) error {
	if err := d.transition(StatusProcessing, now); err != nil {
		return err
	}
	started := now
	d.ProcessingStartedAt = &started
	d.ProcessingCompletedAt = nil
	d.ProcessingErrorMessage = ""
	return nil
}

func (d *Document) MarkProcessed(now time.Time) error {
	if err := d.transition(StatusProcessed, now); err != nil {
		return err
	}
	completed := d.completionTime(now)
	d.ProcessedAt = &completed
	d.ProcessingCompletedAt = &completed
	return nil
}

func (d *Document) MarkFailed(now time.Time, message string) error {
	if err := d.transition(StatusFailed, now); err != nil {
		return err
	}
	completed := d.completionTime(now)
	d.ProcessingCompletedAt = &completed
	d.ProcessingErrorMessage = message
	d.ProcessingRetryCount++
	return nil
}

// completionTime keeps ProcessingStartedAt <= ProcessingCompletedAt.
func (d *Document) completionTime(now time.Time) time.Time {
	if d.ProcessingStartedAt != nil && now.Before(*d.ProcessingStartedAt) {
		return *d.ProcessingStartedAt
	}
	return now
}
