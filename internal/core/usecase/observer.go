package usecase

import "time"

// Processing outcomes reported to the observer.
const (
	OutcomeProcessed = "processed"
	OutcomeDegraded  = "degraded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeError     = "error"
)

// ProcessingObserver receives pipeline telemetry.
type ProcessingObserver interface {
	StartDocument()
	FinishDocument(outcome string, duration time.Duration)
	ObserveQueueLag(lag time.Duration)
	SetQueueDepth(depth int)
}

type noopObserver struct{}

func (noopObserver) StartDocument()                       {}
func (noopObserver) FinishDocument(string, time.Duration) {}
func (noopObserver) ObserveQueueLag(time.Duration)        {}
func (noopObserver) SetQueueDepth(int)                    {}
