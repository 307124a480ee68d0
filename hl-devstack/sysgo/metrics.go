package sysgo

import "time"

// Metrics records the progress of a run.
type Metrics interface {
	RecordPhase(phase Phase, d time.Duration)
	RecordDispatch(origin, destination uint32)
	RecordObservation(obs Observation)
	RecordOutcome(status Status, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordPhase(Phase, time.Duration)    {}
func (noopMetrics) RecordDispatch(uint32, uint32)       {}
func (noopMetrics) RecordObservation(Observation)       {}
func (noopMetrics) RecordOutcome(Status, time.Duration) {}
