package sysgo

import (
	"errors"
	"fmt"
)

// Phase names a setup step of a run.
type Phase string

const (
	PhaseBuild    Phase = "build"
	PhaseInstall  Phase = "install"
	PhaseNodeInit Phase = "node-init"
	PhaseNodeRun  Phase = "node-start"
	PhaseStore    Phase = "store-codes"
	PhaseDeploy   Phase = "deploy"
	PhaseLink     Phase = "link"
	PhaseConfig   Phase = "agent-config"
	PhaseAgents   Phase = "agent-launch"
	PhaseBalance  Phase = "relayer-balance"
	PhaseDispatch Phase = "dispatch"
)

// SetupError is a fatal failure of a setup phase. The run is aborted, there is no retry.
type SetupError struct {
	Phase Phase
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed in %s phase: %v", e.Phase, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

func setupErr(phase Phase, err error) error {
	if err == nil {
		return nil
	}
	var se *SetupError
	if errors.As(err, &se) {
		return err
	}
	return &SetupError{Phase: phase, Err: err}
}

var (
	// ErrMetricsUnavailable means the relayer metrics could not be read this tick.
	// The monitor keeps waiting.
	ErrMetricsUnavailable = errors.New("relayer metrics unavailable")

	// ErrTerminationTimeout means the termination invariants were not met before the deadline.
	ErrTerminationTimeout = errors.New("termination invariants not met before deadline")
)

// IsSetupError reports whether err aborted the run during setup, and in which phase.
func IsSetupError(err error) (Phase, bool) {
	var se *SetupError
	if errors.As(err, &se) {
		return se.Phase, true
	}
	return "", false
}
