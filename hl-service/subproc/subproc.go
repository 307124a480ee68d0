package subproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/logpipe"
)

// DefaultStopGrace is how long Stop waits after an interrupt before killing.
const DefaultStopGrace = 10 * time.Second

// Command describes a child process invocation.
type Command struct {
	Path string
	Args []string
	// Env is overlaid on top of the current process environment.
	Env []string
	// Dir is the working directory, the current directory if empty.
	Dir   string
	Stdin io.Reader
}

func (c Command) String() string {
	return fmt.Sprintf("%s %v", c.Path, c.Args)
}

// SubProcess is a process that can be started, and stopped, and restarted.
//
// If the sub-process exits by itself with a non-zero exit code,
// the failure is returned by Wait.
//
// Sub-process output is handed line by line to the configured log processors.
// The owner of a SubProcess is responsible for stopping it, typically by
// registering Stop with the cleanup stack of the scope that started it.
type SubProcess struct {
	log   log.Logger
	label string

	cmd *exec.Cmd

	stdOutLogs logpipe.LogProcessor
	stdErrLogs logpipe.LogProcessor

	waitCtx   context.Context // closed when process-Wait completes
	pipesDone chan struct{}   // closed when stdout and stderr are drained
	// terminated is set once an interrupt was sent by Terminate
	terminated bool

	mu sync.Mutex
}

func NewSubProcess(logger log.Logger, label string, stdOutLogs, stdErrLogs logpipe.LogProcessor) *SubProcess {
	return &SubProcess{
		log:        logger.New("label", label),
		label:      label,
		stdOutLogs: stdOutLogs,
		stdErrLogs: stdErrLogs,
	}
}

// NewLoggedSubProcess pipes both output streams through parse into the logger, tagged with label.
func NewLoggedSubProcess(logger log.Logger, label string, parse logpipe.LogParser) *SubProcess {
	sp := NewSubProcess(logger, label, nil, nil)
	sp.stdOutLogs = logpipe.Processor(parse, logpipe.ToLogger(sp.log.New("src", "stdout")))
	sp.stdErrLogs = logpipe.Processor(parse, logpipe.ToLogger(sp.log.New("src", "stderr")))
	return sp
}

func (sp *SubProcess) Label() string {
	return sp.label
}

// Running reports whether the process was started and has not exited yet.
func (sp *SubProcess) Running() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.cmd != nil && sp.waitCtx.Err() == nil
}

// Start spawns the process, and returns as soon as it is created.
func (sp *SubProcess) Start(c Command) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.cmd != nil {
		return fmt.Errorf("process %s is still running (PID: %d)", sp.label, sp.cmd.Process.Pid)
	}
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", sp.label, err)
	}
	sp.cmd = cmd
	sp.terminated = false

	pipesDone := make(chan struct{})
	var pipes sync.WaitGroup
	pipes.Add(2)
	go func() {
		defer pipes.Done()
		if err := logpipe.PipeLogs(stdout, sp.stdOutLogs); err != nil && !errors.Is(err, os.ErrClosed) {
			sp.log.Warn("stdout logging error", "err", err)
		}
	}()
	go func() {
		defer pipes.Done()
		if err := logpipe.PipeLogs(stderr, sp.stdErrLogs); err != nil && !errors.Is(err, os.ErrClosed) {
			sp.log.Warn("stderr logging error", "err", err)
		}
	}()
	go func() {
		pipes.Wait()
		close(pipesDone)
	}()
	sp.pipesDone = pipesDone

	subCtx, subCancel := context.WithCancelCause(context.Background())
	go func() {
		state, err := cmd.Process.Wait()
		if err != nil {
			subCancel(fmt.Errorf("failed to wait for sub-process: %w", err))
			return
		}
		sp.log.Info("Sub-process stopped", "exitCode", state.ExitCode(), "pid", state.Pid())
		// if it exited on its own, then we care about the status. If not, we signaled it.
		if state.Exited() && !state.Success() {
			subCancel(fmt.Errorf("sub-process %s closed with error status: %s", sp.label, state.String()))
			return
		}
		subCancel(nil)
	}()
	sp.waitCtx = subCtx
	sp.log.Info("Started sub-process", "cmd", c.Path, "pid", cmd.Process.Pid)
	return nil
}

// Terminate sends an interrupt, and does not wait for the process to exit.
func (sp *SubProcess) Terminate() error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.cmd == nil || sp.waitCtx.Err() != nil || sp.terminated {
		return nil
	}
	sp.log.Info("Sending interrupt")
	if err := sp.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	sp.terminated = true
	return nil
}

// Kill stops the process, and does not wait for it to complete.
func (sp *SubProcess) Kill() error {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // don't wait, just force it to stop immediately
	return sp.GracefulStop(ctx)
}

// Stop gracefully stops with a DefaultStopGrace timeout.
func (sp *SubProcess) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultStopGrace)
	defer cancel()
	return sp.GracefulStop(ctx)
}

// GracefulStop sends an interrupt and waits for the process to stop.
// If the given ctx is closed, a forced shutdown (process kill) is pursued.
func (sp *SubProcess) GracefulStop(ctx context.Context) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.cmd == nil {
		return nil // already stopped
	}

	if ctx.Err() == nil && sp.waitCtx.Err() == nil && !sp.terminated {
		sp.log.Info("Sending interrupt")
		if err := sp.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
	}
	exited := sp.waitCtx.Err() != nil
	if !exited {
		select {
		case <-ctx.Done():
			sp.log.Warn("Sub-process did not respond to interrupt, force-closing now")
			if err := sp.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				return fmt.Errorf("failed to force-close sub-process: %w", err)
			}
			sp.log.Info("Successfully force-closed sub-process")
		case <-sp.waitCtx.Done():
			exited = true
		}
	}
	if exited {
		if err := context.Cause(sp.waitCtx); err != nil && err != context.Canceled {
			sp.log.Warn("Sub-process exited with error", "err", err)
		} else {
			sp.log.Info("Sub-process gracefully exited")
		}
	}
	sp.cmd = nil
	sp.waitCtx = nil
	sp.pipesDone = nil
	sp.terminated = false
	return nil
}

// Wait waits for the process to complete, and for its output to be fully processed.
// A non-zero exit of a process that was not signaled is returned as error.
func (sp *SubProcess) Wait(ctx context.Context) error {
	sp.mu.Lock()
	waitCtx, pipesDone := sp.waitCtx, sp.pipesDone
	sp.mu.Unlock()
	if waitCtx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-waitCtx.Done():
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-pipesDone:
	}
	if err := context.Cause(waitCtx); err != nil && err != context.Canceled {
		sp.log.Warn("Sub-process exited with error", "err", err)
		return err
	}
	sp.log.Debug("Sub-process gracefully exited")
	return nil
}
