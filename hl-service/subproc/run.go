package subproc

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// stderrTail is how many stderr lines are kept for error reporting.
const stderrTail = 20

// Run executes a short-lived command to completion and returns its stdout.
// Stderr is logged at debug level, and its tail is attached to the error on failure.
// If ctx is done before the command exits, the command is killed.
func Run(ctx context.Context, logger log.Logger, label string, c Command) ([]byte, error) {
	var (
		mu     sync.Mutex
		stdout bytes.Buffer
		tail   []string
	)
	stdoutProc := func(line []byte) {
		mu.Lock()
		defer mu.Unlock()
		stdout.Write(line)
		stdout.WriteByte('\n')
	}
	stderrLogger := logger.New("label", label, "src", "stderr")
	stderrProc := func(line []byte) {
		stderrLogger.Debug(string(line))
		mu.Lock()
		defer mu.Unlock()
		tail = append(tail, string(line))
		if len(tail) > stderrTail {
			tail = tail[1:]
		}
	}
	sp := NewSubProcess(logger, label, stdoutProc, stderrProc)
	if err := sp.Start(c); err != nil {
		return nil, err
	}
	defer func() {
		_ = sp.Kill()
	}()
	if err := sp.Wait(ctx); err != nil {
		mu.Lock()
		defer mu.Unlock()
		if len(tail) > 0 {
			return nil, fmt.Errorf("%s: %w\n%s", c, err, strings.Join(tail, "\n"))
		}
		return nil, fmt.Errorf("%s: %w", c, err)
	}
	mu.Lock()
	defer mu.Unlock()
	return bytes.Clone(stdout.Bytes()), nil
}
