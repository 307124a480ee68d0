package devtest

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// P hosts the resources of one orchestrated run: processes, temp dirs, config files.
// Resources register their release with Cleanup, and Close releases them all,
// whichever way the run ends.
type P interface {
	Name() string
	Logger() log.Logger
	// Ctx is canceled when the scope is closed.
	Ctx() context.Context

	// TempDir creates a temporary directory, removed when the scope closes.
	TempDir(pattern string) (string, error)

	// Cleanup runs the given function when the scope closes.
	// Cleanups run in reverse registration order.
	Cleanup(fn func())

	// Close cancels the context and runs all cleanup.
	Close()
}

type implP struct {
	scopeName string

	logger log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// cleanup stack
	cleanupLock    sync.Mutex
	cleanupBacklog []func()
}

var _ P = (*implP)(nil)

func NewP(ctx context.Context, logger log.Logger, name string) P {
	ctx, cancel := context.WithCancel(ctx)
	ctx = AddScope(ctx, name)
	return &implP{
		scopeName: name,
		logger:    logger.New("scope", Scope(ctx)),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (t *implP) Name() string {
	return t.scopeName
}

func (t *implP) Logger() log.Logger {
	return t.logger
}

func (t *implP) Ctx() context.Context {
	return t.ctx
}

func (t *implP) TempDir(pattern string) (string, error) {
	tempDir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	if tempDir == "" || tempDir == "/" {
		return "", fmt.Errorf("unexpected temp dir path %q", tempDir)
	}
	t.Cleanup(func() {
		if err := os.RemoveAll(tempDir); err != nil {
			t.logger.Error("Failed to clean up temp dir", "dir", tempDir, "err", err)
		}
	})
	return tempDir, nil
}

func (t *implP) Cleanup(fn func()) {
	t.cleanupLock.Lock()
	defer t.cleanupLock.Unlock()
	t.cleanupBacklog = append(t.cleanupBacklog, fn)
}

// Close cancels the scope context, and then runs the backlog of cleanup functions,
// last registered first.
// Cleanup continues when a cleanup function panics.
// The panic is not recovered, that is up to the caller.
func (t *implP) Close() {
	t.cancel()
	// run remaining cleanups, even if a cleanup panics,
	// but don't recover the panic
	defer func() {
		t.cleanupLock.Lock()
		recur := len(t.cleanupBacklog) > 0
		t.cleanupLock.Unlock()
		if recur {
			t.logger.Error("Last cleanup panicked, continuing cleanup attempt now")
			t.Close()
		}
	}()

	for {
		// Pop a cleanup item, and execute it in unlocked state,
		// in case cleanups produce new cleanups.
		var cleanup func()
		t.cleanupLock.Lock()
		if len(t.cleanupBacklog) > 0 {
			last := len(t.cleanupBacklog) - 1
			cleanup = t.cleanupBacklog[last]
			t.cleanupBacklog = t.cleanupBacklog[:last]
		}
		t.cleanupLock.Unlock()
		if cleanup == nil {
			return
		}
		cleanup()
	}
}
