// Package testlog provides a log handler for unit tests.
package testlog

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

var useColorInTestLog = true

func init() {
	if os.Getenv("HL_TESTLOG_DISABLE_COLOR") == "true" {
		useColorInTestLog = false
	}
}

// Testing interface to log to.
// Standard Go testing.TB implements this.
type Testing interface {
	Logf(format string, args ...any)
	Helper()
	Name() string
	Cleanup(func())
}

// testWriter forwards complete lines to t.Logf.
// Child-process pipes may still be draining after the test finished,
// so writes after cleanup are dropped instead of panicking inside the testing package.
type testWriter struct {
	t    Testing
	mu   sync.Mutex
	buf  bytes.Buffer
	done bool
}

func newTestWriter(t Testing) *testWriter {
	w := &testWriter{t: t}
	t.Cleanup(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.done = true
	})
	return w
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return len(p), nil
	}
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// incomplete line, keep for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.t.Logf("%s", strings.TrimSuffix(line, "\n"))
	}
	return len(p), nil
}

// Logger returns a logger which logs to the unit test log of t.
func Logger(t Testing, level slog.Level) log.Logger {
	return log.NewLogger(newHandler(t, level))
}

func newHandler(t Testing, level slog.Level) slog.Handler {
	return log.NewTerminalHandlerWithLevel(newTestWriter(t), level, useColorInTestLog)
}
