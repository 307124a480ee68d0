package subproc

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/logpipe"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/testlog"
)

func TestSubProcess(gt *testing.T) {
	tLog := testlog.Logger(gt, log.LevelInfo)
	logger, capt := testlog.CaptureLogger(gt, log.LevelInfo)

	logProc := logpipe.LogProcessor(func(line []byte) {
		logger.Info(string(line))
		tLog.Info("Sub-process logged message", "line", string(line))
	})
	sp := NewSubProcess(logger, "test", logProc, logProc)
	gt.Cleanup(func() {
		require.NoError(gt, sp.Stop())
	})

	gt.Log("Running first sub-process")
	testSleep(gt, capt, sp)
	gt.Log("Restarting, second run")
	capt.Clear()
	testSleep(gt, capt, sp)
	gt.Log("Trying a different command now")
	capt.Clear()
	testEcho(gt, capt, sp)
	gt.Log("Second run of different command")
	capt.Clear()
	testEcho(gt, capt, sp)
}

// testEcho tests that we can handle a sub-process that completes on its own
func testEcho(gt *testing.T, capt *testlog.CapturingHandler, sp *SubProcess) {
	require.NoError(gt, sp.Start(Command{Path: "/bin/echo", Args: []string{"hello world"}}))
	gt.Log("Started sub-process")
	require.NoError(gt, sp.Wait(context.Background()), "echo must complete")
	require.False(gt, sp.Running())
	require.NoError(gt, sp.Stop())
	gt.Log("Stopped sub-process")

	require.NotNil(gt, capt.FindLog(
		testlog.NewMessageFilter("hello world")))

	require.NotNil(gt, capt.FindLog(
		testlog.NewMessageFilter("Sub-process gracefully exited")))
}

// testSleep tests that we can force shut down a sub-process that is stuck
func testSleep(gt *testing.T, capt *testlog.CapturingHandler, sp *SubProcess) {
	require.NoError(gt, sp.Start(Command{Path: "/bin/sleep", Args: []string{"10000000000"}}))
	gt.Log("Started sub-process")
	require.True(gt, sp.Running())
	require.Error(gt, sp.Start(Command{Path: "/bin/sleep", Args: []string{"1"}}), "cannot start twice")
	require.NoError(gt, sp.Kill())
	gt.Log("Killed sub-process")

	require.NotNil(gt, capt.FindLog(
		testlog.NewMessageFilter("Sub-process did not respond to interrupt, force-closing now")))

	require.NotNil(gt, capt.FindLog(
		testlog.NewMessageFilter("Successfully force-closed sub-process")))
}

func TestSubProcessTerminate(t *testing.T) {
	logger := testlog.Logger(t, log.LevelInfo)
	sp := NewLoggedSubProcess(logger, "sleeper", logpipe.PlainLogParser(log.LevelInfo))
	require.NoError(t, sp.Start(Command{Path: "/bin/sleep", Args: []string{"10000000000"}}))

	start := time.Now()
	require.NoError(t, sp.Terminate())
	require.Less(t, time.Since(start), time.Second, "terminate must not block")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// a signaled process is not an error
	require.NoError(t, sp.Wait(ctx))
	require.NoError(t, sp.Stop())
	require.NoError(t, sp.Terminate(), "terminating a stopped process is a no-op")
}

func TestSubProcessExitStatus(t *testing.T) {
	logger := testlog.Logger(t, log.LevelInfo)
	sp := NewLoggedSubProcess(logger, "failing", logpipe.PlainLogParser(log.LevelInfo))
	require.NoError(t, sp.Start(Command{Path: "/bin/sh", Args: []string{"-c", "exit 3"}}))
	err := sp.Wait(context.Background())
	require.ErrorContains(t, err, "closed with error status")
	require.NoError(t, sp.Stop())
}

func TestSubProcessEnvAndDir(t *testing.T) {
	logger, capt := testlog.CaptureLogger(t, log.LevelInfo)
	dir := t.TempDir()
	sp := NewLoggedSubProcess(logger, "env", logpipe.PlainLogParser(log.LevelInfo))
	require.NoError(t, sp.Start(Command{
		Path: "/bin/sh",
		Args: []string{"-c", `echo "$HYP_DB"; pwd`},
		Env:  []string{"HYP_DB=/tmp/relayer-db"},
		Dir:  dir,
	}))
	require.NoError(t, sp.Wait(context.Background()))
	require.NoError(t, sp.Stop())

	require.NotNil(t, capt.FindLog(testlog.NewMessageFilter("/tmp/relayer-db"), testlog.NewAttributesFilter("label", "env")))
	require.NotNil(t, capt.FindLog(testlog.NewMessageContainsFilter(dir[strings.LastIndex(dir, "/"):])))
}

func TestLoggedSubProcessLabelsOnce(t *testing.T) {
	logger, capt := testlog.CaptureLogger(t, log.LevelInfo)
	sp := NewLoggedSubProcess(logger, "once", logpipe.PlainLogParser(log.LevelInfo))
	require.NoError(t, sp.Start(Command{Path: "/bin/echo", Args: []string{"piped line"}}))
	require.NoError(t, sp.Wait(context.Background()))
	require.NoError(t, sp.Stop())

	countLabels := func(rec *testlog.CapturedRecord) int {
		n := 0
		rec.Attrs(func(a slog.Attr) bool {
			if a.Key == "label" {
				n++
			}
			return true
		})
		return n
	}
	started := capt.FindLog(testlog.NewMessageFilter("Started sub-process"))
	require.NotNil(t, started)
	require.Equal(t, 1, countLabels(started))
	piped := capt.FindLog(testlog.NewMessageFilter("piped line"))
	require.NotNil(t, piped)
	require.Equal(t, 1, countLabels(piped))
	require.Equal(t, "stdout", piped.AttrValue("src"))
}

func TestRun(t *testing.T) {
	logger := testlog.Logger(t, log.LevelDebug)

	out, err := Run(context.Background(), logger, "ok", Command{
		Path:  "/bin/sh",
		Args:  []string{"-c", `cat; echo '{"code":0}'; echo warn >&2`},
		Stdin: strings.NewReader("from stdin\n"),
	})
	require.NoError(t, err)
	require.Equal(t, "from stdin\n{\"code\":0}\n", string(out))

	_, err = Run(context.Background(), logger, "fail", Command{
		Path: "/bin/sh",
		Args: []string{"-c", `echo "key not found" >&2; exit 1`},
	})
	require.ErrorContains(t, err, "key not found")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = Run(ctx, logger, "slow", Command{Path: "/bin/sleep", Args: []string{"10000"}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
