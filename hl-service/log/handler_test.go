package log

import (
	"bytes"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/log"
)

type testPhase int

func (p testPhase) String() string { return [...]string{"install", "deploy"}[p] }

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogger(JSONHandler(&buf, log.LevelDebug))
	logger.Debug("dispatched", "phase", testPhase(1), "domain", 99990, "missing", (*url.URL)(nil))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Equal(t, "dispatched", out["msg"])
	require.Equal(t, "debug", out["lvl"])
	require.Contains(t, out, "t")
	require.NotContains(t, out, "time")
	require.NotContains(t, out, "level")
	require.Equal(t, "deploy", out["phase"])
	require.Equal(t, float64(99990), out["domain"])
	require.Equal(t, "<nil>", out["missing"])
}

func TestLogfmtHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogger(LogfmtHandler(&buf, log.LevelWarn))
	logger.Info("hidden")
	require.Empty(t, buf.String())
	logger.Warn("shown", "domain", 99990, "phase", testPhase(0))
	line := buf.String()
	require.Regexp(t, `^t=\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}`, line)
	require.Contains(t, line, "lvl=warn")
	require.Contains(t, line, "msg=shown")
	require.Contains(t, line, "domain=99990")
	require.Contains(t, line, "phase=install")
}

func TestLevelFromString(t *testing.T) {
	cases := map[string]any{
		"TRACE": log.LevelTrace,
		"debug": log.LevelDebug,
		"INFO":  log.LevelInfo,
		"warn":  log.LevelWarn,
		"ERROR": log.LevelError,
		"crit":  log.LevelCrit,
	}
	for in, want := range cases {
		lvl, err := LevelFromString(in)
		require.NoError(t, err, in)
		require.Equal(t, want, lvl, in)
	}
	_, err := LevelFromString("loud")
	require.Error(t, err)
}

func TestFormatTypeCheck(t *testing.T) {
	require.NoError(t, FormatJSON.Check())
	require.NoError(t, FormatTerminal.Check())
	require.Error(t, FormatType("xml").Check())
}
