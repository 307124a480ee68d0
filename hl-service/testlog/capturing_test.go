package testlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/log"
)

func TestCaptureLogger(t *testing.T) {
	logger, capt := CaptureLogger(t, log.LevelInfo)
	logger.Debug("filtered")
	sub := logger.New("label", "validator-99990")
	sub.Info("launched", "port", 9090)
	logger.Warn("balance unchanged")

	require.Nil(t, capt.FindLog(NewMessageFilter("filtered")))

	rec := capt.FindLog(NewMessageFilter("launched"), NewAttributesFilter("label", "validator-99990"))
	require.NotNil(t, rec)
	require.EqualValues(t, 9090, rec.AttrValue("port"))

	require.Len(t, capt.FindLogs(NewLevelFilter(log.LevelWarn)), 1)
	require.NotNil(t, capt.FindLog(NewMessageContainsFilter("unchanged")))

	capt.Clear()
	require.Nil(t, capt.FindLog())
}
