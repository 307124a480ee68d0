package localnet

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-devstack/sysgo"
)

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	res := &sysgo.Result{
		RunID:            uuid.MustParse("6f1c2a9e-4a36-4bde-9a2c-0f9c8f8c1d11"),
		Status:           sysgo.StatusSucceeded,
		ExpectedMessages: 2,
		Observation:      sysgo.Observation{GasPayments: 2, Confirmed: 2, Balance: 10, BalanceKnown: true},
		Networks: []sysgo.NetworkSummary{
			{ChainName: "injective99990", Domain: 99990, RPC: "http://127.0.0.1:26600", GRPC: "127.0.0.1:26602", MetricsPort: 9090, Mailbox: "inj1mailbox"},
		},
		Duration: 90 * time.Second,
	}
	var buf bytes.Buffer
	PrintSummary(&buf, res, nil)
	out := buf.String()
	require.Contains(t, out, "injective99990")
	require.Contains(t, out, "DOMAIN")
	require.Contains(t, out, "inj1mailbox")
	require.Contains(t, out, "2 messages expected")
	require.Contains(t, out, "SUCCEEDED")

	buf.Reset()
	res.Status = sysgo.StatusTimedOut
	PrintSummary(&buf, res, sysgo.ErrTerminationTimeout)
	require.Contains(t, buf.String(), "TIMED OUT")

	buf.Reset()
	PrintSummary(&buf, nil, errors.New("invalid config"))
	require.Contains(t, buf.String(), "FAILED: invalid config")
}
