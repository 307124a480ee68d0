package localnet

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-devstack/sysgo"
)

// PrintSummary writes the networks table and the outcome banner of a run.
func PrintSummary(w io.Writer, res *sysgo.Result, runErr error) {
	if res == nil {
		color.New(color.FgRed, color.Bold).Fprintf(w, "FAILED: %v\n", runErr)
		return
	}
	if len(res.Networks) > 0 {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Chain", "Domain", "RPC", "gRPC", "Validator metrics", "Mailbox"})
		for _, n := range res.Networks {
			table.Append([]string{
				n.ChainName,
				strconv.FormatUint(uint64(n.Domain), 10),
				n.RPC,
				n.GRPC,
				strconv.Itoa(n.MetricsPort),
				n.Mailbox,
			})
		}
		table.Render()
	}
	fmt.Fprintf(w, "run %s: %d messages expected, %v gas payments, %v confirmed, relayer balance %v, took %s\n",
		res.RunID, res.ExpectedMessages, res.Observation.GasPayments, res.Observation.Confirmed,
		res.Observation.Balance, res.Duration.Round(time.Second))
	switch {
	case runErr == nil && res.Status == sysgo.StatusSucceeded:
		color.New(color.FgGreen, color.Bold).Fprintln(w, "SUCCEEDED: all messages delivered")
	case res.Status == sysgo.StatusTimedOut:
		color.New(color.FgYellow, color.Bold).Fprintf(w, "TIMED OUT: %v\n", runErr)
	default:
		color.New(color.FgRed, color.Bold).Fprintf(w, "FAILED: %v\n", runErr)
	}
}
