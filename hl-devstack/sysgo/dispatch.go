package sysgo

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-chain-ops/devkeys"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-cosmos/cli"
)

// DefaultMessageBody is the payload of every test message.
const DefaultMessageBody = "hello"

// DefaultDispatchFunds pays the interchain gas of one message.
var DefaultDispatchFunds = cli.Coins{{Denom: cli.Denom, Amount: "25000000"}}

type dispatchMsg struct {
	Dispatch dispatchInner `json:"dispatch"`
}

type dispatchInner struct {
	DestDomain    uint32  `json:"dest_domain"`
	RecipientAddr string  `json:"recipient_addr"`
	MsgBody       string  `json:"msg_body"`
	Hook          *string `json:"hook"`
	Metadata      string  `json:"metadata"`
}

// NewDispatchMsg builds the mailbox dispatch call of one message to the mock receiver of dest.
func NewDispatchMsg(dest *ChainNetwork, body []byte) (any, error) {
	if dest.Deployments == nil {
		return nil, fmt.Errorf("chain %s has no deployments", dest)
	}
	recipient, err := devkeys.PaddedAddress(dest.Deployments.MockReceiver)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient of %s: %w", dest, err)
	}
	return dispatchMsg{Dispatch: dispatchInner{
		DestDomain:    dest.Domain,
		RecipientAddr: hex.EncodeToString(recipient[:]),
		MsgBody:       hex.EncodeToString(body),
	}}, nil
}

// Dispatcher sends test messages between chains.
type Dispatcher struct {
	Log     log.Logger
	Metrics Metrics
	// Sender is the key name paying for the dispatches.
	Sender string
	Body   []byte
	Funds  cli.Coins
}

// DispatchAll sends one message for every ordered pair of distinct networks,
// and returns the number of messages sent. Any failed dispatch aborts.
func (d *Dispatcher) DispatchAll(ctx context.Context, networks []*ChainNetwork) (uint64, error) {
	var count uint64
	for _, src := range networks {
		for _, dst := range networks {
			if src.Domain == dst.Domain {
				continue
			}
			msg, err := NewDispatchMsg(dst, d.Body)
			if err != nil {
				return count, err
			}
			res, err := src.Client.WasmExecute(ctx, src.Endpoint, d.Sender, src.Deployments.Mailbox, msg, d.Funds)
			if err != nil {
				return count, fmt.Errorf("dispatch %d -> %d: %w", src.Domain, dst.Domain, err)
			}
			count++
			if d.Metrics != nil {
				d.Metrics.RecordDispatch(src.Domain, dst.Domain)
			}
			d.Log.Info("Dispatched message", "origin", src.Domain, "destination", dst.Domain, "tx", res.TxHash)
		}
	}
	return count, nil
}
