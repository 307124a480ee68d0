package cli

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Endpoint is how clients reach one node.
type Endpoint struct {
	// RPC is the tendermint RPC url, e.g. http://127.0.0.1:26600
	RPC string `json:"rpc"`
	// GRPC is the host:port of the cosmos gRPC server.
	GRPC string `json:"grpc"`
}

// NodePorts are the listen ports of one node.
type NodePorts struct {
	RPC   int `json:"rpc"`
	P2P   int `json:"p2p"`
	GRPC  int `json:"grpc"`
	REST  int `json:"rest"`
	PProf int `json:"pprof"`
}

func (p NodePorts) All() []int {
	return []int{p.RPC, p.P2P, p.GRPC, p.REST, p.PProf}
}

// Coin is a cosmos amount, e.g. 25000000inj.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

func (c Coin) String() string {
	return c.Amount + c.Denom
}

type Coins []Coin

func (cs Coins) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// TxResponse is the subset of the cosmos tx response the harness reads.
type TxResponse struct {
	Height string  `json:"height"`
	TxHash string  `json:"txhash"`
	Code   uint32  `json:"code"`
	RawLog string  `json:"raw_log"`
	Events []Event `json:"events"`
}

type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// TxError is a transaction that was accepted by the CLI, but failed on chain or in CheckTx.
type TxError struct {
	TxHash string
	Code   uint32
	RawLog string
}

func (e *TxError) Error() string {
	return fmt.Sprintf("tx %s failed with code %d: %s", e.TxHash, e.Code, e.RawLog)
}

func (r *TxResponse) Check() error {
	if r.Code != 0 {
		return &TxError{TxHash: r.TxHash, Code: r.Code, RawLog: r.RawLog}
	}
	return nil
}

// EventAttribute returns the first value of the attribute key in an event of the given type.
func (r *TxResponse) EventAttribute(eventType, key string) (string, bool) {
	for _, ev := range r.Events {
		if ev.Type != eventType {
			continue
		}
		for _, attr := range ev.Attributes {
			if attr.Key == key {
				return attr.Value, true
			}
		}
	}
	return "", false
}

type smartQueryResponse struct {
	Data json.RawMessage `json:"data"`
}
