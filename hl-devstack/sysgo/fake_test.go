package sysgo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-chain-ops/devkeys"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-cosmos/cli"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/testlog"
)

func testLogger(t *testing.T) log.Logger {
	return testlog.Logger(t, log.LevelInfo)
}

type wasmCall struct {
	Kind     string
	Sender   string
	Contract string
	CodeID   uint64
	Label    string
	Msg      map[string]json.RawMessage
	Funds    cli.Coins
}

// Action is the name of the single top-level key of the call message.
func (c wasmCall) Action() string {
	for k := range c.Msg {
		return k
	}
	return ""
}

// fakeWasm is an in-memory chain. Contract addresses are derived from the chain id and label.
type fakeWasm struct {
	mu      sync.Mutex
	chainID string
	calls   []wasmCall
	// failOn makes executes of the given action fail.
	failOn string
	// enrolled holds the set_validators state, by contract and domain.
	enrolled map[string]map[uint32]enrolledValidators
}

var _ WasmClient = (*fakeWasm)(nil)

func newFakeWasm(chainID string) *fakeWasm {
	return &fakeWasm{chainID: chainID, enrolled: make(map[string]map[uint32]enrolledValidators)}
}

func decodeMsg(msg any) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeWasm) WasmInstantiate(_ context.Context, _ cli.Endpoint, sender string, codeID uint64, msg any, label string) (string, error) {
	m, err := decodeMsg(msg)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, wasmCall{Kind: "instantiate", Sender: sender, CodeID: codeID, Label: label, Msg: m})
	addr, err := devkeys.ToBech32(devkeys.InjectivePrefix, crypto.Keccak256([]byte(f.chainID+"/"+label)))
	if err != nil {
		return "", err
	}
	return addr, nil
}

func (f *fakeWasm) WasmExecute(_ context.Context, _ cli.Endpoint, sender string, contract string, msg any, funds cli.Coins) (*cli.TxResponse, error) {
	m, err := decodeMsg(msg)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	call := wasmCall{Kind: "execute", Sender: sender, Contract: contract, Msg: m, Funds: funds}
	f.calls = append(f.calls, call)
	if f.failOn != "" && call.Action() == f.failOn {
		return nil, &cli.TxError{Code: 5, RawLog: "out of gas"}
	}
	if raw, ok := m["set_validators"]; ok {
		var set struct {
			Domain     uint32   `json:"domain"`
			Threshold  uint8    `json:"threshold"`
			Validators []string `json:"validators"`
		}
		if err := json.Unmarshal(raw, &set); err != nil {
			return nil, err
		}
		if f.enrolled[contract] == nil {
			f.enrolled[contract] = make(map[uint32]enrolledValidators)
		}
		f.enrolled[contract][set.Domain] = enrolledValidators{Validators: set.Validators, Threshold: set.Threshold}
	}
	return &cli.TxResponse{TxHash: fmt.Sprintf("TX%d", len(f.calls)), Height: "1"}, nil
}

func (f *fakeWasm) WasmQuery(_ context.Context, _ cli.Endpoint, contract string, msg any, out any) error {
	var q struct {
		MultisigISM struct {
			EnrolledValidators struct {
				Domain uint32 `json:"domain"`
			} `json:"enrolled_validators"`
		} `json:"multisig_ism"`
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &q); err != nil {
		return err
	}
	f.mu.Lock()
	res := f.enrolled[contract][q.MultisigISM.EnrolledValidators.Domain]
	f.mu.Unlock()
	data, err = json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (f *fakeWasm) KeyAddress(_ context.Context, name string) (string, error) {
	return devkeys.ToBech32(devkeys.InjectivePrefix, crypto.Keccak256([]byte("key/" + name))[:20])
}

func (f *fakeWasm) executes() []wasmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []wasmCall
	for _, c := range f.calls {
		if c.Kind == "execute" {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeWasm) instantiates() []wasmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []wasmCall
	for _, c := range f.calls {
		if c.Kind == "instantiate" {
			out = append(out, c)
		}
	}
	return out
}

func testCodes() map[string]uint64 {
	codes := make(map[string]uint64, len(RequiredCodes))
	for i, name := range RequiredCodes {
		codes[name] = uint64(i + 1)
	}
	return codes
}

// deployedNetworks returns n fake networks with their contracts deployed.
func deployedNetworks(t *testing.T, n int) []*ChainNetwork {
	layout := ChainLayout{DomainBase: DefaultDomainBase, MetricsPortBase: DefaultMetricsPortBase}
	ports := PortLayout{Base: DefaultNodePortBase, Stride: DefaultNodePortStride}
	out := make([]*ChainNetwork, 0, n)
	for i := 0; i < n; i++ {
		domain := layout.Domain(i)
		client := newFakeWasm(CLIChainID(domain))
		p := ports.NodePorts(i)
		net := &ChainNetwork{
			Index:       i,
			Client:      client,
			Endpoint:    cli.Endpoint{RPC: fmt.Sprintf("http://127.0.0.1:%d", p.RPC), GRPC: fmt.Sprintf("127.0.0.1:%d", p.GRPC)},
			Ports:       p,
			ChainName:   ChainName(domain),
			ChainID:     CLIChainID(domain),
			Domain:      domain,
			Codes:       testCodes(),
			MetricsPort: layout.ValidatorMetricsPort(i),
		}
		d := &Deployer{
			Log:      testLogger(t),
			Client:   client,
			Endpoint: net.Endpoint,
			Sender:   "validator",
			Codes:    net.Codes,
			Domain:   domain,
		}
		dep, err := d.Deploy(context.Background())
		require.NoError(t, err)
		net.Deployments = dep
		out = append(out, net)
	}
	return out
}
