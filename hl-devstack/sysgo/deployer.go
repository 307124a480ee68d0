package sysgo

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-chain-ops/devkeys"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-cosmos/cli"
)

// Contract code names, as found in the cw-hyperlane release artifacts.
const (
	CodeMailbox           = "hpl_mailbox"
	CodeHookMerkle        = "hpl_hook_merkle"
	CodeIGP               = "hpl_igp"
	CodeIGPOracle         = "hpl_igp_oracle"
	CodeHookAggregate     = "hpl_hook_aggregate"
	CodeISMMultisig       = "hpl_ism_multisig"
	CodeISMRouting        = "hpl_ism_routing"
	CodeValidatorAnnounce = "hpl_validator_announce"
	CodeTestMockHook      = "hpl_test_mock_hook"
	CodeTestMockReceiver  = "hpl_test_mock_msg_receiver"
)

// RequiredCodes are the contract codes Deploy instantiates.
var RequiredCodes = []string{
	CodeMailbox,
	CodeHookMerkle,
	CodeIGP,
	CodeIGPOracle,
	CodeHookAggregate,
	CodeISMMultisig,
	CodeISMRouting,
	CodeValidatorAnnounce,
	CodeTestMockHook,
	CodeTestMockReceiver,
}

const (
	// DefaultGasUsage is the gas the IGP quotes when no override is given.
	DefaultGasUsage = 25000
)

// Deployments are the bech32 addresses of the contracts deployed on one chain.
type Deployments struct {
	Mailbox           string `json:"mailbox"`
	HookMerkle        string `json:"hook_merkle"`
	IGP               string `json:"igp"`
	IGPOracle         string `json:"igp_oracle"`
	HookAggregate     string `json:"hook_aggregate"`
	ISMMultisig       string `json:"ism_multisig"`
	ISMRouting        string `json:"ism_routing"`
	ValidatorAnnounce string `json:"va"`
	MockHook          string `json:"mock_hook"`
	MockReceiver      string `json:"mock_receiver"`
}

type mailboxInit struct {
	HRP    string `json:"hrp"`
	Owner  string `json:"owner"`
	Domain uint32 `json:"domain"`
}

type hookMerkleInit struct {
	Mailbox string `json:"mailbox"`
}

type igpInit struct {
	HRP             string `json:"hrp"`
	Owner           string `json:"owner"`
	GasToken        string `json:"gas_token"`
	Beneficiary     string `json:"beneficiary"`
	DefaultGasUsage uint64 `json:"default_gas_usage"`
}

type ownerInit struct {
	Owner string `json:"owner"`
}

type hookAggregateInit struct {
	Owner string   `json:"owner"`
	Hooks []string `json:"hooks"`
}

type ismSet struct {
	Domain  uint32 `json:"domain"`
	Address string `json:"address"`
}

type ismRoutingInit struct {
	Owner string   `json:"owner"`
	ISMs  []ismSet `json:"isms"`
}

type validatorAnnounceInit struct {
	HRP     string `json:"hrp"`
	Mailbox string `json:"mailbox"`
}

type hrpInit struct {
	HRP string `json:"hrp"`
}

// Deployer instantiates the contract suite on one chain.
type Deployer struct {
	Log      log.Logger
	Client   WasmClient
	Endpoint cli.Endpoint
	// Sender is the key name of the deployer, also owner and admin of every contract.
	Sender string
	Codes  map[string]uint64
	Domain uint32
}

func (d *Deployer) instantiate(ctx context.Context, code string, msg any) (string, error) {
	id, ok := d.Codes[code]
	if !ok {
		return "", fmt.Errorf("no stored code for %s", code)
	}
	addr, err := d.Client.WasmInstantiate(ctx, d.Endpoint, d.Sender, id, msg, code)
	if err != nil {
		return "", fmt.Errorf("failed to instantiate %s: %w", code, err)
	}
	d.Log.Info("Instantiated contract", "code", code, "codeID", id, "address", addr)
	return addr, nil
}

func (d *Deployer) execute(ctx context.Context, contract string, msg any) error {
	if _, err := d.Client.WasmExecute(ctx, d.Endpoint, d.Sender, contract, msg, nil); err != nil {
		return fmt.Errorf("failed to execute on %s: %w", contract, err)
	}
	return nil
}

// Deploy instantiates every contract in dependency order and wires the mailbox defaults.
// It is not idempotent: every call deploys a fresh suite.
func (d *Deployer) Deploy(ctx context.Context) (*Deployments, error) {
	for _, code := range RequiredCodes {
		if _, ok := d.Codes[code]; !ok {
			return nil, fmt.Errorf("missing contract code %s", code)
		}
	}
	owner, err := d.Client.KeyAddress(ctx, d.Sender)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve deployer address: %w", err)
	}
	hrp := devkeys.InjectivePrefix

	var out Deployments
	steps := []struct {
		code string
		dest *string
		msg  func() any
	}{
		{CodeMailbox, &out.Mailbox, func() any {
			return mailboxInit{HRP: hrp, Owner: owner, Domain: d.Domain}
		}},
		{CodeHookMerkle, &out.HookMerkle, func() any {
			return hookMerkleInit{Mailbox: out.Mailbox}
		}},
		{CodeIGP, &out.IGP, func() any {
			return igpInit{HRP: hrp, Owner: owner, GasToken: cli.Denom, Beneficiary: owner, DefaultGasUsage: DefaultGasUsage}
		}},
		{CodeIGPOracle, &out.IGPOracle, func() any {
			return ownerInit{Owner: owner}
		}},
		{CodeHookAggregate, &out.HookAggregate, func() any {
			return hookAggregateInit{Owner: owner, Hooks: []string{out.HookMerkle, out.IGP}}
		}},
		{CodeISMMultisig, &out.ISMMultisig, func() any {
			return ownerInit{Owner: owner}
		}},
		{CodeISMRouting, &out.ISMRouting, func() any {
			return ismRoutingInit{Owner: owner, ISMs: []ismSet{{Domain: d.Domain, Address: out.ISMMultisig}}}
		}},
		{CodeValidatorAnnounce, &out.ValidatorAnnounce, func() any {
			return validatorAnnounceInit{HRP: hrp, Mailbox: out.Mailbox}
		}},
		{CodeTestMockHook, &out.MockHook, func() any {
			return struct{}{}
		}},
		{CodeTestMockReceiver, &out.MockReceiver, func() any {
			return hrpInit{HRP: hrp}
		}},
	}
	for _, step := range steps {
		addr, err := d.instantiate(ctx, step.code, step.msg())
		if err != nil {
			return nil, err
		}
		*step.dest = addr
	}

	mailboxSetup := []map[string]any{
		{"set_default_ism": map[string]any{"ism": out.ISMRouting}},
		{"set_default_hook": map[string]any{"hook": out.MockHook}},
		{"set_required_hook": map[string]any{"hook": out.HookAggregate}},
	}
	for _, msg := range mailboxSetup {
		if err := d.execute(ctx, out.Mailbox, msg); err != nil {
			return nil, err
		}
	}
	return &out, nil
}
