package sysgo

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

const (
	// MultisigThreshold is the number of validator signatures each multisig ISM requires.
	MultisigThreshold = 1

	DefaultTokenExchangeRate = "10000000000"
	DefaultGasPrice          = "1000000000"
)

type enrolledValidators struct {
	Validators []string `json:"validators"`
	Threshold  uint8    `json:"threshold"`
}

// Linker configures the contracts of one chain to accept messages from, and quote gas for, another.
type Linker struct {
	Log log.Logger
	// Sender is the key name of the linker.
	Sender string
	// Validator is the eth address of the checkpoint signer enrolled in the multisig ISMs.
	Validator common.Address
}

// validatorHex is the form the multisig ISM expects: lowercase hex, no 0x prefix.
func validatorHex(addr common.Address) string {
	return strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x"))
}

// Link configures from to accept messages of the to domain.
// Only one direction is configured, see LinkAll.
func (l *Linker) Link(ctx context.Context, from, to *ChainNetwork) error {
	if from.Deployments == nil {
		return fmt.Errorf("chain %s has no deployments", from)
	}
	logger := l.Log.New("from", from.ChainName, "to", to.ChainName)
	remote := to.Domain
	dep := from.Deployments
	val := validatorHex(l.Validator)

	calls := []struct {
		name     string
		contract string
		msg      any
	}{
		{"set_validators", dep.ISMMultisig, map[string]any{
			"set_validators": map[string]any{
				"domain":     remote,
				"threshold":  MultisigThreshold,
				"validators": []string{val},
			},
		}},
		{"set_ism", dep.ISMRouting, map[string]any{
			"set": map[string]any{
				"ism": ismSet{Domain: remote, Address: dep.ISMMultisig},
			},
		}},
		{"set_remote_gas_data_configs", dep.IGPOracle, map[string]any{
			"set_remote_gas_data_configs": map[string]any{
				"configs": []map[string]any{{
					"remote_domain":       remote,
					"token_exchange_rate": DefaultTokenExchangeRate,
					"gas_price":           DefaultGasPrice,
				}},
			},
		}},
		{"set_routes", dep.IGP, map[string]any{
			"router": map[string]any{
				"set_routes": map[string]any{
					"set": []map[string]any{{"domain": remote, "route": dep.IGPOracle}},
				},
			},
		}},
	}
	for _, call := range calls {
		if _, err := from.Client.WasmExecute(ctx, from.Endpoint, l.Sender, call.contract, call.msg, nil); err != nil {
			return fmt.Errorf("link %s -> %s, %s: %w", from.ChainName, to.ChainName, call.name, err)
		}
		logger.Debug("Executed link call", "call", call.name, "contract", call.contract)
	}

	var enrolled enrolledValidators
	query := map[string]any{"multisig_ism": map[string]any{"enrolled_validators": map[string]any{"domain": remote}}}
	if err := from.Client.WasmQuery(ctx, from.Endpoint, dep.ISMMultisig, query, &enrolled); err != nil {
		return fmt.Errorf("link %s -> %s, query validators: %w", from.ChainName, to.ChainName, err)
	}
	if enrolled.Threshold != MultisigThreshold || !slices.Contains(enrolled.Validators, val) {
		return fmt.Errorf("link %s -> %s: validator %s not enrolled (got %v, threshold %d)",
			from.ChainName, to.ChainName, val, enrolled.Validators, enrolled.Threshold)
	}
	logger.Info("Linked chains", "validator", l.Validator)
	return nil
}

// LinkAll links every unordered pair of networks in both directions.
func (l *Linker) LinkAll(ctx context.Context, networks []*ChainNetwork) error {
	for i, a := range networks {
		for _, b := range networks[:i] {
			if err := l.Link(ctx, a, b); err != nil {
				return err
			}
			if err := l.Link(ctx, b, a); err != nil {
				return err
			}
		}
	}
	return nil
}
