// Package cli drives the injective chain binary: node setup, and wasm transactions and queries.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/subproc"
)

const (
	KeyringBackend = "test"
	Denom          = "inj"

	DefaultGasPrice      = "700000000"
	DefaultGasAdjustment = "1.5"
)

var ErrTxNotFound = errors.New("tx not found")

// InjectiveCLI runs injectived against one node home directory.
type InjectiveCLI struct {
	log     log.Logger
	bin     string
	home    string
	chainID string

	// GasPrice is the fee price per gas unit, in Denom.
	GasPrice string
	// TxPollInterval and TxPollAttempts bound the wait for a broadcast tx to be included.
	TxPollInterval time.Duration
	TxPollAttempts int
}

func NewInjectiveCLI(logger log.Logger, bin string, home string, chainID string) *InjectiveCLI {
	return &InjectiveCLI{
		log:            logger.New("chain", chainID),
		bin:            bin,
		home:           home,
		chainID:        chainID,
		GasPrice:       DefaultGasPrice,
		TxPollInterval: time.Second,
		TxPollAttempts: 30,
	}
}

func (c *InjectiveCLI) Bin() string {
	return c.bin
}

func (c *InjectiveCLI) Home() string {
	return c.home
}

func (c *InjectiveCLI) ChainID() string {
	return c.chainID
}

func (c *InjectiveCLI) command(args ...string) subproc.Command {
	return subproc.Command{
		Path: c.bin,
		Args: append(slices.Clone(args), "--home", c.home),
	}
}

func (c *InjectiveCLI) run(ctx context.Context, args ...string) ([]byte, error) {
	return subproc.Run(ctx, c.log, "injectived", c.command(args...))
}

func (c *InjectiveCLI) runJSON(ctx context.Context, out any, args ...string) error {
	raw, err := c.run(ctx, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode output of %v: %w", args[:min(2, len(args))], err)
	}
	return nil
}

func (c *InjectiveCLI) txFlags(endpoint Endpoint, sender string) []string {
	return []string{
		"--from", sender,
		"--keyring-backend", KeyringBackend,
		"--chain-id", c.chainID,
		"--node", endpoint.RPC,
		"--gas", "auto",
		"--gas-adjustment", DefaultGasAdjustment,
		"--gas-prices", c.GasPrice + Denom,
		"--broadcast-mode", "sync",
		"--output", "json",
		"--yes",
	}
}

// broadcast submits a tx, and waits until it is included in a block.
func (c *InjectiveCLI) broadcast(ctx context.Context, endpoint Endpoint, sender string, args ...string) (*TxResponse, error) {
	var submitted TxResponse
	if err := c.runJSON(ctx, &submitted, append(args, c.txFlags(endpoint, sender)...)...); err != nil {
		return nil, err
	}
	if err := submitted.Check(); err != nil {
		return nil, err
	}
	c.log.Debug("Submitted tx", "tx", submitted.TxHash, "cmd", args[:min(3, len(args))])
	res, err := c.awaitTx(ctx, endpoint, submitted.TxHash)
	if err != nil {
		return nil, err
	}
	if err := res.Check(); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *InjectiveCLI) awaitTx(ctx context.Context, endpoint Endpoint, hash string) (*TxResponse, error) {
	var lastErr error
	for i := 0; i < c.TxPollAttempts; i++ {
		var res TxResponse
		err := c.runJSON(ctx, &res, "query", "tx", hash, "--node", endpoint.RPC, "--output", "json")
		if err == nil && res.TxHash != "" {
			return &res, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.TxPollInterval):
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrTxNotFound, hash, c.TxPollAttempts, lastErr)
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrTxNotFound, hash, c.TxPollAttempts)
}

// KeyAddress is the bech32 account address of a key in the node keyring.
func (c *InjectiveCLI) KeyAddress(ctx context.Context, name string) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	if err := c.runJSON(ctx, &out, "keys", "show", name, "--keyring-backend", KeyringBackend, "--output", "json"); err != nil {
		return "", err
	}
	if out.Address == "" {
		return "", fmt.Errorf("key %q has no address", name)
	}
	return out.Address, nil
}
