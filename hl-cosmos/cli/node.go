package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-chain-ops/devkeys"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/subproc"
)

const (
	// GenesisBalance funds every keyring account at genesis.
	GenesisBalance = "10000000000000000000000000" + Denom
	// SelfDelegation is the stake of the genesis validator.
	SelfDelegation = "1000000000000000000000" + Denom

	MinimumGasPrice = "500000000" + Denom
	BlockTime       = "1s"
)

// Init creates the node home: genesis, keyring and a funded genesis validator.
// Every key of the keyring is recovered into the node keyring and funded,
// the deployer key becomes the genesis validator.
func (c *InjectiveCLI) Init(ctx context.Context, moniker string, keys *devkeys.Keyring) error {
	if _, err := c.run(ctx, "init", moniker, "--chain-id", c.chainID); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := c.patchGenesisDenom(); err != nil {
		return err
	}
	for _, key := range keys.Keys {
		cmd := c.command("keys", "add", key.Name, "--recover", "--keyring-backend", KeyringBackend)
		cmd.Stdin = strings.NewReader(key.Mnemonic + "\n")
		if _, err := subproc.Run(ctx, c.log, "injectived", cmd); err != nil {
			return fmt.Errorf("failed to recover key %q: %w", key.Name, err)
		}
		if _, err := c.run(ctx, "genesis", "add-genesis-account", key.Name, GenesisBalance, "--keyring-backend", KeyringBackend); err != nil {
			return fmt.Errorf("failed to fund genesis account %q: %w", key.Name, err)
		}
	}
	if _, err := c.run(ctx, "genesis", "gentx", keys.Deployer, SelfDelegation,
		"--chain-id", c.chainID, "--keyring-backend", KeyringBackend); err != nil {
		return fmt.Errorf("gentx: %w", err)
	}
	if _, err := c.run(ctx, "genesis", "collect-gentxs"); err != nil {
		return fmt.Errorf("collect-gentxs: %w", err)
	}
	if err := c.patchConfig("config.toml", func(cfg map[string]any) {
		section(cfg, "consensus")["timeout_commit"] = BlockTime
	}); err != nil {
		return err
	}
	return c.patchConfig("app.toml", func(cfg map[string]any) {
		cfg["minimum-gas-prices"] = MinimumGasPrice
		section(cfg, "api")["enable"] = true
	})
}

// patchGenesisDenom makes inj the staking, mint and fee denom of the genesis file.
func (c *InjectiveCLI) patchGenesisDenom() error {
	path := filepath.Join(c.home, "config", "genesis.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read genesis: %w", err)
	}
	data = bytes.ReplaceAll(data, []byte(`"stake"`), []byte(`"`+Denom+`"`))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write genesis: %w", err)
	}
	return nil
}

func (c *InjectiveCLI) patchConfig(name string, patch func(cfg map[string]any)) error {
	path := filepath.Join(c.home, "config", name)
	cfg := make(map[string]any)
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	patch(cfg)
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func section(cfg map[string]any, name string) map[string]any {
	if s, ok := cfg[name].(map[string]any); ok {
		return s
	}
	s := make(map[string]any)
	cfg[name] = s
	return s
}

// StartCommand is the long-running node process, bound to the given ports on addrBase
// (e.g. tcp://0.0.0.0). It logs zerolog JSON.
func (c *InjectiveCLI) StartCommand(addrBase string, ports NodePorts) (subproc.Command, Endpoint) {
	host := strings.TrimPrefix(addrBase, "tcp://")
	cmd := c.command(
		"start",
		"--rpc.laddr", fmt.Sprintf("%s:%d", addrBase, ports.RPC),
		"--p2p.laddr", fmt.Sprintf("%s:%d", addrBase, ports.P2P),
		"--grpc.address", fmt.Sprintf("%s:%d", host, ports.GRPC),
		"--api.address", fmt.Sprintf("%s:%d", addrBase, ports.REST),
		"--rpc.pprof_laddr", fmt.Sprintf("localhost:%d", ports.PProf),
		"--log_format", "json",
	)
	endpoint := Endpoint{
		RPC:  fmt.Sprintf("http://127.0.0.1:%d", ports.RPC),
		GRPC: fmt.Sprintf("127.0.0.1:%d", ports.GRPC),
	}
	return cmd, endpoint
}
