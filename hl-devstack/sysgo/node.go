package sysgo

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-chain-ops/devkeys"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-cosmos/cli"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-devstack/devtest"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/logpipe"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/subproc"
)

// WasmClient is the contract surface of a chain, as used by the deployer, linker and dispatcher.
type WasmClient interface {
	WasmInstantiate(ctx context.Context, endpoint cli.Endpoint, sender string, codeID uint64, msg any, label string) (string, error)
	WasmExecute(ctx context.Context, endpoint cli.Endpoint, sender string, contract string, msg any, funds cli.Coins) (*cli.TxResponse, error)
	WasmQuery(ctx context.Context, endpoint cli.Endpoint, contract string, msg any, out any) error
	KeyAddress(ctx context.Context, name string) (string, error)
}

var _ WasmClient = (*cli.InjectiveCLI)(nil)

// ChainNetwork is one running chain node with its contracts.
type ChainNetwork struct {
	Index     int
	Node      *subproc.SubProcess
	Client    WasmClient
	Endpoint  cli.Endpoint
	Ports     cli.NodePorts
	ChainName string
	ChainID   string
	Domain    uint32
	Home      string

	// Codes maps contract names to stored code ids.
	Codes map[string]uint64
	// Deployments is set once by Deploy, and read-only afterwards.
	Deployments *Deployments

	// MetricsPort is the metrics port of the validator of this chain.
	MetricsPort int
}

func (n *ChainNetwork) String() string {
	return fmt.Sprintf("%s(domain=%d)", n.ChainName, n.Domain)
}

// NodeConfig describes the node with the given index.
type NodeConfig struct {
	Index    int
	CLIPath  string
	Codes    map[string]string
	Keys     *devkeys.Keyring
	Ports    PortLayout
	Chains   ChainLayout
	AddrBase string
	Moniker  string
	Settle   time.Duration
}

// LaunchNode initializes a fresh node home, starts the node and stores every contract code on it.
// The node process is stopped when p is closed.
func LaunchNode(p devtest.P, cfg NodeConfig) (*ChainNetwork, error) {
	ctx := p.Ctx()
	domain := cfg.Chains.Domain(cfg.Index)
	chainName := ChainName(domain)
	logger := p.Logger().New("chain", chainName)

	home, err := p.TempDir("hl-node-" + chainName + "-")
	if err != nil {
		return nil, setupErr(PhaseNodeInit, err)
	}
	injective := cli.NewInjectiveCLI(logger, cfg.CLIPath, home, CLIChainID(domain))
	if err := injective.Init(ctx, cfg.Moniker, cfg.Keys); err != nil {
		return nil, setupErr(PhaseNodeInit, fmt.Errorf("node %s: %w", chainName, err))
	}

	ports := cfg.Ports.NodePorts(cfg.Index)
	cmd, endpoint := injective.StartCommand(cfg.AddrBase, ports)
	node := subproc.NewLoggedSubProcess(logger, "node-"+chainName, logpipe.ParseGoStructuredLogs)
	logger.Info("Starting node", "home", home, "rpc", endpoint.RPC, "grpc", endpoint.GRPC)
	if err := node.Start(cmd); err != nil {
		return nil, setupErr(PhaseNodeRun, fmt.Errorf("node %s: %w", chainName, err))
	}
	p.Cleanup(func() {
		logger.Info("Stopping node")
		if err := node.Stop(); err != nil {
			logger.Warn("Node did not stop cleanly", "err", err)
		}
	})

	if err := sleepCtx(ctx, cfg.Settle); err != nil {
		return nil, setupErr(PhaseNodeRun, err)
	}
	if !node.Running() {
		return nil, setupErr(PhaseNodeRun, fmt.Errorf("node %s exited during startup", chainName))
	}

	codeIDs, err := injective.StoreCodes(ctx, endpoint, cfg.Keys.Deployer, cfg.Codes)
	if err != nil {
		return nil, setupErr(PhaseStore, fmt.Errorf("node %s: %w", chainName, err))
	}
	logger.Info("Stored contract codes", "count", len(codeIDs))

	return &ChainNetwork{
		Index:       cfg.Index,
		Node:        node,
		Client:      injective,
		Endpoint:    endpoint,
		Ports:       ports,
		ChainName:   chainName,
		ChainID:     injective.ChainID(),
		Domain:      domain,
		Home:        home,
		Codes:       codeIDs,
		MetricsPort: cfg.Chains.ValidatorMetricsPort(cfg.Index),
	}, nil
}

// sleepCtx blocks for d, or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
