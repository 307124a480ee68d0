package sysgo

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-chain-ops/devkeys"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-cosmos/install"
)

const (
	// MinNodeCount is the smallest network that dispatches any message.
	MinNodeCount        = 2
	DefaultNodeCount    = 2
	DefaultMoniker      = "localnet"
	DefaultAddrBase     = "tcp://0.0.0.0"
	DefaultNodeSettle   = 10 * time.Second
	DefaultAgentSettle  = 10 * time.Second
	DefaultTimeout      = 600 * time.Second
	DefaultPollInterval = 5 * time.Second

	// DefaultAgentBinDir is relative to the rust workspace.
	DefaultAgentBinDir = "target/debug"
)

// Config is the full description of one local network run.
type Config struct {
	NodeCount int
	Ports     PortLayout
	Chains    ChainLayout
	AddrBase  string
	Moniker   string

	Keys *devkeys.Keyring

	CLISource  install.CLISource
	CodeSource install.CodeSource
	// InstallDir receives downloaded releases. A scoped temp dir if empty.
	InstallDir string

	// RustWorkspace is the working directory of cargo and of the agents.
	RustWorkspace string
	// AgentBinDir holds the relayer and validator binaries, relative to RustWorkspace unless absolute.
	AgentBinDir string
	// Cargo is the cargo binary, looked up in PATH unless it is a path.
	Cargo     string
	SkipBuild bool

	NodeSettle   time.Duration
	AgentSettle  time.Duration
	Timeout      time.Duration
	PollInterval time.Duration

	// Debug raises the agents tracing level.
	Debug bool
}

func DefaultConfig() Config {
	// unsupported platforms are left without a target, Check reports them
	target, _ := install.Target(runtime.GOOS, runtime.GOARCH)
	return Config{
		NodeCount: DefaultNodeCount,
		Ports:     PortLayout{Base: DefaultNodePortBase, Stride: DefaultNodePortStride},
		Chains:    ChainLayout{DomainBase: DefaultDomainBase, MetricsPortBase: DefaultMetricsPortBase},
		AddrBase:  DefaultAddrBase,
		Moniker:   DefaultMoniker,

		CLISource:  install.DefaultCLISource(target),
		CodeSource: install.DefaultCodeSource(),

		RustWorkspace: ".",
		AgentBinDir:   DefaultAgentBinDir,
		Cargo:         "cargo",

		NodeSettle:   DefaultNodeSettle,
		AgentSettle:  DefaultAgentSettle,
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		Debug:        true,
	}
}

func (c *Config) Check() error {
	if c.NodeCount < MinNodeCount {
		return fmt.Errorf("need at least %d nodes, got %d", MinNodeCount, c.NodeCount)
	}
	if err := c.Ports.Check(); err != nil {
		return err
	}
	if c.Keys == nil {
		return errors.New("no keyring configured")
	}
	if err := c.Keys.Check(); err != nil {
		return fmt.Errorf("invalid keyring: %w", err)
	}
	if err := c.CLISource.Check(); err != nil {
		return err
	}
	if err := c.CodeSource.Check(); err != nil {
		return err
	}
	if c.Timeout <= 0 || c.PollInterval <= 0 {
		return errors.New("timeout and poll interval must be positive")
	}
	if c.NodeSettle < 0 || c.AgentSettle < 0 {
		return errors.New("settle durations must not be negative")
	}
	// metrics ports must not collide with node ports
	nodeLow := c.Ports.Base
	nodeHigh := c.Ports.NodePorts(c.NodeCount - 1).PProf
	metricsLow := c.Chains.MetricsPortBase
	metricsHigh := c.Chains.RelayerMetricsPort(c.NodeCount)
	if metricsLow <= nodeHigh && nodeLow <= metricsHigh {
		return fmt.Errorf("metrics ports %d-%d overlap node ports %d-%d", metricsLow, metricsHigh, nodeLow, nodeHigh)
	}
	return nil
}

// AgentBin is the path of an agent binary.
func (c *Config) AgentBin(name string) string {
	if filepath.IsAbs(c.AgentBinDir) {
		return filepath.Join(c.AgentBinDir, name)
	}
	return filepath.Join(c.RustWorkspace, c.AgentBinDir, name)
}
