package localnet

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-chain-ops/devkeys"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-devstack/sysgo"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-localnet/flags"
	hllog "github.com/hyperlane-xyz/hyperlane-localnet/hl-service/log"
)

type MetricsConfig struct {
	Enabled    bool
	ListenAddr string
	ListenPort int
}

func (m MetricsConfig) Check() error {
	if !m.Enabled {
		return nil
	}
	if m.ListenPort < 0 || m.ListenPort > 65535 {
		return errors.New("invalid metrics port")
	}
	return nil
}

type CLIConfig struct {
	NodeCount            int
	NodePortBase         int
	NodePortStride       int
	AgentMetricsPortBase int
	DomainBase           uint32

	KeyringPath string
	DevKeys     bool
	CLIPath     string
	CodesPath   string
	InstallDir  string

	RustWorkspace string
	AgentBinDir   string
	Cargo         string
	SkipBuild     bool
	AgentDebug    bool

	NodeSettle   time.Duration
	AgentSettle  time.Duration
	Timeout      time.Duration
	PollInterval time.Duration

	LogConfig     hllog.CLIConfig
	MetricsConfig MetricsConfig
}

func (c *CLIConfig) Check() error {
	if err := c.LogConfig.Check(); err != nil {
		return err
	}
	if err := c.MetricsConfig.Check(); err != nil {
		return err
	}
	if c.NodeCount < sysgo.MinNodeCount {
		return fmt.Errorf("need at least %d nodes, got %d", sysgo.MinNodeCount, c.NodeCount)
	}
	if c.KeyringPath == "" && !c.DevKeys {
		return fmt.Errorf("no keyring configured, set --%s or --%s", flags.KeyringFlag.Name, flags.DevKeysFlag.Name)
	}
	if c.KeyringPath != "" && c.DevKeys {
		return fmt.Errorf("--%s and --%s are mutually exclusive", flags.KeyringFlag.Name, flags.DevKeysFlag.Name)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

func NewConfig(ctx *cli.Context) *CLIConfig {
	return &CLIConfig{
		NodeCount:            ctx.Int(flags.NodeCountFlag.Name),
		NodePortBase:         ctx.Int(flags.NodePortBaseFlag.Name),
		NodePortStride:       ctx.Int(flags.NodePortStrideFlag.Name),
		AgentMetricsPortBase: ctx.Int(flags.AgentMetricsPortBaseFlag.Name),
		DomainBase:           uint32(ctx.Uint(flags.DomainBaseFlag.Name)),

		KeyringPath: ctx.Path(flags.KeyringFlag.Name),
		DevKeys:     ctx.Bool(flags.DevKeysFlag.Name),
		CLIPath:     ctx.Path(flags.CLIPathFlag.Name),
		CodesPath:   ctx.Path(flags.CodesPathFlag.Name),
		InstallDir:  ctx.Path(flags.InstallDirFlag.Name),

		RustWorkspace: ctx.Path(flags.RustWorkspaceFlag.Name),
		AgentBinDir:   ctx.String(flags.AgentBinDirFlag.Name),
		Cargo:         ctx.String(flags.CargoFlag.Name),
		SkipBuild:     ctx.Bool(flags.SkipBuildFlag.Name),
		AgentDebug:    ctx.Bool(flags.AgentDebugFlag.Name),

		NodeSettle:   ctx.Duration(flags.NodeSettleFlag.Name),
		AgentSettle:  ctx.Duration(flags.AgentSettleFlag.Name),
		Timeout:      ctx.Duration(flags.TimeoutFlag.Name),
		PollInterval: ctx.Duration(flags.PollIntervalFlag.Name),

		LogConfig: hllog.ReadCLIConfig(ctx),
		MetricsConfig: MetricsConfig{
			Enabled:    ctx.Bool(flags.MetricsEnabledFlag.Name),
			ListenAddr: ctx.String(flags.MetricsAddrFlag.Name),
			ListenPort: ctx.Int(flags.MetricsPortFlag.Name),
		},
	}
}

// LoadKeys reads the keyring file, or returns the dev keys when they were asked for.
func (c *CLIConfig) LoadKeys() (*devkeys.Keyring, error) {
	switch {
	case c.KeyringPath != "":
		return devkeys.LoadKeyring(c.KeyringPath)
	case c.DevKeys:
		return devkeys.TestKeyring(), nil
	default:
		return nil, errors.New("no keyring configured")
	}
}

// SysConfig is the run configuration derived from the CLI options.
func (c *CLIConfig) SysConfig() (sysgo.Config, error) {
	keys, err := c.LoadKeys()
	if err != nil {
		return sysgo.Config{}, err
	}
	cfg := sysgo.DefaultConfig()
	cfg.NodeCount = c.NodeCount
	cfg.Ports = sysgo.PortLayout{Base: c.NodePortBase, Stride: c.NodePortStride}
	cfg.Chains = sysgo.ChainLayout{DomainBase: c.DomainBase, MetricsPortBase: c.AgentMetricsPortBase}
	cfg.Keys = keys
	if c.CLIPath != "" {
		cfg.CLISource.LocalPath = c.CLIPath
	}
	if c.CodesPath != "" {
		cfg.CodeSource.LocalPath = c.CodesPath
	}
	cfg.InstallDir = c.InstallDir
	cfg.RustWorkspace = c.RustWorkspace
	cfg.AgentBinDir = c.AgentBinDir
	cfg.Cargo = c.Cargo
	cfg.SkipBuild = c.SkipBuild
	cfg.Debug = c.AgentDebug
	cfg.NodeSettle = c.NodeSettle
	cfg.AgentSettle = c.AgentSettle
	cfg.Timeout = c.Timeout
	cfg.PollInterval = c.PollInterval
	if err := cfg.Check(); err != nil {
		return sysgo.Config{}, err
	}
	return cfg, nil
}
