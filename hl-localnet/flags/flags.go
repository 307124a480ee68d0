package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	hlservice "github.com/hyperlane-xyz/hyperlane-localnet/hl-service"
	hllog "github.com/hyperlane-xyz/hyperlane-localnet/hl-service/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-cosmos/install"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-devstack/sysgo"
)

const EnvVarPrefix = "HL_LOCALNET"

func prefixEnvVars(name string) []string {
	return hlservice.PrefixEnvVar(EnvVarPrefix, name)
}

var (
	NodeCountFlag = &cli.IntFlag{
		Name:    "nodes",
		Usage:   "Number of chains to run",
		Value:   sysgo.DefaultNodeCount,
		EnvVars: prefixEnvVars("NODES"),
	}
	NodePortBaseFlag = &cli.IntFlag{
		Name:    "node-port-base",
		Usage:   "First port of the first node, every node takes the next stride of ports",
		Value:   sysgo.DefaultNodePortBase,
		EnvVars: prefixEnvVars("NODE_PORT_BASE"),
	}
	NodePortStrideFlag = &cli.IntFlag{
		Name:    "node-port-stride",
		Usage:   "Port distance between nodes",
		Value:   sysgo.DefaultNodePortStride,
		EnvVars: prefixEnvVars("NODE_PORT_STRIDE"),
	}
	AgentMetricsPortBaseFlag = &cli.IntFlag{
		Name:    "agent-metrics-port-base",
		Usage:   "Metrics port of the first validator, the relayer follows the validators",
		Value:   sysgo.DefaultMetricsPortBase,
		EnvVars: prefixEnvVars("AGENT_METRICS_PORT_BASE"),
	}
	DomainBaseFlag = &cli.UintFlag{
		Name:    "domain-base",
		Usage:   "Hyperlane domain of the first chain",
		Value:   sysgo.DefaultDomainBase,
		EnvVars: prefixEnvVars("DOMAIN_BASE"),
	}
	KeyringFlag = &cli.PathFlag{
		Name:    "keyring",
		Usage:   "TOML or YAML file with the named keys and roles",
		EnvVars: prefixEnvVars("KEYRING"),
	}
	DevKeysFlag = &cli.BoolFlag{
		Name:    "dev-keys",
		Usage:   "Use the public sample keyring instead of a keyring file. Throwaway local chains only",
		EnvVars: prefixEnvVars("DEV_KEYS"),
	}
	CLIPathFlag = &cli.PathFlag{
		Name:    "injective-cli",
		Usage:   "Local injectived binary or directory, instead of the release download",
		EnvVars: []string{install.EnvCLIPath},
	}
	CodesPathFlag = &cli.PathFlag{
		Name:    "cw-hyperlane",
		Usage:   "Local directory with the cw-hyperlane wasm artifacts, instead of the release download",
		EnvVars: []string{install.EnvCWHyperlanePath},
	}
	InstallDirFlag = &cli.PathFlag{
		Name:    "install-dir",
		Usage:   "Directory for release downloads. A temp dir if empty",
		EnvVars: prefixEnvVars("INSTALL_DIR"),
	}
	RustWorkspaceFlag = &cli.PathFlag{
		Name:    "rust-workspace",
		Usage:   "Rust workspace the agents are built and run in",
		Value:   ".",
		EnvVars: prefixEnvVars("RUST_WORKSPACE"),
	}
	AgentBinDirFlag = &cli.StringFlag{
		Name:    "agent-bin-dir",
		Usage:   "Directory of the relayer and validator binaries, relative to the rust workspace",
		Value:   sysgo.DefaultAgentBinDir,
		EnvVars: prefixEnvVars("AGENT_BIN_DIR"),
	}
	CargoFlag = &cli.StringFlag{
		Name:    "cargo",
		Usage:   "Cargo binary",
		Value:   "cargo",
		EnvVars: prefixEnvVars("CARGO"),
	}
	SkipBuildFlag = &cli.BoolFlag{
		Name:    "skip-build",
		Usage:   "Use the agent binaries as they are",
		EnvVars: prefixEnvVars("SKIP_BUILD"),
	}
	NodeSettleFlag = &cli.DurationFlag{
		Name:    "node-settle",
		Usage:   "Time given to a node to start before it is used",
		Value:   sysgo.DefaultNodeSettle,
		EnvVars: prefixEnvVars("NODE_SETTLE"),
	}
	AgentSettleFlag = &cli.DurationFlag{
		Name:    "agent-settle",
		Usage:   "Time given to the agents to start before messages are dispatched",
		Value:   sysgo.DefaultAgentSettle,
		EnvVars: prefixEnvVars("AGENT_SETTLE"),
	}
	TimeoutFlag = &cli.DurationFlag{
		Name:    "timeout",
		Usage:   "Deadline for all dispatched messages to be delivered",
		Value:   sysgo.DefaultTimeout,
		EnvVars: prefixEnvVars("TIMEOUT"),
	}
	PollIntervalFlag = &cli.DurationFlag{
		Name:    "poll-interval",
		Usage:   "How often the relayer metrics are checked",
		Value:   sysgo.DefaultPollInterval,
		EnvVars: prefixEnvVars("POLL_INTERVAL"),
	}
	AgentDebugFlag = &cli.BoolFlag{
		Name:    "agent-debug",
		Usage:   "Run the agents with debug tracing",
		Value:   true,
		EnvVars: prefixEnvVars("AGENT_DEBUG"),
	}
	MetricsEnabledFlag = &cli.BoolFlag{
		Name:    "metrics.enabled",
		Usage:   "Enable the metrics server of the orchestrator",
		EnvVars: prefixEnvVars("METRICS_ENABLED"),
	}
	MetricsAddrFlag = &cli.StringFlag{
		Name:    "metrics.addr",
		Usage:   "Metrics listening address",
		Value:   "0.0.0.0",
		EnvVars: prefixEnvVars("METRICS_ADDR"),
	}
	MetricsPortFlag = &cli.IntFlag{
		Name:    "metrics.port",
		Usage:   "Metrics listening port",
		Value:   7300,
		EnvVars: prefixEnvVars("METRICS_PORT"),
	}
)

var optionalFlags = []cli.Flag{
	NodeCountFlag,
	NodePortBaseFlag,
	NodePortStrideFlag,
	AgentMetricsPortBaseFlag,
	DomainBaseFlag,
	KeyringFlag,
	DevKeysFlag,
	CLIPathFlag,
	CodesPathFlag,
	InstallDirFlag,
	RustWorkspaceFlag,
	AgentBinDirFlag,
	CargoFlag,
	SkipBuildFlag,
	NodeSettleFlag,
	AgentSettleFlag,
	TimeoutFlag,
	PollIntervalFlag,
	AgentDebugFlag,
	MetricsEnabledFlag,
	MetricsAddrFlag,
	MetricsPortFlag,
}

func init() {
	Flags = append(Flags, optionalFlags...)
	Flags = append(Flags, hllog.CLIFlags(EnvVarPrefix)...)
}

// Flags contains the list of configuration options available to the binary.
var Flags []cli.Flag

// CheckFlagNames reports duplicate flag names.
func CheckFlagNames() error {
	seen := make(map[string]struct{})
	for _, f := range Flags {
		for _, name := range f.Names() {
			if _, ok := seen[name]; ok {
				return fmt.Errorf("duplicate flag %q", name)
			}
			seen[name] = struct{}{}
		}
	}
	return nil
}
