package sysgo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-chain-ops/devkeys"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-devstack/devtest"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/logpipe"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/subproc"
)

const (
	ValidatorBin = "validator"
	RelayerBin   = "relayer"

	checkpointSyncerLocal = "localStorage"
	gasPaymentNone        = `[{"type": "none"}]`
)

func tracingLevel(debug bool) string {
	if debug {
		return "debug"
	}
	return "info"
}

// hypEnv is an agent setting, the agents read them with the HYP_ prefix.
func hypEnv(key, value string) string {
	return "HYP_" + key + "=" + value
}

// ValidatorDirs are the per-validator state directories.
type ValidatorDirs struct {
	DB         string
	Checkpoint string
	Signature  string
}

func NewValidatorDirs(base string) ValidatorDirs {
	return ValidatorDirs{
		DB:         filepath.Join(base, "db"),
		Checkpoint: filepath.Join(base, "checkpoint"),
		Signature:  filepath.Join(base, "signature"),
	}
}

// ValidatorEnv is the environment of the validator of one chain.
func ValidatorEnv(cfg AgentConfig, configPath string, dirs ValidatorDirs, debug bool) []string {
	return []string{
		"CONFIG_FILES=" + configPath,
		"MY_VALIDATOR_SIGNATURE_DIRECTORY=" + dirs.Signature,
		"RUST_BACKTRACE=1",
		hypEnv("CHECKPOINTSYNCER_PATH", dirs.Checkpoint),
		hypEnv("CHECKPOINTSYNCER_TYPE", checkpointSyncerLocal),
		hypEnv("ORIGINCHAINNAME", cfg.Name),
		hypEnv("DB", dirs.DB),
		hypEnv("METRICSPORT", fmt.Sprint(cfg.MetricsPort)),
		hypEnv("VALIDATOR_SIGNER_TYPE", cfg.Signer.Type),
		hypEnv("VALIDATOR_KEY", cfg.Signer.Key),
		hypEnv("VALIDATOR_PREFIX", devkeys.InjectivePrefix),
		hypEnv("SIGNER_SIGNER_TYPE", SignerHexKey),
		hypEnv("SIGNER_KEY", cfg.Signer.Key),
		hypEnv("TRACING_LEVEL", tracingLevel(debug)),
	}
}

// RelayerEnv is the environment of the relayer. relayerKey signs the deliveries on every chain.
func RelayerEnv(configPath string, chains []string, dbDir string, metricsPort int, relayerKey string, debug bool) []string {
	env := []string{
		"CONFIG_FILES=" + configPath,
		"RUST_BACKTRACE=1",
		hypEnv("RELAYCHAINS", strings.Join(chains, ",")),
		hypEnv("DB", dbDir),
		hypEnv("ALLOWLOCALCHECKPOINTSYNCERS", "true"),
		hypEnv("TRACING_LEVEL", tracingLevel(debug)),
		hypEnv("GASPAYMENTENFORCEMENT", gasPaymentNone),
		hypEnv("METRICSPORT", fmt.Sprint(metricsPort)),
	}
	for _, chain := range chains {
		prefix := "CHAINS_" + strings.ToUpper(chain) + "_SIGNER_"
		env = append(env,
			hypEnv(prefix+"KEY", relayerKey),
			hypEnv(prefix+"TYPE", SignerCosmosKey),
			hypEnv(prefix+"PREFIX", devkeys.InjectivePrefix),
		)
	}
	return env
}

// AgentHandle is one running agent process.
type AgentHandle struct {
	Label   string
	Process *subproc.SubProcess
}

// AgentStack owns every agent of a run. Close stops all of them.
type AgentStack struct {
	mu         sync.Mutex
	Validators []*AgentHandle
	Relayer    *AgentHandle
	closed     bool
}

func (s *AgentStack) handles() []*AgentHandle {
	out := make([]*AgentHandle, 0, len(s.Validators)+1)
	out = append(out, s.Validators...)
	if s.Relayer != nil {
		out = append(out, s.Relayer)
	}
	return out
}

// Close interrupts every agent first, then waits for each to stop,
// and returns the combined errors. Closing twice is a no-op.
func (s *AgentStack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var result *multierror.Error
	handles := slices.DeleteFunc(s.handles(), func(h *AgentHandle) bool {
		return h == nil || h.Process == nil
	})
	for _, h := range handles {
		if err := h.Process.Terminate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("terminate %s: %w", h.Label, err))
		}
	}
	for _, h := range handles {
		if err := h.Process.Stop(); err != nil {
			result = multierror.Append(result, fmt.Errorf("stop %s: %w", h.Label, err))
		}
	}
	return result.ErrorOrNil()
}

// AgentLauncher starts agent processes within a scope.
type AgentLauncher struct {
	P devtest.P
	// Workspace is the working directory of the agents.
	Workspace    string
	ValidatorBin string
	RelayerBin   string
	Debug        bool
}

func (l *AgentLauncher) spawn(label, bin string, env []string) (*AgentHandle, error) {
	// relative paths would otherwise resolve against the workspace dir
	bin, err := filepath.Abs(bin)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(bin); err != nil {
		return nil, fmt.Errorf("agent binary %s: %w", label, err)
	}
	proc := subproc.NewLoggedSubProcess(l.P.Logger(), label, logpipe.ParseRustStructuredLogs)
	if err := proc.Start(subproc.Command{Path: bin, Dir: l.Workspace, Env: env}); err != nil {
		return nil, fmt.Errorf("start %s: %w", label, err)
	}
	return &AgentHandle{Label: label, Process: proc}, nil
}

// LaunchValidator starts the validator of one chain, with fresh state directories.
func (l *AgentLauncher) LaunchValidator(cfg AgentConfig, configPath string) (*AgentHandle, error) {
	base, err := l.P.TempDir("hl-validator-" + cfg.Name + "-")
	if err != nil {
		return nil, err
	}
	dirs := NewValidatorDirs(base)
	if err := os.MkdirAll(dirs.DB, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create validator db dir: %w", err)
	}
	l.P.Logger().Info("Launching validator", "chain", cfg.Name, "db", dirs.DB)
	return l.spawn("VAL-"+cfg.Name, l.ValidatorBin, ValidatorEnv(cfg, configPath, dirs, l.Debug))
}

// LaunchRelayer starts the relayer, relaying between all the given chains.
func (l *AgentLauncher) LaunchRelayer(configPath string, chains []string, metricsPort int, relayerKey string) (*AgentHandle, error) {
	db, err := l.P.TempDir("hl-relayer-")
	if err != nil {
		return nil, err
	}
	l.P.Logger().Info("Launching relayer", "chains", chains, "metricsPort", metricsPort)
	return l.spawn("RLY", l.RelayerBin, RelayerEnv(configPath, chains, db, metricsPort, relayerKey, l.Debug))
}

// LaunchAll starts one validator per chain and the relayer concurrently.
// The returned stack is registered for cleanup with the scope, also when launching fails.
func (l *AgentLauncher) LaunchAll(ctx context.Context, cfg *AgentConfigOut, configPath string, relayerMetricsPort int, relayerKey string) (*AgentStack, error) {
	names := cfg.ChainNames()
	stack := &AgentStack{Validators: make([]*AgentHandle, len(names))}
	l.P.Cleanup(func() {
		if err := stack.Close(); err != nil {
			l.P.Logger().Warn("Agents did not stop cleanly", "err", err)
		}
	})

	g, _ := errgroup.WithContext(ctx)
	for i, name := range names {
		chainCfg := cfg.Chains[name]
		g.Go(func() error {
			h, err := l.LaunchValidator(chainCfg, configPath)
			if err != nil {
				return err
			}
			stack.mu.Lock()
			stack.Validators[i] = h
			stack.mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		h, err := l.LaunchRelayer(configPath, names, relayerMetricsPort, relayerKey)
		if err != nil {
			return err
		}
		stack.mu.Lock()
		stack.Relayer = h
		stack.mu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		return stack, err
	}
	return stack, nil
}
