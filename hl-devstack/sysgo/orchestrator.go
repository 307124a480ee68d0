package sysgo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-cosmos/install"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-devstack/devtest"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/httputil"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/ioutil"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/tasks"
)

const downloadTimeout = 10 * time.Minute

// NetworkSummary describes one chain of a finished run.
type NetworkSummary struct {
	ChainName   string
	Domain      uint32
	RPC         string
	GRPC        string
	MetricsPort int
	Mailbox     string
}

// Result is the outcome of a run.
type Result struct {
	RunID            uuid.UUID
	Status           Status
	ExpectedMessages uint64
	Observation      Observation
	Networks         []NetworkSummary
	Duration         time.Duration
}

// Orchestrator runs the local network end to end.
type Orchestrator struct {
	Log     log.Logger
	Config  Config
	Metrics Metrics
	// Fs is used for downloads and the agent config. The OS filesystem if nil.
	Fs         afero.Fs
	Progressor ioutil.Progressor
}

func (o *Orchestrator) metrics() Metrics {
	if o.Metrics == nil {
		return noopMetrics{}
	}
	return o.Metrics
}

func (o *Orchestrator) fs() afero.Fs {
	if o.Fs == nil {
		return afero.NewOsFs()
	}
	return o.Fs
}

// phase runs fn, records its duration and tags its error with the phase.
func (o *Orchestrator) phase(phase Phase, fn func() error) error {
	start := time.Now()
	err := fn()
	o.metrics().RecordPhase(phase, time.Since(start))
	return setupErr(phase, err)
}

// Run stands up the networks and agents, dispatches the test traffic and waits for delivery.
// Every process and temp dir is released before Run returns.
// A timeout returns the result together with ErrTerminationTimeout.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	cfg := o.Config
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	started := time.Now()
	res := &Result{RunID: uuid.New(), Status: StatusWaiting}
	logger := o.Log.New("run", res.RunID)

	p := devtest.NewP(ctx, logger, "localnet")
	defer p.Close()
	defer func() {
		res.Duration = time.Since(started)
		o.metrics().RecordOutcome(res.Status, res.Duration)
	}()

	err := o.run(p, res)
	if err != nil && !errors.Is(err, ErrTerminationTimeout) {
		logger.Error("Run failed", "err", err)
	}
	return res, err
}

func (o *Orchestrator) run(p devtest.P, res *Result) error {
	cfg := o.Config
	ctx := p.Ctx()
	logger := p.Logger()
	keys := cfg.Keys

	var build *tasks.Task[struct{}]
	if !cfg.SkipBuild {
		build = tasks.Go(ctx, "build-agents", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, BuildAgents(ctx, logger, cfg.Cargo, cfg.RustWorkspace)
		})
		defer build.Cancel()
	}

	var (
		cliPath string
		codes   map[string]string
	)
	err := o.phase(PhaseInstall, func() error {
		dir := cfg.InstallDir
		if dir == "" {
			var err error
			if dir, err = p.TempDir("hl-install-"); err != nil {
				return err
			}
		}
		progressor := o.Progressor
		if progressor == nil {
			progressor = ioutil.NoopProgressor()
		}
		installer := &install.Installer{
			Log:        logger,
			Fs:         o.fs(),
			Downloader: httputil.NewDownloader(downloadTimeout, progressor),
		}
		var err error
		if cliPath, err = installer.InstallCLI(ctx, cfg.CLISource, filepath.Join(dir, "cli")); err != nil {
			return err
		}
		codes, err = installer.InstallCodes(ctx, cfg.CodeSource, filepath.Join(dir, "codes"))
		return err
	})
	if err != nil {
		return err
	}

	if build != nil {
		if err := o.phase(PhaseBuild, func() error {
			_, err := build.Await(ctx)
			return err
		}); err != nil {
			return err
		}
	}

	// nodes start one after the other
	networks := make([]*ChainNetwork, 0, cfg.NodeCount)
	for i := 0; i < cfg.NodeCount; i++ {
		var n *ChainNetwork
		err := o.phase(PhaseNodeRun, func() error {
			var err error
			n, err = LaunchNode(p, NodeConfig{
				Index:    i,
				CLIPath:  cliPath,
				Codes:    codes,
				Keys:     keys,
				Ports:    cfg.Ports,
				Chains:   cfg.Chains,
				AddrBase: cfg.AddrBase,
				Moniker:  cfg.Moniker,
				Settle:   cfg.NodeSettle,
			})
			return err
		})
		if err != nil {
			return err
		}
		networks = append(networks, n)
	}

	for _, n := range networks {
		err := o.phase(PhaseDeploy, func() error {
			d := &Deployer{
				Log:      logger.New("chain", n.ChainName),
				Client:   n.Client,
				Endpoint: n.Endpoint,
				Sender:   keys.Deployer,
				Codes:    n.Codes,
				Domain:   n.Domain,
			}
			dep, err := d.Deploy(ctx)
			if err != nil {
				return fmt.Errorf("chain %s: %w", n, err)
			}
			n.Deployments = dep
			return nil
		})
		if err != nil {
			return err
		}
	}
	res.Networks = summarize(networks)

	err = o.phase(PhaseLink, func() error {
		validator, err := keys.Address(keys.Validator)
		if err != nil {
			return err
		}
		l := &Linker{Log: logger, Sender: keys.Linker, Validator: validator}
		return l.LinkAll(ctx, networks)
	})
	if err != nil {
		return err
	}
	dumpDeployments(logger, networks)

	var (
		agentCfg   *AgentConfigOut
		configPath string
	)
	err = o.phase(PhaseConfig, func() error {
		signerKey, err := keys.HexKey(keys.Validator)
		if err != nil {
			return err
		}
		if agentCfg, err = BuildAgentConfig(networks, signerKey); err != nil {
			return err
		}
		dir, err := p.TempDir("hl-agent-config-")
		if err != nil {
			return err
		}
		configPath, err = WriteAgentConfig(afero.NewOsFs(), dir, agentCfg)
		if err == nil {
			logger.Info("Wrote agent config", "path", configPath, "chains", agentCfg.ChainNames())
		}
		return err
	})
	if err != nil {
		return err
	}

	relayerPort := cfg.Chains.RelayerMetricsPort(cfg.NodeCount)
	err = o.phase(PhaseAgents, func() error {
		relayerKey, err := keys.HexKey(keys.Relayer)
		if err != nil {
			return err
		}
		launcher := &AgentLauncher{
			P:            p,
			Workspace:    cfg.RustWorkspace,
			ValidatorBin: cfg.AgentBin(ValidatorBin),
			RelayerBin:   cfg.AgentBin(RelayerBin),
			Debug:        cfg.Debug,
		}
		_, err = launcher.LaunchAll(ctx, agentCfg, configPath, relayerPort, relayerKey)
		if err != nil {
			return err
		}
		return sleepCtx(ctx, cfg.AgentSettle)
	})
	if err != nil {
		return err
	}

	monitor := &Monitor{
		Log:          logger,
		Source:       NewRelayerMetrics(relayerPort),
		Metrics:      o.metrics(),
		PollInterval: cfg.PollInterval,
	}
	var startingBalance float64
	err = o.phase(PhaseBalance, func() error {
		var err error
		startingBalance, err = monitor.StartingBalance(ctx, 0)
		return err
	})
	if err != nil {
		return err
	}
	logger.Info("Read starting relayer balance", "balance", startingBalance)

	err = o.phase(PhaseDispatch, func() error {
		d := &Dispatcher{
			Log:     logger,
			Metrics: o.metrics(),
			Sender:  keys.Linker,
			Body:    []byte(DefaultMessageBody),
			Funds:   DefaultDispatchFunds,
		}
		var err error
		res.ExpectedMessages, err = d.DispatchAll(ctx, networks)
		return err
	})
	if err != nil {
		return err
	}

	state := TerminationState{
		ExpectedMessages: res.ExpectedMessages,
		StartingBalance:  startingBalance,
		Start:            time.Now(),
		Timeout:          cfg.Timeout,
	}
	res.Status, res.Observation, err = monitor.Run(ctx, state)
	return err
}

func summarize(networks []*ChainNetwork) []NetworkSummary {
	out := make([]NetworkSummary, 0, len(networks))
	for _, n := range networks {
		s := NetworkSummary{
			ChainName:   n.ChainName,
			Domain:      n.Domain,
			RPC:         n.Endpoint.RPC,
			GRPC:        n.Endpoint.GRPC,
			MetricsPort: n.MetricsPort,
		}
		if n.Deployments != nil {
			s.Mailbox = n.Deployments.Mailbox
		}
		out = append(out, s)
	}
	return out
}

func dumpDeployments(logger log.Logger, networks []*ChainNetwork) {
	byDomain := make(map[uint32]*Deployments, len(networks))
	for _, n := range networks {
		byDomain[n.Domain] = n.Deployments
	}
	data, err := json.Marshal(byDomain)
	if err != nil {
		logger.Warn("Failed to encode deployments", "err", err)
		return
	}
	logger.Info("Deployed and linked networks", "deployments", string(data))
}
