package sysgo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-chain-ops/devkeys"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/testlog"
)

func TestRunInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.NodeCount = 0
	o := &Orchestrator{Log: testLogger(t), Config: cfg}
	_, err := o.Run(context.Background())
	require.ErrorContains(t, err, "invalid config")
}

func TestRunInstallFailureReleasesScope(t *testing.T) {
	cfg := testConfig()
	cfg.SkipBuild = true
	cfg.CLISource.LocalPath = "/does/not/exist/injectived"
	m := &recordingMetrics{}
	o := &Orchestrator{Log: testLogger(t), Config: cfg, Metrics: m}
	res, err := o.Run(context.Background())
	phase, ok := IsSetupError(err)
	require.True(t, ok)
	require.Equal(t, PhaseInstall, phase)
	require.Equal(t, StatusWaiting, res.Status)
	require.Equal(t, []Phase{PhaseInstall}, m.phases)
	require.NotNil(t, m.outcome)
}

func TestSummarize(t *testing.T) {
	nets := deployedNetworks(t, 2)
	sums := summarize(nets)
	require.Len(t, sums, 2)
	require.Equal(t, NetworkSummary{
		ChainName:   "injective99991",
		Domain:      99991,
		RPC:         "http://127.0.0.1:26610",
		GRPC:        "127.0.0.1:26612",
		MetricsPort: 9091,
		Mailbox:     nets[1].Deployments.Mailbox,
	}, sums[1])

	logger, logs := testlog.CaptureLogger(t, log.LevelInfo)
	dumpDeployments(logger, nets)
	rec := logs.FindLog(testlog.NewMessageFilter("Deployed and linked networks"))
	require.NotNil(t, rec)
	require.Contains(t, rec.AttrValue("deployments"), `"99990":{"mailbox":"inj1`)
}

// fakeChain is an injectived that keeps enough state in its home to serve a whole run:
// store and instantiate results are numbered per chain, contract addresses come from FAKE_CONTRACTS.
const fakeChain = `#!/bin/sh
for a; do home=$a; done
echo "$*" >> "$home/calls.log"
case "$1 $2" in
"init "*)
  mkdir -p "$home/config"
  echo '{"app_state":{"staking":{"params":{"bond_denom":"stake"}}}}' > "$home/config/genesis.json"
  printf '[consensus]\ntimeout_commit = "5s"\n' > "$home/config/config.toml"
  printf 'minimum-gas-prices = ""\n[api]\nenable = false\n' > "$home/config/app.toml"
  ;;
"keys add")
  read mnemonic
  ;;
"keys show")
  echo '{"address":"'"$FAKE_KEY_ADDRESS"'"}'
  ;;
"genesis "*)
  ;;
"start "*)
  echo $$ >> "$FAKE_PIDS"
  echo '{"level":"info","module":"server","message":"starting node"}'
  exec sleep 30
  ;;
"tx wasm")
  case "$3" in
  store)
    echo '{"height":"0","txhash":"STORE'$(grep -c "^tx wasm store" "$home/calls.log")'","code":0}'
    ;;
  instantiate)
    echo '{"height":"0","txhash":"INST'$(grep -c "^tx wasm instantiate" "$home/calls.log")'","code":0}'
    ;;
  execute)
    if [ -n "$FAKE_FAIL_ACTION" ] && echo "$5" | grep -q "\"$FAKE_FAIL_ACTION\""; then
      echo '{"height":"0","txhash":"FAILED","code":5,"raw_log":"out of gas"}'
    else
      echo '{"height":"0","txhash":"EXEC","code":0}'
    fi
    ;;
  esac
  ;;
"query tx")
  case "$3" in
  STORE*)
    echo '{"height":"7","txhash":"'$3'","code":0,"events":[{"type":"store_code","attributes":[{"key":"code_id","value":"'${3#STORE}'"}]}]}'
    ;;
  INST*)
    addr=$(sed -n "${3#INST}p" "$FAKE_CONTRACTS")
    echo '{"height":"7","txhash":"'$3'","code":0,"events":[{"type":"instantiate","attributes":[{"key":"_contract_address","value":"'$addr'"}]}]}'
    ;;
  *)
    echo '{"height":"7","txhash":"'$3'","code":0}'
    ;;
  esac
  ;;
"query wasm")
  echo '{"data":{"validators":["'"$FAKE_VALIDATOR_HEX"'"],"threshold":1}}'
  ;;
*)
  echo "unknown command: $*" >&2
  exit 1
  ;;
esac
`

const fakePidAgent = `#!/bin/sh
echo $$ >> "$FAKE_PIDS"
echo '{"timestamp":"2024-01-01T00:00:00Z","level":"INFO","fields":{"message":"agent started"},"target":"agent"}'
exec sleep 30
`

// startRelayerMetrics serves the relayer metrics on a free port, and returns the metrics
// port base that puts the relayer of nodeCount chains on it. From the second scrape on,
// every message is reported delivered unless deliver is false.
func startRelayerMetrics(t *testing.T, nodeCount int, deliver bool) int {
	s := unstartedRelayerMetricsServer(t)
	s.balance.WithLabelValues("injective99990", "relayer").Set(100)
	var (
		mu      sync.Mutex
		scrapes int
	)
	s.onScrape = func() {
		mu.Lock()
		defer mu.Unlock()
		scrapes++
		if scrapes == 2 && deliver {
			s.gas.WithLabelValues("gas_payment", "injective99990").Inc()
			s.gas.WithLabelValues("gas_payment", "injective99991").Inc()
			s.processed.WithLabelValues("confirmed", "default").Add(2)
			s.balance.WithLabelValues("injective99990", "relayer").Set(99)
		}
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, s.srv.Listener.Close())
	s.srv.Listener = l
	s.srv.Start()
	return l.Addr().(*net.TCPAddr).Port - nodeCount - 1
}

// pipelineConfig wires a run of two chains to fake binaries. The returned file collects
// the pids of every long-running process.
func pipelineConfig(t *testing.T, deliver bool) (Config, string) {
	dir := t.TempDir()
	keys := devkeys.TestKeyring()

	cliPath := filepath.Join(dir, "injectived")
	require.NoError(t, os.WriteFile(cliPath, []byte(fakeChain), 0o755))
	binDir := filepath.Join(dir, "bin")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	for _, name := range []string{ValidatorBin, RelayerBin} {
		require.NoError(t, os.WriteFile(filepath.Join(binDir, name), []byte(fakePidAgent), 0o755))
	}
	cargo := filepath.Join(dir, "cargo")
	require.NoError(t, os.WriteFile(cargo, []byte("#!/bin/sh\necho '   Compiling relayer'\n"), 0o755))
	codesDir := filepath.Join(dir, "codes")
	require.NoError(t, os.MkdirAll(codesDir, 0o755))
	for _, code := range RequiredCodes {
		require.NoError(t, os.WriteFile(filepath.Join(codesDir, code+".wasm"), []byte("\x00asm"), 0o644))
	}

	var contracts []string
	for i := 0; i < 2*len(RequiredCodes); i++ {
		addr, err := devkeys.ToBech32(devkeys.InjectivePrefix, crypto.Keccak256([]byte(fmt.Sprintf("contract/%d", i))))
		require.NoError(t, err)
		contracts = append(contracts, addr)
	}
	contractsFile := filepath.Join(dir, "contracts")
	require.NoError(t, os.WriteFile(contractsFile, []byte(strings.Join(contracts, "\n")+"\n"), 0o644))
	deployer, err := keys.Address(keys.Deployer)
	require.NoError(t, err)
	validator, err := keys.Address(keys.Validator)
	require.NoError(t, err)
	pids := filepath.Join(dir, "pids")

	t.Setenv("FAKE_PIDS", pids)
	t.Setenv("FAKE_CONTRACTS", contractsFile)
	t.Setenv("FAKE_KEY_ADDRESS", devkeys.AccountAddress(deployer))
	t.Setenv("FAKE_VALIDATOR_HEX", validatorHex(validator))
	t.Setenv("FAKE_FAIL_ACTION", "")

	cfg := testConfig()
	cfg.Keys = keys
	cfg.CLISource.LocalPath = cliPath
	cfg.CodeSource.LocalPath = codesDir
	cfg.InstallDir = filepath.Join(dir, "install")
	cfg.RustWorkspace = t.TempDir()
	cfg.AgentBinDir = binDir
	cfg.Cargo = cargo
	cfg.Chains.MetricsPortBase = startRelayerMetrics(t, cfg.NodeCount, deliver)
	cfg.NodeSettle = 100 * time.Millisecond
	cfg.AgentSettle = 100 * time.Millisecond
	cfg.PollInterval = 50 * time.Millisecond
	cfg.Timeout = 10 * time.Second
	return cfg, pids
}

// requireStopped checks that want processes were spawned, and that none of them is left.
func requireStopped(t *testing.T, pidFile string, want int) {
	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	lines := strings.Fields(string(data))
	require.Len(t, lines, want)
	for _, line := range lines {
		pid, err := strconv.Atoi(line)
		require.NoError(t, err)
		require.ErrorIs(t, syscall.Kill(pid, 0), syscall.ESRCH, "process %d is still running", pid)
	}
}

func TestRunSucceeds(t *testing.T) {
	cfg, pids := pipelineConfig(t, true)
	m := &recordingMetrics{}
	o := &Orchestrator{Log: testLogger(t), Config: cfg, Metrics: m}

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, res.Status)
	require.Equal(t, uint64(2), res.ExpectedMessages)
	require.Equal(t, Observation{GasPayments: 2, Confirmed: 2, Balance: 99, BalanceKnown: true}, res.Observation)
	require.Len(t, res.Networks, 2)
	require.Equal(t, "injective99991", res.Networks[1].ChainName)
	require.NotEmpty(t, res.Networks[1].Mailbox)

	require.Equal(t, []Phase{
		PhaseInstall, PhaseBuild,
		PhaseNodeRun, PhaseNodeRun,
		PhaseDeploy, PhaseDeploy,
		PhaseLink, PhaseConfig, PhaseAgents, PhaseBalance, PhaseDispatch,
	}, m.phases)
	require.Equal(t, [][2]uint32{{99990, 99991}, {99991, 99990}}, m.dispatches)
	require.NotNil(t, m.outcome)
	require.Equal(t, StatusSucceeded, *m.outcome)
	// two nodes, two validators, one relayer
	requireStopped(t, pids, 5)
}

func TestRunDispatchFailureStopsEverything(t *testing.T) {
	cfg, pids := pipelineConfig(t, true)
	cfg.SkipBuild = true
	t.Setenv("FAKE_FAIL_ACTION", "dispatch")
	m := &recordingMetrics{}
	o := &Orchestrator{Log: testLogger(t), Config: cfg, Metrics: m}

	res, err := o.Run(context.Background())
	phase, ok := IsSetupError(err)
	require.True(t, ok, "unexpected error: %v", err)
	require.Equal(t, PhaseDispatch, phase)
	require.ErrorContains(t, err, "out of gas")
	require.Equal(t, StatusWaiting, res.Status)
	require.NotContains(t, m.phases, PhaseBuild)
	requireStopped(t, pids, 5)
}

func TestRunTimeoutStopsEverything(t *testing.T) {
	cfg, pids := pipelineConfig(t, false)
	cfg.SkipBuild = true
	cfg.Timeout = 300 * time.Millisecond
	m := &recordingMetrics{}
	o := &Orchestrator{Log: testLogger(t), Config: cfg, Metrics: m}

	res, err := o.Run(context.Background())
	require.ErrorIs(t, err, ErrTerminationTimeout)
	_, isSetup := IsSetupError(err)
	require.False(t, isSetup)
	require.False(t, errors.Is(err, context.Canceled))
	require.Equal(t, StatusTimedOut, res.Status)
	require.Equal(t, uint64(2), res.ExpectedMessages)
	require.Equal(t, float64(100), res.Observation.Balance)
	require.NotNil(t, m.outcome)
	require.Equal(t, StatusTimedOut, *m.outcome)
	requireStopped(t, pids, 5)
}

// TestRunLocally runs the full network. It needs injectived, the contracts and a rust workspace,
// see the E2E_* env vars.
func TestRunLocally(t *testing.T) {
	if os.Getenv("HL_LOCALNET_E2E") != "true" {
		t.Skip("set HL_LOCALNET_E2E=true to run the local network end to end")
	}
	cfg := DefaultConfig()
	cfg.Keys = devkeys.TestKeyring()
	if ws := os.Getenv("HL_LOCALNET_RUST_WORKSPACE"); ws != "" {
		cfg.RustWorkspace = ws
	}
	o := &Orchestrator{Log: testlog.Logger(t, log.LevelInfo), Config: cfg}
	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, res.Status)
	require.Equal(t, uint64(2), res.ExpectedMessages)
	require.Len(t, res.Networks, 2)
}
