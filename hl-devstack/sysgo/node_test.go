package sysgo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-chain-ops/devkeys"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-devstack/devtest"
)

// fakeNode is an injectived that can init a home, run a node, and store codes.
const fakeNode = `#!/bin/sh
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
"genesis "*)
  ;;
"start "*)
  if [ -n "$FAKE_NODE_CRASH" ]; then echo '{"level":"error","message":"bad genesis"}'; exit 1; fi
  echo '{"level":"info","module":"server","message":"starting node"}'
  exec sleep 30
  ;;
"tx wasm")
  echo '{"height":"0","txhash":"STORE","code":0,"raw_log":""}'
  ;;
"query tx")
  echo '{"height":"7","txhash":"STORE","code":0,"events":[{"type":"store_code","attributes":[{"key":"code_id","value":"'$(grep -c "^tx wasm store" "$home/calls.log")'"}]}]}'
  ;;
*)
  echo "unknown command: $*" >&2
  exit 1
  ;;
esac
`

func nodeConfig(t *testing.T) NodeConfig {
	dir := t.TempDir()
	bin := filepath.Join(dir, "injectived")
	require.NoError(t, os.WriteFile(bin, []byte(fakeNode), 0o755))
	return NodeConfig{
		Index:   1,
		CLIPath: bin,
		Codes: map[string]string{
			CodeMailbox:    "/codes/hpl_mailbox.wasm",
			CodeHookMerkle: "/codes/hpl_hook_merkle.wasm",
		},
		Keys:     devkeys.TestKeyring(),
		Ports:    PortLayout{Base: DefaultNodePortBase, Stride: DefaultNodePortStride},
		Chains:   ChainLayout{DomainBase: DefaultDomainBase, MetricsPortBase: DefaultMetricsPortBase},
		AddrBase: DefaultAddrBase,
		Moniker:  DefaultMoniker,
		Settle:   200 * time.Millisecond,
	}
}

func TestLaunchNode(t *testing.T) {
	cfg := nodeConfig(t)
	p := devtest.NewP(context.Background(), testLogger(t), "node")
	n, err := LaunchNode(p, cfg)
	if err != nil {
		p.Close()
	}
	require.NoError(t, err)

	require.Equal(t, "injective99991", n.ChainName)
	require.Equal(t, "injective-99991", n.ChainID)
	require.Equal(t, uint32(99991), n.Domain)
	require.Equal(t, 9091, n.MetricsPort)
	require.Equal(t, "http://127.0.0.1:26610", n.Endpoint.RPC)
	require.Equal(t, map[string]uint64{CodeHookMerkle: 1, CodeMailbox: 2}, n.Codes)
	require.True(t, n.Node.Running())

	data, err := os.ReadFile(filepath.Join(n.Home, "calls.log"))
	require.NoError(t, err)
	calls := string(data)
	require.Contains(t, calls, "init localnet --chain-id injective-99991")
	require.Contains(t, calls, "start --rpc.laddr tcp://0.0.0.0:26610")
	require.Equal(t, 2, strings.Count(calls, "tx wasm store"))

	p.Close()
	require.False(t, n.Node.Running())
	_, err = os.Stat(n.Home)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLaunchNodeCrash(t *testing.T) {
	cfg := nodeConfig(t)
	t.Setenv("FAKE_NODE_CRASH", "1")
	p := devtest.NewP(context.Background(), testLogger(t), "node")
	defer p.Close()
	_, err := LaunchNode(p, cfg)
	phase, ok := IsSetupError(err)
	require.True(t, ok)
	require.Equal(t, PhaseNodeRun, phase)
	require.ErrorContains(t, err, "exited during startup")
}

func TestLaunchNodeCanceled(t *testing.T) {
	cfg := nodeConfig(t)
	cfg.Settle = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	p := devtest.NewP(ctx, testLogger(t), "node")
	defer p.Close()
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := LaunchNode(p, cfg)
	require.ErrorIs(t, err, context.Canceled)
}
