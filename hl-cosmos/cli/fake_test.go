package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeInjectived mimics the injectived commands the harness uses.
// Every invocation is appended to <home>/calls.log.
const fakeInjectived = `#!/bin/sh
for a; do home=$a; done
echo "$*" >> "$home/calls.log"
case "$1 $2" in
"init "*)
  mkdir -p "$home/config"
  echo '{"app_state":{"staking":{"params":{"bond_denom":"stake"}}}}' > "$home/config/genesis.json"
  printf '[consensus]\ntimeout_commit = "5s"\n' > "$home/config/config.toml"
  printf 'minimum-gas-prices = ""\n[api]\nenable = false\n' > "$home/config/app.toml"
  echo '{"moniker":"localnet"}' >&2
  ;;
"keys add")
  read mnemonic
  echo "$mnemonic" > "$home/$3.mnemonic"
  ;;
"keys show")
  echo '{"name":"'$3'","type":"local","address":"inj1'$3'"}'
  ;;
"genesis "*)
  ;;
"tx wasm")
  case "$3 $4" in
  "execute inj1broken") echo '{"height":"0","txhash":"EXEC","code":5,"raw_log":"insufficient funds"}' ;;
  "store "*) echo '{"height":"0","txhash":"STORE","code":0,"raw_log":""}' ;;
  "instantiate "*) echo '{"height":"0","txhash":"INST","code":0,"raw_log":""}' ;;
  *) echo '{"height":"0","txhash":"EXEC","code":0,"raw_log":""}' ;;
  esac
  ;;
"query tx")
  case "$3" in
  STORE) echo '{"height":"7","txhash":"STORE","code":0,"events":[{"type":"store_code","attributes":[{"key":"code_id","value":"'$(wc -l < "$home/calls.log" | tr -d ' ')'"}]}]}' ;;
  INST) echo '{"height":"8","txhash":"INST","code":0,"events":[{"type":"message","attributes":[]},{"type":"instantiate","attributes":[{"key":"_contract_address","value":"inj1contract"},{"key":"code_id","value":"1"}]}]}' ;;
  EXEC) echo '{"height":"9","txhash":"EXEC","code":0,"events":[]}' ;;
  *) echo "tx not found" >&2; exit 1 ;;
  esac
  ;;
"query wasm")
  echo '{"data":{"validators":["f39fd6e51aad88f6f4ce6ab8827279cfffb92266"],"threshold":1}}'
  ;;
*)
  echo "unknown command: $*" >&2
  exit 1
  ;;
esac
`

func writeFakeCLI(t *testing.T) (bin string, home string) {
	dir := t.TempDir()
	bin = filepath.Join(dir, "injectived")
	require.NoError(t, os.WriteFile(bin, []byte(fakeInjectived), 0o755))
	home = filepath.Join(dir, "home")
	require.NoError(t, os.MkdirAll(home, 0o755))
	return bin, home
}

func readCalls(t *testing.T, home string) []string {
	data, err := os.ReadFile(filepath.Join(home, "calls.log"))
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}
