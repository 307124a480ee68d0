package devkeys

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestTestKeyring(t *testing.T) {
	kr := TestKeyring()
	require.NoError(t, kr.Check())

	hexKey, err := kr.HexKey(kr.Validator)
	require.NoError(t, err)
	require.Len(t, hexKey, 2+64)
	require.Equal(t, "0x", hexKey[:2])

	deployer, err := kr.AccountAddress(kr.Deployer)
	require.NoError(t, err)
	relayer, err := kr.AccountAddress(kr.Relayer)
	require.NoError(t, err)
	require.NotEqual(t, deployer, relayer)

	_, err = kr.Secret("nobody")
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestKeyringEncodeDecode(t *testing.T) {
	for _, format := range []Format{FormatTOML, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, TestKeyring().Encode(&buf, format))
			got, err := DecodeKeyring(buf.Bytes(), format)
			require.NoError(t, err)
			if diff := cmp.Diff(TestKeyring(), got); diff != "" {
				t.Fatalf("keyring mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadKeyring(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.yml")
	var buf bytes.Buffer
	require.NoError(t, TestKeyring().Encode(&buf, FormatYAML))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	kr, err := LoadKeyring(path)
	require.NoError(t, err)
	require.Equal(t, "hpl-relayer", kr.Relayer)

	_, err = LoadKeyring(filepath.Join(dir, "keys.json"))
	require.ErrorContains(t, err, "unsupported keyring file extension")
}

func TestKeyringCheck(t *testing.T) {
	kr := TestKeyring()
	kr.Relayer = "missing"
	require.ErrorIs(t, kr.Check(), ErrUnknownKey)

	kr = TestKeyring()
	kr.Keys = append(kr.Keys, NamedKey{Name: "validator", Mnemonic: TestMnemonic})
	require.ErrorContains(t, kr.Check(), "duplicate key name")

	kr = TestKeyring()
	kr.Keys[0].Mnemonic = "legend auto stand"
	require.ErrorContains(t, kr.Check(), "invalid mnemonic")

	kr = TestKeyring()
	kr.Linker = ""
	require.ErrorContains(t, kr.Check(), "linker role")
}
