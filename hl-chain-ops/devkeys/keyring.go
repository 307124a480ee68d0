package devkeys

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/base/go-bip39"
	"gopkg.in/yaml.v3"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrUnknownKey = errors.New("unknown key")

// NamedKey is a chain-CLI keyring entry, recovered from its mnemonic.
type NamedKey struct {
	Name     string `toml:"name" yaml:"name"`
	Mnemonic string `toml:"mnemonic" yaml:"mnemonic"`
}

// Keyring is the key material a local network run is provisioned with.
// Role fields name entries of Keys.
type Keyring struct {
	// Deployer instantiates contracts, and is the genesis validator of every node.
	Deployer string `toml:"deployer" yaml:"deployer"`
	// Linker configures the cross-chain routes.
	Linker string `toml:"linker" yaml:"linker"`
	// Validator signs checkpoints, and is enrolled in every multisig ISM.
	Validator string `toml:"validator" yaml:"validator"`
	// Relayer submits deliveries on every chain.
	Relayer string `toml:"relayer" yaml:"relayer"`

	Keys []NamedKey `toml:"keys" yaml:"keys"`
}

type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the file format by extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported keyring file extension: %q", path)
	}
}

// LoadKeyring reads and checks a keyring file.
func LoadKeyring(path string) (*Keyring, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}
	return DecodeKeyring(data, format)
}

func DecodeKeyring(data []byte, format Format) (*Keyring, error) {
	var kr Keyring
	switch format {
	case FormatTOML:
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&kr); err != nil {
			return nil, fmt.Errorf("failed to decode TOML keyring: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&kr); err != nil {
			return nil, fmt.Errorf("failed to decode YAML keyring: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported keyring format: %q", format)
	}
	if err := kr.Check(); err != nil {
		return nil, err
	}
	return &kr, nil
}

// Encode writes the keyring in the given format.
func (k *Keyring) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(k)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(k); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported keyring format: %q", format)
	}
}

func (k *Keyring) Check() error {
	seen := make(map[string]struct{}, len(k.Keys))
	for i, key := range k.Keys {
		if key.Name == "" {
			return fmt.Errorf("key %d has no name", i)
		}
		if _, ok := seen[key.Name]; ok {
			return fmt.Errorf("duplicate key name %q", key.Name)
		}
		seen[key.Name] = struct{}{}
		if !bip39.IsMnemonicValid(key.Mnemonic) {
			return fmt.Errorf("key %q has an invalid mnemonic", key.Name)
		}
	}
	for role, name := range map[string]string{
		"deployer":  k.Deployer,
		"linker":    k.Linker,
		"validator": k.Validator,
		"relayer":   k.Relayer,
	} {
		if name == "" {
			return fmt.Errorf("no key assigned to the %s role", role)
		}
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("%s role: %w: %q", role, ErrUnknownKey, name)
		}
	}
	return nil
}

func (k *Keyring) Mnemonic(name string) (string, error) {
	for _, key := range k.Keys {
		if key.Name == name {
			return key.Mnemonic, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, name)
}

// Secret derives the first account key of the named mnemonic.
func (k *Keyring) Secret(name string) (*ecdsa.PrivateKey, error) {
	mnemonic, err := k.Mnemonic(name)
	if err != nil {
		return nil, err
	}
	keys, err := NewMnemonicKeys(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", name, err)
	}
	return keys.Secret(0)
}

// HexKey is the 0x-prefixed private key, as agents take it.
func (k *Keyring) HexKey(name string) (string, error) {
	secret, err := k.Secret(name)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(crypto.FromECDSA(secret)), nil
}

func (k *Keyring) Address(name string) (common.Address, error) {
	secret, err := k.Secret(name)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(secret.PublicKey), nil
}

// AccountAddress is the bech32 injective account of the named key.
func (k *Keyring) AccountAddress(name string) (string, error) {
	addr, err := k.Address(name)
	if err != nil {
		return "", err
	}
	return AccountAddress(addr), nil
}
