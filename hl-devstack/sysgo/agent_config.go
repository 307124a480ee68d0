package sysgo

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-chain-ops/devkeys"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-cosmos/cli"
)

const (
	AgentConfigFile = "config.json"

	ProtocolCosmos   = "cosmos"
	SignerCosmosKey  = "cosmosKey"
	SignerHexKey     = "hexKey"
	IndexChunkSize   = 5
	AddressByteCount = 32
)

type AgentURL struct {
	HTTP string `json:"http"`
}

type AgentSigner struct {
	Type   string `json:"type"`
	Key    string `json:"key"`
	Prefix string `json:"prefix"`
}

type AgentIndex struct {
	From  uint64 `json:"from"`
	Chunk uint64 `json:"chunk"`
}

type AgentGasPrice struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// AgentConfig is the agent view of one chain.
type AgentConfig struct {
	Name                   string        `json:"name"`
	DomainID               uint32        `json:"domainId"`
	MetricsPort            int           `json:"metricsPort"`
	Mailbox                string        `json:"mailbox"`
	InterchainGasPaymaster string        `json:"interchainGasPaymaster"`
	ValidatorAnnounce      string        `json:"validatorAnnounce"`
	MerkleTreeHook         string        `json:"merkleTreeHook"`
	Protocol               string        `json:"protocol"`
	ChainID                string        `json:"chainId"`
	RPCURLs                []AgentURL    `json:"rpcUrls"`
	GRPCURL                string        `json:"grpcUrl"`
	Bech32Prefix           string        `json:"bech32Prefix"`
	Signer                 AgentSigner   `json:"signer"`
	Index                  AgentIndex    `json:"index"`
	GasPrice               AgentGasPrice `json:"gasPrice"`
	ContractAddressBytes   int           `json:"contractAddressBytes"`
	CanonicalAsset         string        `json:"canonicalAsset"`
}

// AgentConfigOut is the merged config file shared by all agents of a run.
type AgentConfigOut struct {
	Chains map[string]AgentConfig `json:"chains"`
}

// ChainNames are the sorted names of all chains.
func (o *AgentConfigOut) ChainNames() []string {
	names := make([]string, 0, len(o.Chains))
	for name := range o.Chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// hexAddress is the 0x-hex of the 32-byte padded form of a bech32 address.
func hexAddress(bech32Addr string) (string, error) {
	padded, err := devkeys.PaddedAddress(bech32Addr)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(padded[:]), nil
}

// NewAgentConfig derives the agent config of a deployed network.
// signerKey is the 0x-hex private key of the validator of the chain.
func NewAgentConfig(n *ChainNetwork, signerKey string) (AgentConfig, error) {
	if n.Deployments == nil {
		return AgentConfig{}, fmt.Errorf("chain %s has no deployments", n)
	}
	addrs := make([]string, 4)
	for i, addr := range []string{
		n.Deployments.Mailbox,
		n.Deployments.IGP,
		n.Deployments.ValidatorAnnounce,
		n.Deployments.HookMerkle,
	} {
		h, err := hexAddress(addr)
		if err != nil {
			return AgentConfig{}, fmt.Errorf("chain %s: invalid contract address %q: %w", n, addr, err)
		}
		addrs[i] = h
	}
	return AgentConfig{
		Name:                   n.ChainName,
		DomainID:               n.Domain,
		MetricsPort:            n.MetricsPort,
		Mailbox:                addrs[0],
		InterchainGasPaymaster: addrs[1],
		ValidatorAnnounce:      addrs[2],
		MerkleTreeHook:         addrs[3],
		Protocol:               ProtocolCosmos,
		ChainID:                n.ChainID,
		RPCURLs:                []AgentURL{{HTTP: n.Endpoint.RPC}},
		GRPCURL:                "http://" + n.Endpoint.GRPC,
		Bech32Prefix:           devkeys.InjectivePrefix,
		Signer: AgentSigner{
			Type:   SignerCosmosKey,
			Key:    signerKey,
			Prefix: devkeys.InjectivePrefix,
		},
		Index:                AgentIndex{From: 1, Chunk: IndexChunkSize},
		GasPrice:             AgentGasPrice{Denom: cli.Denom, Amount: cli.DefaultGasPrice},
		ContractAddressBytes: AddressByteCount,
		CanonicalAsset:       cli.Denom,
	}, nil
}

// BuildAgentConfig merges the configs of all networks. Every network must be deployed.
func BuildAgentConfig(networks []*ChainNetwork, signerKey string) (*AgentConfigOut, error) {
	out := &AgentConfigOut{Chains: make(map[string]AgentConfig, len(networks))}
	for _, n := range networks {
		cfg, err := NewAgentConfig(n, signerKey)
		if err != nil {
			return nil, err
		}
		if _, ok := out.Chains[cfg.Name]; ok {
			return nil, fmt.Errorf("duplicate chain name %s", cfg.Name)
		}
		out.Chains[cfg.Name] = cfg
	}
	return out, nil
}

// WriteAgentConfig writes the merged config as indented JSON into dir, and returns the file path.
func WriteAgentConfig(fs afero.Fs, dir string, cfg *AgentConfigOut) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode agent config: %w", err)
	}
	path := filepath.Join(dir, AgentConfigFile)
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write agent config: %w", err)
	}
	return path, nil
}
