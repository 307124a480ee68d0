package sysgo

import (
	"fmt"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-cosmos/cli"
)

const (
	DefaultNodePortBase    = 26600
	DefaultNodePortStride  = 10
	DefaultMetricsPortBase = 9090
	DefaultDomainBase      = 99990

	// portsPerNode is the number of listen ports of a node: rpc, p2p, grpc, rest, pprof.
	portsPerNode = 5
)

// PortLayout derives deterministic node ports from a base and a per-node stride.
type PortLayout struct {
	Base   int
	Stride int
}

func (l PortLayout) Check() error {
	if l.Stride < portsPerNode {
		return fmt.Errorf("port stride %d is smaller than the %d ports of a node", l.Stride, portsPerNode)
	}
	if l.Base <= 0 {
		return fmt.Errorf("invalid port base %d", l.Base)
	}
	return nil
}

// NodePorts are the ports of the node with the given index.
func (l PortLayout) NodePorts(index int) cli.NodePorts {
	b := l.Base + index*l.Stride
	return cli.NodePorts{
		RPC:   b,
		P2P:   b + 1,
		GRPC:  b + 2,
		REST:  b + 3,
		PProf: b + 4,
	}
}

// ChainLayout derives the identity of every chain of a run from its index.
type ChainLayout struct {
	DomainBase      uint32
	MetricsPortBase int
}

func (l ChainLayout) Domain(index int) uint32 {
	return l.DomainBase + uint32(index)
}

// ValidatorMetricsPort is the metrics port of the validator of the chain with the given index.
func (l ChainLayout) ValidatorMetricsPort(index int) int {
	return l.MetricsPortBase + index
}

// RelayerMetricsPort follows the validator ports of all nodeCount chains, leaving one port free.
func (l ChainLayout) RelayerMetricsPort(nodeCount int) int {
	return l.MetricsPortBase + nodeCount + 1
}

// ChainName is the agent-config name of a chain.
func ChainName(domain uint32) string {
	return fmt.Sprintf("injective%d", domain)
}

// CLIChainID is the cosmos chain id of a chain.
func CLIChainID(domain uint32) string {
	return fmt.Sprintf("injective-%d", domain)
}
