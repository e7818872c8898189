package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

const defaultNetworksYAML = `# EVM networks the payment factories are deployed on.
networks:
  base:
    chain_id: 8453
    rpc_url: https://mainnet.base.org
    explorer_url: https://basescan.org
  base-sepolia:
    chain_id: 84532
    rpc_url: https://sepolia.base.org
    explorer_url: https://sepolia.basescan.org
  polygon:
    chain_id: 137
    rpc_url: https://polygon-rpc.com
    explorer_url: https://polygonscan.com
  arbitrum:
    chain_id: 42161
    rpc_url: https://arb1.arbitrum.io/rpc
    explorer_url: https://arbiscan.io
  avalanche:
    chain_id: 43114
    rpc_url: https://api.avax.network/ext/bc/C/rpc
    explorer_url: https://snowtrace.io
`

// Network describes one chain entry of the networks file.
type Network struct {
	Name           string `yaml:"-"`
	ChainID        int64  `yaml:"chain_id"`
	RPCURL         string `yaml:"rpc_url"`
	ExplorerURL    string `yaml:"explorer_url"`
	FactoryAddress string `yaml:"factory_address,omitempty"`
}

type networksFile struct {
	Networks map[string]Network `yaml:"networks"`
}

// Networks maps a network name to its settings.
type Networks map[string]Network

// LoadNetworks reads the networks file at path. An empty path yields the
// built-in defaults; entries in the file override defaults of the same name.
func LoadNetworks(path string) (Networks, error) {
	out, err := parseNetworks([]byte(defaultNetworksYAML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse default networks: %w", err)
	}
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks file: %w", err)
	}
	custom, err := parseNetworks(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for name, n := range custom {
		out[name] = n
	}
	return out, nil
}

func parseNetworks(data []byte) (Networks, error) {
	var f networksFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	out := make(Networks, len(f.Networks))
	for name, n := range f.Networks {
		if n.ChainID <= 0 {
			return nil, fmt.Errorf("network %q: chain_id must be positive", name)
		}
		n.Name = name
		out[name] = n
	}
	return out, nil
}

// Resolve returns the named network with the RPC URL override applied.
func (n Networks) Resolve(name, rpcOverride string) (Network, error) {
	network, ok := n[name]
	if !ok {
		return Network{}, fmt.Errorf("unknown network %q", name)
	}
	if rpcOverride != "" {
		network.RPCURL = rpcOverride
	}
	if network.RPCURL == "" {
		return Network{}, fmt.Errorf("network %q has no rpc_url", name)
	}
	return network, nil
}

// Names lists the configured networks in alphabetical order.
func (n Networks) Names() []string {
	names := make([]string, 0, len(n))
	for name := range n {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
