package main

import (
	"context"
	"fmt"
	"os"

	"github.com/davyttu/confidance-crypto/internal/chain"
	"github.com/davyttu/confidance-crypto/internal/config"
	"github.com/davyttu/confidance-crypto/internal/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	network string
	rpcURL  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "opsctl",
		Short:         "Operator tools for the payment contracts and the keeper",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.network, "network", "", "network name (default from NETWORK)")
	root.PersistentFlags().StringVar(&opts.rpcURL, "rpc", "", "RPC URL override (default from RPC_URL)")

	root.AddCommand(
		newNetworksCmd(),
		newBalanceCmd(opts),
		newAllowanceCmd(opts),
		newApproveCmd(opts),
		newAllowlistCmd(opts),
		newCheckCmd(opts),
		newReleaseCmd(opts),
		newTokenCmd(),
		newSealKeyCmd(),
	)
	return root
}

// connect dials the selected network, signing with the configured keeper key
// when withKey is set.
func (o *rootOptions) connect(ctx context.Context, withKey bool) (*chain.Client, config.Network, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, config.Network{}, err
	}
	networks, err := config.LoadNetworks(cfg.NetworksFile)
	if err != nil {
		return nil, config.Network{}, err
	}

	name, rpcURL := cfg.Network, cfg.RPCURL
	if o.network != "" {
		name = o.network
	}
	if o.rpcURL != "" {
		rpcURL = o.rpcURL
	}
	network, err := networks.Resolve(name, rpcURL)
	if err != nil {
		return nil, config.Network{}, err
	}

	chainOpts := chain.Options{RateLimit: cfg.RPCRateLimit, TxTimeout: cfg.TxTimeout}
	if withKey {
		key := cfg.KeeperPrivateKey
		if cfg.KeeperPrivateKeySealed != "" {
			if key, err = utils.OpenPrivateKey(cfg.KeeperPrivateKeySealed, cfg.EncryptionKey); err != nil {
				return nil, config.Network{}, fmt.Errorf("failed to open sealed key: %w", err)
			}
		}
		if key == "" {
			return nil, config.Network{}, fmt.Errorf("KEEPER_PRIVATE_KEY or KEEPER_PRIVATE_KEY_SEALED is required")
		}
		chainOpts.PrivateKeyHex = key
	}

	client, err := chain.Dial(ctx, network, chainOpts)
	if err != nil {
		return nil, config.Network{}, err
	}
	return client, network, nil
}

func parseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, value)
	}
	return common.HexToAddress(value), nil
}

func txLink(network config.Network, hash common.Hash) string {
	if network.ExplorerURL == "" {
		return hash.Hex()
	}
	return fmt.Sprintf("%s/tx/%s", network.ExplorerURL, hash.Hex())
}
