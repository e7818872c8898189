package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/davyttu/confidance-crypto/internal/auth"
	"github.com/davyttu/confidance-crypto/internal/chain"
	"github.com/davyttu/confidance-crypto/internal/config"
	"github.com/davyttu/confidance-crypto/internal/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func newNetworksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List the configured networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			networks, err := config.LoadNetworks(cfg.NetworksFile)
			if err != nil {
				return err
			}
			for _, name := range networks.Names() {
				n := networks[name]
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s chain=%-6d rpc=%s\n", name, n.ChainID, n.RPCURL)
			}
			return nil
		},
	}
}

func newBalanceCmd(opts *rootOptions) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Show the native or ERC-20 balance of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := parseAddress("account", args[0])
			if err != nil {
				return err
			}
			client, _, err := opts.connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer client.Close()

			if token == "" {
				bal, err := client.Balance(cmd.Context(), account)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), chain.FormatUnits(bal, 18).String())
				return nil
			}

			tokenAddr, err := parseAddress("token", token)
			if err != nil {
				return err
			}
			decimals, err := client.Decimals(cmd.Context(), tokenAddr)
			if err != nil {
				return err
			}
			bal, err := client.TokenBalance(cmd.Context(), tokenAddr, account)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), chain.FormatUnits(bal, decimals).String())
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "ERC-20 token address")
	return cmd
}

func newAllowanceCmd(opts *rootOptions) *cobra.Command {
	var token, owner, spender string
	cmd := &cobra.Command{
		Use:   "allowance",
		Short: "Show the ERC-20 allowance an owner granted a spender",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenAddr, err := parseAddress("token", token)
			if err != nil {
				return err
			}
			ownerAddr, err := parseAddress("owner", owner)
			if err != nil {
				return err
			}
			spenderAddr, err := parseAddress("spender", spender)
			if err != nil {
				return err
			}

			client, _, err := opts.connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer client.Close()

			decimals, err := client.Decimals(cmd.Context(), tokenAddr)
			if err != nil {
				return err
			}
			allowance, err := client.Allowance(cmd.Context(), tokenAddr, ownerAddr, spenderAddr)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), chain.FormatUnits(allowance, decimals).String())
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "ERC-20 token address")
	cmd.Flags().StringVar(&owner, "owner", "", "token owner")
	cmd.Flags().StringVar(&spender, "spender", "", "approved spender, usually a payment contract")
	cmd.MarkFlagRequired("token")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("spender")
	return cmd
}

func newApproveCmd(opts *rootOptions) *cobra.Command {
	var token, spender, amount string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a spender for an amount of an ERC-20 token from the keeper wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenAddr, err := parseAddress("token", token)
			if err != nil {
				return err
			}
			spenderAddr, err := parseAddress("spender", spender)
			if err != nil {
				return err
			}

			client, network, err := opts.connect(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer client.Close()

			decimals, err := client.Decimals(cmd.Context(), tokenAddr)
			if err != nil {
				return err
			}
			value, err := chain.ParseUnits(amount, decimals)
			if err != nil {
				return err
			}
			hash, err := client.Approve(cmd.Context(), tokenAddr, spenderAddr, value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved %s: %s\n", amount, txLink(network, hash))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "ERC-20 token address")
	cmd.Flags().StringVar(&spender, "spender", "", "spender address")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in token units, e.g. 12.5")
	cmd.MarkFlagRequired("token")
	cmd.MarkFlagRequired("spender")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func newAllowlistCmd(opts *rootOptions) *cobra.Command {
	var factory string
	var remove bool

	resolveFactory := func(network config.Network) (common.Address, error) {
		if factory == "" {
			factory = network.FactoryAddress
		}
		if factory == "" {
			return common.Address{}, fmt.Errorf("no factory address for %s, pass --factory", network.Name)
		}
		return parseAddress("factory", factory)
	}

	cmd := &cobra.Command{
		Use:   "allowlist",
		Short: "Inspect or change the factory token allowlist",
	}
	cmd.PersistentFlags().StringVar(&factory, "factory", "", "factory address (default from the networks file)")

	check := &cobra.Command{
		Use:   "check <token>",
		Short: "Report whether a token is allowed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenAddr, err := parseAddress("token", args[0])
			if err != nil {
				return err
			}
			client, network, err := opts.connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer client.Close()
			factoryAddr, err := resolveFactory(network)
			if err != nil {
				return err
			}

			allowed, err := client.IsTokenAllowed(cmd.Context(), factoryAddr, tokenAddr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s allowed=%t\n", tokenAddr.Hex(), allowed)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <token>",
		Short: "Allow a token, or disallow it with --remove",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenAddr, err := parseAddress("token", args[0])
			if err != nil {
				return err
			}
			client, network, err := opts.connect(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer client.Close()
			factoryAddr, err := resolveFactory(network)
			if err != nil {
				return err
			}

			hash, err := client.SetTokenAllowed(cmd.Context(), factoryAddr, tokenAddr, !remove)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s allowed=%t: %s\n", tokenAddr.Hex(), !remove, txLink(network, hash))
			return nil
		},
	}
	set.Flags().BoolVar(&remove, "remove", false, "remove the token from the allowlist")

	cmd.AddCommand(check, set)
	return cmd
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <resolver>",
		Short: "Call checker() on a resolver and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := parseAddress("resolver", args[0])
			if err != nil {
				return err
			}
			client, _, err := opts.connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer client.Close()

			canExec, payload, err := client.Checker(cmd.Context(), resolver)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "canExec=%t payload=0x%s\n", canExec, hex.EncodeToString(payload))
			return nil
		},
	}
}

func newReleaseCmd(opts *rootOptions) *cobra.Command {
	var payload string
	cmd := &cobra.Command{
		Use:   "release <contract>",
		Short: "Send release() or a raw exec payload to a payment contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contract, err := parseAddress("contract", args[0])
			if err != nil {
				return err
			}
			data, err := hex.DecodeString(strings.TrimPrefix(payload, "0x"))
			if err != nil {
				return fmt.Errorf("invalid payload: %w", err)
			}

			client, network, err := opts.connect(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer client.Close()

			hash, err := client.Release(cmd.Context(), contract, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released: %s\n", txLink(network, hash))
			return nil
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "", "hex calldata; release() when empty")
	return cmd
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <wallet>",
		Short: "Issue an API token for a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := parseAddress("wallet", args[0])
			if err != nil {
				return err
			}
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL).Generate(wallet.Hex())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newSealKeyCmd() *cobra.Command {
	var key, passphrase string
	cmd := &cobra.Command{
		Use:   "seal-key",
		Short: "Encrypt a private key for KEEPER_PRIVATE_KEY_SEALED",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			if key == "" {
				key = cfg.KeeperPrivateKey
			}
			if passphrase == "" {
				passphrase = cfg.EncryptionKey
			}
			if key == "" || passphrase == "" {
				return fmt.Errorf("a private key and a passphrase are required")
			}
			if _, err := chain.NewClient(nil, nil, chain.Options{PrivateKeyHex: key}); err != nil {
				return err
			}

			sealed, err := utils.SealPrivateKey(key, passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "hex private key (default KEEPER_PRIVATE_KEY)")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "passphrase (default ENCRYPTION_KEY)")
	return cmd
}
