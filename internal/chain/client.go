package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/davyttu/confidance-crypto/internal/config"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

// ErrReadOnly is returned by write calls on a client without a private key
var ErrReadOnly = errors.New("client has no signing key")

// Backend is the subset of an Ethereum RPC client the Client needs
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client wraps contract reads and writes against one network
type Client struct {
	backend   Backend
	chainID   *big.Int
	key       *ecdsa.PrivateKey
	from      common.Address
	limiter   *rate.Limiter
	txTimeout time.Duration
	closer    func()
}

// Options configures a Client
type Options struct {
	PrivateKeyHex string // optional; read-only without it
	RateLimit     float64
	TxTimeout     time.Duration
}

// Dial connects to the network's RPC endpoint and checks its chain id
func Dial(ctx context.Context, network config.Network, opts Options) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", network.Name, err)
	}

	id, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	if id.Int64() != network.ChainID {
		eth.Close()
		return nil, fmt.Errorf("rpc chain id %s does not match %s (%d)", id, network.Name, network.ChainID)
	}

	c, err := NewClient(eth, id, opts)
	if err != nil {
		eth.Close()
		return nil, err
	}
	c.closer = eth.Close
	return c, nil
}

// NewClient builds a Client over an existing backend
func NewClient(backend Backend, chainID *big.Int, opts Options) (*Client, error) {
	limit := rate.Limit(opts.RateLimit)
	if opts.RateLimit <= 0 {
		limit = rate.Inf
	}
	timeout := opts.TxTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	c := &Client{
		backend:   backend,
		chainID:   chainID,
		limiter:   rate.NewLimiter(limit, 1),
		txTimeout: timeout,
	}

	if opts.PrivateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(opts.PrivateKeyHex), "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// Close releases the RPC connection
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Address is the signing account, or the zero address for read-only clients
func (c *Client) Address() common.Address {
	return c.from
}

// ChainID returns the network chain id
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) call(ctx context.Context, parsed abi.ABI, contract common.Address, method string, args ...any) ([]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	bound := bind.NewBoundContract(contract, parsed, c.backend, c.backend, c.backend)
	var out []any
	if err := bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s on %s failed: %w", method, contract.Hex(), err)
	}
	return out, nil
}

// Checker calls the resolver's checker() view
func (c *Client) Checker(ctx context.Context, resolver common.Address) (bool, []byte, error) {
	out, err := c.call(ctx, ResolverABI, resolver, "checker")
	if err != nil {
		return false, nil, err
	}
	if len(out) != 2 {
		return false, nil, fmt.Errorf("checker on %s returned %d values", resolver.Hex(), len(out))
	}
	canExec := *abi.ConvertType(out[0], new(bool)).(*bool)
	payload := *abi.ConvertType(out[1], new([]byte)).(*[]byte)
	return canExec, payload, nil
}

// Released reads the released() flag of a scheduled payment
func (c *Client) Released(ctx context.Context, contract common.Address) (bool, error) {
	out, err := c.call(ctx, PaymentABI, contract, "released")
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// Release sends the exec payload to contract, or release() when the payload
// is empty, and waits for a successful receipt.
func (c *Client) Release(ctx context.Context, contract common.Address, payload []byte) (common.Hash, error) {
	return c.transact(ctx, PaymentABI, contract, func(bound *bind.BoundContract, opts *bind.TransactOpts) (*types.Transaction, error) {
		if len(payload) > 0 {
			return bound.RawTransact(opts, payload)
		}
		return bound.Transact(opts, "release")
	})
}

// Balance returns the native coin balance of account
func (c *Client) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	bal, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance of %s: %w", account.Hex(), err)
	}
	return bal, nil
}

// TokenBalance returns the ERC-20 balance of owner
func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := c.call(ctx, ERC20ABI, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Allowance returns the ERC-20 allowance owner granted spender
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := c.call(ctx, ERC20ABI, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Decimals returns the ERC-20 decimals
func (c *Client) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.call(ctx, ERC20ABI, token, "decimals")
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// Approve grants spender an ERC-20 allowance from the signing account
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	return c.transact(ctx, ERC20ABI, token, func(bound *bind.BoundContract, opts *bind.TransactOpts) (*types.Transaction, error) {
		return bound.Transact(opts, "approve", spender, amount)
	})
}

// IsTokenAllowed reads the factory allowlist
func (c *Client) IsTokenAllowed(ctx context.Context, factory, token common.Address) (bool, error) {
	out, err := c.call(ctx, FactoryABI, factory, "isTokenAllowed", token)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// SetTokenAllowed adds or removes token from the factory allowlist
func (c *Client) SetTokenAllowed(ctx context.Context, factory, token common.Address, allowed bool) (common.Hash, error) {
	return c.transact(ctx, FactoryABI, factory, func(bound *bind.BoundContract, opts *bind.TransactOpts) (*types.Transaction, error) {
		return bound.Transact(opts, "setTokenAllowed", token, allowed)
	})
}

type sendFunc func(bound *bind.BoundContract, opts *bind.TransactOpts) (*types.Transaction, error)

func (c *Client) transact(ctx context.Context, parsed abi.ABI, contract common.Address, send sendFunc) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrReadOnly
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return common.Hash{}, err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx

	bound := bind.NewBoundContract(contract, parsed, c.backend, c.backend, c.backend)
	tx, err := send(bound, opts)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction to %s: %w", contract.Hex(), err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		return tx.Hash(), fmt.Errorf("failed waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash(), fmt.Errorf("transaction %s reverted in block %d", tx.Hash().Hex(), receipt.BlockNumber.Uint64())
	}
	return tx.Hash(), nil
}
