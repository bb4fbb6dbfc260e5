package token

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
)

// Client calls a deployed token contract.
type Client struct {
	backend method.Backend
	token   types.Address
}

func NewClient(backend method.Backend, token types.Address) *Client {
	return &Client{backend: backend, token: token}
}

func (c *Client) Address() types.Address { return c.token }

func (c *Client) Symbol(ctx context.Context) (string, error) {
	ret, err := MethodSymbol.Query(ctx, c.backend, c.token)
	if err != nil {
		return "", err
	}
	symbol, _ := ret.(string)
	return symbol, nil
}

func (c *Client) Decimals(ctx context.Context) (uint8, error) {
	ret, err := MethodDecimals.Query(ctx, c.backend, c.token)
	if err != nil {
		return 0, err
	}
	decimals, err := method.AsUint64(ret)
	return uint8(decimals), err
}

func (c *Client) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	return c.queryAmount(ctx, MethodTotalSupply)
}

func (c *Client) BalanceOf(ctx context.Context, account types.Address) (*uint256.Int, error) {
	return c.queryAmount(ctx, MethodBalanceOf, account)
}

func (c *Client) Allowance(ctx context.Context, owner, spender types.Address) (*uint256.Int, error) {
	return c.queryAmount(ctx, MethodAllowance, owner, spender)
}

func (c *Client) Approve(ctx context.Context, spender types.Address, amount *uint256.Int) (*chain.Receipt, error) {
	return MethodApprove.Transact(ctx, c.backend, c.token, spender, amount)
}

func (c *Client) Transfer(ctx context.Context, to types.Address, amount *uint256.Int) (*chain.Receipt, error) {
	return MethodTransfer.Transact(ctx, c.backend, c.token, to, amount)
}

func (c *Client) Mint(ctx context.Context, to types.Address, amount *uint256.Int) (*chain.Receipt, error) {
	return MethodMint.Transact(ctx, c.backend, c.token, to, amount)
}

func (c *Client) TransferOwnership(ctx context.Context, newOwner types.Address) (*chain.Receipt, error) {
	return MethodTransferOwnership.Transact(ctx, c.backend, c.token, newOwner)
}

func (c *Client) SetTransferHook(ctx context.Context, hook types.Address) (*chain.Receipt, error) {
	return MethodSetTransferHook.Transact(ctx, c.backend, c.token, hook)
}

func (c *Client) queryAmount(ctx context.Context, m method.Method, args ...any) (*uint256.Int, error) {
	ret, err := m.Query(ctx, c.backend, c.token, args...)
	if err != nil {
		return nil, err
	}
	return method.AsUint256(ret)
}
