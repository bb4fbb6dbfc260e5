package farm

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
)

// PoolInfo is a pool as reported by the ledger.
type PoolInfo struct {
	Want              types.Address
	AllocPoint        *uint256.Int
	LastRewardBlock   uint64
	AccRewardPerShare *uint256.Int
	Strat             types.Address
	SharesTotal       *uint256.Int
}

type UserInfo struct {
	Shares     *uint256.Int
	RewardDebt *uint256.Int
}

// Client calls the ledger functions of a farm router.
type Client struct {
	backend method.Backend
	router  types.Address
}

func NewClient(backend method.Backend, router types.Address) *Client {
	return &Client{backend: backend, router: router}
}

func (c *Client) Add(ctx context.Context, allocPoint *uint256.Int, want types.Address, withUpdate bool, strat types.Address) (*chain.Receipt, error) {
	return MethodAdd.Transact(ctx, c.backend, c.router, allocPoint, want, withUpdate, strat)
}

func (c *Client) Set(ctx context.Context, pid uint64, allocPoint *uint256.Int, withUpdate bool) (*chain.Receipt, error) {
	return MethodSet.Transact(ctx, c.backend, c.router, pid, allocPoint, withUpdate)
}

func (c *Client) Deposit(ctx context.Context, pid uint64, wantAmt *uint256.Int) (*chain.Receipt, error) {
	return MethodDeposit.Transact(ctx, c.backend, c.router, pid, wantAmt)
}

func (c *Client) Withdraw(ctx context.Context, pid uint64, shares *uint256.Int) (*chain.Receipt, error) {
	return MethodWithdraw.Transact(ctx, c.backend, c.router, pid, shares)
}

func (c *Client) WithdrawAll(ctx context.Context, pid uint64) (*chain.Receipt, error) {
	return MethodWithdrawAll.Transact(ctx, c.backend, c.router, pid)
}

// EmergencyWithdraw returns the want amount sent back, decoded from the receipt.
func (c *Client) EmergencyWithdraw(ctx context.Context, pid uint64) (*uint256.Int, *chain.Receipt, error) {
	receipt, err := MethodEmergencyWithdraw.Transact(ctx, c.backend, c.router, pid)
	if err != nil {
		return nil, nil, err
	}
	ret, err := MethodEmergencyWithdraw.DecodeReturn(receipt.Return)
	if err != nil {
		return nil, receipt, err
	}
	amount, err := method.AsUint256(ret)
	return amount, receipt, err
}

func (c *Client) MassUpdatePools(ctx context.Context) (*chain.Receipt, error) {
	return MethodMassUpdatePools.Transact(ctx, c.backend, c.router)
}

func (c *Client) UpdatePool(ctx context.Context, pid uint64) (*chain.Receipt, error) {
	return MethodUpdatePool.Transact(ctx, c.backend, c.router, pid)
}

func (c *Client) SetRewardPerBlock(ctx context.Context, amount *uint256.Int) (*chain.Receipt, error) {
	return MethodSetRewardPerBlock.Transact(ctx, c.backend, c.router, amount)
}

func (c *Client) InCaseTokensGetStuck(ctx context.Context, tok types.Address, amount *uint256.Int) (*chain.Receipt, error) {
	return MethodInCaseTokensGetStuck.Transact(ctx, c.backend, c.router, tok, amount)
}

func (c *Client) PoolLength(ctx context.Context) (uint64, error) {
	ret, err := MethodPoolLength.Query(ctx, c.backend, c.router)
	if err != nil {
		return 0, err
	}
	return method.AsUint64(ret)
}

func (c *Client) PoolInfo(ctx context.Context, pid uint64) (*PoolInfo, error) {
	ret, err := MethodPoolInfo.Query(ctx, c.backend, c.router, pid)
	if err != nil {
		return nil, err
	}
	fields, err := method.AsList(ret)
	if err != nil {
		return nil, err
	}
	if len(fields) != 6 {
		return nil, fmt.Errorf("%w: poolInfo returned %d fields", method.ErrInvalidPayload, len(fields))
	}
	var info PoolInfo
	if info.Want, err = method.AsAddress(fields[0]); err != nil {
		return nil, err
	}
	if info.AllocPoint, err = method.AsUint256(fields[1]); err != nil {
		return nil, err
	}
	if info.LastRewardBlock, err = method.AsUint64(fields[2]); err != nil {
		return nil, err
	}
	if info.AccRewardPerShare, err = method.AsUint256(fields[3]); err != nil {
		return nil, err
	}
	if info.Strat, err = method.AsAddress(fields[4]); err != nil {
		return nil, err
	}
	if info.SharesTotal, err = method.AsUint256(fields[5]); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) UserInfo(ctx context.Context, pid uint64, user types.Address) (*UserInfo, error) {
	ret, err := MethodUserInfo.Query(ctx, c.backend, c.router, pid, user)
	if err != nil {
		return nil, err
	}
	fields, err := method.AsList(ret)
	if err != nil {
		return nil, err
	}
	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: userInfo returned %d fields", method.ErrInvalidPayload, len(fields))
	}
	var info UserInfo
	if info.Shares, err = method.AsUint256(fields[0]); err != nil {
		return nil, err
	}
	if info.RewardDebt, err = method.AsUint256(fields[1]); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) PendingReward(ctx context.Context, pid uint64, user types.Address) (*uint256.Int, error) {
	return c.queryAmount(ctx, MethodPendingReward, pid, user)
}

func (c *Client) StakedWantTokens(ctx context.Context, pid uint64, user types.Address) (*uint256.Int, error) {
	return c.queryAmount(ctx, MethodStakedWantTokens, pid, user)
}

func (c *Client) TotalAllocPoint(ctx context.Context) (*uint256.Int, error) {
	return c.queryAmount(ctx, MethodTotalAllocPoint)
}

func (c *Client) RewardToken(ctx context.Context) (types.Address, error) {
	ret, err := MethodRewardToken.Query(ctx, c.backend, c.router)
	if err != nil {
		return types.Address{}, err
	}
	return method.AsAddress(ret)
}

func (c *Client) queryAmount(ctx context.Context, m method.Method, args ...any) (*uint256.Int, error) {
	ret, err := m.Query(ctx, c.backend, c.router, args...)
	if err != nil {
		return nil, err
	}
	return method.AsUint256(ret)
}
