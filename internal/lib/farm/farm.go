package farm

import (
	"context"
	"fmt"
	"strconv"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/diamond"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
	"github.com/TxnLab/autofarm-diamond/internal/lib/token"
)

const FacetKind = "farm.autofarmv2"

var (
	MethodAdd                  = method.MustParse("add(uint256,address,bool,address)void")
	MethodSet                  = method.MustParse("set(uint64,uint256,bool)void")
	MethodDeposit              = method.MustParse("deposit(uint64,uint256)void")
	MethodWithdraw             = method.MustParse("withdraw(uint64,uint256)void")
	MethodWithdrawAll          = method.MustParse("withdrawAll(uint64)void")
	MethodEmergencyWithdraw    = method.MustParse("emergencyWithdraw(uint64)uint256")
	MethodPoolLength           = method.MustParse("poolLength()uint64")
	MethodPoolInfo             = method.MustParse("poolInfo(uint64)(address,uint256,uint64,uint256,address,uint256)")
	MethodUserInfo             = method.MustParse("userInfo(uint64,address)(uint256,uint256)")
	MethodPendingReward        = method.MustParse("pendingReward(uint64,address)uint256")
	MethodStakedWantTokens     = method.MustParse("stakedWantTokens(uint64,address)uint256")
	MethodMassUpdatePools      = method.MustParse("massUpdatePools()void")
	MethodUpdatePool           = method.MustParse("updatePool(uint64)void")
	MethodTotalAllocPoint      = method.MustParse("totalAllocPoint()uint256")
	MethodRewardToken          = method.MustParse("rewardToken()address")
	MethodRewardPerBlock       = method.MustParse("rewardPerBlock()uint256")
	MethodGetMultiplier        = method.MustParse("getMultiplier(uint64,uint64)uint256")
	MethodSetRewardPerBlock    = method.MustParse("setRewardPerBlock(uint256)void")
	MethodInCaseTokensGetStuck = method.MustParse("inCaseTokensGetStuck(address,uint256)void")
)

var functions = diamond.NewFunctionTable(
	diamond.Function{Method: MethodAdd, Handler: add},
	diamond.Function{Method: MethodSet, Handler: set},
	diamond.Function{Method: MethodDeposit, Handler: deposit},
	diamond.Function{Method: MethodWithdraw, Handler: withdraw},
	diamond.Function{Method: MethodWithdrawAll, Handler: withdrawAll},
	diamond.Function{Method: MethodEmergencyWithdraw, Handler: emergencyWithdraw},
	diamond.Function{Method: MethodPoolLength, Handler: poolLength},
	diamond.Function{Method: MethodPoolInfo, Handler: poolInfo},
	diamond.Function{Method: MethodUserInfo, Handler: userInfo},
	diamond.Function{Method: MethodPendingReward, Handler: pendingReward},
	diamond.Function{Method: MethodStakedWantTokens, Handler: stakedWantTokens},
	diamond.Function{Method: MethodMassUpdatePools, Handler: massUpdatePools},
	diamond.Function{Method: MethodUpdatePool, Handler: updatePool},
	diamond.Function{Method: MethodTotalAllocPoint, Handler: totalAllocPoint},
	diamond.Function{Method: MethodRewardToken, Handler: rewardToken},
	diamond.Function{Method: MethodRewardPerBlock, Handler: rewardPerBlock},
	diamond.Function{Method: MethodGetMultiplier, Handler: getMultiplier},
	diamond.Function{Method: MethodSetRewardPerBlock, Handler: setRewardPerBlock},
	diamond.Function{Method: MethodInCaseTokensGetStuck, Handler: inCaseTokensGetStuck},
)

// Facet is the accounting ledger: a table of pools, each user's shares in them and the reward checkpoints
// used to pay out the reward token.
type Facet struct {
	diamond.FacetBase
}

func NewFacet() *Facet {
	return &Facet{FacetBase: diamond.NewFacetBase(FacetKind, functions)}
}

func poolNotFound(pid uint64) error {
	return fmt.Errorf("%w: %d", ErrPoolNotFound, pid)
}

func add(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	if err := call.RequireOwner(); err != nil {
		return nil, err
	}
	unlock, err := call.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	allocPoint, err := args.Uint256(0)
	if err != nil {
		return nil, err
	}
	want, err := args.Address(1)
	if err != nil {
		return nil, err
	}
	withUpdate, err := args.Bool(2)
	if err != nil {
		return nil, err
	}
	strat, err := args.Address(3)
	if err != nil {
		return nil, err
	}
	if want.IsZero() {
		return nil, fmt.Errorf("%w: want token", ErrZeroAddress)
	}
	if !strat.IsZero() {
		if _, found := call.Env.CodeAt(strat); !found {
			return nil, fmt.Errorf("%w: %s", ErrNoStrategyCode, strat)
		}
	}

	state := StateOf(call.Storage)
	if withUpdate {
		if err := massUpdate(ctx, call, state); err != nil {
			return nil, err
		}
	}
	lastRewardBlock := max(call.Env.BlockHeight(), state.StartBlock)
	state.TotalAllocPoint.Add(&state.TotalAllocPoint, allocPoint)
	state.Pools = append(state.Pools, Pool{
		Want:            want,
		AllocPoint:      *allocPoint,
		LastRewardBlock: lastRewardBlock,
		Strat:           strat,
	})
	pid := uint64(len(state.Pools) - 1)

	call.Emit("PoolAdded", map[string]string{
		"pid":        strconv.FormatUint(pid, 10),
		"want":       want.String(),
		"allocPoint": allocPoint.Dec(),
		"strat":      strat.String(),
	})
	misc.Infof(call.Logger(), "farm %s: added pool %d want:%s alloc:%s strat:%s", call.Self, pid, want, allocPoint.Dec(), strat)
	return nil, nil
}

func set(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	if err := call.RequireOwner(); err != nil {
		return nil, err
	}
	unlock, err := call.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	pid, err := args.Uint64(0)
	if err != nil {
		return nil, err
	}
	allocPoint, err := args.Uint256(1)
	if err != nil {
		return nil, err
	}
	withUpdate, err := args.Bool(2)
	if err != nil {
		return nil, err
	}
	state := StateOf(call.Storage)
	if _, err := state.pool(pid); err != nil {
		return nil, err
	}
	if withUpdate {
		if err := massUpdate(ctx, call, state); err != nil {
			return nil, err
		}
	}
	pool := &state.Pools[pid]
	state.TotalAllocPoint.Sub(&state.TotalAllocPoint, &pool.AllocPoint)
	state.TotalAllocPoint.Add(&state.TotalAllocPoint, allocPoint)
	pool.AllocPoint = *allocPoint

	call.Emit("PoolSet", map[string]string{
		"pid":        strconv.FormatUint(pid, 10),
		"allocPoint": allocPoint.Dec(),
	})
	misc.Infof(call.Logger(), "farm %s: set pool %d alloc:%s", call.Self, pid, allocPoint.Dec())
	return nil, nil
}

func deposit(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	unlock, err := call.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	pid, err := args.Uint64(0)
	if err != nil {
		return nil, err
	}
	wantAmt, err := args.Uint256(1)
	if err != nil {
		return nil, err
	}
	state := StateOf(call.Storage)
	v, err := state.vaultFor(pid)
	if err != nil {
		return nil, err
	}
	if wantAmt.IsZero() {
		return nil, ErrInvalidAmount
	}
	if err := updatePoolRewards(ctx, call, state, pid); err != nil {
		return nil, err
	}
	shares, err := v.previewDeposit(ctx, call, wantAmt)
	if err != nil {
		return nil, err
	}
	if shares.IsZero() {
		return nil, fmt.Errorf("%w: %s want mints no shares", ErrInvalidAmount, wantAmt.Dec())
	}

	// book everything before any token moves
	pool := &state.Pools[pid]
	pos := state.position(pid, call.Sender)
	pending := pendingOf(&pos, &pool.AccRewardPerShare)
	pos.Shares.Add(&pos.Shares, shares)
	pool.SharesTotal.Add(&pool.SharesTotal, shares)
	pos.RewardDebt = *rewardDebtOf(&pos.Shares, &pool.AccRewardPerShare)
	state.setPosition(pid, call.Sender, pos)
	want, strat := pool.Want, pool.Strat

	if err := safeRewardTransfer(ctx, call, state, call.Sender, pending); err != nil {
		return nil, err
	}
	if _, err := call.Transact(ctx, want, token.MethodTransferFrom, call.Sender, call.Self, wantAmt); err != nil {
		return nil, fmt.Errorf("pulling %s want from %s: %w", wantAmt.Dec(), call.Sender, err)
	}
	minted, err := v.deposit(ctx, call, wantAmt)
	if err != nil {
		return nil, err
	}
	if !minted.Eq(shares) {
		return nil, fmt.Errorf("%w: strategy %s minted %s shares, expected %s", ErrStrategyMismatch, strat, minted.Dec(), shares.Dec())
	}

	call.Emit("Deposit", map[string]string{
		"user":   call.Sender.String(),
		"pid":    strconv.FormatUint(pid, 10),
		"amount": wantAmt.Dec(),
		"shares": shares.Dec(),
	})
	return nil, nil
}

func withdraw(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	unlock, err := call.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	pid, err := args.Uint64(0)
	if err != nil {
		return nil, err
	}
	shares, err := args.Uint256(1)
	if err != nil {
		return nil, err
	}
	if shares.IsZero() {
		return nil, ErrInvalidAmount
	}
	return nil, withdrawShares(ctx, call, pid, shares)
}

func withdrawAll(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	unlock, err := call.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	pid, err := args.Uint64(0)
	if err != nil {
		return nil, err
	}
	state := StateOf(call.Storage)
	if _, err := state.pool(pid); err != nil {
		return nil, err
	}
	pos := state.position(pid, call.Sender)
	return nil, withdrawShares(ctx, call, pid, &pos.Shares)
}

// withdrawShares burns shares of the caller's position, pays out pending rewards and returns the
// proportional want.
func withdrawShares(ctx context.Context, call *diamond.Call, pid uint64, shares *uint256.Int) error {
	state := StateOf(call.Storage)
	v, err := state.vaultFor(pid)
	if err != nil {
		return err
	}
	pos := state.position(pid, call.Sender)
	if pos.Shares.IsZero() || pos.Shares.Lt(shares) {
		return fmt.Errorf("%w: %s holds %s, withdrawing %s", ErrInsufficientShares, call.Sender, pos.Shares.Dec(), shares.Dec())
	}
	shares = shares.Clone()
	if err := updatePoolRewards(ctx, call, state, pid); err != nil {
		return err
	}
	wantAmt, err := v.previewRedeem(ctx, call, shares)
	if err != nil {
		return err
	}

	// book everything before any token moves
	pool := &state.Pools[pid]
	pending := pendingOf(&pos, &pool.AccRewardPerShare)
	pos.Shares.Sub(&pos.Shares, shares)
	pool.SharesTotal.Sub(&pool.SharesTotal, shares)
	pos.RewardDebt = *rewardDebtOf(&pos.Shares, &pool.AccRewardPerShare)
	state.setPosition(pid, call.Sender, pos)
	want, strat := pool.Want, pool.Strat

	if err := safeRewardTransfer(ctx, call, state, call.Sender, pending); err != nil {
		return err
	}
	if err := redeemTo(ctx, call, v, want, strat, shares, wantAmt); err != nil {
		return err
	}
	call.Emit("Withdraw", map[string]string{
		"user":   call.Sender.String(),
		"pid":    strconv.FormatUint(pid, 10),
		"amount": wantAmt.Dec(),
		"shares": shares.Dec(),
	})
	return nil
}

// emergencyWithdraw returns the caller's whole position w/out settling rewards. A caller w/out shares gets 0.
func emergencyWithdraw(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	unlock, err := call.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	pid, err := args.Uint64(0)
	if err != nil {
		return nil, err
	}
	state := StateOf(call.Storage)
	v, err := state.vaultFor(pid)
	if err != nil {
		return nil, err
	}
	pos := state.position(pid, call.Sender)
	if pos.Shares.IsZero() {
		return new(uint256.Int), nil
	}
	shares := pos.Shares.Clone()
	wantAmt, err := v.previewRedeem(ctx, call, shares)
	if err != nil {
		return nil, err
	}

	pool := &state.Pools[pid]
	pool.SharesTotal.Sub(&pool.SharesTotal, shares)
	state.setPosition(pid, call.Sender, Position{})
	want, strat := pool.Want, pool.Strat

	if err := redeemTo(ctx, call, v, want, strat, shares, wantAmt); err != nil {
		return nil, err
	}
	call.Emit("EmergencyWithdraw", map[string]string{
		"user":   call.Sender.String(),
		"pid":    strconv.FormatUint(pid, 10),
		"amount": wantAmt.Dec(),
	})
	misc.Warnf(call.Logger(), "farm %s: emergency withdraw by %s from pool %d, want:%s", call.Self, call.Sender, pid, wantAmt.Dec())
	return wantAmt, nil
}

// redeemTo has the vault burn shares and sends the want to the caller.
func redeemTo(ctx context.Context, call *diamond.Call, v vault, want, strat types.Address, shares, wantAmt *uint256.Int) error {
	redeemed, err := v.redeem(ctx, call, shares)
	if err != nil {
		return err
	}
	if !redeemed.Eq(wantAmt) {
		return fmt.Errorf("%w: strategy %s returned %s want, expected %s", ErrStrategyMismatch, strat, redeemed.Dec(), wantAmt.Dec())
	}
	if wantAmt.IsZero() {
		return nil
	}
	if _, err := call.Transact(ctx, want, token.MethodTransfer, call.Sender, wantAmt); err != nil {
		return fmt.Errorf("returning %s want to %s: %w", wantAmt.Dec(), call.Sender, err)
	}
	return nil
}

func poolLength(_ context.Context, call *diamond.Call, _ method.Args) (any, error) {
	return uint64(len(StateOf(call.Storage).Pools)), nil
}

func poolInfo(_ context.Context, call *diamond.Call, args method.Args) (any, error) {
	pid, err := args.Uint64(0)
	if err != nil {
		return nil, err
	}
	pool, err := StateOf(call.Storage).pool(pid)
	if err != nil {
		return nil, err
	}
	return []any{
		pool.Want,
		pool.AllocPoint.Clone(),
		pool.LastRewardBlock,
		pool.AccRewardPerShare.Clone(),
		pool.Strat,
		pool.SharesTotal.Clone(),
	}, nil
}

func userInfo(_ context.Context, call *diamond.Call, args method.Args) (any, error) {
	pid, err := args.Uint64(0)
	if err != nil {
		return nil, err
	}
	user, err := args.Address(1)
	if err != nil {
		return nil, err
	}
	state := StateOf(call.Storage)
	if _, err := state.pool(pid); err != nil {
		return nil, err
	}
	pos := state.position(pid, user)
	return []any{pos.Shares.Clone(), pos.RewardDebt.Clone()}, nil
}

func pendingReward(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	pid, err := args.Uint64(0)
	if err != nil {
		return nil, err
	}
	user, err := args.Address(1)
	if err != nil {
		return nil, err
	}
	state := StateOf(call.Storage)
	pool, err := state.pool(pid)
	if err != nil {
		return nil, err
	}
	acc := pool.AccRewardPerShare.Clone()
	block := call.Env.BlockHeight()
	if block > pool.LastRewardBlock && !pool.SharesTotal.IsZero() {
		multiplier, err := multiplierOf(ctx, call, state, pool.LastRewardBlock, block)
		if err != nil {
			return nil, err
		}
		reward := poolReward(state, pool, multiplier)
		perShare, _ := new(uint256.Int).MulDivOverflow(reward, accPrecision, &pool.SharesTotal)
		acc.Add(acc, perShare)
	}
	pos := state.position(pid, user)
	return pendingOf(&pos, acc), nil
}

func stakedWantTokens(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	pid, err := args.Uint64(0)
	if err != nil {
		return nil, err
	}
	user, err := args.Address(1)
	if err != nil {
		return nil, err
	}
	state := StateOf(call.Storage)
	v, err := state.vaultFor(pid)
	if err != nil {
		return nil, err
	}
	wantLocked, sharesTotal, err := v.totals(ctx, call)
	if err != nil {
		return nil, err
	}
	if sharesTotal.IsZero() {
		return new(uint256.Int), nil
	}
	pos := state.position(pid, user)
	staked, _ := new(uint256.Int).MulDivOverflow(&pos.Shares, wantLocked, sharesTotal)
	return staked, nil
}

func massUpdatePools(ctx context.Context, call *diamond.Call, _ method.Args) (any, error) {
	unlock, err := call.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return nil, massUpdate(ctx, call, StateOf(call.Storage))
}

func updatePool(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	unlock, err := call.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	pid, err := args.Uint64(0)
	if err != nil {
		return nil, err
	}
	return nil, updatePoolRewards(ctx, call, StateOf(call.Storage), pid)
}

func massUpdate(ctx context.Context, call *diamond.Call, state *State) error {
	for pid := range state.Pools {
		if err := updatePoolRewards(ctx, call, state, uint64(pid)); err != nil {
			return err
		}
	}
	return nil
}

// updatePoolRewards brings a pool's reward checkpoint up to the current block, minting the rewards accrued
// since the last one.
func updatePoolRewards(ctx context.Context, call *diamond.Call, state *State, pid uint64) error {
	pool, err := state.pool(pid)
	if err != nil {
		return err
	}
	block := call.Env.BlockHeight()
	if block <= pool.LastRewardBlock {
		return nil
	}
	if pool.SharesTotal.IsZero() {
		pool.LastRewardBlock = block
		return nil
	}
	multiplier, err := multiplierOf(ctx, call, state, pool.LastRewardBlock, block)
	if err != nil {
		return err
	}
	if multiplier.IsZero() {
		return nil
	}
	reward := poolReward(state, pool, multiplier)
	perShare, _ := new(uint256.Int).MulDivOverflow(reward, accPrecision, &pool.SharesTotal)
	pool.AccRewardPerShare.Add(&pool.AccRewardPerShare, perShare)
	pool.LastRewardBlock = block
	if reward.IsZero() || state.RewardToken.IsZero() {
		return nil
	}

	ownerReward, _ := new(uint256.Int).MulDivOverflow(reward, uint256.NewInt(state.OwnerRewardPerMille), uint256.NewInt(1000))
	if !ownerReward.IsZero() {
		if _, err := call.Transact(ctx, state.RewardToken, token.MethodMint, call.Storage.Owner, ownerReward); err != nil {
			return fmt.Errorf("minting owner reward: %w", err)
		}
	}
	if _, err := call.Transact(ctx, state.RewardToken, token.MethodMint, call.Self, reward); err != nil {
		return fmt.Errorf("minting pool %d reward: %w", pid, err)
	}
	return nil
}

// poolReward is the pool's weighted share of the reward emitted over multiplier blocks.
func poolReward(state *State, pool *Pool, multiplier *uint256.Int) *uint256.Int {
	if state.TotalAllocPoint.IsZero() {
		return new(uint256.Int)
	}
	emitted := new(uint256.Int).Mul(multiplier, &state.RewardPerBlock)
	reward, _ := new(uint256.Int).MulDivOverflow(emitted, &pool.AllocPoint, &state.TotalAllocPoint)
	return reward
}

// multiplierOf is the number of rewarded blocks in (from, to], 0 once the reward token reached its max supply.
func multiplierOf(ctx context.Context, call *diamond.Call, state *State, from, to uint64) (*uint256.Int, error) {
	if !state.RewardToken.IsZero() {
		ret, err := call.Transact(ctx, state.RewardToken, token.MethodTotalSupply)
		if err != nil {
			return nil, fmt.Errorf("reading reward supply: %w", err)
		}
		supply, err := method.AsUint256(ret)
		if err != nil {
			return nil, err
		}
		if !supply.Lt(&state.RewardMaxSupply) {
			return new(uint256.Int), nil
		}
	}
	if to <= from {
		return new(uint256.Int), nil
	}
	return uint256.NewInt(to - from), nil
}

func pendingOf(pos *Position, acc *uint256.Int) *uint256.Int {
	accrued := rewardDebtOf(&pos.Shares, acc)
	if accrued.Lt(&pos.RewardDebt) {
		return new(uint256.Int)
	}
	return accrued.Sub(accrued, &pos.RewardDebt)
}

func rewardDebtOf(shares, acc *uint256.Int) *uint256.Int {
	debt, _ := new(uint256.Int).MulDivOverflow(shares, acc, accPrecision)
	return debt
}

// safeRewardTransfer pays out reward, capped at what the ledger holds.
func safeRewardTransfer(ctx context.Context, call *diamond.Call, state *State, to types.Address, reward *uint256.Int) error {
	if reward.IsZero() || state.RewardToken.IsZero() {
		return nil
	}
	ret, err := call.Transact(ctx, state.RewardToken, token.MethodBalanceOf, call.Self)
	if err != nil {
		return err
	}
	balance, err := method.AsUint256(ret)
	if err != nil {
		return err
	}
	amount := reward
	if balance.Lt(reward) {
		amount = balance
	}
	if amount.IsZero() {
		return nil
	}
	if _, err := call.Transact(ctx, state.RewardToken, token.MethodTransfer, to, amount); err != nil {
		return fmt.Errorf("paying %s reward to %s: %w", amount.Dec(), to, err)
	}
	return nil
}

func totalAllocPoint(_ context.Context, call *diamond.Call, _ method.Args) (any, error) {
	return StateOf(call.Storage).TotalAllocPoint.Clone(), nil
}

func rewardToken(_ context.Context, call *diamond.Call, _ method.Args) (any, error) {
	return StateOf(call.Storage).RewardToken, nil
}

func rewardPerBlock(_ context.Context, call *diamond.Call, _ method.Args) (any, error) {
	return StateOf(call.Storage).RewardPerBlock.Clone(), nil
}

func getMultiplier(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	from, err := args.Uint64(0)
	if err != nil {
		return nil, err
	}
	to, err := args.Uint64(1)
	if err != nil {
		return nil, err
	}
	return multiplierOf(ctx, call, StateOf(call.Storage), from, to)
}

func setRewardPerBlock(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	if err := call.RequireOwner(); err != nil {
		return nil, err
	}
	unlock, err := call.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	amount, err := args.Uint256(0)
	if err != nil {
		return nil, err
	}
	state := StateOf(call.Storage)
	// accrue at the old rate up to now
	if err := massUpdate(ctx, call, state); err != nil {
		return nil, err
	}
	state.RewardPerBlock = *amount
	misc.Infof(call.Logger(), "farm %s: reward per block set to %s", call.Self, amount.Dec())
	return nil, nil
}

func inCaseTokensGetStuck(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	if err := call.RequireOwner(); err != nil {
		return nil, err
	}
	tok, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	amount, err := args.Uint256(1)
	if err != nil {
		return nil, err
	}
	state := StateOf(call.Storage)
	if tok == state.RewardToken {
		return nil, fmt.Errorf("%w: %s", ErrRewardToken, tok)
	}
	if owed := state.custodyOwed(tok); !owed.IsZero() {
		ret, err := call.Transact(ctx, tok, token.MethodBalanceOf, call.Self)
		if err != nil {
			return nil, err
		}
		balance, err := method.AsUint256(ret)
		if err != nil {
			return nil, err
		}
		free := new(uint256.Int)
		if balance.Gt(owed) {
			free.Sub(balance, owed)
		}
		if amount.Gt(free) {
			return nil, fmt.Errorf("%w: %s of %s is staked, %s free, sweeping %s", ErrCustodyFunds, owed.Dec(), tok, free.Dec(), amount.Dec())
		}
	}
	if _, err := call.Transact(ctx, tok, token.MethodTransfer, call.Sender, amount); err != nil {
		return nil, err
	}
	return nil, nil
}

func init() {
	chain.RegisterKind(FacetKind, func() chain.Contract { return NewFacet() })
}
