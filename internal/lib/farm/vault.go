package farm

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/TxnLab/autofarm-diamond/internal/lib/diamond"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/strategy"
	"github.com/TxnLab/autofarm-diamond/internal/lib/token"
)

// vault decides how deposited want turns into shares and back. The ledger books the previewed amounts before
// any token moves, then deposit and redeem move the tokens and report what actually happened.
type vault interface {
	previewDeposit(ctx context.Context, call *diamond.Call, wantAmt *uint256.Int) (*uint256.Int, error)
	previewRedeem(ctx context.Context, call *diamond.Call, shares *uint256.Int) (*uint256.Int, error)
	// deposit moves wantAmt, already pulled from the user into the ledger, into the vault and returns the
	// shares minted.
	deposit(ctx context.Context, call *diamond.Call, wantAmt *uint256.Int) (*uint256.Int, error)
	// redeem burns shares and returns the want now held by the ledger for the user.
	redeem(ctx context.Context, call *diamond.Call, shares *uint256.Int) (*uint256.Int, error)
	// totals are the want locked and shares outstanding.
	totals(ctx context.Context, call *diamond.Call) (wantLocked, sharesTotal *uint256.Int, err error)
}

func (s *State) vaultFor(pid uint64) (vault, error) {
	pool, err := s.pool(pid)
	if err != nil {
		return nil, err
	}
	if pool.Strat.IsZero() {
		return &custodyVault{pool: pool}, nil
	}
	return &strategyVault{pool: pool}, nil
}

// custodyVault keeps want in the ledger itself at one share per unit.
type custodyVault struct {
	pool *Pool
}

func (v *custodyVault) previewDeposit(_ context.Context, _ *diamond.Call, wantAmt *uint256.Int) (*uint256.Int, error) {
	return wantAmt.Clone(), nil
}

func (v *custodyVault) previewRedeem(_ context.Context, _ *diamond.Call, shares *uint256.Int) (*uint256.Int, error) {
	return shares.Clone(), nil
}

func (v *custodyVault) deposit(_ context.Context, _ *diamond.Call, wantAmt *uint256.Int) (*uint256.Int, error) {
	return wantAmt.Clone(), nil
}

func (v *custodyVault) redeem(_ context.Context, _ *diamond.Call, shares *uint256.Int) (*uint256.Int, error) {
	return shares.Clone(), nil
}

// the ledger holds exactly one want per share
func (v *custodyVault) totals(context.Context, *diamond.Call) (*uint256.Int, *uint256.Int, error) {
	return v.pool.SharesTotal.Clone(), v.pool.SharesTotal.Clone(), nil
}

// strategyVault hands want to the strategy facet of a companion router.
type strategyVault struct {
	pool *Pool
}

func (v *strategyVault) previewDeposit(ctx context.Context, call *diamond.Call, wantAmt *uint256.Int) (*uint256.Int, error) {
	return v.queryAmount(ctx, call, strategy.MethodPreviewDeposit, wantAmt)
}

func (v *strategyVault) previewRedeem(ctx context.Context, call *diamond.Call, shares *uint256.Int) (*uint256.Int, error) {
	return v.queryAmount(ctx, call, strategy.MethodPreviewRedeem, shares)
}

func (v *strategyVault) deposit(ctx context.Context, call *diamond.Call, wantAmt *uint256.Int) (*uint256.Int, error) {
	if _, err := call.Transact(ctx, v.pool.Want, token.MethodApprove, v.pool.Strat, wantAmt); err != nil {
		return nil, fmt.Errorf("approving strategy %s: %w", v.pool.Strat, err)
	}
	return v.queryAmount(ctx, call, strategy.MethodDeposit, call.Sender, wantAmt)
}

func (v *strategyVault) redeem(ctx context.Context, call *diamond.Call, shares *uint256.Int) (*uint256.Int, error) {
	return v.queryAmount(ctx, call, strategy.MethodWithdraw, call.Sender, shares)
}

func (v *strategyVault) totals(ctx context.Context, call *diamond.Call) (*uint256.Int, *uint256.Int, error) {
	wantLocked, err := v.queryAmount(ctx, call, strategy.MethodWantLockedTotal)
	if err != nil {
		return nil, nil, err
	}
	sharesTotal, err := v.queryAmount(ctx, call, strategy.MethodSharesTotal)
	if err != nil {
		return nil, nil, err
	}
	return wantLocked, sharesTotal, nil
}

func (v *strategyVault) queryAmount(ctx context.Context, call *diamond.Call, m method.Method, args ...any) (*uint256.Int, error) {
	ret, err := call.Transact(ctx, v.pool.Strat, m, args...)
	if err != nil {
		return nil, fmt.Errorf("strategy %s %s: %w", v.pool.Strat, m.Name, err)
	}
	return method.AsUint256(ret)
}
