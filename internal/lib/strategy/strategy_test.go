package strategy_test

import (
	"context"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/deploy"
	"github.com/TxnLab/autofarm-diamond/internal/lib/diamond"
	"github.com/TxnLab/autofarm-diamond/internal/lib/farm"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
	"github.com/TxnLab/autofarm-diamond/internal/lib/strategy"
	"github.com/TxnLab/autofarm-diamond/internal/lib/token"
)

func eth(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

type fixture struct {
	chain *chain.Chain
	owner *chain.Session
	alice *chain.Session
	dep   *deploy.Deployment
	want  types.Address
}

// newFixture deploys both routers w/ pool 0 running on the strategy router, and gives alice 100 want.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	c := chain.New(misc.DiscardLogger())
	f := &fixture{
		chain: c,
		owner: c.Session(crypto.GenerateAccount().Address),
		alice: c.Session(crypto.GenerateAccount().Address),
	}
	deployer := deploy.NewDeployer(misc.DiscardLogger(), c, f.owner)
	dep, err := deployer.DeployDiamonds(ctx)
	require.NoError(t, err)
	f.dep = dep

	f.want, err = c.Deploy(ctx, token.New("MyToken1", "MT1", 18, f.owner.From()))
	require.NoError(t, err)
	reward, err := c.Deploy(ctx, token.New("AUTOv2", "AUTO", 18, f.owner.From()))
	require.NoError(t, err)
	require.NoError(t, deployer.Configure(ctx, dep, reward, f.want))

	_, err = farm.NewClient(f.owner, dep.Farm.Router).Add(ctx, uint256.NewInt(100), f.want, false, dep.Strategy.Router)
	require.NoError(t, err)
	_, err = token.NewClient(f.owner, f.want).Mint(ctx, f.alice.From(), eth(100))
	require.NoError(t, err)
	return f
}

func (f *fixture) strategy(s *chain.Session) *strategy.Client {
	return strategy.NewClient(s, f.dep.Strategy.Router)
}

func (f *fixture) farmDeposit(amount *uint256.Int) error {
	ctx := context.Background()
	if _, err := token.NewClient(f.alice, f.want).Approve(ctx, f.dep.Farm.Router, amount); err != nil {
		return err
	}
	_, err := farm.NewClient(f.alice, f.dep.Farm.Router).Deposit(ctx, 0, amount)
	return err
}

func TestOnlyFarmMovesTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := token.NewClient(f.alice, f.want).Approve(ctx, f.dep.Strategy.Router, eth(1))
	require.NoError(t, err)
	_, err = strategy.MethodDeposit.Transact(ctx, f.alice, f.dep.Strategy.Router, f.alice.From(), eth(1))
	assert.ErrorIs(t, err, strategy.ErrNotFarm)
	_, err = strategy.MethodWithdraw.Transact(ctx, f.alice, f.dep.Strategy.Router, f.alice.From(), eth(1))
	assert.ErrorIs(t, err, strategy.ErrNotFarm)

	require.NoError(t, f.farmDeposit(eth(1)))
	shares, err := f.strategy(f.alice).SharesTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, eth(1), shares)
	locked, err := f.strategy(f.alice).WantLockedTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, eth(1), locked)
}

func TestPause(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.strategy(f.alice).Pause(ctx)
	assert.ErrorIs(t, err, diamond.ErrUnauthorized)

	_, err = f.strategy(f.owner).Pause(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, f.farmDeposit(eth(1)), strategy.ErrPaused)

	_, err = f.strategy(f.owner).Unpause(ctx)
	require.NoError(t, err)
	assert.NoError(t, f.farmDeposit(eth(1)))
}

func TestEntranceFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.strategy(f.owner)

	for _, factor := range []uint64{strategy.EntranceFeeFactorLL - 1, strategy.EntranceFeeFactorMax + 1} {
		_, err := owner.SetEntranceFeeFactor(ctx, factor)
		assert.ErrorIs(t, err, strategy.ErrInvalidFee, "factor %d", factor)
	}
	_, err := f.strategy(f.alice).SetEntranceFeeFactor(ctx, strategy.EntranceFeeFactorLL)
	assert.ErrorIs(t, err, diamond.ErrUnauthorized)

	_, err = owner.SetEntranceFeeFactor(ctx, strategy.EntranceFeeFactorLL)
	require.NoError(t, err)

	// the first deposit is 1:1, later ones pay the fee in shares
	require.NoError(t, f.farmDeposit(eth(1)))
	preview, err := owner.PreviewDeposit(ctx, eth(1))
	require.NoError(t, err)
	expected := new(uint256.Int).Div(new(uint256.Int).Mul(eth(1), uint256.NewInt(strategy.EntranceFeeFactorLL)), uint256.NewInt(strategy.EntranceFeeFactorMax))
	assert.Equal(t, expected, preview)

	require.NoError(t, f.farmDeposit(eth(1)))
	ledger := farm.NewClient(f.alice, f.dep.Farm.Router)
	info, err := ledger.UserInfo(ctx, 0, f.alice.From())
	require.NoError(t, err)
	assert.Equal(t, new(uint256.Int).Add(eth(1), expected), info.Shares)

	// every share redeems its cut of all the locked want
	staked, err := ledger.StakedWantTokens(ctx, 0, f.alice.From())
	require.NoError(t, err)
	assert.Equal(t, eth(2), staked)

	_, err = ledger.WithdrawAll(ctx, 0)
	require.NoError(t, err)
	balance, err := token.NewClient(f.alice, f.want).BalanceOf(ctx, f.alice.From())
	require.NoError(t, err)
	assert.Equal(t, eth(100), balance)
}

func TestPreviewRedeem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	none, err := f.strategy(f.alice).PreviewRedeem(ctx, eth(1))
	require.NoError(t, err)
	assert.True(t, none.IsZero())

	require.NoError(t, f.farmDeposit(eth(4)))
	half, err := f.strategy(f.alice).PreviewRedeem(ctx, eth(2))
	require.NoError(t, err)
	assert.Equal(t, eth(2), half)
}
