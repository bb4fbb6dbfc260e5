package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/deploy"
	"github.com/TxnLab/autofarm-diamond/internal/lib/farm"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
	"github.com/TxnLab/autofarm-diamond/internal/lib/token"
)

func eth(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

func unsetEnv(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoadDaemonConfig(t *testing.T) {
	dir := t.TempDir()
	unsetEnv(t, "FARM_CONFIG", "FARM_METRICS_ADDR", "FARM_STORE_TIMEOUT")
	t.Setenv("FARM_DATADIR", dir)
	t.Setenv("FARM_BLOCK_INTERVAL", "250ms")

	cfg, err := LoadDaemonConfig()
	require.NoError(t, err)
	assert.Equal(t, DaemonConfig{
		DataDir:       dir,
		ConfigFile:    filepath.Join(dir, deploymentFileName),
		MetricsAddr:   ":9100",
		BlockInterval: 250 * time.Millisecond,
		StoreTimeout:  2 * time.Second,
	}, cfg)

	t.Setenv("FARM_CONFIG", "/tmp/elsewhere.json")
	cfg, err = LoadDaemonConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere.json", cfg.ConfigFile)
}

func TestLoadDaemonConfigErrors(t *testing.T) {
	t.Setenv("FARM_DATADIR", t.TempDir())
	for _, interval := range []string{"0s", "-1s", "soon"} {
		t.Run(interval, func(t *testing.T) {
			t.Setenv("FARM_BLOCK_INTERVAL", interval)
			_, err := LoadDaemonConfig()
			assert.Error(t, err)
		})
	}
}

// seedChain deploys both routers into a fresh chain store under dir, adds a custody pool (0) and a strategy
// pool (1) and stakes 5 want into the strategy pool.
func seedChain(t *testing.T, dir string) *DeploymentInfo {
	t.Helper()
	ctx := context.Background()
	store, err := chain.OpenBoltStore(filepath.Join(dir, chainDBName), time.Second)
	require.NoError(t, err)
	defer store.Close()

	c := chain.New(misc.DiscardLogger())
	owner := c.Session(crypto.GenerateAccount().Address)
	staker := c.Session(crypto.GenerateAccount().Address)

	deployer := deploy.NewDeployer(misc.DiscardLogger(), c, owner)
	dep, err := deployer.DeployDiamonds(ctx)
	require.NoError(t, err)
	want, err := c.Deploy(ctx, token.New("MyToken1", "MT1", 18, owner.From()))
	require.NoError(t, err)
	reward, err := c.Deploy(ctx, token.New("AUTOv2", "AUTO", 18, owner.From()))
	require.NoError(t, err)
	require.NoError(t, deployer.Configure(ctx, dep, reward, want))

	ledger := farm.NewClient(owner, dep.Farm.Router)
	_, err = ledger.Add(ctx, uint256.NewInt(100), want, false, types.Address{})
	require.NoError(t, err)
	_, err = ledger.Add(ctx, uint256.NewInt(300), want, false, dep.Strategy.Router)
	require.NoError(t, err)

	_, err = token.NewClient(owner, want).Mint(ctx, staker.From(), eth(5))
	require.NoError(t, err)
	_, err = token.NewClient(staker, want).Approve(ctx, dep.Farm.Router, eth(5))
	require.NoError(t, err)
	_, err = farm.NewClient(staker, dep.Farm.Router).Deposit(ctx, 1, eth(5))
	require.NoError(t, err)

	require.NoError(t, store.Save(c))
	info := NewDeploymentInfo(owner.From(), dep, reward, want)
	require.NoError(t, SaveDeploymentInfo(filepath.Join(dir, deploymentFileName), info))
	return info
}

func testDaemonConfig(dir string) DaemonConfig {
	return DaemonConfig{
		DataDir:       dir,
		ConfigFile:    filepath.Join(dir, deploymentFileName),
		BlockInterval: 5 * time.Millisecond,
		StoreTimeout:  time.Second,
	}
}

func TestProduceBlock(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	seedChain(t, dir)

	d := newDaemon(misc.DiscardLogger(), testDaemonConfig(dir))
	require.NoError(t, d.produceBlock(ctx))
	first := d.Height()
	require.NoError(t, d.produceBlock(ctx))
	assert.Equal(t, first+1, d.Height())

	// the mined blocks were saved
	store, err := chain.OpenBoltStore(filepath.Join(dir, chainDBName), time.Second)
	require.NoError(t, err)
	defer store.Close()
	c, err := store.Load(misc.DiscardLogger())
	require.NoError(t, err)
	assert.Equal(t, d.Height(), c.Height())
}

func TestProduceBlockWithoutDeployment(t *testing.T) {
	d := newDaemon(misc.DiscardLogger(), testDaemonConfig(t.TempDir()))
	require.NoError(t, d.produceBlock(context.Background()))
	assert.EqualValues(t, 1, d.Height())
}

func TestCollectPoolStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	info := seedChain(t, dir)

	store, err := chain.OpenBoltStore(filepath.Join(dir, chainDBName), time.Second)
	require.NoError(t, err)
	defer store.Close()
	c, err := store.Load(misc.DiscardLogger())
	require.NoError(t, err)

	stats, err := collectPoolStats(ctx, c.Session(types.Address{}), info.FarmRouter())
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.EqualValues(t, 0, stats[0].ID)
	assert.True(t, stats[0].Info.Strat.IsZero())
	assert.True(t, stats[0].Staked.IsZero())

	assert.EqualValues(t, 1, stats[1].ID)
	assert.Equal(t, info.StrategyRouter(), stats[1].Info.Strat)
	assert.Equal(t, eth(5), stats[1].Staked)
	assert.Equal(t, eth(5), stats[1].Info.SharesTotal)
	assert.Equal(t, uint64(300), stats[1].Info.AllocPoint.Uint64())

	publishPoolStats(stats)
	assert.InDelta(t, 5.0, wholeUnits(stats[1].Staked), 1e-9)
}

func TestDaemonStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	seedChain(t, dir)
	cfg := testDaemonConfig(dir)
	cfg.MetricsAddr = "127.0.0.1:0"
	d := newDaemon(misc.DiscardLogger(), cfg)

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	d.start(ctx, &wg)

	deadline := time.Now().Add(5 * time.Second)
	for d.Height() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	wg.Wait()
	assert.GreaterOrEqual(t, d.Height(), uint64(3))
}
