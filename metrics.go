package main

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
	"github.com/mailgun/holster/v4/syncutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/TxnLab/autofarm-diamond/internal/lib/farm"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/strategy"
)

var (
	promNumPools = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "farm",
		Name:      "pool_count",
	})
	promPoolStaked = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "farm",
		Name:      "pool_staked",
		Help:      "Want tokens locked for the pool, in whole tokens",
	}, []string{"pool"})
	promPoolShares = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "farm",
		Name:      "pool_shares",
		Help:      "Shares outstanding in the pool, in whole shares",
	}, []string{"pool"})
)

// poolStats is one pool plus the want its vault currently holds.
type poolStats struct {
	ID     uint64
	Info   *farm.PoolInfo
	Staked *uint256.Int
}

// collectPoolStats reads every pool of the farm router, fetching them concurrently.
func collectPoolStats(ctx context.Context, backend method.Backend, farmRouter types.Address) ([]poolStats, error) {
	ledger := farm.NewClient(backend, farmRouter)
	numPools, err := ledger.PoolLength(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching pool count: %w", err)
	}
	var (
		stats  = make([]poolStats, numPools)
		fanOut = syncutil.NewFanOut(20)
	)
	for pid := uint64(0); pid < numPools; pid++ {
		fanOut.Run(func(val any) error {
			pid := val.(uint64)
			info, err := ledger.PoolInfo(ctx, pid)
			if err != nil {
				return fmt.Errorf("pool %d: %w", pid, err)
			}
			staked := info.SharesTotal.Clone()
			if !info.Strat.IsZero() {
				if staked, err = strategy.NewClient(backend, info.Strat).WantLockedTotal(ctx); err != nil {
					return fmt.Errorf("pool %d strategy %s: %w", pid, info.Strat, err)
				}
			}
			stats[pid] = poolStats{ID: pid, Info: info, Staked: staked}
			return nil
		}, pid)
	}
	if errs := fanOut.Wait(); len(errs) > 0 {
		return nil, errs[0]
	}
	return stats, nil
}

// publishPoolStats sets the farm gauges. Amounts are reported in whole (18 decimal) units.
func publishPoolStats(stats []poolStats) {
	promNumPools.Set(float64(len(stats)))
	for _, pool := range stats {
		label := strconv.FormatUint(pool.ID, 10)
		promPoolStaked.WithLabelValues(label).Set(wholeUnits(pool.Staked))
		promPoolShares.WithLabelValues(label).Set(wholeUnits(pool.Info.SharesTotal))
	}
}

func wholeUnits(amount *uint256.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(amount.ToBig()), big.NewFloat(1e18)).Float64()
	return f
}
