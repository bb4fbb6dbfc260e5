package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/farm"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
	"github.com/TxnLab/autofarm-diamond/internal/lib/token"
)

func GetPoolCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "pool",
		Aliases: []string{"p"},
		Usage:   "Add/Configure the farm's staking pools",
		Before:  checkDeployed,
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List the farm's pools",
				Action:  PoolsList,
			},
			{
				Name:    "add",
				Aliases: []string{"a"},
				Usage:   "Add a pool. Owner only",
				Action:  PoolAdd,
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:     "weight",
						Usage:    "Allocation points - the pool's share of the reward per block",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "token",
						Usage: "Token staked in the pool, address or 'want'",
						Value: "want",
					},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Strategy router holding the pool's tokens, address or 'strategy'. Unset keeps tokens in the farm itself",
					},
					&cli.BoolFlag{
						Name:  "update",
						Usage: "Settle rewards of every pool before the weights change",
					},
				},
			},
			{
				Name:   "set",
				Usage:  "Change the weight of a pool. Owner only",
				Action: PoolSet,
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:     "pool",
						Usage:    "Pool ID (the number in 'pool list')",
						Required: true,
					},
					&cli.UintFlag{
						Name:     "weight",
						Usage:    "Allocation points",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "update",
						Usage: "Settle rewards of every pool before the weights change",
					},
				},
			},
			{
				Name:   "update",
				Usage:  "Settle rewards of one pool, or of every pool if --pool isn't set",
				Action: PoolUpdate,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "pool",
						Usage: "Pool ID (the number in 'pool list')",
						Value: -1,
					},
				},
			},
			{
				Name:   "reward",
				Usage:  "Set the farm's reward per block. Owner only",
				Action: PoolReward,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "per-block",
						Usage:    "Whole reward tokens emitted per block, ie: 1.5",
						Required: true,
					},
				},
			},
		},
	}
}

func PoolsList(ctx context.Context, command *cli.Command) error {
	farmRouter := App.deployment.FarmRouter()
	return App.withChain(ctx, func(c *chain.Chain) error {
		reader := App.reader(c)
		stats, err := collectPoolStats(ctx, reader, farmRouter)
		if err != nil {
			return fmt.Errorf("failed to get pools: %w", err)
		}
		totalAlloc, err := farm.NewClient(reader, farmRouter).TotalAllocPoint(ctx)
		if err != nil {
			return err
		}

		symbols := map[types.Address]string{}
		out := new(strings.Builder)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Pool\tToken\tWeight\tStrategy\tShares\tStaked\tLast Reward Block\t")
		for _, pool := range stats {
			symbol, found := symbols[pool.Info.Want]
			if !found {
				if symbol, err = token.NewClient(reader, pool.Info.Want).Symbol(ctx); err != nil {
					return err
				}
				symbols[pool.Info.Want] = symbol
			}
			decimals, err := token.NewClient(reader, pool.Info.Want).Decimals(ctx)
			if err != nil {
				return err
			}
			strat := "(farm)"
			if !pool.Info.Strat.IsZero() {
				strat = pool.Info.Strat.String()[:8] + ".."
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t\n", pool.ID, symbol, pool.Info.AllocPoint.Dec(), strat,
				token.FormatAmount(pool.Info.SharesTotal, decimals), token.FormatAmount(pool.Staked, decimals), pool.Info.LastRewardBlock)
		}
		fmt.Fprintf(tw, "Total\t\t%s\t\t\t\t\t\n", totalAlloc.Dec())
		tw.Flush()
		fmt.Print(out.String())
		return nil
	})
}

func PoolAdd(ctx context.Context, command *cli.Command) error {
	want, err := resolveAddress(command.String("token"))
	if err != nil {
		return err
	}
	var strat types.Address
	if name := command.String("strategy"); name != "" {
		if strat, err = resolveAddress(name); err != nil {
			return err
		}
	}
	weight := uint256.NewInt(command.Value("weight").(uint64))
	return App.withChain(ctx, func(c *chain.Chain) error {
		owner, err := App.sender(c)
		if err != nil {
			return err
		}
		ledger := farm.NewClient(owner, App.deployment.FarmRouter())
		if _, err = ledger.Add(ctx, weight, want, command.Bool("update"), strat); err != nil {
			return fmt.Errorf("adding pool: %w", err)
		}
		numPools, err := ledger.PoolLength(ctx)
		if err != nil {
			return err
		}
		misc.Infof(App.logger, "added pool %d for token %s w/ weight %s", numPools-1, want, weight.Dec())
		return nil
	})
}

func PoolSet(ctx context.Context, command *cli.Command) error {
	pid := command.Value("pool").(uint64)
	weight := uint256.NewInt(command.Value("weight").(uint64))
	return App.withChain(ctx, func(c *chain.Chain) error {
		owner, err := App.sender(c)
		if err != nil {
			return err
		}
		if _, err = farm.NewClient(owner, App.deployment.FarmRouter()).Set(ctx, pid, weight, command.Bool("update")); err != nil {
			return fmt.Errorf("setting pool %d: %w", pid, err)
		}
		misc.Infof(App.logger, "pool %d weight set to %s", pid, weight.Dec())
		return nil
	})
}

func PoolUpdate(ctx context.Context, command *cli.Command) error {
	pid := command.Value("pool").(int64)
	return App.withChain(ctx, func(c *chain.Chain) error {
		sender, err := App.sender(c)
		if err != nil {
			return err
		}
		ledger := farm.NewClient(sender, App.deployment.FarmRouter())
		var receipt *chain.Receipt
		if pid < 0 {
			receipt, err = ledger.MassUpdatePools(ctx)
		} else {
			receipt, err = ledger.UpdatePool(ctx, uint64(pid))
		}
		if err != nil {
			return err
		}
		misc.Infof(App.logger, "pools updated in block %d", receipt.Block)
		return nil
	})
}

func PoolReward(ctx context.Context, command *cli.Command) error {
	return App.withChain(ctx, func(c *chain.Chain) error {
		owner, err := App.sender(c)
		if err != nil {
			return err
		}
		return setRewardPerBlock(ctx, owner, App.deployment.FarmRouter(), App.deployment.RewardTokenAddress(), command.String("per-block"))
	})
}
