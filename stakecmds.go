package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/farm"
	"github.com/TxnLab/autofarm-diamond/internal/lib/token"
)

func poolFlag() cli.Flag {
	return &cli.UintFlag{
		Name:     "pool",
		Usage:    "Pool ID (the number in 'pool list')",
		Required: true,
	}
}

func GetStakeCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "stake",
		Aliases: []string{"s"},
		Usage:   "Stake into and withdraw from farm pools as the --from account",
		Before:  checkDeployed,
		Commands: []*cli.Command{
			{
				Name:   "deposit",
				Usage:  "Approve and deposit tokens into a pool, collecting any pending reward",
				Action: StakeDeposit,
				Flags: []cli.Flag{
					poolFlag(),
					&cli.StringFlag{
						Name:     "amount",
						Usage:    "Whole token amount, ie: 100 or 0.5",
						Required: true,
					},
				},
			},
			{
				Name:   "withdraw",
				Usage:  "Withdraw shares from a pool, collecting any pending reward",
				Action: StakeWithdraw,
				Flags: []cli.Flag{
					poolFlag(),
					&cli.StringFlag{
						Name:     "amount",
						Usage:    "Whole shares to burn, ie: 100 or 0.5",
						Required: true,
					},
				},
			},
			{
				Name:   "withdraw-all",
				Usage:  "Withdraw every share held in a pool",
				Action: StakeWithdrawAll,
				Flags:  []cli.Flag{poolFlag()},
			},
			{
				Name:   "emergency",
				Usage:  "Withdraw everything from a pool, giving up pending rewards",
				Action: StakeEmergency,
				Flags: []cli.Flag{
					poolFlag(),
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Don't ask for confirmation",
					},
				},
			},
			{
				Name:   "pending",
				Usage:  "Show the position and pending reward of an account in a pool",
				Action: StakePending,
				Flags: []cli.Flag{
					poolFlag(),
					&cli.StringFlag{
						Name:  "account",
						Usage: "Account to show, defaults to --from",
					},
				},
			},
		},
	}
}

func StakeDeposit(ctx context.Context, command *cli.Command) error {
	pid := command.Value("pool").(uint64)
	farmRouter := App.deployment.FarmRouter()
	return App.withChain(ctx, func(c *chain.Chain) error {
		staker, err := App.sender(c)
		if err != nil {
			return err
		}
		ledger := farm.NewClient(staker, farmRouter)
		pool, err := ledger.PoolInfo(ctx, pid)
		if err != nil {
			return err
		}
		amount, err := parseTokenAmount(ctx, staker, pool.Want, command.String("amount"))
		if err != nil {
			return err
		}
		if _, err = token.NewClient(staker, pool.Want).Approve(ctx, farmRouter, amount); err != nil {
			return fmt.Errorf("approving farm: %w", err)
		}
		receipt, err := ledger.Deposit(ctx, pid, amount)
		if err != nil {
			return fmt.Errorf("deposit failed: %w", err)
		}
		fmt.Printf("deposited %s into pool %d in block %d\n", command.String("amount"), pid, receipt.Block)
		return nil
	})
}

func StakeWithdraw(ctx context.Context, command *cli.Command) error {
	pid := command.Value("pool").(uint64)
	return App.withChain(ctx, func(c *chain.Chain) error {
		staker, err := App.sender(c)
		if err != nil {
			return err
		}
		ledger := farm.NewClient(staker, App.deployment.FarmRouter())
		pool, err := ledger.PoolInfo(ctx, pid)
		if err != nil {
			return err
		}
		// shares carry the decimals of the pool's token
		shares, err := parseTokenAmount(ctx, staker, pool.Want, command.String("amount"))
		if err != nil {
			return err
		}
		receipt, err := ledger.Withdraw(ctx, pid, shares)
		if err != nil {
			return fmt.Errorf("withdraw failed: %w", err)
		}
		fmt.Printf("withdrew %s shares from pool %d in block %d\n", command.String("amount"), pid, receipt.Block)
		return nil
	})
}

func StakeWithdrawAll(ctx context.Context, command *cli.Command) error {
	pid := command.Value("pool").(uint64)
	return App.withChain(ctx, func(c *chain.Chain) error {
		staker, err := App.sender(c)
		if err != nil {
			return err
		}
		receipt, err := farm.NewClient(staker, App.deployment.FarmRouter()).WithdrawAll(ctx, pid)
		if err != nil {
			return fmt.Errorf("withdraw failed: %w", err)
		}
		fmt.Printf("withdrew all shares from pool %d in block %d\n", pid, receipt.Block)
		return nil
	})
}

func StakeEmergency(ctx context.Context, command *cli.Command) error {
	pid := command.Value("pool").(uint64)
	if !command.Bool("yes") {
		if _, err := yesNo(fmt.Sprintf("Withdraw everything from pool %d and forfeit pending rewards", pid)); err != nil {
			if errors.Is(err, promptui.ErrAbort) {
				return errors.New("emergency withdraw cancelled")
			}
			return err
		}
	}
	return App.withChain(ctx, func(c *chain.Chain) error {
		staker, err := App.sender(c)
		if err != nil {
			return err
		}
		ledger := farm.NewClient(staker, App.deployment.FarmRouter())
		pool, err := ledger.PoolInfo(ctx, pid)
		if err != nil {
			return err
		}
		amount, receipt, err := ledger.EmergencyWithdraw(ctx, pid)
		if err != nil {
			return fmt.Errorf("emergency withdraw failed: %w", err)
		}
		formatted, err := formatTokenAmount(ctx, staker, pool.Want, amount)
		if err != nil {
			return err
		}
		fmt.Printf("returned %s tokens from pool %d in block %d\n", formatted, pid, receipt.Block)
		return nil
	})
}

func StakePending(ctx context.Context, command *cli.Command) error {
	pid := command.Value("pool").(uint64)
	account := command.String("account")
	if account == "" {
		account = App.from
	}
	if account == "" {
		return fmt.Errorf("%w and no --account given", errNoSender)
	}
	user, err := resolveAddress(account)
	if err != nil {
		return err
	}
	return App.withChain(ctx, func(c *chain.Chain) error {
		reader := App.reader(c)
		ledger := farm.NewClient(reader, App.deployment.FarmRouter())
		pool, err := ledger.PoolInfo(ctx, pid)
		if err != nil {
			return err
		}
		info, err := ledger.UserInfo(ctx, pid, user)
		if err != nil {
			return err
		}
		staked, err := ledger.StakedWantTokens(ctx, pid, user)
		if err != nil {
			return err
		}
		pending, err := ledger.PendingReward(ctx, pid, user)
		if err != nil {
			return err
		}
		shares, err := formatTokenAmount(ctx, reader, pool.Want, info.Shares)
		if err != nil {
			return err
		}
		stakedAmt, err := formatTokenAmount(ctx, reader, pool.Want, staked)
		if err != nil {
			return err
		}
		pendingAmt, err := formatTokenAmount(ctx, reader, App.deployment.RewardTokenAddress(), pending)
		if err != nil {
			return err
		}
		fmt.Println("Account:", user)
		fmt.Println("Shares:", shares)
		fmt.Println("Staked:", stakedAmt)
		fmt.Println("Pending reward:", pendingAmt)
		return nil
	})
}
