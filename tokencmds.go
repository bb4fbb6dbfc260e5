package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/token"
)

func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "token",
		Usage: "Token address, or 'want' / 'reward' for the deployed tokens",
		Value: "want",
	}
}

func GetTokenCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "token",
		Aliases: []string{"t"},
		Usage:   "Mint, inspect and approve the deployed tokens",
		Before:  checkDeployed,
		Commands: []*cli.Command{
			{
				Name:   "mint",
				Usage:  "Mint tokens to an account. Only the token owner can mint",
				Action: TokenMint,
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Account receiving the tokens",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "amount",
						Usage:    "Whole token amount, ie: 100 or 0.5",
						Required: true,
					},
				},
			},
			{
				Name:    "balance",
				Aliases: []string{"b"},
				Usage:   "Show the token balance of an account",
				Action:  TokenBalance,
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.StringFlag{
						Name:  "account",
						Usage: "Account to show, defaults to --from",
					},
				},
			},
			{
				Name:   "approve",
				Usage:  "Allow a spender to move tokens held by --from",
				Action: TokenApprove,
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.StringFlag{
						Name:  "spender",
						Usage: "Spender address, or 'farm' / 'strategy' for the routers",
						Value: "farm",
					},
					&cli.StringFlag{
						Name:     "amount",
						Usage:    "Whole token amount, ie: 100 or 0.5",
						Required: true,
					},
				},
			},
		},
	}
}

func TokenMint(ctx context.Context, command *cli.Command) error {
	tokenAddr, err := resolveAddress(command.String("token"))
	if err != nil {
		return err
	}
	to, err := resolveAddress(command.String("to"))
	if err != nil {
		return err
	}
	return App.withChain(ctx, func(c *chain.Chain) error {
		sender, err := App.sender(c)
		if err != nil {
			return err
		}
		amount, err := parseTokenAmount(ctx, sender, tokenAddr, command.String("amount"))
		if err != nil {
			return err
		}
		receipt, err := token.NewClient(sender, tokenAddr).Mint(ctx, to, amount)
		if err != nil {
			return fmt.Errorf("mint failed: %w", err)
		}
		fmt.Printf("minted %s to %s in block %d\n", command.String("amount"), to, receipt.Block)
		return nil
	})
}

func TokenBalance(ctx context.Context, command *cli.Command) error {
	tokenAddr, err := resolveAddress(command.String("token"))
	if err != nil {
		return err
	}
	account := command.String("account")
	if account == "" {
		account = App.from
	}
	if account == "" {
		return fmt.Errorf("%w and no --account given", errNoSender)
	}
	accountAddr, err := resolveAddress(account)
	if err != nil {
		return err
	}
	return App.withChain(ctx, func(c *chain.Chain) error {
		reader := App.reader(c)
		client := token.NewClient(reader, tokenAddr)
		symbol, err := client.Symbol(ctx)
		if err != nil {
			return err
		}
		balance, err := client.BalanceOf(ctx, accountAddr)
		if err != nil {
			return err
		}
		amount, err := formatTokenAmount(ctx, reader, tokenAddr, balance)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s %s\n", accountAddr, amount, symbol)
		return nil
	})
}

func TokenApprove(ctx context.Context, command *cli.Command) error {
	tokenAddr, err := resolveAddress(command.String("token"))
	if err != nil {
		return err
	}
	spender, err := resolveAddress(command.String("spender"))
	if err != nil {
		return err
	}
	return App.withChain(ctx, func(c *chain.Chain) error {
		sender, err := App.sender(c)
		if err != nil {
			return err
		}
		amount, err := parseTokenAmount(ctx, sender, tokenAddr, command.String("amount"))
		if err != nil {
			return err
		}
		if _, err = token.NewClient(sender, tokenAddr).Approve(ctx, spender, amount); err != nil {
			return fmt.Errorf("approve failed: %w", err)
		}
		fmt.Printf("%s may now spend %s of %s's tokens\n", spender, command.String("amount"), sender.From())
		return nil
	})
}

// resolveAddress accepts an address or the name of one of the deployed contracts.
func resolveAddress(name string) (types.Address, error) {
	if App.deployment != nil {
		switch strings.ToLower(name) {
		case "farm":
			return App.deployment.FarmRouter(), nil
		case "strategy", "strat":
			return App.deployment.StrategyRouter(), nil
		case "want":
			return App.deployment.WantAddress(), nil
		case "reward":
			return App.deployment.RewardTokenAddress(), nil
		}
	}
	addr, err := types.DecodeAddress(name)
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid address %q: %w", name, err)
	}
	return addr, nil
}

// parseTokenAmount converts a whole token amount into base units using the token's decimals.
func parseTokenAmount(ctx context.Context, backend method.Backend, tokenAddr types.Address, amount string) (*uint256.Int, error) {
	decimals, err := token.NewClient(backend, tokenAddr).Decimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching decimals of %s: %w", tokenAddr, err)
	}
	return token.ParseAmount(amount, decimals)
}

func formatTokenAmount(ctx context.Context, backend method.Backend, tokenAddr types.Address, amount *uint256.Int) (string, error) {
	decimals, err := token.NewClient(backend, tokenAddr).Decimals(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching decimals of %s: %w", tokenAddr, err)
	}
	return token.FormatAmount(amount, decimals), nil
}
