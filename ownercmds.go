package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/diamond"
)

func GetOwnerCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "owner",
		Aliases: []string{"o"},
		Usage:   "Show or transfer router ownership",
		Before:  checkDeployed,
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the owner of a router",
				Action: OwnerShow,
				Flags:  []cli.Flag{routerFlag()},
			},
			{
				Name:   "transfer",
				Usage:  "Hand a router to a new owner. Must be signed by the current owner",
				Action: OwnerTransfer,
				Flags: []cli.Flag{
					routerFlag(),
					&cli.StringFlag{
						Name:     "to",
						Usage:    "New owner",
						Required: true,
					},
				},
			},
		},
	}
}

func OwnerShow(ctx context.Context, command *cli.Command) error {
	router, err := resolveAddress(command.String("router"))
	if err != nil {
		return err
	}
	return App.withChain(ctx, func(c *chain.Chain) error {
		owner, err := diamond.NewOwnershipClient(App.reader(c), router).Owner(ctx)
		if err != nil {
			return err
		}
		fmt.Println(owner)
		return nil
	})
}

func OwnerTransfer(ctx context.Context, command *cli.Command) error {
	router, err := resolveAddress(command.String("router"))
	if err != nil {
		return err
	}
	newOwner, err := resolveAddress(command.String("to"))
	if err != nil {
		return err
	}
	return App.withChain(ctx, func(c *chain.Chain) error {
		owner, err := App.sender(c)
		if err != nil {
			return err
		}
		if _, err = diamond.NewOwnershipClient(owner, router).TransferOwnership(ctx, newOwner); err != nil {
			return fmt.Errorf("ownership transfer failed: %w", err)
		}
		fmt.Printf("%s is now owned by %s\n", router, newOwner)
		return nil
	})
}
