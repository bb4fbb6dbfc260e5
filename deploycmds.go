package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/deploy"
	"github.com/TxnLab/autofarm-diamond/internal/lib/farm"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
	"github.com/TxnLab/autofarm-diamond/internal/lib/token"
)

func GetDeployCmdOpts() *cli.Command {
	return &cli.Command{
		Name:  "deploy",
		Usage: "Deploy the want and reward tokens plus the farm and strategy routers, owned by the --from account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "want-name",
				Usage: "Name of the token staked in the farm",
				Value: "MyToken1",
			},
			&cli.StringFlag{
				Name:  "want-symbol",
				Value: "MT1",
			},
			&cli.StringFlag{
				Name:  "reward-name",
				Usage: "Name of the token the farm pays rewards in",
				Value: "AUTOv2",
			},
			&cli.StringFlag{
				Name:  "reward-symbol",
				Value: "AUTO",
			},
			&cli.StringFlag{
				Name:  "reward-per-block",
				Usage: "Whole reward tokens emitted per block, ie: 1.5. Left at 0 if not set",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Deploy even if a deployment file already exists, replacing it",
			},
		},
		Action: DeployRouters,
	}
}

func DeployRouters(ctx context.Context, command *cli.Command) error {
	cfgPath, err := App.deploymentPath()
	if err != nil {
		return err
	}
	if _, err := LoadDeploymentInfo(cfgPath); !errors.Is(err, fs.ErrNotExist) && !command.Bool("force") {
		return fmt.Errorf("deployment file %s already exists, use --force to replace it", cfgPath)
	}

	var info *DeploymentInfo
	err = App.withChain(ctx, func(c *chain.Chain) error {
		owner, err := App.sender(c)
		if err != nil {
			return err
		}
		want, err := c.Deploy(ctx, token.New(command.String("want-name"), command.String("want-symbol"), 18, owner.From()))
		if err != nil {
			return fmt.Errorf("deploying want token: %w", err)
		}
		reward, err := c.Deploy(ctx, token.New(command.String("reward-name"), command.String("reward-symbol"), 18, owner.From()))
		if err != nil {
			return fmt.Errorf("deploying reward token: %w", err)
		}
		misc.Infof(App.logger, "tokens deployed, want:%s reward:%s", want, reward)

		deployer := deploy.NewDeployer(App.logger, c, owner)
		dep, err := deployer.DeployDiamonds(ctx)
		if err != nil {
			return err
		}
		if err = deployer.Configure(ctx, dep, reward, want); err != nil {
			return err
		}
		// the farm mints rewards so it has to own the reward token
		if _, err = token.NewClient(owner, reward).TransferOwnership(ctx, dep.Farm.Router); err != nil {
			return fmt.Errorf("handing reward token to farm: %w", err)
		}
		if perBlock := command.String("reward-per-block"); perBlock != "" {
			if err = setRewardPerBlock(ctx, owner, dep.Farm.Router, reward, perBlock); err != nil {
				return err
			}
		}
		info = NewDeploymentInfo(owner.From(), dep, reward, want)
		return nil
	})
	if err != nil {
		return err
	}
	if err = SaveDeploymentInfo(cfgPath, info); err != nil {
		return err
	}
	fmt.Println("Farm router:", info.Farm.Router)
	fmt.Println("Strategy router:", info.Strategy.Router)
	fmt.Println("Want token:", info.Want)
	fmt.Println("Reward token:", info.RewardToken)
	return nil
}

func setRewardPerBlock(ctx context.Context, owner method.Backend, farmRouter, reward types.Address, perBlock string) error {
	amount, err := parseTokenAmount(ctx, owner, reward, perBlock)
	if err != nil {
		return err
	}
	if _, err = farm.NewClient(owner, farmRouter).SetRewardPerBlock(ctx, amount); err != nil {
		return fmt.Errorf("setting reward per block: %w", err)
	}
	misc.Infof(App.logger, "reward per block set to %s", perBlock)
	return nil
}
