// Package deploy installs the farm and strategy routers: every facet is deployed, then one cut per router
// registers them all.
package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/diamond"
	"github.com/TxnLab/autofarm-diamond/internal/lib/farm"
	"github.com/TxnLab/autofarm-diamond/internal/lib/initializer"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
	"github.com/TxnLab/autofarm-diamond/internal/lib/strategy"
)

// Diamond is one deployed router and its facets.
type Diamond struct {
	Router         types.Address
	CutFacet       types.Address
	LoupeFacet     types.Address
	OwnershipFacet types.Address
	// Facet is the router's domain facet - the ledger or the strategy.
	Facet types.Address
	Init  types.Address
}

// Deployment is both routers.
type Deployment struct {
	Farm     Diamond
	Strategy Diamond
}

// Deployer deploys contracts onto a chain and makes the cuts through owner, which becomes the owner of every
// router it deploys.
type Deployer struct {
	logger *slog.Logger
	chain  *chain.Chain
	owner  method.Backend
}

func NewDeployer(logger *slog.Logger, c *chain.Chain, owner method.Backend) *Deployer {
	return &Deployer{logger: logger, chain: c, owner: owner}
}

// DeployAutoFarmV2Diamond deploys a router w/ the ledger facet.
func (d *Deployer) DeployAutoFarmV2Diamond(ctx context.Context) (*Diamond, error) {
	return d.deployDiamond(ctx, "AutoFarmV2Facet", farm.NewFacet())
}

// DeployStratX2Diamond deploys a router w/ the strategy facet.
func (d *Deployer) DeployStratX2Diamond(ctx context.Context) (*Diamond, error) {
	return d.deployDiamond(ctx, "StratX2Facet", strategy.NewFacet())
}

// DeployDiamonds deploys the farm router followed by the strategy router.
func (d *Deployer) DeployDiamonds(ctx context.Context) (*Deployment, error) {
	farmDiamond, err := d.DeployAutoFarmV2Diamond(ctx)
	if err != nil {
		return nil, fmt.Errorf("deploying farm diamond: %w", err)
	}
	stratDiamond, err := d.DeployStratX2Diamond(ctx)
	if err != nil {
		return nil, fmt.Errorf("deploying strategy diamond: %w", err)
	}
	return &Deployment{Farm: *farmDiamond, Strategy: *stratDiamond}, nil
}

// Configure runs the init-only cuts binding the farm to its reward token and the strategy to the farm and
// the token it holds.
func (d *Deployer) Configure(ctx context.Context, dep *Deployment, rewardToken, want types.Address) error {
	calldata, err := initializer.MethodAutofarmV2Init.Encode(rewardToken)
	if err != nil {
		return err
	}
	if _, err := diamond.NewCutClient(d.owner, dep.Farm.Router).DiamondCut(ctx, nil, dep.Farm.Init, calldata); err != nil {
		return fmt.Errorf("initializing farm: %w", err)
	}
	calldata, err = initializer.MethodStratX2Init.Encode(dep.Farm.Router, want)
	if err != nil {
		return err
	}
	if _, err := diamond.NewCutClient(d.owner, dep.Strategy.Router).DiamondCut(ctx, nil, dep.Strategy.Init, calldata); err != nil {
		return fmt.Errorf("initializing strategy: %w", err)
	}
	misc.Infof(d.logger, "configured farm %s (reward %s) and strategy %s (want %s)", dep.Farm.Router, rewardToken, dep.Strategy.Router, want)
	return nil
}

func (d *Deployer) deployDiamond(ctx context.Context, name string, facet diamond.Facet) (*Diamond, error) {
	var (
		dm  Diamond
		err error
	)
	if dm.CutFacet, err = d.deploy(ctx, "DiamondCutFacet", diamond.NewCutFacet()); err != nil {
		return nil, err
	}
	router, err := diamond.NewRouter(d.logger, d.owner.From(), dm.CutFacet)
	if err != nil {
		return nil, err
	}
	if dm.Router, err = d.deploy(ctx, "Diamond", router); err != nil {
		return nil, err
	}
	if dm.Init, err = d.deploy(ctx, "DiamondInit", initializer.New()); err != nil {
		return nil, err
	}

	loupe, ownership := diamond.NewLoupeFacet(), diamond.NewOwnershipFacet()
	if dm.LoupeFacet, err = d.deploy(ctx, "DiamondLoupeFacet", loupe); err != nil {
		return nil, err
	}
	if dm.OwnershipFacet, err = d.deploy(ctx, "OwnershipFacet", ownership); err != nil {
		return nil, err
	}
	if dm.Facet, err = d.deploy(ctx, name, facet); err != nil {
		return nil, err
	}

	calldata, err := initializer.MethodInit.Encode()
	if err != nil {
		return nil, err
	}
	cut := []diamond.FacetCut{
		diamond.CutFor(dm.LoupeFacet, loupe),
		diamond.CutFor(dm.OwnershipFacet, ownership),
		diamond.CutFor(dm.Facet, facet),
	}
	receipt, err := diamond.NewCutClient(d.owner, dm.Router).DiamondCut(ctx, cut, dm.Init, calldata)
	if err != nil {
		return nil, fmt.Errorf("diamond cut failed: %w", err)
	}
	misc.Infof(d.logger, "completed diamond cut of %s router %s in block %d", name, dm.Router, receipt.Block)
	return &dm, nil
}

func (d *Deployer) deploy(ctx context.Context, name string, contract chain.Contract) (types.Address, error) {
	addr, err := d.chain.Deploy(ctx, contract)
	if err != nil {
		return types.Address{}, fmt.Errorf("deploying %s: %w", name, err)
	}
	misc.Infof(d.logger, "%s deployed: %s", name, addr)
	return addr, nil
}
