// Package initializer holds the one-shot init functions that cuts delegate to when setting up a router.
package initializer

import (
	"context"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/diamond"
	"github.com/TxnLab/autofarm-diamond/internal/lib/farm"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
	"github.com/TxnLab/autofarm-diamond/internal/lib/strategy"
)

const Kind = "diamond.init"

var (
	MethodInit           = method.MustParse("init()void")
	MethodAutofarmV2Init = method.MustParse("autofarmV2Init(address)void")
	MethodStratX2Init    = method.MustParse("stratX2Init(address,address)void")
)

var functions = diamond.NewFunctionTable(
	diamond.Function{Method: MethodInit, Handler: initInterfaces},
	diamond.Function{Method: MethodAutofarmV2Init, Handler: autofarmV2Init},
	diamond.Function{Method: MethodStratX2Init, Handler: stratX2Init},
)

// Initializer is never added to a router's registry. Cuts delegate to it once, by address, as their init
// call.
type Initializer struct {
	diamond.FacetBase
}

func New() *Initializer {
	return &Initializer{FacetBase: diamond.NewFacetBase(Kind, functions)}
}

// initInterfaces marks the standard interfaces every router supports.
func initInterfaces(_ context.Context, call *diamond.Call, _ method.Args) (any, error) {
	for _, id := range []method.Selector{
		diamond.InterfaceERC165,
		diamond.InterfaceDiamondCut,
		diamond.InterfaceDiamondLoupe,
		diamond.InterfaceERC173,
	} {
		call.Storage.Interfaces[id] = true
	}
	return nil, nil
}

func autofarmV2Init(_ context.Context, call *diamond.Call, args method.Args) (any, error) {
	rewardToken, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	if rewardToken.IsZero() {
		return nil, farm.ErrZeroAddress
	}
	farm.Initialize(call.Storage, rewardToken)
	misc.Infof(call.Logger(), "router %s: farm initialized w/ reward token %s", call.Self, rewardToken)
	return nil, nil
}

func stratX2Init(_ context.Context, call *diamond.Call, args method.Args) (any, error) {
	farmRouter, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	want, err := args.Address(1)
	if err != nil {
		return nil, err
	}
	if farmRouter.IsZero() || want.IsZero() {
		return nil, diamond.ErrZeroAddress
	}
	strategy.Initialize(call.Storage, farmRouter, want)
	misc.Infof(call.Logger(), "router %s: strategy initialized for farm %s, want %s", call.Self, farmRouter, want)
	return nil, nil
}

func init() {
	chain.RegisterKind(Kind, func() chain.Contract { return New() })
}
