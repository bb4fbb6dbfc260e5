package strategy

import (
	"context"
	"fmt"
	"strconv"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/diamond"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
	"github.com/TxnLab/autofarm-diamond/internal/lib/token"
)

const FacetKind = "strategy.stratx2"

var (
	MethodDeposit              = method.MustParse("deposit(address,uint256)uint256")
	MethodWithdraw             = method.MustParse("withdraw(address,uint256)uint256")
	MethodPreviewDeposit       = method.MustParse("previewDeposit(uint256)uint256")
	MethodPreviewRedeem        = method.MustParse("previewRedeem(uint256)uint256")
	MethodSharesTotal          = method.MustParse("sharesTotal()uint256")
	MethodWantLockedTotal      = method.MustParse("wantLockedTotal()uint256")
	MethodWantAddress          = method.MustParse("wantAddress()address")
	MethodFarmAddress          = method.MustParse("farmAddress()address")
	MethodEntranceFeeFactor    = method.MustParse("entranceFeeFactor()uint64")
	MethodSetEntranceFeeFactor = method.MustParse("setEntranceFeeFactor(uint64)void")
	MethodPause                = method.MustParse("pause()void")
	MethodUnpause              = method.MustParse("unpause()void")
)

var functions = diamond.NewFunctionTable(
	diamond.Function{Method: MethodDeposit, Handler: deposit},
	diamond.Function{Method: MethodWithdraw, Handler: withdraw},
	diamond.Function{Method: MethodPreviewDeposit, Handler: previewDeposit},
	diamond.Function{Method: MethodPreviewRedeem, Handler: previewRedeem},
	diamond.Function{Method: MethodSharesTotal, Handler: sharesTotal},
	diamond.Function{Method: MethodWantLockedTotal, Handler: wantLockedTotal},
	diamond.Function{Method: MethodWantAddress, Handler: wantAddress},
	diamond.Function{Method: MethodFarmAddress, Handler: farmAddress},
	diamond.Function{Method: MethodEntranceFeeFactor, Handler: entranceFeeFactor},
	diamond.Function{Method: MethodSetEntranceFeeFactor, Handler: setEntranceFeeFactor},
	diamond.Function{Method: MethodPause, Handler: pause},
	diamond.Function{Method: MethodUnpause, Handler: unpause},
)

// Facet holds a farm pool's staked tokens on the companion router. Only the farm router bound at init can
// move tokens in or out.
type Facet struct {
	diamond.FacetBase
}

func NewFacet() *Facet {
	return &Facet{FacetBase: diamond.NewFacetBase(FacetKind, functions)}
}

func onlyFarm(call *diamond.Call, state *State) error {
	if state.Farm.IsZero() || call.Sender != state.Farm {
		return fmt.Errorf("%w: %s", ErrNotFarm, call.Sender)
	}
	if state.Paused {
		return ErrPaused
	}
	return nil
}

// deposit pulls want from the farm and mints shares for it.
func deposit(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	state := StateOf(call.Storage)
	if err := onlyFarm(call, state); err != nil {
		return nil, err
	}
	user, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	wantAmt, err := args.Uint256(1)
	if err != nil {
		return nil, err
	}
	if wantAmt.IsZero() {
		return nil, ErrInvalidAmount
	}
	shares := state.previewDeposit(wantAmt)
	state.SharesTotal.Add(&state.SharesTotal, shares)
	state.WantLockedTotal.Add(&state.WantLockedTotal, wantAmt)

	if _, err := call.Transact(ctx, state.Want, token.MethodTransferFrom, call.Sender, call.Self, wantAmt); err != nil {
		return nil, fmt.Errorf("pulling %s want from farm: %w", wantAmt.Dec(), err)
	}
	misc.Debugf(call.Logger(), "strategy %s: deposit for %s, want:%s shares:%s", call.Self, user, wantAmt.Dec(), shares.Dec())
	return shares, nil
}

// withdraw burns shares and sends the proportional want back to the farm.
func withdraw(ctx context.Context, call *diamond.Call, args method.Args) (any, error) {
	state := StateOf(call.Storage)
	if err := onlyFarm(call, state); err != nil {
		return nil, err
	}
	user, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	shares, err := args.Uint256(1)
	if err != nil {
		return nil, err
	}
	if shares.IsZero() {
		return nil, ErrInvalidAmount
	}
	if state.SharesTotal.Lt(shares) {
		return nil, fmt.Errorf("%w: %s of %s", ErrInsufficientShares, shares.Dec(), state.SharesTotal.Dec())
	}
	wantAmt := state.previewRedeem(shares)
	state.SharesTotal.Sub(&state.SharesTotal, shares)
	state.WantLockedTotal.Sub(&state.WantLockedTotal, wantAmt)

	if !wantAmt.IsZero() {
		if _, err := call.Transact(ctx, state.Want, token.MethodTransfer, call.Sender, wantAmt); err != nil {
			return nil, fmt.Errorf("returning %s want to farm: %w", wantAmt.Dec(), err)
		}
	}
	misc.Debugf(call.Logger(), "strategy %s: withdraw for %s, shares:%s want:%s", call.Self, user, shares.Dec(), wantAmt.Dec())
	return wantAmt, nil
}

func previewDeposit(_ context.Context, call *diamond.Call, args method.Args) (any, error) {
	wantAmt, err := args.Uint256(0)
	if err != nil {
		return nil, err
	}
	return StateOf(call.Storage).previewDeposit(wantAmt), nil
}

func previewRedeem(_ context.Context, call *diamond.Call, args method.Args) (any, error) {
	shares, err := args.Uint256(0)
	if err != nil {
		return nil, err
	}
	return StateOf(call.Storage).previewRedeem(shares), nil
}

func sharesTotal(_ context.Context, call *diamond.Call, _ method.Args) (any, error) {
	return StateOf(call.Storage).SharesTotal.Clone(), nil
}

func wantLockedTotal(_ context.Context, call *diamond.Call, _ method.Args) (any, error) {
	return StateOf(call.Storage).WantLockedTotal.Clone(), nil
}

func wantAddress(_ context.Context, call *diamond.Call, _ method.Args) (any, error) {
	return StateOf(call.Storage).Want, nil
}

func farmAddress(_ context.Context, call *diamond.Call, _ method.Args) (any, error) {
	return StateOf(call.Storage).Farm, nil
}

func entranceFeeFactor(_ context.Context, call *diamond.Call, _ method.Args) (any, error) {
	return StateOf(call.Storage).EntranceFeeFactor, nil
}

func setEntranceFeeFactor(_ context.Context, call *diamond.Call, args method.Args) (any, error) {
	if err := call.RequireOwner(); err != nil {
		return nil, err
	}
	factor, err := args.Uint64(0)
	if err != nil {
		return nil, err
	}
	if factor < EntranceFeeFactorLL || factor > EntranceFeeFactorMax {
		return nil, fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidFee, factor, EntranceFeeFactorLL, EntranceFeeFactorMax)
	}
	StateOf(call.Storage).EntranceFeeFactor = factor
	call.Emit("EntranceFeeFactorSet", map[string]string{"factor": strconv.FormatUint(factor, 10)})
	return nil, nil
}

func pause(_ context.Context, call *diamond.Call, _ method.Args) (any, error) {
	return nil, setPaused(call, true)
}

func unpause(_ context.Context, call *diamond.Call, _ method.Args) (any, error) {
	return nil, setPaused(call, false)
}

func setPaused(call *diamond.Call, paused bool) error {
	if err := call.RequireOwner(); err != nil {
		return err
	}
	StateOf(call.Storage).Paused = paused
	misc.Infof(call.Logger(), "strategy %s paused:%v", call.Self, paused)
	return nil
}

// Client reads a strategy router and drives its owner-only settings.
type Client struct {
	backend method.Backend
	router  types.Address
}

func NewClient(backend method.Backend, router types.Address) *Client {
	return &Client{backend: backend, router: router}
}

func (c *Client) SharesTotal(ctx context.Context) (*uint256.Int, error) {
	return c.queryAmount(ctx, MethodSharesTotal)
}

func (c *Client) WantLockedTotal(ctx context.Context) (*uint256.Int, error) {
	return c.queryAmount(ctx, MethodWantLockedTotal)
}

func (c *Client) PreviewDeposit(ctx context.Context, wantAmt *uint256.Int) (*uint256.Int, error) {
	return c.queryAmount(ctx, MethodPreviewDeposit, wantAmt)
}

func (c *Client) PreviewRedeem(ctx context.Context, shares *uint256.Int) (*uint256.Int, error) {
	return c.queryAmount(ctx, MethodPreviewRedeem, shares)
}

func (c *Client) FarmAddress(ctx context.Context) (types.Address, error) {
	ret, err := MethodFarmAddress.Query(ctx, c.backend, c.router)
	if err != nil {
		return types.Address{}, err
	}
	return method.AsAddress(ret)
}

func (c *Client) WantAddress(ctx context.Context) (types.Address, error) {
	ret, err := MethodWantAddress.Query(ctx, c.backend, c.router)
	if err != nil {
		return types.Address{}, err
	}
	return method.AsAddress(ret)
}

func (c *Client) SetEntranceFeeFactor(ctx context.Context, factor uint64) (*chain.Receipt, error) {
	return MethodSetEntranceFeeFactor.Transact(ctx, c.backend, c.router, factor)
}

func (c *Client) Pause(ctx context.Context) (*chain.Receipt, error) {
	return MethodPause.Transact(ctx, c.backend, c.router)
}

func (c *Client) Unpause(ctx context.Context) (*chain.Receipt, error) {
	return MethodUnpause.Transact(ctx, c.backend, c.router)
}

func (c *Client) queryAmount(ctx context.Context, m method.Method, args ...any) (*uint256.Int, error) {
	ret, err := m.Query(ctx, c.backend, c.router, args...)
	if err != nil {
		return nil, err
	}
	return method.AsUint256(ret)
}

func init() {
	chain.RegisterKind(FacetKind, func() chain.Contract { return NewFacet() })
}
