package diamond

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
)

const OwnershipFacetKind = "diamond.ownership"

var (
	MethodOwner             = method.MustParse("owner()address")
	MethodTransferOwnership = method.MustParse("transferOwnership(address)void")
)

var ownershipFunctions = NewFunctionTable(
	Function{MethodOwner, ownershipOwner},
	Function{MethodTransferOwnership, ownershipTransfer},
)

// OwnershipFacet is the single-owner guard (ERC-173).
type OwnershipFacet struct {
	FacetBase
}

func NewOwnershipFacet() *OwnershipFacet {
	return &OwnershipFacet{FacetBase: NewFacetBase(OwnershipFacetKind, ownershipFunctions)}
}

func ownershipOwner(_ context.Context, call *Call, _ method.Args) (any, error) {
	return call.Storage.Owner, nil
}

func ownershipTransfer(_ context.Context, call *Call, args method.Args) (any, error) {
	if err := call.RequireOwner(); err != nil {
		return nil, err
	}
	newOwner, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	if newOwner.IsZero() {
		return nil, fmt.Errorf("%w: new owner", ErrZeroAddress)
	}
	previous := call.Storage.Owner
	call.Storage.Owner = newOwner
	call.Emit("OwnershipTransferred", map[string]string{
		"previousOwner": previous.String(),
		"newOwner":      newOwner.String(),
	})
	misc.Infof(call.Logger(), "router %s ownership transferred from %s to %s", call.Self, previous, newOwner)
	return nil, nil
}

// OwnershipClient reads and transfers ownership of a router.
type OwnershipClient struct {
	backend method.Backend
	router  types.Address
}

func NewOwnershipClient(backend method.Backend, router types.Address) *OwnershipClient {
	return &OwnershipClient{backend: backend, router: router}
}

func (c *OwnershipClient) Owner(ctx context.Context) (types.Address, error) {
	ret, err := MethodOwner.Query(ctx, c.backend, c.router)
	if err != nil {
		return types.Address{}, err
	}
	return method.AsAddress(ret)
}

func (c *OwnershipClient) TransferOwnership(ctx context.Context, newOwner types.Address) (*chain.Receipt, error) {
	return MethodTransferOwnership.Transact(ctx, c.backend, c.router, newOwner)
}
