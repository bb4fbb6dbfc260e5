package token

import (
	"context"
	"fmt"
	"maps"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
)

const Kind = "token.erc20"

var (
	MethodName              = method.MustParse("name()string")
	MethodSymbol            = method.MustParse("symbol()string")
	MethodDecimals          = method.MustParse("decimals()uint8")
	MethodTotalSupply       = method.MustParse("totalSupply()uint256")
	MethodBalanceOf         = method.MustParse("balanceOf(address)uint256")
	MethodAllowance         = method.MustParse("allowance(address,address)uint256")
	MethodApprove           = method.MustParse("approve(address,uint256)bool")
	MethodTransfer          = method.MustParse("transfer(address,uint256)bool")
	MethodTransferFrom      = method.MustParse("transferFrom(address,address,uint256)bool")
	MethodMint              = method.MustParse("mint(address,uint256)void")
	MethodOwner             = method.MustParse("owner()address")
	MethodTransferOwnership = method.MustParse("transferOwnership(address)void")
	MethodSetTransferHook   = method.MustParse("setTransferHook(address)void")

	// MethodOnTokenTransfer is called on the transfer hook after every balance change.
	MethodOnTokenTransfer = method.MustParse("onTokenTransfer(address,address,uint256)void")
)

// State is the token's storage. Fields are exported for gob persistence.
type State struct {
	Name        string
	Symbol      string
	Decimals    uint8
	Owner       types.Address
	Hook        types.Address
	TotalSupply uint256.Int
	Balances    map[types.Address]uint256.Int
	Allowances  map[types.Address]map[types.Address]uint256.Int
}

func (s *State) clone() *State {
	clone := *s
	clone.Balances = maps.Clone(s.Balances)
	if clone.Balances == nil {
		clone.Balances = map[types.Address]uint256.Int{}
	}
	clone.Allowances = make(map[types.Address]map[types.Address]uint256.Int, len(s.Allowances))
	for owner, spenders := range s.Allowances {
		clone.Allowances[owner] = maps.Clone(spenders)
	}
	return &clone
}

type handler func(ctx context.Context, env *chain.Env, msg chain.Message, args method.Args) (any, error)

type function struct {
	method  method.Method
	handler handler
}

// Token is an ERC-20 style fungible token contract w/ an owner that can mint.
type Token struct {
	state     *State
	functions map[method.Selector]function
}

func New(name, symbol string, decimals uint8, owner types.Address) *Token {
	return newToken(&State{
		Name:       name,
		Symbol:     symbol,
		Decimals:   decimals,
		Owner:      owner,
		Balances:   map[types.Address]uint256.Int{},
		Allowances: map[types.Address]map[types.Address]uint256.Int{},
	})
}

func newToken(state *State) *Token {
	t := &Token{state: state}
	t.functions = map[method.Selector]function{}
	for _, fn := range []function{
		{MethodName, t.name},
		{MethodSymbol, t.symbol},
		{MethodDecimals, t.decimals},
		{MethodTotalSupply, t.totalSupply},
		{MethodBalanceOf, t.balanceOf},
		{MethodAllowance, t.allowance},
		{MethodApprove, t.approve},
		{MethodTransfer, t.transfer},
		{MethodTransferFrom, t.transferFrom},
		{MethodMint, t.mint},
		{MethodOwner, t.owner},
		{MethodTransferOwnership, t.transferOwnership},
		{MethodSetTransferHook, t.setTransferHook},
	} {
		t.functions[fn.method.Selector()] = fn
	}
	return t
}

func (t *Token) Kind() string { return Kind }

func (t *Token) Invoke(ctx context.Context, env *chain.Env, msg chain.Message) ([]byte, error) {
	sel, payload, err := method.SplitInput(msg.Input)
	if err != nil {
		return nil, err
	}
	fn, ok := t.functions[sel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, sel)
	}
	args, err := fn.method.DecodeArgs(payload)
	if err != nil {
		return nil, err
	}
	ret, err := fn.handler(ctx, env, msg, args)
	if err != nil {
		return nil, err
	}
	return fn.method.EncodeReturn(ret)
}

func (t *Token) Snapshot() any { return t.state.clone() }

func (t *Token) Restore(snapshot any) { t.state = snapshot.(*State) }

func (t *Token) MarshalState() ([]byte, error) { return chain.EncodeGob(t.state) }

func (t *Token) UnmarshalState(data []byte) error {
	var state State
	if err := chain.DecodeGob(data, &state); err != nil {
		return fmt.Errorf("decoding token state: %w", err)
	}
	if state.Balances == nil {
		state.Balances = map[types.Address]uint256.Int{}
	}
	if state.Allowances == nil {
		state.Allowances = map[types.Address]map[types.Address]uint256.Int{}
	}
	t.state = &state
	return nil
}

func (t *Token) name(context.Context, *chain.Env, chain.Message, method.Args) (any, error) {
	return t.state.Name, nil
}

func (t *Token) symbol(context.Context, *chain.Env, chain.Message, method.Args) (any, error) {
	return t.state.Symbol, nil
}

func (t *Token) decimals(context.Context, *chain.Env, chain.Message, method.Args) (any, error) {
	return t.state.Decimals, nil
}

func (t *Token) totalSupply(context.Context, *chain.Env, chain.Message, method.Args) (any, error) {
	return t.state.TotalSupply.Clone(), nil
}

func (t *Token) balanceOf(_ context.Context, _ *chain.Env, _ chain.Message, args method.Args) (any, error) {
	account, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	balance := t.state.Balances[account]
	return &balance, nil
}

func (t *Token) allowance(_ context.Context, _ *chain.Env, _ chain.Message, args method.Args) (any, error) {
	owner, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	spender, err := args.Address(1)
	if err != nil {
		return nil, err
	}
	allowed := t.state.Allowances[owner][spender]
	return &allowed, nil
}

func (t *Token) approve(_ context.Context, env *chain.Env, msg chain.Message, args method.Args) (any, error) {
	spender, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	amount, err := args.Uint256(1)
	if err != nil {
		return nil, err
	}
	if spender.IsZero() {
		return nil, fmt.Errorf("%w: approve to zero address", ErrZeroAddress)
	}
	spenders, ok := t.state.Allowances[msg.From]
	if !ok {
		spenders = map[types.Address]uint256.Int{}
		t.state.Allowances[msg.From] = spenders
	}
	spenders[spender] = *amount
	env.Emit(msg.To, "Approval", map[string]string{
		"owner":   msg.From.String(),
		"spender": spender.String(),
		"value":   amount.Dec(),
	})
	return true, nil
}

func (t *Token) transfer(ctx context.Context, env *chain.Env, msg chain.Message, args method.Args) (any, error) {
	to, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	amount, err := args.Uint256(1)
	if err != nil {
		return nil, err
	}
	if err := t.move(ctx, env, msg.To, msg.From, to, amount); err != nil {
		return nil, err
	}
	return true, nil
}

func (t *Token) transferFrom(ctx context.Context, env *chain.Env, msg chain.Message, args method.Args) (any, error) {
	from, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	to, err := args.Address(1)
	if err != nil {
		return nil, err
	}
	amount, err := args.Uint256(2)
	if err != nil {
		return nil, err
	}
	allowed := t.state.Allowances[from][msg.From]
	if allowed.Lt(amount) {
		return nil, fmt.Errorf("%w: %s allowed %s of %s, wants %s", ErrInsufficientAllowance, msg.From, allowed.Dec(), from, amount.Dec())
	}
	allowed.Sub(&allowed, amount)
	t.state.Allowances[from][msg.From] = allowed
	if err := t.move(ctx, env, msg.To, from, to, amount); err != nil {
		return nil, err
	}
	return true, nil
}

func (t *Token) mint(ctx context.Context, env *chain.Env, msg chain.Message, args method.Args) (any, error) {
	if msg.From != t.state.Owner {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg.From)
	}
	to, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	amount, err := args.Uint256(1)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		return nil, fmt.Errorf("%w: mint to zero address", ErrZeroAddress)
	}
	var supply uint256.Int
	if _, overflow := supply.AddOverflow(&t.state.TotalSupply, amount); overflow {
		return nil, fmt.Errorf("%w: total supply", ErrOverflow)
	}
	t.state.TotalSupply = supply
	balance := t.state.Balances[to]
	balance.Add(&balance, amount)
	t.state.Balances[to] = balance
	env.Emit(msg.To, "Transfer", map[string]string{
		"from":  types.Address{}.String(),
		"to":    to.String(),
		"value": amount.Dec(),
	})
	return nil, t.notify(ctx, env, msg.To, types.Address{}, to, amount)
}

func (t *Token) owner(context.Context, *chain.Env, chain.Message, method.Args) (any, error) {
	return t.state.Owner, nil
}

func (t *Token) transferOwnership(_ context.Context, _ *chain.Env, msg chain.Message, args method.Args) (any, error) {
	if msg.From != t.state.Owner {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg.From)
	}
	newOwner, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	if newOwner.IsZero() {
		return nil, fmt.Errorf("%w: new owner", ErrZeroAddress)
	}
	t.state.Owner = newOwner
	return nil, nil
}

// a zero hook clears it
func (t *Token) setTransferHook(_ context.Context, _ *chain.Env, msg chain.Message, args method.Args) (any, error) {
	if msg.From != t.state.Owner {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg.From)
	}
	hook, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	t.state.Hook = hook
	return nil, nil
}

// move debits from and credits to, then notifies the transfer hook.
func (t *Token) move(ctx context.Context, env *chain.Env, self, from, to types.Address, amount *uint256.Int) error {
	if to.IsZero() {
		return fmt.Errorf("%w: transfer to zero address", ErrZeroAddress)
	}
	fromBalance := t.state.Balances[from]
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, wants %s", ErrInsufficientBalance, from, fromBalance.Dec(), amount.Dec())
	}
	fromBalance.Sub(&fromBalance, amount)
	t.state.Balances[from] = fromBalance
	toBalance := t.state.Balances[to]
	toBalance.Add(&toBalance, amount)
	t.state.Balances[to] = toBalance

	env.Emit(self, "Transfer", map[string]string{
		"from":  from.String(),
		"to":    to.String(),
		"value": amount.Dec(),
	})
	return t.notify(ctx, env, self, from, to, amount)
}

func (t *Token) notify(ctx context.Context, env *chain.Env, self, from, to types.Address, amount *uint256.Int) error {
	if t.state.Hook.IsZero() {
		return nil
	}
	input, err := MethodOnTokenTransfer.Encode(from, to, amount)
	if err != nil {
		return err
	}
	_, err = env.Call(ctx, self, t.state.Hook, input)
	return err
}

func init() {
	chain.RegisterKind(Kind, func() chain.Contract { return newToken(&State{}) })
}
