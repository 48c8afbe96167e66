package flashloan

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"lendingpool/core/events"
	"lendingpool/core/types"
	"lendingpool/crypto"
	nativecommon "lendingpool/native/common"
)

// ModuleName identifies the facility for pause checks and its module account.
const ModuleName = "flashloan"

// DefaultFeeBps is the flat fee charged on every loan (5%).
const DefaultFeeBps uint64 = 500

// EventTypeExecuted is emitted after a flash loan is repaid with its fee.
const EventTypeExecuted = "flashloan.executed"

var (
	ErrInvalidAmount         = errors.New("flashloan: amount must be positive")
	ErrInsufficientLiquidity = errors.New("flashloan: insufficient liquidity")
	ErrNotRepaid             = errors.New("flashloan: loan not repaid with fee")
	ErrNilReceiver           = errors.New("flashloan: receiver required")

	errNilTokens = errors.New("flashloan: token ledger not configured")
)

// TokenLedger is the subset of the token ledger the facility and its
// receivers operate on. It is bound to the caller's state transaction.
type TokenLedger interface {
	Transfer(token, from, to crypto.Address, amount *big.Int) error
	BalanceOf(token, owner crypto.Address) (*big.Int, error)
}

// Receiver is invoked with the borrowed funds. It must return amount + fee to
// the facility account through tokens before returning.
type Receiver interface {
	Address() crypto.Address
	ExecuteOperation(ctx context.Context, tokens TokenLedger, asset crypto.Address, amount, fee *big.Int) error
}

// Facility lends its own balances for the duration of a single call.
// Failures leave partial transfers in the transaction; the caller discards it.
type Facility struct {
	account crypto.Address
	feeBps  uint64
	tokens  TokenLedger
	pauses  nativecommon.PauseView
	emitter events.Emitter
}

// NewFacility creates a facility whose liquidity is held by account.
func NewFacility(account crypto.Address, feeBps uint64) *Facility {
	return &Facility{account: account, feeBps: feeBps, emitter: events.NoopEmitter{}}
}

// SetTokens wires the token ledger loans are paid out of.
func (f *Facility) SetTokens(tokens TokenLedger) { f.tokens = tokens }

func (f *Facility) SetPauses(p nativecommon.PauseView) { f.pauses = p }

// Account returns the module account that holds the lendable balances.
func (f *Facility) Account() crypto.Address { return f.account }

// FeeBps reports the fee charged on each loan in basis points.
func (f *Facility) FeeBps() uint64 { return f.feeBps }

// SetEmitter configures the event sink. Passing nil discards events.
func (f *Facility) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	f.emitter = emitter
}

// Fee returns floor(amount * feeBps / 10000).
func (f *Facility) Fee(amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(f.feeBps))
	return fee.Quo(fee, big.NewInt(10_000))
}

// FlashLoan transfers amount of asset to the receiver, runs its callback and
// verifies the facility balance grew by at least the fee. It returns the fee
// charged.
func (f *Facility) FlashLoan(ctx context.Context, receiver Receiver, asset crypto.Address, amount *big.Int) (*big.Int, error) {
	if f.tokens == nil {
		return nil, errNilTokens
	}
	if err := nativecommon.Guard(f.pauses, ModuleName); err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, ErrNilReceiver
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	before, err := f.tokens.BalanceOf(asset, f.account)
	if err != nil {
		return nil, err
	}
	if before.Cmp(amount) < 0 {
		return nil, ErrInsufficientLiquidity
	}
	fee := f.Fee(amount)
	if err := f.tokens.Transfer(asset, f.account, receiver.Address(), amount); err != nil {
		return nil, fmt.Errorf("flashloan: disburse: %w", err)
	}
	if err := receiver.ExecuteOperation(ctx, f.tokens, asset, new(big.Int).Set(amount), new(big.Int).Set(fee)); err != nil {
		return nil, fmt.Errorf("flashloan: receiver: %w", err)
	}
	after, err := f.tokens.BalanceOf(asset, f.account)
	if err != nil {
		return nil, err
	}
	if after.Cmp(new(big.Int).Add(before, fee)) < 0 {
		return nil, ErrNotRepaid
	}
	f.emitter.Emit(&types.Event{
		Type: EventTypeExecuted,
		Attributes: map[string]string{
			"receiver": receiver.Address().String(),
			"asset":    asset.String(),
			"amount":   amount.String(),
			"fee":      fee.String(),
			"feeBps":   strconv.FormatUint(f.feeBps, 10),
		},
	})
	return fee, nil
}
