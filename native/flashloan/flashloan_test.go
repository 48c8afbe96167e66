package flashloan_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"lendingpool/core/state"
	"lendingpool/crypto"
	nativecommon "lendingpool/native/common"
	"lendingpool/native/flashloan"
	"lendingpool/native/token"
	"lendingpool/storage"
)

type repayingReceiver struct {
	addr  crypto.Address
	extra *big.Int
}

func (r repayingReceiver) Address() crypto.Address { return r.addr }

func (r repayingReceiver) ExecuteOperation(_ context.Context, tokens flashloan.TokenLedger, asset crypto.Address, amount, fee *big.Int) error {
	owed := new(big.Int).Add(amount, fee)
	owed.Sub(owed, r.extra)
	return tokens.Transfer(asset, r.addr, crypto.ModuleAddress(flashloan.ModuleName), owed)
}

type keepingReceiver struct{ addr crypto.Address }

func (r keepingReceiver) Address() crypto.Address { return r.addr }

func (keepingReceiver) ExecuteOperation(context.Context, flashloan.TokenLedger, crypto.Address, *big.Int, *big.Int) error {
	return nil
}

type failingReceiver struct{ addr crypto.Address }

func (r failingReceiver) Address() crypto.Address { return r.addr }

var errArbitrage = errors.New("arbitrage failed")

func (failingReceiver) ExecuteOperation(context.Context, flashloan.TokenLedger, crypto.Address, *big.Int, *big.Int) error {
	return errArbitrage
}

type pauses map[string]bool

func (p pauses) IsPaused(module string) bool { return p[module] }

type fixture struct {
	root     *state.Manager
	owner    crypto.Address
	asset    crypto.Address
	facility crypto.Address
	paused   pauses
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		root:     state.NewManager(storage.NewMemDB()),
		owner:    crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x01}, crypto.AddressLength)),
		asset:    token.AddressForSymbol("T1"),
		facility: crypto.ModuleAddress(flashloan.ModuleName),
		paused:   pauses{},
	}
	err := f.root.Update(func(tx *state.Manager) error {
		ledger := token.NewLedger(tx)
		if _, err := ledger.Deploy(f.asset, f.owner, "Token 1", "T1", big.NewInt(1_000_000)); err != nil {
			return err
		}
		return ledger.Transfer(f.asset, f.owner, f.facility, big.NewInt(10_000))
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return f
}

func (f *fixture) fund(t *testing.T, to crypto.Address, amount int64) {
	t.Helper()
	err := f.root.Update(func(tx *state.Manager) error {
		return token.NewLedger(tx).Transfer(f.asset, f.owner, to, big.NewInt(amount))
	})
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func (f *fixture) loan(receiver flashloan.Receiver, amount int64) (*big.Int, error) {
	var fee *big.Int
	err := f.root.Update(func(tx *state.Manager) error {
		facility := flashloan.NewFacility(f.facility, flashloan.DefaultFeeBps)
		facility.SetTokens(token.NewLedger(tx))
		facility.SetPauses(f.paused)
		var err error
		fee, err = facility.FlashLoan(context.Background(), receiver, f.asset, big.NewInt(amount))
		return err
	})
	return fee, err
}

func (f *fixture) balance(t *testing.T, owner crypto.Address) int64 {
	t.Helper()
	var out *big.Int
	err := f.root.Update(func(tx *state.Manager) error {
		var err error
		out, err = token.NewLedger(tx).BalanceOf(f.asset, owner)
		return err
	})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return out.Int64()
}

func receiverAddress(b byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{b}, crypto.AddressLength))
}

func TestFlashLoanGoodReceiverPaysFee(t *testing.T) {
	f := newFixture(t)
	good := repayingReceiver{addr: receiverAddress(0x10), extra: big.NewInt(0)}
	f.fund(t, good.addr, 500)

	fee, err := f.loan(good, 10_000)
	if err != nil {
		t.Fatalf("flash loan: %v", err)
	}
	if fee.Int64() != 500 {
		t.Fatalf("expected fee 500, got %s", fee)
	}
	if got := f.balance(t, f.facility); got != 10_500 {
		t.Fatalf("expected facility balance 10500, got %d", got)
	}
	if got := f.balance(t, good.addr); got != 0 {
		t.Fatalf("expected receiver to spend its fee budget, got %d", got)
	}
}

func TestFlashLoanFailuresRollBack(t *testing.T) {
	f := newFixture(t)
	short := repayingReceiver{addr: receiverAddress(0x11), extra: big.NewInt(1)}
	f.fund(t, short.addr, 500)

	cases := []struct {
		name     string
		receiver flashloan.Receiver
		amount   int64
		want     error
	}{
		{name: "keeps funds", receiver: keepingReceiver{addr: receiverAddress(0x12)}, amount: 1_000, want: flashloan.ErrNotRepaid},
		{name: "short by one", receiver: short, amount: 10_000, want: flashloan.ErrNotRepaid},
		{name: "callback error", receiver: failingReceiver{addr: receiverAddress(0x13)}, amount: 1_000, want: errArbitrage},
		{name: "too large", receiver: keepingReceiver{addr: receiverAddress(0x12)}, amount: 10_001, want: flashloan.ErrInsufficientLiquidity},
		{name: "zero", receiver: keepingReceiver{addr: receiverAddress(0x12)}, amount: 0, want: flashloan.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.loan(tc.receiver, tc.amount); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got := f.balance(t, f.facility); got != 10_000 {
				t.Fatalf("facility balance changed: %d", got)
			}
			want := int64(0)
			if tc.receiver.Address().Equal(short.addr) {
				want = 500
			}
			if got := f.balance(t, tc.receiver.Address()); got != want {
				t.Fatalf("receiver balance changed: expected %d, got %d", want, got)
			}
		})
	}
}

func TestFlashLoanHonoursPause(t *testing.T) {
	f := newFixture(t)
	f.paused[flashloan.ModuleName] = true
	if _, err := f.loan(keepingReceiver{addr: receiverAddress(0x14)}, 100); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}
