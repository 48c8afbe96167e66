package lending_test

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"lendingpool/core/events"
	"lendingpool/core/state"
	"lendingpool/crypto"
	"lendingpool/native/lending"
	"lendingpool/native/token"
	"lendingpool/storage"
)

var genesisTime = time.Unix(1_700_000_000, 0).UTC()

type harness struct {
	t      *testing.T
	root   *state.Manager
	now    time.Time
	pauses map[string]bool
	events events.Buffer

	admin  crypto.Address
	oracle crypto.Address
	pool   crypto.Address
	t1     crypto.Address
	t2     crypto.Address
	t3     crypto.Address
}

type stubPauseView map[string]bool

func (s stubPauseView) IsPaused(module string) bool { return s[module] }

func makeAddress(suffix byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{suffix}, crypto.AddressLength))
}

func amount(v int64) *big.Int { return big.NewInt(v) }

// newHarness deploys three tokens owned by the admin and registers them as
// reserves with default parameters and unit prices.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		root:   state.NewManager(storage.NewMemDB()),
		now:    genesisTime,
		pauses: make(map[string]bool),
		admin:  makeAddress(0xA0),
		oracle: makeAddress(0xA1),
		pool:   crypto.ModuleAddress(lending.ModuleName),
		t1:     token.AddressForSymbol("T1"),
		t2:     token.AddressForSymbol("T2"),
		t3:     token.AddressForSymbol("T3"),
	}
	if err := h.root.SetRole(lending.RoleAdmin, h.admin.Bytes()); err != nil {
		t.Fatalf("set admin role: %v", err)
	}
	if err := h.root.SetRole(lending.RoleOracle, h.oracle.Bytes()); err != nil {
		t.Fatalf("set oracle role: %v", err)
	}
	supply := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	h.exec(func(e *lending.Engine, tokens *token.Ledger) error {
		for i, addr := range []crypto.Address{h.t1, h.t2, h.t3} {
			symbol := []string{"T1", "T2", "T3"}[i]
			if _, err := tokens.Deploy(addr, h.admin, "Token "+symbol, symbol, supply); err != nil {
				return err
			}
			if _, err := e.AddReserve(h.admin, addr); err != nil {
				return err
			}
		}
		return nil
	})
	h.events.Drain()
	return h
}

func (h *harness) run(fn func(e *lending.Engine, tokens *token.Ledger) error) error {
	return h.root.Update(func(tx *state.Manager) error {
		tokens := token.NewLedger(tx)
		engine := lending.NewEngine(h.pool, lending.DefaultInterestModel, lending.DefaultReserveParams)
		engine.SetState(tx)
		engine.SetTokens(tokens)
		engine.SetPauses(stubPauseView(h.pauses))
		engine.SetEmitter(&h.events)
		now := h.now
		engine.SetClock(func() time.Time { return now })
		return fn(engine, tokens)
	})
}

func (h *harness) exec(fn func(e *lending.Engine, tokens *token.Ledger) error) {
	h.t.Helper()
	if err := h.run(fn); err != nil {
		h.t.Fatalf("unexpected error: %v", err)
	}
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func (h *harness) fund(user, asset crypto.Address, value int64) {
	h.t.Helper()
	h.exec(func(_ *lending.Engine, tokens *token.Ledger) error {
		return tokens.Transfer(asset, h.admin, user, amount(value))
	})
}

func (h *harness) approve(user, asset crypto.Address, value int64) {
	h.t.Helper()
	h.exec(func(_ *lending.Engine, tokens *token.Ledger) error {
		return tokens.Approve(asset, user, h.pool, amount(value))
	})
}

// deposit funds, approves and deposits value for user.
func (h *harness) deposit(user, asset crypto.Address, value int64, collateral bool) {
	h.t.Helper()
	h.fund(user, asset, value)
	h.approve(user, asset, value)
	h.exec(func(e *lending.Engine, _ *token.Ledger) error {
		return e.Deposit(user, asset, amount(value), collateral)
	})
}

func (h *harness) borrow(user, asset crypto.Address, value int64) *big.Int {
	h.t.Helper()
	var fee *big.Int
	h.exec(func(e *lending.Engine, _ *token.Ledger) error {
		var err error
		fee, err = e.Borrow(user, asset, amount(value))
		return err
	})
	return fee
}

func (h *harness) setPrice(asset crypto.Address, price int64) {
	h.t.Helper()
	h.exec(func(e *lending.Engine, _ *token.Ledger) error {
		return e.SetPrice(h.oracle, asset, amount(price))
	})
}

func (h *harness) balance(asset, owner crypto.Address) *big.Int {
	h.t.Helper()
	var out *big.Int
	h.exec(func(_ *lending.Engine, tokens *token.Ledger) error {
		var err error
		out, err = tokens.BalanceOf(asset, owner)
		return err
	})
	return out
}

func (h *harness) globalData(user crypto.Address) *lending.UserGlobalData {
	h.t.Helper()
	var out *lending.UserGlobalData
	h.exec(func(e *lending.Engine, _ *token.Ledger) error {
		var err error
		out, err = e.CalculateUserGlobalData(user)
		return err
	})
	return out
}

func (h *harness) borrowBalances(user, asset crypto.Address) lending.BorrowBalances {
	h.t.Helper()
	var out lending.BorrowBalances
	h.exec(func(e *lending.Engine, _ *token.Ledger) error {
		var err error
		out, err = e.GetUserBorrowBalances(asset, user)
		return err
	})
	return out
}

func (h *harness) receipt(user, asset crypto.Address) *big.Int {
	h.t.Helper()
	var out *big.Int
	h.exec(func(e *lending.Engine, _ *token.Ledger) error {
		var err error
		out, err = e.BalanceOfReceiptToken(user, asset)
		return err
	})
	return out
}

func (h *harness) reserveData(asset crypto.Address) *lending.ReserveData {
	h.t.Helper()
	var out *lending.ReserveData
	h.exec(func(e *lending.Engine, _ *token.Ledger) error {
		var err error
		out, err = e.GetReserveData(asset)
		return err
	})
	return out
}

func requireAmount(t *testing.T, label string, got *big.Int, want int64) {
	t.Helper()
	if got == nil || got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("%s: expected %d, got %v", label, want, got)
	}
}
