package core

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"lendingpool/config"
	"lendingpool/core/types"
	"lendingpool/crypto"
	nativecommon "lendingpool/native/common"
	"lendingpool/native/flashloan"
	"lendingpool/native/lending"
	"lendingpool/native/token"
	"lendingpool/observability"
	"lendingpool/storage"
)

var testNow = time.Unix(1_700_000_000, 0).UTC()

func testAddr(b byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{b}, crypto.AddressLength))
}

type recordingSink struct {
	mu     sync.Mutex
	events []*types.Event
}

func (s *recordingSink) Record(_ context.Context, evts []*types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evts...)
	return nil
}

func (s *recordingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, evt := range s.events {
		out = append(out, evt.Type)
	}
	return out
}

type fixture struct {
	node   *Node
	db     storage.Database
	sink   *recordingSink
	admin  crypto.Address
	oracle crypto.Address
	t1     crypto.Address
	t2     crypto.Address
}

func testConfig(admin, oracle crypto.Address) *config.Config {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Roles.Admins = []string{admin.String()}
	cfg.Roles.Oracles = []string{oracle.String()}
	cfg.Tokens = []config.GenesisToken{
		{Symbol: "T1", Name: "Token One", Owner: admin.String(), Supply: "1000000000", Reserve: true, FlashLiquidity: "100000"},
		{Symbol: "T2", Owner: admin.String(), Supply: "1000000000", Reserve: true, Price: "1"},
	}
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	admin, oracle := testAddr(0xA0), testAddr(0xA1)
	db := storage.NewMemDB()
	sink := &recordingSink{}
	node, err := NewNode(db, testConfig(admin, oracle), WithClock(func() time.Time { return testNow }), WithEventSink(sink))
	require.NoError(t, err)
	return &fixture{
		node:   node,
		db:     db,
		sink:   sink,
		admin:  admin,
		oracle: oracle,
		t1:     token.AddressForSymbol("T1"),
		t2:     token.AddressForSymbol("T2"),
	}
}

func (f *fixture) fundAndDeposit(t *testing.T, user, asset crypto.Address, value int64, collateral bool) {
	t.Helper()
	amount := big.NewInt(value)
	require.NoError(t, f.node.Transfer(f.admin, asset, user, amount))
	require.NoError(t, f.node.Approve(user, asset, f.node.PoolAddress(), amount))
	require.NoError(t, f.node.Deposit(user, asset, amount, collateral))
}

func TestGenesisAppliedOnce(t *testing.T) {
	f := newFixture(t)

	count, err := f.node.ReserveCount()
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.True(t, f.node.HasRole(lending.RoleAdmin, f.admin))
	require.True(t, f.node.HasRole(lending.RoleOracle, f.oracle))

	meta, err := f.node.TokenMetadata(f.t1)
	require.NoError(t, err)
	require.Equal(t, "Token One", meta.Name)
	meta, err = f.node.TokenMetadata(f.t2)
	require.NoError(t, err)
	require.Equal(t, "T2", meta.Name)

	flash, err := f.node.TokenBalance(f.t1, f.node.FlashLoanAccount())
	require.NoError(t, err)
	require.Equal(t, "100000", flash.String())

	// Reopening the same database must not redeploy tokens.
	again, err := NewNode(f.db, testConfig(f.admin, f.oracle), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	count, err = again.ReserveCount()
	require.NoError(t, err)
	require.Equal(t, 2, count)
	balance, err := again.TokenBalance(f.t1, f.admin)
	require.NoError(t, err)
	require.Equal(t, "999900000", balance.String())
}

func TestGenesisRequiresAdminForReserves(t *testing.T) {
	cfg := testConfig(testAddr(0xA0), testAddr(0xA1))
	cfg.Roles.Admins = nil
	_, err := NewNode(storage.NewMemDB(), cfg)
	if err == nil {
		t.Fatalf("expected genesis without admin to fail")
	}
}

func TestBorrowLifecyclePublishesEvents(t *testing.T) {
	f := newFixture(t)
	alice, bob := testAddr(0x01), testAddr(0x02)

	stream, cancel := f.node.Subscribe(32)
	defer cancel()

	f.fundAndDeposit(t, bob, f.t2, 10_000, false)
	f.fundAndDeposit(t, alice, f.t1, 10_000, true)

	fee, err := f.node.Borrow(alice, f.t2, big.NewInt(1_000))
	require.NoError(t, err)
	require.Equal(t, "2", fee.String())

	data, err := f.node.UserGlobalData(alice)
	require.NoError(t, err)
	require.Equal(t, "1002", data.TotalDebt.String())
	require.Equal(t, -1, data.HealthFactor.Cmp(lending.MaxHealthFactor))

	reserve, err := f.node.ReserveData(f.t2)
	require.NoError(t, err)
	require.Equal(t, "9000", reserve.AvailableLiquidity.String())

	require.NoError(t, f.node.Approve(alice, f.t2, f.node.PoolAddress(), big.NewInt(1_002)))
	require.NoError(t, f.node.Transfer(f.admin, f.t2, alice, big.NewInt(2)))
	split, err := f.node.Repay(alice, f.t2, big.NewInt(1_002), crypto.Address{})
	require.NoError(t, err)
	require.Equal(t, "1000", split.Principal.String())
	require.Equal(t, "2", split.Fee.String())

	if _, err := f.node.BorrowBalances(f.t2, alice); err != nil && !errors.Is(err, lending.ErrNoPosition) {
		t.Fatalf("unexpected borrow balance error: %v", err)
	}

	redeemed, err := f.node.RedeemAll(alice, f.t1)
	require.NoError(t, err)
	require.Equal(t, "10000", redeemed.String())

	seen := map[string]bool{}
	for len(stream) > 0 {
		seen[(<-stream).Type] = true
	}
	for _, want := range []string{lending.EventTypeDeposit, lending.EventTypeBorrow, lending.EventTypeRepay, lending.EventTypeRedeem} {
		require.True(t, seen[want], "missing streamed event %s", want)
	}
	require.Contains(t, f.sink.kinds(), lending.EventTypeBorrow)
}

func TestFailedOperationPublishesNothing(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(0x01)
	before := len(f.sink.kinds())

	require.NoError(t, f.node.Transfer(f.admin, f.t1, alice, big.NewInt(500)))
	afterTransfer := len(f.sink.kinds())
	require.Greater(t, afterTransfer, before)

	// No allowance: the deposit must fail and leave balances untouched.
	err := f.node.Deposit(alice, f.t1, big.NewInt(500), true)
	require.ErrorIs(t, err, lending.ErrInsufficientAllowance)
	require.Equal(t, afterTransfer, len(f.sink.kinds()))

	balance, err := f.node.TokenBalance(f.t1, alice)
	require.NoError(t, err)
	require.Equal(t, "500", balance.String())
}

func TestPauseRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(0x01)

	require.ErrorIs(t, f.node.SetPaused(alice, lending.ModuleName, true), ErrUnauthorized)
	require.ErrorIs(t, f.node.SetPaused(f.admin, "staking", true), ErrUnknownModule)

	require.NoError(t, f.node.SetPaused(f.admin, lending.ModuleName, true))
	require.True(t, f.node.IsPaused(lending.ModuleName))
	require.Contains(t, f.sink.kinds(), "module.paused")

	require.NoError(t, f.node.Transfer(f.admin, f.t1, alice, big.NewInt(10)))
	require.NoError(t, f.node.Approve(alice, f.t1, f.node.PoolAddress(), big.NewInt(10)))
	require.ErrorIs(t, f.node.Deposit(alice, f.t1, big.NewInt(10), true), nativecommon.ErrModulePaused)

	// Admin surface keeps working while paused.
	require.NoError(t, f.node.SetPrice(f.oracle, f.t1, big.NewInt(3)))

	require.NoError(t, f.node.SetPaused(f.admin, lending.ModuleName, false))
	require.NoError(t, f.node.Deposit(alice, f.t1, big.NewInt(10), true))
}

type nodeReceiver struct {
	addr  crypto.Address
	repay bool
}

func (r nodeReceiver) Address() crypto.Address { return r.addr }

func (r nodeReceiver) ExecuteOperation(_ context.Context, tokens flashloan.TokenLedger, asset crypto.Address, amount, fee *big.Int) error {
	if !r.repay {
		return nil
	}
	return tokens.Transfer(asset, r.addr, crypto.ModuleAddress(flashloan.ModuleName), new(big.Int).Add(amount, fee))
}

func TestFlashLoanThroughNode(t *testing.T) {
	f := newFixture(t)
	good := nodeReceiver{addr: testAddr(0x10), repay: true}
	bad := nodeReceiver{addr: testAddr(0x11)}
	require.NoError(t, f.node.Transfer(f.admin, f.t1, good.addr, big.NewInt(500)))

	counter := observability.Lending().FlashLoanCounter()
	successBefore := testutil.ToFloat64(counter.WithLabelValues("success"))

	fee, err := f.node.FlashLoan(context.Background(), good, f.t1, big.NewInt(10_000))
	require.NoError(t, err)
	require.Equal(t, "500", fee.String())
	require.Equal(t, successBefore+1, testutil.ToFloat64(counter.WithLabelValues("success")))

	facility, err := f.node.TokenBalance(f.t1, f.node.FlashLoanAccount())
	require.NoError(t, err)
	require.Equal(t, "100500", facility.String())

	_, err = f.node.FlashLoan(context.Background(), bad, f.t1, big.NewInt(10_000))
	require.ErrorIs(t, err, flashloan.ErrNotRepaid)
	facility, err = f.node.TokenBalance(f.t1, f.node.FlashLoanAccount())
	require.NoError(t, err)
	require.Equal(t, "100500", facility.String())
	kept, err := f.node.TokenBalance(f.t1, bad.addr)
	require.NoError(t, err)
	require.Equal(t, 0, kept.Sign())
}

func TestSubscriptionCancelClosesChannel(t *testing.T) {
	f := newFixture(t)
	stream, cancel := f.node.Subscribe(1)
	cancel()
	cancel()
	if _, ok := <-stream; ok {
		t.Fatalf("expected closed channel after cancel")
	}
}
