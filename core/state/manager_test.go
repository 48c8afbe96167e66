package state

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lendingpool/crypto"
	"lendingpool/native/lending"
	"lendingpool/storage"
)

func TestKeyNamespaces(t *testing.T) {
	if got := string(LendingReserveKey([]byte("ab"))); got != "lending/reserve/ab" {
		t.Fatalf("unexpected reserve key: %s", got)
	}
	if got := string(LendingDepositKey([]byte("ab"), []byte("cd"))); got != "lending/deposit/ab/cd" {
		t.Fatalf("unexpected deposit key: %s", got)
	}
	if got := string(TokenAllowanceKey([]byte("t"), []byte("o"), []byte("s"))); got != "token/allowance/t/o/s" {
		t.Fatalf("unexpected allowance key: %s", got)
	}
	if got := string(PauseKey("lending")); got != "pause/lending" {
		t.Fatalf("unexpected pause key: %s", got)
	}
}

func TestOverlayCommitAndDiscard(t *testing.T) {
	db := storage.NewMemDB()
	root := NewManager(db)

	tx := root.Begin()
	require.NoError(t, tx.KVPut([]byte("alpha"), uint64(7)))
	require.Equal(t, 1, tx.Pending())

	var value uint64
	ok, err := root.KVGet([]byte("alpha"), &value)
	require.NoError(t, err)
	require.False(t, ok, "uncommitted write must not reach the root")

	tx.Discard()
	require.Equal(t, 0, tx.Pending())

	tx = root.Begin()
	require.NoError(t, tx.KVPut([]byte("alpha"), uint64(9)))
	require.NoError(t, tx.Commit())
	ok, err = root.KVGet([]byte("alpha"), &value)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(9), value)

	tx = root.Begin()
	require.NoError(t, tx.KVDelete([]byte("alpha")))
	ok, err = tx.KVGet([]byte("alpha"), &value)
	require.NoError(t, err)
	require.False(t, ok, "delete must be visible inside the transaction")
	require.NoError(t, tx.Commit())
	_, err = db.Get(kvKey([]byte("alpha")))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNestedTransactionFoldsIntoParent(t *testing.T) {
	root := NewManager(storage.NewMemDB())
	outer := root.Begin()
	inner := outer.Begin()
	require.NoError(t, inner.KVPut([]byte("k"), "v"))
	require.NoError(t, inner.Commit())

	var out string
	ok, err := outer.KVGet([]byte("k"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", out)

	ok, err = root.KVGet([]byte("k"), &out)
	require.NoError(t, err)
	require.False(t, ok)

	outer.Discard()
	ok, err = root.KVGet([]byte("k"), &out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUpdateDiscardsOnError(t *testing.T) {
	root := NewManager(storage.NewMemDB())
	addr := []byte{0x01, 0x02}
	err := root.Update(func(tx *Manager) error {
		require.NoError(t, tx.SetRole("admin", addr))
		return lending.ErrUnauthorized
	})
	require.ErrorIs(t, err, lending.ErrUnauthorized)
	require.False(t, root.HasRole("admin", addr))

	require.NoError(t, root.Update(func(tx *Manager) error {
		return tx.SetRole("admin", addr)
	}))
	require.True(t, root.HasRole("admin", addr))
}

func TestRoles(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	a, b := []byte{0x0b}, []byte{0x0a}
	require.NoError(t, mgr.SetRole("oracle", a))
	require.NoError(t, mgr.SetRole("oracle", b))
	require.NoError(t, mgr.SetRole("oracle", a))

	members, err := mgr.RoleMembers("oracle")
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.True(t, bytes.Equal(members[0], b), "members must be sorted")

	require.NoError(t, mgr.RemoveRole("oracle", b))
	require.False(t, mgr.HasRole("oracle", b))
	require.True(t, mgr.HasRole("oracle", a))
	require.False(t, mgr.HasRole("oracle", nil))
	require.Error(t, mgr.SetRole(" ", a))
}

func TestLendingRecordsRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	asset := crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x01}, crypto.AddressLength))
	owner := crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x02}, crypto.AddressLength))

	reserve := &lending.Reserve{
		Asset:          asset,
		Enabled:        true,
		Price:          big.NewInt(3),
		TotalDeposits:  big.NewInt(100),
		TotalPrincipal: big.NewInt(40),
		TotalBorrows:   big.NewInt(41),
		ProtocolFees:   big.NewInt(1),
		BorrowIndex:    new(big.Int).Set(lending.Ray),
		LiquidityIndex: new(big.Int).Set(lending.Ray),
		LastUpdate:     99,
		Params:         lending.DefaultReserveParams,
	}
	require.NoError(t, mgr.LendingPutReserve(reserve))
	require.NoError(t, mgr.LendingAppendReserve(asset))
	require.NoError(t, mgr.LendingAppendReserve(asset))

	loaded, ok, err := mgr.LendingReserve(asset)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, reserve, loaded)

	list, err := mgr.LendingReserveList()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, list[0].Equal(asset))

	deposit := &lending.DepositPosition{Owner: owner, Asset: asset, ScaledBalance: big.NewInt(5), UseAsCollateral: true}
	require.NoError(t, mgr.LendingPutDeposit(deposit))
	gotDeposit, ok, err := mgr.LendingDeposit(asset, owner)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, deposit, gotDeposit)
	require.NoError(t, mgr.LendingDeleteDeposit(asset, owner))
	_, ok, err = mgr.LendingDeposit(asset, owner)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = mgr.LendingBorrow(asset, owner)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPauseFlags(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	require.False(t, mgr.IsPaused("lending"))
	require.NoError(t, mgr.SetPaused("lending", true))
	require.True(t, mgr.IsPaused("lending"))
	require.False(t, mgr.IsPaused("flashloan"))
	require.NoError(t, mgr.SetPaused("lending", false))
	require.False(t, mgr.IsPaused("lending"))
}

func TestTokenBalancesDeleteZero(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	tok := crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x03}, crypto.AddressLength))
	owner := crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x04}, crypto.AddressLength))

	require.NoError(t, mgr.SetTokenBalance(tok, owner, big.NewInt(10)))
	balance, err := mgr.TokenBalance(tok, owner)
	require.NoError(t, err)
	require.Equal(t, int64(10), balance.Int64())

	require.NoError(t, mgr.SetTokenBalance(tok, owner, big.NewInt(0)))
	_, err = mgr.db.Get(kvKey(TokenBalanceKey(tok.Bytes(), owner.Bytes())))
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Error(t, mgr.SetTokenBalance(tok, owner, big.NewInt(-1)))
}
