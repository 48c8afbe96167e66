package state

import (
	"errors"

	"lendingpool/crypto"
	"lendingpool/native/lending"
)

var errNegativeValue = errors.New("state: negative value not allowed")

// LendingReserve loads the reserve registered for asset.
func (m *Manager) LendingReserve(asset crypto.Address) (*lending.Reserve, bool, error) {
	var reserve lending.Reserve
	ok, err := m.KVGet(LendingReserveKey(asset.Bytes()), &reserve)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &reserve, true, nil
}

// LendingPutReserve stores the reserve.
func (m *Manager) LendingPutReserve(reserve *lending.Reserve) error {
	return m.KVPut(LendingReserveKey(reserve.Asset.Bytes()), reserve)
}

// LendingReserveList returns every registered asset in registration order.
func (m *Manager) LendingReserveList() ([]crypto.Address, error) {
	return m.addressList(lendingReserveListKey)
}

// LendingAppendReserve adds asset to the reserve list.
func (m *Manager) LendingAppendReserve(asset crypto.Address) error {
	return m.KVAppend(lendingReserveListKey, asset.Bytes())
}

// LendingDeposit loads owner's deposit position in the asset's reserve.
func (m *Manager) LendingDeposit(asset, owner crypto.Address) (*lending.DepositPosition, bool, error) {
	var pos lending.DepositPosition
	ok, err := m.KVGet(LendingDepositKey(asset.Bytes(), owner.Bytes()), &pos)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &pos, true, nil
}

// LendingPutDeposit stores a deposit position.
func (m *Manager) LendingPutDeposit(pos *lending.DepositPosition) error {
	return m.KVPut(LendingDepositKey(pos.Asset.Bytes(), pos.Owner.Bytes()), pos)
}

// LendingDeleteDeposit removes a deposit position.
func (m *Manager) LendingDeleteDeposit(asset, owner crypto.Address) error {
	return m.KVDelete(LendingDepositKey(asset.Bytes(), owner.Bytes()))
}

// LendingBorrow loads owner's borrow position in the asset's reserve.
func (m *Manager) LendingBorrow(asset, owner crypto.Address) (*lending.BorrowPosition, bool, error) {
	var pos lending.BorrowPosition
	ok, err := m.KVGet(LendingBorrowKey(asset.Bytes(), owner.Bytes()), &pos)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &pos, true, nil
}

// LendingPutBorrow stores a borrow position.
func (m *Manager) LendingPutBorrow(pos *lending.BorrowPosition) error {
	return m.KVPut(LendingBorrowKey(pos.Asset.Bytes(), pos.Owner.Bytes()), pos)
}

// LendingDeleteBorrow removes a borrow position.
func (m *Manager) LendingDeleteBorrow(asset, owner crypto.Address) error {
	return m.KVDelete(LendingBorrowKey(asset.Bytes(), owner.Bytes()))
}

// SetPaused flips the pause flag of a module.
func (m *Manager) SetPaused(module string, paused bool) error {
	if !paused {
		return m.KVDelete(PauseKey(module))
	}
	return m.KVPut(PauseKey(module), true)
}

// IsPaused implements common.PauseView over the stored flags.
func (m *Manager) IsPaused(module string) bool {
	var paused bool
	ok, err := m.KVGet(PauseKey(module), &paused)
	return err == nil && ok && paused
}
