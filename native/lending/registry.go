package lending

import (
	"math/big"

	"lendingpool/crypto"
)

func (e *Engine) requireRole(role string, caller crypto.Address) error {
	if !e.state.HasRole(role, caller.Bytes()) {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) paramsFor(asset crypto.Address) ReserveParams {
	if params, ok := e.overrides[asset.Key()]; ok {
		return params
	}
	return e.defaults
}

// AddReserve registers asset as a new reserve with the configured risk
// parameters. Only admins may add reserves.
func (e *Engine) AddReserve(caller, asset crypto.Address) (*Reserve, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireRole(RoleAdmin, caller); err != nil {
		return nil, err
	}
	if asset.IsZero() {
		return nil, ErrUnknownReserve
	}
	if _, exists, err := e.state.LendingReserve(asset); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyRegistered
	}
	// The asset must be a live token so liquidity can be measured.
	if _, err := e.tokens.BalanceOf(asset, e.poolAddress); err != nil {
		return nil, err
	}
	params := e.paramsFor(asset)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	reserve := &Reserve{
		Asset:      asset,
		Enabled:    true,
		LastUpdate: e.now(),
		Params:     params,
	}
	reserve.ensureDefaults()
	if err := e.state.LendingPutReserve(reserve); err != nil {
		return nil, err
	}
	if err := e.state.LendingAppendReserve(asset); err != nil {
		return nil, err
	}
	e.emitter.Emit(NewReserveAddedEvent(reserve))
	return reserve.Clone(), nil
}

// SetPrice publishes the oracle price of asset in reference units.
func (e *Engine) SetPrice(caller, asset crypto.Address, price *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireRole(RoleOracle, caller); err != nil {
		return err
	}
	if err := validAmount(price); err != nil {
		return err
	}
	book, err := e.loadBook()
	if err != nil {
		return err
	}
	reserve, err := book.require(asset)
	if err != nil {
		return err
	}
	reserve.Price = new(big.Int).Set(price)
	if err := e.state.LendingPutReserve(reserve); err != nil {
		return err
	}
	e.emitter.Emit(NewPriceUpdatedEvent(asset, price))
	return nil
}

// SetReserveEnabled toggles whether new deposits and borrows are accepted.
func (e *Engine) SetReserveEnabled(caller, asset crypto.Address, enabled bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireRole(RoleAdmin, caller); err != nil {
		return err
	}
	reserve, ok, err := e.state.LendingReserve(asset)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownReserve
	}
	reserve.Enabled = enabled
	if err := e.state.LendingPutReserve(reserve); err != nil {
		return err
	}
	e.emitter.Emit(NewReserveStatusEvent(asset, enabled))
	return nil
}

// Reserves lists registered assets in insertion order.
func (e *Engine) Reserves() ([]crypto.Address, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.LendingReserveList()
}

// ReserveCount returns the number of registered reserves.
func (e *Engine) ReserveCount() (int, error) {
	assets, err := e.Reserves()
	if err != nil {
		return 0, err
	}
	return len(assets), nil
}

// Reserve returns a copy of the reserve accrued to the current time.
func (e *Engine) Reserve(asset crypto.Address) (*Reserve, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	book, err := e.loadBook()
	if err != nil {
		return nil, err
	}
	reserve, err := book.require(asset)
	if err != nil {
		return nil, err
	}
	return reserve.Clone(), nil
}

// GetReserveData returns the reserve together with its liquidity and the
// rates implied by current utilisation.
func (e *Engine) GetReserveData(asset crypto.Address) (*ReserveData, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	book, err := e.loadBook()
	if err != nil {
		return nil, err
	}
	reserve, err := book.require(asset)
	if err != nil {
		return nil, err
	}
	available, err := book.available(asset)
	if err != nil {
		return nil, err
	}
	total := new(big.Int).Add(available, reserve.TotalBorrows)
	return &ReserveData{
		Reserve:            reserve.Clone(),
		AvailableLiquidity: available,
		TotalLiquidity:     total,
		Utilisation:        e.interestModel.Utilisation(reserve.TotalBorrows, total),
		BorrowRate:         e.interestModel.BorrowAPR(reserve.TotalBorrows, total),
		SupplyRate:         e.interestModel.SupplyAPY(reserve.TotalBorrows, total, reserve.Params.ReserveFactorBps),
	}, nil
}

// GetUserBorrowBalances returns the user's debt in asset with interest
// projected to the current time.
func (e *Engine) GetUserBorrowBalances(asset, user crypto.Address) (BorrowBalances, error) {
	if err := e.ready(); err != nil {
		return BorrowBalances{}, err
	}
	book, err := e.loadBook()
	if err != nil {
		return BorrowBalances{}, err
	}
	reserve, err := book.require(asset)
	if err != nil {
		return BorrowBalances{}, err
	}
	pos, ok, err := e.state.LendingBorrow(asset, user)
	if err != nil {
		return BorrowBalances{}, err
	}
	if !ok {
		pos = nil
	}
	return borrowBalances(pos, reserve.BorrowIndex), nil
}

// BalanceOfReceiptToken returns the user's deposit in underlying units.
func (e *Engine) BalanceOfReceiptToken(user, asset crypto.Address) (*big.Int, error) {
	data, err := e.GetUserReserveData(asset, user)
	if err != nil {
		return nil, err
	}
	return data.ReceiptBalance, nil
}

// GetUserReserveData reports the user's receipt balance, debt and collateral
// flag in a single reserve.
func (e *Engine) GetUserReserveData(asset, user crypto.Address) (*UserReserveData, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	book, err := e.loadBook()
	if err != nil {
		return nil, err
	}
	reserve, err := book.require(asset)
	if err != nil {
		return nil, err
	}
	data := &UserReserveData{ReceiptBalance: big.NewInt(0)}
	deposit, ok, err := e.state.LendingDeposit(asset, user)
	if err != nil {
		return nil, err
	}
	if ok {
		data.ReceiptBalance = deposit.Balance(reserve.LiquidityIndex)
		data.UseAsCollateral = deposit.UseAsCollateral
	}
	borrow, ok, err := e.state.LendingBorrow(asset, user)
	if err != nil {
		return nil, err
	}
	if !ok {
		borrow = nil
	}
	data.Borrow = borrowBalances(borrow, reserve.BorrowIndex)
	return data, nil
}
