package lending

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"lendingpool/core/events"
	"lendingpool/crypto"
	nativecommon "lendingpool/native/common"
	"lendingpool/native/token"
)

const moduleName = "lending"

// ModuleName identifies the lending module for pause checks.
const ModuleName = moduleName

// Roles recognised by the engine.
const (
	RoleAdmin  = "admin"
	RoleOracle = "oracle"
)

type engineState interface {
	HasRole(role string, addr []byte) bool
	LendingReserve(asset crypto.Address) (*Reserve, bool, error)
	LendingPutReserve(reserve *Reserve) error
	LendingReserveList() ([]crypto.Address, error)
	LendingAppendReserve(asset crypto.Address) error
	LendingDeposit(asset, owner crypto.Address) (*DepositPosition, bool, error)
	LendingPutDeposit(pos *DepositPosition) error
	LendingDeleteDeposit(asset, owner crypto.Address) error
	LendingBorrow(asset, owner crypto.Address) (*BorrowPosition, bool, error)
	LendingPutBorrow(pos *BorrowPosition) error
	LendingDeleteBorrow(asset, owner crypto.Address) error
}

// TokenLedger is the fungible token boundary consumed by the pool.
type TokenLedger interface {
	Transfer(token, from, to crypto.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to crypto.Address, amount *big.Int) error
	BalanceOf(token, owner crypto.Address) (*big.Int, error)
}

// Engine orchestrates the state transitions of the lending pool. An engine is
// bound to one state transaction at a time; the caller commits or discards
// the transaction depending on the returned error.
type Engine struct {
	state         engineState
	tokens        TokenLedger
	poolAddress   crypto.Address
	interestModel *InterestModel
	defaults      ReserveParams
	overrides     map[string]ReserveParams
	pauses        nativecommon.PauseView
	emitter       events.Emitter
	clock         func() time.Time
}

// NewEngine constructs a lending engine that custodies funds at poolAddr.
func NewEngine(poolAddr crypto.Address, model *InterestModel, defaults ReserveParams) *Engine {
	return &Engine{
		poolAddress:   poolAddr,
		interestModel: model.Clone(),
		defaults:      defaults,
		overrides:     make(map[string]ReserveParams),
		emitter:       events.NoopEmitter{},
		clock:         time.Now,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokens wires the token ledger used for every balance movement.
func (e *Engine) SetTokens(tokens TokenLedger) { e.tokens = tokens }

// SetPauses wires the pause view consulted before user operations.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event sink. Passing nil discards events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetClock overrides the time source used for interest accrual.
func (e *Engine) SetClock(clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}
	e.clock = clock
}

// SetReserveParams overrides the risk parameters applied when asset is added.
func (e *Engine) SetReserveParams(asset crypto.Address, params ReserveParams) {
	e.overrides[asset.Key()] = params
}

// PoolAddress returns the account that custodies reserve liquidity.
func (e *Engine) PoolAddress() crypto.Address { return e.poolAddress }

func (e *Engine) now() uint64 {
	ts := e.clock().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil {
		return errNilTokens
	}
	return nil
}

func (e *Engine) guard() error {
	if err := e.ready(); err != nil {
		return err
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

// availableLiquidity is the pool's idle balance of the asset net of fees
// awaiting collection.
func (e *Engine) availableLiquidity(reserve *Reserve) (*big.Int, error) {
	balance, err := e.tokens.BalanceOf(reserve.Asset, e.poolAddress)
	if err != nil {
		return nil, err
	}
	available := new(big.Int).Sub(balance, cloneBig(reserve.ProtocolFees))
	if available.Sign() < 0 {
		available.SetInt64(0)
	}
	return available, nil
}

func (e *Engine) pull(asset, from crypto.Address, amount *big.Int) error {
	if err := e.tokens.TransferFrom(asset, e.poolAddress, from, e.poolAddress, amount); err != nil {
		return translateTokenError(err)
	}
	return nil
}

func (e *Engine) push(asset, to crypto.Address, amount *big.Int) error {
	if err := e.tokens.Transfer(asset, e.poolAddress, to, amount); err != nil {
		return translateTokenError(err)
	}
	return nil
}

func translateTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrInsufficientAllowance):
		return fmt.Errorf("%w: %w", ErrInsufficientAllowance, err)
	default:
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Deposit pulls amount of asset from user into the pool, credits receipt
// units and sets the collateral flag as requested. Clearing the flag on an
// existing position fails with ErrCollateralInUse when the user's remaining
// collateral would not cover their debt.
func (e *Engine) Deposit(user, asset crypto.Address, amount *big.Int, useAsCollateral bool) error {
	if err := e.guard(); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
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
	if !reserve.Enabled {
		return ErrReserveDisabled
	}
	pos, err := e.loadDeposit(asset, user)
	if err != nil {
		return err
	}
	if pos.UseAsCollateral && !useAsCollateral && pos.ScaledBalance.Sign() > 0 {
		after, err := e.accountData(book, user, asset)
		if err != nil {
			return err
		}
		if after.healthFactor().Cmp(Wad) < 0 {
			return ErrCollateralInUse
		}
	}
	if err := e.pull(asset, user, amount); err != nil {
		return err
	}

	pos.UseAsCollateral = useAsCollateral
	scaled := sharesFromLiquidity(amount, reserve.LiquidityIndex)
	pos.ScaledBalance = new(big.Int).Add(pos.ScaledBalance, scaled)
	reserve.TotalDeposits = new(big.Int).Add(reserve.TotalDeposits, scaled)

	if err := e.state.LendingPutDeposit(pos); err != nil {
		return err
	}
	if err := e.state.LendingPutReserve(reserve); err != nil {
		return err
	}
	e.emitter.Emit(NewDepositEvent(user, asset, amount, pos.UseAsCollateral))
	return nil
}

// Borrow transfers amount of asset to user against their collateral and
// returns the origination fee charged.
func (e *Engine) Borrow(user, asset crypto.Address, amount *big.Int) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if err := validAmount(amount); err != nil {
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
	if !reserve.Enabled {
		return nil, ErrReserveDisabled
	}
	available, err := book.available(asset)
	if err != nil {
		return nil, err
	}
	if available.Cmp(amount) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	fee := bpsOf(amount, reserve.Params.OriginationFeeBps)
	account, err := e.accountData(book, user, crypto.Address{})
	if err != nil {
		return nil, err
	}
	if amount.Cmp(borrowable(account.headroom(), reserve)) > 0 {
		return nil, ErrInsufficientCollateral
	}

	pos, err := e.loadBorrow(asset, user)
	if err != nil {
		return nil, err
	}
	capitalize(pos, reserve.BorrowIndex)
	pos.Principal = new(big.Int).Add(pos.Principal, amount)
	pos.OriginationFee = new(big.Int).Add(pos.OriginationFee, fee)
	pos.LastUpdate = reserve.LastUpdate
	reserve.TotalPrincipal = new(big.Int).Add(reserve.TotalPrincipal, amount)
	reserve.TotalBorrows = new(big.Int).Add(reserve.TotalBorrows, amount)

	if err := e.state.LendingPutBorrow(pos); err != nil {
		return nil, err
	}
	if err := e.state.LendingPutReserve(reserve); err != nil {
		return nil, err
	}
	if err := e.push(asset, user, amount); err != nil {
		return nil, err
	}
	e.emitter.Emit(NewBorrowEvent(user, asset, amount, fee))
	return fee, nil
}

// Repay pulls amount of asset from payer and applies it to onBehalfOf's debt
// in the order interest, origination fee, principal.
func (e *Engine) Repay(payer, asset crypto.Address, amount *big.Int, onBehalfOf crypto.Address) (RepaySplit, error) {
	if err := e.guard(); err != nil {
		return RepaySplit{}, err
	}
	if err := validAmount(amount); err != nil {
		return RepaySplit{}, err
	}
	if onBehalfOf.IsZero() {
		onBehalfOf = payer
	}
	book, err := e.loadBook()
	if err != nil {
		return RepaySplit{}, err
	}
	reserve, err := book.require(asset)
	if err != nil {
		return RepaySplit{}, err
	}
	pos, ok, err := e.state.LendingBorrow(asset, onBehalfOf)
	if err != nil {
		return RepaySplit{}, err
	}
	if !ok {
		return RepaySplit{}, ErrNoDebt
	}
	pos.ensureDefaults()
	capitalize(pos, reserve.BorrowIndex)
	split, err := applyRepayment(pos, amount)
	if err != nil {
		return RepaySplit{}, err
	}
	if err := e.pull(asset, payer, amount); err != nil {
		return RepaySplit{}, err
	}
	pos.LastUpdate = reserve.LastUpdate
	e.settleReserve(reserve, split)
	if err := e.storeBorrow(pos); err != nil {
		return RepaySplit{}, err
	}
	if err := e.state.LendingPutReserve(reserve); err != nil {
		return RepaySplit{}, err
	}
	e.emitter.Emit(NewRepayEvent(payer, onBehalfOf, asset, split))
	return split, nil
}

// RedeemAll withdraws the user's full receipt balance of asset.
func (e *Engine) RedeemAll(user, asset crypto.Address) (*big.Int, error) {
	if err := e.guard(); err != nil {
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
	pos, err := e.loadDeposit(asset, user)
	if err != nil {
		return nil, err
	}
	amount := pos.Balance(reserve.LiquidityIndex)
	if amount.Sign() == 0 {
		return nil, ErrNoPosition
	}
	if pos.UseAsCollateral {
		after, err := e.accountData(book, user, asset)
		if err != nil {
			return nil, err
		}
		if after.healthFactor().Cmp(Wad) < 0 {
			return nil, ErrInsufficientCollateral
		}
	}
	available, err := book.available(asset)
	if err != nil {
		return nil, err
	}
	if available.Cmp(amount) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	reserve.TotalDeposits = new(big.Int).Sub(reserve.TotalDeposits, pos.ScaledBalance)
	if reserve.TotalDeposits.Sign() < 0 {
		reserve.TotalDeposits.SetInt64(0)
	}
	if err := e.state.LendingDeleteDeposit(asset, user); err != nil {
		return nil, err
	}
	if err := e.state.LendingPutReserve(reserve); err != nil {
		return nil, err
	}
	if err := e.push(asset, user, amount); err != nil {
		return nil, err
	}
	e.emitter.Emit(NewRedeemEvent(user, asset, amount))
	return amount, nil
}

// SetUseReserveAsCollateral toggles whether the user's deposit in asset backs
// their borrows. Disabling fails if the health factor would drop below one.
func (e *Engine) SetUseReserveAsCollateral(user, asset crypto.Address, enabled bool) error {
	if err := e.guard(); err != nil {
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
	pos, ok, err := e.state.LendingDeposit(asset, user)
	if err != nil {
		return err
	}
	if !ok || pos.Balance(reserve.LiquidityIndex).Sign() == 0 {
		return ErrNoPosition
	}
	if !enabled && pos.UseAsCollateral {
		after, err := e.accountData(book, user, asset)
		if err != nil {
			return err
		}
		if after.healthFactor().Cmp(Wad) < 0 {
			return ErrCollateralInUse
		}
	}
	pos.UseAsCollateral = enabled
	if err := e.state.LendingPutDeposit(pos); err != nil {
		return err
	}
	e.emitter.Emit(NewCollateralToggledEvent(user, asset, enabled))
	return nil
}

// LiquidationResult reports the effects of a liquidation call.
type LiquidationResult struct {
	Liquidator       crypto.Address
	Borrower         crypto.Address
	CollateralAsset  crypto.Address
	DebtAsset        crypto.Address
	DebtCovered      *big.Int
	FeeCovered       *big.Int
	CollateralSeized *big.Int
}

// Liquidation repays up to cover of the borrower's principal and interest in
// debtAsset (plus the proportional share of the origination fee) and transfers
// discounted collateral from collateralAsset to the liquidator.
func (e *Engine) Liquidation(liquidator, collateralAsset, debtAsset, borrower crypto.Address, cover *big.Int) (*LiquidationResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if err := validAmount(cover); err != nil {
		return nil, err
	}
	book, err := e.loadBook()
	if err != nil {
		return nil, err
	}
	collReserve, err := book.require(collateralAsset)
	if err != nil {
		return nil, err
	}
	debtReserve, err := book.require(debtAsset)
	if err != nil {
		return nil, err
	}
	account, err := e.accountData(book, borrower, crypto.Address{})
	if err != nil {
		return nil, err
	}
	if account.healthFactor().Cmp(Wad) >= 0 {
		return nil, ErrNotEligibleForLiquidation
	}
	debt, ok, err := e.state.LendingBorrow(debtAsset, borrower)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoDebt
	}
	debt.ensureDefaults()
	capitalize(debt, debtReserve.BorrowIndex)
	collateral, ok, err := e.state.LendingDeposit(collateralAsset, borrower)
	if err != nil {
		return nil, err
	}
	if !ok || !collateral.UseAsCollateral {
		return nil, ErrNoPosition
	}
	collateralBalance := collateral.Balance(collReserve.LiquidityIndex)
	if collateralBalance.Sign() == 0 {
		return nil, ErrNoPosition
	}

	plan := planLiquidation(debt, cover, debtReserve, collReserve, collateralBalance)
	if plan.covered.Sign() == 0 || plan.seized.Sign() == 0 {
		return nil, ErrInvalidAmount
	}

	payment := new(big.Int).Add(plan.covered, plan.fee)
	if err := e.pull(debtAsset, liquidator, payment); err != nil {
		return nil, err
	}
	split := applyLiquidation(debt, plan.covered, plan.fee)
	debt.LastUpdate = debtReserve.LastUpdate
	e.settleReserve(debtReserve, split)
	if err := e.storeBorrow(debt); err != nil {
		return nil, err
	}

	burned := sharesFromLiquidity(plan.seized, collReserve.LiquidityIndex)
	if plan.seized.Cmp(collateralBalance) == 0 || burned.Cmp(collateral.ScaledBalance) > 0 {
		burned = new(big.Int).Set(collateral.ScaledBalance)
	}
	collateral.ScaledBalance = new(big.Int).Sub(collateral.ScaledBalance, burned)
	collReserve.TotalDeposits = new(big.Int).Sub(collReserve.TotalDeposits, burned)
	if collReserve.TotalDeposits.Sign() < 0 {
		collReserve.TotalDeposits.SetInt64(0)
	}
	if collateral.ScaledBalance.Sign() == 0 {
		err = e.state.LendingDeleteDeposit(collateralAsset, borrower)
	} else {
		err = e.state.LendingPutDeposit(collateral)
	}
	if err != nil {
		return nil, err
	}

	available, err := e.availableLiquidity(collReserve)
	if err != nil {
		return nil, err
	}
	if available.Cmp(plan.seized) < 0 {
		return nil, ErrInsufficientLiquidity
	}
	if err := e.state.LendingPutReserve(debtReserve); err != nil {
		return nil, err
	}
	if !collateralAsset.Equal(debtAsset) {
		if err := e.state.LendingPutReserve(collReserve); err != nil {
			return nil, err
		}
	}
	if err := e.push(collateralAsset, liquidator, plan.seized); err != nil {
		return nil, err
	}

	result := &LiquidationResult{
		Liquidator:       liquidator,
		Borrower:         borrower,
		CollateralAsset:  collateralAsset,
		DebtAsset:        debtAsset,
		DebtCovered:      plan.covered,
		FeeCovered:       plan.fee,
		CollateralSeized: plan.seized,
	}
	e.emitter.Emit(NewLiquidationEvent(result))
	return result, nil
}

// CollectFees transfers the origination fees accumulated by the reserve.
func (e *Engine) CollectFees(caller, asset, to crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireRole(RoleAdmin, caller); err != nil {
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
	amount := cloneBig(reserve.ProtocolFees)
	if amount.Sign() == 0 {
		return amount, nil
	}
	reserve.ProtocolFees = big.NewInt(0)
	if err := e.state.LendingPutReserve(reserve); err != nil {
		return nil, err
	}
	if err := e.push(asset, to, amount); err != nil {
		return nil, err
	}
	e.emitter.Emit(NewFeesCollectedEvent(asset, to, amount))
	return amount, nil
}

// Accrue rolls the reserve's indexes forward to the current time and persists
// the result.
func (e *Engine) Accrue(asset crypto.Address) (*Reserve, error) {
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
	if err := e.state.LendingPutReserve(reserve); err != nil {
		return nil, err
	}
	return reserve.Clone(), nil
}

// settleReserve mirrors a debt reduction in the reserve aggregates. Principal
// and interest leave TotalBorrows; the fee becomes collectable protocol income.
func (e *Engine) settleReserve(reserve *Reserve, split RepaySplit) {
	reduced := new(big.Int).Add(split.Interest, split.Principal)
	reserve.TotalBorrows = new(big.Int).Sub(reserve.TotalBorrows, reduced)
	if reserve.TotalBorrows.Sign() < 0 {
		reserve.TotalBorrows.SetInt64(0)
	}
	reserve.TotalPrincipal = new(big.Int).Sub(reserve.TotalPrincipal, split.Principal)
	if reserve.TotalPrincipal.Sign() < 0 {
		reserve.TotalPrincipal.SetInt64(0)
	}
	reserve.ProtocolFees = new(big.Int).Add(reserve.ProtocolFees, split.Fee)
}

func (e *Engine) storeBorrow(pos *BorrowPosition) error {
	if pos.closed() {
		return e.state.LendingDeleteBorrow(pos.Asset, pos.Owner)
	}
	return e.state.LendingPutBorrow(pos)
}
