package lending

import (
	"math/big"
	"strconv"

	"lendingpool/core/types"
	"lendingpool/crypto"
)

const (
	EventTypeReserveAdded      = "lending.reserve.added"
	EventTypeReserveStatus     = "lending.reserve.status"
	EventTypePriceUpdated      = "lending.price.updated"
	EventTypeDeposit           = "lending.deposit"
	EventTypeBorrow            = "lending.borrow"
	EventTypeRepay             = "lending.repay"
	EventTypeRedeem            = "lending.redeem"
	EventTypeLiquidation       = "lending.liquidation"
	EventTypeCollateralToggled = "lending.collateral.updated"
	EventTypeFeesCollected     = "lending.fees.collected"
)

func newEvent(kind string, attrs map[string]string) *types.Event {
	return &types.Event{Type: kind, Attributes: attrs}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NewReserveAddedEvent is emitted when the admin registers an asset.
func NewReserveAddedEvent(r *Reserve) *types.Event {
	return newEvent(EventTypeReserveAdded, map[string]string{
		"asset":                r.Asset.String(),
		"ltv":                  strconv.FormatUint(r.Params.LTV, 10),
		"liquidationThreshold": strconv.FormatUint(r.Params.LiquidationThreshold, 10),
		"liquidationBonus":     strconv.FormatUint(r.Params.LiquidationBonus, 10),
	})
}

// NewReserveStatusEvent is emitted when a reserve is enabled or disabled.
func NewReserveStatusEvent(asset crypto.Address, enabled bool) *types.Event {
	return newEvent(EventTypeReserveStatus, map[string]string{
		"asset":   asset.String(),
		"enabled": strconv.FormatBool(enabled),
	})
}

// NewPriceUpdatedEvent is emitted when the oracle publishes a price.
func NewPriceUpdatedEvent(asset crypto.Address, price *big.Int) *types.Event {
	return newEvent(EventTypePriceUpdated, map[string]string{
		"asset": asset.String(),
		"price": amountString(price),
	})
}

// NewDepositEvent is emitted for every successful deposit.
func NewDepositEvent(user, asset crypto.Address, amount *big.Int, collateral bool) *types.Event {
	return newEvent(EventTypeDeposit, map[string]string{
		"user":       user.String(),
		"asset":      asset.String(),
		"amount":     amountString(amount),
		"collateral": strconv.FormatBool(collateral),
	})
}

// NewBorrowEvent is emitted for every successful borrow.
func NewBorrowEvent(user, asset crypto.Address, amount, fee *big.Int) *types.Event {
	return newEvent(EventTypeBorrow, map[string]string{
		"user":   user.String(),
		"asset":  asset.String(),
		"amount": amountString(amount),
		"fee":    amountString(fee),
	})
}

// NewRepayEvent records how a repayment was split.
func NewRepayEvent(payer, onBehalfOf, asset crypto.Address, split RepaySplit) *types.Event {
	return newEvent(EventTypeRepay, map[string]string{
		"payer":      payer.String(),
		"onBehalfOf": onBehalfOf.String(),
		"asset":      asset.String(),
		"interest":   amountString(split.Interest),
		"fee":        amountString(split.Fee),
		"principal":  amountString(split.Principal),
	})
}

// NewRedeemEvent is emitted when a user withdraws their full deposit.
func NewRedeemEvent(user, asset crypto.Address, amount *big.Int) *types.Event {
	return newEvent(EventTypeRedeem, map[string]string{
		"user":   user.String(),
		"asset":  asset.String(),
		"amount": amountString(amount),
	})
}

// NewLiquidationEvent is emitted for each (partial) liquidation.
func NewLiquidationEvent(res *LiquidationResult) *types.Event {
	return newEvent(EventTypeLiquidation, map[string]string{
		"liquidator":       res.Liquidator.String(),
		"borrower":         res.Borrower.String(),
		"collateralAsset":  res.CollateralAsset.String(),
		"debtAsset":        res.DebtAsset.String(),
		"debtCovered":      amountString(res.DebtCovered),
		"feeCovered":       amountString(res.FeeCovered),
		"collateralSeized": amountString(res.CollateralSeized),
	})
}

// NewCollateralToggledEvent is emitted when a user changes a collateral flag.
func NewCollateralToggledEvent(user, asset crypto.Address, enabled bool) *types.Event {
	return newEvent(EventTypeCollateralToggled, map[string]string{
		"user":    user.String(),
		"asset":   asset.String(),
		"enabled": strconv.FormatBool(enabled),
	})
}

// NewFeesCollectedEvent is emitted when protocol fees leave the pool.
func NewFeesCollectedEvent(asset, to crypto.Address, amount *big.Int) *types.Event {
	return newEvent(EventTypeFeesCollected, map[string]string{
		"asset":  asset.String(),
		"to":     to.String(),
		"amount": amountString(amount),
	})
}
