package lending

import (
	"errors"
	"fmt"
)

// Errors returned by the lending engine. Every failure aborts the surrounding
// state transaction.
var (
	ErrUnauthorized              = errors.New("lending engine: caller lacks required role")
	ErrUnknownReserve            = errors.New("lending engine: unknown reserve")
	ErrAlreadyRegistered         = errors.New("lending engine: reserve already registered")
	ErrReserveDisabled           = errors.New("lending engine: reserve disabled")
	ErrInvalidAmount             = errors.New("lending engine: amount must be positive")
	ErrInsufficientAllowance     = errors.New("lending engine: insufficient allowance")
	ErrTransferFailed            = errors.New("lending engine: token transfer failed")
	ErrInsufficientLiquidity     = errors.New("lending engine: insufficient liquidity")
	ErrInsufficientCollateral    = errors.New("lending engine: insufficient collateral")
	ErrNoPosition                = errors.New("lending engine: no position")
	ErrNoDebt                    = errors.New("lending engine: no outstanding debt")
	ErrRepayExceedsDebt          = errors.New("lending engine: repay amount exceeds debt")
	ErrCollateralInUse           = errors.New("lending engine: collateral in use")
	ErrNotEligibleForLiquidation = errors.New("lending engine: borrower not eligible for liquidation")

	errNilState  = errors.New("lending engine: state not configured")
	errNilTokens = errors.New("lending engine: token ledger not configured")
)

func errInvalidParams(msg string) error {
	return fmt.Errorf("lending engine: invalid reserve params: %s", msg)
}
