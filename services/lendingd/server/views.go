package server

import (
	"math/big"

	"lendingpool/native/lending"
)

const rateDigits = 18

type paramsView struct {
	LTV                  uint64 `json:"ltv"`
	LiquidationThreshold uint64 `json:"liquidation_threshold"`
	LiquidationBonus     uint64 `json:"liquidation_bonus"`
	OriginationFeeBps    uint64 `json:"origination_fee_bps"`
	ReserveFactorBps     uint64 `json:"reserve_factor_bps"`
}

type reserveView struct {
	Asset              string     `json:"asset"`
	Enabled            bool       `json:"enabled"`
	Price              string     `json:"price"`
	TotalDeposits      string     `json:"total_deposits"`
	TotalPrincipal     string     `json:"total_principal"`
	TotalBorrows       string     `json:"total_borrows"`
	ProtocolFees       string     `json:"protocol_fees"`
	BorrowIndex        string     `json:"borrow_index"`
	LiquidityIndex     string     `json:"liquidity_index"`
	LastUpdate         uint64     `json:"last_update"`
	AvailableLiquidity string     `json:"available_liquidity"`
	TotalLiquidity     string     `json:"total_liquidity"`
	Utilisation        string     `json:"utilisation"`
	BorrowRate         string     `json:"borrow_rate"`
	SupplyRate         string     `json:"supply_rate"`
	Params             paramsView `json:"params"`
}

func reserveViewFrom(data *lending.ReserveData) reserveView {
	r := data.Reserve
	return reserveView{
		Asset:              r.Asset.String(),
		Enabled:            r.Enabled,
		Price:              amount(r.Price),
		TotalDeposits:      amount(r.TotalDeposits),
		TotalPrincipal:     amount(r.TotalPrincipal),
		TotalBorrows:       amount(r.TotalBorrows),
		ProtocolFees:       amount(r.ProtocolFees),
		BorrowIndex:        amount(r.BorrowIndex),
		LiquidityIndex:     amount(r.LiquidityIndex),
		LastUpdate:         r.LastUpdate,
		AvailableLiquidity: amount(data.AvailableLiquidity),
		TotalLiquidity:     amount(data.TotalLiquidity),
		Utilisation:        ratio(data.Utilisation),
		BorrowRate:         ratio(data.BorrowRate),
		SupplyRate:         ratio(data.SupplyRate),
		Params: paramsView{
			LTV:                  r.Params.LTV,
			LiquidationThreshold: r.Params.LiquidationThreshold,
			LiquidationBonus:     r.Params.LiquidationBonus,
			OriginationFeeBps:    r.Params.OriginationFeeBps,
			ReserveFactorBps:     r.Params.ReserveFactorBps,
		},
	}
}

type accountView struct {
	Address              string `json:"address"`
	TotalCollateral      string `json:"total_collateral"`
	TotalDebt            string `json:"total_debt"`
	TotalFees            string `json:"total_fees"`
	AvailableBorrowPower string `json:"available_borrow_power"`
	CurrentLTV           uint64 `json:"current_ltv"`
	LiquidationThreshold uint64 `json:"liquidation_threshold"`
	HealthFactor         string `json:"health_factor"`
}

type borrowView struct {
	PrincipalWithFee string `json:"principal_with_fee"`
	Total            string `json:"total"`
	Interest         string `json:"interest"`
}

func borrowViewFrom(b lending.BorrowBalances) borrowView {
	return borrowView{
		PrincipalWithFee: amount(b.PrincipalWithFee),
		Total:            amount(b.Total),
		Interest:         amount(b.Interest),
	}
}

type accountReserveView struct {
	Address         string     `json:"address"`
	Asset           string     `json:"asset"`
	ReceiptBalance  string     `json:"receipt_balance"`
	UseAsCollateral bool       `json:"use_as_collateral"`
	BorrowPower     string     `json:"borrow_power"`
	Borrow          borrowView `json:"borrow"`
}

type repayView struct {
	Interest  string `json:"interest"`
	Fee       string `json:"fee"`
	Principal string `json:"principal"`
	Total     string `json:"total"`
}

type liquidationView struct {
	Borrower         string `json:"borrower"`
	CollateralAsset  string `json:"collateral_asset"`
	DebtAsset        string `json:"debt_asset"`
	DebtCovered      string `json:"debt_covered"`
	FeeCovered       string `json:"fee_covered"`
	CollateralSeized string `json:"collateral_seized"`
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func ratio(v *big.Rat) string {
	if v == nil {
		return "0"
	}
	return v.FloatString(rateDigits)
}
