package lending

import (
	"math/big"

	"lendingpool/crypto"
)

// ReserveParams groups the risk limits applied to a single reserve. All
// values are expressed in basis points.
type ReserveParams struct {
	// LTV caps how much may be borrowed against the reserve's collateral.
	LTV uint64
	// LiquidationThreshold is the share of collateral value counted towards
	// the health factor.
	LiquidationThreshold uint64
	// LiquidationBonus is the extra collateral paid to liquidators.
	LiquidationBonus uint64
	// OriginationFeeBps is charged once on every new borrow.
	OriginationFeeBps uint64
	// ReserveFactorBps is withheld from the supply rate.
	ReserveFactorBps uint64
}

// DefaultReserveParams mirrors the limits new reserves receive unless the
// configuration overrides them.
var DefaultReserveParams = ReserveParams{
	LTV:                  7_500,
	LiquidationThreshold: 8_000,
	LiquidationBonus:     500,
	OriginationFeeBps:    25,
	ReserveFactorBps:     1_000,
}

// Validate checks that the parameters describe a coherent risk profile.
func (p ReserveParams) Validate() error {
	switch {
	case p.LTV == 0 || p.LTV > 10_000:
		return errInvalidParams("ltv must be within (0, 10000]")
	case p.LiquidationThreshold < p.LTV || p.LiquidationThreshold > 10_000:
		return errInvalidParams("liquidation threshold must be within [ltv, 10000]")
	case p.LiquidationBonus > 10_000:
		return errInvalidParams("liquidation bonus must not exceed 10000")
	case p.OriginationFeeBps >= 10_000:
		return errInvalidParams("origination fee must be below 10000")
	case p.ReserveFactorBps > 10_000:
		return errInvalidParams("reserve factor must not exceed 10000")
	}
	return nil
}

// Reserve captures the aggregate accounting for one asset.
type Reserve struct {
	Asset   crypto.Address
	Enabled bool
	// Price is the value of one asset unit in the common reference currency.
	Price *big.Int
	// TotalDeposits is the sum of scaled receipt balances.
	TotalDeposits *big.Int
	// TotalPrincipal is the outstanding borrowed principal.
	TotalPrincipal *big.Int
	// TotalBorrows is principal plus interest, grown with the borrow index.
	TotalBorrows *big.Int
	// ProtocolFees holds collected origination fees awaiting withdrawal.
	ProtocolFees   *big.Int
	BorrowIndex    *big.Int
	LiquidityIndex *big.Int
	LastUpdate     uint64
	Params         ReserveParams
}

func (r *Reserve) ensureDefaults() {
	if r.Price == nil || r.Price.Sign() <= 0 {
		r.Price = big.NewInt(1)
	}
	if r.TotalDeposits == nil {
		r.TotalDeposits = big.NewInt(0)
	}
	if r.TotalPrincipal == nil {
		r.TotalPrincipal = big.NewInt(0)
	}
	if r.TotalBorrows == nil {
		r.TotalBorrows = big.NewInt(0)
	}
	if r.ProtocolFees == nil {
		r.ProtocolFees = big.NewInt(0)
	}
	if r.BorrowIndex == nil || r.BorrowIndex.Sign() == 0 {
		r.BorrowIndex = new(big.Int).Set(Ray)
	}
	if r.LiquidityIndex == nil || r.LiquidityIndex.Sign() == 0 {
		r.LiquidityIndex = new(big.Int).Set(Ray)
	}
}

// Clone returns a deep copy of the reserve.
func (r *Reserve) Clone() *Reserve {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Price = cloneBig(r.Price)
	clone.TotalDeposits = cloneBig(r.TotalDeposits)
	clone.TotalPrincipal = cloneBig(r.TotalPrincipal)
	clone.TotalBorrows = cloneBig(r.TotalBorrows)
	clone.ProtocolFees = cloneBig(r.ProtocolFees)
	clone.BorrowIndex = cloneBig(r.BorrowIndex)
	clone.LiquidityIndex = cloneBig(r.LiquidityIndex)
	return &clone
}

// DepositPosition stores a user's receipt balance in one reserve.
type DepositPosition struct {
	Owner           crypto.Address
	Asset           crypto.Address
	ScaledBalance   *big.Int
	UseAsCollateral bool
}

// Balance converts the scaled receipt units into underlying asset units.
func (p *DepositPosition) Balance(liquidityIndex *big.Int) *big.Int {
	if p == nil {
		return big.NewInt(0)
	}
	return liquidityFromShares(p.ScaledBalance, liquidityIndex)
}

// BorrowPosition stores a user's debt in one reserve.
type BorrowPosition struct {
	Owner          crypto.Address
	Asset          crypto.Address
	Principal      *big.Int
	OriginationFee *big.Int
	// AccruedInterest is interest capitalised at IndexSnapshot.
	AccruedInterest *big.Int
	IndexSnapshot   *big.Int
	LastUpdate      uint64
}

func (p *BorrowPosition) ensureDefaults() {
	if p.Principal == nil {
		p.Principal = big.NewInt(0)
	}
	if p.OriginationFee == nil {
		p.OriginationFee = big.NewInt(0)
	}
	if p.AccruedInterest == nil {
		p.AccruedInterest = big.NewInt(0)
	}
	if p.IndexSnapshot == nil || p.IndexSnapshot.Sign() == 0 {
		p.IndexSnapshot = new(big.Int).Set(Ray)
	}
}

// Clone returns a deep copy of the borrow position.
func (p *BorrowPosition) Clone() *BorrowPosition {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Principal = cloneBig(p.Principal)
	clone.OriginationFee = cloneBig(p.OriginationFee)
	clone.AccruedInterest = cloneBig(p.AccruedInterest)
	clone.IndexSnapshot = cloneBig(p.IndexSnapshot)
	return &clone
}

// BorrowBalances mirrors the tuple returned by GetUserBorrowBalances.
type BorrowBalances struct {
	// PrincipalWithFee is principal plus the outstanding origination fee.
	PrincipalWithFee *big.Int
	// Total adds accrued interest to PrincipalWithFee.
	Total *big.Int
	// Interest is the accrued interest only.
	Interest *big.Int
}

// UserGlobalData aggregates a user's position across every reserve. Values
// are expressed in the common reference currency.
type UserGlobalData struct {
	TotalCollateral      *big.Int
	TotalDebt            *big.Int
	TotalFees            *big.Int
	AvailableBorrowPower *big.Int
	// CurrentLTV and LiquidationThreshold are collateral-weighted averages in
	// basis points.
	CurrentLTV           uint64
	LiquidationThreshold uint64
	HealthFactor         *big.Int
}

// ReserveData is the read model returned for a reserve.
type ReserveData struct {
	Reserve            *Reserve
	AvailableLiquidity *big.Int
	TotalLiquidity     *big.Int
	Utilisation        *big.Rat
	BorrowRate         *big.Rat
	SupplyRate         *big.Rat
}

// UserReserveData is the read model returned for a (user, reserve) pair.
type UserReserveData struct {
	ReceiptBalance  *big.Int
	UseAsCollateral bool
	Borrow          BorrowBalances
}
