package lending

import (
	"fmt"
	"math/big"
)

// InterestModel encapsulates the parameters that shape how interest rates react
// to reserve utilisation.
type InterestModel struct {
	// BaseRate is the minimum borrow APR applied when utilisation is zero.
	BaseRate *big.Rat
	// Slope1 is the borrow APR increase per unit of utilisation up to the
	// kink point.
	Slope1 *big.Rat
	// Slope2 governs the additional APR increase applied when utilisation
	// exceeds the kink point.
	Slope2 *big.Rat
	// Kink represents the utilisation ratio where the borrow rate slope
	// changes to encourage liquidity.
	Kink *big.Rat
}

// Clone returns a deep copy of the interest model.
func (m *InterestModel) Clone() *InterestModel {
	if m == nil {
		return nil
	}
	return &InterestModel{
		BaseRate: cloneRat(m.BaseRate),
		Slope1:   cloneRat(m.Slope1),
		Slope2:   cloneRat(m.Slope2),
		Kink:     cloneRat(m.Kink),
	}
}

// NewInterestModel constructs an interest model from floating point inputs.
//
// The parameters should be provided as decimals, e.g. a 2% base rate is
// expressed as 0.02 and an 80% kink utilisation is 0.8.
func NewInterestModel(baseRate, slope1, slope2, kink float64) *InterestModel {
	model := &InterestModel{
		BaseRate: new(big.Rat),
		Slope1:   new(big.Rat),
		Slope2:   new(big.Rat),
		Kink:     new(big.Rat),
	}
	model.BaseRate.SetFloat64(baseRate)
	model.Slope1.SetFloat64(slope1)
	model.Slope2.SetFloat64(slope2)
	model.Kink.SetFloat64(kink)
	return model
}

// Validate rejects negative slopes and kinks outside (0, 1].
func (m *InterestModel) Validate() error {
	if m == nil {
		return fmt.Errorf("interest model: not configured")
	}
	for name, v := range map[string]*big.Rat{"base rate": m.BaseRate, "slope1": m.Slope1, "slope2": m.Slope2} {
		if v != nil && v.Sign() < 0 {
			return fmt.Errorf("interest model: %s must not be negative", name)
		}
	}
	if m.Kink == nil || m.Kink.Sign() <= 0 || m.Kink.Cmp(big.NewRat(1, 1)) > 0 {
		return fmt.Errorf("interest model: kink must be within (0, 1]")
	}
	return nil
}

// Utilisation computes the reserve utilisation ratio U = totalBorrowed /
// totalLiquidity. When no liquidity exists the utilisation is defined as zero.
func (m *InterestModel) Utilisation(totalBorrowed, totalLiquidity *big.Int) *big.Rat {
	if totalBorrowed == nil || totalBorrowed.Sign() == 0 {
		return new(big.Rat)
	}
	if totalLiquidity == nil || totalLiquidity.Sign() == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(totalBorrowed, totalLiquidity)
}

// BorrowAPR derives the dynamic borrow APR based on the current utilisation.
func (m *InterestModel) BorrowAPR(totalBorrowed, totalLiquidity *big.Int) *big.Rat {
	if m == nil {
		return new(big.Rat)
	}
	base := cloneRat(m.BaseRate)
	utilisation := m.Utilisation(totalBorrowed, totalLiquidity)
	if utilisation.Sign() == 0 {
		return base
	}

	rate := base
	kink := cloneRat(m.Kink)
	slope1 := cloneRat(m.Slope1)
	slope2 := cloneRat(m.Slope2)
	if kink.Sign() == 0 || utilisation.Cmp(kink) <= 0 {
		// Linear region before the kink.
		return rate.Add(rate, new(big.Rat).Mul(slope1, utilisation))
	}

	// Rate at the kink using slope1.
	rate.Add(rate, new(big.Rat).Mul(slope1, kink))

	// Additional rate beyond the kink using slope2.
	excess := new(big.Rat).Sub(utilisation, kink)
	if excess.Sign() < 0 {
		excess.SetInt64(0)
	}
	return rate.Add(rate, new(big.Rat).Mul(slope2, excess))
}

// SupplyAPY derives the supply APY based on the borrow APR, utilisation and
// the reserve factor expressed in basis points.
func (m *InterestModel) SupplyAPY(totalBorrowed, totalLiquidity *big.Int, reserveFactorBps uint64) *big.Rat {
	if m == nil {
		return new(big.Rat)
	}

	borrowAPR := m.BorrowAPR(totalBorrowed, totalLiquidity)
	if borrowAPR.Sign() == 0 {
		return new(big.Rat)
	}

	utilisation := m.Utilisation(totalBorrowed, totalLiquidity)
	if utilisation.Sign() == 0 {
		return new(big.Rat)
	}

	reserveFactor := new(big.Rat).SetFrac(new(big.Int).SetUint64(reserveFactorBps), basisPoints)
	oneMinusReserve := new(big.Rat).Sub(big.NewRat(1, 1), reserveFactor)
	if oneMinusReserve.Sign() < 0 {
		oneMinusReserve.SetInt64(0)
	}

	supplyAPY := new(big.Rat).Mul(borrowAPR, utilisation)
	supplyAPY.Mul(supplyAPY, oneMinusReserve)
	return supplyAPY
}

// Accrue rolls the reserve indexes forward to now. available is the idle
// liquidity held by the pool for the reserve's asset. Rates are derived from
// the state at the start of the interval; calling Accrue again with the same
// timestamp leaves the reserve unchanged.
func (m *InterestModel) Accrue(reserve *Reserve, now uint64, available *big.Int) {
	if reserve == nil {
		return
	}
	reserve.ensureDefaults()
	if now <= reserve.LastUpdate {
		return
	}
	delta := now - reserve.LastUpdate
	reserve.LastUpdate = now
	if m == nil || reserve.TotalBorrows.Sign() == 0 {
		return
	}

	totalLiquidity := new(big.Int).Add(cloneBig(available), reserve.TotalBorrows)
	borrowAPR := m.BorrowAPR(reserve.TotalBorrows, totalLiquidity)
	supplyAPY := m.SupplyAPY(reserve.TotalBorrows, totalLiquidity, reserve.Params.ReserveFactorBps)

	previous := new(big.Int).Set(reserve.BorrowIndex)
	reserve.BorrowIndex = rayMul(reserve.BorrowIndex, rateFactor(borrowAPR, delta))
	reserve.LiquidityIndex = rayMul(reserve.LiquidityIndex, rateFactor(supplyAPY, delta))

	grown := new(big.Int).Mul(reserve.TotalBorrows, reserve.BorrowIndex)
	reserve.TotalBorrows = grown.Quo(grown, previous)
}

func cloneRat(r *big.Rat) *big.Rat {
	if r == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(r)
}

// DefaultInterestModel provides a reasonable starting configuration featuring a
// kinked interest rate curve with a modest base rate.
var DefaultInterestModel = NewInterestModel(0.02, 0.15, 0.6, 0.8)
