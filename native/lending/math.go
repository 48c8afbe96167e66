package lending

import (
	"math/big"

	"github.com/holiman/uint256"
)

const secondsPerYear = 31_536_000

var (
	basisPoints = big.NewInt(10_000)
	// Wad is the 1e18 fixed-point unit used for health factors.
	Wad     = mustBigInt("1000000000000000000")
	halfWad = new(big.Int).Rsh(Wad, 1)
	// Ray is the 1e27 fixed-point unit used for interest indexes.
	Ray     = mustBigInt("1000000000000000000000000000")
	halfRay = new(big.Int).Rsh(Ray, 1)
	// wadRayRatio converts between the two scales.
	wadRayRatio = new(big.Int).Quo(Ray, Wad)
)

// MaxHealthFactor is reported for accounts without debt (2^256 - 1).
var MaxHealthFactor = new(uint256.Int).SetAllOne().ToBig()

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// WadMul multiplies two wad values rounding half up.
func WadMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, halfWad)
	return product.Quo(product, Wad)
}

// WadDiv divides two wad values rounding half up. Division by zero yields zero;
// callers that need saturation must branch before dividing.
func WadDiv(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(a, Wad)
	numerator.Add(numerator, halfUp(b))
	return numerator.Quo(numerator, b)
}

func rayMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, halfRay)
	product.Quo(product, Ray)
	return product
}

func rayDiv(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(a, Ray)
	numerator.Add(numerator, halfUp(b))
	numerator.Quo(numerator, b)
	return numerator
}

// RayToWad converts a ray value to wad precision rounding half up.
func RayToWad(a *big.Int) *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Add(a, new(big.Int).Rsh(wadRayRatio, 1))
	return out.Quo(out, wadRayRatio)
}

// WadToRay widens a wad value to ray precision.
func WadToRay(a *big.Int) *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(a, wadRayRatio)
}

func ratToRay(r *big.Rat) *big.Int {
	if r == nil || r.Sign() <= 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(Ray))
	num := scaled.Num()
	den := scaled.Denom()
	return new(big.Int).Quo(new(big.Int).Add(num, halfUp(den)), den)
}

// rateFactor returns 1 + rate*delta/year in ray precision. Indexes compound
// each time the factor is applied.
func rateFactor(rate *big.Rat, delta uint64) *big.Int {
	if rate == nil || rate.Sign() == 0 || delta == 0 {
		return new(big.Int).Set(Ray)
	}
	perPeriod := new(big.Rat).Set(rate)
	perPeriod.Quo(perPeriod, new(big.Rat).SetUint64(secondsPerYear))
	perPeriod.Mul(perPeriod, new(big.Rat).SetUint64(delta))
	factor := new(big.Rat).Add(big.NewRat(1, 1), perPeriod)
	return ratToRay(factor)
}

func sharesFromLiquidity(amount, index *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || index == nil || index.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(amount, Ray)
	scaled.Add(scaled, halfUp(index))
	scaled.Quo(scaled, index)
	return scaled
}

func liquidityFromShares(shares, index *big.Int) *big.Int {
	if shares == nil || shares.Sign() <= 0 || index == nil || index.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(shares, index)
	scaled.Add(scaled, halfRay)
	scaled.Quo(scaled, Ray)
	return scaled
}

// bpsOf returns floor(amount * bps / 10000).
func bpsOf(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, basisPoints)
}

// halfUp is the rounding offset added before dividing by x.
func halfUp(x *big.Int) *big.Int {
	if x == nil || x.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Rsh(x, 1)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
