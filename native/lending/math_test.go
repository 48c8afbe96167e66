package lending

import (
	"math/big"
	"testing"
)

func TestWadRayRounding(t *testing.T) {
	half := new(big.Int).Quo(Wad, big.NewInt(2))
	if got := WadMul(half, big.NewInt(3)); got.Cmp(big.NewInt(2)) != 0 {
		// 1.5 rounds half up.
		t.Fatalf("expected 2, got %s", got)
	}
	if got := WadDiv(big.NewInt(1), big.NewInt(3)); got.Cmp(mustBigInt("333333333333333333")) != 0 {
		t.Fatalf("unexpected wad div result %s", got)
	}
	if got := WadDiv(big.NewInt(1), big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("expected zero on division by zero, got %s", got)
	}
	if got := rayMul(Ray, Ray); got.Cmp(Ray) != 0 {
		t.Fatalf("ray * ray should be ray, got %s", got)
	}
	if got := rayDiv(Ray, new(big.Int).Mul(Ray, big.NewInt(4))); got.Cmp(new(big.Int).Quo(Ray, big.NewInt(4))) != 0 {
		t.Fatalf("unexpected ray div result %s", got)
	}
	if got := RayToWad(WadToRay(Wad)); got.Cmp(Wad) != 0 {
		t.Fatalf("wad round trip mismatch: %s", got)
	}
}

func TestMathDoesNotMutateInputs(t *testing.T) {
	a := big.NewInt(7)
	b := new(big.Int).Set(Ray)
	_ = rayMul(a, b)
	_ = rayDiv(a, b)
	_ = sharesFromLiquidity(a, b)
	if a.Cmp(big.NewInt(7)) != 0 || b.Cmp(Ray) != 0 {
		t.Fatalf("inputs mutated: a=%s b=%s", a, b)
	}
}

func TestMaxHealthFactorIsUint256Max(t *testing.T) {
	want := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if MaxHealthFactor.Cmp(want) != 0 {
		t.Fatalf("unexpected max health factor %s", MaxHealthFactor)
	}
}

func TestOriginationFeeFloors(t *testing.T) {
	cases := map[int64]int64{2_000: 5, 5_000: 12, 1_000: 2, 39: 0}
	for principal, want := range cases {
		if got := bpsOf(big.NewInt(principal), DefaultReserveParams.OriginationFeeBps); got.Cmp(big.NewInt(want)) != 0 {
			t.Fatalf("fee(%d): expected %d, got %s", principal, want, got)
		}
	}
}

func TestSharesRoundTrip(t *testing.T) {
	index := new(big.Int).Add(Ray, new(big.Int).Quo(Ray, big.NewInt(10)))
	shares := sharesFromLiquidity(big.NewInt(1_100), index)
	if shares.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected 1000 shares, got %s", shares)
	}
	if got := liquidityFromShares(shares, index); got.Cmp(big.NewInt(1_100)) != 0 {
		t.Fatalf("expected 1100 back, got %s", got)
	}
}
