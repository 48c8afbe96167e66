package lending

import (
	"errors"
	"math/big"
	"testing"
)

func openPosition(principal, fee, interest int64) *BorrowPosition {
	pos := &BorrowPosition{
		Principal:       big.NewInt(principal),
		OriginationFee:  big.NewInt(fee),
		AccruedInterest: big.NewInt(interest),
	}
	pos.ensureDefaults()
	return pos
}

func TestBorrowBalancesProjectInterest(t *testing.T) {
	pos := openPosition(1_000, 2, 0)
	index := new(big.Int).Add(Ray, new(big.Int).Quo(Ray, big.NewInt(10)))

	balances := borrowBalances(pos, index)
	if balances.PrincipalWithFee.Cmp(big.NewInt(1_002)) != 0 {
		t.Fatalf("unexpected principal with fee %s", balances.PrincipalWithFee)
	}
	if balances.Interest.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected interest %s", balances.Interest)
	}
	if balances.Total.Cmp(big.NewInt(1_102)) != 0 {
		t.Fatalf("unexpected total %s", balances.Total)
	}
	if pos.AccruedInterest.Sign() != 0 || pos.IndexSnapshot.Cmp(Ray) != 0 {
		t.Fatalf("projection must not mutate the position")
	}
}

func TestCapitalizeCompoundsAcrossSnapshots(t *testing.T) {
	pos := openPosition(1_000, 0, 0)
	step := new(big.Int).Add(Ray, new(big.Int).Quo(Ray, big.NewInt(10)))
	capitalize(pos, step)
	if pos.AccruedInterest.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected 100 after first step, got %s", pos.AccruedInterest)
	}
	next := rayMul(step, step)
	capitalize(pos, next)
	if pos.AccruedInterest.Cmp(big.NewInt(210)) != 0 {
		t.Fatalf("expected 210 after second step, got %s", pos.AccruedInterest)
	}
	if pos.IndexSnapshot.Cmp(next) != 0 {
		t.Fatalf("snapshot not advanced")
	}
}

func TestApplyRepaymentOrder(t *testing.T) {
	pos := openPosition(1_000, 25, 40)
	split, err := applyRepayment(pos, big.NewInt(100))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if split.Interest.Int64() != 40 || split.Fee.Int64() != 25 || split.Principal.Int64() != 35 {
		t.Fatalf("unexpected split %+v", split)
	}
	if split.Total().Int64() != 100 {
		t.Fatalf("split total mismatch: %s", split.Total())
	}
	if pos.Principal.Int64() != 965 || pos.OriginationFee.Sign() != 0 || pos.AccruedInterest.Sign() != 0 {
		t.Fatalf("unexpected position after repay: %+v", pos)
	}

	if _, err := applyRepayment(pos, big.NewInt(966)); !errors.Is(err, ErrRepayExceedsDebt) {
		t.Fatalf("expected ErrRepayExceedsDebt, got %v", err)
	}
	if _, err := applyRepayment(pos, big.NewInt(965)); err != nil {
		t.Fatalf("full repay: %v", err)
	}
	if !pos.closed() {
		t.Fatalf("expected position to be closed")
	}
}

func TestPlanLiquidation(t *testing.T) {
	debtReserve := &Reserve{Price: big.NewInt(9), Params: DefaultReserveParams}
	collReserve := &Reserve{Price: big.NewInt(2), Params: DefaultReserveParams}
	debt := openPosition(2_000, 5, 0)

	plan := planLiquidation(debt, big.NewInt(5_000), debtReserve, collReserve, big.NewInt(100_000))
	if plan.covered.Int64() != 2_000 || plan.fee.Int64() != 5 || plan.seized.Int64() != 9_450 {
		t.Fatalf("unexpected plan %+v", plan)
	}

	capped := planLiquidation(debt, big.NewInt(2_000), debtReserve, collReserve, big.NewInt(945))
	if capped.seized.Int64() != 945 || capped.covered.Int64() != 200 {
		t.Fatalf("unexpected capped plan %+v", capped)
	}
	if capped.fee.Int64() != 0 {
		t.Fatalf("expected floor of proportional fee, got %s", capped.fee)
	}

	split := applyLiquidation(debt, capped.covered, capped.fee)
	if split.Principal.Int64() != 200 || debt.Principal.Int64() != 1_800 {
		t.Fatalf("unexpected liquidation split %+v", split)
	}
}
