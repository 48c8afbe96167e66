package lending

import (
	"math/big"

	"lendingpool/crypto"
)

// RepaySplit reports how a payment was applied to a borrow position.
type RepaySplit struct {
	Interest  *big.Int
	Fee       *big.Int
	Principal *big.Int
}

// Total returns the sum of the three components.
func (s RepaySplit) Total() *big.Int {
	out := cloneBig(s.Interest)
	out.Add(out, cloneBig(s.Fee))
	return out.Add(out, cloneBig(s.Principal))
}

func (e *Engine) loadDeposit(asset, owner crypto.Address) (*DepositPosition, error) {
	pos, ok, err := e.state.LendingDeposit(asset, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		pos = &DepositPosition{Owner: owner, Asset: asset}
	}
	if pos.ScaledBalance == nil {
		pos.ScaledBalance = big.NewInt(0)
	}
	return pos, nil
}

func (e *Engine) loadBorrow(asset, owner crypto.Address) (*BorrowPosition, error) {
	pos, ok, err := e.state.LendingBorrow(asset, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		pos = &BorrowPosition{Owner: owner, Asset: asset}
	}
	pos.ensureDefaults()
	return pos, nil
}

// compounded returns (principal + capitalised interest) grown from the
// snapshot index to index, rounded down.
func compounded(pos *BorrowPosition, index *big.Int) *big.Int {
	base := new(big.Int).Add(pos.Principal, pos.AccruedInterest)
	if base.Sign() == 0 || index == nil || pos.IndexSnapshot.Sign() == 0 {
		return base
	}
	grown := new(big.Int).Mul(base, index)
	return grown.Quo(grown, pos.IndexSnapshot)
}

func borrowBalances(pos *BorrowPosition, index *big.Int) BorrowBalances {
	if pos == nil {
		return BorrowBalances{PrincipalWithFee: big.NewInt(0), Total: big.NewInt(0), Interest: big.NewInt(0)}
	}
	pos = pos.Clone()
	pos.ensureDefaults()
	current := compounded(pos, index)
	interest := new(big.Int).Sub(current, pos.Principal)
	if interest.Sign() < 0 {
		interest.SetInt64(0)
	}
	withFee := new(big.Int).Add(pos.Principal, pos.OriginationFee)
	return BorrowBalances{
		PrincipalWithFee: withFee,
		Total:            new(big.Int).Add(withFee, interest),
		Interest:         interest,
	}
}

// capitalize folds interest earned since the last snapshot into
// AccruedInterest and re-snapshots the index.
func capitalize(pos *BorrowPosition, index *big.Int) {
	pos.ensureDefaults()
	current := compounded(pos, index)
	base := new(big.Int).Add(pos.Principal, pos.AccruedInterest)
	if current.Cmp(base) > 0 {
		pos.AccruedInterest = new(big.Int).Add(pos.AccruedInterest, new(big.Int).Sub(current, base))
	}
	pos.IndexSnapshot = cloneBig(index)
}

func (p *BorrowPosition) total() *big.Int {
	out := new(big.Int).Add(p.Principal, p.OriginationFee)
	return out.Add(out, p.AccruedInterest)
}

func (p *BorrowPosition) closed() bool {
	return p.Principal.Sign() == 0 && p.OriginationFee.Sign() == 0 && p.AccruedInterest.Sign() == 0
}

// applyRepayment consumes amount from a capitalised position: interest first,
// then the origination fee, then principal.
func applyRepayment(pos *BorrowPosition, amount *big.Int) (RepaySplit, error) {
	if amount.Cmp(pos.total()) > 0 {
		return RepaySplit{}, ErrRepayExceedsDebt
	}
	remaining := new(big.Int).Set(amount)
	take := func(bucket *big.Int) *big.Int {
		part := minBig(remaining, bucket)
		remaining.Sub(remaining, part)
		return part
	}
	split := RepaySplit{}
	split.Interest = take(pos.AccruedInterest)
	split.Fee = take(pos.OriginationFee)
	split.Principal = take(pos.Principal)

	pos.AccruedInterest = new(big.Int).Sub(pos.AccruedInterest, split.Interest)
	pos.OriginationFee = new(big.Int).Sub(pos.OriginationFee, split.Fee)
	pos.Principal = new(big.Int).Sub(pos.Principal, split.Principal)
	return split, nil
}

// applyLiquidation reduces interest then principal by covered and the
// origination fee by feePortion.
func applyLiquidation(pos *BorrowPosition, covered, feePortion *big.Int) RepaySplit {
	interest := minBig(covered, pos.AccruedInterest)
	principal := minBig(new(big.Int).Sub(covered, interest), pos.Principal)
	fee := minBig(feePortion, pos.OriginationFee)

	pos.AccruedInterest = new(big.Int).Sub(pos.AccruedInterest, interest)
	pos.Principal = new(big.Int).Sub(pos.Principal, principal)
	pos.OriginationFee = new(big.Int).Sub(pos.OriginationFee, fee)
	return RepaySplit{Interest: interest, Fee: fee, Principal: principal}
}

type liquidationPlan struct {
	covered *big.Int
	fee     *big.Int
	seized  *big.Int
}

// planLiquidation sizes a liquidation. The seizure is priced with the
// collateral reserve's bonus and capped at the borrower's balance, in which
// case the covered debt shrinks to what the balance can pay for.
func planLiquidation(debt *BorrowPosition, cover *big.Int, debtReserve, collReserve *Reserve, collateralBalance *big.Int) liquidationPlan {
	outstanding := new(big.Int).Add(debt.Principal, debt.AccruedInterest)
	covered := minBig(cover, outstanding)

	bonus := new(big.Int).Add(basisPoints, new(big.Int).SetUint64(collReserve.Params.LiquidationBonus))
	numerator := new(big.Int).Mul(debtReserve.Price, bonus)
	denominator := new(big.Int).Mul(collReserve.Price, basisPoints)

	seized := new(big.Int).Mul(covered, numerator)
	seized.Quo(seized, denominator)
	if seized.Cmp(collateralBalance) > 0 {
		seized = new(big.Int).Set(collateralBalance)
		covered = new(big.Int).Mul(seized, denominator)
		covered.Quo(covered, numerator)
		covered = minBig(covered, outstanding)
	}

	fee := big.NewInt(0)
	if outstanding.Sign() > 0 {
		fee = new(big.Int).Mul(debt.OriginationFee, covered)
		fee.Quo(fee, outstanding)
	}
	return liquidationPlan{covered: covered, fee: fee, seized: seized}
}
