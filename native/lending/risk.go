package lending

import (
	"math/big"

	"lendingpool/crypto"
)

// reserveBook holds every reserve accrued to the current time for the duration
// of one operation. Available liquidity is captured before any transfer so
// rates reflect the state at the start of the operation.
type reserveBook struct {
	order     []crypto.Address
	reserves  map[string]*Reserve
	liquidity map[string]*big.Int
}

func (e *Engine) loadBook() (*reserveBook, error) {
	assets, err := e.state.LendingReserveList()
	if err != nil {
		return nil, err
	}
	now := e.now()
	book := &reserveBook{
		order:     make([]crypto.Address, 0, len(assets)),
		reserves:  make(map[string]*Reserve, len(assets)),
		liquidity: make(map[string]*big.Int, len(assets)),
	}
	for _, asset := range assets {
		reserve, ok, err := e.state.LendingReserve(asset)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		reserve.ensureDefaults()
		available, err := e.availableLiquidity(reserve)
		if err != nil {
			return nil, err
		}
		e.interestModel.Accrue(reserve, now, available)
		book.order = append(book.order, asset)
		book.reserves[asset.Key()] = reserve
		book.liquidity[asset.Key()] = available
	}
	return book, nil
}

func (b *reserveBook) require(asset crypto.Address) (*Reserve, error) {
	reserve, ok := b.reserves[asset.Key()]
	if !ok {
		return nil, ErrUnknownReserve
	}
	return reserve, nil
}

func (b *reserveBook) available(asset crypto.Address) (*big.Int, error) {
	liquidity, ok := b.liquidity[asset.Key()]
	if !ok {
		return nil, ErrUnknownReserve
	}
	return cloneBig(liquidity), nil
}

// accountData aggregates a user's positions in reference units. Weighted sums
// keep the basis-point factor so comparisons stay exact.
type accountData struct {
	collateral        *big.Int
	debt              *big.Int
	fees              *big.Int
	ltvWeighted       *big.Int
	thresholdWeighted *big.Int
}

// accountData values the user's positions. A non-zero exclude drops that
// reserve's deposit from the collateral set.
func (e *Engine) accountData(book *reserveBook, user, exclude crypto.Address) (*accountData, error) {
	acc := &accountData{
		collateral:        big.NewInt(0),
		debt:              big.NewInt(0),
		fees:              big.NewInt(0),
		ltvWeighted:       big.NewInt(0),
		thresholdWeighted: big.NewInt(0),
	}
	for _, asset := range book.order {
		reserve := book.reserves[asset.Key()]
		deposit, ok, err := e.state.LendingDeposit(asset, user)
		if err != nil {
			return nil, err
		}
		if ok && deposit.UseAsCollateral && (exclude.IsZero() || !exclude.Equal(asset)) {
			value := new(big.Int).Mul(deposit.Balance(reserve.LiquidityIndex), reserve.Price)
			acc.collateral.Add(acc.collateral, value)
			acc.ltvWeighted.Add(acc.ltvWeighted, new(big.Int).Mul(value, new(big.Int).SetUint64(reserve.Params.LTV)))
			acc.thresholdWeighted.Add(acc.thresholdWeighted, new(big.Int).Mul(value, new(big.Int).SetUint64(reserve.Params.LiquidationThreshold)))
		}
		borrow, ok, err := e.state.LendingBorrow(asset, user)
		if err != nil {
			return nil, err
		}
		if ok {
			balances := borrowBalances(borrow, reserve.BorrowIndex)
			acc.debt.Add(acc.debt, new(big.Int).Mul(balances.Total, reserve.Price))
			acc.fees.Add(acc.fees, new(big.Int).Mul(cloneBig(borrow.OriginationFee), reserve.Price))
		}
	}
	return acc, nil
}

func (a *accountData) healthFactor() *big.Int {
	if a.debt.Sign() == 0 {
		return new(big.Int).Set(MaxHealthFactor)
	}
	numerator := new(big.Int).Mul(a.thresholdWeighted, Wad)
	denominator := new(big.Int).Mul(a.debt, basisPoints)
	return numerator.Quo(numerator, denominator)
}

// headroom is the unused LTV capacity scaled by basis points. It may be
// negative for accounts that are over their LTV.
func (a *accountData) headroom() *big.Int {
	used := new(big.Int).Mul(a.debt, basisPoints)
	return new(big.Int).Sub(a.ltvWeighted, used)
}

func (a *accountData) borrowPower() *big.Int {
	power := a.headroom()
	if power.Sign() <= 0 {
		return big.NewInt(0)
	}
	return power.Quo(power, basisPoints)
}

func weightedAverage(weighted, total *big.Int) uint64 {
	if total.Sign() == 0 {
		return 0
	}
	return new(big.Int).Quo(weighted, total).Uint64()
}

func (a *accountData) global() *UserGlobalData {
	return &UserGlobalData{
		TotalCollateral:      cloneBig(a.collateral),
		TotalDebt:            cloneBig(a.debt),
		TotalFees:            cloneBig(a.fees),
		AvailableBorrowPower: a.borrowPower(),
		CurrentLTV:           weightedAverage(a.ltvWeighted, a.collateral),
		LiquidationThreshold: weightedAverage(a.thresholdWeighted, a.collateral),
		HealthFactor:         a.healthFactor(),
	}
}

func (e *Engine) snapshot(user crypto.Address) (*reserveBook, *accountData, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	book, err := e.loadBook()
	if err != nil {
		return nil, nil, err
	}
	acc, err := e.accountData(book, user, crypto.Address{})
	if err != nil {
		return nil, nil, err
	}
	return book, acc, nil
}

// HealthFactor returns the user's health factor in wad. Accounts without debt
// report MaxHealthFactor.
func (e *Engine) HealthFactor(user crypto.Address) (*big.Int, error) {
	_, acc, err := e.snapshot(user)
	if err != nil {
		return nil, err
	}
	return acc.healthFactor(), nil
}

// borrowable is the largest amount of reserve's asset that fits in headroom
// once the origination fee is added on top.
func borrowable(headroom *big.Int, reserve *Reserve) *big.Int {
	if headroom.Sign() <= 0 || reserve.Price.Sign() <= 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(headroom, basisPoints)
	denominator := new(big.Int).SetUint64(10_000 + reserve.Params.OriginationFeeBps)
	denominator.Mul(denominator, reserve.Price)
	denominator.Mul(denominator, basisPoints)
	return numerator.Quo(numerator, denominator)
}

// AvailableBorrowPower returns how many units of target the user could still
// borrow, origination fee included, floored at zero. Borrow accepts any amount
// up to this value.
func (e *Engine) AvailableBorrowPower(user, target crypto.Address) (*big.Int, error) {
	book, acc, err := e.snapshot(user)
	if err != nil {
		return nil, err
	}
	reserve, err := book.require(target)
	if err != nil {
		return nil, err
	}
	return borrowable(acc.headroom(), reserve), nil
}

// CalculateUserGlobalData aggregates the user's collateral and debt across all
// reserves.
func (e *Engine) CalculateUserGlobalData(user crypto.Address) (*UserGlobalData, error) {
	_, acc, err := e.snapshot(user)
	if err != nil {
		return nil, err
	}
	return acc.global(), nil
}
