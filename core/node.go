package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"lendingpool/config"
	"lendingpool/core/events"
	lpstate "lendingpool/core/state"
	"lendingpool/core/types"
	"lendingpool/crypto"
	"lendingpool/native/flashloan"
	"lendingpool/native/lending"
	"lendingpool/native/token"
	"lendingpool/observability"
	"lendingpool/observability/logging"
	"lendingpool/storage"
)

var (
	// ErrUnknownModule is returned when pausing a module the node does not run.
	ErrUnknownModule = errors.New("node: unknown module")
	// ErrUnauthorized is returned when a non-admin toggles a pause flag.
	ErrUnauthorized = errors.New("node: caller lacks admin role")
)

// EventSink persists committed events, e.g. the service event journal.
type EventSink interface {
	Record(ctx context.Context, evts []*types.Event) error
}

// Option customises a Node.
type Option func(*Node)

// WithLogger sets the node logger. Nil keeps slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) { n.logger = logging.OrDefault(logger) }
}

// WithClock overrides the wall clock used for interest accrual.
func WithClock(clock func() time.Time) Option {
	return func(n *Node) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithEventSink attaches a sink that receives every committed event.
func WithEventSink(sink EventSink) Option {
	return func(n *Node) { n.sink = sink }
}

// Node is the central controller. It owns the state database and serialises
// every operation: each call opens one state transaction, runs the native
// modules against it and commits only on success.
type Node struct {
	db          storage.Database
	state       *lpstate.Manager
	lending     lending.Config
	flashFeeBps uint64

	poolAddress  crypto.Address
	flashAccount crypto.Address

	logger  *slog.Logger
	metrics *observability.LendingMetrics
	clock   func() time.Time
	sink    EventSink

	stateMu sync.Mutex

	subMu       sync.RWMutex
	subscribers map[uint64]chan *types.Event
	nextSub     uint64
}

// NewNode wires the node to db and applies the genesis described by cfg when
// the database is fresh.
func NewNode(db storage.Database, cfg *config.Config, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Lending.Validate(); err != nil {
		return nil, fmt.Errorf("node: lending config: %w", err)
	}
	n := &Node{
		db:           db,
		state:        lpstate.NewManager(db),
		lending:      cfg.Lending,
		flashFeeBps:  cfg.FlashLoan.FeeBps,
		poolAddress:  crypto.ModuleAddress(lending.ModuleName),
		flashAccount: crypto.ModuleAddress(flashloan.ModuleName),
		logger:       slog.Default(),
		metrics:      observability.Lending(),
		clock:        time.Now,
		subscribers:  make(map[uint64]chan *types.Event),
	}
	for _, opt := range opts {
		opt(n)
	}
	if err := n.applyGenesis(cfg); err != nil {
		return nil, err
	}
	n.logger.Info("node ready",
		slog.String("pool", n.poolAddress.String()),
		slog.String("flashloan", n.flashAccount.String()))
	return n, nil
}

// PoolAddress returns the module account custodying reserve liquidity.
func (n *Node) PoolAddress() crypto.Address { return n.poolAddress }

// FlashLoanAccount returns the module account lending flash liquidity.
func (n *Node) FlashLoanAccount() crypto.Address { return n.flashAccount }

// Close releases the underlying database.
func (n *Node) Close() {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.db.Close()
	n.subMu.Lock()
	for id, ch := range n.subscribers {
		close(ch)
		delete(n.subscribers, id)
	}
	n.subMu.Unlock()
}

// txModules bundles the native modules bound to one state transaction.
type txModules struct {
	state   *lpstate.Manager
	emitter events.Emitter
	tokens  *token.Ledger
	lending *lending.Engine
	flash   *flashloan.Facility
}

func (n *Node) modules(tx *lpstate.Manager, emitter events.Emitter) (*txModules, error) {
	tokens := token.NewLedger(tx)
	tokens.SetEmitter(emitter)

	engine, err := lending.NewEngineFromConfig(n.poolAddress, n.lending)
	if err != nil {
		return nil, err
	}
	engine.SetState(tx)
	engine.SetTokens(tokens)
	engine.SetPauses(tx)
	engine.SetEmitter(emitter)
	engine.SetClock(n.clock)

	flash := flashloan.NewFacility(n.flashAccount, n.flashFeeBps)
	flash.SetTokens(tokens)
	flash.SetPauses(tx)
	flash.SetEmitter(emitter)

	return &txModules{state: tx, emitter: emitter, tokens: tokens, lending: engine, flash: flash}, nil
}

// update runs fn inside a state transaction and publishes the buffered events
// once the transaction commits.
func (n *Node) update(op string, fn func(m *txModules) error) error {
	start := time.Now()
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	var buf events.Buffer
	err := n.state.Update(func(tx *lpstate.Manager) error {
		m, err := n.modules(tx, &buf)
		if err != nil {
			return err
		}
		return fn(m)
	})
	n.metrics.ObserveOperation(op, err, time.Since(start))
	if err != nil {
		buf.Drain()
		n.logger.Debug("operation rejected", slog.String("op", op), slog.Any("error", err))
		return err
	}
	n.publish(buf.Drain())
	return nil
}

// view runs fn against a transaction that is always discarded.
func (n *Node) view(fn func(m *txModules) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	tx := n.state.Begin()
	defer tx.Discard()
	m, err := n.modules(tx, events.NoopEmitter{})
	if err != nil {
		return err
	}
	return fn(m)
}

func (n *Node) publish(emitted []events.Event) {
	if len(emitted) == 0 {
		return
	}
	rendered := make([]*types.Event, 0, len(emitted))
	for _, evt := range emitted {
		if r := events.Render(evt); r != nil {
			rendered = append(rendered, r)
		}
	}
	if n.sink != nil {
		if err := n.sink.Record(context.Background(), rendered); err != nil {
			n.logger.Error("event journal write failed", slog.Any("error", err))
		}
	}
	n.subMu.RLock()
	defer n.subMu.RUnlock()
	for id, ch := range n.subscribers {
		for _, evt := range rendered {
			select {
			case ch <- evt:
			default:
				n.logger.Warn("dropping event for slow subscriber",
					slog.Uint64("subscriber", id), slog.String("type", evt.Type))
			}
		}
	}
}

// Subscribe streams committed events. The returned cancel function must be
// called to release the subscription.
func (n *Node) Subscribe(buffer int) (<-chan *types.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan *types.Event, buffer)
	n.subMu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subscribers[id] = ch
	n.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.subMu.Lock()
			if _, ok := n.subscribers[id]; ok {
				delete(n.subscribers, id)
				close(ch)
			}
			n.subMu.Unlock()
		})
	}
}

// --- Lending pool operations ---

func (n *Node) AddReserve(caller, asset crypto.Address) (*lending.Reserve, error) {
	var reserve *lending.Reserve
	err := n.update("add_reserve", func(m *txModules) error {
		var err error
		reserve, err = m.lending.AddReserve(caller, asset)
		return err
	})
	return reserve, err
}

func (n *Node) SetPrice(caller, asset crypto.Address, price *big.Int) error {
	return n.update("set_price", func(m *txModules) error {
		return m.lending.SetPrice(caller, asset, price)
	})
}

func (n *Node) SetReserveEnabled(caller, asset crypto.Address, enabled bool) error {
	return n.update("set_reserve_enabled", func(m *txModules) error {
		return m.lending.SetReserveEnabled(caller, asset, enabled)
	})
}

func (n *Node) Deposit(user, asset crypto.Address, amount *big.Int, useAsCollateral bool) error {
	return n.update("deposit", func(m *txModules) error {
		return m.lending.Deposit(user, asset, amount, useAsCollateral)
	})
}

// Borrow returns the origination fee added to the position.
func (n *Node) Borrow(user, asset crypto.Address, amount *big.Int) (*big.Int, error) {
	var fee *big.Int
	err := n.update("borrow", func(m *txModules) error {
		var err error
		fee, err = m.lending.Borrow(user, asset, amount)
		return err
	})
	return fee, err
}

func (n *Node) Repay(payer, asset crypto.Address, amount *big.Int, onBehalfOf crypto.Address) (lending.RepaySplit, error) {
	var split lending.RepaySplit
	err := n.update("repay", func(m *txModules) error {
		var err error
		split, err = m.lending.Repay(payer, asset, amount, onBehalfOf)
		return err
	})
	return split, err
}

func (n *Node) RedeemAll(user, asset crypto.Address) (*big.Int, error) {
	var redeemed *big.Int
	err := n.update("redeem", func(m *txModules) error {
		var err error
		redeemed, err = m.lending.RedeemAll(user, asset)
		return err
	})
	return redeemed, err
}

func (n *Node) SetUseReserveAsCollateral(user, asset crypto.Address, enabled bool) error {
	return n.update("set_collateral", func(m *txModules) error {
		return m.lending.SetUseReserveAsCollateral(user, asset, enabled)
	})
}

func (n *Node) Liquidation(liquidator, collateralAsset, debtAsset, borrower crypto.Address, cover *big.Int) (*lending.LiquidationResult, error) {
	var (
		res       *lending.LiquidationResult
		collLabel string
		debtLabel string
	)
	err := n.update("liquidation", func(m *txModules) error {
		var err error
		res, err = m.lending.Liquidation(liquidator, collateralAsset, debtAsset, borrower, cover)
		if err != nil {
			return err
		}
		collLabel = symbolOf(m.tokens, collateralAsset)
		debtLabel = symbolOf(m.tokens, debtAsset)
		return nil
	})
	if err == nil {
		n.metrics.RecordLiquidation(collLabel, debtLabel)
	}
	return res, err
}

func (n *Node) CollectFees(caller, asset, to crypto.Address) (*big.Int, error) {
	var collected *big.Int
	err := n.update("collect_fees", func(m *txModules) error {
		var err error
		collected, err = m.lending.CollectFees(caller, asset, to)
		return err
	})
	return collected, err
}

// FlashLoan lends amount of asset to receiver for the duration of the call.
// A failed loan leaves every balance untouched.
func (n *Node) FlashLoan(ctx context.Context, receiver flashloan.Receiver, asset crypto.Address, amount *big.Int) (*big.Int, error) {
	var fee *big.Int
	err := n.update("flashloan", func(m *txModules) error {
		var err error
		fee, err = m.flash.FlashLoan(ctx, receiver, asset, amount)
		return err
	})
	n.metrics.RecordFlashLoan(err)
	return fee, err
}

// SetPaused toggles the pause flag of a module. Only admins may call it.
func (n *Node) SetPaused(caller crypto.Address, module string, paused bool) error {
	module = strings.ToLower(strings.TrimSpace(module))
	if module != lending.ModuleName && module != flashloan.ModuleName {
		return fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}
	return n.update("set_paused", func(m *txModules) error {
		if !m.state.HasRole(lending.RoleAdmin, caller.Bytes()) {
			return ErrUnauthorized
		}
		if err := m.state.SetPaused(module, paused); err != nil {
			return err
		}
		m.emitter.Emit(events.ModulePaused{Module: module, Paused: paused, Actor: caller.String()})
		return nil
	})
}

// --- Token boundary ---

func (n *Node) Approve(owner, asset, spender crypto.Address, amount *big.Int) error {
	return n.update("approve", func(m *txModules) error {
		return m.tokens.Approve(asset, owner, spender, amount)
	})
}

func (n *Node) Transfer(from, asset, to crypto.Address, amount *big.Int) error {
	return n.update("transfer", func(m *txModules) error {
		return m.tokens.Transfer(asset, from, to, amount)
	})
}

func (n *Node) TokenBalance(asset, owner crypto.Address) (*big.Int, error) {
	var balance *big.Int
	err := n.view(func(m *txModules) error {
		var err error
		balance, err = m.tokens.BalanceOf(asset, owner)
		return err
	})
	return balance, err
}

func (n *Node) TokenMetadata(asset crypto.Address) (*token.Metadata, error) {
	var meta *token.Metadata
	err := n.view(func(m *txModules) error {
		var err error
		meta, err = m.tokens.Metadata(asset)
		return err
	})
	return meta, err
}

// --- Queries ---

func (n *Node) Reserves() ([]*lending.ReserveData, error) {
	var out []*lending.ReserveData
	err := n.view(func(m *txModules) error {
		assets, err := m.lending.Reserves()
		if err != nil {
			return err
		}
		out = make([]*lending.ReserveData, 0, len(assets))
		for _, asset := range assets {
			data, err := m.lending.GetReserveData(asset)
			if err != nil {
				return err
			}
			out = append(out, data)
		}
		return nil
	})
	return out, err
}

func (n *Node) ReserveCount() (int, error) {
	var count int
	err := n.view(func(m *txModules) error {
		var err error
		count, err = m.lending.ReserveCount()
		return err
	})
	return count, err
}

func (n *Node) ReserveData(asset crypto.Address) (*lending.ReserveData, error) {
	var data *lending.ReserveData
	err := n.view(func(m *txModules) error {
		var err error
		data, err = m.lending.GetReserveData(asset)
		return err
	})
	return data, err
}

func (n *Node) UserGlobalData(user crypto.Address) (*lending.UserGlobalData, error) {
	var data *lending.UserGlobalData
	err := n.view(func(m *txModules) error {
		var err error
		data, err = m.lending.CalculateUserGlobalData(user)
		return err
	})
	return data, err
}

func (n *Node) UserReserveData(asset, user crypto.Address) (*lending.UserReserveData, error) {
	var data *lending.UserReserveData
	err := n.view(func(m *txModules) error {
		var err error
		data, err = m.lending.GetUserReserveData(asset, user)
		return err
	})
	return data, err
}

func (n *Node) BorrowBalances(asset, user crypto.Address) (lending.BorrowBalances, error) {
	var balances lending.BorrowBalances
	err := n.view(func(m *txModules) error {
		var err error
		balances, err = m.lending.GetUserBorrowBalances(asset, user)
		return err
	})
	return balances, err
}

func (n *Node) ReceiptBalance(user, asset crypto.Address) (*big.Int, error) {
	var balance *big.Int
	err := n.view(func(m *txModules) error {
		var err error
		balance, err = m.lending.BalanceOfReceiptToken(user, asset)
		return err
	})
	return balance, err
}

func (n *Node) AvailableBorrowPower(user, asset crypto.Address) (*big.Int, error) {
	var power *big.Int
	err := n.view(func(m *txModules) error {
		var err error
		power, err = m.lending.AvailableBorrowPower(user, asset)
		return err
	})
	return power, err
}

// IsPaused reports the committed pause flag of module.
func (n *Node) IsPaused(module string) bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.IsPaused(module)
}

// HasRole reports whether addr holds role.
func (n *Node) HasRole(role string, addr crypto.Address) bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.HasRole(role, addr.Bytes())
}

func symbolOf(tokens *token.Ledger, asset crypto.Address) string {
	meta, err := tokens.Metadata(asset)
	if err != nil || meta == nil || meta.Symbol == "" {
		return asset.String()
	}
	return meta.Symbol
}
