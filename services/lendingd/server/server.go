package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lendingpool/core/types"
	"lendingpool/crypto"
	"lendingpool/native/lending"
	"lendingpool/observability"
	"lendingpool/observability/logging"
	"lendingpool/services/lendingd/eventlog"
)

const maxBodyBytes = 1 << 16

// Backend is the protocol surface exposed over HTTP. *core.Node satisfies it.
type Backend interface {
	PoolAddress() crypto.Address
	AddReserve(caller, asset crypto.Address) (*lending.Reserve, error)
	SetPrice(caller, asset crypto.Address, price *big.Int) error
	SetReserveEnabled(caller, asset crypto.Address, enabled bool) error
	Deposit(user, asset crypto.Address, amount *big.Int, useAsCollateral bool) error
	Borrow(user, asset crypto.Address, amount *big.Int) (*big.Int, error)
	Repay(payer, asset crypto.Address, amount *big.Int, onBehalfOf crypto.Address) (lending.RepaySplit, error)
	RedeemAll(user, asset crypto.Address) (*big.Int, error)
	SetUseReserveAsCollateral(user, asset crypto.Address, enabled bool) error
	Liquidation(liquidator, collateralAsset, debtAsset, borrower crypto.Address, cover *big.Int) (*lending.LiquidationResult, error)
	CollectFees(caller, asset, to crypto.Address) (*big.Int, error)
	SetPaused(caller crypto.Address, module string, paused bool) error
	Approve(owner, asset, spender crypto.Address, amount *big.Int) error
	Transfer(from, asset, to crypto.Address, amount *big.Int) error
	TokenBalance(asset, owner crypto.Address) (*big.Int, error)
	Reserves() ([]*lending.ReserveData, error)
	ReserveData(asset crypto.Address) (*lending.ReserveData, error)
	UserGlobalData(user crypto.Address) (*lending.UserGlobalData, error)
	UserReserveData(asset, user crypto.Address) (*lending.UserReserveData, error)
	BorrowBalances(asset, user crypto.Address) (lending.BorrowBalances, error)
	ReceiptBalance(user, asset crypto.Address) (*big.Int, error)
	AvailableBorrowPower(user, asset crypto.Address) (*big.Int, error)
	IsPaused(module string) bool
	Subscribe(buffer int) (<-chan *types.Event, func())
}

// Journal lists persisted events.
type Journal interface {
	List(ctx context.Context, filter eventlog.Filter) ([]eventlog.Record, error)
}

// Config wires the HTTP surface.
type Config struct {
	Auth      AuthConfig
	RateLimit RateLimit
	Journal   Journal
	Logger    *slog.Logger
}

// Server exposes the lending pool over HTTP.
type Server struct {
	backend Backend
	journal Journal
	auth    *authenticator
	limiter *rateLimiter
	logger  *slog.Logger
	router  chi.Router
}

// New builds the router for backend.
func New(backend Backend, cfg Config) *Server {
	logger := logging.OrDefault(cfg.Logger)
	s := &Server{
		backend: backend,
		journal: cfg.Journal,
		auth:    newAuthenticator(cfg.Auth, logger),
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the traced HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "lendingd")
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.limiter.middleware)

		r.Get("/reserves", s.handleListReserves)
		r.Get("/reserves/{asset}", s.handleGetReserve)
		r.Get("/accounts/{address}", s.handleAccount)
		r.Get("/accounts/{address}/reserves/{asset}", s.handleAccountReserve)
		r.Get("/accounts/{address}/borrows/{asset}", s.handleBorrowBalances)
		r.Get("/accounts/{address}/receipts/{asset}", s.handleReceiptBalance)
		r.Get("/tokens/{asset}/balances/{address}", s.handleTokenBalance)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.middleware(ScopeRead))
			r.Get("/events", s.handleEvents)
			r.Get("/journal", s.handleJournal)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.middleware(ScopeWrite))
			r.Post("/deposit", s.handleDeposit)
			r.Post("/borrow", s.handleBorrow)
			r.Post("/repay", s.handleRepay)
			r.Post("/redeem", s.handleRedeem)
			r.Post("/collateral", s.handleCollateral)
			r.Post("/liquidate", s.handleLiquidate)
			r.Post("/tokens/approve", s.handleApprove)
			r.Post("/tokens/transfer", s.handleTransfer)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.middleware(ScopeAdmin))
			r.Post("/reserves", s.handleAddReserve)
			r.Post("/reserves/{asset}/enabled", s.handleReserveEnabled)
			r.Post("/reserves/{asset}/fees", s.handleCollectFees)
			r.Post("/admin/pause", s.handlePause)
		})

		r.With(s.auth.middleware(ScopeOracle)).Post("/reserves/{asset}/price", s.handleSetPrice)
	})
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.API().Observe(route, r.Method, status, time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"paused": map[string]bool{
			lending.ModuleName: s.backend.IsPaused(lending.ModuleName),
		},
	})
}

// --- request decoding ---

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func parseAddress(field, value string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, badRequest(fmt.Sprintf("%s: invalid address", field))
	}
	return addr, nil
}

// parseAsset accepts a bech32 token address or a token symbol.
func parseAsset(value string) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return crypto.Address{}, badRequest("asset required")
	}
	return lending.ResolveAsset(value), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, badRequest(fmt.Sprintf("%s: invalid integer", field))
	}
	return amount, nil
}

func mustCaller(r *http.Request) crypto.Address {
	caller, _ := callerFrom(r.Context())
	return caller
}

// --- reads ---

func (s *Server) handleListReserves(w http.ResponseWriter, _ *http.Request) {
	reserves, err := s.backend.Reserves()
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := make([]reserveView, 0, len(reserves))
	for _, data := range reserves {
		out = append(out, reserveViewFrom(data))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reserves": out})
}

func (s *Server) handleGetReserve(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	data, err := s.backend.ReserveData(asset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reserveViewFrom(data))
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	data, err := s.backend.UserGlobalData(user)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountView{
		Address:              user.String(),
		TotalCollateral:      amount(data.TotalCollateral),
		TotalDebt:            amount(data.TotalDebt),
		TotalFees:            amount(data.TotalFees),
		AvailableBorrowPower: amount(data.AvailableBorrowPower),
		CurrentLTV:           data.CurrentLTV,
		LiquidationThreshold: data.LiquidationThreshold,
		HealthFactor:         amount(data.HealthFactor),
	})
}

func (s *Server) handleAccountReserve(w http.ResponseWriter, r *http.Request) {
	user, asset, err := accountAsset(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	data, err := s.backend.UserReserveData(asset, user)
	if err != nil {
		writeFailure(w, err)
		return
	}
	power, err := s.backend.AvailableBorrowPower(user, asset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountReserveView{
		Address:         user.String(),
		Asset:           asset.String(),
		ReceiptBalance:  amount(data.ReceiptBalance),
		UseAsCollateral: data.UseAsCollateral,
		BorrowPower:     amount(power),
		Borrow:          borrowViewFrom(data.Borrow),
	})
}

// accountAsset parses the {address} and {asset} path parameters.
func accountAsset(r *http.Request) (crypto.Address, crypto.Address, error) {
	user, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		return crypto.Address{}, crypto.Address{}, err
	}
	asset, err := parseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		return crypto.Address{}, crypto.Address{}, err
	}
	return user, asset, nil
}

func (s *Server) handleBorrowBalances(w http.ResponseWriter, r *http.Request) {
	user, asset, err := accountAsset(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	balances, err := s.backend.BorrowBalances(asset, user)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, borrowViewFrom(balances))
}

func (s *Server) handleReceiptBalance(w http.ResponseWriter, r *http.Request) {
	user, asset, err := accountAsset(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	balance, err := s.backend.ReceiptBalance(user, asset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": user.String(),
		"asset":   asset.String(),
		"balance": amount(balance),
	})
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	owner, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	balance, err := s.backend.TokenBalance(asset, owner)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":   asset.String(),
		"address": owner.String(),
		"balance": balance.String(),
	})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "event journal disabled")
		return
	}
	query := r.URL.Query()
	filter := eventlog.Filter{Type: query.Get("type"), Limit: 100}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		filter.Limit = limit
	}
	for key, dst := range map[string]*time.Time{"since": &filter.Since, "until": &filter.Until} {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, key+": expected RFC3339 timestamp")
			return
		}
		*dst = parsed
	}
	records, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("journal query failed", slog.Any("error", err))
		writeFailure(w, err)
		return
	}
	type entry struct {
		ID         string            `json:"id"`
		Sequence   uint64            `json:"sequence"`
		Type       string            `json:"type"`
		Attributes map[string]string `json:"attributes"`
		Digest     string            `json:"digest"`
		CreatedAt  time.Time         `json:"created_at"`
	}
	out := make([]entry, 0, len(records))
	for _, rec := range records {
		attrs, err := rec.Decode()
		if err != nil {
			writeFailure(w, err)
			return
		}
		out = append(out, entry{
			ID:         rec.ID.String(),
			Sequence:   rec.Sequence,
			Type:       rec.Type,
			Attributes: attrs,
			Digest:     rec.Digest,
			CreatedAt:  rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": out})
}

// --- user operations ---

type depositRequest struct {
	Asset           string `json:"asset"`
	Amount          string `json:"amount"`
	UseAsCollateral bool   `json:"use_as_collateral"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	value, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := s.backend.Deposit(mustCaller(r), asset, value, req.UseAsCollateral); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type assetAmountRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req assetAmountRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	value, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeFailure(w, err)
		return
	}
	fee, err := s.backend.Borrow(mustCaller(r), asset, value)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"origination_fee": amount(fee)})
}

type repayRequest struct {
	Asset      string `json:"asset"`
	Amount     string `json:"amount"`
	OnBehalfOf string `json:"on_behalf_of,omitempty"`
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	var req repayRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	value, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeFailure(w, err)
		return
	}
	var onBehalfOf crypto.Address
	if strings.TrimSpace(req.OnBehalfOf) != "" {
		if onBehalfOf, err = parseAddress("on_behalf_of", req.OnBehalfOf); err != nil {
			writeFailure(w, err)
			return
		}
	}
	split, err := s.backend.Repay(mustCaller(r), asset, value, onBehalfOf)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repayView{
		Interest:  amount(split.Interest),
		Fee:       amount(split.Fee),
		Principal: amount(split.Principal),
		Total:     amount(split.Total()),
	})
}

type assetRequest struct {
	Asset string `json:"asset"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	redeemed, err := s.backend.RedeemAll(mustCaller(r), asset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redeemed": amount(redeemed)})
}

type toggleRequest struct {
	Asset   string `json:"asset,omitempty"`
	Enabled bool   `json:"enabled"`
}

func (s *Server) handleCollateral(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := s.backend.SetUseReserveAsCollateral(mustCaller(r), asset, req.Enabled); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type liquidateRequest struct {
	CollateralAsset string `json:"collateral_asset"`
	DebtAsset       string `json:"debt_asset"`
	Borrower        string `json:"borrower"`
	Amount          string `json:"amount"`
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	collateral, err := parseAsset(req.CollateralAsset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	debt, err := parseAsset(req.DebtAsset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	borrower, err := parseAddress("borrower", req.Borrower)
	if err != nil {
		writeFailure(w, err)
		return
	}
	cover, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeFailure(w, err)
		return
	}
	res, err := s.backend.Liquidation(mustCaller(r), collateral, debt, borrower, cover)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, liquidationView{
		Borrower:         res.Borrower.String(),
		CollateralAsset:  res.CollateralAsset.String(),
		DebtAsset:        res.DebtAsset.String(),
		DebtCovered:      amount(res.DebtCovered),
		FeeCovered:       amount(res.FeeCovered),
		CollateralSeized: amount(res.CollateralSeized),
	})
}

type approveRequest struct {
	Asset   string `json:"asset"`
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount"`
}

// handleApprove defaults the spender to the pool account.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	spender := s.backend.PoolAddress()
	if strings.TrimSpace(req.Spender) != "" {
		if spender, err = parseAddress("spender", req.Spender); err != nil {
			writeFailure(w, err)
			return
		}
	}
	value, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := s.backend.Approve(mustCaller(r), asset, spender, value); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"spender": spender.String(), "amount": value.String()})
}

type transferRequest struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeFailure(w, err)
		return
	}
	value, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := s.backend.Transfer(mustCaller(r), asset, to, value); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- admin surface ---

func (s *Server) handleAddReserve(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if _, err := s.backend.AddReserve(mustCaller(r), asset); err != nil {
		writeFailure(w, err)
		return
	}
	data, err := s.backend.ReserveData(asset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reserveViewFrom(data))
}

func (s *Server) handleReserveEnabled(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req toggleRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if err := s.backend.SetReserveEnabled(mustCaller(r), asset, req.Enabled); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

type collectRequest struct {
	To string `json:"to"`
}

func (s *Server) handleCollectFees(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req collectRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeFailure(w, err)
		return
	}
	collected, err := s.backend.CollectFees(mustCaller(r), asset, to)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"collected": amount(collected)})
}

type pauseRequest struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	caller := mustCaller(r)
	if err := s.backend.SetPaused(caller, req.Module, req.Paused); err != nil {
		writeFailure(w, err)
		return
	}
	s.logger.Info("module pause toggled",
		slog.String("module", req.Module),
		slog.Bool("paused", req.Paused),
		slog.String("address", caller.String()))
	writeJSON(w, http.StatusOK, map[string]interface{}{"module": req.Module, "paused": req.Paused})
}

type priceRequest struct {
	Price string `json:"price"`
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req priceRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := s.backend.SetPrice(mustCaller(r), asset, price); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"asset": asset.String(), "price": price.String()})
}
