package observability

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	nativecommon "lendingpool/native/common"
	"lendingpool/native/lending"
)

// LendingMetrics tracks pool operations executed by the node.
type LendingMetrics struct {
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	liquidations *prometheus.CounterVec
	flashLoans   *prometheus.CounterVec
}

type apiMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	lendingMetricsOnce sync.Once
	lendingRegistry    *LendingMetrics

	apiMetricsOnce sync.Once
	apiRegistry    *apiMetrics
)

// Lending returns the lazily-initialised lending metrics registry.
func Lending() *LendingMetrics {
	lendingMetricsOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_operations_total",
				Help: "Lending pool operations segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "lending_operation_duration_seconds",
				Help:    "Latency of lending pool operations including commit.",
				Buckets: prometheus.DefBuckets,
			}, []string{"op"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_liquidations_total",
				Help: "Successful liquidations segmented by collateral and debt asset.",
			}, []string{"collateral", "debt"}),
			flashLoans: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_flashloans_total",
				Help: "Flash loans segmented by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.duration,
			lendingRegistry.liquidations,
			lendingRegistry.flashLoans,
		)
	})
	return lendingRegistry
}

// Outcome maps an operation error onto a bounded label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	case errors.Is(err, lending.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, lending.ErrInvalidAmount):
		return "invalid"
	default:
		return "rejected"
	}
}

// ObserveOperation records the outcome and latency of a pool operation.
func (m *LendingMetrics) ObserveOperation(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.operations.WithLabelValues(op, Outcome(err)).Inc()
	m.duration.WithLabelValues(op).Observe(duration.Seconds())
}

// OperationCounter exposes the operation counter for assertions.
func (m *LendingMetrics) OperationCounter() *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return m.operations
}

// RecordLiquidation counts a settled liquidation.
func (m *LendingMetrics) RecordLiquidation(collateral, debt string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(collateral, debt).Inc()
}

// LiquidationCounter exposes the liquidation counter for assertions.
func (m *LendingMetrics) LiquidationCounter() *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return m.liquidations
}

// RecordFlashLoan counts a flash loan attempt.
func (m *LendingMetrics) RecordFlashLoan(err error) {
	if m == nil {
		return
	}
	m.flashLoans.WithLabelValues(Outcome(err)).Inc()
}

// FlashLoanCounter exposes the flash loan counter for assertions.
func (m *LendingMetrics) FlashLoanCounter() *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return m.flashLoans
}

// API returns the metrics registry used by the HTTP service.
func API() *apiMetrics {
	apiMetricsOnce.Do(func() {
		apiRegistry = &apiMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendingd",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests segmented by route and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendingd",
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "HTTP errors segmented by route and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lendingd",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendingd",
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Requests rejected by the per-client rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			apiRegistry.requests,
			apiRegistry.errors,
			apiRegistry.latency,
			apiRegistry.throttles,
		)
	})
	return apiRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *apiMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	method = strings.ToUpper(method)
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *apiMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// ThrottleCounter exposes the throttle counter for assertions.
func (m *apiMetrics) ThrottleCounter() *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return m.throttles
}
