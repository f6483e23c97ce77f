// Package telemetry exposes the watch loop's vault readings as Prometheus
// gauges.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vaultScope/internal/accounting"
	"vaultScope/internal/pricing"
)

const namespace = "vaultscope"

const shutdownTimeout = 5 * time.Second

// Metrics holds the gauges for one process. Each instance owns its registry
// so tests and multiple watchers never collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	tvl           *prometheus.GaugeVec
	pricePerShare *prometheus.GaugeVec
	userValue     *prometheus.GaugeVec
	earnings      *prometheus.GaugeVec
	roi           *prometheus.GaugeVec
	priceAge      *prometheus.GaugeVec
	priceStale    *prometheus.GaugeVec
	oracleHealthy *prometheus.GaugeVec
	lastBlock     *prometheus.GaugeVec
	refreshErrors *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tvl: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tvl_usd",
			Help:      "Vault total value locked in USD.",
		}, []string{"vault"}),
		pricePerShare: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "price_per_share",
			Help:      "Whole tokens per whole share, per token side.",
		}, []string{"vault", "token"}),
		userValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "user_value_usd",
			Help:      "Tracked user's position value in USD.",
		}, []string{"vault", "user"}),
		earnings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "user_earnings_usd",
			Help:      "Position value minus total deposited, in USD.",
		}, []string{"vault", "user"}),
		roi: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "user_roi_percent",
			Help:      "Earnings over total deposited, in percent.",
		}, []string{"vault", "user"}),
		priceAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "price_age_seconds",
			Help:      "Age of the USD quote used for a token.",
		}, []string{"token"}),
		priceStale: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "price_stale",
			Help:      "1 when the USD quote for a token is older than the staleness threshold.",
		}, []string{"token"}),
		oracleHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "oracle_healthy",
			Help:      "1 when the oracle passed bounds, deviation and heartbeat checks.",
		}, []string{"vault"}),
		lastBlock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_block",
			Help:      "Block the latest snapshot was pinned to.",
		}, []string{"vault"}),
		refreshErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_errors_total",
			Help:      "Failed refresh cycles by stage.",
		}, []string{"stage"}),
	}
	m.registry.MustRegister(
		m.tvl,
		m.pricePerShare,
		m.userValue,
		m.earnings,
		m.roi,
		m.priceAge,
		m.priceStale,
		m.oracleHealthy,
		m.lastBlock,
		m.refreshErrors,
	)
	return m
}

// ObserveSnapshot records the values of one computed snapshot. user may be
// empty when no user is tracked.
func (m *Metrics) ObserveSnapshot(vault, user, symbolX, symbolY string, metrics accounting.Metrics) {
	if m == nil {
		return
	}
	m.tvl.WithLabelValues(vault).Set(metrics.TotalTVLUSD.InexactFloat64())
	m.pricePerShare.WithLabelValues(vault, symbolX).Set(metrics.PricePerShareX.InexactFloat64())
	m.pricePerShare.WithLabelValues(vault, symbolY).Set(metrics.PricePerShareY.InexactFloat64())
	m.lastBlock.WithLabelValues(vault).Set(float64(metrics.BlockNumber))
	if user == "" {
		return
	}
	m.userValue.WithLabelValues(vault, user).Set(metrics.UserValueUSD.InexactFloat64())
	m.earnings.WithLabelValues(vault, user).Set(metrics.EarningsUSD.InexactFloat64())
	m.roi.WithLabelValues(vault, user).Set(metrics.ROI.InexactFloat64())
}

// ObserveQuote records how old a quote is and whether it crossed staleAfter.
func (m *Metrics) ObserveQuote(q pricing.Quote, now time.Time, staleAfter time.Duration) {
	if m == nil {
		return
	}
	token := q.Symbol
	if token == "" {
		token = "unknown"
	}
	m.priceAge.WithLabelValues(token).Set(q.Age(now).Seconds())
	m.priceStale.WithLabelValues(token).Set(boolGauge(q.IsStale(now, staleAfter)))
}

// ObserveOracle records the outcome of an oracle check.
func (m *Metrics) ObserveOracle(vault string, status pricing.OracleStatus) {
	if m == nil {
		return
	}
	m.oracleHealthy.WithLabelValues(vault).Set(boolGauge(status.Healthy()))
}

// IncRefreshError counts a failed refresh at stage.
func (m *Metrics) IncRefreshError(stage string) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	m.refreshErrors.WithLabelValues(stage).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if addr == "" {
		return fmt.Errorf("metrics address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve metrics: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics: %w", err)
	}
	return nil
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
