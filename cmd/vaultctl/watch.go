package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/config"
	"vaultScope/internal/contracts"
	"vaultScope/internal/ops"
	"vaultScope/internal/pricing"
	"vaultScope/internal/storage/postgres"
	"vaultScope/internal/telemetry"
)

type quotePair struct {
	X pricing.Quote
	Y pricing.Quote
}

// watcher refreshes valuations on an interval. It owns the quote cache.
type watcher struct {
	cfg     config.WatchConfig
	sess    *session
	users   []common.Address
	store   *postgres.Store
	export  *exporter
	metrics *telemetry.Metrics
	logger  *zap.Logger
	quotes  pricing.Cache[quotePair]
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWatch(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be greater than zero")
	}
	extra, err := config.ParseAddresses("users", cfg.Users)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	sess, err := openSession(ctx, cfg.Common, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	store, err := openStore(ctx, cfg.PGDSN, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	w := &watcher{
		cfg:     cfg,
		sess:    sess,
		users:   watchUsers(sess.user, extra),
		store:   store,
		export:  newExporter(cfg.Out),
		metrics: telemetry.New(),
		logger:  logger,
	}

	serveErr := make(chan error, 1)
	if cfg.MetricsAddr != "" {
		go func() {
			serveErr <- w.metrics.Serve(ctx, cfg.MetricsAddr, logger)
		}()
	}

	logger.Info("watch start",
		zap.String("vault", sess.addrs.Vault.Hex()),
		zap.Int("users", len(w.users)),
		zap.Duration("interval", cfg.Interval),
		zap.Duration("price_ttl", cfg.PriceTTL),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for i := 0; cfg.Iterations <= 0 || i < cfg.Iterations; i++ {
		if err := w.refresh(ctx, time.Now()); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("refresh failed", zap.Error(err))
		}
		if cfg.Iterations > 0 && i == cfg.Iterations-1 {
			break
		}
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil
		case err := <-serveErr:
			if err != nil {
				return err
			}
		case <-ticker.C:
		}
	}
	return nil
}

// watchUsers puts primary first and drops duplicates. With no users at all a
// single zero entry values the vault alone.
func watchUsers(primary common.Address, extra []common.Address) []common.Address {
	seen := make(map[common.Address]struct{}, len(extra)+1)
	out := make([]common.Address, 0, len(extra)+1)
	for _, u := range append([]common.Address{primary}, extra...) {
		if _, ok := seen[u]; ok {
			continue
		}
		if u == (common.Address{}) && len(extra) > 0 {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

type refreshError struct {
	stage string
	err   error
}

func (e *refreshError) Error() string { return e.stage + ": " + e.err.Error() }

func (e *refreshError) Unwrap() error { return e.err }

func (w *watcher) fail(stage string, err error) error {
	w.metrics.IncRefreshError(stage)
	return &refreshError{stage: stage, err: err}
}

// refresh reads one block and values every user at it.
func (w *watcher) refresh(ctx context.Context, now time.Time) error {
	vault := w.sess.addrs.Vault
	base, err := w.sess.reader.LoadState(ctx, w.cfg.Block, common.Address{})
	if err != nil {
		return w.fail("read", err)
	}

	quotes, err := w.quotePair(base, now)
	if err != nil {
		return w.fail("price", err)
	}
	w.metrics.ObserveQuote(quotes.X, now, w.cfg.StaleAfter)
	w.metrics.ObserveQuote(quotes.Y, now, w.cfg.StaleAfter)

	var errs []error
	for _, user := range w.users {
		state := base
		if user != (common.Address{}) {
			us, err := w.sess.reader.User(ctx, base.BlockNumber, user, base.TokenX, base.TokenY)
			if err != nil {
				errs = append(errs, w.fail("read", fmt.Errorf("user %s: %w", user.Hex(), err)))
				continue
			}
			state.User = &us
		}

		in, err := valuationFromQuotes(ctx, w.store, vault, state, quotes.X, quotes.Y, w.cfg.Valuation, user == w.sess.user, now)
		if err != nil {
			errs = append(errs, w.fail("valuate", err))
			continue
		}
		v, err := ops.Valuate(vault, state, in)
		if err != nil {
			errs = append(errs, w.fail("valuate", err))
			continue
		}

		w.metrics.ObserveSnapshot(vault.Hex(), v.User, state.TokenX.Label(), state.TokenY.Label(), v.Metrics)
		if v.Oracle != nil {
			w.metrics.ObserveOracle(vault.Hex(), *v.Oracle)
		}
		if err := w.persist(ctx, state, v, now); err != nil {
			errs = append(errs, err)
			continue
		}

		w.logger.Info("snapshot refreshed",
			zap.Uint64("block", state.BlockNumber),
			zap.String("user", v.User),
			zap.String("tvl_usd", v.Metrics.TotalTVLUSD.StringFixed(2)),
			zap.String("user_value_usd", v.Metrics.UserValueUSD.StringFixed(2)),
			zap.String("roi", v.Metrics.ROI.StringFixed(2)),
		)
	}
	return errors.Join(errs...)
}

// quotePair returns the cached quotes, or resolves fresh ones from config and
// the oracle and caches them for PriceTTL.
func (w *watcher) quotePair(state contracts.VaultState, now time.Time) (quotePair, error) {
	if cached, ok := w.quotes.Get(now); ok {
		return cached, nil
	}
	x, y, err := w.cfg.Quotes(state.TokenX.Label(), state.TokenY.Label(), now)
	if err != nil {
		return quotePair{}, err
	}
	x, y, err = ops.ResolveQuotes(state, x, y)
	if err != nil {
		return quotePair{}, err
	}
	pair := quotePair{X: x, Y: y}
	w.quotes = pricing.NewCache(pair, now, w.cfg.PriceTTL)
	w.logger.Debug("quotes refreshed",
		zap.String("x", x.USD.String()),
		zap.String("y", y.USD.String()),
		zap.Time("expires_at", w.quotes.ExpiresAt()),
	)
	return pair, nil
}

func (w *watcher) persist(ctx context.Context, state contracts.VaultState, v ops.Valuation, now time.Time) error {
	if err := w.export.Record("snapshot", v); err != nil {
		return w.fail("store", err)
	}
	if w.store == nil {
		return nil
	}
	if err := w.store.InsertSnapshot(ctx, v.Record(w.sess.chainID, state, now)); err != nil {
		return w.fail("store", err)
	}
	return nil
}
