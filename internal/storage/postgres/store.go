// Package postgres persists vault events, deposit ledgers and snapshot
// history.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"vaultScope/internal/history"
	"vaultScope/internal/model"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS vault_events (
		chain_id BIGINT NOT NULL,
		tx_hash TEXT NOT NULL,
		log_index BIGINT NOT NULL,
		block_number BIGINT NOT NULL,
		block_ts BIGINT NOT NULL,
		vault TEXT NOT NULL,
		event_name TEXT NOT NULL,
		decoded JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (chain_id, tx_hash, log_index)
	)`,
	`CREATE INDEX IF NOT EXISTS vault_events_vault_block_idx ON vault_events (vault, block_number)`,
	`CREATE TABLE IF NOT EXISTS deposit_ledgers (
		vault TEXT NOT NULL,
		user_address TEXT NOT NULL,
		last_processed_block BIGINT NOT NULL,
		deposited_x NUMERIC NOT NULL,
		deposited_y NUMERIC NOT NULL,
		pending_shares NUMERIC NOT NULL,
		ledger JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (vault, user_address)
	)`,
	`CREATE TABLE IF NOT EXISTS vault_snapshots (
		chain_id BIGINT NOT NULL,
		vault TEXT NOT NULL,
		user_address TEXT NOT NULL DEFAULT '',
		block_number BIGINT NOT NULL,
		observed_at TIMESTAMPTZ NOT NULL,
		balance_x NUMERIC NOT NULL,
		balance_y NUMERIC NOT NULL,
		total_shares NUMERIC NOT NULL,
		price_per_share_x NUMERIC NOT NULL,
		price_per_share_y NUMERIC NOT NULL,
		tvl_usd NUMERIC NOT NULL,
		user_value_usd NUMERIC,
		earnings_usd NUMERIC,
		roi NUMERIC,
		price_x_stale BOOLEAN NOT NULL,
		price_y_stale BOOLEAN NOT NULL,
		PRIMARY KEY (chain_id, vault, user_address, block_number)
	)`,
}

// Store provides Postgres persistence for the vault tools.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewStore(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	s.logger.Debug("schema ready", zap.Int("statements", len(schema)))
	return nil
}

// PutEvents inserts decoded vault events, ignoring ones already stored.
func (s *Store) PutEvents(ctx context.Context, events []model.VaultEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		decoded, err := json.Marshal(ev.Decoded)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", ev.EventName, ev.Key(), err)
		}
		batch.Queue(`
			INSERT INTO vault_events (
				chain_id, tx_hash, log_index, block_number, block_ts, vault, event_name, decoded
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
			ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
		`,
			int64(ev.ChainID),
			ev.TxHash,
			int64(ev.LogIndex),
			int64(ev.BlockNumber),
			int64(ev.Timestamp),
			normalizeAddress(ev.Vault),
			ev.EventName,
			string(decoded),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert vault event: %w", err)
		}
	}
	return nil
}

// LoadLedger returns the stored ledger and the last block it covers.
func (s *Store) LoadLedger(ctx context.Context, vault, user string) (*history.Ledger, uint64, bool, error) {
	if vault == "" {
		return nil, 0, false, fmt.Errorf("vault required")
	}
	var (
		last int64
		raw  []byte
	)
	row := s.pool.QueryRow(ctx, `
		SELECT last_processed_block, ledger FROM deposit_ledgers
		WHERE vault=$1 AND user_address=$2
	`, normalizeAddress(vault), normalizeAddress(user))
	if err := row.Scan(&last, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, false, nil
		}
		return nil, 0, false, fmt.Errorf("load ledger: %w", err)
	}
	var ledger history.Ledger
	if err := json.Unmarshal(raw, &ledger); err != nil {
		return nil, 0, false, fmt.Errorf("decode ledger: %w", err)
	}
	return &ledger, uint64(last), true, nil
}

// SaveLedger upserts the ledger for its vault and user.
func (s *Store) SaveLedger(ctx context.Context, vault string, lastProcessed uint64, ledger *history.Ledger) error {
	if vault == "" {
		return fmt.Errorf("vault required")
	}
	if ledger == nil {
		return fmt.Errorf("ledger is nil")
	}
	raw, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO deposit_ledgers (
			vault, user_address, last_processed_block, deposited_x, deposited_y, pending_shares, ledger, updated_at
		) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::jsonb, now())
		ON CONFLICT (vault, user_address) DO UPDATE SET
			last_processed_block = EXCLUDED.last_processed_block,
			deposited_x = EXCLUDED.deposited_x,
			deposited_y = EXCLUDED.deposited_y,
			pending_shares = EXCLUDED.pending_shares,
			ledger = EXCLUDED.ledger,
			updated_at = now()
	`,
		normalizeAddress(vault),
		normalizeAddress(ledger.User),
		int64(lastProcessed),
		ledger.DepositedX.String(),
		ledger.DepositedY.String(),
		ledger.PendingShares().String(),
		string(raw),
	)
	if err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// InsertSnapshot stores one snapshot computation. A rerun at the same block
// overwrites the earlier row.
func (s *Store) InsertSnapshot(ctx context.Context, rec model.SnapshotRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vault_snapshots (
			chain_id, vault, user_address, block_number, observed_at,
			balance_x, balance_y, total_shares, price_per_share_x, price_per_share_y,
			tvl_usd, user_value_usd, earnings_usd, roi, price_x_stale, price_y_stale
		) VALUES ($1,$2,$3,$4,$5,$6::numeric,$7::numeric,$8::numeric,$9::numeric,$10::numeric,
			$11::numeric,$12::numeric,$13::numeric,$14::numeric,$15,$16)
		ON CONFLICT (chain_id, vault, user_address, block_number)
		DO UPDATE SET
			observed_at = EXCLUDED.observed_at,
			balance_x = EXCLUDED.balance_x,
			balance_y = EXCLUDED.balance_y,
			total_shares = EXCLUDED.total_shares,
			price_per_share_x = EXCLUDED.price_per_share_x,
			price_per_share_y = EXCLUDED.price_per_share_y,
			tvl_usd = EXCLUDED.tvl_usd,
			user_value_usd = EXCLUDED.user_value_usd,
			earnings_usd = EXCLUDED.earnings_usd,
			roi = EXCLUDED.roi,
			price_x_stale = EXCLUDED.price_x_stale,
			price_y_stale = EXCLUDED.price_y_stale
	`,
		int64(rec.ChainID),
		normalizeAddress(rec.Vault),
		normalizeAddress(rec.User),
		int64(rec.BlockNumber),
		rec.ObservedAt,
		rec.BalanceX,
		rec.BalanceY,
		rec.TotalShares,
		rec.PricePerShareX,
		rec.PricePerShareY,
		rec.TVLUSD,
		rec.UserValueUSD,
		rec.EarningsUSD,
		rec.ROI,
		rec.PriceXStale,
		rec.PriceYStale,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
