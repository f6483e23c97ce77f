package history

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"vaultScope/internal/model"
)

// LogSource is the chain access the runner needs. *chain.Client satisfies it.
type LogSource interface {
	ChainID(ctx context.Context) (uint64, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error)
}

// Sink receives decoded events batch by batch.
type Sink interface {
	PutEvents(ctx context.Context, events []model.VaultEvent) error
}

// LedgerStore persists a ledger together with the last block it covers.
// *postgres.Store satisfies it.
type LedgerStore interface {
	LoadLedger(ctx context.Context, vault, user string) (*Ledger, uint64, bool, error)
	SaveLedger(ctx context.Context, vault string, lastProcessed uint64, ledger *Ledger) error
}

// RunConfig holds runtime settings for a history scan.
type RunConfig struct {
	Vault common.Address
	// User limits the ledger and sink to one user. Zero keeps every event.
	User              common.Address
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Runner streams vault logs, decodes them and folds them into a Ledger.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	sink       Sink
	decoder    *Decoder
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
	ledgers    LedgerStore
	retry      retryPolicy
}

// NewRunner builds a Runner. sink may be nil when only the ledger is wanted.
func NewRunner(cfg RunConfig, source LogSource, sink Sink, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := NewDecoder()
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		sink:       sink,
		decoder:    decoder,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		retry:      newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff),
	}, nil
}

// WithLedgerStore makes the runner resume from and save to store in addition
// to the checkpoint file.
func (r *Runner) WithLedgerStore(store LedgerStore) *Runner {
	r.ledgers = store
	return r
}

// Run scans [FromBlock, ToBlock] (ToBlock zero means head) and returns the
// user's ledger. With checkpointing on, a rerun resumes after the last
// completed batch and continues the stored ledger.
func (r *Runner) Run(ctx context.Context) (*Ledger, error) {
	if r.source == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if r.cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.Vault == (common.Address{}) {
		return nil, fmt.Errorf("vault address is required")
	}

	chainID, err := r.source.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.source.LatestBlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	ledger := NewLedger(r.cfg.User)
	vault := r.cfg.Vault.Hex()
	cp, ok, err := r.checkpoint.Load(vault, ledger.User)
	if err != nil {
		return nil, err
	}
	if ok && cp.LastProcessedBlock >= from {
		from = cp.LastProcessedBlock + 1
		ledger = cp.Ledger
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
	} else if r.ledgers != nil {
		stored, last, found, err := r.ledgers.LoadLedger(ctx, vault, ledger.User)
		if err != nil {
			return nil, err
		}
		if found && last >= from {
			from = last + 1
			ledger = stored
			r.logger.Info("resume from ledger store", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return ledger, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	addresses := []common.Address{r.cfg.Vault}
	topics := [][]common.Hash{r.decoder.Topic0()}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		r.logger.Debug("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange, addresses, topics)
		if err != nil {
			return nil, fmt.Errorf("filter logs: %w", err)
		}

		events := make([]model.VaultEvent, 0, len(logs))
		for _, log := range logs {
			if log.Removed || r.isDuplicate(log) || len(log.Topics) == 0 || !r.decoder.CanDecode(log.Topics[0]) {
				continue
			}

			ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			ev, err := r.decoder.Decode(chainID, log, ts)
			if err != nil {
				return nil, fmt.Errorf("block %d log %d: %w", log.BlockNumber, log.Index, err)
			}
			counted, err := ledger.Apply(ev)
			if err != nil {
				return nil, err
			}
			if counted {
				events = append(events, ev)
			}
		}

		if r.sink != nil && len(events) > 0 {
			if err := r.sink.PutEvents(ctx, events); err != nil {
				return nil, fmt.Errorf("store events: %w", err)
			}
		}

		if err := r.checkpoint.Save(vault, blockRange.To, ledger); err != nil {
			return nil, err
		}
		if r.ledgers != nil {
			if err := r.ledgers.SaveLedger(ctx, vault, blockRange.To, ledger); err != nil {
				return nil, err
			}
		}

		r.logger.Info("batch complete", zap.Int("events", len(events)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return ledger, nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, blockRange BlockRange, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := r.retry.do(ctx, func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, blockRange.From, blockRange.To, addresses, topics)
		return err
	}, func(attempt int, wait time.Duration, err error) {
		r.logger.Warn("filter logs failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := r.retry.do(ctx, func(ctx context.Context) error {
		var err error
		ts, err = r.source.BlockTimestamp(ctx, blockNumber)
		return err
	}, func(attempt int, wait time.Duration, err error) {
		r.logger.Warn("block timestamp fetch failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Uint64("block_number", blockNumber),
		)
	})
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
