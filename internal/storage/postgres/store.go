// Package postgres persists pairs, window metrics, snapshots, upkeep runs and exported
// logs.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ilpswap/internal/model"
)

const logWriteTimeout = 30 * time.Second

// Store provides Postgres persistence.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertPairs inserts or updates pair metadata.
func (s *Store) UpsertPairs(ctx context.Context, pairs []model.Pair) error {
	batch := &pgx.Batch{}
	for _, pair := range pairs {
		batch.Queue(`
			INSERT INTO pairs (
				chain_id, pair_address, token0, token1, lp_fee_bps, first_seen_block, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (chain_id, pair_address)
			DO UPDATE SET
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				lp_fee_bps = EXCLUDED.lp_fee_bps,
				first_seen_block = LEAST(pairs.first_seen_block, EXCLUDED.first_seen_block),
				updated_at = now()
		`,
			int64(pair.ChainID),
			pair.Address,
			pair.Token0,
			pair.Token1,
			int32(pair.LpFeeBps),
			int64(pair.FirstSeenBlock),
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PairWindowMetrics) error {
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pair_window_metrics (
				chain_id, pair_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, volume0, volume1, lp_fee0, lp_fee1, ilp_fee0, ilp_fee1,
				reserve0, reserve1, fee_rate0, fee_rate1, apr, rebalances, fee_method, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,now(),now())
			ON CONFLICT (chain_id, pair_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				volume0 = EXCLUDED.volume0,
				volume1 = EXCLUDED.volume1,
				lp_fee0 = EXCLUDED.lp_fee0,
				lp_fee1 = EXCLUDED.lp_fee1,
				ilp_fee0 = EXCLUDED.ilp_fee0,
				ilp_fee1 = EXCLUDED.ilp_fee1,
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				fee_rate0 = EXCLUDED.fee_rate0,
				fee_rate1 = EXCLUDED.fee_rate1,
				apr = EXCLUDED.apr,
				rebalances = EXCLUDED.rebalances,
				fee_method = EXCLUDED.fee_method,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.PairAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			m.Volume0,
			m.Volume1,
			m.LpFee0,
			m.LpFee1,
			m.IlpFee0,
			m.IlpFee1,
			m.Reserve0,
			m.Reserve1,
			m.FeeRate0,
			m.FeeRate1,
			m.APR,
			int64(m.Rebalances),
			m.FeeMethod,
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertPairSnapshots records pair state per block.
func (s *Store) UpsertPairSnapshots(ctx context.Context, snapshots []model.PairSnapshot) error {
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO pair_snapshots (
				chain_id, pair_address, block_number, block_ts, reserve0, reserve1, total_supply, k_last,
				price0_cumulative, price1_cumulative, block_timestamp_last, ilp_fee_active, ilp_fee_rate0, ilp_fee_rate1
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			ON CONFLICT (chain_id, pair_address, block_number)
			DO UPDATE SET
				block_ts = EXCLUDED.block_ts,
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				total_supply = EXCLUDED.total_supply,
				k_last = EXCLUDED.k_last,
				price0_cumulative = EXCLUDED.price0_cumulative,
				price1_cumulative = EXCLUDED.price1_cumulative,
				block_timestamp_last = EXCLUDED.block_timestamp_last,
				ilp_fee_active = EXCLUDED.ilp_fee_active,
				ilp_fee_rate0 = EXCLUDED.ilp_fee_rate0,
				ilp_fee_rate1 = EXCLUDED.ilp_fee_rate1
		`,
			int64(snap.ChainID),
			snap.Address,
			int64(snap.BlockNumber),
			int64(snap.Timestamp),
			snap.Reserve0,
			snap.Reserve1,
			snap.TotalSupply,
			snap.KLast,
			snap.Price0Cumulative,
			snap.Price1Cumulative,
			int64(snap.BlockTimestampLast),
			snap.IlpFeeActive,
			int32(snap.IlpFeeRate0),
			int32(snap.IlpFeeRate1),
		)
	}
	return s.sendBatch(ctx, batch)
}

// InsertUpkeepRuns appends keeper outcomes.
func (s *Store) InsertUpkeepRuns(ctx context.Context, runs []model.UpkeepRun) error {
	batch := &pgx.Batch{}
	for _, run := range runs {
		batch.Queue(`
			INSERT INTO upkeep_runs (
				chain_id, pair_address, block_number, status, reason, fee0, fee1, swapped, liquidity, attempts, error, ran_at
			) VALUES ($1,$2,$3,$4,NULLIF($5, ''),$6,$7,$8,$9,$10,NULLIF($11, ''),$12)
		`,
			int64(run.ChainID),
			run.Pair,
			int64(run.BlockNumber),
			run.Status,
			run.Reason,
			numeric(run.Fee0),
			numeric(run.Fee1),
			numeric(run.Swapped),
			numeric(run.Liquidity),
			int32(run.Attempts),
			run.Error,
			run.RanAt,
		)
	}
	return s.sendBatch(ctx, batch)
}

// PutLogBatch stores exported logs, ignoring ones already present.
func (s *Store) PutLogBatch(logs []model.LogRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), logWriteTimeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, log := range logs {
		batch.Queue(`
			INSERT INTO logs (chain_id, block_number, tx_hash, log_index, address, topics, data, block_ts)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT DO NOTHING
		`,
			int64(log.ChainID),
			int64(log.BlockNumber),
			log.TxHash,
			int64(log.LogIndex),
			log.Address,
			log.Topics,
			log.Data,
			int64(log.Timestamp),
		)
	}
	return s.sendBatch(ctx, batch)
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM ilpswap_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ilpswap_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func numeric(v string) string {
	if v == "" {
		return "0"
	}
	return v
}
