package postgres

const schema = `
CREATE TABLE IF NOT EXISTS pairs (
	chain_id BIGINT NOT NULL,
	pair_address TEXT NOT NULL,
	token0 TEXT NOT NULL,
	token1 TEXT NOT NULL,
	lp_fee_bps INTEGER NOT NULL,
	first_seen_block BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, pair_address)
);

CREATE TABLE IF NOT EXISTS pair_window_metrics (
	chain_id BIGINT NOT NULL,
	pair_address TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts TIMESTAMPTZ NOT NULL,
	window_end_ts TIMESTAMPTZ NOT NULL,
	swap_count BIGINT NOT NULL,
	volume0 NUMERIC NOT NULL,
	volume1 NUMERIC NOT NULL,
	lp_fee0 NUMERIC NOT NULL,
	lp_fee1 NUMERIC NOT NULL,
	ilp_fee0 NUMERIC NOT NULL,
	ilp_fee1 NUMERIC NOT NULL,
	reserve0 NUMERIC,
	reserve1 NUMERIC,
	fee_rate0 NUMERIC,
	fee_rate1 NUMERIC,
	apr NUMERIC,
	rebalances BIGINT NOT NULL,
	fee_method TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, pair_address, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS pair_snapshots (
	chain_id BIGINT NOT NULL,
	pair_address TEXT NOT NULL,
	block_number BIGINT NOT NULL,
	block_ts BIGINT NOT NULL,
	reserve0 NUMERIC NOT NULL,
	reserve1 NUMERIC NOT NULL,
	total_supply NUMERIC NOT NULL,
	k_last NUMERIC NOT NULL,
	price0_cumulative NUMERIC NOT NULL,
	price1_cumulative NUMERIC NOT NULL,
	block_timestamp_last BIGINT NOT NULL,
	ilp_fee_active BOOLEAN NOT NULL,
	ilp_fee_rate0 INTEGER NOT NULL,
	ilp_fee_rate1 INTEGER NOT NULL,
	PRIMARY KEY (chain_id, pair_address, block_number)
);

CREATE TABLE IF NOT EXISTS upkeep_runs (
	id BIGSERIAL PRIMARY KEY,
	chain_id BIGINT NOT NULL,
	pair_address TEXT NOT NULL,
	block_number BIGINT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT,
	fee0 NUMERIC NOT NULL,
	fee1 NUMERIC NOT NULL,
	swapped NUMERIC NOT NULL,
	liquidity NUMERIC NOT NULL,
	attempts INTEGER NOT NULL,
	error TEXT,
	ran_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS logs (
	chain_id BIGINT NOT NULL,
	block_number BIGINT NOT NULL,
	tx_hash TEXT NOT NULL,
	log_index BIGINT NOT NULL,
	address TEXT NOT NULL,
	topics TEXT[] NOT NULL,
	data TEXT NOT NULL,
	block_ts BIGINT NOT NULL,
	PRIMARY KEY (chain_id, block_number, tx_hash, log_index)
);

CREATE TABLE IF NOT EXISTS ilpswap_state (
	name TEXT PRIMARY KEY,
	last_processed_ts BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
