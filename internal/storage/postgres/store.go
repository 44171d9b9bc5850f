package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"landScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_rows (
	id           TEXT PRIMARY KEY,
	chain_id     BIGINT NOT NULL,
	contract     TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	block_number BIGINT NOT NULL,
	log_index    BIGINT NOT NULL,
	tx_hash      TEXT NOT NULL,
	block_ts     BIGINT,
	from_party   TEXT NOT NULL,
	to_party     TEXT NOT NULL,
	amount       TEXT NOT NULL DEFAULT '',
	price        TEXT NOT NULL DEFAULT '',
	meta         JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS event_rows_order_idx ON event_rows (chain_id, contract, block_number DESC, log_index DESC);

CREATE TABLE IF NOT EXISTS sell_orders (
	chain_id            BIGINT NOT NULL,
	contract            TEXT NOT NULL,
	order_id            NUMERIC NOT NULL,
	seller              TEXT NOT NULL,
	amount_total        NUMERIC NOT NULL,
	amount_remaining    NUMERIC NOT NULL,
	price_per_token_wei NUMERIC NOT NULL,
	active              BOOLEAN NOT NULL,
	plot_id             NUMERIC,
	created_block       BIGINT,
	snapshot_block      BIGINT NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, contract, order_id)
);

CREATE TABLE IF NOT EXISTS indexer_state (
	name                 TEXT PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for the read model.
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

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// UpsertEventRows inserts or refreshes event rows keyed by row id.
func (s *Store) UpsertEventRows(ctx context.Context, contract string, rows []model.EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		meta, err := json.Marshal(metaOrEmpty(row.Meta))
		if err != nil {
			return fmt.Errorf("marshal meta %s: %w", row.ID, err)
		}
		batch.Queue(`
			INSERT INTO event_rows (
				id, chain_id, contract, event_type, block_number, log_index, tx_hash,
				block_ts, from_party, to_party, amount, price, meta, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
			ON CONFLICT (id)
			DO UPDATE SET
				block_ts = COALESCE(EXCLUDED.block_ts, event_rows.block_ts),
				amount = EXCLUDED.amount,
				price = EXCLUDED.price,
				meta = event_rows.meta || EXCLUDED.meta,
				updated_at = now()
		`,
			row.ID,
			int64(row.ChainID),
			contract,
			string(row.Type),
			int64(row.BlockNumber),
			int64(row.LogIndex),
			row.TxHash,
			nullableInt(row.Timestamp),
			row.From,
			row.To,
			row.Amount,
			row.Price,
			meta,
		)
	}
	return s.sendBatch(ctx, batch, len(rows))
}

// UpsertSellOrders stores the asks of a market snapshot.
func (s *Store) UpsertSellOrders(ctx context.Context, contract string, snapshot model.MarketSnapshot) error {
	if len(snapshot.Asks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, order := range snapshot.Asks {
		order := order
		var plotID *string
		if order.PlotID != "" {
			plotID = &order.PlotID
		}
		var createdBlock *int64
		if order.CreatedBlock != 0 {
			v := int64(order.CreatedBlock)
			createdBlock = &v
		}
		batch.Queue(`
			INSERT INTO sell_orders (
				chain_id, contract, order_id, seller, amount_total, amount_remaining,
				price_per_token_wei, active, plot_id, created_block, snapshot_block, updated_at
			) VALUES ($1,$2,$3::numeric,$4,$5::numeric,$6::numeric,$7::numeric,$8,$9::numeric,$10,$11,now())
			ON CONFLICT (chain_id, contract, order_id)
			DO UPDATE SET
				amount_remaining = EXCLUDED.amount_remaining,
				active = EXCLUDED.active,
				plot_id = COALESCE(EXCLUDED.plot_id, sell_orders.plot_id),
				created_block = COALESCE(sell_orders.created_block, EXCLUDED.created_block),
				snapshot_block = GREATEST(sell_orders.snapshot_block, EXCLUDED.snapshot_block),
				updated_at = now()
		`,
			int64(snapshot.ChainID),
			contract,
			order.ID,
			order.Seller,
			order.AmountTotal,
			order.AmountRemaining,
			order.PricePerTokenWei,
			order.Active,
			plotID,
			createdBlock,
			int64(snapshot.BlockNumber),
		)
	}
	return s.sendBatch(ctx, batch, len(snapshot.Asks))
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last processed block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}

// StateName keys sync state by chain and contract.
func StateName(chainID uint64, contract string) string {
	return fmt.Sprintf("history:%d:%s", chainID, contract)
}

func metaOrEmpty(meta map[string]string) map[string]string {
	if meta == nil {
		return map[string]string{}
	}
	return meta
}

func nullableInt(v *uint64) *int64 {
	if v == nil {
		return nil
	}
	out := int64(*v)
	return &out
}
