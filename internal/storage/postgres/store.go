package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cpamm/internal/model"
)

// Store provides Postgres persistence for engine state and replay results.
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

// Amounts are stored as NUMERIC(78,0), wide enough for any uint256.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS amm_pools (
		state_name TEXT NOT NULL,
		pair_key TEXT NOT NULL,
		asset0 TEXT NOT NULL,
		asset1 TEXT NOT NULL,
		reserve0 NUMERIC(78,0) NOT NULL,
		reserve1 NUMERIC(78,0) NOT NULL,
		total_shares NUMERIC(78,0) NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (state_name, pair_key)
	)`,
	`CREATE TABLE IF NOT EXISTS amm_balances (
		state_name TEXT NOT NULL,
		asset TEXT NOT NULL,
		account TEXT NOT NULL,
		balance NUMERIC(78,0) NOT NULL,
		allowance NUMERIC(78,0),
		PRIMARY KEY (state_name, asset, account)
	)`,
	`CREATE TABLE IF NOT EXISTS amm_shares (
		state_name TEXT NOT NULL,
		pair_key TEXT NOT NULL,
		holder TEXT NOT NULL,
		amount NUMERIC(78,0) NOT NULL,
		PRIMARY KEY (state_name, pair_key, holder)
	)`,
	`CREATE TABLE IF NOT EXISTS amm_results (
		seq BIGINT PRIMARY KEY,
		op TEXT NOT NULL,
		pair_key TEXT,
		status TEXT NOT NULL,
		codespace TEXT,
		code INTEGER,
		error TEXT,
		result JSONB NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS amm_state (
		name TEXT PRIMARY KEY,
		last_seq BIGINT NOT NULL,
		custody TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// PutResults inserts or updates operation results.
func (s *Store) PutResults(ctx context.Context, results []model.ResultRecord) error {
	if len(results) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range results {
		appliedAt, err := time.Parse(time.RFC3339Nano, r.AppliedAt)
		if err != nil {
			return fmt.Errorf("result %d applied_at: %w", r.Seq, err)
		}
		batch.Queue(`
			INSERT INTO amm_results (
				seq, op, pair_key, status, codespace, code, error, result, applied_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (seq)
			DO UPDATE SET
				op = EXCLUDED.op,
				pair_key = EXCLUDED.pair_key,
				status = EXCLUDED.status,
				codespace = EXCLUDED.codespace,
				code = EXCLUDED.code,
				error = EXCLUDED.error,
				result = EXCLUDED.result,
				applied_at = EXCLUDED.applied_at
		`,
			int64(r.Seq),
			r.Op,
			nullable(r.PairKey),
			r.Status,
			nullable(r.Codespace),
			int32(r.Code),
			nullable(r.Error),
			r,
			appliedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range results {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot reads the state saved under name.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (model.Snapshot, bool, error) {
	if name == "" {
		return model.Snapshot{}, false, fmt.Errorf("state name required")
	}

	var snap model.Snapshot
	var lastSeq int64
	var updatedAt time.Time
	row := s.pool.QueryRow(ctx, `SELECT last_seq, custody, updated_at FROM amm_state WHERE name=$1`, name)
	if err := row.Scan(&lastSeq, &snap.Custody, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, err
	}
	snap.LastSeq = uint64(lastSeq)
	snap.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)

	rows, err := s.pool.Query(ctx, `
		SELECT pair_key, asset0, asset1, reserve0::text, reserve1::text, total_shares::text
		FROM amm_pools WHERE state_name=$1 ORDER BY pair_key`, name)
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("query pools: %w", err)
	}
	snap.Pools, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PoolRecord, error) {
		var p model.PoolRecord
		err := row.Scan(&p.Key, &p.Asset0, &p.Asset1, &p.Reserve0, &p.Reserve1, &p.TotalShares)
		return p, err
	})
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("scan pools: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT asset, account, balance::text, COALESCE(allowance::text, '')
		FROM amm_balances WHERE state_name=$1 ORDER BY asset, account`, name)
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("query balances: %w", err)
	}
	snap.Balances, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BalanceRecord, error) {
		var b model.BalanceRecord
		err := row.Scan(&b.Asset, &b.Account, &b.Balance, &b.Allowance)
		return b, err
	})
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("scan balances: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT pair_key, holder, amount::text
		FROM amm_shares WHERE state_name=$1 ORDER BY pair_key, holder`, name)
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("query shares: %w", err)
	}
	snap.Shares, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ShareRecord, error) {
		var sh model.ShareRecord
		err := row.Scan(&sh.Class, &sh.Holder, &sh.Amount)
		return sh, err
	})
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("scan shares: %w", err)
	}

	return snap, true, nil
}

// SaveSnapshot replaces the state saved under name in one transaction.
// Pools are upserted; balances and shares are rewritten.
func (s *Store) SaveSnapshot(ctx context.Context, name string, snap model.Snapshot) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range snap.Pools {
			batch.Queue(`
				INSERT INTO amm_pools (state_name, pair_key, asset0, asset1, reserve0, reserve1, total_shares, updated_at)
				VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, now())
				ON CONFLICT (state_name, pair_key)
				DO UPDATE SET
					reserve0 = EXCLUDED.reserve0,
					reserve1 = EXCLUDED.reserve1,
					total_shares = EXCLUDED.total_shares,
					updated_at = now()
			`, name, p.Key, p.Asset0, p.Asset1, p.Reserve0, p.Reserve1, p.TotalShares)
		}
		batch.Queue(`DELETE FROM amm_balances WHERE state_name=$1`, name)
		for _, b := range snap.Balances {
			batch.Queue(`
				INSERT INTO amm_balances (state_name, asset, account, balance, allowance)
				VALUES ($1, $2, $3, $4::numeric, $5::numeric)
			`, name, b.Asset, b.Account, b.Balance, nullable(b.Allowance))
		}
		batch.Queue(`DELETE FROM amm_shares WHERE state_name=$1`, name)
		for _, sh := range snap.Shares {
			batch.Queue(`
				INSERT INTO amm_shares (state_name, pair_key, holder, amount)
				VALUES ($1, $2, $3, $4::numeric)
			`, name, sh.Class, sh.Holder, sh.Amount)
		}
		batch.Queue(`
			INSERT INTO amm_state (name, last_seq, custody, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (name) DO UPDATE
			SET last_seq = EXCLUDED.last_seq, custody = EXCLUDED.custody, updated_at = now()
		`, name, int64(snap.LastSeq), snap.Custody)

		return tx.SendBatch(ctx, batch).Close()
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
