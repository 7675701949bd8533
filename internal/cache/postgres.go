package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the slice of *pgxpool.Pool the durable tier uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresTier is the slow durable tier. Rows carry an expiry_time; reads ignore
// expired rows and Sweep deletes them.
//
//	CREATE TABLE vibe_cache (
//	    cache_key   text PRIMARY KEY,
//	    cache_value bytea NOT NULL,
//	    expiry_time timestamptz NOT NULL
//	);
type PostgresTier struct {
	db DBTX

	getSQL    string
	setSQL    string
	deleteSQL string
	prefixSQL string
	sweepSQL  string
}

// NewPostgresTier binds the tier to table. The name is quoted, so it may be schema-qualified ("cache.vibe").
func NewPostgresTier(db DBTX, table string) *PostgresTier {
	t := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	return &PostgresTier{
		db:     db,
		getSQL: fmt.Sprintf(`SELECT cache_value FROM %s WHERE cache_key = $1 AND expiry_time > now()`, t),
		setSQL: fmt.Sprintf(`INSERT INTO %s (cache_key, cache_value, expiry_time)
VALUES ($1, $2, now() + make_interval(secs => $3))
ON CONFLICT (cache_key) DO UPDATE SET cache_value = EXCLUDED.cache_value, expiry_time = EXCLUDED.expiry_time`, t),
		deleteSQL: fmt.Sprintf(`DELETE FROM %s WHERE cache_key = $1`, t),
		prefixSQL: fmt.Sprintf(`DELETE FROM %s WHERE cache_key LIKE $1 ESCAPE '\'`, t),
		sweepSQL:  fmt.Sprintf(`DELETE FROM %s WHERE expiry_time <= now()`, t),
	}
}

func (p *PostgresTier) Name() string { return "postgres" }

func (p *PostgresTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := p.db.QueryRow(ctx, p.getSQL, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("durable cache get %q: %w", key, err)
	}
	return v, true, nil
}

func (p *PostgresTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if _, err := p.db.Exec(ctx, p.setSQL, key, value, ttl.Seconds()); err != nil {
		return fmt.Errorf("durable cache set %q: %w", key, err)
	}
	return nil
}

func (p *PostgresTier) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, p.deleteSQL, key); err != nil {
		return fmt.Errorf("durable cache delete %q: %w", key, err)
	}
	return nil
}

func (p *PostgresTier) DeletePrefix(ctx context.Context, prefix string) error {
	if _, err := p.db.Exec(ctx, p.prefixSQL, likeEscape(prefix)+"%"); err != nil {
		return fmt.Errorf("durable cache delete prefix %q: %w", prefix, err)
	}
	return nil
}

// Sweep deletes expired rows and reports how many were removed.
func (p *PostgresTier) Sweep(ctx context.Context) (int64, error) {
	tag, err := p.db.Exec(ctx, p.sweepSQL)
	if err != nil {
		return 0, fmt.Errorf("durable cache sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likeEscape(s string) string {
	return likeReplacer.Replace(s)
}
