package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// WithinTx runs fn inside one database transaction. Commit happens only
// when fn returns nil; any error rolls everything back.
func (p *Postgres) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// pgTx implements Tx on an open pgx transaction. Entity methods live in
// user_store.go, room_store.go and wallet_store.go.
type pgTx struct {
	tx pgx.Tx
}
