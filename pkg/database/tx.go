package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Every check-then-write locks the rows it reads with FOR UPDATE, so read
// committed is enough and avoids serialization failures on unrelated rows.
var txOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// WithTx runs fn with repositories bound to one transaction. The transaction
// is committed if fn returns nil and rolled back otherwise; panics are
// re-raised after rollback.
func (p *Postgres) WithTx(ctx context.Context, fn func(Tx) error) (err error) {
	tx, err := p.db.BeginTx(ctx, txOptions)
	if err != nil {
		return fmt.Errorf("can't begin tx: %w", mapError(err))
	}

	defer func() {
		r := recover()
		switch {
		case r != nil:
			_ = tx.Rollback()
			panic(r)

		case err != nil:
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("can't rollback tx: %w. original error: %w", rbErr, err)
			}

		default:
			if err = tx.Commit(); err != nil {
				err = fmt.Errorf("can't commit tx: %w", mapError(err))
			}
		}
	}()

	return fn(repos{tx})
}
