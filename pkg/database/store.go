package database

import (
	"context"
	"database/sql"
)

// Tx groups the repositories that take part in one unit of work.
type Tx interface {
	Items() ItemRepository
	Bookings() BookingRepository
	Orders() OrderRepository
	Carts() CartRepository
}

// Store is the persistence layer. Repositories obtained from the Store itself
// run every call on its own; repositories obtained inside WithTx share one
// transaction that is committed only if the callback succeeds.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// Postgres is a Store backed by PostgreSQL.
type Postgres struct {
	db *sql.DB
	repos
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, repos: repos{db}}
}

type repos struct {
	q querier
}

func (r repos) Items() ItemRepository       { return &ItemDatabase{r.q} }
func (r repos) Bookings() BookingRepository { return &BookingDatabase{r.q} }
func (r repos) Orders() OrderRepository     { return &OrderDatabase{r.q} }
func (r repos) Carts() CartRepository       { return &CartDatabase{r.q} }
