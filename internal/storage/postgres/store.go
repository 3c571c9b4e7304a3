// Package postgres — реализация хранилищ поверх pgxpool с сырым SQL.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store реализует все интерфейсы storage одним типом
type Store struct {
	pool *pgxpool.Pool
}

// NewStore создает хранилище поверх готового пула соединений
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
