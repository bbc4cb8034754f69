// Package storage выбирает реализацию репозиториев по имени драйвера.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/flowgraph/internal/repo"
	"github.com/shaiso/flowgraph/internal/repo/postgres"
	"github.com/shaiso/flowgraph/internal/repo/sqlite"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrUnknownDriver — неизвестное имя драйвера.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Store — набор репозиториев одного хранилища.
type Store struct {
	Flows       repo.FlowRepository
	Simulations repo.SimulationRepository

	closeFn func()
}

// Close закрывает соединения.
func (s *Store) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// Open открывает хранилище и создаёт схему.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverPostgres, "pgx", "postgresql":
		pool, err := postgres.NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{
			Flows:       postgres.NewFlowRepo(pool),
			Simulations: postgres.NewSimulationRepo(pool),
			closeFn:     pool.Close,
		}, nil

	case DriverSQLite, "sqlite3":
		db, err := sqlite.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &Store{
			Flows:       sqlite.NewFlowRepo(db),
			Simulations: sqlite.NewSimulationRepo(db),
			closeFn:     func() { db.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
