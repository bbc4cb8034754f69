// Package sqlite — встроенное хранилище flows и истории симуляций.
//
// Используется для локального запуска без PostgreSQL и в тестах.
package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDSN — файл БД по умолчанию.
const DefaultDSN = "file:flowgraph.db?_foreign_keys=on&_busy_timeout=5000"

const schema = `
CREATE TABLE IF NOT EXISTS flows (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	graph       TEXT NOT NULL,
	viewport    TEXT,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS simulations (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	flow_id      TEXT REFERENCES flows(id) ON DELETE CASCADE,
	state        TEXT NOT NULL,
	steps        TEXT NOT NULL,
	failed_steps INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_simulations_flow_finished ON simulations(flow_id, finished_at);
CREATE INDEX IF NOT EXISTS idx_simulations_session_finished ON simulations(session_id, finished_at);
`

// Open открывает БД и создаёт таблицы.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite допускает одного писателя
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return db, nil
}
