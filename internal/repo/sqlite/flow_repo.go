package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/repo"
)

// flowRow — строка таблицы flows.
type flowRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Graph       string         `db:"graph"`
	Viewport    sql.NullString `db:"viewport"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func newFlowRow(flow *domain.Flow) (*flowRow, error) {
	graphJSON, err := json.Marshal(flow.Graph)
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}

	row := &flowRow{
		ID:          flow.ID.String(),
		Name:        flow.Name,
		Description: flow.Description,
		Graph:       string(graphJSON),
		CreatedAt:   flow.CreatedAt.UTC(),
		UpdatedAt:   flow.UpdatedAt.UTC(),
	}
	if flow.Viewport != nil {
		vp, err := json.Marshal(flow.Viewport)
		if err != nil {
			return nil, fmt.Errorf("marshal viewport: %w", err)
		}
		row.Viewport = sql.NullString{String: string(vp), Valid: true}
	}
	return row, nil
}

func (row *flowRow) toDomain() (*domain.Flow, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("parse flow id: %w", err)
	}

	flow := &domain.Flow{
		ID:          id,
		Name:        row.Name,
		Description: row.Description,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.Graph), &flow.Graph); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	if row.Viewport.Valid {
		flow.Viewport = &domain.Viewport{}
		if err := json.Unmarshal([]byte(row.Viewport.String), flow.Viewport); err != nil {
			return nil, fmt.Errorf("unmarshal viewport: %w", err)
		}
	}
	return flow, nil
}

// FlowRepo — репозиторий flows в SQLite.
type FlowRepo struct {
	db *sqlx.DB
}

var _ repo.FlowRepository = (*FlowRepo)(nil)

// NewFlowRepo создаёт FlowRepo.
func NewFlowRepo(db *sqlx.DB) *FlowRepo {
	return &FlowRepo{db: db}
}

// Create создаёт flow.
func (r *FlowRepo) Create(ctx context.Context, flow *domain.Flow) error {
	row, err := newFlowRow(flow)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO flows (id, name, description, graph, viewport, created_at, updated_at)
	VALUES (:id, :name, :description, :graph, :viewport, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		if isConstraintViolation(err) {
			return repo.ErrAlreadyExists
		}
		return fmt.Errorf("insert flow: %w", err)
	}
	return nil
}

// GetByID возвращает flow по ID.
func (r *FlowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error) {
	var row flowRow
	query := `SELECT id, name, description, graph, viewport, created_at, updated_at FROM flows WHERE id = ?`

	err := r.db.GetContext(ctx, &row, query, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flow by id: %w", err)
	}
	return row.toDomain()
}

// List возвращает flows, новые первыми.
func (r *FlowRepo) List(ctx context.Context) ([]domain.Flow, error) {
	var rows []flowRow
	query := `SELECT id, name, description, graph, viewport, created_at, updated_at FROM flows ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}

	flows := make([]domain.Flow, 0, len(rows))
	for i := range rows {
		flow, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		flows = append(flows, *flow)
	}
	return flows, nil
}

// Update обновляет flow.
func (r *FlowRepo) Update(ctx context.Context, flow *domain.Flow) error {
	row, err := newFlowRow(flow)
	if err != nil {
		return err
	}

	query := `
	UPDATE flows
	SET name = :name, description = :description, graph = :graph, viewport = :viewport, updated_at = :updated_at
	WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}
	return requireAffected(result)
}

// Delete удаляет flow вместе с историей.
func (r *FlowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
