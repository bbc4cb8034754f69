// Package postgres — хранилище flows и истории симуляций в PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/repo"
)

// FlowRepo — репозиторий flows.
type FlowRepo struct {
	pool *pgxpool.Pool
}

var _ repo.FlowRepository = (*FlowRepo)(nil)

// NewFlowRepo создаёт новый FlowRepo.
func NewFlowRepo(pool *pgxpool.Pool) *FlowRepo {
	return &FlowRepo{pool: pool}
}

const flowColumns = `id, name, description, graph, viewport, created_at, updated_at`

// Create создаёт новый flow.
func (r *FlowRepo) Create(ctx context.Context, flow *domain.Flow) error {
	graphJSON, viewportJSON, err := marshalFlow(flow)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO flows (` + flowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		flow.ID,
		flow.Name,
		flow.Description,
		graphJSON,
		viewportJSON,
		flow.CreatedAt,
		flow.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repo.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert flow: %w", err)
	}
	return nil
}

// GetByID возвращает flow по ID.
func (r *FlowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM flows WHERE id = $1`

	flow, err := scanFlow(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flow by id: %w", err)
	}
	return flow, nil
}

// List возвращает все flows, новые первыми.
func (r *FlowRepo) List(ctx context.Context) ([]domain.Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM flows ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	flows := []domain.Flow{}
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		flows = append(flows, *flow)
	}
	return flows, rows.Err()
}

// Update обновляет имя, описание, граф и viewport.
func (r *FlowRepo) Update(ctx context.Context, flow *domain.Flow) error {
	graphJSON, viewportJSON, err := marshalFlow(flow)
	if err != nil {
		return err
	}

	query := `
		UPDATE flows
		SET name = $2, description = $3, graph = $4, viewport = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		flow.ID,
		flow.Name,
		flow.Description,
		graphJSON,
		viewportJSON,
		flow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// Delete удаляет flow (каскадно удалит историю симуляций).
func (r *FlowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func marshalFlow(flow *domain.Flow) (graphJSON, viewportJSON []byte, err error) {
	graphJSON, err = json.Marshal(flow.Graph)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal graph: %w", err)
	}
	if flow.Viewport != nil {
		viewportJSON, err = json.Marshal(flow.Viewport)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal viewport: %w", err)
		}
	}
	return graphJSON, viewportJSON, nil
}

// scanFlow сканирует строку в Flow. Подходит и для pgx.Row, и для pgx.Rows.
func scanFlow(row pgx.Row) (*domain.Flow, error) {
	var flow domain.Flow
	var graphJSON, viewportJSON []byte

	if err := row.Scan(
		&flow.ID,
		&flow.Name,
		&flow.Description,
		&graphJSON,
		&viewportJSON,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(graphJSON, &flow.Graph); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	if viewportJSON != nil {
		flow.Viewport = &domain.Viewport{}
		if err := json.Unmarshal(viewportJSON, flow.Viewport); err != nil {
			return nil, fmt.Errorf("unmarshal viewport: %w", err)
		}
	}
	return &flow, nil
}
