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

// SimulationRepo — репозиторий истории симуляций.
type SimulationRepo struct {
	pool *pgxpool.Pool
}

var _ repo.SimulationRepository = (*SimulationRepo)(nil)

// NewSimulationRepo создаёт новый SimulationRepo.
func NewSimulationRepo(pool *pgxpool.Pool) *SimulationRepo {
	return &SimulationRepo{pool: pool}
}

const simulationColumns = `id, session_id, flow_id, state, steps, failed_steps, error, started_at, finished_at`

// Create сохраняет итог симуляции.
func (r *SimulationRepo) Create(ctx context.Context, rec *domain.SimulationRecord) error {
	steps := rec.Steps
	if steps == nil {
		steps = []domain.ExecutionStep{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	query := `
		INSERT INTO simulations (` + simulationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		rec.ID,
		rec.SessionID,
		nullUUID(rec.FlowID),
		rec.State,
		stepsJSON,
		rec.FailedSteps,
		nullString(rec.Error),
		rec.StartedAt,
		rec.FinishedAt,
	)
	if isUniqueViolation(err) {
		return repo.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert simulation: %w", err)
	}
	return nil
}

// GetByID возвращает запись по ID.
func (r *SimulationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SimulationRecord, error) {
	query := `SELECT ` + simulationColumns + ` FROM simulations WHERE id = $1`

	rec, err := scanSimulation(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get simulation by id: %w", err)
	}
	return rec, nil
}

// GetLatestBySession возвращает последний прогон сессии.
func (r *SimulationRepo) GetLatestBySession(ctx context.Context, sessionID uuid.UUID) (*domain.SimulationRecord, error) {
	query := `
		SELECT ` + simulationColumns + `
		FROM simulations
		WHERE session_id = $1
		ORDER BY finished_at DESC
		LIMIT 1
	`
	rec, err := scanSimulation(r.pool.QueryRow(ctx, query, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get simulation by session: %w", err)
	}
	return rec, nil
}

// ListByFlow возвращает историю flow, последние прогоны первыми.
func (r *SimulationRepo) ListByFlow(ctx context.Context, flowID uuid.UUID, limit int) ([]domain.SimulationRecord, error) {
	query := `
		SELECT ` + simulationColumns + `
		FROM simulations
		WHERE flow_id = $1
		ORDER BY finished_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, flowID, repo.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list simulations: %w", err)
	}
	defer rows.Close()

	records := []domain.SimulationRecord{}
	for rows.Next() {
		rec, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan simulation: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanSimulation(row pgx.Row) (*domain.SimulationRecord, error) {
	var rec domain.SimulationRecord
	var flowID *uuid.UUID
	var stepsJSON []byte
	var simError *string

	if err := row.Scan(
		&rec.ID,
		&rec.SessionID,
		&flowID,
		&rec.State,
		&stepsJSON,
		&rec.FailedSteps,
		&simError,
		&rec.StartedAt,
		&rec.FinishedAt,
	); err != nil {
		return nil, err
	}

	if flowID != nil {
		rec.FlowID = *flowID
	}
	if simError != nil {
		rec.Error = *simError
	}
	if err := json.Unmarshal(stepsJSON, &rec.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return &rec, nil
}
