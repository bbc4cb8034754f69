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
	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/repo"
)

type simulationRow struct {
	ID          string         `db:"id"`
	SessionID   string         `db:"session_id"`
	FlowID      sql.NullString `db:"flow_id"`
	State       string         `db:"state"`
	Steps       string         `db:"steps"`
	FailedSteps int            `db:"failed_steps"`
	Error       sql.NullString `db:"error"`
	StartedAt   time.Time      `db:"started_at"`
	FinishedAt  time.Time      `db:"finished_at"`
}

func (row *simulationRow) toDomain() (*domain.SimulationRecord, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("parse simulation id: %w", err)
	}
	sessionID, err := uuid.Parse(row.SessionID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}

	rec := &domain.SimulationRecord{
		ID:          id,
		SessionID:   sessionID,
		State:       domain.SimulationState(row.State),
		FailedSteps: row.FailedSteps,
		Error:       row.Error.String,
		StartedAt:   row.StartedAt.UTC(),
		FinishedAt:  row.FinishedAt.UTC(),
	}
	if row.FlowID.Valid {
		if rec.FlowID, err = uuid.Parse(row.FlowID.String); err != nil {
			return nil, fmt.Errorf("parse flow id: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(row.Steps), &rec.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return rec, nil
}

// SimulationRepo — история симуляций в SQLite.
type SimulationRepo struct {
	db *sqlx.DB
}

var _ repo.SimulationRepository = (*SimulationRepo)(nil)

// NewSimulationRepo создаёт SimulationRepo.
func NewSimulationRepo(db *sqlx.DB) *SimulationRepo {
	return &SimulationRepo{db: db}
}

const selectSimulations = `SELECT id, session_id, flow_id, state, steps, failed_steps, error, started_at, finished_at FROM simulations`

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

	row := simulationRow{
		ID:          rec.ID.String(),
		SessionID:   rec.SessionID.String(),
		State:       string(rec.State),
		Steps:       string(stepsJSON),
		FailedSteps: rec.FailedSteps,
		StartedAt:   rec.StartedAt.UTC(),
		FinishedAt:  rec.FinishedAt.UTC(),
	}
	if rec.FlowID != uuid.Nil {
		row.FlowID = sql.NullString{String: rec.FlowID.String(), Valid: true}
	}
	if rec.Error != "" {
		row.Error = sql.NullString{String: rec.Error, Valid: true}
	}

	query := `
	INSERT INTO simulations (id, session_id, flow_id, state, steps, failed_steps, error, started_at, finished_at)
	VALUES (:id, :session_id, :flow_id, :state, :steps, :failed_steps, :error, :started_at, :finished_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		if isConstraintViolation(err) {
			return repo.ErrAlreadyExists
		}
		return fmt.Errorf("insert simulation: %w", err)
	}
	return nil
}

// GetByID возвращает запись по ID.
func (r *SimulationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SimulationRecord, error) {
	var row simulationRow
	err := r.db.GetContext(ctx, &row, selectSimulations+` WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get simulation by id: %w", err)
	}
	return row.toDomain()
}

// GetLatestBySession возвращает последний прогон сессии.
func (r *SimulationRepo) GetLatestBySession(ctx context.Context, sessionID uuid.UUID) (*domain.SimulationRecord, error) {
	var row simulationRow
	query := selectSimulations + ` WHERE session_id = ? ORDER BY finished_at DESC, rowid DESC LIMIT 1`
	err := r.db.GetContext(ctx, &row, query, sessionID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get simulation by session: %w", err)
	}
	return row.toDomain()
}

// ListByFlow возвращает историю flow, последние прогоны первыми.
func (r *SimulationRepo) ListByFlow(ctx context.Context, flowID uuid.UUID, limit int) ([]domain.SimulationRecord, error) {
	var rows []simulationRow
	query := selectSimulations + ` WHERE flow_id = ? ORDER BY finished_at DESC LIMIT ?`

	if err := r.db.SelectContext(ctx, &rows, query, flowID.String(), repo.NormalizeLimit(limit)); err != nil {
		return nil, fmt.Errorf("list simulations: %w", err)
	}

	records := make([]domain.SimulationRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}
