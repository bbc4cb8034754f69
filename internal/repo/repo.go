// Package repo описывает хранилища flows и истории симуляций.
//
// Реализации:
//   - repo/postgres — PostgreSQL через pgx, граф хранится в JSONB
//   - repo/sqlite — встроенная SQLite через sqlx, для локального запуска и тестов
//
// Обе реализации возвращают ErrNotFound и ErrAlreadyExists.
package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/shaiso/flowgraph/internal/domain"
)

// DefaultHistoryLimit — сколько записей истории возвращается по умолчанию.
const DefaultHistoryLimit = 50

// FlowRepository хранит flows.
type FlowRepository interface {
	Create(ctx context.Context, flow *domain.Flow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error)
	List(ctx context.Context) ([]domain.Flow, error)
	Update(ctx context.Context, flow *domain.Flow) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SimulationRepository хранит итоги завершённых симуляций.
type SimulationRepository interface {
	Create(ctx context.Context, rec *domain.SimulationRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SimulationRecord, error)
	// GetLatestBySession возвращает последний прогон сессии.
	GetLatestBySession(ctx context.Context, sessionID uuid.UUID) (*domain.SimulationRecord, error)
	ListByFlow(ctx context.Context, flowID uuid.UUID, limit int) ([]domain.SimulationRecord, error)
}

// NormalizeLimit возвращает limit или DefaultHistoryLimit для limit <= 0.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
