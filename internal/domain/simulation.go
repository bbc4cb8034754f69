package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStep — запись об одном выполненном узле.
//
// Создаётся движком на каждый вызов ExecuteNext и после этого не меняется.
// Error заполнен, если обработчик узла завершился ошибкой; тогда Output пуст.
type ExecutionStep struct {
	// Index — порядковый номер шага в текущем прогоне (с нуля).
	Index int `json:"index"`

	// NodeID — выполненный узел.
	NodeID string `json:"nodeId"`

	// NodeType — тип узла на момент выполнения.
	NodeType NodeType `json:"nodeType"`

	// Timestamp — время начала выполнения.
	Timestamp time.Time `json:"timestamp"`

	// Duration — сколько занял обработчик.
	Duration time.Duration `json:"duration"`

	Input  any    `json:"input,omitempty"`
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Failed возвращает true, если узел завершился ошибкой.
func (s ExecutionStep) Failed() bool {
	return s.Error != ""
}

// Progress — прогресс прогона.
type Progress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// LogEntry — строка журнала симуляции, которую показывает редактор.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	NodeID    string    `json:"node_id,omitempty"`
}

// SimulationRecord — итог завершённой симуляции для истории.
//
// Только аудит: по записи нельзя продолжить прогон.
type SimulationRecord struct {
	// ID — уникален для каждого прогона.
	ID uuid.UUID `json:"id"`

	// SessionID — сессия, в которой шёл прогон. Одна сессия может дать
	// несколько записей: повторный Start или Reset начинает новый прогон.
	SessionID uuid.UUID `json:"session_id"`

	// FlowID — flow, по которому шла симуляция. Nil для графов без сохранения.
	FlowID uuid.UUID `json:"flow_id"`

	// State — финальное состояние (completed или error).
	State SimulationState `json:"state"`

	// Steps — все шаги прогона.
	Steps []ExecutionStep `json:"steps"`

	// FailedSteps — количество шагов с ошибкой.
	FailedSteps int `json:"failed_steps"`

	// Error — причина, если инициализация не удалась.
	Error string `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// CountFailed пересчитывает FailedSteps по Steps.
func (r *SimulationRecord) CountFailed() {
	n := 0
	for _, s := range r.Steps {
		if s.Failed() {
			n++
		}
	}
	r.FailedSteps = n
}
