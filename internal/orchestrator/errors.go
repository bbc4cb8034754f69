package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrSessionNotFound — сессии с таким ID нет.
	ErrSessionNotFound = errors.New("simulation session not found")

	// ErrInvalidState — операция недопустима в текущем состоянии сессии.
	ErrInvalidState = errors.New("operation not allowed in current simulation state")

	// ErrSessionClosed — сессия закрыта.
	ErrSessionClosed = errors.New("simulation session closed")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
