package domain

// SimulationState — состояние сессии симуляции.
//
// Жизненный цикл:
//
//	IDLE → RUNNING ⇄ PAUSED
//	         ↘ COMPLETED
//	IDLE → ERROR (граф не прошёл инициализацию)
//
// reset из любого состояния возвращает в IDLE.
type SimulationState string

const (
	// SimulationIdle — сессия создана или сброшена.
	SimulationIdle SimulationState = "idle"

	// SimulationRunning — цикл шагов активен.
	SimulationRunning SimulationState = "running"

	// SimulationPaused — цикл остановлен, позиция сохранена.
	SimulationPaused SimulationState = "paused"

	// SimulationCompleted — все узлы очереди выполнены.
	SimulationCompleted SimulationState = "completed"

	// SimulationError — инициализация не удалась.
	SimulationError SimulationState = "error"
)

// IsTerminal возвращает true, если без reset сессия дальше не продвинется.
func (s SimulationState) IsTerminal() bool {
	switch s {
	case SimulationCompleted, SimulationError:
		return true
	default:
		return false
	}
}

// LogLevel — уровень записи журнала симуляции.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogError   LogLevel = "error"
)
