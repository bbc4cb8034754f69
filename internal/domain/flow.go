package domain

import (
	"time"

	"github.com/google/uuid"
)

// Flow — сохранённый граф, созданный в редакторе.
//
// Flow хранится целиком: узлы, связи и положение холста.
// Симуляции запускаются по снимку Graph на момент старта.
type Flow struct {
	// ID — уникальный идентификатор flow.
	ID uuid.UUID `json:"id"`

	// Name — уникальное имя flow (например, "order-pipeline").
	Name string `json:"name"`

	// Description — произвольное описание.
	Description string `json:"description,omitempty"`

	// Graph — узлы и связи flow.
	Graph Graph `json:"graph"`

	// Viewport — положение холста редактора. Ядром не используется.
	Viewport *Viewport `json:"viewport,omitempty"`

	// CreatedAt — время создания flow.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// Viewport — положение и масштаб холста редактора.
type Viewport struct {
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
	Zoom float64 `json:"zoom" yaml:"zoom"`
}
