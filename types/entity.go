// Package types provides amounts and shared record types used across the
// presale engine.
package types

import "time"

// Entity carries creation and modification timestamps for persisted
// records.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity stamps both timestamps with at.
func NewEntity(at time.Time) Entity {
	at = at.UTC()
	return Entity{CreatedAt: at, UpdatedAt: at}
}

// Touch moves UpdatedAt to at.
func (e *Entity) Touch(at time.Time) {
	e.UpdatedAt = at.UTC()
}
