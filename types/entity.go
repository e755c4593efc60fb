package types

import "time"

// Lifecycle marks an entity as live or soft-deleted. Queries are scoped
// to active entities unless a caller explicitly asks for retired ones.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "active"
	LifecycleRetired Lifecycle = "retired"
)

// Entity is the base type for all Canteen entities with timestamps and
// a soft-delete lifecycle state. Embed this in domain types.
type Entity struct {
	State     Lifecycle  `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
}

// NewEntity creates a new active Entity with current timestamps.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{
		State:     LifecycleActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewEntityAt creates a new active Entity with the given timestamps.
// Used by callers that run on an injected clock.
func NewEntityAt(now time.Time) Entity {
	now = now.UTC()
	return Entity{
		State:     LifecycleActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// Retire soft-deletes the entity.
func (e *Entity) Retire(at time.Time) {
	at = at.UTC()
	e.State = LifecycleRetired
	e.RetiredAt = &at
	e.UpdatedAt = at
}

// IsActive reports whether the entity has not been soft-deleted.
func (e Entity) IsActive() bool {
	return e.State == LifecycleActive || e.State == ""
}

// Age returns how long ago the entity was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}
