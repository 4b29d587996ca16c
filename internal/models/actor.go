package models

import "fmt"

// Actor kinds. The authenticated principal is resolved by the caller; an
// Actor here only attributes initiated_by/created_by fields and never
// authorizes a balance mutation.
const (
	ActorRoot     = "ROOT"
	ActorUser     = "USER"
	ActorEmployee = "EMPLOYEE"
)

// Actor is a tagged {kind, id} union replacing nullable per-kind foreign
// keys.
type Actor struct {
	Kind string `json:"kind"`
	ID   int    `json:"id"`
}

func (a Actor) String() string {
	return fmt.Sprintf("%s:%d", a.Kind, a.ID)
}

func (a Actor) Validate() error {
	switch a.Kind {
	case ActorRoot, ActorUser, ActorEmployee:
	default:
		return NewValidationError("unknown actor kind " + a.Kind)
	}
	if a.ID < 0 {
		return NewValidationError("actor id must not be negative")
	}
	return nil
}
