package engine

import (
	"fmt"
	"time"
)

// NotFoundError identifies which entity kind was missing so the API layer can
// pick the matching error code.
type NotFoundError struct {
	Kind string // district, product, playbook, section, attachment, note
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ValidationError marks caller input the caller must correct.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// LimitError rejects a generation request under the per-caller rate policy.
type LimitError struct {
	Max    int
	Window time.Duration
}

func (e LimitError) Error() string {
	return fmt.Sprintf("generation limit reached: %d playbooks per %s", e.Max, e.Window)
}

// NotRegenerableError is permanent for the section type.
type NotRegenerableError struct {
	SectionType string
}

func (e NotRegenerableError) Error() string {
	return fmt.Sprintf("section type %s is derived from source data and cannot be regenerated", e.SectionType)
}

// ConflictError rejects a write that raced an in-flight generation.
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string { return e.Msg }
