// Package gen produces section content. The LLM backend is opaque to the rest
// of the system: the engine only sees the Generator interface and routes each
// section type either here or to the deterministic composer.
package gen

import (
	"context"

	"fieldbook/internal/domain"
)

// Request carries everything a backend needs to produce one section.
type Request struct {
	SectionType string
	Prompt      string
	District    domain.District
	Products    []domain.Product
}

// Generator produces the text for a single section. Implementations may be
// slow and may fail; the caller owns retries and state transitions.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
