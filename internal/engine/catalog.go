package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"fieldbook/internal/domain"
)

// DistrictImport is the importable district profile. Budget and priorities
// are stored as JSON documents.
type DistrictImport struct {
	Name       string
	State      string
	Enrollment int
	Budget     map[string]any
	Priorities []string
}

type ProductImport struct {
	Name        string
	Category    string
	Description string
}

// ImportDistrict upserts a district profile from an external source.
func (e Engine) ImportDistrict(ctx context.Context, id string, imp DistrictImport) (domain.District, error) {
	if id == "" {
		return domain.District{}, ValidationError{Msg: "district id is required"}
	}
	if imp.Name == "" {
		return domain.District{}, ValidationError{Msg: "district name is required"}
	}
	if imp.Enrollment < 0 {
		return domain.District{}, ValidationError{Msg: "district enrollment must be >= 0"}
	}
	d := domain.District{
		ID:         id,
		Name:       imp.Name,
		State:      imp.State,
		Enrollment: imp.Enrollment,
		CreatedAt:  e.nowRFC3339(),
	}
	if imp.Budget != nil {
		b, err := json.Marshal(imp.Budget)
		if err != nil {
			return domain.District{}, fmt.Errorf("encode budget: %w", err)
		}
		d.BudgetJSON = string(b)
	}
	if imp.Priorities != nil {
		b, err := json.Marshal(imp.Priorities)
		if err != nil {
			return domain.District{}, fmt.Errorf("encode priorities: %w", err)
		}
		d.PrioritiesJSON = string(b)
	}
	if err := e.Repo.InsertDistrict(ctx, d); err != nil {
		return domain.District{}, err
	}
	return e.Repo.GetDistrict(ctx, id)
}

// ImportProduct upserts a catalog product.
func (e Engine) ImportProduct(ctx context.Context, id string, imp ProductImport) (domain.Product, error) {
	if id == "" {
		return domain.Product{}, ValidationError{Msg: "product id is required"}
	}
	if imp.Name == "" {
		return domain.Product{}, ValidationError{Msg: "product name is required"}
	}
	p := domain.Product{
		ID:          id,
		Name:        imp.Name,
		Category:    imp.Category,
		Description: imp.Description,
		CreatedAt:   e.nowRFC3339(),
	}
	if err := e.Repo.InsertProduct(ctx, p); err != nil {
		return domain.Product{}, err
	}
	return e.Repo.GetProduct(ctx, id)
}
