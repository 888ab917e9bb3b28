package repo

import (
	"context"
	"database/sql"
	"errors"

	"fieldbook/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// Districts and products are the catalog the orchestrator validates against.
// They are owned by the surrounding CRM; this layer only reads and seeds them.

func (r Repo) InsertDistrict(ctx context.Context, d domain.District) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO districts(id,name,state,enrollment,budget_json,priorities_json,created_at) VALUES (?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, state=excluded.state, enrollment=excluded.enrollment, budget_json=excluded.budget_json, priorities_json=excluded.priorities_json`,
		d.ID, d.Name, nullable(d.State), d.Enrollment, nullable(d.BudgetJSON), nullable(d.PrioritiesJSON), d.CreatedAt)
	return err
}

func (r Repo) GetDistrict(ctx context.Context, id string) (domain.District, error) {
	var d domain.District
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(state,''),enrollment,COALESCE(budget_json,''),COALESCE(priorities_json,''),created_at FROM districts WHERE id=?`, id).
		Scan(&d.ID, &d.Name, &d.State, &d.Enrollment, &d.BudgetJSON, &d.PrioritiesJSON, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) ListDistricts(ctx context.Context) ([]domain.District, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(state,''),enrollment,COALESCE(budget_json,''),COALESCE(priorities_json,''),created_at FROM districts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.District
	for rows.Next() {
		var d domain.District
		if err := rows.Scan(&d.ID, &d.Name, &d.State, &d.Enrollment, &d.BudgetJSON, &d.PrioritiesJSON, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) InsertProduct(ctx context.Context, p domain.Product) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO products(id,name,category,description,created_at) VALUES (?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, category=excluded.category, description=excluded.description`,
		p.ID, p.Name, nullable(p.Category), nullable(p.Description), p.CreatedAt)
	return err
}

func (r Repo) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(category,''),COALESCE(description,''),created_at FROM products WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(category,''),COALESCE(description,''),created_at FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) ListEvents(ctx context.Context, playbookID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,ts,type,COALESCE(playbook_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	args := []any{}
	if playbookID != "" {
		query += ` WHERE playbook_id=?`
		args = append(args, playbookID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.PlaybookID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
