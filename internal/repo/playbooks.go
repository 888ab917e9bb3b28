package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"fieldbook/internal/domain"
)

func (r Repo) InsertPlaybookTx(ctx context.Context, tx *sql.Tx, p domain.Playbook) error {
	ids, err := json.Marshal(p.ProductIDs)
	if err != nil {
		return fmt.Errorf("marshal product ids: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO playbooks(id,district_id,product_ids_json,created_by,generated_at) VALUES (?,?,?,?,?)`,
		p.ID, p.DistrictID, string(ids), p.CreatedBy, p.GeneratedAt)
	return err
}

func scanPlaybook(scan func(dest ...any) error) (domain.Playbook, error) {
	var p domain.Playbook
	var ids string
	err := scan(&p.ID, &p.DistrictID, &ids, &p.CreatedBy, &p.GeneratedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(ids), &p.ProductIDs); err != nil {
		return p, fmt.Errorf("unmarshal product ids: %w", err)
	}
	return p, nil
}

func (r Repo) GetPlaybook(ctx context.Context, id string) (domain.Playbook, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,district_id,product_ids_json,created_by,generated_at FROM playbooks WHERE id=?`, id)
	return scanPlaybook(row.Scan)
}

func (r Repo) ListPlaybooks(ctx context.Context, districtID string) ([]domain.Playbook, error) {
	query := `SELECT id,district_id,product_ids_json,created_by,generated_at FROM playbooks`
	args := []any{}
	if districtID != "" {
		query += ` WHERE district_id=?`
		args = append(args, districtID)
	}
	query += ` ORDER BY generated_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Playbook
	for rows.Next() {
		p, err := scanPlaybook(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// DeletePlaybook removes the aggregate; sections, attachments and notes go
// with it via foreign key cascade.
func (r Repo) DeletePlaybook(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := execer(tx, r.DB).ExecContext(ctx, `DELETE FROM playbooks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPlaybooksBy counts playbooks a caller generated at or after since,
// for the generation-rate policy. Passing the creation transaction keeps the
// check and the insert it guards in the same snapshot.
func (r Repo) CountPlaybooksBy(ctx context.Context, tx *sql.Tx, createdBy, since string) (int, error) {
	var n int
	err := querier(tx, r.DB).QueryRowContext(ctx, `SELECT COUNT(*) FROM playbooks WHERE created_by=? AND generated_at>=?`, createdBy, since).Scan(&n)
	return n, err
}

const sectionColumns = `id,playbook_id,section_type,position,status,content,content_source,is_edited,last_edited_at,generated_at,error_message,retryable,attempt_id`

func scanSection(scan func(dest ...any) error) (domain.Section, error) {
	var s domain.Section
	var content, source, lastEdited, generated, errMsg, attempt sql.NullString
	err := scan(&s.ID, &s.PlaybookID, &s.Type, &s.Position, &s.Status, &content, &source, &s.IsEdited, &lastEdited, &generated, &errMsg, &s.Retryable, &attempt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.Content = strPtr(content)
	s.Source = strPtr(source)
	s.LastEditedAt = strPtr(lastEdited)
	s.GeneratedAt = strPtr(generated)
	s.ErrorMessage = strPtr(errMsg)
	s.AttemptID = strPtr(attempt)
	return s, nil
}

func (r Repo) InsertSectionTx(ctx context.Context, tx *sql.Tx, s domain.Section) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sections(id,playbook_id,section_type,position,status,retryable,is_edited) VALUES (?,?,?,?,?,?,0)`,
		s.ID, s.PlaybookID, s.Type, s.Position, s.Status, s.Retryable)
	return err
}

func (r Repo) GetSection(ctx context.Context, playbookID, sectionID string) (domain.Section, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+sectionColumns+` FROM sections WHERE id=? AND playbook_id=?`, sectionID, playbookID)
	return scanSection(row.Scan)
}

func (r Repo) ListSections(ctx context.Context, playbookID string) ([]domain.Section, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+sectionColumns+` FROM sections WHERE playbook_id=? ORDER BY position`, playbookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Section
	for rows.Next() {
		s, err := scanSection(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// The section writes below are conditional updates. Each generation attempt
// carries a fresh attempt_id; a completion only lands when the row is still in
// 'generating' under the same attempt. A completion arriving after an edit, a
// newer regenerate, or playbook deletion matches zero rows and is a no-op.

// MarkSectionGenerating transitions a section into 'generating' for the given
// attempt. from restricts the statuses the transition is legal from, which also
// enforces the one-in-flight-task-per-section rule. The claim strips any
// previous output: a generating row carries neither content nor an error.
func (r Repo) MarkSectionGenerating(ctx context.Context, tx *sql.Tx, sectionID, attemptID string, from ...string) (bool, error) {
	query := `UPDATE sections SET status='generating', attempt_id=?, content=NULL, content_source=NULL, generated_at=NULL, error_message=NULL WHERE id=? AND status IN (` + placeholders(len(from)) + `)`
	args := []any{attemptID, sectionID}
	for _, f := range from {
		args = append(args, f)
	}
	res, err := execer(tx, r.DB).ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CompleteSection records a successful generation. An automatic (fan-out)
// completion requires is_edited=0 so a manual edit always wins the race; a
// regenerate completion overrides the edit and clears the flag.
func (r Repo) CompleteSection(ctx context.Context, tx *sql.Tx, sectionID, attemptID, content, source, generatedAt string, regenerate bool) (bool, error) {
	query := `UPDATE sections SET status='complete', content=?, content_source=?, generated_at=?, error_message=NULL, attempt_id=NULL`
	if regenerate {
		query += `, is_edited=0, last_edited_at=NULL`
	}
	query += ` WHERE id=? AND status='generating' AND attempt_id=?`
	if !regenerate {
		query += ` AND is_edited=0`
	}
	res, err := execer(tx, r.DB).ExecContext(ctx, query, content, source, generatedAt, sectionID, attemptID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// FailSection records a failed generation attempt.
func (r Repo) FailSection(ctx context.Context, tx *sql.Tx, sectionID, attemptID, errorMessage string) (bool, error) {
	res, err := execer(tx, r.DB).ExecContext(ctx, `UPDATE sections SET status='error', error_message=?, content=NULL, content_source=NULL, generated_at=NULL, is_edited=0, last_edited_at=NULL, attempt_id=NULL
WHERE id=? AND status='generating' AND attempt_id=?`, errorMessage, sectionID, attemptID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// EditSectionContent applies a manual edit. Edits are refused while a
// generation is in flight; an edit lands the section in 'complete' regardless
// of its previous terminal status and leaves content_source untouched.
func (r Repo) EditSectionContent(ctx context.Context, tx *sql.Tx, sectionID, content, editedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE sections SET status='complete', content=?, is_edited=1, last_edited_at=?, error_message=NULL
WHERE id=? AND status<>'generating'`, content, editedAt, sectionID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execer(tx *sql.Tx, db *sql.DB) sqlExecer {
	if tx != nil {
		return tx
	}
	return db
}

type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func querier(tx *sql.Tx, db *sql.DB) sqlQuerier {
	if tx != nil {
		return tx
	}
	return db
}

func placeholders(n int) string {
	if n == 0 {
		return "''"
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ",?"
	}
	return out
}
