package repo

import (
	"context"
	"database/sql"

	"fieldbook/internal/domain"
)

func (r Repo) InsertAttachmentTx(ctx context.Context, tx *sql.Tx, a domain.Attachment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO attachments(id,playbook_id,file_name,file_type,file_size,content_ref,created_at) VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.PlaybookID, a.FileName, nullable(a.FileType), a.FileSize, a.ContentRef, a.CreatedAt)
	return err
}

func (r Repo) GetAttachment(ctx context.Context, playbookID, attachmentID string) (domain.Attachment, error) {
	var a domain.Attachment
	err := r.DB.QueryRowContext(ctx, `SELECT id,playbook_id,file_name,COALESCE(file_type,''),file_size,content_ref,created_at FROM attachments WHERE id=? AND playbook_id=?`, attachmentID, playbookID).
		Scan(&a.ID, &a.PlaybookID, &a.FileName, &a.FileType, &a.FileSize, &a.ContentRef, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) ListAttachments(ctx context.Context, playbookID string) ([]domain.Attachment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,playbook_id,file_name,COALESCE(file_type,''),file_size,content_ref,created_at FROM attachments WHERE playbook_id=? ORDER BY created_at, id`, playbookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(&a.ID, &a.PlaybookID, &a.FileName, &a.FileType, &a.FileSize, &a.ContentRef, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) DeleteAttachmentTx(ctx context.Context, tx *sql.Tx, playbookID, attachmentID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE id=? AND playbook_id=?`, attachmentID, playbookID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertNoteTx(ctx context.Context, tx *sql.Tx, n domain.Note) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notes(id,playbook_id,content,created_at,updated_at) VALUES (?,?,?,?,?)`,
		n.ID, n.PlaybookID, n.Content, n.CreatedAt, n.UpdatedAt)
	return err
}

func (r Repo) GetNote(ctx context.Context, playbookID, noteID string) (domain.Note, error) {
	var n domain.Note
	err := r.DB.QueryRowContext(ctx, `SELECT id,playbook_id,content,created_at,updated_at FROM notes WHERE id=? AND playbook_id=?`, noteID, playbookID).
		Scan(&n.ID, &n.PlaybookID, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	return n, err
}

func (r Repo) ListNotes(ctx context.Context, playbookID string) ([]domain.Note, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,playbook_id,content,created_at,updated_at FROM notes WHERE playbook_id=? ORDER BY created_at, id`, playbookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.PlaybookID, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) UpdateNoteTx(ctx context.Context, tx *sql.Tx, playbookID, noteID, content, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE notes SET content=?, updated_at=? WHERE id=? AND playbook_id=?`, content, updatedAt, noteID, playbookID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteNoteTx(ctx context.Context, tx *sql.Tx, playbookID, noteID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id=? AND playbook_id=?`, noteID, playbookID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
