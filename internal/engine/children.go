package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"fieldbook/internal/domain"
	"fieldbook/internal/events"
	"fieldbook/internal/repo"
)

// Attachments and notes are auxiliary collections on the aggregate. They do
// not touch the generation state machine; they just share the playbook's
// identity and lifecycle.

type AttachmentOptions struct {
	FileName   string
	FileType   string
	FileSize   int64
	ContentRef string
}

func (e Engine) AddAttachment(ctx context.Context, playbookID string, opts AttachmentOptions, actorID string) (domain.Attachment, error) {
	if opts.FileName == "" {
		return domain.Attachment{}, ValidationError{Msg: "file_name is required"}
	}
	if opts.ContentRef == "" {
		return domain.Attachment{}, ValidationError{Msg: "content_ref is required"}
	}
	if _, err := e.getPlaybook(ctx, playbookID); err != nil {
		return domain.Attachment{}, err
	}
	a := domain.Attachment{
		ID:         uuid.New().String(),
		PlaybookID: playbookID,
		FileName:   opts.FileName,
		FileType:   opts.FileType,
		FileSize:   opts.FileSize,
		ContentRef: opts.ContentRef,
		CreatedAt:  e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Attachment{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAttachmentTx(ctx, tx, a); err != nil {
		return domain.Attachment{}, err
	}
	if err := e.Events.Append(ctx, tx, "attachment.added", playbookID, "attachment", a.ID, actorID, events.EventPayload{
		"file_name": a.FileName,
		"file_size": a.FileSize,
	}); err != nil {
		return domain.Attachment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Attachment{}, err
	}
	return a, nil
}

func (e Engine) RemoveAttachment(ctx context.Context, playbookID, attachmentID, actorID string) error {
	if _, err := e.getPlaybook(ctx, playbookID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAttachmentTx(ctx, tx, playbookID, attachmentID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Kind: "attachment", ID: attachmentID}
		}
		return err
	}
	if err := e.Events.Append(ctx, tx, "attachment.removed", playbookID, "attachment", attachmentID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) AddNote(ctx context.Context, playbookID, content, actorID string) (domain.Note, error) {
	if content == "" {
		return domain.Note{}, ValidationError{Msg: "content must be non-empty"}
	}
	if _, err := e.getPlaybook(ctx, playbookID); err != nil {
		return domain.Note{}, err
	}
	now := e.nowRFC3339()
	n := domain.Note{
		ID:         uuid.New().String(),
		PlaybookID: playbookID,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Note{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertNoteTx(ctx, tx, n); err != nil {
		return domain.Note{}, err
	}
	if err := e.Events.Append(ctx, tx, "note.added", playbookID, "note", n.ID, actorID, nil); err != nil {
		return domain.Note{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Note{}, err
	}
	return n, nil
}

func (e Engine) UpdateNote(ctx context.Context, playbookID, noteID, content, actorID string) (domain.Note, error) {
	if content == "" {
		return domain.Note{}, ValidationError{Msg: "content must be non-empty"}
	}
	if _, err := e.getPlaybook(ctx, playbookID); err != nil {
		return domain.Note{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Note{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateNoteTx(ctx, tx, playbookID, noteID, content, e.nowRFC3339()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Note{}, NotFoundError{Kind: "note", ID: noteID}
		}
		return domain.Note{}, err
	}
	if err := e.Events.Append(ctx, tx, "note.updated", playbookID, "note", noteID, actorID, nil); err != nil {
		return domain.Note{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Note{}, err
	}
	return e.Repo.GetNote(ctx, playbookID, noteID)
}

func (e Engine) DeleteNote(ctx context.Context, playbookID, noteID, actorID string) error {
	if _, err := e.getPlaybook(ctx, playbookID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteNoteTx(ctx, tx, playbookID, noteID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Kind: "note", ID: noteID}
		}
		return err
	}
	if err := e.Events.Append(ctx, tx, "note.deleted", playbookID, "note", noteID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}
