package engine

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"fieldbook/internal/config"
	"fieldbook/internal/domain"
	"fieldbook/internal/events"
	"fieldbook/internal/gen"
	"fieldbook/internal/repo"
	"fieldbook/internal/runner"
)

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Generator gen.Generator
	Composer  gen.Generator
	Runner    *runner.Runner
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config, generator gen.Generator) Engine {
	return Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Events:    events.Writer{DB: db},
		Config:    cfg,
		Generator: generator,
		Composer:  gen.Composer{},
		Runner:    runner.New(int64(cfg.Generation.Concurrency)),
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

// PlaybookView is the full aggregate with its derived status.
type PlaybookView struct {
	domain.Playbook
	OverallStatus string              `json:"overall_status" enum:"generating,complete,failed,partial"`
	Sections      []domain.Section    `json:"sections"`
	Attachments   []domain.Attachment `json:"attachments"`
	Notes         []domain.Note       `json:"notes"`
}

// SectionStatus is the per-section slice of the polling projection.
type SectionStatus struct {
	ID        string `json:"id"`
	Type      string `json:"section_type"`
	Status    string `json:"status" enum:"pending,generating,complete,error"`
	Retryable bool   `json:"retryable"`
	IsEdited  bool   `json:"is_edited"`
}

// StatusView is the lightweight projection the client polls. Reads are a
// single snapshot per table and never mutate state.
type StatusView struct {
	PlaybookID    string          `json:"playbook_id"`
	OverallStatus string          `json:"overall_status" enum:"generating,complete,failed,partial"`
	Sections      []SectionStatus `json:"sections"`
}

// GenerateOptions are the inputs for a playbook generation request.
type GenerateOptions struct {
	DistrictID string
	ProductIDs []string
	ActorID    string
}

// GeneratePlaybook validates inputs, persists the aggregate with every section
// pending, then fans out one generation task per section and returns without
// waiting for any of them.
func (e Engine) GeneratePlaybook(ctx context.Context, opts GenerateOptions) (PlaybookView, error) {
	if opts.DistrictID == "" {
		return PlaybookView{}, ValidationError{Msg: "district_id is required"}
	}
	if len(opts.ProductIDs) == 0 {
		return PlaybookView{}, ValidationError{Msg: "product_ids must be non-empty"}
	}
	district, err := e.Repo.GetDistrict(ctx, opts.DistrictID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return PlaybookView{}, NotFoundError{Kind: "district", ID: opts.DistrictID}
		}
		return PlaybookView{}, err
	}
	products := make([]domain.Product, 0, len(opts.ProductIDs))
	for _, id := range opts.ProductIDs {
		p, err := e.Repo.GetProduct(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return PlaybookView{}, NotFoundError{Kind: "product", ID: id}
			}
			return PlaybookView{}, err
		}
		products = append(products, p)
	}
	now := e.nowRFC3339()
	pb := domain.Playbook{
		ID:          uuid.New().String(),
		DistrictID:  district.ID,
		ProductIDs:  opts.ProductIDs,
		CreatedBy:   opts.ActorID,
		GeneratedAt: now,
	}
	sections := make([]domain.Section, 0, len(e.Config.Playbook.Sections))
	for i, sectionType := range e.Config.Playbook.Sections {
		policy := e.Config.SectionPolicyFor(sectionType)
		sections = append(sections, domain.Section{
			ID:         uuid.New().String(),
			PlaybookID: pb.ID,
			Type:       sectionType,
			Position:   i,
			Status:     domain.SectionPending,
			Retryable:  policy.IsRetryable(),
		})
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return PlaybookView{}, err
	}
	defer tx.Rollback()
	if err := e.checkGenerationLimit(ctx, tx, opts.ActorID); err != nil {
		return PlaybookView{}, err
	}
	if err := e.Repo.InsertPlaybookTx(ctx, tx, pb); err != nil {
		return PlaybookView{}, err
	}
	for _, s := range sections {
		if err := e.Repo.InsertSectionTx(ctx, tx, s); err != nil {
			return PlaybookView{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "playbook.created", pb.ID, "playbook", pb.ID, opts.ActorID, events.EventPayload{
		"district_id": pb.DistrictID,
		"product_ids": pb.ProductIDs,
		"sections":    len(sections),
	}); err != nil {
		return PlaybookView{}, err
	}
	if err := tx.Commit(); err != nil {
		return PlaybookView{}, err
	}

	for _, s := range sections {
		section := s
		e.Runner.Launch(pb.ID, func(taskCtx context.Context) {
			e.runGeneration(taskCtx, pb, district, products, section, "", false)
		})
	}

	return PlaybookView{
		Playbook:      pb,
		OverallStatus: domain.OverallStatus(sections),
		Sections:      sections,
		Attachments:   []domain.Attachment{},
		Notes:         []domain.Note{},
	}, nil
}

// checkGenerationLimit runs inside the creation transaction so the count it
// reads and the insert it guards commit together.
func (e Engine) checkGenerationLimit(ctx context.Context, tx *sql.Tx, actorID string) error {
	max := e.Config.Generation.Limit.MaxPlaybooks
	if max <= 0 {
		return nil
	}
	window := e.Config.LimitWindow()
	since := e.now().UTC().Add(-window).Format(time.RFC3339)
	n, err := e.Repo.CountPlaybooksBy(ctx, tx, actorID, since)
	if err != nil {
		return err
	}
	if n >= max {
		return LimitError{Max: max, Window: window}
	}
	return nil
}

// runGeneration is the body of one generation task. An empty attemptID means
// this is the initial fan-out: the task claims the section from 'pending'
// itself and skips silently if something else got there first. Regenerates
// arrive with the attempt already claimed by RegenerateSection.
func (e Engine) runGeneration(ctx context.Context, pb domain.Playbook, district domain.District, products []domain.Product, section domain.Section, attemptID string, regenerate bool) {
	if attemptID == "" {
		attemptID = uuid.New().String()
		ok, err := e.Repo.MarkSectionGenerating(ctx, nil, section.ID, attemptID, domain.SectionPending)
		if err != nil {
			log.Printf("generation: claim section %s (%s) failed: %v", section.ID, section.Type, err)
			return
		}
		if !ok {
			return
		}
	}

	policy := e.Config.SectionPolicyFor(section.Type)
	backend := e.Generator
	if policy.Backend == "composer" {
		backend = e.Composer
	}
	content, genErr := backend.Generate(ctx, gen.Request{
		SectionType: section.Type,
		Prompt:      policy.Prompt,
		District:    district,
		Products:    products,
	})
	if ctx.Err() != nil {
		// Playbook deleted or server shutting down; discard the result.
		return
	}
	e.recordGenerationResult(context.WithoutCancel(ctx), pb, section, attemptID, content, policy, genErr, regenerate)
}

// recordGenerationResult applies a task callback. The conditional updates in
// the repo make a stale callback (superseded attempt, edited section, deleted
// playbook) match zero rows; that is a silent no-op. Write failures on this
// path have no caller to report to, so they are logged.
func (e Engine) recordGenerationResult(ctx context.Context, pb domain.Playbook, section domain.Section, attemptID, content string, policy config.SectionPolicy, genErr error, regenerate bool) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("generation: record result for section %s (%s) failed: %v", section.ID, section.Type, err)
		return
	}
	defer tx.Rollback()

	var evtType string
	payload := events.EventPayload{"section_type": section.Type, "attempt_id": attemptID}
	if genErr != nil {
		applied, err := e.Repo.FailSection(ctx, tx, section.ID, attemptID, genErr.Error())
		if err != nil {
			log.Printf("generation: mark section %s (%s) failed errored: %v", section.ID, section.Type, err)
			return
		}
		if !applied {
			return
		}
		evtType = "section.failed"
		payload["error"] = genErr.Error()
	} else {
		source := policy.Source
		if source == "" {
			source = domain.SourceSynthesis
		}
		applied, err := e.Repo.CompleteSection(ctx, tx, section.ID, attemptID, content, source, e.nowRFC3339(), regenerate)
		if err != nil {
			log.Printf("generation: complete section %s (%s) failed: %v", section.ID, section.Type, err)
			return
		}
		if !applied {
			return
		}
		evtType = "section.completed"
		payload["content_source"] = source
	}
	if err := e.Events.Append(ctx, tx, evtType, pb.ID, "section", section.ID, "system", payload); err != nil {
		log.Printf("generation: append %s event for section %s failed: %v", evtType, section.ID, err)
		return
	}
	if err := tx.Commit(); err != nil {
		log.Printf("generation: commit result for section %s (%s) failed: %v", section.ID, section.Type, err)
	}
}

// RegenerateSection relaunches generation for one section. Valid only from a
// terminal status and only for retryable section types; a section already
// generating is rejected rather than queued so a section never runs two tasks
// at once.
func (e Engine) RegenerateSection(ctx context.Context, playbookID, sectionID, actorID string) (domain.Section, error) {
	pb, err := e.getPlaybook(ctx, playbookID)
	if err != nil {
		return domain.Section{}, err
	}
	section, err := e.getSection(ctx, playbookID, sectionID)
	if err != nil {
		return domain.Section{}, err
	}
	if !section.Retryable {
		return domain.Section{}, NotRegenerableError{SectionType: section.Type}
	}
	district, err := e.Repo.GetDistrict(ctx, pb.DistrictID)
	if err != nil {
		return domain.Section{}, err
	}
	products := make([]domain.Product, 0, len(pb.ProductIDs))
	for _, id := range pb.ProductIDs {
		p, err := e.Repo.GetProduct(ctx, id)
		if err != nil {
			return domain.Section{}, err
		}
		products = append(products, p)
	}

	attemptID := uuid.New().String()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Section{}, err
	}
	defer tx.Rollback()
	ok, err := e.Repo.MarkSectionGenerating(ctx, tx, sectionID, attemptID, domain.SectionComplete, domain.SectionError)
	if err != nil {
		return domain.Section{}, err
	}
	if !ok {
		return domain.Section{}, ConflictError{Msg: "section generation already in progress"}
	}
	if err := e.Events.Append(ctx, tx, "section.regenerate", pb.ID, "section", sectionID, actorID, events.EventPayload{
		"section_type": section.Type,
		"attempt_id":   attemptID,
	}); err != nil {
		return domain.Section{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Section{}, err
	}

	e.Runner.Launch(pb.ID, func(taskCtx context.Context) {
		e.runGeneration(taskCtx, pb, district, products, section, attemptID, true)
	})
	return e.getSection(ctx, playbookID, sectionID)
}

// UpdateSectionContent applies a manual edit. The edit marks the section
// edited so a stale automatic completion can no longer overwrite it; only an
// explicit regenerate takes the content back.
func (e Engine) UpdateSectionContent(ctx context.Context, playbookID, sectionID, content, actorID string) (domain.Section, error) {
	if content == "" {
		return domain.Section{}, ValidationError{Msg: "content must be non-empty"}
	}
	pb, err := e.getPlaybook(ctx, playbookID)
	if err != nil {
		return domain.Section{}, err
	}
	section, err := e.getSection(ctx, playbookID, sectionID)
	if err != nil {
		return domain.Section{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Section{}, err
	}
	defer tx.Rollback()
	applied, err := e.Repo.EditSectionContent(ctx, tx, sectionID, content, e.nowRFC3339())
	if err != nil {
		return domain.Section{}, err
	}
	if !applied {
		return domain.Section{}, ConflictError{Msg: "section is generating; edit after it settles"}
	}
	if err := e.Events.Append(ctx, tx, "section.edited", pb.ID, "section", sectionID, actorID, events.EventPayload{
		"section_type": section.Type,
	}); err != nil {
		return domain.Section{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Section{}, err
	}
	return e.getSection(ctx, playbookID, sectionID)
}

// DeletePlaybook removes the aggregate and cancels any in-flight generation.
// A task completing after the delete matches zero rows and is a no-op.
func (e Engine) DeletePlaybook(ctx context.Context, playbookID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeletePlaybook(ctx, tx, playbookID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Kind: "playbook", ID: playbookID}
		}
		return err
	}
	if err := e.Events.Append(ctx, tx, "playbook.deleted", playbookID, "playbook", playbookID, actorID, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.Runner.Cancel(playbookID)
	return nil
}

// GetPlaybookView assembles the full aggregate.
func (e Engine) GetPlaybookView(ctx context.Context, playbookID string) (PlaybookView, error) {
	pb, err := e.getPlaybook(ctx, playbookID)
	if err != nil {
		return PlaybookView{}, err
	}
	sections, err := e.Repo.ListSections(ctx, playbookID)
	if err != nil {
		return PlaybookView{}, err
	}
	attachments, err := e.Repo.ListAttachments(ctx, playbookID)
	if err != nil {
		return PlaybookView{}, err
	}
	notes, err := e.Repo.ListNotes(ctx, playbookID)
	if err != nil {
		return PlaybookView{}, err
	}
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	if notes == nil {
		notes = []domain.Note{}
	}
	return PlaybookView{
		Playbook:      pb,
		OverallStatus: domain.OverallStatus(sections),
		Sections:      sections,
		Attachments:   attachments,
		Notes:         notes,
	}, nil
}

// GetStatus returns the polling projection.
func (e Engine) GetStatus(ctx context.Context, playbookID string) (StatusView, error) {
	pb, err := e.getPlaybook(ctx, playbookID)
	if err != nil {
		return StatusView{}, err
	}
	sections, err := e.Repo.ListSections(ctx, playbookID)
	if err != nil {
		return StatusView{}, err
	}
	view := StatusView{
		PlaybookID:    pb.ID,
		OverallStatus: domain.OverallStatus(sections),
		Sections:      make([]SectionStatus, 0, len(sections)),
	}
	for _, s := range sections {
		view.Sections = append(view.Sections, SectionStatus{
			ID:        s.ID,
			Type:      s.Type,
			Status:    s.Status,
			Retryable: s.Retryable,
			IsEdited:  s.IsEdited,
		})
	}
	return view, nil
}

// GetSection returns one section, distinguishing a missing playbook from a
// missing section.
func (e Engine) GetSection(ctx context.Context, playbookID, sectionID string) (domain.Section, error) {
	if _, err := e.getPlaybook(ctx, playbookID); err != nil {
		return domain.Section{}, err
	}
	return e.getSection(ctx, playbookID, sectionID)
}

func (e Engine) getPlaybook(ctx context.Context, playbookID string) (domain.Playbook, error) {
	pb, err := e.Repo.GetPlaybook(ctx, playbookID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return pb, NotFoundError{Kind: "playbook", ID: playbookID}
		}
		return pb, err
	}
	return pb, nil
}

func (e Engine) getSection(ctx context.Context, playbookID, sectionID string) (domain.Section, error) {
	s, err := e.Repo.GetSection(ctx, playbookID, sectionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return s, NotFoundError{Kind: "section", ID: sectionID}
		}
		return s, err
	}
	return s, nil
}
