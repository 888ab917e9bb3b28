package engine_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"fieldbook/internal/config"
	"fieldbook/internal/db"
	"fieldbook/internal/domain"
	"fieldbook/internal/engine"
	"fieldbook/internal/gen"
	"fieldbook/internal/migrate"
)

// scriptedGenerator lets tests control completion order and outcome per
// section type. A gated type blocks until its gate closes or the task context
// is cancelled.
type scriptedGenerator struct {
	mu      sync.Mutex
	errs    map[string]error
	content map[string]string
	gates   map[string]chan struct{}
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		errs:    map[string]error{},
		content: map[string]string{},
		gates:   map[string]chan struct{}{},
	}
}

func (g *scriptedGenerator) Generate(ctx context.Context, req gen.Request) (string, error) {
	g.mu.Lock()
	gate := g.gates[req.SectionType]
	failure := g.errs[req.SectionType]
	content, hasContent := g.content[req.SectionType]
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if failure != nil {
		return "", failure
	}
	if hasContent {
		return content, nil
	}
	return "generated " + req.SectionType, nil
}

func (g *scriptedGenerator) gate(sectionType string) chan struct{} {
	ch := make(chan struct{})
	g.mu.Lock()
	g.gates[sectionType] = ch
	g.mu.Unlock()
	return ch
}

func (g *scriptedGenerator) fail(sectionType string, err error) {
	g.mu.Lock()
	g.errs[sectionType] = err
	g.mu.Unlock()
}

func (g *scriptedGenerator) succeed(sectionType, content string) {
	g.mu.Lock()
	delete(g.errs, sectionType)
	g.content[sectionType] = content
	g.mu.Unlock()
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	Engine engine.Engine
	Gen    *scriptedGenerator
	Clock  *testClock
	Ctx    context.Context
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = config.Default("test")
	}
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	g := newScriptedGenerator()
	clock := &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	eng := engine.New(conn, cfg, g)
	eng.Now = clock.Now
	ctx := context.Background()
	seedCatalog(t, ctx, eng)
	return &testEnv{Engine: eng, Gen: g, Clock: clock, Ctx: ctx}
}

func seedCatalog(t *testing.T, ctx context.Context, eng engine.Engine) {
	t.Helper()
	now := eng.Now().UTC().Format(time.RFC3339)
	err := eng.Repo.InsertDistrict(ctx, domain.District{
		ID: "dist-1", Name: "Riverview USD", State: "CA", Enrollment: 18000,
		PrioritiesJSON: `["literacy", "assessment"]`, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed district: %v", err)
	}
	for _, p := range []domain.Product{
		{ID: "prod-1", Name: "ReadRight Literacy Suite", Category: "literacy", CreatedAt: now},
		{ID: "prod-2", Name: "LabKit Pro", Category: "science", CreatedAt: now},
	} {
		if err := eng.Repo.InsertProduct(ctx, p); err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}
}

// generatorOnlyConfig returns a config whose sections all use the LLM backend,
// so tests can script every outcome.
func generatorOnlyConfig(t *testing.T, sections ...string) *config.Config {
	t.Helper()
	yaml := "workspace:\n  name: test\nplaybook:\n  sections: ["
	for i, s := range sections {
		if i > 0 {
			yaml += ", "
		}
		yaml += s
	}
	yaml += "]\n"
	cfg, err := config.FromYAML([]byte(yaml))
	if err != nil {
		t.Fatalf("test config: %v", err)
	}
	return cfg
}

func (env *testEnv) generate(t *testing.T) engine.PlaybookView {
	t.Helper()
	view, err := env.Engine.GeneratePlaybook(env.Ctx, engine.GenerateOptions{
		DistrictID: "dist-1",
		ProductIDs: []string{"prod-1", "prod-2"},
		ActorID:    "rep-1",
	})
	if err != nil {
		t.Fatalf("generate playbook: %v", err)
	}
	return view
}

func (env *testEnv) sectionByType(t *testing.T, playbookID, sectionType string) domain.Section {
	t.Helper()
	view, err := env.Engine.GetPlaybookView(env.Ctx, playbookID)
	if err != nil {
		t.Fatalf("get playbook: %v", err)
	}
	for _, s := range view.Sections {
		if s.Type == sectionType {
			return s
		}
	}
	t.Fatalf("section %s not found", sectionType)
	return domain.Section{}
}

func (env *testEnv) waitForSectionStatus(t *testing.T, playbookID, sectionType, want string) domain.Section {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s := env.sectionByType(t, playbookID, sectionType)
		if s.Status == want {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("section %s never reached %s", sectionType, want)
	return domain.Section{}
}

func TestGeneratePlaybookFansOut(t *testing.T) {
	env := newTestEnv(t, nil)
	view := env.generate(t)

	if len(view.Sections) != 6 {
		t.Fatalf("expected 6 sections, got %d", len(view.Sections))
	}
	if view.OverallStatus != domain.PlaybookGenerating {
		t.Fatalf("expected initial overall generating, got %s", view.OverallStatus)
	}
	for _, s := range view.Sections {
		if s.Status != domain.SectionPending {
			t.Fatalf("section %s not pending at creation: %s", s.Type, s.Status)
		}
		if s.Content != nil || s.ErrorMessage != nil {
			t.Fatalf("section %s has content or error while pending", s.Type)
		}
	}

	env.Engine.Runner.Wait()
	full, err := env.Engine.GetPlaybookView(env.Ctx, view.ID)
	if err != nil {
		t.Fatalf("get playbook: %v", err)
	}
	if full.OverallStatus != domain.PlaybookComplete {
		t.Fatalf("expected complete, got %s", full.OverallStatus)
	}
	for _, s := range full.Sections {
		if s.Status != domain.SectionComplete || s.Content == nil || *s.Content == "" {
			t.Fatalf("section %s not complete with content", s.Type)
		}
		if s.GeneratedAt == nil {
			t.Fatalf("section %s missing generated_at", s.Type)
		}
		if s.IsEdited {
			t.Fatalf("section %s unexpectedly flagged edited", s.Type)
		}
	}
	// derived sections come from the composer with verbatim provenance
	fit := env.sectionByType(t, view.ID, domain.SectionFitAssessment)
	if fit.Source == nil || *fit.Source != domain.SourceVerbatim {
		t.Fatalf("fit_assessment source = %v", fit.Source)
	}
	if fit.Retryable {
		t.Fatal("fit_assessment must not be retryable")
	}
	themes := env.sectionByType(t, view.ID, domain.SectionKeyThemes)
	if themes.Source == nil || *themes.Source != domain.SourceSynthesis {
		t.Fatalf("key_themes source = %v", themes.Source)
	}
}

func TestGeneratePlaybookValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.Engine.GeneratePlaybook(env.Ctx, engine.GenerateOptions{DistrictID: "dist-1", ActorID: "rep-1"})
	var verr engine.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for empty products, got %v", err)
	}

	_, err = env.Engine.GeneratePlaybook(env.Ctx, engine.GenerateOptions{DistrictID: "missing", ProductIDs: []string{"prod-1"}, ActorID: "rep-1"})
	var nferr engine.NotFoundError
	if !errors.As(err, &nferr) || nferr.Kind != "district" {
		t.Fatalf("expected district not found, got %v", err)
	}

	_, err = env.Engine.GeneratePlaybook(env.Ctx, engine.GenerateOptions{DistrictID: "dist-1", ProductIDs: []string{"nope"}, ActorID: "rep-1"})
	if !errors.As(err, &nferr) || nferr.Kind != "product" {
		t.Fatalf("expected product not found, got %v", err)
	}

	// none of the failures may leave a playbook behind
	pbs, err := env.Engine.Repo.ListPlaybooks(env.Ctx, "")
	if err != nil {
		t.Fatalf("list playbooks: %v", err)
	}
	if len(pbs) != 0 {
		t.Fatalf("expected no playbooks after failed validation, got %d", len(pbs))
	}
}

func TestOverallStatusPartialAndFailed(t *testing.T) {
	env := newTestEnv(t, generatorOnlyConfig(t, "key_themes", "objections"))
	env.Gen.fail("objections", errors.New("backend unavailable"))
	view := env.generate(t)
	env.Engine.Runner.Wait()

	status, err := env.Engine.GetStatus(env.Ctx, view.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.OverallStatus != domain.PlaybookPartial {
		t.Fatalf("expected partial, got %s", status.OverallStatus)
	}
	failed := env.sectionByType(t, view.ID, "objections")
	if failed.Status != domain.SectionError || failed.ErrorMessage == nil || *failed.ErrorMessage != "backend unavailable" {
		t.Fatalf("failed section = %+v", failed)
	}
	if failed.Content != nil {
		t.Fatal("failed section must not carry content")
	}

	env.Gen.fail("key_themes", errors.New("backend unavailable"))
	view2 := env.generate(t)
	env.Engine.Runner.Wait()
	status2, err := env.Engine.GetStatus(env.Ctx, view2.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status2.OverallStatus != domain.PlaybookFailed {
		t.Fatalf("expected failed, got %s", status2.OverallStatus)
	}
}

func TestEditWinsOverStaleCompletion(t *testing.T) {
	env := newTestEnv(t, generatorOnlyConfig(t, "key_themes"))
	view := env.generate(t)
	env.Engine.Runner.Wait()

	section := env.waitForSectionStatus(t, view.ID, "key_themes", domain.SectionComplete)
	edited, err := env.Engine.UpdateSectionContent(env.Ctx, view.ID, section.ID, "hand-tuned by the rep", "rep-1")
	if err != nil {
		t.Fatalf("edit section: %v", err)
	}
	if !edited.IsEdited || edited.LastEditedAt == nil {
		t.Fatalf("edit not recorded: %+v", edited)
	}
	if edited.Status != domain.SectionComplete {
		t.Fatalf("edit changed status to %s", edited.Status)
	}
	if edited.Source == nil || *edited.Source != domain.SourceSynthesis {
		t.Fatalf("edit must not alter content_source, got %v", edited.Source)
	}

	// Replay a stale automatic completion from a superseded attempt; the
	// conditional write must not land.
	applied, err := env.Engine.Repo.CompleteSection(env.Ctx, nil, section.ID, "stale-attempt", "stale text", "synthesis", env.Engine.Now().Format(time.RFC3339), false)
	if err != nil {
		t.Fatalf("replay completion: %v", err)
	}
	if applied {
		t.Fatal("stale completion must be a no-op")
	}
	after := env.sectionByType(t, view.ID, "key_themes")
	if after.Content == nil || *after.Content != "hand-tuned by the rep" {
		t.Fatalf("edit lost: %+v", after.Content)
	}
}

func TestRegenerateOverridesEdit(t *testing.T) {
	env := newTestEnv(t, generatorOnlyConfig(t, "key_themes"))
	view := env.generate(t)
	env.Engine.Runner.Wait()
	section := env.sectionByType(t, view.ID, "key_themes")

	if _, err := env.Engine.UpdateSectionContent(env.Ctx, view.ID, section.ID, "my edit", "rep-1"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	env.Gen.succeed("key_themes", "fresh regenerated text")
	env.Clock.Advance(time.Minute)

	regen, err := env.Engine.RegenerateSection(env.Ctx, view.ID, section.ID, "rep-1")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if regen.Status != domain.SectionGenerating {
		t.Fatalf("expected generating after regenerate, got %s", regen.Status)
	}
	env.Engine.Runner.Wait()

	after := env.sectionByType(t, view.ID, "key_themes")
	if after.Status != domain.SectionComplete {
		t.Fatalf("regenerate did not complete: %s", after.Status)
	}
	if after.IsEdited {
		t.Fatal("regenerate completion must clear is_edited")
	}
	if after.Content == nil || *after.Content != "fresh regenerated text" {
		t.Fatalf("regenerate content = %v", after.Content)
	}
	if after.GeneratedAt == nil || *after.GeneratedAt == *section.GeneratedAt {
		t.Fatal("regenerate must refresh generated_at")
	}
}

func TestRegenerateNotRegenerable(t *testing.T) {
	env := newTestEnv(t, nil)
	view := env.generate(t)
	env.Engine.Runner.Wait()

	fit := env.sectionByType(t, view.ID, domain.SectionFitAssessment)
	_, err := env.Engine.RegenerateSection(env.Ctx, view.ID, fit.ID, "rep-1")
	var nrerr engine.NotRegenerableError
	if !errors.As(err, &nrerr) {
		t.Fatalf("expected not regenerable, got %v", err)
	}
}

func TestRegenerateExclusive(t *testing.T) {
	env := newTestEnv(t, generatorOnlyConfig(t, "key_themes"))
	view := env.generate(t)
	env.Engine.Runner.Wait()
	section := env.sectionByType(t, view.ID, "key_themes")

	gate := env.Gen.gate("key_themes")
	if _, err := env.Engine.RegenerateSection(env.Ctx, view.ID, section.ID, "rep-1"); err != nil {
		t.Fatalf("first regenerate: %v", err)
	}
	_, err := env.Engine.RegenerateSection(env.Ctx, view.ID, section.ID, "rep-1")
	var cerr engine.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected conflict for concurrent regenerate, got %v", err)
	}
	close(gate)
	env.Engine.Runner.Wait()
	if s := env.sectionByType(t, view.ID, "key_themes"); s.Status != domain.SectionComplete {
		t.Fatalf("regenerate did not settle: %s", s.Status)
	}
}

func TestRegeneratingSectionCarriesNoOutput(t *testing.T) {
	env := newTestEnv(t, generatorOnlyConfig(t, "key_themes"))
	view := env.generate(t)
	env.Engine.Runner.Wait()
	section := env.sectionByType(t, view.ID, "key_themes")
	if section.Content == nil {
		t.Fatal("section did not complete with content")
	}

	gate := env.Gen.gate("key_themes")
	if _, err := env.Engine.RegenerateSection(env.Ctx, view.ID, section.ID, "rep-1"); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	mid := env.sectionByType(t, view.ID, "key_themes")
	if mid.Status != domain.SectionGenerating {
		t.Fatalf("expected generating, got %s", mid.Status)
	}
	if mid.Content != nil || mid.Source != nil || mid.GeneratedAt != nil || mid.ErrorMessage != nil {
		t.Fatalf("generating section must carry no prior output: content=%v source=%v generated_at=%v error=%v",
			mid.Content, mid.Source, mid.GeneratedAt, mid.ErrorMessage)
	}

	close(gate)
	env.Engine.Runner.Wait()
	after := env.sectionByType(t, view.ID, "key_themes")
	if after.Status != domain.SectionComplete || after.Content == nil {
		t.Fatalf("regenerate did not complete: %s", after.Status)
	}
}

func TestGenerationWriteFailureLogged(t *testing.T) {
	env := newTestEnv(t, generatorOnlyConfig(t, "key_themes"))
	gate := env.Gen.gate("key_themes")
	view := env.generate(t)
	env.waitForSectionStatus(t, view.ID, "key_themes", domain.SectionGenerating)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	// closing the database makes the completion write fail with nobody to
	// return the error to
	env.Engine.DB.Close()
	close(gate)
	env.Engine.Runner.Wait()

	if !strings.Contains(buf.String(), "generation:") {
		t.Fatalf("expected the background write failure to be logged, got %q", buf.String())
	}
}

func TestEditRejectedWhileGenerating(t *testing.T) {
	env := newTestEnv(t, generatorOnlyConfig(t, "key_themes"))
	gate := env.Gen.gate("key_themes")
	view := env.generate(t)
	section := env.waitForSectionStatus(t, view.ID, "key_themes", domain.SectionGenerating)

	_, err := env.Engine.UpdateSectionContent(env.Ctx, view.ID, section.ID, "too soon", "rep-1")
	var cerr engine.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected conflict editing mid-generation, got %v", err)
	}
	close(gate)
	env.Engine.Runner.Wait()
}

func TestDeleteCancelsInFlightGeneration(t *testing.T) {
	env := newTestEnv(t, generatorOnlyConfig(t, "key_themes", "objections"))
	env.Gen.gate("key_themes")
	env.Gen.gate("objections")
	view := env.generate(t)
	env.waitForSectionStatus(t, view.ID, "key_themes", domain.SectionGenerating)

	if err := env.Engine.DeletePlaybook(env.Ctx, view.ID, "rep-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// cancellation unblocks the gated tasks; their completions must be no-ops
	env.Engine.Runner.Wait()

	_, err := env.Engine.GetPlaybookView(env.Ctx, view.ID)
	var nferr engine.NotFoundError
	if !errors.As(err, &nferr) || nferr.Kind != "playbook" {
		t.Fatalf("expected playbook gone, got %v", err)
	}
	if err := env.Engine.DeletePlaybook(env.Ctx, view.ID, "rep-1"); !errors.As(err, &nferr) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestGenerationLimit(t *testing.T) {
	cfg := config.Default("test")
	cfg.Generation.Limit.MaxPlaybooks = 2
	cfg.Generation.Limit.WindowMinutes = 60
	env := newTestEnv(t, cfg)

	env.generate(t)
	env.generate(t)
	_, err := env.Engine.GeneratePlaybook(env.Ctx, engine.GenerateOptions{
		DistrictID: "dist-1", ProductIDs: []string{"prod-1"}, ActorID: "rep-1",
	})
	var lerr engine.LimitError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected limit error, got %v", err)
	}

	// a different caller is not affected
	if _, err := env.Engine.GeneratePlaybook(env.Ctx, engine.GenerateOptions{
		DistrictID: "dist-1", ProductIDs: []string{"prod-1"}, ActorID: "rep-2",
	}); err != nil {
		t.Fatalf("other actor should pass: %v", err)
	}

	// the window slides
	env.Clock.Advance(61 * time.Minute)
	if _, err := env.Engine.GeneratePlaybook(env.Ctx, engine.GenerateOptions{
		DistrictID: "dist-1", ProductIDs: []string{"prod-1"}, ActorID: "rep-1",
	}); err != nil {
		t.Fatalf("limit should reset after window: %v", err)
	}
	env.Engine.Runner.Wait()
}

func TestFailureThenRegenerateRepairs(t *testing.T) {
	env := newTestEnv(t, generatorOnlyConfig(t, "key_themes", "objections"))
	env.Gen.fail("objections", errors.New("timeout"))
	view := env.generate(t)
	env.Engine.Runner.Wait()

	failed := env.sectionByType(t, view.ID, "objections")
	if failed.Status != domain.SectionError || !failed.Retryable {
		t.Fatalf("expected retryable error section, got %+v", failed)
	}

	env.Gen.succeed("objections", "objection handling")
	if _, err := env.Engine.RegenerateSection(env.Ctx, view.ID, failed.ID, "rep-1"); err != nil {
		t.Fatalf("regenerate after failure: %v", err)
	}
	env.Engine.Runner.Wait()

	status, err := env.Engine.GetStatus(env.Ctx, view.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.OverallStatus != domain.PlaybookComplete {
		t.Fatalf("expected complete after repair, got %s", status.OverallStatus)
	}
	repaired := env.sectionByType(t, view.ID, "objections")
	if repaired.ErrorMessage != nil {
		t.Fatalf("error message not cleared: %v", *repaired.ErrorMessage)
	}
}

func TestNotesAndAttachments(t *testing.T) {
	env := newTestEnv(t, generatorOnlyConfig(t, "key_themes"))
	view := env.generate(t)
	env.Engine.Runner.Wait()

	note, err := env.Engine.AddNote(env.Ctx, view.ID, "call scheduled for Tuesday", "rep-1")
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	env.Clock.Advance(time.Minute)
	updated, err := env.Engine.UpdateNote(env.Ctx, view.ID, note.ID, "call moved to Friday", "rep-1")
	if err != nil {
		t.Fatalf("update note: %v", err)
	}
	if updated.Content != "call moved to Friday" || updated.UpdatedAt == note.UpdatedAt {
		t.Fatalf("note not updated: %+v", updated)
	}

	att, err := env.Engine.AddAttachment(env.Ctx, view.ID, engine.AttachmentOptions{
		FileName: "rfp.pdf", FileType: "application/pdf", FileSize: 52341, ContentRef: "blob://rfp",
	}, "rep-1")
	if err != nil {
		t.Fatalf("add attachment: %v", err)
	}

	full, err := env.Engine.GetPlaybookView(env.Ctx, view.ID)
	if err != nil {
		t.Fatalf("get playbook: %v", err)
	}
	if len(full.Notes) != 1 || len(full.Attachments) != 1 {
		t.Fatalf("expected 1 note and 1 attachment, got %d/%d", len(full.Notes), len(full.Attachments))
	}

	if err := env.Engine.RemoveAttachment(env.Ctx, view.ID, att.ID, "rep-1"); err != nil {
		t.Fatalf("remove attachment: %v", err)
	}
	var nferr engine.NotFoundError
	if err := env.Engine.RemoveAttachment(env.Ctx, view.ID, att.ID, "rep-1"); !errors.As(err, &nferr) || nferr.Kind != "attachment" {
		t.Fatalf("expected attachment not found, got %v", err)
	}
	if err := env.Engine.DeleteNote(env.Ctx, view.ID, note.ID, "rep-1"); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	if err := env.Engine.DeleteNote(env.Ctx, view.ID, note.ID, "rep-1"); !errors.As(err, &nferr) || nferr.Kind != "note" {
		t.Fatalf("expected note not found, got %v", err)
	}
}

func TestStatusMatchesDerivation(t *testing.T) {
	env := newTestEnv(t, generatorOnlyConfig(t, "key_themes", "objections", "stakeholders"))
	env.Gen.fail("stakeholders", errors.New("boom"))
	view := env.generate(t)
	env.Engine.Runner.Wait()

	full, err := env.Engine.GetPlaybookView(env.Ctx, view.ID)
	if err != nil {
		t.Fatalf("get playbook: %v", err)
	}
	status, err := env.Engine.GetStatus(env.Ctx, view.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if derived := domain.OverallStatus(full.Sections); derived != status.OverallStatus {
		t.Fatalf("status endpoint (%s) drifted from derivation (%s)", status.OverallStatus, derived)
	}
	if len(status.Sections) != len(full.Sections) {
		t.Fatalf("projection section count mismatch")
	}
}

func TestEventsRecorded(t *testing.T) {
	env := newTestEnv(t, generatorOnlyConfig(t, "key_themes"))
	view := env.generate(t)
	env.Engine.Runner.Wait()

	evts, err := env.Engine.Repo.ListEvents(env.Ctx, view.ID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	kinds := map[string]bool{}
	for _, e := range evts {
		kinds[e.Type] = true
	}
	for _, want := range []string{"playbook.created", "section.completed"} {
		if !kinds[want] {
			t.Fatalf("missing event %s in %v", want, fmt.Sprint(kinds))
		}
	}
}
