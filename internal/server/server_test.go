package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"fieldbook/internal/config"
	"fieldbook/internal/db"
	"fieldbook/internal/engine"
	"fieldbook/internal/gen"
	"fieldbook/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("fieldbook")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	generator := gen.Func(func(ctx context.Context, req gen.Request) (string, error) {
		return "generated " + req.SectionType, nil
	})
	e := engine.New(conn, cfg, generator)
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func seedCatalog(t *testing.T, srv *testServer) {
	t.Helper()
	client := srv.Client()
	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/v0/districts/dist-1", map[string]any{
		"name":       "Riverview USD",
		"state":      "CA",
		"enrollment": 18000,
		"priorities": []string{"literacy", "assessment"},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("import district: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/products/prod-1", map[string]any{
		"name":     "ReadRight Literacy Suite",
		"category": "literacy",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("import product: %d %s", res.StatusCode, string(data))
	}
}

func pollStatus(t *testing.T, srv *testServer, playbookID string) engine.StatusView {
	t.Helper()
	client := srv.Client()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/playbooks/"+playbookID+"/status", nil, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status: %d %s", res.StatusCode, string(data))
		}
		var status engine.StatusView
		if err := json.Unmarshal(data, &status); err != nil {
			t.Fatalf("unmarshal status: %v", err)
		}
		if status.OverallStatus != "generating" {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("playbook never left generating")
	return engine.StatusView{}
}

func TestPlaybookLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	seedCatalog(t, srv)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/playbooks", map[string]any{
		"district_id": "dist-1",
		"product_ids": []string{"prod-1"},
	}, map[string]string{"X-Actor-Id": "rep-1"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("generate: %d %s", res.StatusCode, string(data))
	}
	var created PlaybookResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal playbook: %v", err)
	}
	if created.OverallStatus != "generating" {
		t.Fatalf("expected initial generating, got %s", created.OverallStatus)
	}
	if len(created.Sections) != 6 {
		t.Fatalf("expected 6 sections, got %d", len(created.Sections))
	}
	if created.CreatedBy != "rep-1" {
		t.Fatalf("created_by = %s", created.CreatedBy)
	}

	status := pollStatus(t, srv, created.ID)
	if status.OverallStatus != "complete" {
		t.Fatalf("expected complete, got %s", status.OverallStatus)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/playbooks/"+created.ID, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get playbook: %d %s", res.StatusCode, string(data))
	}
	var full PlaybookResponse
	if err := json.Unmarshal(data, &full); err != nil {
		t.Fatalf("unmarshal playbook: %v", err)
	}

	var themesID, fitID string
	for _, s := range full.Sections {
		if s.Content == nil {
			t.Fatalf("section %s has no content", s.Type)
		}
		switch s.Type {
		case "key_themes":
			themesID = s.ID
		case "fit_assessment":
			fitID = s.ID
		}
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/playbooks/"+created.ID+"/sections/"+themesID, map[string]any{
		"content": "rewritten by hand",
	}, map[string]string{"X-Actor-Id": "rep-1"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("edit section: %d %s", res.StatusCode, string(data))
	}
	var edited SectionResponse
	if err := json.Unmarshal(data, &edited); err != nil {
		t.Fatalf("unmarshal section: %v", err)
	}
	if !edited.IsEdited || edited.Content == nil || *edited.Content != "rewritten by hand" {
		t.Fatalf("edit not applied: %+v", edited)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/playbooks/"+created.ID+"/sections/"+fitID+"/regenerate", nil, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for derived section, got %d %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "NOT_REGENERABLE" {
		t.Fatalf("expected NOT_REGENERABLE, got %s", code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/playbooks/"+created.ID+"/sections/"+themesID+"/regenerate", nil, nil)
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("regenerate: %d %s", res.StatusCode, string(data))
	}
	status = pollStatus(t, srv, created.ID)
	if status.OverallStatus != "complete" {
		t.Fatalf("expected complete after regenerate, got %s", status.OverallStatus)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/playbooks/"+created.ID, nil, nil)
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		t.Fatalf("delete: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/playbooks/"+created.ID, nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "PLAYBOOK_NOT_FOUND" {
		t.Fatalf("expected PLAYBOOK_NOT_FOUND, got %s", code)
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/playbooks", map[string]any{
		"district_id": "missing-district",
		"product_ids": []string{"prod-1"},
	}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "DISTRICT_NOT_FOUND" {
		t.Fatalf("expected DISTRICT_NOT_FOUND, got %s: %s", code, string(data))
	}

	seedCatalog(t, srv)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/playbooks", map[string]any{
		"district_id": "dist-1",
		"product_ids": []string{},
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty products, got %d %s", res.StatusCode, string(data))
	}
}

func TestNotesAndAttachmentsOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	seedCatalog(t, srv)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/playbooks", map[string]any{
		"district_id": "dist-1",
		"product_ids": []string{"prod-1"},
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("generate: %d %s", res.StatusCode, string(data))
	}
	var created PlaybookResponse
	_ = json.Unmarshal(data, &created)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/playbooks/"+created.ID+"/notes", map[string]any{
		"content": "demo booked",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add note: %d %s", res.StatusCode, string(data))
	}
	var note NoteResponse
	_ = json.Unmarshal(data, &note)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/playbooks/"+created.ID+"/attachments", map[string]any{
		"file_name":   "rfp.pdf",
		"file_type":   "application/pdf",
		"file_size":   1024,
		"content_ref": "blob://rfp",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add attachment: %d %s", res.StatusCode, string(data))
	}
	var att AttachmentResponse
	_ = json.Unmarshal(data, &att)

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/playbooks/"+created.ID+"/attachments/"+att.ID, nil, nil)
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		t.Fatalf("remove attachment: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/playbooks/"+created.ID+"/attachments/"+att.ID, nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second remove, got %d %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "ATTACHMENT_NOT_FOUND" {
		t.Fatalf("expected ATTACHMENT_NOT_FOUND, got %s", code)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/playbooks/"+created.ID+"/notes", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list notes: %d %s", res.StatusCode, string(data))
	}
	var notes []NoteResponse
	if err := json.Unmarshal(data, &notes); err != nil {
		t.Fatalf("unmarshal notes: %v", err)
	}
	if len(notes) != 1 || notes[0].Content != "demo booked" {
		t.Fatalf("notes = %+v", notes)
	}

	srv.Engine.Runner.Wait()
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return envelope.Error.Code
}
