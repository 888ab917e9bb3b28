package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"fieldbook/internal/engine"
	"fieldbook/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"PLAYBOOK_NOT_FOUND"`
	Message string         `json:"message" example:"playbook not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Fieldbook API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors surface as 400.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(principalMiddleware(basePath))
	hcfg := huma.DefaultConfig("Fieldbook API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerDistricts(group, cfg.Engine)
	registerProducts(group, cfg.Engine)
	registerPlaybooks(group, cfg.Engine)
	registerSections(group, cfg.Engine)
	registerAttachments(group, cfg.Engine)
	registerNotes(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

var notFoundCodes = map[string]string{
	"district":   "DISTRICT_NOT_FOUND",
	"product":    "PRODUCT_NOT_FOUND",
	"playbook":   "PLAYBOOK_NOT_FOUND",
	"section":    "SECTION_NOT_FOUND",
	"attachment": "ATTACHMENT_NOT_FOUND",
	"note":       "NOTE_NOT_FOUND",
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var nfe engine.NotFoundError
	if errors.As(err, &nfe) {
		code := notFoundCodes[nfe.Kind]
		if code == "" {
			code = "NOT_FOUND"
		}
		return newAPIError(http.StatusNotFound, code, err.Error(), map[string]any{"id": nfe.ID})
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	}
	var le engine.LimitError
	if errors.As(err, &le) {
		return newAPIError(http.StatusTooManyRequests, "GENERATION_LIMIT_REACHED", err.Error(), map[string]any{
			"max_playbooks":  le.Max,
			"window_minutes": int(le.Window.Minutes()),
		})
	}
	var nre engine.NotRegenerableError
	if errors.As(err, &nre) {
		return newAPIError(http.StatusBadRequest, "NOT_REGENERABLE", err.Error(), map[string]any{"section_type": nre.SectionType})
	}
	var ce engine.ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, "SECTION_GENERATING", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "SECTION_GENERATING"
	case http.StatusTooManyRequests:
		return "GENERATION_LIMIT_REACHED"
	case http.StatusInternalServerError:
		return "INTERNAL_ERROR"
	default:
		return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Fieldbook API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDistricts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "import-district",
		Method:        http.MethodPut,
		Path:          "/districts/{district_id}",
		Summary:       "Import or update a district",
		DefaultStatus: http.StatusOK,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		DistrictID string `path:"district_id"`
		Body       ImportDistrictRequest
	}) (*struct {
		Body DistrictResponse
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "BAD_REQUEST", "name is required", nil)
		}
		d, err := e.ImportDistrict(ctx, input.DistrictID, engine.DistrictImport{
			Name:       input.Body.Name,
			State:      input.Body.State,
			Enrollment: input.Body.Enrollment,
			Budget:     input.Body.Budget,
			Priorities: input.Body.Priorities,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DistrictResponse
		}{Body: districtResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-districts",
		Method:      http.MethodGet,
		Path:        "/districts",
		Summary:     "List districts",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []DistrictResponse
	}, error) {
		items, err := e.Repo.ListDistricts(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]DistrictResponse, 0, len(items))
		for _, d := range items {
			out = append(out, districtResponse(d))
		}
		return &struct {
			Body []DistrictResponse
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-district",
		Method:      http.MethodGet,
		Path:        "/districts/{district_id}",
		Summary:     "Get district",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DistrictID string `path:"district_id"`
	}) (*struct {
		Body DistrictResponse
	}, error) {
		d, err := e.Repo.GetDistrict(ctx, input.DistrictID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, newAPIError(http.StatusNotFound, "DISTRICT_NOT_FOUND", "district not found", map[string]any{"id": input.DistrictID})
			}
			return nil, handleError(err)
		}
		return &struct {
			Body DistrictResponse
		}{Body: districtResponse(d)}, nil
	})
}

func registerProducts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "import-product",
		Method:        http.MethodPut,
		Path:          "/products/{product_id}",
		Summary:       "Import or update a product",
		DefaultStatus: http.StatusOK,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ProductID string `path:"product_id"`
		Body      ImportProductRequest
	}) (*struct {
		Body ProductResponse
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "BAD_REQUEST", "name is required", nil)
		}
		p, err := e.ImportProduct(ctx, input.ProductID, engine.ProductImport{
			Name:        input.Body.Name,
			Category:    input.Body.Category,
			Description: input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProductResponse
		}{Body: productResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-products",
		Method:      http.MethodGet,
		Path:        "/products",
		Summary:     "List products",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProductResponse
	}, error) {
		items, err := e.Repo.ListProducts(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]ProductResponse, 0, len(items))
		for _, p := range items {
			out = append(out, productResponse(p))
		}
		return &struct {
			Body []ProductResponse
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-product",
		Method:      http.MethodGet,
		Path:        "/products/{product_id}",
		Summary:     "Get product",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProductID string `path:"product_id"`
	}) (*struct {
		Body ProductResponse
	}, error) {
		p, err := e.Repo.GetProduct(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, newAPIError(http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found", map[string]any{"id": input.ProductID})
			}
			return nil, handleError(err)
		}
		return &struct {
			Body ProductResponse
		}{Body: productResponse(p)}, nil
	})
}

func registerPlaybooks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "generate-playbook",
		Method:        http.MethodPost,
		Path:          "/playbooks",
		Summary:       "Generate a playbook",
		Description:   "Creates the playbook with all sections pending and launches generation asynchronously. Poll the status endpoint until overall status leaves generating.",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body GeneratePlaybookRequest
	}) (*struct {
		Body PlaybookResponse
	}, error) {
		view, err := e.GeneratePlaybook(ctx, engine.GenerateOptions{
			DistrictID: input.Body.DistrictID,
			ProductIDs: input.Body.ProductIDs,
			ActorID:    actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PlaybookResponse
		}{Body: playbookResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-playbooks",
		Method:      http.MethodGet,
		Path:        "/playbooks",
		Summary:     "List playbooks",
	}, func(ctx context.Context, input *struct {
		DistrictID string `query:"district_id"`
	}) (*struct {
		Body []PlaybookSummary
	}, error) {
		items, err := e.Repo.ListPlaybooks(ctx, input.DistrictID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]PlaybookSummary, 0, len(items))
		for _, p := range items {
			out = append(out, playbookSummary(p))
		}
		return &struct {
			Body []PlaybookSummary
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-playbook",
		Method:      http.MethodGet,
		Path:        "/playbooks/{playbook_id}",
		Summary:     "Get playbook",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlaybookID string `path:"playbook_id"`
	}) (*struct {
		Body PlaybookResponse
	}, error) {
		view, err := e.GetPlaybookView(ctx, input.PlaybookID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PlaybookResponse
		}{Body: playbookResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-playbook-status",
		Method:      http.MethodGet,
		Path:        "/playbooks/{playbook_id}/status",
		Summary:     "Playbook generation status",
		Description: "Lightweight read-only projection suitable for frequent polling.",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlaybookID string `path:"playbook_id"`
	}) (*struct {
		Body engine.StatusView
	}, error) {
		status, err := e.GetStatus(ctx, input.PlaybookID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.StatusView
		}{Body: status}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-playbook",
		Method:      http.MethodDelete,
		Path:        "/playbooks/{playbook_id}",
		Summary:     "Delete playbook",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlaybookID string `path:"playbook_id"`
	}) (*struct{}, error) {
		if err := e.DeletePlaybook(ctx, input.PlaybookID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerSections(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-section",
		Method:      http.MethodGet,
		Path:        "/playbooks/{playbook_id}/sections/{section_id}",
		Summary:     "Get section",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlaybookID string `path:"playbook_id"`
		SectionID  string `path:"section_id"`
	}) (*struct {
		Body SectionResponse
	}, error) {
		s, err := e.GetSection(ctx, input.PlaybookID, input.SectionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SectionResponse
		}{Body: sectionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-section",
		Method:      http.MethodPatch,
		Path:        "/playbooks/{playbook_id}/sections/{section_id}",
		Summary:     "Edit section content",
		Description: "Manual override of generated content. Rejected while the section is generating.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		PlaybookID string `path:"playbook_id"`
		SectionID  string `path:"section_id"`
		Body       UpdateSectionRequest
	}) (*struct {
		Body SectionResponse
	}, error) {
		s, err := e.UpdateSectionContent(ctx, input.PlaybookID, input.SectionID, input.Body.Content, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SectionResponse
		}{Body: sectionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "regenerate-section",
		Method:        http.MethodPost,
		Path:          "/playbooks/{playbook_id}/sections/{section_id}/regenerate",
		Summary:       "Regenerate section",
		DefaultStatus: http.StatusAccepted,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		PlaybookID string `path:"playbook_id"`
		SectionID  string `path:"section_id"`
	}) (*struct {
		Body SectionResponse
	}, error) {
		s, err := e.RegenerateSection(ctx, input.PlaybookID, input.SectionID, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SectionResponse
		}{Body: sectionResponse(s)}, nil
	})
}

func registerAttachments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-attachment",
		Method:        http.MethodPost,
		Path:          "/playbooks/{playbook_id}/attachments",
		Summary:       "Add attachment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlaybookID string `path:"playbook_id"`
		Body       AddAttachmentRequest
	}) (*struct {
		Body AttachmentResponse
	}, error) {
		a, err := e.AddAttachment(ctx, input.PlaybookID, engine.AttachmentOptions{
			FileName:   input.Body.FileName,
			FileType:   input.Body.FileType,
			FileSize:   input.Body.FileSize,
			ContentRef: input.Body.ContentRef,
		}, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AttachmentResponse
		}{Body: attachmentResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-attachments",
		Method:      http.MethodGet,
		Path:        "/playbooks/{playbook_id}/attachments",
		Summary:     "List attachments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlaybookID string `path:"playbook_id"`
	}) (*struct {
		Body []AttachmentResponse
	}, error) {
		if _, err := e.GetPlaybookView(ctx, input.PlaybookID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListAttachments(ctx, input.PlaybookID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]AttachmentResponse, 0, len(items))
		for _, a := range items {
			out = append(out, attachmentResponse(a))
		}
		return &struct {
			Body []AttachmentResponse
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-attachment",
		Method:      http.MethodDelete,
		Path:        "/playbooks/{playbook_id}/attachments/{attachment_id}",
		Summary:     "Remove attachment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlaybookID   string `path:"playbook_id"`
		AttachmentID string `path:"attachment_id"`
	}) (*struct{}, error) {
		if err := e.RemoveAttachment(ctx, input.PlaybookID, input.AttachmentID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerNotes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-note",
		Method:        http.MethodPost,
		Path:          "/playbooks/{playbook_id}/notes",
		Summary:       "Add note",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlaybookID string `path:"playbook_id"`
		Body       NoteRequest
	}) (*struct {
		Body NoteResponse
	}, error) {
		n, err := e.AddNote(ctx, input.PlaybookID, input.Body.Content, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NoteResponse
		}{Body: noteResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notes",
		Method:      http.MethodGet,
		Path:        "/playbooks/{playbook_id}/notes",
		Summary:     "List notes",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlaybookID string `path:"playbook_id"`
	}) (*struct {
		Body []NoteResponse
	}, error) {
		if _, err := e.GetPlaybookView(ctx, input.PlaybookID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListNotes(ctx, input.PlaybookID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]NoteResponse, 0, len(items))
		for _, n := range items {
			out = append(out, noteResponse(n))
		}
		return &struct {
			Body []NoteResponse
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-note",
		Method:      http.MethodPatch,
		Path:        "/playbooks/{playbook_id}/notes/{note_id}",
		Summary:     "Update note",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlaybookID string `path:"playbook_id"`
		NoteID     string `path:"note_id"`
		Body       NoteRequest
	}) (*struct {
		Body NoteResponse
	}, error) {
		n, err := e.UpdateNote(ctx, input.PlaybookID, input.NoteID, input.Body.Content, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NoteResponse
		}{Body: noteResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-note",
		Method:      http.MethodDelete,
		Path:        "/playbooks/{playbook_id}/notes/{note_id}",
		Summary:     "Delete note",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlaybookID string `path:"playbook_id"`
		NoteID     string `path:"note_id"`
	}) (*struct{}, error) {
		if err := e.DeleteNote(ctx, input.PlaybookID, input.NoteID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Recent events across all playbooks",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body []EventResponse
	}, error) {
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		items, err := e.Repo.ListEvents(ctx, "", limit)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]EventResponse, 0, len(items))
		for _, ev := range items {
			out = append(out, eventResponse(ev))
		}
		return &struct {
			Body []EventResponse
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-playbook-events",
		Method:      http.MethodGet,
		Path:        "/playbooks/{playbook_id}/events",
		Summary:     "Playbook event log",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlaybookID string `path:"playbook_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body []EventResponse
	}, error) {
		if _, err := e.GetPlaybookView(ctx, input.PlaybookID); err != nil {
			return nil, handleError(err)
		}
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		items, err := e.Repo.ListEvents(ctx, input.PlaybookID, limit)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]EventResponse, 0, len(items))
		for _, ev := range items {
			out = append(out, eventResponse(ev))
		}
		return &struct {
			Body []EventResponse
		}{Body: out}, nil
	})
}
