package server

import (
	"encoding/json"

	"fieldbook/internal/domain"
	"fieldbook/internal/engine"
)

// Request payloads

type ImportDistrictRequest struct {
	Name       string         `json:"name"`
	State      string         `json:"state,omitempty"`
	Enrollment int            `json:"enrollment,omitempty" minimum:"0"`
	Budget     map[string]any `json:"budget,omitempty"`
	Priorities []string       `json:"priorities,omitempty"`
}

type ImportProductRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

type GeneratePlaybookRequest struct {
	DistrictID string   `json:"district_id"`
	ProductIDs []string `json:"product_ids"`
}

type UpdateSectionRequest struct {
	Content string `json:"content"`
}

type AddAttachmentRequest struct {
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type,omitempty"`
	FileSize   int64  `json:"file_size,omitempty" minimum:"0"`
	ContentRef string `json:"content_ref"`
}

type NoteRequest struct {
	Content string `json:"content"`
}

// Response payloads

type DistrictResponse struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	State      string         `json:"state,omitempty"`
	Enrollment int            `json:"enrollment,omitempty"`
	Budget     map[string]any `json:"budget,omitempty"`
	Priorities []string       `json:"priorities,omitempty"`
	CreatedAt  string         `json:"created_at" format:"date-time"`
}

type ProductResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type PlaybookSummary struct {
	ID          string   `json:"id"`
	DistrictID  string   `json:"district_id"`
	ProductIDs  []string `json:"product_ids"`
	CreatedBy   string   `json:"created_by"`
	GeneratedAt string   `json:"generated_at" format:"date-time"`
}

type PlaybookResponse struct {
	PlaybookSummary
	OverallStatus string               `json:"overall_status" enum:"generating,complete,failed,partial"`
	Sections      []SectionResponse    `json:"sections"`
	Attachments   []AttachmentResponse `json:"attachments"`
	Notes         []NoteResponse       `json:"notes"`
}

type SectionResponse struct {
	ID           string  `json:"id"`
	PlaybookID   string  `json:"playbook_id"`
	Type         string  `json:"section_type"`
	Position     int     `json:"position"`
	Status       string  `json:"status" enum:"pending,generating,complete,error"`
	Content      *string `json:"content,omitempty"`
	Source       *string `json:"content_source,omitempty" enum:"verbatim,constrained,synthesis,hybrid"`
	IsEdited     bool    `json:"is_edited"`
	LastEditedAt *string `json:"last_edited_at,omitempty" format:"date-time"`
	GeneratedAt  *string `json:"generated_at,omitempty" format:"date-time"`
	ErrorMessage *string `json:"error_message,omitempty"`
	Retryable    bool    `json:"retryable"`
}

type AttachmentResponse struct {
	ID         string `json:"id"`
	PlaybookID string `json:"playbook_id"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type,omitempty"`
	FileSize   int64  `json:"file_size"`
	ContentRef string `json:"content_ref"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type NoteResponse struct {
	ID         string `json:"id"`
	PlaybookID string `json:"playbook_id"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	UpdatedAt  string `json:"updated_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	PlaybookID string         `json:"playbook_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Conversion helpers

func districtResponse(d domain.District) DistrictResponse {
	return DistrictResponse{
		ID:         d.ID,
		Name:       d.Name,
		State:      d.State,
		Enrollment: d.Enrollment,
		Budget:     decodeJSONMap(d.BudgetJSON),
		Priorities: decodeStringSlice(d.PrioritiesJSON),
		CreatedAt:  d.CreatedAt,
	}
}

func productResponse(p domain.Product) ProductResponse {
	return ProductResponse(p)
}

func playbookSummary(p domain.Playbook) PlaybookSummary {
	return PlaybookSummary{
		ID:          p.ID,
		DistrictID:  p.DistrictID,
		ProductIDs:  nonNilSlice(p.ProductIDs),
		CreatedBy:   p.CreatedBy,
		GeneratedAt: p.GeneratedAt,
	}
}

func playbookResponse(view engine.PlaybookView) PlaybookResponse {
	resp := PlaybookResponse{
		PlaybookSummary: playbookSummary(view.Playbook),
		OverallStatus:   view.OverallStatus,
		Sections:        []SectionResponse{},
		Attachments:     []AttachmentResponse{},
		Notes:           []NoteResponse{},
	}
	for _, s := range view.Sections {
		resp.Sections = append(resp.Sections, sectionResponse(s))
	}
	for _, a := range view.Attachments {
		resp.Attachments = append(resp.Attachments, attachmentResponse(a))
	}
	for _, n := range view.Notes {
		resp.Notes = append(resp.Notes, noteResponse(n))
	}
	return resp
}

func sectionResponse(s domain.Section) SectionResponse {
	return SectionResponse{
		ID:           s.ID,
		PlaybookID:   s.PlaybookID,
		Type:         s.Type,
		Position:     s.Position,
		Status:       s.Status,
		Content:      s.Content,
		Source:       s.Source,
		IsEdited:     s.IsEdited,
		LastEditedAt: s.LastEditedAt,
		GeneratedAt:  s.GeneratedAt,
		ErrorMessage: s.ErrorMessage,
		Retryable:    s.Retryable,
	}
}

func attachmentResponse(a domain.Attachment) AttachmentResponse {
	return AttachmentResponse(a)
}

func noteResponse(n domain.Note) NoteResponse {
	return NoteResponse(n)
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		PlaybookID: e.PlaybookID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func decodeStringSlice(raw string) []string {
	if raw == "" {
		return nil
	}
	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return nil
	}
	return arr
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
