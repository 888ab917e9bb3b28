package domain

type District struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	State          string `json:"state,omitempty"`
	Enrollment     int    `json:"enrollment,omitempty"`
	BudgetJSON     string `json:"budget_json,omitempty"`
	PrioritiesJSON string `json:"priorities_json,omitempty"`
	CreatedAt      string `json:"created_at" format:"date-time"`
}

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Playbook struct {
	ID          string   `json:"id"`
	DistrictID  string   `json:"district_id"`
	ProductIDs  []string `json:"product_ids"`
	CreatedBy   string   `json:"created_by"`
	GeneratedAt string   `json:"generated_at" format:"date-time"`
}

type Section struct {
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
	AttemptID    *string `json:"-"`
}

type Attachment struct {
	ID         string `json:"id"`
	PlaybookID string `json:"playbook_id"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type,omitempty"`
	FileSize   int64  `json:"file_size"`
	ContentRef string `json:"content_ref"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Note struct {
	ID         string `json:"id"`
	PlaybookID string `json:"playbook_id"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	UpdatedAt  string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	PlaybookID string `json:"playbook_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
