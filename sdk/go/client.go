package fieldbooksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Fieldbook HTTP API client.
type Client struct {
	BaseURL      string
	ActorID      string
	HTTPClient   *http.Client
	Timeout      time.Duration
	PollInterval time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:      baseURL,
		Timeout:      10 * time.Second,
		PollInterval: 500 * time.Millisecond,
	}
}

// Playbook is the API playbook model (partial).
type Playbook struct {
	ID            string    `json:"id"`
	DistrictID    string    `json:"district_id"`
	ProductIDs    []string  `json:"product_ids"`
	CreatedBy     string    `json:"created_by"`
	GeneratedAt   string    `json:"generated_at"`
	OverallStatus string    `json:"overall_status"`
	Sections      []Section `json:"sections"`
}

// Section is the API section model.
type Section struct {
	ID           string  `json:"id"`
	PlaybookID   string  `json:"playbook_id"`
	Type         string  `json:"section_type"`
	Position     int     `json:"position"`
	Status       string  `json:"status"`
	Content      *string `json:"content,omitempty"`
	Source       *string `json:"content_source,omitempty"`
	IsEdited     bool    `json:"is_edited"`
	ErrorMessage *string `json:"error_message,omitempty"`
	Retryable    bool    `json:"retryable"`
}

// Status is the polling projection of a playbook.
type Status struct {
	PlaybookID    string `json:"playbook_id"`
	OverallStatus string `json:"overall_status"`
	Sections      []struct {
		ID        string `json:"id"`
		Type      string `json:"section_type"`
		Status    string `json:"status"`
		Retryable bool   `json:"retryable"`
		IsEdited  bool   `json:"is_edited"`
	} `json:"sections"`
}

// APIError wraps non-2xx responses carrying the error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

// GeneratePlaybook launches generation and returns the initial playbook.
func (c *Client) GeneratePlaybook(ctx context.Context, districtID string, productIDs []string) (Playbook, error) {
	body := map[string]any{
		"district_id": districtID,
		"product_ids": productIDs,
	}
	var resp Playbook
	err := c.do(ctx, http.MethodPost, "v0/playbooks", body, &resp)
	return resp, err
}

// GetPlaybook fetches the full aggregate.
func (c *Client) GetPlaybook(ctx context.Context, playbookID string) (Playbook, error) {
	var resp Playbook
	err := c.do(ctx, http.MethodGet, "v0/playbooks/"+url.PathEscape(playbookID), nil, &resp)
	return resp, err
}

// GetStatus fetches the lightweight status projection.
func (c *Client) GetStatus(ctx context.Context, playbookID string) (Status, error) {
	var resp Status
	err := c.do(ctx, http.MethodGet, "v0/playbooks/"+url.PathEscape(playbookID)+"/status", nil, &resp)
	return resp, err
}

// WaitForPlaybook polls the status endpoint until the overall status leaves
// generating, then returns the full playbook.
func (c *Client) WaitForPlaybook(ctx context.Context, playbookID string) (Playbook, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	for {
		status, err := c.GetStatus(ctx, playbookID)
		if err != nil {
			return Playbook{}, err
		}
		if status.OverallStatus != "generating" {
			return c.GetPlaybook(ctx, playbookID)
		}
		select {
		case <-ctx.Done():
			return Playbook{}, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// UpdateSection overrides a section's content.
func (c *Client) UpdateSection(ctx context.Context, playbookID, sectionID, content string) (Section, error) {
	var resp Section
	endpoint := fmt.Sprintf("v0/playbooks/%s/sections/%s", url.PathEscape(playbookID), url.PathEscape(sectionID))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"content": content}, &resp)
	return resp, err
}

// RegenerateSection relaunches generation for one section.
func (c *Client) RegenerateSection(ctx context.Context, playbookID, sectionID string) (Section, error) {
	var resp Section
	endpoint := fmt.Sprintf("v0/playbooks/%s/sections/%s/regenerate", url.PathEscape(playbookID), url.PathEscape(sectionID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// DeletePlaybook removes the playbook and cancels in-flight generation.
func (c *Client) DeletePlaybook(ctx context.Context, playbookID string) error {
	return c.do(ctx, http.MethodDelete, "v0/playbooks/"+url.PathEscape(playbookID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		} else {
			apiErr.Message = string(b)
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
