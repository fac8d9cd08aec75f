package flowcanvassdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal FlowCanvas HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Process represents the API process model.
type Process struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DiagramXML  string `json:"diagram_xml,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ProcessDraft carries the mutable fields of a process for create/update.
type ProcessDraft struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DiagramXML  string `json:"diagram_xml,omitempty"`
}

// StatusCheck represents a client liveness ping.
type StatusCheck struct {
	ID         string `json:"id"`
	ClientName string `json:"client_name"`
	Timestamp  string `json:"timestamp"`
}

// Event represents a log entry.
type Event struct {
	ID       int64  `json:"id"`
	TS       string `json:"ts"`
	Type     string `json:"type"`
	EntityID string `json:"entity_id"`
	Payload  string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether the error is a 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// ProcessPage wraps list responses with cursors.
type ProcessPage struct {
	Items      []Process `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// ListProcesses returns the first page of processes with the server default
// page size.
func (c *Client) ListProcesses(ctx context.Context) ([]Process, error) {
	page, err := c.ProcessesPage(ctx, 0, "")
	return page.Items, err
}

// ProcessesPage returns a paginated process listing.
func (c *Client) ProcessesPage(ctx context.Context, limit int, cursor string) (ProcessPage, error) {
	endpoint := "processes"
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp ProcessPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetProcess fetches a process by id, diagram content included.
func (c *Client) GetProcess(ctx context.Context, id string) (Process, error) {
	var resp Process
	err := c.do(ctx, http.MethodGet, "processes/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateProcess creates a process and returns the record with its assigned
// identity and timestamps.
func (c *Client) CreateProcess(ctx context.Context, d ProcessDraft) (Process, error) {
	var resp Process
	err := c.do(ctx, http.MethodPost, "processes", d, &resp)
	return resp, err
}

// UpdateProcess fully replaces the mutable fields of a process.
func (c *Client) UpdateProcess(ctx context.Context, id string, d ProcessDraft) (Process, error) {
	var resp Process
	err := c.do(ctx, http.MethodPut, "processes/"+url.PathEscape(id), d, &resp)
	return resp, err
}

// DeleteProcess deletes a process by id.
func (c *Client) DeleteProcess(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "processes/"+url.PathEscape(id), nil, nil)
}

// ExportProcess downloads the serialized diagram of a process. The filename
// comes from the Content-Disposition header.
func (c *Client) ExportProcess(ctx context.Context, id string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "processes/"+url.PathEscape(id)+"/export", nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 300 {
		return nil, "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	filename := ""
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			filename = params["filename"]
		}
	}
	return body, filename, nil
}

// CreateStatusCheck records a status check.
func (c *Client) CreateStatusCheck(ctx context.Context, clientName string) (StatusCheck, error) {
	var resp StatusCheck
	err := c.do(ctx, http.MethodPost, "status", map[string]any{"client_name": clientName}, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := c.newRequest(ctx, method, endpoint, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	u := c.base() + "/api/" + strings.TrimLeft(endpoint, "/")
	if body == nil {
		body = bytes.NewReader(nil)
	}
	return http.NewRequestWithContext(ctx, method, u, body)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c.HTTPClient
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
