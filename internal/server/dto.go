package server

import "flowcanvas/internal/domain"

// Request payloads

type CreateProcessRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	DiagramXML  *string `json:"diagram_xml,omitempty"`
}

type UpdateProcessRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	DiagramXML  *string `json:"diagram_xml,omitempty"`
}

type CreateStatusCheckRequest struct {
	ClientName string `json:"client_name"`
}

// Response payloads

type ProcessResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DiagramXML  string `json:"diagram_xml,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type StatusCheckResponse struct {
	ID         string `json:"id"`
	ClientName string `json:"client_name"`
	Timestamp  string `json:"timestamp" format:"date-time"`
}

type EventResponse struct {
	ID       int64  `json:"id"`
	TS       string `json:"ts" format:"date-time"`
	Type     string `json:"type"`
	EntityID string `json:"entity_id,omitempty"`
	Payload  string `json:"payload_json"`
}

type paginatedProcesses struct {
	Items      []ProcessResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

func processResponse(p domain.Process) ProcessResponse {
	return ProcessResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		DiagramXML:  p.DiagramXML,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func mapProcesses(items []domain.Process) []ProcessResponse {
	res := make([]ProcessResponse, 0, len(items))
	for _, p := range items {
		res = append(res, processResponse(p))
	}
	return res
}

func statusCheckResponse(sc domain.StatusCheck) StatusCheckResponse {
	return StatusCheckResponse(sc)
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{ID: e.ID, TS: e.TS, Type: e.Type, EntityID: e.EntityID, Payload: e.Payload}
}
