package api

import "github.com/orbvoice/orb/domain/entities"

// StatusResponse is the engine snapshot returned by GET /api/v1/status.
type StatusResponse struct {
	Status     entities.OrbStatus `json:"status"`
	Level      float64            `json:"level"`
	Monitoring bool               `json:"monitoring"`
}

// MonitorRequest toggles room monitoring.
type MonitorRequest struct {
	Action string `json:"action"` // "start" or "stop"
	RoomID string `json:"room_id,omitempty"`
}

// TurnRequest injects operator text through the normal queue path.
type TurnRequest struct {
	Text string `json:"text"`
}

// CredentialRequest appends one API key to the rotation pool.
type CredentialRequest struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
