// Package responses defines API response types used by forgebuild HTTP handlers.
package responses

import (
	"time"

	"git.home.luguber.info/inful/forgebuild/internal/project"
)

// SuccessMessage is the errMsg of every successful envelope.
const SuccessMessage = "success"

// Envelope wraps every API payload. ErrCode is 0 on success.
type Envelope struct {
	ErrCode int    `json:"errCode"`
	ErrMsg  string `json:"errMsg"`
	Data    any    `json:"data,omitempty"`
}

// OK wraps data in a success envelope.
func OK(data any) Envelope {
	return Envelope{ErrCode: 0, ErrMsg: SuccessMessage, Data: data}
}

// CreateProjectRequest is the body of a project registration.
type CreateProjectRequest struct {
	Name       string `json:"name"`
	SourceRepo string `json:"sourceRepo"`
}

// BuildList is returned by the build history listing.
type BuildList struct {
	Builds []project.BuildRecord `json:"builds"`
	Total  int                   `json:"total"`
}

// HealthResponse represents the health check API response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    float64   `json:"uptime"`
	Database  string    `json:"database"`
}
