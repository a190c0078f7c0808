package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter handles error presentation and status code determination for HTTP applications.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates a new HTTP error adapter with an optional slog logger.
// If logger is nil, the default package logger will be used.
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// HTTPErrorResponse is the failure form of the API envelope.
type HTTPErrorResponse struct {
	ErrCode int            `json:"errCode"`
	ErrMsg  string         `json:"errMsg"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// StatusCodeFor determines the HTTP status code for a given error. Every error
// the API catches is reported as 422 Unprocessable Entity; the category travels
// in the payload instead.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

// ErrCodeFor returns the non-zero envelope errCode for an error.
func (a *HTTPErrorAdapter) ErrCodeFor(err error) int {
	if err == nil {
		return 0
	}
	switch GetCategory(err) {
	case CategoryValidation, CategoryConfig:
		return 1001
	case CategoryNotFound:
		return 1004
	case CategoryAlreadyExists:
		return 1009
	case CategoryAuth:
		return 2001
	case CategoryGit, CategoryNetwork:
		return 2002
	case CategoryFileSystem:
		return 3001
	case CategoryPersistence:
		return 3002
	case CategoryBuild:
		return 3003
	default:
		return 1
	}
}

// WriteErrorResponse writes a JSON error response and logs with appropriate level.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	a.writeStatus(w, r, a.StatusCodeFor(err), err)
}

// WritePanicResponse reports a recovered handler panic as 500.
func (a *HTTPErrorAdapter) WritePanicResponse(w http.ResponseWriter, r *http.Request, err error) {
	a.writeStatus(w, r, http.StatusInternalServerError, err)
}

func (a *HTTPErrorAdapter) writeStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	payload := a.FormatErrorResponse(err)
	b, jerr := json.Marshal(payload)
	if jerr != nil {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"errCode":1,"errMsg":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)

	if c, ok := AsClassified(err); ok {
		a.logger.Log(r.Context(), a.slogLevelFromSeverity(c.Severity()), c.Error(),
			slog.String("path", r.URL.Path))
		return
	}
	a.logger.Error(err.Error(), slog.String("path", r.URL.Path))
}

// FormatErrorResponse converts known errors into a canonical error payload.
func (a *HTTPErrorAdapter) FormatErrorResponse(err error) HTTPErrorResponse {
	if err == nil {
		return HTTPErrorResponse{}
	}
	resp := HTTPErrorResponse{ErrCode: a.ErrCodeFor(err), ErrMsg: err.Error()}
	if c, ok := AsClassified(err); ok {
		resp.ErrMsg = c.UserMessage()
		resp.Code = string(c.Category())
		if len(c.Context()) > 0 {
			resp.Details = map[string]any(c.Context())
		}
	}
	return resp
}

func (a *HTTPErrorAdapter) slogLevelFromSeverity(s ErrorSeverity) slog.Level {
	switch s {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
