package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyProjectID   = "project_id"
	KeyProjectName = "project"
	KeyRepo        = "repository"
	KeyPath        = "path"
	KeyStage       = "stage"
	KeyDurationMS  = "duration_ms"
	KeyBuildStatus = "build_status"
	KeyErrorLine   = "error_line"
	KeyCommit      = "commit"
	KeyURL         = "url"
	KeyMethod      = "method"
	KeyStatus      = "status"
	KeyUserAgent   = "user_agent"
	KeyRemoteAddr  = "remote_addr"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func ProjectID(id string) slog.Attr     { return slog.String(KeyProjectID, id) }
func ProjectName(n string) slog.Attr    { return slog.String(KeyProjectName, n) }
func Repository(r string) slog.Attr     { return slog.String(KeyRepo, r) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func BuildStatus(s string) slog.Attr    { return slog.String(KeyBuildStatus, s) }
func ErrorLine(i int) slog.Attr         { return slog.Int(KeyErrorLine, i) }
func Commit(hash string) slog.Attr      { return slog.String(KeyCommit, hash) }
func URL(u string) slog.Attr            { return slog.String(KeyURL, u) }
func Method(m string) slog.Attr         { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr         { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr     { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(addr string) slog.Attr  { return slog.String(KeyRemoteAddr, addr) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
