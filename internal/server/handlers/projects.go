package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/forgebuild/internal/project"
	"git.home.luguber.info/inful/forgebuild/internal/server/responses"
	"git.home.luguber.info/inful/forgebuild/internal/store"
)

// ProjectRegistry is the project store as seen by the API.
type ProjectRegistry interface {
	Find(ctx context.Context, filter store.Filter) ([]project.Project, error)
	FindByID(ctx context.Context, id string) (*project.Project, error)
	Insert(ctx context.Context, p *project.Project) error
}

// BuildHistory lists build records.
type BuildHistory interface {
	ListByProject(ctx context.Context, projectID string, limit int) ([]project.BuildRecord, error)
}

// BuildRunner starts builds and inspects source repositories.
type BuildRunner interface {
	BuildByID(ctx context.Context, id string) (*project.BuildRecord, error)
	SourceRepoInfo(ctx context.Context, id, name, sourceRepo string) (*project.RepoInfo, error)
}

// ProjectHandlers serves the /api/projects routes.
type ProjectHandlers struct {
	projects     ProjectRegistry
	history      BuildHistory
	builds       BuildRunner
	errorAdapter *errors.HTTPErrorAdapter
}

// NewProjectHandlers creates the project handlers.
func NewProjectHandlers(projects ProjectRegistry, history BuildHistory, builds BuildRunner) *ProjectHandlers {
	return &ProjectHandlers{
		projects:     projects,
		history:      history,
		builds:       builds,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleList lists projects, newest first. ?name= filters by exact name.
// data is the bare array, never null.
func (h *ProjectHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.projects.Find(r.Context(), store.Filter{Name: r.URL.Query().Get("name")})
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	writeOK(w, r, h.errorAdapter, list)
}

// HandleCreate registers a project from {name, sourceRepo}.
func (h *ProjectHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req responses.CreateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	p := &project.Project{Name: strings.TrimSpace(req.Name), SourceRepo: strings.TrimSpace(req.SourceRepo)}
	if err := h.projects.Insert(r.Context(), p); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	writeOK(w, r, h.errorAdapter, p)
}

// HandleGet returns one project.
func (h *ProjectHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	writeOK(w, r, h.errorAdapter, p)
}

// HandleBuild runs a build attempt synchronously and returns its record.
// The attempt is detached from client cancellation so it always finishes
// with a record.
func (h *ProjectHandlers) HandleBuild(w http.ResponseWriter, r *http.Request) {
	rec, err := h.builds.BuildByID(context.WithoutCancel(r.Context()), r.PathValue("id"))
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	writeOK(w, r, h.errorAdapter, rec)
}

// HandleBuilds lists a project's build records, newest first (?limit=).
func (h *ProjectHandlers) HandleBuilds(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if _, err := h.projects.FindByID(r.Context(), id); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	list, err := h.history.ListByProject(r.Context(), id, limit)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	writeOK(w, r, h.errorAdapter, responses.BuildList{Builds: list, Total: len(list)})
}

// HandleSourceRepoInfo reports the latest commit of the project's repository.
// ?name= and ?sourceRepo= override the stored values.
func (h *ProjectHandlers) HandleSourceRepoInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	info, err := h.builds.SourceRepoInfo(r.Context(), r.PathValue("id"), q.Get("name"), q.Get("sourceRepo"))
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	writeOK(w, r, h.errorAdapter, info)
}
