package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/erdstudio/engine/internal/api/middleware"
	"github.com/erdstudio/engine/internal/api/types"
	"github.com/erdstudio/engine/internal/models"
	"github.com/erdstudio/engine/internal/services"
)

// VersionsHandler serves the legacy version/history routes.
type VersionsHandler struct {
	projects services.ProjectService
	versions services.VersionService
}

func NewVersionsHandler(projects services.ProjectService, versions services.VersionService) *VersionsHandler {
	return &VersionsHandler{projects: projects, versions: versions}
}

// authorizeVersion resolves the version's project and checks the caller's role.
func (h *VersionsHandler) authorizeVersion(r *http.Request, roles []models.Role) (uuid.UUID, error) {
	versionID, err := pathID(r, "versionID")
	if err != nil {
		return uuid.Nil, err
	}
	v, err := h.versions.GetVersion(r.Context(), versionID)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := h.projects.Authorize(r.Context(), v.ProjectID, middleware.GetUserID(r.Context()), roles...); err != nil {
		return uuid.Nil, err
	}
	return versionID, nil
}

func (h *VersionsHandler) authorizeHistory(r *http.Request, roles []models.Role) (uuid.UUID, error) {
	historyID, err := pathID(r, "historyID")
	if err != nil {
		return uuid.Nil, err
	}
	projectID, err := h.versions.ProjectOfHistory(r.Context(), historyID)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := h.projects.Authorize(r.Context(), projectID, middleware.GetUserID(r.Context()), roles...); err != nil {
		return uuid.Nil, err
	}
	return historyID, nil
}

func (h *VersionsHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.projects.Authorize(r.Context(), projectID, middleware.GetUserID(r.Context()), readRoles...); err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.versions.ListVersions(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, items)
}

func (h *VersionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.VersionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.projects.Authorize(r.Context(), projectID, middleware.GetUserID(r.Context()), writeRoles...); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.versions.CreateVersion(r.Context(), projectID, &services.VersionInput{Name: req.Name, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusCreated, v)
}

func (h *VersionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req types.VersionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	versionID, err := h.authorizeVersion(r, writeRoles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.versions.UpdateVersion(r.Context(), versionID, &services.VersionInput{Name: req.Name, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, v)
}

func (h *VersionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	versionID, err := h.authorizeVersion(r, writeRoles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := h.versions.DeleteVersion(r.Context(), versionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, types.DeleteResponse{Deleted: rep.Counts()})
}

func (h *VersionsHandler) ListHistories(w http.ResponseWriter, r *http.Request) {
	versionID, err := h.authorizeVersion(r, readRoles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.versions.ListHistories(r.Context(), versionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, items)
}

func (h *VersionsHandler) AppendHistory(w http.ResponseWriter, r *http.Request) {
	var req types.HistoryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	versionID, err := h.authorizeVersion(r, writeRoles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	members, err := parseIDs(req.Members)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hist, err := h.versions.AppendHistory(r.Context(), versionID, &services.HistoryInput{Data: req.Data, Members: members})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusCreated, hist)
}

func (h *VersionsHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	versionID, err := h.authorizeVersion(r, writeRoles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	historyID, err := pathID(r, "historyID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	hist, err := h.versions.Rollback(r.Context(), versionID, historyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusCreated, hist)
}

func (h *VersionsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	historyID, err := h.authorizeHistory(r, readRoles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hist, err := h.versions.GetHistory(r.Context(), historyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, hist)
}

func (h *VersionsHandler) UpdateHistory(w http.ResponseWriter, r *http.Request) {
	var req types.HistoryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	historyID, err := h.authorizeHistory(r, writeRoles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var members []uuid.UUID
	if req.Members != nil {
		if members, err = parseIDs(req.Members); err != nil {
			writeError(w, r, err)
			return
		}
	}
	hist, err := h.versions.UpdateHistory(r.Context(), historyID, &services.HistoryInput{Data: req.Data, Members: members})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, hist)
}

// DeleteHistory also prunes later entries of the same version.
func (h *VersionsHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	historyID, err := h.authorizeHistory(r, writeRoles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.versions.DeleteHistory(r.Context(), historyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, types.DeleteResponse{Deleted: map[string]int64{"histories": n}})
}
