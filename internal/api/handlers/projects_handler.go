package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/erdstudio/engine/internal/api/middleware"
	"github.com/erdstudio/engine/internal/api/types"
	"github.com/erdstudio/engine/internal/models"
	"github.com/erdstudio/engine/internal/services"
)

var (
	readRoles  = []models.Role{models.RoleOwner, models.RoleEditor, models.RoleViewer}
	writeRoles = []models.Role{models.RoleOwner, models.RoleEditor}
)

type ProjectsHandler struct {
	projects services.ProjectService
	ledger   services.LedgerService
}

func NewProjectsHandler(projects services.ProjectService, ledger services.LedgerService) *ProjectsHandler {
	return &ProjectsHandler{projects: projects, ledger: ledger}
}

func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.projects.ListProjects(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	start := (page - 1) * size
	end := start + size
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    items[start:end],
		Meta: &types.Meta{
			RequestID: middleware.GetRequestID(r.Context()),
			Page:      page,
			PageSize:  size,
			Total:     int64(len(items)),
		},
	})
}

func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.ProjectCreateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.projects.CreateProject(r.Context(), middleware.GetUserID(r.Context()), &services.CreateProjectInput{
		Name:          req.Name,
		Icon:          req.Icon,
		GeneralAccess: req.GeneralAccess,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusCreated, p)
}

func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.projects.GetProject(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, p)
}

func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.ProjectUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.projects.UpdateProject(r.Context(), id, middleware.GetUserID(r.Context()), &services.UpdateProjectInput{
		Name:          req.Name,
		Icon:          req.Icon,
		GeneralAccess: req.GeneralAccess,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, p)
}

func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := h.projects.DeleteProject(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, types.DeleteResponse{Deleted: rep.Counts()})
}

func (h *ProjectsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.MemberRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	member := models.Member{UserID: uuid.MustParse(req.UserID), Role: models.Role(req.Role)}
	p, err := h.projects.AddMember(r.Context(), id, middleware.GetUserID(r.Context()), member)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, p)
}

func (h *ProjectsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	memberID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.projects.RemoveMember(r.Context(), id, middleware.GetUserID(r.Context()), memberID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, p)
}

// SaveData persists a serialized snapshot and appends a changelog.
func (h *ProjectsHandler) SaveData(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.SaveDataRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	uid := middleware.GetUserID(r.Context())
	if _, err := h.projects.Authorize(r.Context(), id, uid, writeRoles...); err != nil {
		writeError(w, r, err)
		return
	}
	members, err := parseIDs(req.Members)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(members) == 0 {
		members = []uuid.UUID{uid}
	}
	res, err := h.ledger.SaveProjectData(r.Context(), id, &services.SaveInput{Data: req.Data, Members: members, Name: req.Name})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, types.SaveResponse{Project: res.Project, Changelog: res.Changelog})
}

func (h *ProjectsHandler) ListChangelogs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.projects.Authorize(r.Context(), id, middleware.GetUserID(r.Context()), readRoles...); err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.ledger.ListChangelogs(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, items)
}

func (h *ProjectsHandler) GetChangelog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	changelogID, err := pathID(r, "changelogID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.projects.Authorize(r.Context(), id, middleware.GetUserID(r.Context()), readRoles...); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.ledger.GetChangelog(r.Context(), id, changelogID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, c)
}
