package handlers

import (
	"net/http"

	"github.com/erdstudio/engine/internal/api/middleware"
	"github.com/erdstudio/engine/internal/api/types"
	"github.com/erdstudio/engine/internal/services"
)

type UsersHandler struct {
	users services.UserService
}

func NewUsersHandler(users services.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, u)
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rep, err := h.users.DeleteUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, types.DeleteResponse{Deleted: rep.Counts()})
}

func (h *UsersHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.users.GetSettings(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, st)
}

func (h *UsersHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req types.SettingsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.users.UpdateSettings(r.Context(), middleware.GetUserID(r.Context()), &services.UpdateSettingsInput{
		Theme:    req.Theme,
		Language: req.Language,
		Autosave: req.Autosave,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, st)
}
