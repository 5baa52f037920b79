package handlers

import (
	"log/slog"
	"net/http"

	"beatspace/mediation"
	"beatspace/models"
	"beatspace/utils"
)

// Register creates a buyer or seller account awaiting approval.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in mediation.RegisterInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	user, err := h.svc.Register(r.Context(), in)
	if err == nil {
		slog.Info("user registered", "event", "user_registered", "module", "auth", "user_id", user.ID, "role", user.Role)
	}
	respond(w, r, user, err)
}

// Login exchanges credentials for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in mediation.LoginInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	result, err := h.svc.Login(r.Context(), in)
	if err != nil {
		slog.Info("login rejected", "event", "login_failed", "module", "auth", "email", in.Email)
	}
	respond(w, r, result, err)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	user, err := h.svc.CurrentUser(r.Context(), p)
	respond(w, r, user, err)
}

// ListUsers is the admin user directory, filterable by role and status.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	users, err := h.svc.ListUsers(r.Context(), p, models.Role(q.Get("role")), models.UserStatus(q.Get("status")))
	respond(w, r, users, err)
}

func (h *Handler) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in mediation.UserStatusInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	user, err := h.svc.SetUserStatus(r.Context(), p, pathID(r), in.Status)
	respond(w, r, user, err)
}

// ListAudit returns lifecycle audit entries newest first.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	logs, err := h.svc.ListAudit(r.Context(), p, r.URL.Query().Get("entity_id"), limit)
	respond(w, r, logs, err)
}
