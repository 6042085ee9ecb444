package users

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumen-lms/lumen/internal/audit"
	"github.com/lumen-lms/lumen/internal/platform/httpx"
	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
)

// Recorder writes audit entries.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry)
}

// Handler manages user management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	recorder Recorder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, recorder Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, recorder: recorder}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequirePermission(rbac.PermManageUsers)).Get("/", h.listUsers)
	r.With(h.rbac.RequirePermission(rbac.PermManageRoles)).Patch("/{id}/role", h.changeRole)
	r.With(h.rbac.RequireAny(rbac.PermSuspendUsers, rbac.PermManageUsers)).Patch("/{id}/status", h.changeStatus)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	users, pagination, err := h.service.ListUsers(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, shared.Internal(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users, "pagination": pagination})
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		httpx.RespondError(w, shared.Validation("unknown role"))
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	targetID := strings.TrimSpace(chi.URLParam(r, "id"))

	before, after, err := h.service.ChangeRole(r.Context(), actor, targetID, role)
	if err != nil {
		h.respond(w, "change role", err)
		return
	}
	if before.Role != after.Role {
		h.record(r, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionUserRoleChanged,
			TargetType: audit.TargetUser,
			TargetID:   after.ID,
			Details:    map[string]any{"from": string(before.Role), "to": string(after.Role)},
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": after})
}

type statusRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Active == nil {
		httpx.RespondError(w, shared.Validation("active is required"))
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	targetID := strings.TrimSpace(chi.URLParam(r, "id"))

	before, after, err := h.service.SetActive(r.Context(), actor, targetID, *req.Active)
	if err != nil {
		h.respond(w, "change status", err)
		return
	}
	if before.IsActive != after.IsActive {
		entry := audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionUserReactivated,
			TargetType: audit.TargetUser,
			TargetID:   after.ID,
			Category:   audit.CategoryAdminAction,
		}
		if !after.IsActive {
			entry.Action = audit.ActionUserSuspended
			entry.Severity = audit.SeverityWarning
		}
		h.record(r, entry)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": after})
}

func (h *Handler) respond(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(op+" failed", slog.Any("error", err))
		err = shared.Internal(err)
	}
	httpx.RespondError(w, err)
}

func (h *Handler) record(r *http.Request, e audit.Entry) {
	if h.recorder != nil {
		h.recorder.Record(r.Context(), e)
	}
}
