package courses

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lumen-lms/lumen/internal/audit"
	"github.com/lumen-lms/lumen/internal/platform/httpx"
	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
)

// Recorder writes audit entries.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry)
}

// Handler serves the course endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	recorder  Recorder
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, recorder Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{logger: logger, service: service, rbac: rbac, recorder: recorder, validator: v}
}

// MountRoutes registers course routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(rbac.PermCreateCourses, rbac.PermManageCourses)).Post("/", h.create)
	r.With(h.rbac.Resolve()).Get("/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermEditOwnCourses, rbac.PermManageCourses))
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

type createRequest struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=5000"`
	InstructorID string `json:"instructorId" validate:"omitempty,uuid"`
	Published    bool   `json:"published"`
}

type updateRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Published   *bool   `json:"published"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	c, err := h.service.Create(r.Context(), actor, NewCourse{
		Title:        req.Title,
		Description:  req.Description,
		InstructorID: req.InstructorID,
		Published:    req.Published,
	})
	if err != nil {
		h.respond(w, "create course", err)
		return
	}
	h.record(r, audit.Entry{
		ActorID:    actor.ID,
		Action:     audit.ActionCourseCreated,
		TargetType: audit.TargetCourse,
		TargetID:   c.ID,
		Details:    map[string]any{"title": c.Title, "instructorId": c.InstructorID},
	})
	httpx.JSON(w, http.StatusCreated, map[string]any{"course": c})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.PrincipalFromContext(r.Context())
	view, err := h.service.Get(r.Context(), actor, ok, chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, "get course", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"course": view})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	c, grant, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), Changes{
		Title:       req.Title,
		Description: req.Description,
		Published:   req.Published,
	})
	if err != nil {
		h.respond(w, "update course", err)
		return
	}
	h.record(r, audit.Entry{
		ActorID:    actor.ID,
		Action:     audit.ActionCourseUpdated,
		TargetType: audit.TargetCourse,
		TargetID:   c.ID,
		Details:    map[string]any{"grant": string(grant), "fields": changedFields(req)},
	})
	httpx.JSON(w, http.StatusOK, map[string]any{"course": c})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	c, grant, err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, "delete course", err)
		return
	}
	h.record(r, audit.Entry{
		ActorID:    actor.ID,
		Action:     audit.ActionCourseDeleted,
		TargetType: audit.TargetCourse,
		TargetID:   c.ID,
		Details:    map[string]any{"grant": string(grant), "title": c.Title},
	})
	w.WriteHeader(http.StatusNoContent)
}

func changedFields(req updateRequest) []string {
	var fields []string
	if req.Title != nil {
		fields = append(fields, "title")
	}
	if req.Description != nil {
		fields = append(fields, "description")
	}
	if req.Published != nil {
		fields = append(fields, "published")
	}
	return fields
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			httpx.RespondError(w, shared.Validation("invalid "+fieldErrs[0].Field()))
			return false
		}
		httpx.RespondError(w, shared.Validation("invalid request"))
		return false
	}
	return true
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
