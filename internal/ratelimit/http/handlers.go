package ratelimithttp

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumen-lms/lumen/internal/audit"
	"github.com/lumen-lms/lumen/internal/platform/httpx"
	"github.com/lumen-lms/lumen/internal/ratelimit"
	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
)

// Limiter is the operator surface of ratelimit.Limiter.
type Limiter interface {
	Peek(ctx context.Context, key string) (ratelimit.Entry, bool, error)
	Reset(ctx context.Context, prefix string) (int, error)
	ResetAll(ctx context.Context) (int, error)
}

// Recorder writes audit entries.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry)
}

// Handler exposes rate limit inspection and the reset escape hatch to operators.
type Handler struct {
	logger   *slog.Logger
	limiter  Limiter
	rbac     rbac.Middleware
	recorder Recorder
	now      func() time.Time
}

// NewHandler builds the rate limit admin handler.
func NewHandler(logger *slog.Logger, limiter Limiter, rbacMW rbac.Middleware, recorder Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, limiter: limiter, rbac: rbacMW, recorder: recorder, now: time.Now}
}

// MountRoutes registers the admin endpoints. Every route requires manage_rate_limits.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermManageRateLimits))
		r.Get("/rate-limits/presets", h.handlePresets)
		r.Get("/rate-limits", h.handlePeek)
		r.Delete("/rate-limits", h.handleReset)
		r.Delete("/rate-limits/all", h.handleResetAll)
	})
}

type presetView struct {
	Name              string `json:"name"`
	MaxAttempts       int    `json:"maxAttempts"`
	WindowMs          int64  `json:"windowMs"`
	LockoutDurationMs int64  `json:"lockoutDurationMs,omitempty"`
	Message           string `json:"message,omitempty"`
}

func (h *Handler) handlePresets(w http.ResponseWriter, r *http.Request) {
	presets := ratelimit.Presets()
	out := make([]presetView, 0, len(presets))
	for name, cfg := range presets {
		out = append(out, presetView{
			Name:              name,
			MaxAttempts:       cfg.MaxAttempts,
			WindowMs:          cfg.Window.Milliseconds(),
			LockoutDurationMs: cfg.LockoutDuration.Milliseconds(),
			Message:           cfg.Message,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	httpx.JSON(w, http.StatusOK, map[string]any{"presets": out})
}

type entryView struct {
	Key          string     `json:"key"`
	Count        int        `json:"count"`
	ResetAt      time.Time  `json:"resetAt"`
	LockoutUntil *time.Time `json:"lockoutUntil,omitempty"`
	Locked       bool       `json:"locked"`
	Expired      bool       `json:"expired"`
}

func (h *Handler) handlePeek(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		httpx.RespondError(w, shared.Validation("key is required"))
		return
	}
	entry, ok, err := h.limiter.Peek(r.Context(), key)
	if err != nil {
		h.handleServerError(w, "peek rate limit", err)
		return
	}
	if !ok {
		httpx.RespondError(w, shared.NotFound("no rate limit entry for key"))
		return
	}
	now := h.now()
	view := entryView{
		Key:     key,
		Count:   entry.Count,
		ResetAt: entry.ResetAt.UTC(),
		Locked:  now.Before(entry.LockoutUntil),
		Expired: entry.Expired(now),
	}
	if !entry.LockoutUntil.IsZero() {
		until := entry.LockoutUntil.UTC()
		view.LockoutUntil = &until
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("prefix"))
	if prefix == "" {
		httpx.RespondError(w, shared.Validation("prefix is required"))
		return
	}
	removed, err := h.limiter.Reset(r.Context(), prefix)
	if err != nil {
		h.handleServerError(w, "reset rate limit", err)
		return
	}
	h.audit(r, prefix, removed)
	httpx.JSON(w, http.StatusOK, map[string]any{"prefix": prefix, "removed": removed})
}

func (h *Handler) handleResetAll(w http.ResponseWriter, r *http.Request) {
	removed, err := h.limiter.ResetAll(r.Context())
	if err != nil {
		h.handleServerError(w, "reset all rate limits", err)
		return
	}
	h.audit(r, "*", removed)
	httpx.JSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (h *Handler) audit(r *http.Request, prefix string, removed int) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	h.logger.Info("rate limits reset",
		slog.String("actor_id", p.ID),
		slog.String("prefix", prefix),
		slog.Int("removed", removed),
	)
	if h.recorder == nil {
		return
	}
	h.recorder.Record(r.Context(), audit.Entry{
		ActorID:    p.ID,
		Action:     audit.ActionRateLimitReset,
		TargetType: audit.TargetRateLimit,
		TargetID:   prefix,
		Details:    map[string]any{"removed": removed},
		Category:   audit.CategoryAdminAction,
	})
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, slog.Any("error", err))
	httpx.RespondError(w, shared.Internal(err))
}
