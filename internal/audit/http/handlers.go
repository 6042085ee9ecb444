package audithttp

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lumen-lms/lumen/internal/audit"
	"github.com/lumen-lms/lumen/internal/platform/httpx"
	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
)

const (
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
	dateLayout        = "2006-01-02"
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.Filters) (audit.Result, error)
	Export(ctx context.Context, filters audit.Filters) ([]audit.Record, error)
}

// Recorder records who exported the trail.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry)
}

// Handler serves the audit timeline and its exports.
type Handler struct {
	logger   *slog.Logger
	service  TimelineService
	rbac     rbac.Middleware
	recorder Recorder
	now      func() time.Time
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service TimelineService, rbacMW rbac.Middleware, recorder Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		rbac:     rbacMW,
		recorder: recorder,
		now:      time.Now,
	}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "load audit timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", "text/csv; charset=utf-8", audit.WriteCSV)
}

func (h *Handler) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "json", "application/json", audit.WriteJSON)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, format, contentType string, encode func(io.Writer, []audit.Record) error) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "export audit timeline", err)
		return
	}
	var buf bytes.Buffer
	if err := encode(&buf, rows); err != nil {
		h.handleServerError(w, "encode "+format, err)
		return
	}

	if h.recorder != nil {
		p, _ := rbac.PrincipalFromContext(r.Context())
		h.recorder.Record(r.Context(), audit.Entry{
			ActorID:    p.ID,
			Action:     audit.ActionAuditExported,
			TargetType: audit.TargetAuditLog,
			Details: map[string]any{
				"format": format,
				"rows":   len(rows),
				"from":   filters.From.Format(time.RFC3339),
				"to":     filters.To.Format(time.RFC3339),
			},
			Category: audit.CategoryAdminAction,
		})
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-log."+format+"\"")
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("write export", slog.String("format", format), slog.Any("error", err))
	}
}

// parseFilters reads from/to as dates (to is inclusive) or RFC3339 instants.
func (h *Handler) parseFilters(r *http.Request) (audit.Filters, error) {
	q := r.URL.Query()
	now := h.now().UTC()

	toTime := now
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		t, err := parseBound(raw, true)
		if err != nil {
			return audit.Filters{}, shared.Validation("invalid to")
		}
		toTime = t
	}
	fromTime := toTime.Add(-defaultDateRange)
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		t, err := parseBound(raw, false)
		if err != nil {
			return audit.Filters{}, shared.Validation("invalid from")
		}
		fromTime = t
	}
	if fromTime.After(toTime) {
		return audit.Filters{}, shared.Validation("from must not be after to")
	}
	if toTime.Sub(fromTime) > maxDateRangeHours*time.Hour {
		return audit.Filters{}, shared.Validation("date range exceeds 90 days")
	}

	filters := audit.Filters{
		From:    fromTime,
		To:      toTime,
		ActorID: strings.TrimSpace(q.Get("actor")),
		Action:  strings.TrimSpace(q.Get("action")),
		Page:    1,
	}
	if raw := strings.TrimSpace(q.Get("severity")); raw != "" {
		s, err := audit.ParseSeverity(raw)
		if err != nil {
			return audit.Filters{}, shared.Validation("invalid severity")
		}
		filters.Severity = s
	}
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		c, err := audit.ParseCategory(raw)
		if err != nil {
			return audit.Filters{}, shared.Validation("invalid category")
		}
		filters.Category = c
	}
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.Filters{}, shared.Validation("invalid page")
		}
		filters.Page = parsed
	}
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.Filters{}, shared.Validation("invalid page_size")
		}
		filters.PageSize = parsed
	}
	return filters, nil
}

func parseBound(raw string, inclusiveEnd bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	if inclusiveEnd {
		t = t.Add(24 * time.Hour)
	}
	return t, nil
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, slog.Any("error", err))
	httpx.RespondError(w, shared.Internal(err))
}
