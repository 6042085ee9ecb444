package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lumen-lms/lumen/internal/audit"
	"github.com/lumen-lms/lumen/internal/platform/httpx"
	"github.com/lumen-lms/lumen/internal/ratelimit"
	"github.com/lumen-lms/lumen/internal/shared"
)

// Recorder writes audit entries.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	tokens         *TokenIssuer
	limiter        *ratelimit.Limiter
	recorder       Recorder
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, tokens *TokenIssuer, limiter *ratelimit.Limiter, recorder Recorder) *Handler {
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
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		tokens:         tokens,
		limiter:        limiter,
		recorder:       recorder,
		validator:      v,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.limiter.Middleware(ratelimit.PresetLogin, ratelimit.Login, ratelimit.KeyByIP(ratelimit.PrefixLogin))).
		Post("/login", h.handleLogin)
	r.With(h.limiter.Middleware(ratelimit.PresetLogin, ratelimit.Login, ratelimit.KeyByIP(ratelimit.PrefixTokenIssue))).
		Post("/token", h.handleToken)
	r.With(h.limiter.Middleware(ratelimit.PresetRegister, ratelimit.Register, ratelimit.KeyByIP(ratelimit.PrefixRegister))).
		Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)
	r.Post("/password-reset", h.handlePasswordReset)
	r.Post("/password-reset/confirm", h.handlePasswordResetConfirm)
}

type credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,min=1,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type resetConfirmRequest struct {
	Token    string `json:"token" validate:"required,max=128"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !h.decode(w, r, &req) {
		return
	}
	if !h.allow(w, r, ratelimit.PresetLogin, ratelimit.Key(ratelimit.PrefixLoginEmail, ratelimit.NormalizeSubject(req.Email)), ratelimit.Login) {
		return
	}
	user, ok := h.authenticate(w, r, req)
	if !ok {
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, shared.Internal(errors.New("session middleware not installed")))
		return
	}
	h.sessionManager.Renew(sess)
	sess.SetUser(user.ID)
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	h.record(r, audit.Entry{ActorID: user.ID, Action: audit.ActionUserLogin, TargetType: audit.TargetUser, TargetID: user.ID,
		Details: map[string]any{"method": "session", "ip": r.RemoteAddr}})
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !h.decode(w, r, &req) {
		return
	}
	if !h.allow(w, r, ratelimit.PresetLogin, ratelimit.Key(ratelimit.PrefixLoginEmail, ratelimit.NormalizeSubject(req.Email)), ratelimit.Login) {
		return
	}
	user, ok := h.authenticate(w, r, req)
	if !ok {
		return
	}
	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		h.handleServerError(w, "issue token", err)
		return
	}
	h.record(r, audit.Entry{ActorID: user.ID, Action: audit.ActionAuthTokenIssued, TargetType: audit.TargetUser, TargetID: user.ID,
		Details: map[string]any{"expiresAt": expiresAt.UTC().Format(time.RFC3339), "ip": r.RemoteAddr}})
	httpx.JSON(w, http.StatusOK, map[string]any{
		"accessToken": token,
		"tokenType":   "Bearer",
		"expiresAt":   expiresAt.UTC(),
	})
}

// authenticate checks credentials and records failures. Unknown accounts and wrong
// passwords produce the same response.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, req credentials) (*User, bool) {
	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err == nil {
		return user, true
	}
	if errors.Is(err, shared.ErrInvalidCredentials) {
		h.record(r, audit.Entry{Action: audit.ActionUserLoginFailed,
			Details: map[string]any{"email": ratelimit.NormalizeSubject(req.Email), "ip": r.RemoteAddr}})
		httpx.RespondError(w, err)
		return nil, false
	}
	h.handleServerError(w, "authenticate", err)
	return nil, false
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		if shared.KindOf(err) == shared.KindConflict {
			httpx.RespondError(w, err)
			return
		}
		h.handleServerError(w, "register", err)
		return
	}
	h.record(r, audit.Entry{ActorID: user.ID, Action: audit.ActionUserRegistered, TargetType: audit.TargetUser, TargetID: user.ID})
	httpx.JSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil && sess.User() != "" {
		userID := sess.User()
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
		h.record(r, audit.Entry{ActorID: userID, Action: audit.ActionUserLogout, TargetType: audit.TargetUser, TargetID: userID})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !h.decode(w, r, &req) {
		return
	}
	email := ratelimit.NormalizeSubject(req.Email)
	if !h.allow(w, r, ratelimit.PresetPasswordReset, ratelimit.Key(ratelimit.PrefixPasswordReset, email), ratelimit.PasswordReset) {
		return
	}
	user, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		h.handleServerError(w, "request password reset", err)
		return
	}
	entry := audit.Entry{Action: audit.ActionPasswordResetRequested, Details: map[string]any{"email": email, "ip": r.RemoteAddr}}
	if user != nil {
		entry.ActorID, entry.TargetType, entry.TargetID = user.ID, audit.TargetUser, user.ID
	}
	h.record(r, entry)
	httpx.JSON(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists for that address, a reset link has been sent.",
	})
}

func (h *Handler) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	fp := Fingerprint(req.Token)
	if !h.allow(w, r, ratelimit.PresetPasswordResetConfirm, ratelimit.Key(ratelimit.PrefixPasswordResetConfirm, fp), ratelimit.PasswordResetConfirm) {
		return
	}
	user, err := h.service.ConfirmPasswordReset(r.Context(), req.Token, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			h.record(r, audit.Entry{Action: audit.ActionPasswordResetFailed,
				Details: map[string]any{"token": fp[:12], "ip": r.RemoteAddr}})
			httpx.RespondError(w, err)
			return
		}
		h.handleServerError(w, "confirm password reset", err)
		return
	}
	h.record(r, audit.Entry{ActorID: user.ID, Action: audit.ActionPasswordResetCompleted, TargetType: audit.TargetUser, TargetID: user.ID})
	w.WriteHeader(http.StatusNoContent)
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

// allow consumes one attempt for key. Rejections are answered here, before any
// credential work or audit write.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, preset, key string, cfg ratelimit.Config) bool {
	d := h.limiter.Allow(r.Context(), preset, key, cfg)
	if !d.Allowed {
		httpx.RespondError(w, d.Err())
		return false
	}
	return true
}

func (h *Handler) record(r *http.Request, e audit.Entry) {
	if h.recorder != nil {
		h.recorder.Record(r.Context(), e)
	}
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, slog.Any("error", err))
	httpx.RespondError(w, shared.Internal(err))
}
